package serialization

import (
	"cmp"
	"fmt"
	"slices"
	"strings"
)

// Validation limits for resource protection.
const (
	MaxHeaderSize    = 100 * 1024 * 1024 // 100MB - maximum header size
	MaxTensorCount   = 100_000           // Maximum number of tensors in a file
	MaxTensorNameLen = 4096              // Maximum tensor name length
)

// ValidateTensorOffsets checks tensor regions for negative values, overlap and
// out-of-bounds access, and that each size matches its shape.
func ValidateTensorOffsets(tensors []TensorMeta, dataSize int64) error {
	if len(tensors) > MaxTensorCount {
		return &ValidationError{
			Type:    "too_many_tensors",
			Details: fmt.Sprintf("got %d, max %d", len(tensors), MaxTensorCount),
		}
	}

	sorted := slices.Clone(tensors)
	slices.SortFunc(sorted, func(a, b TensorMeta) int {
		return cmp.Compare(a.Offset, b.Offset)
	})

	for i, t := range sorted {
		if t.Offset < 0 || t.Size < 0 {
			return &ValidationError{
				Type:    "negative_offset",
				Tensor:  t.Name,
				Details: fmt.Sprintf("offset=%d, size=%d (negative values not allowed)", t.Offset, t.Size),
			}
		}

		if t.Offset > dataSize || t.Size > dataSize-t.Offset {
			return &ValidationError{
				Type:    "out_of_bounds",
				Tensor:  t.Name,
				Details: fmt.Sprintf("offset %d + size %d > data_size %d", t.Offset, t.Size, dataSize),
			}
		}

		if want := int64(t.NumElements()) * bytesPerElement; t.Size != want {
			return &ValidationError{
				Type:    "size_mismatch",
				Tensor:  t.Name,
				Details: fmt.Sprintf("shape %v needs %d bytes, size is %d", t.Shape, want, t.Size),
			}
		}

		if i < len(sorted)-1 {
			next := sorted[i+1]
			if t.Size > next.Offset-t.Offset {
				return &ValidationError{
					Type:    "offset_overlap",
					Tensor:  t.Name,
					Tensor2: next.Name,
					Details: fmt.Sprintf("regions [%d-%d] and [%d-%d] overlap",
						t.Offset, t.Offset+t.Size, next.Offset, next.Offset+next.Size),
				}
			}
		}
	}

	return nil
}

// ValidateTensorName rejects empty, overlong and path-like names.
func ValidateTensorName(name string) error {
	switch {
	case name == "":
		return &ValidationError{Type: "invalid_name", Details: "empty tensor name"}
	case len(name) > MaxTensorNameLen:
		return &ValidationError{
			Type:    "name_too_long",
			Tensor:  name,
			Details: fmt.Sprintf("length %d > max %d", len(name), MaxTensorNameLen),
		}
	case strings.Contains(name, ".."):
		return &ValidationError{Type: "invalid_name", Tensor: name, Details: "contains '..'"}
	case strings.ContainsAny(name, "/\\"):
		return &ValidationError{Type: "invalid_name", Tensor: name, Details: "contains path separator (/ or \\)"}
	case strings.Contains(name, "\x00"):
		return &ValidationError{Type: "invalid_name", Tensor: name, Details: "contains null byte"}
	}
	return nil
}

// ValidateHeader checks tensor names, duplicate names and tensor regions.
func ValidateHeader(h *Header, dataSize int64) error {
	seen := make(map[string]bool, len(h.Tensors))
	for _, t := range h.Tensors {
		if err := ValidateTensorName(t.Name); err != nil {
			return err
		}
		if seen[t.Name] {
			return &ValidationError{Type: "duplicate_name", Tensor: t.Name, Details: "tensor listed twice"}
		}
		seen[t.Name] = true
	}
	return ValidateTensorOffsets(h.Tensors, dataSize)
}
