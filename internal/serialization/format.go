package serialization

import (
	"crypto/sha256"
	"encoding/binary"
	"math"
	"slices"
	"time"

	"github.com/pkg/errors"
)

// Format constants.
const (
	MagicBytes      = "GRAD"
	FormatVersion   = 1
	HeaderAlignment = 64   // Align tensor data to 64 bytes
	FixedHeaderSize = 64   // Fixed binary header size (0x40 bytes)
	ChecksumSize    = 32   // SHA-256 checksum size (32 bytes)
	ChecksumOffset  = 0x20 // Checksum offset in the fixed header
	bytesPerElement = 8    // float64
)

// Flags for the .grad format.
const (
	FlagHasMetadata   uint32 = 1 << 0 // bit 0: custom metadata included
	FlagHasCheckpoint uint32 = 1 << 1 // bit 1: training checkpoint included
)

// Header represents the JSON header in a .grad file.
type Header struct {
	FormatVersion  int               `json:"format_version"`       // Version of the .grad format
	RunID          string            `json:"run_id"`               // Unique id of the writing run
	ModelType      string            `json:"model_type"`           // Type of model (e.g., "Sequential", "Linear")
	CreatedAt      time.Time         `json:"created_at"`           // When the file was created
	Tensors        []TensorMeta      `json:"tensors"`              // Tensor metadata
	Metadata       map[string]string `json:"metadata"`             // Custom metadata
	CheckpointMeta *CheckpointMeta   `json:"checkpoint,omitempty"` // Checkpoint metadata (optional)
}

// CheckpointMeta contains training state information for checkpoints.
type CheckpointMeta struct {
	Epoch           int            `json:"epoch"`            // Training epoch number
	Step            int64          `json:"step"`             // Training step number
	Loss            float64        `json:"loss"`             // Loss value at checkpoint
	OptimizerType   string         `json:"optimizer_type"`   // Optimizer type ("SGD", "Adam", etc.)
	OptimizerConfig map[string]any `json:"optimizer_config"` // Optimizer hyperparameters
	TrainingMeta    map[string]any `json:"training_meta"`    // Additional training metadata
}

// TensorMeta describes a tensor in the .grad file.
type TensorMeta struct {
	Name   string `json:"name"`   // Tensor name (e.g., "0.weight")
	Shape  []int  `json:"shape"`  // Tensor shape
	Offset int64  `json:"offset"` // Offset in the data section (bytes from start of tensor data)
	Size   int64  `json:"size"`   // Size in bytes
}

// NumElements returns the number of elements implied by the shape.
func (m TensorMeta) NumElements() int {
	n := 1
	for _, d := range m.Shape {
		n *= d
	}
	return n
}

// Tensor is one named entry of a state dictionary.
type Tensor struct {
	Shape []int
	Data  []float64
}

// StateDict maps parameter names to their values.
type StateDict map[string]Tensor

// Names returns the tensor names in file order.
func (sd StateDict) Names() []string {
	names := make([]string, 0, len(sd))
	for name := range sd {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// NumElements returns the total number of values across all tensors.
func (sd StateDict) NumElements() int {
	n := 0
	for _, t := range sd {
		n += len(t.Data)
	}
	return n
}

// Validate checks that every tensor's data length matches its shape.
func (sd StateDict) Validate() error {
	for name, t := range sd {
		meta := TensorMeta{Shape: t.Shape}
		if meta.NumElements() != len(t.Data) {
			return errors.Wrapf(ErrShapeMismatch, "tensor %q: shape %v needs %d values, has %d",
				name, t.Shape, meta.NumElements(), len(t.Data))
		}
		if err := ValidateTensorName(name); err != nil {
			return err
		}
	}
	return nil
}

// encodeFloats serializes values as little-endian float64.
func encodeFloats(dst []byte, values []float64) []byte {
	for _, v := range values {
		dst = binary.LittleEndian.AppendUint64(dst, math.Float64bits(v))
	}
	return dst
}

// decodeFloats deserializes little-endian float64 values.
func decodeFloats(data []byte) []float64 {
	values := make([]float64, len(data)/bytesPerElement)
	for i := range values {
		values[i] = math.Float64frombits(binary.LittleEndian.Uint64(data[i*bytesPerElement:]))
	}
	return values
}

// ComputeChecksum computes the SHA-256 checksum of the data section.
func ComputeChecksum(data []byte) [ChecksumSize]byte {
	return sha256.Sum256(data)
}

// ValidateChecksum compares computed checksum against stored checksum.
// Returns ErrChecksumMismatch if they don't match.
func ValidateChecksum(computed, stored [ChecksumSize]byte) error {
	if computed != stored {
		return ErrChecksumMismatch
	}
	return nil
}

// alignedDataOffset returns where the data section starts for a JSON header of headerSize bytes.
func alignedDataOffset(headerSize int64) int64 {
	pos := int64(FixedHeaderSize) + headerSize
	return pos + (HeaderAlignment-pos%HeaderAlignment)%HeaderAlignment
}
