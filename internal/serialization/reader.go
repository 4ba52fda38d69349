package serialization

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"slices"

	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// ValidationLevel selects how much of the header is checked when a file is opened.
type ValidationLevel int

const (
	// ValidationStrict checks names, duplicates and tensor regions.
	ValidationStrict ValidationLevel = iota
	// ValidationNone trusts the header.
	ValidationNone
)

// ReaderOptions configures the behavior of Reader.
type ReaderOptions struct {
	SkipChecksumValidation bool            // Skip checksum validation (faster but less safe)
	ValidationLevel        ValidationLevel // Validation strictness level
}

// Reader reads state dictionaries from .grad files.
//
// The whole file is loaded on open.
type Reader struct {
	header Header
	flags  uint32
	data   []byte
	index  map[string]int
	closed bool
}

// NewReader opens a .grad file with strict validation.
func NewReader(path string) (*Reader, error) {
	return NewReaderWithOptions(path, ReaderOptions{ValidationLevel: ValidationStrict})
}

// NewReaderWithOptions opens a .grad file with custom options.
func NewReaderWithOptions(path string, opts ReaderOptions) (*Reader, error) {
	//nolint:gosec // G304: File path comes from user input, which is expected for model loading
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read %s", path)
	}
	r, err := decode(raw, opts)
	if err != nil {
		return nil, errors.WithMessagef(err, "failed to open %s", path)
	}
	klog.V(1).Infof("opened %s: %d tensors, run %s", path, len(r.header.Tensors), r.header.RunID)
	return r, nil
}

// ReadFrom decodes a state dictionary and its header from a stream.
func ReadFrom(in io.Reader) (StateDict, Header, error) {
	raw, err := io.ReadAll(in)
	if err != nil {
		return nil, Header{}, errors.Wrap(err, "failed to read stream")
	}
	r, err := decode(raw, ReaderOptions{ValidationLevel: ValidationStrict})
	if err != nil {
		return nil, Header{}, err
	}
	sd, err := r.ReadStateDict()
	return sd, r.header, err
}

func decode(raw []byte, opts ReaderOptions) (*Reader, error) {
	if len(raw) < FixedHeaderSize {
		return nil, errors.Errorf("file too small: %d bytes", len(raw))
	}
	if !bytes.Equal(raw[0:4], []byte(MagicBytes)) {
		return nil, errors.Wrapf(ErrInvalidMagic, "expected %q, got %q", MagicBytes, raw[0:4])
	}
	if version := binary.LittleEndian.Uint32(raw[4:8]); version != FormatVersion {
		return nil, errors.Wrapf(ErrUnsupportedVersion, "version %d", version)
	}
	flags := binary.LittleEndian.Uint32(raw[8:12])
	headerSize := binary.LittleEndian.Uint64(raw[16:24])
	dataSize := binary.LittleEndian.Uint64(raw[24:32])
	if headerSize > MaxHeaderSize {
		return nil, errors.Wrapf(ErrHeaderTooLarge, "%d bytes", headerSize)
	}

	dataOffset := uint64(alignedDataOffset(int64(headerSize)))
	if dataOffset > uint64(len(raw)) || dataSize > uint64(len(raw))-dataOffset {
		return nil, errors.Errorf("file truncated: header %d bytes and data %d bytes do not fit in %d bytes",
			headerSize, dataSize, len(raw))
	}

	r := &Reader{
		flags: flags,
		data:  raw[dataOffset : dataOffset+dataSize],
	}
	if err := json.Unmarshal(raw[FixedHeaderSize:FixedHeaderSize+headerSize], &r.header); err != nil {
		return nil, errors.Wrap(err, "failed to parse header")
	}

	if !opts.SkipChecksumValidation {
		var stored [ChecksumSize]byte
		copy(stored[:], raw[ChecksumOffset:ChecksumOffset+ChecksumSize])
		if err := ValidateChecksum(ComputeChecksum(r.data), stored); err != nil {
			return nil, err
		}
	}
	if opts.ValidationLevel == ValidationStrict {
		if err := ValidateHeader(&r.header, int64(dataSize)); err != nil {
			return nil, errors.Wrap(err, "invalid header")
		}
	}

	r.index = make(map[string]int, len(r.header.Tensors))
	for i, t := range r.header.Tensors {
		r.index[t.Name] = i
	}
	return r, nil
}

// Header returns the file header.
func (r *Reader) Header() Header {
	return r.header
}

// Metadata returns the custom metadata.
func (r *Reader) Metadata() map[string]string {
	return r.header.Metadata
}

// IsCheckpoint reports whether the file carries training state.
func (r *Reader) IsCheckpoint() bool {
	return r.flags&FlagHasCheckpoint != 0 && r.header.CheckpointMeta != nil
}

// TensorNames returns the names of all tensors, in file order.
func (r *Reader) TensorNames() []string {
	names := make([]string, len(r.header.Tensors))
	for i, t := range r.header.Tensors {
		names[i] = t.Name
	}
	return names
}

// TensorInfo returns metadata for a specific tensor.
func (r *Reader) TensorInfo(name string) (*TensorMeta, error) {
	i, ok := r.index[name]
	if !ok {
		return nil, errors.Wrapf(ErrTensorNotFound, "%q", name)
	}
	meta := r.header.Tensors[i]
	return &meta, nil
}

// ReadTensor decodes one tensor.
func (r *Reader) ReadTensor(name string) (Tensor, error) {
	if r.closed {
		return Tensor{}, ErrClosed
	}
	meta, err := r.TensorInfo(name)
	if err != nil {
		return Tensor{}, err
	}
	if meta.Offset < 0 || meta.Size < 0 || meta.Offset > int64(len(r.data)) || meta.Size > int64(len(r.data))-meta.Offset {
		return Tensor{}, &ValidationError{Type: "out_of_bounds", Tensor: name, Details: "tensor region outside data section"}
	}
	if want := int64(meta.NumElements()) * bytesPerElement; meta.Size != want {
		return Tensor{}, &ValidationError{
			Type:    "size_mismatch",
			Tensor:  name,
			Details: fmt.Sprintf("shape %v needs %d bytes, size is %d", meta.Shape, want, meta.Size),
		}
	}
	return Tensor{
		Shape: slices.Clone(meta.Shape),
		Data:  decodeFloats(r.data[meta.Offset : meta.Offset+meta.Size]),
	}, nil
}

// ReadStateDict decodes every tensor in the file.
func (r *Reader) ReadStateDict() (StateDict, error) {
	sd := make(StateDict, len(r.header.Tensors))
	for _, meta := range r.header.Tensors {
		t, err := r.ReadTensor(meta.Name)
		if err != nil {
			return nil, err
		}
		sd[meta.Name] = t
	}
	return sd, nil
}

// Close releases the file contents.
func (r *Reader) Close() error {
	r.closed = true
	r.data = nil
	return nil
}
