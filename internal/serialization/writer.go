package serialization

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"io"
	"os"
	"slices"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// Writer writes state dictionaries in .grad format.
type Writer struct {
	file   *os.File
	closed bool
}

// NewWriter creates a new .grad file writer.
func NewWriter(path string) (*Writer, error) {
	//nolint:gosec // G304: File path comes from user input, which is expected for model saving
	file, err := os.Create(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to create %s", path)
	}
	return &Writer{file: file}, nil
}

// WriteStateDict writes a state dictionary with a freshly built header.
func (w *Writer) WriteStateDict(sd StateDict, modelType string, metadata map[string]string) error {
	return w.WriteStateDictWithHeader(sd, Header{
		ModelType: modelType,
		Metadata:  metadata,
	})
}

// WriteStateDictWithHeader writes a state dictionary with a caller-provided header.
//
// This allows setting CheckpointMeta and other custom header fields. Tensor entries,
// format version, run id and creation time are filled in by the writer when unset.
func (w *Writer) WriteStateDictWithHeader(sd StateDict, header Header) error {
	if w.closed {
		return ErrClosed
	}
	n, err := WriteTo(w.file, sd, header)
	if err != nil {
		return err
	}
	klog.V(1).Infof("wrote %d tensors (%d bytes) to %s", len(sd), n, w.file.Name())
	return nil
}

// Close closes the writer.
func (w *Writer) Close() error {
	if w.closed {
		return nil
	}
	w.closed = true
	if err := w.file.Close(); err != nil {
		return errors.Wrap(err, "failed to close file")
	}
	return nil
}

// WriteTo encodes a state dictionary into out and returns the number of bytes written.
func WriteTo(out io.Writer, sd StateDict, header Header) (int64, error) {
	if err := sd.Validate(); err != nil {
		return 0, err
	}

	header.FormatVersion = FormatVersion
	if header.RunID == "" {
		header.RunID = uuid.NewString()
	}
	if header.CreatedAt.IsZero() {
		header.CreatedAt = time.Now().UTC()
	}
	if header.Metadata == nil {
		header.Metadata = make(map[string]string)
	}

	// Tensor data, in name order.
	names := sd.Names()
	header.Tensors = make([]TensorMeta, 0, len(names))
	data := make([]byte, 0, sd.NumElements()*bytesPerElement)
	for _, name := range names {
		t := sd[name]
		header.Tensors = append(header.Tensors, TensorMeta{
			Name:   name,
			Shape:  slices.Clone(t.Shape),
			Offset: int64(len(data)),
			Size:   int64(len(t.Data) * bytesPerElement),
		})
		data = encodeFloats(data, t.Data)
	}

	headerJSON, err := json.Marshal(header)
	if err != nil {
		return 0, errors.Wrap(err, "failed to marshal header")
	}
	if len(headerJSON) > MaxHeaderSize {
		return 0, errors.Wrapf(ErrHeaderTooLarge, "%d bytes", len(headerJSON))
	}

	flags := uint32(0)
	if len(header.Metadata) > 0 {
		flags |= FlagHasMetadata
	}
	if header.CheckpointMeta != nil {
		flags |= FlagHasCheckpoint
	}

	// Fixed 64-byte header.
	var fixed [FixedHeaderSize]byte
	copy(fixed[0:4], MagicBytes)
	binary.LittleEndian.PutUint32(fixed[4:8], FormatVersion)
	binary.LittleEndian.PutUint32(fixed[8:12], flags)
	binary.LittleEndian.PutUint64(fixed[16:24], uint64(len(headerJSON)))
	binary.LittleEndian.PutUint64(fixed[24:32], uint64(len(data)))
	checksum := ComputeChecksum(data)
	copy(fixed[ChecksumOffset:ChecksumOffset+ChecksumSize], checksum[:])

	padding := alignedDataOffset(int64(len(headerJSON))) - FixedHeaderSize - int64(len(headerJSON))

	var buf bytes.Buffer
	buf.Grow(FixedHeaderSize + len(headerJSON) + int(padding) + len(data))
	buf.Write(fixed[:])
	buf.Write(headerJSON)
	buf.Write(make([]byte, padding))
	buf.Write(data)

	n, err := buf.WriteTo(out)
	if err != nil {
		return n, errors.Wrap(err, "failed to write state dict")
	}
	return n, nil
}
