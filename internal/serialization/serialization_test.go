package serialization

import (
	"bytes"
	"encoding/binary"
	"encoding/hex"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleStateDict() StateDict {
	return StateDict{
		"0.weight": {Shape: []int{2, 3}, Data: []float64{1, -2, 3.5, 0, 1e-300, -7}},
		"0.bias":   {Shape: []int{2}, Data: []float64{0.25, -0.125}},
		"scale":    {Shape: []int{}, Data: []float64{42}},
	}
}

func TestComputeChecksum(t *testing.T) {
	sum := ComputeChecksum([]byte("abc"))
	assert.Equal(t, "ba7816bf8f01cfea414140de5dae2223b00361a396177a9cb410ff61f20015ad", hex.EncodeToString(sum[:]))

	empty := ComputeChecksum(nil)
	assert.Equal(t, "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855", hex.EncodeToString(empty[:]))

	assert.NoError(t, ValidateChecksum(sum, sum))
	assert.ErrorIs(t, ValidateChecksum(sum, empty), ErrChecksumMismatch)
}

func TestRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "model.grad")
	sd := sampleStateDict()

	w, err := NewWriter(path)
	require.NoError(t, err)
	require.NoError(t, w.WriteStateDict(sd, "Sequential", map[string]string{"note": "test"}))
	require.NoError(t, w.Close())
	require.NoError(t, w.Close())
	assert.ErrorIs(t, w.WriteStateDict(sd, "Sequential", nil), ErrClosed)

	r, err := NewReader(path)
	require.NoError(t, err)
	defer r.Close()

	h := r.Header()
	assert.Equal(t, FormatVersion, h.FormatVersion)
	assert.Equal(t, "Sequential", h.ModelType)
	assert.Equal(t, "test", r.Metadata()["note"])
	_, err = uuid.Parse(h.RunID)
	assert.NoError(t, err)
	assert.False(t, r.IsCheckpoint())
	assert.Equal(t, []string{"0.bias", "0.weight", "scale"}, r.TensorNames())

	info, err := r.TensorInfo("0.weight")
	require.NoError(t, err)
	assert.Equal(t, int64(16), info.Offset)
	assert.Equal(t, int64(48), info.Size)

	got, err := r.ReadStateDict()
	require.NoError(t, err)
	assert.Equal(t, sd, got)

	_, err = r.ReadTensor("missing")
	assert.ErrorIs(t, err, ErrTensorNotFound)
}

func TestDataSectionAligned(t *testing.T) {
	var buf bytes.Buffer
	n, err := WriteTo(&buf, sampleStateDict(), Header{ModelType: "Linear"})
	require.NoError(t, err)
	assert.Equal(t, int64(buf.Len()), n)
	// 9 float64 values at the end, starting on a 64-byte boundary.
	assert.Equal(t, 0, (buf.Len()-9*8)%HeaderAlignment)
	assert.Equal(t, MagicBytes, buf.String()[:4])
}

func TestDeterministicPayload(t *testing.T) {
	h := Header{RunID: "fixed"}
	var a, b bytes.Buffer
	_, err := WriteTo(&a, sampleStateDict(), h)
	require.NoError(t, err)
	_, err = WriteTo(&b, sampleStateDict(), h)
	require.NoError(t, err)
	// The checksum covers only the data section, so it is stable across writes.
	assert.Equal(t, a.Bytes()[ChecksumOffset:ChecksumOffset+ChecksumSize], b.Bytes()[ChecksumOffset:ChecksumOffset+ChecksumSize])
}

func TestCheckpointHeader(t *testing.T) {
	var buf bytes.Buffer
	_, err := WriteTo(&buf, sampleStateDict(), Header{
		ModelType: "Sequential",
		CheckpointMeta: &CheckpointMeta{
			Epoch:           3,
			Step:            120,
			Loss:            0.5,
			OptimizerType:   "Adam",
			OptimizerConfig: map[string]any{"lr": 0.001},
		},
	})
	require.NoError(t, err)

	sd, h, err := ReadFrom(&buf)
	require.NoError(t, err)
	assert.Len(t, sd, 3)
	require.NotNil(t, h.CheckpointMeta)
	assert.Equal(t, 3, h.CheckpointMeta.Epoch)
	assert.Equal(t, int64(120), h.CheckpointMeta.Step)
	assert.Equal(t, "Adam", h.CheckpointMeta.OptimizerType)
	assert.InDelta(t, 0.001, h.CheckpointMeta.OptimizerConfig["lr"], 1e-12)
}

func TestCorruptFiles(t *testing.T) {
	var buf bytes.Buffer
	_, err := WriteTo(&buf, sampleStateDict(), Header{})
	require.NoError(t, err)
	good := buf.Bytes()
	dir := t.TempDir()

	write := func(name string, data []byte) string {
		path := filepath.Join(dir, name)
		require.NoError(t, os.WriteFile(path, data, 0o600))
		return path
	}

	t.Run("flipped data byte", func(t *testing.T) {
		bad := bytes.Clone(good)
		bad[len(bad)-1] ^= 0xFF
		path := write("flipped.grad", bad)

		_, err := NewReader(path)
		assert.True(t, errors.Is(err, ErrChecksumMismatch), "got %v", err)

		r, err := NewReaderWithOptions(path, ReaderOptions{SkipChecksumValidation: true})
		require.NoError(t, err)
		_, err = r.ReadStateDict()
		assert.NoError(t, err)
	})

	t.Run("bad magic", func(t *testing.T) {
		bad := bytes.Clone(good)
		copy(bad, "NOPE")
		_, err := NewReader(write("magic.grad", bad))
		assert.ErrorIs(t, err, ErrInvalidMagic)
	})

	t.Run("truncated", func(t *testing.T) {
		_, err := NewReader(write("short.grad", good[:len(good)-8]))
		assert.Error(t, err)
	})

	t.Run("data size wraps around", func(t *testing.T) {
		bad := bytes.Clone(good)
		binary.LittleEndian.PutUint64(bad[24:32], math.MaxUint64-8)
		path := write("wrap.grad", bad)
		assert.NotPanics(t, func() {
			_, err := NewReaderWithOptions(path, ReaderOptions{SkipChecksumValidation: true, ValidationLevel: ValidationNone})
			assert.Error(t, err)
		})
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := NewReader(filepath.Join(dir, "absent.grad"))
		assert.Error(t, err)
	})
}

func TestReadTensorBounds(t *testing.T) {
	newReader := func(meta TensorMeta) *Reader {
		return &Reader{
			header: Header{Tensors: []TensorMeta{meta}},
			data:   make([]byte, 16),
			index:  map[string]int{meta.Name: 0},
		}
	}

	for _, meta := range []TensorMeta{
		{Name: "huge", Shape: []int{1}, Offset: 8, Size: math.MaxInt64},
		{Name: "past end", Shape: []int{1}, Offset: 24, Size: 8},
		{Name: "negative size", Shape: []int{1}, Offset: 0, Size: -8},
		{Name: "size disagrees", Shape: []int{2}, Offset: 0, Size: 8},
	} {
		t.Run(meta.Name, func(t *testing.T) {
			var verr *ValidationError
			assert.NotPanics(t, func() {
				_, err := newReader(meta).ReadTensor(meta.Name)
				assert.ErrorAs(t, err, &verr)
			})
		})
	}

	got, err := newReader(TensorMeta{Name: "w", Shape: []int{2}, Offset: 0, Size: 16}).ReadTensor("w")
	require.NoError(t, err)
	assert.Equal(t, []float64{0, 0}, got.Data)
}

func TestWriteRejectsInvalidStateDict(t *testing.T) {
	var buf bytes.Buffer
	_, err := WriteTo(&buf, StateDict{"w": {Shape: []int{3}, Data: []float64{1, 2}}}, Header{})
	assert.ErrorIs(t, err, ErrShapeMismatch)

	_, err = WriteTo(&buf, StateDict{"../w": {Shape: []int{1}, Data: []float64{1}}}, Header{})
	var verr *ValidationError
	assert.ErrorAs(t, err, &verr)
	assert.Zero(t, buf.Len())
}
