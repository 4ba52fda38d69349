package nn

import (
	"strings"
	"time"

	"github.com/born-ml/grad/internal/serialization"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

const optimizerPrefix = "optimizer."

// OptimizerState represents an optimizer that can save/load its state.
//
// This interface is used by checkpoints to serialize optimizer state
// without creating import cycles. Optimizers from the optim package
// implement this interface.
type OptimizerState interface {
	// Name identifies the optimizer type ("SGD", "Adam", ...).
	Name() string

	// StateDict returns the optimizer state for serialization.
	StateDict() serialization.StateDict

	// LoadStateDict loads optimizer state from serialization.
	LoadStateDict(stateDict serialization.StateDict) error

	// GetLR returns the current learning rate.
	GetLR() float64
}

// Checkpoint represents a complete training state snapshot.
//
// A checkpoint includes:
//   - Model parameters (weights and biases)
//   - Optimizer state (momentum buffers, Adam moments, etc.)
//   - Training metadata (epoch, step, loss)
//   - Custom metadata
//
// Example:
//
//	checkpoint := &nn.Checkpoint{
//	    Model:     model,
//	    Optimizer: optimizer,
//	    Epoch:     10,
//	    Step:      5000,
//	    Loss:      0.123,
//	    Metadata:  map[string]any{"batch_size": 32},
//	}
//	err := checkpoint.Save("checkpoint_epoch_10.grad")
//
// To resume training:
//
//	checkpoint, err := nn.LoadCheckpoint("checkpoint.grad", model, optimizer)
//	startEpoch := checkpoint.Epoch + 1
type Checkpoint struct {
	Model     Module         // The neural network model
	Optimizer OptimizerState // The optimizer with its state (may be nil)
	Epoch     int            // Training epoch number
	Step      int64          // Training step number
	Loss      float64        // Loss value at this checkpoint
	Metadata  map[string]any // Additional training metadata
	CreatedAt time.Time      // When the checkpoint was created
}

// Save saves the checkpoint to a .grad file.
//
// Optimizer state entries are stored with an "optimizer." prefix next to the model
// parameters.
func (c *Checkpoint) Save(path string) (err error) {
	combined := c.Model.StateDict()
	meta := &serialization.CheckpointMeta{
		Epoch:        c.Epoch,
		Step:         c.Step,
		Loss:         c.Loss,
		TrainingMeta: c.Metadata,
	}
	if c.Optimizer != nil {
		for name, t := range c.Optimizer.StateDict() {
			combined[optimizerPrefix+name] = t
		}
		meta.OptimizerType = c.Optimizer.Name()
		meta.OptimizerConfig = optimizerConfig(c.Optimizer)
	}

	createdAt := c.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	writer, err := serialization.NewWriter(path)
	if err != nil {
		return errors.Wrap(err, "failed to create writer")
	}
	defer func() {
		if closeErr := writer.Close(); closeErr != nil && err == nil {
			err = closeErr
		}
	}()

	header := serialization.Header{
		ModelType:      moduleType(c.Model),
		CreatedAt:      createdAt,
		CheckpointMeta: meta,
	}
	if err := writer.WriteStateDictWithHeader(combined, header); err != nil {
		return errors.Wrap(err, "failed to write checkpoint")
	}
	klog.V(1).Infof("saved checkpoint %s: epoch=%d step=%d loss=%.6g", path, c.Epoch, c.Step, c.Loss)
	return nil
}

// LoadCheckpoint loads a checkpoint from a .grad file.
//
// The model and optimizer must be pre-constructed with the same architecture
// and configuration as when the checkpoint was saved. optimizer may be nil, in
// which case optimizer state in the file is ignored.
func LoadCheckpoint(path string, model Module, optimizer OptimizerState) (*Checkpoint, error) {
	reader, err := serialization.NewReader(path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create reader")
	}
	defer reader.Close()

	if !reader.IsCheckpoint() {
		return nil, errors.Wrapf(serialization.ErrNotCheckpoint, "%s", path)
	}
	header := reader.Header()

	stateDict, err := reader.ReadStateDict()
	if err != nil {
		return nil, errors.Wrap(err, "failed to read state dict")
	}

	modelStateDict := make(serialization.StateDict)
	optimizerStateDict := make(serialization.StateDict)
	for name, t := range stateDict {
		if rest, ok := strings.CutPrefix(name, optimizerPrefix); ok {
			optimizerStateDict[rest] = t
		} else {
			modelStateDict[name] = t
		}
	}

	if optimizer != nil {
		if meta := header.CheckpointMeta; meta.OptimizerType != "" && meta.OptimizerType != optimizer.Name() {
			return nil, errors.Errorf("checkpoint optimizer is %s, got %s", meta.OptimizerType, optimizer.Name())
		}
	}

	previous := model.StateDict()
	if err := model.LoadStateDict(modelStateDict); err != nil {
		return nil, errors.Wrap(err, "failed to load model state")
	}
	if optimizer != nil {
		if err := optimizer.LoadStateDict(optimizerStateDict); err != nil {
			err = errors.Wrap(err, "failed to load optimizer state")
			if restoreErr := model.LoadStateDict(previous); restoreErr != nil {
				return nil, errors.Wrapf(err, "restoring model state also failed: %v", restoreErr)
			}
			return nil, err
		}
	}

	return &Checkpoint{
		Model:     model,
		Optimizer: optimizer,
		Epoch:     header.CheckpointMeta.Epoch,
		Step:      header.CheckpointMeta.Step,
		Loss:      header.CheckpointMeta.Loss,
		Metadata:  header.CheckpointMeta.TrainingMeta,
		CreatedAt: header.CreatedAt,
	}, nil
}

// SaveCheckpoint is a convenience function to save a checkpoint.
func SaveCheckpoint(path string, model Module, optimizer OptimizerState, epoch int) error {
	checkpoint := &Checkpoint{
		Model:     model,
		Optimizer: optimizer,
		Epoch:     epoch,
	}
	return checkpoint.Save(path)
}

// Save writes the parameters of m to a .grad file.
func Save(path string, m Module, metadata map[string]string) (err error) {
	writer, err := serialization.NewWriter(path)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := writer.Close(); closeErr != nil && err == nil {
			err = closeErr
		}
	}()
	return writer.WriteStateDict(m.StateDict(), moduleType(m), metadata)
}

// Load reads a .grad file into the parameters of m and returns the file header.
func Load(path string, m Module) (serialization.Header, error) {
	reader, err := serialization.NewReader(path)
	if err != nil {
		return serialization.Header{}, err
	}
	defer reader.Close()

	stateDict, err := reader.ReadStateDict()
	if err != nil {
		return serialization.Header{}, err
	}
	if err := m.LoadStateDict(stateDict); err != nil {
		return serialization.Header{}, errors.Wrapf(err, "failed to load %s", path)
	}
	return reader.Header(), nil
}

// optimizerConfig extracts optimizer configuration.
func optimizerConfig(opt OptimizerState) map[string]any {
	config := map[string]any{"lr": opt.GetLR()}
	if c, ok := opt.(interface{ Config() map[string]any }); ok {
		for k, v := range c.Config() {
			config[k] = v
		}
	}
	return config
}
