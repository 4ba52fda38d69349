package main

import (
	"flag"
	"fmt"
	"io"
	"math"
	"math/rand"
	"time"

	"github.com/born-ml/grad/internal/nn"
	"github.com/born-ml/grad/internal/optim"
	"github.com/born-ml/grad/internal/tensor"
	"github.com/dustin/go-humanize"
	"github.com/gomlx/exceptions"
	"github.com/janpfeifer/must"
	"github.com/pkg/errors"
	"github.com/schollz/progressbar/v3"
	"k8s.io/klog/v2"
)

// trainConfig holds the flags of the train command.
type trainConfig struct {
	task      string
	epochs    int
	lr        float64
	optimizer string
	schedule  string
	hidden    int
	seed      int64
	out       string
	quiet     bool
}

func parseTrainFlags(args []string, output io.Writer) (trainConfig, error) {
	var cfg trainConfig
	fs := flag.NewFlagSet("train", flag.ContinueOnError)
	fs.SetOutput(output)
	fs.StringVar(&cfg.task, "task", "xor", "Task to learn: xor or sine")
	fs.IntVar(&cfg.epochs, "epochs", 2000, "Number of full-batch epochs")
	fs.Float64Var(&cfg.lr, "lr", 0.05, "Initial learning rate")
	fs.StringVar(&cfg.optimizer, "optimizer", "adam", "Optimizer: sgd, adam, adamw or rmsprop")
	fs.StringVar(&cfg.schedule, "schedule", "none", "Learning rate schedule: none, cosine, step or exponential")
	fs.IntVar(&cfg.hidden, "hidden", 8, "Width of the hidden layer")
	fs.Int64Var(&cfg.seed, "seed", 42, "Random seed for weight initialization")
	fs.StringVar(&cfg.out, "out", "", "If set, write a checkpoint to this .grad file")
	fs.BoolVar(&cfg.quiet, "quiet", false, "Disable the progress bar")
	if err := fs.Parse(args); err != nil {
		return cfg, err
	}
	if fs.NArg() > 0 {
		return cfg, errors.Errorf("unexpected arguments %v", fs.Args())
	}
	if cfg.epochs <= 0 {
		return cfg, errors.Errorf("-epochs must be positive, got %d", cfg.epochs)
	}
	if cfg.hidden <= 0 {
		return cfg, errors.Errorf("-hidden must be positive, got %d", cfg.hidden)
	}
	if cfg.lr <= 0 {
		return cfg, errors.Errorf("-lr must be positive, got %g", cfg.lr)
	}
	return cfg, nil
}

// dataset is a full batch of constant inputs and targets.
type dataset struct {
	inputs  *tensor.Tensor
	targets *tensor.Tensor
}

const sinePoints = 32

func newDataset(task string) (*dataset, error) {
	var inputs, targets *tensor.Tensor
	switch task {
	case "xor":
		inputs = must.M1(tensor.FromFloats(tensor.Shape{4, 2}, []float64{0, 0, 0, 1, 1, 0, 1, 1}))
		targets = must.M1(tensor.FromFloats(tensor.Shape{4, 1}, []float64{0, 1, 1, 0}))
	case "sine":
		xs := make([]float64, sinePoints)
		ys := make([]float64, sinePoints)
		for i := range xs {
			xs[i] = -math.Pi + 2*math.Pi*float64(i)/float64(sinePoints-1)
			ys[i] = math.Sin(xs[i])
		}
		inputs = must.M1(tensor.FromFloats(tensor.Shape{sinePoints, 1}, xs))
		targets = must.M1(tensor.FromFloats(tensor.Shape{sinePoints, 1}, ys))
	default:
		return nil, errors.Errorf("unknown task %q, want xor or sine", task)
	}
	return &dataset{inputs: inputs.Detach(), targets: targets.Detach()}, nil
}

// newModel returns an MLP mapping the dataset inputs to its targets.
func newModel(task string, hidden int, rng *rand.Rand) *nn.Sequential {
	if task == "xor" {
		return nn.NewSequential(
			nn.NewLinear(2, hidden, rng),
			nn.NewTanh(),
			nn.NewLinear(hidden, 1, rng),
			nn.NewSigmoid(),
		)
	}
	return nn.NewSequential(
		nn.NewLinear(1, hidden, rng),
		nn.NewTanh(),
		nn.NewLinear(hidden, hidden, rng),
		nn.NewTanh(),
		nn.NewLinear(hidden, 1, rng),
	)
}

func newOptimizer(name string, params []*nn.Parameter, lr float64) (optim.Optimizer, error) {
	switch name {
	case "sgd":
		return optim.NewSGD(params, optim.SGDConfig{LR: lr, Momentum: 0.9}), nil
	case "adam":
		return optim.NewAdam(params, optim.AdamConfig{LR: lr}), nil
	case "adamw":
		return optim.NewAdamW(params, optim.AdamConfig{LR: lr}), nil
	case "rmsprop":
		return optim.NewRMSProp(params, optim.RMSPropConfig{LR: lr}), nil
	}
	return nil, errors.Errorf("unknown optimizer %q, want sgd, adam, adamw or rmsprop", name)
}

// newSchedule returns nil for a constant learning rate.
func newSchedule(name string, optimizer optim.Optimizer, epochs int) (*optim.Scheduler, error) {
	switch name {
	case "none":
		return nil, nil
	case "cosine":
		return optim.NewCosineAnnealingLR(optimizer, epochs, 0), nil
	case "step":
		return optim.NewStepLR(optimizer, max(epochs/4, 1), 0.5), nil
	case "exponential":
		return optim.NewExponentialLR(optimizer, math.Pow(0.01, 1/float64(epochs))), nil
	}
	return nil, errors.Errorf("unknown schedule %q, want none, cosine, step or exponential", name)
}

// trainResult summarizes a finished training run.
type trainResult struct {
	model     *nn.Sequential
	optimizer optim.Optimizer
	loss      float64
	elapsed   time.Duration
}

func train(cfg trainConfig, progress io.Writer) (result trainResult, err error) {
	data, err := newDataset(cfg.task)
	if err != nil {
		return result, err
	}
	rng := rand.New(rand.NewSource(cfg.seed))
	model := newModel(cfg.task, cfg.hidden, rng)
	optimizer, err := newOptimizer(cfg.optimizer, model.Parameters(), cfg.lr)
	if err != nil {
		return result, err
	}
	scheduler, err := newSchedule(cfg.schedule, optimizer, cfg.epochs)
	if err != nil {
		return result, err
	}
	criterion := nn.NewMSELoss(nn.ReductionMean)

	klog.V(1).Infof("training %s: %s parameters, optimizer=%s lr=%g schedule=%s",
		cfg.task, humanize.Comma(int64(nn.NumParameters(model))), optimizer.Name(), cfg.lr, cfg.schedule)

	bar := progressbar.NewOptions(cfg.epochs,
		progressbar.OptionSetWriter(progress),
		progressbar.OptionSetVisibility(!cfg.quiet),
		progressbar.OptionSetDescription(cfg.task),
		progressbar.OptionShowIts(),
		progressbar.OptionSetItsString("epochs"),
		progressbar.OptionSetTheme(progressbar.ThemeASCII),
		progressbar.OptionClearOnFinish(),
	)

	start := time.Now()
	err = exceptions.TryCatch[error](func() {
		for epoch := range cfg.epochs {
			optimizer.ZeroGrad()
			loss := criterion.Forward(model.Forward(data.inputs), data.targets)
			loss.Backward()
			optimizer.Step()
			if scheduler != nil {
				scheduler.Step()
			}
			result.loss = loss.Data()

			if epoch%100 == 0 || epoch == cfg.epochs-1 {
				bar.Describe(fmt.Sprintf("%s loss=%.5f", cfg.task, result.loss))
				klog.V(1).Infof("epoch %d: loss=%.6g lr=%.4g", epoch, result.loss, optimizer.GetLR())
			}
			_ = bar.Add(1)
		}
	})
	_ = bar.Finish()
	if err != nil {
		return result, errors.Wrap(err, "training failed")
	}

	result.model = model
	result.optimizer = optimizer
	result.elapsed = time.Since(start)
	return result, nil
}

func runTrain(args []string, stdout io.Writer) error {
	cfg, err := parseTrainFlags(args, stdout)
	if errors.Is(err, flag.ErrHelp) {
		return nil
	}
	if err != nil {
		return err
	}

	result, err := train(cfg, stdout)
	if err != nil {
		return err
	}
	fmt.Fprintf(stdout, "%s: final loss %.6f after %s epochs (%s)\n",
		cfg.task, result.loss, humanize.Comma(int64(cfg.epochs)), result.elapsed.Round(time.Millisecond))

	if cfg.out == "" {
		return nil
	}
	checkpoint := &nn.Checkpoint{
		Model:     result.model,
		Optimizer: result.optimizer,
		Epoch:     cfg.epochs - 1,
		Step:      int64(cfg.epochs),
		Loss:      result.loss,
		Metadata: map[string]any{
			"task":     cfg.task,
			"hidden":   cfg.hidden,
			"schedule": cfg.schedule,
			"seed":     cfg.seed,
		},
	}
	if err := checkpoint.Save(cfg.out); err != nil {
		return errors.Wrapf(err, "saving checkpoint %s", cfg.out)
	}
	fmt.Fprintf(stdout, "checkpoint written to %s\n", cfg.out)
	return nil
}
