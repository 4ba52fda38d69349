package optim

import (
	"math"
	"sort"

	"github.com/gomlx/exceptions"
	"k8s.io/klog/v2"
)

// LRSetter is the part of an optimizer a scheduler drives.
type LRSetter interface {
	GetLR() float64
	SetLR(lr float64)
}

// Scheduler adjusts an optimizer's learning rate once per epoch.
//
// Every schedule is a closed form of the epoch number, so StepTo can jump to any
// epoch (e.g. when resuming from a checkpoint).
//
// Example:
//
//	scheduler := optim.NewCosineAnnealingLR(optimizer, 100, 0)
//	for epoch := range 100 {
//	    train(epoch)
//	    scheduler.Step()
//	}
type Scheduler struct {
	name      string
	optimizer LRSetter
	baseLR    float64
	epoch     int
	lrAt      func(baseLR float64, epoch int) float64
}

func newScheduler(name string, optimizer LRSetter, lrAt func(baseLR float64, epoch int) float64) *Scheduler {
	s := &Scheduler{
		name:      name,
		optimizer: optimizer,
		baseLR:    optimizer.GetLR(),
		lrAt:      lrAt,
	}
	s.apply()
	return s
}

// Step advances one epoch and updates the optimizer's learning rate.
func (s *Scheduler) Step() {
	s.StepTo(s.epoch + 1)
}

// StepTo sets the epoch and updates the optimizer's learning rate.
func (s *Scheduler) StepTo(epoch int) {
	if epoch < 0 {
		exceptions.Panicf("%s: negative epoch %d", s.name, epoch)
	}
	s.epoch = epoch
	s.apply()
}

// LR returns the learning rate for the current epoch.
func (s *Scheduler) LR() float64 {
	return s.lrAt(s.baseLR, s.epoch)
}

// Epoch returns the current epoch.
func (s *Scheduler) Epoch() int {
	return s.epoch
}

// Name returns the schedule name, e.g. "StepLR".
func (s *Scheduler) Name() string {
	return s.name
}

func (s *Scheduler) apply() {
	lr := s.LR()
	s.optimizer.SetLR(lr)
	klog.V(2).Infof("%s: epoch %d, lr=%.6g", s.name, s.epoch, lr)
}

// NewConstantLR scales the learning rate by factor until totalIters epochs have passed.
func NewConstantLR(optimizer LRSetter, factor float64, totalIters int) *Scheduler {
	if factor < 0 || factor > 1 {
		exceptions.Panicf("optim.NewConstantLR: factor %g must be in [0, 1]", factor)
	}
	return newScheduler("ConstantLR", optimizer, func(base float64, epoch int) float64 {
		if epoch < totalIters {
			return base * factor
		}
		return base
	})
}

// NewStepLR decays the learning rate by gamma every stepSize epochs.
func NewStepLR(optimizer LRSetter, stepSize int, gamma float64) *Scheduler {
	if stepSize <= 0 {
		exceptions.Panicf("optim.NewStepLR: step size %d must be positive", stepSize)
	}
	return newScheduler("StepLR", optimizer, func(base float64, epoch int) float64 {
		return base * math.Pow(gamma, float64(epoch/stepSize))
	})
}

// NewMultiStepLR decays the learning rate by gamma at each milestone epoch.
func NewMultiStepLR(optimizer LRSetter, milestones []int, gamma float64) *Scheduler {
	sorted := append([]int(nil), milestones...)
	sort.Ints(sorted)
	return newScheduler("MultiStepLR", optimizer, func(base float64, epoch int) float64 {
		passed := sort.SearchInts(sorted, epoch+1)
		return base * math.Pow(gamma, float64(passed))
	})
}

// NewExponentialLR decays the learning rate by gamma every epoch.
func NewExponentialLR(optimizer LRSetter, gamma float64) *Scheduler {
	return newScheduler("ExponentialLR", optimizer, func(base float64, epoch int) float64 {
		return base * math.Pow(gamma, float64(epoch))
	})
}

// NewLinearLR moves the multiplicative factor linearly from startFactor to endFactor
// over totalIters epochs.
func NewLinearLR(optimizer LRSetter, startFactor, endFactor float64, totalIters int) *Scheduler {
	if totalIters <= 0 {
		exceptions.Panicf("optim.NewLinearLR: total iterations %d must be positive", totalIters)
	}
	return newScheduler("LinearLR", optimizer, func(base float64, epoch int) float64 {
		progress := float64(min(epoch, totalIters)) / float64(totalIters)
		return base * (startFactor + (endFactor-startFactor)*progress)
	})
}

// NewCosineAnnealingLR follows half a cosine from the base learning rate down to etaMin
// over tMax epochs:
//
//	lr = etaMin + (base - etaMin) * (1 + cos(π * epoch / tMax)) / 2
func NewCosineAnnealingLR(optimizer LRSetter, tMax int, etaMin float64) *Scheduler {
	if tMax <= 0 {
		exceptions.Panicf("optim.NewCosineAnnealingLR: tMax %d must be positive", tMax)
	}
	return newScheduler("CosineAnnealingLR", optimizer, func(base float64, epoch int) float64 {
		return etaMin + (base-etaMin)*(1+math.Cos(math.Pi*float64(epoch)/float64(tMax)))/2
	})
}

// NewPolynomialLR decays the learning rate to zero over totalIters epochs:
//
//	lr = base * (1 - min(epoch, totalIters) / totalIters) ^ power
func NewPolynomialLR(optimizer LRSetter, totalIters int, power float64) *Scheduler {
	if totalIters <= 0 {
		exceptions.Panicf("optim.NewPolynomialLR: total iterations %d must be positive", totalIters)
	}
	return newScheduler("PolynomialLR", optimizer, func(base float64, epoch int) float64 {
		return base * math.Pow(1-float64(min(epoch, totalIters))/float64(totalIters), power)
	})
}

// NewLambdaLR sets the learning rate to base * fn(epoch).
func NewLambdaLR(optimizer LRSetter, fn func(epoch int) float64) *Scheduler {
	return newScheduler("LambdaLR", optimizer, func(base float64, epoch int) float64 {
		return base * fn(epoch)
	})
}

// NewMultiplicativeLR multiplies the learning rate by fn(epoch) at every epoch after the
// first: lr = base * fn(1) * ... * fn(epoch).
func NewMultiplicativeLR(optimizer LRSetter, fn func(epoch int) float64) *Scheduler {
	return newScheduler("MultiplicativeLR", optimizer, func(base float64, epoch int) float64 {
		lr := base
		for e := 1; e <= epoch; e++ {
			lr *= fn(e)
		}
		return lr
	})
}
