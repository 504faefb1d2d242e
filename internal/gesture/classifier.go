package gesture

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"gonum.org/v1/gonum/floats"

	"github.com/ayusman/handsign/internal/nn"
)

// Params are the per-run training hyperparameters.
type Params struct {
	BatchSize    int
	Epochs       int
	LearningRate float64
}

// DefaultParams returns batch 32, 50 epochs and the default Adam rate.
func DefaultParams() Params {
	return Params{BatchSize: 32, Epochs: 50, LearningRate: nn.LearningRate}
}

// Config configures a Classifier.
type Config struct {
	// Classes is the label width. Zero takes the width of the first example.
	Classes int
	// Hidden lists the hidden layer sizes.
	Hidden  []int
	Seed    int64
	Workers int
	Logger  *slog.Logger
}

// DefaultConfig returns four hidden layers of 50 units.
func DefaultConfig() Config {
	return Config{
		Hidden:  []int{50, 50, 50, 50},
		Seed:    1,
		Workers: min(runtime.GOMAXPROCS(0), 4),
	}
}

// Report describes a finished training run.
type Report struct {
	Examples int           `json:"examples"`
	Epochs   int           `json:"epochs"`
	Loss     float64       `json:"loss"`
	Accuracy float64       `json:"accuracy"`
	Duration time.Duration `json:"duration"`
}

// model pairs a network with the stats it was trained against. The pair is
// only ever replaced as a whole.
type model struct {
	net    *nn.Network
	stats  Stats
	report Report
}

// Classifier trains and serves the gesture model.
type Classifier struct {
	config  Config
	logger  *slog.Logger
	trainMu sync.Mutex
	current atomic.Pointer[model]
}

// NewClassifier creates a Classifier with no model.
func NewClassifier(config Config) *Classifier {
	if len(config.Hidden) == 0 {
		config.Hidden = DefaultConfig().Hidden
	}
	if config.Workers <= 0 {
		config.Workers = 1
	}
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Classifier{config: config, logger: logger}
}

// Trained reports whether a model is available to Estimate.
func (c *Classifier) Trained() bool {
	return c.current.Load() != nil
}

// LastReport returns the report of the model currently served.
func (c *Classifier) LastReport() (Report, bool) {
	m := c.current.Load()
	if m == nil {
		return Report{}, false
	}
	return m.report, true
}

// Train computes fresh stats from examples, fits a new network and swaps
// it in together with its stats. On failure the previous model is kept.
func (c *Classifier) Train(ctx context.Context, examples []Example, params Params) (Report, error) {
	c.trainMu.Lock()
	defer c.trainMu.Unlock()

	start := time.Now()
	inputs, labels, err := c.matrices(examples)
	if err != nil {
		return Report{}, err
	}
	if params.BatchSize <= 0 || params.Epochs <= 0 {
		return Report{}, fmt.Errorf("%w: batch size %d epochs %d", ErrTraining, params.BatchSize, params.Epochs)
	}

	stats := ComputeStats(inputs, labels)
	samples := make([]nn.Sample, len(examples))
	for i := range examples {
		samples[i] = nn.Sample{
			Input:  stats.NormalizeInput(inputs[i]),
			Target: stats.NormalizeLabel(labels[i]),
		}
	}

	net, err := nn.NewNetwork(nn.Topology{
		Inputs:  FeatureLen,
		Hidden:  c.config.Hidden,
		Outputs: len(labels[0]),
		Softmax: true,
	}, rand.New(rand.NewSource(c.config.Seed)))
	if err != nil {
		return Report{}, fmt.Errorf("%w: %w", ErrTraining, err)
	}

	c.logger.Info("training started", "examples", len(examples), "batch_size", params.BatchSize, "epochs", params.Epochs)
	fit, err := net.Fit(ctx, samples, nn.FitConfig{
		Epochs:       params.Epochs,
		BatchSize:    params.BatchSize,
		LearningRate: params.LearningRate,
		Workers:      c.config.Workers,
		Seed:         c.config.Seed,
		OnEpoch: func(epoch int, loss float64) {
			c.logger.Debug("epoch finished", "epoch", epoch, "loss", loss)
		},
	})
	if err != nil {
		return Report{}, fmt.Errorf("%w: %w", ErrTraining, err)
	}

	m := &model{net: net, stats: stats}
	m.report = Report{
		Examples: len(examples),
		Epochs:   fit.Epochs,
		Loss:     fit.Loss,
		Accuracy: accuracy(m, inputs, labels),
		Duration: time.Since(start),
	}
	c.current.Store(m)

	c.logger.Info("training finished", "loss", m.report.Loss, "accuracy", m.report.Accuracy, "duration", m.report.Duration)
	return m.report, nil
}

// matrices validates shapes and returns the raw feature and label rows.
func (c *Classifier) matrices(examples []Example) ([][]float64, [][]float64, error) {
	if len(examples) == 0 {
		return nil, nil, fmt.Errorf("%w: dataset is empty", ErrTraining)
	}
	width := c.config.Classes
	if width <= 0 {
		width = len(examples[0].Label)
	}
	if width == 0 {
		return nil, nil, fmt.Errorf("%w: labels are empty", ErrTraining)
	}

	inputs := make([][]float64, len(examples))
	labels := make([][]float64, len(examples))
	for i, e := range examples {
		if len(e.Features) != FeatureLen {
			return nil, nil, fmt.Errorf("%w: example %d has %d features, want %d", ErrTraining, i, len(e.Features), FeatureLen)
		}
		if len(e.Label) != width {
			return nil, nil, fmt.Errorf("%w: example %d has label width %d, want %d", ErrTraining, i, len(e.Label), width)
		}
		inputs[i] = e.Features
		labels[i] = e.Label
	}
	return inputs, labels, nil
}

// Estimate scores one feature vector with the current model. It returns
// nil when no model has been trained yet.
func (c *Classifier) Estimate(features []float64) ([]float64, error) {
	m := c.current.Load()
	if m == nil {
		return nil, nil
	}
	return m.estimate(features)
}

func (m *model) estimate(features []float64) ([]float64, error) {
	if len(features) != FeatureLen {
		return nil, fmt.Errorf("%w: got %d features, want %d", nn.ErrShape, len(features), FeatureLen)
	}
	out, err := m.net.Predict(m.stats.NormalizeInput(features))
	if err != nil {
		return nil, err
	}
	return m.stats.DenormalizeLabel(out), nil
}

// accuracy is the share of rows whose highest score matches the label's.
func accuracy(m *model, inputs, labels [][]float64) float64 {
	var hits int
	for i := range inputs {
		scores, err := m.estimate(inputs[i])
		if err != nil {
			continue
		}
		if floats.MaxIdx(scores) == floats.MaxIdx(labels[i]) {
			hits++
		}
	}
	return float64(hits) / float64(len(inputs))
}
