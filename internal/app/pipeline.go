package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"gocv.io/x/gocv"

	"github.com/ayusman/handsign/internal/capture"
	"github.com/ayusman/handsign/internal/dataset"
	"github.com/ayusman/handsign/internal/detector"
	"github.com/ayusman/handsign/internal/gesture"
	"github.com/ayusman/handsign/internal/metrics"
	"github.com/ayusman/handsign/internal/mode"
	"github.com/ayusman/handsign/internal/store"
)

// DefaultSampleInterval is the sampling period when none is configured.
const DefaultSampleInterval = 100 * time.Millisecond

var (
	// ErrNoCamera is returned by Run when the pipeline has no video source.
	ErrNoCamera = errors.New("no camera configured")
	// ErrRunning is returned by Run when the loop is already running.
	ErrRunning = errors.New("sampling loop already running")
)

// Settings persists small user preferences such as the current label.
type Settings interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
}

// PipelineConfig configures a Pipeline.
type PipelineConfig struct {
	Camera   capture.Camera
	Detector detector.Detector
	Storage  dataset.Storage
	Settings Settings

	// Classes names the output classes; the label width is len(Classes).
	Classes    []string
	Threshold  float64
	Interval   time.Duration
	Params     gesture.Params
	Classifier gesture.Config

	Metrics *metrics.Manager
	Logger  *slog.Logger

	// NewSession returns the storage key of a new collection run.
	NewSession func() string
	// OnFrame, if set, sees every frame read by a tick before detection.
	// The frame is closed after the hook returns.
	OnFrame func(frame *gocv.Mat)
}

// Pipeline owns the mode machine, dataset and classifier and drives the
// sampling loop over them.
type Pipeline struct {
	config     PipelineConfig
	logger     *slog.Logger
	metrics    *metrics.Manager
	machine    *mode.Machine
	dataset    *dataset.Store
	classifier *gesture.Classifier

	mu          sync.RWMutex
	label       gesture.Label
	session     string
	decision    gesture.Decision
	scores      []float64
	handVisible bool
	frameWidth  int
	frameHeight int
	lastErr     string

	inFlight atomic.Bool
	running  atomic.Bool
	skipped  atomic.Uint64

	ctx      context.Context
	cancel   context.CancelFunc
	lifeMu   sync.Mutex
	closed   bool
	ticks    sync.WaitGroup
	training sync.WaitGroup
	once     sync.Once

	subMu   sync.Mutex
	subs    map[int]chan Status
	nextSub int
}

// NewPipeline creates a pipeline in the Loading mode. Init moves it to Idle.
func NewPipeline(config PipelineConfig) (*Pipeline, error) {
	if len(config.Classes) < 2 {
		return nil, fmt.Errorf("need at least 2 classes, got %d", len(config.Classes))
	}
	if config.Threshold <= 0 {
		config.Threshold = gesture.DefaultThreshold
	}
	if config.Interval <= 0 {
		config.Interval = DefaultSampleInterval
	}
	if config.Params.BatchSize <= 0 || config.Params.Epochs <= 0 {
		config.Params = gesture.DefaultParams()
	}
	if config.NewSession == nil {
		config.NewSession = uuid.NewString
	}
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}

	machine := mode.NewMachine()
	config.Classifier.Classes = len(config.Classes)
	if config.Classifier.Logger == nil {
		config.Classifier.Logger = logger
	}

	ctx, cancel := context.WithCancel(context.Background())
	p := &Pipeline{
		config:  config,
		logger:  logger,
		metrics: config.Metrics,
		machine: machine,
		dataset: dataset.New(dataset.Config{
			Machine: machine,
			Storage: config.Storage,
			Logger:  logger,
		}),
		classifier: gesture.NewClassifier(config.Classifier),
		label:      gesture.OneHot(0, len(config.Classes)),
		decision:   gesture.Decision{Class: -1},
		ctx:        ctx,
		cancel:     cancel,
		subs:       make(map[int]chan Status),
	}

	machine.OnChange(p.modeChanged)
	p.metrics.SetMode(mode.Loading.String(), modeNames)
	return p, nil
}

var modeNames = []string{
	mode.Loading.String(),
	mode.Idle.String(),
	mode.Collecting.String(),
	mode.Training.String(),
}

func (p *Pipeline) modeChanged(from, to mode.Mode) {
	p.logger.Info("mode changed", "from", from, "to", to)
	p.metrics.SetMode(to.String(), modeNames)
	p.publish()
}

// Machine returns the mode machine.
func (p *Pipeline) Machine() *mode.Machine { return p.machine }

// Dataset returns the dataset store.
func (p *Pipeline) Dataset() *dataset.Store { return p.dataset }

// Classifier returns the classifier.
func (p *Pipeline) Classifier() *gesture.Classifier { return p.classifier }

// Classes returns the class names.
func (p *Pipeline) Classes() []string { return append([]string(nil), p.config.Classes...) }

// Init warms up the detector, restores the saved label and moves the
// pipeline from Loading to Idle.
func (p *Pipeline) Init(ctx context.Context) error {
	if w, ok := p.config.Detector.(detector.Warmer); ok {
		if err := w.Warm(ctx); err != nil {
			return fmt.Errorf("warm detector: %w", err)
		}
	}

	if p.config.Settings != nil {
		p.restoreLabel(ctx)
	}

	if _, err := p.machine.Fire(mode.Ready); err != nil {
		return err
	}
	return nil
}

func (p *Pipeline) restoreLabel(ctx context.Context) {
	text, err := p.config.Settings.Get(ctx, store.SettingLabel)
	if errors.Is(err, store.ErrNotFound) {
		return
	}
	if err != nil {
		p.logger.Warn("failed to read saved label", "error", err)
		return
	}
	label, err := gesture.ParseLabel(text, len(p.config.Classes))
	if err != nil {
		p.logger.Warn("ignoring saved label", "label", text, "error", err)
		return
	}
	p.mu.Lock()
	p.label = label
	p.mu.Unlock()
}

// Reset empties the dataset. It is only legal in Idle, so a collection run
// must be stopped, and therefore persisted, first.
func (p *Pipeline) Reset() error {
	_, err := p.machine.FireGuarded(mode.Reset, func(from, to mode.Mode) error {
		p.dataset.Clear()
		return nil
	})
	if err != nil {
		return err
	}
	p.metrics.SetDatasetSize(0)
	p.publish()
	return nil
}

// Teardown stops the sampling loop, waits for in-flight ticks and training
// runs and closes the detector. It is safe to call more than once.
func (p *Pipeline) Teardown() error {
	var err error
	p.once.Do(func() {
		p.lifeMu.Lock()
		p.closed = true
		p.cancel()
		p.lifeMu.Unlock()

		p.ticks.Wait()
		p.training.Wait()

		p.subMu.Lock()
		for id, ch := range p.subs {
			close(ch)
			delete(p.subs, id)
		}
		p.subMu.Unlock()

		if p.config.Detector != nil {
			err = p.config.Detector.Close()
		}
	})
	return err
}

// StartCollect enters Collecting under a new session id.
func (p *Pipeline) StartCollect() error {
	_, err := p.machine.FireGuarded(mode.StartCollect, func(from, to mode.Mode) error {
		p.mu.Lock()
		p.session = p.config.NewSession()
		p.mu.Unlock()
		return nil
	})
	if err != nil {
		return err
	}
	p.logger.Info("collection started", "session", p.Session())
	return nil
}

// StopCollect returns to Idle and persists the dataset under the session
// id. A persistence failure is returned but the mode stays Idle and the
// examples stay in memory.
func (p *Pipeline) StopCollect(ctx context.Context) error {
	var (
		session  string
		examples []gesture.Example
	)
	_, err := p.machine.FireGuarded(mode.StopCollect, func(from, to mode.Mode) error {
		session = p.Session()
		examples = p.dataset.Snapshot()
		return nil
	})
	if err != nil {
		return err
	}

	err = p.dataset.PersistExamples(ctx, session, examples)
	p.metrics.RecordPersist(err)
	p.setLastErr(err)
	if err != nil {
		p.logger.Error("failed to persist dataset", "session", session, "error", err)
		p.publish()
		return err
	}
	p.publish()
	return nil
}

// ToggleCollect starts collecting from Idle and stops from Collecting.
func (p *Pipeline) ToggleCollect(ctx context.Context) (mode.Mode, error) {
	if p.machine.Current() == mode.Collecting {
		err := p.StopCollect(ctx)
		return p.machine.Current(), err
	}
	err := p.StartCollect()
	return p.machine.Current(), err
}

// Train runs a training run on the current dataset and blocks until it
// finishes. It fails with mode.ErrInvalidState outside Idle and with
// gesture.ErrTraining on an empty dataset; the mode is Idle afterwards in
// every case where it left Idle.
func (p *Pipeline) Train(ctx context.Context) (gesture.Report, error) {
	if err := p.beginTraining(); err != nil {
		return gesture.Report{}, err
	}
	return p.runTraining(ctx)
}

// StartTraining enters Training and fits the model in the background. After
// Teardown it returns to Idle and fails with context.Canceled.
func (p *Pipeline) StartTraining() error {
	if err := p.beginTraining(); err != nil {
		return err
	}
	if !p.spawn(&p.training, func() { p.runTraining(p.ctx) }) {
		p.machine.Fire(mode.TrainingDone)
		p.publish()
		return fmt.Errorf("start training: %w", context.Canceled)
	}
	return nil
}

// spawn runs fn on a goroutine tracked by wg unless the pipeline has been
// torn down.
func (p *Pipeline) spawn(wg *sync.WaitGroup, fn func()) bool {
	p.lifeMu.Lock()
	defer p.lifeMu.Unlock()
	if p.closed {
		return false
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		fn()
	}()
	return true
}

func (p *Pipeline) beginTraining() error {
	_, err := p.machine.FireGuarded(mode.StartTraining, func(from, to mode.Mode) error {
		if p.dataset.Len() == 0 {
			return fmt.Errorf("%w: dataset is empty", gesture.ErrTraining)
		}
		return nil
	})
	if errors.Is(err, gesture.ErrTraining) {
		p.metrics.RecordTraining(0, 0, err)
		p.setLastErr(err)
		p.publish()
	}
	return err
}

func (p *Pipeline) runTraining(ctx context.Context) (gesture.Report, error) {
	defer p.machine.Fire(mode.TrainingDone)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	stop := context.AfterFunc(p.ctx, cancel)
	defer stop()

	start := time.Now()
	report, err := p.classifier.Train(ctx, p.dataset.Snapshot(), p.config.Params)
	p.metrics.RecordTraining(time.Since(start), report.Loss, err)
	p.setLastErr(err)
	if err != nil {
		p.logger.Error("training failed", "error", err)
	}
	return report, err
}

// LoadDataset replaces the dataset with the loader's examples and returns
// how many were loaded. Every label must have one entry per class.
func (p *Pipeline) LoadDataset(ctx context.Context, loader dataset.Loader) (int, error) {
	if current := p.machine.Current(); current == mode.Loading {
		return 0, fmt.Errorf("%w: load while %s", mode.ErrInvalidState, current)
	}

	examples, err := loader.Load(ctx)
	if err != nil {
		return 0, err
	}
	width := len(p.config.Classes)
	for i, e := range examples {
		if len(e.Label) != width {
			return 0, fmt.Errorf("%w: example %d has label width %d, want %d", gesture.ErrMalformedLabel, i, len(e.Label), width)
		}
	}
	if err := p.dataset.BulkLoad(examples); err != nil {
		return 0, err
	}

	p.metrics.SetDatasetSize(len(examples))
	p.logger.Info("dataset loaded", "examples", len(examples))
	p.publish()
	return len(examples), nil
}

// SetLabel parses text as the label for subsequently collected examples
// and saves it. A save failure is returned, but the label is still applied.
func (p *Pipeline) SetLabel(ctx context.Context, text string) (gesture.Label, error) {
	if current := p.machine.Current(); current == mode.Loading {
		return nil, fmt.Errorf("%w: set label while %s", mode.ErrInvalidState, current)
	}
	label, err := gesture.ParseLabel(text, len(p.config.Classes))
	if err != nil {
		return nil, err
	}

	p.mu.Lock()
	p.label = label
	p.mu.Unlock()
	p.publish()

	if p.config.Settings != nil {
		if err := p.config.Settings.Set(ctx, store.SettingLabel, label.String()); err != nil {
			return label, fmt.Errorf("%w: save label: %w", dataset.ErrPersistence, err)
		}
	}
	return label, nil
}

// Label returns the label applied to collected examples.
func (p *Pipeline) Label() gesture.Label {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.label.Clone()
}

// Session returns the id of the current or most recent collection run.
func (p *Pipeline) Session() string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.session
}

func (p *Pipeline) setLastErr(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err == nil {
		p.lastErr = ""
		return
	}
	p.lastErr = err.Error()
}
