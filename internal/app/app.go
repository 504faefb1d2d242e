// Package app wires the camera, detector, dataset and classifier into the
// running handsign process.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"gocv.io/x/gocv"

	"github.com/ayusman/handsign/internal/capture"
	"github.com/ayusman/handsign/internal/config"
	"github.com/ayusman/handsign/internal/dataset"
	"github.com/ayusman/handsign/internal/detector"
	"github.com/ayusman/handsign/internal/gesture"
	"github.com/ayusman/handsign/internal/metrics"
	"github.com/ayusman/handsign/internal/store"
)

// Config holds configuration options for the application.
type Config struct {
	Options *config.Config
	Store   *store.Store

	// Camera and Detector replace the device camera and the MediaPipe
	// detector when set.
	Camera   capture.Camera
	Detector detector.Detector

	Metrics *metrics.Manager
	Logger  *slog.Logger
}

// SessionLister lists stored datasets.
type SessionLister interface {
	List(ctx context.Context) ([]store.Session, error)
}

// App is the main application that owns the pipeline and its devices.
type App struct {
	options  *config.Config
	camera   capture.Camera
	detector detector.Detector
	storage  dataset.Storage
	sessions SessionLister
	frames   *capture.FrameSlot
	pipeline *Pipeline
	logger   *slog.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// New creates a new App instance with the given configuration.
func New(cfg Config) (*App, error) {
	opts := cfg.Options
	if opts == nil {
		opts = config.New()
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	a := &App{
		options:  opts,
		camera:   cfg.Camera,
		detector: cfg.Detector,
		frames:   capture.NewFrameSlot(),
		logger:   logger,
	}
	if a.camera == nil {
		a.camera = capture.NewCamera(capture.DeviceConfig{
			DeviceID: opts.CameraID,
			Width:    opts.CameraWidth,
			Height:   opts.CameraHeight,
			FPS:      fpsFor(opts.SampleInterval()),
		})
	}

	// Try MediaPipe first, fall back to mock detector
	if a.detector == nil {
		dc := detector.DefaultConfig()
		dc.ScriptPath = opts.DetectorScript
		if mp, err := detector.NewMediaPipeDetector(dc); err == nil {
			a.detector = mp
			logger.Info("using MediaPipe hand detection")
		} else {
			logger.Warn("MediaPipe not available, using mock detector", "error", err)
			a.detector = detector.NewMockDetector()
		}
	}

	storage, sessions, err := OpenStorage(opts, cfg.Store, logger)
	if err != nil {
		return nil, err
	}
	a.storage, a.sessions = storage, sessions

	var settings Settings
	if cfg.Store != nil {
		settings = cfg.Store.Settings()
	}

	p, err := NewPipeline(PipelineConfig{
		Camera:    a.camera,
		Detector:  a.detector,
		Storage:   a.storage,
		Settings:  settings,
		Classes:   opts.Classes,
		Threshold: opts.Threshold,
		Interval:  opts.SampleInterval(),
		Params: gesture.Params{
			BatchSize:    opts.BatchSize,
			Epochs:       opts.Epochs,
			LearningRate: opts.LearningRate,
		},
		Classifier: ClassifierConfig(opts, logger),
		Metrics:    cfg.Metrics,
		Logger:     logger,
		OnFrame:    a.publishFrame,
	})
	if err != nil {
		return nil, err
	}
	a.pipeline = p
	return a, nil
}

// ClassifierConfig derives the classifier settings from opts.
func ClassifierConfig(opts *config.Config, logger *slog.Logger) gesture.Config {
	cc := gesture.DefaultConfig()
	cc.Classes = len(opts.Classes)
	if len(opts.HiddenUnits) > 0 {
		cc.Hidden = opts.HiddenUnits
	}
	cc.Seed = opts.Seed
	if opts.Workers > 0 {
		cc.Workers = opts.Workers
	}
	cc.Logger = logger
	return cc
}

// OpenStorage selects the dataset storage named by opts. File storage keeps
// one file per session under <data_dir>/sessions; otherwise st is used when
// set. With neither, datasets live in memory and the lister is nil.
func OpenStorage(opts *config.Config, st *store.Store, logger *slog.Logger) (dataset.Storage, SessionLister, error) {
	switch {
	case opts.Storage == config.StorageFile:
		fs, err := dataset.NewFileStorage(filepath.Join(opts.DataDir, "sessions"))
		if err != nil {
			return nil, nil, fmt.Errorf("open file storage: %w", err)
		}
		return fs, fileSessions{fs}, nil
	case st != nil:
		repo := st.Sessions()
		return repo, repo, nil
	default:
		logger.Warn("no database configured, datasets are kept in memory")
		return dataset.NewMemoryStorage(), nil, nil
	}
}

func (a *App) publishFrame(frame *gocv.Mat) {
	jpeg, err := capture.EncodeJPEG(frame)
	if err != nil {
		a.logger.Debug("frame encode failed", "error", err)
		return
	}
	a.frames.Publish(jpeg)
}

// Start opens the camera, initializes the pipeline and starts sampling.
// The configured startup session, if any, is loaded before sampling begins.
func (a *App) Start(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	// Don't start if already running
	if a.cancel != nil {
		return nil
	}

	if err := a.camera.Open(); err != nil {
		return err
	}
	a.camera.SetFPS(fpsFor(a.options.SampleInterval()))

	if err := a.pipeline.Init(ctx); err != nil {
		a.camera.Close()
		return err
	}

	if a.options.Session != "" {
		n, err := a.pipeline.LoadDataset(ctx, dataset.StorageLoader{Storage: a.storage, Key: a.options.Session})
		if err != nil {
			a.logger.Warn("failed to load startup session", "session", a.options.Session, "error", err)
		} else {
			a.logger.Info("startup session loaded", "session", a.options.Session, "examples", n)
		}
	}

	runCtx, cancel := context.WithCancel(context.Background())
	a.cancel = cancel
	a.done = make(chan struct{})
	go func() {
		defer close(a.done)
		if err := a.pipeline.Run(runCtx); err != nil {
			a.logger.Error("sampling loop exited", "error", err)
		}
	}()

	a.logger.Info("detection pipeline started")
	return nil
}

func fpsFor(interval time.Duration) int {
	if interval <= 0 {
		return capture.DefaultFPS
	}
	fps := int(time.Second / interval)
	return max(fps, 1)
}

// Stop halts the sampling loop and releases the camera and detector.
func (a *App) Stop() {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.cancel != nil {
		a.cancel()
		<-a.done
		a.cancel = nil
	}

	if err := a.pipeline.Teardown(); err != nil {
		a.logger.Error("error closing detector", "error", err)
	}
	if err := a.camera.Close(); err != nil {
		a.logger.Error("error closing camera", "error", err)
	}

	a.logger.Info("detection pipeline stopped")
}

// Pipeline returns the pipeline.
func (a *App) Pipeline() *Pipeline {
	return a.pipeline
}

// Frames returns the slot holding the latest encoded camera frame.
func (a *App) Frames() *capture.FrameSlot {
	return a.frames
}

// Storage returns the dataset storage.
func (a *App) Storage() dataset.Storage {
	return a.storage
}

// Sessions returns the lister for stored datasets, or nil when datasets
// are kept in memory only.
func (a *App) Sessions() SessionLister {
	return a.sessions
}

// LoadLatest loads the most recently stored session into the pipeline and
// returns its id and size. It returns store.ErrNotFound when nothing is stored.
func (a *App) LoadLatest(ctx context.Context) (string, int, error) {
	id, err := a.latestSession(ctx)
	if err != nil {
		return "", 0, err
	}
	n, err := a.pipeline.LoadDataset(ctx, dataset.StorageLoader{Storage: a.storage, Key: id})
	return id, n, err
}

func (a *App) latestSession(ctx context.Context) (string, error) {
	switch l := a.sessions.(type) {
	case nil:
		return "", store.ErrNotFound
	case interface {
		Latest(ctx context.Context) (*store.Session, error)
	}:
		s, err := l.Latest(ctx)
		if err != nil {
			return "", err
		}
		return s.ID, nil
	}
	sessions, err := a.sessions.List(ctx)
	if err != nil {
		return "", err
	}
	if len(sessions) == 0 {
		return "", store.ErrNotFound
	}
	return sessions[0].ID, nil
}

// fileSessions lists the datasets held by a FileStorage.
type fileSessions struct {
	fs *dataset.FileStorage
}

// List returns the stored sessions, most recently written first.
func (f fileSessions) List(ctx context.Context) ([]store.Session, error) {
	keys, err := f.fs.Keys()
	if err != nil {
		return nil, err
	}
	sessions := make([]store.Session, 0, len(keys))
	for _, k := range keys {
		info, err := f.fs.Info(k)
		if err != nil {
			continue // removed since Keys
		}
		sessions = append(sessions, store.Session{
			ID:        k,
			Size:      int(info.Size()),
			CreatedAt: info.ModTime(),
			UpdatedAt: info.ModTime(),
		})
	}
	sort.SliceStable(sessions, func(i, j int) bool {
		return sessions[i].UpdatedAt.After(sessions[j].UpdatedAt)
	})
	return sessions, nil
}
