package app

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/ayusman/handsign/internal/capture"
	"github.com/ayusman/handsign/internal/config"
	"github.com/ayusman/handsign/internal/dataset"
	"github.com/ayusman/handsign/internal/detector"
	"github.com/ayusman/handsign/internal/mode"
	"github.com/ayusman/handsign/internal/store"
)

func testOptions(t *testing.T) *config.Config {
	t.Helper()
	opts := config.New()
	opts.DataDir = t.TempDir()
	opts.SampleIntervalMS = 5
	opts.Classes = []string{"thumbs_up", "open_palm"}
	opts.HiddenUnits = []int{8}
	opts.Epochs = 5
	opts.BatchSize = 4
	return opts
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("condition not met before deadline")
		}
		time.Sleep(time.Millisecond)
	}
}

func TestApp_CollectAndStoreSession(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}

	// Setup test store
	opts := testOptions(t)
	s, err := store.New(filepath.Join(opts.DataDir, "test.db"))
	if err != nil {
		t.Fatalf("store.New() error = %v", err)
	}
	defer s.Close()

	cam := capture.NewBlankMockCamera(320, 240)
	defer cam.Release()
	det := detector.NewMockDetector()
	det.SetHands([]detector.HandLandmarks{detector.ThumbsUpLandmarks()})

	a, err := New(Config{
		Options:  opts,
		Store:    s,
		Camera:   cam,
		Detector: det,
		Logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	ctx := context.Background()
	if err := a.Start(ctx); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	defer a.Stop()

	p := a.Pipeline()
	if p.Machine().Current() != mode.Idle {
		t.Fatalf("expected Idle after Start, got %s", p.Machine().Current())
	}

	if err := p.StartCollect(); err != nil {
		t.Fatalf("StartCollect() error = %v", err)
	}
	waitFor(t, func() bool { return p.Dataset().Len() >= 3 })
	if err := p.StopCollect(ctx); err != nil {
		t.Fatalf("StopCollect() error = %v", err)
	}

	sessions, err := a.Sessions().List(ctx)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(sessions) != 1 || sessions[0].ID != p.Session() {
		t.Fatalf("expected the collected session to be stored, got %+v", sessions)
	}

	n := p.Dataset().Len()
	if err := p.Reset(); err != nil {
		t.Fatalf("Reset() error = %v", err)
	}
	id, loaded, err := a.LoadLatest(ctx)
	if err != nil || id != p.Session() || loaded != n {
		t.Errorf("LoadLatest() = %q, %d, %v, want %q, %d", id, loaded, err, p.Session(), n)
	}

	// Frames read by the loop are published for viewers.
	fctx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()
	if _, _, err := a.Frames().Next(fctx, 0); err != nil {
		t.Errorf("no frame published: %v", err)
	}
}

func TestApp_StartupSessionFromFileStorage(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}

	opts := testOptions(t)
	opts.Storage = config.StorageFile
	opts.Session = "saved"

	fs, err := dataset.NewFileStorage(filepath.Join(opts.DataDir, "sessions"))
	if err != nil {
		t.Fatalf("NewFileStorage() error = %v", err)
	}
	data := []byte(`[{"inputs":[[0.5,0.5,0]],"labels":[1,0]},{"inputs":[[0.1,0.2,0]],"labels":[0,1]}]`)
	if err := fs.Write(context.Background(), "saved", data); err != nil {
		t.Fatalf("Write() error = %v", err)
	}

	cam := capture.NewBlankMockCamera(64, 48)
	defer cam.Release()

	a, err := New(Config{
		Options:  opts,
		Camera:   cam,
		Detector: detector.NewMockDetector(),
		Logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if err := a.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	defer a.Stop()

	if got := a.Pipeline().Dataset().Len(); got != 2 {
		t.Errorf("startup session examples = %d, want 2", got)
	}

	sessions, err := a.Sessions().List(context.Background())
	if err != nil || len(sessions) != 1 || sessions[0].ID != "saved" || sessions[0].Size != len(data) {
		t.Errorf("List() = %+v, %v", sessions, err)
	}

	if err := a.Pipeline().Reset(); err != nil {
		t.Fatalf("Reset() error = %v", err)
	}
	id, n, err := a.LoadLatest(context.Background())
	if err != nil || id != "saved" || n != 2 {
		t.Errorf("LoadLatest() = %q, %d, %v", id, n, err)
	}
}

func TestApp_LoadLatestWithoutSessions(t *testing.T) {
	cam := capture.NewBlankMockCamera(64, 48)
	defer cam.Release()

	a, err := New(Config{
		Options:  testOptions(t),
		Camera:   cam,
		Detector: detector.NewMockDetector(),
		Logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if a.Sessions() != nil {
		t.Errorf("memory storage should have no lister")
	}
	if _, _, err := a.LoadLatest(context.Background()); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("LoadLatest() error = %v, want ErrNotFound", err)
	}
}

func TestFPSFor(t *testing.T) {
	tests := []struct {
		interval time.Duration
		want     int
	}{
		{100 * time.Millisecond, 10},
		{2 * time.Second, 1},
		{0, capture.DefaultFPS},
	}
	for _, tt := range tests {
		if got := fpsFor(tt.interval); got != tt.want {
			t.Errorf("fpsFor(%v) = %d, want %d", tt.interval, got, tt.want)
		}
	}
}
