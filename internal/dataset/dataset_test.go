package dataset

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/ayusman/handsign/internal/detector"
	"github.com/ayusman/handsign/internal/gesture"
	"github.com/ayusman/handsign/internal/mode"
)

func newTestStore(t *testing.T) (*Store, *mode.Machine, *MemoryStorage) {
	t.Helper()
	m := mode.NewMachine()
	if _, err := m.Fire(mode.Ready); err != nil {
		t.Fatalf("Fire(Ready) error = %v", err)
	}
	storage := NewMemoryStorage()
	return New(Config{Machine: m, Storage: storage}), m, storage
}

func palm(label gesture.Label) gesture.Example {
	openPalmHand := detector.OpenPalmLandmarks()
	return gesture.NewExample(openPalmHand.Slice(), label)
}

func TestStore_AppendRequiresCollecting(t *testing.T) {
	s, m, _ := newTestStore(t)

	if err := s.Append(palm(gesture.Label{1, 0})); !errors.Is(err, mode.ErrInvalidState) {
		t.Fatalf("Append while idle: error = %v, want ErrInvalidState", err)
	}

	m.Fire(mode.StartCollect)
	for i := 0; i < 3; i++ {
		if err := s.Append(palm(gesture.Label{1, 0})); err != nil {
			t.Fatalf("Append() error = %v", err)
		}
	}
	if s.Len() != 3 {
		t.Errorf("Len() = %d, want 3", s.Len())
	}

	if err := s.Append(palm(gesture.Label{1, 0, 0})); !errors.Is(err, gesture.ErrMalformedLabel) {
		t.Errorf("Append with different width: error = %v, want ErrMalformedLabel", err)
	}

	m.Fire(mode.StopCollect)
	m.Fire(mode.StartTraining)
	if err := s.Append(palm(gesture.Label{1, 0})); !errors.Is(err, mode.ErrInvalidState) {
		t.Errorf("Append while training: error = %v, want ErrInvalidState", err)
	}
	if s.Len() != 3 {
		t.Errorf("Len() = %d after rejected appends, want 3", s.Len())
	}
}

func TestStore_AppendKeepsOrder(t *testing.T) {
	s, m, _ := newTestStore(t)
	m.Fire(mode.StartCollect)

	for i := 0; i < 5; i++ {
		s.Append(palm(gesture.OneHot(i%2, 2)))
	}
	for i, e := range s.Snapshot() {
		if e.Label[i%2] != 1 {
			t.Errorf("example %d has label %v", i, e.Label)
		}
	}
}

func TestStore_BulkLoad(t *testing.T) {
	s, m, _ := newTestStore(t)

	examples := []gesture.Example{palm(gesture.Label{1, 0}), palm(gesture.Label{0, 1})}
	if err := s.BulkLoad(examples); err != nil {
		t.Fatalf("BulkLoad() error = %v", err)
	}
	if s.Len() != 2 {
		t.Fatalf("Len() = %d, want 2", s.Len())
	}

	bad := []gesture.Example{palm(gesture.Label{1, 0}), palm(gesture.Label{1})}
	if err := s.BulkLoad(bad); !errors.Is(err, gesture.ErrMalformedLabel) {
		t.Errorf("inconsistent widths: error = %v, want ErrMalformedLabel", err)
	}
	if s.Len() != 2 {
		t.Errorf("rejected load changed dataset: Len() = %d", s.Len())
	}

	m.Fire(mode.StartTraining)
	if err := s.BulkLoad(examples[:1]); !errors.Is(err, mode.ErrInvalidState) {
		t.Errorf("load while training: error = %v, want ErrInvalidState", err)
	}
	if s.Len() != 2 {
		t.Errorf("rejected load changed dataset: Len() = %d", s.Len())
	}
}

func TestStore_PersistRoundTrip(t *testing.T) {
	s, m, storage := newTestStore(t)
	m.Fire(mode.StartCollect)

	thumbsUpHand := detector.ThumbsUpLandmarks()
	thumbs := gesture.NewExample(thumbsUpHand.Slice(), gesture.Label{1, 0})
	s.Append(thumbs)
	s.Append(palm(gesture.Label{0, 1}))
	m.Fire(mode.StopCollect)

	if err := s.Persist(context.Background(), "session-1"); err != nil {
		t.Fatalf("Persist() error = %v", err)
	}
	if s.Len() != 2 {
		t.Errorf("Persist changed the dataset: Len() = %d", s.Len())
	}

	loaded, err := StorageLoader{Storage: storage, Key: "session-1"}.Load(context.Background())
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	want := s.Snapshot()
	if len(loaded) != len(want) {
		t.Fatalf("loaded %d examples, want %d", len(loaded), len(want))
	}
	for i := range want {
		if !loaded[i].Label.Equal(want[i].Label) {
			t.Errorf("example %d label = %v, want %v", i, loaded[i].Label, want[i].Label)
		}
		for j := range want[i].Features {
			if loaded[i].Features[j] != want[i].Features[j] {
				t.Fatalf("example %d feature %d = %f, want %f", i, j, loaded[i].Features[j], want[i].Features[j])
			}
		}
	}

	// A fresh store loaded from storage holds the same dataset.
	fresh, _, _ := newTestStore(t)
	if err := fresh.BulkLoad(loaded); err != nil {
		t.Fatalf("BulkLoad() error = %v", err)
	}
	if fresh.Len() != 2 {
		t.Errorf("fresh Len() = %d, want 2", fresh.Len())
	}
}

func TestStore_PersistFailure(t *testing.T) {
	s, m, storage := newTestStore(t)
	m.Fire(mode.StartCollect)
	s.Append(palm(gesture.Label{1, 0}))

	storage.SetError(errors.New("disk full"))
	if err := s.Persist(context.Background(), "k"); !errors.Is(err, ErrPersistence) {
		t.Fatalf("expected ErrPersistence, got %v", err)
	}
	if s.Len() != 1 {
		t.Errorf("failed persist changed dataset: Len() = %d", s.Len())
	}

	none := New(Config{Machine: m})
	if err := none.Persist(context.Background(), "k"); !errors.Is(err, ErrPersistence) {
		t.Errorf("no storage: expected ErrPersistence, got %v", err)
	}
}

func TestStore_PersistExamplesWritesSnapshot(t *testing.T) {
	s, m, storage := newTestStore(t)
	m.Fire(mode.StartCollect)
	s.Append(palm(gesture.Label{1, 0}))
	snap := s.Snapshot()
	s.Append(palm(gesture.Label{0, 1}))

	if err := s.PersistExamples(context.Background(), "k", snap); err != nil {
		t.Fatalf("PersistExamples() error = %v", err)
	}
	loaded, err := StorageLoader{Storage: storage, Key: "k"}.Load(context.Background())
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if len(loaded) != 1 || !loaded[0].Label.Equal(gesture.Label{1, 0}) {
		t.Errorf("loaded %v, want the one-example snapshot", loaded)
	}
}

func TestStore_Clear(t *testing.T) {
	s, m, _ := newTestStore(t)
	m.Fire(mode.StartCollect)
	s.Append(palm(gesture.Label{1, 0}))

	s.Clear()
	if s.Len() != 0 {
		t.Errorf("Len() = %d after Clear, want 0", s.Len())
	}
}

func TestCodec_RawLandmarks(t *testing.T) {
	data, err := Encode([]gesture.Example{palm(gesture.Label{0, 1})})
	if err != nil {
		t.Fatalf("Encode() error = %v", err)
	}

	examples, err := Decode(data)
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	wrist := detector.OpenPalmLandmarks().Points[detector.Wrist]
	if examples[0].Landmarks[0] != wrist {
		t.Errorf("stored landmarks were not raw: got %v, want %v", examples[0].Landmarks[0], wrist)
	}
}

func TestCodec_Decode(t *testing.T) {
	tests := []struct {
		name    string
		data    string
		want    int
		wantErr bool
	}{
		{"empty", `[]`, 0, false},
		{"short hand", `[{"inputs":[[0.1,0.2,0.3]],"labels":[1,0]}]`, 1, false},
		{"not json", `{`, 0, true},
		{"missing z", `[{"inputs":[[0.1,0.2]],"labels":[1]}]`, 1, false},
		{"not finite", `[{"inputs":[[1e400,0,0]],"labels":[1]}]`, 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Decode([]byte(tt.data))
			if tt.wantErr {
				if !errors.Is(err, ErrMalformed) {
					t.Errorf("expected ErrMalformed, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Decode() error = %v", err)
			}
			if len(got) != tt.want {
				t.Fatalf("len = %d, want %d", len(got), tt.want)
			}
			for _, e := range got {
				if len(e.Features) != gesture.FeatureLen {
					t.Errorf("features len = %d", len(e.Features))
				}
			}
		})
	}
}

func TestFileStorage(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "datasets")
	fs, err := NewFileStorage(dir)
	if err != nil {
		t.Fatalf("NewFileStorage() error = %v", err)
	}

	ctx := context.Background()
	if err := fs.Write(ctx, "b", []byte(`[]`)); err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	if err := fs.Write(ctx, "a", []byte(`[]`)); err != nil {
		t.Fatalf("Write() error = %v", err)
	}

	data, err := fs.Read(ctx, "a")
	if err != nil || string(data) != `[]` {
		t.Errorf("Read() = %q, %v", data, err)
	}
	if _, err := fs.Read(ctx, "missing"); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("Read(missing) error = %v, want ErrNotExist", err)
	}

	keys, err := fs.Keys()
	if err != nil {
		t.Fatalf("Keys() error = %v", err)
	}
	if len(keys) != 2 || keys[0] != "a" || keys[1] != "b" {
		t.Errorf("Keys() = %v, want [a b]", keys)
	}
}

func TestFileLoader(t *testing.T) {
	path := filepath.Join(t.TempDir(), "export.json")
	data, _ := Encode([]gesture.Example{palm(gesture.Label{1, 0})})
	if err := os.WriteFile(path, data, 0644); err != nil {
		t.Fatal(err)
	}

	examples, err := FileLoader{Path: path}.Load(context.Background())
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if len(examples) != 1 {
		t.Errorf("loaded %d examples, want 1", len(examples))
	}

	if _, err := (FileLoader{Path: path + ".missing"}).Load(context.Background()); !errors.Is(err, ErrPersistence) {
		t.Errorf("missing file: error = %v, want ErrPersistence", err)
	}
}

func TestBytesLoader(t *testing.T) {
	data, _ := Encode([]gesture.Example{palm(gesture.Label{0, 1}), palm(gesture.Label{1, 0})})

	examples, err := BytesLoader(data).Load(context.Background())
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if len(examples) != 2 || !examples[0].Label.Equal(gesture.Label{0, 1}) {
		t.Errorf("unexpected examples %+v", examples)
	}

	if _, err := BytesLoader(`[{"inputs":`).Load(context.Background()); !errors.Is(err, ErrMalformed) {
		t.Errorf("truncated upload: error = %v, want ErrMalformed", err)
	}
}
