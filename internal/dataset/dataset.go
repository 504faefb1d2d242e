// Package dataset accumulates labelled examples and persists them as one
// flat JSON document per collection session.
package dataset

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/ayusman/handsign/internal/gesture"
	"github.com/ayusman/handsign/internal/mode"
)

var (
	// ErrPersistence is returned when the dataset cannot be written or read.
	ErrPersistence = errors.New("persistence failed")
	// ErrMalformed is returned when serialized data is not a valid dataset.
	ErrMalformed = errors.New("malformed dataset")
)

// Storage is durable key/value storage for serialized datasets.
type Storage interface {
	Write(ctx context.Context, key string, data []byte) error
	Read(ctx context.Context, key string) ([]byte, error)
}

// Loader produces examples for BulkLoad.
type Loader interface {
	Load(ctx context.Context) ([]gesture.Example, error)
}

// Config configures a Store.
type Config struct {
	Machine *mode.Machine
	Storage Storage
	Logger  *slog.Logger
}

// Store owns the in-memory dataset. Mutations are gated on the mode held
// by the machine: Append only while collecting, BulkLoad never while
// training.
type Store struct {
	machine *mode.Machine
	storage Storage
	logger  *slog.Logger

	mu       sync.RWMutex
	examples []gesture.Example
}

// New creates an empty Store.
func New(config Config) *Store {
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{
		machine: config.Machine,
		storage: config.Storage,
		logger:  logger,
	}
}

// Append adds e at the end of the dataset. It fails with
// mode.ErrInvalidState unless the machine is collecting, and with
// gesture.ErrMalformedLabel if the label width differs from the dataset's.
func (s *Store) Append(e gesture.Example) error {
	return s.machine.InMode(func(current mode.Mode) error {
		if current != mode.Collecting {
			return fmt.Errorf("%w: append while %s", mode.ErrInvalidState, current)
		}

		s.mu.Lock()
		defer s.mu.Unlock()
		if len(s.examples) > 0 && len(s.examples[0].Label) != len(e.Label) {
			return fmt.Errorf("%w: label width %d, dataset uses %d", gesture.ErrMalformedLabel, len(e.Label), len(s.examples[0].Label))
		}
		s.examples = append(s.examples, e)
		return nil
	})
}

// BulkLoad replaces the dataset with examples in one step. It is rejected
// while training, and when label widths are inconsistent; in both cases
// the current dataset is left untouched.
func (s *Store) BulkLoad(examples []gesture.Example) error {
	if err := checkWidths(examples); err != nil {
		return err
	}
	return s.machine.InMode(func(current mode.Mode) error {
		if current == mode.Training {
			return fmt.Errorf("%w: load while %s", mode.ErrInvalidState, current)
		}

		replaced := append([]gesture.Example(nil), examples...)
		s.mu.Lock()
		s.examples = replaced
		s.mu.Unlock()
		return nil
	})
}

func checkWidths(examples []gesture.Example) error {
	for i, e := range examples {
		if len(e.Label) != len(examples[0].Label) {
			return fmt.Errorf("%w: example %d has label width %d, want %d", gesture.ErrMalformedLabel, i, len(e.Label), len(examples[0].Label))
		}
	}
	return nil
}

// Persist writes the current dataset to storage under key. The in-memory
// dataset is not changed, whatever the outcome.
func (s *Store) Persist(ctx context.Context, key string) error {
	return s.PersistExamples(ctx, key, s.Snapshot())
}

// PersistExamples writes examples, usually a Snapshot taken earlier, to
// storage under key.
func (s *Store) PersistExamples(ctx context.Context, key string, examples []gesture.Example) error {
	if s.storage == nil {
		return fmt.Errorf("%w: no storage configured", ErrPersistence)
	}
	data, err := Encode(examples)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrPersistence, err)
	}
	if err := s.storage.Write(ctx, key, data); err != nil {
		return fmt.Errorf("%w: write %s: %w", ErrPersistence, key, err)
	}
	s.logger.Info("dataset persisted", "session", key, "bytes", len(data))
	return nil
}

// Clear empties the dataset.
func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.examples = nil
}

// Len returns the number of examples.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.examples)
}

// Snapshot returns the examples in order. Examples are never modified after
// they are stored, so the copy is shallow.
func (s *Store) Snapshot() []gesture.Example {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]gesture.Example(nil), s.examples...)
}
