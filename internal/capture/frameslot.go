package capture

import (
	"context"
	"fmt"
	"sync"

	"gocv.io/x/gocv"
)

// FrameSlot holds the most recent encoded frame. Publishing overwrites the
// previous frame whether or not a viewer consumed it; viewers block until a
// frame newer than the one they last saw arrives.
type FrameSlot struct {
	mu      sync.Mutex
	jpeg    []byte
	seq     uint64
	drops   uint64
	read    uint64
	changed chan struct{}
}

// NewFrameSlot creates an empty slot.
func NewFrameSlot() *FrameSlot {
	return &FrameSlot{changed: make(chan struct{})}
}

// Publish stores jpeg as the latest frame and wakes waiting viewers.
func (s *FrameSlot) Publish(jpeg []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.seq > s.read {
		s.drops++
	}
	s.jpeg = jpeg
	s.seq++
	close(s.changed)
	s.changed = make(chan struct{})
}

// Next returns the first frame published after sequence number after,
// blocking until one exists or ctx is done.
func (s *FrameSlot) Next(ctx context.Context, after uint64) ([]byte, uint64, error) {
	for {
		s.mu.Lock()
		if s.seq > after {
			jpeg, seq := s.jpeg, s.seq
			s.read = seq
			s.mu.Unlock()
			return jpeg, seq, nil
		}
		changed := s.changed
		s.mu.Unlock()

		select {
		case <-changed:
		case <-ctx.Done():
			return nil, after, ctx.Err()
		}
	}
}

// Drops returns how many published frames were replaced before any viewer read them.
func (s *FrameSlot) Drops() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.drops
}

// EncodeJPEG encodes frame as JPEG and returns a Go-owned copy of the bytes.
func EncodeJPEG(frame *gocv.Mat) ([]byte, error) {
	if frame == nil || frame.Empty() {
		return nil, fmt.Errorf("%w: empty frame", ErrFrameNotReady)
	}
	buf, err := gocv.IMEncode(gocv.JPEGFileExt, *frame)
	if err != nil {
		return nil, fmt.Errorf("encode jpeg: %w", err)
	}
	defer buf.Close()
	return append([]byte(nil), buf.GetBytes()...), nil
}
