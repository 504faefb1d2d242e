package app

import (
	"context"
	"errors"
	"time"

	"github.com/ayusman/handsign/internal/capture"
	"github.com/ayusman/handsign/internal/gesture"
	"github.com/ayusman/handsign/internal/metrics"
	"github.com/ayusman/handsign/internal/mode"
)

// Run samples at the configured interval until ctx is cancelled or the
// pipeline is torn down. Each tick runs on its own goroutine; a tick that
// fires while the previous one is still running is dropped.
func (p *Pipeline) Run(ctx context.Context) error {
	if p.config.Camera == nil {
		return ErrNoCamera
	}
	if !p.running.CompareAndSwap(false, true) {
		return ErrRunning
	}
	defer p.running.Store(false)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	stop := context.AfterFunc(p.ctx, cancel)
	defer stop()

	ticker := time.NewTicker(p.config.Interval)
	defer ticker.Stop()

	p.logger.Info("sampling loop started", "interval", p.config.Interval)
	defer p.logger.Info("sampling loop stopped")

	for {
		select {
		case <-ctx.Done():
			p.ticks.Wait()
			return nil
		case <-ticker.C:
			p.spawn(&p.ticks, func() { p.Tick(ctx) })
		}
	}
}

// Tick runs one sample. It returns false without doing anything when ctx
// is done or another tick is still in flight; the latter is counted.
func (p *Pipeline) Tick(ctx context.Context) bool {
	if ctx.Err() != nil || p.ctx.Err() != nil {
		return false
	}
	if !p.inFlight.CompareAndSwap(false, true) {
		p.skipped.Add(1)
		p.metrics.RecordTick(metrics.TickSkipped)
		return false
	}
	defer p.inFlight.Store(false)

	p.metrics.RecordTick(p.sample(ctx))
	return true
}

// Skipped returns how many ticks were dropped because one was in flight.
func (p *Pipeline) Skipped() uint64 {
	return p.skipped.Load()
}

func (p *Pipeline) active(ctx context.Context) bool {
	return ctx.Err() == nil && p.ctx.Err() == nil
}

func (p *Pipeline) sample(ctx context.Context) string {
	if p.config.Camera == nil || p.config.Detector == nil {
		return metrics.TickNotReady
	}

	frame, err := p.config.Camera.ReadFrame()
	if err != nil {
		if !errors.Is(err, capture.ErrFrameNotReady) {
			p.logger.Debug("frame read failed", "error", err)
		}
		return metrics.TickNotReady
	}
	defer frame.Close()

	width, height := capture.FrameSize(frame)
	p.mu.Lock()
	p.frameWidth, p.frameHeight = width, height
	p.mu.Unlock()

	if p.config.OnFrame != nil {
		p.config.OnFrame(frame)
	}

	hands, err := p.config.Detector.Detect(ctx, frame)
	if !p.active(ctx) {
		return metrics.TickSkipped
	}
	if err != nil {
		p.logger.Debug("detection failed", "error", err)
		p.setHand(false)
		return metrics.TickError
	}
	if len(hands) == 0 {
		p.setHand(false)
		return metrics.TickNoHand
	}
	p.setHand(true)

	landmarks := hands[0].Slice()
	switch p.machine.Current() {
	case mode.Collecting:
		e := gesture.NewExample(landmarks, p.Label())
		if err := p.dataset.Append(e); err != nil {
			// The mode moved on between the check and the append.
			p.logger.Debug("example dropped", "error", err)
			return metrics.TickSkipped
		}
		p.metrics.RecordAppend(p.dataset.Len())
	case mode.Idle:
		p.infer(gesture.Normalize(landmarks))
	}

	p.publish()
	return metrics.TickProcessed
}

func (p *Pipeline) infer(features []float64) {
	start := time.Now()
	scores, err := p.classifier.Estimate(features)
	if err != nil {
		p.logger.Debug("estimate failed", "error", err)
		return
	}
	if scores == nil {
		return
	}
	p.metrics.ObserveEstimate(time.Since(start))

	decision := gesture.Decide(scores, p.config.Threshold)
	if decision.Detected {
		p.metrics.RecordDetection(decision.Name(p.config.Classes))
	}

	p.mu.Lock()
	p.decision = decision
	p.scores = scores
	p.mu.Unlock()
}

func (p *Pipeline) setHand(visible bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.handVisible = visible
	if !visible {
		p.decision = gesture.Decision{Class: -1}
		p.scores = nil
	}
}
