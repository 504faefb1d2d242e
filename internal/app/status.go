package app

import (
	"github.com/ayusman/handsign/internal/gesture"
	"github.com/ayusman/handsign/internal/mode"
)

// Status is a point-in-time view of the pipeline for the user surfaces.
type Status struct {
	Mode        mode.Mode        `json:"mode"`
	Examples    int              `json:"examples"`
	Label       gesture.Label    `json:"label"`
	Session     string           `json:"session,omitempty"`
	Detected    string           `json:"detected,omitempty"`
	Decision    gesture.Decision `json:"decision"`
	Scores      []float64        `json:"scores,omitempty"`
	HandVisible bool             `json:"hand_visible"`
	FrameWidth  int              `json:"frame_width"`
	FrameHeight int              `json:"frame_height"`
	Trained     bool             `json:"trained"`
	Report      *gesture.Report  `json:"report,omitempty"`
	LastError   string           `json:"last_error,omitempty"`
	Skipped     uint64           `json:"ticks_skipped"`
}

// Status returns the current status.
func (p *Pipeline) Status() Status {
	s := Status{
		Mode:     p.machine.Current(),
		Examples: p.dataset.Len(),
		Trained:  p.classifier.Trained(),
		Skipped:  p.skipped.Load(),
	}
	if report, ok := p.classifier.LastReport(); ok {
		s.Report = &report
	}

	p.mu.RLock()
	s.Label = p.label.Clone()
	s.Session = p.session
	s.Decision = p.decision
	s.Scores = append([]float64(nil), p.scores...)
	s.HandVisible = p.handVisible
	s.FrameWidth, s.FrameHeight = p.frameWidth, p.frameHeight
	s.LastError = p.lastErr
	p.mu.RUnlock()

	s.Detected = s.Decision.Name(p.config.Classes)
	return s
}

// Subscribe returns a channel that receives the latest status after every
// change. A slow reader only ever sees the newest status; older ones are
// dropped. The cancel function unsubscribes and closes the channel.
func (p *Pipeline) Subscribe() (<-chan Status, func()) {
	ch := make(chan Status, 1)

	p.subMu.Lock()
	id := p.nextSub
	p.nextSub++
	if p.ctx.Err() != nil {
		p.subMu.Unlock()
		close(ch)
		return ch, func() {}
	}
	p.subs[id] = ch
	p.subMu.Unlock()

	return ch, func() {
		p.subMu.Lock()
		defer p.subMu.Unlock()
		if _, ok := p.subs[id]; ok {
			delete(p.subs, id)
			close(ch)
		}
	}
}

func (p *Pipeline) publish() {
	status := p.Status()

	p.subMu.Lock()
	defer p.subMu.Unlock()
	for _, ch := range p.subs {
		select {
		case <-ch:
		default:
		}
		ch <- status
	}
}
