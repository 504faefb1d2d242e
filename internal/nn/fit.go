package nn

import (
	"context"
	"fmt"
	"math/rand"

	"golang.org/x/sync/errgroup"
)

// Sample is one training pair.
type Sample struct {
	Input  []float64
	Target []float64
}

// FitConfig controls a training run.
type FitConfig struct {
	Epochs       int
	BatchSize    int
	LearningRate float64
	// Workers is the number of goroutines sharing each batch. Results are
	// deterministic for a fixed Seed and Workers.
	Workers int
	Seed    int64
	// OnEpoch, if set, is called after every epoch with the mean loss.
	OnEpoch func(epoch int, loss float64)
}

// FitReport summarizes a finished run.
type FitReport struct {
	Epochs int
	Loss   float64
	Losses []float64
}

// worker holds one goroutine's buffers and gradient accumulators.
type worker struct {
	acts  *activations
	grad  []float64
	delta [][]float64
	err   [][]float64
	wGrad [][]float64
	bGrad [][]float64
	loss  float64
}

func (n *Network) newWorker() *worker {
	w := &worker{
		acts: n.newActivations(),
		grad: make([]float64, n.topology.Outputs),
	}
	for _, l := range n.layers {
		w.delta = append(w.delta, make([]float64, l.Outputs()))
		w.err = append(w.err, make([]float64, l.Inputs()))
		w.wGrad = append(w.wGrad, make([]float64, len(l.weights.Data)))
		w.bGrad = append(w.bGrad, make([]float64, len(l.biases)))
	}
	return w
}

func (w *worker) reset() {
	w.loss = 0
	for i := range w.wGrad {
		clear(w.wGrad[i])
		clear(w.bGrad[i])
	}
}

// Fit trains the network in place with mini-batch Adam on mean squared
// error. Samples are visited in a seeded shuffled order every epoch; the
// caller's slice is not reordered.
func (n *Network) Fit(ctx context.Context, samples []Sample, cfg FitConfig) (FitReport, error) {
	if len(samples) == 0 {
		return FitReport{}, fmt.Errorf("%w: no samples", ErrShape)
	}
	for i, s := range samples {
		if len(s.Input) != n.topology.Inputs || len(s.Target) != n.topology.Outputs {
			return FitReport{}, fmt.Errorf("%w: sample %d is %dx%d, want %dx%d",
				ErrShape, i, len(s.Input), len(s.Target), n.topology.Inputs, n.topology.Outputs)
		}
	}
	if cfg.Epochs <= 0 {
		cfg.Epochs = 1
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = len(samples)
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}

	workers := make([]*worker, min(cfg.Workers, cfg.BatchSize))
	for i := range workers {
		workers[i] = n.newWorker()
	}

	opt := NewAdam(cfg.LearningRate)
	rnd := rand.New(rand.NewSource(cfg.Seed))
	order := make([]int, len(samples))
	for i := range order {
		order[i] = i
	}

	report := FitReport{Losses: make([]float64, 0, cfg.Epochs)}
	for epoch := 1; epoch <= cfg.Epochs; epoch++ {
		rnd.Shuffle(len(order), func(i, j int) { order[i], order[j] = order[j], order[i] })

		var total float64
		for start := 0; start < len(order); start += cfg.BatchSize {
			if err := ctx.Err(); err != nil {
				return report, err
			}
			batch := order[start:min(start+cfg.BatchSize, len(order))]
			loss, err := n.trainBatch(ctx, samples, batch, workers)
			if err != nil {
				return report, err
			}
			total += loss
			n.applyGradients(workers, len(batch), opt)
		}

		loss := total / float64(len(samples))
		report.Epochs = epoch
		report.Loss = loss
		report.Losses = append(report.Losses, loss)
		if cfg.OnEpoch != nil {
			cfg.OnEpoch(epoch, loss)
		}
	}
	return report, nil
}

// trainBatch splits batch into contiguous chunks, one per worker, and
// returns the summed loss.
func (n *Network) trainBatch(ctx context.Context, samples []Sample, batch []int, workers []*worker) (float64, error) {
	active := min(len(workers), len(batch))
	chunk := (len(batch) + active - 1) / active

	for _, w := range workers {
		w.reset()
	}

	g, gctx := errgroup.WithContext(ctx)
	for wi := 0; wi < active; wi++ {
		w := workers[wi]
		lo := wi * chunk
		hi := min(lo+chunk, len(batch))
		if lo >= hi {
			continue
		}
		g.Go(func() error {
			for _, idx := range batch[lo:hi] {
				if err := gctx.Err(); err != nil {
					return err
				}
				n.backprop(w, &samples[idx])
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return 0, err
	}

	var loss float64
	for _, w := range workers[:active] {
		loss += w.loss
	}
	return loss, nil
}

func (n *Network) backprop(w *worker, s *Sample) {
	out := n.forward(w.acts, s.Input)
	last := len(n.layers) - 1
	scale := 1 / float64(len(out))

	// dL/dout for the output-averaged cost.
	grad := w.grad
	for i, p := range out {
		w.loss += n.cost.Cost(p, s.Target[i]) * scale
		grad[i] = n.cost.CostPrime(p, s.Target[i]) * scale
	}
	if n.topology.Softmax {
		softmaxBackward(w.delta[last], out, grad)
	} else {
		for i := range grad {
			w.delta[last][i] = grad[i] * n.layers[last].activation.SigmaPrime(w.acts.z[last][i])
		}
	}

	for i := last; i >= 0; i-- {
		l := n.layers[i]
		input := n.layerInput(w.acts, s.Input, i)
		var inErr []float64
		if i > 0 {
			inErr = w.err[i]
		}
		l.backward(input, w.delta[i], inErr, w.wGrad[i], w.bGrad[i])
		if i > 0 {
			prev := n.layers[i-1]
			for j := range w.delta[i-1] {
				w.delta[i-1][j] = inErr[j] * prev.activation.SigmaPrime(w.acts.z[i-1][j])
			}
		}
	}
}

// applyGradients merges worker gradients in worker order, averages them over
// the batch and takes one optimizer step.
func (n *Network) applyGradients(workers []*worker, batchLen int, opt *Adam) {
	scale := 1 / float64(batchLen)
	for i, l := range n.layers {
		for _, w := range workers {
			l.wGradients.Accumulate(w.wGrad[i], scale)
			l.bGradients.Accumulate(w.bGrad[i], scale)
		}
	}
	opt.Step()
	for _, l := range n.layers {
		l.applyGradients(opt)
	}
}
