package engine

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Runner paces a Model in real time: one day per Interval, scaled by Speed.
// All access to the model while the runner is live goes through Do, and
// Speed is changed with SetSpeed.
type Runner struct {
	Speed    float64       // Multiplier: 1.0 = real-time, 0 = paused
	Interval time.Duration // Wall time per simulated day at Speed 1
	MaxDays  int           // Stop after this many days; 0 runs until cancelled

	// Callbacks run after every completed day, under the runner lock.
	OnDay []func(s Summary, f Frame)

	mu    sync.Mutex
	model Model
}

// NewRunner creates a runner over m at one day per second.
func NewRunner(m Model) *Runner {
	return &Runner{
		Speed:    1.0,
		Interval: time.Second,
		model:    m,
	}
}

// Do runs fn with exclusive access to the model.
func (r *Runner) Do(fn func(m Model)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	fn(r.model)
}

// SetSpeed changes the pacing multiplier; 0 pauses.
func (r *Runner) SetSpeed(speed float64) {
	r.mu.Lock()
	r.Speed = speed
	r.mu.Unlock()
}

// CurrentSpeed returns the pacing multiplier.
func (r *Runner) CurrentSpeed() float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.Speed
}

// Advance steps the model days times immediately, outside the pacing loop.
// It returns the summary after the last step.
func (r *Runner) Advance(days int) Summary {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := 0; i < days; i++ {
		r.step()
	}
	return r.model.Summary()
}

// Run steps the model until ctx is cancelled or MaxDays is reached.
func (r *Runner) Run(ctx context.Context) error {
	slog.Info("runner started", "model", r.model.Kind(), "day", r.model.Day(), "speed", r.Speed)
	defer func() {
		r.mu.Lock()
		day := r.model.Day()
		r.mu.Unlock()
		slog.Info("runner stopped", "model", r.model.Kind(), "day", day)
	}()

	for days := 0; r.MaxDays == 0 || days < r.MaxDays; {
		r.mu.Lock()
		speed := r.Speed
		r.mu.Unlock()
		if speed <= 0 {
			// Paused: check again shortly.
			if err := sleep(ctx, 100*time.Millisecond); err != nil {
				return err
			}
			continue
		}

		start := time.Now()
		r.mu.Lock()
		r.step()
		r.mu.Unlock()
		days++

		target := time.Duration(float64(r.Interval) / speed)
		if err := sleep(ctx, target-time.Since(start)); err != nil {
			return err
		}
	}
	return nil
}

// step advances one day and fires callbacks. Caller holds mu.
func (r *Runner) step() {
	r.model.Step()
	if len(r.OnDay) == 0 {
		return
	}
	s, f := r.model.Summary(), r.model.Frame()
	for _, fn := range r.OnDay {
		fn(s, f)
	}
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
