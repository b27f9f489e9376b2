package stream

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"
)

// DefaultRate is the broadcast rate used when none is configured, in frames per second.
const DefaultRate = 25.0

// TickFunc runs before each flush with the time elapsed since the pump started.
type TickFunc func(ctx context.Context, elapsed time.Duration) error

// Pump flushes a controller at a bounded rate until its context ends.
// It is the caller-side cadence: the controller itself never flushes on its own.
type Pump struct {
	ctrl    *Controller
	cs      ColorSpace
	limiter *rate.Limiter
	before  []TickFunc
}

// NewPump creates a pump broadcasting at most fps frames per second.
func NewPump(ctrl *Controller, cs ColorSpace, fps float64) *Pump {
	if fps <= 0 {
		fps = DefaultRate
	}
	return &Pump{
		ctrl:    ctrl,
		cs:      cs,
		limiter: rate.NewLimiter(rate.Limit(fps), 1),
	}
}

// BeforeFlush registers fn to produce updates ahead of every flush.
func (p *Pump) BeforeFlush(fn TickFunc) {
	p.before = append(p.before, fn)
}

// Run ticks until ctx is done, then returns nil. Flush errors are logged and the loop
// keeps going: the next frame re-sends current state.
func (p *Pump) Run(ctx context.Context) error {
	start := time.Now()
	log.Info().Float64("fps", float64(p.limiter.Limit())).Str("color_space", p.cs.String()).Msg("Stream pump started")

	for {
		r := p.limiter.Reserve()
		timer := time.NewTimer(r.Delay())
		select {
		case <-ctx.Done():
			timer.Stop()
			r.Cancel()
			log.Debug().Msg("Stream pump stopped")
			return nil
		case <-timer.C:
		}

		elapsed := time.Since(start)
		for _, fn := range p.before {
			if err := fn(ctx, elapsed); err != nil {
				log.Warn().Err(err).Msg("Tick hook failed")
			}
		}

		if err := p.ctrl.Flush(p.cs); err != nil {
			var encErr *EncodingError
			if errors.As(err, &encErr) {
				log.Error().Err(err).Msg("Dropped unencodable frame")
			} else {
				log.Warn().Err(err).Msg("Frame send failed")
			}
		}
	}
}
