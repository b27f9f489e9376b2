package app

import (
	"context"
	"errors"

	"github.com/rs/zerolog/log"

	"github.com/dokzlo13/huestream/internal/config"
	"github.com/dokzlo13/huestream/internal/effect"
	"github.com/dokzlo13/huestream/internal/hue"
	"github.com/dokzlo13/huestream/internal/stream"
)

// StreamService wraps the streaming controller, its flush pump and the optional effect script.
type StreamService struct {
	cfg *config.Config

	Controller *stream.Controller
	Pump       *stream.Pump
	Effect     *effect.Runner
}

// NewStreamService creates the controller and pump without touching the network.
func NewStreamService(cfg *config.Config, client *hue.Client, inspector *hue.GroupInspector) (*StreamService, error) {
	var opts []stream.Option
	if cfg.Stream.ValidateGroup {
		opts = append(opts, stream.WithGroupChecker(inspector))
	}

	controller := stream.NewController(stream.ControllerConfig{
		GroupID: cfg.Stream.Group,
		Session: cfg.SessionConfig(),
	}, client, opts...)

	pump := stream.NewPump(controller, cfg.ColorSpace(), cfg.Stream.Rate)

	s := &StreamService{
		cfg:        cfg,
		Controller: controller,
		Pump:       pump,
	}

	if cfg.Effect.Script != "" {
		runner, err := effect.Load(cfg.Effect.Script, controller.Queue(), cfg.ColorSpace())
		if err != nil {
			return nil, err
		}
		pump.BeforeFlush(runner.Tick)
		s.Effect = runner
	}

	// The bridge flag changes on every transition; cached group info goes stale.
	controller.OnStateChange(func(change stream.StateChange) {
		if change.To == stream.StateActive || change.To == stream.StateDisabled {
			inspector.Invalidate(change.GroupID)
		}
	})

	return s, nil
}

// Start switches the group to streaming mode and opens the DTLS session.
func (s *StreamService) Start(ctx context.Context) error {
	if err := s.Controller.Enable(ctx); err != nil {
		return err
	}
	log.Info().
		Str("group", s.cfg.Stream.Group).
		Str("color_space", s.cfg.Stream.ColorSpace).
		Float64("rate", s.cfg.Stream.Rate).
		Msg("Streaming enabled")
	return nil
}

// StartBackground runs the flush pump until ctx is cancelled.
func (s *StreamService) StartBackground(ctx context.Context, onFatalError func(error)) {
	go func() {
		if err := s.Pump.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			log.Error().Err(err).Msg("Stream pump error")
			if onFatalError != nil {
				onFatalError(err)
			}
		}
	}()
}

// Close disables streaming, bounded by the shutdown timeout, and releases the effect VM.
func (s *StreamService) Close() {
	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout.Duration())
	defer cancel()

	if s.Controller.State() != stream.StateDisabled {
		if err := s.Controller.Disable(ctx); err != nil {
			log.Error().Err(err).Msg("Failed to disable streaming")
		}
	}
	if s.Effect != nil {
		s.Effect.Close()
	}

	st := s.Controller.Stats()
	log.Info().
		Uint64("frames", st.Frames).
		Uint64("bytes", st.Bytes).
		Uint64("send_errors", st.SendErrors).
		Msg("Streaming stopped")
}
