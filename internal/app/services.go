package app

import (
	"context"

	"github.com/rs/zerolog/log"

	"github.com/dokzlo13/huestream/internal/config"
	"github.com/dokzlo13/huestream/internal/db"
	"github.com/dokzlo13/huestream/internal/eventbus"
	"github.com/dokzlo13/huestream/internal/hue"
	"github.com/dokzlo13/huestream/internal/ledger"
)

// Services is a container for all application services.
// It manages service initialization order and dependencies.
type Services struct {
	cfg *config.Config

	// Core infrastructure (DB and Ledger are nil without database.path)
	DB     *db.DB
	Ledger *ledger.Ledger
	Bus    *eventbus.Bus

	// Bridge access
	Client    *hue.Client
	Inspector *hue.GroupInspector

	// High-level services
	Stream *StreamService
	Status *StatusService
}

// NewServices creates all services with proper dependency injection.
func NewServices(cfg *config.Config) (*Services, error) {
	s := &Services{cfg: cfg}

	if cfg.Database.Path != "" {
		database, err := db.Open(cfg.Database.Path)
		if err != nil {
			return nil, err
		}
		s.DB = database
		s.Ledger = ledger.New(database.DB)
	} else {
		log.Debug().Msg("No database path configured, stream ledger disabled")
	}

	s.Client = hue.NewClient(cfg.Bridge.Address, cfg.Bridge.Username, cfg.Bridge.Timeout.Duration())
	s.Inspector = hue.NewGroupInspector(cfg.Bridge.Address, cfg.Bridge.Username, hue.NewGroupCache(cfg.Bridge.CacheTTL.Duration()))

	var err error
	s.Stream, err = NewStreamService(cfg, s.Client, s.Inspector)
	if err != nil {
		s.Close()
		return nil, err
	}
	// Ledger writes hit SQLite; keep them off the controller's goroutine.
	if s.Ledger != nil {
		s.Bus = eventbus.New()
		s.Bus.Subscribe(s.Ledger.Observer())
		s.Stream.Controller.OnStateChange(s.Bus.Publish)
	}

	s.Status = NewStatusService(cfg, s.Stream, s.Ledger)

	return s, nil
}

// Start connects to the bridge, enables streaming and starts background services.
// The onFatalError callback is called when a background service cannot continue.
func (s *Services) Start(ctx context.Context, onFatalError func(error)) error {
	if err := s.Client.Connect(ctx); err != nil {
		return err
	}

	// Ledger cleanup (if ledger is enabled)
	if s.Ledger != nil {
		go s.Ledger.RunRetention(ctx, s.cfg.Database.Retention.Duration(), s.cfg.Database.RetentionInterval.Duration())
	}

	// Status comes up first so a failing enable is still observable.
	s.Status.Start(ctx)

	if err := s.Stream.Start(ctx); err != nil {
		return err
	}
	s.Stream.StartBackground(ctx, onFatalError)

	return nil
}

// Stop gracefully stops all services.
func (s *Services) Stop() error {
	s.Close()
	return nil
}

// Close releases all resources. Streaming is disabled and the bus drained before the
// database closes so the final transitions still reach the ledger.
func (s *Services) Close() {
	if s.Stream != nil {
		s.Stream.Close()
	}
	if s.Client != nil {
		s.Client.Close()
	}
	if s.Bus != nil {
		ctx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout.Duration())
		s.Bus.Close(ctx)
		cancel()
	}
	if s.DB != nil {
		s.DB.Close()
	}
}
