package app

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/dokzlo13/huestream/internal/config"
	"github.com/dokzlo13/huestream/internal/ledger"
	"github.com/dokzlo13/huestream/internal/stream"
)

// StatusService provides HTTP health and streaming status endpoints.
type StatusService struct {
	cfg    *config.Config
	svc    *StreamService
	ledger *ledger.Ledger // nil when no database is configured
	server *http.Server
}

// NewStatusService creates a new StatusService.
func NewStatusService(cfg *config.Config, streamSvc *StreamService, l *ledger.Ledger) *StatusService {
	return &StatusService{
		cfg:    cfg,
		svc:    streamSvc,
		ledger: l,
	}
}

// Start begins the status server if enabled.
func (s *StatusService) Start(ctx context.Context) {
	if !s.cfg.Status.Enabled {
		return
	}

	go s.run(ctx)
}

// Handler returns the HTTP routes of the status server.
func (s *StatusService) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
	})

	// Ready only while frames can actually be sent
	mux.HandleFunc("/ready", func(w http.ResponseWriter, r *http.Request) {
		state := s.svc.Controller.State()
		code := http.StatusOK
		if state != stream.StateActive {
			code = http.StatusServiceUnavailable
		}
		writeJSON(w, code, map[string]string{"status": state.String()})
	})

	// /status?session=<id> returns the full history of one session instead of the recent tail
	mux.HandleFunc("/status", func(w http.ResponseWriter, r *http.Request) {
		resp := map[string]any{"stream": s.svc.Controller.Stats()}
		if s.svc.Effect != nil {
			resp["effect"] = map[string]any{
				"script": s.cfg.Effect.Script,
				"ticks":  s.svc.Effect.Ticks(),
			}
		}

		if s.ledger != nil {
			var (
				entries []*ledger.Entry
				err     error
			)
			if session := r.URL.Query().Get("session"); session != "" {
				entries, err = s.ledger.BySession(session)
			} else {
				entries, err = s.ledger.Recent(20)
			}
			if err != nil {
				log.Warn().Err(err).Msg("Failed to read stream ledger")
				writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
				return
			}
			resp["history"] = entries
		}
		writeJSON(w, http.StatusOK, resp)
	})

	return mux
}

func (s *StatusService) run(ctx context.Context) {
	addr := fmt.Sprintf("%s:%d", s.cfg.Status.Host, s.cfg.Status.Port)

	s.server = &http.Server{
		Addr:    addr,
		Handler: s.Handler(),
	}

	log.Info().Str("addr", addr).Msg("Starting status server")

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout.Duration())
		defer cancel()
		if err := s.server.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("Status server shutdown error")
		}
	}()

	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Error().Err(err).Msg("Status server error")
	}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Debug().Err(err).Msg("Failed to write status response")
	}
}
