package cli

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/mchmarny/leadpulse/pkg/config"
	"github.com/mchmarny/leadpulse/pkg/risk"
	"github.com/urfave/cli/v3"
)

const (
	serverShutdownWaitSeconds = 5
	serverTimeoutSeconds      = 300
	serverMaxHeaderBytes      = 20
	serverPortDefault         = 8080

	portFlagName = "port"
)

func serverCmd() *cli.Command {
	return &cli.Command{
		Name:    "server",
		Aliases: []string{"serve"},
		Usage:   "Start local JSON API server",
		Action:  cmdStartServer,
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:  portFlagName,
				Usage: "Port on which the server will listen",
				Value: serverPortDefault,
			},
		},
	}
}

// server holds the snapshot store and the one churn model it serves.
type server struct {
	db   *sql.DB
	conf *config.Config

	mu    sync.RWMutex
	model *risk.Model
}

func newServer(db *sql.DB, conf *config.Config) *server {
	return &server{db: db, conf: conf}
}

// currentModel returns the served model or nil when none was trained.
func (s *server) currentModel() *risk.Model {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.model
}

// retrain fits a new model on the current snapshot and swaps it in.
// The previous model keeps serving when training fails.
func (s *server) retrain() (*risk.Model, error) {
	m, err := trainModel(s.db)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.model = m
	s.mu.Unlock()

	slog.Info("model trained", "fingerprint", m.Fingerprint, "records", m.TrainedOn)
	return m, nil
}

func cmdStartServer(ctx context.Context, cmd *cli.Command) error {
	cfg := getConfig(cmd)
	port := int(cmd.Int(portFlagName))
	address := fmt.Sprintf("127.0.0.1:%d", port)

	srv := newServer(cfg.DB, cfg.Config)
	if _, err := srv.retrain(); err != nil {
		slog.Warn("serving without a model until retrained", "error", err)
	}

	s := &http.Server{
		Addr:           address,
		Handler:        srv.routes(),
		ReadTimeout:    serverTimeoutSeconds * time.Second,
		WriteTimeout:   serverTimeoutSeconds * time.Second,
		MaxHeaderBytes: 1 << serverMaxHeaderBytes,
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		if err := s.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	slog.Info("server started", "address", fmt.Sprintf("http://%s", address))

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("error starting server: %w", err)
		}
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), serverShutdownWaitSeconds*time.Second)
	defer cancel()

	if err := s.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("error shutting down server", "error", err)
	}
	return nil
}

func (s *server) routes() *http.ServeMux {
	mux := http.NewServeMux()

	// Snapshot API
	mux.HandleFunc("GET /data/summary", s.summaryAPIHandler)
	mux.HandleFunc("GET /data/leads", s.leadsAPIHandler)
	mux.HandleFunc("GET /data/platforms", s.platformsAPIHandler)
	mux.HandleFunc("GET /data/insights/{kind}", s.insightsAPIHandler)
	mux.HandleFunc("GET /data/report.xlsx", s.reportAPIHandler)

	// Model API
	mux.HandleFunc("POST /data/score", s.scoreAPIHandler)
	mux.HandleFunc("GET /data/importance", s.importanceAPIHandler)
	mux.HandleFunc("POST /data/model/retrain", s.retrainAPIHandler)

	// Experiment API
	mux.HandleFunc("GET /data/power/sample-size", s.sampleSizeAPIHandler)
	mux.HandleFunc("GET /data/power/observed", s.observedPowerAPIHandler)

	return mux
}
