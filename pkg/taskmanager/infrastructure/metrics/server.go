package metrics

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	config "github.com/tigerroll/taskmanager/pkg/taskmanager/core/config"
	logger "github.com/tigerroll/taskmanager/pkg/taskmanager/support/util/logger"
)

// MetricsServer exposes a PrometheusRecorder over HTTP.
type MetricsServer struct {
	server   *http.Server
	listener net.Listener
}

// NewMetricsServer creates a server for recorder on cfg.ListenAddress and cfg.Path.
func NewMetricsServer(cfg config.PrometheusConfig, recorder *PrometheusRecorder) *MetricsServer {
	mux := http.NewServeMux()
	mux.Handle(cfg.Path, recorder.Handler())
	return &MetricsServer{
		server: &http.Server{Addr: cfg.ListenAddress, Handler: mux, ReadHeaderTimeout: 5 * time.Second},
	}
}

// Start binds the listen address and serves in the background.
func (s *MetricsServer) Start() error {
	ln, err := net.Listen("tcp", s.server.Addr)
	if err != nil {
		return err
	}
	s.listener = ln
	go func() {
		if err := s.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Errorf("Metrics server stopped: %v", err)
		}
	}()
	logger.Infof("Serving metrics on %s", ln.Addr())
	return nil
}

// Addr returns the bound address once started.
func (s *MetricsServer) Addr() string {
	if s.listener == nil {
		return s.server.Addr
	}
	return s.listener.Addr().String()
}

// Stop shuts the server down gracefully.
func (s *MetricsServer) Stop(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}
