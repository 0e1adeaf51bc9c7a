package metrics

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/sleipnir-radio/sleipnir/internal/logging"
)

// PrometheusConfig holds the metrics HTTP server's settings.
type PrometheusConfig struct {
	Enabled bool
	Port    int
	Path    string
}

// PrometheusHandler renders a Collector's Snapshot as Prometheus text
// exposition format.
type PrometheusHandler struct {
	collector *Collector
}

// NewPrometheusHandler creates a handler for collector.
func NewPrometheusHandler(collector *Collector) *PrometheusHandler {
	return &PrometheusHandler{collector: collector}
}

func (h *PrometheusHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; version=0.0.4")

	snap := h.collector.Snapshot()
	var out strings.Builder

	writeCounter := func(name, help string, value uint64) {
		out.WriteString(fmt.Sprintf("# HELP %s %s\n", name, help))
		out.WriteString(fmt.Sprintf("# TYPE %s counter\n", name))
		out.WriteString(fmt.Sprintf("%s %d\n", name, value))
	}

	writeCounter("sleipnir_frames_ok_total", "Frames delivered without error", snap.FramesOK)
	writeCounter("sleipnir_mac_invalid_total", "Frames dropped for MAC failure", snap.MacInvalid)
	writeCounter("sleipnir_frame_corrupt_total", "Frames dropped for tag-parse failure", snap.FrameCorrupt)
	writeCounter("sleipnir_signature_invalid_total", "Superframes with a failed auth-frame signature", snap.SignatureInvalid)
	writeCounter("sleipnir_sync_acquired_total", "Sync acquisition events", snap.SyncAcquired)
	writeCounter("sleipnir_sync_lost_total", "Sync loss events", snap.SyncLost)
	writeCounter("sleipnir_decoder_diverged_total", "LDPC decodes that failed to converge", snap.DecoderDiverged)
	writeCounter("sleipnir_superframes_sent_total", "Superframes completed on TX", snap.SuperframesSent)
	writeCounter("sleipnir_superframes_received_total", "Superframes flushed on RX", snap.SuperframesRecv)
	writeCounter("sleipnir_reassembly_timeout_total", "Fragment sets discarded on reassembly timeout", snap.ReassemblyTimeout)

	_, _ = w.Write([]byte(out.String()))
}

// PrometheusServer serves a PrometheusHandler over HTTP.
type PrometheusServer struct {
	config    PrometheusConfig
	collector *Collector
	log       *logging.Logger
	server    *http.Server
	closeOnce sync.Once
}

// NewPrometheusServer constructs a metrics server for config/collector.
func NewPrometheusServer(config PrometheusConfig, collector *Collector, log *logging.Logger) *PrometheusServer {
	if log == nil {
		log = logging.New(logging.Config{Level: "info"})
	}
	return &PrometheusServer{
		config:    config,
		collector: collector,
		log:       log.WithComponent("metrics"),
	}
}

// Start binds the metrics listener and serves until ctx is cancelled, Stop
// is called, or serving fails outright. It is a no-op returning nil if the
// server is disabled, matching the teacher's Enabled-guarded Start methods
// throughout pkg/metrics, pkg/mqtt.
//
// Unlike a single select on a done channel and an error channel, shutdown
// here is driven entirely through Stop: a watcher goroutine calls Stop as
// soon as ctx is cancelled, and Start itself just blocks on Serve and turns
// its outcome into a return value. That makes Stop safe to call from
// anywhere (ctx cancellation, a direct caller, both at once) without a
// second shutdown path to keep in sync.
func (s *PrometheusServer) Start(ctx context.Context) error {
	if !s.config.Enabled {
		s.log.Info("metrics server disabled")
		return nil
	}

	addr := fmt.Sprintf(":%d", s.config.Port)
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("metrics: listen on %s: %w", addr, err)
	}
	boundPort := listener.Addr().(*net.TCPAddr).Port

	mux := http.NewServeMux()
	mux.Handle(s.config.Path, NewPrometheusHandler(s.collector))
	s.server = &http.Server{Handler: mux}

	s.log.Info("starting metrics server", logging.Int("port", boundPort), logging.String("path", s.config.Path))

	watcherDone := make(chan struct{})
	defer close(watcherDone)
	go func() {
		select {
		case <-ctx.Done():
			s.log.Info("shutting down metrics server")
			s.Stop()
		case <-watcherDone:
		}
	}()

	if err := s.server.Serve(listener); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("metrics: serve: %w", err)
	}
	return ctx.Err()
}

// Stop shuts down the metrics server, if one is running. Safe to call more
// than once; only the first call performs the shutdown, so a direct call
// racing the ctx-driven shutdown in Start never double-closes the listener.
func (s *PrometheusServer) Stop() {
	if s.server == nil {
		return
	}
	s.closeOnce.Do(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.server.Shutdown(ctx)
	})
}
