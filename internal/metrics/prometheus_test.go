package metrics

import (
	"context"
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestPrometheusHandlerServeHTTP(t *testing.T) {
	collector := NewCollector()
	collector.FrameOK()
	collector.MacInvalid()

	handler := NewPrometheusHandler(collector)

	req := httptest.NewRequest("GET", "/metrics", nil)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	resp := w.Result()
	body, _ := io.ReadAll(resp.Body)
	bodyStr := string(body)

	if !strings.Contains(bodyStr, "sleipnir_frames_ok_total 1") {
		t.Errorf("expected frames_ok_total=1 in output, got:\n%s", bodyStr)
	}
	if !strings.Contains(bodyStr, "sleipnir_mac_invalid_total 1") {
		t.Errorf("expected mac_invalid_total=1 in output, got:\n%s", bodyStr)
	}
	if !strings.Contains(bodyStr, "# HELP") || !strings.Contains(bodyStr, "# TYPE") {
		t.Errorf("expected Prometheus HELP/TYPE comments in output")
	}
}

func TestPrometheusServerDisabledIsNoop(t *testing.T) {
	server := NewPrometheusServer(PrometheusConfig{Enabled: false}, NewCollector(), nil)
	if err := server.Start(context.Background()); err != nil {
		t.Fatalf("expected disabled server Start to return nil, got %v", err)
	}
}

func TestPrometheusServerStartStop(t *testing.T) {
	server := NewPrometheusServer(PrometheusConfig{Enabled: true, Port: 0, Path: "/metrics"}, NewCollector(), nil)

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- server.Start(ctx) }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-errCh:
		if err != nil && err != context.Canceled {
			t.Fatalf("unexpected error from Start: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for server shutdown")
	}
}
