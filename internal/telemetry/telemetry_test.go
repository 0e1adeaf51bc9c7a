package telemetry

import (
	"context"
	"testing"

	"github.com/sleipnir-radio/sleipnir/internal/bus"
	"github.com/sleipnir-radio/sleipnir/internal/logging"
)

func TestPublisherDisabledIsNoop(t *testing.T) {
	p := New(Config{Enabled: false}, logging.New(logging.Config{Level: "error"}))
	if err := p.Start(context.Background()); err != nil {
		t.Fatalf("expected disabled Start to return nil, got %v", err)
	}
	if err := p.PublishStatus(bus.StatusEvent{Counter: 1, Kind: bus.StatusSyncAcquired}); err != nil {
		t.Fatalf("expected disabled PublishStatus to return nil, got %v", err)
	}
	p.Stop()
}

func TestPublisherEnabledStartLogsAndSucceeds(t *testing.T) {
	p := New(Config{Enabled: true, Broker: "tcp://localhost:1883", TopicPrefix: "sleipnir/net1", ClientID: "tx-1"},
		logging.New(logging.Config{Level: "error"}))
	if err := p.Start(context.Background()); err != nil {
		t.Fatalf("unexpected error from Start: %v", err)
	}
	if err := p.PublishStatus(bus.StatusEvent{Counter: 42, Kind: bus.StatusMacInvalid}); err != nil {
		t.Fatalf("unexpected error from PublishStatus: %v", err)
	}
	p.Stop()
}

func TestFormatTopicTrimsTrailingSlash(t *testing.T) {
	p := New(Config{TopicPrefix: "sleipnir/net1/"}, nil)
	if got := p.formatTopic("status"); got != "sleipnir/net1/status" {
		t.Fatalf("expected sleipnir/net1/status, got %q", got)
	}
}

func TestFormatTopicEmptyPrefix(t *testing.T) {
	p := New(Config{}, nil)
	if got := p.formatTopic("status"); got != "status" {
		t.Fatalf("expected bare suffix, got %q", got)
	}
}
