// Package telemetry fans status events out to an optional external
// broker (spec §12's supplemental observability). Grounded directly on
// the teacher's pkg/mqtt/publisher.go, which is itself an honestly
// documented no-op stub pending a real client: no MQTT broker client
// exists anywhere in the retrieval pack to ground a real connection on,
// so Sleipnir reproduces the same shape rather than fabricating one.
package telemetry

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/sleipnir-radio/sleipnir/internal/bus"
	"github.com/sleipnir-radio/sleipnir/internal/logging"
)

// Config holds the external fan-out publisher's settings.
type Config struct {
	Enabled     bool
	Broker      string
	TopicPrefix string
	ClientID    string
}

// StatusEventMessage is the JSON envelope published for each status_out
// event.
type StatusEventMessage struct {
	bus.StatusEvent
	Timestamp time.Time `json:"timestamp"`
}

// Publisher fans status_out events out to an external broker.
type Publisher struct {
	config Config
	log    *logging.Logger
}

// New creates a Publisher for config.
func New(config Config, log *logging.Logger) *Publisher {
	if log == nil {
		log = logging.New(logging.Config{Level: "info"})
	}
	return &Publisher{config: config, log: log.WithComponent("telemetry")}
}

// Start starts the publisher. It is a documented no-op: Sleipnir has no
// broker client to connect with, matching the teacher's own mqtt.Publisher
// (pkg/mqtt/publisher.go).
func (p *Publisher) Start(ctx context.Context) error {
	if !p.config.Enabled {
		p.log.Info("telemetry publisher disabled")
		return nil
	}
	p.log.Info("starting telemetry publisher",
		logging.String("broker", p.config.Broker),
		logging.String("client_id", p.config.ClientID))
	// TODO: wire a real broker client (e.g. an MQTT or NATS publisher) once
	// one is selected; until then this confirms configuration and logs.
	p.log.Warn("telemetry broker connection not yet implemented - events will not be published")
	return nil
}

// Stop stops the publisher.
func (p *Publisher) Stop() {
	if !p.config.Enabled {
		return
	}
	p.log.Info("stopping telemetry publisher")
}

// PublishStatus publishes one status_out event (spec §4.7). It is a no-op
// when disabled, matching the teacher's Enabled-guarded publish methods.
func (p *Publisher) PublishStatus(ev bus.StatusEvent) error {
	if !p.config.Enabled {
		return nil
	}
	topic := p.formatTopic("status")
	msg := StatusEventMessage{StatusEvent: ev, Timestamp: time.Now()}
	payload, err := json.Marshal(msg)
	if err != nil {
		p.log.Error("failed to serialize status event", logging.String("topic", topic), logging.Error(err))
		return err
	}
	p.log.Debug("would publish telemetry event", logging.String("topic", topic), logging.Int("payload_size", len(payload)))
	return nil
}

func (p *Publisher) formatTopic(suffix string) string {
	prefix := strings.TrimSuffix(p.config.TopicPrefix, "/")
	if prefix == "" {
		return suffix
	}
	return fmt.Sprintf("%s/%s", prefix, suffix)
}
