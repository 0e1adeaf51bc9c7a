// Command sleipnir-rx is the receive-side process entry point: it loads
// the engine configuration, builds a session and SuperframeParser, and
// drives the pipeline harness until a shutdown signal arrives. Grounded,
// like sleipnir-tx, on the teacher's cmd/dmr-nexus/main.go wiring idiom.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/sleipnir-radio/sleipnir/internal/bus"
	"github.com/sleipnir-radio/sleipnir/internal/config"
	"github.com/sleipnir-radio/sleipnir/internal/crypto"
	"github.com/sleipnir-radio/sleipnir/internal/keystore"
	"github.com/sleipnir-radio/sleipnir/internal/ldpc"
	"github.com/sleipnir-radio/sleipnir/internal/logging"
	"github.com/sleipnir-radio/sleipnir/internal/metrics"
	"github.com/sleipnir-radio/sleipnir/internal/monitor"
	"github.com/sleipnir-radio/sleipnir/internal/pipeline"
	"github.com/sleipnir-radio/sleipnir/internal/session"
	"github.com/sleipnir-radio/sleipnir/internal/superframe"
	"github.com/sleipnir-radio/sleipnir/internal/telemetry"
)

var (
	version   = "dev"
	gitCommit = "unknown"
	buildTime = "unknown"
)

func main() {
	configFile := flag.String("config", "", "path to the sleipnir config file (defaults to ./sleipnir.yaml)")
	showVersion := flag.Bool("version", false, "show version information")
	flag.Parse()

	if *showVersion {
		fmt.Printf("sleipnir-rx %s\n", version)
		fmt.Printf("Git Commit: %s\n", gitCommit)
		fmt.Printf("Built: %s\n", buildTime)
		os.Exit(0)
	}

	log := logging.New(logging.Config{Level: "info"})
	log.Info("starting sleipnir-rx",
		logging.String("version", version),
		logging.String("commit", gitCommit),
		logging.String("build_time", buildTime))

	cfg, err := config.Load(*configFile)
	if err != nil {
		log.Error("failed to load configuration", logging.Error(err))
		os.Exit(1)
	}
	log = logging.New(logging.Config{Level: cfg.Logging.Level})

	if cfg.Waveform.LocalCallsign == "" {
		log.Error("waveform.local_callsign is required")
		os.Exit(1)
	}

	authMatrix, err := ldpc.LoadAList(cfg.Waveform.LdpcAuthPath)
	if err != nil {
		log.Error("failed to load auth LDPC matrix", logging.Error(err))
		os.Exit(1)
	}
	voiceMatrix, err := ldpc.LoadAList(cfg.Waveform.LdpcVoicePath)
	if err != nil {
		log.Error("failed to load voice LDPC matrix", logging.Error(err))
		os.Exit(1)
	}

	sess := session.New(cfg.Waveform.LocalCallsign)
	sess.SetLifecycle(session.LifecycleRunning)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	var wg sync.WaitGroup
	collector := metrics.NewCollector()

	if cfg.Metrics.Enabled {
		server := metrics.NewPrometheusServer(
			metrics.PrometheusConfig{Enabled: true, Port: cfg.Metrics.Port, Path: cfg.Metrics.Path},
			collector, log.WithComponent("metrics"))
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := server.Start(ctx); err != nil && err != context.Canceled {
				log.Error("prometheus metrics server error", logging.Error(err))
			}
		}()
		log.Info("prometheus metrics server started", logging.Int("port", cfg.Metrics.Port))
	}

	var monitorHub *monitor.Hub
	if cfg.Monitor.Enabled {
		monitorHub = monitor.NewHub(log.WithComponent("monitor"))
		wg.Add(1)
		go func() {
			defer wg.Done()
			monitorHub.Run(ctx)
		}()
		log.Info("status monitor hub started", logging.Int("port", cfg.Monitor.Port))
	}

	var telemetryPub *telemetry.Publisher
	if cfg.Telemetry.Enabled {
		telemetryPub = telemetry.New(telemetry.Config{
			Enabled:     true,
			Broker:      cfg.Telemetry.Broker,
			TopicPrefix: cfg.Telemetry.TopicPrefix,
			ClientID:    cfg.Telemetry.ClientID,
		}, log.WithComponent("telemetry"))
		if err := telemetryPub.Start(ctx); err != nil {
			log.Error("telemetry publisher failed to start", logging.Error(err))
		}
	}

	if cfg.Keystore.Enabled {
		store, err := keystore.Open(keystore.Config{Path: cfg.Keystore.Path}, log.WithComponent("keystore"))
		if err != nil {
			log.Error("failed to open keystore", logging.Error(err))
			os.Exit(1)
		}
		defer store.Close()
		log.Info("keystore opened", logging.String("path", cfg.Keystore.Path))

		// Recipient filter: keystore membership. superframe.Parser does not
		// call Session.Accepts, so the filter affects neither decoding nor
		// delivery. See DESIGN.md for why this is an RX policy, not a
		// signature-verification substitute.
		sess.Recipients = func(callsign string) bool {
			return store.Known(callsign)
		}
	}

	b := bus.New()
	nonceReg := crypto.NewNonceRegistry()
	parser := superframe.NewParser(sess, authMatrix, voiceMatrix, b, cfg.Waveform.RequireSignatures, false, cfg.Waveform.RequireSignatures, nonceReg)
	parser.MaxDecodeIters = cfg.Waveform.MaxDecodeIters

	engine := pipeline.NewEngine(b, noopCodec{log: log}, noopChannel{log: log}, pipeline.Observers{
		Metrics:   collector,
		Monitor:   monitorHub,
		Telemetry: telemetryPub,
	}, log.WithComponent("pipeline"))

	log.Info("sleipnir-rx initialized", logging.String("callsign", cfg.Waveform.LocalCallsign))

	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := engine.RunRX(ctx, parser); err != nil && err != context.Canceled {
			log.Error("pipeline error", logging.Error(err))
		}
	}()

	sig := <-sigCh
	log.Info("received shutdown signal", logging.String("signal", sig.String()))
	cancel()
	if telemetryPub != nil {
		telemetryPub.Stop()
	}
	wg.Wait()
	log.Info("sleipnir-rx stopped")
}

// noopCodec is a placeholder AudioCodec: a real deployment supplies an
// Opus encoder/decoder (spec §6's excluded audio-codec collaborator).
type noopCodec struct{ log *logging.Logger }

func (noopCodec) EncodeNext(ctx context.Context) (bus.OpusFrame, bool, error) {
	<-ctx.Done()
	return bus.OpusFrame{}, false, ctx.Err()
}

func (c noopCodec) DecodeFrame(ctx context.Context, frame bus.OpusFrame) error {
	c.log.Debug("discarding decoded audio frame: no audio codec wired in")
	return nil
}

// noopChannel is a placeholder BitChannel: a real deployment supplies the
// FSK modulator/demodulator (spec §6's excluded bit-channel collaborator).
type noopChannel struct{ log *logging.Logger }

func (c noopChannel) Transmit(ctx context.Context, codeword []byte) error {
	c.log.Debug("discarding codeword: no bit channel wired in")
	return nil
}

func (noopChannel) ReceiveCodeword(ctx context.Context) ([]byte, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}
