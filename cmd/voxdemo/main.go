// Command voxdemo exercises the transceiver element end to end: it reads
// from the host microphone, pushes frames through a transceiver.Element
// dialed at a locally-run simulated AI voice bridge (internal/wsserver +
// internal/remoteai), and plays whatever comes back over the speakers —
// the round trip spec.md §8's scenarios describe, grounded on the
// teacher's own cmd/local and cmd/microphone_client demo programs.
package main

import (
	"bytes"
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
	"github.com/sashabaranov/go-openai"
	"gopkg.in/yaml.v3"

	"github.com/wsvoicebridge/voxstream/internal/logging"
	"github.com/wsvoicebridge/voxstream/internal/remoteai"
	"github.com/wsvoicebridge/voxstream/internal/wsserver"
	"github.com/wsvoicebridge/voxstream/pkg/agent"
	"github.com/wsvoicebridge/voxstream/pkg/audioio"
	"github.com/wsvoicebridge/voxstream/pkg/models"
	"github.com/wsvoicebridge/voxstream/pkg/synthesizer"
	"github.com/wsvoicebridge/voxstream/pkg/transceiver"
	"github.com/wsvoicebridge/voxstream/pkg/transcriber"
)

// demoConfig is voxdemo's own YAML shape; it is not the transceiver's
// wire config, it is what builds one (spec §6's properties, plus the
// demo's own listen addresses).
type demoConfig struct {
	RemoteURI               string `yaml:"remote_uri"` // empty => use the built-in simulated remote
	ListenAddr              string `yaml:"listen_addr"`
	MetricsAddr             string `yaml:"metrics_addr"`
	SampleRate              uint   `yaml:"sample_rate"`
	Channels                uint   `yaml:"channels"`
	FrameDurationMs         uint   `yaml:"frame_duration_ms"`
	MaxQueueSize            uint   `yaml:"max_queue_size"`
	InitialBufferCount      uint   `yaml:"initial_buffer_count"`
	ReconnectEnabled        bool   `yaml:"reconnect_enabled"`
	InitialReconnectDelayMs uint   `yaml:"initial_reconnect_delay_ms"`
	MaxBackoffMs            uint   `yaml:"max_backoff_ms"`
	MaxReconnects           uint   `yaml:"max_reconnects"`
}

func defaultDemoConfig() demoConfig {
	base := transceiver.DefaultConfig()
	return demoConfig{
		ListenAddr:              ":8089",
		MetricsAddr:             ":9090",
		SampleRate:              base.SampleRate,
		Channels:                base.Channels,
		FrameDurationMs:         base.FrameDurationMs,
		MaxQueueSize:            base.MaxQueueSize,
		InitialBufferCount:      base.InitialBufferCount,
		ReconnectEnabled:        base.ReconnectEnabled,
		InitialReconnectDelayMs: base.InitialReconnectDelayMs,
		MaxBackoffMs:            base.MaxBackoffMs,
		MaxReconnects:           base.MaxReconnects,
	}
}

func loadDemoConfig(path string) demoConfig {
	cfg := defaultDemoConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		log.Warn().Err(err).Str("path", path).Msg("voxdemo: no config file, using defaults")
		return cfg
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		log.Fatal().Err(err).Str("path", path).Msg("voxdemo: cannot parse config")
	}
	return cfg
}

func (c demoConfig) toTransceiverConfig(uri string) transceiver.Config {
	return transceiver.Config{
		URI:                     uri,
		SampleRate:              c.SampleRate,
		Channels:                c.Channels,
		FrameDurationMs:         c.FrameDurationMs,
		MaxQueueSize:            c.MaxQueueSize,
		InitialBufferCount:      c.InitialBufferCount,
		ReconnectEnabled:        c.ReconnectEnabled,
		InitialReconnectDelayMs: c.InitialReconnectDelayMs,
		MaxBackoffMs:            c.MaxBackoffMs,
		MaxReconnects:           c.MaxReconnects,
	}
}

func main() {
	configPath := flag.String("config", "voxdemo.yaml", "path to voxdemo YAML config")
	flag.Parse()

	logging.Setup(os.Getenv("VOXDEMO_LOG_LEVEL"))
	if err := godotenv.Load(); err != nil {
		log.Debug().Err(err).Msg("voxdemo: no .env file found, continuing with process environment")
	}

	cfg := loadDemoConfig(*configPath)

	registry := prometheus.NewRegistry()
	metrics := transceiver.NewMetrics(registry)
	go serveMetrics(cfg.MetricsAddr, registry)

	remoteURI := cfg.RemoteURI
	if remoteURI == "" {
		remoteURI = "ws://127.0.0.1" + cfg.ListenAddr + "/ws"
		go serveSimulatedRemote(cfg)
		time.Sleep(200 * time.Millisecond) // give the listener a moment before we dial it
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	clock := transceiver.NewSystemClock()
	source := newSpeakerSource(ctx, cfg, clock)
	element := transceiver.New(cfg.toTransceiverConfig(remoteURI), clock, source, metrics, log.Logger)

	if err := element.SetState(transceiver.StatePaused); err != nil {
		log.Fatal().Err(err).Msg("voxdemo: cannot activate element")
	}
	if _, err := element.HandleCaps(transceiver.FormatPCMS16LE, cfg.SampleRate, cfg.Channels); err != nil {
		log.Fatal().Err(err).Msg("voxdemo: cannot negotiate caps")
	}

	stopMic := startMicrophoneFeed(ctx, element, cfg, clock)

	<-ctx.Done()

	log.Info().Msg("voxdemo: shutting down")
	stopMic()
	_ = element.SetState(transceiver.StateInactive)
}

func serveMetrics(addr string, reg *prometheus.Registry) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	log.Info().Str("addr", addr).Msg("voxdemo: metrics endpoint listening")
	if err := http.ListenAndServe(addr, mux); err != nil {
		log.Error().Err(err).Msg("voxdemo: metrics server stopped")
	}
}

// serveSimulatedRemote runs the demo's stand-in AI voice bridge
// (internal/wsserver + internal/remoteai) so the element has somewhere to
// dial without needing a real provider API key wired end to end.
func serveSimulatedRemote(cfg demoConfig) {
	apiKey := os.Getenv("OPENAI_API_KEY")
	client := openai.NewClient(apiKey)

	handler := wsserver.NewHandler(func(streamID string) *remoteai.Session {
		return remoteai.NewSession(
			transcriber.NewOpenAIWhisper(client),
			agent.NewOpenAIChatAgent(client),
			synthesizer.NewOpenAITTS(apiKey),
			uint32(cfg.SampleRate),
			uint32(cfg.Channels),
			streamID,
		)
	})

	mux := http.NewServeMux()
	mux.Handle("/ws", handler)
	log.Info().Str("addr", cfg.ListenAddr).Msg("voxdemo: simulated remote listening")
	if err := http.ListenAndServe(cfg.ListenAddr, mux); err != nil {
		log.Error().Err(err).Msg("voxdemo: simulated remote stopped")
	}
}

// startMicrophoneFeed wires the host microphone into element.Chain and
// returns a function that stops recording. The microphone hands us
// wav-wrapped chunks (audio_utils.ConvertByteSamplesToWav, via
// microphone_client.go's maybeFlushBuffer); the element's sink treats
// payloads as opaque bytes, so those chunks are sent over Chain as-is.
func startMicrophoneFeed(ctx context.Context, element *transceiver.Element, cfg demoConfig, clock transceiver.Clock) func() {
	mic, err := audioio.NewMicrophone(clock, log.Logger)
	if err != nil {
		log.Error().Err(err).Msg("voxdemo: cannot open microphone, continuing without mic input")
		return func() {}
	}

	recordingChan := make(chan models.AudioData, 32)
	go func() {
		for audioData := range recordingChan {
			if err := element.Chain(audioData.ByteData); err != nil {
				log.Debug().Err(err).Msg("voxdemo: chain send failed")
			}
		}
	}()

	if err := mic.StartRecording(ctx, recordingChan, element.StreamID()); err != nil {
		log.Error().Err(err).Msg("voxdemo: cannot start recording")
	}

	return func() {
		if _, err := mic.StopRecording(); err != nil {
			log.Warn().Err(err).Msg("voxdemo: StopRecording failed")
		}
	}
}

func newSpeakerSource(ctx context.Context, cfg demoConfig, clock transceiver.Clock) *speakerSource {
	device, err := audioio.NewSpeakers(int(cfg.SampleRate), int(cfg.Channels), clock, log.Logger)
	if err != nil {
		log.Fatal().Err(err).Msg("voxdemo: cannot open speakers")
	}
	s := &speakerSource{ctx: ctx, device: device, queue: make(chan []byte, 32)}
	go s.playbackLoop()
	return s
}

// speakerSource adapts the teacher's audioio.OutputDevice (single-player,
// Play-then-Wait discipline from speakers_client.go) into a
// transceiver.SourcePort: frames are queued and played strictly in order,
// one at a time, since the device cannot overlap two players.
type speakerSource struct {
	ctx    context.Context
	device audioio.OutputDevice
	queue  chan []byte
}

func (s *speakerSource) PushEvent(e transceiver.Event) transceiver.PushResult {
	switch e.Kind {
	case transceiver.EventEOS:
		log.Info().Msg("voxdemo: source received eos")
	case transceiver.EventFlushStart:
		log.Debug().Msg("voxdemo: barge-in flush starting, dropping queued playback")
		s.drainQueue()
	}
	return transceiver.PushOK
}

func (s *speakerSource) PushBuffer(frame transceiver.AudioFrame) transceiver.PushResult {
	select {
	case s.queue <- frame.Data:
	default:
		log.Warn().Msg("voxdemo: playback queue full, dropping frame")
	}
	return transceiver.PushOK
}

func (s *speakerSource) drainQueue() {
	for {
		select {
		case <-s.queue:
		default:
			return
		}
	}
}

func (s *speakerSource) playbackLoop() {
	for data := range s.queue {
		wg, err := s.device.Play(s.ctx, bytes.NewReader(data))
		if err != nil {
			log.Warn().Err(err).Msg("voxdemo: playback failed, dropping frame")
			continue
		}
		if wg != nil {
			wg.Wait()
		}
	}
}
