package main

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/eytandecker/skytour/internal/config"
	"github.com/eytandecker/skytour/internal/dialogue"
	"github.com/eytandecker/skytour/internal/display"
	"github.com/eytandecker/skytour/internal/geo"
	"github.com/eytandecker/skytour/internal/intent"
	"github.com/eytandecker/skytour/internal/llm"
	internalmcp "github.com/eytandecker/skytour/internal/mcp"
	"github.com/eytandecker/skytour/internal/navigation"
	"github.com/eytandecker/skytour/internal/poi"
	"github.com/eytandecker/skytour/internal/relevance"
	"github.com/eytandecker/skytour/internal/simconnect"
	"github.com/eytandecker/skytour/internal/speech"
	"github.com/eytandecker/skytour/internal/telemetry"
	"github.com/eytandecker/skytour/internal/transcript"
	"github.com/eytandecker/skytour/internal/voice"
	"github.com/eytandecker/skytour/pkg/types"
)

// app holds the wired components.
type app struct {
	index     *poi.Index
	cell      *telemetry.Cell
	ingest    *telemetry.Ingest
	planner   *navigation.Planner
	publisher *transcript.Publisher
	machine   *voice.Machine
	monitor   *dialogue.Monitor
	display   *display.Server
	mcp       *internalmcp.Server

	closers []io.Closer
}

func (a *app) close() {
	for _, c := range a.closers {
		_ = c.Close()
	}
}

// build wires every component from cfg. Only a missing or invalid POI
// dataset is fatal; absent provider keys degrade to text-only operation.
func build(cfg config.Config, logger *slog.Logger) (*app, error) {
	a := &app{}

	pois, err := poi.Load(cfg.POI.Path)
	if err != nil {
		return nil, fmt.Errorf("load points of interest: %w", err)
	}
	a.index = poi.NewIndex(pois, cfg.POI.CellDegrees,
		poi.WithMatchThreshold(cfg.POI.MatchThreshold),
		poi.WithMatchCacheSize(cfg.POI.MatchCacheSize))

	a.cell = telemetry.NewCell(cfg.Telemetry.StaleThreshold)
	src, err := a.source(cfg, logger)
	if err != nil {
		return nil, err
	}
	a.ingest = telemetry.NewIngest(src, a.cell, telemetry.IngestConfig{
		Interval:       cfg.Telemetry.Interval,
		PollTimeout:    cfg.Telemetry.PollTimeout,
		StaleThreshold: cfg.Telemetry.StaleThreshold,
		MaxRetries:     cfg.Telemetry.MaxRetries,
		RetryBackoff:   cfg.Telemetry.RetryBackoff,
	}, logger)

	relCfg := relevance.DefaultConfig()
	relCfg.ConeHalfAngle = cfg.Relevance.ConeHalfAngle
	relCfg.WideConeHalfAngle = cfg.Relevance.WideConeHalfAngle
	relCfg.LoiterSpeed = cfg.Relevance.LoiterSpeedKt
	relCfg.OverheadNM = cfg.Relevance.OverheadNM
	relCfg.AltitudeRampFt = cfg.Relevance.AltitudeRampFt
	relCfg.ProactiveThreshold = cfg.Relevance.ProactiveThreshold
	relCfg.ResponsiveThreshold = cfg.Relevance.ResponsiveThreshold
	relCfg.ResponsiveLimit = cfg.Relevance.ResponsiveLimit
	relCfg.Cooldown = cfg.Relevance.Cooldown
	filter := relevance.NewFilter(a.index, relCfg)

	a.planner = navigation.NewPlanner(navigation.Config{
		ArrivalRadiusNM:   cfg.Navigation.ArrivalRadiusNM,
		OffCourseNM:       cfg.Navigation.OffCourseNM,
		OnCourseNM:        cfg.Navigation.OnCourseNM,
		ApproachLookahead: cfg.Navigation.ApproachLookahead,
		MinSpeedKt:        cfg.Navigation.MinSpeedKt,
	})

	completer := buildCompleter(cfg.LLM, logger)

	dlgCfg := dialogue.DefaultConfig()
	dlgCfg.ContextWindow = cfg.Voice.ContextWindow
	dlgCfg.CompletionTimeout = cfg.LLM.Timeout
	orch := dialogue.New(dlgCfg, dialogue.Deps{
		Position:  a.cell,
		Index:     a.index,
		Filter:    filter,
		Planner:   a.planner,
		Completer: completer,
		Switcher:  completer,
		Logger:    logger,
	})

	a.publisher = transcript.NewPublisher(transcript.DefaultBuffer, logger, transcript.NewLogSink(logger))

	stt, tts, player := a.speech(cfg.Speech, logger)
	voiceCfg := voice.DefaultConfig()
	voiceCfg.IdleTimeout = cfg.Voice.IdleTimeout
	voiceCfg.RecognitionTimeout = cfg.Voice.RecognitionTimeout
	voiceCfg.ResponseTimeout = cfg.Voice.ResponseTimeout
	voiceCfg.MaxRecognitionRetries = cfg.Voice.MaxRecognitionRetries
	voiceCfg.HistorySize = cfg.Voice.HistorySize
	voiceCfg.GuidanceMaxAge = cfg.Voice.GuidanceMaxAge
	a.machine = voice.New(voiceCfg, voice.Deps{
		Classifier:  intent.NewClassifier(intent.DefaultVocabulary()),
		Responder:   orch,
		Transcriber: stt,
		Synthesizer: tts,
		Player:      player,
		Transcript:  a.publisher,
		Logger:      logger,
	})

	a.monitor = dialogue.NewMonitor(a.cell, filter, a.planner, a.machine, logger)

	if cfg.Display.Enabled {
		hub := display.NewHub(a.machine, cfg.Display.HistorySize, logger)
		a.publisher.AddSink(hub)
		a.display = display.NewServer(cfg.Display.Addr, hub, a.status, logger)
	}
	if cfg.MCP.Enabled {
		a.mcp = internalmcp.NewServer(internalmcp.Deps{
			Position:  a.cell,
			Navigator: orch,
			Planner:   a.planner,
			Voice:     a.machine,
		})
	}
	return a, nil
}

func (a *app) source(cfg config.Config, logger *slog.Logger) (telemetry.Source, error) {
	switch cfg.Telemetry.Source {
	case config.SourceSimulated:
		return telemetry.NewSimulated(telemetry.SimulatedConfig{
			Start:       geo.Point{Latitude: cfg.Simulated.Latitude, Longitude: cfg.Simulated.Longitude},
			AltitudeAGL: cfg.Simulated.AltitudeAGL,
			Heading:     cfg.Simulated.Heading,
			GroundSpeed: cfg.Simulated.GroundSpeed,
			TurnRate:    cfg.Simulated.TurnRate,
		}), nil
	case config.SourceSimConnect:
		src := simconnect.NewSource(simconnect.NewClient(simconnect.Config{
			Host:    cfg.SimConnect.Host,
			Port:    cfg.SimConnect.Port,
			Timeout: cfg.SimConnect.Timeout,
			AppName: cfg.SimConnect.AppName,
		}), logger)
		a.closers = append(a.closers, src)
		return src, nil
	default:
		return nil, fmt.Errorf("unknown telemetry source %q", cfg.Telemetry.Source)
	}
}

// completer is a rate-limited provider chain that can also be reordered.
type completer interface {
	llm.Completer
	dialogue.Switcher
}

// buildCompleter chains the configured providers in order. Providers
// without an API key are skipped; with none left the guide answers
// general questions with an apology.
func buildCompleter(cfg config.LLMConfig, logger *slog.Logger) completer {
	var providers []llm.Provider
	for _, name := range cfg.Providers {
		opts := []llm.Option{llm.WithTimeout(cfg.Timeout), llm.WithLogger(logger)}
		switch name {
		case llm.ProviderOpenAI:
			opts = append(opts, llm.WithAPIKey(cfg.OpenAIAPIKey), llm.WithModel(cfg.OpenAIModel))
		case llm.ProviderGrok:
			opts = append(opts, llm.WithAPIKey(cfg.GrokAPIKey), llm.WithModel(cfg.GrokModel))
		}
		p, err := llm.New(name, opts...)
		if err != nil {
			logger.Warn("completion provider disabled", "provider", name, "error", err)
			continue
		}
		providers = append(providers, p)
	}

	chain, err := llm.NewChain(logger, providers...)
	if err != nil {
		logger.Warn("no completion provider available, general questions disabled")
		chain, _ = llm.NewChain(logger, llm.None{})
	}
	return llm.NewRateLimited(chain, cfg.RatePerMinute, cfg.Burst)
}

func (a *app) speech(cfg config.SpeechConfig, logger *slog.Logger) (speech.Transcriber, speech.Synthesizer, speech.Player) {
	var player speech.Player = speech.DiscardPlayer{Paced: true}
	if len(cfg.PlayerCommand) > 0 {
		p, err := speech.NewCommandPlayer(cfg.PlayerCommand, logger)
		if err != nil {
			logger.Warn("audio player unavailable, discarding audio", "error", err)
		} else {
			player = p
		}
	}

	if cfg.Provider != "openai" {
		return speech.None{}, speech.None{}, player
	}
	provider, err := speech.NewOpenAI(
		speech.WithAPIKey(cfg.APIKey),
		speech.WithVoice(cfg.Voice),
		speech.WithLogger(logger))
	if err != nil {
		if errors.Is(err, speech.ErrNoAPIKey) {
			logger.Warn("speech provider has no API key, running text-only")
		} else {
			logger.Warn("speech provider unavailable, running text-only", "error", err)
		}
		return speech.None{}, speech.None{}, player
	}
	a.closers = append(a.closers, provider)
	return provider, provider, player
}

// Status is the document served on the display's /status endpoint.
type Status struct {
	Telemetry  TelemetryStatus  `json:"telemetry"`
	Voice      voice.Snapshot   `json:"voice"`
	Navigation NavigationStatus `json:"navigation"`
	Transcript TranscriptStatus `json:"transcript"`
}

// TelemetryStatus describes the latest sample.
type TelemetryStatus struct {
	Stale       bool                   `json:"stale"`
	LastUpdated time.Time              `json:"last_updated"`
	Sample      *types.TelemetrySample `json:"sample,omitempty"`
}

// NavigationStatus describes the active target.
type NavigationStatus struct {
	Active     bool    `json:"active"`
	Target     string  `json:"target,omitempty"`
	Stale      bool    `json:"stale"`
	Bearing    float64 `json:"bearing_deg,omitempty"`
	DistanceNM float64 `json:"distance_nm,omitempty"`
	ETASeconds float64 `json:"eta_seconds,omitempty"`
}

// TranscriptStatus reports transcript delivery health.
type TranscriptStatus struct {
	Dropped uint64 `json:"dropped"`
}

func (a *app) status() any {
	st := Status{
		Telemetry:  TelemetryStatus{Stale: a.cell.Stale(), LastUpdated: a.cell.LastUpdated()},
		Voice:      a.machine.Snapshot(),
		Transcript: TranscriptStatus{Dropped: a.publisher.Dropped()},
	}
	if s, err := a.cell.Latest(); err == nil {
		st.Telemetry.Sample = &s
	}

	nav := a.planner.Status()
	st.Navigation = NavigationStatus{Active: nav.Active, Stale: nav.Stale}
	if nav.Active {
		st.Navigation.Target = nav.Target.Name
		if !nav.Stale {
			st.Navigation.Bearing = nav.Bearing
			st.Navigation.DistanceNM = nav.DistanceNM
			if nav.HasETA {
				st.Navigation.ETASeconds = nav.ETA.Seconds()
			}
		}
	}
	return st
}
