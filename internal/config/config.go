package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// ErrInvalid is wrapped by every error returned from Validate.
var ErrInvalid = errors.New("config: invalid configuration")

// Telemetry source names.
const (
	SourceSimConnect = "simconnect"
	SourceSimulated  = "simulated"
)

// Config holds all application configuration.
type Config struct {
	Telemetry  TelemetryConfig
	SimConnect SimConnectConfig
	Simulated  SimulatedConfig
	POI        POIConfig
	Relevance  RelevanceConfig
	Navigation NavigationConfig
	Voice      VoiceConfig
	LLM        LLMConfig
	Speech     SpeechConfig
	Display    DisplayConfig
	MCP        MCPConfig
	Log        LogConfig

	parseErrs []error // values Load could not parse
}

// TelemetryConfig holds data polling settings.
type TelemetryConfig struct {
	Source         string
	Interval       time.Duration
	PollTimeout    time.Duration
	StaleThreshold time.Duration
	MaxRetries     int
	RetryBackoff   time.Duration
}

// SimConnectConfig holds SimConnect TCP connection settings.
type SimConnectConfig struct {
	Host    string
	Port    int
	Timeout time.Duration
	AppName string
}

// SimulatedConfig describes the dead-reckoning flight used without a
// simulator.
type SimulatedConfig struct {
	Latitude    float64
	Longitude   float64
	AltitudeAGL float64
	Heading     float64
	GroundSpeed float64
	TurnRate    float64
}

// POIConfig locates and indexes the POI dataset.
type POIConfig struct {
	Path           string
	CellDegrees    float64
	MatchThreshold float64
	MatchCacheSize int
}

// RelevanceConfig tunes POI scoring.
type RelevanceConfig struct {
	ConeHalfAngle       float64
	WideConeHalfAngle   float64
	LoiterSpeedKt       float64
	OverheadNM          float64
	AltitudeRampFt      float64
	ProactiveThreshold  float64
	ResponsiveThreshold float64
	ResponsiveLimit     int
	Cooldown            time.Duration
}

// NavigationConfig holds guidance thresholds.
type NavigationConfig struct {
	ArrivalRadiusNM   float64
	OffCourseNM       float64
	OnCourseNM        float64
	ApproachLookahead time.Duration
	MinSpeedKt        float64
}

// VoiceConfig tunes the voice state machine.
type VoiceConfig struct {
	IdleTimeout           time.Duration
	RecognitionTimeout    time.Duration
	ResponseTimeout       time.Duration
	MaxRecognitionRetries int
	HistorySize           int
	GuidanceMaxAge        time.Duration
	ContextWindow         int // exchanges sent with a general question
}

// LLMConfig configures the completion provider chain.
type LLMConfig struct {
	Providers     []string // tried in order
	OpenAIAPIKey  string
	OpenAIModel   string
	GrokAPIKey    string
	GrokModel     string
	Timeout       time.Duration
	RatePerMinute float64
	Burst         int
}

// SpeechConfig configures transcription, synthesis and playback.
type SpeechConfig struct {
	Provider      string // "openai" or "none"
	APIKey        string
	Voice         string
	PlayerCommand []string // empty discards audio
}

// DisplayConfig configures the WebSocket display.
type DisplayConfig struct {
	Enabled     bool
	Addr        string
	HistorySize int
}

// MCPConfig configures the MCP stdio tool surface.
type MCPConfig struct {
	Enabled bool
}

// LogConfig configures logging.
type LogConfig struct {
	Level      string
	File       string // empty disables the rotating file
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
}

// Load reads configuration from environment variables, falling back to
// defaults. A value that fails to parse keeps its default and is reported
// by Validate.
func Load() Config {
	env := &envReader{}
	openAIKey := env.String("OPENAI_API_KEY", "")
	cfg := Config{
		Telemetry: TelemetryConfig{
			Source:         env.String("TELEMETRY_SOURCE", SourceSimConnect),
			Interval:       env.Duration("TELEMETRY_INTERVAL", 500*time.Millisecond),
			PollTimeout:    env.Duration("TELEMETRY_POLL_TIMEOUT", 250*time.Millisecond),
			StaleThreshold: env.Duration("TELEMETRY_STALE_THRESHOLD", 5*time.Second),
			MaxRetries:     env.Int("TELEMETRY_MAX_RETRIES", 2),
			RetryBackoff:   env.Duration("TELEMETRY_RETRY_BACKOFF", 50*time.Millisecond),
		},
		SimConnect: SimConnectConfig{
			Host:    env.String("SIMCONNECT_HOST", "192.168.10.100"),
			Port:    env.Int("SIMCONNECT_PORT", 4500),
			Timeout: env.Duration("SIMCONNECT_TIMEOUT", 10*time.Second),
			AppName: env.String("SIMCONNECT_APP_NAME", "skytour"),
		},
		Simulated: SimulatedConfig{
			Latitude:    env.Float("SIM_START_LAT", 29.4241),
			Longitude:   env.Float("SIM_START_LON", -98.4936),
			AltitudeAGL: env.Float("SIM_ALTITUDE_AGL", 1500),
			Heading:     env.Float("SIM_HEADING", 80),
			GroundSpeed: env.Float("SIM_GROUND_SPEED", 100),
			TurnRate:    env.Float("SIM_TURN_RATE", 0),
		},
		POI: POIConfig{
			Path:           env.String("POI_PATH", "data/pois.json"),
			CellDegrees:    env.Float("POI_CELL_DEGREES", 0.5),
			MatchThreshold: env.Float("POI_MATCH_THRESHOLD", 0.6),
			MatchCacheSize: env.Int("POI_MATCH_CACHE", 256),
		},
		Relevance: RelevanceConfig{
			ConeHalfAngle:       env.Float("RELEVANCE_CONE_DEG", 60),
			WideConeHalfAngle:   env.Float("RELEVANCE_WIDE_CONE_DEG", 120),
			LoiterSpeedKt:       env.Float("RELEVANCE_LOITER_SPEED_KT", 40),
			OverheadNM:          env.Float("RELEVANCE_OVERHEAD_NM", 0.5),
			AltitudeRampFt:      env.Float("RELEVANCE_ALTITUDE_RAMP_FT", 1000),
			ProactiveThreshold:  env.Float("RELEVANCE_PROACTIVE_THRESHOLD", 0.5),
			ResponsiveThreshold: env.Float("RELEVANCE_RESPONSIVE_THRESHOLD", 0.2),
			ResponsiveLimit:     env.Int("RELEVANCE_RESPONSIVE_LIMIT", 5),
			Cooldown:            env.Duration("RELEVANCE_COOLDOWN", 15*time.Minute),
		},
		Navigation: NavigationConfig{
			ArrivalRadiusNM:   env.Float("NAV_ARRIVAL_RADIUS_NM", 0.5),
			OffCourseNM:       env.Float("NAV_OFF_COURSE_NM", 1.0),
			OnCourseNM:        env.Float("NAV_ON_COURSE_NM", 0.5),
			ApproachLookahead: env.Duration("NAV_APPROACH_LOOKAHEAD", 2*time.Minute),
			MinSpeedKt:        env.Float("NAV_MIN_SPEED_KT", 30),
		},
		Voice: VoiceConfig{
			IdleTimeout:           env.Duration("VOICE_IDLE_TIMEOUT", 30*time.Second),
			RecognitionTimeout:    env.Duration("VOICE_RECOGNITION_TIMEOUT", 10*time.Second),
			ResponseTimeout:       env.Duration("VOICE_RESPONSE_TIMEOUT", 12*time.Second),
			MaxRecognitionRetries: env.Int("VOICE_MAX_RECOGNITION_RETRIES", 2),
			HistorySize:           env.Int("VOICE_HISTORY_SIZE", 10),
			GuidanceMaxAge:        env.Duration("VOICE_GUIDANCE_MAX_AGE", 15*time.Second),
			ContextWindow:         env.Int("VOICE_CONTEXT_WINDOW", 4),
		},
		LLM: LLMConfig{
			Providers:     env.List("LLM_PROVIDERS", []string{"openai"}),
			OpenAIAPIKey:  openAIKey,
			OpenAIModel:   env.String("OPENAI_MODEL", "gpt-4o"),
			GrokAPIKey:    env.String("XAI_API_KEY", ""),
			GrokModel:     env.String("GROK_MODEL", "grok-beta"),
			Timeout:       env.Duration("LLM_TIMEOUT", 8*time.Second),
			RatePerMinute: env.Float("LLM_RATE_PER_MINUTE", 20),
			Burst:         env.Int("LLM_BURST", 3),
		},
		Speech: SpeechConfig{
			Provider:      env.String("SPEECH_PROVIDER", "openai"),
			APIKey:        env.String("SPEECH_API_KEY", openAIKey),
			Voice:         env.String("SPEECH_VOICE", "nova"),
			PlayerCommand: strings.Fields(env.String("SPEECH_PLAYER", "")),
		},
		Display: DisplayConfig{
			Enabled:     env.Bool("DISPLAY_ENABLED", true),
			Addr:        env.String("DISPLAY_ADDR", "127.0.0.1:8765"),
			HistorySize: env.Int("DISPLAY_HISTORY", 50),
		},
		MCP: MCPConfig{
			Enabled: env.Bool("MCP_ENABLED", true),
		},
		Log: LogConfig{
			Level:      env.String("LOG_LEVEL", "info"),
			File:       env.String("LOG_FILE", ""),
			MaxSizeMB:  env.Int("LOG_MAX_SIZE_MB", 20),
			MaxBackups: env.Int("LOG_MAX_BACKUPS", 3),
			MaxAgeDays: env.Int("LOG_MAX_AGE_DAYS", 14),
		},
	}
	cfg.parseErrs = env.errs
	return cfg
}

// Validate checks cross-field constraints. The returned error wraps
// ErrInvalid and joins one error per offending field.
func (c Config) Validate() error {
	errs := append([]error(nil), c.parseErrs...)
	add := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf(format, args...))
	}

	switch c.Telemetry.Source {
	case SourceSimConnect, SourceSimulated:
	default:
		add("TELEMETRY_SOURCE: unknown source %q", c.Telemetry.Source)
	}
	if c.Telemetry.Interval < 200*time.Millisecond || c.Telemetry.Interval > time.Second {
		add("TELEMETRY_INTERVAL: %s outside 200ms..1s", c.Telemetry.Interval)
	}
	if c.Telemetry.StaleThreshold <= c.Telemetry.Interval {
		add("TELEMETRY_STALE_THRESHOLD: %s must exceed TELEMETRY_INTERVAL", c.Telemetry.StaleThreshold)
	}
	if c.Telemetry.Source == SourceSimConnect && (c.SimConnect.Port <= 0 || c.SimConnect.Port > 65535) {
		add("SIMCONNECT_PORT: %d out of range", c.SimConnect.Port)
	}

	if c.POI.Path == "" {
		add("POI_PATH: required")
	}
	if c.POI.MatchThreshold <= 0 || c.POI.MatchThreshold > 1 {
		add("POI_MATCH_THRESHOLD: %g outside (0, 1]", c.POI.MatchThreshold)
	}

	if c.Relevance.ConeHalfAngle <= 0 || c.Relevance.ConeHalfAngle > 180 {
		add("RELEVANCE_CONE_DEG: %g outside (0, 180]", c.Relevance.ConeHalfAngle)
	}
	if c.Relevance.WideConeHalfAngle < c.Relevance.ConeHalfAngle || c.Relevance.WideConeHalfAngle > 180 {
		add("RELEVANCE_WIDE_CONE_DEG: %g must be between RELEVANCE_CONE_DEG and 180", c.Relevance.WideConeHalfAngle)
	}
	if !unit(c.Relevance.ProactiveThreshold) {
		add("RELEVANCE_PROACTIVE_THRESHOLD: %g outside [0, 1]", c.Relevance.ProactiveThreshold)
	}
	if !unit(c.Relevance.ResponsiveThreshold) {
		add("RELEVANCE_RESPONSIVE_THRESHOLD: %g outside [0, 1]", c.Relevance.ResponsiveThreshold)
	}
	if c.Relevance.ResponsiveThreshold > c.Relevance.ProactiveThreshold {
		add("RELEVANCE_RESPONSIVE_THRESHOLD: %g above RELEVANCE_PROACTIVE_THRESHOLD %g",
			c.Relevance.ResponsiveThreshold, c.Relevance.ProactiveThreshold)
	}

	if c.Navigation.ArrivalRadiusNM <= 0 {
		add("NAV_ARRIVAL_RADIUS_NM: must be positive")
	}
	if c.Navigation.OnCourseNM <= 0 || c.Navigation.OnCourseNM >= c.Navigation.OffCourseNM {
		add("NAV_ON_COURSE_NM: %g must be positive and below NAV_OFF_COURSE_NM %g",
			c.Navigation.OnCourseNM, c.Navigation.OffCourseNM)
	}

	if c.Voice.IdleTimeout <= 0 {
		add("VOICE_IDLE_TIMEOUT: must be positive")
	}
	if c.Voice.MaxRecognitionRetries < 0 {
		add("VOICE_MAX_RECOGNITION_RETRIES: must not be negative")
	}

	for _, p := range c.LLM.Providers {
		switch p {
		case "openai", "grok", "none":
		default:
			add("LLM_PROVIDERS: unknown provider %q", p)
		}
	}
	switch c.Speech.Provider {
	case "openai", "none":
	default:
		add("SPEECH_PROVIDER: unknown provider %q", c.Speech.Provider)
	}

	if c.Display.Enabled && c.Display.Addr == "" {
		add("DISPLAY_ADDR: required when the display is enabled")
	}

	switch strings.ToLower(c.Log.Level) {
	case "debug", "info", "warn", "error":
	default:
		add("LOG_LEVEL: unknown level %q", c.Log.Level)
	}

	if len(errs) == 0 {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrInvalid, errors.Join(errs...))
}

func unit(v float64) bool { return v >= 0 && v <= 1 }

// envReader reads typed environment values and records the ones that
// fail to parse.
type envReader struct {
	errs []error
}

func (r *envReader) fail(key, v string, err error) {
	r.errs = append(r.errs, fmt.Errorf("%s: cannot parse %q: %w", key, v, err))
}

func (r *envReader) String(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func (r *envReader) Int(key string, defaultVal int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		r.fail(key, v, err)
		return defaultVal
	}
	return n
}

func (r *envReader) Float(key string, defaultVal float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		r.fail(key, v, err)
		return defaultVal
	}
	return f
}

func (r *envReader) Bool(key string, defaultVal bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		r.fail(key, v, err)
		return defaultVal
	}
	return b
}

func (r *envReader) Duration(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		r.fail(key, v, err)
		return defaultVal
	}
	return d
}

// List splits a comma-separated value, trimming and lower-casing each
// entry.
func (r *envReader) List(key string, defaultVal []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.ToLower(strings.TrimSpace(part)); part != "" {
			out = append(out, part)
		}
	}
	if len(out) == 0 {
		return defaultVal
	}
	return out
}
