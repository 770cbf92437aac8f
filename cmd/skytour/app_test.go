package main

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eytandecker/skytour/internal/config"
	"github.com/eytandecker/skytour/internal/llm"
	"github.com/eytandecker/skytour/internal/voice"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func offlineConfig() config.Config {
	cfg := config.Load()
	cfg.Telemetry.Source = config.SourceSimulated
	cfg.POI.Path = "../../data/pois.json"
	cfg.LLM.Providers = []string{"openai"}
	cfg.LLM.OpenAIAPIKey = ""
	cfg.Speech.Provider = "none"
	cfg.Speech.PlayerCommand = nil
	return cfg
}

func TestBuildOffline(t *testing.T) {
	cfg := offlineConfig()
	require.NoError(t, cfg.Validate())

	a, err := build(cfg, quietLogger())
	require.NoError(t, err)
	defer a.close()

	assert.Positive(t, a.index.Len())
	assert.NotNil(t, a.display)
	assert.NotNil(t, a.mcp)

	st, ok := a.status().(Status)
	require.True(t, ok)
	assert.Equal(t, voice.StateIdle, st.Voice.State)
	assert.True(t, st.Telemetry.Stale)
	assert.Nil(t, st.Telemetry.Sample)
	assert.False(t, st.Navigation.Active)

	data, err := json.Marshal(st)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"state":"IDLE"`)
}

func TestBuildOptionalSurfaces(t *testing.T) {
	cfg := offlineConfig()
	cfg.Display.Enabled = false
	cfg.MCP.Enabled = false

	a, err := build(cfg, quietLogger())
	require.NoError(t, err)
	defer a.close()

	assert.Nil(t, a.display)
	assert.Nil(t, a.mcp)
}

func TestBuildMissingDataset(t *testing.T) {
	cfg := offlineConfig()
	cfg.POI.Path = "does-not-exist.json"

	_, err := build(cfg, quietLogger())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "load points of interest")
}

func TestBuildCompleterWithoutKeys(t *testing.T) {
	c := buildCompleter(config.LLMConfig{Providers: []string{"openai", "grok"}}, quietLogger())

	_, err := c.Complete(context.Background(), llm.Prompt{Question: "why is the sky blue"})
	assert.ErrorIs(t, err, llm.ErrProviderUnavailable)
	assert.ErrorIs(t, c.Prefer("grok"), llm.ErrUnknownProvider)
}

func TestBuildCompleterOrdersProviders(t *testing.T) {
	c := buildCompleter(config.LLMConfig{
		Providers:    []string{"grok", "openai"},
		GrokAPIKey:   "xai-test",
		OpenAIAPIKey: "sk-test",
	}, quietLogger())

	assert.NoError(t, c.Prefer("openai"))
	assert.NoError(t, c.Prefer("grok"))
	assert.ErrorIs(t, c.Prefer("claude"), llm.ErrUnknownProvider)
}
