package mcp_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eytandecker/skytour/internal/dialogue"
	internalmcp "github.com/eytandecker/skytour/internal/mcp"
	"github.com/eytandecker/skytour/internal/navigation"
	"github.com/eytandecker/skytour/internal/poi"
	"github.com/eytandecker/skytour/internal/relevance"
	"github.com/eytandecker/skytour/internal/simconnect"
	"github.com/eytandecker/skytour/internal/telemetry"
	"github.com/eytandecker/skytour/internal/voice"
	"github.com/eytandecker/skytour/pkg/types"
)

// mockPositionGetter controls what Latest returns in tests.
type mockPositionGetter struct {
	pos types.TelemetrySample
	err error
}

func (m *mockPositionGetter) Latest() (types.TelemetrySample, error) {
	return m.pos, m.err
}

// mockVoice records what the tools submit.
type mockVoice struct {
	mu       sync.Mutex
	triggers []voice.Trigger
	texts    []string
	offers   []voice.Announcement
	accept   bool
}

func (m *mockVoice) Trigger(t voice.Trigger) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.triggers = append(m.triggers, t)
	return m.accept
}

func (m *mockVoice) SubmitText(text string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.texts = append(m.texts, text)
	return m.accept
}

func (m *mockVoice) Offer(a voice.Announcement) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.offers = append(m.offers, a)
	return m.accept
}

func (m *mockVoice) Snapshot() voice.Snapshot {
	return voice.Snapshot{State: voice.StateActive}
}

// downtown is just west of the Alamo, eastbound at 1500ft and 100kt.
var samplePos = types.TelemetrySample{
	Timestamp:     time.Date(2026, 3, 1, 17, 0, 0, 0, time.UTC),
	Latitude:      29.4241,
	Longitude:     -98.4936,
	AltitudeMSL:   2150,
	AltitudeAGL:   1500,
	HeadingTrue:   80,
	GroundSpeed:   100,
	VerticalSpeed: -200,
}

func testPOIs() []poi.POI {
	return []poi.POI{
		{ID: "the-alamo", Name: "The Alamo", Latitude: 29.4252, Longitude: -98.4861, MinAltitude: 300, MaxDistance: 5, Category: "historic", Region: "San Antonio", Aliases: []string{"alamo mission"}},
		{ID: "tower", Name: "Tower of the Americas", Latitude: 29.4189, Longitude: -98.4837, MinAltitude: 200, MaxDistance: 10, Category: "landmark", Region: "San Antonio"},
	}
}

type fixture struct {
	planner *navigation.Planner
	voice   *mockVoice
	deps    internalmcp.Deps
}

func newFixture(pg internalmcp.PositionGetter) *fixture {
	index := poi.NewIndex(testPOIs(), 0)
	planner := navigation.NewPlanner(navigation.DefaultConfig())
	orch := dialogue.New(dialogue.DefaultConfig(), dialogue.Deps{
		Position: pg,
		Index:    index,
		Filter:   relevance.NewFilter(index, relevance.DefaultConfig()),
		Planner:  planner,
		Logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	v := &mockVoice{accept: true}
	return &fixture{
		planner: planner,
		voice:   v,
		deps:    internalmcp.Deps{Position: pg, Navigator: orch, Planner: planner, Voice: v},
	}
}

// callTool connects the MCP server via in-memory transports and calls the tool.
func callTool(t *testing.T, deps internalmcp.Deps, name string, args map[string]any) *mcpsdk.CallToolResult {
	t.Helper()
	ctx := context.Background()

	srv := internalmcp.NewServer(deps)
	st, ct := mcpsdk.NewInMemoryTransports()

	_, err := srv.Connect(ctx, st)
	require.NoError(t, err)

	client := mcpsdk.NewClient(&mcpsdk.Implementation{Name: "test", Version: "1.0"}, nil)
	cs, err := client.Connect(ctx, ct, nil)
	require.NoError(t, err)
	t.Cleanup(func() { cs.Close() })

	res, err := cs.CallTool(ctx, &mcpsdk.CallToolParams{
		Name:      name,
		Arguments: args,
	})
	require.NoError(t, err)
	return res
}

func decode(t *testing.T, res *mcpsdk.CallToolResult) map[string]any {
	t.Helper()
	require.Len(t, res.Content, 1)
	text := res.Content[0].(*mcpsdk.TextContent).Text
	var m map[string]any
	require.NoError(t, json.Unmarshal([]byte(text), &m))
	return m
}

func TestListTools(t *testing.T) {
	ctx := context.Background()
	srv := internalmcp.NewServer(newFixture(&mockPositionGetter{pos: samplePos}).deps)
	st, ct := mcpsdk.NewInMemoryTransports()
	_, err := srv.Connect(ctx, st)
	require.NoError(t, err)

	cs, err := mcpsdk.NewClient(&mcpsdk.Implementation{Name: "test", Version: "1.0"}, nil).Connect(ctx, ct, nil)
	require.NoError(t, err)
	defer cs.Close()

	res, err := cs.ListTools(ctx, nil)
	require.NoError(t, err)
	var names []string
	for _, tool := range res.Tools {
		names = append(names, tool.Name)
	}
	assert.ElementsMatch(t, []string{
		"get_aircraft_position", "find_nearby_pois", "navigate_to", "cancel_navigation",
		"get_navigation_status", "send_voice_command", "say",
	}, names)
}

func TestGetAircraftPositionSuccess(t *testing.T) {
	f := newFixture(&mockPositionGetter{pos: samplePos})
	res := callTool(t, f.deps, "get_aircraft_position", nil)

	require.False(t, res.IsError)
	m := decode(t, res)

	assert.InDelta(t, 29.4241, m["latitude"].(float64), 1e-9)
	assert.InDelta(t, -98.4936, m["longitude"].(float64), 1e-9)
	assert.InDelta(t, 2150.0, m["altitude_msl_ft"].(float64), 1e-9)
	assert.InDelta(t, 1500.0, m["altitude_agl_ft"].(float64), 1e-9)
	assert.InDelta(t, 80.0, m["heading_true_deg"].(float64), 1e-9)
	assert.Equal(t, "east", m["heading_cardinal"])
	assert.InDelta(t, 100.0, m["ground_speed_kts"].(float64), 1e-9)
	assert.InDelta(t, -200.0, m["vertical_speed_fpm"].(float64), 1e-9)
	assert.Equal(t, "2026-03-01T17:00:00Z", m["sample_time"])

	ts, ok := m["timestamp"].(string)
	require.True(t, ok)
	parsed, err := time.Parse(time.RFC3339, ts)
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().UTC(), parsed, 5*time.Second)
}

func TestGetAircraftPositionErrors(t *testing.T) {
	tests := []struct {
		name        string
		err         error
		code        string
		recoverable bool
	}{
		{"stale", telemetry.ErrStale, "DATA_STALE", true},
		{"not connected", simconnect.ErrNotConnected, "SIMULATOR_NOT_CONNECTED", true},
		{"simulator error", &types.SimulatorError{Op: "connect", Err: errors.New("refused"), Recoverable: true}, "SIMULATOR_NOT_CONNECTED", true},
		{"fatal simulator error", &types.SimulatorError{Op: "register", Err: errors.New("bad simvar")}, "SIMULATOR_NOT_CONNECTED", false},
		{"unknown", errors.New("some unexpected error"), "UNKNOWN_ERROR", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(&mockPositionGetter{err: tt.err})
			res := callTool(t, f.deps, "get_aircraft_position", nil)

			require.True(t, res.IsError)
			m := decode(t, res)
			assert.Equal(t, tt.code, m["code"])
			assert.Equal(t, tt.recoverable, m["recoverable"])
			assert.Equal(t, false, m["available"])
		})
	}
}

func TestFindNearbyPOIs(t *testing.T) {
	f := newFixture(&mockPositionGetter{pos: samplePos})
	res := callTool(t, f.deps, "find_nearby_pois", map[string]any{"limit": 1})

	require.False(t, res.IsError)
	m := decode(t, res)
	pois := m["pois"].([]any)
	require.Len(t, pois, 1)
	first := pois[0].(map[string]any)
	assert.Equal(t, "the-alamo", first["id"])
	assert.Greater(t, first["score"].(float64), 0.0)
}

func TestFindNearbyPOIsStale(t *testing.T) {
	f := newFixture(&mockPositionGetter{err: telemetry.ErrStale})
	res := callTool(t, f.deps, "find_nearby_pois", nil)

	require.True(t, res.IsError)
	assert.Equal(t, "DATA_STALE", decode(t, res)["code"])
}

func TestNavigateTo(t *testing.T) {
	f := newFixture(&mockPositionGetter{pos: samplePos})
	res := callTool(t, f.deps, "navigate_to", map[string]any{"name": "alamo"})

	require.False(t, res.IsError)
	m := decode(t, res)
	assert.Equal(t, true, m["active"])
	assert.Equal(t, "the-alamo", m["target_id"])
	assert.Equal(t, false, m["stale"])
	assert.Contains(t, m["guidance"], "to reach The Alamo")
	assert.InDelta(t, 80, m["bearing_deg"].(float64), 10)
	assert.Contains(t, m, "eta_seconds")

	target, ok := f.planner.Target()
	require.True(t, ok)
	assert.Equal(t, "the-alamo", target.ID)
}

func TestNavigateToStaleSetsTargetWithoutGuidance(t *testing.T) {
	f := newFixture(&mockPositionGetter{err: telemetry.ErrStale})
	res := callTool(t, f.deps, "navigate_to", map[string]any{"name": "Tower of the Americas"})

	require.False(t, res.IsError)
	m := decode(t, res)
	assert.Equal(t, true, m["stale"])
	assert.NotContains(t, m, "bearing_deg")
	assert.True(t, f.planner.Status().Active)
}

func TestNavigateToUnknownTarget(t *testing.T) {
	f := newFixture(&mockPositionGetter{pos: samplePos})
	callTool(t, f.deps, "navigate_to", map[string]any{"name": "alamo"})

	res := callTool(t, f.deps, "navigate_to", map[string]any{"name": "eiffel tower"})
	require.True(t, res.IsError)
	assert.Equal(t, "TARGET_NOT_FOUND", decode(t, res)["code"])

	target, ok := f.planner.Target()
	require.True(t, ok)
	assert.Equal(t, "the-alamo", target.ID, "failed lookup must leave the target untouched")
}

func TestNavigateToRequiresName(t *testing.T) {
	f := newFixture(&mockPositionGetter{pos: samplePos})
	res := callTool(t, f.deps, "navigate_to", map[string]any{"name": "  "})
	require.True(t, res.IsError)
	assert.Equal(t, "INVALID_ARGUMENT", decode(t, res)["code"])
}

func TestNavigationStatusAndCancel(t *testing.T) {
	f := newFixture(&mockPositionGetter{pos: samplePos})

	m := decode(t, callTool(t, f.deps, "get_navigation_status", nil))
	assert.Equal(t, false, m["active"])

	callTool(t, f.deps, "navigate_to", map[string]any{"name": "alamo"})
	m = decode(t, callTool(t, f.deps, "get_navigation_status", nil))
	assert.Equal(t, true, m["active"])
	assert.Equal(t, "The Alamo", m["target_name"])
	assert.Contains(t, m, "distance_nm")

	m = decode(t, callTool(t, f.deps, "cancel_navigation", nil))
	assert.Equal(t, true, m["cancelled"])
	assert.Equal(t, "The Alamo", m["target_name"])

	m = decode(t, callTool(t, f.deps, "cancel_navigation", nil))
	assert.Equal(t, false, m["cancelled"])
}

func TestSendVoiceCommand(t *testing.T) {
	f := newFixture(&mockPositionGetter{pos: samplePos})
	res := callTool(t, f.deps, "send_voice_command", map[string]any{"text": "what's nearby", "wake": true})

	require.False(t, res.IsError)
	m := decode(t, res)
	assert.Equal(t, true, m["accepted"])
	assert.Equal(t, "ACTIVE", m["state"])

	f.voice.mu.Lock()
	defer f.voice.mu.Unlock()
	assert.Equal(t, []voice.Trigger{voice.TriggerWake}, f.voice.triggers)
	assert.Equal(t, []string{"what's nearby"}, f.voice.texts)
}

func TestSendVoiceCommandTrigger(t *testing.T) {
	f := newFixture(&mockPositionGetter{pos: samplePos})
	res := callTool(t, f.deps, "send_voice_command", map[string]any{"trigger": "Deactivate"})
	require.False(t, res.IsError)

	res = callTool(t, f.deps, "send_voice_command", map[string]any{"trigger": "barrel_roll"})
	require.True(t, res.IsError)
	assert.Equal(t, "INVALID_ARGUMENT", decode(t, res)["code"])

	f.voice.mu.Lock()
	defer f.voice.mu.Unlock()
	assert.Equal(t, []voice.Trigger{voice.TriggerDeactivate}, f.voice.triggers)
}

func TestSay(t *testing.T) {
	f := newFixture(&mockPositionGetter{pos: samplePos})
	f.voice.accept = false

	m := decode(t, callTool(t, f.deps, "say", map[string]any{"text": "Turn left now.", "guidance": true}))
	assert.Equal(t, false, m["accepted"])

	f.voice.mu.Lock()
	defer f.voice.mu.Unlock()
	require.Len(t, f.voice.offers, 1)
	assert.Equal(t, voice.AnnouncementGuidance, f.voice.offers[0].Kind)
	assert.Equal(t, "Turn left now.", f.voice.offers[0].Text)
}

func TestVoiceToolsWithoutVoice(t *testing.T) {
	f := newFixture(&mockPositionGetter{pos: samplePos})
	f.deps.Voice = nil

	for _, name := range []string{"say", "send_voice_command"} {
		res := callTool(t, f.deps, name, map[string]any{"text": "hello"})
		require.True(t, res.IsError)
		assert.Equal(t, "VOICE_UNAVAILABLE", decode(t, res)["code"])
	}
}
