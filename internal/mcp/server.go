// Package mcp exposes the tour guide as MCP tools over stdio so an
// assistant can query position, look for landmarks, steer navigation and
// drive the voice guide.
package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/eytandecker/skytour/internal/dialogue"
	"github.com/eytandecker/skytour/internal/geo"
	"github.com/eytandecker/skytour/internal/navigation"
	"github.com/eytandecker/skytour/internal/relevance"
	"github.com/eytandecker/skytour/internal/simconnect"
	"github.com/eytandecker/skytour/internal/telemetry"
	"github.com/eytandecker/skytour/internal/voice"
	"github.com/eytandecker/skytour/pkg/types"
)

// PositionGetter supplies the latest telemetry sample.
type PositionGetter interface {
	Latest() (types.TelemetrySample, error)
}

// Navigator resolves targets and nearby POIs. *dialogue.Orchestrator
// implements it.
type Navigator interface {
	Navigate(name string) (dialogue.NavigateResult, error)
	Nearby() ([]relevance.Score, error)
}

// Voice is the subset of voice.Machine used by the tools.
type Voice interface {
	Trigger(t voice.Trigger) bool
	SubmitText(text string) bool
	Offer(a voice.Announcement) bool
	Snapshot() voice.Snapshot
}

// Deps are the collaborators behind the tools. Voice may be nil, in which
// case the voice tools report that the guide is unavailable.
type Deps struct {
	Position  PositionGetter
	Navigator Navigator
	Planner   *navigation.Planner
	Voice     Voice
}

// Server wraps the MCP SDK server and exposes the tour guide as tools.
type Server struct {
	sdk   *mcpsdk.Server
	deps  Deps
	clock func() time.Time
}

// NewServer creates a Server and registers its tools.
func NewServer(deps Deps) *Server {
	s := &Server{
		sdk: mcpsdk.NewServer(&mcpsdk.Implementation{
			Name:    "skytour",
			Version: "1.0.0",
		}, nil),
		deps:  deps,
		clock: time.Now,
	}

	mcpsdk.AddTool(s.sdk, &mcpsdk.Tool{
		Name:        "get_aircraft_position",
		Description: "Returns the live aircraft position, altitude, heading and speeds.",
	}, s.handleGetAircraftPosition)
	mcpsdk.AddTool(s.sdk, &mcpsdk.Tool{
		Name:        "find_nearby_pois",
		Description: "Lists points of interest worth pointing out from the current position, best first.",
	}, s.handleFindNearby)
	mcpsdk.AddTool(s.sdk, &mcpsdk.Tool{
		Name:        "navigate_to",
		Description: "Sets a point of interest, matched by name, as the navigation target and returns the initial heading.",
	}, s.handleNavigateTo)
	mcpsdk.AddTool(s.sdk, &mcpsdk.Tool{
		Name:        "cancel_navigation",
		Description: "Clears the active navigation target.",
	}, s.handleCancelNavigation)
	mcpsdk.AddTool(s.sdk, &mcpsdk.Tool{
		Name:        "get_navigation_status",
		Description: "Returns the active target with bearing, distance, cross-track error and ETA.",
	}, s.handleNavigationStatus)
	mcpsdk.AddTool(s.sdk, &mcpsdk.Tool{
		Name:        "send_voice_command",
		Description: "Sends a typed utterance to the voice guide as if the pilot had spoken it, or fires a control trigger such as wake or wait.",
	}, s.handleSendVoiceCommand)
	mcpsdk.AddTool(s.sdk, &mcpsdk.Tool{
		Name:        "say",
		Description: "Asks the voice guide to speak a short announcement when it is free.",
	}, s.handleSay)
	return s
}

// Run starts the MCP server over stdio and blocks until ctx is done.
func (s *Server) Run(ctx context.Context) error {
	return s.sdk.Run(ctx, &mcpsdk.StdioTransport{})
}

// Connect connects the server to an existing transport (used in tests).
func (s *Server) Connect(ctx context.Context, t mcpsdk.Transport) (*mcpsdk.ServerSession, error) {
	return s.sdk.Connect(ctx, t, nil)
}

func (s *Server) timestamp() string {
	return s.clock().UTC().Format(time.RFC3339)
}

// AircraftPositionResponse is the JSON payload of get_aircraft_position.
type AircraftPositionResponse struct {
	Latitude      float64 `json:"latitude"`
	Longitude     float64 `json:"longitude"`
	AltitudeMSL   float64 `json:"altitude_msl_ft"`
	AltitudeAGL   float64 `json:"altitude_agl_ft"`
	HeadingTrue   float64 `json:"heading_true_deg"`
	Cardinal      string  `json:"heading_cardinal"`
	GroundSpeed   float64 `json:"ground_speed_kts"`
	VerticalSpeed float64 `json:"vertical_speed_fpm"`
	SampleTime    string  `json:"sample_time"`
	Timestamp     string  `json:"timestamp"`
}

// SimulatorUnavailableResponse is returned when position data cannot be provided.
type SimulatorUnavailableResponse struct {
	Available   bool   `json:"available"`
	Error       string `json:"error"`
	Code        string `json:"code"`
	Recoverable bool   `json:"recoverable"`
	Suggestion  string `json:"suggestion"`
	Timestamp   string `json:"timestamp"`
}

type emptyInput struct{}

func (s *Server) handleGetAircraftPosition(
	ctx context.Context,
	req *mcpsdk.CallToolRequest,
	_ emptyInput,
) (*mcpsdk.CallToolResult, any, error) {
	pos, err := s.deps.Position.Latest()
	if err != nil {
		return s.errorResult(err), nil, nil
	}

	return jsonResult(AircraftPositionResponse{
		Latitude:      pos.Latitude,
		Longitude:     pos.Longitude,
		AltitudeMSL:   pos.AltitudeMSL,
		AltitudeAGL:   pos.AltitudeAGL,
		HeadingTrue:   pos.HeadingTrue,
		Cardinal:      geo.Cardinal(pos.HeadingTrue),
		GroundSpeed:   pos.GroundSpeed,
		VerticalSpeed: pos.VerticalSpeed,
		SampleTime:    pos.Timestamp.UTC().Format(time.RFC3339Nano),
		Timestamp:     s.timestamp(),
	})
}

type findNearbyInput struct {
	Limit int `json:"limit,omitempty" jsonschema:"maximum number of results; zero returns all"`
}

// NearbyPOI is one entry of find_nearby_pois.
type NearbyPOI struct {
	ID              string  `json:"id"`
	Name            string  `json:"name"`
	Category        string  `json:"category"`
	Description     string  `json:"description,omitempty"`
	Score           float64 `json:"score"`
	DistanceNM      float64 `json:"distance_nm"`
	Bearing         float64 `json:"bearing_deg"`
	RelativeBearing float64 `json:"relative_bearing_deg"`
}

func (s *Server) handleFindNearby(
	ctx context.Context,
	req *mcpsdk.CallToolRequest,
	input findNearbyInput,
) (*mcpsdk.CallToolResult, any, error) {
	scores, err := s.deps.Navigator.Nearby()
	if err != nil {
		return s.errorResult(err), nil, nil
	}
	if input.Limit > 0 && len(scores) > input.Limit {
		scores = scores[:input.Limit]
	}

	out := make([]NearbyPOI, 0, len(scores))
	for _, sc := range scores {
		out = append(out, NearbyPOI{
			ID:              sc.POI.ID,
			Name:            sc.POI.Name,
			Category:        sc.POI.Category,
			Description:     sc.POI.Description,
			Score:           sc.Score,
			DistanceNM:      sc.Factors.DistanceNM,
			Bearing:         sc.Factors.Bearing,
			RelativeBearing: sc.Factors.RelativeBearing,
		})
	}
	return jsonResult(map[string]any{"pois": out, "timestamp": s.timestamp()})
}

type navigateInput struct {
	Name string `json:"name" jsonschema:"name or alias of the point of interest"`
}

// NavigationResponse describes the active target and its guidance.
type NavigationResponse struct {
	Active       bool     `json:"active"`
	TargetID     string   `json:"target_id,omitempty"`
	TargetName   string   `json:"target_name,omitempty"`
	Similarity   float64  `json:"similarity,omitempty"`
	Stale        bool     `json:"stale"`
	Bearing      *float64 `json:"bearing_deg,omitempty"`
	DistanceNM   *float64 `json:"distance_nm,omitempty"`
	CrossTrackNM *float64 `json:"cross_track_nm,omitempty"`
	ETASeconds   *float64 `json:"eta_seconds,omitempty"`
	Guidance     string   `json:"guidance,omitempty"`
	Timestamp    string   `json:"timestamp"`
}

func (r *NavigationResponse) setGuidance(g navigation.Guidance) {
	bearing, dist, xtk := g.Bearing, g.DistanceNM, g.CrossTrackNM
	r.Bearing, r.DistanceNM, r.CrossTrackNM = &bearing, &dist, &xtk
	if g.HasETA {
		eta := g.ETA.Seconds()
		r.ETASeconds = &eta
	}
}

func (s *Server) handleNavigateTo(
	ctx context.Context,
	req *mcpsdk.CallToolRequest,
	input navigateInput,
) (*mcpsdk.CallToolResult, any, error) {
	if strings.TrimSpace(input.Name) == "" {
		return s.failure("INVALID_ARGUMENT", "name is required", "Pass the name of a point of interest."), nil, nil
	}
	res, err := s.deps.Navigator.Navigate(input.Name)
	if err != nil {
		return s.errorResult(err), nil, nil
	}

	resp := NavigationResponse{
		Active:     true,
		TargetID:   res.Target.ID,
		TargetName: res.Target.Name,
		Similarity: res.Similarity,
		Stale:      !res.HasGuidance,
		Timestamp:  s.timestamp(),
	}
	if res.HasGuidance {
		resp.setGuidance(res.Event.Guidance)
		resp.Guidance = dialogue.FormatGuidance(res.Event)
	}
	return jsonResult(resp)
}

func (s *Server) handleCancelNavigation(
	ctx context.Context,
	req *mcpsdk.CallToolRequest,
	_ emptyInput,
) (*mcpsdk.CallToolResult, any, error) {
	target, had := s.deps.Planner.Target()
	cleared := s.deps.Planner.Clear()
	resp := map[string]any{"cancelled": cleared, "timestamp": s.timestamp()}
	if had && cleared {
		resp["target_name"] = target.Name
	}
	return jsonResult(resp)
}

func (s *Server) handleNavigationStatus(
	ctx context.Context,
	req *mcpsdk.CallToolRequest,
	_ emptyInput,
) (*mcpsdk.CallToolResult, any, error) {
	st := s.deps.Planner.Status()
	resp := NavigationResponse{Active: st.Active, Stale: st.Stale, Timestamp: s.timestamp()}
	if st.Active {
		resp.TargetID = st.Target.ID
		resp.TargetName = st.Target.Name
		if !st.Stale {
			resp.setGuidance(st.Guidance)
		}
	}
	return jsonResult(resp)
}

type voiceCommandInput struct {
	Text    string `json:"text,omitempty" jsonschema:"utterance to submit as if spoken"`
	Trigger string `json:"trigger,omitempty" jsonschema:"control trigger: wake, wait, resume, deactivate or reactivate"`
	Wake    bool   `json:"wake,omitempty" jsonschema:"wake the guide before submitting text"`
}

func (s *Server) handleSendVoiceCommand(
	ctx context.Context,
	req *mcpsdk.CallToolRequest,
	input voiceCommandInput,
) (*mcpsdk.CallToolResult, any, error) {
	if s.deps.Voice == nil {
		return s.voiceUnavailable(), nil, nil
	}
	if input.Trigger == "" && strings.TrimSpace(input.Text) == "" {
		return s.failure("INVALID_ARGUMENT", "text or trigger is required", "Pass an utterance or a trigger name."), nil, nil
	}

	accepted := true
	if input.Trigger != "" {
		t, ok := voice.ParseTrigger(strings.ToLower(input.Trigger))
		if !ok {
			return s.failure("INVALID_ARGUMENT", "unknown trigger "+input.Trigger,
				"Use wake, wait, resume, deactivate or reactivate."), nil, nil
		}
		accepted = s.deps.Voice.Trigger(t)
	}
	if input.Wake {
		accepted = s.deps.Voice.Trigger(voice.TriggerWake) && accepted
	}
	if text := strings.TrimSpace(input.Text); text != "" {
		accepted = s.deps.Voice.SubmitText(text) && accepted
	}

	return jsonResult(map[string]any{
		"accepted":  accepted,
		"state":     s.deps.Voice.Snapshot().State.String(),
		"timestamp": s.timestamp(),
	})
}

type sayInput struct {
	Text     string `json:"text" jsonschema:"what the guide should say"`
	Guidance bool   `json:"guidance,omitempty" jsonschema:"treat as guidance, held until the guide is free instead of dropped"`
}

func (s *Server) handleSay(
	ctx context.Context,
	req *mcpsdk.CallToolRequest,
	input sayInput,
) (*mcpsdk.CallToolResult, any, error) {
	if s.deps.Voice == nil {
		return s.voiceUnavailable(), nil, nil
	}
	text := strings.TrimSpace(input.Text)
	if text == "" {
		return s.failure("INVALID_ARGUMENT", "text is required", "Pass the text to speak."), nil, nil
	}
	kind := voice.AnnouncementProactive
	if input.Guidance {
		kind = voice.AnnouncementGuidance
	}
	accepted := s.deps.Voice.Offer(voice.Announcement{Kind: kind, Text: text, Time: s.clock()})
	return jsonResult(map[string]any{"accepted": accepted, "timestamp": s.timestamp()})
}

func jsonResult(v any) (*mcpsdk.CallToolResult, any, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, nil, err
	}
	return &mcpsdk.CallToolResult{
		Content: []mcpsdk.Content{&mcpsdk.TextContent{Text: string(data)}},
	}, nil, nil
}

func (s *Server) voiceUnavailable() *mcpsdk.CallToolResult {
	return s.failure("VOICE_UNAVAILABLE", "voice guide is not running", "Start skytour with the voice guide enabled.")
}

func (s *Server) failure(code, msg, suggestion string) *mcpsdk.CallToolResult {
	resp := SimulatorUnavailableResponse{
		Available:   true,
		Error:       msg,
		Code:        code,
		Recoverable: true,
		Suggestion:  suggestion,
		Timestamp:   s.timestamp(),
	}
	data, _ := json.Marshal(resp)
	return &mcpsdk.CallToolResult{
		Content: []mcpsdk.Content{&mcpsdk.TextContent{Text: string(data)}},
		IsError: true,
	}
}

func (s *Server) errorResult(err error) *mcpsdk.CallToolResult {
	resp := SimulatorUnavailableResponse{
		Available: false,
		Error:     err.Error(),
		Timestamp: s.timestamp(),
	}

	var simErr *types.SimulatorError
	switch {
	case errors.Is(err, telemetry.ErrStale):
		resp.Code = "DATA_STALE"
		resp.Recoverable = true
		resp.Suggestion = "Wait for the simulator to send fresh data."
	case errors.Is(err, simconnect.ErrNotConnected), errors.As(err, &simErr):
		resp.Code = "SIMULATOR_NOT_CONNECTED"
		resp.Recoverable = simErr == nil || types.Recoverable(err)
		resp.Suggestion = "Ensure Microsoft Flight Simulator is running."
	case errors.Is(err, dialogue.ErrTargetNotFound):
		resp.Available = true
		resp.Code = "TARGET_NOT_FOUND"
		resp.Recoverable = true
		resp.Suggestion = "Call find_nearby_pois for names the guide knows."
	default:
		resp.Code = "UNKNOWN_ERROR"
		resp.Recoverable = false
		resp.Suggestion = "Check application logs for details."
	}

	data, _ := json.Marshal(resp)
	return &mcpsdk.CallToolResult{
		Content: []mcpsdk.Content{&mcpsdk.TextContent{Text: string(data)}},
		IsError: true,
	}
}
