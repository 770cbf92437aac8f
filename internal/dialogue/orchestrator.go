// Package dialogue turns classified utterances into answers and watches
// telemetry for things worth saying unprompted.
package dialogue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/eytandecker/skytour/internal/intent"
	"github.com/eytandecker/skytour/internal/llm"
	"github.com/eytandecker/skytour/internal/navigation"
	"github.com/eytandecker/skytour/internal/poi"
	"github.com/eytandecker/skytour/internal/relevance"
	"github.com/eytandecker/skytour/internal/voice"
	"github.com/eytandecker/skytour/pkg/types"
)

// ErrTargetNotFound is returned when a place name matches no POI.
var ErrTargetNotFound = errors.New("dialogue: target not found")

// Positioner supplies the latest telemetry sample. It returns
// telemetry.ErrStale when there is no fresh one.
type Positioner interface {
	Latest() (types.TelemetrySample, error)
}

// Switcher reorders completion providers.
type Switcher interface {
	Prefer(name string) error
}

// Config tunes the orchestrator.
type Config struct {
	ContextWindow     int           // exchanges sent with a question
	CompletionTimeout time.Duration // bound on one completion
	PlaceRadiusNM     float64       // POIs this close name the area being flown over
	SystemPrompt      string        // %s is replaced by the position description
}

// DefaultConfig returns the default orchestrator tuning.
func DefaultConfig() Config {
	return Config{
		ContextWindow:     4,
		CompletionTimeout: 8 * time.Second,
		PlaceRadiusNM:     25,
		SystemPrompt: "You are an AI flight tour guide and copilot. %s " +
			"Keep responses clear, informative, and concise, two or three sentences at most.",
	}
}

// Deps are the orchestrator's collaborators. Completer and Switcher may be
// nil.
type Deps struct {
	Position  Positioner
	Index     *poi.Index
	Filter    *relevance.Filter
	Planner   *navigation.Planner
	Completer llm.Completer
	Switcher  Switcher
	Logger    *slog.Logger
}

// Orchestrator answers classified utterances. It implements
// voice.Responder.
type Orchestrator struct {
	cfg       Config
	pos       Positioner
	index     *poi.Index
	filter    *relevance.Filter
	planner   *navigation.Planner
	completer llm.Completer
	switcher  Switcher
	logger    *slog.Logger
}

var _ voice.Responder = (*Orchestrator)(nil)

// New creates an Orchestrator.
func New(cfg Config, deps Deps) *Orchestrator {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.Completer == nil {
		deps.Completer = llm.None{}
	}
	return &Orchestrator{
		cfg:       cfg,
		pos:       deps.Position,
		index:     deps.Index,
		filter:    deps.Filter,
		planner:   deps.Planner,
		completer: deps.Completer,
		switcher:  deps.Switcher,
		logger:    deps.Logger.With("component", "dialogue"),
	}
}

// Respond answers one utterance. Failures are turned into spoken text, so
// the returned error is only set when ctx ends first.
func (o *Orchestrator) Respond(ctx context.Context, in intent.Intent, history []voice.Exchange) (string, error) {
	o.logger.Debug("responding", "intent", in.Kind, "target", in.Target)

	switch in.Kind {
	case intent.Location:
		return o.location(), nil
	case intent.Direction:
		return o.direction(in.Target), nil
	case intent.Nearby:
		return o.nearby(), nil
	case intent.NavigationStatus:
		return formatStatus(o.planner.Status()), nil
	case intent.CancelNavigation:
		return o.cancel(), nil
	case intent.SwitchProvider:
		return o.switchProvider(in.Target), nil
	case intent.Reset:
		return ResetText, nil
	case intent.Resume, intent.Wake:
		return ListeningText, nil
	case intent.Question:
		return o.question(ctx, in.Text, history)
	default:
		return NotUnderstood, nil
	}
}

func (o *Orchestrator) location() string {
	s, err := o.pos.Latest()
	if err != nil {
		return StaleText
	}
	var nearest *relevance.Score
	if scores := o.filter.Responsive(s); len(scores) > 0 {
		nearest = &scores[0]
	}
	return describePosition(s, o.placeName(s), nearest)
}

// placeName names the area around the sample from the closest POI region,
// falling back to coordinates.
func (o *Orchestrator) placeName(s types.TelemetrySample) string {
	hits := o.index.QueryRadius(position(s), o.cfg.PlaceRadiusNM)
	for _, h := range hits {
		if h.POI.Region != "" {
			return h.POI.Region
		}
	}
	return formatCoordinates(s.Latitude, s.Longitude)
}

func (o *Orchestrator) direction(name string) string {
	if strings.TrimSpace(name) == "" {
		return AskTargetText
	}
	res, err := o.Navigate(name)
	if errors.Is(err, ErrTargetNotFound) {
		return NotFoundText
	}
	if !res.HasGuidance {
		return fmt.Sprintf("Navigating to %s. %s I'll give you a heading as soon as it updates.", res.Target.Name, StaleText)
	}
	return FormatGuidance(res.Event)
}

// NavigateResult is the outcome of setting a new target.
type NavigateResult struct {
	Target      poi.POI
	Similarity  float64
	Event       navigation.GuidanceEvent
	HasGuidance bool // false when telemetry is stale; guidance follows the next fresh sample
}

// Navigate resolves name against the POI index and makes it the active
// target. On ErrTargetNotFound the active target is left untouched.
func (o *Orchestrator) Navigate(name string) (NavigateResult, error) {
	p, sim, ok := o.index.Match(name)
	if !ok {
		o.logger.Info("navigation target not found", "query", name)
		return NavigateResult{}, fmt.Errorf("%w: %q", ErrTargetNotFound, name)
	}
	s, err := o.pos.Latest()
	ev, has := o.planner.SetTarget(p, s, err == nil)
	o.logger.Info("navigation target set", "poi", p.ID, "similarity", sim, "fresh", err == nil)
	return NavigateResult{Target: p, Similarity: sim, Event: ev, HasGuidance: has}, nil
}

// Nearby returns the POIs worth mentioning from the current position.
func (o *Orchestrator) Nearby() ([]relevance.Score, error) {
	s, err := o.pos.Latest()
	if err != nil {
		return nil, err
	}
	return o.filter.Responsive(s), nil
}

func (o *Orchestrator) nearby() string {
	scores, err := o.Nearby()
	if err != nil {
		return StaleText
	}
	return formatNearby(scores)
}

func (o *Orchestrator) cancel() string {
	target, ok := o.planner.Target()
	if !ok || !o.planner.Clear() {
		return "There's no active navigation to cancel."
	}
	return fmt.Sprintf("Navigation to %s cancelled.", target.Name)
}

func (o *Orchestrator) switchProvider(name string) string {
	if o.switcher == nil {
		return "I only have one assistant configured."
	}
	name = strings.ToLower(strings.TrimSpace(name))
	if err := o.switcher.Prefer(name); err != nil {
		o.logger.Info("provider switch refused", "provider", name, "error", err)
		return fmt.Sprintf("I can't switch to %s.", name)
	}
	return fmt.Sprintf("Switched to %s.", name)
}

func (o *Orchestrator) question(ctx context.Context, text string, history []voice.Exchange) (string, error) {
	if o.cfg.CompletionTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.cfg.CompletionTimeout)
		defer cancel()
	}

	prompt := llm.Prompt{
		System:   fmt.Sprintf(o.cfg.SystemPrompt, o.positionFacts()),
		History:  window(history, o.cfg.ContextWindow),
		Question: text,
	}
	answer, err := o.completer.Complete(ctx, prompt)
	if err == nil {
		return answer, nil
	}

	o.logger.Warn("completion failed", "error", err)
	if errors.Is(err, context.Canceled) {
		// The machine cancelled us; nothing will be spoken.
		return "", err
	}
	return apology(err), nil
}

func (o *Orchestrator) positionFacts() string {
	s, err := o.pos.Latest()
	if err != nil {
		return "The aircraft position is currently unknown."
	}
	return fmt.Sprintf("The pilot is currently flying over %s at %.0f feet above ground, heading %.0f degrees at %.0f knots.",
		o.placeName(s), s.AltitudeAGL, s.HeadingTrue, s.GroundSpeed)
}

// window converts the newest n exchanges, oldest first.
func window(history []voice.Exchange, n int) []llm.Exchange {
	if n <= 0 {
		return nil
	}
	if len(history) > n {
		history = history[len(history)-n:]
	}
	out := make([]llm.Exchange, len(history))
	for i, ex := range history {
		out[i] = llm.Exchange{Utterance: ex.Utterance, Response: ex.Response}
	}
	return out
}

func apology(err error) string {
	var apiErr *llm.APIError
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return "Sorry, that took too long to answer. Please try again."
	case errors.Is(err, llm.ErrProviderUnavailable):
		return "Sorry, I can't answer general questions right now."
	case errors.As(err, &apiErr) && apiErr.IsRateLimited():
		return "I'm getting too many questions at once. Please ask again in a moment."
	default:
		return "Sorry, I'm having trouble reaching the assistant. Please try again later."
	}
}
