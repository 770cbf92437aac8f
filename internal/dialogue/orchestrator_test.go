package dialogue

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eytandecker/skytour/internal/intent"
	"github.com/eytandecker/skytour/internal/llm"
	"github.com/eytandecker/skytour/internal/navigation"
	"github.com/eytandecker/skytour/internal/poi"
	"github.com/eytandecker/skytour/internal/relevance"
	"github.com/eytandecker/skytour/internal/telemetry"
	"github.com/eytandecker/skytour/internal/voice"
	"github.com/eytandecker/skytour/pkg/types"
)

type fakePosition struct {
	mu   sync.Mutex
	s    types.TelemetrySample
	err  error
	subs []chan struct{}
}

func (f *fakePosition) Latest() (types.TelemetrySample, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.s, f.err
}

func (f *fakePosition) Subscribe() <-chan struct{} {
	f.mu.Lock()
	defer f.mu.Unlock()
	ch := make(chan struct{}, 1)
	f.subs = append(f.subs, ch)
	return ch
}

func (f *fakePosition) set(s types.TelemetrySample, err error) {
	f.mu.Lock()
	f.s, f.err = s, err
	subs := f.subs
	f.mu.Unlock()
	for _, ch := range subs {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}

func sanAntonioPOIs() []poi.POI {
	return []poi.POI{
		{ID: "the-alamo", Name: "The Alamo", Latitude: 29.4252, Longitude: -98.4861, MinAltitude: 300, MaxDistance: 5, Category: "historic", Region: "San Antonio", Aliases: []string{"alamo mission"}},
		{ID: "river-walk", Name: "San Antonio River Walk", Latitude: 29.4238, Longitude: -98.4895, MinAltitude: 300, MaxDistance: 4, Category: "urban", Region: "San Antonio"},
		{ID: "tower", Name: "Tower of the Americas", Latitude: 29.4189, Longitude: -98.4837, MinAltitude: 200, MaxDistance: 10, Category: "landmark", Region: "San Antonio"},
	}
}

// downtown is just west of the Alamo, eastbound at 1500ft and 100kt.
func downtown() types.TelemetrySample {
	return types.TelemetrySample{Latitude: 29.4241, Longitude: -98.4936, HeadingTrue: 80, AltitudeAGL: 1500, GroundSpeed: 100}
}

type fixture struct {
	o       *Orchestrator
	pos     *fakePosition
	planner *navigation.Planner
	filter  *relevance.Filter
	llm     *llm.Mock
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newFixture(t *testing.T, cfg Config) *fixture {
	t.Helper()
	pos := &fakePosition{s: downtown()}
	index := poi.NewIndex(sanAntonioPOIs(), 0)
	filter := relevance.NewFilter(index, relevance.DefaultConfig())
	planner := navigation.NewPlanner(navigation.DefaultConfig())
	mock := llm.NewMock("The river was rerouted in the 1920s.")

	o := New(cfg, Deps{
		Position:  pos,
		Index:     index,
		Filter:    filter,
		Planner:   planner,
		Completer: mock,
		Logger:    quietLogger(),
	})
	return &fixture{o: o, pos: pos, planner: planner, filter: filter, llm: mock}
}

func (f *fixture) respond(t *testing.T, text string, history ...voice.Exchange) string {
	t.Helper()
	in := intent.NewClassifier(intent.DefaultVocabulary()).Classify(text)
	out, err := f.o.Respond(context.Background(), in, history)
	require.NoError(t, err)
	return out
}

func TestRespondLocation(t *testing.T) {
	f := newFixture(t, DefaultConfig())

	out := f.respond(t, "where am I")
	assert.Contains(t, out, "You're flying over San Antonio at 1.5 thousand feet, heading 080° (east).")
	assert.Contains(t, out, "from here.")

	f.pos.set(types.TelemetrySample{}, telemetry.ErrStale)
	assert.Equal(t, StaleText, f.respond(t, "where am I"))
}

func TestRespondLocationFallsBackToCoordinates(t *testing.T) {
	f := newFixture(t, DefaultConfig())
	f.pos.set(types.TelemetrySample{Latitude: 10, Longitude: -20, HeadingTrue: 0, AltitudeAGL: 800}, nil)

	assert.Equal(t, "You're flying over 10.00 degrees north, 20.00 degrees west at 800 feet, heading 000° (north).",
		f.respond(t, "where am i"))
}

func TestRespondDirection(t *testing.T) {
	f := newFixture(t, DefaultConfig())

	out := f.respond(t, "take me to the alamo")
	assert.Equal(t, "Head 080° (east) for 4.0 cable lengths to reach The Alamo. At your current speed, you'll arrive in less than a minute.", out)

	target, ok := f.planner.Target()
	require.True(t, ok)
	assert.Equal(t, "the-alamo", target.ID)
}

func TestRespondDirectionNotFoundLeavesTarget(t *testing.T) {
	f := newFixture(t, DefaultConfig())

	assert.Equal(t, NotFoundText, f.respond(t, "take me to atlantis"))
	_, ok := f.planner.Target()
	assert.False(t, ok, "no target is set on a miss")

	f.respond(t, "navigate to the tower of the americas")
	assert.Equal(t, NotFoundText, f.respond(t, "fly to the lost city of gold"))
	target, ok := f.planner.Target()
	require.True(t, ok)
	assert.Equal(t, "tower", target.ID)
}

func TestRespondDirectionWhileStale(t *testing.T) {
	f := newFixture(t, DefaultConfig())
	f.pos.set(types.TelemetrySample{}, telemetry.ErrStale)

	out := f.respond(t, "take me to the river walk")
	assert.Contains(t, out, "Navigating to San Antonio River Walk.")

	st := f.planner.Status()
	assert.True(t, st.Active)
	assert.True(t, st.Stale)
}

func TestNavigateErrors(t *testing.T) {
	f := newFixture(t, DefaultConfig())
	_, err := f.o.Navigate("atlantis")
	assert.ErrorIs(t, err, ErrTargetNotFound)

	res, err := f.o.Navigate("alamo mission")
	require.NoError(t, err)
	assert.Equal(t, "the-alamo", res.Target.ID)
	assert.True(t, res.HasGuidance)
	assert.Equal(t, navigation.InitialHeading, res.Event.Kind)
}

func TestRespondNearby(t *testing.T) {
	f := newFixture(t, DefaultConfig())
	out := f.respond(t, "what's nearby")
	assert.Contains(t, out, "Nearby: ")
	assert.Contains(t, out, "o'clock")

	f.pos.set(types.TelemetrySample{}, telemetry.ErrStale)
	assert.Equal(t, StaleText, f.respond(t, "what's nearby"))
}

func TestRespondStatusAndCancel(t *testing.T) {
	f := newFixture(t, DefaultConfig())

	assert.Equal(t, NotNavigatingTxt, f.respond(t, "how far"))
	assert.Equal(t, "There's no active navigation to cancel.", f.respond(t, "cancel navigation"))

	f.respond(t, "take me to the tower of the americas")
	assert.Contains(t, f.respond(t, "how far"), "Tower of the Americas is ")
	assert.Equal(t, "Navigation to Tower of the Americas cancelled.", f.respond(t, "cancel navigation"))
	_, ok := f.planner.Target()
	assert.False(t, ok)
}

func TestRespondSwitchProvider(t *testing.T) {
	f := newFixture(t, DefaultConfig())
	assert.Equal(t, "I only have one assistant configured.", f.respond(t, "switch to grok"))

	openai, grok := llm.NewMock("o"), llm.NewMock("g")
	openai.ProviderName, grok.ProviderName = "openai", "grok"
	chain, err := llm.NewChain(quietLogger(), openai, grok)
	require.NoError(t, err)
	f.o.switcher = chain

	assert.Equal(t, "Switched to grok.", f.respond(t, "switch to grok"))
	assert.Equal(t, []string{"grok", "openai"}, chain.Names())
	assert.Equal(t, "I can't switch to claude.", f.respond(t, "switch to claude"))
}

func TestRespondControlPhrases(t *testing.T) {
	f := newFixture(t, DefaultConfig())
	assert.Equal(t, ResetText, f.respond(t, "reset"))
	assert.Equal(t, ListeningText, f.respond(t, "question"))
}

func TestRespondQuestionUsesBoundedContext(t *testing.T) {
	cfg := DefaultConfig()
	cfg.ContextWindow = 2
	f := newFixture(t, cfg)

	history := []voice.Exchange{
		{Utterance: "one", Response: "1"},
		{Utterance: "two", Response: "2"},
		{Utterance: "three", Response: "3"},
	}
	out := f.respond(t, "why is the river green", history...)
	assert.Equal(t, "The river was rerouted in the 1920s.", out)

	prompts := f.llm.Prompts()
	require.Len(t, prompts, 1)
	p := prompts[0]
	assert.Equal(t, "why is the river green", p.Question)
	assert.Equal(t, []llm.Exchange{{Utterance: "two", Response: "2"}, {Utterance: "three", Response: "3"}}, p.History)
	assert.Contains(t, p.System, "You are an AI flight tour guide and copilot.")
	assert.Contains(t, p.System, "flying over San Antonio at 1500 feet")
}

func TestRespondQuestionWhileStale(t *testing.T) {
	f := newFixture(t, DefaultConfig())
	f.pos.set(types.TelemetrySample{}, telemetry.ErrStale)

	f.respond(t, "what is a sectional chart")
	assert.Contains(t, f.llm.Prompts()[0].System, "The aircraft position is currently unknown.")
}

func TestRespondQuestionFailures(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"timeout", context.DeadlineExceeded, "Sorry, that took too long to answer. Please try again."},
		{"unavailable", &llm.ChainError{Errors: []error{llm.ErrProviderUnavailable}}, "Sorry, I can't answer general questions right now."},
		{"rate limited", llm.WrapError("openai", &llm.APIError{StatusCode: 429}), "I'm getting too many questions at once. Please ask again in a moment."},
		{"other", errors.New("boom"), "Sorry, I'm having trouble reaching the assistant. Please try again later."},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, DefaultConfig())
			f.llm.CompleteFunc = func(context.Context, llm.Prompt) (string, error) { return "", tt.err }
			assert.Equal(t, tt.want, f.respond(t, "why is the sky blue"))
		})
	}
}

func TestRespondQuestionCancelled(t *testing.T) {
	f := newFixture(t, DefaultConfig())
	f.llm.CompleteFunc = func(ctx context.Context, _ llm.Prompt) (string, error) {
		<-ctx.Done()
		return "", ctx.Err()
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := f.o.Respond(ctx, intent.Intent{Kind: intent.Question, Text: "why"}, nil)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRespondWithoutCompleter(t *testing.T) {
	o := New(DefaultConfig(), Deps{Position: &fakePosition{s: downtown()}, Index: poi.NewIndex(sanAntonioPOIs(), 0), Logger: quietLogger()})
	out, err := o.Respond(context.Background(), intent.Intent{Kind: intent.Question, Text: "why"}, nil)
	require.NoError(t, err)
	assert.Equal(t, "Sorry, I can't answer general questions right now.", out)
}

func TestWindow(t *testing.T) {
	h := []voice.Exchange{{Utterance: "a"}, {Utterance: "b"}}
	assert.Nil(t, window(h, 0))
	assert.Len(t, window(h, 5), 2)
	assert.Equal(t, "b", window(h, 1)[0].Utterance)
}
