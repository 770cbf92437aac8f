package voice

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/eytandecker/skytour/internal/intent"
	"github.com/eytandecker/skytour/internal/speech"
	"github.com/eytandecker/skytour/internal/transcript"
)

// Config tunes the machine.
type Config struct {
	IdleTimeout           time.Duration
	RecognitionTimeout    time.Duration
	ResponseTimeout       time.Duration
	SynthesisTimeout      time.Duration
	PlaybackTimeout       time.Duration
	MaxRecognitionRetries int
	HistorySize           int
	GuidanceMaxAge        time.Duration
	InboxSize             int

	RetryPrompt string
	Apology     string
}

// DefaultConfig returns the default tuning.
func DefaultConfig() Config {
	return Config{
		IdleTimeout:           30 * time.Second,
		RecognitionTimeout:    10 * time.Second,
		ResponseTimeout:       12 * time.Second,
		SynthesisTimeout:      10 * time.Second,
		PlaybackTimeout:       90 * time.Second,
		MaxRecognitionRetries: 2,
		HistorySize:           10,
		GuidanceMaxAge:        15 * time.Second,
		InboxSize:             32,
		RetryPrompt:           "Sorry, I didn't catch that. Please say it again.",
		Apology:               "Sorry, I can't answer that right now.",
	}
}

// Trigger is a discrete control input that bypasses recognition.
type Trigger int

const (
	TriggerWake Trigger = iota
	TriggerWait
	TriggerResume
	TriggerDeactivate
	TriggerReactivate
)

var triggerEvents = map[Trigger]Event{
	TriggerWake:       EventWake,
	TriggerWait:       EventWait,
	TriggerResume:     EventResume,
	TriggerDeactivate: EventDeactivate,
	TriggerReactivate: EventReactivate,
}

// ParseTrigger maps a trigger name such as "wake" to a Trigger.
func ParseTrigger(name string) (Trigger, bool) {
	for t, e := range triggerEvents {
		if e.String() == name {
			return t, true
		}
	}
	return 0, false
}

// Exchange is one answered utterance.
type Exchange struct {
	Utterance string    `json:"utterance"`
	Response  string    `json:"response"`
	Time      time.Time `json:"timestamp"`
}

// Responder produces the answer for a classified utterance. history holds
// earlier exchanges, oldest first.
type Responder interface {
	Respond(ctx context.Context, in intent.Intent, history []Exchange) (string, error)
}

// ResponderFunc adapts a function to Responder.
type ResponderFunc func(ctx context.Context, in intent.Intent, history []Exchange) (string, error)

// Respond calls f.
func (f ResponderFunc) Respond(ctx context.Context, in intent.Intent, history []Exchange) (string, error) {
	return f(ctx, in, history)
}

// Transcript receives the lines the machine speaks or hears.
type Transcript interface {
	Publish(speaker transcript.Speaker, text string, ts time.Time) bool
	Stage(speaker transcript.Speaker, text string, ts time.Time) *transcript.Pending
}

// AnnouncementKind separates navigation guidance from sightseeing
// suggestions.
type AnnouncementKind int

const (
	AnnouncementProactive AnnouncementKind = iota
	AnnouncementGuidance
)

// Announcement is an unprompted line offered to the machine.
type Announcement struct {
	Kind AnnouncementKind
	Text string
	Time time.Time
}

// Snapshot is a read-only copy of the conversation state.
type Snapshot struct {
	State    State      `json:"state"`
	Busy     bool       `json:"busy"`
	LastWake time.Time  `json:"last_wake"`
	History  []Exchange `json:"history"`
}

// Deps are the collaborators of a Machine. Nil providers fall back to
// text-only operation.
type Deps struct {
	Classifier  *intent.Classifier
	Responder   Responder
	Transcriber speech.Transcriber
	Synthesizer speech.Synthesizer
	Player      speech.Player
	Transcript  Transcript
	Logger      *slog.Logger
}

type inputKind int

const (
	inputTrigger inputKind = iota
	inputText
	inputAudio
)

type input struct {
	kind    inputKind
	trigger Trigger
	text    string
	audio   []byte
}

type opKind int

const (
	opListen opKind = iota
	opTranscribe
	opRespond
	opSpeak
	opAnnounce
)

var opNames = [...]string{"listen", "transcribe", "respond", "speak", "announce"}

func (k opKind) String() string { return opNames[k] }

type operation struct {
	id      uint64
	kind    opKind
	cancel  context.CancelFunc
	pending *transcript.Pending

	utterance string
	reply     string
}

type result struct {
	id   uint64
	text string
	err  error
}

const maxHeldGuidance = 8

// Machine is the conversation state machine. All state changes happen on
// the goroutine running Run; other goroutines submit inputs and read
// snapshots.
type Machine struct {
	cfg        Config
	classifier *intent.Classifier
	responder  Responder
	stt        speech.Transcriber
	tts        speech.Synthesizer
	player     speech.Player
	pub        Transcript
	logger     *slog.Logger
	now        func() time.Time

	inbox   chan input
	offers  chan Announcement
	results chan result

	// Owned by the Run goroutine.
	state     State
	op        *operation
	nextOpID  uint64
	failures  int
	guidance  []Announcement
	idle      *time.Timer
	idleArmed bool
	runCtx    context.Context
	ops       sync.WaitGroup

	mu   sync.RWMutex
	snap Snapshot
}

// New creates a Machine in IDLE.
func New(cfg Config, deps Deps) *Machine {
	if cfg.InboxSize <= 0 {
		cfg.InboxSize = DefaultConfig().InboxSize
	}
	if cfg.HistorySize <= 0 {
		cfg.HistorySize = DefaultConfig().HistorySize
	}
	if deps.Classifier == nil {
		deps.Classifier = intent.NewClassifier(intent.DefaultVocabulary())
	}
	if deps.Transcriber == nil {
		deps.Transcriber = speech.None{}
	}
	if deps.Synthesizer == nil {
		deps.Synthesizer = speech.None{}
	}
	if deps.Player == nil {
		deps.Player = speech.DiscardPlayer{}
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}

	idle := time.NewTimer(time.Hour)
	idle.Stop()

	return &Machine{
		cfg:        cfg,
		classifier: deps.Classifier,
		responder:  deps.Responder,
		stt:        deps.Transcriber,
		tts:        deps.Synthesizer,
		player:     deps.Player,
		pub:        deps.Transcript,
		logger:     deps.Logger.With("component", "voice"),
		now:        time.Now,
		inbox:      make(chan input, cfg.InboxSize),
		offers:     make(chan Announcement, maxHeldGuidance),
		results:    make(chan result),
		state:      StateIdle,
		idle:       idle,
		snap:       Snapshot{State: StateIdle},
	}
}

// Trigger submits a discrete control input. It never blocks and reports
// whether the input was queued.
func (m *Machine) Trigger(t Trigger) bool {
	return m.submit(input{kind: inputTrigger, trigger: t})
}

// SubmitText submits an utterance that is already text.
func (m *Machine) SubmitText(text string) bool {
	return m.submit(input{kind: inputText, text: text})
}

// SubmitAudio submits a captured utterance for transcription.
func (m *Machine) SubmitAudio(audio []byte) bool {
	return m.submit(input{kind: inputAudio, audio: audio})
}

func (m *Machine) submit(in input) bool {
	select {
	case m.inbox <- in:
		return true
	default:
		m.logger.Warn("voice inbox full, dropping input", "kind", in.kind)
		return false
	}
}

// Offer proposes an announcement. Proactive suggestions are refused unless
// the machine can speak now; guidance is held until it can.
func (m *Machine) Offer(a Announcement) bool {
	if a.Time.IsZero() {
		a.Time = m.now()
	}
	if a.Kind == AnnouncementProactive && !m.Accepting() {
		return false
	}
	select {
	case m.offers <- a:
		return true
	default:
		return false
	}
}

// Accepting reports whether an announcement could be spoken right now.
func (m *Machine) Accepting() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return !m.snap.Busy && (m.snap.State == StateIdle || m.snap.State == StateActive)
}

// State returns the current state.
func (m *Machine) State() State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.snap.State
}

// Snapshot returns a copy of the conversation state.
func (m *Machine) Snapshot() Snapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s := m.snap
	s.History = append([]Exchange(nil), m.snap.History...)
	return s
}

// Run processes inputs until ctx is cancelled.
func (m *Machine) Run(ctx context.Context) error {
	m.runCtx = ctx
	defer func() {
		m.cancelOp()
		m.idle.Stop()
		m.ops.Wait()
	}()

	for {
		var idleC <-chan time.Time
		if m.idleArmed {
			idleC = m.idle.C
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case in := <-m.inbox:
			m.handleInput(in)
		case r := <-m.results:
			m.handleResult(r)
		case a := <-m.offers:
			m.handleOffer(a)
		case <-idleC:
			m.idleArmed = false
			m.fire(EventIdleTimeout)
		}

		m.tryAnnounce()
		m.rearmIdle()
		m.publishBusy()
	}
}

func (m *Machine) handleInput(in input) {
	switch in.kind {
	case inputTrigger:
		e := triggerEvents[in.trigger]
		if err := m.fire(e); err != nil {
			m.logger.Debug("trigger ignored", "trigger", e, "state", m.state)
		}
	case inputText:
		m.handleUtterance(m.classifier.Classify(in.text), false)
	case inputAudio:
		m.handleAudio(in.audio)
	}
}

func (m *Machine) handleAudio(audio []byte) {
	switch m.state {
	case StateActive:
		if m.op != nil && m.op.kind != opAnnounce {
			m.logger.Debug("audio dropped, operation outstanding", "op", m.op.kind)
			return
		}
		m.fire(EventUtterance)
		m.startTranscribe(audio, opTranscribe)
	case StateIdle, StateWaiting:
		if m.op != nil {
			m.logger.Debug("audio dropped, operation outstanding", "op", m.op.kind, "state", m.state)
			return
		}
		m.startTranscribe(audio, opListen)
	default:
		m.logger.Debug("audio dropped", "state", m.state)
	}
}

// handleUtterance applies a classified utterance in the current state.
// heard is set when it came from transcription while PROCESSING.
func (m *Machine) handleUtterance(in intent.Intent, heard bool) {
	if in.Kind == intent.Unknown {
		if heard {
			m.recognitionFailed()
		}
		return
	}

	switch in.Kind {
	case intent.Wake:
		if !m.fireHeard(EventWake, in.Text) {
			return
		}
		if in.Remainder != "" {
			m.handleUtterance(m.classifier.Classify(in.Remainder), false)
		}
		return
	case intent.Wait:
		if m.fireHeard(EventWait, in.Text) {
			return
		}
	case intent.Deactivate:
		if m.fireHeard(EventDeactivate, in.Text) {
			return
		}
	case intent.Resume:
		if m.fireHeard(EventResume, in.Text) {
			return
		}
	}

	switch m.state {
	case StateActive:
		m.fire(EventUtterance)
		m.pilotSaid(in.Text)
		m.startRespond(in)
	case StateProcessing:
		if heard {
			m.pilotSaid(in.Text)
			m.startRespond(in)
			return
		}
		m.logger.Debug("utterance dropped, already processing", "text", in.Text)
	default:
		m.logger.Debug("utterance ignored", "state", m.state, "intent", in.Kind)
	}
}

// fireHeard applies a spoken control phrase, publishing it first so the
// transcript reads in order. It reports whether the state accepted it.
func (m *Machine) fireHeard(e Event, text string) bool {
	if _, err := Next(m.state, e); err != nil {
		return false
	}
	m.pilotSaid(text)
	return m.fire(e) == nil
}

func (m *Machine) pilotSaid(text string) {
	if m.pub != nil && text != "" {
		m.pub.Publish(transcript.SpeakerPilot, text, m.now())
	}
}

func (m *Machine) systemSaid(text string) {
	if m.pub != nil {
		m.pub.Publish(transcript.SpeakerSystem, text, m.now())
	}
}

func (m *Machine) handleResult(r result) {
	op := m.op
	if op == nil || op.id != r.id {
		m.logger.Debug("stale result discarded", "op_id", r.id)
		return
	}
	m.op = nil

	switch op.kind {
	case opListen:
		if r.err != nil {
			m.logger.Debug("listening transcription failed", "error", r.err)
			return
		}
		m.handleUtterance(m.classifier.Classify(r.text), false)

	case opTranscribe:
		if r.err != nil {
			m.logger.Warn("recognition failed", "error", r.err, "consecutive", m.failures+1)
			m.recognitionFailed()
			return
		}
		m.failures = 0
		m.handleUtterance(m.classifier.Classify(r.text), true)

	case opRespond:
		reply := r.text
		if r.err != nil {
			m.logger.Warn("response failed", "error", r.err)
			reply = m.cfg.Apology
		}
		m.fire(EventResolved)
		if reply == "" {
			m.fire(EventSpoken)
			return
		}
		m.startSpeak(op.utterance, reply)

	case opSpeak:
		m.finishSpeech(op, r.err)
		m.appendHistory(Exchange{Utterance: op.utterance, Response: op.reply, Time: m.now()})
		m.fire(EventSpoken)

	case opAnnounce:
		m.finishSpeech(op, r.err)
	}
}

func (m *Machine) finishSpeech(op *operation, err error) {
	if err != nil {
		m.logger.Warn("speech failed, continuing text-only", "op", op.kind, "error", err)
	}
	if op.pending != nil {
		op.pending.Commit()
	}
}

func (m *Machine) recognitionFailed() {
	if m.state != StateProcessing {
		return
	}
	m.failures++
	m.fire(EventRecognitionFailed)
	if m.failures > m.cfg.MaxRecognitionRetries {
		m.failures = 0
		return
	}
	m.startAnnounce(m.cfg.RetryPrompt)
}

func (m *Machine) handleOffer(a Announcement) {
	if a.Kind == AnnouncementGuidance {
		m.guidance = append(m.guidance, a)
		if len(m.guidance) > maxHeldGuidance {
			m.guidance = m.guidance[len(m.guidance)-maxHeldGuidance:]
		}
		return
	}
	if !m.canAnnounce() || m.freshGuidance() {
		m.logger.Debug("proactive announcement dropped", "state", m.state)
		return
	}
	m.startAnnounce(a.Text)
}

func (m *Machine) canAnnounce() bool {
	return m.op == nil && (m.state == StateIdle || m.state == StateActive)
}

// freshGuidance drops expired guidance and reports whether any is left.
func (m *Machine) freshGuidance() bool {
	now := m.now()
	kept := m.guidance[:0]
	for _, g := range m.guidance {
		if m.cfg.GuidanceMaxAge <= 0 || now.Sub(g.Time) <= m.cfg.GuidanceMaxAge {
			kept = append(kept, g)
		} else {
			m.logger.Debug("guidance expired before it could be spoken", "text", g.Text)
		}
	}
	m.guidance = kept
	return len(m.guidance) > 0
}

func (m *Machine) tryAnnounce() {
	if !m.canAnnounce() || !m.freshGuidance() {
		return
	}
	next := m.guidance[0]
	m.guidance = m.guidance[1:]
	m.startAnnounce(next.Text)
}

// fire applies e through the transition table. Any outstanding operation
// is cancelled first.
func (m *Machine) fire(e Event) error {
	to, err := Next(m.state, e)
	if err != nil {
		return err
	}
	m.cancelOp()

	from := m.state
	m.state = to
	if to == StateActive && m.idleArmed {
		m.idle.Stop()
		m.idleArmed = false
	}
	switch to {
	case StateIdle, StateWaiting, StateDeactivated:
		m.failures = 0
	}
	if e == EventWake {
		m.failures = 0
	}

	m.mu.Lock()
	m.snap.State = to
	if e == EventWake {
		m.snap.LastWake = m.now()
	}
	m.mu.Unlock()

	if from != to {
		m.logger.Info("state transition", "from", from, "to", to, "event", e)
	}
	switch {
	case to == StateDeactivated && from != to:
		m.systemSaid("Voice guide deactivated.")
	case e == EventReactivate:
		m.systemSaid("Voice guide reactivated.")
	}
	return nil
}

func (m *Machine) cancelOp() {
	if m.op == nil {
		return
	}
	m.logger.Debug("operation cancelled", "op", m.op.kind, "op_id", m.op.id)
	m.op.cancel()
	if m.op.pending != nil {
		m.op.pending.Discard()
	}
	m.op = nil
}

func (m *Machine) rearmIdle() {
	if m.state == StateActive && m.op == nil {
		if !m.idleArmed && m.cfg.IdleTimeout > 0 {
			m.idle.Reset(m.cfg.IdleTimeout)
			m.idleArmed = true
		}
		return
	}
	if m.idleArmed {
		m.idle.Stop()
		m.idleArmed = false
	}
}

func (m *Machine) publishBusy() {
	busy := m.op != nil
	m.mu.Lock()
	m.snap.Busy = busy
	m.mu.Unlock()
}

func (m *Machine) appendHistory(ex Exchange) {
	m.mu.Lock()
	defer m.mu.Unlock()
	h := append(m.snap.History, ex)
	if len(h) > m.cfg.HistorySize {
		h = append([]Exchange(nil), h[len(h)-m.cfg.HistorySize:]...)
	}
	m.snap.History = h
}

func (m *Machine) clearHistory() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.snap.History = nil
}

func (m *Machine) history() []Exchange {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]Exchange(nil), m.snap.History...)
}

// start launches fn as the single outstanding operation.
func (m *Machine) start(kind opKind, timeout time.Duration, fn func(ctx context.Context) (string, error)) *operation {
	m.cancelOp()
	m.nextOpID++
	var (
		ctx    context.Context
		cancel context.CancelFunc
	)
	if timeout > 0 {
		ctx, cancel = context.WithTimeout(m.runCtx, timeout)
	} else {
		ctx, cancel = context.WithCancel(m.runCtx)
	}
	op := &operation{id: m.nextOpID, kind: kind, cancel: cancel}
	m.op = op

	m.ops.Add(1)
	go func() {
		defer m.ops.Done()
		defer cancel()
		text, err := fn(ctx)
		select {
		case m.results <- result{id: op.id, text: text, err: err}:
		case <-m.runCtx.Done():
		}
	}()
	return op
}

func (m *Machine) startTranscribe(audio []byte, kind opKind) {
	m.start(kind, m.cfg.RecognitionTimeout, func(ctx context.Context) (string, error) {
		return m.stt.Transcribe(ctx, audio)
	})
}

func (m *Machine) startRespond(in intent.Intent) {
	if in.Kind == intent.Reset {
		m.clearHistory()
	}
	history := m.history()
	responder := m.responder
	op := m.start(opRespond, m.cfg.ResponseTimeout, func(ctx context.Context) (string, error) {
		if responder == nil {
			return "", errors.New("voice: no responder")
		}
		return responder.Respond(ctx, in, history)
	})
	op.utterance = in.Text
}

func (m *Machine) startSpeak(utterance, reply string) {
	op := m.start(opSpeak, 0, func(ctx context.Context) (string, error) {
		return "", m.speak(ctx, reply)
	})
	op.utterance = utterance
	op.reply = reply
	if m.pub != nil {
		op.pending = m.pub.Stage(transcript.SpeakerGuide, reply, m.now())
	}
}

func (m *Machine) startAnnounce(text string) {
	op := m.start(opAnnounce, 0, func(ctx context.Context) (string, error) {
		return "", m.speak(ctx, text)
	})
	op.reply = text
	if m.pub != nil {
		op.pending = m.pub.Stage(transcript.SpeakerGuide, text, m.now())
	}
}

// speak synthesizes and plays text. Synthesis is bounded by
// SynthesisTimeout and playback by PlaybackTimeout.
func (m *Machine) speak(ctx context.Context, text string) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var timer *time.Timer
	if m.cfg.SynthesisTimeout > 0 {
		timer = time.AfterFunc(m.cfg.SynthesisTimeout, cancel)
	}
	stream, err := m.tts.Synthesize(ctx, text)
	if timer != nil && !timer.Stop() && err == nil {
		stream.Close()
		return context.DeadlineExceeded
	}
	if err != nil {
		return err
	}

	if m.cfg.PlaybackTimeout > 0 {
		var pcancel context.CancelFunc
		ctx, pcancel = context.WithTimeout(ctx, m.cfg.PlaybackTimeout)
		defer pcancel()
	}
	return m.player.Play(ctx, stream)
}
