// Package transcript delivers spoken lines to display and log surfaces
// without ever blocking the speaker.
package transcript

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// Speaker identifies who said a line.
type Speaker string

const (
	SpeakerPilot  Speaker = "pilot"
	SpeakerGuide  Speaker = "guide"
	SpeakerSystem Speaker = "system"
)

// DefaultBuffer is the queue depth used when NewPublisher is given zero.
const DefaultBuffer = 64

// Event is one transcript line.
type Event struct {
	ID      string    `json:"id"`
	Speaker Speaker   `json:"speaker"`
	Text    string    `json:"text"`
	Time    time.Time `json:"timestamp"`
}

// Sink receives published events. Deliver is called from the publisher's
// run loop, one event at a time, and should return promptly.
type Sink interface {
	Deliver(Event)
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(Event)

// Deliver calls f.
func (f SinkFunc) Deliver(e Event) { f(e) }

// Publisher queues events and fans them out to sinks.
type Publisher struct {
	queue   chan Event
	logger  *slog.Logger
	dropped atomic.Uint64

	mu    sync.RWMutex
	sinks []Sink
}

// NewPublisher creates a publisher with the given queue depth.
func NewPublisher(buffer int, logger *slog.Logger, sinks ...Sink) *Publisher {
	if buffer <= 0 {
		buffer = DefaultBuffer
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Publisher{
		queue:  make(chan Event, buffer),
		logger: logger.With("component", "transcript"),
		sinks:  sinks,
	}
}

// AddSink registers another sink.
func (p *Publisher) AddSink(s Sink) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.sinks = append(p.sinks, s)
}

// Publish enqueues a line and reports whether it was accepted. A full queue
// drops the line and counts it.
func (p *Publisher) Publish(speaker Speaker, text string, ts time.Time) bool {
	return p.enqueue(Event{ID: uuid.NewString(), Speaker: speaker, Text: text, Time: ts})
}

func (p *Publisher) enqueue(e Event) bool {
	select {
	case p.queue <- e:
		return true
	default:
		n := p.dropped.Add(1)
		p.logger.Warn("transcript queue full, dropping event", "speaker", e.Speaker, "dropped_total", n)
		return false
	}
}

// Dropped returns how many events were dropped because the queue was full.
func (p *Publisher) Dropped() uint64 {
	return p.dropped.Load()
}

// Stage prepares a line that is published only if Commit is called.
func (p *Publisher) Stage(speaker Speaker, text string, ts time.Time) *Pending {
	return &Pending{
		pub:   p,
		event: Event{ID: uuid.NewString(), Speaker: speaker, Text: text, Time: ts},
	}
}

// Run delivers queued events to every sink until ctx is cancelled, then
// drains what is already queued.
func (p *Publisher) Run(ctx context.Context) error {
	for {
		select {
		case e := <-p.queue:
			p.deliver(e)
		case <-ctx.Done():
			for {
				select {
				case e := <-p.queue:
					p.deliver(e)
				default:
					return ctx.Err()
				}
			}
		}
	}
}

func (p *Publisher) deliver(e Event) {
	p.mu.RLock()
	sinks := p.sinks
	p.mu.RUnlock()
	for _, s := range sinks {
		s.Deliver(e)
	}
}

// Pending is a staged line. Exactly one of Commit or Discard takes effect.
type Pending struct {
	pub   *Publisher
	event Event
	once  sync.Once
}

// Event returns the staged event.
func (pp *Pending) Event() Event {
	return pp.event
}

// Commit publishes the staged line. It reports whether this call resolved
// the pending line and the queue accepted it.
func (pp *Pending) Commit() bool {
	ok := false
	pp.once.Do(func() {
		ok = pp.pub.enqueue(pp.event)
	})
	return ok
}

// Discard drops the staged line. It reports whether this call resolved it.
func (pp *Pending) Discard() bool {
	ok := false
	pp.once.Do(func() {
		ok = true
	})
	return ok
}
