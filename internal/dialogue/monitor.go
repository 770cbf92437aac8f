package dialogue

import (
	"context"
	"log/slog"
	"time"

	"github.com/eytandecker/skytour/internal/geo"
	"github.com/eytandecker/skytour/internal/navigation"
	"github.com/eytandecker/skytour/internal/relevance"
	"github.com/eytandecker/skytour/internal/voice"
	"github.com/eytandecker/skytour/pkg/types"
)

// Feed is a telemetry source that signals changes.
type Feed interface {
	Positioner
	Subscribe() <-chan struct{}
}

// Announcer accepts unprompted announcements.
type Announcer interface {
	Offer(a voice.Announcement) bool
}

// Monitor drives the navigation planner and the proactive suggestions from
// telemetry, independent of the conversation.
type Monitor struct {
	feed      Feed
	filter    *relevance.Filter
	planner   *navigation.Planner
	announcer Announcer
	logger    *slog.Logger
	now       func() time.Time

	stale    bool
	observed bool
}

// NewMonitor creates a Monitor.
func NewMonitor(feed Feed, filter *relevance.Filter, planner *navigation.Planner, announcer Announcer, logger *slog.Logger) *Monitor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Monitor{
		feed:      feed,
		filter:    filter,
		planner:   planner,
		announcer: announcer,
		logger:    logger.With("component", "dialogue.monitor"),
		now:       time.Now,
	}
}

// Run evaluates every telemetry signal until ctx is cancelled.
func (mo *Monitor) Run(ctx context.Context) error {
	sig := mo.feed.Subscribe()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-sig:
			mo.step()
		}
	}
}

func (mo *Monitor) step() {
	now := mo.now()
	s, err := mo.feed.Latest()
	if err != nil {
		if !mo.stale {
			mo.stale = true
			mo.planner.MarkStale()
			mo.logger.Warn("telemetry stale, guidance paused")
			if mo.observed {
				mo.offer(voice.AnnouncementGuidance, StaleNoticeText, now)
			}
		}
		return
	}
	if mo.stale && mo.observed {
		mo.logger.Info("telemetry recovered")
		mo.offer(voice.AnnouncementGuidance, RecoveredText, now)
	}
	mo.stale = false
	mo.observed = true

	events := mo.planner.Update(s)
	for _, e := range events {
		mo.logger.Info("guidance event", "kind", e.Kind, "poi", e.Target.ID, "distance_nm", e.DistanceNM)
		mo.offer(voice.AnnouncementGuidance, FormatGuidance(e), now)
	}
	if len(events) > 0 {
		return
	}

	cand, ok := mo.filter.Proactive(s, now)
	if !ok {
		return
	}
	if target, active := mo.planner.Target(); active && target.ID == cand.POI.ID {
		return
	}
	if mo.offer(voice.AnnouncementProactive, FormatSuggestion(cand), now) {
		mo.filter.MarkAnnounced(cand.POI.ID, now)
		mo.logger.Info("suggested point of interest", "poi", cand.POI.ID, "score", cand.Score)
	}
}

func (mo *Monitor) offer(kind voice.AnnouncementKind, text string, now time.Time) bool {
	if text == "" {
		return false
	}
	return mo.announcer.Offer(voice.Announcement{Kind: kind, Text: text, Time: now})
}

func position(s types.TelemetrySample) geo.Point {
	return geo.Point{Latitude: s.Latitude, Longitude: s.Longitude}
}
