package dialogue

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/eytandecker/skytour/internal/geo"
	"github.com/eytandecker/skytour/internal/navigation"
	"github.com/eytandecker/skytour/internal/relevance"
	"github.com/eytandecker/skytour/pkg/types"
)

// Fixed phrases.
const (
	NotFoundText     = "I could not find that location."
	StaleText        = "I don't have a current position from the simulator right now."
	StaleNoticeText  = "Telemetry lost. Guidance is paused until the position updates."
	RecoveredText    = "Telemetry restored."
	NothingNearText  = "I don't see anything notable nearby right now."
	NotNavigatingTxt = "We're not navigating anywhere right now."
	ListeningText    = "I'm listening."
	ResetText        = "Okay, starting a fresh conversation."
	NotUnderstood    = "Sorry, I didn't understand that."
	AskTargetText    = "Where would you like to go?"
)

// formatDistance phrases a distance in nautical miles. Under one mile it
// uses cable lengths, a tenth of a mile each.
func formatDistance(nm float64) string {
	switch {
	case nm < 1:
		return fmt.Sprintf("%.1f cable lengths", nm*10)
	case nm < 10:
		return fmt.Sprintf("%.1f nautical miles", nm)
	default:
		return fmt.Sprintf("%.0f nautical miles", nm)
	}
}

func formatETA(d time.Duration) string {
	minutes := d.Minutes()
	switch {
	case minutes < 1:
		return "less than a minute"
	case minutes < 2:
		return "about a minute"
	default:
		return fmt.Sprintf("about %d minutes", int(minutes))
	}
}

func formatAltitude(ft float64) string {
	if ft < 1000 {
		return fmt.Sprintf("at %.0f feet", ft)
	}
	return fmt.Sprintf("at %.1f thousand feet", ft/1000)
}

func formatHeading(deg float64) string {
	h := geo.NormalizeHeading(deg)
	return fmt.Sprintf("%03.0f° (%s)", h, geo.Cardinal(h))
}

// clockPosition turns a relative bearing into "your 2 o'clock".
func clockPosition(relBearing float64) string {
	hour := int(math.Round(geo.NormalizeHeading(relBearing)/30)) % 12
	if hour == 0 {
		hour = 12
	}
	return fmt.Sprintf("your %d o'clock", hour)
}

func formatCoordinates(lat, lon float64) string {
	ns, ew := "north", "east"
	if lat < 0 {
		ns, lat = "south", -lat
	}
	if lon < 0 {
		ew, lon = "west", -lon
	}
	return fmt.Sprintf("%.2f degrees %s, %.2f degrees %s", lat, ns, lon, ew)
}

// FormatGuidance phrases a navigation event for speech.
func FormatGuidance(e navigation.GuidanceEvent) string {
	name := e.Target.Name
	switch e.Kind {
	case navigation.InitialHeading:
		var b strings.Builder
		fmt.Fprintf(&b, "Head %s for %s to reach %s.", formatHeading(e.Bearing), formatDistance(e.DistanceNM), name)
		if e.HasETA {
			fmt.Fprintf(&b, " At your current speed, you'll arrive in %s.", formatETA(e.ETA))
		}
		return b.String()
	case navigation.OffCourse:
		return fmt.Sprintf("You're drifting off course. %s to %s for %s.", turnPhrase(e.Turn), formatHeading(e.Bearing), name)
	case navigation.OnCourseResumed:
		return fmt.Sprintf("Back on course for %s, %s to go.", name, formatDistance(e.DistanceNM))
	case navigation.Approaching:
		if e.HasETA {
			return fmt.Sprintf("%s is coming up in %s, %s ahead.", name, formatETA(e.ETA), formatDistance(e.DistanceNM))
		}
		return fmt.Sprintf("%s is coming up, %s ahead.", name, formatDistance(e.DistanceNM))
	case navigation.Arrived:
		text := fmt.Sprintf("You've arrived at %s.", name)
		if e.Target.Description != "" {
			text += " " + e.Target.Description
		}
		return text
	default:
		return ""
	}
}

func turnPhrase(turn float64) string {
	switch {
	case math.Abs(turn) < 5:
		return "Hold your heading"
	case turn > 0:
		return fmt.Sprintf("Turn right %.0f degrees", turn)
	default:
		return fmt.Sprintf("Turn left %.0f degrees", -turn)
	}
}

// FormatSuggestion phrases an unprompted sightseeing suggestion.
func FormatSuggestion(s relevance.Score) string {
	text := fmt.Sprintf("%s is %s at %s.", s.POI.Name, formatDistance(s.Factors.DistanceNM), clockPosition(s.Factors.RelativeBearing))
	if s.POI.Description != "" {
		text += " " + s.POI.Description
	}
	return text
}

func formatNearby(scores []relevance.Score) string {
	if len(scores) == 0 {
		return NothingNearText
	}
	parts := make([]string, len(scores))
	for i, s := range scores {
		parts[i] = fmt.Sprintf("%s, %s at %s", s.POI.Name, formatDistance(s.Factors.DistanceNM), clockPosition(s.Factors.RelativeBearing))
	}
	if len(parts) == 1 {
		return "Nearby: " + parts[0] + "."
	}
	return "Nearby: " + strings.Join(parts, "; ") + "."
}

func formatStatus(st navigation.Status) string {
	if !st.Active {
		return NotNavigatingTxt
	}
	if st.Stale {
		return fmt.Sprintf("We're navigating to %s, but I don't have a current position right now.", st.Target.Name)
	}
	text := fmt.Sprintf("%s is %s away, bearing %s.", st.Target.Name, formatDistance(st.DistanceNM), formatHeading(st.Bearing))
	if st.HasETA {
		text += fmt.Sprintf(" You'll be there in %s.", formatETA(st.ETA))
	}
	return text
}

// describePosition phrases where the aircraft is. place names the area,
// nearest the closest sight worth mentioning.
func describePosition(s types.TelemetrySample, place string, nearest *relevance.Score) string {
	text := fmt.Sprintf("You're flying over %s %s, heading %s.", place, formatAltitude(s.AltitudeAGL), formatHeading(s.HeadingTrue))
	if nearest != nil {
		text += fmt.Sprintf(" %s is %s %s from here.", nearest.POI.Name, formatDistance(nearest.Factors.DistanceNM), geo.Cardinal(nearest.Factors.Bearing))
	}
	return text
}
