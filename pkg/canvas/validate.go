package canvas

import (
	"fmt"
	"math"
	"strings"
	"unicode/utf8"
)

// ValidateFinal reports whether c is acceptable as a committed stroke.
func ValidateFinal(c StrokeCandidate) bool {
	if c.Type != Brush && c.Type != Eraser {
		return false
	}
	if c.ID == "" {
		return false
	}
	if len(c.Points) < 1 {
		return false
	}
	if !finite(c.Width) || c.Width <= 0 || c.Width > MaxWidth {
		return false
	}
	for _, p := range c.Points {
		if !ValidPoint(p) {
			return false
		}
	}
	return true
}

// ValidateLive is ValidateFinal restricted to small incremental segments.
func ValidateLive(c StrokeCandidate) bool {
	return len(c.Points) <= MaxLivePoints && ValidateFinal(c)
}

func ValidPoint(p Point) bool {
	return finite(p.X) && finite(p.Y)
}

func finite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}

// SanitizeRoomID trims, collapses whitespace runs and caps the length of a requested room id,
// falling back to fallback (or DefaultRoomID) when nothing is left.
func SanitizeRoomID(raw, fallback string) string {
	if fallback == "" {
		fallback = DefaultRoomID
	}
	id := truncateRunes(strings.Join(strings.Fields(raw), " "), MaxRoomIDLength)
	id = strings.TrimSpace(id)
	if id == "" {
		return fallback
	}
	return id
}

func SanitizeDisplayName(raw string) string {
	name := strings.TrimSpace(truncateRunes(strings.TrimSpace(raw), MaxDisplayNameLength))
	if name == "" {
		return DefaultDisplayName
	}
	return name
}

// PickColor returns the trimmed hint, or a stable hue derived from the connection id.
func PickColor(hint, connID string) string {
	if h := strings.TrimSpace(hint); h != "" {
		return h
	}
	var hash uint32
	for i := 0; i < len(connID); i++ {
		hash = hash*31 + uint32(connID[i])
	}
	return fmt.Sprintf("hsl(%d 85%% 55%%)", hash%360)
}

func truncateRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}
