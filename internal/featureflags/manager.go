// Package featureflags evaluates the FEATURE_FLAGS setting.
package featureflags

import (
	"hash/fnv"
	"maps"
	"strconv"
	"strings"
)

// Known flags.
const (
	// CommentLikeBatching loads like counts and viewer likes for a whole
	// comment tree in two queries instead of two per comment.
	CommentLikeBatching = "comment_like_batching"
	// RealtimeNotifications publishes new notifications to connected clients.
	RealtimeNotifications = "realtime_notifications"
)

// rule is a parsed flag value as a rollout share in [0,100].
type rule struct {
	raw     string
	percent int
}

// Manager holds flags parsed from "name=value" pairs separated by commas,
// e.g. "comment_like_batching=on,realtime_notifications=25%". Values are
// on/true/1, off/false/0 or a percentage rolled out by viewer id.
type Manager struct {
	rules map[string]rule
}

// NewManager parses raw. Malformed pairs and unknown values are skipped.
func NewManager(raw string) *Manager {
	m := &Manager{rules: make(map[string]rule)}
	for pair := range strings.SplitSeq(raw, ",") {
		name, value, ok := strings.Cut(pair, "=")
		if !ok {
			continue
		}
		name, value = normalize(name), normalize(value)
		if name == "" {
			continue
		}
		if pct, ok := parsePercent(value); ok {
			m.rules[name] = rule{raw: value, percent: pct}
		}
	}
	return m
}

func parsePercent(value string) (int, bool) {
	switch value {
	case "on", "true", "1":
		return 100, true
	case "off", "false", "0":
		return 0, true
	}
	digits, ok := strings.CutSuffix(value, "%")
	if !ok {
		return 0, false
	}
	pct, err := strconv.Atoi(digits)
	if err != nil {
		return 0, false
	}
	return min(max(pct, 0), 100), true
}

// Enabled reports whether name is on for viewerID. Partial rollouts are
// stable per viewer and always off for anonymous viewers.
func (m *Manager) Enabled(name, viewerID string) bool {
	if m == nil {
		return false
	}
	r, ok := m.rules[normalize(name)]
	if !ok {
		return false
	}
	switch {
	case r.percent >= 100:
		return true
	case r.percent <= 0, viewerID == "":
		return false
	}
	return bucket(name, viewerID) < r.percent
}

// EnabledOr is Enabled with a fallback for flags that are not configured.
func (m *Manager) EnabledOr(name, viewerID string, fallback bool) bool {
	if m == nil {
		return fallback
	}
	if _, ok := m.rules[normalize(name)]; !ok {
		return fallback
	}
	return m.Enabled(name, viewerID)
}

// Raw returns the configured values by flag name.
func (m *Manager) Raw() map[string]string {
	out := make(map[string]string, len(m.rules))
	for name, r := range m.rules {
		out[name] = r.raw
	}
	return out
}

// Snapshot evaluates every configured flag for viewerID.
func (m *Manager) Snapshot(viewerID string) map[string]bool {
	out := make(map[string]bool, len(m.rules))
	for name := range maps.Keys(m.rules) {
		out[name] = m.Enabled(name, viewerID)
	}
	return out
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// bucket maps a viewer to [0,100) independently per flag.
func bucket(name, viewerID string) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(normalize(name) + ":" + viewerID))
	return int(h.Sum32() % 100)
}
