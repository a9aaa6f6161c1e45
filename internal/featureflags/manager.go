// Package featureflags evaluates FEATURE_FLAGS per moderator.
package featureflags

import (
	"hash/fnv"
	"sort"
	"strconv"
	"strings"
)

// AdvancedScan gates the multi-signal scan endpoints.
const AdvancedScan = "advanced_scan"

type rule struct {
	raw     string
	on      bool
	percent int // -1 for plain on/off
}

// Manager evaluates feature flags defined in a simple key=value list.
// Example: "advanced_scan=on,new_panel=25%,legacy_export=off"
type Manager struct {
	flags map[string]rule
}

// NewManager parses raw. Malformed pairs and unknown values are dropped.
func NewManager(raw string) *Manager {
	out := make(map[string]rule)
	for _, pair := range strings.Split(raw, ",") {
		key, value, ok := strings.Cut(pair, "=")
		if !ok {
			continue
		}
		key, value = normalize(key), normalize(value)
		if key == "" {
			continue
		}
		if r, ok := parseRule(value); ok {
			out[key] = r
		}
	}
	return &Manager{flags: out}
}

func parseRule(value string) (rule, bool) {
	switch value {
	case "on", "true", "1":
		return rule{raw: value, on: true, percent: -1}, true
	case "off", "false", "0":
		return rule{raw: value, percent: -1}, true
	}
	pct, ok := strings.CutSuffix(value, "%")
	if !ok {
		return rule{}, false
	}
	n, err := strconv.Atoi(pct)
	if err != nil {
		return rule{}, false
	}
	return rule{raw: value, percent: min(max(n, 0), 100)}, true
}

// Enabled reports whether flag name is on for moderator. Percentage
// rollouts bucket moderators deterministically; the anonymous moderator
// only sees flags rolled out to 100%.
func (m *Manager) Enabled(name, moderator string) bool {
	if m == nil {
		return false
	}
	r, ok := m.flags[normalize(name)]
	if !ok {
		return false
	}
	switch {
	case r.percent < 0:
		return r.on
	case r.percent == 0:
		return false
	case r.percent == 100:
		return true
	case moderator == "":
		return false
	}
	return rolloutBucket(name, moderator) < r.percent
}

// Raw returns a copy of configured flags.
func (m *Manager) Raw() map[string]string {
	out := make(map[string]string, len(m.flags))
	for k, r := range m.flags {
		out[k] = r.raw
	}
	return out
}

// Names lists configured flags alphabetically.
func (m *Manager) Names() []string {
	out := make([]string, 0, len(m.flags))
	for k := range m.flags {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Snapshot returns evaluated flag status for one moderator.
func (m *Manager) Snapshot(moderator string) map[string]bool {
	out := make(map[string]bool, len(m.flags))
	for name := range m.flags {
		out[name] = m.Enabled(name, moderator)
	}
	return out
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

func rolloutBucket(name, moderator string) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(normalize(name) + ":" + strings.ToLower(moderator)))
	return int(h.Sum32() % 100)
}
