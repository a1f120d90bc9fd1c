// Package featureflags evaluates the FEATURE_FLAGS setting.
package featureflags

import (
	"fmt"
	"hash/fnv"
	"sort"
	"strconv"
	"strings"
)

// Known flags.
const (
	// ChangeFeed gates the websocket change feed.
	ChangeFeed = "change_feed"
)

var defaults = map[string]string{
	ChangeFeed: "on",
}

type rule struct {
	raw     string
	percent int // 0..100; on is 100, off is 0
}

// Manager evaluates flags defined in a comma-separated key=value list, for
// example "change_feed=on,new_sort=25%". Known flags that are not listed
// keep their default.
type Manager struct {
	rules   map[string]rule
	invalid []string
}

// NewManager parses raw. Malformed entries are skipped and reported by Invalid.
func NewManager(raw string) *Manager {
	m := &Manager{rules: make(map[string]rule)}
	for name, value := range defaults {
		r, _ := parseRule(value)
		m.rules[name] = r
	}

	for _, pair := range strings.Split(raw, ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		key, value, ok := strings.Cut(pair, "=")
		key, value = normalize(key), normalize(value)
		if !ok || key == "" || value == "" {
			m.invalid = append(m.invalid, pair)
			continue
		}
		r, err := parseRule(value)
		if err != nil {
			m.invalid = append(m.invalid, pair)
			continue
		}
		m.rules[key] = r
	}
	return m
}

func parseRule(value string) (rule, error) {
	switch value {
	case "on", "true", "1":
		return rule{raw: value, percent: 100}, nil
	case "off", "false", "0":
		return rule{raw: value, percent: 0}, nil
	}
	pctRaw, ok := strings.CutSuffix(value, "%")
	if !ok {
		return rule{}, fmt.Errorf("unknown flag value %q", value)
	}
	pct, err := strconv.Atoi(pctRaw)
	if err != nil || pct < 0 || pct > 100 {
		return rule{}, fmt.Errorf("invalid rollout percentage %q", value)
	}
	return rule{raw: value, percent: pct}, nil
}

// Enabled reports whether name is on for userID. Partial rollouts are
// deterministic per user and never include anonymous callers.
func (m *Manager) Enabled(name string, userID uint) bool {
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
	case r.percent <= 0:
		return false
	case userID == 0:
		return false
	}
	return rolloutBucket(name, userID) < r.percent
}

// Raw returns a copy of the effective flag values.
func (m *Manager) Raw() map[string]string {
	out := make(map[string]string, len(m.rules))
	for k, r := range m.rules {
		out[k] = r.raw
	}
	return out
}

// Snapshot returns evaluated flag status for one user.
func (m *Manager) Snapshot(userID uint) map[string]bool {
	out := make(map[string]bool, len(m.rules))
	for name := range m.rules {
		out[name] = m.Enabled(name, userID)
	}
	return out
}

// Invalid lists the entries NewManager could not parse, sorted.
func (m *Manager) Invalid() []string {
	out := make([]string, len(m.invalid))
	copy(out, m.invalid)
	sort.Strings(out)
	return out
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

func rolloutBucket(name string, userID uint) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(fmt.Sprintf("%s:%d", normalize(name), userID)))
	return int(h.Sum32() % 100)
}
