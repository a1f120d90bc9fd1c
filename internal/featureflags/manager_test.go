package featureflags

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEnabled_BooleanValues(t *testing.T) {
	t.Parallel()
	m := NewManager("a=on,b=off,c=true,d=false,e=1,f=0")

	for _, name := range []string{"a", "c", "e"} {
		assert.True(t, m.Enabled(name, 1), name)
	}
	for _, name := range []string{"b", "d", "f", "missing"} {
		assert.False(t, m.Enabled(name, 1), name)
	}
}

func TestEnabled_PercentageValues(t *testing.T) {
	t.Parallel()
	m := NewManager("always=100%,never=0%,canary=25%")

	assert.True(t, m.Enabled("always", 1))
	assert.True(t, m.Enabled("always", 0))
	assert.False(t, m.Enabled("never", 1))

	first := m.Enabled("canary", 42)
	for i := 0; i < 5; i++ {
		assert.Equal(t, first, m.Enabled("canary", 42), "rollout must be deterministic per user")
	}
	assert.False(t, m.Enabled("canary", 0), "anonymous callers are outside partial rollouts")

	enabled := 0
	for userID := uint(1); userID <= 1000; userID++ {
		if m.Enabled("canary", userID) {
			enabled++
		}
	}
	assert.InDelta(t, 250, enabled, 80)
}

func TestChangeFeedDefaultsOn(t *testing.T) {
	t.Parallel()

	assert.True(t, NewManager("").Enabled(ChangeFeed, 0))
	assert.False(t, NewManager("change_feed=off").Enabled(ChangeFeed, 7))
	assert.True(t, NewManager(" CHANGE_FEED = On ").Enabled(ChangeFeed, 0))
}

func TestParseReportsInvalidEntries(t *testing.T) {
	t.Parallel()
	m := NewManager(" bad ,x=on, y = 20% ,z=off,w=maybe,v=150%")

	raw := m.Raw()
	assert.Equal(t, "on", raw["x"])
	assert.Equal(t, "20%", raw["y"])
	assert.Equal(t, "off", raw["z"])
	assert.Equal(t, "on", raw[ChangeFeed])
	assert.NotContains(t, raw, "w")
	assert.Equal(t, []string{"bad", "v=150%", "w=maybe"}, m.Invalid())

	snap := m.Snapshot(123)
	assert.Len(t, snap, 4)
	assert.True(t, snap["x"])
	assert.False(t, snap["z"])
}

func TestNilManager(t *testing.T) {
	t.Parallel()
	var m *Manager
	assert.False(t, m.Enabled(ChangeFeed, 1))
}
