package store

import (
	"testing"

	"github.com/hupe1980/actionmesh/compare"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStore_SnapshotRoundTrip(t *testing.T) {
	value := map[string]int{"count": 0}
	s := New("counter", value)

	snap := s.Snapshot()
	assert.Equal(t, "counter", snap.Name)
	assert.False(t, snap.LastUpdate.IsZero())

	next := map[string]int{"count": 1}
	s.Set(next)

	// Identity is preserved for the exact value passed, not a clone.
	got := s.Snapshot().Value
	assert.Equal(t, 1, got["count"])
	got["probe"] = 1
	assert.Contains(t, next, "probe")
}

func TestStore_ReferenceStrategySuppressesRepeatSet(t *testing.T) {
	value := map[string]int{"count": 0}
	s := New("counter", map[string]int(nil))

	notifications := 0
	s.Subscribe(func() { notifications++ })

	s.Set(value)
	s.Set(value)

	assert.Equal(t, 1, notifications)
}

func TestStore_ShallowStrategy(t *testing.T) {
	type state struct{ Count int }

	s := New("counter", state{Count: 0}, func(o *Options) {
		o.Comparison = compare.Options{Strategy: compare.StrategyShallow}
	})

	notifications := 0
	s.Subscribe(func() { notifications++ })

	s.Update(func(cur state) state { return state{Count: cur.Count + 1} })
	assert.Equal(t, 1, notifications)
	assert.Equal(t, 1, s.Snapshot().Value.Count)

	// Structurally identical replacement is suppressed.
	s.Set(state{Count: 1})
	assert.Equal(t, 1, notifications)
}

func TestStore_SnapshotIdentityChangesOnAcceptedUpdate(t *testing.T) {
	s := New("name", "a")
	before := s.Snapshot()

	s.Set("b")
	after := s.Snapshot()

	assert.Equal(t, "a", before.Value)
	assert.Equal(t, "b", after.Value)
	assert.True(t, after.LastUpdate.Equal(before.LastUpdate) || after.LastUpdate.After(before.LastUpdate))
}

func TestStore_SubscribeNotifiesAllListeners(t *testing.T) {
	s := New("n", 0)

	var first, second int
	s.Subscribe(func() { first++ })
	s.Subscribe(func() { second++ })

	s.Set(1)
	assert.Equal(t, 1, first)
	assert.Equal(t, 1, second)
}

func TestStore_UnsubscribeIsIdempotent(t *testing.T) {
	s := New("n", 0)

	calls := 0
	unsub := s.Subscribe(func() { calls++ })
	require.Equal(t, 1, s.SubscriberCount())

	unsub()
	unsub()
	assert.Equal(t, 0, s.SubscriberCount())

	s.Set(1)
	assert.Equal(t, 0, calls)
}

func TestStore_NotifyIsSynchronous(t *testing.T) {
	s := New("n", 0)

	seen := -1
	s.Subscribe(func() { seen = s.Value() })

	s.Set(42)
	assert.Equal(t, 42, seen)
}

func TestStore_CustomComparator(t *testing.T) {
	// Treat values within the same decade as unchanged.
	s := New("n", 10, func(o *Options) {
		o.Comparison = compare.Options{
			Strategy: compare.StrategyCustom,
			Custom:   func(a, b any) bool { return a.(int)/10 == b.(int)/10 },
		}
	})

	notifications := 0
	s.Subscribe(func() { notifications++ })

	s.Set(15)
	assert.Equal(t, 0, notifications)
	s.Set(25)
	assert.Equal(t, 1, notifications)
}
