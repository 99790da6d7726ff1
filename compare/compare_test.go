package compare

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIdentical(t *testing.T) {
	m := map[string]int{"a": 1}
	s := []int{1, 2}

	assert.True(t, Identical(nil, nil))
	assert.False(t, Identical(nil, 1))
	assert.True(t, Identical(1, 1))
	assert.False(t, Identical(1, 2))
	assert.True(t, Identical("x", "x"))
	assert.True(t, Identical(m, m))
	assert.False(t, Identical(m, map[string]int{"a": 1}))
	assert.True(t, Identical(s, s))
	assert.False(t, Identical(s, []int{1, 2}))
}

func TestEqual_DefaultsToReference(t *testing.T) {
	a := map[string]int{"a": 1}
	b := map[string]int{"a": 1}

	assert.True(t, Equal(a, a, Options{}))
	assert.False(t, Equal(a, b, Options{}))
}

func TestEqual_Shallow(t *testing.T) {
	shared := []string{"x"}

	assert.True(t, Equal(
		map[string]any{"count": 1, "tags": shared},
		map[string]any{"count": 1, "tags": shared},
		Options{Strategy: StrategyShallow},
	))
	assert.False(t, Equal(
		map[string]any{"count": 1},
		map[string]any{"count": 2},
		Options{Strategy: StrategyShallow},
	))
	// One level only: equal-but-distinct nested slices differ by identity.
	assert.False(t, Equal(
		map[string]any{"tags": []string{"x"}},
		map[string]any{"tags": []string{"x"}},
		Options{Strategy: StrategyShallow},
	))
}

func TestEqual_ShallowStruct(t *testing.T) {
	type state struct {
		Count int
		Name  string
	}

	assert.True(t, Equal(state{Count: 1, Name: "a"}, state{Count: 1, Name: "a"}, Options{Strategy: StrategyShallow}))
	assert.False(t, Equal(state{Count: 1}, state{Count: 2}, Options{Strategy: StrategyShallow}))
	assert.True(t, Equal(state{Count: 1, Name: "a"}, state{Count: 2, Name: "a"}, Options{
		Strategy:   StrategyShallow,
		IgnoreKeys: []string{"Count"},
	}))
}

func TestEqual_Deep(t *testing.T) {
	a := map[string]any{"user": map[string]any{"name": "ada", "roles": []string{"admin"}}}
	b := map[string]any{"user": map[string]any{"name": "ada", "roles": []string{"admin"}}}
	c := map[string]any{"user": map[string]any{"name": "ada", "roles": []string{"viewer"}}}

	assert.True(t, Equal(a, b, Options{Strategy: StrategyDeep}))
	assert.False(t, Equal(a, c, Options{Strategy: StrategyDeep}))
}

func TestEqual_DeepIgnoreKeys(t *testing.T) {
	a := map[string]any{"value": 1, "updatedAt": 100}
	b := map[string]any{"value": 1, "updatedAt": 200}

	assert.False(t, Equal(a, b, Options{Strategy: StrategyDeep}))
	assert.True(t, Equal(a, b, Options{Strategy: StrategyDeep, IgnoreKeys: []string{"updatedAt"}}))
}

func TestEqual_DeepMaxDepth(t *testing.T) {
	// Below the depth limit remaining subtrees compare by identity, so
	// structurally equal but distinct leaves are unequal.
	a := map[string]any{"nested": map[string]any{"leaf": []int{1}}}
	b := map[string]any{"nested": map[string]any{"leaf": []int{1}}}

	assert.True(t, Equal(a, b, Options{Strategy: StrategyDeep}))
	assert.False(t, Equal(a, b, Options{Strategy: StrategyDeep, MaxDepth: 2}))
}

type node struct {
	Name string
	Next *node
}

func TestEqual_DeepCircular(t *testing.T) {
	a := &node{Name: "a"}
	a.Next = a
	b := &node{Name: "a"}
	b.Next = b

	assert.True(t, Equal(a, b, Options{Strategy: StrategyDeep, CircularCheck: true}))

	c := &node{Name: "c"}
	c.Next = c
	assert.False(t, Equal(a, c, Options{Strategy: StrategyDeep, CircularCheck: true}))
}

func TestEqual_Custom(t *testing.T) {
	sameLength := func(a, b any) bool {
		return len(a.(string)) == len(b.(string))
	}

	assert.True(t, Equal("abc", "xyz", Options{Strategy: StrategyCustom, Custom: sameLength}))
	assert.False(t, Equal("abc", "wxyz", Options{Strategy: StrategyCustom, Custom: sameLength}))
}

func TestEqual_CustomNilPanics(t *testing.T) {
	assert.Panics(t, func() {
		Equal(1, 2, Options{Strategy: StrategyCustom})
	})
}
