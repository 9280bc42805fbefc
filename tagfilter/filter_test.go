package tagfilter

import (
	"fmt"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"signaltap/backend"
)

var scanned = []backend.Tag{
	{Name: "MotorSpeed", Type: "REAL"},
	{Name: "PumpStatus", Type: "BOOL"},
	{Name: "Counter", Type: "DINT"},
	{Name: "Recipe", Type: "STRING"},
	{Name: "Broken", Type: "INT"},
	{Name: "Robot", Type: "UDT_Robot"},
}

var polled = []backend.TagValue{
	{Name: "MotorSpeed", Value: 1500.0},
	{Name: "PumpStatus", Value: true},
	{Name: "Counter", Value: float64(12)},
	{Name: "Recipe", Value: "Pump cleaning"},
	{Name: "Broken", Value: backend.Unreadable},
	{Name: "Ghost", Value: 1.0},
}

func names(rows []Row) []string {
	out := make([]string, len(rows))
	for i, r := range rows {
		out[i] = r.Name
	}
	return out
}

func TestJoinFirstPollScenario(t *testing.T) {
	tags := []backend.Tag{{Name: "MotorSpeed", Type: "REAL"}, {Name: "PumpStatus", Type: "BOOL"}}
	index := Index([]backend.TagValue{{Name: "MotorSpeed", Value: 42.5}})

	rows := Join(tags, index)
	require.Len(t, rows, 2)
	assert.Equal(t, Row{Name: "MotorSpeed", Type: "REAL", Value: "42.5", HasValue: true}, rows[0])
	assert.Equal(t, Row{Name: "PumpStatus", Type: "BOOL", Value: ""}, rows[1])
}

func TestJoinLengthMatchesTags(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	for i := 0; i < 50; i++ {
		var tags []backend.Tag
		var values []backend.TagValue
		for n := 0; n < rng.Intn(20); n++ {
			name := fmt.Sprintf("T%d", rng.Intn(30))
			tags = append(tags, backend.Tag{Name: name, Type: "DINT"})
		}
		for n := 0; n < rng.Intn(20); n++ {
			values = append(values, backend.TagValue{Name: fmt.Sprintf("T%d", rng.Intn(30)), Value: float64(n)})
		}

		rows := Join(tags, Index(values))
		require.Len(t, rows, len(tags))
		for j, r := range rows {
			assert.Equal(t, tags[j].Name, r.Name)
		}
	}
}

func TestJoinDropsValuesWithoutTag(t *testing.T) {
	rows := Join(scanned, Index(polled))
	assert.NotContains(t, names(rows), "Ghost")
}

func TestApplyText(t *testing.T) {
	state := NewFilterState([]string{"BOOL", "INT", "DINT", "REAL", "TIMER", "STRING"})
	index := Index(polled)

	t.Run("empty text keeps enabled types in scan order", func(t *testing.T) {
		rows := Apply(scanned, index, state)
		assert.Equal(t, []string{"MotorSpeed", "PumpStatus", "Counter", "Recipe", "Broken"}, names(rows))
	})

	for _, text := range []string{"pump", "PUMP", "PuMp"} {
		t.Run("name "+text, func(t *testing.T) {
			s := state.Clone()
			s.Text = text
			// Recipe matches through its value
			assert.Equal(t, []string{"PumpStatus", "Recipe"}, names(Apply(scanned, index, s)))
		})
	}

	t.Run("type", func(t *testing.T) {
		s := state.Clone()
		s.Text = "dint"
		assert.Equal(t, []string{"Counter"}, names(Apply(scanned, index, s)))
	})

	t.Run("value", func(t *testing.T) {
		s := state.Clone()
		s.Text = "1500"
		assert.Equal(t, []string{"MotorSpeed"}, names(Apply(scanned, index, s)))

		s.Text = "true"
		assert.Equal(t, []string{"PumpStatus"}, names(Apply(scanned, index, s)))
	})
}

func TestApplyOnlyPumpScenario(t *testing.T) {
	tags := []backend.Tag{{Name: "MotorSpeed", Type: "REAL"}, {Name: "PumpStatus", Type: "BOOL"}}
	index := Index([]backend.TagValue{{Name: "MotorSpeed", Value: 42.5}})
	state := NewFilterState(nil)

	for _, text := range []string{"pump", "PUMP"} {
		state.Text = text
		assert.Equal(t, []string{"PumpStatus"}, names(Apply(tags, index, state)))
	}
}

func TestApplyHideUnreadable(t *testing.T) {
	state := NewFilterState(nil)
	index := Index(polled)

	before := Apply(scanned, index, state)
	assert.Contains(t, names(before), "Broken")

	state.HideUnreadable = true
	hidden := Apply(scanned, index, state)
	assert.NotContains(t, names(hidden), "Broken")
	assert.Len(t, hidden, len(before)-1)

	state.HideUnreadable = false
	assert.Equal(t, before, Apply(scanned, index, state))
}

func TestApplyTypeDisabled(t *testing.T) {
	state := NewFilterState(nil)
	state.SetType("real", false)
	index := Index(polled)

	state.Text = "motor"
	assert.Empty(t, Apply(scanned, index, state))

	state.Text = ""
	assert.NotContains(t, names(Apply(scanned, index, state)), "MotorSpeed")
}

func TestApplyUnknownTypeExcluded(t *testing.T) {
	state := NewFilterState(nil)
	state.Text = "robot"
	assert.Empty(t, Apply(scanned, Index(polled), state))

	state.SetType("UDT_ROBOT", true)
	assert.Equal(t, []string{"Robot"}, names(Apply(scanned, Index(polled), state)))
}

func TestApplyTypeCaseInsensitive(t *testing.T) {
	tags := []backend.Tag{{Name: "Flag", Type: "bool"}}
	assert.Len(t, Apply(tags, nil, NewFilterState(nil)), 1)
}

func TestApplyIdempotent(t *testing.T) {
	index := Index(polled)
	states := []FilterState{NewFilterState(nil)}
	s := NewFilterState(nil)
	s.Text = "o"
	s.HideUnreadable = true
	states = append(states, s)

	for _, state := range states {
		first := Apply(scanned, index, state)
		second := Apply(scanned, index, state)
		assert.Equal(t, first, second)
	}
}

func TestIndexLaterDuplicateWins(t *testing.T) {
	idx := Index([]backend.TagValue{{Name: "A", Value: 1.0}, {Name: "A", Value: 2.0}})
	assert.Equal(t, 2.0, idx["A"].Value)
}

func TestNewFilterStateDefaults(t *testing.T) {
	state := NewFilterState(nil)
	for _, typ := range DefaultTypes {
		assert.True(t, state.TypeEnabled[typ], typ)
	}
	assert.False(t, state.TypeEnabled["LREAL"])
	assert.Empty(t, state.Text)
	assert.False(t, state.HideUnreadable)

	custom := NewFilterState([]string{" lreal "})
	assert.True(t, custom.TypeEnabled["LREAL"])
}

func TestCloneIsIndependent(t *testing.T) {
	a := NewFilterState(nil)
	b := a.Clone()
	b.SetType("BOOL", false)
	assert.True(t, a.TypeEnabled["BOOL"])
}

func TestWithValues(t *testing.T) {
	tags := []backend.Tag{{Name: "MotorSpeed", Type: "REAL"}, {Name: "PumpStatus", Type: "BOOL"}}
	rows := Join(tags, Index([]backend.TagValue{{Name: "MotorSpeed", Value: 42.5}}))
	assert.Equal(t, []string{"MotorSpeed"}, names(WithValues(rows)))
	assert.True(t, Join(scanned, Index(polled))[4].Unreadable())
}
