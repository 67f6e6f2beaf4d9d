package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestComputeBalances(t *testing.T) {
	tests := []struct {
		name     string
		expenses []Expense
		want     map[string]float64
	}{
		{
			name: "payer among participants",
			expenses: []Expense{
				{Amount: 300, PaidBy: "A", Participants: []string{"A", "B", "C"}},
			},
			want: map[string]float64{"A": 200, "B": -100, "C": -100},
		},
		{
			name: "two expenses",
			expenses: []Expense{
				{Amount: 100, PaidBy: "A", Participants: []string{"A", "B"}},
				{Amount: 60, PaidBy: "B", Participants: []string{"A", "B"}},
			},
			want: map[string]float64{"A": 20, "B": -20},
		},
		{
			name: "duplicate participant is charged per occurrence",
			expenses: []Expense{
				{Amount: 90, PaidBy: "A", Participants: []string{"A", "B", "B"}},
			},
			want: map[string]float64{"A": 60, "B": -60},
		},
		{
			name: "payer listed twice",
			expenses: []Expense{
				{Amount: 40, PaidBy: "A", Participants: []string{"A", "A", "B", "C"}},
			},
			want: map[string]float64{"A": 20, "B": -10, "C": -10},
		},
		{
			name:     "empty",
			expenses: []Expense{},
			want:     map[string]float64{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := ComputeBalances(tt.expenses)
			got := b.Map()
			assert.Len(t, got, len(tt.want))
			for p, v := range tt.want {
				assert.InDelta(t, v, got[p], NumericalTolerance, p)
			}
			assert.True(t, b.IsZeroSum())
		})
	}
}

func TestComputeBalances_FirstAppearanceOrder(t *testing.T) {
	b := ComputeBalances([]Expense{
		{Amount: 10, PaidBy: "Zoe", Participants: []string{"Mia", "Ava"}},
		{Amount: 10, PaidBy: "Ava", Participants: []string{"Leo", "Zoe"}},
	})

	assert.Equal(t, []string{"Mia", "Ava", "Zoe", "Leo"}, b.People())
}

func TestComputeBalances_Idempotent(t *testing.T) {
	expenses := []Expense{
		{Amount: 12.5, PaidBy: "A", Participants: []string{"A", "B", "C"}},
		{Amount: 7.25, PaidBy: "C", Participants: []string{"B"}},
	}
	snapshot := make([]Expense, len(expenses))
	for i, e := range expenses {
		snapshot[i] = e.Clone()
	}

	first := ComputeBalances(expenses)
	second := ComputeBalances(expenses)

	assert.Equal(t, first.Map(), second.Map())
	assert.Equal(t, first.People(), second.People())
	assert.Equal(t, snapshot, expenses, "input must not be mutated")
}

func TestBalances_ZeroValue(t *testing.T) {
	var b Balances
	b.Add("A", 5)
	b.Add("A", -2)

	v, ok := b.Get("A")
	assert.True(t, ok)
	assert.Equal(t, 3.0, v)

	_, ok = b.Get("missing")
	assert.False(t, ok)
	assert.Equal(t, 1, b.Len())
}

func TestBalancesFromMap_UnlistedNamesAreSorted(t *testing.T) {
	b := BalancesFromMap(map[string]float64{"c": 1, "a": 2, "b": -3}, []string{"b"})
	assert.Equal(t, []string{"b", "a", "c"}, b.People())
}

func TestPeople(t *testing.T) {
	got := People([]Expense{
		{PaidBy: "Carol", Participants: []string{"Bob", "Carol"}},
		{PaidBy: "Alice", Participants: []string{"Bob", "Bob"}},
	})
	assert.Equal(t, []string{"Alice", "Bob", "Carol"}, got)
	assert.Empty(t, People(nil))
}
