package core

import "math"

// NumericalTolerance bounds floating-point noise in balance sums.
const NumericalTolerance = 1e-6

// Balances maps a person to a signed net balance and remembers the order in
// which each person was first seen. Positive means the person is owed money.
type Balances struct {
	index  map[string]int
	people []string
	values []float64
}

// NewBalances returns an empty Balances.
func NewBalances() Balances {
	return Balances{index: make(map[string]int)}
}

// BalancesFromMap builds Balances from a plain map. Order follows the given
// people slice; names missing from it are appended in sorted order.
func BalancesFromMap(m map[string]float64, order []string) Balances {
	b := NewBalances()
	for _, p := range order {
		if v, ok := m[p]; ok {
			b.Add(p, v)
		}
	}
	rest := make([]string, 0, len(m))
	for p := range m {
		if _, seen := b.index[p]; !seen {
			rest = append(rest, p)
		}
	}
	sortStrings(rest)
	for _, p := range rest {
		b.Add(p, m[p])
	}
	return b
}

// Add adjusts a person's balance by delta, registering them on first use.
func (b *Balances) Add(person string, delta float64) {
	if b.index == nil {
		b.index = make(map[string]int)
	}
	i, ok := b.index[person]
	if !ok {
		i = len(b.people)
		b.index[person] = i
		b.people = append(b.people, person)
		b.values = append(b.values, 0)
	}
	b.values[i] += delta
}

// Get returns the balance for person and whether they appear at all.
func (b Balances) Get(person string) (float64, bool) {
	i, ok := b.index[person]
	if !ok {
		return 0, false
	}
	return b.values[i], true
}

// Len is the number of people with a balance entry.
func (b Balances) Len() int { return len(b.people) }

// People lists everyone in first-appearance order.
func (b Balances) People() []string {
	return append([]string(nil), b.people...)
}

// Each calls fn for every person in first-appearance order.
func (b Balances) Each(fn func(person string, balance float64)) {
	for i, p := range b.people {
		fn(p, b.values[i])
	}
}

// Map returns a plain copy of the balances.
func (b Balances) Map() map[string]float64 {
	out := make(map[string]float64, len(b.people))
	b.Each(func(p string, v float64) { out[p] = v })
	return out
}

// Sum adds every balance. For balances derived from valid expenses it is
// zero within NumericalTolerance.
func (b Balances) Sum() float64 {
	var s float64
	for _, v := range b.values {
		s += v
	}
	return s
}

// IsZeroSum reports whether Sum is within NumericalTolerance of zero.
func (b Balances) IsZeroSum() bool {
	return math.Abs(b.Sum()) <= NumericalTolerance
}

func (b Balances) clone() Balances {
	c := NewBalances()
	b.Each(c.Add)
	return c
}

// ComputeBalances reduces expenses to net balances. Every participant
// occurrence is charged one share, duplicates included, and the payer is
// credited the full amount. Callers must validate expenses first: an expense
// without participants yields NaN/Inf shares.
func ComputeBalances(expenses []Expense) Balances {
	b := NewBalances()
	for _, e := range expenses {
		share := e.Share()
		for _, p := range e.Participants {
			b.Add(p, -share)
		}
		b.Add(e.PaidBy, e.Amount)
	}
	return b
}

// People returns the sorted distinct set of payers and participants.
func People(expenses []Expense) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, e := range expenses {
		for _, p := range append([]string{e.PaidBy}, e.Participants...) {
			if _, ok := seen[p]; ok {
				continue
			}
			seen[p] = struct{}{}
			out = append(out, p)
		}
	}
	sortStrings(out)
	return out
}
