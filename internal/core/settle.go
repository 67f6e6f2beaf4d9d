package core

import (
	"math"
	"sort"
)

// SettledTolerance is the threshold for "nothing left to pay": balances
// closer to zero than this are never settled. Not to be confused with
// NumericalTolerance.
const SettledTolerance = 1e-2

type party struct {
	name    string
	balance float64
	order   int
}

// Settle produces transfers that bring every balance, rounded to cents, to
// zero within SettledTolerance. When shares are not whole cents the rounded
// balances need not sum to zero, and the last person in the longer queue keeps
// that difference.
//
// Matching is greedy: the largest creditor is always paired with the most
// indebted debtor, and whoever of the two reaches zero leaves the queue. At
// most creditors+debtors-1 transfers are emitted, which is not always the
// minimum. Ties are broken by first appearance in b.
func Settle(b Balances) []Settlement {
	var creditors, debtors []party
	b.Each(func(name string, v float64) {
		if math.Abs(v) < SettledTolerance {
			return
		}
		p := party{name: name, balance: Round2(v), order: len(creditors) + len(debtors)}
		if v > 0 {
			creditors = append(creditors, p)
		} else {
			debtors = append(debtors, p)
		}
	})

	sort.SliceStable(creditors, func(i, j int) bool {
		if creditors[i].balance != creditors[j].balance {
			return creditors[i].balance > creditors[j].balance
		}
		return creditors[i].order < creditors[j].order
	})
	sort.SliceStable(debtors, func(i, j int) bool {
		if debtors[i].balance != debtors[j].balance {
			return debtors[i].balance < debtors[j].balance
		}
		return debtors[i].order < debtors[j].order
	})

	var out []Settlement
	for len(creditors) > 0 && len(debtors) > 0 {
		c, d := &creditors[0], &debtors[0]
		transfer := math.Min(c.balance, -d.balance)
		out = append(out, Settlement{From: d.name, To: c.name, Amount: Round2(transfer)})

		d.balance += transfer
		c.balance -= transfer

		if math.Abs(d.balance) < SettledTolerance {
			debtors = debtors[1:]
		}
		if math.Abs(c.balance) < SettledTolerance {
			creditors = creditors[1:]
		}
	}
	return out
}

// Apply replays settlements onto a copy of b: each debtor's balance rises by
// the amount paid and each creditor's falls by the amount received.
func Apply(b Balances, settlements []Settlement) Balances {
	out := b.clone()
	for _, s := range settlements {
		out.Add(s.From, s.Amount)
		out.Add(s.To, -s.Amount)
	}
	return out
}

// Plan runs the whole pipeline: expenses to balances to settlements.
func Plan(expenses []Expense) (Balances, []Settlement) {
	b := ComputeBalances(expenses)
	return b, Settle(b)
}
