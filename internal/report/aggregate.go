// Package report turns cleaned donation records into grouped totals and
// renders the result in every format the daily email carries. The aggregate
// is computed once per run and is read-only afterwards, so the renderers can
// share it without synchronization.
//
// Dependency rule: report imports donation only. It never imports warehouse,
// dispatch, or email.
package report

import (
	"sort"

	"github.com/shopspring/decimal"

	"github.com/goodsteward/donation-reporter/internal/donation"
)

// ─── TYPES ────────────────────────────────────────────────────────────────────

// Group is one source's slice of the day: the records attributed to a single
// campaign, sorted by donor name, with their exact-decimal subtotal.
type Group struct {
	Source   string
	Records  []donation.Record
	Subtotal decimal.Decimal
}

// Aggregate is the fully grouped report input. Groups are ordered by source
// (ordinal ascending) and GrandTotal always equals the sum of the subtotals.
type Aggregate struct {
	Groups     []Group
	GrandTotal decimal.Decimal
	Count      int
}

// SourceSummary is one row of the per-campaign summary table.
type SourceSummary struct {
	Source  string
	Count   int
	Total   decimal.Decimal
	Average decimal.Decimal // rounded to cents for display
}

// Stats are the whole-day statistics across every record regardless of
// source. All fields are zero for an empty report.
type Stats struct {
	Largest  decimal.Decimal
	Smallest decimal.Decimal
	Mean     decimal.Decimal
	Median   decimal.Decimal
}

// ─── AGGREGATION ──────────────────────────────────────────────────────────────

// BuildAggregate groups records by exact source equality, sorts each group by
// (last name, first name) and the groups themselves by source, and computes
// the decimal-exact subtotals and grand total.
//
// Both sorts are ordinal and the in-group sort is stable, so the output is
// deterministic for a given input and group membership does not depend on
// input order. Empty input yields a valid zero-group aggregate.
func BuildAggregate(records []donation.Record) Aggregate {
	bySource := make(map[string][]donation.Record)
	for _, r := range records {
		bySource[r.Source] = append(bySource[r.Source], r)
	}

	sources := make([]string, 0, len(bySource))
	for s := range bySource {
		sources = append(sources, s)
	}
	sort.Strings(sources)

	agg := Aggregate{
		Groups:     make([]Group, 0, len(sources)),
		GrandTotal: decimal.Zero,
		Count:      len(records),
	}
	for _, source := range sources {
		grp := Group{Source: source, Records: bySource[source], Subtotal: decimal.Zero}

		// Stable so that equal names keep their original fetch order.
		sort.SliceStable(grp.Records, func(i, j int) bool {
			a, b := grp.Records[i], grp.Records[j]
			if a.LastName != b.LastName {
				return a.LastName < b.LastName
			}
			return a.FirstName < b.FirstName
		})

		for _, r := range grp.Records {
			grp.Subtotal = grp.Subtotal.Add(r.Amount)
		}
		agg.GrandTotal = agg.GrandTotal.Add(grp.Subtotal)
		agg.Groups = append(agg.Groups, grp)
	}
	return agg
}

// SourceSummaries returns one summary row per group, in group order.
func (a Aggregate) SourceSummaries() []SourceSummary {
	out := make([]SourceSummary, 0, len(a.Groups))
	for _, g := range a.Groups {
		avg := decimal.Zero
		if n := len(g.Records); n > 0 {
			avg = g.Subtotal.Div(decimal.NewFromInt(int64(n))).Round(2)
		}
		out = append(out, SourceSummary{
			Source:  g.Source,
			Count:   len(g.Records),
			Total:   g.Subtotal,
			Average: avg,
		})
	}
	return out
}

// Stats computes the largest, smallest, mean, and median donation amounts
// across all records. Median of an even count is the mean of the two central
// sorted values; of an odd count, the single central value; of zero records,
// zero.
func (a Aggregate) Stats() Stats {
	amounts := make([]decimal.Decimal, 0, a.Count)
	for _, g := range a.Groups {
		for _, r := range g.Records {
			amounts = append(amounts, r.Amount)
		}
	}
	if len(amounts) == 0 {
		return Stats{
			Largest:  decimal.Zero,
			Smallest: decimal.Zero,
			Mean:     decimal.Zero,
			Median:   decimal.Zero,
		}
	}

	sort.Slice(amounts, func(i, j int) bool { return amounts[i].LessThan(amounts[j]) })

	n := len(amounts)
	var median decimal.Decimal
	if n%2 == 0 {
		median = amounts[n/2-1].Add(amounts[n/2]).Div(decimal.NewFromInt(2))
	} else {
		median = amounts[n/2]
	}

	return Stats{
		Largest:  amounts[n-1],
		Smallest: amounts[0],
		Mean:     a.GrandTotal.Div(decimal.NewFromInt(int64(n))).Round(2),
		Median:   median,
	}
}

// validate checks the structural invariants the renderers depend on: count
// conservation and subtotal/grand-total consistency. These cannot fail for an
// aggregate built by BuildAggregate; the check exists so a renderer handed a
// hand-assembled aggregate fails loudly instead of emitting a wrong report.
func (a Aggregate) validate() error {
	total := decimal.Zero
	n := 0
	for _, g := range a.Groups {
		sum := decimal.Zero
		for _, r := range g.Records {
			sum = sum.Add(r.Amount)
		}
		if !sum.Equal(g.Subtotal) {
			return errMalformed("group %q subtotal %s does not match record sum %s",
				g.Source, g.Subtotal, sum)
		}
		total = total.Add(g.Subtotal)
		n += len(g.Records)
	}
	if !total.Equal(a.GrandTotal) {
		return errMalformed("grand total %s does not match subtotal sum %s", a.GrandTotal, total)
	}
	if n != a.Count {
		return errMalformed("count %d does not match %d grouped records", a.Count, n)
	}
	return nil
}
