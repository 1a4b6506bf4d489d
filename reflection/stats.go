package reflection

import (
	"context"
	"sort"
	"strings"

	"github.com/shopspring/decimal"
)

// =============================================================================
// STATISTICS - Derived, read-only aggregate over a user's reflections
// =============================================================================

// StatsSummary aggregates a user's reflections.
type StatsSummary struct {
	TotalCount     int
	KnowledgeCount int
	ActionCount    int
	HelpCount      int

	// MonthlyCounts is ordered by Month ascending.
	MonthlyCounts []MonthCount

	CompletionRates CompletionRates
}

// MonthCount is the number of reflections in one "YYYY-MM" month.
type MonthCount struct {
	Month string
	Count int
}

// CompletionRates are the answered fraction of each question, two decimal places.
type CompletionRates struct {
	Knowledge decimal.Decimal
	Action    decimal.Decimal
	Help      decimal.Decimal
}

// ComputeStats summarizes all of the user's reflections.
func (s *Service) ComputeStats(ctx context.Context, userID string) (StatsSummary, error) {
	list, err := s.ListForUser(ctx, userID)
	if err != nil {
		return StatsSummary{}, err
	}
	return Summarize(list), nil
}

// Summarize is a single pass over reflections plus a sort of the distinct months.
// Months come from the stored day key, so they match the bucket the user wrote in.
func Summarize(reflections []Reflection) StatsSummary {
	summary := StatsSummary{
		TotalCount:    len(reflections),
		MonthlyCounts: []MonthCount{},
	}

	months := make(map[string]int)
	for _, r := range reflections {
		if answered(r.KnowledgeLearned) {
			summary.KnowledgeCount++
		}
		if answered(r.InterestingAction) {
			summary.ActionCount++
		}
		if answered(r.PeopleSolved) {
			summary.HelpCount++
		}
		months[monthKey(r)]++
	}

	keys := make([]string, 0, len(months))
	for k := range months {
		keys = append(keys, k)
	}
	// "YYYY-MM" sorts lexically in chronological order.
	sort.Strings(keys)
	for _, k := range keys {
		summary.MonthlyCounts = append(summary.MonthlyCounts, MonthCount{Month: k, Count: months[k]})
	}

	summary.CompletionRates = CompletionRates{
		Knowledge: rate(summary.KnowledgeCount, summary.TotalCount),
		Action:    rate(summary.ActionCount, summary.TotalCount),
		Help:      rate(summary.HelpCount, summary.TotalCount),
	}
	return summary
}

func answered(v *string) bool {
	return v != nil && strings.TrimSpace(*v) != ""
}

func monthKey(r Reflection) string {
	if len(r.Day) >= len("2006-01") {
		return r.Day[:len("2006-01")]
	}
	return r.Date.Format("2006-01")
}

func rate(count, total int) decimal.Decimal {
	if total == 0 {
		return decimal.Zero
	}
	return decimal.NewFromInt(int64(count)).
		DivRound(decimal.NewFromInt(int64(total)), 2)
}
