package reflection_test

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/warp/daily-reflections/reflection"
	"github.com/warp/daily-reflections/reflection/reflectiontest"
)

func withKnowledge(day string, v *string) reflection.Reflection {
	r := reflectiontest.NewReflection("user-a", day)
	r.KnowledgeLearned = v
	return r
}

func assertDecimal(t *testing.T, want string, got decimal.Decimal) {
	t.Helper()
	assert.True(t, decimal.RequireFromString(want).Equal(got), "want %s, got %s", want, got)
}

func TestSummarize_BlankAnswersDoNotCount(t *testing.T) {
	// GIVEN: Four reflections whose knowledge answers are "", "  ", "x" and absent
	list := []reflection.Reflection{
		withKnowledge("2024-04-01", reflectiontest.Str("")),
		withKnowledge("2024-04-02", reflectiontest.Str("  ")),
		withKnowledge("2024-04-03", reflectiontest.Str("x")),
		withKnowledge("2024-04-04", nil),
	}

	// WHEN: Summarizing
	s := reflection.Summarize(list)

	// THEN: Only the non-blank answer counts
	assert.Equal(t, 4, s.TotalCount)
	assert.Equal(t, 1, s.KnowledgeCount)
	assert.Equal(t, 0, s.ActionCount)
	assert.Equal(t, 0, s.HelpCount)
	assertDecimal(t, "0.25", s.CompletionRates.Knowledge)
	assertDecimal(t, "0", s.CompletionRates.Action)
}

func TestSummarize_MonthlyCounts(t *testing.T) {
	list := []reflection.Reflection{
		reflectiontest.NewReflection("user-a", "2024-02-01"),
		reflectiontest.NewReflection("user-a", "2024-01-20"),
		reflectiontest.NewReflection("user-a", "2024-01-15"),
		reflectiontest.NewReflection("user-a", "2023-12-31"),
	}

	s := reflection.Summarize(list)

	assert.Equal(t, []reflection.MonthCount{
		{Month: "2023-12", Count: 1},
		{Month: "2024-01", Count: 2},
		{Month: "2024-02", Count: 1},
	}, s.MonthlyCounts)
}

func TestSummarize_RatesRoundToTwoPlaces(t *testing.T) {
	list := []reflection.Reflection{
		withKnowledge("2024-04-01", reflectiontest.Str("a")),
		withKnowledge("2024-04-02", reflectiontest.Str("b")),
		withKnowledge("2024-04-03", nil),
	}
	list[0].PeopleSolved = reflectiontest.Str("a friend")

	s := reflection.Summarize(list)

	assertDecimal(t, "0.67", s.CompletionRates.Knowledge)
	assertDecimal(t, "0.33", s.CompletionRates.Help)
}

func TestSummarize_Empty(t *testing.T) {
	s := reflection.Summarize(nil)

	assert.Equal(t, 0, s.TotalCount)
	assert.NotNil(t, s.MonthlyCounts)
	assert.Empty(t, s.MonthlyCounts)
	assert.True(t, s.CompletionRates.Knowledge.IsZero())
	assert.True(t, s.CompletionRates.Action.IsZero())
	assert.True(t, s.CompletionRates.Help.IsZero())
}
