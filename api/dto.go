/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. Field names are
  camelCase to match the existing web client.

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients
  - *Response: Small response wrappers

NULLABLE ANSWERS:
  knowledgeLearned, interestingAction and peopleSolved are *string on both
  sides. In requests, an omitted field means "not supplied" (updates keep
  the stored value); "" is an explicit blank answer. In responses, null
  means the question was never answered.

VALIDATION:
  Validation is done by the reflection service, not in DTOs. DTOs are pure
  data carriers.

SEE ALSO:
  - handlers.go: Uses these types
  - reflection/types.go: Domain types
*/
package api

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/warp/daily-reflections/reflection"
)

// =============================================================================
// REQUEST/RESPONSE TYPES
// =============================================================================

// ReflectionDTO represents a reflection in API responses.
type ReflectionDTO struct {
	ID                string  `json:"id"`
	UserID            string  `json:"userId"`
	Date              string  `json:"date"` // RFC3339, start of the day in server time
	Day               string  `json:"day"`  // YYYY-MM-DD
	KnowledgeLearned  *string `json:"knowledgeLearned"`
	InterestingAction *string `json:"interestingAction"`
	PeopleSolved      *string `json:"peopleSolved"`
	CreatedAt         string  `json:"createdAt"`
	UpdatedAt         string  `json:"updatedAt"`
}

// CreateReflectionRequest is the body of POST /api/reflections.
// An empty Date means today.
type CreateReflectionRequest struct {
	Date              string  `json:"date"`
	KnowledgeLearned  *string `json:"knowledgeLearned"`
	InterestingAction *string `json:"interestingAction"`
	PeopleSolved      *string `json:"peopleSolved"`
}

// UpdateReflectionRequest is the body of PUT /api/reflections/{id}.
// Date is optional and must stay on the reflection's day when present.
type UpdateReflectionRequest struct {
	Date              string  `json:"date,omitempty"`
	KnowledgeLearned  *string `json:"knowledgeLearned"`
	InterestingAction *string `json:"interestingAction"`
	PeopleSolved      *string `json:"peopleSolved"`
}

// DayLookupResponse answers "is there a reflection for this day?".
type DayLookupResponse struct {
	Exists  bool           `json:"exists"`
	Data    *ReflectionDTO `json:"data,omitempty"`
	Message string         `json:"message,omitempty"`
}

// StatsDTO is the body of GET /api/stats.
type StatsDTO struct {
	TotalCount      int                `json:"totalCount"`
	KnowledgeCount  int                `json:"knowledgeCount"`
	ActionCount     int                `json:"actionCount"`
	HelpCount       int                `json:"helpCount"`
	MonthlyCounts   []MonthCountDTO    `json:"monthlyCounts"`
	CompletionRates CompletionRatesDTO `json:"completionRates"`
}

// MonthCountDTO is one point of the monthly chart.
type MonthCountDTO struct {
	Month string `json:"month"` // YYYY-MM
	Count int    `json:"count"`
}

// CompletionRatesDTO carries rates as decimal strings, e.g. "0.67".
type CompletionRatesDTO struct {
	Knowledge decimal.Decimal `json:"knowledge"`
	Action    decimal.Decimal `json:"action"`
	Help      decimal.Decimal `json:"help"`
}

// SuccessResponse acknowledges a delete.
type SuccessResponse struct {
	Success bool `json:"success"`
}

// HealthResponse is the body of GET /healthz.
type HealthResponse struct {
	Status string `json:"status"`
}

// ErrorResponse represents an error in API responses.
type ErrorResponse struct {
	Error   string            `json:"error"`
	Details map[string]string `json:"details,omitempty"`
}

// =============================================================================
// CONVERSIONS
// =============================================================================

func toReflectionDTO(r *reflection.Reflection) ReflectionDTO {
	return ReflectionDTO{
		ID:                r.ID,
		UserID:            r.UserID,
		Date:              r.Date.Format(time.RFC3339),
		Day:               r.Day,
		KnowledgeLearned:  r.KnowledgeLearned,
		InterestingAction: r.InterestingAction,
		PeopleSolved:      r.PeopleSolved,
		CreatedAt:         r.CreatedAt.UTC().Format(time.RFC3339Nano),
		UpdatedAt:         r.UpdatedAt.UTC().Format(time.RFC3339Nano),
	}
}

func toReflectionDTOs(list []reflection.Reflection) []ReflectionDTO {
	dtos := make([]ReflectionDTO, len(list))
	for i := range list {
		dtos[i] = toReflectionDTO(&list[i])
	}
	return dtos
}

func toStatsDTO(s reflection.StatsSummary) StatsDTO {
	months := make([]MonthCountDTO, len(s.MonthlyCounts))
	for i, m := range s.MonthlyCounts {
		months[i] = MonthCountDTO{Month: m.Month, Count: m.Count}
	}
	return StatsDTO{
		TotalCount:     s.TotalCount,
		KnowledgeCount: s.KnowledgeCount,
		ActionCount:    s.ActionCount,
		HelpCount:      s.HelpCount,
		MonthlyCounts:  months,
		CompletionRates: CompletionRatesDTO{
			Knowledge: s.CompletionRates.Knowledge,
			Action:    s.CompletionRates.Action,
			Help:      s.CompletionRates.Help,
		},
	}
}

func (r CreateReflectionRequest) fields() reflection.Fields {
	return reflection.Fields{
		KnowledgeLearned:  r.KnowledgeLearned,
		InterestingAction: r.InterestingAction,
		PeopleSolved:      r.PeopleSolved,
	}
}

func (r UpdateReflectionRequest) fields() reflection.Fields {
	return reflection.Fields{
		KnowledgeLearned:  r.KnowledgeLearned,
		InterestingAction: r.InterestingAction,
		PeopleSolved:      r.PeopleSolved,
	}
}
