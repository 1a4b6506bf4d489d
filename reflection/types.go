/*
Package reflection implements the daily reflection service.

PURPOSE:
  A reflection is one journal entry per user per calendar day with three
  optional answers: what was learned, what interesting thing was done, and
  who was helped. This package owns the one-per-day invariant, the day
  bucket normalization, ownership-scoped mutations, and statistics.

KEY CONCEPTS:
  DayBucket:  Calendar day derived from a timestamp in the service location.
              Its Key() ("YYYY-MM-DD") is half of the uniqueness key.
  Store:      Persistence contract. Implementations MUST enforce
              UNIQUE(user_id, day) at the storage layer.
  Service:    The only entry point for handlers. Every operation takes the
              caller's user ID explicitly.

FIRST WRITE WINS:
  CreateOrGetForDay never overwrites. The first insert for a (user, day)
  defines the record; later calls return it unchanged with created=false.

SEE ALSO:
  - service.go: Operations
  - store.go: Persistence interface
  - store/sqlite, store/postgres: Implementations
*/
package reflection

import (
	"time"
	"unicode/utf8"
)

// MaxFieldLength caps each free-text answer, in runes.
const MaxFieldLength = 10000

// Reflection is one user's entry for one calendar day.
type Reflection struct {
	ID     string
	UserID string

	// Date is the start of the day bucket (local midnight).
	Date time.Time
	// Day is Date formatted with DayKeyLayout; (UserID, Day) is unique.
	Day string

	// nil = not supplied, "" = left blank. Both are valid.
	KnowledgeLearned  *string
	InterestingAction *string
	PeopleSolved      *string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Fields are the user-editable parts of a reflection.
// A nil field means "not supplied": creates store NULL, updates keep the old value.
type Fields struct {
	KnowledgeLearned  *string
	InterestingAction *string
	PeopleSolved      *string
}

// Validate checks field lengths.
func (f Fields) Validate() error {
	problems := map[string]string{}
	check := func(name string, v *string) {
		if v != nil && utf8.RuneCountInString(*v) > MaxFieldLength {
			problems[name] = "must be at most 10000 characters"
		}
	}
	check("knowledgeLearned", f.KnowledgeLearned)
	check("interestingAction", f.InterestingAction)
	check("peopleSolved", f.PeopleSolved)

	if len(problems) > 0 {
		return &ValidationError{Fields: problems}
	}
	return nil
}

// IsEmpty reports whether no field was supplied.
func (f Fields) IsEmpty() bool {
	return f.KnowledgeLearned == nil && f.InterestingAction == nil && f.PeopleSolved == nil
}

// Fields returns the editable parts of r.
func (r Reflection) Fields() Fields {
	return Fields{
		KnowledgeLearned:  r.KnowledgeLearned,
		InterestingAction: r.InterestingAction,
		PeopleSolved:      r.PeopleSolved,
	}
}
