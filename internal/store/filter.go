package store

import (
	"strconv"
	"strings"
	"time"
)

// placeholder returns the positional parameter marker for 1-based index n.
func placeholder(n int) string {
	return "$" + strconv.Itoa(n)
}

// whereClause accumulates predicate fragments and their bound arguments in
// lockstep: every fragment appends its placeholders and pushes the matching
// values in the same call, so clause text and parameter order can never
// drift. The compiled pair is shared verbatim between the row-fetch query
// and the COUNT query of a list operation, which keeps the reported total
// consistent with the filtered page for any LIMIT/OFFSET.
type whereClause struct {
	frags []string
	args  []any
}

func newWhereClause() *whereClause {
	return &whereClause{frags: []string{"1 = 1"}}
}

// equals appends `col = $n` binding v.
func (w *whereClause) equals(col string, v any) {
	w.frags = append(w.frags, col+" = "+placeholder(len(w.args)+1))
	w.args = append(w.args, v)
}

// raw appends a fragment with no bound values (e.g. IS NULL checks).
func (w *whereClause) raw(frag string) {
	w.frags = append(w.frags, frag)
}

// search appends a case-insensitive substring match over one or more
// columns. The user value is always bound as a parameter, never spliced
// into the SQL text.
func (w *whereClause) search(term string, cols ...string) {
	pattern := "%" + term + "%"
	parts := make([]string, 0, len(cols))
	for _, col := range cols {
		parts = append(parts, col+" ILIKE "+placeholder(len(w.args)+1))
		w.args = append(w.args, pattern)
	}
	w.frags = append(w.frags, "("+strings.Join(parts, " OR ")+")")
}

// dateRange appends bounds for a closed calendar-date range [from, to].
// The upper bound is shifted to the next day and compared exclusively, so
// every timestamp within the `to` day is included regardless of
// time-of-day granularity.
func (w *whereClause) dateRange(col string, from, to *time.Time) {
	if from != nil {
		w.frags = append(w.frags, col+" >= "+placeholder(len(w.args)+1))
		w.args = append(w.args, *from)
	}
	if to != nil {
		w.frags = append(w.frags, col+" < "+placeholder(len(w.args)+1))
		w.args = append(w.args, to.AddDate(0, 0, 1))
	}
}

// triState appends whenTrue or whenFalse depending on v, or nothing when v
// is nil. Used for the has-error filter.
func (w *whereClause) triState(v *bool, whenTrue, whenFalse string) {
	switch {
	case v == nil:
	case *v:
		w.raw(whenTrue)
	default:
		w.raw(whenFalse)
	}
}

// SQL returns the predicate text for a WHERE clause.
func (w *whereClause) SQL() string {
	return strings.Join(w.frags, " AND ")
}

// Args returns the bound parameters in placeholder order.
func (w *whereClause) Args() []any {
	return w.args
}

// MessageFilter holds the optional filters of the message list operation.
// Nil fields contribute no predicate.
type MessageFilter struct {
	ConversationID *int64
	Role           *string
	HasError       *bool
	Search         *string
	DateFrom       *time.Time
	DateTo         *time.Time
}

func (f MessageFilter) compile() *whereClause {
	w := newWhereClause()
	if f.ConversationID != nil {
		w.equals("m.conversation_id", *f.ConversationID)
	}
	if f.Role != nil && *f.Role != "" {
		w.equals("m.role", *f.Role)
	}
	w.dateRange("m.timestamp", f.DateFrom, f.DateTo)
	if f.Search != nil && *f.Search != "" {
		w.search(*f.Search, "m.content")
	}
	w.triState(f.HasError, "m.error IS NOT NULL", "m.error IS NULL")
	return w
}

// ConversationFilter holds the optional filters of the conversation list
// operation. HasError is defined by the per-conversation error aggregate,
// not a column on the conversation itself.
type ConversationFilter struct {
	UserID   *int64
	HasError *bool
	Search   *string
	DateFrom *time.Time
	DateTo   *time.Time
}

func (f ConversationFilter) compile() *whereClause {
	w := newWhereClause()
	if f.UserID != nil {
		w.equals("c.user_id", *f.UserID)
	}
	w.dateRange("c.started_at", f.DateFrom, f.DateTo)
	w.triState(f.HasError,
		"COALESCE(ms.error_count, 0) > 0",
		"COALESCE(ms.error_count, 0) = 0")
	if f.Search != nil && *f.Search != "" {
		w.search(*f.Search, "u.display_name", "u.email", "u.external_id")
	}
	return w
}

// UserFilter holds the optional filters of the user list operation.
type UserFilter struct {
	Search *string
}

func (f UserFilter) compile() *whereClause {
	w := newWhereClause()
	if f.Search != nil && *f.Search != "" {
		w.search(*f.Search, "u.display_name", "u.email", "u.external_id")
	}
	return w
}
