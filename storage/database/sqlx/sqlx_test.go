package sqlxrepos

import (
	"strings"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wednesdev-id/semindo-grow-hub-sub003/core"
)

// newMock returns a postgres flavoured sqlx.DB backed by sqlmock; expectations are checked on cleanup.
func newMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() {
		assert.NoError(t, mock.ExpectationsWereMet())
		_ = db.Close()
	})
	return sqlx.NewDb(db, "postgres"), mock
}

// columnNames returns the result column names of a SELECT list.
func columnNames(list string) []string {
	var names []string
	depth, start := 0, 0
	for i, r := range list {
		switch r {
		case '(':
			depth++
		case ')':
			depth--
		case ',':
			if depth == 0 {
				names = append(names, columnName(list[start:i]))
				start = i + 1
			}
		}
	}
	return append(names, columnName(list[start:]))
}

func columnName(expr string) string {
	expr = strings.Join(strings.Fields(expr), " ")
	if i := strings.LastIndex(expr, " AS "); i >= 0 {
		return expr[i+len(" AS "):]
	}
	if i := strings.LastIndex(expr, "."); i >= 0 {
		return expr[i+1:]
	}
	return expr
}

func Test_columnNames(t *testing.T) {
	assert.Equal(t,
		[]string{"id", "letter_date", "status"},
		columnNames("l.id,\n\tto_char(l.letter_date, 'YYYY-MM-DD') AS letter_date, l.status"),
	)
}

func Test_conditions(t *testing.T) {
	var conds conditions
	assert.Empty(t, conds.where())

	conds.add("status = ?", "draft")
	conds.add("(name ILIKE ? OR city ILIKE ?)", "%a%", "%a%")
	assert.Equal(t, " WHERE status = ? AND (name ILIKE ? OR city ILIKE ?)", conds.where())
	assert.Equal(t, []interface{}{"draft", "%a%", "%a%"}, conds.args)
}

func Test_limitOffset(t *testing.T) {
	tests := []struct {
		page core.Pagination
		want string
	}{
		{page: core.Pagination{}, want: ""},
		{page: core.Pagination{Limit: 10}, want: " LIMIT 10"},
		{page: core.Pagination{Limit: 10, Offset: 20}, want: " LIMIT 10 OFFSET 20"},
		{page: core.Pagination{Limit: 10000}, want: " LIMIT 500"},
		{page: core.Pagination{Offset: 5}, want: " OFFSET 5"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, limitOffset(tt.page))
	}
}

func Test_uniqueConstraint(t *testing.T) {
	name, ok := uniqueConstraint(errors.Wrap(&pq.Error{Code: uniqueViolation, Constraint: "users_email_key"}, "inserting"))
	assert.True(t, ok)
	assert.Equal(t, "users_email_key", name)

	_, ok = uniqueConstraint(&pq.Error{Code: "23503"})
	assert.False(t, ok, "foreign key violation")
	_, ok = uniqueConstraint(errors.New("lol"))
	assert.False(t, ok)
}

func Test_exclusionConstraint(t *testing.T) {
	name, ok := exclusionConstraint(errors.Wrap(&pq.Error{Code: exclusionViolation, Constraint: "bookings_active_slot_excl"}, "inserting"))
	assert.True(t, ok)
	assert.Equal(t, "bookings_active_slot_excl", name)

	_, ok = exclusionConstraint(&pq.Error{Code: uniqueViolation, Constraint: "bookings_active_slot_excl"})
	assert.False(t, ok)
}

func Test_validUUIDs(t *testing.T) {
	id := newID()
	assert.Equal(t, []string{id}, validUUIDs([]string{"lol", id, ""}))
	assert.Empty(t, validUUIDs(nil))
}
