// Package sqlxrepos implements the core repositories on PostgreSQL with sqlx.
package sqlxrepos

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/wednesdev-id/semindo-grow-hub-sub003/core"
)

const (
	uniqueViolation    = "23505"
	exclusionViolation = "23P01"
)

type repository struct {
	exec core.DBExecutor
}

func (repo repository) getExec(svcExec []core.DBExecutor) core.DBExecutor {
	if len(svcExec) > 0 {
		return svcExec[0]
	}
	return repo.exec
}

// conditions collects WHERE clauses written with `?` bind vars.
type conditions struct {
	clauses []string
	args    []interface{}
}

func (c *conditions) add(clause string, args ...interface{}) {
	c.clauses = append(c.clauses, clause)
	c.args = append(c.args, args...)
}

func (c *conditions) where() string {
	if len(c.clauses) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(c.clauses, " AND ")
}

// limitOffset renders the page; a page.Limit <= 0 returns every row.
func limitOffset(page core.Pagination) string {
	var s string
	if page.Limit > 0 {
		if page.Limit > core.MaxPageLimit {
			page.Limit = core.MaxPageLimit
		}
		s = fmt.Sprintf(" LIMIT %d", page.Limit)
	}
	if page.Offset > 0 {
		s += fmt.Sprintf(" OFFSET %d", page.Offset)
	}
	return s
}

func like(s string) string {
	return "%" + s + "%"
}

// uniqueConstraint returns the name of the violated unique constraint, if any.
func uniqueConstraint(err error) (string, bool) {
	if pqErr, ok := errors.Cause(err).(*pq.Error); ok && pqErr.Code == uniqueViolation {
		return pqErr.Constraint, true
	}
	return "", false
}

// exclusionConstraint returns the name of the violated exclusion constraint, if any.
func exclusionConstraint(err error) (string, bool) {
	if pqErr, ok := errors.Cause(err).(*pq.Error); ok && pqErr.Code == exclusionViolation {
		return pqErr.Constraint, true
	}
	return "", false
}

// trapNoRowsErr maps the "no rows" err to notFound.
func trapNoRowsErr(err, notFound error, msg string) error {
	if errors.Cause(err) == sql.ErrNoRows {
		return notFound
	}
	return errors.Wrap(err, msg)
}

// checkAffected returns notFound when res touched no row.
func checkAffected(res sql.Result, notFound error) error {
	n, err := res.RowsAffected()
	if err != nil {
		return errors.Wrap(err, "counting affected rows")
	}
	if n == 0 {
		return notFound
	}
	return nil
}

func isUUID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}

func validUUIDs(ids []string) []string {
	valid := make([]string, 0, len(ids))
	for _, id := range ids {
		if isUUID(id) {
			valid = append(valid, id)
		}
	}
	return valid
}

func getOne(ctx context.Context, exec core.DBExecutor, dest interface{}, query string, args ...interface{}) error {
	return exec.GetContext(ctx, dest, exec.Rebind(query), args...)
}

func selectAll(ctx context.Context, exec core.DBExecutor, dest interface{}, query string, args ...interface{}) error {
	return exec.SelectContext(ctx, dest, exec.Rebind(query), args...)
}

func execQuery(ctx context.Context, exec core.DBExecutor, query string, args ...interface{}) (sql.Result, error) {
	return exec.ExecContext(ctx, exec.Rebind(query), args...)
}

func nullTime(t time.Time) null.Time {
	return null.NewTime(t.UTC(), !t.IsZero())
}

func timeOf(t null.Time) time.Time {
	if !t.Valid {
		return time.Time{}
	}
	return t.Time.UTC()
}

func nullString(s string) null.String {
	return null.NewString(s, s != "")
}

func stringArray(s []string) pq.StringArray {
	if s == nil {
		return pq.StringArray{}
	}
	return s
}

func newID() string {
	return uuid.NewString()
}
