package sqlxrepos

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/wednesdev-id/semindo-grow-hub-sub003/core"
	"github.com/wednesdev-id/semindo-grow-hub-sub003/core/audit"
)

type auditRow struct {
	ID         string    `db:"id"`
	ActorID    string    `db:"actor_id"`
	Action     string    `db:"action"`
	Resource   string    `db:"resource"`
	ResourceID string    `db:"resource_id"`
	Metadata   null.JSON `db:"metadata"`
	IP         string    `db:"ip"`
	CreatedAt  time.Time `db:"created_at"`
}

type auditRepository struct {
	repository
}

var _ audit.Repository = (*auditRepository)(nil)

func NewAuditRepository(exec core.DBExecutor) audit.Repository {
	return &auditRepository{repository{exec: exec}}
}

func (repo auditRepository) CreateEntry(ctx context.Context, e audit.Entry, exec ...core.DBExecutor) (audit.Entry, error) {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	row := auditRow{
		ID:         e.ID,
		ActorID:    e.ActorID,
		Action:     e.Action,
		Resource:   e.Resource,
		ResourceID: e.ResourceID,
		IP:         e.IP,
		CreatedAt:  e.CreatedAt.UTC(),
	}
	if e.Metadata != nil {
		if err := row.Metadata.Marshal(e.Metadata); err != nil {
			return audit.Entry{}, errors.Wrap(err, "encoding audit metadata")
		}
	}

	q := `INSERT INTO audit_entries (id, actor_id, action, resource, resource_id, metadata, ip, created_at)
		VALUES (:id, :actor_id, :action, :resource, :resource_id, :metadata, :ip, :created_at)`
	if _, err := repo.getExec(exec).NamedExecContext(ctx, q, row); err != nil {
		return audit.Entry{}, errors.Wrap(err, "inserting audit entry")
	}
	return e, nil
}

func (repo auditRepository) QueryEntries(ctx context.Context, filter audit.QueryFilter, page core.Pagination, exec ...core.DBExecutor) ([]audit.Entry, error) {
	var conds conditions
	if filter.ActorID != "" {
		conds.add("actor_id = ?", filter.ActorID)
	}
	if filter.Resource != "" {
		conds.add("resource = ?", filter.Resource)
	}
	if filter.Action != "" {
		conds.add("action = ?", filter.Action)
	}
	if !filter.From.IsZero() {
		conds.add("created_at >= ?", filter.From.UTC())
	}
	if !filter.To.IsZero() {
		conds.add("created_at <= ?", filter.To.UTC())
	}

	q := "SELECT id, actor_id, action, resource, resource_id, metadata, ip, created_at FROM audit_entries" +
		conds.where() + " ORDER BY created_at DESC" + limitOffset(page)
	var rows []auditRow
	if err := selectAll(ctx, repo.getExec(exec), &rows, q, conds.args...); err != nil {
		return nil, errors.Wrap(err, "querying audit entries")
	}

	entries := make([]audit.Entry, 0, len(rows))
	for _, row := range rows {
		e := audit.Entry{
			ID:         row.ID,
			ActorID:    row.ActorID,
			Action:     row.Action,
			Resource:   row.Resource,
			ResourceID: row.ResourceID,
			IP:         row.IP,
			CreatedAt:  row.CreatedAt.UTC(),
		}
		if row.Metadata.Valid {
			if err := row.Metadata.Unmarshal(&e.Metadata); err != nil {
				return nil, errors.Wrap(err, "decoding audit metadata")
			}
		}
		entries = append(entries, e)
	}
	return entries, nil
}
