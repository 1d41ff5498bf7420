package inmemdb

import (
	"context"

	"github.com/wednesdev-id/semindo-grow-hub-sub003/core"
	"github.com/wednesdev-id/semindo-grow-hub-sub003/core/audit"
)

type auditRepository struct {
	db *DB
}

var _ audit.Repository = (*auditRepository)(nil)

func NewAuditRepository(db *DB) audit.Repository {
	return &auditRepository{db: db}
}

func (repo *auditRepository) CreateEntry(_ context.Context, e audit.Entry, _ ...core.DBExecutor) (audit.Entry, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	if e.ID == "" {
		e.ID = newID()
	}
	repo.db.audit = append(repo.db.audit, e)
	return e, nil
}

func (repo *auditRepository) QueryEntries(_ context.Context, filter audit.QueryFilter, page core.Pagination, _ ...core.DBExecutor) ([]audit.Entry, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	entries := make([]audit.Entry, 0)
	for i := len(repo.db.audit) - 1; i >= 0; i-- { // newest first
		e := repo.db.audit[i]
		switch {
		case filter.ActorID != "" && e.ActorID != filter.ActorID,
			filter.Resource != "" && e.Resource != filter.Resource,
			filter.Action != "" && e.Action != filter.Action,
			!filter.From.IsZero() && e.CreatedAt.Before(filter.From),
			!filter.To.IsZero() && e.CreatedAt.After(filter.To):
			continue
		}
		entries = append(entries, e)
	}
	return paginate(entries, page), nil
}
