package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/wednesdev-id/semindo-grow-hub-sub003/core"
	"github.com/wednesdev-id/semindo-grow-hub-sub003/core/csvio"
)

// common actions
const (
	ActionCreate = "create"
	ActionUpdate = "update"
	ActionDelete = "delete"
)

type Entry struct {
	ID         string                 `json:"id"`
	ActorID    string                 `json:"actor_id"`
	Action     string                 `json:"action"`
	Resource   string                 `json:"resource"`
	ResourceID string                 `json:"resource_id"`
	Metadata   map[string]interface{} `json:"metadata"`
	IP         string                 `json:"ip"`
	CreatedAt  time.Time              `json:"created_at"`
}

type QueryFilter struct {
	ActorID  string    `query:"actor"`
	Resource string    `query:"resource"`
	Action   string    `query:"action"`
	From     time.Time `query:"-"`
	To       time.Time `query:"-"`
}

type (
	Repository interface {
		CreateEntry(ctx context.Context, e Entry, exec ...core.DBExecutor) (Entry, error)
		// QueryEntries returns the matching entries, newest first; a page.Limit <= 0 returns them all.
		QueryEntries(ctx context.Context, filter QueryFilter, page core.Pagination, exec ...core.DBExecutor) ([]Entry, error)
	}

	// Recorder records audit entries. Failures never reach the caller.
	Recorder interface {
		Record(ctx context.Context, e Entry)
	}

	Service interface {
		Recorder
		Query(ctx context.Context, filter QueryFilter, page core.Pagination) ([]Entry, error)
		ExportCSV(ctx context.Context, w io.Writer, filter QueryFilter) error
	}

	service struct {
		repo   Repository
		logger core.Logger
	}
)

var _ Service = (*service)(nil)

func NewService(repo Repository, logger core.Logger) Service {
	return &service{repo: repo, logger: logger}
}

func (svc *service) Record(ctx context.Context, e Entry) {
	e.ID = uuid.NewString()
	e.CreatedAt = time.Now().UTC()
	if actor := core.ActorFromContext(ctx); !actor.IsAnonymous() || actor.IP != "" {
		if e.ActorID == "" {
			e.ActorID = actor.ID
		}
		e.IP = actor.IP
	}
	if e.Metadata == nil {
		e.Metadata = make(map[string]interface{})
	}
	if _, err := svc.repo.CreateEntry(ctx, e); err != nil {
		svc.logger.Error(fmt.Sprintf("audit.Record(%s %s): %v", e.Action, e.Resource, err), err)
	}
}

func (svc *service) Query(ctx context.Context, filter QueryFilter, page core.Pagination) ([]Entry, error) {
	page.Clean()
	return svc.repo.QueryEntries(ctx, filter, page)
}

var csvHeader = []string{"id", "created_at", "actor_id", "action", "resource", "resource_id", "ip", "metadata"}

func (svc *service) ExportCSV(ctx context.Context, w io.Writer, filter QueryFilter) error {
	entries, err := svc.repo.QueryEntries(ctx, filter, core.Pagination{Limit: -1})
	if err != nil {
		return errors.Wrap(err, "querying entries")
	}

	cw, err := csvio.NewWriter(w, csvHeader...)
	if err != nil {
		return err
	}
	for _, e := range entries {
		meta, err := json.Marshal(e.Metadata)
		if err != nil {
			return errors.Wrap(err, "encoding metadata")
		}
		record := []string{
			e.ID, e.CreatedAt.Format(time.RFC3339), e.ActorID, e.Action,
			e.Resource, e.ResourceID, e.IP, string(meta),
		}
		if err = cw.Write(record...); err != nil {
			return err
		}
	}
	return cw.Flush()
}

// Nop is a Recorder dropping every entry.
type Nop struct{}

func (Nop) Record(context.Context, Entry) {}
