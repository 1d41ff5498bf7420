package echoapi

import (
	"io"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/wednesdev-id/semindo-grow-hub-sub003/core"
	"github.com/wednesdev-id/semindo-grow-hub-sub003/core/audit"
	"github.com/wednesdev-id/semindo-grow-hub-sub003/core/rbac"
)

type auditApi struct {
	svc audit.Service
}

func registerAuditAPI(g *echo.Group, authed []echo.MiddlewareFunc, svc audit.Service) {
	api := auditApi{svc: svc}

	ag := g.Group("/audit", with(authed, requirePermission(rbac.PermAuditRead))...)
	ag.GET("", api.query)
	ag.GET("/export", api.export)
}

// bindFilter reads the filter; `from` and `to` accept RFC 3339 times or YYYY-MM-DD dates (`to` inclusive).
func (api *auditApi) bindFilter(ctx echo.Context) (audit.QueryFilter, core.Pagination, error) {
	var filter audit.QueryFilter
	_, page, err := bindQuery(ctx, &filter)
	if err != nil {
		return filter, page, err
	}
	parse := func(field string, endOfDay bool) (time.Time, error) {
		val := core.CleanString(ctx.QueryParam(field))
		if val == "" {
			return time.Time{}, nil
		}
		if t, err := time.Parse(time.RFC3339, val); err == nil {
			return t.UTC(), nil
		}
		d, err := core.ParseDate(val)
		if err != nil {
			return time.Time{}, core.NewFieldValidationError(field, "must be a RFC 3339 time or a YYYY-MM-DD date")
		}
		if endOfDay {
			d = d.Add(24*time.Hour - time.Nanosecond)
		}
		return d, nil
	}
	if filter.From, err = parse("from", false); err != nil {
		return filter, page, err
	}
	if filter.To, err = parse("to", true); err != nil {
		return filter, page, err
	}
	return filter, page, nil
}

func (api *auditApi) query(ctx echo.Context) error {
	filter, page, err := api.bindFilter(ctx)
	if err != nil {
		return err
	}
	entries, err := api.svc.Query(ctx.Request().Context(), filter, page)
	if err != nil {
		return errors.Wrap(err, "querying audit entries")
	}
	return ctx.JSON(http.StatusOK, newListResponse(entries, page))
}

func (api *auditApi) export(ctx echo.Context) error {
	filter, _, err := api.bindFilter(ctx)
	if err != nil {
		return err
	}
	return sendCSV(ctx, "audit", func(w io.Writer) error {
		return api.svc.ExportCSV(ctx.Request().Context(), w, filter)
	})
}
