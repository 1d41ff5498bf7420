package echoapi

import (
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/wednesdev-id/semindo-grow-hub-sub003/core"
)

const (
	orderingParam = "ordering"
	limitParam    = "limit"
	offsetParam   = "offset"
)

type Ordering struct {
	Orderings []core.DBOrdering
}

// Bind reads `ordering=field,-field`; a leading "-" sorts descending.
func (ord *Ordering) Bind(ctx echo.Context) {
	val := ctx.QueryParam(orderingParam)
	if val == "" {
		return
	}

	for _, field := range strings.Split(val, ",") {
		field = strings.TrimSpace(field)
		descending := strings.HasPrefix(field, "-")
		if descending {
			field = field[1:] // drop "-"
		}
		if field == "" {
			continue
		}
		ord.Orderings = append(ord.Orderings, core.DBOrdering{Field: field, Ascending: !descending})
	}
}

// bindPage reads `limit` and `offset`; invalid values fall back to the defaults.
func bindPage(ctx echo.Context) core.Pagination {
	var page core.Pagination
	if n, err := strconv.Atoi(ctx.QueryParam(limitParam)); err == nil {
		page.Limit = n
	}
	if n, err := strconv.Atoi(ctx.QueryParam(offsetParam)); err == nil {
		page.Offset = n
	}
	page.Clean()
	return page
}

// bindQuery binds the query string of a GET request into filter, then reads the ordering and the page.
func bindQuery(ctx echo.Context, filter interface{}) ([]core.DBOrdering, core.Pagination, error) {
	if filter != nil {
		if err := ctx.Bind(filter); err != nil {
			return nil, core.Pagination{}, err
		}
	}
	ordering := new(Ordering)
	ordering.Bind(ctx)
	return ordering.Orderings, bindPage(ctx), nil
}

type (
	SuccessResponse struct {
		Success string `json:"success"`
	}

	listResponse struct {
		Results interface{} `json:"results"`
		Limit   int         `json:"limit"`
		Offset  int         `json:"offset"`
	}
)

func newListResponse(results interface{}, page core.Pagination) listResponse {
	return listResponse{Results: results, Limit: page.Limit, Offset: page.Offset}
}
