package echoapi

import (
	"io"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/wednesdev-id/semindo-grow-hub-sub003/core"
	"github.com/wednesdev-id/semindo-grow-hub-sub003/core/umkm"
)

type umkmApi struct {
	svc      umkm.Service
	validate *validator.Validate
}

func registerUMKMAPI(g *echo.Group, authed []echo.MiddlewareFunc, svc umkm.Service, validate *validator.Validate) {
	api := umkmApi{svc: svc, validate: validate}

	ug := g.Group("/umkm", authed...)
	ug.GET("", api.query)
	ug.POST("", api.create)
	ug.GET("/me", api.mine)
	ug.GET("/export", api.export)
	ug.POST("/import", api.importCSV)
	ug.GET("/:id", api.retrieve)
	ug.PUT("/:id", api.update)
	ug.DELETE("/:id", api.destroy)
	ug.POST("/:id/verify", api.verify)
	ug.POST("/:id/reject", api.reject)
}

func (api *umkmApi) bindFilter(ctx echo.Context) (umkm.QueryFilter, []core.DBOrdering, core.Pagination, error) {
	var filter umkm.QueryFilter
	ordering, page, err := bindQuery(ctx, &filter)
	filter.Clean()
	return filter, ordering, page, err
}

func (api *umkmApi) query(ctx echo.Context) error {
	filter, ordering, page, err := api.bindFilter(ctx)
	if err != nil {
		return errors.Wrap(err, "binding to QueryFilter")
	}
	profiles, err := api.svc.Query(ctx.Request().Context(), getActor(ctx), filter, ordering, page)
	if err != nil {
		return errors.Wrap(err, "querying profiles")
	}
	return ctx.JSON(http.StatusOK, newListResponse(profiles, page))
}

func (api *umkmApi) create(ctx echo.Context) error {
	var data umkm.ProfileInput
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to ProfileInput")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	p, err := api.svc.Create(ctx.Request().Context(), getActor(ctx), data)
	if err != nil {
		return errors.Wrap(err, "creating profile")
	}
	return ctx.JSON(http.StatusCreated, p)
}

func (api *umkmApi) mine(ctx echo.Context) error {
	p, err := api.svc.GetByOwner(ctx.Request().Context(), getActor(ctx).ID)
	if err != nil {
		return errors.Wrap(err, "getting own profile")
	}
	return ctx.JSON(http.StatusOK, p)
}

func (api *umkmApi) retrieve(ctx echo.Context) error {
	p, err := api.svc.Get(ctx.Request().Context(), getActor(ctx), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "getting profile")
	}
	return ctx.JSON(http.StatusOK, p)
}

func (api *umkmApi) update(ctx echo.Context) error {
	var data umkm.ProfileInput
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to ProfileInput")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	p, err := api.svc.Update(ctx.Request().Context(), getActor(ctx), ctx.Param("id"), data)
	if err != nil {
		return errors.Wrap(err, "updating profile")
	}
	return ctx.JSON(http.StatusOK, p)
}

func (api *umkmApi) destroy(ctx echo.Context) error {
	if err := api.svc.Delete(ctx.Request().Context(), getActor(ctx), ctx.Param("id")); err != nil {
		return errors.Wrap(err, "deleting profile")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *umkmApi) verify(ctx echo.Context) error {
	p, err := api.svc.Verify(ctx.Request().Context(), getActor(ctx), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "verifying profile")
	}
	return ctx.JSON(http.StatusOK, p)
}

func (api *umkmApi) reject(ctx echo.Context) error {
	var data umkm.Rejection
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to Rejection")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	p, err := api.svc.Reject(ctx.Request().Context(), getActor(ctx), ctx.Param("id"), data)
	if err != nil {
		return errors.Wrap(err, "rejecting profile")
	}
	return ctx.JSON(http.StatusOK, p)
}

func (api *umkmApi) export(ctx echo.Context) error {
	filter, _, _, err := api.bindFilter(ctx)
	if err != nil {
		return errors.Wrap(err, "binding to QueryFilter")
	}
	return sendCSV(ctx, "umkm", func(w io.Writer) error {
		return api.svc.ExportCSV(ctx.Request().Context(), getActor(ctx), w, filter)
	})
}

func (api *umkmApi) importCSV(ctx echo.Context) error {
	r, err := uploadedFile(ctx, "file")
	if err != nil {
		return err
	}
	defer r.Close()

	res, err := api.svc.ImportCSV(ctx.Request().Context(), getActor(ctx), r)
	if err != nil {
		return errors.Wrap(err, "importing profiles")
	}
	return ctx.JSON(http.StatusOK, res)
}

// uploadedFile opens the multipart file field, or falls back to the raw request body.
func uploadedFile(ctx echo.Context, field string) (io.ReadCloser, error) {
	if fh, err := ctx.FormFile(field); err == nil {
		f, err := fh.Open()
		if err != nil {
			return nil, errors.Wrap(err, "opening uploaded file")
		}
		return f, nil
	}
	if ctx.Request().ContentLength == 0 {
		return nil, core.NewFieldValidationError(field, "this field is required")
	}
	return ctx.Request().Body, nil
}
