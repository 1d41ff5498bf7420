package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/wednesdev-id/semindo-grow-hub-sub003/core"
	"github.com/wednesdev-id/semindo-grow-hub-sub003/core/marketplace"
)

type marketplaceApi struct {
	svc      marketplace.Service
	validate *validator.Validate
}

func registerMarketplaceAPI(
	g *echo.Group,
	authed, public []echo.MiddlewareFunc,
	svc marketplace.Service,
	validate *validator.Validate,
) {
	api := marketplaceApi{svc: svc, validate: validate}

	lg := g.Group("/listings")
	lg.GET("", api.browse, public...)
	lg.POST("", api.create, authed...)
	lg.GET("/mine", api.mine, authed...)
	lg.GET("/:id", api.retrieve, public...)
	lg.PUT("/:id", api.update, authed...)
	lg.POST("/:id/submit", api.submit, authed...)
	lg.POST("/:id/approve", api.approve, authed...)
	lg.POST("/:id/reject", api.reject, authed...)
	lg.POST("/:id/archive", api.archive, authed...)
}

func (api *marketplaceApi) browse(ctx echo.Context) error {
	var filter marketplace.QueryFilter
	ordering, page, err := bindQuery(ctx, &filter)
	if err != nil {
		return errors.Wrap(err, "binding to QueryFilter")
	}
	if err = filter.Clean(); err != nil {
		return err
	}
	// moderators may look at the review queue
	if actor := getActor(ctx); actor.Can(marketplace.PermModerate) {
		filter.Status = core.CleanString(ctx.QueryParam("status"), true /* lower */)
	}

	listings, err := api.svc.Browse(ctx.Request().Context(), getActor(ctx), filter, ordering, page)
	if err != nil {
		return errors.Wrap(err, "browsing listings")
	}
	return ctx.JSON(http.StatusOK, newListResponse(listings, page))
}

func (api *marketplaceApi) mine(ctx echo.Context) error {
	page := bindPage(ctx)
	listings, err := api.svc.MyListings(ctx.Request().Context(), getActor(ctx), page)
	if err != nil {
		return errors.Wrap(err, "listing own listings")
	}
	return ctx.JSON(http.StatusOK, newListResponse(listings, page))
}

func (api *marketplaceApi) create(ctx echo.Context) error {
	var data marketplace.ListingInput
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to ListingInput")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	l, err := api.svc.Create(ctx.Request().Context(), getActor(ctx), data)
	if err != nil {
		return errors.Wrap(err, "creating listing")
	}
	return ctx.JSON(http.StatusCreated, l)
}

func (api *marketplaceApi) retrieve(ctx echo.Context) error {
	l, err := api.svc.Get(ctx.Request().Context(), getActor(ctx), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "getting listing")
	}
	return ctx.JSON(http.StatusOK, l)
}

func (api *marketplaceApi) update(ctx echo.Context) error {
	var data marketplace.ListingInput
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to ListingInput")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	l, err := api.svc.Update(ctx.Request().Context(), getActor(ctx), ctx.Param("id"), data)
	if err != nil {
		return errors.Wrap(err, "updating listing")
	}
	return ctx.JSON(http.StatusOK, l)
}

func (api *marketplaceApi) submit(ctx echo.Context) error {
	l, err := api.svc.SubmitForReview(ctx.Request().Context(), getActor(ctx), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "submitting listing")
	}
	return ctx.JSON(http.StatusOK, l)
}

func (api *marketplaceApi) approve(ctx echo.Context) error {
	l, err := api.svc.Approve(ctx.Request().Context(), getActor(ctx), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "approving listing")
	}
	return ctx.JSON(http.StatusOK, l)
}

func (api *marketplaceApi) reject(ctx echo.Context) error {
	var data marketplace.Moderation
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to Moderation")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	l, err := api.svc.Reject(ctx.Request().Context(), getActor(ctx), ctx.Param("id"), data)
	if err != nil {
		return errors.Wrap(err, "rejecting listing")
	}
	return ctx.JSON(http.StatusOK, l)
}

func (api *marketplaceApi) archive(ctx echo.Context) error {
	l, err := api.svc.Archive(ctx.Request().Context(), getActor(ctx), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "archiving listing")
	}
	return ctx.JSON(http.StatusOK, l)
}
