package echoapi

import (
	"net/http"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"github.com/wednesdev-id/semindo-grow-hub-sub003/core"
	"github.com/wednesdev-id/semindo-grow-hub-sub003/core/financing"
)

type financingApi struct {
	svc      financing.Service
	validate *validator.Validate
}

func registerFinancingAPI(
	g *echo.Group,
	authed, public []echo.MiddlewareFunc,
	svc financing.Service,
	validate *validator.Validate,
) {
	api := financingApi{svc: svc, validate: validate}

	pg := g.Group("/partners")
	pg.GET("", api.listPartners, public...)
	pg.POST("", api.createPartner, authed...)
	pg.GET("/:id", api.retrievePartner, public...)
	pg.PUT("/:id", api.updatePartner, authed...)
	pg.DELETE("/:id", api.destroyPartner, authed...)
	pg.POST("/:id/products", api.addProduct, authed...)

	prg := g.Group("/products")
	prg.PUT("/:id", api.updateProduct, authed...)
	prg.DELETE("/:id", api.destroyProduct, authed...)
	prg.GET("/:id/estimate", api.estimate, public...)

	ag := g.Group("/applications", authed...)
	ag.GET("", api.listApplications)
	ag.POST("", api.apply)
	ag.GET("/:id", api.retrieveApplication)
	ag.POST("/:id/review", api.startReview)
	ag.POST("/:id/approve", api.approve)
	ag.POST("/:id/reject", api.reject)
	ag.POST("/:id/withdraw", api.withdraw)
}

// Partners

func (api *financingApi) listPartners(ctx echo.Context) error {
	var filter financing.PartnerFilter
	ordering, page, err := bindQuery(ctx, &filter)
	if err != nil {
		return errors.Wrap(err, "binding to PartnerFilter")
	}
	filter.Clean()

	partners, err := api.svc.ListPartners(ctx.Request().Context(), getActor(ctx), filter, ordering, page)
	if err != nil {
		return errors.Wrap(err, "listing partners")
	}
	return ctx.JSON(http.StatusOK, newListResponse(partners, page))
}

func (api *financingApi) createPartner(ctx echo.Context) error {
	var data financing.PartnerInput
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to PartnerInput")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	p, err := api.svc.CreatePartner(ctx.Request().Context(), getActor(ctx), data)
	if err != nil {
		return errors.Wrap(err, "creating partner")
	}
	return ctx.JSON(http.StatusCreated, p)
}

func (api *financingApi) retrievePartner(ctx echo.Context) error {
	p, err := api.svc.GetPartner(ctx.Request().Context(), getActor(ctx), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "getting partner")
	}
	return ctx.JSON(http.StatusOK, p)
}

func (api *financingApi) updatePartner(ctx echo.Context) error {
	var data financing.PartnerInput
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to PartnerInput")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	p, err := api.svc.UpdatePartner(ctx.Request().Context(), getActor(ctx), ctx.Param("id"), data)
	if err != nil {
		return errors.Wrap(err, "updating partner")
	}
	return ctx.JSON(http.StatusOK, p)
}

func (api *financingApi) destroyPartner(ctx echo.Context) error {
	if err := api.svc.DeletePartner(ctx.Request().Context(), getActor(ctx), ctx.Param("id")); err != nil {
		return errors.Wrap(err, "deleting partner")
	}
	return ctx.NoContent(http.StatusNoContent)
}

// Products

func (api *financingApi) addProduct(ctx echo.Context) error {
	var data financing.ProductInput
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to ProductInput")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	p, err := api.svc.AddProduct(ctx.Request().Context(), getActor(ctx), ctx.Param("id"), data)
	if err != nil {
		return errors.Wrap(err, "adding product")
	}
	return ctx.JSON(http.StatusCreated, p)
}

func (api *financingApi) updateProduct(ctx echo.Context) error {
	var data financing.ProductInput
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to ProductInput")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	p, err := api.svc.UpdateProduct(ctx.Request().Context(), getActor(ctx), ctx.Param("id"), data)
	if err != nil {
		return errors.Wrap(err, "updating product")
	}
	return ctx.JSON(http.StatusOK, p)
}

func (api *financingApi) destroyProduct(ctx echo.Context) error {
	if err := api.svc.DeleteProduct(ctx.Request().Context(), getActor(ctx), ctx.Param("id")); err != nil {
		return errors.Wrap(err, "deleting product")
	}
	return ctx.NoContent(http.StatusNoContent)
}

// estimate reads `amount` and `tenor` (months) from the query string.
func (api *financingApi) estimate(ctx echo.Context) error {
	amount, err := decimal.NewFromString(core.CleanString(ctx.QueryParam("amount")))
	if err != nil {
		return core.NewFieldValidationError("amount", "must be a number")
	}
	tenor, err := strconv.Atoi(core.CleanString(ctx.QueryParam("tenor")))
	if err != nil {
		return core.NewFieldValidationError("tenor", "must be an integer")
	}

	est, err := api.svc.Estimate(ctx.Request().Context(), ctx.Param("id"), amount, tenor)
	if err != nil {
		return errors.Wrap(err, "estimating installments")
	}
	return ctx.JSON(http.StatusOK, est)
}

// Applications

func (api *financingApi) listApplications(ctx echo.Context) error {
	var filter financing.ApplicationFilter
	_, page, err := bindQuery(ctx, &filter)
	if err != nil {
		return errors.Wrap(err, "binding to ApplicationFilter")
	}
	filter.Clean()

	apps, err := api.svc.ListApplications(ctx.Request().Context(), getActor(ctx), filter, page)
	if err != nil {
		return errors.Wrap(err, "listing applications")
	}
	return ctx.JSON(http.StatusOK, newListResponse(apps, page))
}

func (api *financingApi) apply(ctx echo.Context) error {
	var data financing.NewApplication
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewApplication")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	a, err := api.svc.Apply(ctx.Request().Context(), getActor(ctx), data)
	if err != nil {
		return errors.Wrap(err, "applying for financing")
	}
	return ctx.JSON(http.StatusCreated, a)
}

func (api *financingApi) retrieveApplication(ctx echo.Context) error {
	a, err := api.svc.GetApplication(ctx.Request().Context(), getActor(ctx), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "getting application")
	}
	return ctx.JSON(http.StatusOK, a)
}

func (api *financingApi) startReview(ctx echo.Context) error {
	a, err := api.svc.StartReview(ctx.Request().Context(), getActor(ctx), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "starting review")
	}
	return ctx.JSON(http.StatusOK, a)
}

func (api *financingApi) bindReview(ctx echo.Context) (financing.Review, error) {
	var data financing.Review
	if err := ctx.Bind(&data); err != nil {
		return data, errors.Wrap(err, "binding to Review")
	}
	return data, data.Validate(api.validate)
}

func (api *financingApi) approve(ctx echo.Context) error {
	data, err := api.bindReview(ctx)
	if err != nil {
		return err
	}
	a, err := api.svc.Approve(ctx.Request().Context(), getActor(ctx), ctx.Param("id"), data)
	if err != nil {
		return errors.Wrap(err, "approving application")
	}
	return ctx.JSON(http.StatusOK, a)
}

func (api *financingApi) reject(ctx echo.Context) error {
	data, err := api.bindReview(ctx)
	if err != nil {
		return err
	}
	a, err := api.svc.Reject(ctx.Request().Context(), getActor(ctx), ctx.Param("id"), data)
	if err != nil {
		return errors.Wrap(err, "rejecting application")
	}
	return ctx.JSON(http.StatusOK, a)
}

func (api *financingApi) withdraw(ctx echo.Context) error {
	a, err := api.svc.Withdraw(ctx.Request().Context(), getActor(ctx), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "withdrawing application")
	}
	return ctx.JSON(http.StatusOK, a)
}
