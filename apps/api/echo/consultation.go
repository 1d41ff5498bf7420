package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/wednesdev-id/semindo-grow-hub-sub003/core"
	"github.com/wednesdev-id/semindo-grow-hub-sub003/core/consultation"
)

type consultationApi struct {
	svc      consultation.Service
	validate *validator.Validate
}

func registerConsultationAPI(
	g *echo.Group,
	authed, public []echo.MiddlewareFunc,
	svc consultation.Service,
	validate *validator.Validate,
) {
	api := consultationApi{svc: svc, validate: validate}

	// directory is public, edits are authed
	cg := g.Group("/consultants")
	cg.GET("", api.queryConsultants, public...)
	cg.POST("", api.createConsultant, authed...)
	cg.GET("/:id", api.retrieveConsultant, public...)
	cg.PUT("/:id", api.updateConsultant, authed...)
	cg.GET("/:id/slots", api.slots, public...)
	cg.GET("/:id/reviews", api.reviews, public...)
	cg.GET("/:id/availability", api.listRules, public...)
	cg.POST("/:id/availability", api.addRule, authed...)
	cg.DELETE("/:id/availability/:ruleID", api.deleteRule, authed...)

	bg := g.Group("/bookings", authed...)
	bg.GET("", api.listBookings)
	bg.POST("", api.book)
	bg.GET("/:id", api.retrieveBooking)
	bg.POST("/:id/approve", api.approve)
	bg.POST("/:id/reject", api.reject)
	bg.POST("/:id/cancel", api.cancel)
	bg.POST("/:id/complete", api.complete)
	bg.POST("/:id/review", api.review)
}

// Consultants

func (api *consultationApi) queryConsultants(ctx echo.Context) error {
	var filter consultation.ConsultantFilter
	ordering, page, err := bindQuery(ctx, &filter)
	if err != nil {
		return errors.Wrap(err, "binding to ConsultantFilter")
	}
	filter.Clean()

	consultants, err := api.svc.QueryConsultants(ctx.Request().Context(), filter, ordering, page)
	if err != nil {
		return errors.Wrap(err, "querying consultants")
	}
	return ctx.JSON(http.StatusOK, newListResponse(consultants, page))
}

func (api *consultationApi) retrieveConsultant(ctx echo.Context) error {
	c, err := api.svc.GetConsultant(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "getting consultant")
	}
	return ctx.JSON(http.StatusOK, c)
}

func (api *consultationApi) createConsultant(ctx echo.Context) error {
	var data consultation.ConsultantInput
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to ConsultantInput")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	c, err := api.svc.CreateConsultant(ctx.Request().Context(), getActor(ctx), data)
	if err != nil {
		return errors.Wrap(err, "creating consultant")
	}
	return ctx.JSON(http.StatusCreated, c)
}

func (api *consultationApi) updateConsultant(ctx echo.Context) error {
	var data consultation.ConsultantInput
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to ConsultantInput")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	c, err := api.svc.UpdateConsultant(ctx.Request().Context(), getActor(ctx), ctx.Param("id"), data)
	if err != nil {
		return errors.Wrap(err, "updating consultant")
	}
	return ctx.JSON(http.StatusOK, c)
}

// Availability

func (api *consultationApi) listRules(ctx echo.Context) error {
	rules, err := api.svc.ListRules(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "listing rules")
	}
	return ctx.JSON(http.StatusOK, rules)
}

func (api *consultationApi) addRule(ctx echo.Context) error {
	var data consultation.RuleInput
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to RuleInput")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	rule, err := api.svc.AddRule(ctx.Request().Context(), getActor(ctx), ctx.Param("id"), data)
	if err != nil {
		return errors.Wrap(err, "adding rule")
	}
	return ctx.JSON(http.StatusCreated, rule)
}

func (api *consultationApi) deleteRule(ctx echo.Context) error {
	if err := api.svc.DeleteRule(ctx.Request().Context(), getActor(ctx), ctx.Param("id"), ctx.Param("ruleID")); err != nil {
		return errors.Wrap(err, "deleting rule")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *consultationApi) slots(ctx echo.Context) error {
	from := core.CleanString(ctx.QueryParam("from"))
	to := core.CleanString(ctx.QueryParam("to"))
	if from == "" {
		return core.NewFieldValidationError("from", "this field is required")
	}
	if to == "" {
		to = from
	}

	slots, err := api.svc.GenerateSlots(ctx.Request().Context(), ctx.Param("id"), from, to)
	if err != nil {
		return errors.Wrap(err, "generating slots")
	}
	return ctx.JSON(http.StatusOK, slots)
}

func (api *consultationApi) reviews(ctx echo.Context) error {
	reviews, err := api.svc.ListReviews(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "listing reviews")
	}
	return ctx.JSON(http.StatusOK, reviews)
}

// Bookings

type bookingRequest struct {
	ConsultantID string `json:"consultant_id"`
	consultation.NewBooking
}

func (api *consultationApi) book(ctx echo.Context) error {
	var data bookingRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewBooking")
	}
	data.ConsultantID = core.CleanString(data.ConsultantID)
	if data.ConsultantID == "" {
		return core.NewFieldValidationError("consultant_id", "this field is required")
	}
	if err := data.NewBooking.Validate(api.validate); err != nil {
		return err
	}

	b, err := api.svc.Book(ctx.Request().Context(), getActor(ctx), data.ConsultantID, data.NewBooking)
	if err != nil {
		return errors.Wrap(err, "booking consultation")
	}
	return ctx.JSON(http.StatusCreated, b)
}

func (api *consultationApi) listBookings(ctx echo.Context) error {
	var filter consultation.BookingFilter
	_, page, err := bindQuery(ctx, &filter)
	if err != nil {
		return errors.Wrap(err, "binding to BookingFilter")
	}
	filter.Clean()

	bookings, err := api.svc.ListBookings(ctx.Request().Context(), getActor(ctx), filter, page)
	if err != nil {
		return errors.Wrap(err, "listing bookings")
	}
	return ctx.JSON(http.StatusOK, newListResponse(bookings, page))
}

func (api *consultationApi) retrieveBooking(ctx echo.Context) error {
	b, err := api.svc.GetBooking(ctx.Request().Context(), getActor(ctx), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "getting booking")
	}
	return ctx.JSON(http.StatusOK, b)
}

type transitionFunc func(ctx echo.Context, id string, sc consultation.StatusChange) (consultation.Booking, error)

// transition binds the optional StatusChange body and applies fn to the `:id` booking.
func (api *consultationApi) transition(name string, fn transitionFunc) echo.HandlerFunc {
	return func(ctx echo.Context) error {
		var data consultation.StatusChange
		if err := ctx.Bind(&data); err != nil {
			return errors.Wrap(err, "binding to StatusChange")
		}
		if err := data.Validate(api.validate); err != nil {
			return err
		}
		b, err := fn(ctx, ctx.Param("id"), data)
		if err != nil {
			return errors.Wrap(err, name+" booking")
		}
		return ctx.JSON(http.StatusOK, b)
	}
}

func (api *consultationApi) approve(ctx echo.Context) error {
	return api.transition("approving", func(ctx echo.Context, id string, sc consultation.StatusChange) (consultation.Booking, error) {
		return api.svc.Approve(ctx.Request().Context(), getActor(ctx), id, sc)
	})(ctx)
}

func (api *consultationApi) reject(ctx echo.Context) error {
	return api.transition("rejecting", func(ctx echo.Context, id string, sc consultation.StatusChange) (consultation.Booking, error) {
		return api.svc.Reject(ctx.Request().Context(), getActor(ctx), id, sc)
	})(ctx)
}

func (api *consultationApi) cancel(ctx echo.Context) error {
	return api.transition("cancelling", func(ctx echo.Context, id string, sc consultation.StatusChange) (consultation.Booking, error) {
		return api.svc.Cancel(ctx.Request().Context(), getActor(ctx), id, sc)
	})(ctx)
}

func (api *consultationApi) complete(ctx echo.Context) error {
	b, err := api.svc.Complete(ctx.Request().Context(), getActor(ctx), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "completing booking")
	}
	return ctx.JSON(http.StatusOK, b)
}

func (api *consultationApi) review(ctx echo.Context) error {
	var data consultation.NewReview
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewReview")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	r, err := api.svc.Review(ctx.Request().Context(), getActor(ctx), ctx.Param("id"), data)
	if err != nil {
		return errors.Wrap(err, "reviewing booking")
	}
	return ctx.JSON(http.StatusCreated, r)
}
