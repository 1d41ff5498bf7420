package echoapi

import (
	"net/http"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/wednesdev-id/semindo-grow-hub-sub003/core/assessment"
)

type assessmentApi struct {
	svc      assessment.Service
	validate *validator.Validate
}

func registerAssessmentAPI(g *echo.Group, authed []echo.MiddlewareFunc, svc assessment.Service, validate *validator.Validate) {
	api := assessmentApi{svc: svc, validate: validate}

	qg := g.Group("/questionnaires", authed...)
	qg.GET("", api.listQuestionnaires)
	qg.POST("", api.createQuestionnaire)
	qg.GET("/:id", api.retrieveQuestionnaire)
	qg.PUT("/:id", api.updateQuestionnaire)
	qg.DELETE("/:id", api.destroyQuestionnaire)
	qg.POST("/:id/submissions", api.submit)

	g.GET("/submissions/:id", api.retrieveSubmission, authed...)
	g.GET("/umkm/:id/submissions", api.listSubmissions, authed...)
}

func (api *assessmentApi) listQuestionnaires(ctx echo.Context) error {
	activeOnly, err := strconv.ParseBool(ctx.QueryParam("active"))
	if err != nil {
		activeOnly = false
	}
	qs, err := api.svc.ListQuestionnaires(ctx.Request().Context(), getActor(ctx), activeOnly)
	if err != nil {
		return errors.Wrap(err, "listing questionnaires")
	}
	return ctx.JSON(http.StatusOK, qs)
}

func (api *assessmentApi) createQuestionnaire(ctx echo.Context) error {
	var data assessment.QuestionnaireInput
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to QuestionnaireInput")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	q, err := api.svc.CreateQuestionnaire(ctx.Request().Context(), getActor(ctx), data)
	if err != nil {
		return errors.Wrap(err, "creating questionnaire")
	}
	return ctx.JSON(http.StatusCreated, q)
}

func (api *assessmentApi) retrieveQuestionnaire(ctx echo.Context) error {
	q, err := api.svc.GetQuestionnaire(ctx.Request().Context(), getActor(ctx), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "getting questionnaire")
	}
	return ctx.JSON(http.StatusOK, q)
}

func (api *assessmentApi) updateQuestionnaire(ctx echo.Context) error {
	var data assessment.QuestionnaireInput
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to QuestionnaireInput")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	q, err := api.svc.UpdateQuestionnaire(ctx.Request().Context(), getActor(ctx), ctx.Param("id"), data)
	if err != nil {
		return errors.Wrap(err, "updating questionnaire")
	}
	return ctx.JSON(http.StatusOK, q)
}

func (api *assessmentApi) destroyQuestionnaire(ctx echo.Context) error {
	if err := api.svc.DeleteQuestionnaire(ctx.Request().Context(), getActor(ctx), ctx.Param("id")); err != nil {
		return errors.Wrap(err, "deleting questionnaire")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *assessmentApi) submit(ctx echo.Context) error {
	var data assessment.NewSubmission
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewSubmission")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	sub, err := api.svc.Submit(ctx.Request().Context(), getActor(ctx), ctx.Param("id"), data)
	if err != nil {
		return errors.Wrap(err, "submitting assessment")
	}
	return ctx.JSON(http.StatusCreated, sub)
}

func (api *assessmentApi) retrieveSubmission(ctx echo.Context) error {
	sub, err := api.svc.GetSubmission(ctx.Request().Context(), getActor(ctx), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "getting submission")
	}
	return ctx.JSON(http.StatusOK, sub)
}

func (api *assessmentApi) listSubmissions(ctx echo.Context) error {
	subs, err := api.svc.ListSubmissions(ctx.Request().Context(), getActor(ctx), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "listing submissions")
	}
	return ctx.JSON(http.StatusOK, subs)
}
