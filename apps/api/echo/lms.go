package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/wednesdev-id/semindo-grow-hub-sub003/core/lms"
)

type lmsApi struct {
	svc      lms.Service
	validate *validator.Validate
}

func registerLMSAPI(
	g *echo.Group,
	authed, public []echo.MiddlewareFunc,
	svc lms.Service,
	validate *validator.Validate,
) {
	api := lmsApi{svc: svc, validate: validate}

	cg := g.Group("/courses")
	cg.GET("", api.query, public...)
	cg.POST("", api.create, authed...)
	cg.GET("/:id", api.retrieve, public...)
	cg.PUT("/:id", api.update, authed...)
	cg.DELETE("/:id", api.destroy, authed...)
	cg.POST("/:id/publish", api.publish, authed...)
	cg.POST("/:id/unpublish", api.unpublish, authed...)

	cg.POST("/:id/lessons", api.addLesson, authed...)
	cg.PUT("/:id/lessons/order", api.reorderLessons, authed...)
	cg.PUT("/:id/lessons/:lessonID", api.updateLesson, authed...)
	cg.DELETE("/:id/lessons/:lessonID", api.destroyLesson, authed...)

	cg.POST("/:id/enroll", api.enroll, authed...)
	cg.POST("/:id/lessons/:lessonID/complete", api.completeLesson, authed...)
	g.GET("/enrollments", api.myEnrollments, authed...)
}

func (api *lmsApi) query(ctx echo.Context) error {
	var filter lms.QueryFilter
	ordering, page, err := bindQuery(ctx, &filter)
	if err != nil {
		return errors.Wrap(err, "binding to QueryFilter")
	}
	filter.Clean()

	courses, err := api.svc.QueryCourses(ctx.Request().Context(), getActor(ctx), filter, ordering, page)
	if err != nil {
		return errors.Wrap(err, "querying courses")
	}
	return ctx.JSON(http.StatusOK, newListResponse(courses, page))
}

func (api *lmsApi) create(ctx echo.Context) error {
	var data lms.CourseInput
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to CourseInput")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	c, err := api.svc.CreateCourse(ctx.Request().Context(), getActor(ctx), data)
	if err != nil {
		return errors.Wrap(err, "creating course")
	}
	return ctx.JSON(http.StatusCreated, c)
}

func (api *lmsApi) retrieve(ctx echo.Context) error {
	c, err := api.svc.GetCourse(ctx.Request().Context(), getActor(ctx), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "getting course")
	}
	return ctx.JSON(http.StatusOK, c)
}

func (api *lmsApi) update(ctx echo.Context) error {
	var data lms.CourseInput
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to CourseInput")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	c, err := api.svc.UpdateCourse(ctx.Request().Context(), getActor(ctx), ctx.Param("id"), data)
	if err != nil {
		return errors.Wrap(err, "updating course")
	}
	return ctx.JSON(http.StatusOK, c)
}

func (api *lmsApi) destroy(ctx echo.Context) error {
	if err := api.svc.DeleteCourse(ctx.Request().Context(), getActor(ctx), ctx.Param("id")); err != nil {
		return errors.Wrap(err, "deleting course")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *lmsApi) publish(ctx echo.Context) error {
	c, err := api.svc.Publish(ctx.Request().Context(), getActor(ctx), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "publishing course")
	}
	return ctx.JSON(http.StatusOK, c)
}

func (api *lmsApi) unpublish(ctx echo.Context) error {
	c, err := api.svc.Unpublish(ctx.Request().Context(), getActor(ctx), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "unpublishing course")
	}
	return ctx.JSON(http.StatusOK, c)
}

// Lessons

func (api *lmsApi) addLesson(ctx echo.Context) error {
	var data lms.LessonInput
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to LessonInput")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	l, err := api.svc.AddLesson(ctx.Request().Context(), getActor(ctx), ctx.Param("id"), data)
	if err != nil {
		return errors.Wrap(err, "adding lesson")
	}
	return ctx.JSON(http.StatusCreated, l)
}

func (api *lmsApi) updateLesson(ctx echo.Context) error {
	var data lms.LessonInput
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to LessonInput")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	l, err := api.svc.UpdateLesson(ctx.Request().Context(), getActor(ctx), ctx.Param("id"), ctx.Param("lessonID"), data)
	if err != nil {
		return errors.Wrap(err, "updating lesson")
	}
	return ctx.JSON(http.StatusOK, l)
}

func (api *lmsApi) destroyLesson(ctx echo.Context) error {
	if err := api.svc.DeleteLesson(ctx.Request().Context(), getActor(ctx), ctx.Param("id"), ctx.Param("lessonID")); err != nil {
		return errors.Wrap(err, "deleting lesson")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *lmsApi) reorderLessons(ctx echo.Context) error {
	var data lms.LessonOrder
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to LessonOrder")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	c, err := api.svc.ReorderLessons(ctx.Request().Context(), getActor(ctx), ctx.Param("id"), data)
	if err != nil {
		return errors.Wrap(err, "reordering lessons")
	}
	return ctx.JSON(http.StatusOK, c)
}

// Enrollments

func (api *lmsApi) enroll(ctx echo.Context) error {
	e, err := api.svc.Enroll(ctx.Request().Context(), getActor(ctx), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "enrolling")
	}
	return ctx.JSON(http.StatusCreated, e)
}

func (api *lmsApi) completeLesson(ctx echo.Context) error {
	e, err := api.svc.CompleteLesson(ctx.Request().Context(), getActor(ctx), ctx.Param("id"), ctx.Param("lessonID"))
	if err != nil {
		return errors.Wrap(err, "completing lesson")
	}
	return ctx.JSON(http.StatusOK, e)
}

func (api *lmsApi) myEnrollments(ctx echo.Context) error {
	enrollments, err := api.svc.MyEnrollments(ctx.Request().Context(), getActor(ctx))
	if err != nil {
		return errors.Wrap(err, "listing enrollments")
	}
	return ctx.JSON(http.StatusOK, enrollments)
}
