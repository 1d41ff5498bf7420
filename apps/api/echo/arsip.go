package echoapi

import (
	"io"
	"mime"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/wednesdev-id/semindo-grow-hub-sub003/core"
	"github.com/wednesdev-id/semindo-grow-hub-sub003/core/arsip"
)

type arsipApi struct {
	svc           arsip.Service
	validate      *validator.Validate
	maxUploadSize int64
}

func registerArsipAPI(
	g *echo.Group,
	authed []echo.MiddlewareFunc,
	svc arsip.Service,
	validate *validator.Validate,
	maxUploadSize int64,
) {
	api := arsipApi{svc: svc, validate: validate, maxUploadSize: maxUploadSize}

	lg := g.Group("/letters", authed...)
	lg.GET("", api.query)
	lg.POST("", api.register)
	lg.GET("/:id", api.retrieve)
	lg.PUT("/:id", api.update)
	lg.POST("/:id/archive", api.archive)

	lg.POST("/:id/attachments", api.upload)
	lg.GET("/:id/attachments/:attachmentID", api.download)
	lg.DELETE("/:id/attachments/:attachmentID", api.destroyAttachment)

	lg.GET("/:id/dispositions", api.listDispositions)
	lg.POST("/:id/dispositions", api.dispose)

	dg := g.Group("/dispositions", authed...)
	dg.GET("/inbox", api.inbox)
	dg.POST("/:id/read", api.markRead)
	dg.POST("/:id/complete", api.complete)
}

// Letters

func (api *arsipApi) query(ctx echo.Context) error {
	var filter arsip.QueryFilter
	ordering, page, err := bindQuery(ctx, &filter)
	if err != nil {
		return errors.Wrap(err, "binding to QueryFilter")
	}
	filter.Clean()

	letters, err := api.svc.QueryLetters(ctx.Request().Context(), getActor(ctx), filter, ordering, page)
	if err != nil {
		return errors.Wrap(err, "querying letters")
	}
	return ctx.JSON(http.StatusOK, newListResponse(letters, page))
}

func (api *arsipApi) register(ctx echo.Context) error {
	var data arsip.LetterInput
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to LetterInput")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	l, err := api.svc.RegisterLetter(ctx.Request().Context(), getActor(ctx), data)
	if err != nil {
		return errors.Wrap(err, "registering letter")
	}
	return ctx.JSON(http.StatusCreated, l)
}

func (api *arsipApi) retrieve(ctx echo.Context) error {
	l, err := api.svc.GetLetter(ctx.Request().Context(), getActor(ctx), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "getting letter")
	}
	return ctx.JSON(http.StatusOK, l)
}

func (api *arsipApi) update(ctx echo.Context) error {
	var data arsip.LetterInput
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to LetterInput")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	l, err := api.svc.UpdateLetter(ctx.Request().Context(), getActor(ctx), ctx.Param("id"), data)
	if err != nil {
		return errors.Wrap(err, "updating letter")
	}
	return ctx.JSON(http.StatusOK, l)
}

func (api *arsipApi) archive(ctx echo.Context) error {
	l, err := api.svc.ArchiveLetter(ctx.Request().Context(), getActor(ctx), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "archiving letter")
	}
	return ctx.JSON(http.StatusOK, l)
}

// Attachments

func (api *arsipApi) upload(ctx echo.Context) error {
	fh, err := ctx.FormFile("file")
	if err != nil {
		return core.NewFieldValidationError("file", "this field is required")
	}
	if api.maxUploadSize > 0 && fh.Size > api.maxUploadSize {
		return echo.ErrStatusRequestEntityTooLarge
	}

	f, err := fh.Open()
	if err != nil {
		return errors.Wrap(err, "opening uploaded file")
	}
	defer f.Close()

	contentType := fh.Header.Get(echo.HeaderContentType)
	if contentType == "" {
		contentType = echo.MIMEOctetStream
	}
	a, err := api.svc.AddAttachment(ctx.Request().Context(), getActor(ctx), ctx.Param("id"), arsip.NewAttachment{
		FileName:    fh.Filename,
		ContentType: contentType,
		Size:        fh.Size,
		Content:     f,
	})
	if err != nil {
		return errors.Wrap(err, "adding attachment")
	}
	return ctx.JSON(http.StatusCreated, a)
}

// download redirects to a presigned URL when the storage offers one, else streams the content.
func (api *arsipApi) download(ctx echo.Context) error {
	reqCtx, actor := ctx.Request().Context(), getActor(ctx)
	letterID, attachmentID := ctx.Param("id"), ctx.Param("attachmentID")

	_, url, err := api.svc.AttachmentURL(reqCtx, actor, letterID, attachmentID)
	if err != nil {
		return errors.Wrap(err, "getting attachment url")
	}
	if url != "" {
		return ctx.Redirect(http.StatusTemporaryRedirect, url)
	}

	a, rc, err := api.svc.OpenAttachment(reqCtx, actor, letterID, attachmentID)
	if err != nil {
		return errors.Wrap(err, "opening attachment")
	}
	defer rc.Close()

	disposition := mime.FormatMediaType("attachment", map[string]string{"filename": a.FileName})
	ctx.Response().Header().Set(echo.HeaderContentDisposition, disposition)
	return ctx.Stream(http.StatusOK, a.ContentType, io.Reader(rc))
}

func (api *arsipApi) destroyAttachment(ctx echo.Context) error {
	err := api.svc.DeleteAttachment(ctx.Request().Context(), getActor(ctx), ctx.Param("id"), ctx.Param("attachmentID"))
	if err != nil {
		return errors.Wrap(err, "deleting attachment")
	}
	return ctx.NoContent(http.StatusNoContent)
}

// Dispositions

func (api *arsipApi) dispose(ctx echo.Context) error {
	var data arsip.DispositionInput
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to DispositionInput")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	d, err := api.svc.Dispose(ctx.Request().Context(), getActor(ctx), ctx.Param("id"), data)
	if err != nil {
		return errors.Wrap(err, "disposing letter")
	}
	return ctx.JSON(http.StatusCreated, d)
}

func (api *arsipApi) listDispositions(ctx echo.Context) error {
	dispositions, err := api.svc.ListDispositions(ctx.Request().Context(), getActor(ctx), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "listing dispositions")
	}
	return ctx.JSON(http.StatusOK, dispositions)
}

func (api *arsipApi) inbox(ctx echo.Context) error {
	status := core.CleanString(ctx.QueryParam("status"), true /* lower */)
	dispositions, err := api.svc.Inbox(ctx.Request().Context(), getActor(ctx), status)
	if err != nil {
		return errors.Wrap(err, "listing inbox")
	}
	return ctx.JSON(http.StatusOK, dispositions)
}

func (api *arsipApi) markRead(ctx echo.Context) error {
	d, err := api.svc.MarkRead(ctx.Request().Context(), getActor(ctx), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "marking disposition read")
	}
	return ctx.JSON(http.StatusOK, d)
}

func (api *arsipApi) complete(ctx echo.Context) error {
	var data arsip.CompleteInput
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to CompleteInput")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	d, err := api.svc.Complete(ctx.Request().Context(), getActor(ctx), ctx.Param("id"), data)
	if err != nil {
		return errors.Wrap(err, "completing disposition")
	}
	return ctx.JSON(http.StatusOK, d)
}
