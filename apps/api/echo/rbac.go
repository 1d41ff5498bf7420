package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/wednesdev-id/semindo-grow-hub-sub003/core/rbac"
)

type rbacApi struct {
	svc      rbac.Service
	validate *validator.Validate
}

func registerRBACAPI(g *echo.Group, authed []echo.MiddlewareFunc, svc rbac.Service, validate *validator.Validate) {
	api := rbacApi{svc: svc, validate: validate}

	mw := with(authed, requirePermission(rbac.PermRolesManage))
	g.GET("/permissions", api.listPermissions, mw...)

	rg := g.Group("/roles", mw...)
	rg.GET("", api.listRoles)
	rg.POST("", api.createRole)
	rg.GET("/:name", api.retrieveRole)
	rg.PUT("/:name", api.updateRole)
	rg.DELETE("/:name", api.destroyRole)
}

func (api *rbacApi) listPermissions(ctx echo.Context) error {
	perms, err := api.svc.ListPermissions(ctx.Request().Context())
	if err != nil {
		return errors.Wrap(err, "listing permissions")
	}
	return ctx.JSON(http.StatusOK, perms)
}

func (api *rbacApi) listRoles(ctx echo.Context) error {
	roles, err := api.svc.ListRoles(ctx.Request().Context())
	if err != nil {
		return errors.Wrap(err, "listing roles")
	}
	return ctx.JSON(http.StatusOK, roles)
}

func (api *rbacApi) createRole(ctx echo.Context) error {
	var data rbac.NewRole
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewRole")
	}
	if err := data.Validate(ctx.Request().Context(), api.validate, api.svc); err != nil {
		return err
	}

	role, err := api.svc.CreateRole(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "creating role")
	}
	return ctx.JSON(http.StatusCreated, role)
}

func (api *rbacApi) retrieveRole(ctx echo.Context) error {
	role, err := api.svc.GetRole(ctx.Request().Context(), ctx.Param("name"))
	if err != nil {
		return errors.Wrap(err, "getting role")
	}
	return ctx.JSON(http.StatusOK, role)
}

func (api *rbacApi) updateRole(ctx echo.Context) error {
	var data rbac.UpdateRole
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateRole")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	role, err := api.svc.UpdateRole(ctx.Request().Context(), ctx.Param("name"), data)
	if err != nil {
		return errors.Wrap(err, "updating role")
	}
	return ctx.JSON(http.StatusOK, role)
}

func (api *rbacApi) destroyRole(ctx echo.Context) error {
	if err := api.svc.DeleteRole(ctx.Request().Context(), ctx.Param("name")); err != nil {
		return errors.Wrap(err, "deleting role")
	}
	return ctx.NoContent(http.StatusNoContent)
}
