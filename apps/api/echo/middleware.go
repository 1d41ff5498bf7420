package echoapi

import (
	"github.com/labstack/echo/v4"
)

// requirePermission lets the request through only when the actor holds the permission code.
func requirePermission(code string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			actor := getActor(ctx)
			if actor.IsAnonymous() {
				return errUnauthorized
			}
			if !actor.Can(code) {
				return errHttpForbidden
			}
			return next(ctx)
		}
	}
}

// with returns a new chain made of mws followed by extra.
func with(mws []echo.MiddlewareFunc, extra ...echo.MiddlewareFunc) []echo.MiddlewareFunc {
	chain := make([]echo.MiddlewareFunc, 0, len(mws)+len(extra))
	chain = append(chain, mws...)
	return append(chain, extra...)
}
