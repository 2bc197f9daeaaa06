package middleware

import (
	"fmt"
	"net/http"
	"runtime/debug"

	"Pasture/pkg/logger"

	"github.com/labstack/echo/v4"
)

// Recover converts a handler panic into an error so the outer middleware
// renders it as a 500 and counts it.
func Recover(lgr *logger.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) (err error) {
			defer func() {
				r := recover()
				if r == nil {
					return
				}
				if r == http.ErrAbortHandler {
					panic(r)
				}
				lgr.Error("handler panicked",
					logger.String("route", c.Path()),
					logger.Any("panic", r),
					logger.String("stack", string(debug.Stack())))
				err = fmt.Errorf("panic in %s: %v", c.Path(), r)
			}()
			return next(c)
		}
	}
}
