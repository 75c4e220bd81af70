package middleware

import (
	"strconv"

	"github.com/labstack/echo/v4"
)

// RequestObserver counts served requests.
type RequestObserver interface {
	ObserveRequest(route, method, status string)
}

// RequestMetrics reports every request under its route pattern so that path
// parameters do not blow up label cardinality.
func RequestMetrics(obs RequestObserver) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			err := next(c)
			if err != nil {
				// Let echo write the error response first so the status is final.
				c.Error(err)
			}
			route := c.Path()
			if route == "" {
				route = "unmatched"
			}
			obs.ObserveRequest(route, c.Request().Method, strconv.Itoa(c.Response().Status))
			return nil
		}
	}
}
