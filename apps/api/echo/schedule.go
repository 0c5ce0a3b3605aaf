package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/vericlock/vericlock/core/schedule"
)

var errSuggestionUnavailable = echo.NewHTTPError(http.StatusBadGateway, "could not get a schedule suggestion, try again later")

type scheduleApi struct {
	svc schedule.Service
}

func registerScheduleAPI(g *echo.Group, jwt echo.MiddlewareFunc, svc schedule.Service) {
	api := scheduleApi{svc: svc}
	g.POST("/schedule/suggest", api.suggest, jwt, adminMiddleware())
}

func (api *scheduleApi) suggest(ctx echo.Context) error {
	suggestion, err := api.svc.Suggest(ctx.Request().Context())
	if err != nil {
		if errors.Cause(err) == schedule.ErrInvalidSuggestion {
			return errSuggestionUnavailable
		}
		return errors.Wrap(err, "suggesting schedule")
	}
	return ctx.JSON(http.StatusOK, suggestion)
}
