package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/vericlock/vericlock/core"
	"github.com/vericlock/vericlock/core/attendance"
	"github.com/vericlock/vericlock/core/device"
	"github.com/vericlock/vericlock/core/user"
)

type attendanceApi struct {
	svc  attendance.Service
	conf *core.Config
}

func registerAttendanceAPI(g *echo.Group, jwt echo.MiddlewareFunc, svc attendance.Service, conf *core.Config) {
	api := attendanceApi{
		svc:  svc,
		conf: conf,
	}

	ag := g.Group("/attendance", jwt, adminMiddleware())
	ag.GET("", api.query)
	ag.DELETE("", api.destroyMultiple)
	ag.GET("/week", api.week)
}

// Handlers

func (api *attendanceApi) query(ctx echo.Context) error {
	filter := new(attendance.QueryFilter)
	if err := ctx.Bind(filter); err != nil {
		return ctx.JSON(http.StatusOK, []attendance.Log{})
	}
	loc := api.conf.Location()
	if err := bindTime(ctx, "from", loc, &filter.From); err != nil {
		return err
	}
	if err := bindTime(ctx, "to", loc, &filter.To); err != nil {
		return err
	}
	ordering := new(Ordering)
	ordering.Bind(ctx)

	logs, err := api.svc.Query(ctx.Request().Context(), filter, ordering.Orderings)
	if err != nil {
		return errors.Wrap(err, "querying attendance logs")
	}
	if logs == nil {
		logs = []attendance.Log{}
	}
	return ctx.JSON(http.StatusOK, logs)
}

func (api *attendanceApi) destroyMultiple(ctx echo.Context) error {
	var query DestroyMultipleRequest
	if err := ctx.Bind(&query); err != nil {
		return errors.Wrap(err, "binding to DestroyMultipleRequest")
	}
	if query.IDs == nil {
		return ctx.NoContent(http.StatusNoContent)
	}

	if _, err := api.svc.Delete(ctx.Request().Context(), query.IDs...); err != nil {
		return errors.Wrap(err, "deleting attendance logs")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *attendanceApi) week(ctx echo.Context) error {
	chart, err := api.svc.Week(ctx.Request().Context())
	if err != nil {
		return errors.Wrap(err, "getting week chart")
	}
	return ctx.JSON(http.StatusOK, chart)
}

type dashboardApi struct {
	svc attendance.Service
}

func registerDashboardAPI(g *echo.Group, jwt echo.MiddlewareFunc, svc attendance.Service) {
	api := dashboardApi{svc: svc}
	g.GET("/dashboard", api.summary, jwt, adminMiddleware())
}

func (api *dashboardApi) summary(ctx echo.Context) error {
	summary, err := api.svc.AdminSummary(ctx.Request().Context())
	if err != nil {
		return errors.Wrap(err, "getting admin summary")
	}
	if summary.DeviceList == nil {
		summary.DeviceList = []device.Status{}
	}
	if summary.RecentUsers == nil {
		summary.RecentUsers = []user.User{}
	}
	return ctx.JSON(http.StatusOK, summary)
}
