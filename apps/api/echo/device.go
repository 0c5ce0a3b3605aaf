package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/vericlock/vericlock/core/device"
)

var errDvcNotFoundInCtx = errors.New("device object not found in echo.Context")

type deviceApi struct {
	svc      device.Service
	validate *validator.Validate
}

func registerDeviceAPI(g *echo.Group, jwt echo.MiddlewareFunc, svc device.Service, validate *validator.Validate) {
	api := deviceApi{
		svc:      svc,
		validate: validate,
	}

	dg := g.Group("/devices", jwt, adminMiddleware())
	dg.GET("", api.query)
	dg.POST("", api.create)

	// detail endpoints
	og := dg.Group("/:id", deviceMiddleware(api.svc))
	og.GET("", api.retrieve)
	og.PUT("", api.update)
	og.DELETE("", api.destroy)
	og.POST("/token", api.regenerateToken)
}

// Handlers

func (api *deviceApi) query(ctx echo.Context) error {
	ordering := new(Ordering)
	ordering.Bind(ctx)

	devices, err := api.svc.Query(ctx.Request().Context(), ordering.Orderings)
	if err != nil {
		return errors.Wrap(err, "querying devices")
	}
	if devices == nil {
		devices = []device.Device{}
	}
	return ctx.JSON(http.StatusOK, devices)
}

func (api *deviceApi) create(ctx echo.Context) error {
	var data device.NewDevice
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewDevice")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	dvc, err := api.svc.Create(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "creating device")
	}
	return ctx.JSON(http.StatusCreated, dvc)
}

func (api *deviceApi) retrieve(ctx echo.Context) error {
	dvc, ok := ctx.Get(contextObjectKey).(device.Device)
	if !ok {
		return errors.Wrap(errDvcNotFoundInCtx, "retrieving object from context")
	}
	return ctx.JSON(http.StatusOK, dvc)
}

func (api *deviceApi) update(ctx echo.Context) error {
	dvc, ok := ctx.Get(contextObjectKey).(device.Device)
	if !ok {
		return errors.Wrap(errDvcNotFoundInCtx, "retrieving object from context")
	}

	var data device.UpdateDevice
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateDevice")
	}
	if err := data.Validate(dvc, api.validate); err != nil {
		return err
	}

	dvc, err := api.svc.Update(ctx.Request().Context(), dvc, data)
	if err != nil {
		return errors.Wrap(err, "updating device")
	}
	return ctx.JSON(http.StatusOK, dvc)
}

func (api *deviceApi) regenerateToken(ctx echo.Context) error {
	dvc, ok := ctx.Get(contextObjectKey).(device.Device)
	if !ok {
		return errors.Wrap(errDvcNotFoundInCtx, "retrieving object from context")
	}

	dvc, err := api.svc.RegenerateToken(ctx.Request().Context(), dvc)
	if err != nil {
		return errors.Wrap(err, "regenerating device token")
	}
	return ctx.JSON(http.StatusOK, dvc)
}

func (api *deviceApi) destroy(ctx echo.Context) error {
	dvc, ok := ctx.Get(contextObjectKey).(device.Device)
	if !ok {
		return errors.Wrap(errDvcNotFoundInCtx, "retrieving object from context")
	}

	if err := api.svc.Delete(ctx.Request().Context(), dvc.ID); err != nil {
		return errors.Wrap(err, "deleting device")
	}
	return ctx.NoContent(http.StatusNoContent)
}
