package echoapi

import (
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/vericlock/vericlock/core"
	"github.com/vericlock/vericlock/core/rfid"
)

type rfidApi struct {
	svc    rfid.Service
	logger core.Logger
}

// registerRFIDBridge mounts the endpoint called by the card readers.
// Readers authenticate with their device token and only understand plain text.
func registerRFIDBridge(g *echo.Group, svc rfid.Service, logger core.Logger) {
	api := rfidApi{
		svc:    svc,
		logger: logger,
	}
	g.GET("/rfid", api.scan)
}

func registerRFIDAPI(g *echo.Group, jwt echo.MiddlewareFunc, svc rfid.Service) {
	api := rfidApi{svc: svc}
	g.POST("/rfid", api.poll, jwt, adminMiddleware())
}

// Handlers

func (api *rfidApi) scan(ctx echo.Context) error {
	cardUID := ctx.QueryParam("card_uid")
	deviceToken := ctx.QueryParam("device_token")
	if reply, missing := rfid.MissingParams(cardUID, deviceToken); missing {
		return ctx.String(reply.Status, reply.Text)
	}

	reply, err := api.svc.HandleScan(ctx.Request().Context(), cardUID, deviceToken)
	if err != nil {
		api.logger.Error(fmt.Sprintf("handling card scan: %v", err), err, map[string]interface{}{"card_uid": cardUID})
	}
	return ctx.String(reply.Status, reply.Text)
}

func (api *rfidApi) poll(ctx echo.Context) error {
	var data rfid.Poll
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to Poll")
	}

	uid, err := api.svc.Poll(ctx.Request().Context(), data)
	if err != nil {
		if errors.Cause(err) == rfid.ErrInvalidAction {
			return core.NewValidationError(rfid.ErrInvalidAction)
		}
		return errors.Wrap(err, "polling scan mailbox")
	}

	if data.Action == rfid.ActionClearUID {
		return ctx.JSON(http.StatusOK, PollClearResponse{Success: true})
	}
	resp := PollUIDResponse{}
	if uid != "" {
		resp.UID = &uid
	}
	return ctx.JSON(http.StatusOK, resp)
}

type (
	PollUIDResponse struct {
		UID *string `json:"uid"`
	}

	PollClearResponse struct {
		Success bool `json:"success"`
	}
)
