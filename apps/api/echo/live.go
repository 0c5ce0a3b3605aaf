package echoapi

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/pkg/errors"

	"github.com/vericlock/vericlock/core"
)

var (
	liveWriteWait  = 10 * time.Second
	livePingPeriod = 30 * time.Second
)

type liveApi struct {
	bus      core.EventBus
	logger   core.Logger
	upgrader websocket.Upgrader
}

// registerLiveAPI mounts the live feed. Browsers cannot set headers on websockets, the JWT comes in "?token=".
func registerLiveAPI(g *echo.Group, bus core.EventBus, logger core.Logger, conf *core.Config) {
	api := liveApi{
		bus:    bus,
		logger: logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     originChecker(conf.Server.AllowedOrigins),
		},
	}

	jwtConf := newJWTConfig(conf)
	jwtConf.TokenLookup = "query:token"
	g.GET("/live", api.stream, middleware.JWTWithConfig(jwtConf))
}

// originChecker allows same-origin requests & the configured origins ("*" allows all).
func originChecker(allowed []string) func(r *http.Request) bool {
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		for _, o := range allowed {
			if o == "*" || o == origin {
				return true
			}
		}
		u, err := url.Parse(origin)
		return err == nil && u.Host == r.Host
	}
}

// visibleTo reports whether evt may be sent to the holder of claims: admins see everything,
// other users only their own attendance.
func visibleTo(claims Claims, evt core.Event) bool {
	if claims.IsAdmin {
		return true
	}
	return evt.Type == core.EventAttendance && evt.UserID == claims.Subject
}

func (api *liveApi) stream(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}

	subCtx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// subscribe before upgrading so that no event is missed once the client is connected
	events, err := api.bus.Subscribe(subCtx)
	if err != nil {
		return errors.Wrap(err, "subscribing to events")
	}

	conn, err := api.upgrader.Upgrade(ctx.Response(), ctx.Request(), nil)
	if err != nil {
		return nil // the upgrader already replied
	}
	defer func() { _ = conn.Close() }()

	// the client is not expected to talk; reading detects when it goes away
	go func() {
		defer cancel()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(livePingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-subCtx.Done():
			return nil
		case evt, ok := <-events:
			if !ok {
				return nil
			}
			if !visibleTo(claims, evt) {
				continue
			}
			_ = conn.SetWriteDeadline(time.Now().Add(liveWriteWait))
			if err := conn.WriteJSON(evt); err != nil {
				api.logger.Debug(fmt.Sprintf("live feed closed: %v", err))
				return nil
			}
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(liveWriteWait)); err != nil {
				return nil
			}
		}
	}
}
