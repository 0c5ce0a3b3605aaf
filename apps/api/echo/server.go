package echoapi

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/labstack/gommon/log"

	"github.com/vericlock/vericlock/core"
	"github.com/vericlock/vericlock/core/attendance"
	"github.com/vericlock/vericlock/core/device"
	"github.com/vericlock/vericlock/core/rfid"
	"github.com/vericlock/vericlock/core/schedule"
	"github.com/vericlock/vericlock/core/user"
	"github.com/vericlock/vericlock/storage/database"
)

type (
	ServerDeps struct {
		Conf           *core.Config
		Logger         core.Logger
		DB             core.DB
		Bus            core.EventBus
		UserSvc        user.Service
		DeviceSvc      device.Service
		AttendanceSvc  attendance.Service
		RFIDSvc        rfid.Service
		ScheduleSvc    schedule.Service
		Validate       *validator.Validate
		Translator     ut.Translator
		DisableReqLogs bool
	}

	Server interface {
		http.Handler
		Start()
		Errors() <-chan error
		ShutdownSignal() <-chan os.Signal
		Shutdown(ctx context.Context) error
		Close() error
	}

	server struct {
		deps     ServerDeps
		app      *echo.Echo
		limiter  *limiterStore
		stop     context.CancelFunc
		errors   chan error
		shutdown chan os.Signal
	}
)

var _ Server = (*server)(nil)

func NewServer(deps ServerDeps) Server {
	s := &server{
		deps:     deps,
		app:      echo.New(),
		errors:   make(chan error, 1),
		shutdown: make(chan os.Signal, 1),
	}
	signal.Notify(s.shutdown, os.Interrupt, syscall.SIGTERM)
	s.setup()
	return s
}

func (s *server) setup() {
	conf := s.deps.Conf

	s.app.HideBanner = true
	s.app.Pre(middleware.RemoveTrailingSlash())
	if !s.deps.DisableReqLogs {
		s.app.Use(middleware.Logger())
	}
	// do not recover in DEV|TEST mode
	if !(conf.Debug || conf.TestMode) {
		s.app.Use(middleware.RecoverWithConfig(middleware.RecoverConfig{LogLevel: log.ERROR}))
	}
	s.app.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		// the readers are served by their own, open, CORS policy
		Skipper:      func(ctx echo.Context) bool { return strings.HasPrefix(ctx.Request().URL.Path, "/api/") },
		AllowOrigins: conf.Server.AllowedOrigins,
	}))

	s.app.HTTPErrorHandler = newAppHTTPErrorHandler(s.deps.Logger, s.deps.Translator, s.signalShutdown)
	s.app.Debug = conf.Debug

	s.app.GET("/", s.home)

	// hardware bridge
	ctx, cancel := context.WithCancel(context.Background())
	s.stop = cancel
	hw := s.app.Group("/api", middleware.CORS())
	if conf.RFID.RateLimit > 0 {
		s.limiter = newLimiterStore(conf.RFID.RateLimit, conf.RFID.RateBurst)
		s.limiter.startJanitor(ctx)
		hw.Use(rateLimitMiddleware(s.limiter, deviceTokenKey))
	}
	registerRFIDBridge(hw, s.deps.RFIDSvc, s.deps.Logger)

	v1 := s.app.Group("/v1")
	jwt := middleware.JWTWithConfig(newJWTConfig(conf))

	registerUserAPI(v1, jwt, s.deps.UserSvc, s.deps.AttendanceSvc, s.deps.Validate, conf)
	registerDeviceAPI(v1, jwt, s.deps.DeviceSvc, s.deps.Validate)
	registerAttendanceAPI(v1, jwt, s.deps.AttendanceSvc, conf)
	registerDashboardAPI(v1, jwt, s.deps.AttendanceSvc)
	registerRFIDAPI(v1, jwt, s.deps.RFIDSvc)
	registerScheduleAPI(v1, jwt, s.deps.ScheduleSvc)
	registerLiveAPI(v1, s.deps.Bus, s.deps.Logger, conf)
}

// signalShutdown asks for a graceful shutdown; extra signals are dropped.
func (s *server) signalShutdown() {
	select {
	case s.shutdown <- syscall.SIGTERM:
	default:
	}
}

func (s *server) Start() {
	s.deps.Logger.Info(fmt.Sprintf("API listening on %s", s.deps.Conf.Server.Address))
	if err := s.app.Start(s.deps.Conf.Server.Address); err != nil && err != http.ErrServerClosed {
		s.errors <- err
	}
}

func (s *server) Errors() <-chan error {
	return s.errors
}

func (s *server) ShutdownSignal() <-chan os.Signal {
	return s.shutdown
}

func (s *server) Shutdown(ctx context.Context) error {
	s.stop()
	return s.app.Shutdown(ctx)
}

func (s *server) Close() error {
	s.stop()
	return s.app.Close()
}

func (s *server) ServeHTTP(w http.ResponseWriter, r *http.Request) { // for tests
	s.app.ServeHTTP(w, r)
}

func (s *server) home(ctx echo.Context) error {
	if s.deps.DB != nil {
		if err := database.Ping(ctx.Request().Context(), s.deps.DB); err != nil {
			return core.NewShutdownError(err, "database unavailable")
		}
	}
	return ctx.String(http.StatusOK, "Welcome to VeriClock API!")
}
