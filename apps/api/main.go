package main

import (
	"context"
	"expvar"
	"fmt"
	"log"
	"net/http"
	_ "net/http/pprof"
	"os"

	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"

	echoapi "github.com/vericlock/vericlock/apps/api/echo"
	"github.com/vericlock/vericlock/core"
	"github.com/vericlock/vericlock/core/attendance"
	"github.com/vericlock/vericlock/core/device"
	"github.com/vericlock/vericlock/core/rfid"
	"github.com/vericlock/vericlock/core/schedule"
	"github.com/vericlock/vericlock/core/user"
	emailsvc "github.com/vericlock/vericlock/services/email"
	llmsvc "github.com/vericlock/vericlock/services/llm"
	logsvc "github.com/vericlock/vericlock/services/logger"
	inmemcache "github.com/vericlock/vericlock/storage/cache/inmem"
	rediscache "github.com/vericlock/vericlock/storage/cache/redis"
	"github.com/vericlock/vericlock/storage/database"
	sqlxrepos "github.com/vericlock/vericlock/storage/database/sqlx"
)

func main() {
	// =========================================================================
	// Set up Dependencies

	conf := core.NewConfig()

	// set up loggers
	logger := logsvc.NewRollbarLogger(
		log.New(os.Stdout, "API : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile),
		conf,
	)
	logger.Enable(!conf.Debug)

	dbLogger := logsvc.NewRollbarLogger(
		log.New(os.Stdout, "DB : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile),
		conf,
	)

	// set up DB
	db, err := setUpDB(conf)
	if err != nil {
		logger.Fatal(fmt.Sprintf("setting up database: %v", err), err)
	}
	defer func() {
		if err = db.Close(); err != nil {
			dbLogger.Error("Failed to close", err)
		}
	}()
	repos := sqlxrepos.NewRepositories(db)

	// set up scan mailbox & event bus
	var (
		mailbox rfid.Mailbox
		bus     core.EventBus
	)
	if conf.Redis.Address != "" {
		rdb, err := rediscache.NewClient(context.Background(), conf)
		if err != nil {
			logger.Fatal(fmt.Sprintf("connecting to redis: %v", err), err)
		}
		defer func() { _ = rdb.Close() }()
		mailbox = rediscache.NewMailbox(rdb, conf.RFID.ScanTTL)
		bus = rediscache.NewBus(rdb, logger)
	} else {
		mailbox = inmemcache.NewMailbox(conf.RFID.ScanTTL)
		bus = inmemcache.NewBus()
	}

	// set up services
	var mailSvc core.EmailService
	if conf.Debug {
		mailSvc = emailsvc.NewConsoleService(conf, logger)
	} else {
		mailSvc = emailsvc.NewSendgridService(conf, logger)
	}
	usrSvc := user.NewService(db, repos.User, mailSvc, conf)
	dvcSvc := device.NewService(repos.Device, conf)
	attSvc := attendance.NewService(repos.Attendance, usrSvc, dvcSvc, conf)
	rfidSvc := rfid.NewService(mailbox, bus, usrSvc, dvcSvc, attSvc, logger)
	schedSvc := schedule.NewService(attSvc, dvcSvc, llmsvc.NewOpenAIModel(conf), conf)

	// =========================================================================
	// Initialize App

	logger.Info(fmt.Sprintf("Application initializing : version %q", conf.Build))
	defer logger.Info("Application stopped")

	validate := validator.New()
	translator := core.NewTranslator()
	core.InitValidators(validate, translator)
	user.InitValidators(validate, translator)
	device.InitValidators(validate, translator)

	core.ParseEmailTemplates(conf, logger)

	user.LoadCommonPasswords(logger)

	// =========================================================================
	// Start Debug Service
	//
	// /debug/pprof - Added to the default mux by importing the net/http/pprof package.
	// /debug/vars - Added to the default mux by importing the expvar package.

	expvar.NewString("build").Set(conf.Build)
	expvar.NewString("env").Set(conf.Env)

	if conf.Server.DebugAddress != "" {
		go func() {
			if err := http.ListenAndServe(conf.Server.DebugAddress, http.DefaultServeMux); err != nil {
				logger.Error(fmt.Sprintf("debug server closed: %v", err), err)
			}
		}()
	}

	// =========================================================================
	// Start API Service

	server := echoapi.NewServer(echoapi.ServerDeps{
		Conf:          conf,
		Logger:        logger,
		DB:            db,
		Bus:           bus,
		UserSvc:       usrSvc,
		DeviceSvc:     dvcSvc,
		AttendanceSvc: attSvc,
		RFIDSvc:       rfidSvc,
		ScheduleSvc:   schedSvc,
		Validate:      validate,
		Translator:    translator,
	})

	go server.Start()

	// =========================================================================
	// Shutdown

	select {
	case err = <-server.Errors():
		logger.Error(fmt.Sprintf("server error: %v", err), err)
		_ = server.Close()

	case sig := <-server.ShutdownSignal():
		logger.Info(fmt.Sprintf("%v: Start shutdown...", sig))

		// give outstanding requests a deadline for completion
		ctx, cancel := context.WithTimeout(context.Background(), conf.Server.ShutdownTimeout)
		defer cancel()

		// asking listener to shutdown and shed load
		if err = server.Shutdown(ctx); err != nil {
			logger.Error(fmt.Sprintf("could not stop server gracefully: %v", err), err)

			if err = server.Close(); err != nil {
				logger.Error(fmt.Sprintf("could not force stop server: %v", err), err)
			}
		}
	}
}

func setUpDB(conf *core.Config) (*sqlx.DB, error) {
	if err := database.CreateIfNotExist(conf); err != nil {
		return nil, err
	}

	db, err := database.Open(conf)
	if err != nil {
		return nil, err
	}

	if err = database.Migrate(db, conf.Database.Engine); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}
