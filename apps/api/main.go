package main

import (
	"context"
	"expvar"
	"fmt"
	"net/http"
	_ "net/http/pprof"
	"os"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	echoapi "github.com/wednesdev-id/semindo-grow-hub-sub003/apps/api/echo"
	"github.com/wednesdev-id/semindo-grow-hub-sub003/core"
	"github.com/wednesdev-id/semindo-grow-hub-sub003/core/arsip"
	"github.com/wednesdev-id/semindo-grow-hub-sub003/core/assessment"
	"github.com/wednesdev-id/semindo-grow-hub-sub003/core/audit"
	"github.com/wednesdev-id/semindo-grow-hub-sub003/core/consultation"
	"github.com/wednesdev-id/semindo-grow-hub-sub003/core/financing"
	"github.com/wednesdev-id/semindo-grow-hub-sub003/core/lms"
	"github.com/wednesdev-id/semindo-grow-hub-sub003/core/marketplace"
	"github.com/wednesdev-id/semindo-grow-hub-sub003/core/rbac"
	"github.com/wednesdev-id/semindo-grow-hub-sub003/core/umkm"
	"github.com/wednesdev-id/semindo-grow-hub-sub003/core/user"
	cachesvc "github.com/wednesdev-id/semindo-grow-hub-sub003/services/cache"
	emailsvc "github.com/wednesdev-id/semindo-grow-hub-sub003/services/email"
	logsvc "github.com/wednesdev-id/semindo-grow-hub-sub003/services/logger"
	storagesvc "github.com/wednesdev-id/semindo-grow-hub-sub003/services/storage"
	"github.com/wednesdev-id/semindo-grow-hub-sub003/storage/database"
	sqlxrepos "github.com/wednesdev-id/semindo-grow-hub-sub003/storage/database/sqlx"
)

type cacheStore interface {
	core.Cache
	core.TokenBlacklist
}

func main() {
	// =========================================================================
	// Set up Dependencies

	conf := core.NewConfig()

	zl, err := logsvc.NewZapLogger(conf)
	if err != nil {
		fmt.Fprintf(os.Stderr, "setting up logger: %v\n", err)
		os.Exit(1)
	}
	logger := logsvc.NewRollbarLogger(zl.Named("api"), conf)
	logger.Enable(!conf.Debug)
	defer func() { _ = logger.Sync() }()

	dbLogger := logsvc.NewRollbarLogger(zl.Named("db"), conf)
	dbLogger.Enable(!conf.Debug)

	ctx := context.Background()

	db, err := setUpDB(ctx, conf)
	if err != nil {
		logger.Fatal(fmt.Sprintf("setting up database: %v", err), err)
	}
	defer func() {
		if err := db.Close(); err != nil {
			dbLogger.Error("failed to close", err)
		}
	}()

	cache, closeCache, err := setUpCache(conf)
	if err != nil {
		logger.Fatal(fmt.Sprintf("setting up cache: %v", err), err)
	}
	defer closeCache()

	store, err := storagesvc.New(ctx, conf.Storage, logger)
	if err != nil {
		logger.Fatal(fmt.Sprintf("setting up object storage: %v", err), err)
	}

	var mailSvc core.EmailService
	if conf.Debug {
		mailSvc = emailsvc.NewConsoleService(conf, logger)
	} else {
		mailSvc = emailsvc.NewSendgridService(conf, logger)
	}

	// =========================================================================
	// Initialize App

	logger.Info(fmt.Sprintf("Application initializing : version %q", conf.Build))
	defer logger.Info("Application stopped")

	validate, translator := core.NewValidator()
	user.InitValidators(validate, translator)
	core.ParseEmailTemplates(conf, logger)

	auditSvc := audit.NewService(sqlxrepos.NewAuditRepository(db), logger)
	rbacSvc := rbac.NewService(sqlxrepos.NewRBACRepository(db), cache, auditSvc, logger)
	if err = rbacSvc.Seed(ctx); err != nil {
		logger.Fatal(fmt.Sprintf("seeding roles: %v", err), err)
	}
	usrSvc := user.NewService(sqlxrepos.NewUserRepository(db), rbacSvc, mailSvc, auditSvc, conf)
	umkmSvc := umkm.NewService(sqlxrepos.NewUMKMRepository(db), usrSvc, validate, auditSvc)

	// =========================================================================
	// Start Debug Service
	//
	// /debug/pprof - Added to the default mux by importing the net/http/pprof package.
	// /debug/vars - Added to the default mux by importing the expvar package.

	expvar.NewString("build").Set(conf.Build)
	expvar.NewString("env").Set(conf.Env)

	go func() {
		if err := http.ListenAndServe(conf.Server.DebugHost, http.DefaultServeMux); err != nil {
			logger.Error(fmt.Sprintf("debug server closed: %v", err), err)
		}
	}()

	// =========================================================================
	// Start API Service

	server := echoapi.NewServer(echoapi.ServerDeps{
		Conf:       conf,
		Logger:     logger,
		Validate:   validate,
		Translator: translator,
		Blacklist:  cache,

		UserSvc:         usrSvc,
		RBACSvc:         rbacSvc,
		AuditSvc:        auditSvc,
		UMKMSvc:         umkmSvc,
		AssessmentSvc:   assessment.NewService(sqlxrepos.NewAssessmentRepository(db), umkmSvc, auditSvc),
		ConsultationSvc: consultation.NewService(sqlxrepos.NewConsultationRepository(db), usrSvc, mailSvc, auditSvc, conf),
		LMSSvc:          lms.NewService(sqlxrepos.NewLMSRepository(db), auditSvc),
		ArsipSvc:        arsip.NewService(sqlxrepos.NewArsipRepository(db), usrSvc, store, mailSvc, auditSvc, conf),
		MarketplaceSvc:  marketplace.NewService(sqlxrepos.NewMarketplaceRepository(db), umkmSvc, auditSvc),
		FinancingSvc:    financing.NewService(sqlxrepos.NewFinancingRepository(db), umkmSvc, usrSvc, mailSvc, auditSvc),
	})

	go server.Start()

	// =========================================================================
	// Shutdown

	select {
	case err = <-server.Errors():
		logger.Error(fmt.Sprintf("server error: %v", err), err)

	case sig := <-server.ShutdownSignal():
		logger.Info(fmt.Sprintf("%v: Start shutdown...", sig))

		// give outstanding requests a deadline for completion
		ctx, cancel := context.WithTimeout(ctx, conf.Server.ShutdownTimeout)
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

func setUpDB(ctx context.Context, conf *core.Config) (*sqlx.DB, error) {
	if err := database.CreateIfNotExist(ctx, conf); err != nil {
		return nil, err
	}

	db, err := database.Open(conf)
	if err != nil {
		return nil, errors.Wrap(err, "opening database")
	}
	if err = database.Ping(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err = database.Migrate(db, "up"); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

// setUpCache returns the redis cache when enabled, the in-process one otherwise.
func setUpCache(conf *core.Config) (cacheStore, func(), error) {
	if !conf.Redis.Enabled {
		return cachesvc.NewMemoryCache(), func() {}, nil
	}
	client, err := cachesvc.NewRedisClient(conf)
	if err != nil {
		return nil, nil, err
	}
	return cachesvc.NewRedisCache(client), func() { _ = client.Close() }, nil
}
