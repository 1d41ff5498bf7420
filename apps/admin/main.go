package main

import (
	"context"
	"fmt"
	"os"

	"github.com/wednesdev-id/semindo-grow-hub-sub003/core"
	"github.com/wednesdev-id/semindo-grow-hub-sub003/core/audit"
	"github.com/wednesdev-id/semindo-grow-hub-sub003/core/rbac"
	"github.com/wednesdev-id/semindo-grow-hub-sub003/core/umkm"
	"github.com/wednesdev-id/semindo-grow-hub-sub003/core/user"
	cachesvc "github.com/wednesdev-id/semindo-grow-hub-sub003/services/cache"
	emailsvc "github.com/wednesdev-id/semindo-grow-hub-sub003/services/email"
	logsvc "github.com/wednesdev-id/semindo-grow-hub-sub003/services/logger"
	"github.com/wednesdev-id/semindo-grow-hub-sub003/storage/database"
	sqlxrepos "github.com/wednesdev-id/semindo-grow-hub-sub003/storage/database/sqlx"
)

func main() {
	conf := core.NewConfig()

	zl, err := logsvc.NewZapLogger(conf)
	if err != nil {
		fmt.Fprintf(os.Stderr, "setting up logger: %v\n", err)
		os.Exit(1)
	}
	logger := logsvc.NewRollbarLogger(zl.Named("admin"), conf)
	defer func() { _ = logger.Sync() }()

	ctx := context.Background()
	if err = database.CreateIfNotExist(ctx, conf); err != nil {
		logger.Fatal(fmt.Sprintf("setting up database: %v", err), err)
	}
	db, err := database.Open(conf)
	if err != nil {
		logger.Fatal(fmt.Sprintf("opening database: %v", err), err)
	}
	if err = database.Ping(ctx, db); err != nil {
		logger.Fatal(fmt.Sprintf("pinging database: %v", err), err)
	}

	validate, translator := core.NewValidator()
	user.InitValidators(validate, translator)

	auditSvc := audit.NewService(sqlxrepos.NewAuditRepository(db), logger)
	rbacSvc := rbac.NewService(sqlxrepos.NewRBACRepository(db), cachesvc.NewMemoryCache(), auditSvc, logger)
	usrRepo := sqlxrepos.NewUserRepository(db)
	usrSvc := user.NewService(usrRepo, rbacSvc, emailsvc.NewConsoleService(conf, logger), auditSvc, conf)

	cli := commandLine{
		migrate: func(command string, args ...string) error {
			return database.Migrate(db, command, args...)
		},
		usrRepo:  usrRepo,
		rbacSvc:  rbacSvc,
		umkmSvc:  umkm.NewService(sqlxrepos.NewUMKMRepository(db), usrSvc, validate, auditSvc),
		openFile: openFile,
		out:      os.Stdout,
	}
	err = cli.run(os.Args)
	_ = db.Close()
	if err != nil {
		if err != errHelp {
			logger.Error(fmt.Sprintf("error: %v", err), err)
		}
		os.Exit(1)
	}
}
