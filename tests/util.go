// Package testutil wires the application over in-memory storage for tests.
package testutil

import (
	"context"
	"testing"
	"time"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
	"go.uber.org/zap/zaptest"

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
	"github.com/wednesdev-id/semindo-grow-hub-sub003/services/cache"
	"github.com/wednesdev-id/semindo-grow-hub-sub003/services/email"
	"github.com/wednesdev-id/semindo-grow-hub-sub003/services/logger"
	"github.com/wednesdev-id/semindo-grow-hub-sub003/services/storage"
	"github.com/wednesdev-id/semindo-grow-hub-sub003/storage/database/inmem"
)

// App holds every service of the application, backed by an in-memory database.
type App struct {
	Conf       *core.Config
	DB         *inmemdb.DB
	Logger     core.Logger
	Validate   *validator.Validate
	Translator ut.Translator
	Mail       *emailsvc.ConsoleServiceMock
	Cache      *cachesvc.MemoryCache
	Storage    *storagesvc.MemoryStorage

	UserRepo         user.Repository
	UMKMRepo         umkm.Repository
	AuditRepo        audit.Repository
	ConsultationRepo consultation.Repository

	Audit        audit.Service
	RBAC         rbac.Service
	Users        user.ServiceInterface
	UMKM         umkm.Service
	Assessment   assessment.Service
	Consultation consultation.Service
	LMS          lms.Service
	Arsip        arsip.Service
	Marketplace  marketplace.Service
	Financing    financing.Service
}

// NewApp builds a fresh App with the system roles seeded.
func NewApp(t *testing.T) *App {
	t.Helper()

	conf := core.NewTestConfig()
	logger := logsvc.NewRollbarLogger(zaptest.NewLogger(t), conf)
	logger.Enable(false)
	core.ParseEmailTemplates(conf, logger)

	validate, translator := core.NewValidator()
	user.InitValidators(validate, translator)

	db := inmemdb.Open()
	app := &App{
		Conf:       conf,
		DB:         db,
		Logger:     logger,
		Validate:   validate,
		Translator: translator,
		Mail:       emailsvc.NewConsoleServiceMock(conf),
		Cache:      cachesvc.NewMemoryCache(),
		Storage:    storagesvc.NewMemoryStorage(),
		UserRepo:   inmemdb.NewUserRepository(db),
		UMKMRepo:   inmemdb.NewUMKMRepository(db),
		AuditRepo:  inmemdb.NewAuditRepository(db),

		ConsultationRepo: inmemdb.NewConsultationRepository(db),
	}

	app.Audit = audit.NewService(app.AuditRepo, logger)
	app.RBAC = rbac.NewService(inmemdb.NewRBACRepository(db), app.Cache, app.Audit, logger)
	app.Users = user.NewService(app.UserRepo, app.RBAC, app.Mail, app.Audit, conf)
	app.UMKM = umkm.NewService(app.UMKMRepo, app.Users, validate, app.Audit)
	app.Assessment = assessment.NewService(inmemdb.NewAssessmentRepository(db), app.UMKM, app.Audit)
	app.Consultation = consultation.NewService(app.ConsultationRepo, app.Users, app.Mail, app.Audit, conf)
	app.LMS = lms.NewService(inmemdb.NewLMSRepository(db), app.Audit)
	app.Arsip = arsip.NewService(inmemdb.NewArsipRepository(db), app.Users, app.Storage, app.Mail, app.Audit, conf)
	app.Marketplace = marketplace.NewService(inmemdb.NewMarketplaceRepository(db), app.UMKM, app.Audit)
	app.Financing = financing.NewService(inmemdb.NewFinancingRepository(db), app.UMKM, app.Users, app.Mail, app.Audit)

	if err := app.RBAC.Seed(context.Background()); err != nil {
		t.Fatalf("RBAC.Seed() failed: %v", err)
	}
	return app
}

// Actor resolves the permissions of usr like the API does.
func (app *App) Actor(t *testing.T, usr user.User) core.Actor {
	t.Helper()
	perms, err := app.RBAC.PermissionsFor(context.Background(), usr.Roles)
	if err != nil {
		t.Fatalf("PermissionsFor() failed: %v", err)
	}
	return core.NewActor(usr.ID, usr.Roles, perms)
}

func CreateUser(
	t *testing.T,
	repo user.Repository,
	name, uname, email, pwd string,
	roles []string,
	isActive bool,
	createdAt ...time.Time,
) user.User {
	t.Helper()

	tstamp := time.Now().UTC()
	if len(createdAt) > 0 {
		tstamp = createdAt[0].UTC()
	}
	usr := user.User{
		Name:      name,
		Username:  uname,
		Email:     email,
		Roles:     roles,
		CreatedAt: tstamp,
		UpdatedAt: tstamp,
	}
	usr.SetActive(isActive)
	if pwd != "" {
		if err := usr.SetPassword(pwd); err != nil {
			t.Fatalf("createUser() failed: %v", err)
		}
	}
	usr, err := repo.CreateUser(context.Background(), usr)
	if err != nil {
		t.Fatalf("createUser() failed: %v", err)
	}
	return usr
}

// CreateProfile stores a business profile for owner, in the given status.
func CreateProfile(t *testing.T, repo umkm.Repository, owner user.User, name, province, status string) umkm.Profile {
	t.Helper()

	now := time.Now().UTC()
	revenue := decimal.New(500, 6) // 500 million
	p := umkm.Profile{
		OwnerID:       owner.ID,
		BusinessName:  name,
		OwnerName:     owner.Name,
		Sector:        "kuliner",
		Scale:         umkm.ScaleFor(revenue),
		Province:      province,
		City:          "Bandung",
		AnnualRevenue: revenue,
		EmployeeCount: 4,
		Status:        status,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if status == umkm.StatusVerified {
		p.VerifiedAt = now
	}
	p, err := repo.CreateProfile(context.Background(), p)
	if err != nil {
		t.Fatalf("createProfile() failed: %v", err)
	}
	return p
}
