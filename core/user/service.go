package user

import (
	"context"
	"io"
	"net/mail"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/wednesdev-id/semindo-grow-hub-sub003/core"
	"github.com/wednesdev-id/semindo-grow-hub-sub003/core/audit"
	"github.com/wednesdev-id/semindo-grow-hub-sub003/core/csvio"
)

var (
	// errors
	ErrNotFound         = core.NewNotFoundError("user")
	ErrEmailExists      = errors.New("a user with this email already exists")
	ErrUsernameExists   = errors.New("a user with this username already exists")
	ErrInvalidRoles     = errors.New("invalid roles")
	ErrRolesNotAllowed  = errors.New("not enough rights to set these roles")
	ErrCannotDeleteSelf = errors.New("you cannot delete your own account")
)

type (
	Repository interface {
		CheckUsernameUniqueness(ctx context.Context, username, email string, excludedUsers []User, exec ...core.DBExecutor) error
		CreateUser(ctx context.Context, usr User, exec ...core.DBExecutor) (User, error)
		// QueryUsers applies AND operation on available QueryFilter fields.
		// QueryFilter.Search does a case-insensitive match on one of User.Name, User.Username or User.Email.
		// QueryFilter.Roles matches users having any of the roles.
		QueryUsers(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering, exec ...core.DBExecutor) ([]User, error)
		GetUser(ctx context.Context, filter GetFilter, exec ...core.DBExecutor) (User, error)
		UpdateUser(ctx context.Context, usr User, exec ...core.DBExecutor) (User, error)
		UpdateOrCreateUser(ctx context.Context, usr User, exec ...core.DBExecutor) (User, error)
		DeleteUsersByID(ctx context.Context, ids []string, exec ...core.DBExecutor) (int, error)
	}

	// RoleRegistry knows the roles that can be assigned to users.
	RoleRegistry interface {
		// RolePriorities returns the priority of every known role among roles; unknown roles are left out.
		RolePriorities(ctx context.Context, roles []string) (map[string]int, error)
	}

	ServiceInterface interface {
		CheckUniqueness(ctx context.Context, uname, email string, exclUsers ...User) error
		Register(ctx context.Context, nu NewUser) (User, error)
		Create(ctx context.Context, actor core.Actor, nu NewUser) (User, error)
		Query(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering) ([]User, error)
		GetByID(ctx context.Context, id string) (User, error)
		GetByUsername(ctx context.Context, uname string) (User, error)
		GetByEmail(ctx context.Context, email string) (User, error)
		GetByUsernameOrEmail(ctx context.Context, uname string) (User, error)
		SetLastLogin(ctx context.Context, usr User) (User, error)
		Update(ctx context.Context, actor core.Actor, usr User, uu UpdateUser) (User, error)
		Delete(ctx context.Context, actor core.Actor, ids ...string) error
		RequestPasswordReset(ctx context.Context, email string) error
		ResetPassword(ctx context.Context, data ResetUserPassword) error
		ExportCSV(ctx context.Context, w io.Writer, filter *QueryFilter) error
	}

	service struct {
		repo    Repository
		roles   RoleRegistry
		mailSvc core.EmailService
		audit   audit.Recorder
		tokens  *tokenGenerator
	}
)

var _ ServiceInterface = (*service)(nil)

func NewService(repo Repository, roles RoleRegistry, mailSvc core.EmailService, recorder audit.Recorder, conf *core.Config) ServiceInterface {
	return &service{
		repo:    repo,
		roles:   roles,
		mailSvc: mailSvc,
		audit:   recorder,
		tokens:  newTokenGenerator([]byte(conf.SecretKey), conf.PasswordResetTimeoutDelta),
	}
}

func (svc *service) CheckUniqueness(ctx context.Context, uname, email string, exclUsers ...User) error {
	if err := svc.repo.CheckUsernameUniqueness(ctx, uname, email, exclUsers); err != nil {
		var field string
		switch err {
		case ErrUsernameExists:
			field = "username"
		case ErrEmailExists:
			field = "email"
		default:
			return err
		}
		return core.NewValidationError(err, core.FieldError{Field: field, Error: err.Error()})
	}
	return nil
}

// checkRoles makes sure that every role exists and that the actor does not grant a role above their own.
func (svc *service) checkRoles(ctx context.Context, actor core.Actor, roles []string) error {
	if len(roles) == 0 {
		return nil
	}
	priorities, err := svc.roles.RolePriorities(ctx, append(append([]string{}, roles...), actor.Roles...))
	if err != nil {
		return errors.Wrap(err, "getting role priorities")
	}
	for _, role := range roles {
		if _, ok := priorities[role]; !ok {
			return core.NewValidationError(ErrInvalidRoles, core.FieldError{Field: "roles", Error: ErrInvalidRoles.Error()})
		}
	}
	if MaxRolePriority(roles, priorities) > MaxRolePriority(actor.Roles, priorities) {
		return core.NewValidationError(ErrRolesNotAllowed, core.FieldError{Field: "roles", Error: ErrRolesNotAllowed.Error()})
	}
	return nil
}

func (svc *service) create(ctx context.Context, actorID string, nu NewUser) (User, error) {
	now := time.Now().UTC()
	usr := User{
		Name:      nu.Name,
		Username:  nu.Username,
		Email:     nu.Email,
		Phone:     nu.Phone,
		Roles:     nu.Roles,
		CreatedAt: now,
		UpdatedAt: now,
	}
	usr.SetActive(true)
	if err := usr.SetPassword(nu.Password); err != nil {
		return User{}, errors.Wrap(err, "setting password")
	}
	usr, err := svc.repo.CreateUser(ctx, usr)
	if err != nil {
		return User{}, errors.Wrap(err, "creating user")
	}
	svc.audit.Record(ctx, audit.Entry{
		ActorID:    actorID,
		Action:     audit.ActionCreate,
		Resource:   "user",
		ResourceID: usr.ID,
		Metadata:   map[string]interface{}{"roles": usr.Roles},
	})
	return usr, nil
}

// Register creates a self-service account; only SelfServiceRoles may be requested.
func (svc *service) Register(ctx context.Context, nu NewUser) (User, error) {
	if len(nu.Roles) == 0 {
		nu.Roles = []string{RoleUMKM}
	}
	for _, role := range nu.Roles {
		allowed := false
		for _, r := range SelfServiceRoles {
			if role == r {
				allowed = true
				break
			}
		}
		if !allowed {
			return User{}, core.NewValidationError(ErrRolesNotAllowed, core.FieldError{Field: "roles", Error: ErrRolesNotAllowed.Error()})
		}
	}
	return svc.create(ctx, "", nu)
}

func (svc *service) Create(ctx context.Context, actor core.Actor, nu NewUser) (User, error) {
	if err := svc.checkRoles(ctx, actor, nu.Roles); err != nil {
		return User{}, err
	}
	return svc.create(ctx, actor.ID, nu)
}

func (svc *service) Query(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering) ([]User, error) {
	return svc.repo.QueryUsers(ctx, filter, ordering)
}

func (svc *service) GetByID(ctx context.Context, id string) (User, error) {
	return svc.repo.GetUser(ctx, GetFilter{ID: id})
}

func (svc *service) GetByUsername(ctx context.Context, uname string) (User, error) {
	return svc.repo.GetUser(ctx, GetFilter{Username: core.CleanString(uname, true /* lower */)})
}

func (svc *service) GetByEmail(ctx context.Context, email string) (User, error) {
	return svc.repo.GetUser(ctx, GetFilter{Email: core.CleanString(email, true /* lower */)})
}

func (svc *service) GetByUsernameOrEmail(ctx context.Context, uname string) (User, error) {
	return svc.repo.GetUser(ctx, GetFilter{UsernameOrEmail: core.CleanString(uname, true /* lower */)})
}

func (svc *service) SetLastLogin(ctx context.Context, usr User) (User, error) {
	usr.LastLogin = time.Now().UTC()
	return svc.repo.UpdateUser(ctx, usr)
}

func (svc *service) Update(ctx context.Context, actor core.Actor, usr User, uu UpdateUser) (User, error) {
	if uu.Roles != nil {
		if err := svc.checkRoles(ctx, actor, uu.Roles); err != nil {
			return User{}, err
		}
		usr.Roles = uu.Roles
	}
	usr.Name = uu.Name
	usr.Username = uu.Username
	usr.Email = uu.Email
	usr.Phone = uu.Phone
	if uu.IsActive != nil {
		usr.SetActive(*uu.IsActive)
	}
	if uu.Password != "" {
		if err := usr.SetPassword(uu.Password); err != nil {
			return User{}, errors.Wrap(err, "setting password")
		}
	}
	usr.UpdatedAt = time.Now().UTC()

	usr, err := svc.repo.UpdateUser(ctx, usr)
	if err != nil {
		return User{}, errors.Wrap(err, "updating user")
	}
	svc.audit.Record(ctx, audit.Entry{
		ActorID:    actor.ID,
		Action:     audit.ActionUpdate,
		Resource:   "user",
		ResourceID: usr.ID,
	})
	return usr, nil
}

func (svc *service) Delete(ctx context.Context, actor core.Actor, ids ...string) error {
	for _, id := range ids {
		if id == actor.ID {
			return core.NewValidationError(ErrCannotDeleteSelf)
		}
	}
	n, err := svc.repo.DeleteUsersByID(ctx, ids)
	if err != nil {
		return errors.Wrap(err, "deleting users")
	}
	svc.audit.Record(ctx, audit.Entry{
		ActorID:  actor.ID,
		Action:   audit.ActionDelete,
		Resource: "user",
		Metadata: map[string]interface{}{"ids": ids, "deleted": n},
	})
	return nil
}

func (svc *service) RequestPasswordReset(ctx context.Context, email string) error {
	usr, err := svc.GetByEmail(ctx, email)
	if err != nil {
		return err
	}
	if !usr.Active() {
		return ErrNotFound
	}
	token, err := svc.tokens.makeToken(usr)
	if err != nil {
		return errors.Wrap(err, "making token")
	}
	svc.mailSvc.SendMessages(&core.EmailMessage{
		To:           []mail.Address{{Name: usr.Name, Address: usr.Email}},
		Subject:      "Password Reset",
		TemplateName: "password_reset",
		TemplateData: map[string]interface{}{
			"Name":  usr.DisplayName(),
			"UID":   EncodeUID(usr),
			"Token": token,
		},
	})
	return nil
}

func (svc *service) ResetPassword(ctx context.Context, data ResetUserPassword) error {
	invalid := core.NewValidationError(errors.New("invalid reset link"))

	id, err := decodeUID(data.UID)
	if err != nil {
		return invalid
	}
	usr, err := svc.GetByID(ctx, id)
	if err != nil {
		if errors.Cause(err) == ErrNotFound {
			return invalid
		}
		return errors.Wrap(err, "finding user by ID")
	}
	if err = svc.tokens.verifyToken(usr, data.Token); err != nil {
		return core.NewValidationError(err)
	}
	if err = usr.SetPassword(data.Password); err != nil {
		return errors.Wrap(err, "setting password")
	}
	usr.UpdatedAt = time.Now().UTC()
	if _, err = svc.repo.UpdateUser(ctx, usr); err != nil {
		return errors.Wrap(err, "updating user")
	}
	svc.audit.Record(ctx, audit.Entry{ActorID: usr.ID, Action: "password_reset", Resource: "user", ResourceID: usr.ID})
	return nil
}

var csvHeader = []string{"id", "name", "username", "email", "phone", "roles", "is_active", "created_at", "last_login"}

func (svc *service) ExportCSV(ctx context.Context, w io.Writer, filter *QueryFilter) error {
	users, err := svc.repo.QueryUsers(ctx, filter, []core.DBOrdering{{Field: "created_at", Ascending: true}})
	if err != nil {
		return errors.Wrap(err, "querying users")
	}

	cw, err := csvio.NewWriter(w, csvHeader...)
	if err != nil {
		return err
	}
	for _, u := range users {
		lastLogin := ""
		if !u.LastLogin.IsZero() {
			lastLogin = u.LastLogin.Format(time.RFC3339)
		}
		record := []string{
			u.ID, u.Name, u.Username, u.Email, u.Phone,
			strings.Join(u.Roles, ";"),
			strconv.FormatBool(u.Active()),
			u.CreatedAt.Format(time.RFC3339),
			lastLogin,
		}
		if err = cw.Write(record...); err != nil {
			return err
		}
	}
	return cw.Flush()
}
