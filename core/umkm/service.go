package umkm

import (
	"context"
	"io"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"github.com/wednesdev-id/semindo-grow-hub-sub003/core"
	"github.com/wednesdev-id/semindo-grow-hub-sub003/core/audit"
	"github.com/wednesdev-id/semindo-grow-hub-sub003/core/csvio"
	"github.com/wednesdev-id/semindo-grow-hub-sub003/core/user"
)

// Permission codes checked by this package
const (
	PermRead   = "umkm:read"
	PermManage = "umkm:manage"
	PermVerify = "umkm:verify"
)

var (
	// errors
	ErrNotFound         = core.NewNotFoundError("business profile")
	ErrProfileExists    = core.NewConflictError("this user already owns a business profile")
	ErrInvalidStatus    = core.NewConflictError("operation not allowed in the current profile status")
	ErrNotEligible      = core.NewConflictError("large businesses are not eligible for verification")
	ErrProfileNotExists = errors.New("no business profile")
)

type (
	Repository interface {
		CreateProfile(ctx context.Context, p Profile, exec ...core.DBExecutor) (Profile, error)
		GetProfile(ctx context.Context, id string, exec ...core.DBExecutor) (Profile, error)
		GetProfileByOwner(ctx context.Context, ownerID string, exec ...core.DBExecutor) (Profile, error)
		UpdateProfile(ctx context.Context, p Profile, exec ...core.DBExecutor) (Profile, error)
		DeleteProfile(ctx context.Context, id string, exec ...core.DBExecutor) error
		// QueryProfiles applies AND on the set filter fields; Search matches business name, owner name or city.
		// A page.Limit <= 0 returns every match.
		QueryProfiles(ctx context.Context, filter QueryFilter, ordering []core.DBOrdering, page core.Pagination, exec ...core.DBExecutor) ([]Profile, error)
	}

	// UserFinder resolves profile owners for CSV imports.
	UserFinder interface {
		GetByEmail(ctx context.Context, email string) (user.User, error)
	}

	ImportResult struct {
		Created int              `json:"created"`
		Errors  []csvio.RowError `json:"errors"`
	}

	Service interface {
		Create(ctx context.Context, actor core.Actor, in ProfileInput) (Profile, error)
		Get(ctx context.Context, actor core.Actor, id string) (Profile, error)
		GetByOwner(ctx context.Context, ownerID string) (Profile, error)
		// GetVerifiedByOwner returns the owner's profile, failing unless it is verified.
		GetVerifiedByOwner(ctx context.Context, ownerID string) (Profile, error)
		Update(ctx context.Context, actor core.Actor, id string, in ProfileInput) (Profile, error)
		Delete(ctx context.Context, actor core.Actor, id string) error
		Query(ctx context.Context, actor core.Actor, filter QueryFilter, ordering []core.DBOrdering, page core.Pagination) ([]Profile, error)
		Verify(ctx context.Context, actor core.Actor, id string) (Profile, error)
		Reject(ctx context.Context, actor core.Actor, id string, rej Rejection) (Profile, error)
		ImportCSV(ctx context.Context, actor core.Actor, r io.Reader) (ImportResult, error)
		ExportCSV(ctx context.Context, actor core.Actor, w io.Writer, filter QueryFilter) error
	}

	service struct {
		repo     Repository
		users    UserFinder
		validate *validator.Validate
		audit    audit.Recorder
	}
)

var _ Service = (*service)(nil)

func NewService(repo Repository, users UserFinder, validate *validator.Validate, recorder audit.Recorder) Service {
	return &service{repo: repo, users: users, validate: validate, audit: recorder}
}

func (svc *service) create(ctx context.Context, actorID, ownerID string, in ProfileInput) (Profile, error) {
	if _, err := svc.repo.GetProfileByOwner(ctx, ownerID); err == nil {
		return Profile{}, ErrProfileExists
	} else if errors.Cause(err) != ErrNotFound {
		return Profile{}, errors.Wrap(err, "checking existing profile")
	}

	now := time.Now().UTC()
	p := Profile{OwnerID: ownerID, Status: StatusDraft, CreatedAt: now, UpdatedAt: now}
	in.apply(&p)
	p, err := svc.repo.CreateProfile(ctx, p)
	if err != nil {
		return Profile{}, errors.Wrap(err, "creating profile")
	}
	svc.audit.Record(ctx, audit.Entry{
		ActorID:    actorID,
		Action:     audit.ActionCreate,
		Resource:   "umkm_profile",
		ResourceID: p.ID,
		Metadata:   map[string]interface{}{"owner_id": ownerID},
	})
	return p, nil
}

func (svc *service) Create(ctx context.Context, actor core.Actor, in ProfileInput) (Profile, error) {
	return svc.create(ctx, actor.ID, actor.ID, in)
}

func (svc *service) Get(ctx context.Context, actor core.Actor, id string) (Profile, error) {
	p, err := svc.repo.GetProfile(ctx, id)
	if err != nil {
		return Profile{}, err
	}
	if !p.OwnedBy(actor.ID) && !actor.Can(PermRead) {
		return Profile{}, ErrNotFound
	}
	return p, nil
}

func (svc *service) GetByOwner(ctx context.Context, ownerID string) (Profile, error) {
	return svc.repo.GetProfileByOwner(ctx, ownerID)
}

func (svc *service) GetVerifiedByOwner(ctx context.Context, ownerID string) (Profile, error) {
	p, err := svc.repo.GetProfileByOwner(ctx, ownerID)
	if err != nil {
		if errors.Cause(err) == ErrNotFound {
			return Profile{}, core.NewValidationError(ErrProfileNotExists,
				core.FieldError{Field: "profile", Error: "a verified business profile is required"})
		}
		return Profile{}, err
	}
	if !p.IsVerified() {
		return Profile{}, core.NewValidationError(ErrInvalidStatus,
			core.FieldError{Field: "profile", Error: "a verified business profile is required"})
	}
	return p, nil
}

func (svc *service) Update(ctx context.Context, actor core.Actor, id string, in ProfileInput) (Profile, error) {
	p, err := svc.repo.GetProfile(ctx, id)
	if err != nil {
		return Profile{}, err
	}
	owner := p.OwnedBy(actor.ID)
	if !owner && !actor.Can(PermManage) {
		if actor.Can(PermRead) {
			return Profile{}, core.ErrForbidden
		}
		return Profile{}, ErrNotFound
	}

	in.apply(&p)
	if owner && p.Status == StatusRejected {
		p.Status = StatusDraft
		p.VerificationNote = ""
	}
	p.UpdatedAt = time.Now().UTC()

	if p, err = svc.repo.UpdateProfile(ctx, p); err != nil {
		return Profile{}, errors.Wrap(err, "updating profile")
	}
	svc.audit.Record(ctx, audit.Entry{Action: audit.ActionUpdate, Resource: "umkm_profile", ResourceID: p.ID})
	return p, nil
}

func (svc *service) Delete(ctx context.Context, actor core.Actor, id string) error {
	if !actor.Can(PermManage) {
		return core.ErrForbidden
	}
	if _, err := svc.repo.GetProfile(ctx, id); err != nil {
		return err
	}
	if err := svc.repo.DeleteProfile(ctx, id); err != nil {
		return errors.Wrap(err, "deleting profile")
	}
	svc.audit.Record(ctx, audit.Entry{Action: audit.ActionDelete, Resource: "umkm_profile", ResourceID: id})
	return nil
}

func (svc *service) Query(ctx context.Context, actor core.Actor, filter QueryFilter, ordering []core.DBOrdering, page core.Pagination) ([]Profile, error) {
	filter.Clean()
	if !actor.Can(PermRead) {
		filter.OwnerID = actor.ID
	}
	page.Clean()
	return svc.repo.QueryProfiles(ctx, filter, ordering, page)
}

func (svc *service) Verify(ctx context.Context, actor core.Actor, id string) (Profile, error) {
	if !actor.Can(PermVerify) {
		return Profile{}, core.ErrForbidden
	}
	p, err := svc.repo.GetProfile(ctx, id)
	if err != nil {
		return Profile{}, err
	}
	if p.Status != StatusDraft {
		return Profile{}, ErrInvalidStatus
	}
	if p.Scale == ScaleLarge {
		return Profile{}, ErrNotEligible
	}

	now := time.Now().UTC()
	p.Status = StatusVerified
	p.VerificationNote = ""
	p.VerifiedAt = now
	p.UpdatedAt = now
	if p, err = svc.repo.UpdateProfile(ctx, p); err != nil {
		return Profile{}, errors.Wrap(err, "updating profile")
	}
	svc.audit.Record(ctx, audit.Entry{Action: "verify", Resource: "umkm_profile", ResourceID: p.ID})
	return p, nil
}

func (svc *service) Reject(ctx context.Context, actor core.Actor, id string, rej Rejection) (Profile, error) {
	if !actor.Can(PermVerify) {
		return Profile{}, core.ErrForbidden
	}
	p, err := svc.repo.GetProfile(ctx, id)
	if err != nil {
		return Profile{}, err
	}
	if p.Status == StatusRejected {
		return Profile{}, ErrInvalidStatus
	}

	p.Status = StatusRejected
	p.VerificationNote = rej.Note
	p.VerifiedAt = time.Time{}
	p.UpdatedAt = time.Now().UTC()
	if p, err = svc.repo.UpdateProfile(ctx, p); err != nil {
		return Profile{}, errors.Wrap(err, "updating profile")
	}
	svc.audit.Record(ctx, audit.Entry{
		Action:     "reject",
		Resource:   "umkm_profile",
		ResourceID: p.ID,
		Metadata:   map[string]interface{}{"note": rej.Note},
	})
	return p, nil
}

var csvColumns = []string{
	"owner_email", "business_name", "owner_name", "nib", "sector", "province", "city", "address",
	"latitude", "longitude", "annual_revenue", "employee_count", "founded_year", "phone", "email",
	"website", "description",
}

// ImportCSV creates a profile per valid row, owned by the user with the row's owner_email.
// Invalid rows are reported and skipped.
func (svc *service) ImportCSV(ctx context.Context, actor core.Actor, r io.Reader) (ImportResult, error) {
	if !actor.Can(PermManage) {
		return ImportResult{}, core.ErrForbidden
	}
	rdr, err := csvio.NewReader(r)
	if err != nil {
		return ImportResult{}, core.NewValidationError(err, core.FieldError{Field: "file", Error: err.Error()})
	}

	res := ImportResult{Errors: rdr.Require("owner_email", "business_name", "owner_name", "sector", "province", "city")}
	if len(res.Errors) > 0 {
		return res, nil
	}

	for {
		row, err := rdr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			if rowErr, ok := err.(csvio.RowError); ok {
				res.Errors = append(res.Errors, rowErr)
				continue
			}
			return res, err
		}
		if rowErr := svc.importRow(ctx, actor, row); rowErr != nil {
			res.Errors = append(res.Errors, *rowErr)
			continue
		}
		res.Created++
	}
	return res, nil
}

func (svc *service) importRow(ctx context.Context, actor core.Actor, row csvio.Row) *csvio.RowError {
	fail := func(field, msg string) *csvio.RowError {
		return &csvio.RowError{Row: row.Line, Field: field, Message: msg}
	}

	in := ProfileInput{
		BusinessName: row.Get("business_name"),
		OwnerName:    row.Get("owner_name"),
		NIB:          row.Get("nib"),
		Sector:       row.Get("sector"),
		Province:     row.Get("province"),
		City:         row.Get("city"),
		Address:      row.Get("address"),
		Phone:        row.Get("phone"),
		Email:        row.Get("email"),
		Website:      row.Get("website"),
		Description:  row.Get("description"),
	}

	var err error
	for field, dest := range map[string]**float64{"latitude": &in.Latitude, "longitude": &in.Longitude} {
		if val := row.Get(field); val != "" {
			f, err := strconv.ParseFloat(val, 64)
			if err != nil {
				return fail(field, "must be a number")
			}
			*dest = &f
		}
	}
	if val := row.Get("annual_revenue"); val != "" {
		if in.AnnualRevenue, err = decimal.NewFromString(val); err != nil {
			return fail("annual_revenue", "must be a number")
		}
	}
	for field, dest := range map[string]*int{"employee_count": &in.EmployeeCount, "founded_year": &in.FoundedYear} {
		if val := row.Get(field); val != "" {
			if *dest, err = strconv.Atoi(val); err != nil {
				return fail(field, "must be an integer")
			}
		}
	}

	if err = in.Validate(svc.validate); err != nil {
		switch e := err.(type) {
		case validator.ValidationErrors:
			return fail(e[0].Field(), e[0].Tag())
		case *core.ValidationError:
			if len(e.Fields) > 0 {
				return fail(e.Fields[0].Field, e.Fields[0].Error)
			}
			return fail("", e.Error())
		}
		return fail("", err.Error())
	}

	owner, err := svc.users.GetByEmail(ctx, row.Get("owner_email"))
	if err != nil {
		return fail("owner_email", "unknown user")
	}
	if _, err = svc.create(ctx, actor.ID, owner.ID, in); err != nil {
		if core.IsConflict(err) {
			return fail("owner_email", err.Error())
		}
		return fail("", err.Error())
	}
	return nil
}

func (svc *service) ExportCSV(ctx context.Context, actor core.Actor, w io.Writer, filter QueryFilter) error {
	if !actor.Can(PermManage) {
		return core.ErrForbidden
	}
	filter.Clean()
	profiles, err := svc.repo.QueryProfiles(ctx, filter, []core.DBOrdering{{Field: "created_at", Ascending: true}}, core.Pagination{Limit: -1})
	if err != nil {
		return errors.Wrap(err, "querying profiles")
	}

	header := append([]string{"id", "owner_id", "scale", "status"}, csvColumns[1:]...)
	cw, err := csvio.NewWriter(w, header...)
	if err != nil {
		return err
	}
	optFloat := func(f *float64) string {
		if f == nil {
			return ""
		}
		return strconv.FormatFloat(*f, 'f', -1, 64)
	}
	optInt := func(i int) string {
		if i == 0 {
			return ""
		}
		return strconv.Itoa(i)
	}
	for _, p := range profiles {
		record := []string{
			p.ID, p.OwnerID, p.Scale, p.Status,
			p.BusinessName, p.OwnerName, p.NIB, p.Sector, p.Province, p.City, p.Address,
			optFloat(p.Latitude), optFloat(p.Longitude), p.AnnualRevenue.String(),
			strconv.Itoa(p.EmployeeCount), optInt(p.FoundedYear), p.Phone, p.Email, p.Website, p.Description,
		}
		if err = cw.Write(record...); err != nil {
			return err
		}
	}
	return cw.Flush()
}
