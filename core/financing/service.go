package financing

import (
	"context"
	"net/mail"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"github.com/wednesdev-id/semindo-grow-hub-sub003/core"
	"github.com/wednesdev-id/semindo-grow-hub-sub003/core/audit"
	"github.com/wednesdev-id/semindo-grow-hub-sub003/core/umkm"
	"github.com/wednesdev-id/semindo-grow-hub-sub003/core/user"
)

// Permission codes checked by this package
const (
	PermManage = "financing:manage"
	PermApply  = "financing:apply"
	PermReview = "financing:review"
)

var (
	// errors
	ErrNotFound            = core.NewNotFoundError("partner")
	ErrProductNotFound     = core.NewNotFoundError("product")
	ErrApplicationNotFound = core.NewNotFoundError("application")
	ErrInactive            = core.NewConflictError("this product is not available")
	ErrInvalidTransition   = core.NewConflictError("application status does not allow this operation")
	ErrHasApplications     = core.NewConflictError("applications were made to this product")
)

var transitions = map[string][]string{
	StatusSubmitted:   {StatusUnderReview, StatusWithdrawn},
	StatusUnderReview: {StatusApproved, StatusRejected, StatusWithdrawn},
}

// CanTransition reports whether an application may move from one status to another.
func CanTransition(from, to string) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

type (
	Repository interface {
		CreatePartner(ctx context.Context, p Partner, exec ...core.DBExecutor) (Partner, error)
		// GetPartner returns the partner with its products.
		GetPartner(ctx context.Context, id string, exec ...core.DBExecutor) (Partner, error)
		UpdatePartner(ctx context.Context, p Partner, exec ...core.DBExecutor) (Partner, error)
		// DeletePartner deletes the partner and its products.
		DeletePartner(ctx context.Context, id string, exec ...core.DBExecutor) error
		QueryPartners(ctx context.Context, filter PartnerFilter, ordering []core.DBOrdering, page core.Pagination, exec ...core.DBExecutor) ([]Partner, error)

		CreateProduct(ctx context.Context, p Product, exec ...core.DBExecutor) (Product, error)
		GetProduct(ctx context.Context, id string, exec ...core.DBExecutor) (Product, error)
		UpdateProduct(ctx context.Context, p Product, exec ...core.DBExecutor) (Product, error)
		DeleteProduct(ctx context.Context, id string, exec ...core.DBExecutor) error
		// CountApplications counts the applications to a product, or to every product of a partner.
		CountApplications(ctx context.Context, productID, partnerID string, exec ...core.DBExecutor) (int, error)

		CreateApplication(ctx context.Context, a Application, exec ...core.DBExecutor) (Application, error)
		GetApplication(ctx context.Context, id string, exec ...core.DBExecutor) (Application, error)
		UpdateApplication(ctx context.Context, a Application, exec ...core.DBExecutor) (Application, error)
		QueryApplications(ctx context.Context, filter ApplicationFilter, page core.Pagination, exec ...core.DBExecutor) ([]Application, error)
	}

	ProfileGetter interface {
		GetVerifiedByOwner(ctx context.Context, ownerID string) (umkm.Profile, error)
	}

	UserFinder interface {
		GetByID(ctx context.Context, id string) (user.User, error)
	}

	Service interface {
		CreatePartner(ctx context.Context, actor core.Actor, in PartnerInput) (Partner, error)
		UpdatePartner(ctx context.Context, actor core.Actor, id string, in PartnerInput) (Partner, error)
		DeletePartner(ctx context.Context, actor core.Actor, id string) error
		// GetPartner hides inactive partners and products from those without financing:manage.
		GetPartner(ctx context.Context, actor core.Actor, id string) (Partner, error)
		ListPartners(ctx context.Context, actor core.Actor, filter PartnerFilter, ordering []core.DBOrdering, page core.Pagination) ([]Partner, error)

		AddProduct(ctx context.Context, actor core.Actor, partnerID string, in ProductInput) (Product, error)
		UpdateProduct(ctx context.Context, actor core.Actor, id string, in ProductInput) (Product, error)
		DeleteProduct(ctx context.Context, actor core.Actor, id string) error
		Estimate(ctx context.Context, productID string, amount decimal.Decimal, tenorMonths int) (Estimate, error)

		Apply(ctx context.Context, actor core.Actor, na NewApplication) (Application, error)
		GetApplication(ctx context.Context, actor core.Actor, id string) (Application, error)
		// ListApplications returns every application to reviewers and only their own to the others.
		ListApplications(ctx context.Context, actor core.Actor, filter ApplicationFilter, page core.Pagination) ([]Application, error)
		StartReview(ctx context.Context, actor core.Actor, id string) (Application, error)
		Approve(ctx context.Context, actor core.Actor, id string, r Review) (Application, error)
		Reject(ctx context.Context, actor core.Actor, id string, r Review) (Application, error)
		Withdraw(ctx context.Context, actor core.Actor, id string) (Application, error)
	}

	service struct {
		repo     Repository
		profiles ProfileGetter
		users    UserFinder
		mailSvc  core.EmailService
		audit    audit.Recorder
	}
)

var _ Service = (*service)(nil)

func NewService(repo Repository, profiles ProfileGetter, users UserFinder, mailSvc core.EmailService, recorder audit.Recorder) Service {
	return &service{
		repo:     repo,
		profiles: profiles,
		users:    users,
		mailSvc:  mailSvc,
		audit:    recorder,
	}
}

// Partners

func (svc *service) CreatePartner(ctx context.Context, actor core.Actor, in PartnerInput) (Partner, error) {
	if !actor.Can(PermManage) {
		return Partner{}, core.ErrForbidden
	}
	now := time.Now().UTC()
	p := Partner{IsActive: true, CreatedAt: now, UpdatedAt: now}
	in.apply(&p)

	p, err := svc.repo.CreatePartner(ctx, p)
	if err != nil {
		return Partner{}, errors.Wrap(err, "creating partner")
	}
	svc.audit.Record(ctx, audit.Entry{Action: audit.ActionCreate, Resource: "partner", ResourceID: p.ID})
	return p, nil
}

func (svc *service) UpdatePartner(ctx context.Context, actor core.Actor, id string, in PartnerInput) (Partner, error) {
	if !actor.Can(PermManage) {
		return Partner{}, core.ErrForbidden
	}
	p, err := svc.repo.GetPartner(ctx, id)
	if err != nil {
		return Partner{}, err
	}
	in.apply(&p)
	p.UpdatedAt = time.Now().UTC()

	if p, err = svc.repo.UpdatePartner(ctx, p); err != nil {
		return Partner{}, errors.Wrap(err, "updating partner")
	}
	svc.audit.Record(ctx, audit.Entry{Action: audit.ActionUpdate, Resource: "partner", ResourceID: p.ID})
	return p, nil
}

func (svc *service) DeletePartner(ctx context.Context, actor core.Actor, id string) error {
	if !actor.Can(PermManage) {
		return core.ErrForbidden
	}
	if _, err := svc.repo.GetPartner(ctx, id); err != nil {
		return err
	}
	n, err := svc.repo.CountApplications(ctx, "", id)
	if err != nil {
		return errors.Wrap(err, "counting applications")
	}
	if n > 0 {
		return ErrHasApplications
	}
	if err = svc.repo.DeletePartner(ctx, id); err != nil {
		return errors.Wrap(err, "deleting partner")
	}
	svc.audit.Record(ctx, audit.Entry{Action: audit.ActionDelete, Resource: "partner", ResourceID: id})
	return nil
}

func (svc *service) GetPartner(ctx context.Context, actor core.Actor, id string) (Partner, error) {
	p, err := svc.repo.GetPartner(ctx, id)
	if err != nil {
		return Partner{}, err
	}
	if actor.Can(PermManage) {
		return p, nil
	}
	if !p.IsActive {
		return Partner{}, ErrNotFound
	}
	active := make([]Product, 0, len(p.Products))
	for _, prod := range p.Products {
		if prod.IsActive {
			active = append(active, prod)
		}
	}
	p.Products = active
	return p, nil
}

func (svc *service) ListPartners(ctx context.Context, actor core.Actor, filter PartnerFilter, ordering []core.DBOrdering, page core.Pagination) ([]Partner, error) {
	filter.Clean()
	if !actor.Can(PermManage) {
		active := true
		filter.IsActive = &active
	}
	page.Clean()
	return svc.repo.QueryPartners(ctx, filter, ordering, page)
}

// Products

func (svc *service) AddProduct(ctx context.Context, actor core.Actor, partnerID string, in ProductInput) (Product, error) {
	if !actor.Can(PermManage) {
		return Product{}, core.ErrForbidden
	}
	if _, err := svc.repo.GetPartner(ctx, partnerID); err != nil {
		return Product{}, err
	}
	now := time.Now().UTC()
	p := Product{PartnerID: partnerID, IsActive: true, CreatedAt: now, UpdatedAt: now}
	in.apply(&p)

	p, err := svc.repo.CreateProduct(ctx, p)
	if err != nil {
		return Product{}, errors.Wrap(err, "creating product")
	}
	svc.audit.Record(ctx, audit.Entry{
		Action:     audit.ActionCreate,
		Resource:   "product",
		ResourceID: p.ID,
		Metadata:   map[string]interface{}{"partner_id": partnerID},
	})
	return p, nil
}

func (svc *service) UpdateProduct(ctx context.Context, actor core.Actor, id string, in ProductInput) (Product, error) {
	if !actor.Can(PermManage) {
		return Product{}, core.ErrForbidden
	}
	p, err := svc.repo.GetProduct(ctx, id)
	if err != nil {
		return Product{}, err
	}
	in.apply(&p)
	p.UpdatedAt = time.Now().UTC()

	if p, err = svc.repo.UpdateProduct(ctx, p); err != nil {
		return Product{}, errors.Wrap(err, "updating product")
	}
	svc.audit.Record(ctx, audit.Entry{Action: audit.ActionUpdate, Resource: "product", ResourceID: p.ID})
	return p, nil
}

func (svc *service) DeleteProduct(ctx context.Context, actor core.Actor, id string) error {
	if !actor.Can(PermManage) {
		return core.ErrForbidden
	}
	if _, err := svc.repo.GetProduct(ctx, id); err != nil {
		return err
	}
	n, err := svc.repo.CountApplications(ctx, id, "")
	if err != nil {
		return errors.Wrap(err, "counting applications")
	}
	if n > 0 {
		return ErrHasApplications
	}
	if err = svc.repo.DeleteProduct(ctx, id); err != nil {
		return errors.Wrap(err, "deleting product")
	}
	svc.audit.Record(ctx, audit.Entry{Action: audit.ActionDelete, Resource: "product", ResourceID: id})
	return nil
}

// availableProduct returns the product when both it and its partner are active.
func (svc *service) availableProduct(ctx context.Context, id string) (Product, Partner, error) {
	prod, err := svc.repo.GetProduct(ctx, id)
	if err != nil {
		return Product{}, Partner{}, err
	}
	partner, err := svc.repo.GetPartner(ctx, prod.PartnerID)
	if err != nil {
		return Product{}, Partner{}, err
	}
	if !prod.IsActive || !partner.IsActive {
		return Product{}, Partner{}, ErrInactive
	}
	return prod, partner, nil
}

func checkBounds(p Product, amount decimal.Decimal, tenorMonths int) error {
	var fields []core.FieldError
	if amount.LessThan(p.MinAmount) || amount.GreaterThan(p.MaxAmount) {
		fields = append(fields, core.FieldError{
			Field: "amount",
			Error: "must be between " + p.MinAmount.String() + " and " + p.MaxAmount.String(),
		})
	}
	if tenorMonths < p.MinTenorMonths || tenorMonths > p.MaxTenorMonths {
		fields = append(fields, core.FieldError{
			Field: "tenor_months",
			Error: "must be within the product tenor range",
		})
	}
	if len(fields) > 0 {
		return core.NewValidationError(errors.New("out of product bounds"), fields...)
	}
	return nil
}

func (svc *service) Estimate(ctx context.Context, productID string, amount decimal.Decimal, tenorMonths int) (Estimate, error) {
	prod, _, err := svc.availableProduct(ctx, productID)
	if err != nil {
		return Estimate{}, err
	}
	if err = checkBounds(prod, amount, tenorMonths); err != nil {
		return Estimate{}, err
	}
	return estimate(prod, amount, tenorMonths), nil
}

// Applications

func (svc *service) Apply(ctx context.Context, actor core.Actor, na NewApplication) (Application, error) {
	if !actor.Can(PermApply) {
		return Application{}, core.ErrForbidden
	}
	profile, err := svc.profiles.GetVerifiedByOwner(ctx, actor.ID)
	if err != nil {
		return Application{}, err
	}
	prod, _, err := svc.availableProduct(ctx, na.ProductID)
	if err != nil {
		if errors.Cause(err) == ErrProductNotFound {
			return Application{}, core.NewFieldValidationError("product_id", "unknown product")
		}
		return Application{}, err
	}
	if err = checkBounds(prod, na.Amount, na.TenorMonths); err != nil {
		return Application{}, err
	}

	now := time.Now().UTC()
	a := Application{
		ProductID:          prod.ID,
		ProfileID:          profile.ID,
		UserID:             actor.ID,
		Amount:             na.Amount,
		TenorMonths:        na.TenorMonths,
		Purpose:            na.Purpose,
		Status:             StatusSubmitted,
		MonthlyInstallment: MonthlyInstallment(na.Amount, prod.InterestRate, na.TenorMonths),
		CreatedAt:          now,
		UpdatedAt:          now,
	}
	if a, err = svc.repo.CreateApplication(ctx, a); err != nil {
		return Application{}, errors.Wrap(err, "creating application")
	}
	svc.audit.Record(ctx, audit.Entry{
		Action:     audit.ActionCreate,
		Resource:   "application",
		ResourceID: a.ID,
		Metadata:   map[string]interface{}{"product_id": a.ProductID, "amount": a.Amount.String()},
	})
	return a, nil
}

func (svc *service) GetApplication(ctx context.Context, actor core.Actor, id string) (Application, error) {
	a, err := svc.repo.GetApplication(ctx, id)
	if err != nil {
		return Application{}, err
	}
	if a.UserID != actor.ID && !actor.Can(PermReview) {
		return Application{}, ErrApplicationNotFound
	}
	return a, nil
}

func (svc *service) ListApplications(ctx context.Context, actor core.Actor, filter ApplicationFilter, page core.Pagination) ([]Application, error) {
	filter.Clean()
	filter.UserID = ""
	if !actor.Can(PermReview) {
		filter.UserID = actor.ID
	}
	page.Clean()
	return svc.repo.QueryApplications(ctx, filter, page)
}

func (svc *service) transition(ctx context.Context, a Application, to, note string) (Application, error) {
	if !CanTransition(a.Status, to) {
		return Application{}, ErrInvalidTransition
	}
	a.Status = to
	if note != "" {
		a.ReviewNote = note
	}
	a.UpdatedAt = time.Now().UTC()

	a, err := svc.repo.UpdateApplication(ctx, a)
	if err != nil {
		return Application{}, errors.Wrap(err, "updating application")
	}
	svc.audit.Record(ctx, audit.Entry{
		Action:     to,
		Resource:   "application",
		ResourceID: a.ID,
	})
	return a, nil
}

func (svc *service) review(ctx context.Context, actor core.Actor, id, to, note string) (Application, error) {
	if !actor.Can(PermReview) {
		return Application{}, core.ErrForbidden
	}
	a, err := svc.repo.GetApplication(ctx, id)
	if err != nil {
		return Application{}, err
	}
	if a, err = svc.transition(ctx, a, to, note); err != nil {
		return Application{}, err
	}
	svc.notify(ctx, a)
	return a, nil
}

func (svc *service) StartReview(ctx context.Context, actor core.Actor, id string) (Application, error) {
	return svc.review(ctx, actor, id, StatusUnderReview, "")
}

func (svc *service) Approve(ctx context.Context, actor core.Actor, id string, r Review) (Application, error) {
	return svc.review(ctx, actor, id, StatusApproved, r.Note)
}

func (svc *service) Reject(ctx context.Context, actor core.Actor, id string, r Review) (Application, error) {
	if r.Note == "" {
		return Application{}, core.NewFieldValidationError("note", "this field is required")
	}
	return svc.review(ctx, actor, id, StatusRejected, r.Note)
}

func (svc *service) Withdraw(ctx context.Context, actor core.Actor, id string) (Application, error) {
	a, err := svc.repo.GetApplication(ctx, id)
	if err != nil {
		return Application{}, err
	}
	if a.UserID != actor.ID {
		if actor.Can(PermReview) {
			return Application{}, core.ErrForbidden
		}
		return Application{}, ErrApplicationNotFound
	}
	return svc.transition(ctx, a, StatusWithdrawn, "")
}

// notify mails the applicant about the new status of the application.
func (svc *service) notify(ctx context.Context, a Application) {
	applicant, err := svc.users.GetByID(ctx, a.UserID)
	if err != nil || applicant.Email == "" {
		return
	}
	var productName string
	if p, err := svc.repo.GetProduct(ctx, a.ProductID); err == nil {
		productName = p.Name
	}
	svc.mailSvc.SendMessages(&core.EmailMessage{
		To:           []mail.Address{{Name: applicant.DisplayName(), Address: applicant.Email}},
		Subject:      "Your financing application is " + a.Status,
		TemplateName: "application_status",
		TemplateData: map[string]interface{}{
			"ProductName": productName,
			"Amount":      a.Amount.StringFixed(0),
			"TenorMonths": a.TenorMonths,
			"Status":      a.Status,
			"Note":        a.ReviewNote,
		},
	})
}
