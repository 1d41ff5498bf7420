package financing

import (
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/wednesdev-id/semindo-grow-hub-sub003/core"
)

// Partner kinds
const (
	KindBank        = "bank"
	KindCooperative = "cooperative"
	KindFintech     = "fintech"
	KindVenture     = "venture"
	KindGovernment  = "government"
)

// Application statuses
const (
	StatusSubmitted   = "submitted"
	StatusUnderReview = "under_review"
	StatusApproved    = "approved"
	StatusRejected    = "rejected"
	StatusWithdrawn   = "withdrawn"
)

type Partner struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Kind         string    `json:"kind"`
	Description  string    `json:"description"`
	Website      string    `json:"website"`
	ContactEmail string    `json:"contact_email"`
	ContactPhone string    `json:"contact_phone"`
	IsActive     bool      `json:"is_active"`
	Products     []Product `json:"products"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

type Product struct {
	ID             string          `json:"id"`
	PartnerID      string          `json:"partner_id"`
	Name           string          `json:"name"`
	Description    string          `json:"description"`
	MinAmount      decimal.Decimal `json:"min_amount"`
	MaxAmount      decimal.Decimal `json:"max_amount"`
	InterestRate   decimal.Decimal `json:"interest_rate"` // annual, percent
	MinTenorMonths int             `json:"min_tenor_months"`
	MaxTenorMonths int             `json:"max_tenor_months"`
	Requirements   []string        `json:"requirements"`
	IsActive       bool            `json:"is_active"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

type Application struct {
	ID                 string          `json:"id"`
	ProductID          string          `json:"product_id"`
	ProfileID          string          `json:"profile_id"`
	UserID             string          `json:"user_id"`
	Amount             decimal.Decimal `json:"amount"`
	TenorMonths        int             `json:"tenor_months"`
	Purpose            string          `json:"purpose"`
	Status             string          `json:"status"`
	ReviewNote         string          `json:"review_note"`
	MonthlyInstallment decimal.Decimal `json:"monthly_installment"`
	CreatedAt          time.Time       `json:"created_at"`
	UpdatedAt          time.Time       `json:"updated_at"`
}

type Estimate struct {
	ProductID          string          `json:"product_id"`
	Amount             decimal.Decimal `json:"amount"`
	TenorMonths        int             `json:"tenor_months"`
	InterestRate       decimal.Decimal `json:"interest_rate"`
	MonthlyInstallment decimal.Decimal `json:"monthly_installment"`
	TotalPayment       decimal.Decimal `json:"total_payment"`
	TotalInterest      decimal.Decimal `json:"total_interest"`
}

type PartnerInput struct {
	Name         string `json:"name" validate:"required,max=200"`
	Kind         string `json:"kind" validate:"required,oneof=bank cooperative fintech venture government"`
	Description  string `json:"description"`
	Website      string `json:"website" validate:"omitempty,url"`
	ContactEmail string `json:"contact_email" validate:"omitempty,email"`
	ContactPhone string `json:"contact_phone" validate:"omitempty,max=20"`
	IsActive     *bool  `json:"is_active"`
}

func (in *PartnerInput) Validate(validate *validator.Validate) error {
	in.Name = core.CleanString(in.Name)
	in.Kind = core.CleanString(in.Kind, true /* lower */)
	in.Description = core.CleanString(in.Description)
	in.Website = core.CleanString(in.Website)
	in.ContactEmail = core.CleanString(in.ContactEmail, true /* lower */)
	in.ContactPhone = core.CleanString(in.ContactPhone)
	return validate.Struct(in)
}

func (in PartnerInput) apply(p *Partner) {
	p.Name = in.Name
	p.Kind = in.Kind
	p.Description = in.Description
	p.Website = in.Website
	p.ContactEmail = in.ContactEmail
	p.ContactPhone = in.ContactPhone
	if in.IsActive != nil {
		p.IsActive = *in.IsActive
	}
}

type ProductInput struct {
	Name           string          `json:"name" validate:"required,max=200"`
	Description    string          `json:"description"`
	MinAmount      decimal.Decimal `json:"min_amount" validate:"gt=0"`
	MaxAmount      decimal.Decimal `json:"max_amount" validate:"gt=0"`
	InterestRate   decimal.Decimal `json:"interest_rate" validate:"gte=0,lte=100"`
	MinTenorMonths int             `json:"min_tenor_months" validate:"gte=1"`
	MaxTenorMonths int             `json:"max_tenor_months" validate:"gtefield=MinTenorMonths,lte=360"`
	Requirements   []string        `json:"requirements"`
	IsActive       *bool           `json:"is_active"`
}

func (in *ProductInput) Validate(validate *validator.Validate) error {
	in.Name = core.CleanString(in.Name)
	in.Description = core.CleanString(in.Description)
	in.Requirements = core.CleanStrings(in.Requirements)
	if err := validate.Struct(in); err != nil {
		return err
	}
	if in.MaxAmount.LessThan(in.MinAmount) {
		return core.NewFieldValidationError("max_amount", "must not be less than min_amount")
	}
	return nil
}

func (in ProductInput) apply(p *Product) {
	p.Name = in.Name
	p.Description = in.Description
	p.MinAmount = in.MinAmount
	p.MaxAmount = in.MaxAmount
	p.InterestRate = in.InterestRate
	p.MinTenorMonths = in.MinTenorMonths
	p.MaxTenorMonths = in.MaxTenorMonths
	p.Requirements = in.Requirements
	if in.IsActive != nil {
		p.IsActive = *in.IsActive
	}
}

type NewApplication struct {
	ProductID   string          `json:"product_id" validate:"required"`
	Amount      decimal.Decimal `json:"amount" validate:"gt=0"`
	TenorMonths int             `json:"tenor_months" validate:"gte=1"`
	Purpose     string          `json:"purpose" validate:"required,max=1000"`
}

func (na *NewApplication) Validate(validate *validator.Validate) error {
	na.ProductID = core.CleanString(na.ProductID)
	na.Purpose = core.CleanString(na.Purpose)
	return validate.Struct(na)
}

type Review struct {
	Note string `json:"note"`
}

func (r *Review) Validate(validate *validator.Validate) error {
	r.Note = core.CleanString(r.Note)
	return nil
}

type PartnerFilter struct {
	Kind     string `query:"kind"`
	IsActive *bool  `query:"is_active"`
	Search   string `query:"search"`
}

func (qf *PartnerFilter) Clean() {
	qf.Kind = core.CleanString(qf.Kind, true /* lower */)
	qf.Search = core.CleanString(qf.Search)
}

type ApplicationFilter struct {
	ProductID string `query:"product"`
	PartnerID string `query:"partner"`
	Status    string `query:"status"`

	UserID string `query:"-"`
}

func (qf *ApplicationFilter) Clean() {
	qf.ProductID = core.CleanString(qf.ProductID)
	qf.PartnerID = core.CleanString(qf.PartnerID)
	qf.Status = core.CleanString(qf.Status, true /* lower */)
}
