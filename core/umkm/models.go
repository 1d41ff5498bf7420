package umkm

import (
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/wednesdev-id/semindo-grow-hub-sub003/core"
)

// Business scales, derived from the annual revenue (IDR)
const (
	ScaleMicro  = "micro"
	ScaleSmall  = "small"
	ScaleMedium = "medium"
	ScaleLarge  = "large"
)

// Profile statuses
const (
	StatusDraft    = "draft"
	StatusVerified = "verified"
	StatusRejected = "rejected"
)

var (
	microMaxRevenue  = decimal.New(2, 9)  // 2 billion
	smallMaxRevenue  = decimal.New(15, 9) // 15 billion
	mediumMaxRevenue = decimal.New(50, 9) // 50 billion
)

// ScaleFor classifies a business by its annual revenue.
func ScaleFor(revenue decimal.Decimal) string {
	switch {
	case revenue.LessThanOrEqual(microMaxRevenue):
		return ScaleMicro
	case revenue.LessThanOrEqual(smallMaxRevenue):
		return ScaleSmall
	case revenue.LessThanOrEqual(mediumMaxRevenue):
		return ScaleMedium
	}
	return ScaleLarge
}

type Profile struct {
	ID               string          `json:"id"`
	OwnerID          string          `json:"owner_id"`
	BusinessName     string          `json:"business_name"`
	OwnerName        string          `json:"owner_name"`
	NIB              string          `json:"nib"`
	Sector           string          `json:"sector"`
	Scale            string          `json:"scale"`
	Province         string          `json:"province"`
	City             string          `json:"city"`
	Address          string          `json:"address"`
	Latitude         *float64        `json:"latitude"`
	Longitude        *float64        `json:"longitude"`
	AnnualRevenue    decimal.Decimal `json:"annual_revenue"`
	EmployeeCount    int             `json:"employee_count"`
	FoundedYear      int             `json:"founded_year"`
	Phone            string          `json:"phone"`
	Email            string          `json:"email"`
	Website          string          `json:"website"`
	Description      string          `json:"description"`
	Status           string          `json:"status"`
	VerificationNote string          `json:"verification_note"`
	VerifiedAt       time.Time       `json:"verified_at"`
	CreatedAt        time.Time       `json:"created_at"`
	UpdatedAt        time.Time       `json:"updated_at"`
}

func (p Profile) IsVerified() bool { return p.Status == StatusVerified }

func (p Profile) OwnedBy(userID string) bool { return userID != "" && p.OwnerID == userID }

// ProfileInput is used both to create and to replace a Profile.
type ProfileInput struct {
	BusinessName  string          `json:"business_name" validate:"required,max=200"`
	OwnerName     string          `json:"owner_name" validate:"required,max=200"`
	NIB           string          `json:"nib" validate:"omitempty,numeric,len=13"`
	Sector        string          `json:"sector" validate:"required,max=100"`
	Province      string          `json:"province" validate:"required,max=100"`
	City          string          `json:"city" validate:"required,max=100"`
	Address       string          `json:"address"`
	Latitude      *float64        `json:"latitude" validate:"omitempty,min=-90,max=90"`
	Longitude     *float64        `json:"longitude" validate:"omitempty,min=-180,max=180"`
	AnnualRevenue decimal.Decimal `json:"annual_revenue" validate:"gte=0"`
	EmployeeCount int             `json:"employee_count" validate:"gte=0"`
	FoundedYear   int             `json:"founded_year" validate:"omitempty,min=1900"`
	Phone         string          `json:"phone" validate:"omitempty,max=20"`
	Email         string          `json:"email" validate:"omitempty,email"`
	Website       string          `json:"website" validate:"omitempty,url"`
	Description   string          `json:"description"`
}

func (in *ProfileInput) Validate(validate *validator.Validate) error {
	in.BusinessName = core.CleanString(in.BusinessName)
	in.OwnerName = core.CleanString(in.OwnerName)
	in.NIB = core.CleanString(in.NIB)
	in.Sector = core.CleanString(in.Sector, true /* lower */)
	in.Province = core.CleanString(in.Province)
	in.City = core.CleanString(in.City)
	in.Address = core.CleanString(in.Address)
	in.Phone = core.CleanString(in.Phone)
	in.Email = core.CleanString(in.Email, true /* lower */)
	in.Website = core.CleanString(in.Website)
	in.Description = core.CleanString(in.Description)

	if err := validate.Struct(in); err != nil {
		return err
	}
	if (in.Latitude == nil) != (in.Longitude == nil) {
		return core.NewFieldValidationError("longitude", "latitude and longitude must be given together")
	}
	if in.FoundedYear > time.Now().Year() {
		return core.NewFieldValidationError("founded_year", "cannot be in the future")
	}
	return nil
}

func (in ProfileInput) apply(p *Profile) {
	p.BusinessName = in.BusinessName
	p.OwnerName = in.OwnerName
	p.NIB = in.NIB
	p.Sector = in.Sector
	p.Province = in.Province
	p.City = in.City
	p.Address = in.Address
	p.Latitude = in.Latitude
	p.Longitude = in.Longitude
	p.AnnualRevenue = in.AnnualRevenue
	p.EmployeeCount = in.EmployeeCount
	p.FoundedYear = in.FoundedYear
	p.Phone = in.Phone
	p.Email = in.Email
	p.Website = in.Website
	p.Description = in.Description
	p.Scale = ScaleFor(in.AnnualRevenue)
}

type Rejection struct {
	Note string `json:"note" validate:"required"`
}

func (r *Rejection) Validate(validate *validator.Validate) error {
	r.Note = core.CleanString(r.Note)
	return validate.Struct(r)
}

type QueryFilter struct {
	Search   string `query:"search"`
	Sector   string `query:"sector"`
	Scale    string `query:"scale"`
	Province string `query:"province"`
	Status   string `query:"status"`
	OwnerID  string `query:"-"`
}

func (qf *QueryFilter) Clean() {
	qf.Search = core.CleanString(qf.Search)
	qf.Sector = core.CleanString(qf.Sector, true /* lower */)
	qf.Scale = core.CleanString(qf.Scale, true /* lower */)
	qf.Province = core.CleanString(qf.Province)
	qf.Status = core.CleanString(qf.Status, true /* lower */)
}
