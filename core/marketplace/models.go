package marketplace

import (
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/wednesdev-id/semindo-grow-hub-sub003/core"
)

// Listing statuses
const (
	StatusDraft         = "draft"
	StatusPendingReview = "pending_review"
	StatusPublished     = "published"
	StatusRejected      = "rejected"
	StatusArchived      = "archived"
)

const DefaultCurrency = "IDR"

type Listing struct {
	ID             string          `json:"id"`
	ProfileID      string          `json:"profile_id"`
	OwnerID        string          `json:"owner_id"`
	Title          string          `json:"title"`
	Slug           string          `json:"slug"`
	Description    string          `json:"description"`
	Category       string          `json:"category"`
	Price          decimal.Decimal `json:"price"`
	Currency       string          `json:"currency"`
	Stock          int             `json:"stock"`
	Unit           string          `json:"unit"`
	Status         string          `json:"status"`
	ModerationNote string          `json:"moderation_note"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

// ListingInput is used both to create and to replace a Listing.
type ListingInput struct {
	Title       string          `json:"title" validate:"required,max=200"`
	Description string          `json:"description"`
	Category    string          `json:"category" validate:"required,max=100"`
	Price       decimal.Decimal `json:"price" validate:"gt=0"`
	Currency    string          `json:"currency" validate:"omitempty,len=3,alpha"`
	Stock       int             `json:"stock" validate:"gte=0"`
	Unit        string          `json:"unit" validate:"max=30"`
}

func (in *ListingInput) Validate(validate *validator.Validate) error {
	in.Title = core.CleanString(in.Title)
	in.Description = core.CleanString(in.Description)
	in.Category = core.CleanString(in.Category, true /* lower */)
	in.Currency = core.CleanString(in.Currency)
	in.Unit = core.CleanString(in.Unit)
	if in.Currency == "" {
		in.Currency = DefaultCurrency
	}
	return validate.Struct(in)
}

func (in ListingInput) apply(l *Listing) {
	l.Title = in.Title
	l.Description = in.Description
	l.Category = in.Category
	l.Price = in.Price
	l.Currency = in.Currency
	l.Stock = in.Stock
	l.Unit = in.Unit
}

type Moderation struct {
	Note string `json:"note" validate:"required"`
}

func (m *Moderation) Validate(validate *validator.Validate) error {
	m.Note = core.CleanString(m.Note)
	return validate.Struct(m)
}

type QueryFilter struct {
	Category string `query:"category"`
	MinPrice string `query:"min_price"`
	MaxPrice string `query:"max_price"`
	Search   string `query:"search"`
	Province string `query:"province"`

	Status  string          `query:"-"`
	OwnerID string          `query:"-"`
	Min     decimal.Decimal `query:"-"`
	Max     decimal.Decimal `query:"-"`
}

// Clean normalizes the filter and parses the price bounds into Min and Max.
func (qf *QueryFilter) Clean() error {
	qf.Category = core.CleanString(qf.Category, true /* lower */)
	qf.Search = core.CleanString(qf.Search)
	qf.Province = core.CleanString(qf.Province)

	var err error
	if qf.MinPrice = core.CleanString(qf.MinPrice); qf.MinPrice != "" {
		if qf.Min, err = decimal.NewFromString(qf.MinPrice); err != nil {
			return core.NewFieldValidationError("min_price", "must be a number")
		}
	}
	if qf.MaxPrice = core.CleanString(qf.MaxPrice); qf.MaxPrice != "" {
		if qf.Max, err = decimal.NewFromString(qf.MaxPrice); err != nil {
			return core.NewFieldValidationError("max_price", "must be a number")
		}
	}
	return nil
}
