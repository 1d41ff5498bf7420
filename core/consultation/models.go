package consultation

import (
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/wednesdev-id/semindo-grow-hub-sub003/core"
)

// Booking statuses
const (
	StatusPending   = "pending"
	StatusApproved  = "approved"
	StatusRejected  = "rejected"
	StatusCancelled = "cancelled"
	StatusCompleted = "completed"
)

// SlotAvailable is the status of every generated slot.
const SlotAvailable = "available"

// ActiveStatuses are the booking statuses holding a slot.
var ActiveStatuses = []string{StatusPending, StatusApproved}

var transitions = map[string]map[string]bool{
	StatusPending:  {StatusApproved: true, StatusRejected: true, StatusCancelled: true},
	StatusApproved: {StatusCancelled: true, StatusCompleted: true},
}

// CanTransition reports whether a booking may move from one status to another.
func CanTransition(from, to string) bool {
	return transitions[from][to]
}

func isActive(status string) bool {
	return status == StatusPending || status == StatusApproved
}

type Consultant struct {
	ID            string          `json:"id"`
	UserID        string          `json:"user_id"`
	Name          string          `json:"name"`
	Title         string          `json:"title"`
	Expertise     []string        `json:"expertise"`
	Bio           string          `json:"bio"`
	HourlyRate    decimal.Decimal `json:"hourly_rate"`
	IsActive      bool            `json:"is_active"`
	AverageRating float64         `json:"average_rating"`
	ReviewCount   int             `json:"review_count"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

// AvailabilityRule opens a daily window, either on one Date or every DayOfWeek (0 = Sunday).
type AvailabilityRule struct {
	ID           string    `json:"id"`
	ConsultantID string    `json:"consultant_id"`
	IsRecurring  bool      `json:"is_recurring"`
	DayOfWeek    *int      `json:"day_of_week"`
	Date         string    `json:"date"`       // YYYY-MM-DD, one-off rules only
	StartTime    string    `json:"start_time"` // HH:MM
	EndTime      string    `json:"end_time"`   // HH:MM
	CreatedAt    time.Time `json:"created_at"`
}

// matches reports whether the rule applies to the given day.
func (r AvailabilityRule) matches(day time.Time) bool {
	if r.IsRecurring {
		return r.DayOfWeek != nil && time.Weekday(*r.DayOfWeek) == day.Weekday()
	}
	return r.Date == day.Format(core.DateFormat)
}

type Slot struct {
	Date      string `json:"date"`
	StartTime string `json:"start_time"`
	EndTime   string `json:"end_time"`
	Status    string `json:"status"`
}

type Booking struct {
	ID           string    `json:"id"`
	ConsultantID string    `json:"consultant_id"`
	UserID       string    `json:"user_id"`
	Date         string    `json:"date"`
	StartTime    string    `json:"start_time"`
	EndTime      string    `json:"end_time"`
	Topic        string    `json:"topic"`
	Notes        string    `json:"notes"`
	Status       string    `json:"status"`
	MeetingURL   string    `json:"meeting_url"`
	Reason       string    `json:"reason"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

type Review struct {
	ID           string    `json:"id"`
	BookingID    string    `json:"booking_id"`
	ConsultantID string    `json:"consultant_id"`
	UserID       string    `json:"user_id"`
	Rating       int       `json:"rating"`
	Comment      string    `json:"comment"`
	CreatedAt    time.Time `json:"created_at"`
}

// ConsultantInput is used both to create and to replace a Consultant.
type ConsultantInput struct {
	UserID     string          `json:"user_id" validate:"required"`
	Name       string          `json:"name" validate:"required,max=200"`
	Title      string          `json:"title" validate:"max=200"`
	Expertise  []string        `json:"expertise" validate:"min=1"`
	Bio        string          `json:"bio"`
	HourlyRate decimal.Decimal `json:"hourly_rate" validate:"gte=0"`
	IsActive   *bool           `json:"is_active"`
}

func (in *ConsultantInput) Validate(validate *validator.Validate) error {
	in.UserID = core.CleanString(in.UserID)
	in.Name = core.CleanString(in.Name)
	in.Title = core.CleanString(in.Title)
	in.Expertise = core.CleanStrings(in.Expertise, true /* lower */)
	in.Bio = core.CleanString(in.Bio)
	return validate.Struct(in)
}

type RuleInput struct {
	IsRecurring bool   `json:"is_recurring"`
	DayOfWeek   *int   `json:"day_of_week" validate:"omitempty,min=0,max=6"`
	Date        string `json:"date" validate:"omitempty,isodate"`
	StartTime   string `json:"start_time" validate:"required,hhmm"`
	EndTime     string `json:"end_time" validate:"required,hhmm"`
}

func (in *RuleInput) Validate(validate *validator.Validate) error {
	in.Date = core.CleanString(in.Date)
	in.StartTime = core.CleanString(in.StartTime)
	in.EndTime = core.CleanString(in.EndTime)

	if err := validate.Struct(in); err != nil {
		return err
	}
	if in.IsRecurring {
		if in.DayOfWeek == nil {
			return core.NewFieldValidationError("day_of_week", "required for recurring rules")
		}
		if in.Date != "" {
			return core.NewFieldValidationError("date", "not allowed for recurring rules")
		}
	} else {
		if in.Date == "" {
			return core.NewFieldValidationError("date", "required for one-off rules")
		}
		if in.DayOfWeek != nil {
			return core.NewFieldValidationError("day_of_week", "not allowed for one-off rules")
		}
	}
	start, _ := core.ParseClock(in.StartTime)
	end, _ := core.ParseClock(in.EndTime)
	if start >= end {
		return core.NewFieldValidationError("end_time", "must be after start_time")
	}
	return nil
}

type NewBooking struct {
	Date      string `json:"date" validate:"required,isodate"`
	StartTime string `json:"start_time" validate:"required,hhmm"`
	Topic     string `json:"topic" validate:"required,max=200"`
	Notes     string `json:"notes"`
}

func (nb *NewBooking) Validate(validate *validator.Validate) error {
	nb.Date = core.CleanString(nb.Date)
	nb.StartTime = core.CleanString(nb.StartTime)
	nb.Topic = core.CleanString(nb.Topic)
	nb.Notes = core.CleanString(nb.Notes)
	return validate.Struct(nb)
}

// StatusChange carries the optional data of a booking transition.
type StatusChange struct {
	MeetingURL string `json:"meeting_url" validate:"omitempty,url"`
	Reason     string `json:"reason"`
}

func (sc *StatusChange) Validate(validate *validator.Validate) error {
	sc.MeetingURL = core.CleanString(sc.MeetingURL)
	sc.Reason = core.CleanString(sc.Reason)
	return validate.Struct(sc)
}

type NewReview struct {
	Rating  int    `json:"rating" validate:"required,min=1,max=5"`
	Comment string `json:"comment"`
}

func (nr *NewReview) Validate(validate *validator.Validate) error {
	nr.Comment = core.CleanString(nr.Comment)
	return validate.Struct(nr)
}

type ConsultantFilter struct {
	Expertise string `query:"expertise"`
	Search    string `query:"search"`
	Active    *bool  `query:"active"`
}

func (f *ConsultantFilter) Clean() {
	f.Expertise = core.CleanString(f.Expertise, true /* lower */)
	f.Search = core.CleanString(f.Search)
}

type BookingFilter struct {
	ConsultantID string `query:"consultant"`
	UserID       string `query:"user"`
	Status       string `query:"status"`
	DateFrom     string `query:"date_from"`
	DateTo       string `query:"date_to"`

	// ParticipantID restricts to bookings made by the user or held by the user as consultant.
	ParticipantID string `query:"-"`
}

func (f *BookingFilter) Clean() {
	f.ConsultantID = core.CleanString(f.ConsultantID)
	f.UserID = core.CleanString(f.UserID)
	f.Status = core.CleanString(f.Status, true /* lower */)
	f.DateFrom = core.CleanString(f.DateFrom)
	f.DateTo = core.CleanString(f.DateTo)
}
