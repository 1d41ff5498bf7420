package consultation

import (
	"context"
	"net/mail"
	"time"

	"github.com/pkg/errors"

	"github.com/wednesdev-id/semindo-grow-hub-sub003/core"
	"github.com/wednesdev-id/semindo-grow-hub-sub003/core/audit"
	"github.com/wednesdev-id/semindo-grow-hub-sub003/core/user"
)

// Permission codes checked by this package
const (
	PermManage  = "consultations:manage"
	PermBook    = "consultations:book"
	PermRespond = "consultations:respond"
)

var (
	// errors
	ErrNotFound           = core.NewNotFoundError("consultant")
	ErrRuleNotFound       = core.NewNotFoundError("availability rule")
	ErrBookingNotFound    = core.NewNotFoundError("booking")
	ErrConsultantExists   = core.NewConflictError("this user already has a consultant profile")
	ErrConsultantInactive = core.NewConflictError("consultant is not active")
	ErrSlotTaken          = core.NewConflictError("this slot is already booked")
	ErrInvalidTransition  = core.NewConflictError("booking status does not allow this operation")
	ErrAlreadyReviewed    = core.NewConflictError("this booking has already been reviewed")
	ErrSlotUnavailable    = errors.New("the requested time is not an available slot")
	ErrRangeTooLong       = errors.New("date range is too long")
)

type (
	Repository interface {
		CreateConsultant(ctx context.Context, c Consultant, exec ...core.DBExecutor) (Consultant, error)
		GetConsultant(ctx context.Context, id string, exec ...core.DBExecutor) (Consultant, error)
		GetConsultantByUser(ctx context.Context, userID string, exec ...core.DBExecutor) (Consultant, error)
		UpdateConsultant(ctx context.Context, c Consultant, exec ...core.DBExecutor) (Consultant, error)
		UpdateConsultantRating(ctx context.Context, id string, avg float64, count int, exec ...core.DBExecutor) error
		QueryConsultants(ctx context.Context, filter ConsultantFilter, ordering []core.DBOrdering, page core.Pagination, exec ...core.DBExecutor) ([]Consultant, error)

		CreateRule(ctx context.Context, r AvailabilityRule, exec ...core.DBExecutor) (AvailabilityRule, error)
		GetRule(ctx context.Context, id string, exec ...core.DBExecutor) (AvailabilityRule, error)
		ListRules(ctx context.Context, consultantID string, exec ...core.DBExecutor) ([]AvailabilityRule, error)
		DeleteRule(ctx context.Context, id string, exec ...core.DBExecutor) error

		// CreateBooking returns ErrSlotTaken when an active booking of the consultant overlaps b.
		CreateBooking(ctx context.Context, b Booking, exec ...core.DBExecutor) (Booking, error)
		GetBooking(ctx context.Context, id string, exec ...core.DBExecutor) (Booking, error)
		UpdateBooking(ctx context.Context, b Booking, exec ...core.DBExecutor) (Booking, error)
		QueryBookings(ctx context.Context, filter BookingFilter, page core.Pagination, exec ...core.DBExecutor) ([]Booking, error)
		// ListActiveBookings returns the pending and approved bookings of a consultant between two dates, inclusive.
		ListActiveBookings(ctx context.Context, consultantID, dateFrom, dateTo string, exec ...core.DBExecutor) ([]Booking, error)

		// CreateReview returns ErrAlreadyReviewed when the booking already has a review.
		CreateReview(ctx context.Context, r Review, exec ...core.DBExecutor) (Review, error)
		ListReviews(ctx context.Context, consultantID string, exec ...core.DBExecutor) ([]Review, error)
	}

	UserFinder interface {
		GetByID(ctx context.Context, id string) (user.User, error)
	}

	Service interface {
		CreateConsultant(ctx context.Context, actor core.Actor, in ConsultantInput) (Consultant, error)
		UpdateConsultant(ctx context.Context, actor core.Actor, id string, in ConsultantInput) (Consultant, error)
		GetConsultant(ctx context.Context, id string) (Consultant, error)
		QueryConsultants(ctx context.Context, filter ConsultantFilter, ordering []core.DBOrdering, page core.Pagination) ([]Consultant, error)

		AddRule(ctx context.Context, actor core.Actor, consultantID string, in RuleInput) (AvailabilityRule, error)
		ListRules(ctx context.Context, consultantID string) ([]AvailabilityRule, error)
		DeleteRule(ctx context.Context, actor core.Actor, consultantID, ruleID string) error

		// GenerateSlots returns the free slots of a consultant between two dates (YYYY-MM-DD), inclusive.
		GenerateSlots(ctx context.Context, consultantID, from, to string) ([]Slot, error)

		Book(ctx context.Context, actor core.Actor, consultantID string, nb NewBooking) (Booking, error)
		GetBooking(ctx context.Context, actor core.Actor, id string) (Booking, error)
		ListBookings(ctx context.Context, actor core.Actor, filter BookingFilter, page core.Pagination) ([]Booking, error)
		Approve(ctx context.Context, actor core.Actor, id string, sc StatusChange) (Booking, error)
		Reject(ctx context.Context, actor core.Actor, id string, sc StatusChange) (Booking, error)
		Cancel(ctx context.Context, actor core.Actor, id string, sc StatusChange) (Booking, error)
		Complete(ctx context.Context, actor core.Actor, id string) (Booking, error)

		Review(ctx context.Context, actor core.Actor, bookingID string, nr NewReview) (Review, error)
		ListReviews(ctx context.Context, consultantID string) ([]Review, error)
	}

	service struct {
		repo    Repository
		users   UserFinder
		mailSvc core.EmailService
		audit   audit.Recorder
		conf    core.BookingConfig
	}
)

var nowFunc = time.Now // mockable

var _ Service = (*service)(nil)

func NewService(repo Repository, users UserFinder, mailSvc core.EmailService, recorder audit.Recorder, conf *core.Config) Service {
	return &service{
		repo:    repo,
		users:   users,
		mailSvc: mailSvc,
		audit:   recorder,
		conf:    conf.Booking,
	}
}

// Consultants

func (svc *service) CreateConsultant(ctx context.Context, actor core.Actor, in ConsultantInput) (Consultant, error) {
	if !actor.Can(PermManage) {
		return Consultant{}, core.ErrForbidden
	}
	if _, err := svc.users.GetByID(ctx, in.UserID); err != nil {
		if errors.Cause(err) == user.ErrNotFound {
			return Consultant{}, core.NewFieldValidationError("user_id", "unknown user")
		}
		return Consultant{}, err
	}
	if _, err := svc.repo.GetConsultantByUser(ctx, in.UserID); err == nil {
		return Consultant{}, ErrConsultantExists
	} else if errors.Cause(err) != ErrNotFound {
		return Consultant{}, err
	}

	now := time.Now().UTC()
	c := Consultant{
		UserID:     in.UserID,
		Name:       in.Name,
		Title:      in.Title,
		Expertise:  in.Expertise,
		Bio:        in.Bio,
		HourlyRate: in.HourlyRate,
		IsActive:   in.IsActive == nil || *in.IsActive,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	c, err := svc.repo.CreateConsultant(ctx, c)
	if err != nil {
		return Consultant{}, errors.Wrap(err, "creating consultant")
	}
	svc.audit.Record(ctx, audit.Entry{Action: audit.ActionCreate, Resource: "consultant", ResourceID: c.ID})
	return c, nil
}

func (svc *service) UpdateConsultant(ctx context.Context, actor core.Actor, id string, in ConsultantInput) (Consultant, error) {
	c, err := svc.repo.GetConsultant(ctx, id)
	if err != nil {
		return Consultant{}, err
	}
	manager := actor.Can(PermManage)
	if !manager && c.UserID != actor.ID {
		return Consultant{}, core.ErrForbidden
	}

	c.Name = in.Name
	c.Title = in.Title
	c.Expertise = in.Expertise
	c.Bio = in.Bio
	c.HourlyRate = in.HourlyRate
	if manager && in.IsActive != nil {
		c.IsActive = *in.IsActive
	}
	c.UpdatedAt = time.Now().UTC()

	if c, err = svc.repo.UpdateConsultant(ctx, c); err != nil {
		return Consultant{}, errors.Wrap(err, "updating consultant")
	}
	svc.audit.Record(ctx, audit.Entry{Action: audit.ActionUpdate, Resource: "consultant", ResourceID: c.ID})
	return c, nil
}

func (svc *service) GetConsultant(ctx context.Context, id string) (Consultant, error) {
	return svc.repo.GetConsultant(ctx, id)
}

func (svc *service) QueryConsultants(ctx context.Context, filter ConsultantFilter, ordering []core.DBOrdering, page core.Pagination) ([]Consultant, error) {
	filter.Clean()
	page.Clean()
	return svc.repo.QueryConsultants(ctx, filter, ordering, page)
}

// Availability

// manageable returns the consultant when the actor is that consultant or a manager.
func (svc *service) manageable(ctx context.Context, actor core.Actor, consultantID string) (Consultant, error) {
	c, err := svc.repo.GetConsultant(ctx, consultantID)
	if err != nil {
		return Consultant{}, err
	}
	if c.UserID != actor.ID && !actor.Can(PermManage) {
		return Consultant{}, core.ErrForbidden
	}
	return c, nil
}

func (svc *service) AddRule(ctx context.Context, actor core.Actor, consultantID string, in RuleInput) (AvailabilityRule, error) {
	c, err := svc.manageable(ctx, actor, consultantID)
	if err != nil {
		return AvailabilityRule{}, err
	}
	rule := AvailabilityRule{
		ConsultantID: c.ID,
		IsRecurring:  in.IsRecurring,
		StartTime:    in.StartTime,
		EndTime:      in.EndTime,
		CreatedAt:    time.Now().UTC(),
	}
	if in.IsRecurring {
		dow := *in.DayOfWeek
		rule.DayOfWeek = &dow
	} else {
		rule.Date = in.Date
	}
	if rule, err = svc.repo.CreateRule(ctx, rule); err != nil {
		return AvailabilityRule{}, errors.Wrap(err, "creating rule")
	}
	svc.audit.Record(ctx, audit.Entry{
		Action:     audit.ActionCreate,
		Resource:   "availability_rule",
		ResourceID: rule.ID,
		Metadata:   map[string]interface{}{"consultant_id": c.ID},
	})
	return rule, nil
}

func (svc *service) ListRules(ctx context.Context, consultantID string) ([]AvailabilityRule, error) {
	if _, err := svc.repo.GetConsultant(ctx, consultantID); err != nil {
		return nil, err
	}
	return svc.repo.ListRules(ctx, consultantID)
}

func (svc *service) DeleteRule(ctx context.Context, actor core.Actor, consultantID, ruleID string) error {
	c, err := svc.manageable(ctx, actor, consultantID)
	if err != nil {
		return err
	}
	rule, err := svc.repo.GetRule(ctx, ruleID)
	if err != nil {
		return err
	}
	if rule.ConsultantID != c.ID {
		return ErrRuleNotFound
	}
	if err = svc.repo.DeleteRule(ctx, rule.ID); err != nil {
		return errors.Wrap(err, "deleting rule")
	}
	svc.audit.Record(ctx, audit.Entry{Action: audit.ActionDelete, Resource: "availability_rule", ResourceID: rule.ID})
	return nil
}

// Slots

func (svc *service) parseRange(from, to string) (time.Time, time.Time, error) {
	fromDate, err := core.ParseDate(from)
	if err != nil {
		return time.Time{}, time.Time{}, core.NewFieldValidationError("from", "must be a date in YYYY-MM-DD format")
	}
	toDate, err := core.ParseDate(to)
	if err != nil {
		return time.Time{}, time.Time{}, core.NewFieldValidationError("to", "must be a date in YYYY-MM-DD format")
	}
	if toDate.Before(fromDate) {
		return time.Time{}, time.Time{}, core.NewFieldValidationError("to", "must not be before from")
	}
	days := int(toDate.Sub(fromDate).Hours()/24) + 1
	if svc.conf.MaxRangeDays > 0 && days > svc.conf.MaxRangeDays {
		return time.Time{}, time.Time{}, core.NewValidationError(ErrRangeTooLong,
			core.FieldError{Field: "to", Error: ErrRangeTooLong.Error()})
	}
	return fromDate, toDate, nil
}

func (svc *service) slotDuration() time.Duration {
	if svc.conf.SlotDuration > 0 {
		return svc.conf.SlotDuration
	}
	return time.Hour
}

func (svc *service) GenerateSlots(ctx context.Context, consultantID, from, to string) ([]Slot, error) {
	fromDate, toDate, err := svc.parseRange(from, to)
	if err != nil {
		return nil, err
	}
	if _, err = svc.repo.GetConsultant(ctx, consultantID); err != nil {
		return nil, err
	}
	rules, err := svc.repo.ListRules(ctx, consultantID)
	if err != nil {
		return nil, errors.Wrap(err, "listing rules")
	}
	bookings, err := svc.repo.ListActiveBookings(ctx, consultantID,
		fromDate.Format(core.DateFormat), toDate.Format(core.DateFormat))
	if err != nil {
		return nil, errors.Wrap(err, "listing bookings")
	}
	return GenerateSlots(rules, bookings, fromDate, toDate, svc.slotDuration()), nil
}

// Bookings

func (svc *service) Book(ctx context.Context, actor core.Actor, consultantID string, nb NewBooking) (Booking, error) {
	if !actor.Can(PermBook) {
		return Booking{}, core.ErrForbidden
	}
	c, err := svc.repo.GetConsultant(ctx, consultantID)
	if err != nil {
		return Booking{}, err
	}
	if !c.IsActive {
		return Booking{}, ErrConsultantInactive
	}
	if c.UserID == actor.ID {
		return Booking{}, core.NewFieldValidationError("consultant_id", "you cannot book yourself")
	}

	date, _ := core.ParseDate(nb.Date)
	start, _ := core.ParseClock(nb.StartTime)
	if !date.Add(time.Duration(start) * time.Minute).After(nowFunc().UTC()) {
		return Booking{}, core.NewFieldValidationError("start_time", "cannot book a slot in the past")
	}

	slots, err := svc.GenerateSlots(ctx, c.ID, nb.Date, nb.Date)
	if err != nil {
		return Booking{}, err
	}
	var slot *Slot
	for i := range slots {
		if slots[i].StartTime == nb.StartTime {
			slot = &slots[i]
			break
		}
	}
	if slot == nil {
		return Booking{}, core.NewValidationError(ErrSlotUnavailable,
			core.FieldError{Field: "start_time", Error: ErrSlotUnavailable.Error()})
	}

	now := nowFunc().UTC()
	b, err := svc.repo.CreateBooking(ctx, Booking{
		ConsultantID: c.ID,
		UserID:       actor.ID,
		Date:         slot.Date,
		StartTime:    slot.StartTime,
		EndTime:      slot.EndTime,
		Topic:        nb.Topic,
		Notes:        nb.Notes,
		Status:       StatusPending,
		CreatedAt:    now,
		UpdatedAt:    now,
	})
	if err != nil {
		if errors.Cause(err) == ErrSlotTaken {
			return Booking{}, ErrSlotTaken
		}
		return Booking{}, errors.Wrap(err, "creating booking")
	}
	svc.audit.Record(ctx, audit.Entry{
		Action:     audit.ActionCreate,
		Resource:   "booking",
		ResourceID: b.ID,
		Metadata:   map[string]interface{}{"consultant_id": c.ID, "date": b.Date, "start_time": b.StartTime},
	})
	return b, nil
}

// participant reports whether the actor made the booking, holds it as consultant, or manages consultations.
func (svc *service) participant(ctx context.Context, actor core.Actor, b Booking) (booker, consultant, manager bool, err error) {
	booker = b.UserID == actor.ID
	manager = actor.Can(PermManage)
	c, err := svc.repo.GetConsultant(ctx, b.ConsultantID)
	if err != nil {
		return false, false, false, errors.Wrap(err, "getting consultant")
	}
	consultant = c.UserID == actor.ID
	return booker, consultant, manager, nil
}

func (svc *service) GetBooking(ctx context.Context, actor core.Actor, id string) (Booking, error) {
	b, err := svc.repo.GetBooking(ctx, id)
	if err != nil {
		return Booking{}, err
	}
	booker, consultant, manager, err := svc.participant(ctx, actor, b)
	if err != nil {
		return Booking{}, err
	}
	if !booker && !consultant && !manager {
		return Booking{}, ErrBookingNotFound
	}
	return b, nil
}

func (svc *service) ListBookings(ctx context.Context, actor core.Actor, filter BookingFilter, page core.Pagination) ([]Booking, error) {
	filter.Clean()
	if !actor.Can(PermManage) {
		filter.ParticipantID = actor.ID
	}
	page.Clean()
	return svc.repo.QueryBookings(ctx, filter, page)
}

// transition moves a booking to a new status once allowed reports the actor may do it.
func (svc *service) transition(
	ctx context.Context, actor core.Actor, id, to string, sc StatusChange,
	allowed func(booker, consultant, manager bool) bool,
) (Booking, error) {
	b, err := svc.repo.GetBooking(ctx, id)
	if err != nil {
		return Booking{}, err
	}
	booker, consultant, manager, err := svc.participant(ctx, actor, b)
	if err != nil {
		return Booking{}, err
	}
	if !booker && !consultant && !manager {
		return Booking{}, ErrBookingNotFound
	}
	if !allowed(booker, consultant, manager) {
		return Booking{}, core.ErrForbidden
	}
	if !CanTransition(b.Status, to) {
		return Booking{}, ErrInvalidTransition
	}

	from := b.Status
	b.Status = to
	if sc.MeetingURL != "" {
		b.MeetingURL = sc.MeetingURL
	}
	if sc.Reason != "" {
		b.Reason = sc.Reason
	}
	b.UpdatedAt = time.Now().UTC()
	if b, err = svc.repo.UpdateBooking(ctx, b); err != nil {
		return Booking{}, errors.Wrap(err, "updating booking")
	}
	svc.audit.Record(ctx, audit.Entry{
		Action:     to,
		Resource:   "booking",
		ResourceID: b.ID,
		Metadata:   map[string]interface{}{"from": from, "to": to},
	})
	return b, nil
}

func respondent(_, consultant, manager bool) bool { return consultant || manager }

func (svc *service) Approve(ctx context.Context, actor core.Actor, id string, sc StatusChange) (Booking, error) {
	if sc.MeetingURL == "" {
		return Booking{}, core.NewFieldValidationError("meeting_url", "this field is required")
	}
	b, err := svc.transition(ctx, actor, id, StatusApproved, sc, respondent)
	if err != nil {
		return Booking{}, err
	}
	svc.notify(ctx, b)
	return b, nil
}

func (svc *service) Reject(ctx context.Context, actor core.Actor, id string, sc StatusChange) (Booking, error) {
	if sc.Reason == "" {
		return Booking{}, core.NewFieldValidationError("reason", "this field is required")
	}
	b, err := svc.transition(ctx, actor, id, StatusRejected, sc, respondent)
	if err != nil {
		return Booking{}, err
	}
	svc.notify(ctx, b)
	return b, nil
}

func (svc *service) Cancel(ctx context.Context, actor core.Actor, id string, sc StatusChange) (Booking, error) {
	sc.MeetingURL = ""
	return svc.transition(ctx, actor, id, StatusCancelled, sc, func(booker, consultant, manager bool) bool {
		return booker || consultant || manager
	})
}

func (svc *service) Complete(ctx context.Context, actor core.Actor, id string) (Booking, error) {
	return svc.transition(ctx, actor, id, StatusCompleted, StatusChange{}, respondent)
}

// notify mails the booker about the new status of the booking.
func (svc *service) notify(ctx context.Context, b Booking) {
	booker, err := svc.users.GetByID(ctx, b.UserID)
	if err != nil || booker.Email == "" {
		return
	}
	var consultantName string
	if c, err := svc.repo.GetConsultant(ctx, b.ConsultantID); err == nil {
		consultantName = c.Name
	}
	svc.mailSvc.SendMessages(&core.EmailMessage{
		To:           []mail.Address{{Name: booker.Name, Address: booker.Email}},
		Subject:      "Your consultation booking was " + b.Status,
		TemplateName: "booking_status",
		TemplateData: map[string]interface{}{
			"ConsultantName": consultantName,
			"Date":           b.Date,
			"StartTime":      b.StartTime,
			"Status":         b.Status,
			"MeetingURL":     b.MeetingURL,
			"Reason":         b.Reason,
			"BookingID":      b.ID,
		},
	})
}

// Reviews

func (svc *service) Review(ctx context.Context, actor core.Actor, bookingID string, nr NewReview) (Review, error) {
	b, err := svc.repo.GetBooking(ctx, bookingID)
	if err != nil {
		return Review{}, err
	}
	if b.UserID != actor.ID {
		return Review{}, core.ErrForbidden
	}
	if b.Status != StatusCompleted {
		return Review{}, ErrInvalidTransition
	}

	r, err := svc.repo.CreateReview(ctx, Review{
		BookingID:    b.ID,
		ConsultantID: b.ConsultantID,
		UserID:       actor.ID,
		Rating:       nr.Rating,
		Comment:      nr.Comment,
		CreatedAt:    time.Now().UTC(),
	})
	if err != nil {
		if errors.Cause(err) == ErrAlreadyReviewed {
			return Review{}, ErrAlreadyReviewed
		}
		return Review{}, errors.Wrap(err, "creating review")
	}

	if err = svc.recomputeRating(ctx, b.ConsultantID); err != nil {
		return Review{}, err
	}
	svc.audit.Record(ctx, audit.Entry{
		Action:     audit.ActionCreate,
		Resource:   "review",
		ResourceID: r.ID,
		Metadata:   map[string]interface{}{"booking_id": b.ID, "rating": r.Rating},
	})
	return r, nil
}

// recomputeRating sets the consultant rating to the mean of all its reviews.
func (svc *service) recomputeRating(ctx context.Context, consultantID string) error {
	reviews, err := svc.repo.ListReviews(ctx, consultantID)
	if err != nil {
		return errors.Wrap(err, "listing reviews")
	}
	avg, count := AverageRating(reviews)
	return errors.Wrap(svc.repo.UpdateConsultantRating(ctx, consultantID, avg, count), "updating rating")
}

// AverageRating returns the mean rating rounded to 2 decimals, and the number of reviews.
func AverageRating(reviews []Review) (float64, int) {
	if len(reviews) == 0 {
		return 0, 0
	}
	var sum int
	for _, r := range reviews {
		sum += r.Rating
	}
	return core.Round2(float64(sum) / float64(len(reviews))), len(reviews)
}

func (svc *service) ListReviews(ctx context.Context, consultantID string) ([]Review, error) {
	if _, err := svc.repo.GetConsultant(ctx, consultantID); err != nil {
		return nil, err
	}
	return svc.repo.ListReviews(ctx, consultantID)
}
