package sqlxrepos

import (
	"context"
	"time"

	"github.com/lib/pq"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/volatiletech/null/v8"

	"github.com/wednesdev-id/semindo-grow-hub-sub003/core"
	"github.com/wednesdev-id/semindo-grow-hub-sub003/core/consultation"
)

const (
	consultantColumns = `id, user_id, name, title, expertise, bio, hourly_rate, is_active, average_rating,
	review_count, created_at, updated_at`
	ruleColumns    = "id, consultant_id, is_recurring, day_of_week, to_char(date, 'YYYY-MM-DD') AS date, start_time, end_time, created_at"
	bookingColumns = `b.id, b.consultant_id, b.user_id, to_char(b.date, 'YYYY-MM-DD') AS date, b.start_time, b.end_time,
	b.topic, b.notes, b.status, b.meeting_url, b.reason, b.created_at, b.updated_at`
	reviewColumns = "id, booking_id, consultant_id, user_id, rating, comment, created_at"
)

var consultantOrderings = map[string]string{
	"name":           "name",
	"hourly_rate":    "hourly_rate",
	"average_rating": "average_rating",
	"review_count":   "review_count",
	"created_at":     "created_at",
}

type consultantRow struct {
	ID            string          `db:"id"`
	UserID        string          `db:"user_id"`
	Name          string          `db:"name"`
	Title         string          `db:"title"`
	Expertise     pq.StringArray  `db:"expertise"`
	Bio           string          `db:"bio"`
	HourlyRate    decimal.Decimal `db:"hourly_rate"`
	IsActive      bool            `db:"is_active"`
	AverageRating float64         `db:"average_rating"`
	ReviewCount   int             `db:"review_count"`
	CreatedAt     time.Time       `db:"created_at"`
	UpdatedAt     time.Time       `db:"updated_at"`
}

func boilConsultant(c consultation.Consultant) consultantRow {
	return consultantRow{
		ID:            c.ID,
		UserID:        c.UserID,
		Name:          c.Name,
		Title:         c.Title,
		Expertise:     stringArray(c.Expertise),
		Bio:           c.Bio,
		HourlyRate:    c.HourlyRate,
		IsActive:      c.IsActive,
		AverageRating: c.AverageRating,
		ReviewCount:   c.ReviewCount,
		CreatedAt:     c.CreatedAt.UTC(),
		UpdatedAt:     c.UpdatedAt.UTC(),
	}
}

func (row consultantRow) unboil() consultation.Consultant {
	return consultation.Consultant{
		ID:            row.ID,
		UserID:        row.UserID,
		Name:          row.Name,
		Title:         row.Title,
		Expertise:     []string(row.Expertise),
		Bio:           row.Bio,
		HourlyRate:    row.HourlyRate,
		IsActive:      row.IsActive,
		AverageRating: row.AverageRating,
		ReviewCount:   row.ReviewCount,
		CreatedAt:     row.CreatedAt.UTC(),
		UpdatedAt:     row.UpdatedAt.UTC(),
	}
}

type ruleRow struct {
	ID           string      `db:"id"`
	ConsultantID string      `db:"consultant_id"`
	IsRecurring  bool        `db:"is_recurring"`
	DayOfWeek    null.Int    `db:"day_of_week"`
	Date         null.String `db:"date"`
	StartTime    string      `db:"start_time"`
	EndTime      string      `db:"end_time"`
	CreatedAt    time.Time   `db:"created_at"`
}

func (row ruleRow) unboil() consultation.AvailabilityRule {
	return consultation.AvailabilityRule{
		ID:           row.ID,
		ConsultantID: row.ConsultantID,
		IsRecurring:  row.IsRecurring,
		DayOfWeek:    row.DayOfWeek.Ptr(),
		Date:         row.Date.String,
		StartTime:    row.StartTime,
		EndTime:      row.EndTime,
		CreatedAt:    row.CreatedAt.UTC(),
	}
}

type bookingRow struct {
	ID           string    `db:"id"`
	ConsultantID string    `db:"consultant_id"`
	UserID       string    `db:"user_id"`
	Date         string    `db:"date"`
	StartTime    string    `db:"start_time"`
	EndTime      string    `db:"end_time"`
	Topic        string    `db:"topic"`
	Notes        string    `db:"notes"`
	Status       string    `db:"status"`
	MeetingURL   string    `db:"meeting_url"`
	Reason       string    `db:"reason"`
	CreatedAt    time.Time `db:"created_at"`
	UpdatedAt    time.Time `db:"updated_at"`
}

func boilBooking(b consultation.Booking) bookingRow {
	row := bookingRow(b)
	row.CreatedAt = b.CreatedAt.UTC()
	row.UpdatedAt = b.UpdatedAt.UTC()
	return row
}

func (row bookingRow) unboil() consultation.Booking {
	b := consultation.Booking(row)
	b.CreatedAt = row.CreatedAt.UTC()
	b.UpdatedAt = row.UpdatedAt.UTC()
	return b
}

type reviewRow struct {
	ID           string    `db:"id"`
	BookingID    string    `db:"booking_id"`
	ConsultantID string    `db:"consultant_id"`
	UserID       string    `db:"user_id"`
	Rating       int       `db:"rating"`
	Comment      string    `db:"comment"`
	CreatedAt    time.Time `db:"created_at"`
}

type consultationRepository struct {
	repository
}

var _ consultation.Repository = (*consultationRepository)(nil)

func NewConsultationRepository(exec core.DBExecutor) consultation.Repository {
	return &consultationRepository{repository{exec: exec}}
}

// Consultants

func (repo consultationRepository) CreateConsultant(ctx context.Context, c consultation.Consultant, exec ...core.DBExecutor) (consultation.Consultant, error) {
	c.ID = newID()
	q := "INSERT INTO consultants (" + consultantColumns + `) VALUES (:id, :user_id, :name, :title, :expertise,
		:bio, :hourly_rate, :is_active, :average_rating, :review_count, :created_at, :updated_at)`
	if _, err := repo.getExec(exec).NamedExecContext(ctx, q, boilConsultant(c)); err != nil {
		if _, ok := uniqueConstraint(err); ok {
			return consultation.Consultant{}, consultation.ErrConsultantExists
		}
		return consultation.Consultant{}, errors.Wrap(err, "inserting consultant")
	}
	return c, nil
}

func (repo consultationRepository) getConsultant(ctx context.Context, exe core.DBExecutor, column, value string) (consultation.Consultant, error) {
	if !isUUID(value) {
		return consultation.Consultant{}, consultation.ErrNotFound
	}
	var row consultantRow
	q := "SELECT " + consultantColumns + " FROM consultants WHERE " + column + " = ?"
	if err := getOne(ctx, exe, &row, q, value); err != nil {
		return consultation.Consultant{}, trapNoRowsErr(err, consultation.ErrNotFound, "getting consultant")
	}
	return row.unboil(), nil
}

func (repo consultationRepository) GetConsultant(ctx context.Context, id string, exec ...core.DBExecutor) (consultation.Consultant, error) {
	return repo.getConsultant(ctx, repo.getExec(exec), "id", id)
}

func (repo consultationRepository) GetConsultantByUser(ctx context.Context, userID string, exec ...core.DBExecutor) (consultation.Consultant, error) {
	return repo.getConsultant(ctx, repo.getExec(exec), "user_id", userID)
}

// UpdateConsultant leaves the rating columns untouched.
func (repo consultationRepository) UpdateConsultant(ctx context.Context, c consultation.Consultant, exec ...core.DBExecutor) (consultation.Consultant, error) {
	if !isUUID(c.ID) {
		return consultation.Consultant{}, consultation.ErrNotFound
	}
	var rating struct {
		AverageRating float64 `db:"average_rating"`
		ReviewCount   int     `db:"review_count"`
	}
	q := `UPDATE consultants SET name = ?, title = ?, expertise = ?, bio = ?, hourly_rate = ?, is_active = ?,
		updated_at = ? WHERE id = ? RETURNING average_rating, review_count`
	err := getOne(ctx, repo.getExec(exec), &rating, q,
		c.Name, c.Title, stringArray(c.Expertise), c.Bio, c.HourlyRate, c.IsActive, c.UpdatedAt.UTC(), c.ID)
	if err != nil {
		return consultation.Consultant{}, trapNoRowsErr(err, consultation.ErrNotFound, "updating consultant")
	}
	c.AverageRating, c.ReviewCount = rating.AverageRating, rating.ReviewCount
	return c, nil
}

func (repo consultationRepository) UpdateConsultantRating(ctx context.Context, id string, avg float64, count int, exec ...core.DBExecutor) error {
	if !isUUID(id) {
		return consultation.ErrNotFound
	}
	q := "UPDATE consultants SET average_rating = ?, review_count = ? WHERE id = ?"
	res, err := execQuery(ctx, repo.getExec(exec), q, avg, count, id)
	if err != nil {
		return errors.Wrap(err, "updating consultant rating")
	}
	return checkAffected(res, consultation.ErrNotFound)
}

func (repo consultationRepository) QueryConsultants(ctx context.Context, filter consultation.ConsultantFilter, ordering []core.DBOrdering, page core.Pagination, exec ...core.DBExecutor) ([]consultation.Consultant, error) {
	var conds conditions
	if filter.Expertise != "" {
		conds.add("? = ANY(expertise)", filter.Expertise)
	}
	if filter.Active != nil {
		conds.add("is_active = ?", *filter.Active)
	}
	if filter.Search != "" {
		val := like(filter.Search)
		conds.add("(name ILIKE ? OR title ILIKE ? OR bio ILIKE ?)", val, val, val)
	}

	q := "SELECT " + consultantColumns + " FROM consultants" + conds.where() +
		core.OrderBy(ordering, consultantOrderings, "name ASC") + limitOffset(page)
	var rows []consultantRow
	if err := selectAll(ctx, repo.getExec(exec), &rows, q, conds.args...); err != nil {
		return nil, errors.Wrap(err, "querying consultants")
	}
	consultants := make([]consultation.Consultant, 0, len(rows))
	for _, row := range rows {
		consultants = append(consultants, row.unboil())
	}
	return consultants, nil
}

// Availability rules

func (repo consultationRepository) CreateRule(ctx context.Context, r consultation.AvailabilityRule, exec ...core.DBExecutor) (consultation.AvailabilityRule, error) {
	r.ID = newID()
	var dow null.Int
	if r.DayOfWeek != nil {
		dow = null.IntFrom(*r.DayOfWeek)
	}
	q := `INSERT INTO availability_rules (id, consultant_id, is_recurring, day_of_week, date, start_time, end_time, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`
	_, err := execQuery(ctx, repo.getExec(exec), q,
		r.ID, r.ConsultantID, r.IsRecurring, dow, nullString(r.Date), r.StartTime, r.EndTime, r.CreatedAt.UTC())
	if err != nil {
		return consultation.AvailabilityRule{}, errors.Wrap(err, "inserting availability rule")
	}
	return r, nil
}

func (repo consultationRepository) GetRule(ctx context.Context, id string, exec ...core.DBExecutor) (consultation.AvailabilityRule, error) {
	if !isUUID(id) {
		return consultation.AvailabilityRule{}, consultation.ErrRuleNotFound
	}
	var row ruleRow
	q := "SELECT " + ruleColumns + " FROM availability_rules WHERE id = ?"
	if err := getOne(ctx, repo.getExec(exec), &row, q, id); err != nil {
		return consultation.AvailabilityRule{}, trapNoRowsErr(err, consultation.ErrRuleNotFound, "getting availability rule")
	}
	return row.unboil(), nil
}

func (repo consultationRepository) ListRules(ctx context.Context, consultantID string, exec ...core.DBExecutor) ([]consultation.AvailabilityRule, error) {
	if !isUUID(consultantID) {
		return []consultation.AvailabilityRule{}, nil
	}
	var rows []ruleRow
	q := "SELECT " + ruleColumns + " FROM availability_rules WHERE consultant_id = ? ORDER BY created_at, start_time"
	if err := selectAll(ctx, repo.getExec(exec), &rows, q, consultantID); err != nil {
		return nil, errors.Wrap(err, "listing availability rules")
	}
	rules := make([]consultation.AvailabilityRule, 0, len(rows))
	for _, row := range rows {
		rules = append(rules, row.unboil())
	}
	return rules, nil
}

func (repo consultationRepository) DeleteRule(ctx context.Context, id string, exec ...core.DBExecutor) error {
	if !isUUID(id) {
		return consultation.ErrRuleNotFound
	}
	res, err := execQuery(ctx, repo.getExec(exec), "DELETE FROM availability_rules WHERE id = ?", id)
	if err != nil {
		return errors.Wrap(err, "deleting availability rule")
	}
	return checkAffected(res, consultation.ErrRuleNotFound)
}

// Bookings

// slotRange renders the booking window as a tsrange from the named date and clock params.
const slotRange = "tsrange(CAST(:date AS date) + CAST(:start_time AS time), CAST(:date AS date) + CAST(:end_time AS time))"

// trapSlotErr maps the active slot exclusion violation to ErrSlotTaken.
func trapSlotErr(err error, msg string) error {
	if constraint, ok := exclusionConstraint(err); ok && constraint == "bookings_active_slot_excl" {
		return consultation.ErrSlotTaken
	}
	return errors.Wrap(err, msg)
}

func (repo consultationRepository) CreateBooking(ctx context.Context, b consultation.Booking, exec ...core.DBExecutor) (consultation.Booking, error) {
	b.ID = newID()
	q := `INSERT INTO bookings (id, consultant_id, user_id, date, start_time, end_time, topic, notes, status,
		meeting_url, reason, slot, created_at, updated_at) VALUES (:id, :consultant_id, :user_id, :date, :start_time,
		:end_time, :topic, :notes, :status, :meeting_url, :reason, ` + slotRange + `, :created_at, :updated_at)`
	if _, err := repo.getExec(exec).NamedExecContext(ctx, q, boilBooking(b)); err != nil {
		return consultation.Booking{}, trapSlotErr(err, "inserting booking")
	}
	return b, nil
}

func (repo consultationRepository) GetBooking(ctx context.Context, id string, exec ...core.DBExecutor) (consultation.Booking, error) {
	if !isUUID(id) {
		return consultation.Booking{}, consultation.ErrBookingNotFound
	}
	var row bookingRow
	q := "SELECT " + bookingColumns + " FROM bookings b WHERE b.id = ?"
	if err := getOne(ctx, repo.getExec(exec), &row, q, id); err != nil {
		return consultation.Booking{}, trapNoRowsErr(err, consultation.ErrBookingNotFound, "getting booking")
	}
	return row.unboil(), nil
}

func (repo consultationRepository) UpdateBooking(ctx context.Context, b consultation.Booking, exec ...core.DBExecutor) (consultation.Booking, error) {
	if !isUUID(b.ID) {
		return consultation.Booking{}, consultation.ErrBookingNotFound
	}
	q := `UPDATE bookings SET date = :date, start_time = :start_time, end_time = :end_time, topic = :topic,
		notes = :notes, status = :status, meeting_url = :meeting_url, reason = :reason, slot = ` + slotRange + `,
		updated_at = :updated_at WHERE id = :id`
	res, err := repo.getExec(exec).NamedExecContext(ctx, q, boilBooking(b))
	if err != nil {
		return consultation.Booking{}, trapSlotErr(err, "updating booking")
	}
	if err := checkAffected(res, consultation.ErrBookingNotFound); err != nil {
		return consultation.Booking{}, err
	}
	return b, nil
}

func (repo consultationRepository) queryBookings(ctx context.Context, exe core.DBExecutor, conds conditions, order, limit string) ([]consultation.Booking, error) {
	q := "SELECT " + bookingColumns + " FROM bookings b" + conds.where() + order + limit
	var rows []bookingRow
	if err := selectAll(ctx, exe, &rows, q, conds.args...); err != nil {
		return nil, err
	}
	bookings := make([]consultation.Booking, 0, len(rows))
	for _, row := range rows {
		bookings = append(bookings, row.unboil())
	}
	return bookings, nil
}

func (repo consultationRepository) QueryBookings(ctx context.Context, filter consultation.BookingFilter, page core.Pagination, exec ...core.DBExecutor) ([]consultation.Booking, error) {
	var conds conditions
	for _, id := range []string{filter.ConsultantID, filter.UserID, filter.ParticipantID} {
		if id != "" && !isUUID(id) {
			return []consultation.Booking{}, nil
		}
	}
	if filter.ConsultantID != "" {
		conds.add("b.consultant_id = ?", filter.ConsultantID)
	}
	if filter.UserID != "" {
		conds.add("b.user_id = ?", filter.UserID)
	}
	if filter.Status != "" {
		conds.add("b.status = ?", filter.Status)
	}
	if filter.DateFrom != "" {
		conds.add("b.date >= ?", filter.DateFrom)
	}
	if filter.DateTo != "" {
		conds.add("b.date <= ?", filter.DateTo)
	}
	if filter.ParticipantID != "" {
		conds.add("(b.user_id = ? OR b.consultant_id IN (SELECT id FROM consultants WHERE user_id = ?))",
			filter.ParticipantID, filter.ParticipantID)
	}

	bookings, err := repo.queryBookings(ctx, repo.getExec(exec), conds,
		" ORDER BY b.date DESC, b.start_time DESC", limitOffset(page))
	return bookings, errors.Wrap(err, "querying bookings")
}

func (repo consultationRepository) ListActiveBookings(ctx context.Context, consultantID, dateFrom, dateTo string, exec ...core.DBExecutor) ([]consultation.Booking, error) {
	if !isUUID(consultantID) {
		return []consultation.Booking{}, nil
	}
	var conds conditions
	conds.add("b.consultant_id = ?", consultantID)
	conds.add("b.status = ANY(?)", pq.Array(consultation.ActiveStatuses))
	conds.add("b.date BETWEEN ? AND ?", dateFrom, dateTo)

	bookings, err := repo.queryBookings(ctx, repo.getExec(exec), conds, " ORDER BY b.date, b.start_time", "")
	return bookings, errors.Wrap(err, "listing active bookings")
}

// Reviews

func (repo consultationRepository) CreateReview(ctx context.Context, r consultation.Review, exec ...core.DBExecutor) (consultation.Review, error) {
	r.ID = newID()
	q := "INSERT INTO reviews (" + reviewColumns + ") VALUES (?, ?, ?, ?, ?, ?, ?)"
	_, err := execQuery(ctx, repo.getExec(exec), q,
		r.ID, r.BookingID, r.ConsultantID, r.UserID, r.Rating, r.Comment, r.CreatedAt.UTC())
	if err != nil {
		if _, ok := uniqueConstraint(err); ok {
			return consultation.Review{}, consultation.ErrAlreadyReviewed
		}
		return consultation.Review{}, errors.Wrap(err, "inserting review")
	}
	return r, nil
}

func (repo consultationRepository) ListReviews(ctx context.Context, consultantID string, exec ...core.DBExecutor) ([]consultation.Review, error) {
	if !isUUID(consultantID) {
		return []consultation.Review{}, nil
	}
	var rows []reviewRow
	q := "SELECT " + reviewColumns + " FROM reviews WHERE consultant_id = ? ORDER BY created_at DESC"
	if err := selectAll(ctx, repo.getExec(exec), &rows, q, consultantID); err != nil {
		return nil, errors.Wrap(err, "listing reviews")
	}
	reviews := make([]consultation.Review, 0, len(rows))
	for _, row := range rows {
		r := consultation.Review(row)
		r.CreatedAt = row.CreatedAt.UTC()
		reviews = append(reviews, r)
	}
	return reviews, nil
}
