package inmemdb

import (
	"context"

	"github.com/wednesdev-id/semindo-grow-hub-sub003/core"
	"github.com/wednesdev-id/semindo-grow-hub-sub003/core/consultation"
)

type consultationRepository struct {
	db *DB
}

var _ consultation.Repository = (*consultationRepository)(nil)

func NewConsultationRepository(db *DB) consultation.Repository {
	return &consultationRepository{db: db}
}

var consultantSortKeys = map[string]sortKey[consultation.Consultant]{
	"name":           func(c consultation.Consultant) interface{} { return c.Name },
	"hourly_rate":    func(c consultation.Consultant) interface{} { return c.HourlyRate },
	"average_rating": func(c consultation.Consultant) interface{} { return c.AverageRating },
	"review_count":   func(c consultation.Consultant) interface{} { return c.ReviewCount },
	"created_at":     func(c consultation.Consultant) interface{} { return c.CreatedAt },
}

var bookingSortKeys = map[string]sortKey[consultation.Booking]{
	"date":       func(b consultation.Booking) interface{} { return b.Date },
	"start_time": func(b consultation.Booking) interface{} { return b.StartTime },
	"created_at": func(b consultation.Booking) interface{} { return b.CreatedAt },
}

func cloneConsultant(c consultation.Consultant) consultation.Consultant {
	c.Expertise = cloneStrings(c.Expertise)
	return c
}

// Consultants

func (repo *consultationRepository) CreateConsultant(_ context.Context, c consultation.Consultant, _ ...core.DBExecutor) (consultation.Consultant, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	for _, existing := range repo.db.consultants {
		if existing.UserID == c.UserID {
			return consultation.Consultant{}, consultation.ErrConsultantExists
		}
	}
	c.ID = newID()
	repo.db.consultants[c.ID] = cloneConsultant(c)
	return c, nil
}

func (repo *consultationRepository) GetConsultant(_ context.Context, id string, _ ...core.DBExecutor) (consultation.Consultant, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	if c, ok := repo.db.consultants[id]; ok {
		return cloneConsultant(c), nil
	}
	return consultation.Consultant{}, consultation.ErrNotFound
}

func (repo *consultationRepository) GetConsultantByUser(_ context.Context, userID string, _ ...core.DBExecutor) (consultation.Consultant, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	for _, c := range repo.db.consultants {
		if c.UserID == userID {
			return cloneConsultant(c), nil
		}
	}
	return consultation.Consultant{}, consultation.ErrNotFound
}

func (repo *consultationRepository) UpdateConsultant(_ context.Context, c consultation.Consultant, _ ...core.DBExecutor) (consultation.Consultant, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	orig, ok := repo.db.consultants[c.ID]
	if !ok {
		return consultation.Consultant{}, consultation.ErrNotFound
	}
	// ratings are only written by UpdateConsultantRating
	c.AverageRating = orig.AverageRating
	c.ReviewCount = orig.ReviewCount
	repo.db.consultants[c.ID] = cloneConsultant(c)
	return c, nil
}

func (repo *consultationRepository) UpdateConsultantRating(_ context.Context, id string, avg float64, count int, _ ...core.DBExecutor) error {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	c, ok := repo.db.consultants[id]
	if !ok {
		return consultation.ErrNotFound
	}
	c.AverageRating = avg
	c.ReviewCount = count
	repo.db.consultants[id] = c
	return nil
}

func (repo *consultationRepository) QueryConsultants(_ context.Context, filter consultation.ConsultantFilter, ordering []core.DBOrdering, page core.Pagination, _ ...core.DBExecutor) ([]consultation.Consultant, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	consultants := make([]consultation.Consultant, 0)
	for _, c := range repo.db.consultants {
		switch {
		case filter.Expertise != "" && !containsString(c.Expertise, filter.Expertise),
			filter.Active != nil && c.IsActive != *filter.Active,
			filter.Search != "" && !containsFold(filter.Search, c.Name, c.Title, c.Bio):
			continue
		}
		consultants = append(consultants, cloneConsultant(c))
	}
	sortItems(consultants, ordering, consultantSortKeys, core.DBOrdering{Field: "name", Ascending: true})
	return paginate(consultants, page), nil
}

// Availability rules

func (repo *consultationRepository) CreateRule(_ context.Context, r consultation.AvailabilityRule, _ ...core.DBExecutor) (consultation.AvailabilityRule, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	r.ID = newID()
	repo.db.rules[r.ID] = r
	return r, nil
}

func (repo *consultationRepository) GetRule(_ context.Context, id string, _ ...core.DBExecutor) (consultation.AvailabilityRule, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	if r, ok := repo.db.rules[id]; ok {
		return r, nil
	}
	return consultation.AvailabilityRule{}, consultation.ErrRuleNotFound
}

func (repo *consultationRepository) ListRules(_ context.Context, consultantID string, _ ...core.DBExecutor) ([]consultation.AvailabilityRule, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	rules := make([]consultation.AvailabilityRule, 0)
	for _, r := range repo.db.rules {
		if r.ConsultantID == consultantID {
			rules = append(rules, r)
		}
	}
	sortItems(rules, nil, map[string]sortKey[consultation.AvailabilityRule]{
		"created_at": func(r consultation.AvailabilityRule) interface{} { return r.CreatedAt },
		"start_time": func(r consultation.AvailabilityRule) interface{} { return r.StartTime },
	}, core.DBOrdering{Field: "created_at", Ascending: true}, core.DBOrdering{Field: "start_time", Ascending: true})
	return rules, nil
}

func (repo *consultationRepository) DeleteRule(_ context.Context, id string, _ ...core.DBExecutor) error {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	if _, ok := repo.db.rules[id]; !ok {
		return consultation.ErrRuleNotFound
	}
	delete(repo.db.rules, id)
	return nil
}

// Bookings

func isActiveBooking(b consultation.Booking) bool {
	return containsString(consultation.ActiveStatuses, b.Status)
}

// slotTaken mirrors the exclusion constraint on active bookings: no two may overlap for a consultant.
func (repo *consultationRepository) slotTaken(b consultation.Booking) bool {
	if !isActiveBooking(b) {
		return false
	}
	for _, other := range repo.db.bookings {
		if other.ID == b.ID || !isActiveBooking(other) || other.ConsultantID != b.ConsultantID || other.Date != b.Date {
			continue
		}
		// HH:MM clocks order like strings
		if other.StartTime < b.EndTime && b.StartTime < other.EndTime {
			return true
		}
	}
	return false
}

func (repo *consultationRepository) CreateBooking(_ context.Context, b consultation.Booking, _ ...core.DBExecutor) (consultation.Booking, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	if repo.slotTaken(b) {
		return consultation.Booking{}, consultation.ErrSlotTaken
	}
	b.ID = newID()
	repo.db.bookings[b.ID] = b
	return b, nil
}

func (repo *consultationRepository) GetBooking(_ context.Context, id string, _ ...core.DBExecutor) (consultation.Booking, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	if b, ok := repo.db.bookings[id]; ok {
		return b, nil
	}
	return consultation.Booking{}, consultation.ErrBookingNotFound
}

func (repo *consultationRepository) UpdateBooking(_ context.Context, b consultation.Booking, _ ...core.DBExecutor) (consultation.Booking, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	if _, ok := repo.db.bookings[b.ID]; !ok {
		return consultation.Booking{}, consultation.ErrBookingNotFound
	}
	if repo.slotTaken(b) {
		return consultation.Booking{}, consultation.ErrSlotTaken
	}
	repo.db.bookings[b.ID] = b
	return b, nil
}

func (repo *consultationRepository) QueryBookings(_ context.Context, filter consultation.BookingFilter, page core.Pagination, _ ...core.DBExecutor) ([]consultation.Booking, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	bookings := make([]consultation.Booking, 0)
	for _, b := range repo.db.bookings {
		switch {
		case filter.ConsultantID != "" && b.ConsultantID != filter.ConsultantID,
			filter.UserID != "" && b.UserID != filter.UserID,
			filter.Status != "" && b.Status != filter.Status,
			filter.DateFrom != "" && b.Date < filter.DateFrom,
			filter.DateTo != "" && b.Date > filter.DateTo,
			filter.ParticipantID != "" && b.UserID != filter.ParticipantID &&
				repo.db.consultants[b.ConsultantID].UserID != filter.ParticipantID:
			continue
		}
		bookings = append(bookings, b)
	}
	sortItems(bookings, nil, bookingSortKeys,
		core.DBOrdering{Field: "date"}, core.DBOrdering{Field: "start_time"})
	return paginate(bookings, page), nil
}

func (repo *consultationRepository) ListActiveBookings(_ context.Context, consultantID, dateFrom, dateTo string, _ ...core.DBExecutor) ([]consultation.Booking, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	bookings := make([]consultation.Booking, 0)
	for _, b := range repo.db.bookings {
		if b.ConsultantID == consultantID && isActiveBooking(b) && b.Date >= dateFrom && b.Date <= dateTo {
			bookings = append(bookings, b)
		}
	}
	sortItems(bookings, nil, bookingSortKeys,
		core.DBOrdering{Field: "date", Ascending: true}, core.DBOrdering{Field: "start_time", Ascending: true})
	return bookings, nil
}

// Reviews

func (repo *consultationRepository) CreateReview(_ context.Context, r consultation.Review, _ ...core.DBExecutor) (consultation.Review, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	for _, existing := range repo.db.reviews {
		if existing.BookingID == r.BookingID {
			return consultation.Review{}, consultation.ErrAlreadyReviewed
		}
	}
	r.ID = newID()
	repo.db.reviews[r.ID] = r
	return r, nil
}

func (repo *consultationRepository) ListReviews(_ context.Context, consultantID string, _ ...core.DBExecutor) ([]consultation.Review, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	reviews := make([]consultation.Review, 0)
	for _, r := range repo.db.reviews {
		if r.ConsultantID == consultantID {
			reviews = append(reviews, r)
		}
	}
	sortItems(reviews, nil, map[string]sortKey[consultation.Review]{
		"created_at": func(r consultation.Review) interface{} { return r.CreatedAt },
	}, core.DBOrdering{Field: "created_at"})
	return reviews, nil
}
