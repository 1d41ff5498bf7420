package tests

import (
	"context"
	"net/http"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wednesdev-id/semindo-grow-hub-sub003/core"
	"github.com/wednesdev-id/semindo-grow-hub-sub003/core/consultation"
	"github.com/wednesdev-id/semindo-grow-hub-sub003/core/user"
)

type bookingBody struct {
	ConsultantID string `json:"consultant_id"`
	consultation.NewBooking
}

func Test_consultationApi(t *testing.T) {
	setup(t)

	admin := createUser(t, "Admin", "admin", user.RoleAdmin)
	consultantUsr := createUser(t, "Dewi", "dewi", user.RoleConsultant)
	owner := createUser(t, "Siti", "siti", user.RoleUMKM)
	other := createUser(t, "Budi", "budi", user.RoleUMKM)
	adminToken, consultantToken := getToken(t, admin), getToken(t, consultantUsr)
	ownerToken, otherToken := getToken(t, owner), getToken(t, other)

	day := time.Now().UTC().AddDate(0, 0, 7).Format(core.DateFormat)

	var c consultation.Consultant
	rec := do(t, http.MethodPost, "/v1/consultants", adminToken, consultation.ConsultantInput{
		UserID:     consultantUsr.ID,
		Name:       "Dewi Lestari",
		Title:      "Financial Advisor",
		Expertise:  []string{"Finance", " Tax "},
		HourlyRate: decimal.NewFromInt(150000),
	}, &c)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.True(t, c.IsActive)
	assert.Equal(t, []string{"finance", "tax"}, c.Expertise)

	tests := []httpTest{
		{name: "directory is public", method: http.MethodGet, path: "/v1/consultants/" + c.ID, wantData: marchallObj(t, c)},
		{name: "only managers create consultants", method: http.MethodPost, path: "/v1/consultants", token: ownerToken, body: marchallObj(t, consultation.ConsultantInput{UserID: owner.ID, Name: "Siti", Expertise: []string{"x"}}), wantCode: http.StatusForbidden},
		{name: "one profile per consultant", method: http.MethodPost, path: "/v1/consultants", token: adminToken, body: marchallObj(t, consultation.ConsultantInput{UserID: consultantUsr.ID, Name: "Dewi", Expertise: []string{"x"}}), wantCode: http.StatusConflict},
		{name: "others cannot add availability", method: http.MethodPost, path: "/v1/consultants/" + c.ID + "/availability", token: ownerToken, body: marchallObj(t, consultation.RuleInput{Date: day, StartTime: "09:00", EndTime: "12:00"}), wantCode: http.StatusForbidden},
		{name: "end before start", method: http.MethodPost, path: "/v1/consultants/" + c.ID + "/availability", token: consultantToken, body: marchallObj(t, consultation.RuleInput{Date: day, StartTime: "12:00", EndTime: "09:00"}), wantCode: http.StatusBadRequest, wantData: marchallObj(t, map[string]string{"end_time": "must be after start_time"})},
		{name: "slots need a start date", method: http.MethodGet, path: "/v1/consultants/" + c.ID + "/slots", wantCode: http.StatusBadRequest},
		{name: "slot range is capped", method: http.MethodGet, path: "/v1/consultants/" + c.ID + "/slots?from=2030-01-01&to=2030-12-31", wantCode: http.StatusBadRequest},
		{name: "62 days are allowed", method: http.MethodGet, path: "/v1/consultants/" + c.ID + "/slots?from=2030-01-01&to=2030-03-03", wantData: marchallList(t)},
		{name: "63 days are not", method: http.MethodGet, path: "/v1/consultants/" + c.ID + "/slots?from=2030-01-01&to=2030-03-04", wantCode: http.StatusBadRequest, wantData: marchallObj(t, map[string]string{"to": "date range is too long"})},
		{name: "cannot book the past", method: http.MethodPost, path: "/v1/bookings", token: ownerToken, body: marchallObj(t, bookingBody{ConsultantID: c.ID, NewBooking: consultation.NewBooking{Date: "2020-01-06", StartTime: "09:00", Topic: "Late"}}), wantCode: http.StatusBadRequest, wantData: marchallObj(t, map[string]string{"start_time": "cannot book a slot in the past"})},
		{name: "no availability, no slots", method: http.MethodGet, path: "/v1/consultants/" + c.ID + "/slots?from=" + day, wantData: marchallList(t)},
	}
	runTests(t, tests)

	var rule consultation.AvailabilityRule
	rec = do(t, http.MethodPost, "/v1/consultants/"+c.ID+"/availability", consultantToken,
		consultation.RuleInput{Date: day, StartTime: "09:00", EndTime: "12:00"}, &rule)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var slots []consultation.Slot
	rec = do(t, http.MethodGet, "/v1/consultants/"+c.ID+"/slots?from="+day, "", nil, &slots)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	require.Len(t, slots, 3)
	assert.Equal(t, consultation.Slot{Date: day, StartTime: "10:00", EndTime: "11:00", Status: consultation.SlotAvailable}, slots[1])

	book := func(token, start string) (consultation.Booking, int) {
		var b consultation.Booking
		rec := do(t, http.MethodPost, "/v1/bookings", token, bookingBody{
			ConsultantID: c.ID,
			NewBooking:   consultation.NewBooking{Date: day, StartTime: start, Topic: "Bookkeeping"},
		}, &b)
		return b, rec.Code
	}

	b, code := book(ownerToken, "10:00")
	require.Equal(t, http.StatusCreated, code)
	assert.Equal(t, consultation.StatusPending, b.Status)
	assert.Equal(t, "11:00", b.EndTime)

	_, code = book(otherToken, "10:00")
	assert.Equal(t, http.StatusBadRequest, code, "booked slots are no longer offered")
	_, code = book(ownerToken, "13:00")
	assert.Equal(t, http.StatusBadRequest, code, "outside availability")
	_, code = book(consultantToken, "09:00")
	assert.Equal(t, http.StatusForbidden, code, "consultants cannot book")

	rec = do(t, http.MethodGet, "/v1/consultants/"+c.ID+"/slots?from="+day, "", nil, &slots)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, slots, 2)

	tests = []httpTest{
		{name: "bookings are private", method: http.MethodGet, path: "/v1/bookings/" + b.ID, token: otherToken, wantCode: http.StatusNotFound},
		{name: "bookers cannot approve", method: http.MethodPost, path: "/v1/bookings/" + b.ID + "/approve", token: ownerToken, body: marchallObj(t, consultation.StatusChange{MeetingURL: "https://meet.example.com/x"}), wantCode: http.StatusForbidden},
		{name: "approval needs a meeting url", method: http.MethodPost, path: "/v1/bookings/" + b.ID + "/approve", token: consultantToken, wantCode: http.StatusBadRequest},
		{name: "pending bookings cannot be completed", method: http.MethodPost, path: "/v1/bookings/" + b.ID + "/complete", token: consultantToken, wantCode: http.StatusConflict},
		{name: "the consultant sees the booking", method: http.MethodGet, path: "/v1/bookings", token: consultantToken, wantData: marchallPage(t, 50, 0, b)},
	}
	runTests(t, tests)

	tapp.Mail.Reset()
	rec = do(t, http.MethodPost, "/v1/bookings/"+b.ID+"/approve", consultantToken,
		consultation.StatusChange{MeetingURL: "https://meet.example.com/x"}, &b)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, consultation.StatusApproved, b.Status)
	assert.Equal(t, "https://meet.example.com/x", b.MeetingURL)

	sent := tapp.Mail.Sent()
	require.Len(t, sent, 1)
	assert.Equal(t, owner.Email, sent[0].To[0].Address)
	assert.Equal(t, "booking_status", sent[0].TemplateName)

	rec = do(t, http.MethodPost, "/v1/bookings/"+b.ID+"/review", ownerToken, consultation.NewReview{Rating: 5}, nil)
	assert.Equal(t, http.StatusConflict, rec.Code, "only completed bookings can be reviewed")

	rec = do(t, http.MethodPost, "/v1/bookings/"+b.ID+"/complete", consultantToken, nil, &b)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, consultation.StatusCompleted, b.Status)

	rec = do(t, http.MethodPost, "/v1/bookings/"+b.ID+"/cancel", ownerToken, nil, nil)
	assert.Equal(t, http.StatusConflict, rec.Code, "completed bookings are final")

	rec = do(t, http.MethodPost, "/v1/bookings/"+b.ID+"/review", ownerToken, consultation.NewReview{Rating: 6}, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	rec = do(t, http.MethodPost, "/v1/bookings/"+b.ID+"/review", consultantToken, consultation.NewReview{Rating: 1}, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	var review consultation.Review
	rec = do(t, http.MethodPost, "/v1/bookings/"+b.ID+"/review", ownerToken, consultation.NewReview{Rating: 4, Comment: "Helpful"}, &review)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(t, c.ID, review.ConsultantID)

	rec = do(t, http.MethodPost, "/v1/bookings/"+b.ID+"/review", ownerToken, consultation.NewReview{Rating: 4}, nil)
	assert.Equal(t, http.StatusConflict, rec.Code, "one review per booking")

	rec = do(t, http.MethodGet, "/v1/consultants/"+c.ID, "", nil, &c)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 4.0, c.AverageRating)
	assert.Equal(t, 1, c.ReviewCount)

	// cancelled bookings free their slot
	b2, code := book(otherToken, "11:00")
	require.Equal(t, http.StatusCreated, code)
	rec = do(t, http.MethodPost, "/v1/bookings/"+b2.ID+"/cancel", otherToken, consultation.StatusChange{Reason: "sick"}, &b2)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "sick", b2.Reason)
	_, code = book(ownerToken, "11:00")
	assert.Equal(t, http.StatusCreated, code)

	rec = do(t, http.MethodDelete, "/v1/consultants/"+c.ID+"/availability/"+rule.ID, consultantToken, nil, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	rec = do(t, http.MethodGet, "/v1/consultants/"+c.ID+"/slots?from="+day, "", nil, &slots)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, slots)
}

// slowBookingRepo delays the active bookings read so that concurrent requests interleave.
type slowBookingRepo struct {
	consultation.Repository
}

func (repo slowBookingRepo) ListActiveBookings(ctx context.Context, consultantID, dateFrom, dateTo string, exec ...core.DBExecutor) ([]consultation.Booking, error) {
	bookings, err := repo.Repository.ListActiveBookings(ctx, consultantID, dateFrom, dateTo, exec...)
	time.Sleep(50 * time.Millisecond)
	return bookings, err
}

func Test_consultationApi_concurrentBookings(t *testing.T) {
	setup(t)
	tapp.Consultation = consultation.NewService(slowBookingRepo{tapp.ConsultationRepo}, tapp.Users, tapp.Mail, tapp.Audit, tapp.Conf)
	app = newServer(tapp)

	admin := createUser(t, "Admin", "admin", user.RoleAdmin)
	consultantUsr := createUser(t, "Dewi", "dewi", user.RoleConsultant)
	owner := createUser(t, "Siti", "siti", user.RoleUMKM)
	other := createUser(t, "Budi", "budi", user.RoleUMKM)
	adminToken, consultantToken := getToken(t, admin), getToken(t, consultantUsr)
	ownerToken, otherToken := getToken(t, owner), getToken(t, other)

	day := time.Now().UTC().AddDate(0, 0, 7).Format(core.DateFormat)

	var c consultation.Consultant
	rec := do(t, http.MethodPost, "/v1/consultants", adminToken, consultation.ConsultantInput{
		UserID:     consultantUsr.ID,
		Name:       "Dewi Lestari",
		Expertise:  []string{"finance"},
		HourlyRate: decimal.NewFromInt(150000),
	}, &c)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	// unaligned windows offer 09:00, 09:30 and 10:00
	for _, w := range [][2]string{{"09:00", "11:00"}, {"09:30", "10:30"}} {
		rec = do(t, http.MethodPost, "/v1/consultants/"+c.ID+"/availability", consultantToken,
			consultation.RuleInput{Date: day, StartTime: w[0], EndTime: w[1]}, nil)
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	}

	var wg sync.WaitGroup
	codes := make([]int, 2)
	for i, req := range []struct{ token, start string }{{ownerToken, "09:00"}, {otherToken, "09:30"}} {
		wg.Add(1)
		go func(i int, token, start string) {
			defer wg.Done()
			rec := do(t, http.MethodPost, "/v1/bookings", token, bookingBody{
				ConsultantID: c.ID,
				NewBooking:   consultation.NewBooking{Date: day, StartTime: start, Topic: "Bookkeeping"},
			}, nil)
			codes[i] = rec.Code
		}(i, req.token, req.start)
	}
	wg.Wait()

	sort.Ints(codes)
	assert.Equal(t, []int{http.StatusCreated, http.StatusConflict}, codes)

	var page struct {
		Results []consultation.Booking `json:"results"`
	}
	rec = do(t, http.MethodGet, "/v1/bookings", consultantToken, nil, &page)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, page.Results, 1)
}
