package inmemdb

import (
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/wednesdev-id/semindo-grow-hub-sub003/core"
	"github.com/wednesdev-id/semindo-grow-hub-sub003/core/arsip"
	"github.com/wednesdev-id/semindo-grow-hub-sub003/core/assessment"
	"github.com/wednesdev-id/semindo-grow-hub-sub003/core/audit"
	"github.com/wednesdev-id/semindo-grow-hub-sub003/core/consultation"
	"github.com/wednesdev-id/semindo-grow-hub-sub003/core/financing"
	"github.com/wednesdev-id/semindo-grow-hub-sub003/core/lms"
	"github.com/wednesdev-id/semindo-grow-hub-sub003/core/marketplace"
	"github.com/wednesdev-id/semindo-grow-hub-sub003/core/rbac"
	"github.com/wednesdev-id/semindo-grow-hub-sub003/core/umkm"
	"github.com/wednesdev-id/semindo-grow-hub-sub003/core/user"
)

// DB is an in-memory database; every table shares one lock.
type DB struct {
	mu sync.RWMutex

	users       map[string]user.User
	permissions map[string]rbac.Permission
	roles       map[string]rbac.Role
	audit       []audit.Entry

	profiles       map[string]umkm.Profile
	questionnaires map[string]assessment.Questionnaire
	submissions    map[string]assessment.Submission

	consultants map[string]consultation.Consultant
	rules       map[string]consultation.AvailabilityRule
	bookings    map[string]consultation.Booking
	reviews     map[string]consultation.Review

	courses     map[string]lms.Course // without lessons
	lessons     map[string]lms.Lesson
	enrollments map[string]lms.Enrollment

	agendaCounters map[string]int // {kind/year: last sequence}
	letters        map[string]arsip.Letter // without attachments
	attachments    map[string]arsip.Attachment
	dispositions   map[string]arsip.Disposition

	listings map[string]marketplace.Listing

	partners     map[string]financing.Partner // without products
	products     map[string]financing.Product
	applications map[string]financing.Application
}

func Open() *DB {
	return &DB{
		users:          make(map[string]user.User),
		permissions:    make(map[string]rbac.Permission),
		roles:          make(map[string]rbac.Role),
		profiles:       make(map[string]umkm.Profile),
		questionnaires: make(map[string]assessment.Questionnaire),
		submissions:    make(map[string]assessment.Submission),
		consultants:    make(map[string]consultation.Consultant),
		rules:          make(map[string]consultation.AvailabilityRule),
		bookings:       make(map[string]consultation.Booking),
		reviews:        make(map[string]consultation.Review),
		courses:        make(map[string]lms.Course),
		lessons:        make(map[string]lms.Lesson),
		enrollments:    make(map[string]lms.Enrollment),
		agendaCounters: make(map[string]int),
		letters:        make(map[string]arsip.Letter),
		attachments:    make(map[string]arsip.Attachment),
		dispositions:   make(map[string]arsip.Disposition),
		listings:       make(map[string]marketplace.Listing),
		partners:       make(map[string]financing.Partner),
		products:       make(map[string]financing.Product),
		applications:   make(map[string]financing.Application),
	}
}

func newID() string {
	return uuid.NewString()
}

func cloneStrings(s []string) []string {
	if s == nil {
		return nil
	}
	c := make([]string, len(s))
	copy(c, s)
	return c
}

func containsString(s []string, v string) bool {
	for _, item := range s {
		if item == v {
			return true
		}
	}
	return false
}

// containsFold reports whether one of the values contains substr, ignoring case.
func containsFold(substr string, values ...string) bool {
	substr = strings.ToLower(substr)
	for _, v := range values {
		if strings.Contains(strings.ToLower(v), substr) {
			return true
		}
	}
	return false
}

// paginate returns the page of items; a page.Limit <= 0 returns them all.
func paginate[T any](items []T, page core.Pagination) []T {
	if page.Limit <= 0 && page.Offset <= 0 {
		return items
	}
	if page.Limit <= 0 {
		page.Limit = len(items)
	}
	start, end := page.Window(len(items))
	return items[start:end]
}

type sortKey[T any] func(T) interface{}

func less(a, b interface{}) bool {
	switch x := a.(type) {
	case string:
		return x < b.(string)
	case int:
		return x < b.(int)
	case float64:
		return x < b.(float64)
	case bool:
		return !x && b.(bool)
	case time.Time:
		return x.Before(b.(time.Time))
	case decimal.Decimal:
		return x.LessThan(b.(decimal.Decimal))
	}
	return false
}

// sortItems sorts items by the allowed orderings, then by the fallback ones.
func sortItems[T any](items []T, ordering []core.DBOrdering, keys map[string]sortKey[T], fallback ...core.DBOrdering) {
	ords := make([]core.DBOrdering, 0, len(ordering)+len(fallback))
	for _, ord := range ordering {
		if _, ok := keys[ord.Field]; ok {
			ords = append(ords, ord)
		}
	}
	ords = append(ords, fallback...)

	sort.SliceStable(items, func(i, j int) bool {
		for _, ord := range ords {
			key := keys[ord.Field]
			a, b := key(items[i]), key(items[j])
			if less(a, b) {
				return ord.Ascending
			}
			if less(b, a) {
				return !ord.Ascending
			}
		}
		return false
	})
}

func equalFold(a, b string) bool {
	return strings.EqualFold(a, b)
}
