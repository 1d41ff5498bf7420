package inmemdb

import (
	"context"
	"sort"

	"github.com/wednesdev-id/semindo-grow-hub-sub003/core"
	"github.com/wednesdev-id/semindo-grow-hub-sub003/core/lms"
)

type lmsRepository struct {
	db *DB
}

var _ lms.Repository = (*lmsRepository)(nil)

func NewLMSRepository(db *DB) lms.Repository {
	return &lmsRepository{db: db}
}

var courseSortKeys = map[string]sortKey[lms.Course]{
	"title":      func(c lms.Course) interface{} { return c.Title },
	"level":      func(c lms.Course) interface{} { return c.Level },
	"created_at": func(c lms.Course) interface{} { return c.CreatedAt },
}

func (repo *lmsRepository) courseLessons(courseID string) []lms.Lesson {
	lessons := make([]lms.Lesson, 0)
	for _, l := range repo.db.lessons {
		if l.CourseID == courseID {
			lessons = append(lessons, l)
		}
	}
	sort.Slice(lessons, func(i, j int) bool { return lessons[i].Position < lessons[j].Position })
	return lessons
}

func cloneEnrollment(e lms.Enrollment) lms.Enrollment {
	e.CompletedLessons = cloneStrings(e.CompletedLessons)
	return e
}

// Courses

func (repo *lmsRepository) CreateCourse(_ context.Context, c lms.Course, _ ...core.DBExecutor) (lms.Course, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	c.ID = newID()
	c.Lessons = nil
	repo.db.courses[c.ID] = c
	c.Lessons = []lms.Lesson{}
	return c, nil
}

func (repo *lmsRepository) GetCourse(_ context.Context, id string, _ ...core.DBExecutor) (lms.Course, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	c, ok := repo.db.courses[id]
	if !ok {
		return lms.Course{}, lms.ErrNotFound
	}
	c.Lessons = repo.courseLessons(id)
	return c, nil
}

func (repo *lmsRepository) SlugExists(_ context.Context, slug, excludedID string, _ ...core.DBExecutor) (bool, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	for _, c := range repo.db.courses {
		if c.Slug == slug && c.ID != excludedID {
			return true, nil
		}
	}
	return false, nil
}

func (repo *lmsRepository) UpdateCourse(_ context.Context, c lms.Course, _ ...core.DBExecutor) (lms.Course, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	if _, ok := repo.db.courses[c.ID]; !ok {
		return lms.Course{}, lms.ErrNotFound
	}
	lessons := c.Lessons
	c.Lessons = nil
	repo.db.courses[c.ID] = c
	c.Lessons = lessons
	return c, nil
}

func (repo *lmsRepository) DeleteCourse(_ context.Context, id string, _ ...core.DBExecutor) error {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	if _, ok := repo.db.courses[id]; !ok {
		return lms.ErrNotFound
	}
	delete(repo.db.courses, id)
	for lid, l := range repo.db.lessons {
		if l.CourseID == id {
			delete(repo.db.lessons, lid)
		}
	}
	return nil
}

func (repo *lmsRepository) QueryCourses(_ context.Context, filter lms.QueryFilter, ordering []core.DBOrdering, page core.Pagination, _ ...core.DBExecutor) ([]lms.Course, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	courses := make([]lms.Course, 0)
	for _, c := range repo.db.courses {
		switch {
		case filter.Category != "" && c.Category != filter.Category,
			filter.Level != "" && c.Level != filter.Level,
			filter.Published != nil && c.IsPublished != *filter.Published,
			filter.Search != "" && !containsFold(filter.Search, c.Title, c.Description):
			continue
		}
		courses = append(courses, c)
	}
	sortItems(courses, ordering, courseSortKeys, core.DBOrdering{Field: "created_at"})
	return paginate(courses, page), nil
}

func (repo *lmsRepository) CountEnrollments(_ context.Context, courseID string, _ ...core.DBExecutor) (int, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	var n int
	for _, e := range repo.db.enrollments {
		if e.CourseID == courseID {
			n++
		}
	}
	return n, nil
}

// Lessons

func (repo *lmsRepository) CreateLesson(_ context.Context, l lms.Lesson, _ ...core.DBExecutor) (lms.Lesson, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	if _, ok := repo.db.courses[l.CourseID]; !ok {
		return lms.Lesson{}, lms.ErrNotFound
	}
	l.ID = newID()
	repo.db.lessons[l.ID] = l
	return l, nil
}

func (repo *lmsRepository) UpdateLesson(_ context.Context, l lms.Lesson, _ ...core.DBExecutor) (lms.Lesson, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	if _, ok := repo.db.lessons[l.ID]; !ok {
		return lms.Lesson{}, lms.ErrLessonNotFound
	}
	repo.db.lessons[l.ID] = l
	return l, nil
}

func (repo *lmsRepository) DeleteLesson(_ context.Context, id string, _ ...core.DBExecutor) error {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	if _, ok := repo.db.lessons[id]; !ok {
		return lms.ErrLessonNotFound
	}
	delete(repo.db.lessons, id)
	return nil
}

func (repo *lmsRepository) SetLessonPositions(_ context.Context, courseID string, lessonIDs []string, _ ...core.DBExecutor) error {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	for i, id := range lessonIDs {
		l, ok := repo.db.lessons[id]
		if !ok || l.CourseID != courseID {
			return lms.ErrLessonNotFound
		}
		l.Position = i + 1
		repo.db.lessons[id] = l
	}
	return nil
}

// Enrollments

func (repo *lmsRepository) CreateEnrollment(_ context.Context, e lms.Enrollment, _ ...core.DBExecutor) (lms.Enrollment, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	for _, existing := range repo.db.enrollments {
		if existing.CourseID == e.CourseID && existing.UserID == e.UserID {
			return lms.Enrollment{}, lms.ErrAlreadyEnrolled
		}
	}
	e.ID = newID()
	repo.db.enrollments[e.ID] = cloneEnrollment(e)
	return e, nil
}

func (repo *lmsRepository) GetEnrollment(_ context.Context, courseID, userID string, _ ...core.DBExecutor) (lms.Enrollment, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	for _, e := range repo.db.enrollments {
		if e.CourseID == courseID && e.UserID == userID {
			return cloneEnrollment(e), nil
		}
	}
	return lms.Enrollment{}, lms.ErrEnrollmentNotFound
}

func (repo *lmsRepository) UpdateEnrollment(_ context.Context, e lms.Enrollment, _ ...core.DBExecutor) (lms.Enrollment, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	if _, ok := repo.db.enrollments[e.ID]; !ok {
		return lms.Enrollment{}, lms.ErrEnrollmentNotFound
	}
	repo.db.enrollments[e.ID] = cloneEnrollment(e)
	return e, nil
}

func (repo *lmsRepository) ListEnrollments(_ context.Context, userID string, _ ...core.DBExecutor) ([]lms.Enrollment, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	enrollments := make([]lms.Enrollment, 0)
	for _, e := range repo.db.enrollments {
		if e.UserID == userID {
			enrollments = append(enrollments, cloneEnrollment(e))
		}
	}
	sortItems(enrollments, nil, map[string]sortKey[lms.Enrollment]{
		"enrolled_at": func(e lms.Enrollment) interface{} { return e.EnrolledAt },
	}, core.DBOrdering{Field: "enrolled_at"})
	return enrollments, nil
}
