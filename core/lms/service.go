package lms

import (
	"context"
	"strconv"
	"time"

	"github.com/pkg/errors"

	"github.com/wednesdev-id/semindo-grow-hub-sub003/core"
	"github.com/wednesdev-id/semindo-grow-hub-sub003/core/audit"
	"github.com/wednesdev-id/semindo-grow-hub-sub003/core/user"
)

// Permission codes checked by this package
const (
	PermManage = "courses:manage"
	PermEnroll = "courses:enroll"
)

var (
	// errors
	ErrNotFound           = core.NewNotFoundError("course")
	ErrLessonNotFound     = core.NewNotFoundError("lesson")
	ErrEnrollmentNotFound = core.NewNotFoundError("enrollment")
	ErrAlreadyEnrolled    = core.NewConflictError("already enrolled in this course")
	ErrNotPublished       = core.NewConflictError("course is not published")
	ErrNoLessons          = core.NewConflictError("a course needs at least one lesson to be published")
	ErrHasEnrollments     = core.NewConflictError("course has enrollments")
)

type (
	Repository interface {
		CreateCourse(ctx context.Context, c Course, exec ...core.DBExecutor) (Course, error)
		// GetCourse returns the course with its lessons sorted by position.
		GetCourse(ctx context.Context, id string, exec ...core.DBExecutor) (Course, error)
		SlugExists(ctx context.Context, slug, excludedID string, exec ...core.DBExecutor) (bool, error)
		UpdateCourse(ctx context.Context, c Course, exec ...core.DBExecutor) (Course, error)
		DeleteCourse(ctx context.Context, id string, exec ...core.DBExecutor) error
		// QueryCourses returns courses without their lessons.
		QueryCourses(ctx context.Context, filter QueryFilter, ordering []core.DBOrdering, page core.Pagination, exec ...core.DBExecutor) ([]Course, error)
		CountEnrollments(ctx context.Context, courseID string, exec ...core.DBExecutor) (int, error)

		CreateLesson(ctx context.Context, l Lesson, exec ...core.DBExecutor) (Lesson, error)
		UpdateLesson(ctx context.Context, l Lesson, exec ...core.DBExecutor) (Lesson, error)
		DeleteLesson(ctx context.Context, id string, exec ...core.DBExecutor) error
		// SetLessonPositions numbers the lessons of a course in the given order, from 1.
		SetLessonPositions(ctx context.Context, courseID string, lessonIDs []string, exec ...core.DBExecutor) error

		// CreateEnrollment returns ErrAlreadyEnrolled when the user is already enrolled.
		CreateEnrollment(ctx context.Context, e Enrollment, exec ...core.DBExecutor) (Enrollment, error)
		GetEnrollment(ctx context.Context, courseID, userID string, exec ...core.DBExecutor) (Enrollment, error)
		UpdateEnrollment(ctx context.Context, e Enrollment, exec ...core.DBExecutor) (Enrollment, error)
		ListEnrollments(ctx context.Context, userID string, exec ...core.DBExecutor) ([]Enrollment, error)
	}

	Service interface {
		CreateCourse(ctx context.Context, actor core.Actor, in CourseInput) (Course, error)
		UpdateCourse(ctx context.Context, actor core.Actor, id string, in CourseInput) (Course, error)
		DeleteCourse(ctx context.Context, actor core.Actor, id string) error
		GetCourse(ctx context.Context, actor core.Actor, id string) (Course, error)
		QueryCourses(ctx context.Context, actor core.Actor, filter QueryFilter, ordering []core.DBOrdering, page core.Pagination) ([]Course, error)
		Publish(ctx context.Context, actor core.Actor, id string) (Course, error)
		Unpublish(ctx context.Context, actor core.Actor, id string) (Course, error)

		AddLesson(ctx context.Context, actor core.Actor, courseID string, in LessonInput) (Lesson, error)
		UpdateLesson(ctx context.Context, actor core.Actor, courseID, lessonID string, in LessonInput) (Lesson, error)
		DeleteLesson(ctx context.Context, actor core.Actor, courseID, lessonID string) error
		ReorderLessons(ctx context.Context, actor core.Actor, courseID string, order LessonOrder) (Course, error)

		Enroll(ctx context.Context, actor core.Actor, courseID string) (Enrollment, error)
		CompleteLesson(ctx context.Context, actor core.Actor, courseID, lessonID string) (Enrollment, error)
		MyEnrollments(ctx context.Context, actor core.Actor) ([]Enrollment, error)
	}

	service struct {
		repo  Repository
		audit audit.Recorder
	}
)

var _ Service = (*service)(nil)

func NewService(repo Repository, recorder audit.Recorder) Service {
	return &service{repo: repo, audit: recorder}
}

func isAdmin(actor core.Actor) bool {
	for _, r := range actor.Roles {
		if r == user.RoleSuperAdmin || r == user.RoleAdmin {
			return true
		}
	}
	return false
}

// editable returns the course when the actor authored it, or administers the platform.
func (svc *service) editable(ctx context.Context, actor core.Actor, id string) (Course, error) {
	if !actor.Can(PermManage) {
		return Course{}, core.ErrForbidden
	}
	c, err := svc.repo.GetCourse(ctx, id)
	if err != nil {
		return Course{}, err
	}
	if c.InstructorID != actor.ID && !isAdmin(actor) {
		return Course{}, core.ErrForbidden
	}
	return c, nil
}

// uniqueSlug derives a slug from title, suffixed with a counter when taken.
func (svc *service) uniqueSlug(ctx context.Context, title, excludedID string) (string, error) {
	base := Slugify(title)
	slug := base
	for i := 2; ; i++ {
		exists, err := svc.repo.SlugExists(ctx, slug, excludedID)
		if err != nil {
			return "", errors.Wrap(err, "checking slug")
		}
		if !exists {
			return slug, nil
		}
		slug = base + "-" + strconv.Itoa(i)
	}
}

func (svc *service) CreateCourse(ctx context.Context, actor core.Actor, in CourseInput) (Course, error) {
	if !actor.Can(PermManage) {
		return Course{}, core.ErrForbidden
	}
	slug, err := svc.uniqueSlug(ctx, in.Title, "")
	if err != nil {
		return Course{}, err
	}
	now := time.Now().UTC()
	c, err := svc.repo.CreateCourse(ctx, Course{
		Slug:         slug,
		Title:        in.Title,
		Description:  in.Description,
		Category:     in.Category,
		Level:        in.Level,
		InstructorID: actor.ID,
		Lessons:      []Lesson{},
		CreatedAt:    now,
		UpdatedAt:    now,
	})
	if err != nil {
		return Course{}, errors.Wrap(err, "creating course")
	}
	svc.audit.Record(ctx, audit.Entry{Action: audit.ActionCreate, Resource: "course", ResourceID: c.ID})
	return c, nil
}

func (svc *service) UpdateCourse(ctx context.Context, actor core.Actor, id string, in CourseInput) (Course, error) {
	c, err := svc.editable(ctx, actor, id)
	if err != nil {
		return Course{}, err
	}
	if in.Title != c.Title {
		if c.Slug, err = svc.uniqueSlug(ctx, in.Title, c.ID); err != nil {
			return Course{}, err
		}
	}
	c.Title = in.Title
	c.Description = in.Description
	c.Category = in.Category
	c.Level = in.Level
	return svc.save(ctx, c, audit.ActionUpdate)
}

func (svc *service) save(ctx context.Context, c Course, action string) (Course, error) {
	lessons := c.Lessons
	c.UpdatedAt = time.Now().UTC()
	c, err := svc.repo.UpdateCourse(ctx, c)
	if err != nil {
		return Course{}, errors.Wrap(err, "updating course")
	}
	c.Lessons = lessons
	svc.audit.Record(ctx, audit.Entry{Action: action, Resource: "course", ResourceID: c.ID})
	return c, nil
}

func (svc *service) DeleteCourse(ctx context.Context, actor core.Actor, id string) error {
	c, err := svc.editable(ctx, actor, id)
	if err != nil {
		return err
	}
	n, err := svc.repo.CountEnrollments(ctx, c.ID)
	if err != nil {
		return errors.Wrap(err, "counting enrollments")
	}
	if n > 0 {
		return ErrHasEnrollments
	}
	if err = svc.repo.DeleteCourse(ctx, c.ID); err != nil {
		return errors.Wrap(err, "deleting course")
	}
	svc.audit.Record(ctx, audit.Entry{Action: audit.ActionDelete, Resource: "course", ResourceID: c.ID})
	return nil
}

func (svc *service) GetCourse(ctx context.Context, actor core.Actor, id string) (Course, error) {
	c, err := svc.repo.GetCourse(ctx, id)
	if err != nil {
		return Course{}, err
	}
	if !c.IsPublished && !actor.Can(PermManage) {
		return Course{}, ErrNotFound
	}
	return c, nil
}

func (svc *service) QueryCourses(ctx context.Context, actor core.Actor, filter QueryFilter, ordering []core.DBOrdering, page core.Pagination) ([]Course, error) {
	filter.Clean()
	if !actor.Can(PermManage) {
		published := true
		filter.Published = &published
	}
	page.Clean()
	return svc.repo.QueryCourses(ctx, filter, ordering, page)
}

func (svc *service) Publish(ctx context.Context, actor core.Actor, id string) (Course, error) {
	c, err := svc.editable(ctx, actor, id)
	if err != nil {
		return Course{}, err
	}
	if len(c.Lessons) == 0 {
		return Course{}, ErrNoLessons
	}
	c.IsPublished = true
	return svc.save(ctx, c, "publish")
}

func (svc *service) Unpublish(ctx context.Context, actor core.Actor, id string) (Course, error) {
	c, err := svc.editable(ctx, actor, id)
	if err != nil {
		return Course{}, err
	}
	c.IsPublished = false
	return svc.save(ctx, c, "unpublish")
}

// Lessons

func findLesson(c Course, lessonID string) (Lesson, bool) {
	for _, l := range c.Lessons {
		if l.ID == lessonID {
			return l, true
		}
	}
	return Lesson{}, false
}

func (svc *service) AddLesson(ctx context.Context, actor core.Actor, courseID string, in LessonInput) (Lesson, error) {
	c, err := svc.editable(ctx, actor, courseID)
	if err != nil {
		return Lesson{}, err
	}
	l, err := svc.repo.CreateLesson(ctx, Lesson{
		CourseID:        c.ID,
		Title:           in.Title,
		Content:         in.Content,
		VideoURL:        in.VideoURL,
		Position:        len(c.Lessons) + 1,
		DurationMinutes: in.DurationMinutes,
	})
	if err != nil {
		return Lesson{}, errors.Wrap(err, "creating lesson")
	}
	svc.audit.Record(ctx, audit.Entry{
		Action:     audit.ActionCreate,
		Resource:   "lesson",
		ResourceID: l.ID,
		Metadata:   map[string]interface{}{"course_id": c.ID},
	})
	return l, nil
}

func (svc *service) UpdateLesson(ctx context.Context, actor core.Actor, courseID, lessonID string, in LessonInput) (Lesson, error) {
	c, err := svc.editable(ctx, actor, courseID)
	if err != nil {
		return Lesson{}, err
	}
	l, ok := findLesson(c, lessonID)
	if !ok {
		return Lesson{}, ErrLessonNotFound
	}
	l.Title = in.Title
	l.Content = in.Content
	l.VideoURL = in.VideoURL
	l.DurationMinutes = in.DurationMinutes
	if l, err = svc.repo.UpdateLesson(ctx, l); err != nil {
		return Lesson{}, errors.Wrap(err, "updating lesson")
	}
	svc.audit.Record(ctx, audit.Entry{Action: audit.ActionUpdate, Resource: "lesson", ResourceID: l.ID})
	return l, nil
}

func (svc *service) DeleteLesson(ctx context.Context, actor core.Actor, courseID, lessonID string) error {
	c, err := svc.editable(ctx, actor, courseID)
	if err != nil {
		return err
	}
	if _, ok := findLesson(c, lessonID); !ok {
		return ErrLessonNotFound
	}
	if c.IsPublished && len(c.Lessons) == 1 {
		return ErrNoLessons
	}
	if err = svc.repo.DeleteLesson(ctx, lessonID); err != nil {
		return errors.Wrap(err, "deleting lesson")
	}

	remaining := make([]string, 0, len(c.Lessons)-1)
	for _, l := range c.Lessons {
		if l.ID != lessonID {
			remaining = append(remaining, l.ID)
		}
	}
	if err = svc.repo.SetLessonPositions(ctx, c.ID, remaining); err != nil {
		return errors.Wrap(err, "renumbering lessons")
	}
	svc.audit.Record(ctx, audit.Entry{Action: audit.ActionDelete, Resource: "lesson", ResourceID: lessonID})
	return nil
}

func (svc *service) ReorderLessons(ctx context.Context, actor core.Actor, courseID string, order LessonOrder) (Course, error) {
	c, err := svc.editable(ctx, actor, courseID)
	if err != nil {
		return Course{}, err
	}

	notPermutation := core.NewFieldValidationError("lesson_ids", "must list every lesson of the course exactly once")
	if len(order.LessonIDs) != len(c.Lessons) {
		return Course{}, notPermutation
	}
	seen := make(map[string]bool, len(order.LessonIDs))
	for _, id := range order.LessonIDs {
		if _, ok := findLesson(c, id); !ok || seen[id] {
			return Course{}, notPermutation
		}
		seen[id] = true
	}

	if err = svc.repo.SetLessonPositions(ctx, c.ID, order.LessonIDs); err != nil {
		return Course{}, errors.Wrap(err, "reordering lessons")
	}
	svc.audit.Record(ctx, audit.Entry{Action: "reorder", Resource: "course", ResourceID: c.ID})
	return svc.repo.GetCourse(ctx, c.ID)
}

// Enrollments

func (svc *service) Enroll(ctx context.Context, actor core.Actor, courseID string) (Enrollment, error) {
	if !actor.Can(PermEnroll) {
		return Enrollment{}, core.ErrForbidden
	}
	c, err := svc.repo.GetCourse(ctx, courseID)
	if err != nil {
		return Enrollment{}, err
	}
	if !c.IsPublished {
		return Enrollment{}, ErrNotPublished
	}
	e, err := svc.repo.CreateEnrollment(ctx, Enrollment{
		CourseID:         c.ID,
		UserID:           actor.ID,
		Status:           EnrollmentActive,
		CompletedLessons: []string{},
		EnrolledAt:       time.Now().UTC(),
	})
	if err != nil {
		if errors.Cause(err) == ErrAlreadyEnrolled {
			return Enrollment{}, ErrAlreadyEnrolled
		}
		return Enrollment{}, errors.Wrap(err, "creating enrollment")
	}
	svc.audit.Record(ctx, audit.Entry{
		Action:     "enroll",
		Resource:   "course",
		ResourceID: c.ID,
		Metadata:   map[string]interface{}{"enrollment_id": e.ID},
	})
	return e, nil
}

func (svc *service) CompleteLesson(ctx context.Context, actor core.Actor, courseID, lessonID string) (Enrollment, error) {
	c, err := svc.repo.GetCourse(ctx, courseID)
	if err != nil {
		return Enrollment{}, err
	}
	if _, ok := findLesson(c, lessonID); !ok {
		return Enrollment{}, ErrLessonNotFound
	}
	e, err := svc.repo.GetEnrollment(ctx, c.ID, actor.ID)
	if err != nil {
		return Enrollment{}, err
	}
	if e.hasCompleted(lessonID) {
		return e, nil
	}

	e.CompletedLessons = append(e.CompletedLessons, lessonID)
	var done int
	for _, id := range e.CompletedLessons {
		if _, ok := findLesson(c, id); ok {
			done++
		}
	}
	e.Progress = Progress(done, len(c.Lessons))
	if e.Progress >= 100 && e.Status != EnrollmentCompleted {
		e.Status = EnrollmentCompleted
		e.CompletedAt = time.Now().UTC()
	}
	if e, err = svc.repo.UpdateEnrollment(ctx, e); err != nil {
		return Enrollment{}, errors.Wrap(err, "updating enrollment")
	}
	return e, nil
}

func (svc *service) MyEnrollments(ctx context.Context, actor core.Actor) ([]Enrollment, error) {
	return svc.repo.ListEnrollments(ctx, actor.ID)
}
