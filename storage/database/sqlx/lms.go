package sqlxrepos

import (
	"context"
	"time"

	"github.com/lib/pq"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/wednesdev-id/semindo-grow-hub-sub003/core"
	"github.com/wednesdev-id/semindo-grow-hub-sub003/core/lms"
)

const (
	courseColumns     = "id, slug, title, description, category, level, instructor_id, is_published, created_at, updated_at"
	lessonColumns     = "id, course_id, title, content, video_url, position, duration_minutes"
	enrollmentColumns = "id, course_id, user_id, status, progress, completed_lessons, enrolled_at, completed_at"
)

var courseOrderings = map[string]string{
	"title":      "title",
	"level":      "level",
	"created_at": "created_at",
}

type courseRow struct {
	ID           string    `db:"id"`
	Slug         string    `db:"slug"`
	Title        string    `db:"title"`
	Description  string    `db:"description"`
	Category     string    `db:"category"`
	Level        string    `db:"level"`
	InstructorID string    `db:"instructor_id"`
	IsPublished  bool      `db:"is_published"`
	CreatedAt    time.Time `db:"created_at"`
	UpdatedAt    time.Time `db:"updated_at"`
}

func boilCourse(c lms.Course) courseRow {
	return courseRow{
		ID:           c.ID,
		Slug:         c.Slug,
		Title:        c.Title,
		Description:  c.Description,
		Category:     c.Category,
		Level:        c.Level,
		InstructorID: c.InstructorID,
		IsPublished:  c.IsPublished,
		CreatedAt:    c.CreatedAt.UTC(),
		UpdatedAt:    c.UpdatedAt.UTC(),
	}
}

func (row courseRow) unboil() lms.Course {
	return lms.Course{
		ID:           row.ID,
		Slug:         row.Slug,
		Title:        row.Title,
		Description:  row.Description,
		Category:     row.Category,
		Level:        row.Level,
		InstructorID: row.InstructorID,
		IsPublished:  row.IsPublished,
		CreatedAt:    row.CreatedAt.UTC(),
		UpdatedAt:    row.UpdatedAt.UTC(),
	}
}

type lessonRow struct {
	ID              string `db:"id"`
	CourseID        string `db:"course_id"`
	Title           string `db:"title"`
	Content         string `db:"content"`
	VideoURL        string `db:"video_url"`
	Position        int    `db:"position"`
	DurationMinutes int    `db:"duration_minutes"`
}

type enrollmentRow struct {
	ID               string         `db:"id"`
	CourseID         string         `db:"course_id"`
	UserID           string         `db:"user_id"`
	Status           string         `db:"status"`
	Progress         float64        `db:"progress"`
	CompletedLessons pq.StringArray `db:"completed_lessons"`
	EnrolledAt       time.Time      `db:"enrolled_at"`
	CompletedAt      null.Time      `db:"completed_at"`
}

func boilEnrollment(e lms.Enrollment) enrollmentRow {
	return enrollmentRow{
		ID:               e.ID,
		CourseID:         e.CourseID,
		UserID:           e.UserID,
		Status:           e.Status,
		Progress:         e.Progress,
		CompletedLessons: stringArray(e.CompletedLessons),
		EnrolledAt:       e.EnrolledAt.UTC(),
		CompletedAt:      nullTime(e.CompletedAt),
	}
}

func (row enrollmentRow) unboil() lms.Enrollment {
	return lms.Enrollment{
		ID:               row.ID,
		CourseID:         row.CourseID,
		UserID:           row.UserID,
		Status:           row.Status,
		Progress:         row.Progress,
		CompletedLessons: []string(row.CompletedLessons),
		EnrolledAt:       row.EnrolledAt.UTC(),
		CompletedAt:      timeOf(row.CompletedAt),
	}
}

type lmsRepository struct {
	repository
}

var _ lms.Repository = (*lmsRepository)(nil)

func NewLMSRepository(exec core.DBExecutor) lms.Repository {
	return &lmsRepository{repository{exec: exec}}
}

// Courses

func (repo lmsRepository) CreateCourse(ctx context.Context, c lms.Course, exec ...core.DBExecutor) (lms.Course, error) {
	c.ID = newID()
	q := "INSERT INTO courses (" + courseColumns + `) VALUES (:id, :slug, :title, :description, :category, :level,
		:instructor_id, :is_published, :created_at, :updated_at)`
	if _, err := repo.getExec(exec).NamedExecContext(ctx, q, boilCourse(c)); err != nil {
		return lms.Course{}, errors.Wrap(err, "inserting course")
	}
	c.Lessons = []lms.Lesson{}
	return c, nil
}

func (repo lmsRepository) GetCourse(ctx context.Context, id string, exec ...core.DBExecutor) (lms.Course, error) {
	if !isUUID(id) {
		return lms.Course{}, lms.ErrNotFound
	}
	exe := repo.getExec(exec)

	var row courseRow
	if err := getOne(ctx, exe, &row, "SELECT "+courseColumns+" FROM courses WHERE id = ?", id); err != nil {
		return lms.Course{}, trapNoRowsErr(err, lms.ErrNotFound, "getting course")
	}
	var lessons []lessonRow
	q := "SELECT " + lessonColumns + " FROM lessons WHERE course_id = ? ORDER BY position, id"
	if err := selectAll(ctx, exe, &lessons, q, id); err != nil {
		return lms.Course{}, errors.Wrap(err, "getting lessons")
	}

	c := row.unboil()
	c.Lessons = make([]lms.Lesson, 0, len(lessons))
	for _, l := range lessons {
		c.Lessons = append(c.Lessons, lms.Lesson(l))
	}
	return c, nil
}

func (repo lmsRepository) SlugExists(ctx context.Context, slug, excludedID string, exec ...core.DBExecutor) (bool, error) {
	var found bool
	q := "SELECT EXISTS (SELECT 1 FROM courses WHERE slug = ? AND id::text <> ?)"
	if err := getOne(ctx, repo.getExec(exec), &found, q, slug, excludedID); err != nil {
		return false, errors.Wrap(err, "checking course slug")
	}
	return found, nil
}

func (repo lmsRepository) UpdateCourse(ctx context.Context, c lms.Course, exec ...core.DBExecutor) (lms.Course, error) {
	if !isUUID(c.ID) {
		return lms.Course{}, lms.ErrNotFound
	}
	q := `UPDATE courses SET slug = :slug, title = :title, description = :description, category = :category,
		level = :level, is_published = :is_published, updated_at = :updated_at WHERE id = :id`
	res, err := repo.getExec(exec).NamedExecContext(ctx, q, boilCourse(c))
	if err != nil {
		return lms.Course{}, errors.Wrap(err, "updating course")
	}
	if err := checkAffected(res, lms.ErrNotFound); err != nil {
		return lms.Course{}, err
	}
	return c, nil
}

// DeleteCourse also deletes the lessons, through the foreign key cascade.
func (repo lmsRepository) DeleteCourse(ctx context.Context, id string, exec ...core.DBExecutor) error {
	if !isUUID(id) {
		return lms.ErrNotFound
	}
	res, err := execQuery(ctx, repo.getExec(exec), "DELETE FROM courses WHERE id = ?", id)
	if err != nil {
		return errors.Wrap(err, "deleting course")
	}
	return checkAffected(res, lms.ErrNotFound)
}

func (repo lmsRepository) QueryCourses(ctx context.Context, filter lms.QueryFilter, ordering []core.DBOrdering, page core.Pagination, exec ...core.DBExecutor) ([]lms.Course, error) {
	var conds conditions
	if filter.Category != "" {
		conds.add("category = ?", filter.Category)
	}
	if filter.Level != "" {
		conds.add("level = ?", filter.Level)
	}
	if filter.Published != nil {
		conds.add("is_published = ?", *filter.Published)
	}
	if filter.Search != "" {
		val := like(filter.Search)
		conds.add("(title ILIKE ? OR description ILIKE ?)", val, val)
	}

	q := "SELECT " + courseColumns + " FROM courses" + conds.where() +
		core.OrderBy(ordering, courseOrderings, "created_at DESC") + limitOffset(page)
	var rows []courseRow
	if err := selectAll(ctx, repo.getExec(exec), &rows, q, conds.args...); err != nil {
		return nil, errors.Wrap(err, "querying courses")
	}
	courses := make([]lms.Course, 0, len(rows))
	for _, row := range rows {
		courses = append(courses, row.unboil())
	}
	return courses, nil
}

func (repo lmsRepository) CountEnrollments(ctx context.Context, courseID string, exec ...core.DBExecutor) (int, error) {
	if !isUUID(courseID) {
		return 0, nil
	}
	var n int
	if err := getOne(ctx, repo.getExec(exec), &n, "SELECT COUNT(*) FROM enrollments WHERE course_id = ?", courseID); err != nil {
		return 0, errors.Wrap(err, "counting enrollments")
	}
	return n, nil
}

// Lessons

func (repo lmsRepository) CreateLesson(ctx context.Context, l lms.Lesson, exec ...core.DBExecutor) (lms.Lesson, error) {
	if !isUUID(l.CourseID) {
		return lms.Lesson{}, lms.ErrNotFound
	}
	l.ID = newID()
	q := "INSERT INTO lessons (" + lessonColumns + `) VALUES (:id, :course_id, :title, :content, :video_url,
		:position, :duration_minutes)`
	if _, err := repo.getExec(exec).NamedExecContext(ctx, q, lessonRow(l)); err != nil {
		if pqErr, ok := errors.Cause(err).(*pq.Error); ok && pqErr.Code == "23503" { // foreign_key_violation
			return lms.Lesson{}, lms.ErrNotFound
		}
		return lms.Lesson{}, errors.Wrap(err, "inserting lesson")
	}
	return l, nil
}

func (repo lmsRepository) UpdateLesson(ctx context.Context, l lms.Lesson, exec ...core.DBExecutor) (lms.Lesson, error) {
	if !isUUID(l.ID) {
		return lms.Lesson{}, lms.ErrLessonNotFound
	}
	q := `UPDATE lessons SET title = :title, content = :content, video_url = :video_url, position = :position,
		duration_minutes = :duration_minutes WHERE id = :id`
	res, err := repo.getExec(exec).NamedExecContext(ctx, q, lessonRow(l))
	if err != nil {
		return lms.Lesson{}, errors.Wrap(err, "updating lesson")
	}
	if err := checkAffected(res, lms.ErrLessonNotFound); err != nil {
		return lms.Lesson{}, err
	}
	return l, nil
}

func (repo lmsRepository) DeleteLesson(ctx context.Context, id string, exec ...core.DBExecutor) error {
	if !isUUID(id) {
		return lms.ErrLessonNotFound
	}
	res, err := execQuery(ctx, repo.getExec(exec), "DELETE FROM lessons WHERE id = ?", id)
	if err != nil {
		return errors.Wrap(err, "deleting lesson")
	}
	return checkAffected(res, lms.ErrLessonNotFound)
}

func (repo lmsRepository) SetLessonPositions(ctx context.Context, courseID string, lessonIDs []string, exec ...core.DBExecutor) error {
	exe := repo.getExec(exec)
	for i, id := range lessonIDs {
		res, err := execQuery(ctx, exe, "UPDATE lessons SET position = ? WHERE id = ? AND course_id = ?", i+1, id, courseID)
		if err != nil {
			return errors.Wrap(err, "setting lesson position")
		}
		if err := checkAffected(res, lms.ErrLessonNotFound); err != nil {
			return err
		}
	}
	return nil
}

// Enrollments

func (repo lmsRepository) CreateEnrollment(ctx context.Context, e lms.Enrollment, exec ...core.DBExecutor) (lms.Enrollment, error) {
	e.ID = newID()
	q := "INSERT INTO enrollments (" + enrollmentColumns + `) VALUES (:id, :course_id, :user_id, :status, :progress,
		:completed_lessons, :enrolled_at, :completed_at)`
	if _, err := repo.getExec(exec).NamedExecContext(ctx, q, boilEnrollment(e)); err != nil {
		if _, ok := uniqueConstraint(err); ok {
			return lms.Enrollment{}, lms.ErrAlreadyEnrolled
		}
		return lms.Enrollment{}, errors.Wrap(err, "inserting enrollment")
	}
	return e, nil
}

func (repo lmsRepository) GetEnrollment(ctx context.Context, courseID, userID string, exec ...core.DBExecutor) (lms.Enrollment, error) {
	if !isUUID(courseID) || !isUUID(userID) {
		return lms.Enrollment{}, lms.ErrEnrollmentNotFound
	}
	var row enrollmentRow
	q := "SELECT " + enrollmentColumns + " FROM enrollments WHERE course_id = ? AND user_id = ?"
	if err := getOne(ctx, repo.getExec(exec), &row, q, courseID, userID); err != nil {
		return lms.Enrollment{}, trapNoRowsErr(err, lms.ErrEnrollmentNotFound, "getting enrollment")
	}
	return row.unboil(), nil
}

func (repo lmsRepository) UpdateEnrollment(ctx context.Context, e lms.Enrollment, exec ...core.DBExecutor) (lms.Enrollment, error) {
	if !isUUID(e.ID) {
		return lms.Enrollment{}, lms.ErrEnrollmentNotFound
	}
	q := `UPDATE enrollments SET status = :status, progress = :progress, completed_lessons = :completed_lessons,
		completed_at = :completed_at WHERE id = :id`
	res, err := repo.getExec(exec).NamedExecContext(ctx, q, boilEnrollment(e))
	if err != nil {
		return lms.Enrollment{}, errors.Wrap(err, "updating enrollment")
	}
	if err := checkAffected(res, lms.ErrEnrollmentNotFound); err != nil {
		return lms.Enrollment{}, err
	}
	return e, nil
}

func (repo lmsRepository) ListEnrollments(ctx context.Context, userID string, exec ...core.DBExecutor) ([]lms.Enrollment, error) {
	if !isUUID(userID) {
		return []lms.Enrollment{}, nil
	}
	var rows []enrollmentRow
	q := "SELECT " + enrollmentColumns + " FROM enrollments WHERE user_id = ? ORDER BY enrolled_at DESC"
	if err := selectAll(ctx, repo.getExec(exec), &rows, q, userID); err != nil {
		return nil, errors.Wrap(err, "listing enrollments")
	}
	enrollments := make([]lms.Enrollment, 0, len(rows))
	for _, row := range rows {
		enrollments = append(enrollments, row.unboil())
	}
	return enrollments, nil
}
