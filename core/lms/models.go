package lms

import (
	"regexp"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/wednesdev-id/semindo-grow-hub-sub003/core"
)

// Course levels
const (
	LevelBeginner     = "beginner"
	LevelIntermediate = "intermediate"
	LevelAdvanced     = "advanced"
)

// Enrollment statuses
const (
	EnrollmentActive    = "active"
	EnrollmentCompleted = "completed"
)

var nonSlugRegex = regexp.MustCompile(`[^a-z0-9]+`)

// Slugify lowers s and joins its alphanumeric runs with dashes.
func Slugify(s string) string {
	return strings.Trim(nonSlugRegex.ReplaceAllString(strings.ToLower(s), "-"), "-")
}

type Course struct {
	ID           string    `json:"id"`
	Slug         string    `json:"slug"`
	Title        string    `json:"title"`
	Description  string    `json:"description"`
	Category     string    `json:"category"`
	Level        string    `json:"level"`
	InstructorID string    `json:"instructor_id"`
	IsPublished  bool      `json:"is_published"`
	Lessons      []Lesson  `json:"lessons"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

type Lesson struct {
	ID              string `json:"id"`
	CourseID        string `json:"course_id"`
	Title           string `json:"title"`
	Content         string `json:"content"`
	VideoURL        string `json:"video_url"`
	Position        int    `json:"position"`
	DurationMinutes int    `json:"duration_minutes"`
}

type Enrollment struct {
	ID               string    `json:"id"`
	CourseID         string    `json:"course_id"`
	UserID           string    `json:"user_id"`
	Status           string    `json:"status"`
	Progress         float64   `json:"progress"`
	CompletedLessons []string  `json:"completed_lessons"`
	EnrolledAt       time.Time `json:"enrolled_at"`
	CompletedAt      time.Time `json:"completed_at"`
}

// hasCompleted reports whether the lesson is already completed.
func (e Enrollment) hasCompleted(lessonID string) bool {
	for _, id := range e.CompletedLessons {
		if id == lessonID {
			return true
		}
	}
	return false
}

// CourseInput is used both to create and to replace a Course.
type CourseInput struct {
	Title       string `json:"title" validate:"required,max=200"`
	Description string `json:"description"`
	Category    string `json:"category" validate:"required,max=100"`
	Level       string `json:"level" validate:"required,oneof=beginner intermediate advanced"`
}

func (in *CourseInput) Validate(validate *validator.Validate) error {
	in.Title = core.CleanString(in.Title)
	in.Description = core.CleanString(in.Description)
	in.Category = core.CleanString(in.Category, true /* lower */)
	in.Level = core.CleanString(in.Level, true /* lower */)

	if err := validate.Struct(in); err != nil {
		return err
	}
	if Slugify(in.Title) == "" {
		return core.NewFieldValidationError("title", "must contain letters or digits")
	}
	return nil
}

type LessonInput struct {
	Title           string `json:"title" validate:"required,max=200"`
	Content         string `json:"content"`
	VideoURL        string `json:"video_url" validate:"omitempty,url"`
	DurationMinutes int    `json:"duration_minutes" validate:"gte=0"`
}

func (in *LessonInput) Validate(validate *validator.Validate) error {
	in.Title = core.CleanString(in.Title)
	in.VideoURL = core.CleanString(in.VideoURL)
	return validate.Struct(in)
}

type LessonOrder struct {
	LessonIDs []string `json:"lesson_ids" validate:"required,min=1"`
}

func (lo *LessonOrder) Validate(validate *validator.Validate) error {
	lo.LessonIDs = core.CleanStrings(lo.LessonIDs)
	return validate.Struct(lo)
}

type QueryFilter struct {
	Category  string `query:"category"`
	Level     string `query:"level"`
	Search    string `query:"search"`
	Published *bool  `query:"published"`
}

func (qf *QueryFilter) Clean() {
	qf.Category = core.CleanString(qf.Category, true /* lower */)
	qf.Level = core.CleanString(qf.Level, true /* lower */)
	qf.Search = core.CleanString(qf.Search)
}

// Progress returns the share of completed lessons as a percentage rounded to 2 decimals.
func Progress(completed, total int) float64 {
	if total == 0 {
		return 0
	}
	return core.Round2(float64(completed) / float64(total) * 100)
}
