package assessment

import (
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/wednesdev-id/semindo-grow-hub-sub003/core"
)

// Maturity levels
const (
	LevelBeginner    = "beginner"
	LevelDeveloping  = "developing"
	LevelEstablished = "established"
)

const (
	developingThreshold  = 40.0
	establishedThreshold = 70.0
	weakCategoryBelow    = 50.0
)

type Option struct {
	Label string `json:"label" validate:"required"`
	Score int    `json:"score" validate:"gte=0"`
}

type Question struct {
	ID       string   `json:"id"`
	Category string   `json:"category" validate:"required"`
	Text     string   `json:"text" validate:"required"`
	Position int      `json:"position"`
	Options  []Option `json:"options" validate:"min=2,dive"`
}

func (q Question) maxScore() int {
	var max int
	for _, o := range q.Options {
		if o.Score > max {
			max = o.Score
		}
	}
	return max
}

type Questionnaire struct {
	ID          string     `json:"id"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	IsActive    bool       `json:"is_active"`
	Questions   []Question `json:"questions"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

type Answer struct {
	QuestionID  string `json:"question_id" validate:"required"`
	OptionIndex int    `json:"option_index" validate:"gte=0"`
}

type Submission struct {
	ID              string             `json:"id"`
	QuestionnaireID string             `json:"questionnaire_id"`
	ProfileID       string             `json:"profile_id"`
	UserID          string             `json:"user_id"`
	Answers         []Answer           `json:"answers"`
	TotalScore      int                `json:"total_score"`
	MaxScore        int                `json:"max_score"`
	Percentage      float64            `json:"percentage"`
	Level           string             `json:"level"`
	CategoryScores  map[string]float64 `json:"category_scores"`
	WeakCategories  []string           `json:"weak_categories"`
	CreatedAt       time.Time          `json:"created_at"`
}

// QuestionnaireInput is used both to create and to replace a Questionnaire.
type QuestionnaireInput struct {
	Title       string     `json:"title" validate:"required,max=200"`
	Description string     `json:"description"`
	IsActive    bool       `json:"is_active"`
	Questions   []Question `json:"questions" validate:"min=1,dive"`
}

func (in *QuestionnaireInput) Validate(validate *validator.Validate) error {
	in.Title = core.CleanString(in.Title)
	in.Description = core.CleanString(in.Description)
	for i := range in.Questions {
		q := &in.Questions[i]
		q.Category = core.CleanString(q.Category, true /* lower */)
		q.Text = core.CleanString(q.Text)
		for j := range q.Options {
			q.Options[j].Label = core.CleanString(q.Options[j].Label)
		}
	}
	return validate.Struct(in)
}

type NewSubmission struct {
	ProfileID string   `json:"profile_id"`
	Answers   []Answer `json:"answers" validate:"min=1,dive"`
}

func (ns *NewSubmission) Validate(validate *validator.Validate) error {
	ns.ProfileID = core.CleanString(ns.ProfileID)
	return validate.Struct(ns)
}
