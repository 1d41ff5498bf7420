package sqlxrepos

import (
	"context"
	"time"

	"github.com/lib/pq"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/wednesdev-id/semindo-grow-hub-sub003/core"
	"github.com/wednesdev-id/semindo-grow-hub-sub003/core/assessment"
)

const (
	questionnaireColumns = "id, title, description, is_active, questions, created_at, updated_at"
	submissionColumns    = `id, questionnaire_id, profile_id, user_id, answers, total_score, max_score, percentage,
	level, category_scores, weak_categories, created_at`
)

type questionnaireRow struct {
	ID          string    `db:"id"`
	Title       string    `db:"title"`
	Description string    `db:"description"`
	IsActive    bool      `db:"is_active"`
	Questions   null.JSON `db:"questions"`
	CreatedAt   time.Time `db:"created_at"`
	UpdatedAt   time.Time `db:"updated_at"`
}

func (row questionnaireRow) unboil() (assessment.Questionnaire, error) {
	q := assessment.Questionnaire{
		ID:          row.ID,
		Title:       row.Title,
		Description: row.Description,
		IsActive:    row.IsActive,
		CreatedAt:   row.CreatedAt.UTC(),
		UpdatedAt:   row.UpdatedAt.UTC(),
	}
	if row.Questions.Valid {
		if err := row.Questions.Unmarshal(&q.Questions); err != nil {
			return assessment.Questionnaire{}, errors.Wrap(err, "decoding questions")
		}
	}
	return q, nil
}

type submissionRow struct {
	ID              string         `db:"id"`
	QuestionnaireID string         `db:"questionnaire_id"`
	ProfileID       string         `db:"profile_id"`
	UserID          string         `db:"user_id"`
	Answers         null.JSON      `db:"answers"`
	TotalScore      int            `db:"total_score"`
	MaxScore        int            `db:"max_score"`
	Percentage      float64        `db:"percentage"`
	Level           string         `db:"level"`
	CategoryScores  null.JSON      `db:"category_scores"`
	WeakCategories  pq.StringArray `db:"weak_categories"`
	CreatedAt       time.Time      `db:"created_at"`
}

func (row submissionRow) unboil() (assessment.Submission, error) {
	sub := assessment.Submission{
		ID:              row.ID,
		QuestionnaireID: row.QuestionnaireID,
		ProfileID:       row.ProfileID,
		UserID:          row.UserID,
		TotalScore:      row.TotalScore,
		MaxScore:        row.MaxScore,
		Percentage:      row.Percentage,
		Level:           row.Level,
		WeakCategories:  []string(row.WeakCategories),
		CreatedAt:       row.CreatedAt.UTC(),
	}
	if err := row.Answers.Unmarshal(&sub.Answers); err != nil {
		return assessment.Submission{}, errors.Wrap(err, "decoding answers")
	}
	if row.CategoryScores.Valid {
		if err := row.CategoryScores.Unmarshal(&sub.CategoryScores); err != nil {
			return assessment.Submission{}, errors.Wrap(err, "decoding category scores")
		}
	}
	return sub, nil
}

type assessmentRepository struct {
	repository
}

var _ assessment.Repository = (*assessmentRepository)(nil)

func NewAssessmentRepository(exec core.DBExecutor) assessment.Repository {
	return &assessmentRepository{repository{exec: exec}}
}

// boilQuestionnaire assigns ids and positions to the questions before encoding them.
func boilQuestionnaire(q assessment.Questionnaire) (assessment.Questionnaire, questionnaireRow, error) {
	questions := make([]assessment.Question, len(q.Questions))
	for i, qu := range q.Questions {
		if qu.ID == "" {
			qu.ID = newID()
		}
		qu.Position = i + 1
		questions[i] = qu
	}
	q.Questions = questions

	row := questionnaireRow{
		ID:          q.ID,
		Title:       q.Title,
		Description: q.Description,
		IsActive:    q.IsActive,
		CreatedAt:   q.CreatedAt.UTC(),
		UpdatedAt:   q.UpdatedAt.UTC(),
	}
	if err := row.Questions.Marshal(questions); err != nil {
		return q, row, errors.Wrap(err, "encoding questions")
	}
	return q, row, nil
}

func (repo assessmentRepository) CreateQuestionnaire(ctx context.Context, q assessment.Questionnaire, exec ...core.DBExecutor) (assessment.Questionnaire, error) {
	q.ID = newID()
	q, row, err := boilQuestionnaire(q)
	if err != nil {
		return assessment.Questionnaire{}, err
	}
	query := "INSERT INTO questionnaires (" + questionnaireColumns + ") VALUES " +
		"(:id, :title, :description, :is_active, :questions, :created_at, :updated_at)"
	if _, err := repo.getExec(exec).NamedExecContext(ctx, query, row); err != nil {
		return assessment.Questionnaire{}, errors.Wrap(err, "inserting questionnaire")
	}
	return q, nil
}

func (repo assessmentRepository) GetQuestionnaire(ctx context.Context, id string, exec ...core.DBExecutor) (assessment.Questionnaire, error) {
	if !isUUID(id) {
		return assessment.Questionnaire{}, assessment.ErrNotFound
	}
	var row questionnaireRow
	query := "SELECT " + questionnaireColumns + " FROM questionnaires WHERE id = ?"
	if err := getOne(ctx, repo.getExec(exec), &row, query, id); err != nil {
		return assessment.Questionnaire{}, trapNoRowsErr(err, assessment.ErrNotFound, "getting questionnaire")
	}
	return row.unboil()
}

func (repo assessmentRepository) ListQuestionnaires(ctx context.Context, activeOnly bool, exec ...core.DBExecutor) ([]assessment.Questionnaire, error) {
	query := "SELECT " + questionnaireColumns + " FROM questionnaires"
	if activeOnly {
		query += " WHERE is_active"
	}
	query += " ORDER BY created_at DESC"

	var rows []questionnaireRow
	if err := selectAll(ctx, repo.getExec(exec), &rows, query); err != nil {
		return nil, errors.Wrap(err, "listing questionnaires")
	}
	qs := make([]assessment.Questionnaire, 0, len(rows))
	for _, row := range rows {
		q, err := row.unboil()
		if err != nil {
			return nil, err
		}
		qs = append(qs, q)
	}
	return qs, nil
}

func (repo assessmentRepository) UpdateQuestionnaire(ctx context.Context, q assessment.Questionnaire, exec ...core.DBExecutor) (assessment.Questionnaire, error) {
	if !isUUID(q.ID) {
		return assessment.Questionnaire{}, assessment.ErrNotFound
	}
	q, row, err := boilQuestionnaire(q)
	if err != nil {
		return assessment.Questionnaire{}, err
	}
	query := `UPDATE questionnaires SET title = :title, description = :description, is_active = :is_active,
		questions = :questions, updated_at = :updated_at WHERE id = :id`
	res, err := repo.getExec(exec).NamedExecContext(ctx, query, row)
	if err != nil {
		return assessment.Questionnaire{}, errors.Wrap(err, "updating questionnaire")
	}
	if err := checkAffected(res, assessment.ErrNotFound); err != nil {
		return assessment.Questionnaire{}, err
	}
	return q, nil
}

func (repo assessmentRepository) DeleteQuestionnaire(ctx context.Context, id string, exec ...core.DBExecutor) error {
	if !isUUID(id) {
		return assessment.ErrNotFound
	}
	res, err := execQuery(ctx, repo.getExec(exec), "DELETE FROM questionnaires WHERE id = ?", id)
	if err != nil {
		return errors.Wrap(err, "deleting questionnaire")
	}
	return checkAffected(res, assessment.ErrNotFound)
}

func (repo assessmentRepository) CountSubmissions(ctx context.Context, questionnaireID string, exec ...core.DBExecutor) (int, error) {
	if !isUUID(questionnaireID) {
		return 0, nil
	}
	var n int
	query := "SELECT COUNT(*) FROM assessment_submissions WHERE questionnaire_id = ?"
	if err := getOne(ctx, repo.getExec(exec), &n, query, questionnaireID); err != nil {
		return 0, errors.Wrap(err, "counting submissions")
	}
	return n, nil
}

func (repo assessmentRepository) CreateSubmission(ctx context.Context, sub assessment.Submission, exec ...core.DBExecutor) (assessment.Submission, error) {
	sub.ID = newID()
	row := submissionRow{
		ID:              sub.ID,
		QuestionnaireID: sub.QuestionnaireID,
		ProfileID:       sub.ProfileID,
		UserID:          sub.UserID,
		TotalScore:      sub.TotalScore,
		MaxScore:        sub.MaxScore,
		Percentage:      sub.Percentage,
		Level:           sub.Level,
		WeakCategories:  stringArray(sub.WeakCategories),
		CreatedAt:       sub.CreatedAt.UTC(),
	}
	if err := row.Answers.Marshal(sub.Answers); err != nil {
		return assessment.Submission{}, errors.Wrap(err, "encoding answers")
	}
	scores := sub.CategoryScores
	if scores == nil {
		scores = map[string]float64{}
	}
	if err := row.CategoryScores.Marshal(scores); err != nil {
		return assessment.Submission{}, errors.Wrap(err, "encoding category scores")
	}

	query := "INSERT INTO assessment_submissions (" + submissionColumns + `) VALUES (:id, :questionnaire_id,
		:profile_id, :user_id, :answers, :total_score, :max_score, :percentage, :level, :category_scores,
		:weak_categories, :created_at)`
	if _, err := repo.getExec(exec).NamedExecContext(ctx, query, row); err != nil {
		return assessment.Submission{}, errors.Wrap(err, "inserting submission")
	}
	return sub, nil
}

func (repo assessmentRepository) GetSubmission(ctx context.Context, id string, exec ...core.DBExecutor) (assessment.Submission, error) {
	if !isUUID(id) {
		return assessment.Submission{}, assessment.ErrSubmissionNotFound
	}
	var row submissionRow
	query := "SELECT " + submissionColumns + " FROM assessment_submissions WHERE id = ?"
	if err := getOne(ctx, repo.getExec(exec), &row, query, id); err != nil {
		return assessment.Submission{}, trapNoRowsErr(err, assessment.ErrSubmissionNotFound, "getting submission")
	}
	return row.unboil()
}

func (repo assessmentRepository) ListSubmissions(ctx context.Context, profileID string, exec ...core.DBExecutor) ([]assessment.Submission, error) {
	if !isUUID(profileID) {
		return []assessment.Submission{}, nil
	}
	var rows []submissionRow
	query := "SELECT " + submissionColumns + " FROM assessment_submissions WHERE profile_id = ? ORDER BY created_at DESC"
	if err := selectAll(ctx, repo.getExec(exec), &rows, query, profileID); err != nil {
		return nil, errors.Wrap(err, "listing submissions")
	}
	subs := make([]assessment.Submission, 0, len(rows))
	for _, row := range rows {
		sub, err := row.unboil()
		if err != nil {
			return nil, err
		}
		subs = append(subs, sub)
	}
	return subs, nil
}
