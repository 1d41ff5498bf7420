package sqlxrepos

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wednesdev-id/semindo-grow-hub-sub003/core/assessment"
)

func Test_assessmentRepository_questionnaires(t *testing.T) {
	db, mock := newMock(t)
	repo := NewAssessmentRepository(db)
	ctx := context.Background()
	now := time.Date(2024, 3, 4, 8, 0, 0, 0, time.UTC)
	opts := []assessment.Option{{Label: "Tidak", Score: 0}, {Label: "Ya", Score: 2}}

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO questionnaires")).
		WillReturnResult(sqlmock.NewResult(0, 1))
	q, err := repo.CreateQuestionnaire(ctx, assessment.Questionnaire{
		Title: "Kesiapan Digital",
		Questions: []assessment.Question{
			{Category: "digital", Text: "Punya toko online?", Options: opts},
			{ID: "q-kept", Category: "finance", Text: "Punya pembukuan?", Options: opts},
		},
		CreatedAt: now,
		UpdatedAt: now,
	})
	require.NoError(t, err)
	assert.True(t, isUUID(q.ID))
	require.Len(t, q.Questions, 2)
	assert.True(t, isUUID(q.Questions[0].ID))
	assert.Equal(t, "q-kept", q.Questions[1].ID)
	assert.Equal(t, []int{1, 2}, []int{q.Questions[0].Position, q.Questions[1].Position})

	questions := []byte(`[{"id":"q1","category":"digital","text":"Punya toko online?","position":1,` +
		`"options":[{"label":"Tidak","score":0},{"label":"Ya","score":2}]}]`)
	mock.ExpectQuery(regexp.QuoteMeta("FROM questionnaires WHERE is_active ORDER BY created_at DESC")).
		WillReturnRows(sqlmock.NewRows(columnNames(questionnaireColumns)).
			AddRow(q.ID, "Kesiapan Digital", "", true, questions, now, now))
	qs, err := repo.ListQuestionnaires(ctx, true)
	require.NoError(t, err)
	require.Len(t, qs, 1)
	require.Len(t, qs[0].Questions, 1)
	assert.Equal(t, "digital", qs[0].Questions[0].Category)
	assert.Equal(t, 2, qs[0].Questions[0].Options[1].Score)

	_, err = repo.GetQuestionnaire(ctx, "lol")
	assert.Equal(t, assessment.ErrNotFound, err)

	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM questionnaires WHERE id = $1")).WithArgs(q.ID).
		WillReturnResult(sqlmock.NewResult(0, 0))
	assert.Equal(t, assessment.ErrNotFound, repo.DeleteQuestionnaire(ctx, q.ID))
}

func Test_assessmentRepository_submissions(t *testing.T) {
	db, mock := newMock(t)
	repo := NewAssessmentRepository(db)
	ctx := context.Background()
	questionnaire, profile, user := newID(), newID(), newID()
	now := time.Date(2024, 3, 4, 8, 0, 0, 0, time.UTC)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO assessment_submissions")).
		WithArgs(sqlmock.AnyArg(), questionnaire, profile, user, []byte(`[{"question_id":"q1","option_index":1}]`),
			2, 2, 100.0, assessment.LevelEstablished, []byte(`{}`), sqlmock.AnyArg(), now).
		WillReturnResult(sqlmock.NewResult(0, 1))
	sub, err := repo.CreateSubmission(ctx, assessment.Submission{
		QuestionnaireID: questionnaire,
		ProfileID:       profile,
		UserID:          user,
		Answers:         []assessment.Answer{{QuestionID: "q1", OptionIndex: 1}},
		TotalScore:      2,
		MaxScore:        2,
		Percentage:      100,
		Level:           assessment.LevelEstablished,
		CreatedAt:       now,
	})
	require.NoError(t, err)
	assert.True(t, isUUID(sub.ID))

	mock.ExpectQuery(regexp.QuoteMeta("FROM assessment_submissions WHERE profile_id = $1 ORDER BY created_at DESC")).
		WithArgs(profile).
		WillReturnRows(sqlmock.NewRows(columnNames(submissionColumns)).AddRow(
			sub.ID, questionnaire, profile, user, []byte(`[{"question_id":"q1","option_index":0}]`), 0, 2, 0.0,
			assessment.LevelBeginner, []byte(`{"digital":0}`), []byte("{digital}"), now,
		))
	subs, err := repo.ListSubmissions(ctx, profile)
	require.NoError(t, err)
	require.Len(t, subs, 1)
	assert.Equal(t, []assessment.Answer{{QuestionID: "q1", OptionIndex: 0}}, subs[0].Answers)
	assert.Equal(t, map[string]float64{"digital": 0}, subs[0].CategoryScores)
	assert.Equal(t, []string{"digital"}, subs[0].WeakCategories)

	subs, err = repo.ListSubmissions(ctx, "lol")
	require.NoError(t, err)
	assert.Empty(t, subs)

	mock.ExpectQuery(regexp.QuoteMeta("FROM assessment_submissions WHERE id = $1")).WithArgs(sub.ID).
		WillReturnRows(sqlmock.NewRows(columnNames(submissionColumns)))
	_, err = repo.GetSubmission(ctx, sub.ID)
	assert.Equal(t, assessment.ErrSubmissionNotFound, err)
}
