package inmemdb

import (
	"context"

	"github.com/wednesdev-id/semindo-grow-hub-sub003/core"
	"github.com/wednesdev-id/semindo-grow-hub-sub003/core/assessment"
)

type assessmentRepository struct {
	db *DB
}

var _ assessment.Repository = (*assessmentRepository)(nil)

func NewAssessmentRepository(db *DB) assessment.Repository {
	return &assessmentRepository{db: db}
}

var questionnaireSortKeys = map[string]sortKey[assessment.Questionnaire]{
	"title":      func(q assessment.Questionnaire) interface{} { return q.Title },
	"created_at": func(q assessment.Questionnaire) interface{} { return q.CreatedAt },
}

func cloneQuestionnaire(q assessment.Questionnaire) assessment.Questionnaire {
	questions := make([]assessment.Question, len(q.Questions))
	for i, qu := range q.Questions {
		qu.Options = append([]assessment.Option(nil), qu.Options...)
		questions[i] = qu
	}
	q.Questions = questions
	return q
}

// withQuestionIDs assigns ids and positions to the questions.
func withQuestionIDs(q assessment.Questionnaire) assessment.Questionnaire {
	for i := range q.Questions {
		if q.Questions[i].ID == "" {
			q.Questions[i].ID = newID()
		}
		q.Questions[i].Position = i + 1
	}
	return q
}

func (repo *assessmentRepository) CreateQuestionnaire(_ context.Context, q assessment.Questionnaire, _ ...core.DBExecutor) (assessment.Questionnaire, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	q = withQuestionIDs(cloneQuestionnaire(q))
	q.ID = newID()
	repo.db.questionnaires[q.ID] = q
	return cloneQuestionnaire(q), nil
}

func (repo *assessmentRepository) GetQuestionnaire(_ context.Context, id string, _ ...core.DBExecutor) (assessment.Questionnaire, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	if q, ok := repo.db.questionnaires[id]; ok {
		return cloneQuestionnaire(q), nil
	}
	return assessment.Questionnaire{}, assessment.ErrNotFound
}

func (repo *assessmentRepository) ListQuestionnaires(_ context.Context, activeOnly bool, _ ...core.DBExecutor) ([]assessment.Questionnaire, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	qs := make([]assessment.Questionnaire, 0, len(repo.db.questionnaires))
	for _, q := range repo.db.questionnaires {
		if activeOnly && !q.IsActive {
			continue
		}
		qs = append(qs, cloneQuestionnaire(q))
	}
	sortItems(qs, nil, questionnaireSortKeys, core.DBOrdering{Field: "created_at"})
	return qs, nil
}

func (repo *assessmentRepository) UpdateQuestionnaire(_ context.Context, q assessment.Questionnaire, _ ...core.DBExecutor) (assessment.Questionnaire, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	if _, ok := repo.db.questionnaires[q.ID]; !ok {
		return assessment.Questionnaire{}, assessment.ErrNotFound
	}
	q = withQuestionIDs(cloneQuestionnaire(q))
	repo.db.questionnaires[q.ID] = q
	return cloneQuestionnaire(q), nil
}

func (repo *assessmentRepository) DeleteQuestionnaire(_ context.Context, id string, _ ...core.DBExecutor) error {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	if _, ok := repo.db.questionnaires[id]; !ok {
		return assessment.ErrNotFound
	}
	delete(repo.db.questionnaires, id)
	return nil
}

func (repo *assessmentRepository) CountSubmissions(_ context.Context, questionnaireID string, _ ...core.DBExecutor) (int, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	var n int
	for _, s := range repo.db.submissions {
		if s.QuestionnaireID == questionnaireID {
			n++
		}
	}
	return n, nil
}

func (repo *assessmentRepository) CreateSubmission(_ context.Context, sub assessment.Submission, _ ...core.DBExecutor) (assessment.Submission, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	sub.ID = newID()
	repo.db.submissions[sub.ID] = sub
	return sub, nil
}

func (repo *assessmentRepository) GetSubmission(_ context.Context, id string, _ ...core.DBExecutor) (assessment.Submission, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	if s, ok := repo.db.submissions[id]; ok {
		return s, nil
	}
	return assessment.Submission{}, assessment.ErrSubmissionNotFound
}

func (repo *assessmentRepository) ListSubmissions(_ context.Context, profileID string, _ ...core.DBExecutor) ([]assessment.Submission, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	subs := make([]assessment.Submission, 0)
	for _, s := range repo.db.submissions {
		if s.ProfileID == profileID {
			subs = append(subs, s)
		}
	}
	sortItems(subs, nil, map[string]sortKey[assessment.Submission]{
		"created_at": func(s assessment.Submission) interface{} { return s.CreatedAt },
	}, core.DBOrdering{Field: "created_at"})
	return subs, nil
}
