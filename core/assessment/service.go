package assessment

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/wednesdev-id/semindo-grow-hub-sub003/core"
	"github.com/wednesdev-id/semindo-grow-hub-sub003/core/audit"
	"github.com/wednesdev-id/semindo-grow-hub-sub003/core/umkm"
)

// Permission codes checked by this package
const (
	PermManage = "assessments:manage"
	PermSubmit = "assessments:submit"
)

var (
	// errors
	ErrNotFound           = core.NewNotFoundError("questionnaire")
	ErrSubmissionNotFound = core.NewNotFoundError("submission")
	ErrInactive           = core.NewConflictError("questionnaire is not active")
	ErrHasSubmissions     = core.NewConflictError("questionnaire already has submissions")
)

type (
	Repository interface {
		CreateQuestionnaire(ctx context.Context, q Questionnaire, exec ...core.DBExecutor) (Questionnaire, error)
		GetQuestionnaire(ctx context.Context, id string, exec ...core.DBExecutor) (Questionnaire, error)
		ListQuestionnaires(ctx context.Context, activeOnly bool, exec ...core.DBExecutor) ([]Questionnaire, error)
		UpdateQuestionnaire(ctx context.Context, q Questionnaire, exec ...core.DBExecutor) (Questionnaire, error)
		DeleteQuestionnaire(ctx context.Context, id string, exec ...core.DBExecutor) error
		CountSubmissions(ctx context.Context, questionnaireID string, exec ...core.DBExecutor) (int, error)
		CreateSubmission(ctx context.Context, sub Submission, exec ...core.DBExecutor) (Submission, error)
		GetSubmission(ctx context.Context, id string, exec ...core.DBExecutor) (Submission, error)
		// ListSubmissions returns the submissions of a profile, newest first.
		ListSubmissions(ctx context.Context, profileID string, exec ...core.DBExecutor) ([]Submission, error)
	}

	// ProfileGetter gives access to business profiles, enforcing their visibility.
	ProfileGetter interface {
		Get(ctx context.Context, actor core.Actor, id string) (umkm.Profile, error)
		GetByOwner(ctx context.Context, ownerID string) (umkm.Profile, error)
	}

	Service interface {
		CreateQuestionnaire(ctx context.Context, actor core.Actor, in QuestionnaireInput) (Questionnaire, error)
		UpdateQuestionnaire(ctx context.Context, actor core.Actor, id string, in QuestionnaireInput) (Questionnaire, error)
		DeleteQuestionnaire(ctx context.Context, actor core.Actor, id string) error
		GetQuestionnaire(ctx context.Context, actor core.Actor, id string) (Questionnaire, error)
		// ListQuestionnaires returns only active questionnaires to non-managers.
		ListQuestionnaires(ctx context.Context, actor core.Actor, activeOnly bool) ([]Questionnaire, error)
		Submit(ctx context.Context, actor core.Actor, questionnaireID string, ns NewSubmission) (Submission, error)
		GetSubmission(ctx context.Context, actor core.Actor, id string) (Submission, error)
		ListSubmissions(ctx context.Context, actor core.Actor, profileID string) ([]Submission, error)
	}

	service struct {
		repo     Repository
		profiles ProfileGetter
		audit    audit.Recorder
	}
)

var _ Service = (*service)(nil)

func NewService(repo Repository, profiles ProfileGetter, recorder audit.Recorder) Service {
	return &service{repo: repo, profiles: profiles, audit: recorder}
}

// buildQuestions keeps the ids of questions already known in prev and numbers them in order.
func buildQuestions(questions []Question, prev []Question) []Question {
	known := make(map[string]bool, len(prev))
	for _, q := range prev {
		known[q.ID] = true
	}
	built := make([]Question, len(questions))
	for i, q := range questions {
		if !known[q.ID] {
			q.ID = uuid.NewString()
		}
		q.Position = i + 1
		built[i] = q
	}
	return built
}

func (svc *service) CreateQuestionnaire(ctx context.Context, actor core.Actor, in QuestionnaireInput) (Questionnaire, error) {
	if !actor.Can(PermManage) {
		return Questionnaire{}, core.ErrForbidden
	}
	now := time.Now().UTC()
	q, err := svc.repo.CreateQuestionnaire(ctx, Questionnaire{
		Title:       in.Title,
		Description: in.Description,
		IsActive:    in.IsActive,
		Questions:   buildQuestions(in.Questions, nil),
		CreatedAt:   now,
		UpdatedAt:   now,
	})
	if err != nil {
		return Questionnaire{}, errors.Wrap(err, "creating questionnaire")
	}
	svc.audit.Record(ctx, audit.Entry{Action: audit.ActionCreate, Resource: "questionnaire", ResourceID: q.ID})
	return q, nil
}

func (svc *service) UpdateQuestionnaire(ctx context.Context, actor core.Actor, id string, in QuestionnaireInput) (Questionnaire, error) {
	if !actor.Can(PermManage) {
		return Questionnaire{}, core.ErrForbidden
	}
	q, err := svc.repo.GetQuestionnaire(ctx, id)
	if err != nil {
		return Questionnaire{}, err
	}
	q.Title = in.Title
	q.Description = in.Description
	q.IsActive = in.IsActive
	q.Questions = buildQuestions(in.Questions, q.Questions)
	q.UpdatedAt = time.Now().UTC()

	if q, err = svc.repo.UpdateQuestionnaire(ctx, q); err != nil {
		return Questionnaire{}, errors.Wrap(err, "updating questionnaire")
	}
	svc.audit.Record(ctx, audit.Entry{Action: audit.ActionUpdate, Resource: "questionnaire", ResourceID: q.ID})
	return q, nil
}

func (svc *service) DeleteQuestionnaire(ctx context.Context, actor core.Actor, id string) error {
	if !actor.Can(PermManage) {
		return core.ErrForbidden
	}
	if _, err := svc.repo.GetQuestionnaire(ctx, id); err != nil {
		return err
	}
	n, err := svc.repo.CountSubmissions(ctx, id)
	if err != nil {
		return errors.Wrap(err, "counting submissions")
	}
	if n > 0 {
		return ErrHasSubmissions
	}
	if err = svc.repo.DeleteQuestionnaire(ctx, id); err != nil {
		return errors.Wrap(err, "deleting questionnaire")
	}
	svc.audit.Record(ctx, audit.Entry{Action: audit.ActionDelete, Resource: "questionnaire", ResourceID: id})
	return nil
}

func (svc *service) GetQuestionnaire(ctx context.Context, actor core.Actor, id string) (Questionnaire, error) {
	q, err := svc.repo.GetQuestionnaire(ctx, id)
	if err != nil {
		return Questionnaire{}, err
	}
	if !q.IsActive && !actor.Can(PermManage) {
		return Questionnaire{}, ErrNotFound
	}
	return q, nil
}

func (svc *service) ListQuestionnaires(ctx context.Context, actor core.Actor, activeOnly bool) ([]Questionnaire, error) {
	return svc.repo.ListQuestionnaires(ctx, activeOnly || !actor.Can(PermManage))
}

func (svc *service) Submit(ctx context.Context, actor core.Actor, questionnaireID string, ns NewSubmission) (Submission, error) {
	if !actor.Can(PermSubmit) {
		return Submission{}, core.ErrForbidden
	}
	q, err := svc.repo.GetQuestionnaire(ctx, questionnaireID)
	if err != nil {
		return Submission{}, err
	}
	if !q.IsActive {
		return Submission{}, ErrInactive
	}

	var profile umkm.Profile
	if ns.ProfileID == "" {
		profile, err = svc.profiles.GetByOwner(ctx, actor.ID)
	} else {
		profile, err = svc.profiles.Get(ctx, actor, ns.ProfileID)
	}
	if err != nil {
		if errors.Cause(err) == umkm.ErrNotFound {
			return Submission{}, core.NewFieldValidationError("profile_id", "business profile not found")
		}
		return Submission{}, err
	}
	if !profile.OwnedBy(actor.ID) {
		return Submission{}, core.ErrForbidden
	}

	sub := Submission{
		QuestionnaireID: q.ID,
		ProfileID:       profile.ID,
		UserID:          actor.ID,
		Answers:         ns.Answers,
		CreatedAt:       time.Now().UTC(),
	}
	if err = Score(q, &sub); err != nil {
		return Submission{}, err
	}
	if sub, err = svc.repo.CreateSubmission(ctx, sub); err != nil {
		return Submission{}, errors.Wrap(err, "creating submission")
	}
	svc.audit.Record(ctx, audit.Entry{
		Action:     audit.ActionCreate,
		Resource:   "submission",
		ResourceID: sub.ID,
		Metadata:   map[string]interface{}{"profile_id": sub.ProfileID, "level": sub.Level},
	})
	return sub, nil
}

func (svc *service) GetSubmission(ctx context.Context, actor core.Actor, id string) (Submission, error) {
	sub, err := svc.repo.GetSubmission(ctx, id)
	if err != nil {
		return Submission{}, err
	}
	if sub.UserID == actor.ID || actor.Can(PermManage) {
		return sub, nil
	}
	if _, err = svc.profiles.Get(ctx, actor, sub.ProfileID); err != nil {
		if errors.Cause(err) == umkm.ErrNotFound {
			return Submission{}, ErrSubmissionNotFound
		}
		return Submission{}, err
	}
	return sub, nil
}

func (svc *service) ListSubmissions(ctx context.Context, actor core.Actor, profileID string) ([]Submission, error) {
	if _, err := svc.profiles.Get(ctx, actor, profileID); err != nil {
		return nil, err
	}
	return svc.repo.ListSubmissions(ctx, profileID)
}
