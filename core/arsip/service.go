package arsip

import (
	"context"
	"io"
	"net/mail"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/wednesdev-id/semindo-grow-hub-sub003/core"
	"github.com/wednesdev-id/semindo-grow-hub-sub003/core/audit"
	"github.com/wednesdev-id/semindo-grow-hub-sub003/core/user"
)

// Permission codes checked by this package
const (
	PermRead    = "letters:read"
	PermManage  = "letters:manage"
	PermDispose = "letters:dispose"
)

var (
	// errors
	ErrNotFound            = core.NewNotFoundError("letter")
	ErrAttachmentNotFound  = core.NewNotFoundError("attachment")
	ErrDispositionNotFound = core.NewNotFoundError("disposition")
	ErrLetterClosed        = core.NewConflictError("letter is completed or archived")
	ErrInvalidStatus       = core.NewConflictError("operation not allowed in the current letter status")
	ErrInvalidTransition   = core.NewConflictError("disposition status does not allow this operation")
	ErrFileTooLarge        = errors.New("file is too large")
)

type (
	Repository interface {
		// NextAgendaSequence atomically increments and returns the agenda counter of a kind and year.
		NextAgendaSequence(ctx context.Context, kind string, year int, exec ...core.DBExecutor) (int, error)
		CreateLetter(ctx context.Context, l Letter, exec ...core.DBExecutor) (Letter, error)
		// GetLetter returns the letter with its attachments.
		GetLetter(ctx context.Context, id string, exec ...core.DBExecutor) (Letter, error)
		UpdateLetter(ctx context.Context, l Letter, exec ...core.DBExecutor) (Letter, error)
		// QueryLetters returns letters without their attachments, newest first unless ordered.
		QueryLetters(ctx context.Context, filter QueryFilter, ordering []core.DBOrdering, page core.Pagination, exec ...core.DBExecutor) ([]Letter, error)
		HasDisposition(ctx context.Context, letterID, userID string, exec ...core.DBExecutor) (bool, error)

		CreateAttachment(ctx context.Context, a Attachment, exec ...core.DBExecutor) (Attachment, error)
		GetAttachment(ctx context.Context, id string, exec ...core.DBExecutor) (Attachment, error)
		DeleteAttachment(ctx context.Context, id string, exec ...core.DBExecutor) error

		CreateDisposition(ctx context.Context, d Disposition, exec ...core.DBExecutor) (Disposition, error)
		GetDisposition(ctx context.Context, id string, exec ...core.DBExecutor) (Disposition, error)
		UpdateDisposition(ctx context.Context, d Disposition, exec ...core.DBExecutor) (Disposition, error)
		// ListDispositions returns the dispositions of a letter, oldest first.
		ListDispositions(ctx context.Context, letterID string, exec ...core.DBExecutor) ([]Disposition, error)
		// Inbox returns the dispositions sent to a user, newest first; an empty status matches all.
		Inbox(ctx context.Context, userID, status string, exec ...core.DBExecutor) ([]Disposition, error)
	}

	UserFinder interface {
		GetByID(ctx context.Context, id string) (user.User, error)
	}

	// NewAttachment describes an uploaded file.
	NewAttachment struct {
		FileName    string
		ContentType string
		Size        int64
		Content     io.Reader
	}

	Service interface {
		RegisterLetter(ctx context.Context, actor core.Actor, in LetterInput) (Letter, error)
		GetLetter(ctx context.Context, actor core.Actor, id string) (Letter, error)
		QueryLetters(ctx context.Context, actor core.Actor, filter QueryFilter, ordering []core.DBOrdering, page core.Pagination) ([]Letter, error)
		UpdateLetter(ctx context.Context, actor core.Actor, id string, in LetterInput) (Letter, error)
		ArchiveLetter(ctx context.Context, actor core.Actor, id string) (Letter, error)

		AddAttachment(ctx context.Context, actor core.Actor, letterID string, na NewAttachment) (Attachment, error)
		// AttachmentURL returns a direct download URL, or "" when the content must be streamed with OpenAttachment.
		AttachmentURL(ctx context.Context, actor core.Actor, letterID, attachmentID string) (Attachment, string, error)
		OpenAttachment(ctx context.Context, actor core.Actor, letterID, attachmentID string) (Attachment, io.ReadCloser, error)
		DeleteAttachment(ctx context.Context, actor core.Actor, letterID, attachmentID string) error

		Dispose(ctx context.Context, actor core.Actor, letterID string, in DispositionInput) (Disposition, error)
		MarkRead(ctx context.Context, actor core.Actor, id string) (Disposition, error)
		Complete(ctx context.Context, actor core.Actor, id string, in CompleteInput) (Disposition, error)
		Inbox(ctx context.Context, actor core.Actor, status string) ([]Disposition, error)
		ListDispositions(ctx context.Context, actor core.Actor, letterID string) ([]Disposition, error)
	}

	service struct {
		repo    Repository
		users   UserFinder
		storage core.ObjectStorage
		mailSvc core.EmailService
		audit   audit.Recorder
		conf    core.StorageConfig
		nowFunc func() time.Time // mockable
	}
)

var _ Service = (*service)(nil)

func NewService(
	repo Repository, users UserFinder, storage core.ObjectStorage, mailSvc core.EmailService,
	recorder audit.Recorder, conf *core.Config,
) Service {
	return &service{
		repo:    repo,
		users:   users,
		storage: storage,
		mailSvc: mailSvc,
		audit:   recorder,
		conf:    conf.Storage,
		nowFunc: time.Now,
	}
}

// Letters

// visible returns the letter when the actor may see it: managers see everything; confidential
// letters are otherwise restricted to users with a disposition on them, and the rest to readers.
func (svc *service) visible(ctx context.Context, actor core.Actor, id string) (Letter, error) {
	l, err := svc.repo.GetLetter(ctx, id)
	if err != nil {
		return Letter{}, err
	}
	if actor.Can(PermManage) {
		return l, nil
	}
	if !l.IsConfidential() && actor.Can(PermRead) {
		return l, nil
	}
	disposed, err := svc.repo.HasDisposition(ctx, l.ID, actor.ID)
	if err != nil {
		return Letter{}, errors.Wrap(err, "checking dispositions")
	}
	if !disposed {
		return Letter{}, ErrNotFound
	}
	return l, nil
}

func (svc *service) RegisterLetter(ctx context.Context, actor core.Actor, in LetterInput) (Letter, error) {
	if !actor.Can(PermManage) {
		return Letter{}, core.ErrForbidden
	}
	now := svc.nowFunc().UTC()
	seq, err := svc.repo.NextAgendaSequence(ctx, in.Kind, now.Year())
	if err != nil {
		return Letter{}, errors.Wrap(err, "getting agenda sequence")
	}

	l := Letter{
		AgendaNumber:    AgendaNumber(seq, in.Kind, now),
		Kind:            in.Kind,
		ReferenceNumber: in.ReferenceNumber,
		Subject:         in.Subject,
		Sender:          in.Sender,
		Recipient:       in.Recipient,
		LetterDate:      in.LetterDate,
		ReceivedAt:      in.ReceivedAt.UTC(),
		Classification:  in.Classification,
		Summary:         in.Summary,
		Status:          StatusRegistered,
		CreatedBy:       actor.ID,
		CreatedAt:       now,
		UpdatedAt:       now,
		Attachments:     []Attachment{},
	}
	if l.ReceivedAt.IsZero() && l.Kind == KindIncoming {
		l.ReceivedAt = now
	}
	if l, err = svc.repo.CreateLetter(ctx, l); err != nil {
		return Letter{}, errors.Wrap(err, "creating letter")
	}
	svc.audit.Record(ctx, audit.Entry{
		Action:     audit.ActionCreate,
		Resource:   "letter",
		ResourceID: l.ID,
		Metadata:   map[string]interface{}{"agenda_number": l.AgendaNumber},
	})
	return l, nil
}

func (svc *service) GetLetter(ctx context.Context, actor core.Actor, id string) (Letter, error) {
	return svc.visible(ctx, actor, id)
}

func (svc *service) QueryLetters(ctx context.Context, actor core.Actor, filter QueryFilter, ordering []core.DBOrdering, page core.Pagination) ([]Letter, error) {
	filter.Clean()
	if !actor.Can(PermManage) {
		filter.ViewerID = actor.ID
		if !actor.Can(PermRead) {
			filter.DisposedTo = actor.ID
		}
	}
	page.Clean()
	return svc.repo.QueryLetters(ctx, filter, ordering, page)
}

func (svc *service) UpdateLetter(ctx context.Context, actor core.Actor, id string, in LetterInput) (Letter, error) {
	if !actor.Can(PermManage) {
		return Letter{}, core.ErrForbidden
	}
	l, err := svc.repo.GetLetter(ctx, id)
	if err != nil {
		return Letter{}, err
	}
	if l.Status == StatusArchived {
		return Letter{}, ErrLetterClosed
	}
	if in.Kind != l.Kind {
		return Letter{}, core.NewFieldValidationError("kind", "cannot be changed after registration")
	}

	attachments := l.Attachments
	l.ReferenceNumber = in.ReferenceNumber
	l.Subject = in.Subject
	l.Sender = in.Sender
	l.Recipient = in.Recipient
	l.LetterDate = in.LetterDate
	if !in.ReceivedAt.IsZero() {
		l.ReceivedAt = in.ReceivedAt.UTC()
	}
	l.Classification = in.Classification
	l.Summary = in.Summary
	l.UpdatedAt = svc.nowFunc().UTC()
	if l, err = svc.repo.UpdateLetter(ctx, l); err != nil {
		return Letter{}, errors.Wrap(err, "updating letter")
	}
	l.Attachments = attachments
	svc.audit.Record(ctx, audit.Entry{Action: audit.ActionUpdate, Resource: "letter", ResourceID: l.ID})
	return l, nil
}

func (svc *service) ArchiveLetter(ctx context.Context, actor core.Actor, id string) (Letter, error) {
	if !actor.Can(PermManage) {
		return Letter{}, core.ErrForbidden
	}
	l, err := svc.repo.GetLetter(ctx, id)
	if err != nil {
		return Letter{}, err
	}
	if l.Status != StatusRegistered && l.Status != StatusCompleted {
		return Letter{}, ErrInvalidStatus
	}
	return svc.setStatus(ctx, l, StatusArchived)
}

func (svc *service) setStatus(ctx context.Context, l Letter, status string) (Letter, error) {
	attachments := l.Attachments
	from := l.Status
	l.Status = status
	l.UpdatedAt = svc.nowFunc().UTC()
	l, err := svc.repo.UpdateLetter(ctx, l)
	if err != nil {
		return Letter{}, errors.Wrap(err, "updating letter")
	}
	l.Attachments = attachments
	svc.audit.Record(ctx, audit.Entry{
		Action:     "status",
		Resource:   "letter",
		ResourceID: l.ID,
		Metadata:   map[string]interface{}{"from": from, "to": status},
	})
	return l, nil
}

// Attachments

func cleanFileName(name string) string {
	name = path.Base(strings.ReplaceAll(name, "\\", "/"))
	if name == "." || name == "/" || name == "" {
		return "file"
	}
	return name
}

func (svc *service) AddAttachment(ctx context.Context, actor core.Actor, letterID string, na NewAttachment) (Attachment, error) {
	if !actor.Can(PermManage) {
		return Attachment{}, core.ErrForbidden
	}
	l, err := svc.repo.GetLetter(ctx, letterID)
	if err != nil {
		return Attachment{}, err
	}
	if l.Status == StatusArchived {
		return Attachment{}, ErrLetterClosed
	}
	if svc.conf.MaxUploadSize > 0 && na.Size > svc.conf.MaxUploadSize {
		return Attachment{}, core.NewValidationError(ErrFileTooLarge,
			core.FieldError{Field: "file", Error: ErrFileTooLarge.Error()})
	}

	a := Attachment{
		ID:          uuid.NewString(),
		LetterID:    l.ID,
		FileName:    cleanFileName(na.FileName),
		ContentType: na.ContentType,
		Size:        na.Size,
		UploadedBy:  actor.ID,
		UploadedAt:  svc.nowFunc().UTC(),
	}
	if a.ContentType == "" {
		a.ContentType = "application/octet-stream"
	}
	a.StorageKey = path.Join("letters", l.ID, a.ID+path.Ext(a.FileName))

	if err = svc.storage.Put(ctx, a.StorageKey, na.Content, na.Size, a.ContentType); err != nil {
		return Attachment{}, errors.Wrap(err, "storing attachment")
	}
	key := a.StorageKey
	if a, err = svc.repo.CreateAttachment(ctx, a); err != nil {
		_ = svc.storage.Delete(ctx, key)
		return Attachment{}, errors.Wrap(err, "creating attachment")
	}
	svc.audit.Record(ctx, audit.Entry{
		Action:     audit.ActionCreate,
		Resource:   "attachment",
		ResourceID: a.ID,
		Metadata:   map[string]interface{}{"letter_id": l.ID, "file_name": a.FileName, "size": a.Size},
	})
	return a, nil
}

func (svc *service) attachment(ctx context.Context, actor core.Actor, letterID, attachmentID string) (Attachment, error) {
	if _, err := svc.visible(ctx, actor, letterID); err != nil {
		return Attachment{}, err
	}
	a, err := svc.repo.GetAttachment(ctx, attachmentID)
	if err != nil {
		return Attachment{}, err
	}
	if a.LetterID != letterID {
		return Attachment{}, ErrAttachmentNotFound
	}
	return a, nil
}

func (svc *service) AttachmentURL(ctx context.Context, actor core.Actor, letterID, attachmentID string) (Attachment, string, error) {
	a, err := svc.attachment(ctx, actor, letterID, attachmentID)
	if err != nil {
		return Attachment{}, "", err
	}
	url, err := svc.storage.DownloadURL(ctx, a.StorageKey, a.FileName, svc.conf.PresignExpiration)
	if err != nil {
		return Attachment{}, "", errors.Wrap(err, "presigning attachment")
	}
	return a, url, nil
}

func (svc *service) OpenAttachment(ctx context.Context, actor core.Actor, letterID, attachmentID string) (Attachment, io.ReadCloser, error) {
	a, err := svc.attachment(ctx, actor, letterID, attachmentID)
	if err != nil {
		return Attachment{}, nil, err
	}
	rc, err := svc.storage.Get(ctx, a.StorageKey)
	if err != nil {
		if errors.Cause(err) == core.ErrObjectNotFound {
			return Attachment{}, nil, ErrAttachmentNotFound
		}
		return Attachment{}, nil, errors.Wrap(err, "reading attachment")
	}
	return a, rc, nil
}

func (svc *service) DeleteAttachment(ctx context.Context, actor core.Actor, letterID, attachmentID string) error {
	if !actor.Can(PermManage) {
		return core.ErrForbidden
	}
	a, err := svc.attachment(ctx, actor, letterID, attachmentID)
	if err != nil {
		return err
	}
	if err = svc.repo.DeleteAttachment(ctx, a.ID); err != nil {
		return errors.Wrap(err, "deleting attachment")
	}
	if err = svc.storage.Delete(ctx, a.StorageKey); err != nil && errors.Cause(err) != core.ErrObjectNotFound {
		return errors.Wrap(err, "deleting stored attachment")
	}
	svc.audit.Record(ctx, audit.Entry{Action: audit.ActionDelete, Resource: "attachment", ResourceID: a.ID})
	return nil
}

// Dispositions

func (svc *service) Dispose(ctx context.Context, actor core.Actor, letterID string, in DispositionInput) (Disposition, error) {
	l, err := svc.visible(ctx, actor, letterID)
	if err != nil {
		return Disposition{}, err
	}

	if in.ParentID != "" {
		parent, err := svc.repo.GetDisposition(ctx, in.ParentID)
		if err != nil {
			if errors.Cause(err) == ErrDispositionNotFound {
				return Disposition{}, core.NewFieldValidationError("parent_id", "unknown disposition")
			}
			return Disposition{}, err
		}
		if parent.LetterID != l.ID {
			return Disposition{}, core.NewFieldValidationError("parent_id", "belongs to another letter")
		}
		if parent.ToUserID != actor.ID {
			return Disposition{}, core.ErrForbidden
		}
		if parent.Status != DispositionRead {
			return Disposition{}, ErrInvalidTransition
		}
	} else if !actor.Can(PermDispose) {
		return Disposition{}, core.ErrForbidden
	}

	if l.IsClosed() {
		return Disposition{}, ErrLetterClosed
	}
	if in.ToUserID == actor.ID {
		return Disposition{}, core.NewFieldValidationError("to_user_id", "cannot dispose to yourself")
	}
	recipient, err := svc.users.GetByID(ctx, in.ToUserID)
	if err != nil {
		if errors.Cause(err) == user.ErrNotFound {
			return Disposition{}, core.NewFieldValidationError("to_user_id", "unknown user")
		}
		return Disposition{}, err
	}
	if !recipient.Active() {
		return Disposition{}, core.NewFieldValidationError("to_user_id", "user is inactive")
	}

	d, err := svc.repo.CreateDisposition(ctx, Disposition{
		LetterID:    l.ID,
		ParentID:    in.ParentID,
		FromUserID:  actor.ID,
		ToUserID:    recipient.ID,
		Instruction: in.Instruction,
		Note:        in.Note,
		DueDate:     in.DueDate,
		Status:      DispositionAwaiting,
		CreatedAt:   svc.nowFunc().UTC(),
	})
	if err != nil {
		return Disposition{}, errors.Wrap(err, "creating disposition")
	}
	if l.Status != StatusInDisposition {
		if _, err = svc.setStatus(ctx, l, StatusInDisposition); err != nil {
			return Disposition{}, err
		}
	}
	svc.audit.Record(ctx, audit.Entry{
		Action:     "dispose",
		Resource:   "letter",
		ResourceID: l.ID,
		Metadata:   map[string]interface{}{"disposition_id": d.ID, "to_user_id": d.ToUserID, "parent_id": d.ParentID},
	})

	if recipient.Email != "" {
		svc.mailSvc.SendMessages(&core.EmailMessage{
			To:           []mail.Address{{Name: recipient.Name, Address: recipient.Email}},
			Subject:      "New disposition: " + l.AgendaNumber,
			TemplateName: "disposition_assigned",
			TemplateData: map[string]interface{}{
				"RecipientName": recipient.DisplayName(),
				"AgendaNumber":  l.AgendaNumber,
				"Subject":       l.Subject,
				"Instruction":   d.Instruction,
				"DueDate":       d.DueDate,
			},
		})
	}
	return d, nil
}

// received returns the disposition when the actor is its recipient.
func (svc *service) received(ctx context.Context, actor core.Actor, id string) (Disposition, error) {
	d, err := svc.repo.GetDisposition(ctx, id)
	if err != nil {
		return Disposition{}, err
	}
	if d.ToUserID != actor.ID {
		return Disposition{}, core.ErrForbidden
	}
	return d, nil
}

func (svc *service) MarkRead(ctx context.Context, actor core.Actor, id string) (Disposition, error) {
	d, err := svc.received(ctx, actor, id)
	if err != nil {
		return Disposition{}, err
	}
	if d.Status != DispositionAwaiting {
		return Disposition{}, ErrInvalidTransition
	}
	d.Status = DispositionRead
	d.ReadAt = svc.nowFunc().UTC()
	if d, err = svc.repo.UpdateDisposition(ctx, d); err != nil {
		return Disposition{}, errors.Wrap(err, "updating disposition")
	}
	svc.audit.Record(ctx, audit.Entry{Action: "read", Resource: "disposition", ResourceID: d.ID})
	return d, nil
}

func (svc *service) Complete(ctx context.Context, actor core.Actor, id string, in CompleteInput) (Disposition, error) {
	d, err := svc.received(ctx, actor, id)
	if err != nil {
		return Disposition{}, err
	}
	if d.Status != DispositionRead {
		return Disposition{}, ErrInvalidTransition
	}
	d.Status = DispositionCompleted
	d.Response = in.Response
	d.CompletedAt = svc.nowFunc().UTC()
	if d, err = svc.repo.UpdateDisposition(ctx, d); err != nil {
		return Disposition{}, errors.Wrap(err, "updating disposition")
	}
	svc.audit.Record(ctx, audit.Entry{Action: "complete", Resource: "disposition", ResourceID: d.ID})

	if err = svc.completeLetterIfDone(ctx, d.LetterID); err != nil {
		return Disposition{}, err
	}
	return d, nil
}

// completeLetterIfDone completes the letter once all of its dispositions are completed.
func (svc *service) completeLetterIfDone(ctx context.Context, letterID string) error {
	all, err := svc.repo.ListDispositions(ctx, letterID)
	if err != nil {
		return errors.Wrap(err, "listing dispositions")
	}
	for _, d := range all {
		if d.Status != DispositionCompleted {
			return nil
		}
	}
	l, err := svc.repo.GetLetter(ctx, letterID)
	if err != nil {
		return errors.Wrap(err, "getting letter")
	}
	if l.Status != StatusInDisposition {
		return nil
	}
	_, err = svc.setStatus(ctx, l, StatusCompleted)
	return err
}

func (svc *service) Inbox(ctx context.Context, actor core.Actor, status string) ([]Disposition, error) {
	status = core.CleanString(status)
	if status != "" {
		status = strings.ToUpper(status)
		switch status {
		case DispositionAwaiting, DispositionRead, DispositionCompleted:
		default:
			return nil, core.NewFieldValidationError("status", "must be one of AWAITING, READ, COMPLETED")
		}
	}
	return svc.repo.Inbox(ctx, actor.ID, status)
}

func (svc *service) ListDispositions(ctx context.Context, actor core.Actor, letterID string) ([]Disposition, error) {
	if _, err := svc.visible(ctx, actor, letterID); err != nil {
		return nil, err
	}
	return svc.repo.ListDispositions(ctx, letterID)
}
