package arsip

import (
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/wednesdev-id/semindo-grow-hub-sub003/core"
)

// Letter kinds
const (
	KindIncoming = "incoming"
	KindOutgoing = "outgoing"
)

// Letter classifications
const (
	ClassRegular      = "regular"
	ClassImportant    = "important"
	ClassConfidential = "confidential"
)

// Letter statuses
const (
	StatusRegistered    = "registered"
	StatusInDisposition = "in_disposition"
	StatusCompleted     = "completed"
	StatusArchived      = "archived"
)

// Disposition statuses
const (
	DispositionAwaiting  = "AWAITING"
	DispositionRead      = "READ"
	DispositionCompleted = "COMPLETED"
)

var romanMonths = [...]string{"I", "II", "III", "IV", "V", "VI", "VII", "VIII", "IX", "X", "XI", "XII"}

// AgendaNumber formats the register number of a letter, eg. 0007/IN/III/2024.
func AgendaNumber(seq int, kind string, date time.Time) string {
	code := "IN"
	if kind == KindOutgoing {
		code = "OUT"
	}
	return fmt.Sprintf("%04d/%s/%s/%d", seq, code, romanMonths[date.Month()-1], date.Year())
}

type Letter struct {
	ID              string       `json:"id"`
	AgendaNumber    string       `json:"agenda_number"`
	Kind            string       `json:"kind"`
	ReferenceNumber string       `json:"reference_number"`
	Subject         string       `json:"subject"`
	Sender          string       `json:"sender"`
	Recipient       string       `json:"recipient"`
	LetterDate      string       `json:"letter_date"` // YYYY-MM-DD
	ReceivedAt      time.Time    `json:"received_at"`
	Classification  string       `json:"classification"`
	Summary         string       `json:"summary"`
	Status          string       `json:"status"`
	CreatedBy       string       `json:"created_by"`
	CreatedAt       time.Time    `json:"created_at"`
	UpdatedAt       time.Time    `json:"updated_at"`
	Attachments     []Attachment `json:"attachments"`
}

func (l Letter) IsConfidential() bool { return l.Classification == ClassConfidential }

// IsClosed reports whether the letter no longer accepts dispositions.
func (l Letter) IsClosed() bool {
	return l.Status == StatusCompleted || l.Status == StatusArchived
}

type Attachment struct {
	ID          string    `json:"id"`
	LetterID    string    `json:"letter_id"`
	FileName    string    `json:"file_name"`
	ContentType string    `json:"content_type"`
	Size        int64     `json:"size"`
	StorageKey  string    `json:"-"`
	UploadedBy  string    `json:"uploaded_by"`
	UploadedAt  time.Time `json:"uploaded_at"`
}

type Disposition struct {
	ID          string    `json:"id"`
	LetterID    string    `json:"letter_id"`
	ParentID    string    `json:"parent_id"`
	FromUserID  string    `json:"from_user_id"`
	ToUserID    string    `json:"to_user_id"`
	Instruction string    `json:"instruction"`
	Note        string    `json:"note"`
	DueDate     string    `json:"due_date"` // YYYY-MM-DD
	Status      string    `json:"status"`
	ReadAt      time.Time `json:"read_at"`
	CompletedAt time.Time `json:"completed_at"`
	Response    string    `json:"response"`
	CreatedAt   time.Time `json:"created_at"`
}

// LetterInput is used both to register and to edit a Letter; Kind cannot change after registration.
type LetterInput struct {
	Kind            string    `json:"kind" validate:"required,oneof=incoming outgoing"`
	ReferenceNumber string    `json:"reference_number" validate:"required,max=100"`
	Subject         string    `json:"subject" validate:"required,max=300"`
	Sender          string    `json:"sender" validate:"required,max=200"`
	Recipient       string    `json:"recipient" validate:"required,max=200"`
	LetterDate      string    `json:"letter_date" validate:"required,isodate"`
	ReceivedAt      time.Time `json:"received_at"`
	Classification  string    `json:"classification" validate:"omitempty,oneof=regular important confidential"`
	Summary         string    `json:"summary"`
}

func (in *LetterInput) Validate(validate *validator.Validate) error {
	in.Kind = core.CleanString(in.Kind, true /* lower */)
	in.ReferenceNumber = core.CleanString(in.ReferenceNumber)
	in.Subject = core.CleanString(in.Subject)
	in.Sender = core.CleanString(in.Sender)
	in.Recipient = core.CleanString(in.Recipient)
	in.LetterDate = core.CleanString(in.LetterDate)
	in.Classification = core.CleanString(in.Classification, true /* lower */)
	in.Summary = core.CleanString(in.Summary)
	if in.Classification == "" {
		in.Classification = ClassRegular
	}
	return validate.Struct(in)
}

type DispositionInput struct {
	ToUserID    string `json:"to_user_id" validate:"required"`
	Instruction string `json:"instruction" validate:"required"`
	Note        string `json:"note"`
	DueDate     string `json:"due_date" validate:"omitempty,isodate"`
	ParentID    string `json:"parent_id"`
}

func (in *DispositionInput) Validate(validate *validator.Validate) error {
	in.ToUserID = core.CleanString(in.ToUserID)
	in.Instruction = core.CleanString(in.Instruction)
	in.Note = core.CleanString(in.Note)
	in.DueDate = core.CleanString(in.DueDate)
	in.ParentID = core.CleanString(in.ParentID)
	return validate.Struct(in)
}

type CompleteInput struct {
	Response string `json:"response" validate:"required"`
}

func (in *CompleteInput) Validate(validate *validator.Validate) error {
	in.Response = core.CleanString(in.Response)
	return validate.Struct(in)
}

type QueryFilter struct {
	Kind           string `query:"kind"`
	Status         string `query:"status"`
	Classification string `query:"classification"`
	Search         string `query:"search"`
	DateFrom       string `query:"date_from"`
	DateTo         string `query:"date_to"`

	// ViewerID restricts confidential letters to those disposed to the viewer.
	ViewerID string `query:"-"`
	// DisposedTo restricts to letters with a disposition to the user.
	DisposedTo string `query:"-"`
}

func (qf *QueryFilter) Clean() {
	qf.Kind = core.CleanString(qf.Kind, true /* lower */)
	qf.Status = core.CleanString(qf.Status, true /* lower */)
	qf.Classification = core.CleanString(qf.Classification, true /* lower */)
	qf.Search = core.CleanString(qf.Search)
	qf.DateFrom = core.CleanString(qf.DateFrom)
	qf.DateTo = core.CleanString(qf.DateTo)
}
