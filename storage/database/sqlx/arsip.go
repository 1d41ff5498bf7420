package sqlxrepos

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/wednesdev-id/semindo-grow-hub-sub003/core"
	"github.com/wednesdev-id/semindo-grow-hub-sub003/core/arsip"
)

const (
	letterColumns = `l.id, l.agenda_number, l.kind, l.reference_number, l.subject, l.sender, l.recipient,
	to_char(l.letter_date, 'YYYY-MM-DD') AS letter_date, l.received_at, l.classification, l.summary, l.status,
	l.created_by, l.created_at, l.updated_at`
	attachmentColumns  = "id, letter_id, file_name, content_type, size, storage_key, uploaded_by, uploaded_at"
	dispositionColumns = `id, letter_id, parent_id, from_user_id, to_user_id, instruction, note,
	to_char(due_date, 'YYYY-MM-DD') AS due_date, status, read_at, completed_at, response, created_at`

	disposedToClause = "EXISTS (SELECT 1 FROM dispositions d WHERE d.letter_id = l.id AND d.to_user_id = ?)"
)

var letterOrderings = map[string]string{
	"agenda_number": "l.agenda_number",
	"letter_date":   "l.letter_date",
	"received_at":   "l.received_at",
	"subject":       "l.subject",
	"created_at":    "l.created_at",
}

type letterRow struct {
	ID              string    `db:"id"`
	AgendaNumber    string    `db:"agenda_number"`
	Kind            string    `db:"kind"`
	ReferenceNumber string    `db:"reference_number"`
	Subject         string    `db:"subject"`
	Sender          string    `db:"sender"`
	Recipient       string    `db:"recipient"`
	LetterDate      string    `db:"letter_date"`
	ReceivedAt      null.Time `db:"received_at"`
	Classification  string    `db:"classification"`
	Summary         string    `db:"summary"`
	Status          string    `db:"status"`
	CreatedBy       string    `db:"created_by"`
	CreatedAt       time.Time `db:"created_at"`
	UpdatedAt       time.Time `db:"updated_at"`
}

func boilLetter(l arsip.Letter) letterRow {
	return letterRow{
		ID:              l.ID,
		AgendaNumber:    l.AgendaNumber,
		Kind:            l.Kind,
		ReferenceNumber: l.ReferenceNumber,
		Subject:         l.Subject,
		Sender:          l.Sender,
		Recipient:       l.Recipient,
		LetterDate:      l.LetterDate,
		ReceivedAt:      nullTime(l.ReceivedAt),
		Classification:  l.Classification,
		Summary:         l.Summary,
		Status:          l.Status,
		CreatedBy:       l.CreatedBy,
		CreatedAt:       l.CreatedAt.UTC(),
		UpdatedAt:       l.UpdatedAt.UTC(),
	}
}

func (row letterRow) unboil() arsip.Letter {
	return arsip.Letter{
		ID:              row.ID,
		AgendaNumber:    row.AgendaNumber,
		Kind:            row.Kind,
		ReferenceNumber: row.ReferenceNumber,
		Subject:         row.Subject,
		Sender:          row.Sender,
		Recipient:       row.Recipient,
		LetterDate:      row.LetterDate,
		ReceivedAt:      timeOf(row.ReceivedAt),
		Classification:  row.Classification,
		Summary:         row.Summary,
		Status:          row.Status,
		CreatedBy:       row.CreatedBy,
		CreatedAt:       row.CreatedAt.UTC(),
		UpdatedAt:       row.UpdatedAt.UTC(),
	}
}

type attachmentRow struct {
	ID          string    `db:"id"`
	LetterID    string    `db:"letter_id"`
	FileName    string    `db:"file_name"`
	ContentType string    `db:"content_type"`
	Size        int64     `db:"size"`
	StorageKey  string    `db:"storage_key"`
	UploadedBy  string    `db:"uploaded_by"`
	UploadedAt  time.Time `db:"uploaded_at"`
}

func (row attachmentRow) unboil() arsip.Attachment {
	a := arsip.Attachment(row)
	a.UploadedAt = row.UploadedAt.UTC()
	return a
}

type dispositionRow struct {
	ID          string      `db:"id"`
	LetterID    string      `db:"letter_id"`
	ParentID    null.String `db:"parent_id"`
	FromUserID  string      `db:"from_user_id"`
	ToUserID    string      `db:"to_user_id"`
	Instruction string      `db:"instruction"`
	Note        string      `db:"note"`
	DueDate     null.String `db:"due_date"`
	Status      string      `db:"status"`
	ReadAt      null.Time   `db:"read_at"`
	CompletedAt null.Time   `db:"completed_at"`
	Response    string      `db:"response"`
	CreatedAt   time.Time   `db:"created_at"`
}

func boilDisposition(d arsip.Disposition) dispositionRow {
	return dispositionRow{
		ID:          d.ID,
		LetterID:    d.LetterID,
		ParentID:    nullString(d.ParentID),
		FromUserID:  d.FromUserID,
		ToUserID:    d.ToUserID,
		Instruction: d.Instruction,
		Note:        d.Note,
		DueDate:     nullString(d.DueDate),
		Status:      d.Status,
		ReadAt:      nullTime(d.ReadAt),
		CompletedAt: nullTime(d.CompletedAt),
		Response:    d.Response,
		CreatedAt:   d.CreatedAt.UTC(),
	}
}

func (row dispositionRow) unboil() arsip.Disposition {
	return arsip.Disposition{
		ID:          row.ID,
		LetterID:    row.LetterID,
		ParentID:    row.ParentID.String,
		FromUserID:  row.FromUserID,
		ToUserID:    row.ToUserID,
		Instruction: row.Instruction,
		Note:        row.Note,
		DueDate:     row.DueDate.String,
		Status:      row.Status,
		ReadAt:      timeOf(row.ReadAt),
		CompletedAt: timeOf(row.CompletedAt),
		Response:    row.Response,
		CreatedAt:   row.CreatedAt.UTC(),
	}
}

type arsipRepository struct {
	repository
}

var _ arsip.Repository = (*arsipRepository)(nil)

func NewArsipRepository(exec core.DBExecutor) arsip.Repository {
	return &arsipRepository{repository{exec: exec}}
}

func (repo arsipRepository) NextAgendaSequence(ctx context.Context, kind string, year int, exec ...core.DBExecutor) (int, error) {
	var seq int
	q := `INSERT INTO agenda_counters (kind, year, last_seq) VALUES (?, ?, 1)
		ON CONFLICT (kind, year) DO UPDATE SET last_seq = agenda_counters.last_seq + 1
		RETURNING last_seq`
	if err := getOne(ctx, repo.getExec(exec), &seq, q, kind, year); err != nil {
		return 0, errors.Wrap(err, "incrementing agenda counter")
	}
	return seq, nil
}

// Letters

func (repo arsipRepository) CreateLetter(ctx context.Context, l arsip.Letter, exec ...core.DBExecutor) (arsip.Letter, error) {
	l.ID = newID()
	q := `INSERT INTO letters (id, agenda_number, kind, reference_number, subject, sender, recipient, letter_date,
		received_at, classification, summary, status, created_by, created_at, updated_at) VALUES (:id, :agenda_number,
		:kind, :reference_number, :subject, :sender, :recipient, :letter_date, :received_at, :classification,
		:summary, :status, :created_by, :created_at, :updated_at)`
	if _, err := repo.getExec(exec).NamedExecContext(ctx, q, boilLetter(l)); err != nil {
		return arsip.Letter{}, errors.Wrap(err, "inserting letter")
	}
	l.Attachments = []arsip.Attachment{}
	return l, nil
}

func (repo arsipRepository) GetLetter(ctx context.Context, id string, exec ...core.DBExecutor) (arsip.Letter, error) {
	if !isUUID(id) {
		return arsip.Letter{}, arsip.ErrNotFound
	}
	exe := repo.getExec(exec)

	var row letterRow
	if err := getOne(ctx, exe, &row, "SELECT "+letterColumns+" FROM letters l WHERE l.id = ?", id); err != nil {
		return arsip.Letter{}, trapNoRowsErr(err, arsip.ErrNotFound, "getting letter")
	}
	var attachments []attachmentRow
	q := "SELECT " + attachmentColumns + " FROM letter_attachments WHERE letter_id = ? ORDER BY uploaded_at"
	if err := selectAll(ctx, exe, &attachments, q, id); err != nil {
		return arsip.Letter{}, errors.Wrap(err, "getting attachments")
	}

	l := row.unboil()
	l.Attachments = make([]arsip.Attachment, 0, len(attachments))
	for _, a := range attachments {
		l.Attachments = append(l.Attachments, a.unboil())
	}
	return l, nil
}

func (repo arsipRepository) UpdateLetter(ctx context.Context, l arsip.Letter, exec ...core.DBExecutor) (arsip.Letter, error) {
	if !isUUID(l.ID) {
		return arsip.Letter{}, arsip.ErrNotFound
	}
	q := `UPDATE letters SET reference_number = :reference_number, subject = :subject, sender = :sender,
		recipient = :recipient, letter_date = :letter_date, received_at = :received_at,
		classification = :classification, summary = :summary, status = :status, updated_at = :updated_at
		WHERE id = :id`
	res, err := repo.getExec(exec).NamedExecContext(ctx, q, boilLetter(l))
	if err != nil {
		return arsip.Letter{}, errors.Wrap(err, "updating letter")
	}
	if err := checkAffected(res, arsip.ErrNotFound); err != nil {
		return arsip.Letter{}, err
	}
	return l, nil
}

func (repo arsipRepository) QueryLetters(ctx context.Context, filter arsip.QueryFilter, ordering []core.DBOrdering, page core.Pagination, exec ...core.DBExecutor) ([]arsip.Letter, error) {
	var conds conditions
	if filter.Kind != "" {
		conds.add("l.kind = ?", filter.Kind)
	}
	if filter.Status != "" {
		conds.add("l.status = ?", filter.Status)
	}
	if filter.Classification != "" {
		conds.add("l.classification = ?", filter.Classification)
	}
	if filter.DateFrom != "" {
		conds.add("l.letter_date >= ?", filter.DateFrom)
	}
	if filter.DateTo != "" {
		conds.add("l.letter_date <= ?", filter.DateTo)
	}
	if filter.Search != "" {
		val := like(filter.Search)
		conds.add(`(l.subject ILIKE ? OR l.sender ILIKE ? OR l.recipient ILIKE ? OR l.agenda_number ILIKE ?
			OR l.reference_number ILIKE ?)`, val, val, val, val, val)
	}
	for _, id := range []string{filter.DisposedTo, filter.ViewerID} {
		if id != "" && !isUUID(id) {
			return []arsip.Letter{}, nil
		}
	}
	if filter.DisposedTo != "" {
		conds.add(disposedToClause, filter.DisposedTo)
	}
	if filter.ViewerID != "" {
		conds.add("(l.classification <> ? OR "+disposedToClause+")", arsip.ClassConfidential, filter.ViewerID)
	}

	q := "SELECT " + letterColumns + " FROM letters l" + conds.where() +
		core.OrderBy(ordering, letterOrderings, "l.created_at DESC") + limitOffset(page)
	var rows []letterRow
	if err := selectAll(ctx, repo.getExec(exec), &rows, q, conds.args...); err != nil {
		return nil, errors.Wrap(err, "querying letters")
	}
	letters := make([]arsip.Letter, 0, len(rows))
	for _, row := range rows {
		letters = append(letters, row.unboil())
	}
	return letters, nil
}

func (repo arsipRepository) HasDisposition(ctx context.Context, letterID, userID string, exec ...core.DBExecutor) (bool, error) {
	if !isUUID(letterID) || !isUUID(userID) {
		return false, nil
	}
	var found bool
	q := "SELECT EXISTS (SELECT 1 FROM dispositions WHERE letter_id = ? AND to_user_id = ?)"
	if err := getOne(ctx, repo.getExec(exec), &found, q, letterID, userID); err != nil {
		return false, errors.Wrap(err, "checking dispositions")
	}
	return found, nil
}

// Attachments

func (repo arsipRepository) CreateAttachment(ctx context.Context, a arsip.Attachment, exec ...core.DBExecutor) (arsip.Attachment, error) {
	if !isUUID(a.LetterID) {
		return arsip.Attachment{}, arsip.ErrNotFound
	}
	if a.ID == "" {
		a.ID = newID()
	}
	row := attachmentRow(a)
	row.UploadedAt = a.UploadedAt.UTC()
	q := "INSERT INTO letter_attachments (" + attachmentColumns + `) VALUES (:id, :letter_id, :file_name,
		:content_type, :size, :storage_key, :uploaded_by, :uploaded_at)`
	if _, err := repo.getExec(exec).NamedExecContext(ctx, q, row); err != nil {
		return arsip.Attachment{}, errors.Wrap(err, "inserting attachment")
	}
	return a, nil
}

func (repo arsipRepository) GetAttachment(ctx context.Context, id string, exec ...core.DBExecutor) (arsip.Attachment, error) {
	if !isUUID(id) {
		return arsip.Attachment{}, arsip.ErrAttachmentNotFound
	}
	var row attachmentRow
	q := "SELECT " + attachmentColumns + " FROM letter_attachments WHERE id = ?"
	if err := getOne(ctx, repo.getExec(exec), &row, q, id); err != nil {
		return arsip.Attachment{}, trapNoRowsErr(err, arsip.ErrAttachmentNotFound, "getting attachment")
	}
	return row.unboil(), nil
}

func (repo arsipRepository) DeleteAttachment(ctx context.Context, id string, exec ...core.DBExecutor) error {
	if !isUUID(id) {
		return arsip.ErrAttachmentNotFound
	}
	res, err := execQuery(ctx, repo.getExec(exec), "DELETE FROM letter_attachments WHERE id = ?", id)
	if err != nil {
		return errors.Wrap(err, "deleting attachment")
	}
	return checkAffected(res, arsip.ErrAttachmentNotFound)
}

// Dispositions

func (repo arsipRepository) CreateDisposition(ctx context.Context, d arsip.Disposition, exec ...core.DBExecutor) (arsip.Disposition, error) {
	d.ID = newID()
	q := "INSERT INTO dispositions (id, letter_id, parent_id, from_user_id, to_user_id, instruction, note, due_date, " +
		`status, read_at, completed_at, response, created_at) VALUES (:id, :letter_id, :parent_id, :from_user_id,
		:to_user_id, :instruction, :note, :due_date, :status, :read_at, :completed_at, :response, :created_at)`
	if _, err := repo.getExec(exec).NamedExecContext(ctx, q, boilDisposition(d)); err != nil {
		return arsip.Disposition{}, errors.Wrap(err, "inserting disposition")
	}
	return d, nil
}

func (repo arsipRepository) GetDisposition(ctx context.Context, id string, exec ...core.DBExecutor) (arsip.Disposition, error) {
	if !isUUID(id) {
		return arsip.Disposition{}, arsip.ErrDispositionNotFound
	}
	var row dispositionRow
	q := "SELECT " + dispositionColumns + " FROM dispositions WHERE id = ?"
	if err := getOne(ctx, repo.getExec(exec), &row, q, id); err != nil {
		return arsip.Disposition{}, trapNoRowsErr(err, arsip.ErrDispositionNotFound, "getting disposition")
	}
	return row.unboil(), nil
}

func (repo arsipRepository) UpdateDisposition(ctx context.Context, d arsip.Disposition, exec ...core.DBExecutor) (arsip.Disposition, error) {
	if !isUUID(d.ID) {
		return arsip.Disposition{}, arsip.ErrDispositionNotFound
	}
	q := `UPDATE dispositions SET note = :note, due_date = :due_date, status = :status, read_at = :read_at,
		completed_at = :completed_at, response = :response WHERE id = :id`
	res, err := repo.getExec(exec).NamedExecContext(ctx, q, boilDisposition(d))
	if err != nil {
		return arsip.Disposition{}, errors.Wrap(err, "updating disposition")
	}
	if err := checkAffected(res, arsip.ErrDispositionNotFound); err != nil {
		return arsip.Disposition{}, err
	}
	return d, nil
}

func (repo arsipRepository) queryDispositions(ctx context.Context, exe core.DBExecutor, conds conditions, order string) ([]arsip.Disposition, error) {
	var rows []dispositionRow
	q := "SELECT " + dispositionColumns + " FROM dispositions" + conds.where() + order
	if err := selectAll(ctx, exe, &rows, q, conds.args...); err != nil {
		return nil, err
	}
	disps := make([]arsip.Disposition, 0, len(rows))
	for _, row := range rows {
		disps = append(disps, row.unboil())
	}
	return disps, nil
}

func (repo arsipRepository) ListDispositions(ctx context.Context, letterID string, exec ...core.DBExecutor) ([]arsip.Disposition, error) {
	if !isUUID(letterID) {
		return []arsip.Disposition{}, nil
	}
	var conds conditions
	conds.add("letter_id = ?", letterID)
	disps, err := repo.queryDispositions(ctx, repo.getExec(exec), conds, " ORDER BY created_at")
	return disps, errors.Wrap(err, "listing dispositions")
}

func (repo arsipRepository) Inbox(ctx context.Context, userID, status string, exec ...core.DBExecutor) ([]arsip.Disposition, error) {
	if !isUUID(userID) {
		return []arsip.Disposition{}, nil
	}
	var conds conditions
	conds.add("to_user_id = ?", userID)
	if status != "" {
		conds.add("status = ?", status)
	}
	disps, err := repo.queryDispositions(ctx, repo.getExec(exec), conds, " ORDER BY created_at DESC")
	return disps, errors.Wrap(err, "listing inbox")
}
