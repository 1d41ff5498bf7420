package inmemdb

import (
	"context"
	"strconv"

	"github.com/wednesdev-id/semindo-grow-hub-sub003/core"
	"github.com/wednesdev-id/semindo-grow-hub-sub003/core/arsip"
)

type arsipRepository struct {
	db *DB
}

var _ arsip.Repository = (*arsipRepository)(nil)

func NewArsipRepository(db *DB) arsip.Repository {
	return &arsipRepository{db: db}
}

var letterSortKeys = map[string]sortKey[arsip.Letter]{
	"agenda_number": func(l arsip.Letter) interface{} { return l.AgendaNumber },
	"letter_date":   func(l arsip.Letter) interface{} { return l.LetterDate },
	"received_at":   func(l arsip.Letter) interface{} { return l.ReceivedAt },
	"subject":       func(l arsip.Letter) interface{} { return l.Subject },
	"created_at":    func(l arsip.Letter) interface{} { return l.CreatedAt },
}

var dispositionSortKeys = map[string]sortKey[arsip.Disposition]{
	"created_at": func(d arsip.Disposition) interface{} { return d.CreatedAt },
}

func (repo *arsipRepository) NextAgendaSequence(_ context.Context, kind string, year int, _ ...core.DBExecutor) (int, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	key := kind + "/" + strconv.Itoa(year)
	repo.db.agendaCounters[key]++
	return repo.db.agendaCounters[key], nil
}

func (repo *arsipRepository) CreateLetter(_ context.Context, l arsip.Letter, _ ...core.DBExecutor) (arsip.Letter, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	l.ID = newID()
	l.Attachments = nil
	repo.db.letters[l.ID] = l
	l.Attachments = []arsip.Attachment{}
	return l, nil
}

func (repo *arsipRepository) letterAttachments(letterID string) []arsip.Attachment {
	atts := make([]arsip.Attachment, 0)
	for _, a := range repo.db.attachments {
		if a.LetterID == letterID {
			atts = append(atts, a)
		}
	}
	sortItems(atts, nil, map[string]sortKey[arsip.Attachment]{
		"uploaded_at": func(a arsip.Attachment) interface{} { return a.UploadedAt },
	}, core.DBOrdering{Field: "uploaded_at", Ascending: true})
	return atts
}

func (repo *arsipRepository) GetLetter(_ context.Context, id string, _ ...core.DBExecutor) (arsip.Letter, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	l, ok := repo.db.letters[id]
	if !ok {
		return arsip.Letter{}, arsip.ErrNotFound
	}
	l.Attachments = repo.letterAttachments(id)
	return l, nil
}

func (repo *arsipRepository) UpdateLetter(_ context.Context, l arsip.Letter, _ ...core.DBExecutor) (arsip.Letter, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	if _, ok := repo.db.letters[l.ID]; !ok {
		return arsip.Letter{}, arsip.ErrNotFound
	}
	atts := l.Attachments
	l.Attachments = nil
	repo.db.letters[l.ID] = l
	l.Attachments = atts
	return l, nil
}

func (repo *arsipRepository) hasDisposition(letterID, userID string) bool {
	for _, d := range repo.db.dispositions {
		if d.LetterID == letterID && d.ToUserID == userID {
			return true
		}
	}
	return false
}

func (repo *arsipRepository) QueryLetters(_ context.Context, filter arsip.QueryFilter, ordering []core.DBOrdering, page core.Pagination, _ ...core.DBExecutor) ([]arsip.Letter, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	letters := make([]arsip.Letter, 0)
	for _, l := range repo.db.letters {
		switch {
		case filter.Kind != "" && l.Kind != filter.Kind,
			filter.Status != "" && l.Status != filter.Status,
			filter.Classification != "" && l.Classification != filter.Classification,
			filter.DateFrom != "" && l.LetterDate < filter.DateFrom,
			filter.DateTo != "" && l.LetterDate > filter.DateTo,
			filter.Search != "" && !containsFold(filter.Search, l.Subject, l.Sender, l.Recipient, l.AgendaNumber, l.ReferenceNumber),
			filter.DisposedTo != "" && !repo.hasDisposition(l.ID, filter.DisposedTo),
			filter.ViewerID != "" && l.IsConfidential() && !repo.hasDisposition(l.ID, filter.ViewerID):
			continue
		}
		letters = append(letters, l)
	}
	sortItems(letters, ordering, letterSortKeys, core.DBOrdering{Field: "created_at"})
	return paginate(letters, page), nil
}

func (repo *arsipRepository) HasDisposition(_ context.Context, letterID, userID string, _ ...core.DBExecutor) (bool, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()
	return repo.hasDisposition(letterID, userID), nil
}

// Attachments

func (repo *arsipRepository) CreateAttachment(_ context.Context, a arsip.Attachment, _ ...core.DBExecutor) (arsip.Attachment, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	if _, ok := repo.db.letters[a.LetterID]; !ok {
		return arsip.Attachment{}, arsip.ErrNotFound
	}
	if a.ID == "" {
		a.ID = newID()
	}
	repo.db.attachments[a.ID] = a
	return a, nil
}

func (repo *arsipRepository) GetAttachment(_ context.Context, id string, _ ...core.DBExecutor) (arsip.Attachment, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	if a, ok := repo.db.attachments[id]; ok {
		return a, nil
	}
	return arsip.Attachment{}, arsip.ErrAttachmentNotFound
}

func (repo *arsipRepository) DeleteAttachment(_ context.Context, id string, _ ...core.DBExecutor) error {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	if _, ok := repo.db.attachments[id]; !ok {
		return arsip.ErrAttachmentNotFound
	}
	delete(repo.db.attachments, id)
	return nil
}

// Dispositions

func (repo *arsipRepository) CreateDisposition(_ context.Context, d arsip.Disposition, _ ...core.DBExecutor) (arsip.Disposition, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	d.ID = newID()
	repo.db.dispositions[d.ID] = d
	return d, nil
}

func (repo *arsipRepository) GetDisposition(_ context.Context, id string, _ ...core.DBExecutor) (arsip.Disposition, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	if d, ok := repo.db.dispositions[id]; ok {
		return d, nil
	}
	return arsip.Disposition{}, arsip.ErrDispositionNotFound
}

func (repo *arsipRepository) UpdateDisposition(_ context.Context, d arsip.Disposition, _ ...core.DBExecutor) (arsip.Disposition, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	if _, ok := repo.db.dispositions[d.ID]; !ok {
		return arsip.Disposition{}, arsip.ErrDispositionNotFound
	}
	repo.db.dispositions[d.ID] = d
	return d, nil
}

func (repo *arsipRepository) ListDispositions(_ context.Context, letterID string, _ ...core.DBExecutor) ([]arsip.Disposition, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	disps := make([]arsip.Disposition, 0)
	for _, d := range repo.db.dispositions {
		if d.LetterID == letterID {
			disps = append(disps, d)
		}
	}
	sortItems(disps, nil, dispositionSortKeys, core.DBOrdering{Field: "created_at", Ascending: true})
	return disps, nil
}

func (repo *arsipRepository) Inbox(_ context.Context, userID, status string, _ ...core.DBExecutor) ([]arsip.Disposition, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	disps := make([]arsip.Disposition, 0)
	for _, d := range repo.db.dispositions {
		if d.ToUserID == userID && (status == "" || d.Status == status) {
			disps = append(disps, d)
		}
	}
	sortItems(disps, nil, dispositionSortKeys, core.DBOrdering{Field: "created_at"})
	return disps, nil
}
