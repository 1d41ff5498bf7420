package sqlxrepos

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wednesdev-id/semindo-grow-hub-sub003/core"
	"github.com/wednesdev-id/semindo-grow-hub-sub003/core/arsip"
)

func Test_arsipRepository_NextAgendaSequence(t *testing.T) {
	db, mock := newMock(t)
	repo := NewArsipRepository(db)
	ctx := context.Background()

	upsert := regexp.QuoteMeta("INSERT INTO agenda_counters (kind, year, last_seq) VALUES ($1, $2, 1)") +
		`\s+` + regexp.QuoteMeta("ON CONFLICT (kind, year) DO UPDATE SET last_seq = agenda_counters.last_seq + 1") +
		`\s+RETURNING last_seq`

	mock.ExpectQuery(upsert).WithArgs(arsip.KindIncoming, 2024).
		WillReturnRows(sqlmock.NewRows([]string{"last_seq"}).AddRow(1))
	mock.ExpectQuery(upsert).WithArgs(arsip.KindIncoming, 2024).
		WillReturnRows(sqlmock.NewRows([]string{"last_seq"}).AddRow(2))

	for want := 1; want <= 2; want++ {
		seq, err := repo.NextAgendaSequence(ctx, arsip.KindIncoming, 2024)
		require.NoError(t, err)
		assert.Equal(t, want, seq)
	}

	boom := errors.New("deadlock detected")
	mock.ExpectQuery(upsert).WithArgs(arsip.KindOutgoing, 2024).WillReturnError(boom)
	_, err := repo.NextAgendaSequence(ctx, arsip.KindOutgoing, 2024)
	assert.Equal(t, boom, errors.Cause(err))
}

func Test_arsipRepository_GetLetter(t *testing.T) {
	db, mock := newMock(t)
	repo := NewArsipRepository(db)
	ctx := context.Background()
	id, attID, creator := newID(), newID(), newID()
	now := time.Date(2024, 3, 4, 8, 0, 0, 0, time.UTC)

	mock.ExpectQuery(regexp.QuoteMeta("FROM letters l WHERE l.id = $1")).WithArgs(id).
		WillReturnRows(sqlmock.NewRows(columnNames(letterColumns)).AddRow(
			id, "0007/IN/III/2024", arsip.KindIncoming, "005/DINKOP/2024", "Undangan Rapat", "Dinas Koperasi",
			"Semindo", "2024-03-01", nil, arsip.ClassConfidential, "", arsip.StatusRegistered, creator, now, now,
		))
	mock.ExpectQuery(regexp.QuoteMeta("FROM letter_attachments WHERE letter_id = $1 ORDER BY uploaded_at")).WithArgs(id).
		WillReturnRows(sqlmock.NewRows(columnNames(attachmentColumns)).AddRow(
			attID, id, "undangan.pdf", "application/pdf", 2048, "letters/"+id+"/undangan.pdf", creator, now,
		))

	l, err := repo.GetLetter(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "0007/IN/III/2024", l.AgendaNumber)
	assert.Equal(t, "2024-03-01", l.LetterDate)
	assert.True(t, l.ReceivedAt.IsZero())
	assert.True(t, l.IsConfidential())
	require.Len(t, l.Attachments, 1)
	assert.Equal(t, int64(2048), l.Attachments[0].Size)

	mock.ExpectQuery(regexp.QuoteMeta("FROM letters l WHERE l.id = $1")).WithArgs(id).
		WillReturnRows(sqlmock.NewRows(columnNames(letterColumns)))
	_, err = repo.GetLetter(ctx, id)
	assert.Equal(t, arsip.ErrNotFound, err)

	_, err = repo.GetLetter(ctx, "lol")
	assert.Equal(t, arsip.ErrNotFound, err)
}

func Test_arsipRepository_QueryLetters(t *testing.T) {
	db, mock := newMock(t)
	repo := NewArsipRepository(db)
	ctx := context.Background()
	viewer := newID()

	mock.ExpectQuery(regexp.QuoteMeta(
		"FROM letters l WHERE l.kind = $1 AND (l.classification <> $2 OR "+
			"EXISTS (SELECT 1 FROM dispositions d WHERE d.letter_id = l.id AND d.to_user_id = $3))"+
			" ORDER BY l.created_at DESC LIMIT 20")).
		WithArgs(arsip.KindIncoming, arsip.ClassConfidential, viewer).
		WillReturnRows(sqlmock.NewRows(columnNames(letterColumns)))

	letters, err := repo.QueryLetters(ctx, arsip.QueryFilter{Kind: arsip.KindIncoming, ViewerID: viewer}, nil, core.Pagination{Limit: 20})
	require.NoError(t, err)
	assert.Empty(t, letters)

	letters, err = repo.QueryLetters(ctx, arsip.QueryFilter{ViewerID: "lol"}, nil, core.Pagination{})
	require.NoError(t, err)
	assert.Equal(t, []arsip.Letter{}, letters, "malformed viewers see nothing")
}

func Test_arsipRepository_dispositions(t *testing.T) {
	db, mock := newMock(t)
	repo := NewArsipRepository(db)
	ctx := context.Background()
	letterID, userID := newID(), newID()

	mock.ExpectQuery(regexp.QuoteMeta("SELECT EXISTS (SELECT 1 FROM dispositions WHERE letter_id = $1 AND to_user_id = $2)")).
		WithArgs(letterID, userID).
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))
	found, err := repo.HasDisposition(ctx, letterID, userID)
	require.NoError(t, err)
	assert.True(t, found)

	found, err = repo.HasDisposition(ctx, letterID, "lol")
	require.NoError(t, err)
	assert.False(t, found)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE dispositions SET")).WillReturnResult(sqlmock.NewResult(0, 0))
	_, err = repo.UpdateDisposition(ctx, arsip.Disposition{ID: newID(), Status: arsip.DispositionRead})
	assert.Equal(t, arsip.ErrDispositionNotFound, err)

	mock.ExpectQuery(regexp.QuoteMeta("FROM dispositions WHERE to_user_id = $1 AND status = $2 ORDER BY created_at DESC")).
		WithArgs(userID, arsip.DispositionAwaiting).
		WillReturnRows(sqlmock.NewRows(columnNames(dispositionColumns)).AddRow(
			newID(), letterID, nil, newID(), userID, "Tindak lanjuti", "", "2030-01-31", arsip.DispositionAwaiting,
			nil, nil, "", time.Now(),
		))
	inbox, err := repo.Inbox(ctx, userID, arsip.DispositionAwaiting)
	require.NoError(t, err)
	require.Len(t, inbox, 1)
	assert.Empty(t, inbox[0].ParentID)
	assert.Equal(t, "2030-01-31", inbox[0].DueDate)
	assert.True(t, inbox[0].ReadAt.IsZero())
}
