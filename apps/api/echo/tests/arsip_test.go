package tests

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wednesdev-id/semindo-grow-hub-sub003/core/arsip"
	"github.com/wednesdev-id/semindo-grow-hub-sub003/core/rbac"
	"github.com/wednesdev-id/semindo-grow-hub-sub003/core/user"
)

func letterInput(subject, classification string) arsip.LetterInput {
	return arsip.LetterInput{
		Kind:            "Incoming",
		ReferenceNumber: "005/DINKOP/2024",
		Subject:         subject,
		Sender:          "Dinas Koperasi",
		Recipient:       "Semindo",
		LetterDate:      "2024-03-01",
		Classification:  classification,
	}
}

func Test_arsipApi_letters(t *testing.T) {
	setup(t)

	admin := createUser(t, "Admin", "admin", user.RoleAdmin)
	reader := createUser(t, "Dewi", "dewi", user.RoleConsultant)
	owner := createUser(t, "Siti", "siti", user.RoleUMKM)
	adminToken, readerToken := getToken(t, admin), getToken(t, reader)

	var l arsip.Letter
	rec := do(t, http.MethodPost, "/v1/letters", adminToken, letterInput("Undangan Rapat", ""), &l)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(t, arsip.AgendaNumber(1, arsip.KindIncoming, time.Now().UTC()), l.AgendaNumber)
	assert.Equal(t, arsip.ClassRegular, l.Classification)
	assert.Equal(t, arsip.StatusRegistered, l.Status)
	assert.False(t, l.ReceivedAt.IsZero())

	var secret arsip.Letter
	rec = do(t, http.MethodPost, "/v1/letters", adminToken, letterInput("Data Penerima Bantuan", "confidential"), &secret)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(t, arsip.AgendaNumber(2, arsip.KindIncoming, time.Now().UTC()), secret.AgendaNumber)

	tests := []httpTest{
		{name: "Auth required", method: http.MethodGet, path: "/v1/letters", wantCode: http.StatusUnauthorized},
		{name: "readers cannot register", method: http.MethodPost, path: "/v1/letters", token: readerToken, body: marchallObj(t, letterInput("x", "")), wantCode: http.StatusForbidden},
		{name: "invalid kind", method: http.MethodPost, path: "/v1/letters", token: adminToken, body: marchallObj(t, arsip.LetterInput{Kind: "lol"}), wantCode: http.StatusBadRequest},
		{name: "readers see regular letters", method: http.MethodGet, path: "/v1/letters/" + l.ID, token: readerToken, wantData: marchallObj(t, l)},
		{name: "confidential letters are hidden", method: http.MethodGet, path: "/v1/letters/" + secret.ID, token: readerToken, wantCode: http.StatusNotFound},
		{name: "outsiders see nothing", method: http.MethodGet, path: "/v1/letters/" + l.ID, token: getToken(t, owner), wantCode: http.StatusNotFound},
	}
	runTests(t, tests)

	var page struct {
		Results []arsip.Letter `json:"results"`
	}
	rec = do(t, http.MethodGet, "/v1/letters", readerToken, nil, &page)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	require.Len(t, page.Results, 1)
	assert.Equal(t, l.ID, page.Results[0].ID)

	rec = do(t, http.MethodGet, "/v1/letters?classification=confidential", adminToken, nil, &page)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	require.Len(t, page.Results, 1)
	assert.Equal(t, secret.ID, page.Results[0].ID)

	// attachments
	content := []byte("%PDF-1.4 undangan")
	req, rec := newUploadRequest(t, "/v1/letters/"+l.ID+"/attachments", adminToken, "file", `..\undangan.pdf`, content)
	app.ServeHTTP(rec, req)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var a arsip.Attachment
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &a))
	assert.Equal(t, "undangan.pdf", a.FileName)
	assert.Equal(t, int64(len(content)), a.Size)
	assert.Equal(t, 1, tapp.Storage.Len())

	req, rec = newUploadRequest(t, "/v1/letters/"+l.ID+"/attachments", adminToken, "file", "big.bin",
		bytes.Repeat([]byte{'x'}, int(tapp.Conf.Storage.MaxUploadSize)+1))
	app.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)

	req, rec = newUploadRequest(t, "/v1/letters/"+l.ID+"/attachments", readerToken, "file", "x.txt", []byte("x"))
	app.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	req, rec = newAuthRequest(http.MethodGet, "/v1/letters/"+l.ID+"/attachments/"+a.ID, readerToken)
	app.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, content, rec.Body.Bytes())
	assert.Equal(t, `attachment; filename=undangan.pdf`, rec.Header().Get("Content-Disposition"))

	rec = do(t, http.MethodGet, "/v1/letters/"+l.ID, adminToken, nil, &l)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, l.Attachments, 1)

	rec = do(t, http.MethodGet, "/v1/letters/"+secret.ID+"/attachments/"+a.ID, adminToken, nil, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code, "attachment of another letter")

	rec = do(t, http.MethodDelete, "/v1/letters/"+l.ID+"/attachments/"+a.ID, adminToken, nil, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Zero(t, tapp.Storage.Len())

	rec = do(t, http.MethodPost, "/v1/letters/"+l.ID+"/archive", adminToken, nil, &l)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, arsip.StatusArchived, l.Status)
	rec = do(t, http.MethodPost, "/v1/letters/"+l.ID+"/archive", adminToken, nil, nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func Test_arsipApi_dispositions(t *testing.T) {
	setup(t)

	admin := createUser(t, "Admin", "admin", user.RoleAdmin)
	head := createUser(t, "Dewi", "dewi", user.RoleConsultant)
	staff := createUser(t, "Rina", "rina", user.RoleConsultant)
	adminToken, headToken, staffToken := getToken(t, admin), getToken(t, head), getToken(t, staff)

	var l arsip.Letter
	rec := do(t, http.MethodPost, "/v1/letters", adminToken, letterInput("Data Penerima Bantuan", "confidential"), &l)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	tests := []httpTest{
		{name: "readers cannot dispose", method: http.MethodPost, path: "/v1/letters/" + l.ID + "/dispositions", token: headToken, body: marchallObj(t, arsip.DispositionInput{ToUserID: staff.ID, Instruction: "Review"}), wantCode: http.StatusForbidden},
		{name: "not to yourself", method: http.MethodPost, path: "/v1/letters/" + l.ID + "/dispositions", token: adminToken, body: marchallObj(t, arsip.DispositionInput{ToUserID: admin.ID, Instruction: "Review"}), wantCode: http.StatusBadRequest},
		{name: "unknown recipient", method: http.MethodPost, path: "/v1/letters/" + l.ID + "/dispositions", token: adminToken, body: marchallObj(t, arsip.DispositionInput{ToUserID: "lol", Instruction: "Review"}), wantCode: http.StatusBadRequest, wantData: marchallObj(t, map[string]string{"to_user_id": "unknown user"})},
		{name: "invalid inbox status", method: http.MethodGet, path: "/v1/dispositions/inbox?status=lol", token: headToken, wantCode: http.StatusBadRequest},
	}
	runTests(t, tests)

	tapp.Mail.Reset()
	var d arsip.Disposition
	rec = do(t, http.MethodPost, "/v1/letters/"+l.ID+"/dispositions", adminToken,
		arsip.DispositionInput{ToUserID: head.ID, Instruction: "Tindak lanjuti", DueDate: "2030-01-31"}, &d)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(t, arsip.DispositionAwaiting, d.Status)
	sent := tapp.Mail.Sent()
	require.Len(t, sent, 1)
	assert.Equal(t, head.Email, sent[0].To[0].Address)
	assert.Equal(t, "disposition_assigned", sent[0].TemplateName)

	// the recipient may now see the confidential letter
	rec = do(t, http.MethodGet, "/v1/letters/"+l.ID, headToken, nil, &l)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, arsip.StatusInDisposition, l.Status)
	rec = do(t, http.MethodGet, "/v1/letters/"+l.ID, staffToken, nil, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	var inbox []arsip.Disposition
	rec = do(t, http.MethodGet, "/v1/dispositions/inbox?status=awaiting", headToken, nil, &inbox)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	require.Len(t, inbox, 1)
	assert.Equal(t, d.ID, inbox[0].ID)

	forward := arsip.DispositionInput{ToUserID: staff.ID, Instruction: "Siapkan data", ParentID: d.ID}
	tests = []httpTest{
		{name: "only the recipient reads", method: http.MethodPost, path: "/v1/dispositions/" + d.ID + "/read", token: staffToken, wantCode: http.StatusForbidden},
		{name: "awaiting dispositions cannot be completed", method: http.MethodPost, path: "/v1/dispositions/" + d.ID + "/complete", token: headToken, body: marchallObj(t, arsip.CompleteInput{Response: "done"}), wantCode: http.StatusConflict},
		{name: "unread dispositions cannot be forwarded", method: http.MethodPost, path: "/v1/letters/" + l.ID + "/dispositions", token: headToken, body: marchallObj(t, forward), wantCode: http.StatusConflict},
	}
	runTests(t, tests)

	rec = do(t, http.MethodPost, "/v1/dispositions/"+d.ID+"/read", headToken, nil, &d)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, arsip.DispositionRead, d.Status)
	assert.False(t, d.ReadAt.IsZero())

	var child arsip.Disposition
	rec = do(t, http.MethodPost, "/v1/letters/"+l.ID+"/dispositions", headToken, forward, &child)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(t, d.ID, child.ParentID)
	assert.Equal(t, head.ID, child.FromUserID)

	var all []arsip.Disposition
	rec = do(t, http.MethodGet, "/v1/letters/"+l.ID+"/dispositions", staffToken, nil, &all)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Len(t, all, 2)

	rec = do(t, http.MethodPost, "/v1/dispositions/"+d.ID+"/complete", headToken, arsip.CompleteInput{}, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code, "a response is required")
	rec = do(t, http.MethodPost, "/v1/dispositions/"+d.ID+"/complete", headToken, arsip.CompleteInput{Response: "Diteruskan"}, &d)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, arsip.DispositionCompleted, d.Status)

	// the letter completes with its last disposition
	rec = do(t, http.MethodGet, "/v1/letters/"+l.ID, adminToken, nil, &l)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, arsip.StatusInDisposition, l.Status)

	rec = do(t, http.MethodPost, "/v1/dispositions/"+child.ID+"/read", staffToken, nil, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	rec = do(t, http.MethodPost, "/v1/dispositions/"+child.ID+"/complete", staffToken, arsip.CompleteInput{Response: "Data siap"}, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = do(t, http.MethodGet, "/v1/letters/"+l.ID, adminToken, nil, &l)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, arsip.StatusCompleted, l.Status)

	rec = do(t, http.MethodPost, "/v1/letters/"+l.ID+"/dispositions", adminToken,
		arsip.DispositionInput{ToUserID: staff.ID, Instruction: "Lagi"}, nil)
	assert.Equal(t, http.StatusConflict, rec.Code, "completed letters take no dispositions")
}

func Test_arsipApi_disposeNeedsVisibility(t *testing.T) {
	setup(t)

	_, err := tapp.RBAC.CreateRole(context.Background(), rbac.NewRole{
		Name:        "clerk",
		Label:       "Clerk",
		Priority:    20,
		Permissions: []string{rbac.PermLettersRead, rbac.PermLettersDispose},
	})
	require.NoError(t, err)

	admin := createUser(t, "Admin", "admin", user.RoleAdmin)
	clerk := createUser(t, "Clerk", "clerk", "clerk")
	staff := createUser(t, "Rina", "rina", user.RoleConsultant)
	adminToken, clerkToken := getToken(t, admin), getToken(t, clerk)

	var regular, secret arsip.Letter
	rec := do(t, http.MethodPost, "/v1/letters", adminToken, letterInput("Undangan Rapat", ""), &regular)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	rec = do(t, http.MethodPost, "/v1/letters", adminToken, letterInput("Data Penerima Bantuan", "confidential"), &secret)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	in := marchallObj(t, arsip.DispositionInput{ToUserID: staff.ID, Instruction: "Review"})
	tests := []httpTest{
		{name: "confidential letters stay hidden", method: http.MethodPost, path: "/v1/letters/" + secret.ID + "/dispositions", token: clerkToken, body: in, wantCode: http.StatusNotFound},
		{name: "regular letters can be disposed", method: http.MethodPost, path: "/v1/letters/" + regular.ID + "/dispositions", token: clerkToken, body: in, wantCode: http.StatusCreated},
	}
	runTests(t, tests)

	var all []arsip.Disposition
	rec = do(t, http.MethodGet, "/v1/letters/"+secret.ID+"/dispositions", adminToken, nil, &all)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Empty(t, all)
}
