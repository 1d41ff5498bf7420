package tests

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wednesdev-id/semindo-grow-hub-sub003/core/assessment"
	"github.com/wednesdev-id/semindo-grow-hub-sub003/core/umkm"
	"github.com/wednesdev-id/semindo-grow-hub-sub003/core/user"
	"github.com/wednesdev-id/semindo-grow-hub-sub003/tests"
)

func profileInput(name string) umkm.ProfileInput {
	return umkm.ProfileInput{
		BusinessName:  name,
		OwnerName:     "Siti Aminah",
		Sector:        "Kuliner",
		Province:      "Jawa Barat",
		City:          "Bandung",
		AnnualRevenue: decimal.New(750, 6),
		EmployeeCount: 3,
	}
}

func Test_umkmApi_profiles(t *testing.T) {
	setup(t)

	owner := createUser(t, "Siti", "siti", user.RoleUMKM)
	other := createUser(t, "Budi", "budi", user.RoleUMKM)
	admin := createUser(t, "Admin", "admin", user.RoleAdmin)
	ownerToken, otherToken, adminToken := getToken(t, owner), getToken(t, other), getToken(t, admin)

	var p umkm.Profile
	rec := do(t, http.MethodPost, "/v1/umkm", ownerToken, profileInput("Warung Siti"), &p)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(t, umkm.StatusDraft, p.Status)
	assert.Equal(t, umkm.ScaleMicro, p.Scale)
	assert.Equal(t, "kuliner", p.Sector)
	assert.Equal(t, owner.ID, p.OwnerID)

	big := profileInput("Pabrik Budi")
	big.AnnualRevenue = decimal.New(60, 9)
	var bigP umkm.Profile
	rec = do(t, http.MethodPost, "/v1/umkm", otherToken, big, &bigP)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(t, umkm.ScaleLarge, bigP.Scale)

	invalid := profileInput("")
	invalid.NIB = "123"
	tests := []httpTest{
		{name: "Auth required", method: http.MethodGet, path: "/v1/umkm", wantCode: http.StatusUnauthorized, wantData: marchallObj(t, errMissingToken)},
		{name: "one profile per owner", method: http.MethodPost, path: "/v1/umkm", token: ownerToken, body: marchallObj(t, profileInput("Warung Dua")), wantCode: http.StatusConflict},
		{name: "invalid input", method: http.MethodPost, path: "/v1/umkm", token: adminToken, body: marchallObj(t, invalid), wantCode: http.StatusBadRequest},
		{name: "owners only see their profile", method: http.MethodGet, path: "/v1/umkm", token: ownerToken, wantData: marchallPage(t, 50, 0, p)},
		{name: "other owners get 404", method: http.MethodGet, path: "/v1/umkm/" + p.ID, token: otherToken, wantCode: http.StatusNotFound},
		{name: "own profile", method: http.MethodGet, path: "/v1/umkm/me", token: ownerToken, wantData: marchallObj(t, p)},
		{name: "admins read any profile", method: http.MethodGet, path: "/v1/umkm/" + p.ID, token: adminToken, wantData: marchallObj(t, p)},
		{name: "owners cannot verify", method: http.MethodPost, path: "/v1/umkm/" + p.ID + "/verify", token: ownerToken, wantCode: http.StatusForbidden, wantData: marchallObj(t, errForbidden)},
		{name: "large businesses are not eligible", method: http.MethodPost, path: "/v1/umkm/" + bigP.ID + "/verify", token: adminToken, wantCode: http.StatusConflict},
		{name: "rejection requires a note", method: http.MethodPost, path: "/v1/umkm/" + p.ID + "/reject", token: adminToken, body: marchallObj(t, umkm.Rejection{}), wantCode: http.StatusBadRequest},
		{name: "owners cannot delete", method: http.MethodDelete, path: "/v1/umkm/" + p.ID, token: ownerToken, wantCode: http.StatusForbidden},
	}
	runTests(t, tests)

	var all struct {
		Results []umkm.Profile `json:"results"`
	}
	rec = do(t, http.MethodGet, "/v1/umkm?scale=large", adminToken, nil, &all)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	require.Len(t, all.Results, 1)
	assert.Equal(t, bigP.ID, all.Results[0].ID)

	// rejected profiles go back to draft once their owner edits them
	rec = do(t, http.MethodPost, "/v1/umkm/"+p.ID+"/reject", adminToken, umkm.Rejection{Note: "  NIB missing "}, &p)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, umkm.StatusRejected, p.Status)
	assert.Equal(t, "NIB missing", p.VerificationNote)

	in := profileInput("Warung Siti")
	in.NIB = "1234567890123"
	rec = do(t, http.MethodPut, "/v1/umkm/"+p.ID, ownerToken, in, &p)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, umkm.StatusDraft, p.Status)
	assert.Empty(t, p.VerificationNote)

	rec = do(t, http.MethodPost, "/v1/umkm/"+p.ID+"/verify", adminToken, nil, &p)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, umkm.StatusVerified, p.Status)
	assert.False(t, p.VerifiedAt.IsZero())

	rec = do(t, http.MethodPost, "/v1/umkm/"+p.ID+"/verify", adminToken, nil, nil)
	assert.Equal(t, http.StatusConflict, rec.Code, "already verified")

	rec = do(t, http.MethodDelete, "/v1/umkm/"+bigP.ID, adminToken, nil, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	rec = do(t, http.MethodGet, "/v1/umkm/"+bigP.ID, adminToken, nil, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func Test_umkmApi_importExport(t *testing.T) {
	setup(t)

	admin := createUser(t, "Admin", "admin", user.RoleAdmin)
	owner := createUser(t, "Siti", "siti", user.RoleUMKM)
	adminToken := getToken(t, admin)

	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	require.NoError(t, w.WriteAll([][]string{
		{"owner_email", "business_name", "owner_name", "sector", "province", "city", "annual_revenue"},
		{owner.Email, "Warung Siti", "Siti", "kuliner", "Jawa Barat", "Bandung", "250000000"},
		{"nobody@semindo.test", "Toko Hantu", "Hantu", "ritel", "Bali", "Denpasar", ""},
		{owner.Email, "Warung Kedua", "Siti", "kuliner", "Jawa Barat", "Bandung", "lol"},
	}))

	req, rec := newUploadRequest(t, "/v1/umkm/import", getToken(t, owner), "file", "umkm.csv", buf.Bytes())
	app.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusForbidden, rec.Code, "owners cannot import")

	req, rec = newUploadRequest(t, "/v1/umkm/import", adminToken, "file", "umkm.csv", buf.Bytes())
	app.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var res umkm.ImportResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	assert.Equal(t, 1, res.Created)
	require.Len(t, res.Errors, 2)
	assert.Equal(t, 3, res.Errors[0].Row)
	assert.Equal(t, "owner_email", res.Errors[0].Field)
	assert.Equal(t, 4, res.Errors[1].Row)
	assert.Equal(t, "annual_revenue", res.Errors[1].Field)

	req, rec = newUploadRequest(t, "/v1/umkm/import", adminToken, "file", "umkm.csv", []byte("business_name\nlol\n"))
	app.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	res = umkm.ImportResult{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	assert.Zero(t, res.Created)
	assert.NotEmpty(t, res.Errors, "missing columns")

	req, rec = newAuthRequest(http.MethodGet, "/v1/umkm/export", adminToken)
	app.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "umkm-")
	rows, err := csv.NewReader(rec.Body).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Contains(t, rows[1], "Warung Siti")
}

func questionnaireInput() assessment.QuestionnaireInput {
	yesNo := []assessment.Option{{Label: "No", Score: 0}, {Label: "Yes", Score: 2}}
	return assessment.QuestionnaireInput{
		Title:    "Business Readiness",
		IsActive: true,
		Questions: []assessment.Question{
			{Category: "Finance", Text: "Do you keep books?", Options: yesNo},
			{Category: "Finance", Text: "Do you have a bank account?", Options: yesNo},
			{Category: "Marketing", Text: "Do you sell online?", Options: yesNo},
		},
	}
}

func Test_assessmentApi(t *testing.T) {
	setup(t)

	mentor := createUser(t, "Mentor", "mentor", user.RoleMentor)
	owner := createUser(t, "Siti", "siti", user.RoleUMKM)
	other := createUser(t, "Budi", "budi", user.RoleUMKM)
	mentorToken, ownerToken := getToken(t, mentor), getToken(t, owner)
	profile := testutil.CreateProfile(t, tapp.UMKMRepo, owner, "Warung Siti", "Jawa Barat", umkm.StatusVerified)

	var q assessment.Questionnaire
	rec := do(t, http.MethodPost, "/v1/questionnaires", mentorToken, questionnaireInput(), &q)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	require.Len(t, q.Questions, 3)
	assert.Equal(t, "finance", q.Questions[0].Category)
	assert.Equal(t, 3, q.Questions[2].Position)

	answers := func(idx ...int) assessment.NewSubmission {
		ns := assessment.NewSubmission{}
		for i, question := range q.Questions {
			ns.Answers = append(ns.Answers, assessment.Answer{QuestionID: question.ID, OptionIndex: idx[i]})
		}
		return ns
	}

	tests := []httpTest{
		{name: "owners cannot create questionnaires", method: http.MethodPost, path: "/v1/questionnaires", token: ownerToken, body: marchallObj(t, questionnaireInput()), wantCode: http.StatusForbidden},
		{name: "questions are required", method: http.MethodPost, path: "/v1/questionnaires", token: mentorToken, body: marchallObj(t, assessment.QuestionnaireInput{Title: "Empty"}), wantCode: http.StatusBadRequest},
		{name: "every question must be answered", method: http.MethodPost, path: "/v1/questionnaires/" + q.ID + "/submissions", token: ownerToken, body: marchallObj(t, assessment.NewSubmission{Answers: []assessment.Answer{{QuestionID: q.Questions[0].ID}}}), wantCode: http.StatusBadRequest},
		{name: "invalid option", method: http.MethodPost, path: "/v1/questionnaires/" + q.ID + "/submissions", token: ownerToken, body: marchallObj(t, answers(0, 5, 0)), wantCode: http.StatusBadRequest},
		{name: "a profile is required", method: http.MethodPost, path: "/v1/questionnaires/" + q.ID + "/submissions", token: getToken(t, other), body: marchallObj(t, answers(0, 0, 0)), wantCode: http.StatusBadRequest},
		{name: "unknown questionnaire", method: http.MethodGet, path: "/v1/questionnaires/lol", token: ownerToken, wantCode: http.StatusNotFound},
	}
	runTests(t, tests)

	var sub assessment.Submission
	rec = do(t, http.MethodPost, "/v1/questionnaires/"+q.ID+"/submissions", ownerToken, answers(1, 1, 0), &sub)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(t, profile.ID, sub.ProfileID)
	assert.Equal(t, 4, sub.TotalScore)
	assert.Equal(t, 6, sub.MaxScore)
	assert.Equal(t, 66.67, sub.Percentage)
	assert.Equal(t, assessment.LevelDeveloping, sub.Level)
	assert.Equal(t, map[string]float64{"finance": 100, "marketing": 0}, sub.CategoryScores)
	assert.Equal(t, []string{"marketing"}, sub.WeakCategories)

	rec = do(t, http.MethodGet, "/v1/submissions/"+sub.ID, getToken(t, other), nil, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	var subs []assessment.Submission
	rec = do(t, http.MethodGet, "/v1/umkm/"+profile.ID+"/submissions", mentorToken, nil, &subs)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	require.Len(t, subs, 1)
	assert.Equal(t, sub.ID, subs[0].ID)

	rec = do(t, http.MethodDelete, "/v1/questionnaires/"+q.ID, mentorToken, nil, nil)
	assert.Equal(t, http.StatusConflict, rec.Code, "questionnaire with submissions")

	in := questionnaireInput()
	in.IsActive = false
	rec = do(t, http.MethodPut, "/v1/questionnaires/"+q.ID, mentorToken, in, &q)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	rec = do(t, http.MethodGet, "/v1/questionnaires/"+q.ID, ownerToken, nil, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code, "inactive questionnaires are hidden")
}
