package tests

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"reflect"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	. "github.com/wednesdev-id/semindo-grow-hub-sub003/apps/api/echo"
	"github.com/wednesdev-id/semindo-grow-hub-sub003/core/user"
	"github.com/wednesdev-id/semindo-grow-hub-sub003/tests"
)

var (
	app  Server
	tapp *testutil.App

	errMissingToken = httpErr{Error: "missing or malformed jwt"}
	errForbidden    = httpErr{Error: "permission denied"}
)

func setup(t *testing.T) Server {
	tapp = testutil.NewApp(t)
	app = newServer(tapp)
	return app
}

func newServer(ta *testutil.App) Server {
	return NewServer(ServerDeps{
		Conf:            ta.Conf,
		Logger:          ta.Logger,
		Validate:        ta.Validate,
		Translator:      ta.Translator,
		Blacklist:       ta.Cache,
		UserSvc:         ta.Users,
		RBACSvc:         ta.RBAC,
		AuditSvc:        ta.Audit,
		UMKMSvc:         ta.UMKM,
		AssessmentSvc:   ta.Assessment,
		ConsultationSvc: ta.Consultation,
		LMSSvc:          ta.LMS,
		ArsipSvc:        ta.Arsip,
		MarketplaceSvc:  ta.Marketplace,
		FinancingSvc:    ta.Financing,
	})
}

func createUser(t *testing.T, name, uname string, roles ...string) user.User {
	return testutil.CreateUser(t, tapp.UserRepo, name, uname, uname+"@semindo.test", "", roles, true)
}

type httpErr struct {
	Error string `json:"error"`
}

type httpTest struct {
	name     string
	method   string
	path     string
	body     []byte
	token    string
	wantCode int
	wantData []byte
	extra    interface{}
}

func newAuthRequest(method, path, token string, data ...[]byte) (*http.Request, *httptest.ResponseRecorder) {
	var body bytes.Buffer
	if len(data) > 0 {
		body.Write(data[0])
	}
	req := httptest.NewRequest(method, path, &body)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	return req, rec
}

func newRequest(method, path string, data ...[]byte) (*http.Request, *httptest.ResponseRecorder) {
	return newAuthRequest(method, path, "", data...)
}

// newUploadRequest builds a multipart request with a single file field.
func newUploadRequest(t *testing.T, path, token, field, filename string, content []byte) (*http.Request, *httptest.ResponseRecorder) {
	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	fw, err := w.CreateFormFile(field, filename)
	require.NoError(t, err)
	_, err = fw.Write(content)
	require.NoError(t, err)
	require.NoError(t, w.Close())

	req := httptest.NewRequest(http.MethodPost, path, &body)
	req.Header.Set("Content-Type", w.FormDataContentType())
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return req, httptest.NewRecorder()
}

func getToken(t *testing.T, usr user.User) string {
	claims := GetUserClaims(tapp.Conf, usr)
	token, err := GenerateToken(tapp.Conf, claims)
	if err != nil {
		t.Fatalf("getToken() failed: %v", err)
	}
	return token
}

// do serves the request and decodes the JSON response into out, when given.
func do(t *testing.T, method, path, token string, body interface{}, out interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var data []byte
	if body != nil {
		data = marchallObj(t, body)
	}
	req, rec := newAuthRequest(method, path, token, data)
	app.ServeHTTP(rec, req)
	if out != nil && rec.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), out), rec.Body.String())
	}
	return rec
}

func marchallObj(t *testing.T, obj interface{}) []byte {
	data, err := json.Marshal(obj)
	if err != nil {
		t.Fatalf("marchallObj() failed: %v", err)
	}
	return data
}

func marchallList(t *testing.T, objs ...interface{}) []byte {
	if objs == nil {
		objs = []interface{}{}
	}
	data, err := json.Marshal(objs)
	if err != nil {
		t.Fatalf("marchallList() failed: %v", err)
	}
	return data
}

// marchallPage wraps objs like a paginated list response.
func marchallPage(t *testing.T, limit, offset int, objs ...interface{}) []byte {
	if objs == nil {
		objs = []interface{}{}
	}
	return marchallObj(t, map[string]interface{}{"results": objs, "limit": limit, "offset": offset})
}

func jsonBytesEqual(t *testing.T, b1, b2 []byte) (bool, error) {
	var j1, j2 interface{}
	if err := json.Unmarshal(b1, &j1); err != nil {
		return false, err
	}
	if err := json.Unmarshal(b2, &j2); err != nil {
		return false, err
	}
	return reflect.DeepEqual(j1, j2), nil
}

func checkCodeAndData(t *testing.T, tt httpTest, rec *httptest.ResponseRecorder) {
	t.Helper()
	assert.Equal(t, tt.wantCode, rec.Code, "code")
	if tt.wantData == nil {
		return
	}
	ok, err := jsonBytesEqual(t, rec.Body.Bytes(), tt.wantData)
	if assert.NoError(t, err, "jsonBytesEqual() failed to compare") {
		assert.True(t, ok, "data = %v; wantData %v", rec.Body.String(), string(tt.wantData))
	}
}

func runTests(t *testing.T, tests []httpTest) {
	t.Helper()
	for _, tt := range tests {
		if tt.wantCode == 0 {
			tt.wantCode = http.StatusOK
		}
		t.Run(tt.name, func(t *testing.T) {
			req, rec := newAuthRequest(tt.method, tt.path, tt.token, tt.body)
			app.ServeHTTP(rec, req)
			checkCodeAndData(t, tt, rec)
		})
	}
}
