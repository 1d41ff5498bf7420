package tests

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strconv"
	"testing"
	"time"

	"github.com/dgrijalva/jwt-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wednesdev-id/semindo-grow-hub-sub003/apps/api/echo"
	"github.com/wednesdev-id/semindo-grow-hub-sub003/core/user"
	"github.com/wednesdev-id/semindo-grow-hub-sub003/tests"
)

func userIDs(users ...user.User) []string {
	ids := make([]string, len(users))
	for i, u := range users {
		ids[i] = u.ID
	}
	return ids
}

func Test_userApi_query(t *testing.T) {
	setup(t)

	path := func(search, ordering string, isActive *bool, roles ...string) string {
		v := make(url.Values)
		if search != "" {
			v.Add("search", search)
		}
		if ordering != "" {
			v.Add("ordering", ordering)
		}
		if isActive != nil {
			v.Add("is_active", strconv.FormatBool(*isActive))
		}
		for _, r := range roles {
			v.Add("role", r)
		}
		return "/v1/users?" + v.Encode()
	}
	bPtr := func(b bool) *bool { return &b }

	now := time.Now()
	repo := tapp.UserRepo
	owner := testutil.CreateUser(t, repo, "Siti Warung", "siti", "siti@semindo.test", "", []string{user.RoleUMKM}, true, now.Add(1*time.Hour))
	mentor := testutil.CreateUser(t, repo, "Budi Mentor", "budi", "budi@semindo.test", "", []string{user.RoleMentor}, true, now.Add(2*time.Hour))
	admin := testutil.CreateUser(t, repo, "Admin", "admin", "admin@semindo.test", "", []string{user.RoleAdmin}, true, now.Add(3*time.Hour))
	naughty := testutil.CreateUser(t, repo, "Dormant Shop", "dormant", "dormant@semindo.test", "", []string{user.RoleUMKM}, false, now.Add(4*time.Hour))

	adminToken := getToken(t, admin)

	tests := []struct {
		name     string
		path     string
		token    string
		wantCode int
		wantIDs  []string
	}{
		{name: "Auth required", path: "/v1/users", wantCode: http.StatusUnauthorized},
		{name: "Permission required", path: "/v1/users", token: getToken(t, owner), wantCode: http.StatusForbidden},
		{name: "Get all", path: "/v1/users", token: adminToken, wantIDs: userIDs(naughty, admin, mentor, owner)},
		{name: "search (unknown)", path: path("lol", "", nil), token: adminToken, wantIDs: []string{}},
		{name: "search=SHOP", path: path("SHOP", "", nil), token: adminToken, wantIDs: userIDs(naughty)},
		{name: "role=umkm", path: path("", "", nil, user.RoleUMKM), token: adminToken, wantIDs: userIDs(naughty, owner)},
		{name: "role=mentor,admin", path: path("", "", nil, user.RoleMentor, user.RoleAdmin), token: adminToken, wantIDs: userIDs(admin, mentor)},
		{name: "is_active=false", path: path("", "", bPtr(false)), token: adminToken, wantIDs: userIDs(naughty)},
		{name: "order by created_at", path: path("", "created_at", nil), token: adminToken, wantIDs: userIDs(owner, mentor, admin, naughty)},
		{name: "order by name", path: path("", "name", nil), token: adminToken, wantIDs: userIDs(admin, mentor, naughty, owner)},
		{name: "filtering & ordering", path: path("", "-name", bPtr(true), user.RoleUMKM, user.RoleMentor), token: adminToken, wantIDs: userIDs(owner, mentor)},
	}
	for _, tt := range tests {
		if tt.wantCode == 0 {
			tt.wantCode = http.StatusOK
		}
		t.Run(tt.name, func(t *testing.T) {
			var users []user.User
			var out interface{}
			if tt.wantCode == http.StatusOK {
				out = &users
			}
			rec := do(t, http.MethodGet, tt.path, tt.token, nil, out)
			require.Equal(t, tt.wantCode, rec.Code, rec.Body.String())
			if tt.wantCode == http.StatusOK {
				assert.Equal(t, tt.wantIDs, userIDs(users...))
			}
		})
	}
}

func Test_userApi_login(t *testing.T) {
	setup(t)

	active := testutil.CreateUser(t, tapp.UserRepo, "Siti", "siti", "siti@semindo.test", "LolC@t123", []string{user.RoleUMKM}, true)
	testutil.CreateUser(t, tapp.UserRepo, "Dormant", "dormant", "dormant@semindo.test", "LolC@t123", []string{user.RoleUMKM}, false)

	tests := []httpTest{
		{
			name: "required fields", wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, echoapi.LoginRequest{Username: "this field is required", Password: "this field is required"}),
		},
		{
			name: "unknown user", body: marchallObj(t, echoapi.LoginRequest{Username: "nobody", Password: "LolC@t123"}),
			wantCode: http.StatusBadRequest, wantData: marchallObj(t, httpErr{Error: "authentication failed"}),
		},
		{
			name: "wrong password", body: marchallObj(t, echoapi.LoginRequest{Username: "siti", Password: "nope"}),
			wantCode: http.StatusBadRequest, wantData: marchallObj(t, httpErr{Error: "authentication failed"}),
		},
		{
			name: "inactive user", body: marchallObj(t, echoapi.LoginRequest{Username: "dormant", Password: "LolC@t123"}),
			wantCode: http.StatusForbidden, wantData: marchallObj(t, httpErr{Error: "account deactivated"}),
		},
	}
	for i := range tests {
		tests[i].method = http.MethodPost
		tests[i].path = "/v1/users/login"
	}
	runTests(t, tests)

	t.Run("by email", func(t *testing.T) {
		var resp echoapi.LoginResponse
		rec := do(t, http.MethodPost, "/v1/users/login", "", echoapi.LoginRequest{Username: "SITI@semindo.test", Password: "LolC@t123"}, &resp)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		require.NotEmpty(t, resp.Token)

		// the token works and last login is set
		var me user.User
		rec = do(t, http.MethodGet, "/v1/users/me", resp.Token, nil, &me)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, active.ID, me.ID)
		assert.False(t, me.LastLogin.IsZero())
	})
}

func Test_userApi_register(t *testing.T) {
	setup(t)

	testutil.CreateUser(t, tapp.UserRepo, "Taken", "taken", "taken@semindo.test", "", nil, true)

	t.Run("required fields", func(t *testing.T) {
		var errs map[string]string
		rec := do(t, http.MethodPost, "/v1/users/register", "", user.NewUser{}, &errs)
		require.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Contains(t, errs, "name")
		assert.Contains(t, errs, "password")
	})

	t.Run("duplicate username", func(t *testing.T) {
		rec := do(t, http.MethodPost, "/v1/users/register", "", user.NewUser{
			Name: "Other", Username: "taken", Email: "other@semindo.test", Password: "LolC@t123", PasswordConfirm: "LolC@t123",
		}, nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())
	})

	t.Run("privileged role refused", func(t *testing.T) {
		rec := do(t, http.MethodPost, "/v1/users/register", "", user.NewUser{
			Name: "Sneaky", Username: "sneaky", Email: "sneaky@semindo.test", Password: "LolC@t123", PasswordConfirm: "LolC@t123",
			Roles: []string{user.RoleAdmin},
		}, nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())
	})

	t.Run("registered as umkm", func(t *testing.T) {
		var usr user.User
		rec := do(t, http.MethodPost, "/v1/users/register", "", user.NewUser{
			Name: "Warung Bu Ani", Username: "ani", Email: "ani@semindo.test", Password: "LolC@t123", PasswordConfirm: "LolC@t123",
		}, &usr)
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
		assert.NotEmpty(t, usr.ID)
		assert.Equal(t, []string{user.RoleUMKM}, usr.Roles)
		assert.True(t, usr.Active())
	})
}

func Test_userApi_refreshToken(t *testing.T) {
	setup(t)

	naughty := createUser(t, "N Dog", "ndog", user.RoleUMKM)
	naughty.SetActive(false)
	_, err := tapp.UserRepo.UpdateUser(context.Background(), naughty)
	require.NoError(t, err)
	owner := createUser(t, "Siti", "siti", user.RoleUMKM)

	now := time.Now()
	unrefreshableClaims := echoapi.GetUserClaims(tapp.Conf, owner, now.Add(-2*tapp.Conf.Server.JWTRefreshExpirationDelta).Unix())
	unrefreshableToken, err := echoapi.GenerateToken(tapp.Conf, unrefreshableClaims)
	require.NoError(t, err)

	tests := []httpTest{
		{name: "Auth required", wantCode: http.StatusUnauthorized, wantData: marchallObj(t, errMissingToken)},
		{name: "Inactive user not allowed", token: getToken(t, naughty), wantCode: http.StatusForbidden, wantData: marchallObj(t, httpErr{Error: "account deactivated"})},
		{name: "Refresh period expired", token: unrefreshableToken, wantCode: http.StatusForbidden, wantData: marchallObj(t, httpErr{Error: "refresh has expired"})},
	}
	for i := range tests {
		tests[i].method = http.MethodPost
		tests[i].path = "/v1/users/token-refresh"
	}
	runTests(t, tests)

	t.Run("Token refreshed and old one revoked", func(t *testing.T) {
		oldToken := getToken(t, owner)
		var resp echoapi.LoginResponse
		rec := do(t, http.MethodPost, "/v1/users/token-refresh", oldToken, nil, &resp)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		require.NotEmpty(t, resp.Token)

		// the original issue time is carried over
		parsed, _, err := new(jwt.Parser).ParseUnverified(resp.Token, new(echoapi.Claims))
		require.NoError(t, err)
		claims := parsed.Claims.(*echoapi.Claims)
		assert.Equal(t, owner.ID, claims.Subject)

		rec = do(t, http.MethodGet, "/v1/users/me", oldToken, nil, nil)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		rec = do(t, http.MethodGet, "/v1/users/me", resp.Token, nil, nil)
		assert.Equal(t, http.StatusOK, rec.Code)
	})
}

func Test_userApi_logout(t *testing.T) {
	setup(t)

	owner := createUser(t, "Siti", "siti", user.RoleUMKM)
	token := getToken(t, owner)

	rec := do(t, http.MethodPost, "/v1/users/logout", token, nil, nil)
	require.Equal(t, http.StatusNoContent, rec.Code)

	var herr httpErr
	rec = do(t, http.MethodGet, "/v1/users/me", token, nil, &herr)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "token has been revoked", herr.Error)
}

func Test_userApi_detail(t *testing.T) {
	setup(t)

	owner := createUser(t, "Siti", "siti", user.RoleUMKM)
	other := createUser(t, "Budi", "budi", user.RoleUMKM)
	admin := createUser(t, "Admin", "admin", user.RoleAdmin)

	tests := []httpTest{
		{name: "self", method: http.MethodGet, path: "/v1/users/" + owner.ID, token: getToken(t, owner)},
		{name: "someone else", method: http.MethodGet, path: "/v1/users/" + other.ID, token: getToken(t, owner), wantCode: http.StatusNotFound},
		{name: "admin", method: http.MethodGet, path: "/v1/users/" + other.ID, token: getToken(t, admin)},
		{
			name: "self cannot change roles", method: http.MethodPut, path: "/v1/users/" + owner.ID, token: getToken(t, owner),
			body: marchallObj(t, map[string]interface{}{"roles": []string{user.RoleAdmin}}), wantCode: http.StatusForbidden,
		},
		{
			name: "self changes name", method: http.MethodPut, path: "/v1/users/" + owner.ID, token: getToken(t, owner),
			body: marchallObj(t, map[string]interface{}{"name": "Siti Rahayu"}),
		},
		{name: "delete requires permission", method: http.MethodDelete, path: "/v1/users/" + owner.ID, token: getToken(t, owner), wantCode: http.StatusForbidden},
		{name: "admin deletes", method: http.MethodDelete, path: "/v1/users/" + other.ID, token: getToken(t, admin), wantCode: http.StatusNoContent},
	}
	runTests(t, tests)

	usr, err := tapp.Users.GetByID(context.Background(), owner.ID)
	require.NoError(t, err)
	assert.Equal(t, "Siti Rahayu", usr.Name)
	_, err = tapp.Users.GetByID(context.Background(), other.ID)
	assert.Error(t, err)
}

func Test_userApi_export(t *testing.T) {
	setup(t)

	admin := createUser(t, "Admin", "admin", user.RoleAdmin)
	createUser(t, "Siti", "siti", user.RoleUMKM)

	req, rec := newAuthRequest(http.MethodGet, "/v1/users/export?role=umkm", getToken(t, admin))
	app.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "attachment; filename=\"users-")
	assert.Contains(t, rec.Body.String(), "siti@semindo.test")
	assert.NotContains(t, rec.Body.String(), "admin@semindo.test")
}

func Test_userApi_passwordReset(t *testing.T) {
	setup(t)

	owner := testutil.CreateUser(t, tapp.UserRepo, "Siti", "siti", "siti@semindo.test", "OldP@ss123", []string{user.RoleUMKM}, true)
	success := echoapi.SuccessResponse{Success: "If the email address supplied is associated with an active account on this system, " +
		"an email will arrive in your inbox shortly with instructions to reset your password."}

	t.Run("invalid email", func(t *testing.T) {
		rec := do(t, http.MethodPost, "/v1/users/password-reset", "", echoapi.PasswordResetRequest{Email: "lol"}, nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("unknown email", func(t *testing.T) {
		tapp.Mail.Reset()
		var resp echoapi.SuccessResponse
		rec := do(t, http.MethodPost, "/v1/users/password-reset", "", echoapi.PasswordResetRequest{Email: "nobody@semindo.test"}, &resp)
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, success, resp)
		assert.Empty(t, tapp.Mail.Sent())
	})

	tapp.Mail.Reset()
	rec := do(t, http.MethodPost, "/v1/users/password-reset", "", echoapi.PasswordResetRequest{Email: owner.Email}, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	sent := tapp.Mail.Sent()
	require.Len(t, sent, 1)
	assert.Equal(t, owner.Email, sent[0].To[0].Address)
	assert.Contains(t, sent[0].TextContent, "Siti")
	data := sent[0].TemplateData.(map[string]interface{})
	uid, token := data["UID"].(string), data["Token"].(string)

	tests := []httpTest{
		{
			name: "mismatching passwords", wantCode: http.StatusBadRequest,
			body: marchallObj(t, user.ResetUserPassword{Token: token, UID: uid, Password: "NewP@ss123", PasswordConfirm: "lol"}),
		},
		{
			name: "invalid uid", wantCode: http.StatusBadRequest,
			body:     marchallObj(t, user.ResetUserPassword{Token: token, UID: "bG9s", Password: "NewP@ss123", PasswordConfirm: "NewP@ss123"}),
			wantData: marchallObj(t, httpErr{Error: "invalid reset link"}),
		},
		{
			name: "invalid token", wantCode: http.StatusBadRequest,
			body: marchallObj(t, user.ResetUserPassword{Token: "HE4TS-sigsig-sig", UID: uid, Password: "NewP@ss123", PasswordConfirm: "NewP@ss123"}),
		},
		{
			name: "valid token",
			body:     marchallObj(t, user.ResetUserPassword{Token: token, UID: uid, Password: "NewP@ss123", PasswordConfirm: "NewP@ss123"}),
			wantData: marchallObj(t, echoapi.SuccessResponse{Success: "Password has been reset with the new password."}),
		},
	}
	for i := range tests {
		tests[i].method = http.MethodPost
		tests[i].path = "/v1/users/password-reset-confirm"
	}
	runTests(t, tests)

	var resp echoapi.LoginResponse
	rec = do(t, http.MethodPost, "/v1/users/login", "", echoapi.LoginRequest{Username: "siti", Password: "NewP@ss123"}, &resp)
	assert.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	// tokens are single use
	rec = do(t, http.MethodPost, "/v1/users/password-reset-confirm", "", user.ResetUserPassword{
		Token: token, UID: uid, Password: "Other@ss123", PasswordConfirm: "Other@ss123",
	}, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func Test_userApi_errorsAreJSON(t *testing.T) {
	setup(t)

	rec := do(t, http.MethodGet, "/v1/users/me", "", nil, nil)
	var herr httpErr
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &herr))
	assert.Equal(t, errMissingToken, herr)
}
