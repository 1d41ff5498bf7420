package tests

import (
	"net/http"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wednesdev-id/semindo-grow-hub-sub003/core/financing"
	"github.com/wednesdev-id/semindo-grow-hub-sub003/core/umkm"
	"github.com/wednesdev-id/semindo-grow-hub-sub003/core/user"
	"github.com/wednesdev-id/semindo-grow-hub-sub003/tests"
)

func productInput(name string, rate int64) financing.ProductInput {
	return financing.ProductInput{
		Name:           name,
		MinAmount:      decimal.NewFromInt(1000000),
		MaxAmount:      decimal.NewFromInt(50000000),
		InterestRate:   decimal.NewFromInt(rate),
		MinTenorMonths: 6,
		MaxTenorMonths: 24,
		Requirements:   []string{"NIB", " KTP "},
	}
}

func Test_financingApi_partners(t *testing.T) {
	setup(t)

	admin := createUser(t, "Admin", "admin", user.RoleAdmin)
	owner := createUser(t, "Siti", "siti", user.RoleUMKM)
	adminToken := getToken(t, admin)

	var partner financing.Partner
	rec := do(t, http.MethodPost, "/v1/partners", adminToken, financing.PartnerInput{Name: "Bank Rakyat", Kind: "Bank"}, &partner)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.True(t, partner.IsActive)
	assert.Equal(t, financing.KindBank, partner.Kind)

	var kur, hidden financing.Product
	rec = do(t, http.MethodPost, "/v1/partners/"+partner.ID+"/products", adminToken, productInput("KUR Mikro", 6), &kur)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(t, []string{"NIB", "KTP"}, kur.Requirements)

	inactive := false
	in := productInput("Pilot", 0)
	in.IsActive = &inactive
	rec = do(t, http.MethodPost, "/v1/partners/"+partner.ID+"/products", adminToken, in, &hidden)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.False(t, hidden.IsActive)

	badRange := productInput("Bad", 6)
	badRange.MaxAmount = decimal.NewFromInt(10)
	tests := []httpTest{
		{name: "only managers add partners", method: http.MethodPost, path: "/v1/partners", token: getToken(t, owner), body: marchallObj(t, financing.PartnerInput{Name: "x", Kind: "bank"}), wantCode: http.StatusForbidden},
		{name: "invalid kind", method: http.MethodPost, path: "/v1/partners", token: adminToken, body: marchallObj(t, financing.PartnerInput{Name: "x", Kind: "lol"}), wantCode: http.StatusBadRequest},
		{name: "max below min", method: http.MethodPost, path: "/v1/partners/" + partner.ID + "/products", token: adminToken, body: marchallObj(t, badRange), wantCode: http.StatusBadRequest, wantData: marchallObj(t, map[string]string{"max_amount": "must not be less than min_amount"})},
		{name: "inactive products are unavailable", method: http.MethodGet, path: "/v1/products/" + hidden.ID + "/estimate?amount=12000000&tenor=12", wantCode: http.StatusConflict},
		{name: "estimate needs an amount", method: http.MethodGet, path: "/v1/products/" + kur.ID + "/estimate?tenor=12", wantCode: http.StatusBadRequest},
		{name: "estimate out of bounds", method: http.MethodGet, path: "/v1/products/" + kur.ID + "/estimate?amount=100&tenor=48", wantCode: http.StatusBadRequest},
	}
	runTests(t, tests)

	var public financing.Partner
	rec = do(t, http.MethodGet, "/v1/partners/"+partner.ID, "", nil, &public)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	require.Len(t, public.Products, 1, "inactive products are hidden from the public")
	assert.Equal(t, kur.ID, public.Products[0].ID)

	var managed financing.Partner
	rec = do(t, http.MethodGet, "/v1/partners/"+partner.ID, adminToken, nil, &managed)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, managed.Products, 2)

	var est financing.Estimate
	rec = do(t, http.MethodGet, "/v1/products/"+kur.ID+"/estimate?amount=12000000&tenor=12", "", nil, &est)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	want := financing.MonthlyInstallment(decimal.NewFromInt(12000000), decimal.NewFromInt(6), 12)
	assert.True(t, want.Equal(est.MonthlyInstallment), "installment = %s; want %s", est.MonthlyInstallment, want)
	assert.True(t, est.TotalPayment.Equal(want.Mul(decimal.NewFromInt(12))))
	assert.True(t, est.TotalInterest.IsPositive())

	// a deactivated partner disappears from the directory
	rec = do(t, http.MethodPut, "/v1/partners/"+partner.ID, adminToken, financing.PartnerInput{Name: "Bank Rakyat", Kind: "bank", IsActive: &inactive}, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	rec = do(t, http.MethodGet, "/v1/partners/"+partner.ID, "", nil, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	var page struct {
		Results []financing.Partner `json:"results"`
	}
	rec = do(t, http.MethodGet, "/v1/partners", "", nil, &page)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, page.Results)

	rec = do(t, http.MethodDelete, "/v1/products/"+hidden.ID, adminToken, nil, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func Test_financingApi_applications(t *testing.T) {
	setup(t)

	admin := createUser(t, "Admin", "admin", user.RoleAdmin)
	reviewer := createUser(t, "Bank Officer", "officer", user.RolePartner)
	owner := createUser(t, "Siti", "siti", user.RoleUMKM)
	unverified := createUser(t, "Budi", "budi", user.RoleUMKM)
	adminToken, reviewerToken, ownerToken := getToken(t, admin), getToken(t, reviewer), getToken(t, owner)
	testutil.CreateProfile(t, tapp.UMKMRepo, owner, "Warung Siti", "Jawa Barat", umkm.StatusVerified)
	testutil.CreateProfile(t, tapp.UMKMRepo, unverified, "Toko Budi", "Bali", umkm.StatusDraft)

	var partner financing.Partner
	rec := do(t, http.MethodPost, "/v1/partners", adminToken, financing.PartnerInput{Name: "Koperasi Maju", Kind: "cooperative"}, &partner)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var prod financing.Product
	rec = do(t, http.MethodPost, "/v1/partners/"+partner.ID+"/products", adminToken, productInput("Modal Usaha", 0), &prod)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	application := func(amount int64, tenor int) financing.NewApplication {
		return financing.NewApplication{
			ProductID:   prod.ID,
			Amount:      decimal.NewFromInt(amount),
			TenorMonths: tenor,
			Purpose:     "Buy a second oven",
		}
	}

	tests := []httpTest{
		{name: "a verified profile is required", method: http.MethodPost, path: "/v1/applications", token: getToken(t, unverified), body: marchallObj(t, application(12000000, 12)), wantCode: http.StatusBadRequest},
		{name: "reviewers cannot apply", method: http.MethodPost, path: "/v1/applications", token: reviewerToken, body: marchallObj(t, application(12000000, 12)), wantCode: http.StatusForbidden},
		{name: "unknown product", method: http.MethodPost, path: "/v1/applications", token: ownerToken, body: marchallObj(t, financing.NewApplication{ProductID: "lol", Amount: decimal.NewFromInt(1), TenorMonths: 1, Purpose: "x"}), wantCode: http.StatusBadRequest, wantData: marchallObj(t, map[string]string{"product_id": "unknown product"})},
		{name: "tenor out of range", method: http.MethodPost, path: "/v1/applications", token: ownerToken, body: marchallObj(t, application(12000000, 36)), wantCode: http.StatusBadRequest},
	}
	runTests(t, tests)

	var a financing.Application
	rec = do(t, http.MethodPost, "/v1/applications", ownerToken, application(12000000, 12), &a)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(t, financing.StatusSubmitted, a.Status)
	assert.True(t, a.MonthlyInstallment.Equal(decimal.NewFromInt(1000000)), "zero rate splits evenly")

	tests = []httpTest{
		{name: "applicants see their applications", method: http.MethodGet, path: "/v1/applications", token: ownerToken, wantData: marchallPage(t, 50, 0, a)},
		{name: "reviewers see every application", method: http.MethodGet, path: "/v1/applications/" + a.ID, token: reviewerToken, wantData: marchallObj(t, a)},
		{name: "applicants cannot review", method: http.MethodPost, path: "/v1/applications/" + a.ID + "/review", token: ownerToken, wantCode: http.StatusForbidden},
		{name: "submitted applications cannot be approved", method: http.MethodPost, path: "/v1/applications/" + a.ID + "/approve", token: reviewerToken, wantCode: http.StatusConflict},
		{name: "products with applications cannot be deleted", method: http.MethodDelete, path: "/v1/products/" + prod.ID, token: adminToken, wantCode: http.StatusConflict},
		{name: "partners with applications cannot be deleted", method: http.MethodDelete, path: "/v1/partners/" + partner.ID, token: adminToken, wantCode: http.StatusConflict},
	}
	runTests(t, tests)

	tapp.Mail.Reset()
	rec = do(t, http.MethodPost, "/v1/applications/"+a.ID+"/review", reviewerToken, nil, &a)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, financing.StatusUnderReview, a.Status)

	rec = do(t, http.MethodPost, "/v1/applications/"+a.ID+"/reject", reviewerToken, financing.Review{}, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code, "rejection requires a note")

	rec = do(t, http.MethodPost, "/v1/applications/"+a.ID+"/approve", reviewerToken, financing.Review{Note: " Welcome aboard "}, &a)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, financing.StatusApproved, a.Status)
	assert.Equal(t, "Welcome aboard", a.ReviewNote)

	sent := tapp.Mail.Sent()
	require.Len(t, sent, 2)
	assert.Equal(t, owner.Email, sent[1].To[0].Address)
	assert.Equal(t, "application_status", sent[1].TemplateName)

	rec = do(t, http.MethodPost, "/v1/applications/"+a.ID+"/withdraw", ownerToken, nil, nil)
	assert.Equal(t, http.StatusConflict, rec.Code, "approved applications are final")

	var second financing.Application
	rec = do(t, http.MethodPost, "/v1/applications", ownerToken, application(6000000, 6), &second)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	rec = do(t, http.MethodPost, "/v1/applications/"+second.ID+"/withdraw", reviewerToken, nil, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	rec = do(t, http.MethodPost, "/v1/applications/"+second.ID+"/withdraw", ownerToken, nil, &second)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, financing.StatusWithdrawn, second.Status)

	var page struct {
		Results []financing.Application `json:"results"`
	}
	rec = do(t, http.MethodGet, "/v1/applications?status=withdrawn", reviewerToken, nil, &page)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	require.Len(t, page.Results, 1)
	assert.Equal(t, second.ID, page.Results[0].ID)
}
