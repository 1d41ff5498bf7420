package tests

import (
	"net/http"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wednesdev-id/semindo-grow-hub-sub003/core/marketplace"
	"github.com/wednesdev-id/semindo-grow-hub-sub003/core/umkm"
	"github.com/wednesdev-id/semindo-grow-hub-sub003/core/user"
	"github.com/wednesdev-id/semindo-grow-hub-sub003/tests"
)

func listingInput(title string, price int64) marketplace.ListingInput {
	return marketplace.ListingInput{
		Title:    title,
		Category: "Makanan",
		Price:    decimal.NewFromInt(price),
		Stock:    20,
		Unit:     "pack",
	}
}

func Test_marketplaceApi(t *testing.T) {
	setup(t)

	admin := createUser(t, "Admin", "admin", user.RoleAdmin)
	seller := createUser(t, "Siti", "siti", user.RoleUMKM)
	draftOwner := createUser(t, "Budi", "budi", user.RoleUMKM)
	adminToken, sellerToken, draftToken := getToken(t, admin), getToken(t, seller), getToken(t, draftOwner)
	testutil.CreateProfile(t, tapp.UMKMRepo, seller, "Warung Siti", "Jawa Barat", umkm.StatusVerified)
	testutil.CreateProfile(t, tapp.UMKMRepo, draftOwner, "Toko Budi", "Bali", umkm.StatusDraft)

	var l marketplace.Listing
	rec := do(t, http.MethodPost, "/v1/listings", sellerToken, listingInput("Keripik Singkong", 15000), &l)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(t, "keripik-singkong", l.Slug)
	assert.Equal(t, marketplace.DefaultCurrency, l.Currency)
	assert.Equal(t, marketplace.StatusDraft, l.Status)

	tests := []httpTest{
		{name: "a verified profile is required", method: http.MethodPost, path: "/v1/listings", token: draftToken, body: marchallObj(t, listingInput("Kopi", 30000)), wantCode: http.StatusBadRequest, wantData: marchallObj(t, map[string]string{"profile": "a verified business profile is required"})},
		{name: "price must be positive", method: http.MethodPost, path: "/v1/listings", token: sellerToken, body: marchallObj(t, listingInput("Kopi", 0)), wantCode: http.StatusBadRequest},
		{name: "drafts are not browsable", method: http.MethodGet, path: "/v1/listings", wantData: marchallPage(t, 50, 0)},
		{name: "drafts are private", method: http.MethodGet, path: "/v1/listings/" + l.ID, wantCode: http.StatusNotFound},
		{name: "owners see their drafts", method: http.MethodGet, path: "/v1/listings/mine", token: sellerToken, wantData: marchallPage(t, 50, 0, l)},
		{name: "drafts cannot be approved", method: http.MethodPost, path: "/v1/listings/" + l.ID + "/approve", token: adminToken, wantCode: http.StatusConflict},
		{name: "invalid price filter", method: http.MethodGet, path: "/v1/listings?min_price=lol", wantCode: http.StatusBadRequest},
	}
	runTests(t, tests)

	rec = do(t, http.MethodPost, "/v1/listings/"+l.ID+"/submit", sellerToken, nil, &l)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, marketplace.StatusPendingReview, l.Status)

	tests = []httpTest{
		{name: "owners cannot moderate", method: http.MethodPost, path: "/v1/listings/" + l.ID + "/approve", token: sellerToken, wantCode: http.StatusForbidden},
		{name: "rejection requires a note", method: http.MethodPost, path: "/v1/listings/" + l.ID + "/reject", token: adminToken, body: marchallObj(t, marketplace.Moderation{}), wantCode: http.StatusBadRequest},
		{name: "pending listings cannot be edited", method: http.MethodPut, path: "/v1/listings/" + l.ID, token: sellerToken, body: marchallObj(t, listingInput("Keripik", 15000)), wantCode: http.StatusConflict},
	}
	runTests(t, tests)

	var page struct {
		Results []marketplace.Listing `json:"results"`
	}
	rec = do(t, http.MethodGet, "/v1/listings?status=pending_review", adminToken, nil, &page)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	require.Len(t, page.Results, 1, "moderators filter by status")
	rec = do(t, http.MethodGet, "/v1/listings?status=pending_review", "", nil, &page)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Empty(t, page.Results, "the public only browses published listings")

	rec = do(t, http.MethodPost, "/v1/listings/"+l.ID+"/reject", adminToken, marketplace.Moderation{Note: "Add photos"}, &l)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, marketplace.StatusRejected, l.Status)
	assert.Equal(t, "Add photos", l.ModerationNote)

	// rejected listings go back to draft when edited
	rec = do(t, http.MethodPut, "/v1/listings/"+l.ID, sellerToken, listingInput("Keripik Singkong Pedas", 17500), &l)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, marketplace.StatusDraft, l.Status)
	assert.Equal(t, "keripik-singkong-pedas", l.Slug)

	rec = do(t, http.MethodPost, "/v1/listings/"+l.ID+"/submit", sellerToken, nil, &l)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	rec = do(t, http.MethodPost, "/v1/listings/"+l.ID+"/approve", adminToken, nil, &l)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, marketplace.StatusPublished, l.Status)
	assert.Empty(t, l.ModerationNote)

	tests = []httpTest{
		{name: "published listings are public", method: http.MethodGet, path: "/v1/listings/" + l.ID, wantData: marchallObj(t, l)},
		{name: "browse", method: http.MethodGet, path: "/v1/listings?category=makanan&max_price=20000", wantData: marchallPage(t, 50, 0, l)},
		{name: "price filter", method: http.MethodGet, path: "/v1/listings?min_price=20000", wantData: marchallPage(t, 50, 0)},
		{name: "others cannot archive", method: http.MethodPost, path: "/v1/listings/" + l.ID + "/archive", token: draftToken, wantCode: http.StatusForbidden},
	}
	runTests(t, tests)

	rec = do(t, http.MethodPost, "/v1/listings/"+l.ID+"/archive", sellerToken, nil, &l)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, marketplace.StatusArchived, l.Status)
	rec = do(t, http.MethodGet, "/v1/listings/"+l.ID, "", nil, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
