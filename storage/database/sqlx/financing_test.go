package sqlxrepos

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wednesdev-id/semindo-grow-hub-sub003/core"
	"github.com/wednesdev-id/semindo-grow-hub-sub003/core/financing"
)

func Test_financingRepository_GetPartner(t *testing.T) {
	db, mock := newMock(t)
	repo := NewFinancingRepository(db)
	ctx := context.Background()
	id := newID()
	now := time.Date(2024, 3, 4, 8, 0, 0, 0, time.UTC)

	mock.ExpectQuery(regexp.QuoteMeta("FROM financing_partners WHERE id = $1")).WithArgs(id).
		WillReturnRows(sqlmock.NewRows(columnNames(partnerColumns)).
			AddRow(id, "Bank Nusantara", "bank", "", "", "", "", true, now, now))
	mock.ExpectQuery(regexp.QuoteMeta("FROM financing_products WHERE partner_id = ANY($1) ORDER BY name")).
		WithArgs(sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows(columnNames(productColumns)).
			AddRow(newID(), id, "KUR Mikro", "", "1000000", "50000000", "6.5", 6, 36, []byte("{NIB,KTP}"), true, now, now))

	p, err := repo.GetPartner(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "Bank Nusantara", p.Name)
	require.Len(t, p.Products, 1)
	prod := p.Products[0]
	assert.True(t, prod.MaxAmount.Equal(decimal.NewFromInt(50000000)))
	assert.Equal(t, "6.5", prod.InterestRate.String())
	assert.Equal(t, []string{"NIB", "KTP"}, prod.Requirements)

	mock.ExpectQuery(regexp.QuoteMeta("FROM financing_partners WHERE id = $1")).WithArgs(id).
		WillReturnRows(sqlmock.NewRows(columnNames(partnerColumns)))
	_, err = repo.GetPartner(ctx, id)
	assert.Equal(t, financing.ErrNotFound, err)

	_, err = repo.GetPartner(ctx, "lol")
	assert.Equal(t, financing.ErrNotFound, err)
}

func Test_financingRepository_QueryPartners(t *testing.T) {
	db, mock := newMock(t)
	repo := NewFinancingRepository(db)
	active := true

	mock.ExpectQuery(regexp.QuoteMeta(
		"FROM financing_partners WHERE kind = $1 AND is_active = $2 ORDER BY name ASC LIMIT 10")).
		WithArgs("bank", true).
		WillReturnRows(sqlmock.NewRows(columnNames(partnerColumns)))

	partners, err := repo.QueryPartners(context.Background(),
		financing.PartnerFilter{Kind: "bank", IsActive: &active}, nil, core.Pagination{Limit: 10})
	require.NoError(t, err)
	assert.Empty(t, partners, "no products query without partners")
}

func Test_financingRepository_CreateProduct(t *testing.T) {
	db, mock := newMock(t)
	repo := NewFinancingRepository(db)
	ctx := context.Background()
	p := financing.Product{PartnerID: newID(), Name: "KUR Mikro", MinAmount: decimal.NewFromInt(1000000)}

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO financing_products")).
		WillReturnError(&pq.Error{Code: "23503", Constraint: "financing_products_partner_id_fkey"})
	_, err := repo.CreateProduct(ctx, p)
	assert.Equal(t, financing.ErrNotFound, err)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO financing_products")).
		WillReturnResult(sqlmock.NewResult(0, 1))
	got, err := repo.CreateProduct(ctx, p)
	require.NoError(t, err)
	assert.True(t, isUUID(got.ID))

	_, err = repo.CreateProduct(ctx, financing.Product{PartnerID: "lol"})
	assert.Equal(t, financing.ErrNotFound, err)
}

func Test_financingRepository_applications(t *testing.T) {
	db, mock := newMock(t)
	repo := NewFinancingRepository(db)
	ctx := context.Background()
	partner, user := newID(), newID()
	now := time.Date(2024, 3, 4, 8, 0, 0, 0, time.UTC)

	n, err := repo.CountApplications(ctx, "lol", "")
	require.NoError(t, err)
	assert.Zero(t, n)

	mock.ExpectQuery(regexp.QuoteMeta(
		"SELECT COUNT(*) FROM financing_applications a JOIN financing_products p ON p.id = a.product_id WHERE p.partner_id = $1")).
		WithArgs(partner).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(2))
	n, err = repo.CountApplications(ctx, "", partner)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	mock.ExpectQuery(regexp.QuoteMeta(
		"JOIN financing_products p ON p.id = a.product_id WHERE a.user_id = $1 AND a.status = $2 ORDER BY a.created_at DESC LIMIT 20")).
		WithArgs(user, financing.StatusSubmitted).
		WillReturnRows(sqlmock.NewRows(columnNames(applicationColumns)).AddRow(
			newID(), newID(), newID(), user, "10000000", 12, "modal kerja", financing.StatusSubmitted, "", "875000", now, now,
		))
	apps, err := repo.QueryApplications(ctx,
		financing.ApplicationFilter{UserID: user, Status: financing.StatusSubmitted}, core.Pagination{Limit: 20})
	require.NoError(t, err)
	require.Len(t, apps, 1)
	assert.Equal(t, "875000", apps[0].MonthlyInstallment.String())

	apps, err = repo.QueryApplications(ctx, financing.ApplicationFilter{PartnerID: "lol"}, core.Pagination{})
	require.NoError(t, err)
	assert.Empty(t, apps)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE financing_applications SET status = $1")).
		WillReturnResult(sqlmock.NewResult(0, 0))
	_, err = repo.UpdateApplication(ctx, financing.Application{ID: newID(), Status: financing.StatusApproved})
	assert.Equal(t, financing.ErrApplicationNotFound, err)
}
