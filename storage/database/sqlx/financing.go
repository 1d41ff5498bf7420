package sqlxrepos

import (
	"context"
	"time"

	"github.com/lib/pq"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"github.com/wednesdev-id/semindo-grow-hub-sub003/core"
	"github.com/wednesdev-id/semindo-grow-hub-sub003/core/financing"
)

const (
	partnerColumns = "id, name, kind, description, website, contact_email, contact_phone, is_active, created_at, updated_at"
	productColumns = `id, partner_id, name, description, min_amount, max_amount, interest_rate, min_tenor_months,
	max_tenor_months, requirements, is_active, created_at, updated_at`
	applicationColumns = `a.id, a.product_id, a.profile_id, a.user_id, a.amount, a.tenor_months, a.purpose, a.status,
	a.review_note, a.monthly_installment, a.created_at, a.updated_at`
)

var partnerOrderings = map[string]string{
	"name":       "name",
	"kind":       "kind",
	"created_at": "created_at",
}

type partnerRow struct {
	ID           string    `db:"id"`
	Name         string    `db:"name"`
	Kind         string    `db:"kind"`
	Description  string    `db:"description"`
	Website      string    `db:"website"`
	ContactEmail string    `db:"contact_email"`
	ContactPhone string    `db:"contact_phone"`
	IsActive     bool      `db:"is_active"`
	CreatedAt    time.Time `db:"created_at"`
	UpdatedAt    time.Time `db:"updated_at"`
}

func boilPartner(p financing.Partner) partnerRow {
	return partnerRow{
		ID:           p.ID,
		Name:         p.Name,
		Kind:         p.Kind,
		Description:  p.Description,
		Website:      p.Website,
		ContactEmail: p.ContactEmail,
		ContactPhone: p.ContactPhone,
		IsActive:     p.IsActive,
		CreatedAt:    p.CreatedAt.UTC(),
		UpdatedAt:    p.UpdatedAt.UTC(),
	}
}

func (row partnerRow) unboil() financing.Partner {
	return financing.Partner{
		ID:           row.ID,
		Name:         row.Name,
		Kind:         row.Kind,
		Description:  row.Description,
		Website:      row.Website,
		ContactEmail: row.ContactEmail,
		ContactPhone: row.ContactPhone,
		IsActive:     row.IsActive,
		Products:     []financing.Product{},
		CreatedAt:    row.CreatedAt.UTC(),
		UpdatedAt:    row.UpdatedAt.UTC(),
	}
}

type productRow struct {
	ID             string          `db:"id"`
	PartnerID      string          `db:"partner_id"`
	Name           string          `db:"name"`
	Description    string          `db:"description"`
	MinAmount      decimal.Decimal `db:"min_amount"`
	MaxAmount      decimal.Decimal `db:"max_amount"`
	InterestRate   decimal.Decimal `db:"interest_rate"`
	MinTenorMonths int             `db:"min_tenor_months"`
	MaxTenorMonths int             `db:"max_tenor_months"`
	Requirements   pq.StringArray  `db:"requirements"`
	IsActive       bool            `db:"is_active"`
	CreatedAt      time.Time       `db:"created_at"`
	UpdatedAt      time.Time       `db:"updated_at"`
}

func boilProduct(p financing.Product) productRow {
	return productRow{
		ID:             p.ID,
		PartnerID:      p.PartnerID,
		Name:           p.Name,
		Description:    p.Description,
		MinAmount:      p.MinAmount,
		MaxAmount:      p.MaxAmount,
		InterestRate:   p.InterestRate,
		MinTenorMonths: p.MinTenorMonths,
		MaxTenorMonths: p.MaxTenorMonths,
		Requirements:   stringArray(p.Requirements),
		IsActive:       p.IsActive,
		CreatedAt:      p.CreatedAt.UTC(),
		UpdatedAt:      p.UpdatedAt.UTC(),
	}
}

func (row productRow) unboil() financing.Product {
	return financing.Product{
		ID:             row.ID,
		PartnerID:      row.PartnerID,
		Name:           row.Name,
		Description:    row.Description,
		MinAmount:      row.MinAmount,
		MaxAmount:      row.MaxAmount,
		InterestRate:   row.InterestRate,
		MinTenorMonths: row.MinTenorMonths,
		MaxTenorMonths: row.MaxTenorMonths,
		Requirements:   []string(row.Requirements),
		IsActive:       row.IsActive,
		CreatedAt:      row.CreatedAt.UTC(),
		UpdatedAt:      row.UpdatedAt.UTC(),
	}
}

type applicationRow struct {
	ID                 string          `db:"id"`
	ProductID          string          `db:"product_id"`
	ProfileID          string          `db:"profile_id"`
	UserID             string          `db:"user_id"`
	Amount             decimal.Decimal `db:"amount"`
	TenorMonths        int             `db:"tenor_months"`
	Purpose            string          `db:"purpose"`
	Status             string          `db:"status"`
	ReviewNote         string          `db:"review_note"`
	MonthlyInstallment decimal.Decimal `db:"monthly_installment"`
	CreatedAt          time.Time       `db:"created_at"`
	UpdatedAt          time.Time       `db:"updated_at"`
}

func boilApplication(a financing.Application) applicationRow {
	row := applicationRow(a)
	row.CreatedAt = a.CreatedAt.UTC()
	row.UpdatedAt = a.UpdatedAt.UTC()
	return row
}

func (row applicationRow) unboil() financing.Application {
	a := financing.Application(row)
	a.CreatedAt = row.CreatedAt.UTC()
	a.UpdatedAt = row.UpdatedAt.UTC()
	return a
}

type financingRepository struct {
	repository
}

var _ financing.Repository = (*financingRepository)(nil)

func NewFinancingRepository(exec core.DBExecutor) financing.Repository {
	return &financingRepository{repository{exec: exec}}
}

// Partners

func (repo financingRepository) CreatePartner(ctx context.Context, p financing.Partner, exec ...core.DBExecutor) (financing.Partner, error) {
	p.ID = newID()
	q := "INSERT INTO financing_partners (" + partnerColumns + `) VALUES (:id, :name, :kind, :description, :website,
		:contact_email, :contact_phone, :is_active, :created_at, :updated_at)`
	if _, err := repo.getExec(exec).NamedExecContext(ctx, q, boilPartner(p)); err != nil {
		return financing.Partner{}, errors.Wrap(err, "inserting partner")
	}
	p.Products = []financing.Product{}
	return p, nil
}

// partnerProducts returns the products of the partners, by partner id, sorted by name.
func (repo financingRepository) partnerProducts(ctx context.Context, exe core.DBExecutor, partnerIDs []string) (map[string][]financing.Product, error) {
	products := make(map[string][]financing.Product, len(partnerIDs))
	if len(partnerIDs) == 0 {
		return products, nil
	}
	var rows []productRow
	q := "SELECT " + productColumns + " FROM financing_products WHERE partner_id = ANY(?) ORDER BY name"
	if err := selectAll(ctx, exe, &rows, q, pq.Array(partnerIDs)); err != nil {
		return nil, errors.Wrap(err, "getting partner products")
	}
	for _, row := range rows {
		products[row.PartnerID] = append(products[row.PartnerID], row.unboil())
	}
	return products, nil
}

func (repo financingRepository) GetPartner(ctx context.Context, id string, exec ...core.DBExecutor) (financing.Partner, error) {
	if !isUUID(id) {
		return financing.Partner{}, financing.ErrNotFound
	}
	exe := repo.getExec(exec)

	var row partnerRow
	if err := getOne(ctx, exe, &row, "SELECT "+partnerColumns+" FROM financing_partners WHERE id = ?", id); err != nil {
		return financing.Partner{}, trapNoRowsErr(err, financing.ErrNotFound, "getting partner")
	}
	products, err := repo.partnerProducts(ctx, exe, []string{id})
	if err != nil {
		return financing.Partner{}, err
	}
	p := row.unboil()
	if len(products[id]) > 0 {
		p.Products = products[id]
	}
	return p, nil
}

func (repo financingRepository) UpdatePartner(ctx context.Context, p financing.Partner, exec ...core.DBExecutor) (financing.Partner, error) {
	if !isUUID(p.ID) {
		return financing.Partner{}, financing.ErrNotFound
	}
	q := `UPDATE financing_partners SET name = :name, kind = :kind, description = :description, website = :website,
		contact_email = :contact_email, contact_phone = :contact_phone, is_active = :is_active,
		updated_at = :updated_at WHERE id = :id`
	res, err := repo.getExec(exec).NamedExecContext(ctx, q, boilPartner(p))
	if err != nil {
		return financing.Partner{}, errors.Wrap(err, "updating partner")
	}
	if err := checkAffected(res, financing.ErrNotFound); err != nil {
		return financing.Partner{}, err
	}
	return p, nil
}

// DeletePartner deletes the partner; its products go through the foreign key cascade.
func (repo financingRepository) DeletePartner(ctx context.Context, id string, exec ...core.DBExecutor) error {
	if !isUUID(id) {
		return financing.ErrNotFound
	}
	res, err := execQuery(ctx, repo.getExec(exec), "DELETE FROM financing_partners WHERE id = ?", id)
	if err != nil {
		return errors.Wrap(err, "deleting partner")
	}
	return checkAffected(res, financing.ErrNotFound)
}

func (repo financingRepository) QueryPartners(ctx context.Context, filter financing.PartnerFilter, ordering []core.DBOrdering, page core.Pagination, exec ...core.DBExecutor) ([]financing.Partner, error) {
	var conds conditions
	if filter.Kind != "" {
		conds.add("kind = ?", filter.Kind)
	}
	if filter.IsActive != nil {
		conds.add("is_active = ?", *filter.IsActive)
	}
	if filter.Search != "" {
		val := like(filter.Search)
		conds.add("(name ILIKE ? OR description ILIKE ?)", val, val)
	}
	exe := repo.getExec(exec)

	q := "SELECT " + partnerColumns + " FROM financing_partners" + conds.where() +
		core.OrderBy(ordering, partnerOrderings, "name ASC") + limitOffset(page)
	var rows []partnerRow
	if err := selectAll(ctx, exe, &rows, q, conds.args...); err != nil {
		return nil, errors.Wrap(err, "querying partners")
	}

	ids := make([]string, 0, len(rows))
	for _, row := range rows {
		ids = append(ids, row.ID)
	}
	products, err := repo.partnerProducts(ctx, exe, ids)
	if err != nil {
		return nil, err
	}
	partners := make([]financing.Partner, 0, len(rows))
	for _, row := range rows {
		p := row.unboil()
		if len(products[p.ID]) > 0 {
			p.Products = products[p.ID]
		}
		partners = append(partners, p)
	}
	return partners, nil
}

// Products

func (repo financingRepository) CreateProduct(ctx context.Context, p financing.Product, exec ...core.DBExecutor) (financing.Product, error) {
	if !isUUID(p.PartnerID) {
		return financing.Product{}, financing.ErrNotFound
	}
	p.ID = newID()
	q := "INSERT INTO financing_products (" + productColumns + `) VALUES (:id, :partner_id, :name, :description,
		:min_amount, :max_amount, :interest_rate, :min_tenor_months, :max_tenor_months, :requirements, :is_active,
		:created_at, :updated_at)`
	if _, err := repo.getExec(exec).NamedExecContext(ctx, q, boilProduct(p)); err != nil {
		if pqErr, ok := errors.Cause(err).(*pq.Error); ok && pqErr.Code == "23503" { // foreign_key_violation
			return financing.Product{}, financing.ErrNotFound
		}
		return financing.Product{}, errors.Wrap(err, "inserting product")
	}
	return p, nil
}

func (repo financingRepository) GetProduct(ctx context.Context, id string, exec ...core.DBExecutor) (financing.Product, error) {
	if !isUUID(id) {
		return financing.Product{}, financing.ErrProductNotFound
	}
	var row productRow
	if err := getOne(ctx, repo.getExec(exec), &row, "SELECT "+productColumns+" FROM financing_products WHERE id = ?", id); err != nil {
		return financing.Product{}, trapNoRowsErr(err, financing.ErrProductNotFound, "getting product")
	}
	return row.unboil(), nil
}

func (repo financingRepository) UpdateProduct(ctx context.Context, p financing.Product, exec ...core.DBExecutor) (financing.Product, error) {
	if !isUUID(p.ID) {
		return financing.Product{}, financing.ErrProductNotFound
	}
	q := `UPDATE financing_products SET name = :name, description = :description, min_amount = :min_amount,
		max_amount = :max_amount, interest_rate = :interest_rate, min_tenor_months = :min_tenor_months,
		max_tenor_months = :max_tenor_months, requirements = :requirements, is_active = :is_active,
		updated_at = :updated_at WHERE id = :id`
	res, err := repo.getExec(exec).NamedExecContext(ctx, q, boilProduct(p))
	if err != nil {
		return financing.Product{}, errors.Wrap(err, "updating product")
	}
	if err := checkAffected(res, financing.ErrProductNotFound); err != nil {
		return financing.Product{}, err
	}
	return p, nil
}

func (repo financingRepository) DeleteProduct(ctx context.Context, id string, exec ...core.DBExecutor) error {
	if !isUUID(id) {
		return financing.ErrProductNotFound
	}
	res, err := execQuery(ctx, repo.getExec(exec), "DELETE FROM financing_products WHERE id = ?", id)
	if err != nil {
		return errors.Wrap(err, "deleting product")
	}
	return checkAffected(res, financing.ErrProductNotFound)
}

func (repo financingRepository) CountApplications(ctx context.Context, productID, partnerID string, exec ...core.DBExecutor) (int, error) {
	var conds conditions
	if productID != "" {
		if !isUUID(productID) {
			return 0, nil
		}
		conds.add("a.product_id = ?", productID)
	}
	if partnerID != "" {
		if !isUUID(partnerID) {
			return 0, nil
		}
		conds.add("p.partner_id = ?", partnerID)
	}
	var n int
	q := "SELECT COUNT(*) FROM financing_applications a JOIN financing_products p ON p.id = a.product_id" + conds.where()
	if err := getOne(ctx, repo.getExec(exec), &n, q, conds.args...); err != nil {
		return 0, errors.Wrap(err, "counting applications")
	}
	return n, nil
}

// Applications

func (repo financingRepository) CreateApplication(ctx context.Context, a financing.Application, exec ...core.DBExecutor) (financing.Application, error) {
	a.ID = newID()
	q := `INSERT INTO financing_applications (id, product_id, profile_id, user_id, amount, tenor_months, purpose,
		status, review_note, monthly_installment, created_at, updated_at) VALUES (:id, :product_id, :profile_id,
		:user_id, :amount, :tenor_months, :purpose, :status, :review_note, :monthly_installment, :created_at,
		:updated_at)`
	if _, err := repo.getExec(exec).NamedExecContext(ctx, q, boilApplication(a)); err != nil {
		return financing.Application{}, errors.Wrap(err, "inserting application")
	}
	return a, nil
}

func (repo financingRepository) GetApplication(ctx context.Context, id string, exec ...core.DBExecutor) (financing.Application, error) {
	if !isUUID(id) {
		return financing.Application{}, financing.ErrApplicationNotFound
	}
	var row applicationRow
	q := "SELECT " + applicationColumns + " FROM financing_applications a WHERE a.id = ?"
	if err := getOne(ctx, repo.getExec(exec), &row, q, id); err != nil {
		return financing.Application{}, trapNoRowsErr(err, financing.ErrApplicationNotFound, "getting application")
	}
	return row.unboil(), nil
}

func (repo financingRepository) UpdateApplication(ctx context.Context, a financing.Application, exec ...core.DBExecutor) (financing.Application, error) {
	if !isUUID(a.ID) {
		return financing.Application{}, financing.ErrApplicationNotFound
	}
	q := `UPDATE financing_applications SET status = :status, review_note = :review_note, updated_at = :updated_at
		WHERE id = :id`
	res, err := repo.getExec(exec).NamedExecContext(ctx, q, boilApplication(a))
	if err != nil {
		return financing.Application{}, errors.Wrap(err, "updating application")
	}
	if err := checkAffected(res, financing.ErrApplicationNotFound); err != nil {
		return financing.Application{}, err
	}
	return a, nil
}

func (repo financingRepository) QueryApplications(ctx context.Context, filter financing.ApplicationFilter, page core.Pagination, exec ...core.DBExecutor) ([]financing.Application, error) {
	for _, id := range []string{filter.UserID, filter.ProductID, filter.PartnerID} {
		if id != "" && !isUUID(id) {
			return []financing.Application{}, nil
		}
	}
	var conds conditions
	if filter.UserID != "" {
		conds.add("a.user_id = ?", filter.UserID)
	}
	if filter.ProductID != "" {
		conds.add("a.product_id = ?", filter.ProductID)
	}
	if filter.PartnerID != "" {
		conds.add("p.partner_id = ?", filter.PartnerID)
	}
	if filter.Status != "" {
		conds.add("a.status = ?", filter.Status)
	}

	q := "SELECT " + applicationColumns + " FROM financing_applications a" +
		" JOIN financing_products p ON p.id = a.product_id" + conds.where() +
		" ORDER BY a.created_at DESC" + limitOffset(page)
	var rows []applicationRow
	if err := selectAll(ctx, repo.getExec(exec), &rows, q, conds.args...); err != nil {
		return nil, errors.Wrap(err, "querying applications")
	}
	apps := make([]financing.Application, 0, len(rows))
	for _, row := range rows {
		apps = append(apps, row.unboil())
	}
	return apps, nil
}
