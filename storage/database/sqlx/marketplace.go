package sqlxrepos

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"github.com/wednesdev-id/semindo-grow-hub-sub003/core"
	"github.com/wednesdev-id/semindo-grow-hub-sub003/core/marketplace"
)

const listingColumns = `l.id, l.profile_id, l.owner_id, l.title, l.slug, l.description, l.category, l.price,
	l.currency, l.stock, l.unit, l.status, l.moderation_note, l.created_at, l.updated_at`

var listingOrderings = map[string]string{
	"title":      "l.title",
	"price":      "l.price",
	"stock":      "l.stock",
	"created_at": "l.created_at",
	"updated_at": "l.updated_at",
}

type listingRow struct {
	ID             string          `db:"id"`
	ProfileID      string          `db:"profile_id"`
	OwnerID        string          `db:"owner_id"`
	Title          string          `db:"title"`
	Slug           string          `db:"slug"`
	Description    string          `db:"description"`
	Category       string          `db:"category"`
	Price          decimal.Decimal `db:"price"`
	Currency       string          `db:"currency"`
	Stock          int             `db:"stock"`
	Unit           string          `db:"unit"`
	Status         string          `db:"status"`
	ModerationNote string          `db:"moderation_note"`
	CreatedAt      time.Time       `db:"created_at"`
	UpdatedAt      time.Time       `db:"updated_at"`
}

func boilListing(l marketplace.Listing) listingRow {
	row := listingRow(l)
	row.CreatedAt = l.CreatedAt.UTC()
	row.UpdatedAt = l.UpdatedAt.UTC()
	return row
}

func (row listingRow) unboil() marketplace.Listing {
	l := marketplace.Listing(row)
	l.CreatedAt = row.CreatedAt.UTC()
	l.UpdatedAt = row.UpdatedAt.UTC()
	return l
}

type marketplaceRepository struct {
	repository
}

var _ marketplace.Repository = (*marketplaceRepository)(nil)

func NewMarketplaceRepository(exec core.DBExecutor) marketplace.Repository {
	return &marketplaceRepository{repository{exec: exec}}
}

func (repo marketplaceRepository) CreateListing(ctx context.Context, l marketplace.Listing, exec ...core.DBExecutor) (marketplace.Listing, error) {
	l.ID = newID()
	q := `INSERT INTO listings (id, profile_id, owner_id, title, slug, description, category, price, currency, stock,
		unit, status, moderation_note, created_at, updated_at) VALUES (:id, :profile_id, :owner_id, :title, :slug,
		:description, :category, :price, :currency, :stock, :unit, :status, :moderation_note, :created_at, :updated_at)`
	if _, err := repo.getExec(exec).NamedExecContext(ctx, q, boilListing(l)); err != nil {
		return marketplace.Listing{}, errors.Wrap(err, "inserting listing")
	}
	return l, nil
}

func (repo marketplaceRepository) GetListing(ctx context.Context, id string, exec ...core.DBExecutor) (marketplace.Listing, error) {
	if !isUUID(id) {
		return marketplace.Listing{}, marketplace.ErrNotFound
	}
	var row listingRow
	if err := getOne(ctx, repo.getExec(exec), &row, "SELECT "+listingColumns+" FROM listings l WHERE l.id = ?", id); err != nil {
		return marketplace.Listing{}, trapNoRowsErr(err, marketplace.ErrNotFound, "getting listing")
	}
	return row.unboil(), nil
}

func (repo marketplaceRepository) SlugExists(ctx context.Context, slug, excludedID string, exec ...core.DBExecutor) (bool, error) {
	var found bool
	q := "SELECT EXISTS (SELECT 1 FROM listings WHERE slug = ? AND id::text <> ?)"
	if err := getOne(ctx, repo.getExec(exec), &found, q, slug, excludedID); err != nil {
		return false, errors.Wrap(err, "checking listing slug")
	}
	return found, nil
}

func (repo marketplaceRepository) UpdateListing(ctx context.Context, l marketplace.Listing, exec ...core.DBExecutor) (marketplace.Listing, error) {
	if !isUUID(l.ID) {
		return marketplace.Listing{}, marketplace.ErrNotFound
	}
	q := `UPDATE listings SET title = :title, slug = :slug, description = :description, category = :category,
		price = :price, currency = :currency, stock = :stock, unit = :unit, status = :status,
		moderation_note = :moderation_note, updated_at = :updated_at WHERE id = :id`
	res, err := repo.getExec(exec).NamedExecContext(ctx, q, boilListing(l))
	if err != nil {
		return marketplace.Listing{}, errors.Wrap(err, "updating listing")
	}
	if err := checkAffected(res, marketplace.ErrNotFound); err != nil {
		return marketplace.Listing{}, err
	}
	return l, nil
}

func (repo marketplaceRepository) QueryListings(ctx context.Context, filter marketplace.QueryFilter, ordering []core.DBOrdering, page core.Pagination, exec ...core.DBExecutor) ([]marketplace.Listing, error) {
	var conds conditions
	if filter.Status != "" {
		conds.add("l.status = ?", filter.Status)
	}
	if filter.OwnerID != "" {
		if !isUUID(filter.OwnerID) {
			return []marketplace.Listing{}, nil
		}
		conds.add("l.owner_id = ?", filter.OwnerID)
	}
	if filter.Category != "" {
		conds.add("l.category = ?", filter.Category)
	}
	if filter.MinPrice != "" {
		conds.add("l.price >= ?", filter.Min)
	}
	if filter.MaxPrice != "" {
		conds.add("l.price <= ?", filter.Max)
	}
	if filter.Search != "" {
		val := like(filter.Search)
		conds.add("(l.title ILIKE ? OR l.description ILIKE ?)", val, val)
	}
	from := " FROM listings l"
	if filter.Province != "" {
		from += " JOIN umkm_profiles p ON p.id = l.profile_id"
		conds.add("lower(p.province) = lower(?)", filter.Province)
	}

	q := "SELECT " + listingColumns + from + conds.where() +
		core.OrderBy(ordering, listingOrderings, "l.created_at DESC") + limitOffset(page)
	var rows []listingRow
	if err := selectAll(ctx, repo.getExec(exec), &rows, q, conds.args...); err != nil {
		return nil, errors.Wrap(err, "querying listings")
	}
	listings := make([]marketplace.Listing, 0, len(rows))
	for _, row := range rows {
		listings = append(listings, row.unboil())
	}
	return listings, nil
}
