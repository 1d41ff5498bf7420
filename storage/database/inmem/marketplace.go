package inmemdb

import (
	"context"

	"github.com/wednesdev-id/semindo-grow-hub-sub003/core"
	"github.com/wednesdev-id/semindo-grow-hub-sub003/core/marketplace"
)

type marketplaceRepository struct {
	db *DB
}

var _ marketplace.Repository = (*marketplaceRepository)(nil)

func NewMarketplaceRepository(db *DB) marketplace.Repository {
	return &marketplaceRepository{db: db}
}

var listingSortKeys = map[string]sortKey[marketplace.Listing]{
	"title":      func(l marketplace.Listing) interface{} { return l.Title },
	"price":      func(l marketplace.Listing) interface{} { return l.Price },
	"stock":      func(l marketplace.Listing) interface{} { return l.Stock },
	"created_at": func(l marketplace.Listing) interface{} { return l.CreatedAt },
	"updated_at": func(l marketplace.Listing) interface{} { return l.UpdatedAt },
}

func (repo *marketplaceRepository) CreateListing(_ context.Context, l marketplace.Listing, _ ...core.DBExecutor) (marketplace.Listing, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	l.ID = newID()
	repo.db.listings[l.ID] = l
	return l, nil
}

func (repo *marketplaceRepository) GetListing(_ context.Context, id string, _ ...core.DBExecutor) (marketplace.Listing, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	if l, ok := repo.db.listings[id]; ok {
		return l, nil
	}
	return marketplace.Listing{}, marketplace.ErrNotFound
}

func (repo *marketplaceRepository) SlugExists(_ context.Context, slug, excludedID string, _ ...core.DBExecutor) (bool, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	for _, l := range repo.db.listings {
		if l.Slug == slug && l.ID != excludedID {
			return true, nil
		}
	}
	return false, nil
}

func (repo *marketplaceRepository) UpdateListing(_ context.Context, l marketplace.Listing, _ ...core.DBExecutor) (marketplace.Listing, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	if _, ok := repo.db.listings[l.ID]; !ok {
		return marketplace.Listing{}, marketplace.ErrNotFound
	}
	repo.db.listings[l.ID] = l
	return l, nil
}

func (repo *marketplaceRepository) QueryListings(_ context.Context, filter marketplace.QueryFilter, ordering []core.DBOrdering, page core.Pagination, _ ...core.DBExecutor) ([]marketplace.Listing, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	listings := make([]marketplace.Listing, 0)
	for _, l := range repo.db.listings {
		switch {
		case filter.Status != "" && l.Status != filter.Status,
			filter.OwnerID != "" && l.OwnerID != filter.OwnerID,
			filter.Category != "" && l.Category != filter.Category,
			filter.MinPrice != "" && l.Price.LessThan(filter.Min),
			filter.MaxPrice != "" && l.Price.GreaterThan(filter.Max),
			filter.Search != "" && !containsFold(filter.Search, l.Title, l.Description),
			filter.Province != "" && !equalFold(repo.db.profiles[l.ProfileID].Province, filter.Province):
			continue
		}
		listings = append(listings, l)
	}
	sortItems(listings, ordering, listingSortKeys, core.DBOrdering{Field: "created_at"})
	return paginate(listings, page), nil
}
