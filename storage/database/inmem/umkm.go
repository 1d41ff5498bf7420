package inmemdb

import (
	"context"

	"github.com/wednesdev-id/semindo-grow-hub-sub003/core"
	"github.com/wednesdev-id/semindo-grow-hub-sub003/core/umkm"
)

type umkmRepository struct {
	db *DB
}

var _ umkm.Repository = (*umkmRepository)(nil)

func NewUMKMRepository(db *DB) umkm.Repository {
	return &umkmRepository{db: db}
}

var profileSortKeys = map[string]sortKey[umkm.Profile]{
	"business_name":  func(p umkm.Profile) interface{} { return p.BusinessName },
	"annual_revenue": func(p umkm.Profile) interface{} { return p.AnnualRevenue },
	"employee_count": func(p umkm.Profile) interface{} { return p.EmployeeCount },
	"created_at":     func(p umkm.Profile) interface{} { return p.CreatedAt },
}

func (repo *umkmRepository) CreateProfile(_ context.Context, p umkm.Profile, _ ...core.DBExecutor) (umkm.Profile, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	for _, existing := range repo.db.profiles {
		if existing.OwnerID == p.OwnerID {
			return umkm.Profile{}, umkm.ErrProfileExists
		}
	}
	p.ID = newID()
	repo.db.profiles[p.ID] = p
	return p, nil
}

func (repo *umkmRepository) GetProfile(_ context.Context, id string, _ ...core.DBExecutor) (umkm.Profile, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	if p, ok := repo.db.profiles[id]; ok {
		return p, nil
	}
	return umkm.Profile{}, umkm.ErrNotFound
}

func (repo *umkmRepository) GetProfileByOwner(_ context.Context, ownerID string, _ ...core.DBExecutor) (umkm.Profile, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	for _, p := range repo.db.profiles {
		if p.OwnerID == ownerID {
			return p, nil
		}
	}
	return umkm.Profile{}, umkm.ErrNotFound
}

func (repo *umkmRepository) UpdateProfile(_ context.Context, p umkm.Profile, _ ...core.DBExecutor) (umkm.Profile, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	if _, ok := repo.db.profiles[p.ID]; !ok {
		return umkm.Profile{}, umkm.ErrNotFound
	}
	repo.db.profiles[p.ID] = p
	return p, nil
}

func (repo *umkmRepository) DeleteProfile(_ context.Context, id string, _ ...core.DBExecutor) error {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	if _, ok := repo.db.profiles[id]; !ok {
		return umkm.ErrNotFound
	}
	delete(repo.db.profiles, id)
	return nil
}

func (repo *umkmRepository) QueryProfiles(_ context.Context, filter umkm.QueryFilter, ordering []core.DBOrdering, page core.Pagination, _ ...core.DBExecutor) ([]umkm.Profile, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	profiles := make([]umkm.Profile, 0)
	for _, p := range repo.db.profiles {
		switch {
		case filter.OwnerID != "" && p.OwnerID != filter.OwnerID,
			filter.Sector != "" && p.Sector != filter.Sector,
			filter.Scale != "" && p.Scale != filter.Scale,
			filter.Province != "" && !equalFold(p.Province, filter.Province),
			filter.Status != "" && p.Status != filter.Status,
			filter.Search != "" && !containsFold(filter.Search, p.BusinessName, p.OwnerName, p.City):
			continue
		}
		profiles = append(profiles, p)
	}
	sortItems(profiles, ordering, profileSortKeys, core.DBOrdering{Field: "created_at"})
	return paginate(profiles, page), nil
}
