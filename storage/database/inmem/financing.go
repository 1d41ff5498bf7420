package inmemdb

import (
	"context"

	"github.com/wednesdev-id/semindo-grow-hub-sub003/core"
	"github.com/wednesdev-id/semindo-grow-hub-sub003/core/financing"
)

type financingRepository struct {
	db *DB
}

var _ financing.Repository = (*financingRepository)(nil)

func NewFinancingRepository(db *DB) financing.Repository {
	return &financingRepository{db: db}
}

var partnerSortKeys = map[string]sortKey[financing.Partner]{
	"name":       func(p financing.Partner) interface{} { return p.Name },
	"kind":       func(p financing.Partner) interface{} { return p.Kind },
	"created_at": func(p financing.Partner) interface{} { return p.CreatedAt },
}

var productSortKeys = map[string]sortKey[financing.Product]{
	"name": func(p financing.Product) interface{} { return p.Name },
}

func cloneProduct(p financing.Product) financing.Product {
	p.Requirements = cloneStrings(p.Requirements)
	return p
}

func (repo *financingRepository) partnerProducts(partnerID string) []financing.Product {
	products := make([]financing.Product, 0)
	for _, p := range repo.db.products {
		if p.PartnerID == partnerID {
			products = append(products, cloneProduct(p))
		}
	}
	sortItems(products, nil, productSortKeys, core.DBOrdering{Field: "name", Ascending: true})
	return products
}

// Partners

func (repo *financingRepository) CreatePartner(_ context.Context, p financing.Partner, _ ...core.DBExecutor) (financing.Partner, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	p.ID = newID()
	p.Products = nil
	repo.db.partners[p.ID] = p
	p.Products = []financing.Product{}
	return p, nil
}

func (repo *financingRepository) GetPartner(_ context.Context, id string, _ ...core.DBExecutor) (financing.Partner, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	p, ok := repo.db.partners[id]
	if !ok {
		return financing.Partner{}, financing.ErrNotFound
	}
	p.Products = repo.partnerProducts(id)
	return p, nil
}

func (repo *financingRepository) UpdatePartner(_ context.Context, p financing.Partner, _ ...core.DBExecutor) (financing.Partner, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	if _, ok := repo.db.partners[p.ID]; !ok {
		return financing.Partner{}, financing.ErrNotFound
	}
	products := p.Products
	p.Products = nil
	repo.db.partners[p.ID] = p
	p.Products = products
	return p, nil
}

func (repo *financingRepository) DeletePartner(_ context.Context, id string, _ ...core.DBExecutor) error {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	if _, ok := repo.db.partners[id]; !ok {
		return financing.ErrNotFound
	}
	delete(repo.db.partners, id)
	for pid, p := range repo.db.products {
		if p.PartnerID == id {
			delete(repo.db.products, pid)
		}
	}
	return nil
}

func (repo *financingRepository) QueryPartners(_ context.Context, filter financing.PartnerFilter, ordering []core.DBOrdering, page core.Pagination, _ ...core.DBExecutor) ([]financing.Partner, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	partners := make([]financing.Partner, 0)
	for _, p := range repo.db.partners {
		switch {
		case filter.Kind != "" && p.Kind != filter.Kind,
			filter.IsActive != nil && p.IsActive != *filter.IsActive,
			filter.Search != "" && !containsFold(filter.Search, p.Name, p.Description):
			continue
		}
		p.Products = repo.partnerProducts(p.ID)
		partners = append(partners, p)
	}
	sortItems(partners, ordering, partnerSortKeys, core.DBOrdering{Field: "name", Ascending: true})
	return paginate(partners, page), nil
}

// Products

func (repo *financingRepository) CreateProduct(_ context.Context, p financing.Product, _ ...core.DBExecutor) (financing.Product, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	if _, ok := repo.db.partners[p.PartnerID]; !ok {
		return financing.Product{}, financing.ErrNotFound
	}
	p.ID = newID()
	repo.db.products[p.ID] = cloneProduct(p)
	return p, nil
}

func (repo *financingRepository) GetProduct(_ context.Context, id string, _ ...core.DBExecutor) (financing.Product, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	if p, ok := repo.db.products[id]; ok {
		return cloneProduct(p), nil
	}
	return financing.Product{}, financing.ErrProductNotFound
}

func (repo *financingRepository) UpdateProduct(_ context.Context, p financing.Product, _ ...core.DBExecutor) (financing.Product, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	if _, ok := repo.db.products[p.ID]; !ok {
		return financing.Product{}, financing.ErrProductNotFound
	}
	repo.db.products[p.ID] = cloneProduct(p)
	return p, nil
}

func (repo *financingRepository) DeleteProduct(_ context.Context, id string, _ ...core.DBExecutor) error {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	if _, ok := repo.db.products[id]; !ok {
		return financing.ErrProductNotFound
	}
	delete(repo.db.products, id)
	return nil
}

func (repo *financingRepository) CountApplications(_ context.Context, productID, partnerID string, _ ...core.DBExecutor) (int, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	var n int
	for _, a := range repo.db.applications {
		if productID != "" && a.ProductID != productID {
			continue
		}
		if partnerID != "" && repo.db.products[a.ProductID].PartnerID != partnerID {
			continue
		}
		n++
	}
	return n, nil
}

// Applications

func (repo *financingRepository) CreateApplication(_ context.Context, a financing.Application, _ ...core.DBExecutor) (financing.Application, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	a.ID = newID()
	repo.db.applications[a.ID] = a
	return a, nil
}

func (repo *financingRepository) GetApplication(_ context.Context, id string, _ ...core.DBExecutor) (financing.Application, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	if a, ok := repo.db.applications[id]; ok {
		return a, nil
	}
	return financing.Application{}, financing.ErrApplicationNotFound
}

func (repo *financingRepository) UpdateApplication(_ context.Context, a financing.Application, _ ...core.DBExecutor) (financing.Application, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	if _, ok := repo.db.applications[a.ID]; !ok {
		return financing.Application{}, financing.ErrApplicationNotFound
	}
	repo.db.applications[a.ID] = a
	return a, nil
}

func (repo *financingRepository) QueryApplications(_ context.Context, filter financing.ApplicationFilter, page core.Pagination, _ ...core.DBExecutor) ([]financing.Application, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	apps := make([]financing.Application, 0)
	for _, a := range repo.db.applications {
		switch {
		case filter.UserID != "" && a.UserID != filter.UserID,
			filter.ProductID != "" && a.ProductID != filter.ProductID,
			filter.PartnerID != "" && repo.db.products[a.ProductID].PartnerID != filter.PartnerID,
			filter.Status != "" && a.Status != filter.Status:
			continue
		}
		apps = append(apps, a)
	}
	sortItems(apps, nil, map[string]sortKey[financing.Application]{
		"created_at": func(a financing.Application) interface{} { return a.CreatedAt },
	}, core.DBOrdering{Field: "created_at"})
	return paginate(apps, page), nil
}
