package sqlxrepos

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/volatiletech/null/v8"

	"github.com/wednesdev-id/semindo-grow-hub-sub003/core"
	"github.com/wednesdev-id/semindo-grow-hub-sub003/core/umkm"
)

const profileColumns = `id, owner_id, business_name, owner_name, nib, sector, scale, province, city, address,
	latitude, longitude, annual_revenue, employee_count, founded_year, phone, email, website, description,
	status, verification_note, verified_at, created_at, updated_at`

var profileOrderings = map[string]string{
	"business_name":  "business_name",
	"annual_revenue": "annual_revenue",
	"employee_count": "employee_count",
	"created_at":     "created_at",
}

type profileRow struct {
	ID               string          `db:"id"`
	OwnerID          string          `db:"owner_id"`
	BusinessName     string          `db:"business_name"`
	OwnerName        string          `db:"owner_name"`
	NIB              string          `db:"nib"`
	Sector           string          `db:"sector"`
	Scale            string          `db:"scale"`
	Province         string          `db:"province"`
	City             string          `db:"city"`
	Address          string          `db:"address"`
	Latitude         null.Float64    `db:"latitude"`
	Longitude        null.Float64    `db:"longitude"`
	AnnualRevenue    decimal.Decimal `db:"annual_revenue"`
	EmployeeCount    int             `db:"employee_count"`
	FoundedYear      null.Int        `db:"founded_year"`
	Phone            string          `db:"phone"`
	Email            string          `db:"email"`
	Website          string          `db:"website"`
	Description      string          `db:"description"`
	Status           string          `db:"status"`
	VerificationNote string          `db:"verification_note"`
	VerifiedAt       null.Time       `db:"verified_at"`
	CreatedAt        time.Time       `db:"created_at"`
	UpdatedAt        time.Time       `db:"updated_at"`
}

func boilProfile(p umkm.Profile) profileRow {
	return profileRow{
		ID:               p.ID,
		OwnerID:          p.OwnerID,
		BusinessName:     p.BusinessName,
		OwnerName:        p.OwnerName,
		NIB:              p.NIB,
		Sector:           p.Sector,
		Scale:            p.Scale,
		Province:         p.Province,
		City:             p.City,
		Address:          p.Address,
		Latitude:         null.Float64FromPtr(p.Latitude),
		Longitude:        null.Float64FromPtr(p.Longitude),
		AnnualRevenue:    p.AnnualRevenue,
		EmployeeCount:    p.EmployeeCount,
		FoundedYear:      null.NewInt(p.FoundedYear, p.FoundedYear != 0),
		Phone:            p.Phone,
		Email:            p.Email,
		Website:          p.Website,
		Description:      p.Description,
		Status:           p.Status,
		VerificationNote: p.VerificationNote,
		VerifiedAt:       nullTime(p.VerifiedAt),
		CreatedAt:        p.CreatedAt.UTC(),
		UpdatedAt:        p.UpdatedAt.UTC(),
	}
}

func (row profileRow) unboil() umkm.Profile {
	return umkm.Profile{
		ID:               row.ID,
		OwnerID:          row.OwnerID,
		BusinessName:     row.BusinessName,
		OwnerName:        row.OwnerName,
		NIB:              row.NIB,
		Sector:           row.Sector,
		Scale:            row.Scale,
		Province:         row.Province,
		City:             row.City,
		Address:          row.Address,
		Latitude:         row.Latitude.Ptr(),
		Longitude:        row.Longitude.Ptr(),
		AnnualRevenue:    row.AnnualRevenue,
		EmployeeCount:    row.EmployeeCount,
		FoundedYear:      row.FoundedYear.Int,
		Phone:            row.Phone,
		Email:            row.Email,
		Website:          row.Website,
		Description:      row.Description,
		Status:           row.Status,
		VerificationNote: row.VerificationNote,
		VerifiedAt:       timeOf(row.VerifiedAt),
		CreatedAt:        row.CreatedAt.UTC(),
		UpdatedAt:        row.UpdatedAt.UTC(),
	}
}

type umkmRepository struct {
	repository
}

var _ umkm.Repository = (*umkmRepository)(nil)

func NewUMKMRepository(exec core.DBExecutor) umkm.Repository {
	return &umkmRepository{repository{exec: exec}}
}

func (repo umkmRepository) CreateProfile(ctx context.Context, p umkm.Profile, exec ...core.DBExecutor) (umkm.Profile, error) {
	if p.ID == "" {
		p.ID = newID()
	}
	q := "INSERT INTO umkm_profiles (" + profileColumns + `) VALUES (:id, :owner_id, :business_name, :owner_name,
		:nib, :sector, :scale, :province, :city, :address, :latitude, :longitude, :annual_revenue, :employee_count,
		:founded_year, :phone, :email, :website, :description, :status, :verification_note, :verified_at,
		:created_at, :updated_at)`
	if _, err := repo.getExec(exec).NamedExecContext(ctx, q, boilProfile(p)); err != nil {
		if _, ok := uniqueConstraint(err); ok {
			return umkm.Profile{}, umkm.ErrProfileExists
		}
		return umkm.Profile{}, errors.Wrap(err, "inserting profile")
	}
	return p, nil
}

func (repo umkmRepository) getProfile(ctx context.Context, exe core.DBExecutor, column, value string) (umkm.Profile, error) {
	if !isUUID(value) {
		return umkm.Profile{}, umkm.ErrNotFound
	}
	var row profileRow
	q := "SELECT " + profileColumns + " FROM umkm_profiles WHERE " + column + " = ?"
	if err := getOne(ctx, exe, &row, q, value); err != nil {
		return umkm.Profile{}, trapNoRowsErr(err, umkm.ErrNotFound, "getting profile")
	}
	return row.unboil(), nil
}

func (repo umkmRepository) GetProfile(ctx context.Context, id string, exec ...core.DBExecutor) (umkm.Profile, error) {
	return repo.getProfile(ctx, repo.getExec(exec), "id", id)
}

func (repo umkmRepository) GetProfileByOwner(ctx context.Context, ownerID string, exec ...core.DBExecutor) (umkm.Profile, error) {
	return repo.getProfile(ctx, repo.getExec(exec), "owner_id", ownerID)
}

func (repo umkmRepository) UpdateProfile(ctx context.Context, p umkm.Profile, exec ...core.DBExecutor) (umkm.Profile, error) {
	if !isUUID(p.ID) {
		return umkm.Profile{}, umkm.ErrNotFound
	}
	q := `UPDATE umkm_profiles SET business_name = :business_name, owner_name = :owner_name, nib = :nib,
		sector = :sector, scale = :scale, province = :province, city = :city, address = :address,
		latitude = :latitude, longitude = :longitude, annual_revenue = :annual_revenue,
		employee_count = :employee_count, founded_year = :founded_year, phone = :phone, email = :email,
		website = :website, description = :description, status = :status,
		verification_note = :verification_note, verified_at = :verified_at, updated_at = :updated_at
		WHERE id = :id`
	res, err := repo.getExec(exec).NamedExecContext(ctx, q, boilProfile(p))
	if err != nil {
		return umkm.Profile{}, errors.Wrap(err, "updating profile")
	}
	if err := checkAffected(res, umkm.ErrNotFound); err != nil {
		return umkm.Profile{}, err
	}
	return p, nil
}

func (repo umkmRepository) DeleteProfile(ctx context.Context, id string, exec ...core.DBExecutor) error {
	if !isUUID(id) {
		return umkm.ErrNotFound
	}
	res, err := execQuery(ctx, repo.getExec(exec), "DELETE FROM umkm_profiles WHERE id = ?", id)
	if err != nil {
		return errors.Wrap(err, "deleting profile")
	}
	return checkAffected(res, umkm.ErrNotFound)
}

func (repo umkmRepository) QueryProfiles(ctx context.Context, filter umkm.QueryFilter, ordering []core.DBOrdering, page core.Pagination, exec ...core.DBExecutor) ([]umkm.Profile, error) {
	var conds conditions
	if filter.OwnerID != "" {
		if !isUUID(filter.OwnerID) {
			return []umkm.Profile{}, nil
		}
		conds.add("owner_id = ?", filter.OwnerID)
	}
	if filter.Sector != "" {
		conds.add("sector = ?", filter.Sector)
	}
	if filter.Scale != "" {
		conds.add("scale = ?", filter.Scale)
	}
	if filter.Province != "" {
		conds.add("lower(province) = lower(?)", filter.Province)
	}
	if filter.Status != "" {
		conds.add("status = ?", filter.Status)
	}
	if filter.Search != "" {
		val := like(filter.Search)
		conds.add("(business_name ILIKE ? OR owner_name ILIKE ? OR city ILIKE ?)", val, val, val)
	}

	q := "SELECT " + profileColumns + " FROM umkm_profiles" + conds.where() +
		core.OrderBy(ordering, profileOrderings, "created_at DESC") + limitOffset(page)
	var rows []profileRow
	if err := selectAll(ctx, repo.getExec(exec), &rows, q, conds.args...); err != nil {
		return nil, errors.Wrap(err, "querying profiles")
	}
	profiles := make([]umkm.Profile, 0, len(rows))
	for _, row := range rows {
		profiles = append(profiles, row.unboil())
	}
	return profiles, nil
}
