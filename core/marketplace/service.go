package marketplace

import (
	"context"
	"strconv"
	"time"

	"github.com/pkg/errors"

	"github.com/wednesdev-id/semindo-grow-hub-sub003/core"
	"github.com/wednesdev-id/semindo-grow-hub-sub003/core/audit"
	"github.com/wednesdev-id/semindo-grow-hub-sub003/core/lms"
	"github.com/wednesdev-id/semindo-grow-hub-sub003/core/umkm"
)

// Permission codes checked by this package
const (
	PermManage   = "listings:manage"
	PermModerate = "listings:moderate"
)

var (
	// errors
	ErrNotFound      = core.NewNotFoundError("listing")
	ErrInvalidStatus = core.NewConflictError("listing status does not allow this operation")
)

type (
	Repository interface {
		CreateListing(ctx context.Context, l Listing, exec ...core.DBExecutor) (Listing, error)
		GetListing(ctx context.Context, id string, exec ...core.DBExecutor) (Listing, error)
		SlugExists(ctx context.Context, slug, excludedID string, exec ...core.DBExecutor) (bool, error)
		UpdateListing(ctx context.Context, l Listing, exec ...core.DBExecutor) (Listing, error)
		// QueryListings applies AND on the set filter fields; Province matches the province of the seller profile.
		QueryListings(ctx context.Context, filter QueryFilter, ordering []core.DBOrdering, page core.Pagination, exec ...core.DBExecutor) ([]Listing, error)
	}

	ProfileGetter interface {
		GetVerifiedByOwner(ctx context.Context, ownerID string) (umkm.Profile, error)
	}

	Service interface {
		Create(ctx context.Context, actor core.Actor, in ListingInput) (Listing, error)
		Update(ctx context.Context, actor core.Actor, id string, in ListingInput) (Listing, error)
		SubmitForReview(ctx context.Context, actor core.Actor, id string) (Listing, error)
		Approve(ctx context.Context, actor core.Actor, id string) (Listing, error)
		Reject(ctx context.Context, actor core.Actor, id string, m Moderation) (Listing, error)
		Archive(ctx context.Context, actor core.Actor, id string) (Listing, error)
		Get(ctx context.Context, actor core.Actor, id string) (Listing, error)
		// Browse lists published listings; moderators may filter on any status.
		Browse(ctx context.Context, actor core.Actor, filter QueryFilter, ordering []core.DBOrdering, page core.Pagination) ([]Listing, error)
		MyListings(ctx context.Context, actor core.Actor, page core.Pagination) ([]Listing, error)
	}

	service struct {
		repo     Repository
		profiles ProfileGetter
		audit    audit.Recorder
	}
)

var _ Service = (*service)(nil)

func NewService(repo Repository, profiles ProfileGetter, recorder audit.Recorder) Service {
	return &service{repo: repo, profiles: profiles, audit: recorder}
}

func (svc *service) uniqueSlug(ctx context.Context, title, excludedID string) (string, error) {
	base := lms.Slugify(title)
	if base == "" {
		base = "listing"
	}
	slug := base
	for i := 2; ; i++ {
		exists, err := svc.repo.SlugExists(ctx, slug, excludedID)
		if err != nil {
			return "", errors.Wrap(err, "checking slug")
		}
		if !exists {
			return slug, nil
		}
		slug = base + "-" + strconv.Itoa(i)
	}
}

func (svc *service) Create(ctx context.Context, actor core.Actor, in ListingInput) (Listing, error) {
	if !actor.Can(PermManage) {
		return Listing{}, core.ErrForbidden
	}
	profile, err := svc.profiles.GetVerifiedByOwner(ctx, actor.ID)
	if err != nil {
		return Listing{}, err
	}
	slug, err := svc.uniqueSlug(ctx, in.Title, "")
	if err != nil {
		return Listing{}, err
	}

	now := time.Now().UTC()
	l := Listing{
		ProfileID: profile.ID,
		OwnerID:   actor.ID,
		Slug:      slug,
		Status:    StatusDraft,
		CreatedAt: now,
		UpdatedAt: now,
	}
	in.apply(&l)
	if l, err = svc.repo.CreateListing(ctx, l); err != nil {
		return Listing{}, errors.Wrap(err, "creating listing")
	}
	svc.audit.Record(ctx, audit.Entry{Action: audit.ActionCreate, Resource: "listing", ResourceID: l.ID})
	return l, nil
}

// owned returns the listing when the actor owns it.
func (svc *service) owned(ctx context.Context, actor core.Actor, id string) (Listing, error) {
	l, err := svc.repo.GetListing(ctx, id)
	if err != nil {
		return Listing{}, err
	}
	if l.OwnerID != actor.ID {
		if l.Status == StatusPublished || actor.Can(PermModerate) {
			return Listing{}, core.ErrForbidden
		}
		return Listing{}, ErrNotFound
	}
	return l, nil
}

func (svc *service) save(ctx context.Context, l Listing, action string) (Listing, error) {
	l.UpdatedAt = time.Now().UTC()
	l, err := svc.repo.UpdateListing(ctx, l)
	if err != nil {
		return Listing{}, errors.Wrap(err, "updating listing")
	}
	svc.audit.Record(ctx, audit.Entry{
		Action:     action,
		Resource:   "listing",
		ResourceID: l.ID,
		Metadata:   map[string]interface{}{"status": l.Status},
	})
	return l, nil
}

func (svc *service) Update(ctx context.Context, actor core.Actor, id string, in ListingInput) (Listing, error) {
	l, err := svc.owned(ctx, actor, id)
	if err != nil {
		return Listing{}, err
	}
	if l.Status != StatusDraft && l.Status != StatusRejected {
		return Listing{}, ErrInvalidStatus
	}
	if in.Title != l.Title {
		if l.Slug, err = svc.uniqueSlug(ctx, in.Title, l.ID); err != nil {
			return Listing{}, err
		}
	}
	in.apply(&l)
	l.Status = StatusDraft
	return svc.save(ctx, l, audit.ActionUpdate)
}

func (svc *service) SubmitForReview(ctx context.Context, actor core.Actor, id string) (Listing, error) {
	l, err := svc.owned(ctx, actor, id)
	if err != nil {
		return Listing{}, err
	}
	if l.Status != StatusDraft {
		return Listing{}, ErrInvalidStatus
	}
	l.Status = StatusPendingReview
	l.ModerationNote = ""
	return svc.save(ctx, l, "submit")
}

func (svc *service) moderate(ctx context.Context, actor core.Actor, id, to, note string) (Listing, error) {
	if !actor.Can(PermModerate) {
		return Listing{}, core.ErrForbidden
	}
	l, err := svc.repo.GetListing(ctx, id)
	if err != nil {
		return Listing{}, err
	}
	if l.Status != StatusPendingReview {
		return Listing{}, ErrInvalidStatus
	}
	l.Status = to
	l.ModerationNote = note
	return svc.save(ctx, l, to)
}

func (svc *service) Approve(ctx context.Context, actor core.Actor, id string) (Listing, error) {
	return svc.moderate(ctx, actor, id, StatusPublished, "")
}

func (svc *service) Reject(ctx context.Context, actor core.Actor, id string, m Moderation) (Listing, error) {
	return svc.moderate(ctx, actor, id, StatusRejected, m.Note)
}

func (svc *service) Archive(ctx context.Context, actor core.Actor, id string) (Listing, error) {
	l, err := svc.repo.GetListing(ctx, id)
	if err != nil {
		return Listing{}, err
	}
	if l.OwnerID != actor.ID && !actor.Can(PermModerate) {
		if l.Status == StatusPublished {
			return Listing{}, core.ErrForbidden
		}
		return Listing{}, ErrNotFound
	}
	if l.Status == StatusArchived {
		return Listing{}, ErrInvalidStatus
	}
	l.Status = StatusArchived
	return svc.save(ctx, l, "archive")
}

func (svc *service) Get(ctx context.Context, actor core.Actor, id string) (Listing, error) {
	l, err := svc.repo.GetListing(ctx, id)
	if err != nil {
		return Listing{}, err
	}
	if l.Status != StatusPublished && l.OwnerID != actor.ID && !actor.Can(PermModerate) {
		return Listing{}, ErrNotFound
	}
	return l, nil
}

func (svc *service) Browse(ctx context.Context, actor core.Actor, filter QueryFilter, ordering []core.DBOrdering, page core.Pagination) ([]Listing, error) {
	status := filter.Status
	if err := filter.Clean(); err != nil {
		return nil, err
	}
	filter.OwnerID = ""
	filter.Status = StatusPublished
	if actor.Can(PermModerate) && status != "" {
		filter.Status = core.CleanString(status, true /* lower */)
	}
	page.Clean()
	return svc.repo.QueryListings(ctx, filter, ordering, page)
}

func (svc *service) MyListings(ctx context.Context, actor core.Actor, page core.Pagination) ([]Listing, error) {
	page.Clean()
	return svc.repo.QueryListings(ctx, QueryFilter{OwnerID: actor.ID}, []core.DBOrdering{{Field: "created_at"}}, page)
}
