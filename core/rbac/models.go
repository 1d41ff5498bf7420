package rbac

import (
	"context"
	"sort"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"

	"github.com/wednesdev-id/semindo-grow-hub-sub003/core"
	"github.com/wednesdev-id/semindo-grow-hub-sub003/core/user"
)

// Permission codes
const (
	PermUsersRead            = "users:read"
	PermUsersManage          = "users:manage"
	PermRolesManage          = "roles:manage"
	PermUMKMRead             = "umkm:read"
	PermUMKMManage           = "umkm:manage"
	PermUMKMVerify           = "umkm:verify"
	PermAssessmentsManage    = "assessments:manage"
	PermAssessmentsSubmit    = "assessments:submit"
	PermConsultationsManage  = "consultations:manage"
	PermConsultationsBook    = "consultations:book"
	PermConsultationsRespond = "consultations:respond"
	PermCoursesManage        = "courses:manage"
	PermCoursesEnroll        = "courses:enroll"
	PermLettersRead          = "letters:read"
	PermLettersManage        = "letters:manage"
	PermLettersDispose       = "letters:dispose"
	PermListingsManage       = "listings:manage"
	PermListingsModerate     = "listings:moderate"
	PermFinancingManage      = "financing:manage"
	PermFinancingApply       = "financing:apply"
	PermFinancingReview      = "financing:review"
	PermAuditRead            = "audit:read"
)

type Permission struct {
	Code        string `json:"code"`
	Group       string `json:"group"`
	Description string `json:"description"`
}

var SystemPermissions = []Permission{
	{PermUsersRead, "users", "View user accounts"},
	{PermUsersManage, "users", "Create, edit and delete user accounts"},
	{PermRolesManage, "roles", "Manage roles and their permissions"},
	{PermUMKMRead, "umkm", "View business profiles"},
	{PermUMKMManage, "umkm", "Edit, delete, import and export business profiles"},
	{PermUMKMVerify, "umkm", "Verify or reject business profiles"},
	{PermAssessmentsManage, "assessments", "Manage self-assessment questionnaires"},
	{PermAssessmentsSubmit, "assessments", "Submit self-assessments"},
	{PermConsultationsManage, "consultations", "Manage consultants and every booking"},
	{PermConsultationsBook, "consultations", "Book consultations"},
	{PermConsultationsRespond, "consultations", "Respond to bookings as a consultant"},
	{PermCoursesManage, "courses", "Author courses and lessons"},
	{PermCoursesEnroll, "courses", "Enroll in courses"},
	{PermLettersRead, "letters", "View archived letters"},
	{PermLettersManage, "letters", "Register and edit letters"},
	{PermLettersDispose, "letters", "Dispose letters to other users"},
	{PermListingsManage, "listings", "Manage own marketplace listings"},
	{PermListingsModerate, "listings", "Moderate marketplace listings"},
	{PermFinancingManage, "financing", "Manage financing partners and products"},
	{PermFinancingApply, "financing", "Apply for financing"},
	{PermFinancingReview, "financing", "Review financing applications"},
	{PermAuditRead, "audit", "View and export the audit log"},
}

// AllPermissionCodes returns every system permission code, sorted.
func AllPermissionCodes() []string {
	codes := make([]string, 0, len(SystemPermissions))
	for _, p := range SystemPermissions {
		codes = append(codes, p.Code)
	}
	sort.Strings(codes)
	return codes
}

type Role struct {
	Name        string    `json:"name"`
	Label       string    `json:"label"`
	Description string    `json:"description"`
	Priority    int       `json:"priority"`
	IsSystem    bool      `json:"is_system"`
	Permissions []string  `json:"permissions"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// defaultSystemRoles returns the system roles as first seeded.
func defaultSystemRoles() []Role {
	except := func(excluded ...string) []string {
		var codes []string
	outer:
		for _, code := range AllPermissionCodes() {
			for _, ex := range excluded {
				if code == ex {
					continue outer
				}
			}
			codes = append(codes, code)
		}
		return codes
	}

	role := func(name, label, desc string, perms ...string) Role {
		sort.Strings(perms)
		return Role{
			Name:        name,
			Label:       label,
			Description: desc,
			Priority:    user.SystemRolePriority(name),
			IsSystem:    true,
			Permissions: perms,
		}
	}

	return []Role{
		role(user.RoleSuperAdmin, "Super Admin", "Full access", AllPermissionCodes()...),
		role(user.RoleAdmin, "Admin", "Platform administrator", except(PermRolesManage)...),
		role(user.RoleConsultant, "Consultant", "Business consultant",
			PermUMKMRead, PermConsultationsRespond, PermCoursesEnroll, PermLettersRead),
		role(user.RoleMentor, "Mentor", "Course author and mentor",
			PermUMKMRead, PermCoursesManage, PermCoursesEnroll, PermAssessmentsManage),
		role(user.RolePartner, "Financing Partner", "Financing partner staff",
			PermUMKMRead, PermFinancingReview),
		role(user.RoleUMKM, "UMKM", "Business owner",
			PermAssessmentsSubmit, PermConsultationsBook, PermCoursesEnroll, PermListingsManage, PermFinancingApply),
	}
}

type NewRole struct {
	Name        string   `json:"name" validate:"required,max=50,alphanum_"`
	Label       string   `json:"label" validate:"required,max=100"`
	Description string   `json:"description"`
	Priority    int      `json:"priority" validate:"min=1,max=89"`
	Permissions []string `json:"permissions"`
}

func (nr *NewRole) Validate(ctx context.Context, validate *validator.Validate, svc Service) error {
	nr.Name = core.CleanString(nr.Name, true /* lower */)
	nr.Label = core.CleanString(nr.Label)
	nr.Description = core.CleanString(nr.Description)
	nr.Permissions = core.CleanStrings(nr.Permissions, true /* lower */)

	if err := validate.Struct(nr); err != nil {
		return err
	}
	if _, err := svc.GetRole(ctx, nr.Name); err == nil {
		return core.NewFieldValidationError("name", ErrRoleExists.Error())
	} else if errors.Cause(err) != ErrNotFound {
		return err
	}
	return checkPermissionCodes(nr.Permissions)
}

type UpdateRole struct {
	Label       string   `json:"label" validate:"omitempty,max=100"`
	Description *string  `json:"description"`
	Priority    int      `json:"priority" validate:"omitempty,min=1,max=89"`
	Permissions []string `json:"permissions"`
}

func (ur *UpdateRole) Validate(validate *validator.Validate) error {
	ur.Label = core.CleanString(ur.Label)
	if ur.Permissions != nil {
		ur.Permissions = core.CleanStrings(ur.Permissions, true /* lower */)
	}
	if err := validate.Struct(ur); err != nil {
		return err
	}
	return checkPermissionCodes(ur.Permissions)
}

func checkPermissionCodes(codes []string) error {
	known := AllPermissionCodes()
	for _, code := range codes {
		if i := sort.SearchStrings(known, code); i >= len(known) || known[i] != code {
			return core.NewFieldValidationError("permissions", "unknown permission: "+code)
		}
	}
	return nil
}
