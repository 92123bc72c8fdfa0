package auth

import "pharmapos/m/domain"

// Action is something a principal may be allowed to do.
type Action string

const (
	ActionCheckout      Action = "checkout"
	ActionViewCatalog   Action = "view_catalog"
	ActionManageCatalog Action = "manage_catalog"
	ActionViewReports   Action = "view_reports"
	ActionManageUsers   Action = "manage_users"
)

var policy = map[Action][]domain.Role{
	ActionCheckout:      {domain.RoleSuperAdmin, domain.RolePharmacyTechnician, domain.RoleCashier},
	ActionViewCatalog:   {domain.RoleSuperAdmin, domain.RolePharmacyTechnician, domain.RoleCashier},
	ActionManageCatalog: {domain.RoleSuperAdmin, domain.RolePharmacyTechnician},
	ActionViewReports:   {domain.RoleSuperAdmin, domain.RolePharmacyTechnician},
	ActionManageUsers:   {domain.RoleSuperAdmin},
}

// Authorize is the single role/action decision point. Inactive principals and
// unknown actions are always denied.
func Authorize(p domain.Principal, action Action) error {
	if !p.Active {
		return &domain.AuthorizationError{Role: p.Role, Action: string(action), Reason: "account is inactive"}
	}
	for _, role := range policy[action] {
		if p.Role == role {
			return nil
		}
	}
	return &domain.AuthorizationError{Role: p.Role, Action: string(action)}
}
