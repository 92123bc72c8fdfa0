package auth

import (
	"testing"

	"pharmapos/m/domain"
)

func TestAuthorize(t *testing.T) {
	cases := []struct {
		role   domain.Role
		action Action
		allow  bool
	}{
		{domain.RoleCashier, ActionCheckout, true},
		{domain.RolePharmacyTechnician, ActionCheckout, true},
		{domain.RoleSuperAdmin, ActionCheckout, true},
		{domain.RoleCashier, ActionViewCatalog, true},
		{domain.RoleCashier, ActionManageCatalog, false},
		{domain.RolePharmacyTechnician, ActionManageCatalog, true},
		{domain.RoleSuperAdmin, ActionManageCatalog, true},
		{domain.RoleCashier, ActionViewReports, false},
		{domain.RolePharmacyTechnician, ActionViewReports, true},
		{domain.RolePharmacyTechnician, ActionManageUsers, false},
		{domain.RoleSuperAdmin, ActionManageUsers, true},
		{domain.RoleSuperAdmin, Action("launch_rockets"), false},
	}
	for _, tc := range cases {
		err := Authorize(domain.Principal{ID: 1, Role: tc.role, Active: true}, tc.action)
		if tc.allow && err != nil {
			t.Fatalf("%s/%s: expected allow, got %v", tc.role, tc.action, err)
		}
		if !tc.allow && !domain.IsAuthorization(err) {
			t.Fatalf("%s/%s: expected authorization error, got %v", tc.role, tc.action, err)
		}
	}
}

func TestAuthorizeInactiveDenied(t *testing.T) {
	p := domain.Principal{ID: 1, Role: domain.RoleSuperAdmin, Active: false}
	for _, a := range []Action{ActionCheckout, ActionViewCatalog, ActionManageUsers} {
		if err := Authorize(p, a); !domain.IsAuthorization(err) {
			t.Fatalf("inactive principal allowed %s", a)
		}
	}
}
