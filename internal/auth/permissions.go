package auth

// Role domains.
const (
	DomainConsumer  = "consumer"
	DomainFranchise = "franchise"
	DomainPartner   = "partner"
	DomainInternal  = "internal"
)

// Permission keys.
const (
	PermOrganizationManage    = "organization.manage"
	PermOrganizationMemberAdd = "organization.member.add"
	PermRoleManage            = "role.manage"
	PermUserManage            = "user.manage"
	PermProfileRead           = "profile.read"
	PermProfileUpdate         = "profile.update"
	PermConsentManage         = "consent.manage"
	PermLocationManage        = "location.manage"
	PermSalesInstanceManage   = "sales_instance.manage"
	PermMenuUpdate            = "menu.update"
	PermProductUpdate         = "product.update"
	PermAllergenManage        = "allergen.manage"
)

// Scope names.
const (
	ScopeSelf            = "self"
	ScopeOwnOrganization = "own_organization"
	ScopeAnonymized      = "anonymized"
)

// BuiltinPermissions is the permission catalog ensured at startup.
var BuiltinPermissions = []Permission{
	{Key: PermOrganizationManage, Description: "Create and manage organizations"},
	{Key: PermOrganizationMemberAdd, Description: "Add members to an organization"},
	{Key: PermRoleManage, Description: "Manage roles and their grants"},
	{Key: PermUserManage, Description: "Manage user accounts"},
	{Key: PermProfileRead, Description: "Read user profiles"},
	{Key: PermProfileUpdate, Description: "Update user profiles"},
	{Key: PermConsentManage, Description: "Record and revoke consents"},
	{Key: PermLocationManage, Description: "Manage locations and operating hours"},
	{Key: PermSalesInstanceManage, Description: "Manage sales instances"},
	{Key: PermMenuUpdate, Description: "Manage menus"},
	{Key: PermProductUpdate, Description: "Manage products and allergen links"},
	{Key: PermAllergenManage, Description: "Manage the allergen catalog"},
}

// BuiltinScopes is the scope catalog ensured at startup.
var BuiltinScopes = []PermissionScope{
	{Name: ScopeSelf},
	{Name: ScopeOwnOrganization},
	{Name: ScopeAnonymized},
}

func validDomain(domain string) bool {
	switch domain {
	case DomainConsumer, DomainFranchise, DomainPartner, DomainInternal:
		return true
	}
	return false
}
