package auth

// Grant is one (permission, optional scope) pair held through a role.
type Grant struct {
	Permission string
	Scope      *string
}

// AssignmentGrant is one role assignment flattened with its grants.
type AssignmentGrant struct {
	Role           string
	Domain         string
	OrganizationID *string
	Grants         []Grant
}

// Identity is the snapshot attached to a request after authentication. It is
// built once per request and consulted by every permission check; nothing is
// re-derived per check.
type Identity struct {
	UserID      string
	Email       string
	SessionID   string
	Assignments []AssignmentGrant
}

// Requirement names a permission, optionally narrowed to a scope and an
// organization.
type Requirement struct {
	Permission     string
	Scope          *string
	OrganizationID *string
}

// ScopedIn returns a copy of the requirement bound to an organization.
func (r Requirement) ScopedIn(organizationID string) Requirement {
	r.OrganizationID = &organizationID
	return r
}

// HasPermission reports whether any held assignment satisfies the
// requirement. Per assignment three predicates must all hold:
//
//  1. a requirement that names an organization matches only an assignment
//     with exactly that organization; a global assignment does not satisfy
//     an organization-scoped requirement;
//  2. the role grants the named permission;
//  3. the requirement's scope is unset, or the grant's scope equals it.
func (id Identity) HasPermission(req Requirement) bool {
	if req.Permission == "" {
		return false
	}
	for _, a := range id.Assignments {
		if req.OrganizationID != nil {
			if a.OrganizationID == nil || *a.OrganizationID != *req.OrganizationID {
				continue
			}
		}
		for _, g := range a.Grants {
			if g.Permission != req.Permission {
				continue
			}
			if req.Scope != nil {
				if g.Scope == nil || *g.Scope != *req.Scope {
					continue
				}
			}
			return true
		}
	}
	return false
}

// HasAnyRequirement applies OR semantics over alternative requirements.
func (id Identity) HasAnyRequirement(reqs ...Requirement) bool {
	for _, req := range reqs {
		if id.HasPermission(req) {
			return true
		}
	}
	return false
}

// HasAnyRole reports whether the identity holds any of the named roles,
// ignoring scope and organization entirely.
func (id Identity) HasAnyRole(names ...string) bool {
	for _, a := range id.Assignments {
		for _, n := range names {
			if a.Role == n {
				return true
			}
		}
	}
	return false
}
