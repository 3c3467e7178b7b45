package models

// Actor is the authenticated caller of one request. Handlers build it from token claims and pass
// it explicitly to services.
type Actor struct {
	ID        string
	Role      UserRole
	IP        string
	UserAgent string
}

// IsAdmin reports whether the actor holds the admin role.
func (a Actor) IsAdmin() bool {
	return a.Role == RoleAdmin
}

// CanActOnLead reports whether the actor may read or modify lead: admins always, staff only when
// they are the assignee.
func (a Actor) CanActOnLead(lead *Lead) bool {
	if a.IsAdmin() {
		return true
	}
	return lead.IsAssignedTo(a.ID)
}
