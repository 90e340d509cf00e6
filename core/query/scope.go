package query

import (
	sq "github.com/Masterminds/squirrel"
)

// Scope is the visibility boundary of one authenticated caller.
// A zero OrganizationID on a non-superuser scope matches nothing.
type Scope struct {
	UserID         int
	OrganizationID int
	PublisherID    int
	Superuser      bool
}

// Global is the unrestricted scope used by background jobs and the admin CLI.
func Global() Scope {
	return Scope{Superuser: true}
}

// Within narrows the scope to a single organization.
// A superuser may pick any organization; anybody else only their own, otherwise they see nothing.
func (s Scope) Within(orgID int) Scope {
	if orgID <= 0 {
		return s
	}
	if s.Superuser {
		s.Superuser = false
		s.OrganizationID = orgID
		return s
	}
	if s.OrganizationID != orgID {
		s.OrganizationID = 0
	}
	return s
}

// Unrestricted reports whether nothing is filtered for this scope.
func (s Scope) Unrestricted() bool {
	return s.Superuser
}

// ScopeFunc turns a caller's scope into the predicate an entity's rows must satisfy.
type ScopeFunc func(s Scope) sq.Sqlizer

// ByOrganization scopes rows carrying the organization id in col.
func ByOrganization(col string) ScopeFunc {
	return func(s Scope) sq.Sqlizer {
		if s.Unrestricted() {
			return Identity()
		}
		if s.OrganizationID <= 0 {
			return None()
		}
		return sq.Eq{col: s.OrganizationID}
	}
}

// Through scopes rows reaching their organization through the table referenced by col.
func Through(col, table string, inner ScopeFunc) ScopeFunc {
	return func(s Scope) sq.Sqlizer {
		if s.Unrestricted() {
			return Identity()
		}
		pred := inner(s)
		if isNone(pred) {
			return None()
		}
		return sq.Expr(col+" IN (SELECT id FROM "+table+" WHERE ?)", pred)
	}
}

// ByInstitution scopes rows attached to an institution of the caller's organization.
func ByInstitution(col string) ScopeFunc {
	return Through(col, "institutions", ByOrganization("organization_id"))
}

// ByPublisher scopes book-shop rows to the caller's publisher.
// Organization users (buyers) are not matched by it.
func ByPublisher(col string) ScopeFunc {
	return func(s Scope) sq.Sqlizer {
		if s.Unrestricted() {
			return Identity()
		}
		if s.PublisherID <= 0 {
			return None()
		}
		return sq.Eq{col: s.PublisherID}
	}
}

// ByUser scopes rows owned by the caller.
func ByUser(col string) ScopeFunc {
	return func(s Scope) sq.Sqlizer {
		if s.Unrestricted() {
			return Identity()
		}
		if s.UserID <= 0 {
			return None()
		}
		return sq.Eq{col: s.UserID}
	}
}

// AnyOf matches rows visible through at least one of the given scopes.
func AnyOf(fns ...ScopeFunc) ScopeFunc {
	return func(s Scope) sq.Sqlizer {
		if s.Unrestricted() {
			return Identity()
		}
		or := make(sq.Or, 0, len(fns))
		for _, fn := range fns {
			if pred := fn(s); !isNone(pred) {
				or = append(or, pred)
			}
		}
		return or
	}
}

func isNone(p sq.Sqlizer) bool {
	or, ok := p.(sq.Or)
	return ok && len(or) == 0
}

// Public is the scope of globally shared reference tables.
func Public() ScopeFunc {
	return func(Scope) sq.Sqlizer { return Identity() }
}
