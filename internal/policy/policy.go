// Package policy decides which table operations a caller may perform and
// whether those operations are limited to rows the caller owns. It mirrors the
// row-level security installed by the Postgres migration so that every
// database driver gets the same behaviour.
package policy

import "fmt"

// Role is the database role a request runs as.
type Role string

const (
	RoleAnon          Role = "anon"
	RoleAuthenticated Role = "authenticated"
	RoleService       Role = "service_role"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	switch r {
	case RoleAnon, RoleAuthenticated, RoleService:
		return true
	}
	return false
}

// Operation is a row operation on a table.
type Operation string

const (
	Select Operation = "select"
	Insert Operation = "insert"
	Update Operation = "update"
	Delete Operation = "delete"
)

var allOps = []Operation{Select, Insert, Update, Delete}

// Principal is the caller as resolved from its API key or access token.
type Principal struct {
	Role    Role
	UserID  string
	IsAdmin bool
}

// Scope says how far a permitted operation reaches.
type Scope int

const (
	Denied Scope = iota
	Own          // rows whose owner column equals the caller's user id
	All
)

func (s Scope) String() string {
	switch s {
	case Own:
		return "own"
	case All:
		return "all"
	}
	return "denied"
}

const (
	ModeStrict = "strict"
	ModeOpen   = "open"
)

// grantee distinguishes admins from other authenticated users.
type grantee string

const (
	anon    grantee = "anon"
	user    grantee = "user"
	admin   grantee = "admin"
	service grantee = "service"
)

type rules map[grantee]map[string]map[Operation]Scope

// Policy is an immutable rule set.
type Policy struct {
	mode  string
	rules rules
}

// ownerColumns names, per table, the column compared with the caller's id
// for Own-scoped operations.
var ownerColumns = map[string]string{
	"users":      "id",
	"cart_items": "user_id",
}

// OwnerColumn returns the owner column of table, or "" if rows of the table
// have no owner.
func OwnerColumn(table string) string { return ownerColumns[table] }

// Tables lists the tables the policy knows about.
func Tables() []string {
	return []string{"users", "parts", "cart_items", "verification_codes"}
}

// New returns the policy for mode.
func New(mode string) (*Policy, error) {
	switch mode {
	case ModeStrict:
		return Strict(), nil
	case ModeOpen:
		return Open(), nil
	}
	return nil, fmt.Errorf("policy: unknown mode %q", mode)
}

func ops(scope Scope, list ...Operation) map[Operation]Scope {
	m := make(map[Operation]Scope, len(list))
	for _, op := range list {
		m[op] = scope
	}
	return m
}

// Strict only lets callers touch what they own. Parts are public to read;
// verification codes are never deletable.
func Strict() *Policy {
	return &Policy{
		mode: ModeStrict,
		rules: rules{
			anon: {
				"parts": ops(All, Select),
			},
			user: {
				"parts":      ops(All, Select),
				"users":      ops(Own, Select, Update),
				"cart_items": ops(Own, allOps...),
			},
			admin: {
				"parts":              ops(All, allOps...),
				"users":              ops(All, allOps...),
				"cart_items":         ops(All, allOps...),
				"verification_codes": ops(All, Select),
			},
			service: {
				"parts":              ops(All, allOps...),
				"users":              ops(All, allOps...),
				"cart_items":         ops(All, allOps...),
				"verification_codes": ops(All, Select, Insert, Update),
			},
		},
	}
}

// Open reproduces the legacy blanket grants: every caller may do anything on
// every table except delete verification codes. Any holder of the public key
// can read and modify every user's rows.
func Open() *Policy {
	blanket := map[string]map[Operation]Scope{
		"parts":              ops(All, allOps...),
		"users":              ops(All, allOps...),
		"cart_items":         ops(All, allOps...),
		"verification_codes": ops(All, Select, Insert, Update),
	}
	return &Policy{
		mode:  ModeOpen,
		rules: rules{anon: blanket, user: blanket, admin: blanket, service: blanket},
	}
}

// Mode returns the name of the rule set.
func (p *Policy) Mode() string { return p.mode }

// Decide returns the scope of op on table for the principal.
func (p *Policy) Decide(pr Principal, table string, op Operation) Scope {
	g, ok := granteeOf(pr)
	if !ok {
		return Denied
	}
	scope := p.rules[g][table][op]
	if scope == Own && (pr.UserID == "" || OwnerColumn(table) == "") {
		return Denied
	}
	return scope
}

func granteeOf(pr Principal) (grantee, bool) {
	switch pr.Role {
	case RoleAnon:
		return anon, true
	case RoleService:
		return service, true
	case RoleAuthenticated:
		if pr.IsAdmin {
			return admin, true
		}
		return user, true
	}
	return "", false
}
