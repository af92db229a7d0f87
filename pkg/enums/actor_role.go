package enums

// ActorRole is the role asserted by the identity service in access tokens.
type ActorRole string

const (
	ActorRoleCustomer ActorRole = "customer"
	ActorRoleOperator ActorRole = "operator"
	ActorRoleAdmin    ActorRole = "admin"
)

var actorRoles = []ActorRole{
	ActorRoleCustomer,
	ActorRoleOperator,
	ActorRoleAdmin,
}

// String implements fmt.Stringer.
func (r ActorRole) String() string {
	return string(r)
}

// IsValid reports whether the value is a known ActorRole.
func (r ActorRole) IsValid() bool {
	return valid(actorRoles, r)
}

// IsStaff reports whether the role may run operator actions.
func (r ActorRole) IsStaff() bool {
	return r == ActorRoleOperator || r == ActorRoleAdmin
}

// ParseActorRole converts raw input into an ActorRole.
func ParseActorRole(value string) (ActorRole, error) {
	return parse(actorRoles, "actor role", value)
}
