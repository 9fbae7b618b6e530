// README: Shared identifiers and actor roles used across modules.
package types

import "github.com/google/uuid"

type ID string

func NewID() ID {
	return ID(uuid.NewString())
}

func (id ID) String() string {
	return string(id)
}

type Role string

const (
	RoleUser     Role = "user"
	RoleOperator Role = "operator"
	RoleAgent    Role = "agent"
)

// Actor identifies who is performing an operation.
type Actor struct {
	ID   ID
	Role Role
}

func (a Actor) IsOperator() bool {
	return a.Role == RoleOperator
}
