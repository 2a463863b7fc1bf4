package types

import "fmt"

// TurnRole identifies which side of the conversation produced a turn
type TurnRole string

const (
	TurnRoleUser      TurnRole = "user"
	TurnRoleAssistant TurnRole = "assistant"
)

// IsValid checks if the turn role is valid
func (r TurnRole) IsValid() bool {
	switch r {
	case TurnRoleUser, TurnRoleAssistant:
		return true
	default:
		return false
	}
}

// String returns the string representation of the turn role
func (r TurnRole) String() string {
	return string(r)
}

// ParseTurnRole parses a string into a TurnRole
func ParseTurnRole(s string) (TurnRole, error) {
	role := TurnRole(s)
	if !role.IsValid() {
		return "", fmt.Errorf("invalid turn role: %s", s)
	}
	return role, nil
}
