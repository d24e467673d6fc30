package enums

import "fmt"

// ConnectionRequestState maps to the connection_request_state enum in Postgres.
type ConnectionRequestState string

const (
	ConnectionRequestPending  ConnectionRequestState = "PENDING"
	ConnectionRequestAccepted ConnectionRequestState = "ACCEPTED"
	ConnectionRequestRejected ConnectionRequestState = "REJECTED"
)

var validConnectionRequestStates = []ConnectionRequestState{
	ConnectionRequestPending,
	ConnectionRequestAccepted,
	ConnectionRequestRejected,
}

func (s ConnectionRequestState) IsValid() bool {
	for _, candidate := range validConnectionRequestStates {
		if candidate == s {
			return true
		}
	}
	return false
}

// IsTerminal reports whether no further transition is allowed.
func (s ConnectionRequestState) IsTerminal() bool {
	return s == ConnectionRequestAccepted || s == ConnectionRequestRejected
}

func ParseConnectionRequestState(value string) (ConnectionRequestState, error) {
	for _, candidate := range validConnectionRequestStates {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid connection request state %q", value)
}
