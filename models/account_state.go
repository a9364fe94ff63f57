package models

import "fmt"

// AccountState is the single lifecycle tag of a user account.
type AccountState string

const (
	AccountActive      AccountState = "active"
	AccountDeactivated AccountState = "deactivated"
	AccountDeleted     AccountState = "deleted"
)

// AccountEvent drives AccountState transitions.
type AccountEvent string

const (
	EventDeactivate AccountEvent = "deactivate"
	EventReactivate AccountEvent = "reactivate"
	EventDelete     AccountEvent = "delete"
)

// Apply returns the state reached by applying ev to s. Deleted is terminal.
func (s AccountState) Apply(ev AccountEvent) (AccountState, error) {
	switch {
	case s == AccountActive && ev == EventDeactivate:
		return AccountDeactivated, nil
	case s == AccountDeactivated && ev == EventReactivate:
		return AccountActive, nil
	case (s == AccountActive || s == AccountDeactivated) && ev == EventDelete:
		return AccountDeleted, nil
	}
	return s, fmt.Errorf("account is %s, cannot %s", s, ev)
}
