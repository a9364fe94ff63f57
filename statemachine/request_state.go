package statemachine

import (
	"strings"

	"heartbridge-api/apperror"
	"heartbridge-api/models"
)

// Operation names a workflow step that may change a request's status
type Operation string

const (
	OpCreate   Operation = "create"
	OpApprove  Operation = "approve"
	OpReject   Operation = "reject"
	OpAssign   Operation = "assign"
	OpStart    Operation = "start"
	OpComplete Operation = "complete"
	OpCancel   Operation = "cancel"
	OpRate     Operation = "rate"
)

// Transition defines a valid state change and who can perform it
type Transition struct {
	From  models.RequestStatus `json:"from"`
	Op    Operation            `json:"operation"`
	To    models.RequestStatus `json:"to"`
	Actor models.UserRole      `json:"actor"`
}

// validTransitions is the authoritative state machine definition
var validTransitions = []Transition{
	// Elderly user submits a request
	{From: "", Op: OpCreate, To: models.StatusPending, Actor: models.RoleElderly},
	// Admin reviews pending requests
	{From: models.StatusPending, Op: OpApprove, To: models.StatusApproved, Actor: models.RoleAdmin},
	{From: models.StatusPending, Op: OpReject, To: models.StatusRejected, Actor: models.RoleAdmin},
	// Volunteer accepts, starts and completes
	{From: models.StatusApproved, Op: OpAssign, To: models.StatusAssigned, Actor: models.RoleVolunteer},
	{From: models.StatusAssigned, Op: OpStart, To: models.StatusInProgress, Actor: models.RoleVolunteer},
	{From: models.StatusAssigned, Op: OpComplete, To: models.StatusCompleted, Actor: models.RoleVolunteer},
	{From: models.StatusInProgress, Op: OpComplete, To: models.StatusCompleted, Actor: models.RoleVolunteer},
	// Requester, or the system on account deletion, can cancel until work starts
	{From: models.StatusPending, Op: OpCancel, To: models.StatusCancelled, Actor: models.RoleElderly},
	{From: models.StatusPending, Op: OpCancel, To: models.StatusCancelled, Actor: models.RoleSystem},
	{From: models.StatusApproved, Op: OpCancel, To: models.StatusCancelled, Actor: models.RoleElderly},
	{From: models.StatusApproved, Op: OpCancel, To: models.StatusCancelled, Actor: models.RoleSystem},
	{From: models.StatusAssigned, Op: OpCancel, To: models.StatusCancelled, Actor: models.RoleElderly},
	{From: models.StatusAssigned, Op: OpCancel, To: models.StatusCancelled, Actor: models.RoleSystem},
	// Requester rates a completed request; status is unchanged
	{From: models.StatusCompleted, Op: OpRate, To: models.StatusCompleted, Actor: models.RoleElderly},
}

// transitionKey is used to look up valid transitions quickly
type transitionKey struct {
	From  models.RequestStatus
	Op    Operation
	Actor models.UserRole
}

// Build a lookup map for O(1) validation
var transitionMap = func() map[transitionKey]models.RequestStatus {
	m := make(map[transitionKey]models.RequestStatus)
	for _, t := range validTransitions {
		m[transitionKey{t.From, t.Op, t.Actor}] = t.To
	}
	return m
}()

// ValidOperationsFrom returns all operations allowed from a given status, for any actor
func ValidOperationsFrom(status models.RequestStatus) []Operation {
	var ops []Operation
	seen := map[Operation]bool{}
	for _, t := range validTransitions {
		if t.From == status && !seen[t.Op] {
			ops = append(ops, t.Op)
			seen[t.Op] = true
		}
	}
	return ops
}

// Permits reports whether op is valid from status for some actor.
func Permits(status models.RequestStatus, op Operation) bool {
	for _, t := range validTransitions {
		if t.From == status && t.Op == op {
			return true
		}
	}
	return false
}

// Next returns the status reached when actor applies op to a request in status from.
// A status/operation pair that is not in the table yields an InvalidTransition error;
// a valid pair attempted by the wrong role yields Forbidden.
func Next(from models.RequestStatus, op Operation, actor models.UserRole) (models.RequestStatus, error) {
	if to, ok := transitionMap[transitionKey{From: from, Op: op, Actor: actor}]; ok {
		return to, nil
	}
	if Permits(from, op) {
		return from, apperror.Forbidden("role '" + string(actor) + "' cannot " + string(op) + " a " + displayStatus(from) + " request")
	}
	return from, InvalidTransition(from, op)
}

// InvalidTransition builds the error for an operation that is illegal in the current status.
func InvalidTransition(from models.RequestStatus, op Operation) *apperror.Error {
	e := apperror.New(apperror.KindInvalidTransition, "invalid_transition",
		"invalid transition: cannot "+string(op)+" a "+displayStatus(from)+" request. "+
			"Valid operations from "+displayStatus(from)+" are: "+describeValidFrom(from))
	e.Details = map[string]any{
		"current_status":   from,
		"operation":        op,
		"valid_operations": ValidOperationsFrom(from),
	}
	return e
}

func displayStatus(s models.RequestStatus) string {
	if s == "" {
		return "new"
	}
	return string(s)
}

func describeValidFrom(status models.RequestStatus) string {
	ops := ValidOperationsFrom(status)
	if len(ops) == 0 {
		return "none (terminal state)"
	}
	names := make([]string, len(ops))
	for i, op := range ops {
		names[i] = string(op)
	}
	return strings.Join(names, ", ")
}

// GetAllTransitions returns the full state machine for documentation
func GetAllTransitions() []Transition {
	return validTransitions
}
