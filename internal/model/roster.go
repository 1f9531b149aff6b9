package model

import (
	"errors"
	"fmt"
)

var (
	ErrTooManyAssignees = errors.New("too many assignees")
	ErrUnknownUser      = errors.New("unknown user")
)

// DefaultUsers is the roster used when the config does not list one
var DefaultUsers = []string{"Ricky", "Zimba", "Drez", "Moe", "Unzugewiesen"}

// Roster is the fixed list of people tasks can be assigned to
type Roster []string

// Contains returns true if user is on the roster
func (r Roster) Contains(user string) bool {
	for _, u := range r {
		if u == user {
			return true
		}
	}
	return false
}

// Validate checks an assignee list against the roster. Duplicates are allowed.
func (r Roster) Validate(assignees []string) error {
	if len(assignees) > MaxAssignees {
		return fmt.Errorf("%w: %d (max %d)", ErrTooManyAssignees, len(assignees), MaxAssignees)
	}
	for _, a := range assignees {
		if !r.Contains(a) {
			return fmt.Errorf("%w: %q", ErrUnknownUser, a)
		}
	}
	return nil
}

// DefaultAssignees returns the assignee list an edited task should get:
// the current user when nobody is assigned and the user is on the roster.
func (r Roster) DefaultAssignees(current []string, currentUser string) []string {
	if len(current) > 0 || currentUser == "" || !r.Contains(currentUser) {
		return current
	}
	return []string{currentUser}
}
