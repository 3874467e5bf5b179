// Package assignment selects an assignee for new tasks.
// Selection is a pure function over a snapshot of operators and their load.
package assignment

import (
	"sort"

	"github.com/example/dispatch/internal/models"
)

// Candidate is an operator considered for assignment.
type Candidate struct {
	OperatorID  string
	CountryCode string
	Active      bool
	// TaskTypes restricts the operator to certain task types. Empty means any.
	TaskTypes []models.TaskType
	// OpenTasks is the number of active tasks currently assigned to the operator.
	OpenTasks int
}

// Request describes the task needing an assignee.
type Request struct {
	TaskType    models.TaskType
	CountryCode string
}

// Eligible reports whether the candidate may receive the task.
func (c Candidate) Eligible(req Request) bool {
	if !c.Active || c.OperatorID == "" {
		return false
	}
	if c.CountryCode != req.CountryCode {
		return false
	}
	if len(c.TaskTypes) == 0 {
		return true
	}
	for _, t := range c.TaskTypes {
		if t == req.TaskType {
			return true
		}
	}
	return false
}

// LeastLoaded returns the eligible operator with the fewest open tasks.
// Ties break on operator id so the choice is deterministic. ok is false when
// nobody is eligible.
func LeastLoaded(req Request, candidates []Candidate) (operatorID string, ok bool) {
	eligible := make([]Candidate, 0, len(candidates))
	for _, c := range candidates {
		if c.Eligible(req) {
			eligible = append(eligible, c)
		}
	}
	if len(eligible) == 0 {
		return "", false
	}

	sort.Slice(eligible, func(i, j int) bool {
		if eligible[i].OpenTasks != eligible[j].OpenTasks {
			return eligible[i].OpenTasks < eligible[j].OpenTasks
		}
		return eligible[i].OperatorID < eligible[j].OperatorID
	})
	return eligible[0].OperatorID, true
}
