package assignment

import (
	"sort"

	"ttracker/domain"
)

// DefaultContinuitySlack is how many in-progress tasks a parent's executor
// may carry above the least-loaded eligible employee and still keep the work.
const DefaultContinuitySlack = 2

// Pair is one proposed assignment.
type Pair struct {
	Task     domain.Task
	Employee domain.Employee
	// Continuity is set when the task went to its parent's executor rather
	// than the round-robin rotation.
	Continuity bool
}

// Engine decides who takes each important task.
//
// Eligible employees are ranked once by (in-progress count, id). The lowest
// count is the floor F. A task goes to its parent's executor when that
// executor is eligible and carries at most F+Slack tasks; otherwise it goes
// to the next employee in the ranking, cycling back to the start. Neither the
// ranking nor F changes while a batch is being assigned: decisions are made
// against the load snapshot taken at invocation.
type Engine struct {
	Slack int
}

// NewEngine returns an engine with the given continuity slack. A negative
// slack falls back to DefaultContinuitySlack.
func NewEngine(slack int) Engine {
	if slack < 0 {
		slack = DefaultContinuitySlack
	}
	return Engine{Slack: slack}
}

// Assign maps every task in important, in order, to an employee from roster.
// snapshot is used to resolve parent tasks. Employees on vacation in roster
// are ignored. The engine keeps no state between calls.
func (e Engine) Assign(important, snapshot []domain.Task, roster []Load) ([]Pair, error) {
	ranked := rank(roster)
	if len(ranked) == 0 {
		return nil, domain.ErrNoEligibleEmployees
	}
	floor := ranked[0].InProgress
	eligible := make(map[string]Load, len(ranked))
	for _, l := range ranked {
		eligible[l.Employee.ID] = l
	}
	parents := index(snapshot)

	pairs := make([]Pair, 0, len(important))
	cursor := 0
	for _, t := range important {
		if p, ok := continuityCandidate(t, parents, eligible); ok && p.InProgress <= floor+e.Slack {
			pairs = append(pairs, Pair{Task: t, Employee: p.Employee, Continuity: true})
			continue
		}
		pairs = append(pairs, Pair{Task: t, Employee: ranked[cursor].Employee})
		cursor++
		if cursor == len(ranked) {
			cursor = 0
		}
	}
	return pairs, nil
}

func continuityCandidate(t domain.Task, parents map[string]domain.Task, eligible map[string]Load) (Load, bool) {
	if t.ParentID == "" {
		return Load{}, false
	}
	parent, ok := parents[t.ParentID]
	if !ok || parent.ExecutorID == "" {
		return Load{}, false
	}
	l, ok := eligible[parent.ExecutorID]
	return l, ok
}

func rank(roster []Load) []Load {
	ranked := make([]Load, 0, len(roster))
	for _, l := range roster {
		if l.Employee.VacationStatus {
			continue
		}
		ranked = append(ranked, l)
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].InProgress != ranked[j].InProgress {
			return ranked[i].InProgress < ranked[j].InProgress
		}
		return ranked[i].Employee.ID < ranked[j].Employee.ID
	})
	return ranked
}
