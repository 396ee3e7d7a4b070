package lifecycle

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidTransition = errors.New("invalid transition")
	ErrTerminalState     = errors.New("entity is in a terminal state")
	ErrUnknownStatus     = errors.New("unknown status")
)

// InvalidTransitionError reports a target state outside the legal successor set.
type InvalidTransitionError struct {
	Entity string
	From   string
	To     string
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("%s: cannot transition %s from %s to %s", ErrInvalidTransition, e.Entity, e.From, e.To)
}

func (e *InvalidTransitionError) Is(target error) bool {
	return target == ErrInvalidTransition
}

// TerminalStateError reports a mutation attempted on a delivered or cancelled entity.
type TerminalStateError struct {
	Entity string
	State  string
}

func (e *TerminalStateError) Error() string {
	return fmt.Sprintf("%s: %s is %s", ErrTerminalState, e.Entity, e.State)
}

func (e *TerminalStateError) Is(target error) bool {
	return target == ErrTerminalState
}

type machine[S ~string] struct {
	entity   string
	next     map[S][]S
	terminal map[S]bool
}

func (m *machine[S]) known(s S) bool {
	if m.terminal[s] {
		return true
	}
	_, ok := m.next[s]
	return ok
}

func (m *machine[S]) check(from, to S) error {
	if !m.known(from) {
		return fmt.Errorf("%w: %s status %q", ErrUnknownStatus, m.entity, from)
	}
	if m.terminal[from] {
		return &TerminalStateError{Entity: m.entity, State: string(from)}
	}
	for _, candidate := range m.next[from] {
		if candidate == to {
			return nil
		}
	}
	return &InvalidTransitionError{Entity: m.entity, From: string(from), To: string(to)}
}

// path returns the shortest chain of states leading from "from" to "to",
// excluding "from" itself.
func (m *machine[S]) path(from, to S) ([]S, error) {
	if err := m.check(from, to); err == nil {
		return []S{to}, nil
	} else if !errors.Is(err, ErrInvalidTransition) {
		return nil, err
	}

	prev := map[S]S{from: from}
	queue := []S{from}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		if cur == to {
			break
		}
		for _, n := range m.next[cur] {
			if _, seen := prev[n]; seen {
				continue
			}
			prev[n] = cur
			queue = append(queue, n)
		}
	}

	if _, ok := prev[to]; !ok || from == to {
		return nil, &InvalidTransitionError{Entity: m.entity, From: string(from), To: string(to)}
	}

	var chain []S
	for s := to; s != from; s = prev[s] {
		chain = append([]S{s}, chain...)
	}
	return chain, nil
}
