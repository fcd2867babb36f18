// Package workflow holds the status machines for records that move through a review
// pipeline. Every legal move is listed in a transition table; anything absent is rejected.
package workflow

import (
	"errors"
	"fmt"
	"sort"
)

// ErrInvalidTransition is the sentinel wrapped by every rejected transition.
var ErrInvalidTransition = errors.New("invalid status transition")

// TransitionError describes a rejected move.
type TransitionError struct {
	Entity string
	From   string
	Action string
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("cannot %s %s while it is %s", e.Action, e.Entity, e.From)
}

// Unwrap lets errors.Is match ErrInvalidTransition.
func (e *TransitionError) Unwrap() error {
	return ErrInvalidTransition
}

type table[S ~string, A ~string] map[S]map[A]S

func (t table[S, A]) next(entity string, from S, action A) (S, error) {
	if moves, ok := t[from]; ok {
		if to, ok := moves[action]; ok {
			return to, nil
		}
	}
	return from, &TransitionError{Entity: entity, From: string(from), Action: string(action)}
}

func (t table[S, A]) sources(action A) []S {
	var out []S
	for from, moves := range t {
		if _, ok := moves[action]; ok {
			out = append(out, from)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
