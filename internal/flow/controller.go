// Package flow drives an ordered multi-step form where every step gates its
// own forward navigation. The controller never inspects field contents.
package flow

import (
	"fmt"
	"maps"
)

// Values accumulates field values across all steps of one flow.
type Values map[string]string

func (v Values) clone() Values {
	out := make(Values, len(v))
	maps.Copy(out, v)
	return out
}

// Step is anything that can judge whether the user may move past it.
type Step interface {
	Valid(values Values) bool
}

// BackHider is implemented by steps that forbid navigating backwards while active.
type BackHider interface {
	HidesBack() bool
}

type Outcome int

const (
	OutcomeBlocked Outcome = iota
	OutcomeMoved
	OutcomeCompleted
)

func (o Outcome) String() string {
	switch o {
	case OutcomeBlocked:
		return "blocked"
	case OutcomeMoved:
		return "moved"
	case OutcomeCompleted:
		return "completed"
	}
	return fmt.Sprintf("Outcome(%d)", int(o))
}

// CompleteFunc runs when the user advances past the last step. Its result is
// handed back from Advance so callers can schedule the finishing work.
type CompleteFunc[T any] func(values Values) T

type Controller[T any] struct {
	steps    []Step
	index    int
	values   Values
	disabled bool
	complete CompleteFunc[T]

	pending bool
	done    bool
}

func New[T any](steps []Step, initial Values, complete CompleteFunc[T]) *Controller[T] {
	if len(steps) == 0 {
		panic("flow: at least one step is required")
	}
	c := &Controller[T]{
		steps:    steps,
		values:   Values{},
		complete: complete,
	}
	c.UpdateValues(initial)
	return c
}

// Advance moves to the next step, or on the last step invokes the completion
// handler once. Nothing happens while the current step reports itself invalid
// or a completion is still pending.
func (c *Controller[T]) Advance() (T, Outcome) {
	var zero T
	if c.disabled || c.pending || c.done {
		return zero, OutcomeBlocked
	}

	if c.index < len(c.steps)-1 {
		c.index++
		c.Refresh()
		return zero, OutcomeMoved
	}

	if c.complete == nil {
		panic("flow: advanced past the last step without a completion handler")
	}
	c.pending = true
	return c.complete(c.values.clone()), OutcomeCompleted
}

// Retreat moves back one step unless the active step hides back navigation.
func (c *Controller[T]) Retreat() bool {
	if c.pending || c.done || c.index == 0 || !c.CanRetreat() {
		return false
	}
	c.index--
	c.Refresh()
	return true
}

func (c *Controller[T]) CanRetreat() bool {
	if h, ok := c.steps[c.index].(BackHider); ok && h.HidesBack() {
		return false
	}
	return c.index > 0
}

// JumpTo moves directly to step i regardless of gating.
func (c *Controller[T]) JumpTo(i int) {
	if i < 0 || i >= len(c.steps) {
		panic(fmt.Sprintf("flow: step %d out of range [0,%d)", i, len(c.steps)))
	}
	if c.pending || c.done {
		return
	}
	c.index = i
	c.Refresh()
}

// UpdateValues merges partial into the accumulated values.
func (c *Controller[T]) UpdateValues(partial Values) {
	maps.Copy(c.values, partial)
	c.Refresh()
}

// SetAdvanceDisabled records the current step's own validity report.
func (c *Controller[T]) SetAdvanceDisabled(disabled bool) {
	c.disabled = disabled
}

// Refresh re-derives the gate from the current step.
func (c *Controller[T]) Refresh() {
	c.disabled = !c.steps[c.index].Valid(c.values)
}

// Settle resolves a pending completion. On failure the flow stays on the
// terminal step with every value intact so the user can retry.
func (c *Controller[T]) Settle(err error) {
	if !c.pending {
		return
	}
	c.pending = false
	if err == nil {
		c.done = true
	}
}

func (c *Controller[T]) Index() int { return c.index }
func (c *Controller[T]) Len() int { return len(c.steps) }
func (c *Controller[T]) Current() Step { return c.steps[c.index] }
func (c *Controller[T]) AdvanceDisabled() bool { return c.disabled }
func (c *Controller[T]) Pending() bool { return c.pending }
func (c *Controller[T]) Done() bool { return c.done }
func (c *Controller[T]) IsLast() bool { return c.index == len(c.steps)-1 }
func (c *Controller[T]) Values() Values { return c.values.clone() }
func (c *Controller[T]) Value(key string) string { return c.values[key] }
