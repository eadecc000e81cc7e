// Package challenge arbitrates the "where is the word?" recovery phrase check.
//
// An Engine knows the length of the phrase and the hidden target position,
// never the words themselves. Callers render the phrase and feed clicks in.
package challenge

import (
	"fmt"
	"math/rand/v2"

	"circles/internal/wallet"
)

// DefaultBudget is the number of wrong picks allowed per phrase.
const DefaultBudget = 3

// Phase is the lasting state of an engine between clicks.
type Phase int

const (
	PhaseObfuscated Phase = iota
	PhaseCorrect
	PhaseExhausted
)

func (p Phase) String() string {
	switch p {
	case PhaseObfuscated:
		return "obfuscated"
	case PhaseCorrect:
		return "correct"
	case PhaseExhausted:
		return "exhausted"
	}
	return fmt.Sprintf("Phase(%d)", int(p))
}

// Outcome is the transient result of a single click.
type Outcome int

const (
	OutcomeIgnored Outcome = iota
	OutcomeCorrect
	OutcomeWrong
)

// State is a snapshot of an engine.
type State struct {
	TargetIndex       int
	AttemptsRemaining int
	LastClicked       int
	Correct           bool
}

// PhraseSource produces a freshly derived phrase when the user asks for new words.
type PhraseSource interface {
	Renew() (wallet.Phrase, error)
}

// Engine tracks the target position and attempt budget for one challenge.
type Engine struct {
	budget int
	rng    *rand.Rand

	size        int
	target      int
	remaining   int
	lastClicked int
	correct     bool
}

// Option configures an Engine.
type Option func(*Engine)

// WithBudget overrides DefaultBudget. Non-positive values are ignored.
func WithBudget(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.budget = n
		}
	}
}

// WithRand draws targets from r instead of the global source.
func WithRand(r *rand.Rand) Option {
	return func(e *Engine) {
		e.rng = r
	}
}

// New returns an engine initialized for a phrase of size words.
func New(size int, opts ...Option) *Engine {
	e := &Engine{budget: DefaultBudget}
	for _, opt := range opts {
		opt(e)
	}
	e.Reset(size)
	return e
}

// Reset picks a new target uniformly in [0,size) and restores the full budget.
func (e *Engine) Reset(size int) {
	if size <= 0 {
		panic(fmt.Sprintf("challenge: phrase size must be positive, got %d", size))
	}
	e.size = size
	e.target = e.intN(size)
	e.remaining = e.budget
	e.lastClicked = -1
	e.correct = false
}

func (e *Engine) intN(n int) int {
	if e.rng != nil {
		return e.rng.IntN(n)
	}
	return rand.IntN(n)
}

// Click records a selection of the word at index.
func (e *Engine) Click(index int) Outcome {
	if index < 0 || index >= e.size {
		panic(fmt.Sprintf("challenge: click index %d outside phrase of %d words", index, e.size))
	}
	if e.correct || e.remaining <= 0 {
		return OutcomeIgnored
	}

	e.lastClicked = index
	if index == e.target {
		e.correct = true
		return OutcomeCorrect
	}

	e.remaining--
	return OutcomeWrong
}

// RequestNewPhrase derives a new phrase from src and re-initializes against it.
// On error the engine is left untouched.
func (e *Engine) RequestNewPhrase(src PhraseSource) (wallet.Phrase, error) {
	phrase, err := src.Renew()
	if err != nil {
		return nil, fmt.Errorf("failed to renew phrase: %w", err)
	}
	e.Reset(phrase.Len())
	return phrase, nil
}

func (e *Engine) CanAdvance() bool {
	return e.correct
}

func (e *Engine) Phase() Phase {
	switch {
	case e.correct:
		return PhaseCorrect
	case e.remaining <= 0:
		return PhaseExhausted
	}
	return PhaseObfuscated
}

func (e *Engine) State() State {
	return State{
		TargetIndex:       e.target,
		AttemptsRemaining: e.remaining,
		LastClicked:       e.lastClicked,
		Correct:           e.correct,
	}
}

func (e *Engine) Target() int { return e.target }
func (e *Engine) Size() int { return e.size }
func (e *Engine) AttemptsRemaining() int { return e.remaining }

// Clickable reports whether a hidden word still accepts clicks.
func (e *Engine) Clickable(index int) bool {
	return index >= 0 && index < e.size && !e.correct && e.remaining > 0
}

// Revealed reports whether the word at index should be shown in the clear.
func (e *Engine) Revealed(index int) bool {
	return e.correct && index == e.target
}
