// Package errhandler implements the per-item error-handler decision loop:
// a fluent rule builder (OnType/OnAny -> Fail/Skip/DeadLetter/Retry) and
// the loop that drives one item's execution against those rules.
package errhandler

import (
	"context"
	"fmt"

	"github.com/google/uuid"
)

// Decision is the outcome of evaluating an item's error against a
// Handler's rules.
type Decision string

const (
	DecisionFail       Decision = "fail"
	DecisionSkip       Decision = "skip"
	DecisionDeadLetter Decision = "dead-letter"
	DecisionRetry      Decision = "retry"
)

// Predicate classifies an error for a rule's OnType match.
type Predicate func(err error) bool

type decisionFactory func(attempt int) Decision

type rule struct {
	predicate  Predicate
	decide     decisionFactory
	maxRetries int
	isAny      bool
}

// Handler holds an ordered list of rules. Rules are evaluated in
// registration order; the first whose predicate matches wins. An error
// matching no rule behaves as Fail.
type Handler struct {
	rules []rule
}

func NewHandler() *Handler { return &Handler{} }

// OnType begins a rule matching errors for which predicate returns true.
func (h *Handler) OnType(predicate Predicate) *RuleBuilder {
	return &RuleBuilder{handler: h, predicate: predicate}
}

// OnAny begins a catch-all rule. Per Build's validation, it must be the
// last rule registered.
func (h *Handler) OnAny() *RuleBuilder {
	return &RuleBuilder{handler: h, predicate: func(error) bool { return true }, isAny: true}
}

// Build validates rule ordering (OnAny must be last, since any rule
// registered after it would be unreachable) and returns the handler.
func (h *Handler) Build() (*Handler, error) {
	for i, r := range h.rules {
		if r.isAny && i != len(h.rules)-1 {
			return nil, fmt.Errorf("error handler: OnAny() catch-all rule (rule %d of %d) must be the last rule; the rules after it are unreachable", i+1, len(h.rules))
		}
	}
	return h, nil
}

// Handle evaluates err (from the given 1-based attempt) against the
// handler's rules, returning the decision and, for DecisionRetry, the
// matching rule's configured max retries.
func (h *Handler) Handle(err error, attempt int) (Decision, int) {
	for _, r := range h.rules {
		if r.predicate(err) {
			return r.decide(attempt), r.maxRetries
		}
	}
	return DecisionFail, 0
}

// RuleBuilder accumulates the decision for one in-progress rule.
type RuleBuilder struct {
	handler   *Handler
	predicate Predicate
	isAny     bool
}

func (b *RuleBuilder) Fail() *Handler {
	return b.add(func(int) Decision { return DecisionFail }, 0)
}

func (b *RuleBuilder) Skip() *Handler {
	return b.add(func(int) Decision { return DecisionSkip }, 0)
}

func (b *RuleBuilder) DeadLetter() *Handler {
	return b.add(func(int) Decision { return DecisionDeadLetter }, 0)
}

func (b *RuleBuilder) Retry(maxRetries int) *Handler {
	return b.add(func(int) Decision { return DecisionRetry }, maxRetries)
}

func (b *RuleBuilder) add(f decisionFactory, maxRetries int) *Handler {
	b.handler.rules = append(b.handler.rules, rule{
		predicate:  b.predicate,
		decide:     f,
		maxRetries: maxRetries,
		isAny:      b.isAny,
	})
	return b.handler
}

// DeadLetterRecord is what a DeadLetterSink receives for an item the
// handler gave up on.
type DeadLetterRecord struct {
	ID      uuid.UUID
	NodeID  string
	Item    any
	Err     error
	Attempt int
}

// DeadLetterSink accepts items the error handler routed to dead-letter.
type DeadLetterSink interface {
	Handle(ctx context.Context, record DeadLetterRecord) error
}
