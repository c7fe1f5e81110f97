package errhandler

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type notFoundErr struct{}

func (notFoundErr) Error() string { return "not found" }

func TestHandler_FirstMatchingRuleWins(t *testing.T) {
	h, err := NewHandler().
		OnType(func(e error) bool { var nf notFoundErr; return errors.As(e, &nf) }).Skip().
		OnAny().Fail().
		Build()
	require.NoError(t, err)

	decision, _ := h.Handle(notFoundErr{}, 1)
	assert.Equal(t, DecisionSkip, decision)

	decision, _ = h.Handle(errors.New("other"), 1)
	assert.Equal(t, DecisionFail, decision)
}

func TestHandler_UnmatchedErrorDefaultsToFail(t *testing.T) {
	h := NewHandler()
	decision, _ := h.Handle(errors.New("anything"), 1)
	assert.Equal(t, DecisionFail, decision)
}

func TestHandler_RetryCarriesMaxRetries(t *testing.T) {
	h, err := NewHandler().OnAny().Retry(3).Build()
	require.NoError(t, err)

	decision, maxRetries := h.Handle(errors.New("x"), 1)
	assert.Equal(t, DecisionRetry, decision)
	assert.Equal(t, 3, maxRetries)
}

func TestHandler_BuildRejectsOnAnyNotLast(t *testing.T) {
	_, err := NewHandler().
		OnAny().Fail().
		OnType(func(error) bool { return true }).Skip().
		Build()
	assert.Error(t, err)
}

func TestHandler_BuildAllowsOnAnyAsOnlyRule(t *testing.T) {
	_, err := NewHandler().OnAny().DeadLetter().Build()
	assert.NoError(t, err)
}
