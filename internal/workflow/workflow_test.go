package workflow

import (
	"errors"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"taskflow/internal/domain"
)

func subtasks(statuses ...string) []domain.Subtask {
	res := make([]domain.Subtask, 0, len(statuses))
	for i, s := range statuses {
		res = append(res, domain.Subtask{ID: string(rune('a' + i)), Name: "st", Status: s})
	}
	return res
}

func TestCardTimerStartKeepsReviewAndDone(t *testing.T) {
	for _, from := range []string{domain.CardReview, domain.CardDone} {
		d, err := Cards.Decide(TimerStart, from, domain.CardInProgress, Facts{})
		require.NoError(t, err)
		assert.Equal(t, Keep, d.Outcome, from)
		assert.False(t, d.Changed())
	}
	d, err := Cards.Decide(TimerStart, domain.CardTodo, domain.CardInProgress, Facts{})
	require.NoError(t, err)
	assert.Equal(t, Apply, d.Outcome)
	assert.True(t, d.Changed())

	d, err = Cards.Decide(TimerStart, domain.CardInProgress, domain.CardInProgress, Facts{})
	require.NoError(t, err)
	assert.False(t, d.Changed())
}

func TestSubtaskTimerStart(t *testing.T) {
	d, err := Subtasks.Decide(TimerStart, domain.SubtaskDone, domain.SubtaskInProgress, Facts{})
	require.NoError(t, err)
	assert.Equal(t, Keep, d.Outcome)

	d, err = Subtasks.Decide(TimerStart, domain.SubtaskTodo, domain.SubtaskInProgress, Facts{})
	require.NoError(t, err)
	assert.True(t, d.Changed())
}

func TestSubtaskManualIsUnrestricted(t *testing.T) {
	d, err := Subtasks.Decide(Manual, domain.SubtaskTodo, domain.SubtaskDone, Facts{})
	require.NoError(t, err)
	assert.Equal(t, Apply, d.Outcome)
}

func TestCardPromotionGuard(t *testing.T) {
	_, err := Cards.Decide(Manual, domain.CardInProgress, domain.CardReview,
		Facts{Subtasks: subtasks(domain.SubtaskDone, domain.SubtaskDone, domain.SubtaskInProgress)})
	var ue UnfinishedSubtasksError
	require.True(t, errors.As(err, &ue))
	require.Len(t, ue.Unfinished, 1)
	assert.Equal(t, domain.SubtaskInProgress, ue.Unfinished[0].Status)
	assert.Equal(t, 3, ue.Total)
	assert.Equal(t, 2, ue.Completed())

	d, err := Cards.Decide(Manual, domain.CardTodo, domain.CardDone, Facts{})
	require.NoError(t, err)
	assert.Equal(t, Apply, d.Outcome)
}

func TestUnknownStatus(t *testing.T) {
	_, err := Cards.Decide(Manual, domain.CardTodo, "archived", Facts{})
	var ue UnknownStatusError
	require.True(t, errors.As(err, &ue))
	assert.Equal(t, "card", ue.Kind)
}

func TestNoRuleIsTransitionError(t *testing.T) {
	_, err := Cards.Decide(TimerStart, domain.CardTodo, domain.CardDone, Facts{})
	var te TransitionError
	require.True(t, errors.As(err, &te))
}

func TestCardGuardProperties(t *testing.T) {
	properties := gopter.NewProperties(gopter.DefaultTestParameters())
	status := gen.OneConstOf(domain.SubtaskTodo, domain.SubtaskInProgress, domain.SubtaskDone)
	target := gen.OneConstOf(domain.CardReview, domain.CardDone)
	from := gen.OneConstOf(domain.CardTodo, domain.CardInProgress, domain.CardReview, domain.CardDone)

	properties.Property("promotion allowed iff every subtask is done", prop.ForAll(
		func(statuses []string, to string, cur string) bool {
			_, err := Cards.Decide(Manual, cur, to, Facts{Subtasks: subtasks(statuses...)})
			allDone := true
			open := 0
			for _, s := range statuses {
				if s != domain.SubtaskDone {
					allDone = false
					open++
				}
			}
			if allDone {
				return err == nil
			}
			var ue UnfinishedSubtasksError
			return errors.As(err, &ue) && len(ue.Unfinished) == open
		},
		gen.SliceOf(status), target, from,
	))

	properties.Property("demotion is never guarded", prop.ForAll(
		func(statuses []string, cur string) bool {
			_, err := Cards.Decide(Manual, cur, domain.CardTodo, Facts{Subtasks: subtasks(statuses...)})
			return err == nil
		},
		gen.SliceOf(status), from,
	))

	properties.TestingRun(t)
}
