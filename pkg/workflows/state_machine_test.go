package workflows

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

type light string

func newLights() *StateMachine[light] {
	return NewStateMachine("light", Transitions[light]{
		"red":    {"green"},
		"green":  {"yellow", "off"},
		"yellow": {"red"},
		"off":    {},
	})
}

func TestCanTransition(t *testing.T) {
	sm := newLights()
	assert.True(t, sm.CanTransition("red", "green"))
	assert.False(t, sm.CanTransition("red", "yellow"))
	assert.False(t, sm.CanTransition("blue", "red"))
	assert.ElementsMatch(t, []light{"yellow", "off"}, sm.GetAllowedTransitions("green"))
	assert.Empty(t, sm.GetAllowedTransitions("blue"))
}

func TestTransition(t *testing.T) {
	sm := newLights()
	assert.NoError(t, sm.Transition("red", "red"))
	assert.NoError(t, sm.Transition("green", "off"))

	err := sm.Transition("off", "green")
	var te *TransitionError
	assert.True(t, errors.As(err, &te))
	assert.Equal(t, "invalid light status transition from off to green", err.Error())
}

func TestTerminalAndKnown(t *testing.T) {
	sm := newLights()
	assert.True(t, sm.IsTerminal("off"))
	assert.False(t, sm.IsTerminal("red"))
	assert.False(t, sm.IsTerminal("blue"))
	assert.True(t, sm.Known("yellow"))
	assert.False(t, sm.Known("blue"))
}
