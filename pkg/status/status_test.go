package status

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsValid(t *testing.T) {
	for _, s := range []Status{Working, Complete, Intervention} {
		assert.True(t, IsValid(s))
	}
	assert.False(t, IsValid("done"))
	assert.False(t, IsValid(""))
}

func TestInitialStatus(t *testing.T) {
	assert.Equal(t, Working, Initial)
}

func TestLegalTransitions(t *testing.T) {
	legal := [][2]Status{
		{Working, Working},
		{Working, Complete},
		{Working, Intervention},
		{Intervention, Working},
		{Complete, Working},
	}
	for _, tr := range legal {
		assert.True(t, CanTransition(tr[0], tr[1]), "%s -> %s should be legal", tr[0], tr[1])
		assert.NoError(t, Validate(tr[0], tr[1]))
	}
}

func TestIllegalTransitions(t *testing.T) {
	illegal := [][2]Status{
		{Complete, Complete},
		{Complete, Intervention},
		{Intervention, Complete},
		{Intervention, Intervention},
	}
	for _, tr := range illegal {
		assert.False(t, CanTransition(tr[0], tr[1]), "%s -> %s should be illegal", tr[0], tr[1])
		assert.Error(t, Validate(tr[0], tr[1]))
	}
}

func TestValidateRejectsUnknownStates(t *testing.T) {
	assert.Error(t, Validate("queued", Working))
	assert.Error(t, Validate(Working, "queued"))
}
