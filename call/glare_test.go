package call

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/opd-ai/callcore/signaling"
)

func TestResolveGlareIsDeterministic(t *testing.T) {
	tests := []struct {
		name   string
		a, b   signaling.CallID
		winner signaling.CallID
	}{
		{"higher first", 200, 100, 200},
		{"higher second", 100, 200, 200},
		{"high bit set compares unsigned", signaling.CallID(math.MaxUint64), 1, signaling.CallID(math.MaxUint64)},
		{"adjacent", 0x8000000000000000, 0x7fffffffffffffff, 0x8000000000000000},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for i := 0; i < 10; i++ {
				assert.Equal(t, tt.winner, ResolveGlare(tt.a, tt.b))
				assert.Equal(t, tt.winner, ResolveGlare(tt.b, tt.a), "order of arguments must not matter")
			}
		})
	}
}

func TestStateTransitions(t *testing.T) {
	assert.True(t, StateIdle.CanTransitionTo(StateProceeding))
	assert.True(t, StateProceeding.CanTransitionTo(StateLocalRinging))
	assert.True(t, StateConnected.CanTransitionTo(StateReconnecting))
	assert.True(t, StateReconnecting.CanTransitionTo(StateConnected))
	assert.False(t, StateProceeding.CanTransitionTo(StateConnected))
	assert.False(t, StateEnded.CanTransitionTo(StateIdle))
	assert.True(t, StateEnded.IsTerminal())
	assert.True(t, StateReconnecting.IsConnected())
	assert.Equal(t, "RemoteRinging", StateRemoteRinging.String())
}
