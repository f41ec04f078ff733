package agent

import (
	"testing"

	"github.com/germanamz/sleuth/pkg/chats/content"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type bogusDecision struct{ FinalAnswer }

func TestRoute(t *testing.T) {
	tests := []struct {
		name     string
		decision Decision
		want     Step
		wantErr  bool
	}{
		{name: "final answer", decision: FinalAnswer{Text: "4"}, want: StepTerminate},
		{name: "empty final answer", decision: FinalAnswer{}, want: StepTerminate},
		{name: "action", decision: ActionRequested{Calls: []content.ToolCall{{ID: "1", Name: "lookup"}}}, want: StepAct},
		{name: "action without calls", decision: ActionRequested{}, wantErr: true},
		{name: "nil", decision: nil, wantErr: true},
		{name: "pointer", decision: &FinalAnswer{Text: "x"}, wantErr: true},
		{name: "foreign type", decision: bogusDecision{}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			step, err := Route(tt.decision)
			if tt.wantErr {
				require.ErrorIs(t, err, ErrInvalidDecision)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, step)
		})
	}
}

func TestStepAndStateString(t *testing.T) {
	assert.Equal(t, "act", StepAct.String())
	assert.Equal(t, "terminate", StepTerminate.String())
	assert.Equal(t, "Step(0)", Step(0).String())

	assert.Equal(t, "reasoning", StateReasoning.String())
	assert.Equal(t, "acting", StateActing.String())
	assert.Equal(t, "done", StateDone.String())
}
