package balance

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCancelActiveToleratesNoActiveTask(t *testing.T) {
	inv := newFakeInvoker(t)
	client := newTestClient(t, inv, "pw")
	inv.respond("CancelCurrentTask", parseNode(t,
		"<Result><Outcome>Error</Outcome><ErrorMessage>There is no active task to cancel</ErrorMessage></Result>"))

	// Best effort: the refusal is logged, never raised.
	client.Cancel.CancelActive(context.Background())
	assert.Len(t, inv.callsTo("CancelCurrentTask"), 1)
}

func TestCancelAllClearsTrackedCommands(t *testing.T) {
	inv := newFakeInvoker(t)
	client := newTestClient(t, inv, "pw")
	inv.respond("Probe", successNode(t, "<CommandId>11</CommandId>"))
	inv.respond("Cancel", parseNode(t, "<Result><Outcome>Error</Outcome></Result>"))

	_, err := client.Gateway.Invoke(context.Background(), InvokeSpec{
		Service:     basicService,
		Method:      "Probe",
		WithSession: true,
	})
	require.NoError(t, err)
	require.Equal(t, []int64{11}, client.Gateway.ActiveCommands())

	// Local tracking is dropped even when the device refuses.
	client.Cancel.CancelAll(context.Background())
	assert.Empty(t, client.Gateway.ActiveCommands())

	calls := inv.callsTo("Cancel")
	require.Len(t, calls, 1)
	cancelType, ok := findArg(calls[0].Args, "CancelType")
	require.True(t, ok)
	assert.Equal(t, "All", cancelType.Value)
}
