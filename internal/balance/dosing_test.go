package balance

import (
	"context"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xiaomguo/sdl2-solid-dosing/internal/wire"
)

func methodListNode(t *testing.T) *wire.Node {
	return successNode(t,
		"<Methods>"+
			"<MethodDescription><Name>ManualWeighing</Name><MethodType>GeneralWeighing</MethodType></MethodDescription>"+
			"<MethodDescription><Name>PowderDose</Name><MethodType>AutomatedDosing</MethodType></MethodDescription>"+
			"<MethodDescription><Name>SlowDose</Name><MethodType>AutomatedDosing</MethodType></MethodDescription>"+
			"</Methods>")
}

// scriptProtocolStart queues the method lookup, task start and job list
// submission of one dosing run.
func scriptProtocolStart(t *testing.T, inv *fakeInvoker, commandID int64) {
	inv.respond("GetListOfMethods", methodListNode(t))
	inv.respond("StartTask", successNode(t, ""))
	inv.respond("StartExecuteDosingJobListAsync",
		successNode(t, "<CommandId>"+strconv.FormatInt(commandID, 10)+"</CommandId>"))
}

func jobFinishedXML(commandID int64, value, unit string) string {
	return "<DosingAutomationJobFinishedAsyncNotification>" +
		"<CommandId>" + strconv.FormatInt(commandID, 10) + "</CommandId>" +
		"<Outcome>Success</Outcome>" +
		"<DosingResult><WeightSample><NetWeight><Value>" + value + "</Value><Unit>" + unit + "</Unit></NetWeight></WeightSample></DosingResult>" +
		"</DosingAutomationJobFinishedAsyncNotification>"
}

func listFinishedXML(commandID int64) string {
	return "<DosingAutomationFinishedAsyncNotification>" +
		"<CommandId>" + strconv.FormatInt(commandID, 10) + "</CommandId>" +
		"<Outcome>Success</Outcome>" +
		"</DosingAutomationFinishedAsyncNotification>"
}

func notificationsNode(t *testing.T, inner string) *wire.Node {
	return successNode(t, "<Notifications>"+inner+"</Notifications>")
}

func TestAutoDoseHappyPath(t *testing.T) {
	inv := newFakeInvoker(t)
	client := newTestClient(t, inv, "pw")

	scriptProtocolStart(t, inv, 42)
	inv.respond("GetNotifications",
		// First poll: an action request for this command plus an error
		// notification of an unrelated command that must be ignored.
		notificationsNode(t,
			"<DosingAutomationActionAsyncNotification>"+
				"<CommandId>42</CommandId><Outcome>ActionRequired</Outcome>"+
				"<DosingJobActionType>PlaceVial</DosingJobActionType><ActionItem>Vial1</ActionItem>"+
				"</DosingAutomationActionAsyncNotification>"+
				"<DosingAutomationJobFinishedAsyncNotification>"+
				"<CommandId>99</CommandId><Outcome>Error</Outcome><ErrorMessage>other job</ErrorMessage>"+
				"</DosingAutomationJobFinishedAsyncNotification>"),
		notificationsNode(t, jobFinishedXML(42, "0.005", "Gram")+listFinishedXML(42)),
	)
	inv.respond("ConfirmDosingJobAction", successNode(t, ""))
	inv.respond("CompleteCurrentTask", successNode(t, ""))

	dosed, err := client.Dosing.AutoDose(context.Background(), DoseRequest{
		Substance:             "Caffeine",
		Method:                "PowderDose",
		TargetMilligrams:      2,
		LowerTolerancePercent: 5,
		UpperTolerancePercent: 5,
	})
	require.NoError(t, err)
	assert.InDelta(t, 5.0, dosed, 1e-9)

	confirms := inv.callsTo("ConfirmDosingJobAction")
	require.Len(t, confirms, 1, "each action request is confirmed exactly once")
	action, ok := findArg(confirms[0].Args, "DosingJobActionType")
	require.True(t, ok)
	assert.Equal(t, "PlaceVial", action.Value)

	assert.Len(t, inv.callsTo("CompleteCurrentTask"), 1)

	// The submitted job carries absolute tolerances derived from the
	// percentages: 5% of 2 mg is 0.1 mg.
	submissions := inv.callsTo("StartExecuteDosingJobListAsync")
	require.Len(t, submissions, 1)
	lower, ok := findArg(submissions[0].Args, "JobList", "DosingJob", "LowerTolerance", "Value")
	require.True(t, ok)
	assert.Equal(t, 0.1, lower.Value)
	target, ok := findArg(submissions[0].Args, "JobList", "DosingJob", "TargetWeight", "Value")
	require.True(t, ok)
	assert.Equal(t, 2.0, target.Value)
	unit, ok := findArg(submissions[0].Args, "JobList", "DosingJob", "TargetWeight", "Unit")
	require.True(t, ok)
	assert.Equal(t, string(UnitMilligram), unit.Value)
	vial, ok := findArg(submissions[0].Args, "JobList", "DosingJob", "VialName")
	require.True(t, ok)
	assert.Equal(t, "DefaultVial", vial.Value, "empty vial name falls back to the default")
}

func TestAutoDoseSelectsFirstAutomatedMethodWhenUnnamed(t *testing.T) {
	inv := newFakeInvoker(t)
	client := newTestClient(t, inv, "pw")

	scriptProtocolStart(t, inv, 7)
	inv.respond("GetNotifications", notificationsNode(t, jobFinishedXML(7, "1", "Milligram")+listFinishedXML(7)))
	inv.respond("CompleteCurrentTask", successNode(t, ""))

	_, err := client.Dosing.AutoDose(context.Background(), DoseRequest{
		Substance:        "Caffeine",
		TargetMilligrams: 1,
	})
	require.NoError(t, err)

	starts := inv.callsTo("StartTask")
	require.Len(t, starts, 1)
	method, ok := findArg(starts[0].Args, "MethodName")
	require.True(t, ok)
	assert.Equal(t, "PowderDose", method.Value, "the first automated dosing method wins")
}

func TestAutoDoseUnknownMethod(t *testing.T) {
	inv := newFakeInvoker(t)
	client := newTestClient(t, inv, "pw")
	inv.respond("GetListOfMethods", methodListNode(t))

	_, err := client.Dosing.AutoDose(context.Background(), DoseRequest{
		Substance:        "Caffeine",
		Method:           "NoSuchMethod",
		TargetMilligrams: 1,
	})
	require.Error(t, err)
	assert.True(t, IsKind(err, KindDevice), "got: %v", err)
	assert.Empty(t, inv.callsTo("StartTask"))
}

func TestAutoDoseTimeout(t *testing.T) {
	inv := newFakeInvoker(t)
	client := newTestClient(t, inv, "pw")

	scriptProtocolStart(t, inv, 42)
	inv.respond("GetNotifications", notificationsNode(t, ""))

	_, err := client.Dosing.AutoDose(context.Background(), DoseRequest{
		Substance:        "Caffeine",
		Method:           "PowderDose",
		TargetMilligrams: 2,
		Timeout:          30 * time.Millisecond,
	})
	require.Error(t, err)
	assert.True(t, IsKind(err, KindDosing), "got: %v", err)
	assert.Contains(t, err.Error(), "30ms", "the error names the configured timeout")
}

func TestAutoDoseListFailure(t *testing.T) {
	inv := newFakeInvoker(t)
	client := newTestClient(t, inv, "pw")

	scriptProtocolStart(t, inv, 42)
	inv.respond("GetNotifications", notificationsNode(t,
		"<DosingAutomationFinishedAsyncNotification>"+
			"<CommandId>42</CommandId><Outcome>Aborted</Outcome>"+
			"<FailureReason>DosingHeadEmpty</FailureReason>"+
			"<FailureDescription>no powder left</FailureDescription>"+
			"</DosingAutomationFinishedAsyncNotification>"))

	_, err := client.Dosing.AutoDose(context.Background(), DoseRequest{
		Substance:        "Caffeine",
		Method:           "PowderDose",
		TargetMilligrams: 2,
	})
	require.Error(t, err)

	e, ok := AsError(err)
	require.True(t, ok)
	assert.Equal(t, KindDosing, e.Kind)
	assert.Contains(t, e.ErrorMessage, "DosingHeadEmpty")
	assert.Contains(t, e.ErrorMessage, "no powder left")
	assert.Empty(t, inv.callsTo("CompleteCurrentTask"), "a failed list never completes the task")
}

func TestAutoDoseErrorNotification(t *testing.T) {
	inv := newFakeInvoker(t)
	client := newTestClient(t, inv, "pw")

	scriptProtocolStart(t, inv, 42)
	inv.respond("GetNotifications", notificationsNode(t,
		"<DosingAutomationJobFinishedAsyncNotification>"+
			"<CommandId>42</CommandId><Outcome>Error</Outcome>"+
			"<ErrorMessage>drive stalled</ErrorMessage>"+
			"</DosingAutomationJobFinishedAsyncNotification>"))

	_, err := client.Dosing.AutoDose(context.Background(), DoseRequest{
		Substance:        "Caffeine",
		Method:           "PowderDose",
		TargetMilligrams: 2,
	})
	require.Error(t, err)

	e, ok := AsError(err)
	require.True(t, ok)
	assert.Equal(t, KindDosing, e.Kind)
	assert.Equal(t, "drive stalled", e.ErrorMessage)
}

func TestAutoDoseFinishedWithoutMass(t *testing.T) {
	inv := newFakeInvoker(t)
	client := newTestClient(t, inv, "pw")

	scriptProtocolStart(t, inv, 42)
	inv.respond("GetNotifications", notificationsNode(t, listFinishedXML(42)))
	inv.respond("CompleteCurrentTask", successNode(t, ""))

	_, err := client.Dosing.AutoDose(context.Background(), DoseRequest{
		Substance:        "Caffeine",
		Method:           "PowderDose",
		TargetMilligrams: 2,
	})
	require.Error(t, err)
	assert.True(t, IsKind(err, KindDosing), "got: %v", err)
	assert.Contains(t, err.Error(), "unclear")
}

func TestAutoDoseInlineJobErrors(t *testing.T) {
	inv := newFakeInvoker(t)
	client := newTestClient(t, inv, "pw")

	inv.respond("GetListOfMethods", methodListNode(t))
	inv.respond("StartTask", successNode(t, ""))
	inv.respond("StartExecuteDosingJobListAsync", successNode(t,
		"<CommandId>42</CommandId>"+
			"<JobErrors><DosingJobError><Error>substance not on head</Error></DosingJobError></JobErrors>"))

	_, err := client.Dosing.AutoDose(context.Background(), DoseRequest{
		Substance:        "Vitamin C",
		Method:           "PowderDose",
		TargetMilligrams: 2,
	})
	require.Error(t, err)

	e, ok := AsError(err)
	require.True(t, ok)
	assert.Equal(t, KindDosing, e.Kind)
	assert.Contains(t, e.ErrorMessage, "substance not on head")
	assert.Empty(t, inv.callsTo("GetNotifications"), "setup errors abort before polling")
}

func TestDecodeNotificationDefaults(t *testing.T) {
	// A notification without a command id must never match a real one.
	n := decodeNotification(parseNode(t,
		"<DosingAutomationJobFinishedAsyncNotification><Outcome>Success</Outcome></DosingAutomationJobFinishedAsyncNotification>"))
	assert.Equal(t, int64(-1), n.commandID())

	unknown := decodeNotification(parseNode(t, "<SomeNewNotification><CommandId>5</CommandId></SomeNewNotification>"))
	_, isUnknown := unknown.(*noteUnknown)
	assert.True(t, isUnknown)
	assert.Equal(t, int64(5), unknown.commandID())
}
