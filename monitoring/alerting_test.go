package monitoring

import (
	"sync"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type captureNotifier struct {
	mu     sync.Mutex
	alerts []*Alert
}

func (n *captureNotifier) Name() string { return "capture" }

func (n *captureNotifier) Send(alert *Alert) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.alerts = append(n.alerts, alert)
	return nil
}

func (n *captureNotifier) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.alerts)
}

func testAlertManager() (*AlertManager, *captureNotifier) {
	logger := logrus.New()
	logger.SetLevel(logrus.ErrorLevel)

	am := NewAlertManager(logger)
	capture := &captureNotifier{}
	am.AddNotifier(capture)
	return am, capture
}

func TestAlertRaisedWhenConditionHolds(t *testing.T) {
	am, capture := testAlertManager()
	defer am.Stop()

	saturated := true
	am.UpdateRuleCondition("Pending Queue Saturated", func() bool { return saturated })

	am.evaluateAllRules()

	active := am.GetActiveAlerts()
	require.Len(t, active, 1)
	assert.Equal(t, AlertTypeQueueSaturated, active[0].Type)
	assert.Equal(t, SeverityMedium, active[0].Severity)
	assert.Equal(t, 1, capture.count())

	// Re-evaluation of a still-active alert does not re-notify
	am.evaluateAllRules()
	assert.Equal(t, 1, capture.count())
}

func TestAlertResolvedWhenConditionClears(t *testing.T) {
	am, _ := testAlertManager()
	defer am.Stop()

	saturated := true
	am.UpdateRuleCondition("Pending Queue Saturated", func() bool { return saturated })

	am.evaluateAllRules()
	require.Len(t, am.GetActiveAlerts(), 1)

	saturated = false
	am.evaluateAllRules()
	assert.Empty(t, am.GetActiveAlerts())
}

func TestAlertReRaisedAfterResolution(t *testing.T) {
	am, capture := testAlertManager()
	defer am.Stop()

	saturated := true
	am.UpdateRuleCondition("Pending Queue Saturated", func() bool { return saturated })

	am.evaluateAllRules()
	saturated = false
	am.evaluateAllRules()
	saturated = true
	am.evaluateAllRules()

	require.Len(t, am.GetActiveAlerts(), 1)
	assert.Equal(t, 2, capture.count())
}

func TestDefaultRulesAreInert(t *testing.T) {
	am, capture := testAlertManager()
	defer am.Stop()

	// Without wired conditions no rule ever fires
	am.evaluateAllRules()
	assert.Empty(t, am.GetActiveAlerts())
	assert.Equal(t, 0, capture.count())
}

func TestUpdateRuleConditionUnknownRule(t *testing.T) {
	am, _ := testAlertManager()
	defer am.Stop()

	assert.NotPanics(t, func() {
		am.UpdateRuleCondition("No Such Rule", func() bool { return true })
	})
}
