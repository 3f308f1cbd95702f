// Package monitoring provides alerting capabilities for the coloring book backend
package monitoring

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// AlertSeverity represents the severity level of an alert
type AlertSeverity string

const (
	SeverityLow      AlertSeverity = "low"
	SeverityMedium   AlertSeverity = "medium"
	SeverityHigh     AlertSeverity = "high"
	SeverityCritical AlertSeverity = "critical"
)

// AlertType represents the type of alert
type AlertType string

const (
	AlertTypeQueueSaturated  AlertType = "queue_saturated"
	AlertTypeHighPublishLag  AlertType = "high_publish_latency"
	AlertTypeWorkerDown      AlertType = "worker_down"
	AlertTypeHighFailureRate AlertType = "high_failure_rate"
)

// Alert represents a raised alert
type Alert struct {
	ID          string            `json:"id"`
	Type        AlertType         `json:"type"`
	Severity    AlertSeverity     `json:"severity"`
	Title       string            `json:"title"`
	Description string            `json:"description"`
	Timestamp   time.Time         `json:"timestamp"`
	Labels      map[string]string `json:"labels"`
	Resolved    bool              `json:"resolved"`
	ResolvedAt  *time.Time        `json:"resolved_at,omitempty"`
}

// AlertRule defines a rule for generating alerts
type AlertRule struct {
	Name        string
	Type        AlertType
	Severity    AlertSeverity
	Condition   func() bool
	Title       string
	Description string
	Labels      map[string]string
	Enabled     bool
}

// Notifier sends alert notifications
type Notifier interface {
	Send(alert *Alert) error
	Name() string
}

// LogNotifier sends alerts to the log
type LogNotifier struct {
	logger *logrus.Logger
}

// NewLogNotifier creates a new log notifier
func NewLogNotifier(logger *logrus.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

func (n *LogNotifier) Name() string {
	return "log"
}

func (n *LogNotifier) Send(alert *Alert) error {
	level := logrus.InfoLevel
	switch alert.Severity {
	case SeverityHigh:
		level = logrus.WarnLevel
	case SeverityCritical:
		level = logrus.ErrorLevel
	}

	n.logger.WithFields(logrus.Fields{
		"alert_id":   alert.ID,
		"alert_type": alert.Type,
		"severity":   alert.Severity,
		"labels":     alert.Labels,
	}).Log(level, fmt.Sprintf("ALERT: %s - %s", alert.Title, alert.Description))

	return nil
}

// AlertManager evaluates alert rules and dispatches notifications
type AlertManager struct {
	alerts    map[string]*Alert
	mutex     sync.RWMutex
	logger    *logrus.Logger
	rules     []AlertRule
	notifiers []Notifier
	ctx       context.Context
	cancel    context.CancelFunc
}

// NewAlertManager creates an alert manager with the default rule set. Rule
// conditions start disabled until wired with UpdateRuleCondition.
func NewAlertManager(logger *logrus.Logger) *AlertManager {
	ctx, cancel := context.WithCancel(context.Background())

	am := &AlertManager{
		alerts:    make(map[string]*Alert),
		logger:    logger,
		rules:     getDefaultAlertRules(),
		notifiers: []Notifier{NewLogNotifier(logger)},
		ctx:       ctx,
		cancel:    cancel,
	}

	go am.evaluateRules()

	return am
}

func getDefaultAlertRules() []AlertRule {
	return []AlertRule{
		{
			Name:        "Pending Queue Saturated",
			Type:        AlertTypeQueueSaturated,
			Severity:    SeverityMedium,
			Condition:   func() bool { return false },
			Title:       "Job queue near admission limit",
			Description: "The pending job queue is close to rejecting submissions",
			Labels:      map[string]string{"service": "coloring-book-backend"},
			Enabled:     true,
		},
		{
			Name:        "High Publish Latency",
			Type:        AlertTypeHighPublishLag,
			Severity:    SeverityHigh,
			Condition:   func() bool { return false },
			Title:       "Progress fan-out latency elevated",
			Description: "Average publish latency indicates slow or stuck subscribers",
			Labels:      map[string]string{"service": "coloring-book-backend"},
			Enabled:     true,
		},
		{
			Name:        "Worker Stalled",
			Type:        AlertTypeWorkerDown,
			Severity:    SeverityCritical,
			Condition:   func() bool { return false },
			Title:       "Batch worker is not draining the queue",
			Description: "Jobs remain pending with no worker activity",
			Labels:      map[string]string{"service": "coloring-book-backend"},
			Enabled:     true,
		},
	}
}

// evaluateRules runs the alert evaluation loop
func (am *AlertManager) evaluateRules() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-am.ctx.Done():
			return
		case <-ticker.C:
			am.evaluateAllRules()
		}
	}
}

func (am *AlertManager) evaluateAllRules() {
	am.mutex.RLock()
	rules := make([]AlertRule, len(am.rules))
	copy(rules, am.rules)
	am.mutex.RUnlock()

	for _, rule := range rules {
		if !rule.Enabled || rule.Condition == nil {
			continue
		}
		alertID := string(rule.Type)
		if rule.Condition() {
			am.raiseAlert(alertID, rule)
		} else {
			am.ResolveAlert(alertID)
		}
	}
}

func (am *AlertManager) raiseAlert(alertID string, rule AlertRule) {
	am.mutex.Lock()
	if existing, exists := am.alerts[alertID]; exists && !existing.Resolved {
		am.mutex.Unlock()
		return
	}
	alert := &Alert{
		ID:          alertID,
		Type:        rule.Type,
		Severity:    rule.Severity,
		Title:       rule.Title,
		Description: rule.Description,
		Timestamp:   time.Now(),
		Labels:      rule.Labels,
	}
	am.alerts[alertID] = alert
	am.mutex.Unlock()

	am.sendNotifications(alert)
}

func (am *AlertManager) sendNotifications(alert *Alert) {
	am.mutex.RLock()
	notifiers := make([]Notifier, len(am.notifiers))
	copy(notifiers, am.notifiers)
	am.mutex.RUnlock()

	for _, notifier := range notifiers {
		if err := notifier.Send(alert); err != nil {
			am.logger.WithFields(logrus.Fields{
				"notifier": notifier.Name(),
				"alert_id": alert.ID,
				"error":    err.Error(),
			}).Error("Failed to send alert notification")
		}
	}
}

// ResolveAlert resolves an active alert
func (am *AlertManager) ResolveAlert(alertID string) {
	am.mutex.Lock()
	defer am.mutex.Unlock()

	if alert, exists := am.alerts[alertID]; exists && !alert.Resolved {
		now := time.Now()
		alert.Resolved = true
		alert.ResolvedAt = &now

		am.logger.WithFields(logrus.Fields{
			"alert_id": alertID,
			"type":     alert.Type,
		}).Info("Alert resolved")
	}
}

// GetActiveAlerts returns all active (unresolved) alerts
func (am *AlertManager) GetActiveAlerts() []*Alert {
	am.mutex.RLock()
	defer am.mutex.RUnlock()

	var active []*Alert
	for _, alert := range am.alerts {
		if !alert.Resolved {
			active = append(active, alert)
		}
	}
	return active
}

// AddNotifier adds a notifier
func (am *AlertManager) AddNotifier(notifier Notifier) {
	am.mutex.Lock()
	defer am.mutex.Unlock()

	am.notifiers = append(am.notifiers, notifier)
}

// UpdateRuleCondition wires a live condition closure into a named rule
func (am *AlertManager) UpdateRuleCondition(ruleName string, condition func() bool) {
	am.mutex.Lock()
	defer am.mutex.Unlock()

	for i, rule := range am.rules {
		if rule.Name == ruleName {
			am.rules[i].Condition = condition
			break
		}
	}
}

// Stop stops the alert manager
func (am *AlertManager) Stop() {
	am.cancel()
}
