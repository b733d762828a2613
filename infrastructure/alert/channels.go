package alert

import (
	"fmt"

	"go.uber.org/zap"

	"vol-oracle-go/infrastructure/logger"
)

// LogChannel routes alerts into the structured log, so every alert lands in
// the same stream the rest of the daemon writes to.
type LogChannel struct {
	log  *logger.Logger
	name string
}

func NewLogChannel(name string, log *logger.Logger) *LogChannel {
	return &LogChannel{log: log, name: name}
}

func (c *LogChannel) Send(alert Alert) error {
	fields := make([]zap.Field, 0, len(alert.Fields)+2)
	fields = append(fields,
		zap.String("level", alert.Level),
		zap.Time("alert_ts", alert.Timestamp),
	)
	for k, v := range alert.Fields {
		fields = append(fields, zap.Any(k, v))
	}
	switch alert.Level {
	case "ERROR", "CRITICAL":
		c.log.Error("alert: "+alert.Message, fields...)
	default:
		c.log.Warn("alert: "+alert.Message, fields...)
	}
	return nil
}

func (c *LogChannel) Name() string {
	return c.name
}

// MockChannel records alerts for tests.
type MockChannel struct {
	name      string
	alerts    []Alert
	shouldErr bool
}

func NewMockChannel(name string) *MockChannel {
	return &MockChannel{name: name}
}

func (c *MockChannel) Send(alert Alert) error {
	if c.shouldErr {
		return fmt.Errorf("mock error")
	}
	c.alerts = append(c.alerts, alert)
	return nil
}

func (c *MockChannel) Name() string { return c.name }

func (c *MockChannel) GetAlerts() []Alert { return c.alerts }

func (c *MockChannel) SetShouldError(shouldErr bool) { c.shouldErr = shouldErr }

func (c *MockChannel) Clear() { c.alerts = nil }

func (c *MockChannel) Count() int { return len(c.alerts) }
