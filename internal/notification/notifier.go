// Package notification delivers signal alerts to external channels
// (webhooks, Telegram) alongside the Redis and WebSocket fan-out.
package notification

import (
	"context"
	"errors"
	"fmt"
	"log"

	"signal-monitor/internal/model"
)

// AlertLevel represents the severity of an alert.
type AlertLevel string

const (
	AlertInfo     AlertLevel = "INFO"
	AlertWarning  AlertLevel = "WARNING"
	AlertCritical AlertLevel = "CRITICAL"
)

// Alert represents a notification to be sent.
type Alert struct {
	Level   AlertLevel          `json:"level"`
	Title   string              `json:"title"`
	Message string              `json:"message"`
	Signal  *model.SignalRecord `json:"signal,omitempty"`
}

// Notifier is the interface for all notification backends.
type Notifier interface {
	// Send delivers an alert. Returns error if delivery fails.
	Send(ctx context.Context, alert Alert) error
}

// LogNotifier logs alerts; used when no external channel is configured.
type LogNotifier struct{}

// NewLogNotifier creates a log-based notifier.
func NewLogNotifier() *LogNotifier {
	return &LogNotifier{}
}

func (n *LogNotifier) Send(ctx context.Context, alert Alert) error {
	log.Printf("[notify] [%s] %s: %s", alert.Level, alert.Title, alert.Message)
	return nil
}

// SignalAlerter turns newly stored signals into alerts for every notifier.
// It implements model.SignalPublisher.
type SignalAlerter struct {
	notifiers []Notifier
}

// NewSignalAlerter creates an alerter over notifiers.
func NewSignalAlerter(notifiers ...Notifier) *SignalAlerter {
	return &SignalAlerter{notifiers: notifiers}
}

// PublishSignal sends one alert per notifier. Every notifier is tried;
// failures are joined.
func (a *SignalAlerter) PublishSignal(ctx context.Context, rec model.SignalRecord) error {
	alert := SignalAlert(rec)
	var errs []error
	for _, n := range a.notifiers {
		if err := n.Send(ctx, alert); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// SignalAlert formats rec as an info alert.
func SignalAlert(rec model.SignalRecord) Alert {
	fast, slow := rec.Values.Pair()
	title := fmt.Sprintf("%s %s %s", rec.Indicator, rec.Direction, rec.Symbol)
	msg := fmt.Sprintf("%s at %s, price %.2f, fast %.4f slow %.4f",
		rec.Direction, rec.SignalDate, rec.Price, fast, slow)
	return Alert{Level: AlertInfo, Title: title, Message: msg, Signal: &rec}
}
