// Package notifications delivers citizen-facing messages: email through a
// collab.Mailer, an audit record per message, and a live event on the bus.
package notifications

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/civicflow/civicflow/internal/collab"
	"github.com/civicflow/civicflow/internal/eventbus"
	"github.com/civicflow/civicflow/internal/models"
	"github.com/civicflow/civicflow/internal/repository"
	"github.com/civicflow/civicflow/internal/util"
)

// ProcessedMessage is sent on the live channel once the pipeline finishes.
const ProcessedMessage = "Your complaint has been processed and assigned to the relevant department."

// Dispatcher sends notifications. It implements pipeline.Notifier.
type Dispatcher struct {
	notifications *repository.NotificationRepository
	mailer        collab.Mailer
	bus           *eventbus.Bus
	clock         util.Clock
	logger        *slog.Logger
	product       string
	timeout       time.Duration
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithClock sets the clock used for audit timestamps.
func WithClock(c util.Clock) Option { return func(d *Dispatcher) { d.clock = c } }

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option { return func(d *Dispatcher) { d.logger = l } }

// WithProduct sets the name used in email subjects.
func WithProduct(name string) Option { return func(d *Dispatcher) { d.product = name } }

// WithTimeout bounds each mail delivery.
func WithTimeout(t time.Duration) Option { return func(d *Dispatcher) { d.timeout = t } }

// NewDispatcher creates a dispatcher. A nil mailer logs instead of
// sending; a nil bus skips live events.
func NewDispatcher(db *sql.DB, mailer collab.Mailer, bus *eventbus.Bus, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		notifications: repository.NewNotificationRepository(db),
		mailer:        mailer,
		bus:           bus,
		clock:         util.SystemClock{},
		logger:        slog.Default(),
		product:       "CivicFlow",
		timeout:       10 * time.Second,
	}
	for _, opt := range opts {
		opt(d)
	}
	if d.mailer == nil {
		d.mailer = collab.NewLogMailer(d.logger)
	}
	return d
}

// ComplaintProcessed confirms registration to the citizen and publishes
// the processed status.
func (d *Dispatcher) ComplaintProcessed(ctx context.Context, c *models.Complaint, order *models.WorkOrder, summary string) error {
	d.publish(ctx, eventbus.TypeStatusUpdate, c, ProcessedMessage)

	var b strings.Builder
	fmt.Fprintf(&b, "Dear %s,\n\n", citizenName(c))
	fmt.Fprintf(&b, "Your complaint has been registered with tracking ID %s.\n\n", c.TrackingCode)
	if summary != "" {
		fmt.Fprintf(&b, "%s\n", summary)
	}
	if order != nil {
		fmt.Fprintf(&b, "Expected resolution by: %s\n", util.FormatDateTime(order.SLADeadline))
	}
	fmt.Fprintf(&b, "\nYou can track progress at any time with your tracking ID.\n\n- %s", d.product)

	return d.deliver(ctx, c, models.NotifyConfirmation,
		fmt.Sprintf("%s - Complaint Registered (%s)", d.product, c.TrackingCode), b.String())
}

// SLAWarning tells the citizen their deadline is approaching.
func (d *Dispatcher) SLAWarning(ctx context.Context, c *models.Complaint, message string) error {
	d.publish(ctx, eventbus.TypeSLAWarning, c, message)
	return d.update(ctx, c, models.NotifyStatusUpdate, message)
}

// Escalated tells the citizen their complaint moved up a jurisdiction.
func (d *Dispatcher) Escalated(ctx context.Context, c *models.Complaint, message string) error {
	d.publish(ctx, eventbus.TypeEscalation, c, message)
	return d.update(ctx, c, models.NotifyEscalation, message)
}

// StatusChanged reports any other status change.
func (d *Dispatcher) StatusChanged(ctx context.Context, c *models.Complaint, message string) error {
	d.publish(ctx, eventbus.TypeStatusUpdate, c, message)
	return d.update(ctx, c, models.NotifyStatusUpdate, message)
}

func (d *Dispatcher) update(ctx context.Context, c *models.Complaint, kind models.NotificationKind, message string) error {
	body := fmt.Sprintf("Dear %s,\n\nUpdate on complaint %s (status: %s):\n\n%s\n\n- %s",
		citizenName(c), c.TrackingCode, c.Status, message, d.product)
	return d.deliver(ctx, c, kind,
		fmt.Sprintf("%s - Complaint Update (%s)", d.product, c.TrackingCode), body)
}

// deliver records the message and sends it. The audit row is written even
// when delivery fails.
func (d *Dispatcher) deliver(ctx context.Context, c *models.Complaint, kind models.NotificationKind, subject, body string) error {
	if c.CitizenEmail == "" {
		return nil
	}
	complaintID := c.ID
	n := &models.Notification{
		ID:          util.NewID(),
		ComplaintID: &complaintID,
		Recipient:   c.CitizenEmail,
		Kind:        kind,
		Subject:     subject,
		Body:        body,
		CreatedAt:   d.clock.Now(),
	}
	if err := d.notifications.Create(ctx, nil, n); err != nil {
		d.logger.Warn("recording notification failed", "complaint", c.ID, "error", err)
	}

	_, err := collab.Call(ctx, d.timeout, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, d.mailer.Send(ctx, collab.Message{To: c.CitizenEmail, Subject: subject, Body: body})
	})
	if err != nil {
		d.logger.Warn("sending notification failed", "complaint", c.ID, "kind", kind, "error", err)
		return fmt.Errorf("sending %s to %s: %w", kind, c.CitizenEmail, err)
	}

	if err := d.notifications.MarkSent(ctx, nil, n.ID, d.clock.Now()); err != nil {
		d.logger.Warn("marking notification sent failed", "notification", n.ID, "error", err)
	}
	return nil
}

func (d *Dispatcher) publish(ctx context.Context, eventType string, c *models.Complaint, message string) {
	if d.bus == nil {
		return
	}
	d.bus.Publish(ctx, eventbus.Event{
		Type:         eventType,
		TrackingCode: c.TrackingCode,
		Status:       string(c.Status),
		Category:     string(c.CategoryOrEmpty()),
		RiskLevel:    string(c.RiskOrEmpty()),
		Department:   c.Department,
		Message:      message,
	})
}

func citizenName(c *models.Complaint) string {
	if c.CitizenName != "" {
		return c.CitizenName
	}
	return "Citizen"
}
