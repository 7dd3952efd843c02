package admin

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	apperrors "github.com/Proton-105/stepbot/internal/errors"
	"github.com/Proton-105/stepbot/internal/messenger"
	"github.com/Proton-105/stepbot/internal/platform"
	"github.com/Proton-105/stepbot/pkg/metrics"
)

// Alert is one diagnostic message for the admins.
type Alert struct {
	Text string `json:"text"`
	// Trace is appended to Text, usually a goroutine stack.
	Trace string `json:"trace,omitempty"`
	// Update is the serialized update that caused the alert. It is sent as a reply to the alert.
	Update string `json:"update,omitempty"`
	Silent bool   `json:"silent,omitempty"`
}

// Alerter accepts alerts. Implementations never fail the caller.
type Alerter interface {
	Alert(ctx context.Context, alert Alert)
}

// Sender is the subset of messenger.Messenger the notifier needs.
type Sender interface {
	SendLongText(ctx context.Context, to platform.Target, msg platform.NewMessage) ([]*platform.SentMessage, error)
}

var _ Sender = (*messenger.Messenger)(nil)

// Notifier sends alerts to every admin contact directly.
type Notifier struct {
	sender   Sender
	contacts Contacts
	botName  string
	breaker  *apperrors.CircuitBreaker
	log      *slog.Logger
	now      func() time.Time
}

var _ Alerter = (*Notifier)(nil)

func NewNotifier(sender Sender, contacts Contacts, botName string, log *slog.Logger) *Notifier {
	if log == nil {
		log = slog.Default()
	}
	return &Notifier{
		sender:   sender,
		contacts: contacts,
		botName:  botName,
		breaker:  apperrors.NewCircuitBreaker(),
		log:      log,
		now:      time.Now,
	}
}

func (n *Notifier) Contacts() Contacts {
	return n.contacts
}

// SetBotName updates the name used in alert headers once the bot profile is known.
func (n *Notifier) SetBotName(name string) {
	n.botName = name
}

func (n *Notifier) format(alert Alert) string {
	text := alert.Text
	if alert.Trace != "" {
		text += "\n" + alert.Trace
	}
	return fmt.Sprintf("%s(bot @%s): %s", n.now().Format("2006-01-02 15:04:05.000"), n.botName, text)
}

// Alert delivers to all contacts. Failures are logged.
func (n *Notifier) Alert(ctx context.Context, alert Alert) {
	if err := n.Deliver(ctx, alert); err != nil {
		n.log.Error("admin alert failed", slog.Any("error", err))
	}
}

// Deliver is Alert with the delivery error returned, for queue workers that want to retry.
func (n *Notifier) Deliver(ctx context.Context, alert Alert) error {
	if n.contacts.Empty() {
		n.log.Debug("admin alert dropped, no contacts", slog.String("text", alert.Text))
		return nil
	}

	text := n.format(alert)
	var errs []error
	for _, to := range n.contacts.Targets() {
		to := to
		err := n.breaker.Call(func() error {
			return n.sendOne(ctx, to, text, alert)
		})
		if err != nil {
			errs = append(errs, fmt.Errorf("deliver to %+v: %w", to, err))
		}
	}

	if len(errs) > 0 {
		metrics.RecordAdminAlert("failed")
		return errors.Join(errs...)
	}
	metrics.RecordAdminAlert("sent")
	return nil
}

func (n *Notifier) sendOne(ctx context.Context, to platform.Target, text string, alert Alert) error {
	sent, err := n.sender.SendLongText(ctx, to, platform.NewMessage{Text: text, Silent: alert.Silent})
	if err != nil {
		return err
	}
	if alert.Update == "" || len(sent) == 0 || sent[0] == nil {
		return nil
	}

	_, err = n.sender.SendLongText(ctx, to, platform.NewMessage{
		Text:   alert.Update,
		Link:   platform.Reply(sent[0].MID),
		Silent: alert.Silent,
	})
	return err
}

// SendToAdmins delivers a prepared message to every admin contact, used when a user cannot be answered directly.
func (n *Notifier) SendToAdmins(ctx context.Context, msg platform.NewMessage) {
	for _, to := range n.contacts.Targets() {
		if _, err := n.sender.SendLongText(ctx, to, msg); err != nil {
			n.log.Warn("send to admin failed", slog.Any("target", to), slog.Any("error", err))
		}
	}
}
