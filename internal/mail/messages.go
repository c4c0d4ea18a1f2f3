package mail

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/khanghh/konbase/internal/render"
	"github.com/khanghh/konbase/params"
)

var ErrNotificationQueueFull = errors.New("notification queue is full")

// Notifier sends security notices about account changes. Notices are
// rendered by the caller and delivered by Run, so a slow mail server never
// holds up a request.
type Notifier struct {
	sender MailSender
	queue  chan *Message
	now    func() time.Time
}

// Run delivers queued notices until ctx is done. Notices still queued at
// that point are dropped.
func (n *Notifier) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case message := <-n.queue:
			if err := n.sender.Send(message); err != nil {
				slog.Warn("Failed to deliver notification", "to", message.To, "subject", message.Subject, "error", err)
			}
		}
	}
}

func (n *Notifier) enqueue(ctx context.Context, toEmail string, subject string, templateName string, vars fiber.Map) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	vars["time"] = n.now().UTC().Format(time.RFC1123)
	body, err := render.RenderHTML(templateName, vars)
	if err != nil {
		return err
	}
	message := &Message{
		To:      []string{toEmail},
		Subject: subject,
		Body:    body,
		IsHTML:  true,
	}
	select {
	case n.queue <- message:
		return nil
	default:
		return ErrNotificationQueueFull
	}
}

func (n *Notifier) NotifyTwoFactorEnabled(ctx context.Context, toEmail string) error {
	return n.enqueue(ctx, toEmail, "Two-factor authentication enabled", "mail/twofactor-enabled", fiber.Map{})
}

func (n *Notifier) NotifyTwoFactorDisabled(ctx context.Context, toEmail string) error {
	return n.enqueue(ctx, toEmail, "Two-factor authentication disabled", "mail/twofactor-disabled", fiber.Map{})
}

func (n *Notifier) NotifyRoleElevated(ctx context.Context, toEmail string, role string) error {
	return n.enqueue(ctx, toEmail, "Your account role changed", "mail/role-elevated", fiber.Map{
		"role": role,
	})
}

func NewNotifier(sender MailSender) *Notifier {
	return &Notifier{
		sender: sender,
		queue:  make(chan *Message, params.NotificationQueueSize),
		now:    time.Now,
	}
}
