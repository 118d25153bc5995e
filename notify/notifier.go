// Package notify delivers best-effort alerts to tenant admins. Failures
// here are logged and never bubble into a conversation turn.
package notify

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"
	"gopkg.in/gomail.v2"

	"estatenexy/models"
)

// AdminNotifier sends one alert to a tenant's admin address.
type AdminNotifier interface {
	Notify(ctx context.Context, tenant *models.Tenant, text string) error
}

// EmailNotifier delivers alerts over SMTP.
type EmailNotifier struct {
	dialer *gomail.Dialer
	from   string
	logger *logrus.Entry
}

func NewEmailNotifier(host string, port int, username, password, from string, logger *logrus.Entry) *EmailNotifier {
	if logger == nil {
		logger = logrus.NewEntry(logrus.StandardLogger())
	}
	return &EmailNotifier{
		dialer: gomail.NewDialer(host, port, username, password),
		from:   from,
		logger: logger,
	}
}

// Notify sends the alert. An unset admin address suppresses the alert
// with a warning and returns nil.
func (n *EmailNotifier) Notify(ctx context.Context, tenant *models.Tenant, text string) error {
	if tenant.AdminEmail == nil || *tenant.AdminEmail == "" {
		n.logger.WithField("tenant_id", tenant.ID).Warn("admin alert suppressed: no admin address configured")
		return nil
	}

	m := gomail.NewMessage()
	m.SetHeader("From", n.from)
	m.SetHeader("To", *tenant.AdminEmail)
	m.SetHeader("Subject", fmt.Sprintf("[%s] Lead alert", tenant.Name))
	m.SetBody("text/plain", text)

	if err := n.dialer.DialAndSend(m); err != nil {
		return fmt.Errorf("notify: send admin alert: %w", err)
	}
	return nil
}

var _ AdminNotifier = (*EmailNotifier)(nil)
