package services

import (
	"fmt"
	"time"

	"guardian-api/internal/catalog"
	"guardian-api/internal/config"
	"guardian-api/pkg/logging"
)

// Notifier delivers entitlements to buyers by email, best effort. Delivery
// failure never reverses a completed purchase or un-issues a key; the caller
// is told to surface the download link directly instead.
type Notifier struct {
	mailer      Mailer
	serviceName string
	adminEmail  string
	retry       RetryPolicy
}

// NewNotifier creates a notifier with a bounded-retry policy.
func NewNotifier(cfg *config.Config, mailer Mailer) *Notifier {
	return &Notifier{
		mailer:      mailer,
		serviceName: cfg.ServiceName,
		adminEmail:  cfg.AdminEmail,
		retry:       RetryPolicy{Attempts: 3, Delay: 500 * time.Millisecond},
	}
}

// SetRetryPolicy overrides the default retry behaviour.
func (n *Notifier) SetRetryPolicy(policy RetryPolicy) {
	n.retry = policy
}

// Notify emails the activation key and download link to the buyer. It never
// returns an error: transport failures are logged and reported as false.
func (n *Notifier) Notify(buyerEmail string, product *catalog.Product, activationKey, downloadLink string) bool {
	subject := fmt.Sprintf("Your %s activation key", product.Name)
	body := activationEmailBody(n.serviceName, product, activationKey, downloadLink)

	err := retryWithBackoff(n.retry, func() error {
		return n.mailer.Send(buyerEmail, subject, body, true)
	})
	if err != nil {
		logging.Errorf("Activation email to %s failed: %v", buyerEmail, err)
		return false
	}
	logging.Infof("Activation email sent to %s for product %s", buyerEmail, product.ID)
	return true
}

// NotifyContact forwards a contact-form submission to the admin address.
func (n *Notifier) NotifyContact(name, email, message string) bool {
	if n.adminEmail == "" {
		logging.Errorf("Contact notification dropped: ADMIN_EMAIL not configured")
		return false
	}
	subject := fmt.Sprintf("New contact form submission from %s", name)
	body := fmt.Sprintf("Name: %s\nEmail: %s\nSubmitted: %s\n\n%s",
		name, email, time.Now().UTC().Format(time.RFC3339), message)

	err := retryWithBackoff(n.retry, func() error {
		return n.mailer.Send(n.adminEmail, subject, body, false)
	})
	if err != nil {
		logging.Errorf("Contact notification from %s failed: %v", email, err)
		return false
	}
	return true
}

func activationEmailBody(serviceName string, product *catalog.Product, activationKey, downloadLink string) string {
	return fmt.Sprintf(`<!DOCTYPE html>
<html>
<body style="font-family: Arial, sans-serif; max-width: 600px; margin: 0 auto; padding: 20px;">
	<div style="background-color: #f8f9fa; padding: 30px; border-radius: 10px;">
		<h1 style="color: #333;">Thank you for purchasing %s!</h1>
		<p style="color: #666; font-size: 16px;">Your activation key:</p>
		<div style="background-color: #007bff; color: white; padding: 20px; border-radius: 10px; font-size: 24px; font-weight: bold; letter-spacing: 2px; text-align: center;">
			%s
		</div>
		<p style="color: #666; font-size: 16px; margin-top: 20px;">
			Download your copy here: <a href="%s">%s</a>
		</p>
		<p style="color: #999; font-size: 14px;">Version %s. Keep this email; the key is required for activation.</p>
		<p style="color: #999; font-size: 12px; margin-top: 30px;">%s</p>
	</div>
</body>
</html>`, product.Name, activationKey, downloadLink, downloadLink, product.Version, serviceName)
}
