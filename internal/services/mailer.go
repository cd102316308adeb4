package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"storefront-api/internal/config"
	"storefront-api/internal/models"
	"storefront-api/pkg/logging"

	brevo "github.com/getbrevo/brevo-go/lib"
)

// Mailer sends templated transactional emails through Brevo. All sends on
// the payment pipeline are best-effort: failures are logged, never
// propagated to the caller.
type Mailer struct {
	client    *brevo.APIClient
	fromEmail string
	fromName  string
	storeName string
}

// NewMailer creates a mailer from the app configuration. When no Brevo API
// key is configured the mailer logs and drops every send.
func NewMailer() *Mailer {
	m := &Mailer{
		fromEmail: config.AppConfig.BrevoFromEmail,
		fromName:  config.AppConfig.BrevoFromName,
		storeName: config.AppConfig.ServiceName,
	}

	if config.AppConfig.BrevoAPIKey != "" {
		cfg := brevo.NewConfiguration()
		cfg.AddDefaultHeader("api-key", config.AppConfig.BrevoAPIKey)
		m.client = brevo.NewAPIClient(cfg)
	}

	return m
}

// SendAsync runs a send in its own goroutine and logs the outcome
func (m *Mailer) SendAsync(send func(*Mailer) error) {
	go func() {
		if err := send(m); err != nil {
			logging.Warnf("Failed to send email: %v", err)
		}
	}()
}

// SendWelcomeEmail sends the account welcome / verification email
func (m *Mailer) SendWelcomeEmail(to, name, verificationLink string) error {
	subject := fmt.Sprintf("Welcome to %s", m.storeName)
	html := fmt.Sprintf(`
		<div style="font-family: Arial, sans-serif; max-width: 600px; margin: 0 auto; padding: 20px;">
			<h1 style="color: #333;">Welcome, %s!</h1>
			<p style="color: #666;">Thanks for shopping with %s. Please verify your email address to activate your account.</p>
			<p><a href="%s" style="background-color: #007bff; color: white; padding: 12px 24px; border-radius: 6px; text-decoration: none;">Verify email</a></p>
		</div>
	`, displayName(name), m.storeName, verificationLink)

	return m.send(to, name, subject, html)
}

// SendGuestCredentialsEmail tells a guest customer an account was created
// for them at checkout, including the generated password
func (m *Mailer) SendGuestCredentialsEmail(to, name, password, loginLink string) error {
	subject := "An account was created for you"
	html := fmt.Sprintf(`
		<div style="font-family: Arial, sans-serif; max-width: 600px; margin: 0 auto; padding: 20px;">
			<h1 style="color: #333;">Hello, %s</h1>
			<p style="color: #666;">We created an account for you while processing your order. You can sign in with this password:</p>
			<div style="background-color: #f8f9fa; padding: 16px; border-radius: 6px; font-size: 20px; font-weight: bold;">%s</div>
			<p style="color: #999; font-size: 14px;">Please change it after your first login.</p>
			<p><a href="%s">Sign in</a></p>
		</div>
	`, displayName(name), password, loginLink)

	return m.send(to, name, subject, html)
}

// SendOrderConfirmationEmail sends the order received email with the line
// items listed
func (m *Mailer) SendOrderConfirmationEmail(to, name string, order *models.Order) error {
	subject := "Your order is received"

	var items strings.Builder
	items.WriteString("<ul>")
	for _, item := range order.Items {
		items.WriteString(fmt.Sprintf("<li>%s x%d - %.2f</li>", item.Name, item.Quantity, item.LineTotal))
	}
	items.WriteString("</ul>")

	html := fmt.Sprintf(`
		<div style="font-family: Arial, sans-serif; max-width: 600px; margin: 0 auto; padding: 20px;">
			<h1 style="color: #333;">Thanks for your order, %s!</h1>
			<p style="color: #666;">Order reference: %s</p>
			%s
			<p style="font-size: 18px;"><strong>Total: %.2f</strong></p>
			<p><a href="%s/orders">View your orders</a></p>
		</div>
	`, displayName(name), order.TxRef, items.String(), order.TotalPrice, config.AppConfig.StoreBaseURL)

	return m.send(to, name, subject, html)
}

func (m *Mailer) send(to, name, subject, html string) error {
	if m.client == nil {
		logging.Warnf("Brevo API key not configured, dropping email to %s (%s)", to, subject)
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	email := brevo.SendSmtpEmail{
		Sender: &brevo.SendSmtpEmailSender{
			Name:  m.fromName,
			Email: m.fromEmail,
		},
		To: []brevo.SendSmtpEmailTo{
			{Email: to, Name: name},
		},
		Subject:     subject,
		HtmlContent: html,
	}

	_, resp, err := m.client.TransactionalEmailsApi.SendTransacEmail(ctx, email)
	if err != nil {
		return fmt.Errorf("brevo send failed: %w", err)
	}
	if resp != nil && resp.StatusCode >= 300 {
		return fmt.Errorf("brevo API error: status %d", resp.StatusCode)
	}

	logging.Infof("Email sent to %s: %s", to, subject)
	return nil
}

func displayName(name string) string {
	if name == "" {
		return "there"
	}
	return name
}
