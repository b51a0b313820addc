package utils

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/keighl/postmark"
	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"

	"storefront-api/models"
)

// Mailer delivers one message through a provider.
type Mailer interface {
	Send(to, subject, htmlBody, textBody string) error
}

type postmarkMailer struct {
	client *postmark.Client
	from   string
}

func (m *postmarkMailer) Send(to, subject, htmlBody, textBody string) error {
	_, err := m.client.SendEmail(postmark.Email{
		From:     m.from,
		To:       to,
		Subject:  subject,
		HtmlBody: htmlBody,
		TextBody: textBody,
	})
	return err
}

type sendgridMailer struct {
	client *sendgrid.Client
	from   string
}

func (m *sendgridMailer) Send(to, subject, htmlBody, textBody string) error {
	msg := mail.NewSingleEmail(mail.NewEmail("", m.from), subject, mail.NewEmail("", to), textBody, htmlBody)
	resp, err := m.client.Send(msg)
	if err != nil {
		return err
	}
	if resp.StatusCode >= 300 {
		return fmt.Errorf("sendgrid status %d: %s", resp.StatusCode, resp.Body)
	}
	return nil
}

// EmailService handles sending emails. A nil mailer makes every send a logged no-op.
type EmailService struct {
	mailer Mailer
}

// NewEmailService picks the provider named by provider ("postmark" or "sendgrid").
func NewEmailService(provider, sender, postmarkToken, sendgridKey string) *EmailService {
	switch {
	case sender == "":
		return &EmailService{}
	case provider == "sendgrid" && sendgridKey != "":
		return &EmailService{mailer: &sendgridMailer{client: sendgrid.NewSendClient(sendgridKey), from: sender}}
	case postmarkToken != "":
		return &EmailService{mailer: &postmarkMailer{client: postmark.NewClient(postmarkToken, ""), from: sender}}
	default:
		return &EmailService{}
	}
}

// NewEmailServiceWithMailer wires an explicit mailer.
func NewEmailServiceWithMailer(m Mailer) *EmailService {
	return &EmailService{mailer: m}
}

// Enabled reports whether a provider is configured.
func (es *EmailService) Enabled() bool {
	return es != nil && es.mailer != nil
}

// SendEmail sends a basic email to the specified recipient
func (es *EmailService) SendEmail(toEmail, subject, htmlContent string) error {
	if !es.Enabled() {
		slog.Debug("email disabled, dropping message", slog.String("to", toEmail), slog.String("subject", subject))
		return nil
	}
	if err := es.mailer.Send(toEmail, subject, htmlContent, stripTags(htmlContent)); err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}
	slog.Info("email sent", slog.String("to", toEmail), slog.String("subject", subject))
	return nil
}

// SendOrderConfirmationEmail sends an order confirmation email to the user
func (es *EmailService) SendOrderConfirmationEmail(event models.OrderEvent) error {
	subject := fmt.Sprintf("Order Confirmation %s", event.OrderID)
	htmlContent := fmt.Sprintf(
		"<strong>Dear %s,</strong><br><br>Thank you for your purchase! Your order <strong>%s</strong> has been placed successfully.<br><br>Total Amount: <strong>%s</strong><br>Payment Method: <strong>%s</strong><br>Payment Status: <strong>%s</strong><br><br>Thank you for shopping with us!",
		event.Name,
		event.OrderID,
		FormatVND(event.TotalAmount),
		event.PaymentMethod,
		event.PaymentStatus,
	)
	return es.SendEmail(event.Email, subject, htmlContent)
}

// SendOrderStatusEmail tells the customer their order moved to a new status.
func (es *EmailService) SendOrderStatusEmail(toEmail, name, orderID, status string) error {
	subject := "Order Status Updated"
	htmlContent := fmt.Sprintf(
		"<strong>Dear %s,</strong><br><br>Your order (ID: %s) is now <strong>%s</strong>.<br><br>Thank you for shopping with us!",
		name, orderID, status,
	)
	return es.SendEmail(toEmail, subject, htmlContent)
}

func stripTags(s string) string {
	s = strings.ReplaceAll(s, "<br>", "\n")
	var b strings.Builder
	inTag := false
	for _, r := range s {
		switch {
		case r == '<':
			inTag = true
		case r == '>':
			inTag = false
		case !inTag:
			b.WriteRune(r)
		}
	}
	return b.String()
}

// SendWelcomeEmail greets a newly registered user.
func (es *EmailService) SendWelcomeEmail(toEmail, name string) error {
	subject := "Welcome to our store"
	htmlContent := fmt.Sprintf(
		"<strong>Hi %s,</strong><br><br>Your account has been created. Happy shopping!",
		name,
	)
	return es.SendEmail(toEmail, subject, htmlContent)
}
