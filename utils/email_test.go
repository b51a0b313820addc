package utils

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"storefront-api/models"
)

type recordingMailer struct {
	to, subject, html, text string
	err                     error
}

func (m *recordingMailer) Send(to, subject, htmlBody, textBody string) error {
	m.to, m.subject, m.html, m.text = to, subject, htmlBody, textBody
	return m.err
}

func TestSendOrderConfirmationEmail(t *testing.T) {
	m := &recordingMailer{}
	es := NewEmailServiceWithMailer(m)

	err := es.SendOrderConfirmationEmail(models.OrderEvent{
		OrderID:       "ORD-ABC",
		Email:         "buyer@example.com",
		Name:          "Lan",
		TotalAmount:   1250000,
		PaymentMethod: models.PaymentMethodCOD,
		PaymentStatus: models.PaymentStatusPending,
	})
	require.NoError(t, err)
	assert.Equal(t, "buyer@example.com", m.to)
	assert.Contains(t, m.subject, "ORD-ABC")
	assert.Contains(t, m.html, "1.250.000 ₫")
	assert.NotContains(t, m.text, "<strong>")
}

func TestSendEmailWrapsProviderError(t *testing.T) {
	es := NewEmailServiceWithMailer(&recordingMailer{err: errors.New("boom")})
	err := es.SendEmail("a@b.c", "s", "body")
	assert.ErrorContains(t, err, "failed to send email")
}

func TestDisabledEmailServiceIsNoop(t *testing.T) {
	es := NewEmailService("postmark", "", "", "")
	assert.False(t, es.Enabled())
	assert.NoError(t, es.SendEmail("a@b.c", "s", "body"))
}

func TestFormatVND(t *testing.T) {
	assert.Equal(t, "0 ₫", FormatVND(0))
	assert.Equal(t, "999 ₫", FormatVND(999))
	assert.Equal(t, "1.000 ₫", FormatVND(1000))
	assert.Equal(t, "12.345.678 ₫", FormatVND(12345678.4))
	assert.Equal(t, "-50.000 ₫", FormatVND(-50000))
}
