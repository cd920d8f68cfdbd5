package reader

import (
	"strings"
	"testing"
	"time"

	"github.com/emersion/go-imap"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fjacquet/budget-import/internal/logging"
)

func envelope(subject string, fromAddrs ...string) *imap.Envelope {
	env := &imap.Envelope{Subject: subject}
	for _, addr := range fromAddrs {
		at := strings.LastIndex(addr, "@")
		env.From = append(env.From, &imap.Address{
			MailboxName: addr[:at],
			HostName:    addr[at+1:],
		})
	}
	return env
}

func TestShouldProcessKeywords(t *testing.T) {
	reader := NewMailReader("", nil, nil, logging.NewMockLogger())

	tests := []struct {
		name     string
		subject  string
		expected bool
	}{
		{"Receipt subject", "Your receipt from Coffee Shop", true},
		{"Payment subject", "Payment confirmation #4412", true},
		{"Order subject", "Order shipped", true},
		{"Invoice subject", "INVOICE 2025-044", true},
		{"Case insensitive", "YOUR RECEIPT", true},
		{"Newsletter", "Weekly newsletter", false},
		{"Empty subject", "", false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			env := envelope(tc.subject, "noreply@shop.example")
			assert.Equal(t, tc.expected, reader.shouldProcess(env))
		})
	}
}

func TestShouldProcessCustomKeywords(t *testing.T) {
	reader := NewMailReader("", []string{"abbuchung"}, nil, logging.NewMockLogger())

	assert.True(t, reader.shouldProcess(envelope("Abbuchung von Ihrem Konto", "bank@example.com")))
	assert.False(t, reader.shouldProcess(envelope("Your receipt", "shop@example.com")),
		"custom keywords replace the defaults")
}

func TestShouldProcessSenderFilter(t *testing.T) {
	reader := NewMailReader("", nil, []string{"paypal.com", "mybank"}, logging.NewMockLogger())

	tests := []struct {
		name     string
		from     string
		expected bool
	}{
		{"Allowed domain", "service@paypal.com", true},
		{"Allowed substring", "alerts@mybank.example", true},
		{"Other sender", "noreply@shop.example", false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			env := envelope("Your receipt", tc.from)
			assert.Equal(t, tc.expected, reader.shouldProcess(env))
		})
	}
}

func TestMailReaderDefaults(t *testing.T) {
	reader := NewMailReader("", nil, nil, logging.NewMockLogger())
	assert.Equal(t, "INBOX", reader.folder)
	assert.Equal(t, DefaultMailKeywords, reader.keywords)
}

func TestScanRequiresConnection(t *testing.T) {
	reader := NewMailReader("", nil, nil, logging.NewMockLogger())
	_, _, err := reader.Scan(time.Time{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not connected")
}

func TestCloseWithoutConnection(t *testing.T) {
	reader := NewMailReader("", nil, nil, logging.NewMockLogger())
	assert.NoError(t, reader.Close())
}

func TestExtractTextBody(t *testing.T) {
	raw := "From: shop@example.com\r\n" +
		"To: me@example.com\r\n" +
		"Subject: Your receipt\r\n" +
		"Content-Type: text/plain; charset=utf-8\r\n" +
		"\r\n" +
		"Coffee Shop\r\nTotal: 5.50\r\nDate: 2025-01-10\r\n"

	text, err := extractTextBody(strings.NewReader(raw))
	require.NoError(t, err)
	assert.Contains(t, text, "Coffee Shop")
	assert.Contains(t, text, "5.50")
}

func TestExtractTextBodyMultipart(t *testing.T) {
	raw := "From: shop@example.com\r\n" +
		"To: me@example.com\r\n" +
		"Subject: Your receipt\r\n" +
		"MIME-Version: 1.0\r\n" +
		"Content-Type: multipart/alternative; boundary=sep\r\n" +
		"\r\n" +
		"--sep\r\n" +
		"Content-Type: text/plain; charset=utf-8\r\n" +
		"\r\n" +
		"Total: 5.50\r\n" +
		"--sep\r\n" +
		"Content-Type: text/html; charset=utf-8\r\n" +
		"\r\n" +
		"<p>Total: 5.50</p>\r\n" +
		"--sep--\r\n"

	text, err := extractTextBody(strings.NewReader(raw))
	require.NoError(t, err)
	assert.Contains(t, text, "Total: 5.50")
	assert.NotContains(t, text, "<p>", "html parts are skipped")
}
