package reader

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/emersion/go-imap"
	"github.com/emersion/go-imap/client"
	"github.com/emersion/go-message/mail"

	"fjacquet/budget-import/internal/importerror"
	"fjacquet/budget-import/internal/logging"
	"fjacquet/budget-import/internal/models"
)

// DefaultMailKeywords mark a subject as transaction-likely.
var DefaultMailKeywords = []string{
	"receipt", "payment", "order", "transaction", "purchase", "invoice",
}

// MailReader scans an IMAP mailbox for transaction-notification messages
// and yields one RawUnit per matching message body. The session lives
// for one import invocation: Connect, Scan, Close.
type MailReader struct {
	folder   string
	keywords []string
	senders  []string
	log      logging.Logger

	client *client.Client
}

// NewMailReader creates a mail reader. Empty keywords fall back to
// DefaultMailKeywords; an empty sender list accepts any sender.
func NewMailReader(folder string, keywords, senders []string, log logging.Logger) *MailReader {
	if folder == "" {
		folder = "INBOX"
	}
	if len(keywords) == 0 {
		keywords = DefaultMailKeywords
	}
	if log == nil {
		log = logging.GetLogger()
	}
	return &MailReader{
		folder:   folder,
		keywords: keywords,
		senders:  senders,
		log:      log,
	}
}

// Connect dials the IMAP server over TLS and logs in. Gmail needs an app
// password here, not the account password.
func (r *MailReader) Connect(addr, username, password string) error {
	c, err := client.DialTLS(addr, nil)
	if err != nil {
		return fmt.Errorf("connecting to %s: %w", addr, err)
	}
	if err := c.Login(username, password); err != nil {
		_ = c.Logout()
		return fmt.Errorf("login failed for %s: %w", username, err)
	}

	r.client = c
	r.log.Info("Connected to mail server",
		logging.Field{Key: "server", Value: addr},
		logging.Field{Key: "user", Value: username})
	return nil
}

// Scan selects the folder and returns one unit per message since the
// given date whose subject and sender pass the transaction-likely
// filter. Per-message failures are reported and skipped.
func (r *MailReader) Scan(since time.Time) ([]models.RawUnit, []error, error) {
	if r.client == nil {
		return nil, nil, fmt.Errorf("not connected; call Connect first")
	}

	if _, err := r.client.Select(r.folder, true); err != nil {
		return nil, nil, fmt.Errorf("selecting folder %s: %w", r.folder, err)
	}

	criteria := imap.NewSearchCriteria()
	criteria.Since = since
	ids, err := r.client.Search(criteria)
	if err != nil {
		return nil, nil, fmt.Errorf("searching mailbox: %w", err)
	}
	if len(ids) == 0 {
		return nil, nil, nil
	}

	seqset := new(imap.SeqSet)
	seqset.AddNum(ids...)

	section := &imap.BodySectionName{Peek: true}
	items := []imap.FetchItem{imap.FetchEnvelope, section.FetchItem()}

	messages := make(chan *imap.Message, 10)
	fetchDone := make(chan error, 1)
	go func() {
		fetchDone <- r.client.Fetch(seqset, items, messages)
	}()

	var units []models.RawUnit
	var unitErrs []error
	for msg := range messages {
		unit, err := r.messageUnit(msg, section)
		if err != nil {
			unitErrs = append(unitErrs, err)
			continue
		}
		if unit != nil {
			units = append(units, *unit)
		}
	}

	if err := <-fetchDone; err != nil {
		return units, unitErrs, fmt.Errorf("fetching messages: %w", err)
	}

	r.log.Info("Scanned mailbox",
		logging.Field{Key: "matched", Value: len(units)},
		logging.Field{Key: "searched", Value: len(ids)})
	return units, unitErrs, nil
}

// Close logs out of the session.
func (r *MailReader) Close() error {
	if r.client == nil {
		return nil
	}
	err := r.client.Logout()
	r.client = nil
	return err
}

// messageUnit filters one message and extracts its text body. A nil unit
// with nil error means the message was filtered out.
func (r *MailReader) messageUnit(msg *imap.Message, section *imap.BodySectionName) (*models.RawUnit, error) {
	if msg.Envelope == nil {
		return nil, nil
	}

	origin := msg.Envelope.MessageId
	if origin == "" {
		origin = fmt.Sprintf("uid-%d", msg.SeqNum)
	}

	if !r.shouldProcess(msg.Envelope) {
		return nil, nil
	}

	body := msg.GetBody(section)
	if body == nil {
		return nil, &importerror.ReaderError{
			Source: string(models.SourceEmail),
			Unit:   origin,
			Err:    fmt.Errorf("server returned no body section"),
		}
	}

	text, err := extractTextBody(body)
	if err != nil {
		return nil, &importerror.ReaderError{
			Source: string(models.SourceEmail),
			Unit:   origin,
			Err:    err,
		}
	}
	if strings.TrimSpace(text) == "" {
		return nil, nil
	}

	captured := msg.Envelope.Date
	if captured.IsZero() {
		captured = time.Now().UTC()
	}

	return &models.RawUnit{
		Kind:       models.SourceEmail,
		Origin:     origin,
		Text:       text,
		CapturedAt: captured,
	}, nil
}

// shouldProcess applies the subject-keyword and sender filters.
func (r *MailReader) shouldProcess(env *imap.Envelope) bool {
	subject := strings.ToLower(env.Subject)
	matched := false
	for _, kw := range r.keywords {
		if strings.Contains(subject, strings.ToLower(kw)) {
			matched = true
			break
		}
	}
	if !matched {
		return false
	}

	if len(r.senders) == 0 {
		return true
	}
	for _, from := range env.From {
		addr := strings.ToLower(from.Address())
		for _, s := range r.senders {
			if strings.Contains(addr, strings.ToLower(s)) {
				return true
			}
		}
	}
	return false
}

// extractTextBody walks the MIME structure and concatenates text/plain
// parts, skipping attachments.
func extractTextBody(body io.Reader) (string, error) {
	mr, err := mail.CreateReader(body)
	if err != nil {
		return "", fmt.Errorf("parsing message: %w", err)
	}

	var sb strings.Builder
	for {
		part, err := mr.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", fmt.Errorf("reading message part: %w", err)
		}

		if h, ok := part.Header.(*mail.InlineHeader); ok {
			contentType, _, err := h.ContentType()
			if err != nil || contentType != "text/plain" {
				continue
			}
			data, err := io.ReadAll(part.Body)
			if err != nil {
				return "", fmt.Errorf("reading message body: %w", err)
			}
			sb.Write(data)
		}
	}
	return sb.String(), nil
}
