package utils

import (
	"bytes"
	"fmt"
	"io"
	"net/smtp"
	"strings"
	"time"

	"github.com/emersion/go-imap"
	imapclient "github.com/emersion/go-imap/client"
	"github.com/emersion/go-message/charset"
	"github.com/emersion/go-message/mail"
)

func init() {
	imap.CharsetReader = charset.Reader
}

// EmailClient sends campaign emails over SMTP and checks for replies over
// IMAP
type EmailClient struct {
	smtpHost string
	smtpPort int
	imapHost string
	imapPort int
	username string
	password string
}

// OutgoingEmail is one campaign email to deliver
type OutgoingEmail struct {
	From    string   `json:"from"`
	To      []string `json:"to"`
	Subject string   `json:"subject"`
	Body    string   `json:"body"`
	HTML    string   `json:"html,omitempty"`
}

// InboxMessage is a reply summary pulled over IMAP
type InboxMessage struct {
	From    string    `json:"from"`
	Subject string    `json:"subject"`
	Date    time.Time `json:"date"`
	Snippet string    `json:"snippet,omitempty"`
}

// NewEmailClient creates an email client. IMAP settings may be zero when
// only sending is needed.
func NewEmailClient(smtpHost string, smtpPort int, imapHost string, imapPort int, username, password string) *EmailClient {
	return &EmailClient{
		smtpHost: smtpHost,
		smtpPort: smtpPort,
		imapHost: imapHost,
		imapPort: imapPort,
		username: username,
		password: password,
	}
}

// Send delivers one email over SMTP
func (c *EmailClient) Send(message OutgoingEmail) error {
	if len(message.To) == 0 {
		return fmt.Errorf("email has no recipients")
	}

	body, err := buildMIME(message)
	if err != nil {
		return err
	}

	auth := smtp.PlainAuth("", c.username, c.password, c.smtpHost)
	addr := fmt.Sprintf("%s:%d", c.smtpHost, c.smtpPort)
	if err := smtp.SendMail(addr, auth, message.From, message.To, body); err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}
	return nil
}

// buildMIME renders the message with a plain part and an optional HTML
// alternative
func buildMIME(message OutgoingEmail) ([]byte, error) {
	var buf bytes.Buffer

	from, err := mail.ParseAddress(message.From)
	if err != nil {
		from = &mail.Address{Address: message.From}
	}
	to := make([]*mail.Address, len(message.To))
	for i, addr := range message.To {
		parsed, err := mail.ParseAddress(addr)
		if err != nil {
			parsed = &mail.Address{Address: addr}
		}
		to[i] = parsed
	}

	var header mail.Header
	header.SetDate(time.Now())
	header.SetAddressList("From", []*mail.Address{from})
	header.SetAddressList("To", to)
	header.SetSubject(message.Subject)

	writer, err := mail.CreateWriter(&buf, header)
	if err != nil {
		return nil, fmt.Errorf("failed to create message writer: %w", err)
	}

	inline, err := writer.CreateInline()
	if err != nil {
		return nil, fmt.Errorf("failed to create inline part: %w", err)
	}

	var textHeader mail.InlineHeader
	textHeader.SetContentType("text/plain", map[string]string{"charset": "utf-8"})
	textPart, err := inline.CreatePart(textHeader)
	if err != nil {
		return nil, fmt.Errorf("failed to create text part: %w", err)
	}
	io.WriteString(textPart, message.Body)
	textPart.Close()

	if message.HTML != "" {
		var htmlHeader mail.InlineHeader
		htmlHeader.SetContentType("text/html", map[string]string{"charset": "utf-8"})
		htmlPart, err := inline.CreatePart(htmlHeader)
		if err != nil {
			return nil, fmt.Errorf("failed to create html part: %w", err)
		}
		io.WriteString(htmlPart, message.HTML)
		htmlPart.Close()
	}

	inline.Close()
	writer.Close()
	return buf.Bytes(), nil
}

// FetchReplies returns messages received since the given time, newest
// last, up to limit
func (c *EmailClient) FetchReplies(since time.Time, limit uint32) ([]InboxMessage, error) {
	addr := fmt.Sprintf("%s:%d", c.imapHost, c.imapPort)
	conn, err := imapclient.DialTLS(addr, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to IMAP server: %w", err)
	}
	defer conn.Logout()

	if err := conn.Login(c.username, c.password); err != nil {
		return nil, fmt.Errorf("IMAP authentication failed: %w", err)
	}

	if _, err := conn.Select("INBOX", true); err != nil {
		return nil, fmt.Errorf("failed to select inbox: %w", err)
	}

	criteria := imap.NewSearchCriteria()
	criteria.Since = since
	ids, err := conn.Search(criteria)
	if err != nil {
		return nil, fmt.Errorf("IMAP search failed: %w", err)
	}
	if len(ids) == 0 {
		return nil, nil
	}
	if limit > 0 && uint32(len(ids)) > limit {
		ids = ids[uint32(len(ids))-limit:]
	}

	seqSet := new(imap.SeqSet)
	seqSet.AddNum(ids...)

	messages := make(chan *imap.Message, len(ids))
	if err := conn.Fetch(seqSet, []imap.FetchItem{imap.FetchEnvelope}, messages); err != nil {
		return nil, fmt.Errorf("IMAP fetch failed: %w", err)
	}

	var replies []InboxMessage
	for msg := range messages {
		if msg.Envelope == nil {
			continue
		}
		var from string
		if len(msg.Envelope.From) > 0 {
			from = msg.Envelope.From[0].Address()
		}
		replies = append(replies, InboxMessage{
			From:    from,
			Subject: msg.Envelope.Subject,
			Date:    msg.Envelope.Date,
			Snippet: strings.TrimSpace(msg.Envelope.Subject),
		})
	}
	return replies, nil
}
