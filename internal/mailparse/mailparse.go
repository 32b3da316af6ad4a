package mailparse

import (
	"bytes"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/mail"
	"strings"
	"time"

	"github.com/rescam/phishguard/internal/core"
	"github.com/rescam/phishguard/internal/utils"
)

// ParseMessage reads an RFC 822 message and converts it to the Email record
// used by the pipeline. Used by the SMTP ingestion path and the CLI, where
// mail arrives as raw wire bytes rather than Gmail API payloads.
func ParseMessage(r io.Reader) (*core.Email, error) {
	msg, err := mail.ReadMessage(r)
	if err != nil {
		return nil, fmt.Errorf("failed to parse message: %w", err)
	}

	email := &core.Email{
		From:    msg.Header.Get("From"),
		Subject: msg.Header.Get("Subject"),
		Headers: map[string][]string(msg.Header),
	}
	email.ID = strings.Trim(msg.Header.Get("Message-Id"), "<>")
	if email.ID == "" {
		email.ID = strings.Trim(msg.Header.Get("Message-ID"), "<>")
	}

	if to := msg.Header.Get("To"); to != "" {
		if addrs, err := msg.Header.AddressList("To"); err == nil {
			for _, a := range addrs {
				email.To = append(email.To, a.Address)
			}
		} else {
			email.To = []string{to}
		}
	}

	if date, err := msg.Header.Date(); err == nil {
		email.ReceivedAt = date.UTC()
	} else {
		email.ReceivedAt = time.Now().UTC()
	}

	body, err := extractText(msg)
	if err != nil {
		return nil, err
	}
	email.Body = body
	email.URLs = utils.ExtractURLs(body)
	return email, nil
}

// extractText pulls the text content out of the message body. Multipart
// messages contribute their text/plain parts concatenated in order; anything
// without a usable Content-Type falls back to the raw body.
func extractText(msg *mail.Message) (string, error) {
	contentType := msg.Header.Get("Content-Type")

	mediaType, params, err := mime.ParseMediaType(contentType)
	if err != nil || !strings.HasPrefix(mediaType, "multipart/") {
		bodyBytes, err := io.ReadAll(msg.Body)
		if err != nil {
			return "", fmt.Errorf("failed to read message body: %w", err)
		}
		return string(bodyBytes), nil
	}

	boundary, ok := params["boundary"]
	if !ok {
		bodyBytes, err := io.ReadAll(msg.Body)
		if err != nil {
			return "", fmt.Errorf("failed to read message body: %w", err)
		}
		return string(bodyBytes), nil
	}

	var text bytes.Buffer
	mr := multipart.NewReader(msg.Body, boundary)
	for {
		part, err := mr.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			// A truncated part list still yields whatever text preceded it.
			break
		}

		partType := strings.ToLower(part.Header.Get("Content-Type"))
		if strings.Contains(partType, "text/plain") || partType == "" {
			partBytes, err := io.ReadAll(part)
			if err != nil {
				continue
			}
			text.Write(partBytes)
			text.WriteString("\n")
		}
	}

	return text.String(), nil
}
