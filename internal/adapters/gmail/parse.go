package gmail

import (
	"encoding/base64"
	"strings"
	"time"

	gmailapi "google.golang.org/api/gmail/v1"

	"github.com/rescam/phishguard/internal/core"
	"github.com/rescam/phishguard/internal/utils"
)

// parseMessage converts a Gmail API message into the immutable Email record
// consumed by the pipeline.
func parseMessage(msg *gmailapi.Message) *core.Email {
	email := &core.Email{
		ID:       msg.Id,
		ThreadID: msg.ThreadId,
		Snippet:  msg.Snippet,
		Headers:  map[string][]string{},
	}
	if msg.InternalDate > 0 {
		email.ReceivedAt = time.Unix(msg.InternalDate/1000, 0).UTC()
	}

	if msg.Payload != nil {
		for _, h := range msg.Payload.Headers {
			email.Headers[h.Name] = append(email.Headers[h.Name], h.Value)
			switch h.Name {
			case "From":
				email.From = h.Value
			case "To":
				email.To = parseAddresses(h.Value)
			case "Subject":
				email.Subject = h.Value
			}
		}
		email.Body = extractBody(msg.Payload)
	}

	email.URLs = utils.ExtractURLs(email.Body)
	return email
}

// extractBody pulls the plain-text body out of the message payload,
// preferring text/plain parts and falling back to text/html. Nested
// multiparts are walked depth-first.
func extractBody(payload *gmailapi.MessagePart) string {
	if text := findPart(payload, "text/plain"); text != "" {
		return text
	}
	return findPart(payload, "text/html")
}

func findPart(part *gmailapi.MessagePart, mimeType string) string {
	if part == nil {
		return ""
	}
	if strings.HasPrefix(part.MimeType, mimeType) && part.Body != nil && part.Body.Data != "" {
		return decodeBody(part.Body.Data)
	}
	for _, p := range part.Parts {
		if text := findPart(p, mimeType); text != "" {
			return text
		}
	}
	return ""
}

// decodeBody decodes the Gmail API's URL-safe base64 body data, tolerating
// the standard alphabet too.
func decodeBody(data string) string {
	if decoded, err := base64.URLEncoding.DecodeString(data); err == nil {
		return string(decoded)
	}
	if decoded, err := base64.RawURLEncoding.DecodeString(data); err == nil {
		return string(decoded)
	}
	if decoded, err := base64.StdEncoding.DecodeString(data); err == nil {
		return string(decoded)
	}
	return ""
}

func parseAddresses(header string) []string {
	parts := strings.Split(header, ",")
	addrs := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			addrs = append(addrs, p)
		}
	}
	return addrs
}
