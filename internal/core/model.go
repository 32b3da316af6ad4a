package core

import (
	"fmt"
	"strings"
	"time"
)

// Category is the risk label assigned to an email.
type Category string

const (
	CategoryBenign     Category = "benign"
	CategorySpam       Category = "spam"
	CategoryScam       Category = "scam"
	CategorySuspicious Category = "suspicious"
)

// Valid reports whether the category is one of the fixed set.
func (c Category) Valid() bool {
	switch c {
	case CategoryBenign, CategorySpam, CategoryScam, CategorySuspicious:
		return true
	}
	return false
}

// Action is the recommended treatment for a classified email.
type Action string

const (
	ActionAllow          Action = "allow"
	ActionQuarantine     Action = "quarantine"
	ActionWarnUser       Action = "warn_user"
	ActionBlockSender    Action = "block_sender"
	ActionReportPhishing Action = "report_phishing"
)

// Valid reports whether the action is one of the fixed set.
func (a Action) Valid() bool {
	switch a {
	case ActionAllow, ActionQuarantine, ActionWarnUser, ActionBlockSender, ActionReportPhishing:
		return true
	}
	return false
}

// Email represents an ingested email message. It is immutable once created.
type Email struct {
	ID         string
	ThreadID   string
	From       string
	To         []string
	Subject    string
	Body       string
	Snippet    string
	ReceivedAt time.Time
	URLs       []string
	Headers    map[string][]string
}

// EmbeddingText returns the text form that gets embedded. The same form must
// be used when indexing the reference corpus and when querying.
func (e *Email) EmbeddingText() string {
	return fmt.Sprintf("Subject: %s\n\n%s", e.Subject, e.Body)
}

// SenderDomain extracts the domain part of the From address.
func (e *Email) SenderDomain() string {
	addr := e.From
	if start := strings.LastIndex(addr, "<"); start >= 0 {
		if end := strings.Index(addr[start:], ">"); end > 0 {
			addr = addr[start+1 : start+end]
		}
	}
	parts := strings.Split(addr, "@")
	if len(parts) != 2 {
		return ""
	}
	return strings.ToLower(strings.TrimSpace(parts[1]))
}

// Neighbor is one hit from the vector index.
type Neighbor struct {
	ID       string
	Distance float32
	Sender   string
	Subject  string
	Label    string
}

// RetrievalResult is the ordered neighbor list for one classification
// request, most similar first. It exists only for the duration of that
// request.
type RetrievalResult struct {
	Neighbors []Neighbor
}

// Context formats the neighbors as supporting context for the model prompt.
func (r *RetrievalResult) Context() string {
	if r == nil || len(r.Neighbors) == 0 {
		return "No similar emails found."
	}
	lines := make([]string, 0, len(r.Neighbors))
	for _, n := range r.Neighbors {
		line := fmt.Sprintf("- ID: %s, Distance: %.4f", n.ID, n.Distance)
		if n.Sender != "" {
			line += fmt.Sprintf(", Sender: %s", n.Sender)
		}
		if n.Subject != "" {
			line += fmt.Sprintf(", Subject: %s", n.Subject)
		}
		if n.Label != "" {
			line += fmt.Sprintf(", Label: %s", strings.ToUpper(n.Label))
		}
		lines = append(lines, line)
	}
	return strings.Join(lines, "\n")
}

// Evidence is a quote backing the classification, tagged by where it came
// from ("current_email" or "rag").
type Evidence struct {
	Source string `json:"source"`
	Quote  string `json:"quote"`
}

// ParsedFields are the sender/link/attachment details the model extracted.
type ParsedFields struct {
	SenderDisplay string   `json:"sender_display"`
	SenderEmail   string   `json:"sender_email"`
	FromDomain    string   `json:"from_domain"`
	ReplyTo       string   `json:"reply_to"`
	Links         []string `json:"links"`
	Attachments   []string `json:"attachments"`
	HeadersUsed   bool     `json:"headers_used"`
}

// Classification is the structured verdict for one email. Created once per
// processed message and never mutated; a re-run produces a new record.
type Classification struct {
	Category          Category     `json:"classification"`
	Confidence        float64      `json:"confidence"`
	PrimaryReason     string       `json:"primary_reason"`
	Indicators        []string     `json:"indicators"`
	Evidence          []Evidence   `json:"evidence"`
	Parsed            ParsedFields `json:"parsed"`
	RecommendedAction Action       `json:"recommended_action"`
	ModelUsed         string       `json:"model_used,omitempty"`
	AnalyzedAt        time.Time    `json:"analyzed_at"`
}

// FallbackClassification is the degraded record used when the model response
// could not be parsed even after a re-ask.
func FallbackClassification(reason, model string) *Classification {
	if reason == "" {
		reason = "model response could not be parsed"
	}
	return &Classification{
		Category:          CategorySuspicious,
		Confidence:        0.2,
		PrimaryReason:     reason,
		Indicators:        []string{"model_response_unparsable"},
		RecommendedAction: ActionWarnUser,
		ModelUsed:         model,
		AnalyzedAt:        time.Now().UTC(),
	}
}

// StoredRecord is the persisted form of a classified email, keyed by
// (user, message id) in the result store.
type StoredRecord struct {
	ID             string          `json:"id"`
	ThreadID       string          `json:"threadId,omitempty"`
	Sender         string          `json:"sender"`
	Subject        string          `json:"subject"`
	Snippet        string          `json:"snippet,omitempty"`
	ReceivedAt     time.Time       `json:"receivedAt"`
	ProcessedAt    time.Time       `json:"processedAt"`
	Classification *Classification `json:"classification"`
}

// WatchState is the per-user cursor into the upstream history stream. It is
// read at the start of each notification and advanced after each batch.
type WatchState struct {
	User      string    `json:"user"`
	HistoryID uint64    `json:"historyId"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// WatchRegistration is the result of registering a mailbox watch.
type WatchRegistration struct {
	HistoryID  uint64    `json:"historyId"`
	Expiration time.Time `json:"expiration"`
}

// FailureRecord captures a message that was dropped after retries. It is the
// operator-visible trace of an otherwise silent failure.
type FailureRecord struct {
	MessageID  string    `json:"messageId"`
	Stage      string    `json:"stage"`
	Error      string    `json:"error"`
	OccurredAt time.Time `json:"occurredAt"`
}
