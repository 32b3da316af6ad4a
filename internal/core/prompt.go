package core

import (
	"encoding/json"
	"fmt"
	"strings"
)

const classificationPrompt = `You are an intelligent email risk classifier.
You receive the current email (body and optional headers) and a retrieval-augmented
context (RAG) containing samples of this user's previous emails.

## Objective

Classify the email as one of:

* benign - expected or legitimate message
* spam - unsolicited or irrelevant marketing/bulk message
* scam - deceptive or malicious message attempting to obtain money, credentials, or sensitive information
* suspicious - signals of risk present, but insufficient evidence for clear classification

Provide a short, evidence-based rationale explaining why you chose that label.

## What the RAG contains

The RAG lists past messages, both legitimate and malicious, with metadata such
as sender address, domain, subject line, similarity distance and, where known,
a label (PHISHING or LEGITIMATE). Use it to check whether this sender or
domain has appeared before, whether similar wording matches known spam/scam
patterns, and whether similar messages were legitimate in the past.

## Classification heuristics

Consider sender identity and domain similarity to known contacts, lookalike
domains or spoofing attempts, unusual reply-to addresses, urgent or
threatening language, requests for payments, credentials, or MFA codes,
suspicious attachments or links (shortened, IP-only, mismatched anchors),
thread hijacking or fake invoice patterns, and consistency with previous
legitimate correspondence from the RAG.

## Output format

Return only a single JSON object in the following structure:

{
  "classification": "benign | spam | scam | suspicious",
  "confidence": 0.0,
  "primary_reason": "under 40 words summarizing the decisive signals",
  "indicators": ["mismatched_sender", "lookalike_domain", "unknown_sender_no_history", "urgent_language", "payment_request", "credential_harvest", "attachment_risky", "link_shortener", "dkim_spf_dmarc_fail", "thread_hijack", "known_contact_match", "bulk_marketing_traits", "headers_missing", "rag_empty"],
  "evidence": [
    {"source": "current_email", "quote": "short quote"},
    {"source": "rag", "quote": "short quote or match summary"}
  ],
  "parsed": {
    "sender_display": "",
    "sender_email": "",
    "from_domain": "",
    "reply_to": "",
    "links": ["extracted domains/URLs if any"],
    "attachments": ["names/extensions if any"],
    "headers_used": true
  },
  "recommended_action": "allow | quarantine | warn_user | block_sender | report_phishing"
}

Include only the indicators that actually apply.

## Inputs

CURRENT_EMAIL:
---
From: %s
To: %s
Subject: %s

%s
---

RAG_CONTEXT:
---
%s
---

Now use the email and relevant RAG context to infer risk, then output your
classification and reasoning strictly in the JSON format above, with no extra
text or commentary.`

// BuildClassificationPrompt assembles the full model prompt for one email.
// The body is expected to already be truncated/sanitized by the caller.
func BuildClassificationPrompt(email *Email, body, ragContext string) string {
	to := ""
	if len(email.To) > 0 {
		to = email.To[0]
		if len(email.To) > 1 {
			to += fmt.Sprintf(" and %d others", len(email.To)-1)
		}
	}
	if ragContext == "" {
		ragContext = "No similar emails found."
	}
	return fmt.Sprintf(classificationPrompt, email.From, to, email.Subject, body, ragContext)
}

// ParseClassification parses a model text response into a Classification.
// Models sometimes wrap the JSON in markdown fences or prose, so when a
// strict unmarshal fails the text between the first '{' and the last '}' is
// tried before giving up. A response whose category or action is outside the
// fixed sets is rejected with ErrUnparsableResponse.
func ParseClassification(text string) (*Classification, error) {
	var c Classification
	if err := json.Unmarshal([]byte(text), &c); err != nil {
		start := strings.Index(text, "{")
		end := strings.LastIndex(text, "}")
		if start < 0 || end <= start {
			return nil, fmt.Errorf("%w: no JSON object in response", ErrUnparsableResponse)
		}
		if err := json.Unmarshal([]byte(text[start:end+1]), &c); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrUnparsableResponse, err)
		}
	}

	if !c.Category.Valid() {
		return nil, fmt.Errorf("%w: unknown category %q", ErrUnparsableResponse, c.Category)
	}
	if c.RecommendedAction == "" {
		// A record never persists without an action from the fixed set.
		c.RecommendedAction = ActionWarnUser
	} else if !c.RecommendedAction.Valid() {
		return nil, fmt.Errorf("%w: unknown recommended action %q", ErrUnparsableResponse, c.RecommendedAction)
	}
	if c.Confidence < 0 {
		c.Confidence = 0
	}
	if c.Confidence > 1 {
		c.Confidence = 1
	}
	return &c, nil
}
