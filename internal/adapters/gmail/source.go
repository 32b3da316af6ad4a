// Package gmail provides the Gmail-backed mail source: message fetch,
// history listing and watch registration via the Gmail API, authenticated
// with per-user OAuth tokens.
package gmail

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	gmailapi "google.golang.org/api/gmail/v1"
	"google.golang.org/api/option"

	"github.com/rescam/phishguard/internal/core"
)

// Source implements core.MailSource for Gmail.
type Source struct {
	tokens   core.TokenRepository
	oauthCfg *oauth2.Config
	topic    string
	pageSize int64
	logger   *zap.Logger
}

// NewSource creates a Gmail source. topic is the Pub/Sub topic that receives
// watch notifications.
func NewSource(tokens core.TokenRepository, clientID, clientSecret, topic string, pageSize int, logger *zap.Logger) *Source {
	if pageSize <= 0 {
		pageSize = 100
	}
	return &Source{
		tokens: tokens,
		oauthCfg: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			Endpoint:     google.Endpoint,
			Scopes:       []string{gmailapi.GmailReadonlyScope},
		},
		topic:    topic,
		pageSize: int64(pageSize),
		logger:   logger,
	}
}

// serviceFor builds a Gmail service for the user from their stored token.
// The oauth2 client refreshes the token transparently.
func (s *Source) serviceFor(ctx context.Context, user string) (*gmailapi.Service, error) {
	token, err := s.tokens.Get(ctx, user)
	if err != nil {
		return nil, err
	}
	client := s.oauthCfg.Client(ctx, token)
	svc, err := gmailapi.NewService(ctx, option.WithHTTPClient(client))
	if err != nil {
		return nil, fmt.Errorf("failed to create gmail service: %w", err)
	}
	return svc, nil
}

// GetMessage fetches a message by id and parses it into an Email.
func (s *Source) GetMessage(ctx context.Context, user, messageID string) (*core.Email, error) {
	svc, err := s.serviceFor(ctx, user)
	if err != nil {
		return nil, err
	}

	msg, err := svc.Users.Messages.Get("me", messageID).
		Format("full").
		Context(ctx).
		Do()
	if err != nil {
		return nil, fmt.Errorf("failed to get message %s: %w", messageID, err)
	}

	return parseMessage(msg), nil
}

// ListHistory returns the ids of messages added since the given history id,
// in the order the Gmail history stream returns them.
func (s *Source) ListHistory(ctx context.Context, user string, sinceHistoryID uint64) ([]string, error) {
	svc, err := s.serviceFor(ctx, user)
	if err != nil {
		return nil, err
	}

	var ids []string
	seen := map[string]struct{}{}
	pageToken := ""
	for {
		call := svc.Users.History.List("me").
			StartHistoryId(sinceHistoryID).
			HistoryTypes("messageAdded").
			MaxResults(s.pageSize).
			Context(ctx)
		if pageToken != "" {
			call = call.PageToken(pageToken)
		}

		resp, err := call.Do()
		if err != nil {
			return nil, fmt.Errorf("failed to list history since %d: %w", sinceHistoryID, err)
		}

		for _, h := range resp.History {
			for _, added := range h.MessagesAdded {
				if added.Message == nil {
					continue
				}
				// The same message can appear in several history entries.
				if _, ok := seen[added.Message.Id]; ok {
					continue
				}
				seen[added.Message.Id] = struct{}{}
				ids = append(ids, added.Message.Id)
			}
		}

		if resp.NextPageToken == "" {
			break
		}
		pageToken = resp.NextPageToken
	}

	s.logger.Debug("listed gmail history",
		zap.String("user", user),
		zap.Uint64("since", sinceHistoryID),
		zap.Int("messages", len(ids)))
	return ids, nil
}

// Watch registers a push-notification watch on the user's inbox.
func (s *Source) Watch(ctx context.Context, user string) (*core.WatchRegistration, error) {
	svc, err := s.serviceFor(ctx, user)
	if err != nil {
		return nil, err
	}

	resp, err := svc.Users.Watch("me", &gmailapi.WatchRequest{
		TopicName: s.topic,
		LabelIds:  []string{"INBOX"},
	}).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("failed to create watch: %w", err)
	}

	return &core.WatchRegistration{
		HistoryID:  resp.HistoryId,
		Expiration: time.Unix(resp.Expiration/1000, 0),
	}, nil
}
