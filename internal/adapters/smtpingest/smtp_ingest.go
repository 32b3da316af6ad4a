package smtpingest

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"time"

	"github.com/emersion/go-smtp"
	"go.uber.org/zap"

	"github.com/rescam/phishguard/internal/core"
	"github.com/rescam/phishguard/internal/mailparse"
)

// Ingest is a demo SMTP listener that feeds received messages straight into
// the classification pipeline under a fixed local user. It lets the full
// pipeline run against hand-crafted mail without Gmail credentials or a
// Pub/Sub topic.
type Ingest struct {
	processor  *core.Processor
	logger     *zap.Logger
	listenAddr string
	user       string
	server     *smtp.Server
}

// NewIngest creates a new SMTP ingestion listener
func NewIngest(processor *core.Processor, listenAddr, user string, logger *zap.Logger) *Ingest {
	return &Ingest{
		processor:  processor,
		logger:     logger,
		listenAddr: listenAddr,
		user:       user,
	}
}

// Start starts the SMTP listener in a background goroutine
func (i *Ingest) Start() error {
	i.server = smtp.NewServer(&smtpBackend{ingest: i})

	i.server.Addr = i.listenAddr
	i.server.Domain = "localhost"
	i.server.ReadTimeout = 30 * time.Second
	i.server.WriteTimeout = 30 * time.Second
	i.server.MaxMessageBytes = 10 * 1024 * 1024 // 10MB
	i.server.MaxRecipients = 10
	i.server.AllowInsecureAuth = true

	i.logger.Info("SMTP ingestion listener starting",
		zap.String("address", i.listenAddr),
		zap.String("user", i.user))

	go func() {
		if err := i.server.ListenAndServe(); err != nil {
			if err != smtp.ErrServerClosed {
				i.logger.Error("SMTP server error", zap.Error(err))
			}
		}
	}()

	return nil
}

// Stop stops the SMTP listener
func (i *Ingest) Stop() error {
	if i.server != nil {
		return i.server.Close()
	}
	return nil
}

// smtpBackend implements the go-smtp Backend interface
type smtpBackend struct {
	ingest *Ingest
}

func (b *smtpBackend) NewSession(_ *smtp.Conn) (smtp.Session, error) {
	return &smtpSession{ingest: b.ingest}, nil
}

// smtpSession implements the go-smtp Session interface
type smtpSession struct {
	ingest     *Ingest
	sender     string
	recipients []string
}

func (s *smtpSession) Reset() {
	s.sender = ""
	s.recipients = nil
}

func (s *smtpSession) AuthPlain(_ []byte) error {
	return smtp.ErrAuthUnsupported
}

func (s *smtpSession) Mail(from string, _ *smtp.MailOptions) error {
	s.sender = from
	return nil
}

func (s *smtpSession) Rcpt(to string, _ *smtp.RcptOptions) error {
	s.recipients = append(s.recipients, to)
	return nil
}

// Data reads the message, runs it through the pipeline, and accepts it
// regardless of the verdict. The listener observes mail, it does not gate it.
func (s *smtpSession) Data(r io.Reader) error {
	rawData, err := io.ReadAll(r)
	if err != nil {
		s.ingest.logger.Error("Failed to read message data", zap.Error(err))
		return err
	}

	email, err := mailparse.ParseMessage(bytes.NewReader(rawData))
	if err != nil {
		s.ingest.logger.Error("Failed to parse email message", zap.Error(err))
		return err
	}

	// Envelope values win over header values when both are present.
	if s.sender != "" {
		email.From = s.sender
	}
	if len(s.recipients) > 0 {
		email.To = s.recipients
	}
	if email.ID == "" {
		email.ID = fmt.Sprintf("smtp-%d", time.Now().UnixNano())
	}

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	if err := s.ingest.processor.IngestEmail(ctx, s.ingest.user, email); err != nil {
		s.ingest.logger.Error("Failed to process email",
			zap.String("from", email.From),
			zap.Error(err))
		return err
	}

	return nil
}

func (s *smtpSession) Logout() error {
	return nil
}
