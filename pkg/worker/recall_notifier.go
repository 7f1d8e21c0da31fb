package worker

import (
	"context"
	"encoding/json"
	"fmt"

	"gopkg.in/gomail.v2"

	"github.com/jwalitptl/trace-api/internal/model"
	"github.com/jwalitptl/trace-api/internal/repository"
	"github.com/jwalitptl/trace-api/pkg/logger"
	"github.com/jwalitptl/trace-api/pkg/messaging"
)

type MailConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

// RecallNotifier consumes recall events off the broker and emails the
// affected organizations. Notification is best effort; a failed email
// never blocks or rolls back the recall itself.
type RecallNotifier struct {
	broker messaging.Broker
	orgs   repository.OrganizationRepository
	send   func(*gomail.Message) error
	from   string
	logger *logger.Logger
}

func NewRecallNotifier(
	broker messaging.Broker,
	orgs repository.OrganizationRepository,
	config MailConfig,
	logger *logger.Logger,
) *RecallNotifier {
	dialer := gomail.NewDialer(config.Host, config.Port, config.Username, config.Password)
	return &RecallNotifier{
		broker: broker,
		orgs:   orgs,
		send:   func(m *gomail.Message) error { return dialer.DialAndSend(m) },
		from:   config.From,
		logger: logger,
	}
}

func (n *RecallNotifier) Start(ctx context.Context) error {
	msgs, err := n.broker.Subscribe(ctx, messaging.ChannelRecallExecuted)
	if err != nil {
		return fmt.Errorf("failed to subscribe to recall channel: %w", err)
	}

	n.logger.Info("Starting recall notifier")

	for {
		select {
		case <-ctx.Done():
			n.logger.Info("Shutting down recall notifier")
			return nil
		case raw, ok := <-msgs:
			if !ok {
				return nil
			}
			if err := n.handle(ctx, raw); err != nil {
				n.logger.Error(err, "Failed to handle recall event")
			}
		}
	}
}

func (n *RecallNotifier) handle(ctx context.Context, raw []byte) error {
	var msg struct {
		Type    string                      `json:"type"`
		Payload model.RecallExecutedPayload `json:"payload"`
	}
	if err := json.Unmarshal(raw, &msg); err != nil {
		return fmt.Errorf("failed to decode recall message: %w", err)
	}

	org, err := n.orgs.Get(ctx, msg.Payload.NotifyOrgID)
	if err != nil {
		return fmt.Errorf("failed to load notified organization: %w", err)
	}

	// The recaller's name is informational; fall back to its id if the
	// lookup fails.
	recallerName := msg.Payload.RecalledBy.String()
	if recaller, err := n.orgs.Get(ctx, msg.Payload.RecalledBy); err == nil {
		recallerName = recaller.Name
	}

	subject := fmt.Sprintf("Recall executed: %s %s", msg.Payload.RefType, msg.Payload.RefID)
	body := fmt.Sprintf(
		"A recall was executed by %s.\r\n\r\nReference: %s %s\r\nReason: %s\r\nExecuted at: %s\r\n",
		recallerName,
		msg.Payload.RefType,
		msg.Payload.RefID,
		msg.Payload.Reason,
		msg.Payload.RecalledAt.Format("2006-01-02 15:04:05 MST"),
	)

	m := gomail.NewMessage()
	m.SetHeader("From", n.from)
	m.SetHeader("To", org.ContactEmail)
	m.SetHeader("Subject", subject)
	m.SetBody("text/plain", body)

	if err := n.send(m); err != nil {
		return fmt.Errorf("failed to send recall email: %w", err)
	}

	n.logger.Info("Sent recall notification",
		"ref_type", string(msg.Payload.RefType),
		"ref_id", msg.Payload.RefID.String(),
		"recipient_org", org.ID.String())
	return nil
}
