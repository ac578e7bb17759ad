// Package notification tells tier owners about settlement transitions. It
// runs as an outbox handler, after the transition has committed.
package notification

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"

	"github.com/Alijeyrad/franchise_backend/config"
	"github.com/Alijeyrad/franchise_backend/internal/repo"
	"github.com/Alijeyrad/franchise_backend/internal/service/outbox"
	"github.com/Alijeyrad/franchise_backend/pkg/constants"
	"github.com/Alijeyrad/franchise_backend/pkg/email"
)

// ---------------------------------------------------------------------------
// Collaborators
// ---------------------------------------------------------------------------

type MemberStore interface {
	GetMember(ctx context.Context, id uuid.UUID) (*repo.Member, error)
}

// Publisher is satisfied by *nats.Conn.
type Publisher interface {
	PublishMsg(m *nats.Msg) error
}

// Mailer is satisfied by *email.Client.
type Mailer interface {
	Send(ctx context.Context, m email.Message) error
}

// Texter is satisfied by *sms.Client.
type Texter interface {
	SendTemplate(ctx context.Context, phoneNumber, templateID string, params map[string]string) error
	TemplateID() string
}

// ---------------------------------------------------------------------------
// Implementation
// ---------------------------------------------------------------------------

// Notifier handles settlement.approved and settlement.paid. Delivery is at
// least once: a failed channel makes the relay retry the whole event, and
// NATS subscribers dedupe on the Nats-Msg-Id header.
type Notifier struct {
	members MemberStore
	pub     Publisher
	mail    Mailer
	sms     Texter
	prefix  string
	appName string
	baseURL string
}

// New builds the notifier. Any of pub, mail and sms may be nil.
func New(members MemberStore, pub Publisher, mail Mailer, sms Texter, cfg *config.Config) *Notifier {
	prefix := cfg.Nats.SubjectPrefix
	if prefix == "" {
		prefix = constants.DefaultSubjectPrefix
	}
	baseURL := ""
	if cfg.Server.Domain != "" {
		baseURL = "https://" + strings.TrimPrefix(cfg.Server.Domain, "https://")
	}
	return &Notifier{
		members: members,
		pub:     pub,
		mail:    mail,
		sms:     sms,
		prefix:  prefix,
		appName: "Franchise",
		baseURL: baseURL,
	}
}

// Subject returns the NATS subject a settlement status is announced on.
func (n *Notifier) Subject(status repo.SettlementStatus) string {
	return fmt.Sprintf("%s.settlement.%s", n.prefix, status)
}

func (n *Notifier) Handle(ctx context.Context, e *repo.OutboxEvent) error {
	var status repo.SettlementStatus
	switch e.Topic {
	case outbox.TopicSettlementApproved:
		status = repo.SettlementApproved
	case outbox.TopicSettlementPaid:
		status = repo.SettlementPaid
	default:
		return fmt.Errorf("%w: %s: %w", ErrUnknownTopic, e.Topic, outbox.ErrUnrecoverable)
	}
	ev, err := outbox.DecodeSettlementEvent(e)
	if err != nil {
		return fmt.Errorf("%w: %w", outbox.ErrUnrecoverable, err)
	}

	if n.pub != nil {
		msg := nats.NewMsg(n.Subject(status))
		msg.Header.Set(nats.MsgIdHdr, e.ID.String())
		msg.Data = e.Payload
		if err := n.pub.PublishMsg(msg); err != nil {
			return fmt.Errorf("publish %s: %w", msg.Subject, err)
		}
	}

	member, err := n.members.GetMember(ctx, ev.UserID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			slog.Warn("notification: settlement owner not in directory", "settlement_id", ev.SettlementID, "user_id", ev.UserID)
			return nil
		}
		return fmt.Errorf("get member %s: %w", ev.UserID, err)
	}

	var errs []error
	if n.mail != nil && member.Email != "" {
		msg := email.BuildSettlementStatusEmail(email.SettlementEmailData{
			Name:         member.Name,
			Email:        member.Email,
			SettlementID: ev.SettlementID.String(),
			Status:       string(status),
			Amount:       ev.Amount.String(),
			PeriodStart:  ev.PeriodStart.Format(time.DateOnly),
			PeriodEnd:    ev.PeriodEnd.Add(-time.Nanosecond).Format(time.DateOnly),
			AppName:      n.appName,
			BaseURL:      n.baseURL,
		})
		if err := n.mail.Send(ctx, msg); err != nil && !email.IsPermanent(err) {
			errs = append(errs, fmt.Errorf("email: %w", err))
		}
	}
	if n.sms != nil && member.Phone != "" && n.sms.TemplateID() != "" {
		params := map[string]string{"status": string(status), "amount": ev.Amount.String()}
		if err := n.sms.SendTemplate(ctx, member.Phone, n.sms.TemplateID(), params); err != nil {
			errs = append(errs, fmt.Errorf("sms: %w", err))
		}
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("notify %s of settlement %s: %w", member.ID, ev.SettlementID, err)
	}

	slog.Info("notification: settlement notice sent", "settlement_id", ev.SettlementID, "status", status, "user_id", member.ID)
	return nil
}
