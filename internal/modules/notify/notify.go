package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"

	"github.com/contactly/core/internal/models"
	"github.com/contactly/core/internal/pkg/clientinfo"
	"github.com/contactly/core/internal/pkg/mail"
	"github.com/contactly/core/internal/pkg/taskqueue"
)

// Job types handled by the background worker.
const (
	JobVerificationEmail = "email.verification"
	JobSecurityAlert     = "email.security-alert"
	JobActivityRecord    = "activity.record"
)

// VerificationEmail delivers an OTP code.
type VerificationEmail struct {
	Email     string `json:"email"`
	Name      string `json:"name"`
	Code      string `json:"code"`
	ExpiresIn string `json:"expires_in"`
}

// SecurityAlert notifies a user about an account event.
type SecurityAlert struct {
	Email  string          `json:"email"`
	Name   string          `json:"name"`
	Title  string          `json:"title"`
	Action string          `json:"action"`
	Client clientinfo.Info `json:"client"`
}

// ActivityRecord appends one audit-trail row.
type ActivityRecord struct {
	UserID string          `json:"user_id"`
	Action string          `json:"action"`
	Client clientinfo.Info `json:"client"`
}

// RegisterHandlers wires the job types onto the queue. Handlers run on the
// worker with the queue's retry budget; they are not idempotent (a retried
// email job can deliver twice), which is accepted.
func RegisterHandlers(q *taskqueue.Service, sender *mail.Sender, db *mongo.Database, logger *zap.Logger) {
	activities := db.Collection(models.ActivityCollection)

	q.Register(JobVerificationEmail, func(ctx context.Context, payload json.RawMessage) error {
		var p VerificationEmail
		if err := json.Unmarshal(payload, &p); err != nil {
			return fmt.Errorf("decode verification payload: %w", err)
		}
		return sender.Send(mail.Message{
			To:      []string{p.Email},
			Subject: "Your verification code",
			HTML:    mail.VerificationBody(p.Name, p.Code, p.ExpiresIn),
		})
	})

	q.Register(JobSecurityAlert, func(ctx context.Context, payload json.RawMessage) error {
		var p SecurityAlert
		if err := json.Unmarshal(payload, &p); err != nil {
			return fmt.Errorf("decode security-alert payload: %w", err)
		}
		return sender.Send(mail.Message{
			To:      []string{p.Email},
			Subject: p.Title,
			HTML: mail.SecurityAlertBody(
				p.Title, p.Name, p.Action,
				p.Client.Browser, p.Client.OS, p.Client.IP, p.Client.Location,
			),
		})
	})

	q.Register(JobActivityRecord, func(ctx context.Context, payload json.RawMessage) error {
		var p ActivityRecord
		if err := json.Unmarshal(payload, &p); err != nil {
			return fmt.Errorf("decode activity payload: %w", err)
		}
		activity := models.Activity{
			Base:       models.NewBase(),
			UserID:     p.UserID,
			Action:     p.Action,
			IP:         p.Client.IP,
			Browser:    p.Client.Browser,
			OS:         p.Client.OS,
			DeviceType: p.Client.DeviceType,
			Location:   p.Client.Location,
			Timestamp:  time.Now(),
		}
		_, err := activities.InsertOne(ctx, activity)
		return err
	})

	logger.Info("job handlers registered",
		zap.Strings("types", []string{JobVerificationEmail, JobSecurityAlert, JobActivityRecord}),
	)
}
