package orchestrate

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/moisesblank/people-flow-desk-sub004/internal/dto"
	"github.com/moisesblank/people-flow-desk-sub004/internal/entity"
	"github.com/moisesblank/people-flow-desk-sub004/internal/infrastructure"
	"github.com/moisesblank/people-flow-desk-sub004/internal/repo"
	"github.com/moisesblank/people-flow-desk-sub004/pkg/logger"
)

// Producer sources recognized by the ingress gateway.
const (
	SourceHotmart   = "hotmart"
	SourceCMS       = "cms"
	SourceMessaging = "messaging"
	SourceKafka     = "kafka"
)

type purchasePayload struct {
	Event string `json:"event"`
	Data  struct {
		Buyer struct {
			Email string `json:"email"`
		} `json:"buyer"`
		Product struct {
			ID   json.Number `json:"id"`
			Name string      `json:"name"`
		} `json:"product"`
	} `json:"data"`
}

// RegisterDefaults wires the built-in business handlers: purchase lifecycle
// from the payment provider, content sync from the CMS, delivery receipts
// from the messaging provider.
func RegisterDefaults(
	o *Orchestrator,
	enrollments repo.EnrollmentRepo,
	notifier infrastructure.NotificationSender,
	l logger.Interface,
) {
	o.Register(SourceHotmart, "purchase.approved", grantAccessHandler(enrollments, notifier))
	o.Register(SourceHotmart, "purchase.refunded", revokeAccessHandler(enrollments, notifier, "refund"))
	o.Register(SourceHotmart, "purchase.chargeback", revokeAccessHandler(enrollments, notifier, "chargeback"))
	o.Register(SourceCMS, "content.updated", contentSyncHandler(l))
	o.RegisterWildcard(SourceMessaging, deliveryReceiptHandler())
	o.RegisterWildcard(SourceKafka, lmsProgressHandler(l))
}

func grantAccessHandler(enrollments repo.EnrollmentRepo, notifier infrastructure.NotificationSender) HandlerFunc {
	return func(ctx context.Context, job dto.Job) (json.RawMessage, error) {
		var p purchasePayload
		if err := json.Unmarshal(job.Payload, &p); err != nil {
			return nil, fmt.Errorf("grantAccess - json.Unmarshal: %w", err)
		}
		if p.Data.Buyer.Email == "" {
			return nil, fmt.Errorf("grantAccess: payload has no buyer email")
		}

		enrollment := &entity.Enrollment{
			ID:        uuid.New(),
			Email:     p.Data.Buyer.Email,
			ProductID: p.Data.Product.ID.String(),
			Status:    entity.EnrollmentActive,
			GrantedAt: time.Now(),
		}

		if err := enrollments.Grant(ctx, enrollment); err != nil {
			return nil, fmt.Errorf("grantAccess - enrollments.Grant: %w", err)
		}

		err := notifier.Send(ctx, dto.Notification{
			Type:    "access_granted",
			Email:   enrollment.Email,
			QueueID: job.QueueID,
		})
		if err != nil {
			return nil, fmt.Errorf("grantAccess - notifier.Send: %w", err)
		}

		return json.Marshal(map[string]any{
			"enrollment_id": enrollment.ID,
			"email":         enrollment.Email,
			"product_id":    enrollment.ProductID,
		})
	}
}

func revokeAccessHandler(enrollments repo.EnrollmentRepo, notifier infrastructure.NotificationSender, reason string) HandlerFunc {
	return func(ctx context.Context, job dto.Job) (json.RawMessage, error) {
		var p purchasePayload
		if err := json.Unmarshal(job.Payload, &p); err != nil {
			return nil, fmt.Errorf("revokeAccess - json.Unmarshal: %w", err)
		}
		if p.Data.Buyer.Email == "" {
			return nil, fmt.Errorf("revokeAccess: payload has no buyer email")
		}

		if err := enrollments.Revoke(ctx, p.Data.Buyer.Email, p.Data.Product.ID.String()); err != nil {
			return nil, fmt.Errorf("revokeAccess - enrollments.Revoke: %w", err)
		}

		err := notifier.Send(ctx, dto.Notification{
			Type:    "access_revoked",
			Email:   p.Data.Buyer.Email,
			QueueID: job.QueueID,
		})
		if err != nil {
			return nil, fmt.Errorf("revokeAccess - notifier.Send: %w", err)
		}

		return json.Marshal(map[string]any{
			"email":  p.Data.Buyer.Email,
			"reason": reason,
		})
	}
}

func contentSyncHandler(l logger.Interface) HandlerFunc {
	return func(ctx context.Context, job dto.Job) (json.RawMessage, error) {
		// The CMS pushes full documents; the dashboard reads them
		// directly from the store, so acknowledging receipt is the whole
		// contract here.
		l.Info("content sync event received, queue_id = %s", job.QueueID)

		return json.Marshal(map[string]any{"synced": true})
	}
}

func lmsProgressHandler(l logger.Interface) HandlerFunc {
	return func(ctx context.Context, job dto.Job) (json.RawMessage, error) {
		var progress struct {
			StudentEmail string  `json:"student_email"`
			CourseID     string  `json:"course_id"`
			LessonID     string  `json:"lesson_id"`
			Progress     float64 `json:"progress"`
		}
		if err := json.Unmarshal(job.Payload, &progress); err != nil {
			return nil, fmt.Errorf("lmsProgress - json.Unmarshal: %w", err)
		}

		l.Info("lms progress event: event=%s course=%s lesson=%s",
			job.Event, progress.CourseID, progress.LessonID)

		return json.Marshal(map[string]any{
			"course_id": progress.CourseID,
			"lesson_id": progress.LessonID,
			"progress":  progress.Progress,
			"ack":       true,
		})
	}
}

func deliveryReceiptHandler() HandlerFunc {
	return func(ctx context.Context, job dto.Job) (json.RawMessage, error) {
		var receipt struct {
			MessageID string `json:"message_id"`
			Status    string `json:"status"`
		}
		// Delivery receipts vary by provider; an unparseable one is still
		// acknowledged so it cannot loop through the retry budget.
		_ = json.Unmarshal(job.Payload, &receipt)

		return json.Marshal(map[string]any{
			"message_id": receipt.MessageID,
			"status":     receipt.Status,
			"ack":        true,
		})
	}
}
