package infrastructure

import (
	"context"

	"github.com/moisesblank/people-flow-desk-sub004/internal/dto"
)

type (
	// NotificationSender delivers outbound notification events (email
	// dispatch, access-granted notices) to the messaging backbone.
	NotificationSender interface {
		Send(ctx context.Context, notifications ...dto.Notification) error
		Close() error
	}
)
