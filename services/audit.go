package services

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"

	"reportit/models"
	"reportit/store"
)

// RequestMeta identifies the client behind an auditable action.
type RequestMeta struct {
	IP        string
	UserAgent string
}

// Auditor appends activity entries. Appends are best-effort: a failure is
// logged and never fails the action being audited.
type Auditor struct {
	store store.ActivityStore
	log   *zap.Logger
	now   func() time.Time
}

func NewAuditor(s store.ActivityStore, log *zap.Logger) *Auditor {
	return &Auditor{store: s, log: log, now: func() time.Time { return time.Now().UTC() }}
}

func (a *Auditor) Record(ctx context.Context, userID primitive.ObjectID, action string, meta RequestMeta) {
	entry := &models.ActivityLog{
		UserID:    userID,
		Action:    action,
		IP:        meta.IP,
		UserAgent: meta.UserAgent,
		CreatedAt: a.now(),
	}
	if err := a.store.AppendActivity(ctx, entry); err != nil {
		a.log.Warn("audit append failed",
			zap.String("user_id", userID.Hex()),
			zap.String("action", action),
			zap.Error(err))
	}
}
