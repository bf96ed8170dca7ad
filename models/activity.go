package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

const (
	ActionLogin        = "login"
	ActionLogout       = "logout"
	ActionAutoLogin    = "auto-login"
	ActionCreateReport = "create-report"
	ActionDriveReport  = "device-report-upload-to-drive"
)

// ActivityLog is one append-only audit entry.
type ActivityLog struct {
	ID        primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	UserID    primitive.ObjectID `bson:"user_id" json:"userId"`
	Action    string             `bson:"action" json:"action"`
	IP        string             `bson:"ip" json:"ip"`
	UserAgent string             `bson:"user_agent" json:"userAgent"`
	CreatedAt time.Time          `bson:"created_at" json:"createdAt"`
}

// ActivityEntry is an ActivityLog with the actor's display name resolved.
type ActivityEntry struct {
	ActivityLog `bson:",inline"`
	UserName    string `json:"userName"`
}
