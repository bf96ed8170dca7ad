package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// DeviceInfo binds one device identifier to one user account.
type DeviceInfo struct {
	ID              primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	UserID          primitive.ObjectID `bson:"user_id" json:"userId"`
	DeviceID        string             `bson:"device_id" json:"deviceId"`
	DeviceName      string             `bson:"device_name" json:"deviceName"`
	HasLoggedInOnce bool               `bson:"has_logged_in_once" json:"hasLoggedInOnce"`
	CreatedAt       time.Time          `bson:"created_at" json:"createdAt"`
}
