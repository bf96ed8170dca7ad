package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Session is one server-side login period. Valid stays true until the
// session's elapsed time has been committed to TimeSpent.
type Session struct {
	ID        primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	UserID    primitive.ObjectID `bson:"user_id" json:"userId"`
	CreatedAt time.Time          `bson:"created_at" json:"createdAt"`
	ExpiresAt time.Time          `bson:"expires_at" json:"expiresAt"`
	Valid     bool               `bson:"valid" json:"valid"`
}

// Stale reports whether the session is still uncommitted but past its expiry.
func (s *Session) Stale(now time.Time) bool {
	return s.Valid && !s.ExpiresAt.After(now)
}

// TimeSpent holds the cumulative on-duty minutes of one user.
type TimeSpent struct {
	ID        primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	UserID    primitive.ObjectID `bson:"user_id" json:"userId"`
	Minutes   int64              `bson:"minutes" json:"minutes"`
	UpdatedAt time.Time          `bson:"updated_at" json:"updatedAt"`
}
