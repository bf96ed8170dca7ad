// Package store defines persistence for users, sessions, time totals,
// devices, the activity trail and reports. Mongo is the production backend;
// store/memory provides an in-process one.
package store

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"reportit/models"
)

var (
	ErrNotFound  = errors.New("store: not found")
	ErrDuplicate = errors.New("store: duplicate key")
)

type UserFilter struct {
	ExcludeRole models.Role
	Role        models.Role
	Approved    *bool
}

type UserStore interface {
	CreateUser(ctx context.Context, u *models.User) error
	FindUserByID(ctx context.Context, id primitive.ObjectID) (*models.User, error)
	FindUserByEmail(ctx context.Context, email string) (*models.User, error)
	FindUsersByIDs(ctx context.Context, ids []primitive.ObjectID) ([]models.User, error)
	ListUsers(ctx context.Context, f UserFilter) ([]models.User, error)
	CountUsers(ctx context.Context, f UserFilter) (int64, error)
	// SetApproval writes the approval flag and device note and returns the
	// updated user. An empty note removes the field.
	SetApproval(ctx context.Context, id primitive.ObjectID, approved bool, note string) (*models.User, error)
}

type SessionStore interface {
	CreateSession(ctx context.Context, s *models.Session) error
	ListValidSessions(ctx context.Context, userID primitive.ObjectID) ([]models.Session, error)
	// InvalidateSession flips valid from true to false in one conditional
	// update. It returns false when the session was already invalid.
	InvalidateSession(ctx context.Context, id primitive.ObjectID) (bool, error)
	ActiveUserIDs(ctx context.Context, now time.Time) ([]primitive.ObjectID, error)
}

type TimeStore interface {
	AddMinutes(ctx context.Context, userID primitive.ObjectID, delta int64) error
	EnsureTimeSpent(ctx context.Context, userID primitive.ObjectID) error
	FindTimeSpent(ctx context.Context, userID primitive.ObjectID) (*models.TimeSpent, error)
	ListTimeSpent(ctx context.Context) ([]models.TimeSpent, error)
}

type DeviceStore interface {
	// CreateDevice returns ErrDuplicate when the device id or the user is
	// already bound.
	CreateDevice(ctx context.Context, d *models.DeviceInfo) error
	FindDeviceByDeviceID(ctx context.Context, deviceID string) (*models.DeviceInfo, error)
	FindDeviceByUser(ctx context.Context, userID primitive.ObjectID) (*models.DeviceInfo, error)
}

type ActivityFilter struct {
	UserID *primitive.ObjectID
	Limit  int64
}

type ActivityStore interface {
	AppendActivity(ctx context.Context, a *models.ActivityLog) error
	// ListActivity returns entries newest first.
	ListActivity(ctx context.Context, f ActivityFilter) ([]models.ActivityLog, error)
}

type ReportFilter struct {
	AgentID  *primitive.ObjectID
	Statuses []models.ReportStatus
}

type ReportStore interface {
	CreateReport(ctx context.Context, r *models.Report) error
	FindReportByID(ctx context.Context, id primitive.ObjectID) (*models.Report, error)
	// ListReports returns reports newest first.
	ListReports(ctx context.Context, f ReportFilter) ([]models.Report, error)
	CountReports(ctx context.Context, f ReportFilter) (int64, error)
	AddReportImages(ctx context.Context, img *models.ReportImage) error
	ListReportImages(ctx context.Context, reportID primitive.ObjectID) ([]models.ReportImage, error)
	AddComment(ctx context.Context, c *models.ReportComment) error
	// ListComments returns comments oldest first.
	ListComments(ctx context.Context, reportID primitive.ObjectID) ([]models.ReportComment, error)
}

type Store interface {
	UserStore
	SessionStore
	TimeStore
	DeviceStore
	ActivityStore
	ReportStore
}
