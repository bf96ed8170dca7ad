package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"

	"reportit/metrics"
	"reportit/models"
	"reportit/store"
)

const newDeviceNote = "Login attempt from a new device - admin approval required"

type DeviceStore interface {
	store.UserStore
	store.DeviceStore
}

// DeviceGate binds one device to each account and lets a bound, approved
// device log its user in without credentials.
type DeviceGate struct {
	store   DeviceStore
	auth    *AuthService
	notices *AdminNotices
	log     *zap.Logger
	now     func() time.Time
}

func NewDeviceGate(s DeviceStore, auth *AuthService, notices *AdminNotices, log *zap.Logger) *DeviceGate {
	return &DeviceGate{store: s, auth: auth, notices: notices, log: log, now: func() time.Time { return time.Now().UTC() }}
}

// Register binds deviceID to the user. A device already bound to anyone is
// a Conflict; a user who already has a device is Forbidden. An approved
// user is demoted and needs admin approval again. The unique indexes on the
// device collection decide races between concurrent registrations.
func (g *DeviceGate) Register(ctx context.Context, userID primitive.ObjectID, deviceID, deviceName string) (*models.DeviceInfo, error) {
	deviceID = strings.TrimSpace(deviceID)
	deviceName = strings.TrimSpace(deviceName)
	if deviceID == "" || deviceName == "" {
		return nil, validation("Missing deviceId or deviceName")
	}

	u, err := g.store.FindUserByID(ctx, userID)
	if errors.Is(err, store.ErrNotFound) {
		metrics.DeviceRegistrations.WithLabelValues("user_not_found").Inc()
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, internal(err)
	}

	if _, err := g.store.FindDeviceByDeviceID(ctx, deviceID); err == nil {
		metrics.DeviceRegistrations.WithLabelValues("conflict").Inc()
		return nil, ErrDeviceTaken
	} else if !errors.Is(err, store.ErrNotFound) {
		return nil, internal(err)
	}

	if _, err := g.store.FindDeviceByUser(ctx, userID); err == nil {
		metrics.DeviceRegistrations.WithLabelValues("forbidden").Inc()
		return nil, ErrDeviceLimit
	} else if !errors.Is(err, store.ErrNotFound) {
		return nil, internal(err)
	}

	demoted := false
	if u.IsApproved {
		if _, err := g.store.SetApproval(ctx, userID, false, newDeviceNote); err != nil {
			return nil, internal(err)
		}
		demoted = true
	}

	d := &models.DeviceInfo{
		UserID:          userID,
		DeviceID:        deviceID,
		DeviceName:      deviceName,
		HasLoggedInOnce: true,
		CreatedAt:       g.now(),
	}
	if err := g.store.CreateDevice(ctx, d); err != nil {
		if demoted {
			g.restoreApproval(ctx, u)
		}
		if errors.Is(err, store.ErrDuplicate) {
			return nil, g.duplicateCause(ctx, deviceID)
		}
		return nil, internal(err)
	}

	metrics.DeviceRegistrations.WithLabelValues("registered").Inc()
	if demoted {
		g.notices.ApprovalRequired(u, newDeviceNote+": "+deviceName)
	}
	return d, nil
}

// duplicateCause tells apart the two unique keys after a lost race.
func (g *DeviceGate) duplicateCause(ctx context.Context, deviceID string) error {
	if _, err := g.store.FindDeviceByDeviceID(ctx, deviceID); err == nil {
		metrics.DeviceRegistrations.WithLabelValues("conflict").Inc()
		return ErrDeviceTaken
	}
	metrics.DeviceRegistrations.WithLabelValues("forbidden").Inc()
	return ErrDeviceLimit
}

func (g *DeviceGate) restoreApproval(ctx context.Context, u *models.User) {
	if _, err := g.store.SetApproval(ctx, u.ID, true, u.DeviceNote); err != nil {
		g.log.Error("restore approval failed", zap.String("user_id", u.ID.Hex()), zap.Error(err))
	}
}

// Check logs in the user bound to deviceID, exactly like a password login.
// It never changes the binding.
func (g *DeviceGate) Check(ctx context.Context, deviceID string, meta RequestMeta) (*LoginResult, error) {
	deviceID = strings.TrimSpace(deviceID)
	if deviceID == "" {
		return nil, validation("Missing deviceId")
	}

	d, err := g.store.FindDeviceByDeviceID(ctx, deviceID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrDeviceNotFound
	}
	if err != nil {
		return nil, internal(err)
	}

	u, err := g.store.FindUserByID(ctx, d.UserID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrDeviceUserNotFound
	}
	if err != nil {
		return nil, internal(err)
	}
	if !d.HasLoggedInOnce {
		return nil, ErrDeviceNotActivated
	}
	if !u.IsApproved {
		return nil, ErrNotApproved
	}

	return g.auth.establishSession(ctx, u, models.ActionAutoLogin, meta)
}
