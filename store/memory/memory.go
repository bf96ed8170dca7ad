// Package memory is an in-process store.Store used by STORE_DRIVER=memory
// and by tests. It enforces the same unique keys as the Mongo indexes.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"reportit/models"
	"reportit/store"
)

type Store struct {
	mu        sync.Mutex
	users     map[primitive.ObjectID]models.User
	sessions  map[primitive.ObjectID]models.Session
	timeSpent map[primitive.ObjectID]models.TimeSpent
	devices   map[primitive.ObjectID]models.DeviceInfo
	activity  []models.ActivityLog
	reports   map[primitive.ObjectID]models.Report
	images    []models.ReportImage
	comments  []models.ReportComment

	// SessionWrites counts InvalidateSession calls that changed a session.
	SessionWrites int
}

func New() *Store {
	return &Store{
		users:     map[primitive.ObjectID]models.User{},
		sessions:  map[primitive.ObjectID]models.Session{},
		timeSpent: map[primitive.ObjectID]models.TimeSpent{},
		devices:   map[primitive.ObjectID]models.DeviceInfo{},
		reports:   map[primitive.ObjectID]models.Report{},
	}
}

func assignID(id *primitive.ObjectID) {
	if id.IsZero() {
		*id = primitive.NewObjectID()
	}
}

func matchUser(u models.User, f store.UserFilter) bool {
	if f.Role != "" && u.Role != f.Role {
		return false
	}
	if f.Role == "" && f.ExcludeRole != "" && u.Role == f.ExcludeRole {
		return false
	}
	if f.Approved != nil && u.IsApproved != *f.Approved {
		return false
	}
	return true
}

func (s *Store) CreateUser(ctx context.Context, u *models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.users {
		if existing.Email == u.Email {
			return store.ErrDuplicate
		}
	}
	assignID(&u.ID)
	s.users[u.ID] = *u
	return nil
}

func (s *Store) FindUserByID(ctx context.Context, id primitive.ObjectID) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &u, nil
}

func (s *Store) FindUserByEmail(ctx context.Context, email string) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if u.Email == email {
			u := u
			return &u, nil
		}
	}
	return nil, store.ErrNotFound
}

func (s *Store) FindUsersByIDs(ctx context.Context, ids []primitive.ObjectID) ([]models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.User, 0, len(ids))
	for _, id := range ids {
		if u, ok := s.users[id]; ok {
			out = append(out, u)
		}
	}
	return out, nil
}

func (s *Store) ListUsers(ctx context.Context, f store.UserFilter) ([]models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.User, 0)
	for _, u := range s.users {
		if matchUser(u, f) {
			out = append(out, u)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (s *Store) CountUsers(ctx context.Context, f store.UserFilter) (int64, error) {
	users, _ := s.ListUsers(ctx, f)
	return int64(len(users)), nil
}

func (s *Store) SetApproval(ctx context.Context, id primitive.ObjectID, approved bool, note string) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	u.IsApproved = approved
	u.DeviceNote = note
	u.UpdatedAt = time.Now().UTC()
	s.users[id] = u
	return &u, nil
}

func (s *Store) CreateSession(ctx context.Context, sess *models.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	assignID(&sess.ID)
	s.sessions[sess.ID] = *sess
	return nil
}

func (s *Store) ListValidSessions(ctx context.Context, userID primitive.ObjectID) ([]models.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.Session, 0)
	for _, sess := range s.sessions {
		if sess.UserID == userID && sess.Valid {
			out = append(out, sess)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (s *Store) InvalidateSession(ctx context.Context, id primitive.ObjectID) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[id]
	if !ok || !sess.Valid {
		return false, nil
	}
	sess.Valid = false
	s.sessions[id] = sess
	s.SessionWrites++
	return true, nil
}

func (s *Store) ActiveUserIDs(ctx context.Context, now time.Time) ([]primitive.ObjectID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	seen := map[primitive.ObjectID]bool{}
	out := make([]primitive.ObjectID, 0)
	for _, sess := range s.sessions {
		if sess.Valid && sess.ExpiresAt.After(now) && !seen[sess.UserID] {
			seen[sess.UserID] = true
			out = append(out, sess.UserID)
		}
	}
	return out, nil
}

// Session returns a copy of one session, for assertions.
func (s *Store) Session(id primitive.ObjectID) (models.Session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[id]
	return sess, ok
}

func (s *Store) AddMinutes(ctx context.Context, userID primitive.ObjectID, delta int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	ts, ok := s.timeSpent[userID]
	if !ok {
		ts = models.TimeSpent{ID: primitive.NewObjectID(), UserID: userID}
	}
	ts.Minutes += delta
	ts.UpdatedAt = time.Now().UTC()
	s.timeSpent[userID] = ts
	return nil
}

func (s *Store) EnsureTimeSpent(ctx context.Context, userID primitive.ObjectID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.timeSpent[userID]; !ok {
		s.timeSpent[userID] = models.TimeSpent{ID: primitive.NewObjectID(), UserID: userID, UpdatedAt: time.Now().UTC()}
	}
	return nil
}

func (s *Store) FindTimeSpent(ctx context.Context, userID primitive.ObjectID) (*models.TimeSpent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ts, ok := s.timeSpent[userID]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &ts, nil
}

func (s *Store) ListTimeSpent(ctx context.Context) ([]models.TimeSpent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.TimeSpent, 0, len(s.timeSpent))
	for _, ts := range s.timeSpent {
		out = append(out, ts)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Minutes > out[j].Minutes })
	return out, nil
}

func (s *Store) CreateDevice(ctx context.Context, d *models.DeviceInfo) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.devices {
		if existing.DeviceID == d.DeviceID || existing.UserID == d.UserID {
			return store.ErrDuplicate
		}
	}
	assignID(&d.ID)
	s.devices[d.ID] = *d
	return nil
}

func (s *Store) FindDeviceByDeviceID(ctx context.Context, deviceID string) (*models.DeviceInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, d := range s.devices {
		if d.DeviceID == deviceID {
			d := d
			return &d, nil
		}
	}
	return nil, store.ErrNotFound
}

func (s *Store) FindDeviceByUser(ctx context.Context, userID primitive.ObjectID) (*models.DeviceInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, d := range s.devices {
		if d.UserID == userID {
			d := d
			return &d, nil
		}
	}
	return nil, store.ErrNotFound
}

// DeviceCount returns the number of device bindings.
func (s *Store) DeviceCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.devices)
}

func (s *Store) AppendActivity(ctx context.Context, a *models.ActivityLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	assignID(&a.ID)
	s.activity = append(s.activity, *a)
	return nil
}

func (s *Store) ListActivity(ctx context.Context, f store.ActivityFilter) ([]models.ActivityLog, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.ActivityLog, 0)
	for i := len(s.activity) - 1; i >= 0; i-- {
		a := s.activity[i]
		if f.UserID != nil && a.UserID != *f.UserID {
			continue
		}
		out = append(out, a)
		if f.Limit > 0 && int64(len(out)) == f.Limit {
			break
		}
	}
	return out, nil
}

func matchReport(r models.Report, f store.ReportFilter) bool {
	if f.AgentID != nil && r.AgentID != *f.AgentID {
		return false
	}
	if len(f.Statuses) == 0 {
		return true
	}
	for _, st := range f.Statuses {
		if r.Status == st {
			return true
		}
	}
	return false
}

func (s *Store) CreateReport(ctx context.Context, r *models.Report) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.reports {
		if existing.ProjectNumber == r.ProjectNumber {
			return store.ErrDuplicate
		}
	}
	assignID(&r.ID)
	s.reports[r.ID] = *r
	return nil
}

func (s *Store) FindReportByID(ctx context.Context, id primitive.ObjectID) (*models.Report, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.reports[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &r, nil
}

func (s *Store) ListReports(ctx context.Context, f store.ReportFilter) ([]models.Report, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.Report, 0)
	for _, r := range s.reports {
		if matchReport(r, f) {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (s *Store) CountReports(ctx context.Context, f store.ReportFilter) (int64, error) {
	reports, _ := s.ListReports(ctx, f)
	return int64(len(reports)), nil
}

func (s *Store) AddReportImages(ctx context.Context, img *models.ReportImage) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	assignID(&img.ID)
	s.images = append(s.images, *img)
	return nil
}

func (s *Store) ListReportImages(ctx context.Context, reportID primitive.ObjectID) ([]models.ReportImage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.ReportImage, 0)
	for _, img := range s.images {
		if img.ReportID == reportID {
			out = append(out, img)
		}
	}
	return out, nil
}

func (s *Store) AddComment(ctx context.Context, c *models.ReportComment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	assignID(&c.ID)
	s.comments = append(s.comments, *c)
	return nil
}

func (s *Store) ListComments(ctx context.Context, reportID primitive.ObjectID) ([]models.ReportComment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.ReportComment, 0)
	for _, c := range s.comments {
		if c.ReportID == reportID {
			out = append(out, c)
		}
	}
	return out, nil
}

var _ store.Store = (*Store)(nil)
