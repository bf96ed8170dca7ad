package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"

	"reportit/export"
	"reportit/models"
	"reportit/storage"
	"reportit/store"
	"reportit/store/memory"
	"reportit/utils"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

type recordingMailer struct {
	mu       sync.Mutex
	subjects []string
}

func (m *recordingMailer) SendEmail(to []string, subject, body string) error {
	m.mu.Lock()
	m.subjects = append(m.subjects, subject)
	m.mu.Unlock()
	return nil
}

func (m *recordingMailer) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.subjects)
}

type harness struct {
	st      *memory.Store
	clock   *fakeClock
	mailer  *recordingMailer
	objects *storage.LocalStore
	tokens  *utils.TokenManager
	ledger  *Ledger
	audit   *Auditor
	auth    *AuthService
	gate    *DeviceGate
	admin   *AdminService
	reports *ReportService
	adminID primitive.ObjectID
}

var meta = RequestMeta{IP: "10.0.0.1", UserAgent: "test-agent"}

func newHarness(t *testing.T) *harness {
	t.Helper()
	return newHarnessWith(t, nil)
}

// newHarnessWith lets a test wrap the memory store, e.g. to inject failures.
func newHarnessWith(t *testing.T, wrap func(*memory.Store) store.Store) *harness {
	t.Helper()
	log := zap.NewNop()
	h := &harness{
		st:     memory.New(),
		clock:  &fakeClock{t: time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC)},
		mailer: &recordingMailer{},
		tokens: utils.NewTokenManager("test-secret", 8*time.Hour),
	}
	var st store.Store = h.st
	if wrap != nil {
		st = wrap(h.st)
	}
	objects, err := storage.NewLocalStore(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	h.objects = objects

	notices := NewAdminNotices(h.mailer, []string{"ops@example.com"}, log)
	h.ledger = NewLedger(st, log)
	h.audit = NewAuditor(st, log)
	h.auth = NewAuthService(st, h.ledger, h.audit, h.tokens, notices, log, AuthConfig{BcryptCost: 4, SessionTTL: 8 * time.Hour})
	h.gate = NewDeviceGate(st, h.auth, notices, log)
	h.admin = NewAdminService(st, h.ledger, h.audit, log)
	h.reports = NewReportService(st, objects, export.NewAppender(objects, "sheets/device.xlsx", time.UTC), h.audit, log, time.UTC)

	h.ledger.now = h.clock.Now
	h.audit.now = h.clock.Now
	h.auth.now = h.clock.Now
	h.gate.now = h.clock.Now
	h.admin.now = h.clock.Now
	h.reports.now = h.clock.Now

	if _, err := h.auth.SeedAdmin(context.Background(), "Root", "root@example.com", "rootpw"); err != nil {
		t.Fatalf("SeedAdmin: %v", err)
	}
	root, err := h.st.FindUserByEmail(context.Background(), "root@example.com")
	if err != nil {
		t.Fatal(err)
	}
	h.adminID = root.ID
	return h
}

func (h *harness) signup(t *testing.T, name, email string) *models.User {
	t.Helper()
	u, err := h.auth.Signup(context.Background(), SignupInput{Name: name, Email: email, Password: "pw-" + name, Contact: "555"})
	if err != nil {
		t.Fatalf("Signup %s: %v", email, err)
	}
	return u
}

func (h *harness) approve(t *testing.T, id primitive.ObjectID) {
	t.Helper()
	if _, err := h.admin.SetApproval(context.Background(), h.adminID, id, ActionApprove, meta); err != nil {
		t.Fatalf("approve: %v", err)
	}
}

func (h *harness) minutes(t *testing.T, id primitive.ObjectID) int64 {
	t.Helper()
	m, err := h.ledger.TotalMinutes(context.Background(), id)
	if err != nil {
		t.Fatal(err)
	}
	return m
}

func (h *harness) validSessions(t *testing.T, id primitive.ObjectID) []models.Session {
	t.Helper()
	s, err := h.st.ListValidSessions(context.Background(), id)
	if err != nil {
		t.Fatal(err)
	}
	return s
}

func (h *harness) actions(t *testing.T, id primitive.ObjectID) []string {
	t.Helper()
	logs, err := h.st.ListActivity(context.Background(), store.ActivityFilter{UserID: &id})
	if err != nil {
		t.Fatal(err)
	}
	out := make([]string, 0, len(logs))
	for _, l := range logs {
		out = append(out, l.Action)
	}
	return out
}

func wantKind(t *testing.T, err error, kind Kind) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected %s error, got nil", kind)
	}
	if got := KindOf(err); got != kind {
		t.Fatalf("error kind = %s, want %s (%v)", got, kind, err)
	}
}
