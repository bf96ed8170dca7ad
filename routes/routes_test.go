package routes

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"reportit/controllers"
	"reportit/export"
	"reportit/ratelimit"
	"reportit/services"
	"reportit/storage"
	"reportit/store/memory"
	"reportit/utils"
)

func init() {
	gin.SetMode(gin.TestMode)
}

const (
	adminEmail    = "root@example.com"
	adminPassword = "rootpass"
)

type server struct {
	t      *testing.T
	router *gin.Engine
}

func newServer(t *testing.T, loginLimit int) *server {
	t.Helper()
	return newServerBehind(t, loginLimit, nil)
}

// newServerBehind builds a server that honors X-Forwarded-For from proxies.
func newServerBehind(t *testing.T, loginLimit int, proxies []string) *server {
	t.Helper()
	log := zap.NewNop()
	st := memory.New()
	objects, err := storage.NewLocalStore(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	tokens := utils.NewTokenManager("test-secret", 8*time.Hour)
	notices := services.NewAdminNotices(nil, nil, log)

	ledger := services.NewLedger(st, log)
	audit := services.NewAuditor(st, log)
	auth := services.NewAuthService(st, ledger, audit, tokens, notices, log, services.AuthConfig{
		BcryptCost: 4,
		SessionTTL: 8 * time.Hour,
	})
	gate := services.NewDeviceGate(st, auth, notices, log)
	admin := services.NewAdminService(st, ledger, audit, log)
	reports := services.NewReportService(st, objects, export.NewAppender(objects, "sheets/test.xlsx", time.UTC), audit, log, time.UTC)

	if _, err := auth.SeedAdmin(context.Background(), "Root", adminEmail, adminPassword); err != nil {
		t.Fatal(err)
	}

	r := gin.New()
	err = InitializeRoutes(r, Handlers{
		Tokens:         tokens,
		Limiter:        ratelimit.NewMemory(loginLimit, time.Minute),
		Logger:         log,
		TrustedProxies: proxies,
		Auth:           controllers.NewAuthController(auth, 8*time.Hour, false),
		Devices:        controllers.NewDeviceController(gate, reports),
		Reports:        controllers.NewReportController(reports),
		Admin:          controllers.NewAdminController(admin, reports),
	})
	if err != nil {
		t.Fatal(err)
	}
	return &server{t: t, router: r}
}

func (s *server) do(method, path string, body any, token string) *httptest.ResponseRecorder {
	s.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			s.t.Fatal(err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func (s *server) expect(w *httptest.ResponseRecorder, code int) {
	s.t.Helper()
	if w.Code != code {
		s.t.Fatalf("status = %d, want %d, body = %s", w.Code, code, w.Body.String())
	}
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(w.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode %s: %v", w.Body.String(), err)
	}
	return v
}

type loginBody struct {
	Token string `json:"token"`
}

func (s *server) login(email, password string) string {
	s.t.Helper()
	w := s.do(http.MethodPost, "/api/auth/login", gin.H{"email": email, "password": password}, "")
	s.expect(w, http.StatusOK)
	return decode[loginBody](s.t, w).Token
}

// signupApproved registers an agent, approves it as admin and returns the
// agent's id.
func (s *server) signupApproved(adminToken, email string) string {
	s.t.Helper()
	s.expect(s.do(http.MethodPost, "/api/auth/signup", gin.H{
		"name": "Agent", "email": email, "password": "pw", "contact": "555",
	}, ""), http.StatusCreated)

	w := s.do(http.MethodGet, "/api/admin/pending-users", nil, adminToken)
	s.expect(w, http.StatusOK)
	pending := decode[struct {
		Users []struct {
			ID    string `json:"id"`
			Email string `json:"email"`
		} `json:"users"`
	}](s.t, w)
	for _, u := range pending.Users {
		if u.Email == email {
			s.expect(s.do(http.MethodPost, "/api/admin/users/"+u.ID+"/approve", nil, adminToken), http.StatusOK)
			return u.ID
		}
	}
	s.t.Fatalf("%s not pending", email)
	return ""
}

func TestSignupApprovalLogin(t *testing.T) {
	s := newServer(t, 100)
	admin := s.login(adminEmail, adminPassword)

	s.expect(s.do(http.MethodPost, "/api/auth/signup", gin.H{
		"name": "Ann", "email": "ann@example.com", "password": "pw", "contact": "555",
	}, ""), http.StatusCreated)
	s.expect(s.do(http.MethodPost, "/api/auth/signup", gin.H{
		"name": "Ann", "email": "ANN@example.com", "password": "pw", "contact": "555",
	}, ""), http.StatusConflict)

	s.expect(s.do(http.MethodPost, "/api/auth/login", gin.H{"email": "ann@example.com", "password": "pw"}, ""), http.StatusForbidden)
	s.expect(s.do(http.MethodPost, "/api/auth/login", gin.H{"email": "ann@example.com", "password": "bad"}, ""), http.StatusUnauthorized)

	w := s.do(http.MethodGet, "/api/admin/pending-users", nil, admin)
	s.expect(w, http.StatusOK)
	pending := decode[struct {
		Users []struct {
			ID string `json:"id"`
		} `json:"users"`
	}](t, w)
	if len(pending.Users) != 1 {
		t.Fatalf("pending = %d, want 1", len(pending.Users))
	}
	s.expect(s.do(http.MethodPost, "/api/admin/users/"+pending.Users[0].ID+"/approve", nil, admin), http.StatusOK)

	token := s.login("ann@example.com", "pw")
	w = s.do(http.MethodGet, "/api/auth/me", nil, token)
	s.expect(w, http.StatusOK)
	me := decode[services.MeResult](t, w)
	if me.Name != "Ann" || me.Role != "field-agent" {
		t.Fatalf("me = %+v", me)
	}

	w = s.do(http.MethodGet, "/api/admin/online", nil, admin)
	s.expect(w, http.StatusOK)
	online := decode[struct {
		OnlineUsers []json.RawMessage `json:"onlineUsers"`
	}](t, w)
	if len(online.OnlineUsers) != 2 {
		t.Fatalf("online = %d, want 2", len(online.OnlineUsers))
	}

	s.expect(s.do(http.MethodPost, "/api/auth/logout", nil, token), http.StatusOK)
}

func TestDeviceBindingFlow(t *testing.T) {
	s := newServer(t, 100)
	admin := s.login(adminEmail, adminPassword)
	userID := s.signupApproved(admin, "dev@example.com")
	token := s.login("dev@example.com", "pw")

	s.expect(s.do(http.MethodPost, "/api/device/check", gin.H{"deviceId": "AA:BB"}, ""), http.StatusNotFound)

	w := s.do(http.MethodPost, "/api/device/register", gin.H{"deviceId": "AA:BB", "deviceName": "Pixel"}, token)
	s.expect(w, http.StatusCreated)

	// Registration demotes the account until an admin approves again.
	s.expect(s.do(http.MethodPost, "/api/device/check", gin.H{"macId": "AA:BB"}, ""), http.StatusForbidden)
	s.expect(s.do(http.MethodPost, "/api/device/register", gin.H{"deviceId": "CC:DD", "deviceName": "Tab"}, token), http.StatusForbidden)

	s.expect(s.do(http.MethodPost, "/api/admin/users/"+userID+"/approve", nil, admin), http.StatusOK)
	w = s.do(http.MethodPost, "/api/device/check", gin.H{"deviceId": "AA:BB"}, "")
	s.expect(w, http.StatusOK)
	if decode[loginBody](t, w).Token == "" {
		t.Fatal("device check returned no token")
	}

	other := s.signupApproved(admin, "other@example.com")
	otherToken := s.login("other@example.com", "pw")
	s.expect(s.do(http.MethodPost, "/api/device/register", gin.H{"deviceId": "AA:BB", "deviceName": "Tab"}, otherToken), http.StatusConflict)

	w = s.do(http.MethodGet, "/api/admin/users/"+other, nil, admin)
	s.expect(w, http.StatusOK)
}

func TestAccessControl(t *testing.T) {
	s := newServer(t, 100)
	admin := s.login(adminEmail, adminPassword)
	s.signupApproved(admin, "agent@example.com")
	agent := s.login("agent@example.com", "pw")

	cases := []struct {
		name   string
		method string
		path   string
		token  string
		want   int
	}{
		{"reports without token", http.MethodGet, "/api/reports", "", http.StatusUnauthorized},
		{"admin route as agent", http.MethodGet, "/api/admin/users", agent, http.StatusForbidden},
		{"manager stats as agent", http.MethodGet, "/api/manager/dashboard-stats", agent, http.StatusForbidden},
		{"agent stats as agent", http.MethodGet, "/api/agent/dashboard-stats", agent, http.StatusOK},
		{"dashboard as admin", http.MethodGet, "/api/admin/dashboard-stats", admin, http.StatusOK},
		{"bad object id", http.MethodGet, "/api/admin/users/nope", admin, http.StatusBadRequest},
		{"unknown action", http.MethodPost, "/api/admin/users/000000000000000000000000/ban", admin, http.StatusBadRequest},
		{"unknown route", http.MethodGet, "/api/nothing", "", http.StatusNotFound},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			s.t = t
			s.expect(s.do(tc.method, tc.path, nil, tc.token), tc.want)
		})
	}
}

func TestReportsAndExport(t *testing.T) {
	s := newServer(t, 100)
	admin := s.login(adminEmail, adminPassword)
	s.signupApproved(admin, "field@example.com")
	agent := s.login("field@example.com", "pw")

	body := gin.H{"projectName": "Tower", "projectNumber": "P-100", "customer": "ACME", "workDone": []string{"survey"}}
	w := s.do(http.MethodPost, "/api/reports", body, agent)
	s.expect(w, http.StatusCreated)
	created := decode[struct {
		Report struct {
			ID string `json:"id"`
		} `json:"report"`
	}](t, w)

	s.expect(s.do(http.MethodPost, "/api/reports", body, agent), http.StatusConflict)
	s.expect(s.do(http.MethodPost, "/api/reports", gin.H{"projectName": "x"}, agent), http.StatusBadRequest)

	s.expect(s.do(http.MethodGet, "/api/reports/"+created.Report.ID, nil, agent), http.StatusOK)
	s.expect(s.do(http.MethodPost, "/api/report-activity/"+created.Report.ID+"/comment", gin.H{"message": "on site"}, agent), http.StatusCreated)

	w = s.do(http.MethodGet, "/api/report-activity/"+created.Report.ID, nil, agent)
	s.expect(w, http.StatusOK)
	comments := decode[struct {
		Comments []json.RawMessage `json:"comments"`
	}](t, w)
	if len(comments.Comments) != 1 {
		t.Fatalf("comments = %d", len(comments.Comments))
	}

	w = s.do(http.MethodGet, "/api/admin/reports/export", nil, admin)
	s.expect(w, http.StatusOK)
	if ct := w.Header().Get("Content-Type"); ct != export.ContentType {
		t.Fatalf("content type = %q", ct)
	}
	rows, err := export.ReadRows(w.Body.Bytes())
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 2 {
		t.Fatalf("rows = %d, want header plus one report", len(rows))
	}

	w = s.do(http.MethodPost, "/api/device/upload-to-drive", gin.H{"projectName": "Drive", "projectNumber": "D-1"}, agent)
	s.expect(w, http.StatusCreated)
}

func TestLoginThrottled(t *testing.T) {
	s := newServer(t, 2)
	creds := gin.H{"email": "ghost@example.com", "password": "pw"}
	s.expect(s.do(http.MethodPost, "/api/auth/login", creds, ""), http.StatusUnauthorized)
	s.expect(s.do(http.MethodPost, "/api/auth/login", creds, ""), http.StatusUnauthorized)
	s.expect(s.do(http.MethodPost, "/api/auth/login", creds, ""), http.StatusTooManyRequests)
}

func (s *server) loginFrom(remoteAddr, forwardedFor string) int {
	s.t.Helper()
	body := bytes.NewBufferString(`{"email":"ghost@example.com","password":"pw"}`)
	req := httptest.NewRequest(http.MethodPost, "/api/auth/login", body)
	req.Header.Set("Content-Type", "application/json")
	req.RemoteAddr = remoteAddr
	if forwardedFor != "" {
		req.Header.Set("X-Forwarded-For", forwardedFor)
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w.Code
}

func TestThrottleIgnoresForwardedForFromUntrustedPeer(t *testing.T) {
	s := newServer(t, 2)
	codes := make([]int, 0, 4)
	for _, fwd := range []string{"10.0.0.1", "10.0.0.2", "10.0.0.3", "10.0.0.4"} {
		codes = append(codes, s.loginFrom("203.0.113.9:4000", fwd))
	}
	want := []int{http.StatusUnauthorized, http.StatusUnauthorized, http.StatusTooManyRequests, http.StatusTooManyRequests}
	for i := range want {
		if codes[i] != want[i] {
			t.Fatalf("codes = %v, want %v", codes, want)
		}
	}
}

func TestThrottleUsesForwardedForFromTrustedProxy(t *testing.T) {
	s := newServerBehind(t, 1, []string{"192.0.2.10"})
	if code := s.loginFrom("192.0.2.10:4000", "198.51.100.1"); code != http.StatusUnauthorized {
		t.Fatalf("first client = %d", code)
	}
	if code := s.loginFrom("192.0.2.10:4000", "198.51.100.2"); code != http.StatusUnauthorized {
		t.Fatalf("second client = %d", code)
	}
	if code := s.loginFrom("192.0.2.10:4000", "198.51.100.1"); code != http.StatusTooManyRequests {
		t.Fatalf("first client again = %d", code)
	}
}
