package services

import (
	"context"
	"strings"
	"testing"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"reportit/models"
)

func TestSetApproval(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	u := h.signup(t, "alice", "alice@x.com")

	_, err := h.admin.SetApproval(ctx, h.adminID, u.ID, "promote", meta)
	wantKind(t, err, KindValidation)
	_, err = h.admin.SetApproval(ctx, h.adminID, primitive.NewObjectID(), ActionApprove, meta)
	wantKind(t, err, KindNotFound)

	got, err := h.admin.SetApproval(ctx, h.adminID, u.ID, ActionApprove, meta)
	if err != nil || !got.IsApproved {
		t.Fatalf("approve = %+v, %v", got, err)
	}
	got, err = h.admin.SetApproval(ctx, h.adminID, u.ID, ActionRevoke, meta)
	if err != nil || got.IsApproved {
		t.Fatalf("revoke = %+v, %v", got, err)
	}

	acts := h.actions(t, h.adminID)
	if len(acts) != 2 || acts[0] != "revoke-user:"+u.ID.Hex() || acts[1] != "approve-user:"+u.ID.Hex() {
		t.Fatalf("admin activity = %v", acts)
	}
}

func TestUserListsAndLogs(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	a := h.signup(t, "alice", "alice@x.com")
	h.clock.Advance(time.Second)
	h.signup(t, "bob", "bob@x.com")
	h.approve(t, a.ID)
	h.auth.Login(ctx, "alice@x.com", "pw-alice", meta)

	users, err := h.admin.ListUsers(ctx)
	if err != nil || len(users) != 2 {
		t.Fatalf("users = %d, %v", len(users), err)
	}
	pending, _ := h.admin.PendingUsers(ctx)
	if len(pending) != 1 || pending[0].Name != "bob" {
		t.Fatalf("pending = %+v", pending)
	}

	logs, err := h.admin.Logs(ctx, 10)
	if err != nil || len(logs) != 2 {
		t.Fatalf("logs = %+v, %v", logs, err)
	}
	if logs[0].Action != models.ActionLogin || logs[0].UserName != "alice" || logs[1].UserName != "Root" {
		t.Fatalf("logs = %+v", logs)
	}
	mine, _ := h.admin.UserLogs(ctx, a.ID)
	if len(mine) != 1 || mine[0].IP != meta.IP || mine[0].UserAgent != meta.UserAgent {
		t.Fatalf("user logs = %+v", mine)
	}
}

func TestDashboardsAndDigest(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	a := h.signup(t, "alice", "alice@x.com")
	h.signup(t, "bob", "bob@x.com")
	h.approve(t, a.ID)

	for i, st := range []models.ReportStatus{models.StatusOpen, models.StatusInProgress, models.StatusDone} {
		in := ReportInput{ProjectName: "P", ProjectNumber: "N" + string(rune('0'+i)), Status: st}
		if _, err := h.reports.Create(ctx, a.ID, in, meta); err != nil {
			t.Fatal(err)
		}
	}
	h.auth.Login(ctx, "alice@x.com", "pw-alice", meta)
	h.clock.Advance(42 * time.Minute)
	h.auth.Logout(ctx, a.ID, meta)

	as, err := h.admin.AdminStats(ctx)
	if err != nil || as.TotalUsers != 3 || as.PendingApprovals != 1 || as.ActiveReports != 2 {
		t.Fatalf("admin stats = %+v, %v", as, err)
	}
	ag, err := h.admin.AgentStats(ctx, a.ID)
	if err != nil || ag.TotalReports != 3 || ag.Minutes != 42 {
		t.Fatalf("agent stats = %+v, %v", ag, err)
	}
	ms, err := h.admin.ManagerStats(ctx)
	if err != nil || ms.TeamReports != 3 || ms.CompletedProjects != 1 || ms.OngoingProjects != 1 {
		t.Fatalf("manager stats = %+v, %v", ms, err)
	}
	if m, err := h.admin.UserMinutes(ctx, a.ID); err != nil || m != 42 {
		t.Fatalf("user minutes = %d, %v", m, err)
	}

	lines, err := h.admin.TimeDigest(ctx)
	if err != nil || len(lines) != 1 || lines[0].Name != "alice" || lines[0].Minutes != 42 {
		t.Fatalf("digest = %+v, %v", lines, err)
	}
	before := h.mailer.count()
	NewAdminNotices(h.mailer, []string{"ops@example.com"}, nil).Digest("2024-06-01", lines)
	if h.mailer.count() != before+1 || !strings.HasPrefix(h.mailer.subjects[before], "Daily time digest") {
		t.Fatalf("digest mail not sent: %v", h.mailer.subjects)
	}
}
