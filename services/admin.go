package services

import (
	"context"
	"errors"
	"sort"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"

	"reportit/models"
	"reportit/store"
)

const (
	ActionApprove = "approve"
	ActionRevoke  = "revoke"
)

type AdminStats struct {
	TotalUsers       int64 `json:"totalUsers"`
	PendingApprovals int64 `json:"pendingApprovals"`
	ActiveReports    int64 `json:"activeReports"`
}

type AgentStats struct {
	TotalReports int64 `json:"totalReports"`
	Minutes      int64 `json:"minutes"`
}

type ManagerStats struct {
	TeamReports       int64 `json:"teamReports"`
	CompletedProjects int64 `json:"completedProjects"`
	OngoingProjects   int64 `json:"ongoingProjects"`
}

type AdminService struct {
	store  store.Store
	ledger *Ledger
	audit  *Auditor
	log    *zap.Logger
	now    func() time.Time
}

func NewAdminService(s store.Store, ledger *Ledger, audit *Auditor, log *zap.Logger) *AdminService {
	return &AdminService{store: s, ledger: ledger, audit: audit, log: log, now: func() time.Time { return time.Now().UTC() }}
}

// ListUsers returns every non-admin account.
func (s *AdminService) ListUsers(ctx context.Context) ([]models.User, error) {
	users, err := s.store.ListUsers(ctx, store.UserFilter{ExcludeRole: models.RoleAdmin})
	if err != nil {
		return nil, internal(err)
	}
	return users, nil
}

func (s *AdminService) PendingUsers(ctx context.Context) ([]models.User, error) {
	approved := false
	users, err := s.store.ListUsers(ctx, store.UserFilter{Approved: &approved})
	if err != nil {
		return nil, internal(err)
	}
	return users, nil
}

func (s *AdminService) GetUser(ctx context.Context, id primitive.ObjectID) (*models.User, error) {
	u, err := s.store.FindUserByID(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, internal(err)
	}
	return u, nil
}

// SetApproval approves or revokes a user. Approving clears the device note.
func (s *AdminService) SetApproval(ctx context.Context, adminID, userID primitive.ObjectID, action string, meta RequestMeta) (*models.User, error) {
	if action != ActionApprove && action != ActionRevoke {
		return nil, validation("Invalid action")
	}
	current, err := s.GetUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	note := ""
	if action == ActionRevoke {
		note = current.DeviceNote
	}
	u, err := s.store.SetApproval(ctx, userID, action == ActionApprove, note)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, internal(err)
	}
	s.audit.Record(ctx, adminID, action+"-user:"+userID.Hex(), meta)
	return u, nil
}

func (s *AdminService) withNames(ctx context.Context, logs []models.ActivityLog) ([]models.ActivityEntry, error) {
	ids := make([]primitive.ObjectID, 0, len(logs))
	seen := map[primitive.ObjectID]bool{}
	for _, l := range logs {
		if !seen[l.UserID] {
			seen[l.UserID] = true
			ids = append(ids, l.UserID)
		}
	}
	users, err := s.store.FindUsersByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	names := make(map[primitive.ObjectID]string, len(users))
	for _, u := range users {
		names[u.ID] = u.Name
	}
	out := make([]models.ActivityEntry, 0, len(logs))
	for _, l := range logs {
		out = append(out, models.ActivityEntry{ActivityLog: l, UserName: names[l.UserID]})
	}
	return out, nil
}

// Logs returns the newest activity entries across all users.
func (s *AdminService) Logs(ctx context.Context, limit int64) ([]models.ActivityEntry, error) {
	logs, err := s.store.ListActivity(ctx, store.ActivityFilter{Limit: limit})
	if err != nil {
		return nil, internal(err)
	}
	out, err := s.withNames(ctx, logs)
	if err != nil {
		return nil, internal(err)
	}
	return out, nil
}

func (s *AdminService) UserLogs(ctx context.Context, userID primitive.ObjectID) ([]models.ActivityLog, error) {
	logs, err := s.store.ListActivity(ctx, store.ActivityFilter{UserID: &userID})
	if err != nil {
		return nil, internal(err)
	}
	return logs, nil
}

// Online lists users with a live session.
func (s *AdminService) Online(ctx context.Context) ([]models.UserSummary, error) {
	ids, err := s.ledger.QueryOnlineUsers(ctx, s.now())
	if err != nil {
		return nil, internal(err)
	}
	users, err := s.store.FindUsersByIDs(ctx, ids)
	if err != nil {
		return nil, internal(err)
	}
	out := make([]models.UserSummary, 0, len(users))
	for i := range users {
		out = append(out, users[i].Summary())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (s *AdminService) UserMinutes(ctx context.Context, userID primitive.ObjectID) (int64, error) {
	if _, err := s.GetUser(ctx, userID); err != nil {
		return 0, err
	}
	minutes, err := s.ledger.TotalMinutes(ctx, userID)
	if err != nil {
		return 0, internal(err)
	}
	return minutes, nil
}

func (s *AdminService) AdminStats(ctx context.Context) (*AdminStats, error) {
	var st AdminStats
	var err error
	approved := false
	if st.TotalUsers, err = s.store.CountUsers(ctx, store.UserFilter{}); err != nil {
		return nil, internal(err)
	}
	if st.PendingApprovals, err = s.store.CountUsers(ctx, store.UserFilter{Approved: &approved}); err != nil {
		return nil, internal(err)
	}
	active := store.ReportFilter{Statuses: []models.ReportStatus{models.StatusOpen, models.StatusInProgress}}
	if st.ActiveReports, err = s.store.CountReports(ctx, active); err != nil {
		return nil, internal(err)
	}
	return &st, nil
}

func (s *AdminService) AgentStats(ctx context.Context, agentID primitive.ObjectID) (*AgentStats, error) {
	var st AgentStats
	var err error
	if st.TotalReports, err = s.store.CountReports(ctx, store.ReportFilter{AgentID: &agentID}); err != nil {
		return nil, internal(err)
	}
	if st.Minutes, err = s.ledger.TotalMinutes(ctx, agentID); err != nil {
		return nil, internal(err)
	}
	return &st, nil
}

func (s *AdminService) ManagerStats(ctx context.Context) (*ManagerStats, error) {
	var st ManagerStats
	var err error
	if st.TeamReports, err = s.store.CountReports(ctx, store.ReportFilter{}); err != nil {
		return nil, internal(err)
	}
	done := store.ReportFilter{Statuses: []models.ReportStatus{models.StatusDone}}
	if st.CompletedProjects, err = s.store.CountReports(ctx, done); err != nil {
		return nil, internal(err)
	}
	ongoing := store.ReportFilter{Statuses: []models.ReportStatus{models.StatusInProgress}}
	if st.OngoingProjects, err = s.store.CountReports(ctx, ongoing); err != nil {
		return nil, internal(err)
	}
	return &st, nil
}

// TimeDigest lists every user's committed minutes, largest first.
func (s *AdminService) TimeDigest(ctx context.Context) ([]DigestLine, error) {
	totals, err := s.store.ListTimeSpent(ctx)
	if err != nil {
		return nil, err
	}
	ids := make([]primitive.ObjectID, 0, len(totals))
	for _, t := range totals {
		ids = append(ids, t.UserID)
	}
	users, err := s.store.FindUsersByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	byID := make(map[primitive.ObjectID]models.User, len(users))
	for _, u := range users {
		byID[u.ID] = u
	}
	lines := make([]DigestLine, 0, len(totals))
	for _, t := range totals {
		u, ok := byID[t.UserID]
		if !ok {
			continue
		}
		lines = append(lines, DigestLine{Name: u.Name, Email: u.Email, Minutes: t.Minutes})
	}
	sort.SliceStable(lines, func(i, j int) bool { return lines[i].Minutes > lines[j].Minutes })
	return lines, nil
}
