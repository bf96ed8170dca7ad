package services

import (
	"fmt"
	"strings"

	"go.uber.org/zap"

	"reportit/models"
)

type Notifier interface {
	SendEmail(to []string, subject, body string) error
}

// AdminNotices mails administrators. With no mailer or no recipients it
// does nothing. Send failures are logged only.
type AdminNotices struct {
	mailer Notifier
	admins []string
	log    *zap.Logger
}

func NewAdminNotices(mailer Notifier, admins []string, log *zap.Logger) *AdminNotices {
	return &AdminNotices{mailer: mailer, admins: admins, log: log}
}

func (n *AdminNotices) send(subject, body string) {
	if n == nil || n.mailer == nil || len(n.admins) == 0 {
		return
	}
	if err := n.mailer.SendEmail(n.admins, subject, body); err != nil {
		n.log.Warn("admin notice failed", zap.String("subject", subject), zap.Error(err))
	}
}

func (n *AdminNotices) ApprovalRequired(u *models.User, reason string) {
	n.send(
		fmt.Sprintf("Approval required: %s", u.Name),
		fmt.Sprintf("%s <%s> (%s) is waiting for approval.\n\n%s\n", u.Name, u.Email, u.Role, reason),
	)
}

type DigestLine struct {
	Name    string `json:"name"`
	Email   string `json:"email"`
	Minutes int64  `json:"minutes"`
}

func (n *AdminNotices) Digest(day string, lines []DigestLine) {
	var b strings.Builder
	fmt.Fprintf(&b, "Time on duty as of %s\n\n", day)
	for _, l := range lines {
		fmt.Fprintf(&b, "%-30s %-35s %6d min\n", l.Name, l.Email, l.Minutes)
	}
	n.send("Daily time digest "+day, b.String())
}
