package portalauth

import (
	"context"

	"github.com/intranetkit/portalauth/internal/audit"
)

const (
	auditEventLoginSuccess     = "login_success"
	auditEventLoginFailure     = "login_failure"
	auditEventLoginRateLimited = "login_rate_limited"
	auditEventRefreshSuccess   = "refresh_success"
	auditEventRefreshFailure   = "refresh_failure"
	auditEventLogout           = "logout"
	auditEventAdminDenied      = "admin_denied"
)

func (e *Engine) emitAudit(
	ctx context.Context,
	eventType string,
	success bool,
	userID int64,
	err error,
	metadata func() map[string]string,
) {
	if e == nil || e.audit == nil {
		return
	}

	ev := audit.NewEvent(eventType)
	ev.UserID = userID
	ev.IP = clientIPFromContext(ctx)
	ev.Success = success
	if err != nil {
		ev.Reason = string(KindOf(err))
	}
	if metadata != nil {
		ev.Metadata = metadata()
	}
	e.audit.Emit(ctx, ev)
}
