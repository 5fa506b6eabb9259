package worker

import (
	"github.com/buyeth/identity-service/internal/service"
)

// StartAuditWorker registers the audit subscriptions.
func StartAuditWorker(auditService *service.AuditService) {
	if auditService == nil {
		return
	}
	auditService.RegisterHandlers()
}
