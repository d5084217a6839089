package sheets

import (
	"context"

	"timbro/internal/core"
)

// Ports for outbound adapters.
type (
	// AuditAppender writes one manual-entry notification to the shared
	// audit sheet and returns a reference to the written row.
	AuditAppender interface {
		AppendAudit(ctx context.Context, n core.Notification) (rowRef string, err error)
	}
)
