package screens

import (
	"context"
	"fmt"

	"github.com/lostfound/admin-console/internal/api"
	"github.com/lostfound/admin-console/internal/listview"
	"github.com/lostfound/admin-console/internal/model"
)

// AuditFilterKeys are the query parameters the audit log accepts.
var AuditFilterKeys = []string{"search", "action", "actor_email", "date_from", "date_to"}

// Audit is the read-only audit log screen. It has no stats panel.
type Audit struct {
	*listview.Controller[model.AuditLog, struct{}]
	Detail *listview.Detail[model.AuditLog]
}

func newAudit(a API, o Options) *Audit {
	src := listview.SourceFuncs[model.AuditLog, struct{}]{
		ListFunc: listFrom(a.GetAuditLogs),
	}
	opts := controllerOptions(o, "audit logs", func(l model.AuditLog) string { return l.ID })
	s := &Audit{Controller: listview.NewController(src, opts)}
	s.Detail = listview.NewDetail(s.entry, o.Logger)
	return s
}

// entry serves the log detail from the loaded page; the API has no
// single-entry endpoint.
func (s *Audit) entry(_ context.Context, id string) (model.AuditLog, error) {
	l, ok := s.Find(id)
	if !ok {
		return model.AuditLog{}, fmt.Errorf("audit log %s: %w", id, api.ErrNotFound)
	}
	return l, nil
}
