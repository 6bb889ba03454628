package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"

	"github.com/lostfound/admin-console/internal/model"
)

type wireAudit struct {
	ID           flexString      `json:"id"`
	Action       string          `json:"action"`
	ResourceType string          `json:"resource_type"`
	Resource     string          `json:"resource"`
	ResourceID   flexString      `json:"resource_id"`
	ActorEmail   string          `json:"actor_email"`
	ActorID      flexString      `json:"actor_id"`
	UserID       flexString      `json:"user_id"`
	Details      string          `json:"details"`
	Reason       string          `json:"reason"`
	Metadata     json.RawMessage `json:"metadata"`
	Changes      json.RawMessage `json:"changes"`
	CreatedAt    flexTime        `json:"created_at"`
}

func (w wireAudit) toModel() model.AuditLog {
	return model.AuditLog{
		ID:           string(w.ID),
		Action:       w.Action,
		Category:     model.ClassifyAction(w.Action),
		ResourceType: firstNonEmpty(w.ResourceType, w.Resource),
		ResourceID:   string(w.ResourceID),
		ActorEmail:   w.ActorEmail,
		ActorID:      firstNonEmpty(string(w.ActorID), string(w.UserID)),
		Details:      firstNonEmpty(w.Details, w.Reason),
		Metadata:     nullToEmpty(w.Metadata),
		Changes:      nullToEmpty(w.Changes),
		CreatedAt:    w.CreatedAt.Time,
	}
}

func nullToEmpty(raw json.RawMessage) json.RawMessage {
	if len(raw) == 0 || string(raw) == "null" {
		return nil
	}
	return raw
}

// GetAuditLogs lists audit entries (search, action, actor_email, date_from,
// date_to, page, limit). Date filters are passed through unvalidated.
func (c *Client) GetAuditLogs(ctx context.Context, q url.Values) (Page[model.AuditLog], error) {
	var raw rawPage[wireAudit]
	if err := c.get(ctx, "/admin/audit-logs", q, &raw); err != nil {
		return Page[model.AuditLog]{}, fmt.Errorf("get audit logs: %w", err)
	}
	page, limit := pageParams(q)
	return decodePage(raw, page, limit, wireAudit.toModel), nil
}
