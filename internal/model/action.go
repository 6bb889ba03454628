package model

import "strings"

// ActionCategory is the semantic colour bucket for an audit action verb.
type ActionCategory string

const (
	ActionCreate  ActionCategory = "create"
	ActionUpdate  ActionCategory = "update"
	ActionDelete  ActionCategory = "delete"
	ActionApprove ActionCategory = "approve"
	ActionReject  ActionCategory = "reject"
	ActionOther   ActionCategory = "other"
)

// actionKeywords is checked in order; the first substring hit wins.
var actionKeywords = []struct {
	needle   string
	category ActionCategory
}{
	{"delete", ActionDelete},
	{"remove", ActionDelete},
	{"reject", ActionReject},
	{"suppress", ActionReject},
	{"approve", ActionApprove},
	{"promote", ActionApprove},
	{"confirm", ActionApprove},
	{"create", ActionCreate},
	{"register", ActionCreate},
	{"update", ActionUpdate},
	{"edit", ActionUpdate},
	{"change", ActionUpdate},
}

// ClassifyAction maps a free-text audit verb such as "report_approved" or
// "DELETE_USER" onto a category by case-insensitive substring match.
func ClassifyAction(action string) ActionCategory {
	a := strings.ToLower(action)
	for _, kw := range actionKeywords {
		if strings.Contains(a, kw.needle) {
			return kw.category
		}
	}
	return ActionOther
}

// reportTransitions lists the moves an admin may request for a report.
// Terminal states (rejected, resolved, hidden) have no outgoing edges.
var reportTransitions = map[ReportStatus][]ReportStatus{
	ReportPending:  {ReportApproved, ReportRejected, ReportHidden},
	ReportApproved: {ReportResolved, ReportHidden},
}

// CanTransitionReport reports whether from -> to is a move the console offers.
func CanTransitionReport(from, to ReportStatus) bool {
	for _, next := range reportTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// NextReportStatuses returns the statuses reachable from the given one.
func NextReportStatuses(from ReportStatus) []ReportStatus {
	return append([]ReportStatus(nil), reportTransitions[from]...)
}

// ParseReportStatus validates a status string.
func ParseReportStatus(s string) (ReportStatus, bool) {
	switch st := ReportStatus(s); st {
	case ReportPending, ReportApproved, ReportRejected, ReportResolved, ReportHidden:
		return st, true
	}
	return "", false
}

// ParseMatchStatus validates a status string.
func ParseMatchStatus(s string) (MatchStatus, bool) {
	switch st := MatchStatus(s); st {
	case MatchCandidate, MatchPromoted, MatchSuppressed, MatchDismissed:
		return st, true
	}
	return "", false
}

// ParseRole validates a role string.
func ParseRole(s string) (Role, bool) {
	switch r := Role(s); r {
	case RoleUser, RoleModerator, RoleAdmin:
		return r, true
	}
	return "", false
}

// ParseFraudVerdict validates a review verdict string.
func ParseFraudVerdict(s string) (FraudVerdict, bool) {
	switch v := FraudVerdict(s); v {
	case VerdictConfirmed, VerdictRejected:
		return v, true
	}
	return "", false
}
