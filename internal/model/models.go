package model

import (
	"encoding/json"
	"time"
)

// ReportType distinguishes lost items from found items.
type ReportType string

const (
	ReportLost  ReportType = "lost"
	ReportFound ReportType = "found"
)

// ReportStatus tracks a report through moderation.
type ReportStatus string

const (
	ReportPending  ReportStatus = "pending"
	ReportApproved ReportStatus = "approved"
	ReportRejected ReportStatus = "rejected"
	ReportResolved ReportStatus = "resolved"
	ReportHidden   ReportStatus = "hidden"
	// ReportUnknown stands for a missing status. It allows no transition.
	ReportUnknown  ReportStatus = "unknown"
)

// FraudStatus is the fraud-review state attached to a report. Empty means the
// API did not send one.
type FraudStatus string

const (
	FraudClean         FraudStatus = "clean"
	FraudFlagged       FraudStatus = "flagged"
	FraudReviewed      FraudStatus = "reviewed"
	FraudFalsePositive FraudStatus = "false_positive"
	FraudRejected      FraudStatus = "rejected"
)

// MatchStatus tracks a candidate pairing between two reports.
type MatchStatus string

const (
	MatchCandidate  MatchStatus = "candidate"
	MatchPromoted   MatchStatus = "promoted"
	MatchSuppressed MatchStatus = "suppressed"
	MatchDismissed  MatchStatus = "dismissed"
	// MatchUnknown stands for a missing status. It is never actionable.
	MatchUnknown    MatchStatus = "unknown"
)

// Role is a platform user's permission level.
type Role string

const (
	RoleUser      Role = "user"
	RoleModerator Role = "moderator"
	RoleAdmin     Role = "admin"
)

// RiskLevel is the fraud detector's bucketed verdict.
type RiskLevel string

const (
	RiskLow      RiskLevel = "low"
	RiskMedium   RiskLevel = "medium"
	RiskHigh     RiskLevel = "high"
	RiskCritical RiskLevel = "critical"
)

// FraudVerdict is the admin decision on a fraud detection result.
type FraudVerdict string

const (
	VerdictConfirmed FraudVerdict = "confirmed"
	VerdictRejected  FraudVerdict = "rejected"
)

// UnknownField is the placeholder for report fields the API omitted.
const UnknownField = "Unknown"

// Report is a lost or found item report.
type Report struct {
	ID            string
	Type          ReportType
	Status        ReportStatus
	FraudStatus   FraudStatus
	Title         string
	Description   string
	Category      string
	LocationCity  string
	RewardOffered bool
	OwnerName     string
	OwnerEmail    string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// ReportRef is the summary of a report embedded in a match.
type ReportRef struct {
	ID           string
	Title        string
	Category     string
	LocationCity string
	Type         string
}

// UnknownReportRef returns the placeholder used when a match arrives without
// one of its reports.
func UnknownReportRef() ReportRef {
	return ReportRef{
		Title:        UnknownField,
		Category:     UnknownField,
		LocationCity: UnknownField,
		Type:         UnknownField,
	}
}

// Scores holds the component scores of a match, each in [0, 1].
type Scores struct {
	Overall Score
	Text    Score
	Geo     Score
	Image   Score
	Time    Score
	Color   Score
}

// Match pairs a source report with a candidate report.
type Match struct {
	ID              string
	SourceReport    ReportRef
	CandidateReport ReportRef
	Status          MatchStatus
	Scores          Scores
	CreatedAt       time.Time
}

// Actionable reports whether the match still accepts promote/suppress.
func (m Match) Actionable() bool {
	return m.Status == MatchCandidate
}

// User is a platform account.
type User struct {
	ID                string
	Email             string
	DisplayName       string
	Role              Role
	IsActive          bool
	IsVerified        bool
	ReportsCount      int
	MatchesCount      int
	SuccessfulMatches int
	CreatedAt         time.Time
}

// FraudResult is the fraud detector's output for one report.
type FraudResult struct {
	ID               string
	ReportID         string
	RiskLevel        RiskLevel
	FraudScore       float64 // 0-100
	Confidence       Score   // 0-1
	Flags            []string
	IsReviewed       bool
	IsConfirmedFraud bool
	ReviewedBy       string
	ReviewedAt       *time.Time
	AdminNotes       string
	CreatedAt        time.Time
}

// ConfidencePercent renders the detector confidence as a percentage.
func (f FraudResult) ConfidencePercent() string {
	return f.Confidence.Percent()
}

// RiskRank orders risk levels from 0 (low) to 3 (critical); unknown levels rank -1.
func (f FraudResult) RiskRank() int {
	switch f.RiskLevel {
	case RiskLow:
		return 0
	case RiskMedium:
		return 1
	case RiskHigh:
		return 2
	case RiskCritical:
		return 3
	default:
		return -1
	}
}

// AuditLog is one server-side audit trail entry.
type AuditLog struct {
	ID           string
	Action       string
	Category     ActionCategory
	ResourceType string
	ResourceID   string
	ActorEmail   string
	ActorID      string
	Details      string
	Metadata     json.RawMessage
	Changes      json.RawMessage
	CreatedAt    time.Time
}

// ReportStats summarises the reports collection.
type ReportStats struct {
	Total    int
	Pending  int
	Approved int
	Rejected int
	Resolved int
	Hidden   int
	Lost     int
	Found    int
}

// MatchStats summarises the matches collection.
type MatchStats struct {
	Total        int
	Candidates   int
	Promoted     int
	Suppressed   int
	Dismissed    int
	AverageScore Score
}

// UserStats summarises the user base.
type UserStats struct {
	Total      int
	Active     int
	Inactive   int
	Verified   int
	Admins     int
	Moderators int
}

// FraudStats summarises fraud detection results.
type FraudStats struct {
	Total      int
	Unreviewed int
	Confirmed  int
	ByRisk     map[RiskLevel]int
}

// Statistics is the aggregate summary returned by the statistics endpoint.
type Statistics struct {
	Reports ReportStats
	Matches MatchStats
	Users   UserStats
	Fraud   FraudStats
}

// DashboardData is the landing page summary.
type DashboardData struct {
	Statistics     Statistics
	RecentActivity []AuditLog
}

// UserActivity is the per-user counters returned by the user stats endpoint.
type UserActivity struct {
	UserID            string
	ReportsCount      int
	MatchesCount      int
	SuccessfulMatches int
	LastActiveAt      *time.Time
}

// ConsoleAction is one mutating action issued from the console, kept in the
// local journal.
type ConsoleAction struct {
	ID        string
	Screen    string
	Action    string
	TargetIDs []string
	FailedIDs []string
	Error     string
	CreatedAt time.Time
}

// Failed reports whether any target failed.
func (a ConsoleAction) Failed() bool {
	return len(a.FailedIDs) > 0 || a.Error != ""
}
