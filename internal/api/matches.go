package api

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/lostfound/admin-console/internal/model"
)

type wireMatch struct {
	ID              flexString     `json:"id"`
	SourceReport    *wireReportRef `json:"source_report"`
	CandidateReport *wireReportRef `json:"candidate_report"`
	Status          string         `json:"status"`
	OverallScore    flexFloat      `json:"overall_score"`
	TextScore       flexFloat      `json:"text_score"`
	GeoScore        flexFloat      `json:"geo_score"`
	ImageScore      flexFloat      `json:"image_score"`
	TimeScore       flexFloat      `json:"time_score"`
	ColorScore      flexFloat      `json:"color_score"`
	CreatedAt       flexTime       `json:"created_at"`
}

func (w wireMatch) toModel() model.Match {
	return model.Match{
		ID:              string(w.ID),
		SourceReport:    w.SourceReport.toModel(),
		CandidateReport: w.CandidateReport.toModel(),
		Status:          model.MatchStatus(statusOrUnknown(w.Status)),
		Scores: model.Scores{
			Overall: model.Score(w.OverallScore),
			Text:    model.Score(w.TextScore),
			Geo:     model.Score(w.GeoScore),
			Image:   model.Score(w.ImageScore),
			Time:    model.Score(w.TimeScore),
			Color:   model.Score(w.ColorScore),
		},
		CreatedAt: w.CreatedAt.Time,
	}
}

// MatchingRun is the server's answer to a trigger-matching call.
type MatchingRun struct {
	Message        string
	MatchesCreated int
}

// GetMatches lists matches matching the query (status, min_score, page, limit).
func (c *Client) GetMatches(ctx context.Context, q url.Values) (Page[model.Match], error) {
	var raw rawPage[wireMatch]
	if err := c.get(ctx, "/admin/matches", q, &raw); err != nil {
		return Page[model.Match]{}, fmt.Errorf("get matches: %w", err)
	}
	page, limit := pageParams(q)
	return decodePage(raw, page, limit, wireMatch.toModel), nil
}

// UpdateMatch moves one match to status.
func (c *Client) UpdateMatch(ctx context.Context, id string, status model.MatchStatus) error {
	body := statusPatch{Status: string(status)}
	if err := c.send(ctx, http.MethodPatch, "/admin/matches/"+url.PathEscape(id), body, nil); err != nil {
		return fmt.Errorf("update match %s: %w", id, err)
	}
	return nil
}

// TriggerMatchingForAll asks the server to run matching over every open report.
func (c *Client) TriggerMatchingForAll(ctx context.Context) (MatchingRun, error) {
	var w struct {
		Message        string  `json:"message"`
		MatchesCreated flexInt `json:"matches_created"`
	}
	if err := c.send(ctx, http.MethodPost, "/admin/matches/trigger-all", struct{}{}, &w); err != nil {
		return MatchingRun{}, fmt.Errorf("trigger matching: %w", err)
	}
	return MatchingRun{Message: w.Message, MatchesCreated: int(w.MatchesCreated)}, nil
}

// ClearAllMatches deletes every match.
func (c *Client) ClearAllMatches(ctx context.Context) error {
	if err := c.send(ctx, http.MethodDelete, "/admin/matches", nil, nil); err != nil {
		return fmt.Errorf("clear matches: %w", err)
	}
	return nil
}

type wireMatchStats struct {
	Total        flexInt   `json:"total"`
	TotalMatches flexInt   `json:"total_matches"`
	Candidates   flexInt   `json:"candidates"`
	Candidate    flexInt   `json:"candidate"`
	Promoted     flexInt   `json:"promoted"`
	Suppressed   flexInt   `json:"suppressed"`
	Dismissed    flexInt   `json:"dismissed"`
	AverageScore flexFloat `json:"average_score"`
	AvgScore     flexFloat `json:"avg_score"`
}

func (w wireMatchStats) toModel() model.MatchStats {
	avg := w.AverageScore
	if avg == 0 {
		avg = w.AvgScore
	}
	return model.MatchStats{
		Total:        int(max(w.Total, w.TotalMatches)),
		Candidates:   int(max(w.Candidates, w.Candidate)),
		Promoted:     int(w.Promoted),
		Suppressed:   int(w.Suppressed),
		Dismissed:    int(w.Dismissed),
		AverageScore: model.Score(avg),
	}
}

// GetMatchStats returns the match summary counters.
func (c *Client) GetMatchStats(ctx context.Context) (model.MatchStats, error) {
	var w wireMatchStats
	if err := c.get(ctx, "/admin/matches/stats", nil, &w); err != nil {
		return model.MatchStats{}, fmt.Errorf("get match stats: %w", err)
	}
	return w.toModel(), nil
}
