package tools

import (
	"context"
	"fmt"
)

// ReportSummary is the aggregate of scam reports filed against one value.
type ReportSummary struct {
	Found       bool     `json:"found"`
	Verified    bool     `json:"verified"`
	RiskScore   float64  `json:"risk_score"`
	ReportCount int      `json:"report_count"`
	Categories  []string `json:"categories"`
	LastSeen    string   `json:"last_seen"`
}

// ReportStore looks up scam reports; backed by Postgres in production.
type ReportStore interface {
	LookupReports(ctx context.Context, value string) (*ReportSummary, error)
}

// ScamDB checks a value against the scam report database.
type ScamDB struct {
	store ReportStore
}

// NewScamDB creates the scam database lookup tool.
func NewScamDB(store ReportStore) *ScamDB {
	return &ScamDB{store: store}
}

func (s *ScamDB) Name() string { return NameScamDB }

// Call looks the value up and returns the report summary as a flat payload.
func (s *ScamDB) Call(ctx context.Context, value string) (map[string]interface{}, error) {
	summary, err := s.store.LookupReports(ctx, value)
	if err != nil {
		return nil, fmt.Errorf("scamdb lookup %q: %w", value, err)
	}
	if summary == nil {
		summary = &ReportSummary{}
	}
	return map[string]interface{}{
		"found":        summary.Found,
		"verified":     summary.Verified,
		"risk_score":   summary.RiskScore,
		"report_count": summary.ReportCount,
		"categories":   summary.Categories,
		"last_seen":    summary.LastSeen,
	}, nil
}
