package tools

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scamlens/orchestrator/internal/extraction"
)

func TestRosterSizes(t *testing.T) {
	assert.Len(t, RosterFor(extraction.EntityPhone), 3)
	assert.Len(t, RosterFor(extraction.EntityURL), 3)
	assert.Len(t, RosterFor(extraction.EntityEmail), 2)
	assert.Len(t, RosterFor(extraction.EntityCompany), 3)
	assert.Nil(t, RosterFor(extraction.EntityPayment))
	assert.Nil(t, RosterFor(extraction.EntityAmount))
}

func TestRosterForReturnsCopy(t *testing.T) {
	first := RosterFor(extraction.EntityPhone)
	first[0] = "mutated"
	assert.Equal(t, NameScamDB, RosterFor(extraction.EntityPhone)[0])
}

func TestRegistry(t *testing.T) {
	reg := NewRegistry(NewPhoneValidator())

	tool, err := reg.Get(NamePhoneValidator)
	require.NoError(t, err)
	assert.Equal(t, NamePhoneValidator, tool.Name())

	_, err = reg.Get("nonexistent")
	assert.Error(t, err)
}

type stubStore struct {
	summary *ReportSummary
	err     error
}

func (s *stubStore) LookupReports(ctx context.Context, value string) (*ReportSummary, error) {
	return s.summary, s.err
}

func TestScamDBCall(t *testing.T) {
	db := NewScamDB(&stubStore{summary: &ReportSummary{
		Found:       true,
		Verified:    true,
		RiskScore:   95,
		ReportCount: 47,
	}})

	payload, err := db.Call(context.Background(), "+18005551234")
	require.NoError(t, err)
	assert.Equal(t, true, payload["found"])
	assert.Equal(t, true, payload["verified"])
	assert.Equal(t, 95.0, payload["risk_score"])
	assert.Equal(t, 47, payload["report_count"])

	_, jsonErr := json.Marshal(payload)
	require.NoError(t, jsonErr, "payload must be serializable")
}

func TestScamDBCallError(t *testing.T) {
	db := NewScamDB(&stubStore{err: errors.New("connection refused")})
	_, err := db.Call(context.Background(), "x")
	assert.Error(t, err)
}

func TestScamDBNoReports(t *testing.T) {
	db := NewScamDB(&stubStore{})
	payload, err := db.Call(context.Background(), "clean@example.com")
	require.NoError(t, err)
	assert.Equal(t, false, payload["found"])
}

func TestPhoneValidator(t *testing.T) {
	v := NewPhoneValidator()

	cases := []struct {
		name   string
		number string
		status string
	}{
		{"tollfree valid", "+18005551234", "valid"},
		{"premium rate", "+19005551234", "suspicious"},
		{"555 exchange", "+14155551234", "suspicious"},
		{"repeated digits", "+17777777777", "suspicious"},
		{"bad area code", "+10235551234", "invalid"},
		{"too short", "+12345", "invalid"},
		{"international", "+447911123456", "valid"},
		{"clean number", "+14152716393", "valid"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			payload, err := v.Call(context.Background(), tc.number)
			require.NoError(t, err)
			assert.Equal(t, tc.status, payload["status"], "number %s", tc.number)
		})
	}
}

func TestPhoneValidatorRespectsContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewPhoneValidator().Call(ctx, "+18005551234")
	assert.Error(t, err)
}

func TestDomainReputationCall(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "secure-bank-login.com", r.URL.Query().Get("domain"))
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"risk":            "high",
			"domain_age_days": 12,
		})
	}))
	defer srv.Close()

	tool := NewDomainReputation(srv.URL, time.Second)
	payload, err := tool.Call(context.Background(), "secure-bank-login.com")
	require.NoError(t, err)
	assert.Equal(t, "high", payload["risk"])
	assert.Equal(t, float64(12), payload["domain_age_days"])
}

func TestWebSearchCall(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Contains(t, r.URL.Query().Get("q"), "scam")
		_ = json.NewEncoder(w).Encode(map[string]interface{}{"result_count": 7})
	}))
	defer srv.Close()

	tool := NewWebSearch(srv.URL, 100, time.Second)
	payload, err := tool.Call(context.Background(), "+18005551234")
	require.NoError(t, err)
	assert.Equal(t, float64(7), payload["result_count"])
}

func TestWebSearchUpstreamError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "quota exceeded", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	tool := NewWebSearch(srv.URL, 100, time.Second)
	_, err := tool.Call(context.Background(), "x")
	assert.Error(t, err)
}

func TestCompanyRegistryCall(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"registered": false,
			"status":     "not_found",
		})
	}))
	defer srv.Close()

	tool := NewCompanyRegistry(srv.URL, time.Second)
	payload, err := tool.Call(context.Background(), "Apex Recovery Solutions LLC")
	require.NoError(t, err)
	assert.Equal(t, false, payload["registered"])
}
