package tools

import (
	"context"
	"net/http"
	"net/url"
	"time"

	"github.com/scamlens/orchestrator/internal/circuitbreaker"
)

// CompanyRegistry checks a company name against an incorporation registry.
type CompanyRegistry struct {
	baseURL string
	client  *http.Client
	breaker *circuitbreaker.Breaker
}

// NewCompanyRegistry creates the company verification tool.
func NewCompanyRegistry(baseURL string, timeout time.Duration) *CompanyRegistry {
	return &CompanyRegistry{
		baseURL: baseURL,
		client:  newHTTPClient(timeout),
		breaker: circuitbreaker.New(NameCompanyRegistry, circuitbreaker.DefaultSettings(), nil),
	}
}

func (c *CompanyRegistry) Name() string { return NameCompanyRegistry }

// Call looks the name up. Expected upstream fields: registered, status,
// jurisdiction, incorporation_date.
func (c *CompanyRegistry) Call(ctx context.Context, value string) (map[string]interface{}, error) {
	params := url.Values{}
	params.Set("name", value)

	var out map[string]interface{}
	err := c.breaker.Execute(ctx, func(ctx context.Context) error {
		var cerr error
		out, cerr = getJSON(ctx, c.client, c.baseURL, params)
		return cerr
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}
