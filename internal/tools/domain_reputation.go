package tools

import (
	"context"
	"net/http"
	"net/url"
	"time"

	"github.com/scamlens/orchestrator/internal/circuitbreaker"
)

// DomainReputation queries an upstream reputation API for a domain's risk
// rating and registration age.
type DomainReputation struct {
	baseURL string
	client  *http.Client
	breaker *circuitbreaker.Breaker
}

// NewDomainReputation creates the domain reputation tool.
func NewDomainReputation(baseURL string, timeout time.Duration) *DomainReputation {
	return &DomainReputation{
		baseURL: baseURL,
		client:  newHTTPClient(timeout),
		breaker: circuitbreaker.New(NameDomainReputation, circuitbreaker.DefaultSettings(), nil),
	}
}

func (d *DomainReputation) Name() string { return NameDomainReputation }

// Call fetches reputation for the domain. Expected upstream fields:
// risk ("low"|"medium"|"high"), domain_age_days, categories.
func (d *DomainReputation) Call(ctx context.Context, value string) (map[string]interface{}, error) {
	params := url.Values{}
	params.Set("domain", value)

	var out map[string]interface{}
	err := d.breaker.Execute(ctx, func(ctx context.Context) error {
		var cerr error
		out, cerr = getJSON(ctx, d.client, d.baseURL, params)
		return cerr
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}
