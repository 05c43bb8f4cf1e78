package tools

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/time/rate"

	"github.com/scamlens/orchestrator/internal/circuitbreaker"
)

// WebSearch queries a search API for scam mentions of an entity value. A
// client-side limiter keeps the shared upstream quota intact when many
// entities fan out at once.
type WebSearch struct {
	baseURL string
	client  *http.Client
	limiter *rate.Limiter
	breaker *circuitbreaker.Breaker
}

// NewWebSearch creates the web search tool with the given requests/second.
func NewWebSearch(baseURL string, rps float64, timeout time.Duration) *WebSearch {
	if rps <= 0 {
		rps = 2
	}
	return &WebSearch{
		baseURL: baseURL,
		client:  newHTTPClient(timeout),
		limiter: rate.NewLimiter(rate.Limit(rps), int(rps)+1),
		breaker: circuitbreaker.New(NameWebSearch, circuitbreaker.DefaultSettings(), nil),
	}
}

func (w *WebSearch) Name() string { return NameWebSearch }

// Call searches for the value combined with scam terms. Expected upstream
// fields: result_count, top_results. The breaker is consulted before the
// limiter so an open circuit does not consume quota tokens.
func (w *WebSearch) Call(ctx context.Context, value string) (map[string]interface{}, error) {
	params := url.Values{}
	params.Set("q", fmt.Sprintf("%q scam OR fraud OR complaint", value))

	var out map[string]interface{}
	err := w.breaker.Execute(ctx, func(ctx context.Context) error {
		if lerr := w.limiter.Wait(ctx); lerr != nil {
			return fmt.Errorf("web search rate limit: %w", lerr)
		}
		var cerr error
		out, cerr = getJSON(ctx, w.client, w.baseURL, params)
		return cerr
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}
