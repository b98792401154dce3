package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"github.com/quantbots/industrymapapi/internal/models"
)

// SwsAdapter pulls constituents from the primary classification authority
// (Shenwan industry indices). Matches from this source carry full confidence.
type SwsAdapter struct {
	client   *http.Client
	baseURL  string
	limiter  *rate.Limiter
	pageSize int
}

// swsEnvelope is the response shape of the constituent endpoint
type swsEnvelope struct {
	Code int    `json:"code"`
	Msg  string `json:"msg"`
	Data struct {
		List []struct {
			StockCode string `json:"stock_code"`
			StockName string `json:"stock_name"`
		} `json:"list"`
		HasMore bool `json:"has_more"`
	} `json:"data"`
}

// NewSwsAdapter creates the primary authority adapter. The endpoint allows
// roughly one request per second, enforced locally.
func NewSwsAdapter(baseURL string) *SwsAdapter {
	return &SwsAdapter{
		client:   &http.Client{Timeout: 15 * time.Second},
		baseURL:  baseURL,
		limiter:  rate.NewLimiter(rate.Every(time.Second), 1),
		pageSize: 50,
	}
}

// Name identifies the source in mappings and logs
func (a *SwsAdapter) Name() string { return "sws" }

// Priority ranks the primary authority above every secondary source
func (a *SwsAdapter) Priority() int { return 100 }

// Confidence is 1.0, reserved for the primary authority
func (a *SwsAdapter) Confidence() float64 { return 1.0 }

// FetchConstituents returns one page of constituents for a leaf industry code
func (a *SwsAdapter) FetchConstituents(ctx context.Context, leafCode string, page int) ([]Constituent, bool, error) {
	if err := a.limiter.Wait(ctx); err != nil {
		return nil, false, err
	}

	url := fmt.Sprintf("%s/constituents?index_code=%s&page=%d&page_size=%d", a.baseURL, leafCode, page, a.pageSize)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, false, err
	}

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, false, &TransientError{Err: err}
	}
	defer resp.Body.Close()

	if err := classifyStatus(resp.StatusCode); err != nil {
		return nil, false, err
	}

	var envelope swsEnvelope
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return nil, false, &MalformedResponseError{Err: err}
	}
	if envelope.Code != 0 {
		return nil, false, &MalformedResponseError{Err: fmt.Errorf("unexpected response code %d: %s", envelope.Code, envelope.Msg)}
	}

	constituents := make([]Constituent, 0, len(envelope.Data.List))
	for _, row := range envelope.Data.List {
		constituents = append(constituents, Constituent{
			Code:   row.StockCode,
			Name:   row.StockName,
			Market: models.MarketA,
		})
	}

	return constituents, envelope.Data.HasMore, nil
}

// classifyStatus maps an HTTP status to the provider error taxonomy
func classifyStatus(status int) error {
	switch {
	case status == http.StatusOK:
		return nil
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return &AuthError{Err: fmt.Errorf("status %d", status)}
	case status == http.StatusTooManyRequests || status >= 500:
		return &TransientError{Err: fmt.Errorf("status %d", status)}
	default:
		return &MalformedResponseError{Err: fmt.Errorf("unexpected status %d", status)}
	}
}
