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

// EastmoneyAdapter pulls board constituents from the Eastmoney quote API as a
// secondary source. Board membership only implies the industry, so matches
// carry partial confidence. Hong Kong Connect names show up with 5-digit
// codes; mainland names with 6.
type EastmoneyAdapter struct {
	client   *http.Client
	baseURL  string
	limiter  *rate.Limiter
	pageSize int
}

// eastmoneyEnvelope is the response shape of the board clist endpoint.
// f12 is the stock code, f14 the display name.
type eastmoneyEnvelope struct {
	Rc   int `json:"rc"`
	Data *struct {
		Total int `json:"total"`
		Diff  []struct {
			Code string `json:"f12"`
			Name string `json:"f14"`
		} `json:"diff"`
	} `json:"data"`
}

// NewEastmoneyAdapter creates the secondary source adapter. Eastmoney
// tolerates a few requests per second; stay well under that.
func NewEastmoneyAdapter(baseURL string) *EastmoneyAdapter {
	return &EastmoneyAdapter{
		client:   &http.Client{Timeout: 15 * time.Second},
		baseURL:  baseURL,
		limiter:  rate.NewLimiter(rate.Every(500*time.Millisecond), 1),
		pageSize: 100,
	}
}

// Name identifies the source in mappings and logs
func (a *EastmoneyAdapter) Name() string { return "eastmoney" }

// Priority ranks this source below the primary authority
func (a *EastmoneyAdapter) Priority() int { return 10 }

// Confidence reflects that board membership only infers the industry
func (a *EastmoneyAdapter) Confidence() float64 { return 0.6 }

// FetchConstituents returns one page of board constituents for a leaf code
func (a *EastmoneyAdapter) FetchConstituents(ctx context.Context, leafCode string, page int) ([]Constituent, bool, error) {
	if err := a.limiter.Wait(ctx); err != nil {
		return nil, false, err
	}

	url := fmt.Sprintf("%s/api/qt/clist/get?fs=b:%s&fields=f12,f14&pn=%d&pz=%d", a.baseURL, leafCode, page, a.pageSize)
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

	var envelope eastmoneyEnvelope
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return nil, false, &MalformedResponseError{Err: err}
	}
	if envelope.Rc != 0 || envelope.Data == nil {
		return nil, false, &MalformedResponseError{Err: fmt.Errorf("unexpected rc %d", envelope.Rc)}
	}

	constituents := make([]Constituent, 0, len(envelope.Data.Diff))
	for _, row := range envelope.Data.Diff {
		market := models.MarketA
		if len(row.Code) == 5 {
			market = models.MarketHK
		}
		constituents = append(constituents, Constituent{
			Code:   row.Code,
			Name:   row.Name,
			Market: market,
		})
	}

	hasMore := page*a.pageSize < envelope.Data.Total
	return constituents, hasMore, nil
}
