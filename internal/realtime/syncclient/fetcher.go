package syncclient

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/nourseensaeed7/BinWise-Recycle/internal/modules/pickup"
)

// Fetcher loads the authoritative list of pickups visible to the client.
type Fetcher interface {
	Fetch(ctx context.Context) ([]pickup.View, error)
}

// TotalsFetcher is implemented by fetchers that can also load the caller's reward totals.
// Reconcile uses it so a missed points-awarded event cannot leave the balance behind.
type TotalsFetcher interface {
	FetchTotals(ctx context.Context) (pickup.TotalsView, error)
}

type FetcherFunc func(ctx context.Context) ([]pickup.View, error)

func (f FetcherFunc) Fetch(ctx context.Context) ([]pickup.View, error) { return f(ctx) }

// HTTPFetcher reads a pickup list endpoint such as /api/pickups/my and the
// totals endpoint /api/rewards/me.
type HTTPFetcher struct {
	BaseURL    string
	Path       string
	TotalsPath string
	Token      string
	Client     *http.Client
}

type listResponse struct {
	Pickups []pickup.View `json:"pickups"`
}

func (f HTTPFetcher) Fetch(ctx context.Context) ([]pickup.View, error) {
	path := f.Path
	if path == "" {
		path = "/api/pickups/my"
	}
	var out listResponse
	if err := f.get(ctx, path, &out); err != nil {
		return nil, err
	}
	return out.Pickups, nil
}

func (f HTTPFetcher) FetchTotals(ctx context.Context) (pickup.TotalsView, error) {
	path := f.TotalsPath
	if path == "" {
		path = "/api/rewards/me"
	}
	var out pickup.TotalsView
	if err := f.get(ctx, path, &out); err != nil {
		return pickup.TotalsView{}, err
	}
	return out, nil
}

func (f HTTPFetcher) get(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, strings.TrimRight(f.BaseURL, "/")+path, nil)
	if err != nil {
		return err
	}
	if f.Token != "" {
		req.Header.Set("Authorization", "Bearer "+f.Token)
	}
	client := f.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("fetch %s: status %d: %s", path, resp.StatusCode, strings.TrimSpace(string(body)))
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("fetch %s: decode: %w", path, err)
	}
	return nil
}
