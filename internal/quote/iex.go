package quote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/atharvakonge/paper-trader/internal/apperrors"
	"github.com/atharvakonge/paper-trader/internal/models"
	"github.com/shopspring/decimal"
)

// IEXClient fetches quotes from an IEX Cloud compatible endpoint:
// GET {baseURL}/stock/{symbol}/quote?token={apiKey}
type IEXClient struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

func NewIEXClient(baseURL, apiKey string, timeout time.Duration) *IEXClient {
	return &IEXClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		client:  &http.Client{Timeout: timeout},
	}
}

type iexQuote struct {
	Symbol      string           `json:"symbol"`
	CompanyName string           `json:"companyName"`
	LatestPrice *decimal.Decimal `json:"latestPrice"`
}

func (c *IEXClient) Lookup(ctx context.Context, symbol string) (*models.Quote, error) {
	symbol = NormalizeSymbol(symbol)
	if symbol == "" {
		return nil, &apperrors.QuoteError{Symbol: symbol, Err: apperrors.ErrSymbolRequired}
	}

	addr := fmt.Sprintf("%s/stock/%s/quote?token=%s",
		c.baseURL, url.PathEscape(symbol), url.QueryEscape(c.apiKey))

	var q iexQuote
	if err := jwget(ctx, c.client, addr, &q); err != nil {
		return nil, &apperrors.QuoteError{Symbol: symbol, Err: err}
	}
	if q.LatestPrice == nil || !q.LatestPrice.IsPositive() {
		return nil, &apperrors.QuoteError{Symbol: symbol, Err: fmt.Errorf("no price in response")}
	}

	name := q.CompanyName
	if name == "" {
		name = symbol
	}
	if q.Symbol != "" {
		symbol = NormalizeSymbol(q.Symbol)
	}
	return &models.Quote{Symbol: symbol, Name: name, Price: roundPrice(*q.LatestPrice)}, nil
}

// jwget GETs addr and decodes the JSON body into data.
func jwget(ctx context.Context, client *http.Client, addr string, data interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, addr, nil)
	if err != nil {
		return err
	}
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("cannot http GET %v%v: %v", resp.Request.URL.Host, resp.Request.URL.Path, resp.Status)
	}
	var buf bytes.Buffer
	if _, err := io.Copy(&buf, resp.Body); err != nil {
		return err
	}
	return json.Unmarshal(buf.Bytes(), data)
}
