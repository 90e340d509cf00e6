// Package ratesvc reads exchange rates from exchangerate-api.com.
package ratesvc

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/askante/core"
	"github.com/trezcool/askante/core/fundamentals"
)

const service = "exchangerate-api"

type Client struct {
	url    string
	apiKey string
	client *http.Client
}

var _ fundamentals.RateSource = (*Client)(nil)

func NewClient(conf *core.Config) *Client {
	timeout := conf.HTTPClientTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{url: conf.Rates.URL, apiKey: conf.Rates.ApiKey, client: &http.Client{Timeout: timeout}}
}

type latestResponse struct {
	Result          string             `json:"result"`
	ErrorType       string             `json:"error-type"`
	ConversionRates map[string]float64 `json:"conversion_rates"`
}

// USDToZAR returns the latest USD to ZAR conversion rate.
func (c *Client) USDToZAR(ctx context.Context) (float64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fmt.Sprintf("%s/%s/latest/USD", c.url, c.apiKey), nil)
	if err != nil {
		return 0, errors.Wrap(err, "building rates request")
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return 0, &core.UpstreamError{Service: service, Status: http.StatusBadGateway, Message: "exchange rate service unreachable"}
	}
	defer resp.Body.Close()

	var body latestResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil && resp.StatusCode == http.StatusOK {
		return 0, errors.Wrap(err, "decoding rates response")
	}
	if resp.StatusCode != http.StatusOK || body.Result == "error" {
		msg := body.ErrorType
		if msg == "" {
			msg = "failed to fetch exchange rate"
		}
		status := resp.StatusCode
		if status == http.StatusOK {
			status = http.StatusBadGateway
		}
		return 0, &core.UpstreamError{Service: service, Status: status, Message: msg}
	}
	rate, ok := body.ConversionRates["ZAR"]
	if !ok {
		return 0, &core.UpstreamError{Service: service, Status: http.StatusBadGateway, Message: "ZAR rate missing"}
	}
	return rate, nil
}
