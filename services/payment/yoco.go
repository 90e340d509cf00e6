package paymentsvc

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/askante/core"
)

const service = "yoco"

// yocoGateway charges card tokens through the Yoco online payments API.
type yocoGateway struct {
	url       string
	secretKey string
	client    *http.Client
}

var _ core.PaymentGateway = (*yocoGateway)(nil)

func NewYocoGateway(conf *core.Config) *yocoGateway {
	timeout := conf.HTTPClientTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &yocoGateway{
		url:       conf.Yoco.URL,
		secretKey: conf.Yoco.SecretKey,
		client:    &http.Client{Timeout: timeout},
	}
}

type yocoError struct {
	ErrorType    string `json:"errorType"`
	ErrorCode    string `json:"errorCode"`
	ErrorMessage string `json:"errorMessage"`
	DisplayMsg   string `json:"displayMessage"`
}

func (e yocoError) message() string {
	switch {
	case e.DisplayMsg != "":
		return e.DisplayMsg
	case e.ErrorMessage != "":
		return e.ErrorMessage
	}
	return "payment failed"
}

func (g *yocoGateway) Charge(ctx context.Context, req core.ChargeRequest) (core.ChargeResult, error) {
	var res core.ChargeResult
	body, err := json.Marshal(req)
	if err != nil {
		return res, errors.Wrap(err, "encoding charge")
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, g.url, bytes.NewReader(body))
	if err != nil {
		return res, errors.Wrap(err, "building charge request")
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("X-Auth-Secret-Key", g.secretKey)

	resp, err := g.client.Do(httpReq)
	if err != nil {
		return res, &core.UpstreamError{Service: service, Status: http.StatusBadGateway, Message: "payment gateway unreachable"}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return res, errors.Wrap(err, "reading charge response")
	}
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		var yerr yocoError
		_ = json.Unmarshal(data, &yerr)
		return res, &core.UpstreamError{Service: service, Status: resp.StatusCode, Message: yerr.message()}
	}
	if err := json.Unmarshal(data, &res); err != nil {
		return res, errors.Wrap(err, "decoding charge response")
	}
	return res, nil
}
