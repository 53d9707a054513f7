package alpaca

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/tradoverse/broker-gateway/pkg/models"
)

// errNotFound marks a vendor 404 so callers can translate "no such
// position" into a flat result instead of a failure.
var errNotFound = errors.New("not found")

// restClient is the hand-rolled trading REST client. Authentication is the
// API key/secret header pair on every request.
type restClient struct {
	http    *http.Client
	baseURL string
	key     string
	secret  string
	logger  *logrus.Entry
}

func newRESTClient(baseURL, key, secret string, logger *logrus.Entry) *restClient {
	return &restClient{
		http:    &http.Client{Timeout: 30 * time.Second},
		baseURL: baseURL,
		key:     key,
		secret:  secret,
		logger:  logger,
	}
}

// do executes one trading API call, decoding the JSON response into out
// when out is non-nil. Vendor failures are translated into the shared error
// taxonomy before they leave this client.
func (c *restClient) do(ctx context.Context, method, path string, query url.Values, body, out interface{}) error {
	endpoint := c.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return models.NewBrokerError(models.BrokerAlpaca, models.ErrUnknown, "failed to encode request", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return models.NewBrokerError(models.BrokerAlpaca, models.ErrUnknown, "failed to create request", err)
	}
	req.Header.Set("APCA-API-KEY-ID", c.key)
	req.Header.Set("APCA-API-SECRET-KEY", c.secret)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return models.NewBrokerError(models.BrokerAlpaca, models.ErrConnection,
			fmt.Sprintf("%s %s failed", method, path), err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return c.statusError(resp, method, path)
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return models.NewBrokerError(models.BrokerAlpaca, models.ErrUnknown,
				fmt.Sprintf("failed to decode %s %s response", method, path), err)
		}
	}
	return nil
}

// statusError maps a vendor HTTP failure onto the error taxonomy:
// 401/403 authentication, 429 throttling, 400/422 order shape, 404 not
// found, everything else unknown.
func (c *restClient) statusError(resp *http.Response, method, path string) error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	var vendor struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	}
	_ = json.Unmarshal(raw, &vendor)
	msg := vendor.Message
	if msg == "" {
		msg = string(raw)
	}

	c.logger.WithFields(logrus.Fields{
		"method": method,
		"path":   path,
		"status": resp.StatusCode,
		"code":   vendor.Code,
	}).Warn("Trading API call failed")

	detail := fmt.Sprintf("%s %s: status %d: %s", method, path, resp.StatusCode, msg)
	switch resp.StatusCode {
	case http.StatusUnauthorized, http.StatusForbidden:
		return models.NewBrokerError(models.BrokerAlpaca, models.ErrAuthenticationFailed, detail, nil)
	case http.StatusTooManyRequests:
		return models.NewBrokerError(models.BrokerAlpaca, models.ErrRateLimited, detail, nil)
	case http.StatusBadRequest, http.StatusUnprocessableEntity:
		return models.NewBrokerError(models.BrokerAlpaca, models.ErrInvalidOrder, detail, nil)
	case http.StatusNotFound:
		return models.NewBrokerError(models.BrokerAlpaca, models.ErrUnknown, detail, errNotFound)
	default:
		return models.NewBrokerError(models.BrokerAlpaca, models.ErrUnknown, detail, nil)
	}
}
