package binance

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/tradoverse/broker-gateway/pkg/models"
)

// restClient is the spot REST client. SIGNED endpoints carry a timestamp,
// a recvWindow and an HMAC-SHA256 signature over the query string; every
// authenticated request also sends the API key header.
type restClient struct {
	http       *http.Client
	baseURL    string
	key        string
	secret     string
	recvWindow time.Duration
	logger     *logrus.Entry
}

func newRESTClient(baseURL, key, secret string, recvWindow time.Duration, logger *logrus.Entry) *restClient {
	if recvWindow <= 0 {
		recvWindow = 5 * time.Second
	}
	return &restClient{
		http:       &http.Client{Timeout: 30 * time.Second},
		baseURL:    baseURL,
		key:        key,
		secret:     secret,
		recvWindow: recvWindow,
		logger:     logger,
	}
}

// public executes an unauthenticated market-data call.
func (c *restClient) public(ctx context.Context, path string, params url.Values, out interface{}) error {
	endpoint := c.baseURL + path
	if len(params) > 0 {
		endpoint += "?" + params.Encode()
	}
	return c.execute(ctx, http.MethodGet, path, endpoint, "", out)
}

// keyed executes a call that needs the API key header but no signature
// (user data stream management).
func (c *restClient) keyed(ctx context.Context, method, path string, params url.Values, out interface{}) error {
	endpoint := c.baseURL + path
	if len(params) > 0 {
		endpoint += "?" + params.Encode()
	}
	return c.execute(ctx, method, path, endpoint, c.key, out)
}

// signed executes a SIGNED call. Parameters travel in the query string for
// every method; the signature covers the encoded string including timestamp
// and recvWindow.
func (c *restClient) signed(ctx context.Context, method, path string, params url.Values, out interface{}) error {
	if params == nil {
		params = url.Values{}
	}
	params.Set("timestamp", strconv.FormatInt(time.Now().UnixMilli(), 10))
	params.Set("recvWindow", strconv.FormatInt(c.recvWindow.Milliseconds(), 10))

	query := params.Encode()
	mac := hmac.New(sha256.New, []byte(c.secret))
	mac.Write([]byte(query))
	signature := hex.EncodeToString(mac.Sum(nil))

	endpoint := c.baseURL + path + "?" + query + "&signature=" + signature
	return c.execute(ctx, method, path, endpoint, c.key, out)
}

func (c *restClient) execute(ctx context.Context, method, path, endpoint, apiKey string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, method, endpoint, nil)
	if err != nil {
		return models.NewBrokerError(models.BrokerBinance, models.ErrUnknown, "failed to create request", err)
	}
	if apiKey != "" {
		req.Header.Set("X-MBX-APIKEY", apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return models.NewBrokerError(models.BrokerBinance, models.ErrConnection,
			fmt.Sprintf("%s %s failed", method, path), err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return c.statusError(resp, method, path)
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return models.NewBrokerError(models.BrokerBinance, models.ErrUnknown,
				fmt.Sprintf("failed to decode %s %s response", method, path), err)
		}
	}
	return nil
}

// statusError maps a vendor failure onto the error taxonomy. 418 is the
// venue's auto-ban escalation of 429 and stays a throttling error; API-key
// error codes inside a 400 body reclassify it as an authentication failure.
func (c *restClient) statusError(resp *http.Response, method, path string) error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	var vendor struct {
		Code    int    `json:"code"`
		Message string `json:"msg"`
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
	}).Warn("Spot API call failed")

	detail := fmt.Sprintf("%s %s: status %d: code %d: %s", method, path, resp.StatusCode, vendor.Code, msg)
	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return models.NewBrokerError(models.BrokerBinance, models.ErrAuthenticationFailed, detail, nil)
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode == http.StatusTeapot:
		return models.NewBrokerError(models.BrokerBinance, models.ErrRateLimited, detail, nil)
	case vendor.Code == -2014 || vendor.Code == -2015 || vendor.Code == -1022:
		// API-key format, permission and signature failures arrive as 400s.
		return models.NewBrokerError(models.BrokerBinance, models.ErrAuthenticationFailed, detail, nil)
	case resp.StatusCode == http.StatusBadRequest:
		return models.NewBrokerError(models.BrokerBinance, models.ErrInvalidOrder, detail, nil)
	default:
		return models.NewBrokerError(models.BrokerBinance, models.ErrUnknown, detail, nil)
	}
}
