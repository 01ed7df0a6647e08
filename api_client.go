package cowswap

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// APIClient handles HTTP requests to the settlement orderbook API.
// Timeouts and retries live here; callers see transport errors
// unchanged and protocol refusals as *OrderError values.
type APIClient struct {
	baseURL string
	client  *http.Client
}

// NewAPIClient creates an orderbook API client for one network's
// endpoint.
func NewAPIClient(baseURL string, timeout time.Duration) *APIClient {
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	return &APIClient{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		client:  &http.Client{Timeout: timeout},
	}
}

// doRequest performs an HTTP request
func (c *APIClient) doRequest(method, endpoint string, body interface{}) (*http.Response, error) {
	var reqBody io.Reader
	if body != nil {
		jsonData, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request body: %w", err)
		}
		reqBody = bytes.NewBuffer(jsonData)
	}

	req, err := http.NewRequest(method, c.baseURL+endpoint, reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}

	return resp, nil
}

// decodeJSONResponse reads the body and decodes it into result. A
// non-2xx status with the structured refusal shape becomes an
// *OrderError; anything else non-2xx becomes a plain error carrying
// the body.
func (c *APIClient) decodeJSONResponse(resp *http.Response, result interface{}) error {
	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		if orderErr := parseOrderError(bodyBytes); orderErr != nil {
			return orderErr
		}
		bodyStr := string(bodyBytes)
		if bodyStr == "" {
			bodyStr = resp.Status
		}
		return fmt.Errorf("HTTP %d: %s", resp.StatusCode, bodyStr)
	}

	if result == nil {
		return nil
	}

	if err := json.Unmarshal(bodyBytes, result); err != nil {
		bodyStr := string(bodyBytes)
		if len(bodyStr) > 200 {
			bodyStr = bodyStr[:200] + "..."
		}
		return fmt.Errorf("failed to decode JSON response: %w (body: %s)", err, bodyStr)
	}

	return nil
}

// parseOrderError returns the refusal value when the body has exactly
// the {errorType, description} shape.
func parseOrderError(body []byte) *OrderError {
	var orderErr OrderError
	if err := json.Unmarshal(body, &orderErr); err != nil {
		return nil
	}
	if orderErr.ErrorType == "" {
		return nil
	}
	return &orderErr
}

// GetQuote asks the orderbook to price one side of a prospective order
func (c *APIClient) GetQuote(req QuoteRequest) (*Quote, error) {
	resp, err := c.doRequest(http.MethodPost, "/quote", req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var quote Quote
	if err := c.decodeJSONResponse(resp, &quote); err != nil {
		return nil, err
	}

	return &quote, nil
}

// PlaceOrder submits a signed order. The success body is the literal
// order identifier string.
func (c *APIClient) PlaceOrder(signed *SignedOrder) (OrderUID, error) {
	body, err := submissionBody(signed)
	if err != nil {
		return OrderUID{}, err
	}

	resp, err := c.doRequest(http.MethodPost, "/orders", body)
	if err != nil {
		return OrderUID{}, err
	}
	defer resp.Body.Close()

	var uidStr string
	if err := c.decodeJSONResponse(resp, &uidStr); err != nil {
		return OrderUID{}, err
	}
	if uidStr == "" {
		return OrderUID{}, ErrEmptyResponse
	}

	return ParseOrderUID(uidStr)
}

// GetOrders fetches an owner's orders, newest first. An owner with no
// orders yields an empty slice, not an error.
func (c *APIClient) GetOrders(owner common.Address) ([]OrderDetail, error) {
	endpoint := "/orders?owner=" + url.QueryEscape(strings.ToLower(owner.Hex()))
	resp, err := c.doRequest(http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	orders := []OrderDetail{}
	if err := c.decodeJSONResponse(resp, &orders); err != nil {
		return nil, err
	}

	return orders, nil
}

// GetOrder fetches one order by its identifier
func (c *APIClient) GetOrder(uid OrderUID) (*OrderDetail, error) {
	resp, err := c.doRequest(http.MethodGet, "/orders/"+uid.String(), nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var detail OrderDetail
	if err := c.decodeJSONResponse(resp, &detail); err != nil {
		return nil, err
	}

	return &detail, nil
}

// GetTrades fetches the on-chain executions of an order. An unexecuted
// order yields an empty slice.
func (c *APIClient) GetTrades(uid OrderUID) ([]Trade, error) {
	endpoint := "/trades?orderUid=" + url.QueryEscape(uid.String())
	resp, err := c.doRequest(http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	trades := []Trade{}
	if err := c.decodeJSONResponse(resp, &trades); err != nil {
		return nil, err
	}

	return trades, nil
}

// submissionBody builds the order submission JSON: the order wire
// fields plus signature, signingScheme and from.
func submissionBody(signed *SignedOrder) (map[string]interface{}, error) {
	raw, err := json.Marshal(signed.Order)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal order: %w", err)
	}

	body := make(map[string]interface{})
	if err := json.Unmarshal(raw, &body); err != nil {
		return nil, err
	}

	body["signature"] = signed.SignatureHex()
	body["signingScheme"] = string(signed.SigningScheme)
	body["from"] = strings.ToLower(signed.From.Hex())

	return body, nil
}
