package mpesa

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"xangloans/internal/config"
)

// tokenSafetyMargin is how much lifetime a cached token must have left
// to be reused without a refresh.
const tokenSafetyMargin = 30 * time.Second

// timestampLayout is the gateway's password timestamp format.
const timestampLayout = "20060102150405"

// Client talks to the Daraja gateway: OAuth token acquisition and STK
// push submission.
type Client struct {
	cfg        config.MpesaConfig
	httpClient *http.Client
	now        func() time.Time

	// Cached bearer credential. mu guards the cached fields only;
	// it is never held across a network call.
	mu        sync.Mutex
	token     string
	expiresAt time.Time

	// refresh collapses concurrent token fetches into one in-flight
	// request whose result is shared.
	refresh singleflight.Group
}

// NewClient creates a gateway client. Fails with ErrConfiguration if
// any required setting is missing, before any network call.
func NewClient(cfg config.MpesaConfig) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		now:        time.Now,
	}, nil
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   string `json:"expires_in"`
}

// Token returns a valid bearer token, fetching a new one if the cached
// token is absent or within the safety margin of expiry. Concurrent
// callers during a refresh share a single fetch.
func (c *Client) Token(ctx context.Context) (string, error) {
	c.mu.Lock()
	if c.token != "" && c.now().Add(tokenSafetyMargin).Before(c.expiresAt) {
		token := c.token
		c.mu.Unlock()
		return token, nil
	}
	c.mu.Unlock()

	result, err, _ := c.refresh.Do("token", func() (any, error) {
		// The fetch is shared by every waiter, so it must not die with
		// whichever caller happened to start it.
		return c.fetchToken(context.WithoutCancel(ctx))
	})
	if err != nil {
		return "", err
	}

	return result.(string), nil
}

// Invalidate discards the cached token. Called after the gateway
// answers 401 to a request carrying it.
func (c *Client) Invalidate() {
	c.mu.Lock()
	c.token = ""
	c.expiresAt = time.Time{}
	c.mu.Unlock()
}

func (c *Client) fetchToken(ctx context.Context) (string, error) {
	url := c.cfg.BaseURL + "/oauth/v1/generate?grant_type=client_credentials"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrCredential, err)
	}

	auth := base64.StdEncoding.EncodeToString([]byte(c.cfg.ConsumerKey + ":" + c.cfg.ConsumerSecret))
	req.Header.Set("Authorization", "Basic "+auth)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUnreachable, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("%w: reading token response: %v", ErrCredential, err)
	}

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("%w: status %d: %s", ErrCredential, resp.StatusCode, body)
	}

	var tr tokenResponse
	if err := json.Unmarshal(body, &tr); err != nil {
		return "", fmt.Errorf("%w: decoding token response: %v", ErrCredential, err)
	}
	if tr.AccessToken == "" {
		return "", fmt.Errorf("%w: no access token in response", ErrCredential)
	}

	// Daraja reports expiry as a string of seconds, typically "3599".
	lifetime := 3600 * time.Second
	if secs, err := strconv.Atoi(tr.ExpiresIn); err == nil && secs > 0 {
		lifetime = time.Duration(secs) * time.Second
	}

	c.mu.Lock()
	c.token = tr.AccessToken
	c.expiresAt = c.now().Add(lifetime)
	c.mu.Unlock()

	return tr.AccessToken, nil
}

// STKPushRequest is the outbound push-payment payload.
type STKPushRequest struct {
	BusinessShortCode string `json:"BusinessShortCode"`
	Password          string `json:"Password"`
	Timestamp         string `json:"Timestamp"`
	TransactionType   string `json:"TransactionType"`
	Amount            int64  `json:"Amount"`
	PartyA            string `json:"PartyA"`
	PartyB            string `json:"PartyB"`
	PhoneNumber       string `json:"PhoneNumber"`
	CallBackURL       string `json:"CallBackURL"`
	AccountReference  string `json:"AccountReference"`
	TransactionDesc   string `json:"TransactionDesc"`
}

// STKPushResponse is the gateway's answer to a push submission. A 2xx
// body may still carry an embedded error code.
type STKPushResponse struct {
	MerchantRequestID   string `json:"MerchantRequestID"`
	CheckoutRequestID   string `json:"CheckoutRequestID"`
	ResponseCode        string `json:"ResponseCode"`
	ResponseDescription string `json:"ResponseDescription"`
	CustomerMessage     string `json:"CustomerMessage"`
	ErrorCode           string `json:"errorCode"`
	ErrorMessage        string `json:"errorMessage"`
}

// STKPush submits one push-payment request. phoneNumber must already be
// in canonical 254XXXXXXXXX form. accountReference correlates the push
// to the loan application.
func (c *Client) STKPush(ctx context.Context, phoneNumber string, amount int64, accountReference, description string) (*STKPushResponse, error) {
	token, err := c.Token(ctx)
	if err != nil {
		return nil, err
	}

	timestamp := c.now().Format(timestampLayout)
	password := base64.StdEncoding.EncodeToString([]byte(c.cfg.ShortCode + c.cfg.Passkey + timestamp))

	payload := STKPushRequest{
		BusinessShortCode: c.cfg.ShortCode,
		Password:          password,
		Timestamp:         timestamp,
		TransactionType:   "CustomerPayBillOnline",
		Amount:            amount,
		PartyA:            phoneNumber,
		PartyB:            c.cfg.ShortCode,
		PhoneNumber:       phoneNumber,
		CallBackURL:       c.cfg.CallbackURL,
		AccountReference:  accountReference,
		TransactionDesc:   description,
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	url := c.cfg.BaseURL + "/mpesa/stkpush/v1/processrequest"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnreachable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized {
		c.Invalidate()
		return nil, fmt.Errorf("%w: push rejected with 401", ErrCredential)
	}

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: reading push response: %v", ErrUnreachable, err)
	}

	// A rejection is classified by status code alone; the body, when
	// decodable, only enriches the error with the gateway's code.
	var pushResp STKPushResponse
	decodeErr := json.Unmarshal(respBody, &pushResp)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, newGatewayError(pushResp.ErrorCode, pushResp.ErrorMessage)
	}
	if decodeErr != nil {
		return nil, newGatewayError("", fmt.Sprintf("undecodable push response: %v", decodeErr))
	}
	if pushResp.ErrorCode != "" {
		return nil, newGatewayError(pushResp.ErrorCode, pushResp.ErrorMessage)
	}

	if pushResp.CheckoutRequestID == "" {
		return nil, newGatewayError(pushResp.ResponseCode, "push accepted without a checkout request id")
	}

	return &pushResp, nil
}
