package bank

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

const defaultBaseURL = "https://bankaccountdata.gocardless.com/api/v2"

// ErrUnauthorized is reported when the aggregator rejects the current
// access token. The caller decides whether to refresh or re-issue.
var ErrUnauthorized = errors.New("aggregator rejected access token")

// Client talks to a GoCardless-style bank data aggregator.
type Client struct {
	httpClient *http.Client
	baseURL    string
	secretID   string
	secretKey  string
	token      string
}

// New creates a client with the given API secrets. No token is attached
// until SetToken or IssueToken is called.
func New(secretID, secretKey string) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: 30 * time.Second},
		baseURL:    defaultBaseURL,
		secretID:   secretID,
		secretKey:  secretKey,
	}
}

// NewWithBaseURL is New pointed at a different API root, for tests.
func NewWithBaseURL(secretID, secretKey, baseURL string) *Client {
	c := New(secretID, secretKey)
	c.baseURL = baseURL
	return c
}

// SetToken attaches a previously issued access token.
func (c *Client) SetToken(access string) {
	c.token = access
}

// IssueToken obtains a fresh access/refresh pair from the API secrets.
func (c *Client) IssueToken() (TokenPair, error) {
	var pair TokenPair
	err := c.do(http.MethodPost, "/token/new/", map[string]string{
		"secret_id":  c.secretID,
		"secret_key": c.secretKey,
	}, &pair, false)
	if err != nil {
		return TokenPair{}, fmt.Errorf("issue token: %w", err)
	}
	c.token = pair.Access
	return pair, nil
}

// RefreshToken exchanges a refresh token for a new access token.
func (c *Client) RefreshToken(refresh string) (string, error) {
	var res struct {
		Access string `json:"access"`
	}
	err := c.do(http.MethodPost, "/token/refresh/", map[string]string{
		"refresh": refresh,
	}, &res, false)
	if err != nil {
		return "", fmt.Errorf("refresh token: %w", err)
	}
	c.token = res.Access
	return res.Access, nil
}

// CheckAccess probes the API with the current token. Reports
// ErrUnauthorized when the token is not accepted.
func (c *Client) CheckAccess() error {
	var res json.RawMessage
	return c.do(http.MethodGet, "/agreements/enduser/?limit=1&offset=0", nil, &res, true)
}

// Institutions lists banks, optionally narrowed to an ISO 3166 country
// code. An empty country lists everything.
func (c *Client) Institutions(country string) ([]Institution, error) {
	path := "/institutions/"
	if country != "" {
		path += "?country=" + url.QueryEscape(country)
	}
	var institutions []Institution
	if err := c.do(http.MethodGet, path, nil, &institutions, true); err != nil {
		return nil, fmt.Errorf("list institutions: %w", err)
	}
	return institutions, nil
}

// CreateRequisition starts a consent session for one institution. The
// returned link must be visited by the operator out of band.
func (c *Client) CreateRequisition(institutionID, referenceID, redirectURL string) (Requisition, error) {
	var req Requisition
	err := c.do(http.MethodPost, "/requisitions/", map[string]string{
		"institution_id": institutionID,
		"reference":      referenceID,
		"redirect":       redirectURL,
	}, &req, true)
	if err != nil {
		return Requisition{}, fmt.Errorf("create requisition: %w", err)
	}
	return req, nil
}

// Requisition fetches a consent session, including the account ids it
// granted access to.
func (c *Client) Requisition(id string) (Requisition, error) {
	var req Requisition
	err := c.do(http.MethodGet, "/requisitions/"+url.PathEscape(id)+"/", nil, &req, true)
	if err != nil {
		return Requisition{}, fmt.Errorf("get requisition: %w", err)
	}
	return req, nil
}

// AccountDetails fetches the name and product of one bank account.
func (c *Client) AccountDetails(accountID string) (AccountDetails, error) {
	var res struct {
		Account AccountDetails `json:"account"`
	}
	err := c.do(http.MethodGet, "/accounts/"+url.PathEscape(accountID)+"/details/", nil, &res, true)
	if err != nil {
		return AccountDetails{}, fmt.Errorf("account details: %w", err)
	}
	return res.Account, nil
}

// Transactions fetches the booked transaction feed for one account.
// A response without the booked list is a FeedError: nothing from such a
// response may be ingested.
func (c *Client) Transactions(accountID string) ([]FeedTransaction, error) {
	var res struct {
		Transactions *struct {
			Booked []FeedTransaction `json:"booked"`
		} `json:"transactions"`
		Summary string `json:"summary"`
		Detail  string `json:"detail"`
	}
	err := c.do(http.MethodGet, "/accounts/"+url.PathEscape(accountID)+"/transactions/", nil, &res, true)
	if err != nil {
		return nil, err
	}
	if res.Transactions == nil || res.Transactions.Booked == nil {
		return nil, &FeedError{AccountID: accountID, Summary: res.Summary, Detail: res.Detail}
	}
	return res.Transactions.Booked, nil
}

func (c *Client) do(method, path string, body any, out any, authed bool) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequest(method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if authed && c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	res, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer res.Body.Close()

	data, err := io.ReadAll(res.Body)
	if err != nil {
		return err
	}

	if res.StatusCode == http.StatusUnauthorized {
		return ErrUnauthorized
	}
	if res.StatusCode < 200 || res.StatusCode > 299 {
		apiErr := &APIError{Status: res.StatusCode}
		var detail struct {
			Summary string `json:"summary"`
			Detail  string `json:"detail"`
		}
		if json.Unmarshal(data, &detail) == nil {
			apiErr.Summary = detail.Summary
			apiErr.Detail = detail.Detail
		}
		return apiErr
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode %s %s: %w", method, path, err)
	}
	return nil
}
