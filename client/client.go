// Package client talks to the car hire HTTP API. Client satisfies availability.Finder, so the
// availability rules can also be evaluated against a remote store.
package client

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	jsoniter "github.com/json-iterator/go"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/AntonStoeckl/dynamic-collections-go/auth"
	cs "github.com/AntonStoeckl/dynamic-collections-go/collectionstore"
	"github.com/AntonStoeckl/dynamic-collections-go/settings"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

const (
	crudPath  = "/api/universalCRUD"
	loginPath = "/api/auth/login"

	defaultTimeout = 30 * time.Second
)

var ErrEmptyBaseURL = errors.New("client needs a base url")

// APIError is a non-2xx answer of the server.
type APIError struct {
	Status               int
	Message              string
	Details              string
	AvailableCollections []string
}

func (e *APIError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("%d %s: %s (%s)", e.Status, http.StatusText(e.Status), e.Message, e.Details)
	}

	return fmt.Sprintf("%d %s: %s", e.Status, http.StatusText(e.Status), e.Message)
}

// Is maps the status back onto the errors the server side reports with it.
func (e *APIError) Is(target error) bool {
	switch e.Status {
	case http.StatusNotFound:
		return target == cs.ErrNotFound
	case http.StatusBadRequest:
		return target == cs.ErrValidation
	case http.StatusUnauthorized:
		return target == auth.ErrInvalidCredentials
	case http.StatusConflict:
		return target == cs.ErrDuplicateKey
	default:
		return false
	}
}

type Client struct {
	base       *url.URL
	httpClient *http.Client
}

type Option func(*Client)

// WithHTTPClient replaces the default client, which is traced with otelhttp.
func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

func New(baseURL string, options ...Option) (*Client, error) {
	if baseURL == "" {
		return nil, ErrEmptyBaseURL
	}

	base, err := url.Parse(strings.TrimSuffix(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("invalid base url: %w", err)
	}

	c := &Client{
		base: base,
		httpClient: &http.Client{
			Timeout:   defaultTimeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
	}

	for _, option := range options {
		option(c)
	}

	return c, nil
}

func (c *Client) Ping(ctx context.Context) error {
	return c.do(ctx, http.MethodGet, crudPath+"/ping", nil, nil, nil)
}

func (c *Client) Filtered(ctx context.Context, collection string, req cs.FilterRequest) (cs.Page, error) {
	var page cs.Page
	err := c.do(ctx, http.MethodPost, crudPath+"/filtered/"+url.PathEscape(collection), nil, req, &page)

	return page, err
}

func (c *Client) List(ctx context.Context, collection string, req cs.ListRequest) (cs.Page, error) {
	var page cs.Page
	err := c.do(ctx, http.MethodPost, crudPath+"/list/"+url.PathEscape(collection), nil, req, &page)

	return page, err
}

func (c *Client) Schema(ctx context.Context, model string) ([]cs.FieldShape, error) {
	var shapes []cs.FieldShape
	err := c.do(ctx, http.MethodGet, crudPath+"/schema/"+url.PathEscape(model), nil, nil, &shapes)

	return shapes, err
}

func (c *Client) Get(ctx context.Context, collection, id string) (cs.Record, error) {
	var rec cs.Record
	err := c.do(ctx, http.MethodGet, recordPath(collection, id), nil, nil, &rec)

	return rec, err
}

func (c *Client) Create(ctx context.Context, collection string, input cs.Record) (cs.Record, error) {
	var rec cs.Record
	err := c.do(ctx, http.MethodPost, crudPath+"/"+url.PathEscape(collection), nil, input, &rec)

	return rec, err
}

func (c *Client) Update(ctx context.Context, collection, id string, patch cs.Record) (cs.Record, error) {
	var rec cs.Record
	err := c.do(ctx, http.MethodPut, recordPath(collection, id), nil, patch, &rec)

	return rec, err
}

func (c *Client) Delete(ctx context.Context, collection, id string) (cs.Record, error) {
	var rec cs.Record
	err := c.do(ctx, http.MethodDelete, recordPath(collection, id), nil, nil, &rec)

	return rec, err
}

/***** Settings *****/

func (c *Client) GetSettings(ctx context.Context, name string) (*settings.Node, error) {
	doc := settings.NewBranch()
	if err := c.do(ctx, http.MethodGet, settingsPath(name), nil, nil, doc); err != nil {
		return nil, err
	}

	return doc, nil
}

func (c *Client) PutSettings(ctx context.Context, name string, doc *settings.Node) error {
	return c.do(ctx, http.MethodPost, settingsPath(name), nil, doc, nil)
}

func (c *Client) SettingsOptions(ctx context.Context, name, path, parent string) ([]string, error) {
	query := url.Values{}
	query.Set("path", path)
	if parent != "" {
		query.Set("parent", parent)
	}

	var out struct {
		Options []string `json:"options"`
	}
	err := c.do(ctx, http.MethodGet, settingsPath(name)+"/options", query, nil, &out)

	return out.Options, err
}

func (c *Client) AppendSettingsValues(ctx context.Context, name string, updates []settings.Update) (bool, error) {
	var out struct {
		Modified bool `json:"modified"`
	}
	err := c.do(ctx, http.MethodPost, settingsPath(name)+"/values", nil, updates, &out)

	return out.Modified, err
}

/***** Availability and login *****/

// IsAvailable asks the server; mode is "inside" or "outside", and exclude names a booking to ignore.
func (c *Client) IsAvailable(ctx context.Context, carID string, period cs.Interval, exclude, mode string) (bool, error) {
	query := url.Values{}
	if period.Start != nil {
		query.Set("start", period.Start.Format(time.RFC3339Nano))
	}
	if period.End != nil {
		query.Set("end", period.End.Format(time.RFC3339Nano))
	}
	if exclude != "" {
		query.Set("exclude", exclude)
	}
	if mode != "" {
		query.Set("mode", mode)
	}

	var out struct {
		Available bool `json:"available"`
	}
	err := c.do(ctx, http.MethodGet, crudPath+"/availability/"+url.PathEscape(carID), query, nil, &out)

	return out.Available, err
}

// Login returns the employee record without its password hash.
func (c *Client) Login(ctx context.Context, employeeID, password string) (cs.Record, error) {
	body := map[string]string{"EmployeeId": employeeID, "Password": password}

	var out struct {
		Employee cs.Record `json:"employee"`
	}
	err := c.do(ctx, http.MethodPost, loginPath, nil, body, &out)

	return out.Employee, err
}

/***** Transport *****/

func (c *Client) newRequest(ctx context.Context, method, path string, query url.Values, body any) (*http.Request, error) {
	// path segments are escaped by the callers
	target := c.base.String() + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("encoding request body: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return nil, err
	}

	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	return req, nil
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, out any) error {
	req, err := c.newRequest(ctx, method, path, query, body)
	if err != nil {
		return err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("reading response body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return decodeError(resp.StatusCode, data)
	}

	if out == nil || len(data) == 0 {
		return nil
	}

	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decoding response body: %w", err)
	}

	return nil
}

func decodeError(status int, data []byte) error {
	var body struct {
		Error                string   `json:"error"`
		Details              string   `json:"details"`
		AvailableCollections []string `json:"availableCollections"`
	}

	apiErr := &APIError{Status: status}
	if err := json.Unmarshal(data, &body); err == nil && body.Error != "" {
		apiErr.Message = body.Error
		apiErr.Details = body.Details
		apiErr.AvailableCollections = body.AvailableCollections
	} else {
		apiErr.Message = strings.TrimSpace(string(data))
	}

	return apiErr
}

func recordPath(collection, id string) string {
	return crudPath + "/" + url.PathEscape(collection) + "/" + url.PathEscape(id)
}

func settingsPath(name string) string {
	return crudPath + "/settings/" + url.PathEscape(name)
}
