package fetcher

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"

	"rentscout/identity"
	"rentscout/models"
)

// Page is one decoded response. TotalPages is 0 when the backend did not
// report it.
type Page struct {
	Records    []models.RawRecord
	TotalPages int
}

// ListQuery holds the query parameters of the unfiltered listing endpoint.
type ListQuery struct {
	Search       string
	MinPrice     *float64
	MaxPrice     *float64
	Bedrooms     string
	PropertyType string
	Page         int
	Limit        int
}

// ListResult is the response of the unfiltered listing endpoint.
type ListResult struct {
	Records    []models.RawRecord
	TotalCount int
	TotalPages int
}

// Client talks to the property-listing backend.
type Client struct {
	baseURL string
	admin   bool
	token   string
	client  *http.Client
	logger  *logrus.Logger
}

type ClientConfig struct {
	BaseURL string
	Admin   bool
	Token   string
}

func NewClient(cfg ClientConfig, httpClient *http.Client, logger *logrus.Logger) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		admin:   cfg.Admin,
		token:   cfg.Token,
		client:  httpClient,
		logger:  logger,
	}
}

// FetchPage issues one POST to the filter endpoint.
func (c *Client) FetchPage(ctx context.Context, payload Payload) (Page, error) {
	endpoint := c.baseURL + "/properties/filter"

	body, err := json.Marshal(payload)
	if err != nil {
		return Page{}, fmt.Errorf("encode payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return Page{}, err
	}
	req.Header.Set("Content-Type", "application/json")

	data, err := c.do(req)
	if err != nil {
		return Page{}, err
	}
	return decodePage(endpoint, data)
}

// ListAll fetches one page of the unfiltered listing, using the admin
// variant of the endpoint when the client is configured as administrator.
func (c *Client) ListAll(ctx context.Context, q ListQuery) (ListResult, error) {
	endpoint := c.baseURL + "/properties"
	if c.admin {
		endpoint += "/admin/all"
	}

	params := url.Values{}
	if q.Search != "" {
		params.Set("search", q.Search)
	}
	if q.MinPrice != nil {
		params.Set("minPrice", strconv.FormatFloat(*q.MinPrice, 'f', -1, 64))
	}
	if q.MaxPrice != nil {
		params.Set("maxPrice", strconv.FormatFloat(*q.MaxPrice, 'f', -1, 64))
	}
	if q.Bedrooms != "" {
		params.Set("bedrooms", q.Bedrooms)
	}
	if q.PropertyType != "" {
		params.Set("propertyType", q.PropertyType)
	}
	if q.Page > 0 {
		params.Set("page", strconv.Itoa(q.Page))
	}
	if q.Limit > 0 {
		params.Set("limit", strconv.Itoa(q.Limit))
	}
	if len(params) > 0 {
		endpoint += "?" + params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return ListResult{}, err
	}

	data, err := c.do(req)
	if err != nil {
		return ListResult{}, err
	}

	page, err := decodePage(endpoint, data)
	if err != nil {
		return ListResult{}, err
	}
	result := ListResult{Records: page.Records, TotalPages: page.TotalPages, TotalCount: len(page.Records)}
	if obj, ok := decodeObject(data); ok {
		if n, ok := intField(obj, "totalCount", "total"); ok {
			result.TotalCount = n
		}
	}
	return result, nil
}

func (c *Client) do(req *http.Request) ([]byte, error) {
	req.Header.Set("Accept", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	endpoint := req.URL.String()
	resp, err := c.client.Do(req)
	if err != nil {
		if ctxErr := req.Context().Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, &FetchError{URL: endpoint, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		c.logger.WithFields(logrus.Fields{"url": endpoint, "status": resp.StatusCode}).Warn("Backend returned error status")
		return nil, &FetchError{StatusCode: resp.StatusCode, URL: endpoint, Body: strings.TrimSpace(string(respBody))}
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &FetchError{URL: endpoint, Err: fmt.Errorf("read body: %w", err)}
	}
	return data, nil
}

var arrayFields = []string{"properties", "data", "result"}

// decodePage accepts a bare array or an object holding the array under
// properties, data or result. An object with none of them is an empty page.
func decodePage(endpoint string, data []byte) (Page, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var body any
	if err := dec.Decode(&body); err != nil {
		return Page{}, &ParseError{URL: endpoint, Err: err}
	}

	var page Page
	switch v := body.(type) {
	case []any:
		page.Records = toRecords(v)
	case map[string]any:
		for _, field := range arrayFields {
			if arr, ok := v[field].([]any); ok {
				page.Records = toRecords(arr)
				break
			}
		}
		if n, ok := intField(v, "totalPages", "pages"); ok && n > 0 {
			page.TotalPages = n
		}
	default:
		return Page{}, &ParseError{URL: endpoint, Err: errors.New("response is neither an object nor an array")}
	}
	if page.Records == nil {
		page.Records = []models.RawRecord{}
	}
	return page, nil
}

func decodeObject(data []byte) (map[string]any, bool) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var obj map[string]any
	if err := dec.Decode(&obj); err != nil {
		return nil, false
	}
	return obj, true
}

func toRecords(arr []any) []models.RawRecord {
	records := make([]models.RawRecord, 0, len(arr))
	for _, item := range arr {
		obj, ok := item.(map[string]any)
		if !ok {
			continue
		}
		records = append(records, identity.Backfill(models.RawRecord(obj)))
	}
	return records
}

func intField(obj map[string]any, fields ...string) (int, bool) {
	for _, field := range fields {
		switch v := obj[field].(type) {
		case json.Number:
			if n, err := v.Int64(); err == nil {
				return int(n), true
			}
			if f, err := v.Float64(); err == nil {
				return int(f), true
			}
		case float64:
			return int(v), true
		case string:
			if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
				return n, true
			}
		}
	}
	return 0, false
}
