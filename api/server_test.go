package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rentscout/fetcher"
	"rentscout/models"
	"rentscout/search"
)

type stubSearcher struct {
	got    models.FilterCriteria
	result search.Result
	err    error
}

func (s *stubSearcher) Run(_ context.Context, c models.FilterCriteria) (search.Result, error) {
	s.got = c
	return s.result, s.err
}

func (s *stubSearcher) ShowAll(context.Context) (search.Result, error) {
	return search.Result{Records: s.result.Records, Stage: search.StageShowAll}, s.err
}

type stubLister struct {
	got    fetcher.ListQuery
	result fetcher.ListResult
	err    error
}

func (l *stubLister) ListAll(_ context.Context, q fetcher.ListQuery) (fetcher.ListResult, error) {
	l.got = q
	return l.result, l.err
}

func newTestRouter(s *stubSearcher, l *stubLister) http.Handler {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return NewRouter(s, l, []string{"http://localhost:5173"}, logger)
}

func do(t *testing.T, h http.Handler, method, target, body string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	var out map[string]any
	if rec.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	}
	return rec, out
}

func TestHealthz(t *testing.T) {
	rec, body := do(t, newTestRouter(&stubSearcher{}, &stubLister{}), http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", body["status"])
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
}

func TestSearchEndpoint(t *testing.T) {
	s := &stubSearcher{result: search.Result{
		Records: []models.PropertyRecord{{ID: "1", Raw: models.RawRecord{"id": "1", "title": "2 BHK"}}},
		Stage:   search.StageBedrooms,
	}}
	h := newTestRouter(s, &stubLister{})

	rec, body := do(t, h, http.MethodPost, "/api/search",
		`{"query":"sea view","types":["Flats"],"bedrooms":"2","price":{"min":1000,"max":5000}}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.Equal(t, float64(1), body["count"])
	assert.Equal(t, "bedrooms", body["stage"])
	props := body["properties"].([]any)
	require.Len(t, props, 1)
	assert.Equal(t, "2 BHK", props[0].(map[string]any)["title"])

	assert.Equal(t, "sea view", s.got.Query)
	assert.Equal(t, []string{"Flats"}, s.got.Types)
	assert.Equal(t, models.BedroomFilter("2"), s.got.Bedrooms)
	assert.Equal(t, 5000.0, s.got.Price.Max)
}

func TestSearchEndpointEmptyResult(t *testing.T) {
	h := newTestRouter(&stubSearcher{result: search.Result{Records: []models.PropertyRecord{}}}, &stubLister{})
	rec, body := do(t, h, http.MethodPost, "/api/search", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, float64(0), body["count"])
	assert.Equal(t, []any{}, body["properties"])
}

func TestSearchEndpointErrors(t *testing.T) {
	h := newTestRouter(&stubSearcher{}, &stubLister{})
	rec, body := do(t, h, http.MethodPost, "/api/search", `{"types":`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, body["error"], "invalid filter criteria")

	h = newTestRouter(&stubSearcher{err: &fetcher.FetchError{StatusCode: 500}}, &stubLister{})
	rec, body = do(t, h, http.MethodPost, "/api/search", `{}`)
	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.Equal(t, "request failed with HTTP status 500", body["error"])

	h = newTestRouter(&stubSearcher{err: &fetcher.ParseError{Err: errors.New("bad json")}}, &stubLister{})
	rec, body = do(t, h, http.MethodGet, "/api/properties", "")
	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.Equal(t, "Failed to fetch filtered properties", body["error"])
}

func TestShowAllEndpoint(t *testing.T) {
	s := &stubSearcher{result: search.Result{Records: []models.PropertyRecord{
		{ID: "a", Raw: models.RawRecord{"id": "a"}},
		{ID: "b", Raw: models.RawRecord{"id": "b"}},
	}}}
	rec, body := do(t, newTestRouter(s, &stubLister{}), http.MethodGet, "/api/properties", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, float64(2), body["count"])
	assert.Equal(t, "show_all", body["stage"])
}

func TestListingsEndpoint(t *testing.T) {
	l := &stubLister{result: fetcher.ListResult{
		Records:    []models.RawRecord{{"id": "x"}},
		TotalCount: 41,
		TotalPages: 5,
	}}
	h := newTestRouter(&stubSearcher{}, l)

	rec, body := do(t, h, http.MethodGet, "/api/listings?search=park&minPrice=1000&bedrooms=2&page=3&limit=10", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, float64(41), body["totalCount"])
	assert.Equal(t, float64(5), body["totalPages"])

	assert.Equal(t, "park", l.got.Search)
	require.NotNil(t, l.got.MinPrice)
	assert.Equal(t, 1000.0, *l.got.MinPrice)
	assert.Nil(t, l.got.MaxPrice)
	assert.Equal(t, "2", l.got.Bedrooms)
	assert.Equal(t, 3, l.got.Page)
	assert.Equal(t, 10, l.got.Limit)

	rec, _ = do(t, h, http.MethodGet, "/api/listings?page=two", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCORSPreflight(t *testing.T) {
	h := newTestRouter(&stubSearcher{}, &stubLister{})
	req := httptest.NewRequest(http.MethodOptions, "/api/search", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	req.Header.Set("Access-Control-Request-Method", "POST")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, "http://localhost:5173", rec.Header().Get("Access-Control-Allow-Origin"))
}
