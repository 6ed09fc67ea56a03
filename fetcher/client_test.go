package fetcher

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func loadFixture(t *testing.T, name string) []byte {
	t.Helper()
	data, err := os.ReadFile(filepath.Join("testdata", name))
	require.NoError(t, err, "read fixture %s", name)
	return data
}

func quietLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func TestFetchPage_WrappedResponse(t *testing.T) {
	fixture := loadFixture(t, "filter_wrapped.json")
	var got map[string]any

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/properties/filter", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Write(fixture)
	}))
	defer srv.Close()

	c := NewClient(ClientConfig{BaseURL: srv.URL + "/api/", Token: "secret"}, srv.Client(), quietLogger())
	page, err := c.FetchPage(context.Background(), WithPagination(Payload{"property_type": "flat"}, 2, 100))
	require.NoError(t, err)

	assert.Equal(t, 4, page.TotalPages)
	require.Len(t, page.Records, 3)
	assert.Equal(t, json.Number("101"), page.Records[0]["id"])
	assert.Equal(t, "65f0c0ffee", page.Records[1]["id"])
	assert.Equal(t, "villa-9", page.Records[2]["id"])

	assert.Equal(t, "flat", got["property_type"])
	for _, key := range []string{"limit", "page_size", "pageSize", "per_page"} {
		assert.EqualValues(t, 100, got[key], key)
	}
	assert.EqualValues(t, 2, got["page"])
}

func TestFetchPage_ResponseShapes(t *testing.T) {
	tests := []struct {
		name  string
		body  string
		count int
		pages int
	}{
		{"bare array", `[{"id":1},{"id":2}]`, 2, 0},
		{"properties key", `{"properties":[{"id":1}],"pages":"2"}`, 1, 2},
		{"result key", `{"result":[{"id":1},{"id":2},{"id":3}]}`, 3, 0},
		{"properties wins over data", `{"properties":[{"id":1}],"data":[{"id":2},{"id":3}]}`, 1, 0},
		{"non-array properties skipped", `{"properties":null,"data":[{"id":2}]}`, 1, 0},
		{"no array anywhere", `{"message":"ok"}`, 0, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			c := NewClient(ClientConfig{BaseURL: srv.URL}, srv.Client(), quietLogger())
			page, err := c.FetchPage(context.Background(), Payload{})
			require.NoError(t, err)
			assert.NotNil(t, page.Records)
			assert.Len(t, page.Records, tt.count)
			assert.Equal(t, tt.pages, page.TotalPages)
		})
	}
}

func TestFetchPage_HTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusBadGateway)
	}))
	defer srv.Close()

	c := NewClient(ClientConfig{BaseURL: srv.URL}, srv.Client(), quietLogger())
	_, err := c.FetchPage(context.Background(), Payload{})

	var fe *FetchError
	require.True(t, errors.As(err, &fe))
	assert.Equal(t, http.StatusBadGateway, fe.StatusCode)
	assert.Equal(t, "boom", fe.Body)
}

func TestFetchPage_ParseError(t *testing.T) {
	for _, body := range []string{`<html>oops</html>`, `"just a string"`} {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(body))
		}))

		c := NewClient(ClientConfig{BaseURL: srv.URL}, srv.Client(), quietLogger())
		_, err := c.FetchPage(context.Background(), Payload{})

		var pe *ParseError
		assert.True(t, errors.As(err, &pe), "body %q", body)
		srv.Close()
	}
}

func TestListAll(t *testing.T) {
	var gotPath, gotQuery string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotQuery = r.URL.RawQuery
		w.Write([]byte(`{"properties":[{"_id":"a"},{"_id":"b"}],"totalCount":37,"totalPages":19}`))
	}))
	defer srv.Close()

	minPrice := 5000.0
	c := NewClient(ClientConfig{BaseURL: srv.URL, Admin: true}, srv.Client(), quietLogger())
	res, err := c.ListAll(context.Background(), ListQuery{Search: "goa", MinPrice: &minPrice, Page: 2, Limit: 2})
	require.NoError(t, err)

	assert.Equal(t, "/properties/admin/all", gotPath)
	assert.Equal(t, "limit=2&minPrice=5000&page=2&search=goa", gotQuery)
	assert.Equal(t, 37, res.TotalCount)
	assert.Equal(t, 19, res.TotalPages)
	require.Len(t, res.Records, 2)
	assert.Equal(t, "a", res.Records[0]["id"])
}

func TestListAll_BareArray(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/properties", r.URL.Path)
		w.Write([]byte(`[{"id":1},{"id":2},{"id":3}]`))
	}))
	defer srv.Close()

	c := NewClient(ClientConfig{BaseURL: srv.URL}, srv.Client(), quietLogger())
	res, err := c.ListAll(context.Background(), ListQuery{})
	require.NoError(t, err)
	assert.Equal(t, 3, res.TotalCount)
	assert.Equal(t, 0, res.TotalPages)
}
