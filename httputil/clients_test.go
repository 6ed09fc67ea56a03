package httputil

import (
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rentscout/config"
)

func TestNewClient(t *testing.T) {
	c, err := NewClient(config.APIConfig{HTTPTimeout: 5 * time.Second}, config.ProxyConfig{URL: "http://proxy.local:3128"})
	require.NoError(t, err)
	assert.Equal(t, 5*time.Second, c.Timeout)

	req, _ := http.NewRequest(http.MethodGet, "http://backend.local/api", nil)
	proxy, err := c.Transport.(*http.Transport).Proxy(req)
	require.NoError(t, err)
	assert.Equal(t, "proxy.local:3128", proxy.Host)
}

func TestNewClient_Defaults(t *testing.T) {
	c, err := NewClient(config.APIConfig{}, config.ProxyConfig{})
	require.NoError(t, err)
	assert.Equal(t, 30*time.Second, c.Timeout)
}

func TestNewClient_BadProxy(t *testing.T) {
	_, err := NewClient(config.APIConfig{}, config.ProxyConfig{URL: "://bad"})
	assert.Error(t, err)
}
