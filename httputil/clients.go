package httputil

import (
	"net/http"
	"net/url"
	"time"

	"rentscout/config"
)

// NewClient returns the client used for backend calls, routed through the
// configured proxy when one is set.
func NewClient(apiCfg config.APIConfig, proxyCfg config.ProxyConfig) (*http.Client, error) {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.MaxIdleConnsPerHost = 16

	if proxyCfg.URL != "" {
		proxyURL, err := url.Parse(proxyCfg.URL)
		if err != nil {
			return nil, err
		}
		transport.Proxy = http.ProxyURL(proxyURL)
	}

	timeout := apiCfg.HTTPTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	return &http.Client{Timeout: timeout, Transport: transport}, nil
}
