package http

import (
	"fmt"
	"net"
	nethttp "net/http"
	"net/url"
	"strings"

	ntlmssp "github.com/Azure/go-ntlmssp"
	"golang.org/x/net/http/httpproxy"

	"github.com/kinofiles/kinosync/internal/config"
	"github.com/kinofiles/kinosync/internal/constants"
)

// ProxyFunc selects the proxy for a request. A nil *url.URL means a direct
// connection.
type ProxyFunc func(*nethttp.Request) (*url.URL, error)

func dialer() *net.Dialer {
	return &net.Dialer{
		Timeout:   constants.HTTPDialTimeout,
		KeepAlive: constants.HTTPDialKeepAlive,
	}
}

// ConfigureHTTPClient returns a client whose transport honours cfg's proxy
// settings. NTLM mode wraps the transport in an ntlmssp negotiator.
func ConfigureHTTPClient(cfg *config.Config) (*nethttp.Client, error) {
	transport := newTransport()

	proxy, err := ProxyFor(cfg)
	if err != nil {
		return nil, err
	}
	transport.Proxy = proxy

	if strings.ToLower(cfg.ProxyMode) == "ntlm" && cfg.ProxyHost != "" {
		return &nethttp.Client{
			Transport: ntlmssp.Negotiator{RoundTripper: transport},
		}, nil
	}

	return &nethttp.Client{Transport: transport}, nil
}

// ProxyFor returns the proxy selector for cfg. It is shared with the
// websocket dialer so both connections take the same route. A basic or ntlm
// mode without a host falls back to a direct connection.
func ProxyFor(cfg *config.Config) (ProxyFunc, error) {
	switch strings.ToLower(cfg.ProxyMode) {
	case "no-proxy", "":
		return nil, nil
	case "system":
		return nethttp.ProxyFromEnvironment, nil
	case "basic", "ntlm":
		if cfg.ProxyHost == "" {
			return nil, nil
		}
		return proxyFuncWithBypass(buildProxyURL(cfg), cfg.NoProxy), nil
	default:
		return nil, fmt.Errorf("unsupported proxy mode: %s", cfg.ProxyMode)
	}
}

// buildProxyURL constructs a proxy URL from config. Credentials are embedded
// only in basic mode and only when both user and password are set; NTLM
// authenticates through the negotiator instead.
func buildProxyURL(cfg *config.Config) *url.URL {
	port := cfg.ProxyPort
	if port == 0 {
		port = constants.DefaultProxyPort
	}

	proxyURL := &url.URL{
		Scheme: "http",
		Host:   net.JoinHostPort(cfg.ProxyHost, fmt.Sprintf("%d", port)),
	}

	if strings.ToLower(cfg.ProxyMode) == "basic" && cfg.ProxyUser != "" && cfg.ProxyPassword != "" {
		proxyURL.User = url.UserPassword(cfg.ProxyUser, cfg.ProxyPassword)
	}

	return proxyURL
}

// proxyFuncWithBypass returns a proxy function that respects the NoProxy
// bypass list. If noProxy is empty it behaves like nethttp.ProxyURL.
func proxyFuncWithBypass(proxyURL *url.URL, noProxy string) ProxyFunc {
	if noProxy == "" {
		return nethttp.ProxyURL(proxyURL)
	}
	cfg := httpproxy.Config{
		HTTPProxy:  proxyURL.String(),
		HTTPSProxy: proxyURL.String(),
		NoProxy:    noProxy,
	}
	proxyFunc := cfg.ProxyFunc()
	return func(req *nethttp.Request) (*url.URL, error) {
		return proxyFunc(wsAsHTTP(req.URL))
	}
}

// wsAsHTTP maps ws/wss URLs onto http/https so httpproxy picks the right
// proxy for websocket handshakes.
func wsAsHTTP(u *url.URL) *url.URL {
	switch u.Scheme {
	case "ws":
		c := *u
		c.Scheme = "http"
		return &c
	case "wss":
		c := *u
		c.Scheme = "https"
		return &c
	}
	return u
}
