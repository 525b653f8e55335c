// Package proxy provides an example downstream handler: a reverse proxy
// forwarding authorized requests to the metered API sitting behind the
// payment-channel gate.
package proxy

import (
	"log/slog"
	"net/http"
	"net/http/httputil"
	"net/url"
)

// Upstream is a reverse proxy that forwards authorized requests to the
// metered API. It strips the payment-channel headers before forwarding —
// the upstream API has no business seeing a client's signature or channel
// state.
type Upstream struct {
	proxy *httputil.ReverseProxy
}

// NewUpstream creates an Upstream reverse proxy targeting upstreamURL.
func NewUpstream(upstreamURL string) (*Upstream, error) {
	target, err := url.Parse(upstreamURL)
	if err != nil {
		return nil, err
	}

	rp := httputil.NewSingleHostReverseProxy(target)

	base := rp.Director
	rp.Director = func(req *http.Request) {
		base(req)
		req.Header.Del("X-Forwarded-For")
		req.Header.Del("X-Forwarded-Host")
		req.Header.Del("X-Forwarded-Proto")
		req.Header.Del("X-Real-Ip")
		req.Header.Del("Forwarded")
		req.Header.Del("Via")
		// Strip the payment-channel headers — upstream must not see these.
		req.Header.Del("X-Signature")
		req.Header.Del("X-Message")
		req.Header.Del("X-Payment")
		req.Host = target.Host
	}

	rp.ErrorHandler = func(w http.ResponseWriter, _ *http.Request, err error) {
		slog.Error("upstream error", "err", err)
		http.Error(w, "upstream unavailable", http.StatusBadGateway)
	}

	return &Upstream{proxy: rp}, nil
}

// ServeHTTP forwards the request to the upstream API.
func (u *Upstream) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	u.proxy.ServeHTTP(w, req)
}
