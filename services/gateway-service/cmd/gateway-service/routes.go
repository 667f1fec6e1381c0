package main

import (
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httputil"
	"net/url"
	"strings"

	"github.com/md-rashed-zaman/slotmeet/libs/httpx"
)

type upstreams struct {
	auth       *url.URL
	scheduling *url.URL
}

func parseUpstreams(authURL, schedulingURL string) (upstreams, error) {
	a, err := parseUpstream("AUTH_URL", authURL)
	if err != nil {
		return upstreams{}, err
	}
	s, err := parseUpstream("SCHEDULING_URL", schedulingURL)
	if err != nil {
		return upstreams{}, err
	}
	return upstreams{auth: a, scheduling: s}, nil
}

func parseUpstream(key, raw string) (*url.URL, error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, fmt.Errorf("%s must be an absolute http(s) URL (got %q)", key, raw)
	}
	return u, nil
}

func registerRoutes(mux *http.ServeMux, up upstreams, transport http.RoundTripper, logger *slog.Logger) {
	authProxy := newProxy(up.auth, transport, logger)
	schedulingProxy := newProxy(up.scheduling, transport, logger)

	registerProxy(mux, "/api/v1/auth", authProxy)
	registerProxy(mux, "/api/v1/availabilities", schedulingProxy)
	registerProxy(mux, "/api/v1/bookings", schedulingProxy)
}

// newProxy forwards to target, carrying the request id so upstream access
// logs line up with the gateway's.
func newProxy(target *url.URL, transport http.RoundTripper, logger *slog.Logger) *httputil.ReverseProxy {
	return &httputil.ReverseProxy{
		Rewrite: func(pr *httputil.ProxyRequest) {
			pr.SetURL(target)
			pr.SetXForwarded()
			if id := httpx.RequestIDFromContext(pr.In.Context()); id != "" {
				pr.Out.Header.Set(httpx.RequestIDHeader, id)
			}
		},
		Transport: transport,
		ErrorHandler: func(w http.ResponseWriter, r *http.Request, err error) {
			logger.Error("upstream request failed", "upstream", target.Host, "path", r.URL.Path, "err", err, "request_id", httpx.RequestIDFromContext(r.Context()))
			httpx.WriteError(w, http.StatusBadGateway, "upstream_unavailable", "Service temporarily unavailable")
		},
	}
}

func registerProxy(mux *http.ServeMux, prefix string, handler http.Handler) {
	mux.Handle(prefix, handler)
	mux.Handle(prefix+"/", handler)
}
