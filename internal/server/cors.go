package server

import (
	"net/http"
	"slices"
)

// CORSOptions lists the origins allowed to call the API and open bridge
// connections. "*" allows any origin.
type CORSOptions struct {
	AllowedOrigins []string
}

type cors struct {
	origins  []string
	wildcard bool
}

func newCORS(opts CORSOptions) cors {
	return cors{
		origins:  opts.AllowedOrigins,
		wildcard: slices.Contains(opts.AllowedOrigins, "*"),
	}
}

func (c cors) enabled() bool { return len(c.origins) > 0 }

func (c cors) allows(origin string) bool {
	return c.wildcard || slices.Contains(c.origins, origin)
}

// apply sets the response headers for an allowed cross-origin request,
// including the preflight answer for OPTIONS.
func (c cors) apply(w http.ResponseWriter, r *http.Request) {
	origin := r.Header.Get("Origin")
	if !c.enabled() || origin == "" || !c.allows(origin) {
		return
	}
	hdr := w.Header()
	if c.wildcard {
		hdr.Set("Access-Control-Allow-Origin", "*")
	} else {
		hdr.Set("Access-Control-Allow-Origin", origin)
		hdr.Add("Vary", "Origin")
	}
	if r.Method != http.MethodOptions {
		return
	}
	if req := r.Header.Get("Access-Control-Request-Headers"); req != "" {
		hdr.Set("Access-Control-Allow-Headers", req)
	}
	hdr.Set("Access-Control-Allow-Methods", "GET, POST, PATCH, OPTIONS")
}
