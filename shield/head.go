package shield

import "net/http"

// HeadToGet rewrites HEAD requests to GET before routing, so handlers
// registered with r.Get() answer uptime probes (HEAD /health) with 200
// instead of 405. net/http strips the response body for HEAD automatically.
func HeadToGet(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodHead {
			r.Method = http.MethodGet
		}
		next.ServeHTTP(w, r)
	})
}
