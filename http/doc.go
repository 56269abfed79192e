// Package http exposes user sites over HTTP.
//
// URLs have the form /<username>/<path...>. Each request is resolved inside the user's
// site root and handled by exactly one strategy: a static file, an executable handler
// (index_executable for GET, form_executable for POST) or a generated directory listing.
// Directories resolve identically with and without a trailing slash. GET / lists the
// published sites when the server knows where home directories live.
//
// # Usage
//
//	handler := http.NewHandler(&http.HandlerConfig{MaxBodySize: 10 << 20}, service)
//	srv := &nethttp.Server{Addr: ":8080", Handler: handler.Router()}
//
// The service parameter must implement the Service interface with Serve and People
// methods; userweb.Service does.
//
// # Errors
//
// Errors map to status codes with a minimal HTML page:
//
//   - 404: unknown user, no site, or nothing at the path
//   - 403: the path escapes the site root
//   - 405: no handler for the method (an Allow header lists what is accepted)
//   - 400: unsupported or malformed request body
//   - 413: request body over the configured limit
//   - 500: executable handler failure or any other error
//
// # Middleware
//
// Router installs RequestID, RequestLogger and chi's Recoverer, plus RealIP when the
// server sits behind a trusted reverse proxy and CORS when configured.
package http
