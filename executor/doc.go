// Package executor runs executable site handlers.
//
// A handler run is described by an explicit Spec (program, arguments, environment,
// standard input, working directory) and executed by Invoker.Run, which scopes the
// process to the call: the process is started in its own process group, bounded by a
// timeout derived from the request context, killed on cancellation, and always reaped
// before Run returns.
//
// # Protocol
//
// Handlers start from an empty environment. Request-supplied keys (query parameters for
// index_executable, URL-encoded form fields for form_executable) are passed as
// environment variables only when listed in the allowed_variables file next to the
// handler; the reserved pagination keys p and n are never passed from the query string.
//
// The first argument is the handler's own path. A text/plain POST body is passed as the
// second argument, and a multipart/form-data body is streamed to standard input.
// Standard output becomes the response body; standard error is logged and never sent to
// the client. A non-zero exit status, a spawn failure, a timeout or oversized output is
// reported as userweb.ErrHandlerExecutionFailed.
package executor
