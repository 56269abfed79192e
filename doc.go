// Package userweb serves the www directory of every user on the host under
// /<username>/<path>.
//
// A request is resolved to a filesystem entry inside the user's site root and
// dispatched on what it finds there:
//
//   - a regular file is served as static content
//   - a directory with index.html serves that file
//   - a directory with an executable index_executable runs it for GET
//   - a directory with an executable form_executable runs it for POST
//   - any other directory gets a generated listing
//
// HTML files are passed through transclusion, which replaces {path} markers
// with the contents of other files from the same site.
//
// # Key Components
//
//   - Service: dispatch and content assembly for one request
//   - Select: the directory dispatch priority
//   - SiteResolver: username and path to a contained filesystem entry (see package site)
//   - Executor: runs handler programs (see package executor)
//   - Indexer: directory listings (see package autoindex)
//   - Transcluder: marker expansion (see package transclude)
//
// # Example Usage
//
//	service, err := userweb.NewService(resolver, invoker, generator, engine, userweb.ServiceConfig{})
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	content, err := service.Serve(ctx, userweb.Request{
//	    Method:   http.MethodGet,
//	    Username: "alice",
//	    Path:     "notes/",
//	})
//
// See the http package for the HTTP surface.
package userweb
