package userweb

import (
	"fmt"
	"io"
	"net/url"
	"time"
)

// TargetKind identifies the strategy chosen for a request.
type TargetKind int

const (
	KindStaticFile TargetKind = iota + 1
	KindIndexExecutable
	KindFormExecutable
	KindDirectory
)

func (k TargetKind) String() string {
	switch k {
	case KindStaticFile:
		return "static_file"
	case KindIndexExecutable:
		return "index_executable"
	case KindFormExecutable:
		return "form_executable"
	case KindDirectory:
		return "directory"
	default:
		return fmt.Sprintf("target_kind(%d)", int(k))
	}
}

// Target is the single handling strategy selected for a request.
type Target struct {
	Kind TargetKind
	// Path is the canonical filesystem path of the file or directory to handle.
	Path string
	// AllowedVariables is the sibling allowed_variables path, set for executables only.
	AllowedVariables string
}

// Site is a user's publishable content root.
type Site struct {
	User string
	// Root is the canonical (symlink-free) path of the user's www directory.
	Root string
}

// SiteInfo describes a site for the people listing.
type SiteInfo struct {
	User    string
	ModTime time.Time
}

// Resolved is the outcome of path resolution.
type Resolved struct {
	Site Site
	// Path is the canonical filesystem path inside Site.Root.
	Path string
	// Name is the last segment of the request path as the client sent it.
	Name    string
	IsDir   bool
	Size    int64
	ModTime time.Time
}

// PayloadKind identifies how a POST body was encoded.
type PayloadKind int

const (
	PayloadNone PayloadKind = iota
	PayloadURLEncoded
	PayloadPlaintext
	PayloadMultipart
)

// FormPayload is a request body interpreted according to its content type.
type FormPayload struct {
	Kind   PayloadKind
	Values map[string]string
	Text   string
	Stream io.Reader
}

// Request is a transport-independent view of an incoming request.
type Request struct {
	Method   string
	Username string
	// Path is the decoded path following the username segment.
	Path string
	// URLPath is the full request URL path, used to build links.
	URLPath string
	Query   url.Values
	Payload FormPayload
}

// Invocation describes an executable handler run for one request.
type Invocation struct {
	Site    Site
	Target  Target
	Query   url.Values
	Payload FormPayload
}

// Output is what an executable handler produced.
type Output struct {
	Body        []byte
	ContentType string
}

// IndexRequest asks for a generated listing of a directory.
type IndexRequest struct {
	Site    Site
	Dir     string
	URLPath string
	Query   url.Values
}

// Content is the response payload for a request.
type Content struct {
	Name         string
	ContentType  string
	CacheControl string
	// ModTime is zero for generated content.
	ModTime time.Time
	Body    io.ReadSeekCloser
}
