package userweb

import (
	"bytes"
	"fmt"
	"io"
	"mime"
	"net/url"
)

// Supported request body encodings.
const (
	ContentTypeURLEncoded = "application/x-www-form-urlencoded"
	ContentTypePlaintext  = "text/plain"
	ContentTypeMultipart  = "multipart/form-data"
)

// ParsePayload interprets a request body according to its declared content type.
//
// URL-encoded bodies become key/value pairs (first value wins, malformed pairs are
// dropped), plaintext bodies are kept as a string, and multipart bodies are left as a
// stream for the handler to consume. An empty content type yields PayloadNone; any other
// type, or a body that cannot be delivered to a handler, reports ErrMalformedBody.
func ParsePayload(contentType string, body io.Reader) (FormPayload, error) {
	if contentType == "" || body == nil {
		return FormPayload{Kind: PayloadNone}, nil
	}

	mediaType, params, err := mime.ParseMediaType(contentType)
	if err != nil {
		return FormPayload{}, fmt.Errorf("parse payload: %w: %w", ErrMalformedBody, err)
	}

	switch mediaType {
	case ContentTypeURLEncoded:
		raw, err := io.ReadAll(body)
		if err != nil {
			return FormPayload{}, fmt.Errorf("parse payload: %w", err)
		}
		// ParseQuery keeps every well-formed pair even when it reports an error.
		values, _ := url.ParseQuery(string(raw))
		return FormPayload{Kind: PayloadURLEncoded, Values: FirstValues(values)}, nil

	case ContentTypePlaintext:
		raw, err := io.ReadAll(body)
		if err != nil {
			return FormPayload{}, fmt.Errorf("parse payload: %w", err)
		}
		if bytes.IndexByte(raw, 0) >= 0 {
			return FormPayload{}, fmt.Errorf("parse payload: %w: NUL byte in text body", ErrMalformedBody)
		}
		return FormPayload{Kind: PayloadPlaintext, Text: string(raw)}, nil

	case ContentTypeMultipart:
		if params["boundary"] == "" {
			return FormPayload{}, fmt.Errorf("parse payload: %w: missing multipart boundary", ErrMalformedBody)
		}
		return FormPayload{Kind: PayloadMultipart, Stream: body}, nil

	default:
		return FormPayload{}, fmt.Errorf("parse payload: %w: unsupported content type %q", ErrMalformedBody, mediaType)
	}
}

// FirstValues flattens url.Values keeping the first value of each key.
func FirstValues(values url.Values) map[string]string {
	out := make(map[string]string, len(values))
	for k, v := range values {
		if len(v) == 0 {
			continue
		}
		out[k] = v[0]
	}
	return out
}
