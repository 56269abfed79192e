package http

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/sagarc03/userweb"
)

type Service interface {
	Serve(ctx context.Context, req userweb.Request) (userweb.Content, error)
	People(ctx context.Context, query url.Values) (userweb.Content, error)
}

type CORSConfig struct {
	Enabled          bool     `mapstructure:"enabled" yaml:"enabled"`
	AllowedOrigins   []string `mapstructure:"allowed_origins" yaml:"allowed_origins"`
	AllowedMethods   []string `mapstructure:"allowed_methods" yaml:"allowed_methods"`
	AllowedHeaders   []string `mapstructure:"allowed_headers" yaml:"allowed_headers"`
	ExposedHeaders   []string `mapstructure:"exposed_headers" yaml:"exposed_headers"`
	AllowCredentials bool     `mapstructure:"allow_credentials" yaml:"allow_credentials"`
	MaxAge           int      `mapstructure:"max_age" yaml:"max_age"`
}

type HandlerConfig struct {
	// MaxBodySize limits POST bodies in bytes; 0 means no limit.
	MaxBodySize int64
	// TrustProxy takes the client address from X-Forwarded-For / X-Real-IP.
	TrustProxy bool
	CORS       CORSConfig
}

// Handler serves user sites over HTTP.
type Handler struct {
	config  HandlerConfig
	service Service
}

// NewHandler creates a new Handler with the given configuration and service.
func NewHandler(config *HandlerConfig, service Service) *Handler {
	return &Handler{
		config:  *config,
		service: service,
	}
}

// Router returns an http.Handler serving /<username>/<path...>.
// GET / lists the published sites.
func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(RequestID)
	if h.config.TrustProxy {
		r.Use(middleware.RealIP)
	}
	r.Use(RequestLogger)
	r.Use(middleware.Recoverer)

	if h.config.CORS.Enabled {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins:   h.config.CORS.AllowedOrigins,
			AllowedMethods:   h.config.CORS.AllowedMethods,
			AllowedHeaders:   h.config.CORS.AllowedHeaders,
			ExposedHeaders:   h.config.CORS.ExposedHeaders,
			AllowCredentials: h.config.CORS.AllowCredentials,
			MaxAge:           h.config.CORS.MaxAge,
		}))
	}

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeErrorPage(w, http.StatusNotFound)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Allow", "GET, HEAD, POST")
		writeErrorPage(w, http.StatusMethodNotAllowed)
	})

	r.Get("/", h.handlePeople)
	r.Head("/", h.handlePeople)

	for _, pattern := range []string{"/{user}", "/{user}/*"} {
		r.Get(pattern, h.handleSite)
		r.Head(pattern, h.handleSite)
		r.Post(pattern, h.handleSite)
	}

	return r
}

func (h *Handler) handlePeople(w http.ResponseWriter, r *http.Request) {
	content, err := h.service.People(r.Context(), r.URL.Query())
	if err != nil {
		HandleError(w, r, err)
		return
	}
	WriteContent(w, r, content)
}

func (h *Handler) handleSite(w http.ResponseWriter, r *http.Request) {
	username, rest := SplitUserPath(r.URL.Path)

	req := userweb.Request{
		Method:   r.Method,
		Username: username,
		Path:     rest,
		URLPath:  r.URL.Path,
		Query:    r.URL.Query(),
	}

	if r.Method == http.MethodPost {
		body := r.Body
		if h.config.MaxBodySize > 0 {
			body = http.MaxBytesReader(w, r.Body, h.config.MaxBodySize)
		}

		payload, err := userweb.ParsePayload(r.Header.Get("Content-Type"), body)
		if err != nil {
			HandleError(w, r, err)
			return
		}
		req.Payload = payload
	}

	content, err := h.service.Serve(r.Context(), req)
	if err != nil {
		HandleError(w, r, err)
		return
	}
	WriteContent(w, r, content)
}

// SplitUserPath splits a URL path into its username segment and the remaining path.
func SplitUserPath(p string) (username, rest string) {
	p = strings.TrimPrefix(p, "/")
	username, rest, _ = strings.Cut(p, "/")
	return username, rest
}

// WriteContent sends content, honouring conditional and range requests for files.
func WriteContent(w http.ResponseWriter, r *http.Request, content userweb.Content) {
	defer func() { _ = content.Body.Close() }()

	if content.ContentType != "" {
		w.Header().Set("Content-Type", content.ContentType)
	}
	if content.CacheControl != "" {
		w.Header().Set("Cache-Control", content.CacheControl)
	}
	w.Header().Set("X-Content-Type-Options", "nosniff")

	http.ServeContent(w, r, content.Name, content.ModTime, content.Body)
}

// isBodyTooLarge reports whether err came from a MaxBytesReader limit.
func isBodyTooLarge(err error) bool {
	var maxErr *http.MaxBytesError
	return errors.As(err, &maxErr)
}
