// Package server exposes an Answerer over HTTP.
package server

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"slices"
	"strings"

	"github.com/fujiwara/ridge"
	"github.com/mashiike/concierge"
	"github.com/rs/cors"
)

const (
	DefaultAnswerPath    = "/get_result"
	DefaultFunctionsPath = "/functions"
	DefaultHeaderPrefix  = "Concierge-"
)

// Query is the request body of the answer endpoint. A missing content field
// is an empty query.
type Query struct {
	Content string `json:"content"`
}

type Handler struct {
	cfg     *HandlerConfig
	mux     *http.ServeMux
	handler http.Handler
}

type HandlerConfig struct {
	Answerer                concierge.Answerer
	Registry                *concierge.Registry
	AnswerPath              string
	FunctionsPath           string
	HeaderPrefix            string
	CORS                    concierge.CORSConfig
	ErrorHandler            func(w http.ResponseWriter, r *http.Request, err error, code int)
	MethodNotAllowedHandler func(w http.ResponseWriter, r *http.Request)
	NotFoundHandler         func(w http.ResponseWriter, r *http.Request)
	Logger                  *slog.Logger
}

var _ http.Handler = (*Handler)(nil)

func NewHandler(cfg HandlerConfig) (*Handler, error) {
	if cfg.Answerer == nil {
		return nil, errors.New("answerer is required")
	}
	if cfg.Registry == nil {
		cfg.Registry = concierge.NewRegistry()
	}
	if cfg.AnswerPath == "" {
		cfg.AnswerPath = DefaultAnswerPath
	}
	if cfg.FunctionsPath == "" {
		cfg.FunctionsPath = DefaultFunctionsPath
	}
	if cfg.HeaderPrefix == "" {
		cfg.HeaderPrefix = DefaultHeaderPrefix
	}
	if cfg.ErrorHandler == nil {
		cfg.ErrorHandler = func(w http.ResponseWriter, _ *http.Request, err error, code int) {
			w.Header().Set("Content-Type", "application/json")
			w.Header().Set("X-Content-Type-Options", "nosniff")
			var body bytes.Buffer
			if err := json.NewEncoder(&body).Encode(map[string]any{
				"error":   http.StatusText(code),
				"message": err.Error(),
				"status":  code,
			}); err != nil {
				http.Error(w, err.Error(), http.StatusInternalServerError)
				return
			}
			w.WriteHeader(code)
			w.Write(body.Bytes())
		}
	}
	if cfg.NotFoundHandler == nil {
		cfg.NotFoundHandler = func(w http.ResponseWriter, r *http.Request) {
			cfg.ErrorHandler(w, r, fmt.Errorf("the requested resource %q was not found", r.URL.Path), http.StatusNotFound)
		}
	}
	if cfg.MethodNotAllowedHandler == nil {
		cfg.MethodNotAllowedHandler = func(w http.ResponseWriter, r *http.Request) {
			cfg.ErrorHandler(w, r, fmt.Errorf("the requested resource %q does not support the method %q", r.URL.Path, r.Method), http.StatusMethodNotAllowed)
		}
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	h := &Handler{
		cfg: &cfg,
		mux: http.NewServeMux(),
	}
	h.mux.HandleFunc("/"+strings.TrimPrefix(cfg.AnswerPath, "/"),
		func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodPost {
				h.cfg.MethodNotAllowedHandler(w, r)
				return
			}
			h.serveHTTPAnswer(w, r)
		},
	)
	h.mux.HandleFunc("/"+strings.TrimPrefix(cfg.FunctionsPath, "/"),
		func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodGet {
				h.cfg.MethodNotAllowedHandler(w, r)
				return
			}
			h.serveHTTPFunctions(w, r)
		},
	)
	h.handler = newCORS(cfg.CORS).Handler(http.HandlerFunc(h.route))
	return h, nil
}

var allMethods = []string{
	http.MethodGet,
	http.MethodHead,
	http.MethodPost,
	http.MethodPut,
	http.MethodPatch,
	http.MethodDelete,
	http.MethodOptions,
}

func newCORS(cfg concierge.CORSConfig) *cors.Cors {
	methods := cfg.AllowedMethods
	if slices.Contains(methods, "*") {
		methods = allMethods
	}
	return cors.New(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   methods,
		AllowedHeaders:   cfg.AllowedHeaders,
		AllowCredentials: cfg.AllowCredentials,
	})
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.handler.ServeHTTP(w, r)
}

func (h *Handler) route(w http.ResponseWriter, r *http.Request) {
	h.cfg.Logger.InfoContext(r.Context(), "request", "method", r.Method, "url", r.URL)
	if r.RequestURI == "*" {
		if r.ProtoAtLeast(1, 1) {
			w.Header().Set("Connection", "close")
		}
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	matched, pattern := h.mux.Handler(r)
	if pattern == "" {
		h.cfg.NotFoundHandler(w, r)
		return
	}
	matched.ServeHTTP(w, r)
}

func (h *Handler) serveHTTPAnswer(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var q Query
	if err := json.NewDecoder(r.Body).Decode(&q); err != nil && !errors.Is(err, io.EOF) {
		h.cfg.Logger.WarnContext(ctx, "failed to decode request body", "error", err)
		h.cfg.ErrorHandler(w, r, fmt.Errorf("failed to decode request body: %w", err), http.StatusBadRequest)
		return
	}
	answer, err := h.cfg.Answerer.Answer(ctx, q.Content)
	if err != nil {
		h.cfg.Logger.ErrorContext(ctx, "failed to answer", "error", err)
		h.cfg.ErrorHandler(w, r, fmt.Errorf("failed to answer: %w", err), http.StatusInternalServerError)
		return
	}
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(answer.Value); err != nil {
		h.cfg.Logger.WarnContext(ctx, "failed to encode response", "error", err)
		h.cfg.ErrorHandler(w, r, fmt.Errorf("failed to encode response: %w", err), http.StatusInternalServerError)
		return
	}
	answer.Metadata.WriteHeader(w.Header(), h.cfg.HeaderPrefix)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write(buf.Bytes())
}

func (h *Handler) serveHTTPFunctions(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(h.cfg.Registry.DescribeAll()); err != nil {
		h.cfg.Logger.WarnContext(ctx, "failed to encode functions", "error", err)
		h.cfg.ErrorHandler(w, r, fmt.Errorf("failed to encode functions: %w", err), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write(buf.Bytes())
}

// Run serves h on addr. Under AWS Lambda it serves function URL events
// instead.
func Run(addr string, h http.Handler) {
	ridge.Run(addr, "/", h)
}
