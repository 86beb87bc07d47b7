package remote

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/mashiike/concierge"
)

// Handler publishes one Function over HTTP: its specification with GET and
// the worker with POST.
type Handler struct {
	cfg                   *HandlerConfig
	workerEndpoint        *url.URL
	specificationEndpoint *url.URL
	parameters            json.RawMessage
	mux                   *http.ServeMux
}

type HandlerConfig struct {
	Endpoint                *url.URL
	WorkerPath              string
	SpecificationPath       string
	ErrorHandler            func(w http.ResponseWriter, r *http.Request, err error, code int)
	MethodNotAllowedHandler func(w http.ResponseWriter, r *http.Request)
	NotFoundHandler         func(w http.ResponseWriter, r *http.Request)
	Function                concierge.Function
	Logger                  *slog.Logger
}

const (
	HeaderCallID       = "Concierge-Call-Id"
	HeaderFunctionName = "Concierge-Function-Name"
)

var _ http.Handler = (*Handler)(nil)

func NewHandler(cfg HandlerConfig) (*Handler, error) {
	h := &Handler{
		cfg: &cfg,
		mux: http.NewServeMux(),
	}
	if cfg.Function == nil {
		return nil, errors.New("function is required")
	}
	if cfg.Endpoint == nil {
		cfg.Endpoint = &url.URL{}
	}
	if cfg.WorkerPath == "" {
		cfg.WorkerPath = "/" + cfg.Function.Name()
	}
	h.workerEndpoint = cfg.Endpoint.JoinPath(cfg.WorkerPath)
	if cfg.SpecificationPath == "" {
		cfg.SpecificationPath = DefaultSpecificationPath
	}
	h.specificationEndpoint = cfg.Endpoint.JoinPath(cfg.SpecificationPath)
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
	var err error
	h.parameters, err = json.Marshal(cfg.Function.InputSchema())
	if err != nil {
		return nil, err
	}
	if h.cfg.Logger == nil {
		h.cfg.Logger = slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{}))
	}
	h.mux.HandleFunc("/"+strings.TrimPrefix(h.workerEndpoint.Path, "/"),
		func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodPost {
				h.cfg.MethodNotAllowedHandler(w, r)
				return
			}
			h.serveHTTPWorker(w, r)
		},
	)
	h.mux.HandleFunc("/"+strings.TrimPrefix(h.specificationEndpoint.Path, "/"),
		func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodGet {
				h.cfg.MethodNotAllowedHandler(w, r)
				return
			}
			h.serveHTTPSpecification(w, r)
		},
	)
	return h, nil
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
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

func (h *Handler) serveHTTPWorker(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	body, err := io.ReadAll(r.Body)
	if err != nil {
		h.cfg.ErrorHandler(w, r, fmt.Errorf("failed to read request body: %w", err), http.StatusBadRequest)
		return
	}
	fn := h.cfg.Function
	args, err := concierge.DecodeArguments(string(body))
	if err != nil {
		h.cfg.Logger.WarnContext(ctx, "failed to decode request body", "error", err)
		h.cfg.ErrorHandler(w, r, fmt.Errorf("failed to decode request body: %w", err), http.StatusBadRequest)
		return
	}
	ctx = concierge.WithFunctionName(ctx, fn.Name())
	if callID := r.Header.Get(HeaderCallID); callID != "" {
		ctx = concierge.WithCallID(ctx, callID)
	}
	var result Result
	if err := concierge.ValidateArguments(fn, args); err != nil {
		result = Result{Status: StatusError, Error: err.Error()}
	} else if v, err := fn.Call(ctx, args); err != nil {
		result = Result{Status: StatusError, Error: err.Error()}
	} else {
		result = Result{Status: StatusSuccess, Value: v}
	}
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(result); err != nil {
		h.cfg.Logger.WarnContext(ctx, "failed to encode response", "error", err)
		h.cfg.ErrorHandler(w, r, fmt.Errorf("failed to encode response: %w", err), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write(buf.Bytes())
}

func (h *Handler) serveHTTPSpecification(w http.ResponseWriter, req *http.Request) {
	ctx := req.Context()
	workerEndpoint := *h.workerEndpoint
	if !workerEndpoint.IsAbs() && !strings.HasPrefix(workerEndpoint.Path, "/") {
		workerEndpoint.Path = "/" + workerEndpoint.Path
	}
	spec := Specification{
		Name:           h.cfg.Function.Name(),
		Description:    h.cfg.Function.Description(),
		Parameters:     h.parameters,
		WorkerEndpoint: workerEndpoint.String(),
	}
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(spec); err != nil {
		h.cfg.Logger.WarnContext(ctx, "failed to encode specification", "error", err)
		h.cfg.ErrorHandler(w, req, fmt.Errorf("failed to encode specification: %w", err), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write(buf.Bytes())
}
