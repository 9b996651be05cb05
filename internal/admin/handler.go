// Package admin serves the HTTP administration API: listing and canceling
// open statements, resolving identifier lists and exposing metrics.
package admin

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"google.golang.org/grpc/metadata"

	"github.com/hanpama/olapcore/internal/ctxlog"
	"github.com/hanpama/olapcore/internal/engine"
	eventbus "github.com/hanpama/olapcore/internal/eventbus"
	events "github.com/hanpama/olapcore/internal/events"
	"github.com/hanpama/olapcore/internal/execution"
	reqid "github.com/hanpama/olapcore/internal/reqid"
	"github.com/hanpama/olapcore/internal/resolver"
)

// Handler is the admin http.Handler.
type Handler struct {
	eng *engine.Engine
	opt Options
	mux *http.ServeMux
}

type Options struct {
	// Timeout sets a default timeout if the incoming request context has none.
	// 0 means no default timeout.
	Timeout time.Duration

	// Pretty enables indented JSON responses.
	Pretty bool

	// MaxBodyBytes limits the size of the request body. 0 means unlimited.
	MaxBodyBytes int64

	// CORS configuration. If AllowedOrigins is empty, CORS is disabled.
	CORS CORSOptions

	// MetadataHeaders lists HTTP headers to forward into outgoing gRPC
	// metadata, reaching a remote catalog. Header names are case-insensitive.
	MetadataHeaders []string

	// Metrics, when set, is served at GET /metrics.
	Metrics http.Handler
}

type Option func(*Options)

func WithTimeout(d time.Duration) Option  { return func(o *Options) { o.Timeout = d } }
func WithPretty() Option                  { return func(o *Options) { o.Pretty = true } }
func WithMaxBodyBytes(n int64) Option     { return func(o *Options) { o.MaxBodyBytes = n } }
func WithMetrics(h http.Handler) Option   { return func(o *Options) { o.Metrics = h } }
func WithCORS(origins ...string) Option   { return func(o *Options) { o.CORS.AllowedOrigins = origins } }
func WithMetadataHeaders(headers ...string) Option {
	return func(o *Options) { o.MetadataHeaders = headers }
}

// CORSOptions holds simple CORS settings.
type CORSOptions struct {
	AllowedOrigins []string
}

// New creates the admin handler for eng.
func New(eng *engine.Engine, opts ...Option) *Handler {
	op := Options{Timeout: 30 * time.Second, MaxBodyBytes: 1 << 20}
	for _, f := range opts {
		f(&op)
	}
	h := &Handler{eng: eng, opt: op, mux: http.NewServeMux()}
	h.handle("GET /statements", h.listStatements)
	h.handle("POST /statements/{id}/cancel", h.cancelStatement)
	h.handle("POST /resolve", h.resolve)
	if op.Metrics != nil {
		h.handle("GET /metrics", func(w http.ResponseWriter, r *http.Request) int {
			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			op.Metrics.ServeHTTP(rec, r)
			return rec.status
		})
	}
	return h
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if len(h.opt.CORS.AllowedOrigins) > 0 {
		setCORSHeaders(w, r, h.opt.CORS)
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
	}
	h.mux.ServeHTTP(w, r)
}

// handle registers fn under pattern. fn returns the status it wrote, which
// is reported in events.HTTPFinish.
func (h *Handler) handle(pattern string, fn func(http.ResponseWriter, *http.Request) int) {
	h.mux.HandleFunc(pattern, func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if _, ok := ctx.Deadline(); !ok && h.opt.Timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, h.opt.Timeout)
			defer cancel()
		}
		ctx, rid := reqid.NewContext(ctx, r.Header.Get(reqid.Header))
		w.Header().Set(reqid.Header, rid)
		ctx = ctxlog.WithLogger(ctx, ctxlog.FromContext(ctx).With("request_id", rid))
		ctx = metadata.NewOutgoingContext(ctx, h.forwarded(r, rid))
		r = r.WithContext(ctx)

		start := time.Now()
		eventbus.Publish(ctx, events.HTTPStart{Request: r, Route: pattern})
		status := fn(w, r)
		eventbus.Publish(ctx, events.HTTPFinish{Request: r, Route: pattern, Status: status, Duration: time.Since(start)})
	})
}

func (h *Handler) forwarded(r *http.Request, rid string) metadata.MD {
	md := metadata.MD{}
	if len(h.opt.MetadataHeaders) > 0 {
		allowed := make(map[string]struct{}, len(h.opt.MetadataHeaders))
		for _, hdr := range h.opt.MetadataHeaders {
			allowed[strings.ToLower(hdr)] = struct{}{}
		}
		for k, v := range r.Header {
			if _, ok := allowed[strings.ToLower(k)]; ok {
				md[strings.ToLower(k)] = v
			}
		}
	}
	md["x-request-id"] = []string{rid}
	return md
}

// ------------------ Statements ------------------

type executionView struct {
	ID      string    `json:"id"`
	State   string    `json:"state"`
	Started time.Time `json:"started"`
	Frames  []string  `json:"frames,omitempty"`
}

type statementView struct {
	ID            string         `json:"id"`
	Label         string         `json:"label"`
	Phase         string         `json:"phase"`
	Executions    int            `json:"executions"`
	CancelPending bool           `json:"cancelPending,omitempty"`
	Current       *executionView `json:"current,omitempty"`
}

func (h *Handler) listStatements(w http.ResponseWriter, r *http.Request) int {
	stmts := h.eng.Registry().List()
	out := make([]statementView, 0, len(stmts))
	for _, s := range stmts {
		v := statementView{
			ID:            s.ID().String(),
			Label:         s.Label,
			Phase:         s.Phase().String(),
			Executions:    s.Executions(),
			CancelPending: s.CancelPending(),
		}
		if e := s.Current(); e != nil {
			ev := &executionView{ID: e.ID.String(), State: e.State().String(), Started: e.Started()}
			for _, f := range e.Locus().Frames() {
				ev.Frames = append(ev.Frames, f.Component+": "+f.Message)
			}
			v.Current = ev
		}
		out = append(out, v)
	}
	return h.writeJSON(w, http.StatusOK, out)
}

func (h *Handler) cancelStatement(w http.ResponseWriter, r *http.Request) int {
	id, err := execution.ParseStatementID(r.PathValue("id"))
	if err == nil {
		err = h.eng.Registry().Cancel(id)
	}
	if err != nil {
		return h.writeError(w, http.StatusNotFound, err)
	}
	ctxlog.FromContext(r.Context()).Info("statement canceled", "statement", id.String())
	return h.writeJSON(w, http.StatusAccepted, map[string]string{"id": id.String(), "status": "cancel requested"})
}

// ------------------ Resolve ------------------

func (h *Handler) resolve(w http.ResponseWriter, r *http.Request) int {
	req, err := decodeResolveRequest(r, h.opt.MaxBodyBytes)
	if err != nil {
		status := http.StatusBadRequest
		if errors.Is(err, errBodyTooLarge) {
			status = http.StatusRequestEntityTooLarge
		}
		return h.writeError(w, status, err)
	}
	q, err := req.query()
	if err != nil {
		return h.writeError(w, http.StatusBadRequest, err)
	}

	label := req.Label
	if label == "" {
		label = "admin " + q.Cube
	}
	stmt := h.eng.OpenStatement(label)
	defer func() { _ = stmt.Close() }()

	res, err := stmt.Resolve(r.Context(), q)
	if res == nil {
		if errors.Is(err, engine.ErrUnknownCube) {
			return h.writeError(w, http.StatusNotFound, err)
		}
		return h.writeError(w, http.StatusInternalServerError, err)
	}
	out := newResolveResponse(stmt.ID(), res, q, err)

	var nf *resolver.MemberNotFoundError
	switch {
	case err == nil, errors.Is(err, execution.ErrCanceled), errors.Is(err, execution.ErrTimeout):
		return h.writeJSON(w, http.StatusOK, out)
	case errors.As(err, &nf):
		return h.writeJSON(w, http.StatusUnprocessableEntity, out)
	default:
		ctxlog.FromContext(r.Context()).Error("resolve failed", "error", err)
		return h.writeJSON(w, http.StatusBadGateway, out)
	}
}

// ------------------ Response helpers ------------------

type errorBody struct {
	Error string `json:"error"`
}

func (h *Handler) writeError(w http.ResponseWriter, status int, err error) int {
	return h.writeJSON(w, status, errorBody{Error: err.Error()})
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v any) int {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	if h.opt.Pretty {
		enc.SetIndent("", "  ")
	}
	_ = enc.Encode(v)
	return status
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}

func setCORSHeaders(w http.ResponseWriter, r *http.Request, opts CORSOptions) {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return
	}
	allowed := false
	for _, o := range opts.AllowedOrigins {
		if o == "*" || o == origin {
			allowed = true
			break
		}
	}
	if !allowed {
		return
	}
	if contains(opts.AllowedOrigins, "*") {
		w.Header().Set("Access-Control-Allow-Origin", "*")
	} else {
		w.Header().Set("Access-Control-Allow-Origin", origin)
		w.Header().Add("Vary", "Origin")
	}
	if r.Method == http.MethodOptions {
		if hdr := r.Header.Get("Access-Control-Request-Headers"); hdr != "" {
			w.Header().Set("Access-Control-Allow-Headers", hdr)
		}
		w.Header().Set("Access-Control-Allow-Methods", "GET,POST,OPTIONS")
	}
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
