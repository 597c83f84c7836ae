package handle

import (
	"context"
	"encoding/json"
	"net/http"

	"nutrilens/api/internal/analyzer"
	"nutrilens/api/internal/analyzer/types"
)

// Analyzer is the delegate the endpoint forwards validated uploads to.
type Analyzer interface {
	Analyze(ctx context.Context, img []byte, mime string) (types.AnalysisResult, error)
}

type Handle struct {
	an        Analyzer
	service   string
	maxUpload int64
	debug     bool
}

type Option func(*Handle)

func WithMaxUpload(n int64) Option { return func(h *Handle) { h.maxUpload = n } }
func WithDebug(on bool) Option     { return func(h *Handle) { h.debug = on } }

func New(an Analyzer, service string, opts ...Option) *Handle {
	h := &Handle{an: an, service: service}
	for _, o := range opts {
		o(h)
	}
	return h
}

// Register mounts every route on mux.
func (h *Handle) Register(mux *http.ServeMux) {
	mux.HandleFunc("/", h.Health)
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	mux.HandleFunc("/schema", h.Schema)
	mux.HandleFunc("/analyze", h.Analyze)
}

func (h *Handle) Health(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		writeDetail(w, http.StatusNotFound, "Not Found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy", "service": h.service})
}

func (h *Handle) Schema(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/schema+json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(analyzer.Schema))
}

// statusFor is the single place where the error taxonomy becomes HTTP.
func statusFor(k analyzer.Kind) int {
	switch k {
	case analyzer.KindInvalidFileType, analyzer.KindEmptyUpload:
		return http.StatusBadRequest
	case analyzer.KindUploadTooLarge:
		return http.StatusRequestEntityTooLarge
	default:
		return http.StatusInternalServerError
	}
}

func writeError(w http.ResponseWriter, err error) {
	writeDetail(w, statusFor(analyzer.KindOf(err)), err.Error())
}

func writeDetail(w http.ResponseWriter, code int, detail string) {
	writeJSON(w, code, types.ErrorResult{Detail: detail})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
