package httpapi

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"imaged/internal/catalog"
	"imaged/internal/manager"
	"imaged/pkg/types"
)

// Service defines the methods required by the HTTP API layer.
type Service interface {
	ListArtifacts() map[string]catalog.Record
	Rescan(ctx context.Context) (map[string]catalog.Record, error)
	Load(ctx context.Context, uid string) error
	Unload(ctx context.Context) error
	Reload(ctx context.Context) (string, error)
	Current() string
	Status() types.StatusResponse
	Generate(ctx context.Context, p manager.GenerateParams) (*manager.GenerateResult, error)
	Ready() bool
}

func NewMux(svc Service) http.Handler {
	r := chi.NewRouter()
	// Basic middlewares: request id, real ip, recoverer
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(MetricsMiddleware)
	if corsEnabled {
		r.Use(cors.Handler(corsOptions()))
	}
	// Compression for JSON endpoints
	r.Use(middleware.Compress(5))
	// Security headers
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("X-Content-Type-Options", "nosniff")
			next.ServeHTTP(w, r)
		})
	})

	h := &handlers{svc: svc}

	r.Get("/models", h.listModels)
	r.Post("/models/rescan", h.rescan)
	r.Post("/models/{uid}/load", h.load)
	r.Post("/unload", h.unload)
	r.Post("/reload", h.reload)
	r.Get("/loaded", h.loaded)
	r.Get("/status", h.status)
	r.Post("/generate", h.generate)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	r.Get("/readyz", func(w http.ResponseWriter, r *http.Request) {
		if svc.Ready() {
			w.WriteHeader(http.StatusOK)
			w.Write([]byte("ready"))
			return
		}
		w.WriteHeader(http.StatusServiceUnavailable)
		w.Write([]byte("no model loaded"))
	})

	// Prometheus metrics endpoint
	r.Get("/metrics", promhttp.Handler().ServeHTTP)

	MountSwagger(r)
	return r
}

func corsOptions() cors.Options {
	methods := corsAllowedMethods
	if len(methods) == 0 {
		methods = []string{http.MethodGet, http.MethodPost, http.MethodOptions}
	}
	headers := corsAllowedHeaders
	if len(headers) == 0 {
		headers = []string{"Content-Type", "X-Log-Level", "X-Request-Id"}
	}
	return cors.Options{
		AllowedOrigins: corsAllowedOrigins,
		AllowedMethods: methods,
		AllowedHeaders: headers,
		MaxAge:         300,
	}
}

type handlers struct{ svc Service }

// listModels godoc
// @Summary      List indexed models
// @Tags         models
// @Produce      json
// @Success      200  {object}  types.Index
// @Router       /models [get]
func (h *handlers) listModels(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, catalog.Index(h.svc.ListArtifacts()))
}

// rescan godoc
// @Summary      Rescan the models directory
// @Tags         models
// @Produce      json
// @Success      200  {object}  types.Index
// @Failure      500  {object}  types.ErrorResponse
// @Router       /models/rescan [post]
func (h *handlers) rescan(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	ctx, cancel := requestContext(r, 0)
	defer cancel()
	recs, err := h.svc.Rescan(ctx)
	if err != nil {
		logOutcome(r, "rescan", writeServiceError(w, err), start, err)
		return
	}
	writeJSON(w, http.StatusOK, catalog.Index(recs))
	logOutcome(r, "rescan", http.StatusOK, start, nil)
}

// load godoc
// @Summary      Load a model into the active slot
// @Tags         slot
// @Produce      json
// @Param        uid  path  string  true  "Model uid"
// @Success      200  {object}  types.LoadResponse
// @Failure      404  {object}  types.ErrorResponse
// @Failure      422  {object}  types.ErrorResponse
// @Failure      429  {object}  types.ErrorResponse
// @Failure      500  {object}  types.ErrorResponse
// @Router       /models/{uid}/load [post]
func (h *handlers) load(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	uid := chi.URLParam(r, "uid")
	logStart(r, "load", map[string]any{"uid": uid})
	ctx, cancel := requestContext(r, 0)
	defer cancel()
	if err := h.svc.Load(ctx, uid); err != nil {
		logOutcome(r, "load", writeServiceError(w, err), start, err)
		return
	}
	writeJSON(w, http.StatusOK, types.LoadResponse{LoadedModel: uid})
	logOutcome(r, "load", http.StatusOK, start, nil)
}

// unload godoc
// @Summary      Unload the active model
// @Tags         slot
// @Produce      json
// @Success      200  {object}  types.OKResponse
// @Router       /unload [post]
func (h *handlers) unload(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	ctx, cancel := requestContext(r, 0)
	defer cancel()
	if err := h.svc.Unload(ctx); err != nil {
		logOutcome(r, "unload", writeServiceError(w, err), start, err)
		return
	}
	writeJSON(w, http.StatusOK, types.OKResponse{Status: "ok"})
	logOutcome(r, "unload", http.StatusOK, start, nil)
}

// reload godoc
// @Summary      Reload the active model
// @Tags         slot
// @Produce      json
// @Success      200  {object}  types.ReloadResponse
// @Failure      409  {object}  types.ErrorResponse
// @Router       /reload [post]
func (h *handlers) reload(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	ctx, cancel := requestContext(r, 0)
	defer cancel()
	uid, err := h.svc.Reload(ctx)
	if err != nil {
		logOutcome(r, "reload", writeServiceError(w, err), start, err)
		return
	}
	writeJSON(w, http.StatusOK, types.ReloadResponse{ReloadedModel: uid})
	logOutcome(r, "reload", http.StatusOK, start, nil)
}

// loaded godoc
// @Summary      Currently loaded model uid
// @Tags         slot
// @Produce      json
// @Success      200  {object}  types.LoadedResponse
// @Router       /loaded [get]
func (h *handlers) loaded(w http.ResponseWriter, r *http.Request) {
	var resp types.LoadedResponse
	if uid := h.svc.Current(); uid != "" {
		resp.UID = &uid
	}
	writeJSON(w, http.StatusOK, resp)
}

// status godoc
// @Summary      Slot and catalog status
// @Tags         ops
// @Produce      json
// @Success      200  {object}  types.StatusResponse
// @Router       /status [get]
func (h *handlers) status(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.svc.Status())
}

// generate godoc
// @Summary      Generate images with the active model
// @Tags         generate
// @Accept       json
// @Produce      json
// @Param        request  body  types.GenerateRequest  true  "Generation parameters"
// @Success      200  {object}  types.GenerateResponse
// @Failure      400  {object}  types.ErrorResponse
// @Failure      409  {object}  types.ErrorResponse
// @Failure      429  {object}  types.ErrorResponse
// @Failure      503  {object}  types.ErrorResponse
// @Router       /generate [post]
func (h *handlers) generate(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	// Content-Type check
	ct := r.Header.Get("Content-Type")
	if ct == "" || !strings.HasPrefix(strings.ToLower(ct), "application/json") {
		writeJSONError(w, http.StatusUnsupportedMediaType, "Content-Type must be application/json")
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	var req types.GenerateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	logStart(r, "generate", map[string]any{"steps": req.InferenceSteps, "count": req.Count})

	ctx, cancel := requestContext(r, generateTimeout)
	defer cancel()
	res, err := h.svc.Generate(ctx, manager.GenerateParams{
		Prompt:         req.Prompt,
		NegativePrompt: req.NegativePrompt,
		Steps:          req.InferenceSteps,
		Guidance:       req.GuidanceScale,
		Seed:           req.Seed,
		Width:          req.Width,
		Height:         req.Height,
		Count:          req.Count,
	})
	if err != nil {
		// client went away or server is shutting down
		if r.Context().Err() != nil || serverBaseCtx.Err() != nil {
			return
		}
		logOutcome(r, "generate", writeServiceError(w, err), start, err)
		return
	}
	imagesServed.WithLabelValues(res.Loader).Add(float64(len(res.Images)))
	images := make([]string, len(res.Images))
	for i, b := range res.Images {
		images[i] = base64.StdEncoding.EncodeToString(b)
	}
	writeJSON(w, http.StatusOK, types.GenerateResponse{
		Model:  res.UID,
		Loader: res.Loader,
		Images: images,
		Prompt: req.Prompt,
		DurMS:  res.Duration.Milliseconds(),
	})
	logOutcome(r, "generate", http.StatusOK, start, nil)
}
