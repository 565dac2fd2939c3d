package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os/signal"
	"slices"
	"strconv"
	"strings"
	"syscall"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/cnpj-finder/internal/model"
	"github.com/sells-group/cnpj-finder/internal/pipeline"
	"github.com/sells-group/cnpj-finder/internal/sheet"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP upload server",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if servePort != 0 {
			cfg.Server.Port = servePort
		}
		if err := cfg.Validate("serve"); err != nil {
			return err
		}

		env := newSearchEnv(cfg)
		h := &enrichHandler{
			env:       env,
			base:      cfg.PipelineConfig(),
			maxUpload: int64(cfg.Server.MaxUploadMB) << 20,
		}
		router := buildRouter(h, cfg.Server.Users, cfg.Server.AllowedOrigins)

		srv := &http.Server{
			Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
			Handler: router,
		}

		// Graceful shutdown
		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			_ = srv.Shutdown(ctx)
		}()

		zap.L().Info("starting server", zap.Int("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return eris.Wrap(err, "server listen")
		}

		return nil
	},
}

// buildRouter wires the public health check and the authenticated upload
// endpoint.
func buildRouter(h *enrichHandler, users map[string]string, origins []string) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	if len(origins) > 0 {
		r.Use(cors.Handler(corsOptions(origins)))
	}

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, h.health())
	})

	r.Group(func(r chi.Router) {
		r.Use(middleware.BasicAuth("cnpj-finder", users))
		r.Post("/enrich", h.ServeHTTP)
	})

	return r
}

// corsOptions allows credentialed requests only from explicitly listed
// origins, never from a wildcard.
func corsOptions(origins []string) cors.Options {
	wildcard := slices.Contains(origins, "*")
	return cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders:   []string{"Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Content-Disposition", "X-Run-ID"},
		AllowCredentials: !wildcard,
		MaxAge:           300,
	}
}

// enrichHandler runs one pipeline per uploaded spreadsheet.
type enrichHandler struct {
	env       *searchEnv
	base      pipeline.Config
	maxUpload int64
}

// health reports liveness plus the search circuit state when a breaker is
// configured.
func (h *enrichHandler) health() map[string]any {
	body := map[string]any{"status": "ok"}
	if h.env != nil && h.env.Breaker != nil {
		failures, state := h.env.Breaker.Counters()
		body["search_circuit"] = state.String()
		body["search_consecutive_failures"] = failures
	}
	return body
}

func (h *enrichHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	log := zap.L().With(zap.String("request_id", middleware.GetReqID(r.Context())))

	if h.maxUpload > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, h.maxUpload)
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "multipart field \"file\" is required")
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		writeError(w, http.StatusBadRequest, "could not read upload")
		return
	}

	records, err := sheet.Decode(header.Filename, data)
	switch {
	case errors.Is(err, sheet.ErrMissingRequiredColumn):
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	case errors.Is(err, sheet.ErrUnsupportedFormat):
		writeError(w, http.StatusUnsupportedMediaType, err.Error())
		return
	case err != nil:
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	pc := h.base
	if v := strings.TrimSpace(r.FormValue("default_city")); v != "" {
		pc.DefaultCity = v
	}
	if v := strings.TrimSpace(r.FormValue("default_state")); v != "" {
		pc.DefaultState = v
	}
	p, err := h.env.Pipeline(pc)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	user, _, _ := r.BasicAuth()
	principal := model.Principal{Subject: user, Source: "http"}

	out, summary, err := p.Run(r.Context(), principal, records, nil)
	if err != nil {
		log.Error("enrich request failed", zap.String("file", header.Filename), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "enrichment failed")
		return
	}

	var buf bytes.Buffer
	if err := sheet.WriteXLSX(&buf, out); err != nil {
		log.Error("write result sheet", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "could not build result sheet")
		return
	}

	w.Header().Set("Content-Type", xlsxContentType)
	w.Header().Set("Content-Disposition", `attachment; filename="resultado.xlsx"`)
	w.Header().Set("X-Run-ID", summary.RunID)
	w.Header().Set("X-Records-Found", strconv.Itoa(summary.Found))
	w.Header().Set("X-Records-Total", strconv.Itoa(summary.Total))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}
