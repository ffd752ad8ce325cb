// Package httpapi serves a read-mostly HTTP view of the coordination state:
// tasks, dependency edges, sessions, conflicts, workload, and cycle reports.
// Writes stay on the CLI; the API exists for dashboards and scripting.
package httpapi

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/ankittk/coord/internal/graph"
	"github.com/ankittk/coord/internal/session"
	"github.com/ankittk/coord/internal/store"
	"github.com/ankittk/coord/internal/store/postgres"
	"github.com/ankittk/coord/internal/workload"
	"github.com/ankittk/coord/pkg/models"
)

// defaultMaxRequestBodyBytes limits request body size (1 MiB) to prevent OOM.
const defaultMaxRequestBodyBytes = 1 << 20

// ServerOptions configures the HTTP server (home dir, listen addr, DB, metrics).
type ServerOptions struct {
	Home           string
	Addr           string
	APIKey         string       // if set, require X-API-Key header or query api_key
	DBDriver       string       // "sqlite" (default) or "postgres"
	DBURL          string       // for postgres: connection string (or set DATABASE_URL env)
	Members        []string     // configured member pool for workload reports
	ConflictWindow time.Duration
	MetricsHandler http.Handler // if set, used for /metrics (e.g. OTel Prometheus handler)
	UseOtelHTTP    bool         // if true, wrap handler with otelhttp for request metrics
}

// App holds the HTTP server and the store it serves.
type App struct {
	Server *http.Server
	Store  store.Store
	Home   string
}

// NewApp creates the HTTP app and registers all routes.
func NewApp(opts ServerOptions) (*App, error) {
	mux := http.NewServeMux()

	var st store.Store
	var err error
	if opts.DBDriver == "postgres" {
		st, err = postgres.Open(opts.DBURL)
	} else {
		st, err = store.Open(opts.Home)
	}
	if err != nil {
		return nil, err
	}

	resolver := &graph.Resolver{Store: st}
	registry := &session.Registry{Store: st, ConflictWindow: opts.ConflictWindow}
	coordinator := &workload.Coordinator{Store: st, Pool: opts.Members}

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		if err := st.Ping(r.Context()); err != nil {
			writeJSONError(w, http.StatusServiceUnavailable, err.Error())
			return
		}
		writeJSON(w, map[string]any{"ok": true})
	})

	if opts.MetricsHandler != nil {
		mux.Handle("/metrics", opts.MetricsHandler)
	} else {
		mux.HandleFunc("/metrics", func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "text/plain; charset=utf-8")
			counts, err := st.CountTasksByStatus(r.Context())
			if err != nil {
				http.Error(w, err.Error(), http.StatusInternalServerError)
				return
			}
			_, _ = w.Write([]byte("# TYPE coord_tasks_total gauge\n"))
			for _, status := range []string{
				models.StatusWaiting, models.StatusPending, models.StatusInProgress,
				models.StatusPaused, models.StatusCompleted, models.StatusBlocked,
			} {
				line := "coord_tasks_total{status=\"" + status + "\"} " + strconv.FormatInt(counts[status], 10) + "\n"
				_, _ = w.Write([]byte(line))
			}
		})
	}

	// --- Tasks ---
	mux.HandleFunc("/api/tasks", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			writeJSONError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}
		var (
			tasks []store.Task
			err   error
		)
		switch {
		case r.URL.Query().Get("status") != "":
			status := r.URL.Query().Get("status")
			if !models.ValidTaskStatus(status) {
				writeJSONError(w, http.StatusBadRequest, "unknown status "+status)
				return
			}
			tasks, err = st.ListTasksByStatus(r.Context(), status)
		case r.URL.Query().Get("member") != "":
			tasks, err = st.ListTasksByMember(r.Context(), r.URL.Query().Get("member"))
		default:
			tasks, err = st.ListTasks(r.Context())
		}
		if err != nil {
			writeJSONError(w, http.StatusInternalServerError, err.Error())
			return
		}
		writeJSON(w, map[string]any{"tasks": tasks})
	})

	mux.HandleFunc("/api/tasks/", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			writeJSONError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}
		key := strings.TrimPrefix(r.URL.Path, "/api/tasks/")
		if key == "" {
			writeJSONError(w, http.StatusBadRequest, "task key required")
			return
		}
		task, err := st.GetTask(r.Context(), key)
		if err != nil {
			writeJSONError(w, http.StatusInternalServerError, err.Error())
			return
		}
		deps, err := st.ListDependencies(r.Context(), key)
		if err != nil {
			writeJSONError(w, http.StatusInternalServerError, err.Error())
			return
		}
		status := models.StatusUnknown
		if task != nil {
			status = task.Status
		}
		writeJSON(w, map[string]any{
			"task":       key,
			"status":     status,
			"record":     task,
			"depends_on": deps,
		})
	})

	// --- Dependencies ---
	mux.HandleFunc("/api/dependencies", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			writeJSONError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}
		adj, err := st.AllDependencies(r.Context())
		if err != nil {
			writeJSONError(w, http.StatusInternalServerError, err.Error())
			return
		}
		writeJSON(w, map[string]any{"dependencies": adj})
	})

	mux.HandleFunc("/api/cycles", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			writeJSONError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}
		cycles, err := resolver.DetectCycles(r.Context())
		if err != nil {
			writeJSONError(w, http.StatusInternalServerError, err.Error())
			return
		}
		chains := make([]string, 0, len(cycles))
		for _, c := range cycles {
			chains = append(chains, c.String())
		}
		writeJSON(w, map[string]any{"cycles": chains})
	})

	// --- Sessions ---
	mux.HandleFunc("/api/sessions", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			writeJSONError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}
		limit := models.DefaultSessionListLimit
		if v := r.URL.Query().Get("limit"); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil || n <= 0 {
				writeJSONError(w, http.StatusBadRequest, "invalid limit")
				return
			}
			limit = n
		}
		var (
			sessions []store.Session
			err      error
		)
		switch {
		case r.URL.Query().Get("member") != "":
			sessions, err = st.ListSessionsByMember(r.Context(), r.URL.Query().Get("member"), limit)
		case r.URL.Query().Get("status") != "":
			sessions, err = st.ListSessionsByStatus(r.Context(), r.URL.Query().Get("status"), limit)
		default:
			sessions, err = st.ListSessions(r.Context(), limit)
		}
		if err != nil {
			writeJSONError(w, http.StatusInternalServerError, err.Error())
			return
		}
		writeJSON(w, map[string]any{"sessions": sessions})
	})

	mux.HandleFunc("/api/conflicts", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			writeJSONError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}
		task := r.URL.Query().Get("task")
		if task == "" {
			writeJSONError(w, http.StatusBadRequest, "task query parameter required")
			return
		}
		conflict, err := registry.CheckConflict(r.Context(), task)
		if err != nil {
			writeJSONError(w, http.StatusInternalServerError, err.Error())
			return
		}
		if conflict == nil {
			writeJSON(w, map[string]any{"task": task, "conflict": false})
			return
		}
		writeJSON(w, map[string]any{
			"task":     task,
			"conflict": true,
			"members":  conflict.Members,
			"window":   conflict.Window.String(),
		})
	})

	// --- Workload ---
	mux.HandleFunc("/api/workload", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			writeJSONError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}
		report, err := coordinator.Report(r.Context())
		if err != nil {
			writeJSONError(w, http.StatusInternalServerError, err.Error())
			return
		}
		writeJSON(w, report)
	})

	// --- State document export ---
	mux.HandleFunc("/api/state", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			writeJSONError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}
		doc, err := st.Snapshot(r.Context())
		if err != nil {
			writeJSONError(w, http.StatusInternalServerError, err.Error())
			return
		}
		writeJSON(w, doc)
	})

	var handler http.Handler = mux
	handler = bodyLimitMiddleware(defaultMaxRequestBodyBytes, handler)
	if opts.APIKey != "" {
		handler = apiKeyMiddleware(opts.APIKey, handler)
	}
	handler = requestLogMiddleware(handler)
	if opts.UseOtelHTTP {
		handler = otelhttp.NewHandler(handler, "coord")
	}
	srv := &http.Server{
		Addr:              opts.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	srv.RegisterOnShutdown(func() {
		_ = st.Close()
	})
	return &App{Server: srv, Store: st, Home: opts.Home}, nil
}

// limitBody wraps r.Body with http.MaxBytesReader so handlers cannot read more than maxBytes.
func limitBody(w http.ResponseWriter, r *http.Request, maxBytes int64) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
}

// bodyLimitMiddleware limits request body size for POST, PUT, PATCH.
func bodyLimitMiddleware(maxBytes int64, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost || r.Method == http.MethodPut || r.Method == http.MethodPatch {
			limitBody(w, r, maxBytes)
		}
		next.ServeHTTP(w, r)
	})
}

func apiKeyMiddleware(apiKey string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path := r.URL.Path
		if path == "/health" || path == "/metrics" {
			next.ServeHTTP(w, r)
			return
		}
		key := r.Header.Get("X-API-Key")
		if key == "" {
			key = r.URL.Query().Get("api_key")
		}
		if key != apiKey {
			writeJSONError(w, http.StatusUnauthorized, "invalid or missing API key")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// responseRecorder captures status code for logging.
type responseRecorder struct {
	http.ResponseWriter
	status int
}

func (r *responseRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func requestLogMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		start := time.Now()
		rec := &responseRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, req)
		slog.Info("request",
			"method", req.Method,
			"path", req.URL.Path,
			"status", rec.status,
			"duration_ms", time.Since(start).Milliseconds())
	})
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(v)
}

// writeJSONError sends a JSON body {"error": "message"} with the given status code.
func writeJSONError(w http.ResponseWriter, code int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(map[string]any{"error": message})
}
