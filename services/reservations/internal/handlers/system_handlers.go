package handlers

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/diagnosis/van-reservations/internal/http/response"
	"github.com/diagnosis/van-reservations/pkg/logger"
)

const healthTimeout = 2 * time.Second

// Health pings every dependency. It always answers 200 so a slow database
// does not get the container restarted; status reports "degraded" instead.
func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	started := time.Now()
	ctx, cancel := context.WithTimeout(r.Context(), healthTimeout)
	defer cancel()

	results := make([]error, len(h.checks))
	var g errgroup.Group
	for i, c := range h.checks {
		g.Go(func() error {
			results[i] = c.Ping(ctx)
			return nil
		})
	}
	_ = g.Wait()

	status := "healthy"
	checks := make(map[string]string, len(h.checks))
	body := map[string]any{}
	for i, c := range h.checks {
		if err := results[i]; err != nil {
			status = "degraded"
			checks[c.Name] = "error"
			body[c.Name+"_error"] = err.Error()
			logger.WarnContext(r.Context(), "Health check failed", "check", c.Name, "error", err)
			continue
		}
		checks[c.Name] = "connected"
	}

	body["status"] = status
	body["checks"] = checks
	if db, ok := checks["database"]; ok {
		body["database"] = db
	}
	body["duration_ms"] = time.Since(started).Milliseconds()
	body["timestamp"] = time.Now().UTC().Format(time.RFC3339)
	body["uptime"] = time.Since(h.started).Seconds()
	writeJSON(w, http.StatusOK, body)
}

// HealthSimple answers without touching any dependency.
func (h *Handlers) HealthSimple(w http.ResponseWriter, r *http.Request) {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	writeJSON(w, http.StatusOK, map[string]any{
		"status": "ok",
		"uptime": time.Since(h.started).Seconds(),
		"memory": map[string]uint64{
			"sys_mb":        m.Sys >> 20,
			"heap_alloc_mb": m.HeapAlloc >> 20,
			"heap_sys_mb":   m.HeapSys >> 20,
		},
		"goroutines": runtime.NumGoroutine(),
		"timestamp":  time.Now().UTC().Format(time.RFC3339),
	})
}

// Config serves GET /api/config.
func (h *Handlers) Config(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"entra_client_id": h.frontend.ClientID,
		"admin_emails":    strings.Join(h.frontend.AdminEmails, ","),
	})
}

// APINotFound answers unknown API routes with JSON.
func APINotFound(w http.ResponseWriter, r *http.Request) {
	response.NotFound(w, "Niet gevonden")
}

// SPA serves files from dir and falls back to index.html, with the sign-in
// config injected, for client side routes.
func (h *Handlers) SPA(dir string) http.HandlerFunc {
	files := http.FileServer(http.Dir(dir))
	index := filepath.Join(dir, "index.html")

	return func(w http.ResponseWriter, r *http.Request) {
		p := path.Clean("/" + r.URL.Path)
		if strings.HasPrefix(p, "/api/") || strings.HasPrefix(p, "/uploads/") {
			response.NotFound(w, "Niet gevonden")
			return
		}

		if p != "/" {
			if info, err := os.Stat(filepath.Join(dir, filepath.FromSlash(p))); err == nil && !info.IsDir() {
				files.ServeHTTP(w, r)
				return
			}
			if path.Ext(p) != "" {
				http.NotFound(w, r)
				return
			}
		}

		page, err := os.ReadFile(index)
		if err != nil {
			logger.ErrorContext(r.Context(), "index.html unavailable", "error", err)
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Header().Set("Cache-Control", "no-cache")
		_, _ = w.Write(injectConfig(page, h.frontend))
	}
}

func injectConfig(page []byte, cfg FrontendConfig) []byte {
	script := fmt.Sprintf("<script>window.ENTRA_CLIENT_ID = \"%s\"; window.ADMIN_EMAILS = \"%s\";</script></head>",
		template.JSEscapeString(cfg.ClientID),
		template.JSEscapeString(strings.Join(cfg.AdminEmails, ",")),
	)
	return bytes.Replace(page, []byte("</head>"), []byte(script), 1)
}

// noListing hides directory indexes of a file server.
func noListing(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "" || strings.HasSuffix(r.URL.Path, "/") {
			http.NotFound(w, r)
			return
		}
		next.ServeHTTP(w, r)
	})
}
