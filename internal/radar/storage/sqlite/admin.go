package sqlite

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"path/filepath"

	"github.com/banshee-data/radarchain/internal/httputil"
	"github.com/banshee-data/radarchain/internal/monitoring"
	"github.com/tailscale/tailsql/server/tailsql"
	"tailscale.com/tsweb"
)

// Backup writes a consistent copy of the database to path.
func (s *Store) Backup(ctx context.Context, path string) error {
	if _, err := s.db.ExecContext(ctx, "VACUUM INTO ?", path); err != nil {
		return fmt.Errorf("backup to %s: %w", path, err)
	}
	return nil
}

// AttachAdminRoutes mounts the live SQL console, a run listing and a
// database backup download under the tsweb /debug/ index on mux.
func (s *Store) AttachAdminRoutes(mux *http.ServeMux) error {
	debug := tsweb.Debugger(mux)

	tsql, err := tailsql.NewServer(tailsql.Options{
		RoutePrefix: "/debug/tailsql/",
	})
	if err != nil {
		return fmt.Errorf("failed to create tailsql server: %w", err)
	}
	tsql.SetDB("sqlite://radar.db", s.db, &tailsql.DBOptions{
		Label: "Radar runs",
	})
	debug.Handle("tailsql/", "SQL live debugging", tsql.NewMux())

	debug.HandleFunc("runs", "Recent processing runs", func(w http.ResponseWriter, r *http.Request) {
		runs, err := s.ListRuns(r.Context(), 0)
		if err != nil {
			httputil.WriteJSONError(w, http.StatusInternalServerError, err.Error())
			return
		}
		httputil.WriteJSON(w, http.StatusOK, runs)
	})

	debug.Handle("backup", "Download a backup of the database", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		dir, err := os.MkdirTemp("", "radarchain-backup-")
		if err != nil {
			httputil.WriteJSONError(w, http.StatusInternalServerError, err.Error())
			return
		}
		defer func() {
			if err := os.RemoveAll(dir); err != nil {
				monitoring.Logf("failed to remove backup dir: %v", err)
			}
		}()

		name := fmt.Sprintf("radar-backup-%d.db", s.clock.Now().Unix())
		path := filepath.Join(dir, name)
		if err := s.Backup(r.Context(), path); err != nil {
			httputil.WriteJSONError(w, http.StatusInternalServerError, err.Error())
			return
		}
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%s", name))
		w.Header().Set("Content-Type", "application/vnd.sqlite3")
		http.ServeFile(w, r, path)
	}))
	return nil
}
