package handlers

import (
	"bytes"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/runnerr0/histlens/internal/analysis"
	"github.com/runnerr0/histlens/internal/export"
	"github.com/runnerr0/histlens/internal/httpserver/deps"
	"github.com/runnerr0/histlens/internal/logger"
)

// Export serves a bundle's records as a CSV or JSON attachment, selected by
// the type and format query parameters.
func Export(d deps.Deps) http.HandlerFunc {
	param := func(r *http.Request) string { return chi.URLParam(r, "file_id") }
	return withBundle(d, param, func(w http.ResponseWriter, r *http.Request, b *analysis.Bundle) {
		q := r.URL.Query()
		kind, err := export.ParseKind(q.Get("type"))
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		format, err := export.ParseFormat(q.Get("format"))
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		if export.Count(b, kind) == 0 {
			writeError(w, http.StatusNotFound, fmt.Sprintf("No %s data available for export", kind))
			return
		}

		var buf bytes.Buffer
		if err := export.Write(&buf, b, kind, format); err != nil {
			d.Logger.Error("export failed", logger.String("file_id", b.ID), logger.Error(err))
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}

		w.Header().Set("Content-Type", format.ContentType())
		w.Header().Set("Content-Disposition",
			fmt.Sprintf("attachment; filename=%s", export.FileName(kind, format, b.ID)))
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(buf.Bytes())
	})
}
