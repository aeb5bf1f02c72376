package handlers

import (
	"errors"
	"net/http"

	"github.com/runnerr0/histlens/internal/analysis"
	"github.com/runnerr0/histlens/internal/artifact"
	"github.com/runnerr0/histlens/internal/correlate"
	"github.com/runnerr0/histlens/internal/httpserver/deps"
	"github.com/runnerr0/histlens/internal/logger"
	"github.com/runnerr0/histlens/internal/syncinfo"
)

type downloadsResponse struct {
	FileID          string                          `json:"file_id"`
	BrowserType     artifact.Family                 `json:"browser_type"`
	Downloads       []artifact.DownloadRecord       `json:"downloads"`
	DownloadSources []correlate.DownloadSourceGroup `json:"download_sources"`
}

type syncInfoResponse struct {
	FileID      string          `json:"file_id"`
	BrowserType artifact.Family `json:"browser_type"`
	SyncInfo    syncinfo.Info   `json:"sync_info"`
}

// withBundle resolves the id in param and hands the bundle to fn. Unknown
// ids get 400 {"error":"Invalid file ID"}.
func withBundle(d deps.Deps, param func(*http.Request) string, fn func(http.ResponseWriter, *http.Request, *analysis.Bundle)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := param(r)
		b, err := lookup(r.Context(), d, id)
		if err != nil {
			if errors.Is(err, errUnknownID) {
				writeError(w, http.StatusBadRequest, "Invalid file ID")
				return
			}
			d.Logger.Error("bundle lookup failed", logger.String("file_id", id), logger.Error(err))
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		fn(w, r, b)
	}
}

func queryID(r *http.Request) string { return r.URL.Query().Get("file_id") }

// GetPage returns one page of visits with the downloads and sync data.
func GetPage(d deps.Deps) http.HandlerFunc {
	return withBundle(d, queryID, func(w http.ResponseWriter, r *http.Request, b *analysis.Bundle) {
		q := r.URL.Query()
		page := intParam(q.Get("page"), 1)
		size := intParam(q.Get("page_size"), d.DefaultPageSize)
		writeJSON(w, http.StatusOK, b.Page(page, size))
	})
}

// GetDownloads returns all downloads and their correlated sources.
func GetDownloads(d deps.Deps) http.HandlerFunc {
	return withBundle(d, queryID, func(w http.ResponseWriter, r *http.Request, b *analysis.Bundle) {
		page := b.Page(1, 1)
		writeJSON(w, http.StatusOK, downloadsResponse{
			FileID:          b.ID,
			BrowserType:     b.Family,
			Downloads:       page.Downloads,
			DownloadSources: page.DownloadSources,
		})
	})
}

// GetSyncInfo returns the account and sync details.
func GetSyncInfo(d deps.Deps) http.HandlerFunc {
	return withBundle(d, queryID, func(w http.ResponseWriter, r *http.Request, b *analysis.Bundle) {
		writeJSON(w, http.StatusOK, syncInfoResponse{
			FileID:      b.ID,
			BrowserType: b.Family,
			SyncInfo:    b.SyncInfo,
		})
	})
}

// Artifacts lists archived artifacts.
func Artifacts(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if d.Archive == nil {
			writeError(w, http.StatusNotFound, "archive disabled")
			return
		}
		list, err := d.Archive.ListArtifacts(r.Context())
		if err != nil {
			d.Logger.Error("list artifacts", logger.Error(err))
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		writeJSON(w, http.StatusOK, list)
	}
}
