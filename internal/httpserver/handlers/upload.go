package handlers

import (
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"

	"github.com/runnerr0/histlens/internal/analysis"
	"github.com/runnerr0/histlens/internal/artifact"
	"github.com/runnerr0/histlens/internal/httpserver/deps"
	"github.com/runnerr0/histlens/internal/logger"
)

const (
	lastFileCookie = "last_file_id"
	multipartMem   = 32 << 20
)

// Upload stages a history database (and optional preferences sidecar),
// processes it, caches and archives the result, and answers with the first
// requested page.
func Upload(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		if err := r.ParseMultipartForm(multipartMem); err != nil {
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) {
				writeError(w, http.StatusRequestEntityTooLarge, fmt.Sprintf("upload exceeds %d bytes", tooLarge.Limit))
				return
			}
			if !errors.Is(err, http.ErrNotMultipart) {
				writeError(w, http.StatusBadRequest, err.Error())
				return
			}
		}

		file, header, err := r.FormFile("file")
		if err != nil {
			writeError(w, http.StatusBadRequest, "No file part")
			return
		}
		defer file.Close()
		if header.Filename == "" {
			writeError(w, http.StatusBadRequest, "No selected file")
			return
		}

		family := artifact.DetectFamily(header.Filename)
		if browser := r.FormValue("browser"); browser != "" {
			if family, err = artifact.ParseFamily(browser); err != nil {
				writeError(w, http.StatusBadRequest, err.Error())
				return
			}
		}

		page := intParam(r.FormValue("page"), 1)
		pageSize := intParam(r.FormValue("page_size"), d.DefaultPageSize)

		id := analysis.NewID()
		log := d.Logger.With(logger.String("file_id", id))
		dbPath, prefsPath := stagedPaths(d.UploadDir, id)

		if err := os.MkdirAll(d.UploadDir, 0o755); err != nil {
			log.Error("create upload dir", logger.Error(err))
			writeError(w, http.StatusInternalServerError, "cannot stage upload")
			return
		}
		if err := saveTo(dbPath, file); err != nil {
			log.Error("stage upload", logger.Error(err))
			writeError(w, http.StatusInternalServerError, "cannot stage upload")
			return
		}
		if sidecar, _, err := r.FormFile("sidecar"); err == nil {
			err = saveTo(prefsPath, sidecar)
			sidecar.Close()
			if err != nil {
				log.Warn("stage sidecar", logger.Error(err))
			}
		}

		b, err := d.Processor.Process(ctx, analysis.Request{
			ID:          id,
			Path:        dbPath,
			SourceName:  header.Filename,
			Family:      family,
			SidecarPath: prefsPath,
		})
		if err != nil {
			log.Warn("processing failed", logger.String("filename", header.Filename), logger.Error(err))
			os.Remove(dbPath)
			os.Remove(prefsPath)
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}

		remember(ctx, d, b)
		if d.Archive != nil {
			if _, err := d.Archive.SaveBundle(ctx, b); err != nil {
				log.Warn("archive failed", logger.Error(err))
			}
		}

		http.SetCookie(w, &http.Cookie{
			Name:     lastFileCookie,
			Value:    id,
			MaxAge:   3600,
			Path:     "/",
			HttpOnly: true,
			SameSite: http.SameSiteLaxMode,
		})
		writeJSON(w, http.StatusOK, b.Page(page, pageSize))
	}
}

func saveTo(path string, src multipart.File) error {
	dst, err := os.Create(path)
	if err != nil {
		return err
	}
	if _, err := io.Copy(dst, src); err != nil {
		dst.Close()
		return err
	}
	return dst.Close()
}
