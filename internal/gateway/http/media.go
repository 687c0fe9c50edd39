package http

import (
	"crypto/sha1"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/innerpeace-app/gateway/internal/gateway/drive"
	"github.com/innerpeace-app/gateway/pkg/httpx"
	"github.com/innerpeace-app/gateway/pkg/slogx"
)

// MediaHandler lists and streams licensed audio out of the Drive media
// folder. Streaming maps inbound HTTP Range semantics onto Drive's own
// partial-content protocol and never buffers an object.
type MediaHandler struct {
	Drive    *drive.Client
	FolderID string
}

type mediaItem struct {
	drive.MediaFile

	StreamURL string `json:"streamUrl"`
}

type mediaListResponse struct {
	Items         []mediaItem `json:"items"`
	NextPageToken string      `json:"nextPageToken,omitempty"`
}

// HandleList returns one page of the media folder listing.
func (h *MediaHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	log := slogx.FromContext(r.Context())

	if h.Drive == nil {
		httpx.WriteError(w, http.StatusServiceUnavailable, "Media not configured")
		return
	}

	folderID := r.URL.Query().Get("folderId")
	if folderID == "" {
		folderID = h.FolderID
	}
	if folderID == "" {
		httpx.WriteError(w, http.StatusBadRequest, "folderId required")
		return
	}

	pageSize := 50
	if raw := r.URL.Query().Get("pageSize"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil {
			pageSize = min(max(n, 1), 200)
		}
	}

	result, err := h.Drive.List(r.Context(), folderID, r.URL.Query().Get("pageToken"), pageSize)
	if err != nil {
		log.Error("media list failed", "folder_id", folderID, "err", err)
		httpx.WriteError(w, http.StatusInternalServerError, "Drive list failed")
		return
	}

	items := make([]mediaItem, 0, len(result.Files))
	for _, f := range result.Files {
		items = append(items, mediaItem{
			MediaFile: f,
			StreamURL: "/v1/media/stream/" + f.ID,
		})
	}

	w.Header().Set("Cache-Control", "public, max-age=60")
	w.Header().Set("ETag", listETag(result.Files))
	httpx.WriteJSON(w, http.StatusOK, mediaListResponse{
		Items:         items,
		NextPageToken: result.NextPageToken,
	})
}

// listETag derives a weak content fingerprint from the listing so clients
// can revalidate cheaply.
func listETag(files []drive.MediaFile) string {
	hash := sha1.New()
	for _, f := range files {
		fmt.Fprintf(hash, "%s:%s:%s|", f.ID, f.MD5, f.ModifiedTime)
	}
	return `"media-list-` + hex.EncodeToString(hash.Sum(nil)) + `"`
}

// HandleStream relays object bytes from Drive, honoring a single inbound
// byte range. The flow is: metadata probe first, then exactly one content
// fetch scoped to what the client asked for.
func (h *MediaHandler) HandleStream(w http.ResponseWriter, r *http.Request) {
	log := slogx.FromContext(r.Context())

	if h.Drive == nil {
		httpx.WriteError(w, http.StatusServiceUnavailable, "Media not configured")
		return
	}

	fileID := r.PathValue("fileID")
	if fileID == "" {
		httpx.WriteError(w, http.StatusBadRequest, "fileID required")
		return
	}

	meta, err := h.Drive.Metadata(r.Context(), fileID)
	if err != nil {
		if errors.Is(err, drive.ErrNotFound) {
			httpx.WriteError(w, http.StatusNotFound, "Not found")
			return
		}
		log.Error("media metadata probe failed", "file_id", fileID, "err", err)
		httpx.WriteError(w, http.StatusInternalServerError, "Stream failed")
		return
	}

	w.Header().Set("Content-Type", meta.MimeType)
	w.Header().Set("Accept-Ranges", "bytes")
	w.Header().Set("Cache-Control", "public, max-age=3600")
	if etag := streamETag(meta); etag != "" {
		w.Header().Set("ETag", etag)
	}

	rangeHeader := r.Header.Get("Range")

	// Resolve the inbound range when we know the object size. A malformed
	// header degrades to a full-object response per RFC 9110; a
	// well-formed but unsatisfiable one is a hard 416.
	var br httpx.ByteRange
	ranged := false
	if rangeHeader != "" && meta.Size >= 0 {
		br, err = httpx.ParseRange(rangeHeader, meta.Size)
		switch {
		case errors.Is(err, httpx.ErrRangeUnsatisfiable):
			w.Header().Set("Content-Range", httpx.ContentRangeUnsatisfied(meta.Size))
			w.WriteHeader(http.StatusRequestedRangeNotSatisfiable)
			return
		case err == nil:
			ranged = true
		}
	}

	status := http.StatusOK
	upstreamRange := ""
	if ranged {
		status = http.StatusPartialContent
		upstreamRange = br.RangeHeader()
		w.Header().Set("Content-Range", br.ContentRange())
		w.Header().Set("Content-Length", strconv.FormatInt(br.Length(), 10))
	} else if meta.Size >= 0 {
		w.Header().Set("Content-Length", strconv.FormatInt(meta.Size, 10))
	}

	if r.Method == http.MethodHead {
		w.WriteHeader(status)
		return
	}

	// The upstream fetch rides on the request context, so a client
	// disconnect mid-stream tears down the Drive connection too.
	upstream, err := h.Drive.Open(r.Context(), fileID, upstreamRange)
	if err != nil {
		if errors.Is(err, drive.ErrNotFound) {
			httpx.WriteError(w, http.StatusNotFound, "Not found")
			return
		}
		log.Error("media stream open failed", "file_id", fileID, "err", err)
		httpx.WriteError(w, http.StatusInternalServerError, "Stream failed")
		return
	}
	defer upstream.Body.Close()

	w.WriteHeader(status)

	if _, err := io.Copy(w, upstream.Body); err != nil {
		// Headers are gone; a JSON error mid-body would corrupt the
		// stream. Tear the connection down instead.
		if r.Context().Err() == nil {
			log.Warn("media stream aborted", "file_id", fileID, "err", err)
			panic(http.ErrAbortHandler)
		}
	}
}

func streamETag(meta drive.FileMeta) string {
	switch {
	case meta.MD5 != "":
		return `"` + meta.MD5 + `"`
	case meta.ModifiedTime != "":
		return `"` + strings.ReplaceAll(meta.ModifiedTime, `"`, "") + `"`
	default:
		return ""
	}
}
