package http_test

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	gatewayhttp "github.com/innerpeace-app/gateway/internal/gateway/http"
	"github.com/innerpeace-app/gateway/internal/gateway/drive"
)

const mediaFileID = "file-abc"

// fakeDrive serves a single known file: metadata on GET /files/{id}, ranged
// content on GET /files/{id}?alt=media, and a folder listing on GET /files.
func fakeDrive(t *testing.T, content []byte, mime string) *httptest.Server {
	t.Helper()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/files" {
			fmt.Fprintf(w, `{"files":[{"id":%q,"name":"track.mp3","mimeType":%q,"size":"%d","md5Checksum":"d41d8cd98f"}]}`,
				mediaFileID, mime, len(content))
			return
		}

		if r.URL.Path != "/files/"+mediaFileID {
			w.WriteHeader(http.StatusNotFound)
			return
		}

		if r.URL.Query().Get("alt") != "media" {
			fmt.Fprintf(w, `{"id":%q,"name":"track.mp3","mimeType":%q,"size":"%d","md5Checksum":"d41d8cd98f","modifiedTime":"2026-08-01T00:00:00Z"}`,
				mediaFileID, mime, len(content))
			return
		}

		// Content download: honor a single bounded range like Drive does.
		if rng := r.Header.Get("Range"); rng != "" {
			var start, end int64
			_, err := fmt.Sscanf(rng, "bytes=%d-%d", &start, &end)
			require.NoError(t, err, "fake drive got range %q", rng)

			w.Header().Set("Content-Range", fmt.Sprintf("bytes %d-%d/%d", start, end, len(content)))
			w.Header().Set("Content-Length", strconv.FormatInt(end-start+1, 10))
			w.WriteHeader(http.StatusPartialContent)
			_, _ = w.Write(content[start : end+1])
			return
		}

		w.Header().Set("Content-Length", strconv.Itoa(len(content)))
		_, _ = w.Write(content)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func mediaContent(n int) []byte {
	content := make([]byte, n)
	for i := range content {
		content[i] = byte(i % 251)
	}
	return content
}

func newMediaHandler(t *testing.T, content []byte) http.Handler {
	t.Helper()

	srv := fakeDrive(t, content, "audio/mpeg")
	h := &gatewayhttp.MediaHandler{
		Drive:    drive.NewClientWithHTTP(srv.Client(), srv.URL),
		FolderID: "folder-1",
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/v1/media/stream/{fileID}", h.HandleStream)
	mux.HandleFunc("GET /v1/media/list", h.HandleList)
	return mux
}

func TestStreamFullObject(t *testing.T) {
	content := mediaContent(1000)
	handler := newMediaHandler(t, content)

	req := httptest.NewRequest(http.MethodGet, "/v1/media/stream/"+mediaFileID, nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "audio/mpeg", rec.Header().Get("Content-Type"))
	require.Equal(t, "bytes", rec.Header().Get("Accept-Ranges"))
	require.Equal(t, "1000", rec.Header().Get("Content-Length"))
	require.Equal(t, content, rec.Body.Bytes())
}

func TestStreamBoundedRange(t *testing.T) {
	content := mediaContent(1000)
	handler := newMediaHandler(t, content)

	req := httptest.NewRequest(http.MethodGet, "/v1/media/stream/"+mediaFileID, nil)
	req.Header.Set("Range", "bytes=100-199")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusPartialContent, rec.Code)
	require.Equal(t, "bytes 100-199/1000", rec.Header().Get("Content-Range"))
	require.Equal(t, "100", rec.Header().Get("Content-Length"))
	require.Equal(t, content[100:200], rec.Body.Bytes())
}

func TestStreamOpenEndedRange(t *testing.T) {
	content := mediaContent(1000)
	handler := newMediaHandler(t, content)

	req := httptest.NewRequest(http.MethodGet, "/v1/media/stream/"+mediaFileID, nil)
	req.Header.Set("Range", "bytes=900-")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusPartialContent, rec.Code)
	require.Equal(t, "bytes 900-999/1000", rec.Header().Get("Content-Range"))
	require.Equal(t, content[900:], rec.Body.Bytes())
}

func TestStreamUnsatisfiableRange(t *testing.T) {
	handler := newMediaHandler(t, mediaContent(1000))

	req := httptest.NewRequest(http.MethodGet, "/v1/media/stream/"+mediaFileID, nil)
	req.Header.Set("Range", "bytes=2000-2100")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusRequestedRangeNotSatisfiable, rec.Code)
	require.Equal(t, "bytes */1000", rec.Header().Get("Content-Range"))
	require.Empty(t, rec.Body.Bytes())
}

func TestStreamMalformedRangeFallsBackToFull(t *testing.T) {
	content := mediaContent(100)
	handler := newMediaHandler(t, content)

	req := httptest.NewRequest(http.MethodGet, "/v1/media/stream/"+mediaFileID, nil)
	req.Header.Set("Range", "bytes=banana")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, content, rec.Body.Bytes())
}

func TestStreamHeadHasNoBody(t *testing.T) {
	handler := newMediaHandler(t, mediaContent(1000))

	req := httptest.NewRequest(http.MethodHead, "/v1/media/stream/"+mediaFileID, nil)
	req.Header.Set("Range", "bytes=0-99")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusPartialContent, rec.Code)
	require.Equal(t, "bytes 0-99/1000", rec.Header().Get("Content-Range"))
	require.Empty(t, rec.Body.Bytes())
}

func TestStreamUnknownFile(t *testing.T) {
	handler := newMediaHandler(t, mediaContent(10))

	req := httptest.NewRequest(http.MethodGet, "/v1/media/stream/no-such-file", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestListMediaFolder(t *testing.T) {
	handler := newMediaHandler(t, mediaContent(1000))

	req := httptest.NewRequest(http.MethodGet, "/v1/media/list", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.NotEmpty(t, rec.Header().Get("ETag"))
	require.Contains(t, rec.Header().Get("Cache-Control"), "max-age=60")

	body := rec.Body.String()
	require.Contains(t, body, `"streamUrl":"/v1/media/stream/`+mediaFileID+`"`)
	require.Contains(t, body, `"name":"track.mp3"`)
	require.True(t, strings.Contains(body, `"items":[`))
}
