// Package drive is a thin client for the Google Drive v3 files API: just
// enough to list a media folder, probe file metadata, and open (optionally
// ranged) content streams for the proxy.
package drive

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"

	"github.com/tidwall/gjson"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

const (
	// ReadonlyScope is the only Drive access the gateway ever needs.
	ReadonlyScope = "https://www.googleapis.com/auth/drive.readonly"

	defaultBaseURL = "https://www.googleapis.com/drive/v3"
)

// ErrNotFound reports a file the remote store doesn't have (or the service
// account can't see, which Drive reports the same way).
var ErrNotFound = errors.New("drive: file not found")

// Client talks to the Drive API with service-account credentials.
type Client struct {
	httpClient *http.Client
	baseURL    string
}

// NewClient builds a client using Application Default Credentials.
func NewClient(ctx context.Context) (*Client, error) {
	ts, err := google.DefaultTokenSource(ctx, ReadonlyScope)
	if err != nil {
		return nil, fmt.Errorf("drive: credentials: %w", err)
	}
	return &Client{
		httpClient: oauth2.NewClient(ctx, ts),
		baseURL:    defaultBaseURL,
	}, nil
}

// NewClientWithHTTP builds a client against an arbitrary endpoint with a
// pre-authorized http.Client. Used by tests to point at a fake Drive.
func NewClientWithHTTP(httpClient *http.Client, baseURL string) *Client {
	return &Client{httpClient: httpClient, baseURL: baseURL}
}

// FileMeta is the subset of Drive file metadata the gateway cares about.
type FileMeta struct {
	ID           string
	Name         string
	MimeType     string
	Size         int64 // -1 when Drive doesn't report one
	MD5          string
	ModifiedTime string
}

// Metadata probes a file without touching its content. Always called once
// before streaming.
func (c *Client) Metadata(ctx context.Context, fileID string) (FileMeta, error) {
	u := fmt.Sprintf("%s/files/%s?fields=%s&supportsAllDrives=true",
		c.baseURL,
		url.PathEscape(fileID),
		url.QueryEscape("id,name,mimeType,size,md5Checksum,modifiedTime"),
	)

	body, err := c.getJSON(ctx, u)
	if err != nil {
		return FileMeta{}, err
	}

	meta := FileMeta{
		ID:           gjson.GetBytes(body, "id").String(),
		Name:         gjson.GetBytes(body, "name").String(),
		MimeType:     gjson.GetBytes(body, "mimeType").String(),
		MD5:          gjson.GetBytes(body, "md5Checksum").String(),
		ModifiedTime: gjson.GetBytes(body, "modifiedTime").String(),
		Size:         -1,
	}
	if meta.MimeType == "" {
		meta.MimeType = "application/octet-stream"
	}

	// Drive serializes size as a string; absent for native Docs formats.
	if size := gjson.GetBytes(body, "size"); size.Exists() {
		if n, err := strconv.ParseInt(size.String(), 10, 64); err == nil {
			meta.Size = n
		}
	}

	return meta, nil
}

// Open starts a content download, forwarding rangeHeader verbatim when
// given so Drive serves the partial content itself. The caller owns the
// returned response body; cancelling ctx aborts the transfer.
func (c *Client) Open(ctx context.Context, fileID, rangeHeader string) (*http.Response, error) {
	u := fmt.Sprintf("%s/files/%s?alt=media&supportsAllDrives=true", c.baseURL, url.PathEscape(fileID))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	if rangeHeader != "" {
		req.Header.Set("Range", rangeHeader)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("drive: content fetch: %w", err)
	}

	switch resp.StatusCode {
	case http.StatusOK, http.StatusPartialContent:
		return resp, nil
	case http.StatusNotFound:
		resp.Body.Close()
		return nil, ErrNotFound
	default:
		resp.Body.Close()
		return nil, fmt.Errorf("drive: content fetch: unexpected status %d", resp.StatusCode)
	}
}

// MediaFile is one entry of a folder listing.
type MediaFile struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	MimeType     string `json:"mimeType"`
	Size         int64  `json:"size,omitempty"`
	MD5          string `json:"md5,omitempty"`
	ModifiedTime string `json:"modifiedTime,omitempty"`
	CreatedTime  string `json:"createdTime,omitempty"`
}

// ListResult is one page of a folder listing.
type ListResult struct {
	Files         []MediaFile
	NextPageToken string
}

// List returns the audio files under folderID, newest first.
func (c *Client) List(ctx context.Context, folderID, pageToken string, pageSize int) (ListResult, error) {
	query := fmt.Sprintf("'%s' in parents and trashed = false and mimeType contains 'audio/'", folderID)

	params := url.Values{}
	params.Set("q", query)
	params.Set("fields", "nextPageToken, files(id,name,mimeType,size,md5Checksum,modifiedTime,createdTime)")
	params.Set("orderBy", "modifiedTime desc")
	params.Set("pageSize", strconv.Itoa(pageSize))
	params.Set("supportsAllDrives", "true")
	params.Set("includeItemsFromAllDrives", "true")
	params.Set("corpora", "allDrives")
	if pageToken != "" {
		params.Set("pageToken", pageToken)
	}

	body, err := c.getJSON(ctx, c.baseURL+"/files?"+params.Encode())
	if err != nil {
		return ListResult{}, err
	}

	result := ListResult{
		NextPageToken: gjson.GetBytes(body, "nextPageToken").String(),
	}
	for _, f := range gjson.GetBytes(body, "files").Array() {
		file := MediaFile{
			ID:           f.Get("id").String(),
			Name:         f.Get("name").String(),
			MimeType:     f.Get("mimeType").String(),
			MD5:          f.Get("md5Checksum").String(),
			ModifiedTime: f.Get("modifiedTime").String(),
			CreatedTime:  f.Get("createdTime").String(),
		}
		if size := f.Get("size"); size.Exists() {
			file.Size, _ = strconv.ParseInt(size.String(), 10, 64)
		}
		result.Files = append(result.Files, file)
	}

	return result, nil
}

func (c *Client) getJSON(ctx context.Context, u string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("drive: request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, ErrNotFound
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("drive: unexpected status %d", resp.StatusCode)
	}

	return io.ReadAll(io.LimitReader(resp.Body, 4<<20))
}
