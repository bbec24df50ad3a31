package catalog

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/time/rate"

	"lectern/internal/httputil"
	"lectern/internal/models"
)

// ProgressFunc receives transfer byte counters while an upload runs.
type ProgressFunc func(sent, total int64)

type UploadRequest struct {
	FileName    string
	ContentType string
	Size        int64
	Body        io.Reader
	Metadata    models.UploadMetadata
}

// Blob is an item's byte stream. The caller must close Body.
type Blob struct {
	Body          io.ReadCloser
	ContentType   string
	ContentLength int64
	ContentRange  string
	StatusCode    int
}

// Client talks to the course REST backend.
type Client struct {
	baseURL string
	http    *http.Client
	limiter *rate.Limiter
	timeout time.Duration
}

type ClientOption func(*Client)

// WithToken authenticates every request with a bearer token.
func WithToken(token string) ClientOption {
	return func(c *Client) {
		if token == "" {
			return
		}
		ctx := context.WithValue(context.Background(), oauth2.HTTPClient, c.http)
		c.http = oauth2.NewClient(ctx, oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token}))
	}
}

func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) { c.http = hc }
}

// WithRateLimit caps backend requests per second. rate.Inf disables it.
func WithRateLimit(limit rate.Limit, burst int) ClientOption {
	return func(c *Client) { c.limiter = rate.NewLimiter(limit, burst) }
}

func WithTimeout(d time.Duration) ClientOption {
	return func(c *Client) { c.timeout = d }
}

func NewClient(baseURL string, opts ...ClientOption) (*Client, error) {
	baseURL = strings.TrimRight(baseURL, "/")
	if err := httputil.ValidateBaseURL(baseURL); err != nil {
		return nil, err
	}
	// No client-wide timeout: uploads and streams run as long as their
	// context allows. Short calls get c.timeout instead.
	c := &Client{
		baseURL: baseURL,
		http:    &http.Client{},
		limiter: rate.NewLimiter(20, 10),
		timeout: httputil.BackendTimeout,
	}
	for _, o := range opts {
		o(c)
	}
	return c, nil
}

type itemID string

// UnmarshalJSON accepts both numeric and string ids.
func (id *itemID) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		*id = itemID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("item id must be a string or number: %s", b)
	}
	*id = itemID(n.String())
	return nil
}

type backendItem struct {
	ID          itemID `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description"`
	ContentType string `json:"content_type"`
	UploadDate  string `json:"upload_date"`
	SizeBytes   int64  `json:"size_bytes"`
}

func (b backendItem) toModel(subjectID string) models.MediaItem {
	item := models.MediaItem{
		ID:          models.ItemID(b.ID),
		SubjectID:   subjectID,
		Title:       b.Title,
		Description: b.Description,
		ContentType: b.ContentType,
		FileType:    models.FileTypeFromMIME(b.ContentType),
		SizeBytes:   b.SizeBytes,
	}
	if t, err := time.Parse(time.RFC3339, b.UploadDate); err == nil {
		item.UploadDate = t.UTC()
	}
	return item
}

// ListItems returns the subject's items in backend order.
func (c *Client) ListItems(ctx context.Context, subjectID string) ([]models.MediaItem, error) {
	const op = "listing items"
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	resp, err := c.do(ctx, op, http.MethodGet, "/api/subjects/"+url.PathEscape(subjectID)+"/items", nil, "")
	if err != nil {
		return nil, err
	}
	defer httputil.DrainBody(resp)

	var raw []backendItem
	if err := json.NewDecoder(io.LimitReader(resp.Body, httputil.MaxResponseBody)).Decode(&raw); err != nil {
		return nil, &models.NetworkError{Op: op, Err: fmt.Errorf("decoding response: %w", err)}
	}
	items := make([]models.MediaItem, 0, len(raw))
	for _, r := range raw {
		items = append(items, r.toModel(subjectID))
	}
	return items, nil
}

// Upload streams req to the backend as multipart form data and returns the
// created item's id. progress is called as file bytes leave the client.
func (c *Client) Upload(ctx context.Context, req UploadRequest, progress ProgressFunc) (models.ItemID, error) {
	const op = "uploading"
	pr, pw := io.Pipe()
	mw := multipart.NewWriter(pw)

	go func() {
		pw.CloseWithError(writeUploadForm(mw, req, progress))
	}()

	path := "/api/subjects/" + url.PathEscape(req.Metadata.SubjectID) + "/items"
	resp, err := c.do(ctx, op, http.MethodPost, path, pr, mw.FormDataContentType())
	if err != nil {
		pr.CloseWithError(err)
		return "", err
	}
	defer httputil.DrainBody(resp)

	var created struct {
		ID itemID `json:"id"`
	}
	if err := json.NewDecoder(io.LimitReader(resp.Body, httputil.MaxResponseBody)).Decode(&created); err != nil {
		return "", &models.NetworkError{Op: op, Err: fmt.Errorf("decoding response: %w", err)}
	}
	if created.ID == "" {
		return "", &models.NetworkError{Op: op, Err: errors.New("response has no item id")}
	}
	return models.ItemID(created.ID), nil
}

func writeUploadForm(mw *multipart.Writer, req UploadRequest, progress ProgressFunc) error {
	fields := []struct{ name, value string }{
		{"title", req.Metadata.Title},
		{"description", req.Metadata.Description},
		{"subject_id", req.Metadata.SubjectID},
	}
	for _, f := range fields {
		if err := mw.WriteField(f.name, f.value); err != nil {
			return err
		}
	}

	contentType := req.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename=%q`, req.FileName))
	h.Set("Content-Type", contentType)
	part, err := mw.CreatePart(h)
	if err != nil {
		return err
	}

	body := req.Body
	if progress != nil {
		progress(0, req.Size)
		body = &countingReader{r: req.Body, total: req.Size, progress: progress}
	}
	if _, err := io.Copy(part, body); err != nil {
		return fmt.Errorf("reading upload: %w", err)
	}
	return mw.Close()
}

type countingReader struct {
	r        io.Reader
	sent     int64
	total    int64
	progress ProgressFunc
}

func (cr *countingReader) Read(p []byte) (int, error) {
	n, err := cr.r.Read(p)
	if n > 0 {
		cr.sent += int64(n)
		cr.progress(cr.sent, cr.total)
	}
	return n, err
}

func (c *Client) DeleteItem(ctx context.Context, id models.ItemID) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	resp, err := c.do(ctx, "deleting item", http.MethodDelete, "/api/items/"+url.PathEscape(string(id)), nil, "")
	if err != nil {
		return err
	}
	httputil.DrainBody(resp)
	return nil
}

// Download opens the item's byte stream. rangeHeader, when set, is
// forwarded so media elements can seek.
func (c *Client) Download(ctx context.Context, id models.ItemID, rangeHeader string) (*Blob, error) {
	const op = "reading item"
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, &models.NetworkError{Op: op, Err: fmt.Errorf("rate limit: %w", err)}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/items/"+url.PathEscape(string(id))+"/stream", nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	if rangeHeader != "" {
		req.Header.Set("Range", rangeHeader)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &models.NetworkError{Op: op, Err: fmt.Errorf("connection failed: %w", err)}
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		defer httputil.DrainBody(resp)
		return nil, statusError(op, resp)
	}
	size, _ := strconv.ParseInt(resp.Header.Get("Content-Length"), 10, 64)
	return &Blob{
		Body:          resp.Body,
		ContentType:   resp.Header.Get("Content-Type"),
		ContentLength: size,
		ContentRange:  resp.Header.Get("Content-Range"),
		StatusCode:    resp.StatusCode,
	}, nil
}

// do sends one request and returns the response when its status is 2xx.
// The caller must drain the returned body.
func (c *Client) do(ctx context.Context, op, method, path string, body io.Reader, contentType string) (*http.Response, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, &models.NetworkError{Op: op, Err: fmt.Errorf("rate limit: %w", err)}
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &models.NetworkError{Op: op, Err: fmt.Errorf("connection failed: %w", err)}
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		defer httputil.DrainBody(resp)
		return nil, statusError(op, resp)
	}
	return resp, nil
}

// statusError builds a NetworkError from a non-2xx response, keeping the
// backend's own message when the body carries one.
func statusError(op string, resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	ne := &models.NetworkError{Op: op, Status: resp.StatusCode}
	if resp.StatusCode == http.StatusNotFound {
		ne.Err = models.ErrNotFound
	}

	var msg struct {
		Message string `json:"message"`
		Error   string `json:"error"`
		Detail  string `json:"detail"`
	}
	if json.Unmarshal(bytes.TrimSpace(body), &msg) == nil {
		switch {
		case msg.Message != "":
			ne.Message = msg.Message
		case msg.Error != "":
			ne.Message = msg.Error
		case msg.Detail != "":
			ne.Message = msg.Detail
		}
	}
	if ne.Err == nil && ne.Message == "" && len(body) > 0 {
		ne.Err = errors.New(httputil.Truncate(body, 200))
	}
	return ne
}
