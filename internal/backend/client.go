package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"
	"time"

	"github.com/homeserver/chordscan/internal/models"
)

// API paths, relative to the backend base URL
const (
	PathUpload            = "/ocr/api/upload"
	PathProcess           = "/ocr/api/process"
	PathEdit              = "/ocr/api/section/edit"
	PathFinalizeSong      = "/ocr/api/finalize-song"
	PathFinalizeAndUpload = "/ocr/api/finalize-and-upload"
)

const maxResponseSize = 32 * 1024 * 1024

// Error is a failed collaborator call: a transport failure, a non-2xx
// status or a success:false payload.
type Error struct {
	Call    string
	Status  int
	Message string
	Cause   error
}

func (e *Error) Error() string {
	switch {
	case e.Cause != nil:
		return fmt.Sprintf("%s failed: %v", e.Call, e.Cause)
	case e.Status != 0:
		return fmt.Sprintf("%s failed (HTTP %d): %s", e.Call, e.Status, e.Message)
	default:
		return fmt.Sprintf("%s failed: %s", e.Call, e.Message)
	}
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// UploadResponse is returned by the upload endpoint
type UploadResponse struct {
	Success  bool   `json:"success"`
	FileID   string `json:"file_id"`
	Filename string `json:"filename,omitempty"`
	Size     int64  `json:"size,omitempty"`
	Type     string `json:"type,omitempty"`
	Error    string `json:"error,omitempty"`
}

// ProcessRequest asks the backend to OCR an uploaded artifact
type ProcessRequest struct {
	FileID      string `json:"file_id"`
	Language    string `json:"language"`
	SectionName string `json:"section_name"`
	SongKey     string `json:"song_key"`
}

// ProcessResponse is the OCR result envelope
type ProcessResponse struct {
	Success        bool                  `json:"success"`
	FileID         string                `json:"file_id,omitempty"`
	Text           string                `json:"text"`
	StructuredData models.StructuredData `json:"structured_data"`
	Confidence     float64               `json:"confidence"`
	Language       string                `json:"language,omitempty"`
	PageCount      int                   `json:"page_count,omitempty"`
	Error          string                `json:"error,omitempty"`
}

// Result converts the envelope into the section payload.
func (r *ProcessResponse) Result() *models.OCRResult {
	return &models.OCRResult{
		Text:           r.Text,
		Confidence:     r.Confidence,
		Language:       r.Language,
		StructuredData: r.StructuredData,
	}
}

// EditRequest submits hand-edited section text for reparsing
type EditRequest struct {
	Text        string `json:"text"`
	SectionName string `json:"section_name"`
	Key         string `json:"key"`
}

// EditResponse carries the reparsed section
type EditResponse struct {
	Success        bool                  `json:"success"`
	Text           string                `json:"text"`
	StructuredData models.StructuredData `json:"structured_data"`
	Error          string                `json:"error,omitempty"`
}

// FinalizeResponse carries the produced song document
type FinalizeResponse struct {
	Success bool            `json:"success"`
	Song    json.RawMessage `json:"song"`
	Error   string          `json:"error,omitempty"`
}

// StoreResponse is returned when a song is persisted to storage
type StoreResponse struct {
	Success  bool   `json:"success"`
	Message  string `json:"message"`
	Filename string `json:"filename,omitempty"`
	Error    string `json:"error,omitempty"`
}

// Client talks to the OCR backend.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

// New returns a client for the backend at baseURL. token is sent as a
// bearer token when non-empty.
func New(baseURL, token string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		httpClient: &http.Client{
			Timeout: 120 * time.Second,
		},
	}
}

// WithHTTPClient replaces the underlying HTTP client.
func (c *Client) WithHTTPClient(hc *http.Client) *Client {
	c.httpClient = hc
	return c
}

// Upload stores an extracted section image.
func (c *Client) Upload(ctx context.Context, image []byte, filename string) (*UploadResponse, error) {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename=%q`, filename))
	h.Set("Content-Type", "image/png")
	part, err := mw.CreatePart(h)
	if err != nil {
		return nil, fmt.Errorf("failed to create form part: %w", err)
	}
	if _, err := part.Write(image); err != nil {
		return nil, fmt.Errorf("failed to write form part: %w", err)
	}
	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("failed to close multipart body: %w", err)
	}

	req, err := c.newRequest(ctx, PathUpload, &body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	var out UploadResponse
	if err := c.do(req, "upload", &out); err != nil {
		return nil, err
	}
	if out.FileID == "" {
		return nil, &Error{Call: "upload", Message: "response has no file_id"}
	}
	return &out, nil
}

// Process runs OCR on an uploaded artifact.
func (c *Client) Process(ctx context.Context, in ProcessRequest) (*ProcessResponse, error) {
	var out ProcessResponse
	if err := c.postJSON(ctx, PathProcess, "process", in, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Edit reparses hand-edited section text.
func (c *Client) Edit(ctx context.Context, in EditRequest) (*EditResponse, error) {
	var out EditResponse
	if err := c.postJSON(ctx, PathEdit, "edit", in, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// FinalizeSong produces a downloadable song document.
func (c *Client) FinalizeSong(ctx context.Context, in models.SongRequest) (*FinalizeResponse, error) {
	var out FinalizeResponse
	if err := c.postJSON(ctx, PathFinalizeSong, "finalize", in, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// FinalizeAndUpload persists the song document to storage.
func (c *Client) FinalizeAndUpload(ctx context.Context, in models.SongRequest) (*StoreResponse, error) {
	var out StoreResponse
	if err := c.postJSON(ctx, PathFinalizeAndUpload, "finalize and upload", in, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) postJSON(ctx context.Context, path, call string, in, out any) error {
	payload, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("failed to marshal %s request: %w", call, err)
	}
	req, err := c.newRequest(ctx, path, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, call, out)
}

func (c *Client) newRequest(ctx context.Context, path string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	return req, nil
}

func (c *Client) do(req *http.Request, call string, out any) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &Error{Call: call, Cause: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return &Error{Call: call, Status: resp.StatusCode, Cause: err}
	}

	var envelope struct {
		Success bool   `json:"success"`
		Error   string `json:"error"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		msg := strings.TrimSpace(string(body))
		if msg == "" {
			msg = http.StatusText(resp.StatusCode)
		}
		return &Error{Call: call, Status: resp.StatusCode, Message: msg}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 || !envelope.Success {
		msg := envelope.Error
		if msg == "" {
			msg = call + " failed"
		}
		status := resp.StatusCode
		if status >= 200 && status < 300 {
			status = 0
		}
		return &Error{Call: call, Status: status, Message: msg}
	}

	if err := json.Unmarshal(body, out); err != nil {
		slog.Warn("Backend returned malformed payload", "call", call, "err", err)
		return &Error{Call: call, Message: "invalid response: " + err.Error()}
	}
	return nil
}
