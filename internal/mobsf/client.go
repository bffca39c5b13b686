package mobsf

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"strings"
	"time"
)

const apkContentType = "application/vnd.android.package-archive"

// LogCallback is an optional function for forwarding log messages (e.g. to WebSocket).
type LogCallback func(message, level string)

// Client talks to a MobSF-compatible static-analysis REST API
type Client struct {
	BaseURL    string
	APIKey     string
	HTTPClient *http.Client

	// Report polling: the service answers with an error payload while the
	// scan is still running
	MaxRetries int
	RetryDelay time.Duration

	logCb LogCallback
}

// NewClient creates a new static-analysis service client
func NewClient(baseURL, apiKey string) *Client {
	return &Client{
		BaseURL: strings.TrimSuffix(baseURL, "/"),
		APIKey:  apiKey,
		HTTPClient: &http.Client{
			Timeout: 300 * time.Second,
		},
		MaxRetries: 10,
		RetryDelay: 20 * time.Second,
	}
}

// SetLogCallback sets an optional callback for forwarding log messages.
func (c *Client) SetLogCallback(cb LogCallback) {
	c.logCb = cb
}

// logMsg prints to console and optionally forwards via the log callback.
func (c *Client) logMsg(message, level string) {
	log.Printf("%s", message)
	if c.logCb != nil {
		c.logCb(message, level)
	}
}

// UploadResponse identifies an uploaded file in the analysis service
type UploadResponse struct {
	Hash     string `json:"hash"`
	ScanType string `json:"scan_type"`
	FileName string `json:"file_name"`
}

// Upload sends an APK to the service via multipart upload
func (c *Client) Upload(ctx context.Context, fileName string, reader io.Reader) (*UploadResponse, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename="%s"`, fileName))
	header.Set("Content-Type", apkContentType)

	part, err := mw.CreatePart(header)
	if err != nil {
		return nil, fmt.Errorf("failed to create multipart field: %w", err)
	}
	if _, err := io.Copy(part, reader); err != nil {
		return nil, fmt.Errorf("failed to write file data: %w", err)
	}
	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("failed to finalize multipart body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/api/v1/upload", &buf)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", c.APIKey)
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("upload request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("upload failed: status %d, body: %s", resp.StatusCode, string(body))
	}

	var upload UploadResponse
	if err := json.NewDecoder(resp.Body).Decode(&upload); err != nil {
		return nil, fmt.Errorf("failed to decode upload response: %w", err)
	}
	if upload.Hash == "" {
		return nil, fmt.Errorf("upload response missing hash")
	}

	return &upload, nil
}

// StartScan triggers static analysis of a previously uploaded file
func (c *Client) StartScan(ctx context.Context, upload *UploadResponse) error {
	form := url.Values{
		"hash":      {upload.Hash},
		"scan_type": {upload.ScanType},
		"file_name": {upload.FileName},
		"re_scan":   {"0"},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/api/v1/scan",
		strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", c.APIKey)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("scan request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("scan failed: status %d, body: %s", resp.StatusCode, string(body))
	}

	return nil
}

// ReportJSON requests the JSON report once. Some service versions expect a
// JSON body, others form encoding, so the form request is the fallback.
func (c *Client) ReportJSON(ctx context.Context, hash string) ([]byte, error) {
	data, err := c.reportRequest(ctx, hash, true)
	if err != nil {
		data, err = c.reportRequest(ctx, hash, false)
	}
	if err != nil {
		return nil, err
	}

	// The service reports "still scanning" as an error payload
	var probe struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(data, &probe); err != nil {
		return nil, fmt.Errorf("failed to parse report response: %w", err)
	}
	if probe.Error != "" {
		return nil, fmt.Errorf("report not ready: %s", probe.Error)
	}

	return data, nil
}

func (c *Client) reportRequest(ctx context.Context, hash string, asJSON bool) ([]byte, error) {
	var body io.Reader
	contentType := "application/x-www-form-urlencoded"
	if asJSON {
		payload, err := json.Marshal(map[string]string{"hash": hash})
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request: %w", err)
		}
		body = bytes.NewReader(payload)
		contentType = "application/json"
	} else {
		body = strings.NewReader(url.Values{"hash": {hash}}.Encode())
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/api/v1/report_json", body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", c.APIKey)
	req.Header.Set("Content-Type", contentType)

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("report request failed: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read report response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("report failed: status %d, body: %s", resp.StatusCode, string(data))
	}

	return data, nil
}

// WaitForReport polls until the report is available or retries are exhausted
func (c *Client) WaitForReport(ctx context.Context, hash string) ([]byte, error) {
	var lastErr error

	for attempt := 1; attempt <= c.MaxRetries; attempt++ {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		data, err := c.ReportJSON(ctx, hash)
		if err == nil {
			return data, nil
		}
		lastErr = err

		if attempt == c.MaxRetries {
			break
		}

		c.logMsg(fmt.Sprintf("Report not ready (attempt %d/%d), retrying in %s", attempt, c.MaxRetries, c.RetryDelay), "info")
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(c.RetryDelay):
		}
	}

	return nil, fmt.Errorf("report not available after %d attempts: %w", c.MaxRetries, lastErr)
}

// FetchReport runs the full upload, scan, poll sequence for one APK
func (c *Client) FetchReport(ctx context.Context, fileName string, reader io.Reader) ([]byte, *UploadResponse, error) {
	c.logMsg(fmt.Sprintf("Uploading %s to static-analysis service...", fileName), "info")
	upload, err := c.Upload(ctx, fileName, reader)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to upload file: %w", err)
	}

	c.logMsg(fmt.Sprintf("Starting scan (hash %s)...", upload.Hash), "info")
	if err := c.StartScan(ctx, upload); err != nil {
		return nil, upload, fmt.Errorf("failed to start scan: %w", err)
	}

	c.logMsg("Waiting for report...", "info")
	data, err := c.WaitForReport(ctx, upload.Hash)
	if err != nil {
		return nil, upload, err
	}

	return data, upload, nil
}
