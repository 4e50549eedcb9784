// Package transcribe converts voice messages to text through an
// OpenAI-compatible /audio/transcriptions endpoint.
package transcribe

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/pkg/errors"
)

const (
	defaultEndpoint = "https://api.openai.com/v1/audio/transcriptions"
	defaultModel    = "whisper-1"
)

// ErrEmptyTranscript is returned when the service recognised no speech.
var ErrEmptyTranscript = errors.New("empty transcript")

// Options configure a Client.
type Options struct {
	Endpoint string
	APIKey   string
	Model    string
	Timeout  time.Duration
}

// Client calls the transcription endpoint.
type Client struct {
	endpoint string
	apiKey   string
	model    string
	http     *http.Client
}

// New creates a Client, filling defaults for empty options.
func New(opts Options) *Client {
	if opts.Endpoint == "" {
		opts.Endpoint = defaultEndpoint
	}
	if opts.Model == "" {
		opts.Model = defaultModel
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 60 * time.Second
	}
	return &Client{
		endpoint: opts.Endpoint,
		apiKey:   opts.APIKey,
		model:    opts.Model,
		http:     &http.Client{Timeout: opts.Timeout},
	}
}

// Transcribe uploads audio and returns the recognised text.
func (c *Client) Transcribe(ctx context.Context, audio []byte, filename string) (string, error) {
	if filename == "" {
		filename = "voice.ogg"
	}

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", filename)
	if err != nil {
		return "", errors.Wrap(err, "create form file")
	}
	if _, err := fw.Write(audio); err != nil {
		return "", errors.Wrap(err, "write audio")
	}
	if err := mw.WriteField("model", c.model); err != nil {
		return "", errors.Wrap(err, "write model field")
	}
	if err := mw.WriteField("response_format", "json"); err != nil {
		return "", errors.Wrap(err, "write response_format field")
	}
	if err := mw.Close(); err != nil {
		return "", errors.Wrap(err, "close multipart writer")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, &buf)
	if err != nil {
		return "", errors.Wrap(err, "create request")
	}
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := c.http.Do(req)
	if err != nil {
		return "", errors.Wrap(err, "http request")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
		return "", errors.Errorf("transcription api error: status=%d body=%s", resp.StatusCode, string(body))
	}

	var result struct {
		Text string `json:"text"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", errors.Wrap(err, "decode response")
	}
	text := strings.TrimSpace(result.Text)
	if text == "" {
		return "", ErrEmptyTranscript
	}
	return text, nil
}
