package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/meetscribe/backend/config"
	"github.com/meetscribe/backend/internal/transcript"
)

// RecallProvider is the bot-based vendor integration: it instructs the
// vendor to send a recording bot into a meeting and later pulls the
// transcript.
type RecallProvider struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	logger     *zap.Logger
}

var _ TranscriptProvider = (*RecallProvider)(nil)

// NewRecallProvider builds the bot vendor client from configuration.
func NewRecallProvider(cfg config.RecallConfig, logger *zap.Logger) (*RecallProvider, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("recall provider: api key required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RecallProvider{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:     cfg.APIKey,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		logger:     logger,
	}, nil
}

type recallBot struct {
	ID     string `json:"id"`
	Status struct {
		Code string `json:"code"`
	} `json:"status"`
}

// CreateSession asks the vendor to join the meeting with a bot.
func (p *RecallProvider) CreateSession(ctx context.Context, meetingURL string, opts CreateOptions) (string, error) {
	body := map[string]any{
		"meeting_url": meetingURL,
		"bot_name":    opts.DisplayName,
		"transcription_options": map[string]any{
			"provider": "meeting_captions",
		},
	}
	var bot recallBot
	if err := p.do(ctx, http.MethodPost, "/bot", body, &bot); err != nil {
		return "", fmt.Errorf("create bot: %w", err)
	}
	if bot.ID == "" {
		return "", fmt.Errorf("create bot: vendor returned no id")
	}
	return bot.ID, nil
}

// GetTranscript pulls the transcript for a bot session. The vendor returns
// either inline segments or a time-limited download URL to follow.
func (p *RecallProvider) GetTranscript(ctx context.Context, sessionID string) ([]transcript.Segment, error) {
	data, err := p.raw(ctx, http.MethodGet, "/bot/"+sessionID+"/transcript", nil)
	if err != nil {
		return nil, fmt.Errorf("fetch transcript: %w", err)
	}

	// Inline payloads are a JSON array; otherwise look for a download URL.
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) > 0 && trimmed[0] == '{' {
		var ref struct {
			DownloadURL string `json:"download_url"`
		}
		if err := json.Unmarshal(trimmed, &ref); err != nil || ref.DownloadURL == "" {
			return nil, fmt.Errorf("transcript response has neither segments nor download_url")
		}
		data, err = p.download(ctx, ref.DownloadURL)
		if err != nil {
			return nil, fmt.Errorf("follow download url: %w", err)
		}
	}

	segs, err := transcript.Parse(data)
	if err != nil {
		return nil, fmt.Errorf("normalize transcript: %w", err)
	}
	return segs, nil
}

// GetStatus returns the bot's status code. Repair path only.
func (p *RecallProvider) GetStatus(ctx context.Context, sessionID string) (string, error) {
	var bot recallBot
	if err := p.do(ctx, http.MethodGet, "/bot/"+sessionID, nil, &bot); err != nil {
		return "", fmt.Errorf("get bot status: %w", err)
	}
	return bot.Status.Code, nil
}

// HandleWebhook is unused for the bot vendor: its events arrive on the
// shared webhook endpoint and are translated by the normalizer.
func (p *RecallProvider) HandleWebhook(ctx context.Context, payload []byte) (*WebhookResult, error) {
	return nil, ErrNotImplemented
}

// LeaveSession tells the bot to leave the call.
func (p *RecallProvider) LeaveSession(ctx context.Context, sessionID string) error {
	if err := p.do(ctx, http.MethodPost, "/bot/"+sessionID+"/leave_call", nil, nil); err != nil {
		return fmt.Errorf("leave call: %w", err)
	}
	return nil
}

func (p *RecallProvider) do(ctx context.Context, method, path string, body, out any) error {
	data, err := p.raw(ctx, method, path, body)
	if err != nil {
		return err
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode vendor response: %w", err)
	}
	return nil
}

func (p *RecallProvider) raw(ctx context.Context, method, path string, body any) ([]byte, error) {
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshal request: %w", err)
		}
		reader = bytes.NewReader(encoded)
	}
	req, err := http.NewRequestWithContext(ctx, method, p.baseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Authorization", "Token "+p.apiKey)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode >= http.StatusBadRequest {
		return nil, fmt.Errorf("vendor error %s: %s", resp.Status, strings.TrimSpace(string(data)))
	}
	return data, nil
}

func (p *RecallProvider) download(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("download status %d", resp.StatusCode)
	}
	return io.ReadAll(resp.Body)
}
