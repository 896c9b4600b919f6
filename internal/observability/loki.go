package observability

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// LokiConfig holds the Grafana Loki push settings. Pushing is disabled
// unless URL, User and APIKey are all set.
type LokiConfig struct {
	URL      string `yaml:"url"`
	User     string `yaml:"user"`
	APIKey   string `yaml:"api_key"`
	App      string `yaml:"app"`
	Instance string `yaml:"instance"`
}

// Enabled reports whether the config is complete.
func (c LokiConfig) Enabled() bool {
	return c.URL != "" && c.User != "" && c.APIKey != ""
}

type LokiClient struct {
	url        string
	username   string
	apiKey     string
	httpClient *http.Client
	enabled    bool
	appName    string
	instanceID string
	logger     zerolog.Logger
	wg         sync.WaitGroup
}

// Loki Push API format
type lokiPushRequest struct {
	Streams []lokiStream `json:"streams"`
}

type lokiStream struct {
	Stream map[string]string `json:"stream"`
	Values [][]string        `json:"values"`
}

var (
	defaultMu     sync.RWMutex
	defaultClient *LokiClient
)

// InitLoki configures the process-wide Loki sink.
func InitLoki(cfg LokiConfig, logger zerolog.Logger) *LokiClient {
	if cfg.App == "" {
		cfg.App = "issuebridge"
	}
	if cfg.Instance == "" {
		cfg.Instance = "local"
	}

	c := &LokiClient{
		enabled:    cfg.Enabled(),
		appName:    cfg.App,
		instanceID: cfg.Instance,
		logger:     logger.With().Str("component", "loki").Logger(),
	}
	if c.enabled {
		c.url = cfg.URL + "/loki/api/v1/push"
		c.username = cfg.User
		c.apiKey = cfg.APIKey
		c.httpClient = &http.Client{Timeout: 5 * time.Second}
		c.logger.Info().Str("url", c.url).Msg("Loki client initialized")
	} else {
		c.logger.Debug().Msg("Loki not configured, event push disabled")
	}

	defaultMu.Lock()
	defaultClient = c
	defaultMu.Unlock()
	return c
}

// Flush waits for in-flight pushes. Called on shutdown.
func (c *LokiClient) Flush() {
	if c != nil {
		c.wg.Wait()
	}
}

func Push(labels map[string]string, data map[string]any) {
	defaultMu.RLock()
	c := defaultClient
	defaultMu.RUnlock()
	if c == nil || !c.enabled {
		return
	}

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		c.push(labels, data)
	}()
}

func (c *LokiClient) push(labels map[string]string, data map[string]any) {
	if labels == nil {
		labels = make(map[string]string)
	}
	labels["app"] = c.appName
	labels["instance"] = c.instanceID

	dataJSON, err := json.Marshal(data)
	if err != nil {
		c.logger.Error().Err(err).Msg("failed to marshal data")
		return
	}

	timestamp := strconv.FormatInt(time.Now().UnixNano(), 10)

	req := lokiPushRequest{
		Streams: []lokiStream{
			{
				Stream: labels,
				Values: [][]string{
					{timestamp, string(dataJSON)},
				},
			},
		},
	}

	body, err := json.Marshal(req)
	if err != nil {
		c.logger.Error().Err(err).Msg("failed to marshal request")
		return
	}

	httpReq, err := http.NewRequest(http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		c.logger.Error().Err(err).Msg("failed to create request")
		return
	}

	httpReq.SetBasicAuth(c.username, c.apiKey)
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		c.logger.Warn().Err(err).Msg("failed to send")
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		c.logger.Warn().Int("status", resp.StatusCode).Msg("unexpected status code")
		return
	}
}

// LogToolCall pushes a tool call event
func LogToolCall(requestID, module, tool string, durationMs int64, status string, errMsg string) {
	level := "info"
	if status != "success" {
		level = "error"
	}
	labels := map[string]string{
		"module": module,
		"status": status,
		"level":  level,
	}

	data := map[string]any{
		"request_id":  requestID,
		"module":      module,
		"tool":        tool,
		"duration_ms": durationMs,
		"status":      status,
	}

	if errMsg != "" {
		data["error"] = errMsg
	}

	Push(labels, data)
}

// LogRequest pushes an incoming request event
func LogRequest(method, path string, statusCode int, durationMs int64) {
	labels := map[string]string{
		"type":   "request",
		"method": method,
		"path":   path,
		"level":  "info",
	}

	data := map[string]any{
		"method":      method,
		"path":        path,
		"status_code": statusCode,
		"duration_ms": durationMs,
	}

	Push(labels, data)
}

// LogSecurityEvent pushes a security-related event
func LogSecurityEvent(requestID, event string, details map[string]any) {
	labels := map[string]string{
		"type":  "security",
		"level": "warn",
	}

	data := map[string]any{
		"request_id": requestID,
		"event":      event,
	}
	for k, v := range details {
		data[k] = fmt.Sprint(v)
	}

	Push(labels, data)
}
