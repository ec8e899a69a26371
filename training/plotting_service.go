package training

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// PlottingService posts loss curves to an external plotting sidecar. It is
// optional: a run without --plotServer never constructs one, and send
// failures are reported to the caller rather than stopping training.
type PlottingService struct {
	baseURL    string
	httpClient *http.Client
	config     PlottingServiceConfig
	enabled    bool
}

// PlottingServiceConfig contains configuration for the plotting service
type PlottingServiceConfig struct {
	BaseURL       string        `json:"base_url"`
	Timeout       time.Duration `json:"timeout"`
	RetryAttempts int           `json:"retry_attempts"`
	RetryDelay    time.Duration `json:"retry_delay"`
}

// PlottingResponse is the sidecar's reply to a plot upload.
type PlottingResponse struct {
	Success   bool   `json:"success"`
	Message   string `json:"message"`
	PlotURL   string `json:"plot_url,omitempty"`
	PlotID    string `json:"plot_id,omitempty"`
	ErrorCode string `json:"error_code,omitempty"`
}

// DefaultPlottingServiceConfig returns default configuration for the plotting service
func DefaultPlottingServiceConfig() PlottingServiceConfig {
	return PlottingServiceConfig{
		BaseURL:       "http://localhost:8080",
		Timeout:       30 * time.Second,
		RetryAttempts: 3,
		RetryDelay:    1 * time.Second,
	}
}

// NewPlottingService creates a disabled plotting service client.
func NewPlottingService(config PlottingServiceConfig) *PlottingService {
	if config.RetryAttempts < 1 {
		config.RetryAttempts = 1
	}
	return &PlottingService{
		baseURL:    config.BaseURL,
		httpClient: &http.Client{Timeout: config.Timeout},
		config:     config,
	}
}

func (ps *PlottingService) Enable()         { ps.enabled = true }
func (ps *PlottingService) Disable()        { ps.enabled = false }
func (ps *PlottingService) IsEnabled() bool { return ps.enabled }

var disabledResponse = PlottingResponse{Message: "Plotting service is disabled"}

// SendPlotData uploads one plot. A non-200 status is an error; the decoded
// reply is still returned with it when the body parses.
func (ps *PlottingService) SendPlotData(ctx context.Context, plotData PlotData) (*PlottingResponse, error) {
	if !ps.enabled {
		resp := disabledResponse
		return &resp, nil
	}

	body, err := json.Marshal(plotData)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal plot data: %w", err)
	}

	status, respBody, err := ps.do(ctx, http.MethodPost, "/api/plot", body)
	if err != nil {
		return nil, err
	}

	var reply PlottingResponse
	if err := json.Unmarshal(respBody, &reply); err != nil {
		return nil, fmt.Errorf("failed to parse sidecar reply (status %d): %w", status, err)
	}
	if status != http.StatusOK {
		return &reply, fmt.Errorf("sidecar rejected %s plot with status %d: %s", plotData.PlotType, status, reply.Message)
	}
	return &reply, nil
}

// SendPlotDataWithRetry retries SendPlotData up to the configured number of
// attempts, sleeping RetryDelay between them. It gives up early when ctx is done.
func (ps *PlottingService) SendPlotDataWithRetry(ctx context.Context, plotData PlotData) (*PlottingResponse, error) {
	var lastErr error
	for attempt := 1; attempt <= ps.config.RetryAttempts; attempt++ {
		resp, err := ps.SendPlotData(ctx, plotData)
		if err == nil {
			return resp, nil
		}
		lastErr = err

		if attempt == ps.config.RetryAttempts {
			break
		}
		select {
		case <-time.After(ps.config.RetryDelay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return nil, fmt.Errorf("failed to send plot data after %d attempts: %w", ps.config.RetryAttempts, lastErr)
}

// PublishLossLog uploads the loss curve and the learning rate schedule of
// history, returning the first error encountered after trying both.
func (ps *PlottingService) PublishLossLog(ctx context.Context, history *LossLog) error {
	var firstErr error
	for _, pd := range []PlotData{history.GenerateTrainingCurvesPlot(), history.GenerateLearningRateSchedulePlot()} {
		if _, err := ps.SendPlotDataWithRetry(ctx, pd); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// CheckHealth reports whether the sidecar answers its health endpoint.
func (ps *PlottingService) CheckHealth(ctx context.Context) error {
	if !ps.enabled {
		return fmt.Errorf("plotting service is disabled")
	}
	status, _, err := ps.do(ctx, http.MethodGet, "/health", nil)
	if err != nil {
		return err
	}
	if status != http.StatusOK {
		return fmt.Errorf("health check failed with status %d", status)
	}
	return nil
}

func (ps *PlottingService) do(ctx context.Context, method, path string, body []byte) (int, []byte, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, ps.baseURL+path, reader)
	if err != nil {
		return 0, nil, fmt.Errorf("failed to create %s request: %w", path, err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("User-Agent", "go-lfca-training")

	resp, err := ps.httpClient.Do(req)
	if err != nil {
		return 0, nil, fmt.Errorf("%s %s failed: %w", method, path, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, nil, fmt.Errorf("failed to read %s response: %w", path, err)
	}
	return resp.StatusCode, respBody, nil
}
