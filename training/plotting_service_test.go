package training

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

func testPlotData() PlotData {
	log := NewLossLog("TestModel")
	log.Append(0, 0.4, 6e-5)
	log.Append(1, 0.3, 6e-5)
	return log.GenerateTrainingCurvesPlot()
}

func TestDefaultPlottingServiceConfig(t *testing.T) {
	config := DefaultPlottingServiceConfig()

	if config.BaseURL != "http://localhost:8080" {
		t.Errorf("Expected BaseURL http://localhost:8080, got %s", config.BaseURL)
	}
	if config.Timeout != 30*time.Second {
		t.Errorf("Expected timeout 30s, got %v", config.Timeout)
	}
	if config.RetryAttempts != 3 {
		t.Errorf("Expected retry attempts 3, got %d", config.RetryAttempts)
	}
}

func TestPlottingServiceEnableDisable(t *testing.T) {
	ps := NewPlottingService(DefaultPlottingServiceConfig())

	if ps.IsEnabled() {
		t.Error("Service should be disabled initially")
	}
	ps.Enable()
	if !ps.IsEnabled() {
		t.Error("Service should be enabled after Enable()")
	}
	ps.Disable()
	if ps.IsEnabled() {
		t.Error("Service should be disabled after Disable()")
	}

	resp, err := ps.SendPlotData(context.Background(), testPlotData())
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if resp.Success || resp.Message != "Plotting service is disabled" {
		t.Errorf("Expected disabled response, got %+v", resp)
	}
}

func TestSendPlotDataSuccess(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("Expected POST method, got %s", r.Method)
		}
		if r.URL.Path != "/api/plot" {
			t.Errorf("Expected path /api/plot, got %s", r.URL.Path)
		}
		if r.Header.Get("Content-Type") != "application/json" {
			t.Errorf("Expected JSON content type, got %s", r.Header.Get("Content-Type"))
		}

		var pd PlotData
		if err := json.NewDecoder(r.Body).Decode(&pd); err != nil {
			t.Errorf("Failed to decode plot data: %v", err)
		}
		if pd.PlotType != TrainingCurves || pd.Title != "Loss" || len(pd.Series) != 1 || len(pd.Series[0].Data) != 2 {
			t.Errorf("Unexpected plot data %+v", pd)
		}

		json.NewEncoder(w).Encode(PlottingResponse{Success: true, Message: "ok", PlotID: "p1"})
	}))
	defer server.Close()

	config := DefaultPlottingServiceConfig()
	config.BaseURL = server.URL
	ps := NewPlottingService(config)
	ps.Enable()

	resp, err := ps.SendPlotData(context.Background(), testPlotData())
	if err != nil {
		t.Fatalf("SendPlotData failed: %v", err)
	}
	if !resp.Success || resp.PlotID != "p1" {
		t.Errorf("Unexpected response %+v", resp)
	}
}

func TestSendPlotDataWithRetry(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			json.NewEncoder(w).Encode(PlottingResponse{Message: "busy"})
			return
		}
		json.NewEncoder(w).Encode(PlottingResponse{Success: true})
	}))
	defer server.Close()

	config := PlottingServiceConfig{BaseURL: server.URL, Timeout: 5 * time.Second, RetryAttempts: 3, RetryDelay: time.Millisecond}
	ps := NewPlottingService(config)
	ps.Enable()

	resp, err := ps.SendPlotDataWithRetry(context.Background(), testPlotData())
	if err != nil {
		t.Fatalf("Expected success on the third attempt, got %v", err)
	}
	if !resp.Success || atomic.LoadInt32(&calls) != 3 {
		t.Errorf("Expected 3 calls and success, got %d calls, %+v", atomic.LoadInt32(&calls), resp)
	}

	config.RetryAttempts = 2
	atomic.StoreInt32(&calls, 0)
	ps = NewPlottingService(config)
	ps.Enable()
	if _, err := ps.SendPlotDataWithRetry(context.Background(), testPlotData()); err == nil {
		t.Error("Expected failure after 2 attempts")
	}
}

func TestCheckHealth(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/health" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	ps := NewPlottingService(PlottingServiceConfig{BaseURL: server.URL, Timeout: time.Second})
	if err := ps.CheckHealth(context.Background()); err == nil {
		t.Error("Expected error while disabled")
	}
	ps.Enable()
	if err := ps.CheckHealth(context.Background()); err != nil {
		t.Errorf("Expected healthy service, got %v", err)
	}
}

func TestPublishLossLogTriesEveryPlot(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusInternalServerError)
		json.NewEncoder(w).Encode(PlottingResponse{Message: "down"})
	}))
	defer server.Close()

	ps := NewPlottingService(PlottingServiceConfig{BaseURL: server.URL, Timeout: time.Second, RetryAttempts: 1})
	ps.Enable()

	log := NewLossLog("LFCA")
	log.Append(0, 0.2, 6e-5)
	if err := ps.PublishLossLog(context.Background(), log); err == nil {
		t.Error("Expected an error from a failing sidecar")
	}
	if got := atomic.LoadInt32(&calls); got != 2 {
		t.Errorf("Expected both plots to be attempted, got %d requests", got)
	}
}
