/*
scheduler.go - Periodic risk scanner

PURPOSE:
  Runs every risk detector on a fixed interval and logs what it found: the
  number of alerts per severity and the top-ranked alert. Nothing is stored
  or sent; the log line is the product.

DESIGN:
  - Runs a background goroutine with configurable check interval
  - Scans once immediately on Start
  - A failed scan is logged and the next tick tries again

CONFIGURATION:
  - Interval: How often to scan (config scanner.interval, default 15m)
  - Enabled:  Whether the scanner runs (config scanner.enabled)

USAGE:
  scanner := NewRiskScanner(engine, logger)
  scanner.Start()
  // ... later
  scanner.Stop()

HTTP:
  GET /api/risks/scan returns LastScan (404 before the first scan).

SEE ALSO:
  - margin/engine.go: RiskAlerts
*/
package api

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/warp/margin-engine/config"
	"github.com/warp/margin-engine/margin"
)

// ScanResult summarizes one scan.
type ScanResult struct {
	At         time.Time               `json:"at"`
	Total      int                     `json:"total"`
	BySeverity map[margin.Severity]int `json:"by_severity"`
	Top        *margin.RiskAlert       `json:"top,omitempty"`
}

// RiskScanner periodically runs the risk detectors.
type RiskScanner struct {
	Engine   *margin.Engine
	Interval time.Duration
	Enabled  bool
	Log      logrus.FieldLogger

	ticker *time.Ticker
	stop   chan bool
	wg     sync.WaitGroup
	mu     sync.Mutex

	lastMu sync.RWMutex
	last   *ScanResult
}

// NewRiskScanner creates a scanner with a 15 minute interval.
func NewRiskScanner(engine *margin.Engine, logger logrus.FieldLogger) *RiskScanner {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &RiskScanner{
		Engine:   engine,
		Interval: 15 * time.Minute,
		Enabled:  true,
		Log:      logger.WithField("module", "scanner"),
	}
}

// Start begins the scanner.
func (rs *RiskScanner) Start() {
	rs.mu.Lock()
	defer rs.mu.Unlock()

	if !rs.Enabled {
		rs.Log.Info("disabled, not starting")
		return
	}
	if rs.ticker != nil {
		return
	}

	rs.ticker = time.NewTicker(rs.Interval)
	rs.stop = make(chan bool)
	rs.wg.Add(1)

	go rs.run()

	rs.Log.WithField("interval", rs.Interval.String()).Info("started")
}

// Stop stops the scanner and waits for a running scan to finish.
func (rs *RiskScanner) Stop() {
	rs.mu.Lock()
	defer rs.mu.Unlock()

	if rs.ticker != nil {
		rs.ticker.Stop()
		close(rs.stop)
		rs.wg.Wait()
		rs.ticker = nil
		rs.Log.Info("stopped")
	}
}

// LastScan returns the most recent successful scan, nil before the first.
func (rs *RiskScanner) LastScan() *ScanResult {
	rs.lastMu.RLock()
	defer rs.lastMu.RUnlock()
	return rs.last
}

func (rs *RiskScanner) run() {
	defer rs.wg.Done()

	// Run immediately on start
	rs.scanAndLog()

	for {
		select {
		case <-rs.ticker.C:
			rs.scanAndLog()
		case <-rs.stop:
			return
		}
	}
}

func (rs *RiskScanner) scanAndLog() {
	ctx, cancel := context.WithTimeout(context.Background(), rs.Interval)
	defer cancel()

	if _, err := rs.Scan(ctx); err != nil {
		config.LogError(rs.Log, "scanner", "Scan", "periodic risk scan", nil, err)
	}
}

// Scan runs the detectors once, records and logs the summary.
func (rs *RiskScanner) Scan(ctx context.Context) (ScanResult, error) {
	alerts, err := rs.Engine.RiskAlerts(ctx)
	if err != nil {
		return ScanResult{}, err
	}
	res := Summarize(alerts)
	res.At = time.Now()

	rs.lastMu.Lock()
	rs.last = &res
	rs.lastMu.Unlock()

	entry := rs.Log.WithFields(logrus.Fields{
		"func":   "Scan",
		"total":  res.Total,
		"high":   res.BySeverity[margin.SeverityHigh],
		"medium": res.BySeverity[margin.SeverityMedium],
		"low":    res.BySeverity[margin.SeverityLow],
	})
	if res.Top != nil {
		entry = entry.WithFields(logrus.Fields{
			"top_project": res.Top.ProjectID,
			"top_type":    res.Top.Type,
			"top_amount":  res.Top.Amount.StringFixed(2),
		})
	}
	if res.BySeverity[margin.SeverityHigh] > 0 {
		entry.Warn("risk scan found high severity alerts")
	} else {
		entry.Info("risk scan complete")
	}
	return res, nil
}

// GetLastScan returns the scanner's most recent result.
func (h *Handler) GetLastScan(w http.ResponseWriter, r *http.Request) {
	if h.Scanner == nil {
		writeError(w, http.StatusNotImplemented, "Risk scanner not configured", nil)
		return
	}
	last := h.Scanner.LastScan()
	if last == nil {
		writeError(w, http.StatusNotFound, "No scan has completed", nil)
		return
	}
	writeJSON(w, http.StatusOK, last)
}

// Summarize counts ranked alerts by severity. Top is the first alert.
func Summarize(alerts []margin.RiskAlert) ScanResult {
	res := ScanResult{
		Total: len(alerts),
		BySeverity: map[margin.Severity]int{
			margin.SeverityHigh:   0,
			margin.SeverityMedium: 0,
			margin.SeverityLow:    0,
		},
	}
	for _, a := range alerts {
		res.BySeverity[a.Severity]++
	}
	if len(alerts) > 0 {
		top := alerts[0]
		res.Top = &top
	}
	return res
}
