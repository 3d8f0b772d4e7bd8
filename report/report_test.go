package report

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/TFMV/mongoload/metrics"
	"github.com/TFMV/mongoload/pkg/core"
)

func TestJSONReportGenerator_GenerateReport(t *testing.T) {
	report := createTestReport()
	generator := &JSONReportGenerator{}

	data, err := generator.GenerateReport(report)
	require.NoError(t, err)

	var decoded metrics.BenchmarkReport
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, "zips", decoded.Target.Collection)
	assert.Equal(t, 1000, decoded.Insert.Inserted)
}

func TestJSONReportGenerator_GenerateAlertNotification(t *testing.T) {
	report := createFailedReport()
	generator := &JSONReportGenerator{}

	data, err := generator.GenerateAlertNotification(report)
	require.NoError(t, err)

	var alert map[string]string
	require.NoError(t, json.Unmarshal(data, &alert))
	assert.Equal(t, "Benchmark Failed", alert["alert"])
	assert.Equal(t, "test.zips", alert["collection"])
	assert.Equal(t, "connect", alert["stage"])
}

func TestJSONReportGenerator_SaveReportToFile(t *testing.T) {
	report := createTestReport()
	generator := &JSONReportGenerator{}
	filePath := filepath.Join(t.TempDir(), "test_report.json")

	require.NoError(t, generator.SaveReportToFile(report, filePath))

	loaded, err := ReportFromFilePath(filePath)
	require.NoError(t, err)
	assert.Equal(t, report.RunID, loaded.RunID)
}

func TestHTMLReportGenerator_GenerateReport(t *testing.T) {
	report := createTestReport()
	generator := &HTMLReportGenerator{}

	data, err := generator.GenerateReport(report)
	require.NoError(t, err)

	html := string(data)
	for _, expected := range []string{
		"<!DOCTYPE html>",
		"<title>Benchmark Report run-1</title>",
		"test.zips",
		"PASS",
		"<td>1,000</td>",
		"zip, county, population",
		"(1500000000 ns)",
	} {
		assert.Contains(t, html, expected)
	}
	assert.NotContains(t, html, "Failed Records")
}

func TestHTMLReportGenerator_Failures(t *testing.T) {
	report := createTestReport()
	report.Insert.Failed = 1
	report.Insert.Failures = []core.InsertFailure{{RecordID: "<01001>", Error: "duplicate id"}}

	data, err := (&HTMLReportGenerator{}).GenerateReport(report)
	require.NoError(t, err)

	html := string(data)
	assert.Contains(t, html, "Failed Records")
	assert.Contains(t, html, "&lt;01001&gt;")
}

func TestHTMLReportGenerator_GenerateAlertNotification(t *testing.T) {
	data, err := (&HTMLReportGenerator{}).GenerateAlertNotification(createFailedReport())
	require.NoError(t, err)
	assert.Contains(t, string(data), "failed during connect")
}

func TestSaveReports(t *testing.T) {
	report := createTestReport()
	tmpDir := t.TempDir()
	jsonPath := filepath.Join(tmpDir, "report.json")
	htmlPath := filepath.Join(tmpDir, "report.html")

	require.NoError(t, SaveReports(report, jsonPath, htmlPath))
	assert.FileExists(t, jsonPath)
	assert.FileExists(t, htmlPath)
}

func TestSaveReportsSkipsEmptyPaths(t *testing.T) {
	htmlPath := filepath.Join(t.TempDir(), "report.html")
	require.NoError(t, SaveReports(createTestReport(), "", htmlPath))
	assert.FileExists(t, htmlPath)
}

func TestSaveReportsPassedRunHasNoAlert(t *testing.T) {
	tmpDir := t.TempDir()
	jsonPath := filepath.Join(tmpDir, "report.json")

	require.NoError(t, SaveReports(createTestReport(), jsonPath, ""))
	assert.NoFileExists(t, AlertPath(jsonPath))
}

func TestSaveReportsFailedRunWritesAlerts(t *testing.T) {
	tmpDir := t.TempDir()
	jsonPath := filepath.Join(tmpDir, "report.json")
	htmlPath := filepath.Join(tmpDir, "report.html")

	require.NoError(t, SaveReports(createFailedReport(), jsonPath, htmlPath))

	loaded, err := ReportFromFilePath(jsonPath)
	require.NoError(t, err)
	assert.Equal(t, metrics.Failed, loaded.Status)

	data, err := os.ReadFile(filepath.Join(tmpDir, "report.alert.json"))
	require.NoError(t, err)
	var alert map[string]string
	require.NoError(t, json.Unmarshal(data, &alert))
	assert.Equal(t, "run-2", alert["run_id"])
	assert.Equal(t, "connect", alert["stage"])

	data, err = os.ReadFile(filepath.Join(tmpDir, "report.alert.html"))
	require.NoError(t, err)
	assert.Contains(t, string(data), "failed during connect")
}

func TestAlertPath(t *testing.T) {
	assert.Equal(t, "out/report.alert.json", AlertPath("out/report.json"))
	assert.Equal(t, "report.alert", AlertPath("report"))
}

func TestReportFromFilePathInvalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "broken.json")
	require.NoError(t, os.WriteFile(path, []byte("{"), 0644))

	_, err := ReportFromFilePath(path)
	assert.Error(t, err)

	_, err = ReportFromFilePath(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)
}

func TestTextSummary(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, TextSummary(&buf, createTestReport()))

	out := buf.String()
	assert.Contains(t, out, "1,000 of 1,000 (0 failed)")
	assert.Contains(t, out, "1.5s (1500000000 ns)")
	assert.Contains(t, out, "666.7 records/s")
	assert.Contains(t, out, "batch, single bulk write")
	assert.NotContains(t, out, "Failed at")
}

func TestTextSummaryFailure(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, TextSummary(&buf, createFailedReport()))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	assert.Equal(t, "Failed at connect stage: connect: connection error: server selection timeout", lines[len(lines)-1])
}

func TestDescribeSettings(t *testing.T) {
	assert.Equal(t, "batch, 5,000 records per bulk write", describeSettings(metrics.InsertSettings{Mode: core.Batch, BatchSize: 5000}))
	assert.Equal(t, "sequential, concurrency 4, delay 10ms",
		describeSettings(metrics.InsertSettings{Mode: core.Sequential, Concurrency: 4, Delay: 10 * time.Millisecond}))
}

func TestFormatRateRounds(t *testing.T) {
	assert.Equal(t, "666.7", formatRate(666.666))
	assert.Equal(t, "1,234.6", formatRate(1234.56))
	assert.Equal(t, "1,000", formatRate(999.96))
	assert.Equal(t, "0", formatRate(0))
}

func TestHistoryTable(t *testing.T) {
	now := time.Date(2025, 3, 1, 14, 0, 0, 0, time.UTC)
	runs := []metrics.BenchmarkReport{createTestReport(), createFailedReport()}

	var buf bytes.Buffer
	require.NoError(t, HistoryTable(&buf, runs, now))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 3)
	assert.True(t, strings.HasPrefix(lines[0], "RUN"))
	assert.Contains(t, lines[1], "run-1")
	assert.Contains(t, lines[1], "2 hours ago")
	assert.Contains(t, lines[1], "succeeded")
	assert.Contains(t, lines[2], "failed")
}

// Helper function to create test report data
func createTestReport() metrics.BenchmarkReport {
	start := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	return metrics.BenchmarkReport{
		RunID:     "run-1",
		StartTime: start,
		EndTime:   start.Add(2 * time.Second),
		Duration:  2 * time.Second,
		Target: metrics.TargetMetadata{
			Backend:    "mongo",
			Address:    "mongodb://localhost:27017",
			Database:   "test",
			Collection: "zips",
			IDMode:     core.IDAuto,
		},
		Workload: metrics.WorkloadMetadata{
			SamplePath:     "zips.csv",
			Fields:         []string{"zip", "county", "population"},
			SampleRecords:  2,
			TargetCount:    1000,
			WorkingSetSize: 1000,
		},
		Settings: metrics.InsertSettings{Mode: core.Batch},
		Insert: metrics.NewInsertMetrics(core.InsertResult{
			Mode:      core.Batch,
			Attempted: 1000,
			Inserted:  1000,
			Elapsed:   1500 * time.Millisecond,
		}),
		Status: metrics.Succeeded,
	}
}

func createFailedReport() metrics.BenchmarkReport {
	r := createTestReport()
	r.RunID = "run-2"
	r.Insert = metrics.InsertMetrics{}
	r.Status = metrics.Failed
	r.FailedStage = core.StageConnect
	r.Error = "connect: connection error: server selection timeout"
	return r
}
