package report

import (
	"bytes"
	"encoding/json"
	"fmt"
	"html/template"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/TFMV/mongoload/metrics"
)

// -----------------------------
// Report Generator Interfaces
// -----------------------------

// ReportGenerator defines the methods for generating reports.
type ReportGenerator interface {
	GenerateReport(run metrics.BenchmarkReport) ([]byte, error)
	GenerateAlertNotification(run metrics.BenchmarkReport) ([]byte, error)
	SaveReportToFile(run metrics.BenchmarkReport, filePath string) error
}

// -----------------------------
// JSON Report Generator
// -----------------------------

// JSONReportGenerator generates JSON reports.
type JSONReportGenerator struct{}

// GenerateReport serializes the BenchmarkReport to JSON.
func (j *JSONReportGenerator) GenerateReport(run metrics.BenchmarkReport) ([]byte, error) {
	return json.MarshalIndent(run, "", "  ")
}

// GenerateAlertNotification generates a failure alert in JSON format.
func (j *JSONReportGenerator) GenerateAlertNotification(run metrics.BenchmarkReport) ([]byte, error) {
	alert := map[string]interface{}{
		"alert":      "Benchmark Failed",
		"run_id":     run.RunID,
		"collection": run.Target.Database + "." + run.Target.Collection,
		"stage":      run.FailedStage,
		"message":    run.Error,
		"timestamp":  run.EndTime.UTC().Format(time.RFC3339),
	}
	return json.MarshalIndent(alert, "", "  ")
}

// SaveReportToFile saves the JSON report to a file through the JSON metrics store.
func (j *JSONReportGenerator) SaveReportToFile(run metrics.BenchmarkReport, filePath string) error {
	store := &metrics.JSONMetricsStore{FilePath: filePath}
	return store.Save(run)
}

// -----------------------------
// HTML Report Generator
// -----------------------------

// HTMLReportGenerator generates HTML reports.
type HTMLReportGenerator struct{}

var funcs = template.FuncMap{
	"comma": func(n int) string { return humanize.Comma(int64(n)) },
	"rate":  formatRate,
	"nanos": func(ns int64) string { return time.Duration(ns).String() },
}

// HTML template for the report.
const htmlTemplate = `
<!DOCTYPE html>
<html lang="en">
<head>
    <meta charset="UTF-8">
    <meta name="viewport" content="width=device-width, initial-scale=1.0">
    <title>Benchmark Report {{.RunID}}</title>
    <style>
        body { font-family: Arial, sans-serif; margin: 20px; }
        table { width: 100%; border-collapse: collapse; margin-top: 20px; }
        th, td { border: 1px solid #ddd; padding: 8px; text-align: left; }
        th { background-color: #f4f4f4; }
        .status-pass { color: green; }
        .status-fail { color: red; }
    </style>
</head>
<body>
    <h1>Benchmark Report</h1>
    <p><strong>Run:</strong> {{.RunID}}</p>
    <p><strong>Target:</strong> {{.Target.Backend}} {{.Target.Address}} {{.Target.Database}}.{{.Target.Collection}}</p>
    <p><strong>Started:</strong> {{.StartTime}}</p>
    <p><strong>Status:</strong> {{if .Passed}}<span class="status-pass">PASS</span>{{else}}<span class="status-fail">FAIL</span>{{end}}</p>
    {{if .Error}}<p class="status-fail"><strong>{{.FailedStage}}:</strong> {{.Error}}</p>{{end}}

    <h2>Workload</h2>
    <table>
        <tr>
            <th>Sample</th>
            <th>Sample Records</th>
            <th>Target Count</th>
            <th>Working Set</th>
            <th>Fields</th>
        </tr>
        <tr>
            <td>{{.Workload.SamplePath}}</td>
            <td>{{comma .Workload.SampleRecords}}</td>
            <td>{{comma .Workload.TargetCount}}</td>
            <td>{{comma .Workload.WorkingSetSize}}</td>
            <td>{{range $i, $f := .Workload.Fields}}{{if $i}}, {{end}}{{$f}}{{end}}</td>
        </tr>
    </table>

    <h2>Insertion</h2>
    <table>
        <tr>
            <th>Mode</th>
            <th>Attempted</th>
            <th>Inserted</th>
            <th>Failed</th>
            <th>Elapsed</th>
            <th>Records/s</th>
        </tr>
        <tr>
            <td>{{.Settings.Mode}}</td>
            <td>{{comma .Insert.Attempted}}</td>
            <td>{{comma .Insert.Inserted}}</td>
            <td class="{{if .Insert.Failed}}status-fail{{else}}status-pass{{end}}">{{comma .Insert.Failed}}</td>
            <td>{{nanos .Insert.ElapsedNanos}} ({{.Insert.ElapsedNanos}} ns)</td>
            <td>{{rate .Insert.RecordsPerSecond}}</td>
        </tr>
    </table>

    {{if .Insert.Failures}}
    <h2>Failed Records</h2>
    <table>
        <tr>
            <th>Record</th>
            <th>Error</th>
        </tr>
        {{range .Insert.Failures}}
        <tr>
            <td>{{.RecordID}}</td>
            <td>{{.Error}}</td>
        </tr>
        {{end}}
    </table>
    {{end}}

    <footer>
        <p>Generated on {{.EndTime}}</p>
    </footer>
</body>
</html>
`

var htmlReport = template.Must(template.New("report").Funcs(funcs).Parse(htmlTemplate))

// GenerateReport renders the benchmark report as HTML.
func (h *HTMLReportGenerator) GenerateReport(run metrics.BenchmarkReport) ([]byte, error) {
	var buf bytes.Buffer
	if err := htmlReport.Execute(&buf, run); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// GenerateAlertNotification generates an HTML alert.
func (h *HTMLReportGenerator) GenerateAlertNotification(run metrics.BenchmarkReport) ([]byte, error) {
	alertHTML := fmt.Sprintf(
		`<html><body><h3>Benchmark Failed</h3><p>Run %s failed during %s: %s</p></body></html>`,
		template.HTMLEscapeString(run.RunID),
		template.HTMLEscapeString(string(run.FailedStage)),
		template.HTMLEscapeString(run.Error),
	)
	return []byte(alertHTML), nil
}

// SaveReportToFile saves the HTML report to a file.
func (h *HTMLReportGenerator) SaveReportToFile(run metrics.BenchmarkReport, filePath string) error {
	data, err := h.GenerateReport(run)
	if err != nil {
		return err
	}
	return os.WriteFile(filePath, data, 0644)
}

// SaveReports saves the JSON and HTML reports. An empty path skips that format.
// A failed run also gets an alert next to each report, named by AlertPath.
func SaveReports(run metrics.BenchmarkReport, jsonPath, htmlPath string) error {
	outputs := []struct {
		gen  ReportGenerator
		path string
	}{
		{&JSONReportGenerator{}, jsonPath},
		{&HTMLReportGenerator{}, htmlPath},
	}

	for _, out := range outputs {
		if out.path == "" {
			continue
		}
		if err := out.gen.SaveReportToFile(run, out.path); err != nil {
			return err
		}
		if run.Passed() {
			continue
		}
		alert, err := out.gen.GenerateAlertNotification(run)
		if err != nil {
			return err
		}
		if err := os.WriteFile(AlertPath(out.path), alert, 0644); err != nil {
			return err
		}
	}

	return nil
}

// AlertPath returns where the failure alert for a report path is written:
// report.json becomes report.alert.json.
func AlertPath(reportPath string) string {
	ext := filepath.Ext(reportPath)
	return strings.TrimSuffix(reportPath, ext) + ".alert" + ext
}

// ReportFromFilePath loads a JSON report from disk.
func ReportFromFilePath(filePath string) (metrics.BenchmarkReport, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return metrics.BenchmarkReport{}, err
	}
	var report metrics.BenchmarkReport
	if err := json.Unmarshal(data, &report); err != nil {
		return metrics.BenchmarkReport{}, err
	}
	return report, nil
}
