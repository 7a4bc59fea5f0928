// Package cmdutil provides helpers shared by the redpush commands.
package cmdutil

import (
	"fmt"
	"io"
	"os"

	"github.com/agentstation/redpush/internal/cmd/application"
	"github.com/agentstation/redpush/internal/cmd/output"
	"github.com/agentstation/redpush/pkg/declared"
	"github.com/agentstation/redpush/pkg/errors"
	"github.com/agentstation/redpush/pkg/resources"
	"github.com/agentstation/redpush/pkg/sync"
)

// Status symbols printed before the one-line summary.
const (
	SymbolSuccess = "✓"
	SymbolFailure = "✗"
	SymbolWarning = "!"
)

// Format returns the output format for app, detecting it when unset.
func Format(app application.Application) output.Format {
	return output.DetectFormat(app.OutputFormat())
}

// LoadDeclared reads and validates a declared file.
func LoadDeclared(path string) ([]resources.Query, error) {
	if path == "" {
		return nil, errors.NewValidationError("input", "", "an input file is required (-i FILE)")
	}
	return declared.Load(path)
}

// PrintResult writes the run report to w in the app's format. Table output
// is followed by the anomaly list and a one-line summary on stderr.
func PrintResult(w io.Writer, app application.Application, res *sync.Result) error {
	format := Format(app)
	report := output.NewReport(res.Results()...)

	if err := output.NewFormatter(format).Format(w, report); err != nil {
		return errors.WrapIO("write", "report", err)
	}
	if format != output.FormatTable {
		return nil
	}

	if len(report.Anomalies) > 0 {
		fmt.Fprintln(w)
		if err := output.NewFormatter(format).Format(w, output.Anomalies(report.Anomalies)); err != nil {
			return errors.WrapIO("write", "anomalies", err)
		}
	}

	symbol := SymbolSuccess
	switch {
	case !res.IsSuccess():
		symbol = SymbolFailure
	case len(report.Anomalies) > 0:
		symbol = SymbolWarning
	}
	fmt.Fprintf(os.Stderr, "%s %s\n", symbol, res.Summary())
	return nil
}

// ResultError turns per-resource failures into the command's error so the
// process exits non-zero.
func ResultError(operation string, res *sync.Result) error {
	if res == nil || res.IsSuccess() {
		return nil
	}
	errs := res.Errors()
	return fmt.Errorf("%s finished with %d failed resources: %w", operation, len(errs), errors.Join(errs...))
}

// Hint suggests a next step for err, or returns "" when there is none.
func Hint(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.IsAPIKeyError(err):
		return "check the API key (--api-key, REDPUSH_API_KEY or api_key in the config file)"
	case errors.IsRateLimited(err):
		return "the server is throttling requests; lower rate_limit in the config file"
	case errors.IsTimeout(err):
		return "the server did not answer in time; raise timeout in the config file"
	case errors.IsCanceled(err):
		return "the run was interrupted before it finished"
	case errors.IsRejected(err):
		return "the server refused the change; check the resource in the Redash UI"
	case errors.IsServerUnavailable(err):
		return "the server failed; check its health and run again"
	case errors.IsNotFound(err):
		return "check --redash-url and the paths given on the command line"
	case errors.IsValidationError(err):
		return "run with --help for usage"
	}
	return ""
}
