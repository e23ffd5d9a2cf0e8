// Package validation runs the startup checks: configuration presence,
// provider URL sanity, database directory writability, and provider
// connectivity, with colored progress output on the console.
package validation

import (
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"fin_backend/core"
	"fin_backend/fimcp"

	"github.com/fatih/color"
)

// StepStatus represents the status of a validation step.
type StepStatus int

const (
	StepPassed StepStatus = iota
	StepFailed
	StepWarning
	StepSkipped
)

// Step is one completed validation check.
type Step struct {
	Name    string
	Status  StepStatus
	Message string
	Error   error
	Latency time.Duration
}

// Result is the outcome of a full validation run.
type Result struct {
	Steps       []Step
	PassedSteps int
	FailedSteps int
	Warnings    int
	Duration    time.Duration
	Success     bool
}

// Suite runs startup validation with progress output.
type Suite struct {
	output       io.Writer
	httpClient   *http.Client
	showProgress bool
	skipNetwork  bool
}

// NewSuite creates a Suite writing progress to stdout.
func NewSuite() *Suite {
	return &Suite{
		output:       os.Stdout,
		httpClient:   &http.Client{Timeout: 10 * time.Second},
		showProgress: true,
	}
}

// WithOutput redirects progress output.
func (s *Suite) WithOutput(w io.Writer) *Suite {
	s.output = w
	return s
}

// WithHTTPClient overrides the client used for the connectivity check.
func (s *Suite) WithHTTPClient(client *http.Client) *Suite {
	s.httpClient = client
	return s
}

// WithShowProgress enables or disables progress output.
func (s *Suite) WithShowProgress(show bool) *Suite {
	s.showProgress = show
	return s
}

// WithSkipNetwork skips the provider connectivity check. Used for quick
// configuration-only validation.
func (s *Suite) WithSkipNetwork(skip bool) *Suite {
	s.skipNetwork = skip
	return s
}

// Validate runs every check in sequence and returns the aggregate result.
func (s *Suite) Validate() Result {
	start := time.Now()
	var steps []Step

	if s.showProgress {
		s.printHeader("Financial Agent Configuration Validation")
	}

	steps = append(steps, s.runStep("Provider URL", s.checkProviderURL))
	steps = append(steps, s.runStep("Ops Password", s.checkOpsPassword))
	steps = append(steps, s.runStep("Database Directory", s.checkDatabaseDir))
	steps = append(steps, s.checkSubjectStep())

	if s.skipNetwork || hasFailure(steps) {
		skipped := Step{
			Name:    "Provider Connectivity",
			Status:  StepSkipped,
			Message: "Skipped",
		}
		if hasFailure(steps) {
			skipped.Message = "Skipped due to configuration errors"
		}
		if s.showProgress {
			s.printStep(skipped)
		}
		steps = append(steps, skipped)
	} else {
		steps = append(steps, s.runStep("Provider Connectivity", s.checkConnectivity))
	}

	result := buildResult(steps, start)
	if s.showProgress {
		s.printSummary(result)
	}
	return result
}

func (s *Suite) checkProviderURL() (bool, string, error) {
	raw := os.Getenv("MCP_BASE_URL")
	if raw == "" {
		return false, "MCP_BASE_URL not configured", core.ErrMissingConfig("MCP_BASE_URL")
	}

	parsed, err := url.Parse(raw)
	if err != nil || parsed.Host == "" || (parsed.Scheme != "http" && parsed.Scheme != "https") {
		return false, "Provider URL invalid", core.ErrInvalidProviderURL(raw, "not an http(s) URL")
	}
	return true, "Provider URL valid", nil
}

func (s *Suite) checkOpsPassword() (bool, string, error) {
	if os.Getenv("OPS_PWD") == "" {
		return false, "OPS_PWD not configured", core.ErrMissingConfig("OPS_PWD")
	}
	return true, "Ops password configured", nil
}

func (s *Suite) checkDatabaseDir() (bool, string, error) {
	path := os.Getenv("DATABASE_PATH")
	if path == "" {
		path = "./financial_agent.db"
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return false, "Database directory not writable", core.ErrPersistence("directory creation", err)
	}

	probe := filepath.Join(dir, ".write_probe")
	if err := os.WriteFile(probe, []byte("ok"), 0644); err != nil {
		return false, "Database directory not writable", core.ErrPersistence("write check", err)
	}
	os.Remove(probe)

	return true, fmt.Sprintf("Writable (%s)", dir), nil
}

// checkSubjectStep warns rather than fails: unknown subjects are allowed,
// but the documented sandbox accounts are what the provider serves data for.
func (s *Suite) checkSubjectStep() Step {
	subject := os.Getenv("SUBJECT")
	if subject == "" {
		subject = "2222222222"
	}

	step := Step{Name: "Subject"}
	if fimcp.IsKnownSubject(subject) {
		step.Status = StepPassed
		step.Message = fimcp.DescribeSubject(subject)
	} else {
		step.Status = StepWarning
		step.Message = fmt.Sprintf("%q is not a documented sandbox subject", subject)
	}

	if s.showProgress {
		s.printStep(step)
	}
	return step
}

func (s *Suite) checkConnectivity() (bool, string, error) {
	base := os.Getenv("MCP_BASE_URL")

	start := time.Now()
	resp, err := s.httpClient.Get(base)
	if err != nil {
		return false, "Provider unreachable", core.ErrTransport("connectivity check", err)
	}
	resp.Body.Close()

	latency := time.Since(start).Round(time.Millisecond)
	return true, fmt.Sprintf("Reachable (latency: %v)", latency), nil
}

func (s *Suite) runStep(name string, fn func() (bool, string, error)) Step {
	if s.showProgress {
		fmt.Fprintf(s.output, "  ◌ %s...", name)
	}

	start := time.Now()
	passed, message, err := fn()

	step := Step{
		Name:    name,
		Message: message,
		Error:   err,
		Latency: time.Since(start),
	}
	if passed {
		step.Status = StepPassed
	} else {
		step.Status = StepFailed
	}

	if s.showProgress {
		s.printStep(step)
	}
	return step
}

func hasFailure(steps []Step) bool {
	for _, step := range steps {
		if step.Status == StepFailed {
			return true
		}
	}
	return false
}

func buildResult(steps []Step, start time.Time) Result {
	result := Result{
		Steps:    steps,
		Duration: time.Since(start),
		Success:  true,
	}
	for _, step := range steps {
		switch step.Status {
		case StepPassed:
			result.PassedSteps++
		case StepFailed:
			result.FailedSteps++
			result.Success = false
		case StepWarning:
			result.Warnings++
		}
	}
	return result
}

func (s *Suite) printHeader(title string) {
	fmt.Fprintln(s.output)
	color.New(color.FgCyan, color.Bold).Fprintf(s.output, "━━━ %s ━━━\n", title)
	fmt.Fprintln(s.output)
}

func (s *Suite) printStep(step Step) {
	var icon string
	var clr *color.Color

	switch step.Status {
	case StepPassed:
		icon = "✓"
		clr = color.New(color.FgGreen)
	case StepFailed:
		icon = "✗"
		clr = color.New(color.FgRed)
	case StepWarning:
		icon = "!"
		clr = color.New(color.FgYellow)
	default:
		icon = "○"
		clr = color.New(color.FgHiBlack)
	}

	fmt.Fprintf(s.output, "\r")
	clr.Fprintf(s.output, "  %s %s", icon, step.Name)
	if step.Message != "" {
		color.New(color.FgHiBlack).Fprintf(s.output, " - %s", step.Message)
	}
	fmt.Fprintln(s.output)

	if step.Status == StepFailed && step.Error != nil {
		color.New(color.FgRed).Fprintf(s.output, "    └─ %s\n", step.Error.Error())
	}
}

func (s *Suite) printSummary(result Result) {
	fmt.Fprintln(s.output)

	if result.Success {
		ok := color.New(color.FgGreen, color.Bold)
		ok.Fprintf(s.output, "━━━ Validation Passed ")
		color.New(color.FgHiBlack).Fprintf(s.output, "(%d checks passed in %v)",
			result.PassedSteps, result.Duration.Round(time.Millisecond))
		ok.Fprintln(s.output, " ━━━")
	} else {
		bad := color.New(color.FgRed, color.Bold)
		bad.Fprintf(s.output, "━━━ Validation Failed ")
		color.New(color.FgHiBlack).Fprintf(s.output, "(%d failed, %d passed)",
			result.FailedSteps, result.PassedSteps)
		bad.Fprintln(s.output, " ━━━")
	}
	fmt.Fprintln(s.output)
}
