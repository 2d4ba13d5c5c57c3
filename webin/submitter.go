// Package webin drives the archive's command-line submitter.
//
// The submitter is an external Java program. Each invocation validates or
// submits one artifact described by a manifest inside a staging directory
// and leaves a receipt at a deterministic path under the output directory.
package webin

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/synum-dev/synum/api"
	"github.com/synum-dev/synum/auth"
	"github.com/synum-dev/synum/internal/errors"
)

// Context is the submitter context of an artifact.
type Context string

const (
	ContextReads  Context = "reads"
	ContextGenome Context = "genome"
)

// receiptElement names the receipt element carrying the artifact accession.
func (c Context) receiptElement() string {
	if c == ContextReads {
		return "RUN"
	}
	return "ANALYSIS"
}

// Request describes one artifact submission.
type Request struct {
	Context Context
	// Name is the manifest NAME or ASSEMBLYNAME; it determines the receipt path.
	Name      string
	InputDir  string
	OutputDir string
	Manifest  string
}

// Result is the outcome of a successful submission.
type Result struct {
	ReceiptPath string
	Accession   string
	Receipt     *api.Receipt
}

// Submitter validates and submits artifacts.
type Submitter interface {
	Validate(ctx context.Context, req Request) error
	Submit(ctx context.Context, req Request) (Result, error)
}

// ReceiptPath returns where the submitter writes the receipt for req.
func ReceiptPath(outputDir string, c Context, name string) string {
	return filepath.Join(outputDir, string(c), strings.ReplaceAll(name, " ", "_"), "submit", "receipt.xml")
}

// JavaSubmitter runs the submitter JAR with a Java runtime.
type JavaSubmitter struct {
	Java        string
	Jar         string
	Credentials auth.Credentials
	Test        bool
	Logger      *slog.Logger
}

// Option configures a JavaSubmitter.
type Option func(*JavaSubmitter)

// WithJava sets the Java executable.
func WithJava(path string) Option {
	return func(s *JavaSubmitter) {
		s.Java = path
	}
}

// WithTest selects the archive's test service.
func WithTest(test bool) Option {
	return func(s *JavaSubmitter) {
		s.Test = test
	}
}

// WithLogger sets the logger receiving submitter output.
func WithLogger(logger *slog.Logger) Option {
	return func(s *JavaSubmitter) {
		s.Logger = logger
	}
}

// New creates a JavaSubmitter for the JAR at jar.
func New(jar string, creds auth.Credentials, opts ...Option) *JavaSubmitter {
	s := &JavaSubmitter{
		Java:        "java",
		Jar:         jar,
		Credentials: creds,
		Test:        true,
		Logger:      slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Check verifies that the JAR exists and Java is on PATH.
func (s *JavaSubmitter) Check() error {
	if _, err := os.Stat(s.Jar); err != nil {
		return errors.Preflight("submitter JAR %s not found (run download_webin)", s.Jar)
	}
	if _, err := exec.LookPath(s.Java); err != nil {
		return errors.Preflight("java runtime %q not found in PATH", s.Java)
	}
	return nil
}

// Validate runs the submitter in -validate mode.
func (s *JavaSubmitter) Validate(ctx context.Context, req Request) error {
	return s.run(ctx, "-validate", req)
}

// Submit runs the submitter in -submit mode and reads the receipt.
func (s *JavaSubmitter) Submit(ctx context.Context, req Request) (Result, error) {
	if err := s.run(ctx, "-submit", req); err != nil {
		return Result{}, err
	}
	path := ReceiptPath(req.OutputDir, req.Context, req.Name)
	receipt, err := api.ReadReceipt(path)
	if err != nil {
		return Result{}, errors.New(fmt.Errorf("%s: %w", req.Name, err)).
			Category(errors.CategorySubmission).
			Context("artifact", req.Name).
			Build()
	}
	acc, ok := receipt.First(req.Context.receiptElement())
	if !ok {
		return Result{}, errors.Newf("%s: receipt %s has no %s accession", req.Name, path, req.Context.receiptElement()).
			Category(errors.CategorySubmission).
			Context("artifact", req.Name).
			Build()
	}
	return Result{ReceiptPath: path, Accession: acc, Receipt: receipt}, nil
}

func (s *JavaSubmitter) args(mode string, req Request) []string {
	args := []string{
		"-jar", s.Jar,
		mode,
		"-username", s.Credentials.Username,
		"-password", s.Credentials.Password,
		"-inputdir", req.InputDir,
		"-outputdir", req.OutputDir,
		"-context", string(req.Context),
		"-manifest", req.Manifest,
	}
	if s.Test {
		args = append(args, "-test")
	}
	return args
}

func (s *JavaSubmitter) run(ctx context.Context, mode string, req Request) error {
	if err := os.MkdirAll(req.OutputDir, 0o755); err != nil {
		return errors.IO(fmt.Errorf("creating submitter output dir: %w", err), req.OutputDir)
	}

	cmd := exec.CommandContext(ctx, s.Java, s.args(mode, req)...)
	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &out

	s.Logger.Info("running submitter", "artifact", req.Name, "mode", strings.TrimPrefix(mode, "-"), "context", req.Context)
	err := cmd.Run()
	for _, line := range strings.Split(strings.TrimSpace(out.String()), "\n") {
		if line != "" {
			s.Logger.Debug("submitter", "artifact", req.Name, "line", line)
		}
	}
	if err != nil {
		return errors.Newf("submitter %s failed for %s: %v: %s", strings.TrimPrefix(mode, "-"), req.Name, err, tail(out.String(), 5)).
			Category(errors.CategorySubmission).
			Context("artifact", req.Name).
			Context("manifest", req.Manifest).
			Build()
	}
	return nil
}

// tail returns the last n non-empty lines of s.
func tail(s string, n int) string {
	lines := strings.Split(strings.TrimSpace(s), "\n")
	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	return strings.Join(lines, " | ")
}
