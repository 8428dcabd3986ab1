package pipeline

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"articulate/internal/logging"
	"articulate/internal/refnorm"
)

// ConverterError reports an external converter that exited non-zero. The
// converter's own stderr is preserved verbatim: a failure here means our
// output was defective, and its diagnostic is the evidence.
type ConverterError struct {
	Name   string
	Stderr string
	Err    error
}

func (e *ConverterError) Error() string {
	msg := fmt.Sprintf("converter %s failed: %v", e.Name, e.Err)
	if e.Stderr != "" {
		msg += "\n" + strings.TrimRight(e.Stderr, "\n")
	}
	return msg
}

func (e *ConverterError) Unwrap() error { return e.Err }

func (e *ConverterError) Kind() string { return "converter-failed" }

// ConverterTimeoutError reports a converter that exceeded its per-invocation
// deadline and was killed.
type ConverterTimeoutError struct {
	Name    string
	Timeout time.Duration
}

func (e *ConverterTimeoutError) Error() string {
	return fmt.Sprintf("converter %s timed out after %s", e.Name, e.Timeout)
}

func (e *ConverterTimeoutError) Kind() string { return "converter-timeout" }

// runConverters invokes the configured external converters in order:
// description → physics XML, then physics XML → scene. They only run once
// every local write for the object is on disk.
func runConverters(ctx context.Context, opts Options, res *Result) error {
	if len(opts.ToMJCF) == 0 {
		return nil
	}

	res.MJCFPath = strings.TrimSuffix(res.URDFPath, ".urdf") + ".xml"
	if err := invoke(ctx, opts, res.Dir, opts.ToMJCF, res.URDFPath, res.MJCFPath); err != nil {
		return err
	}
	// The physics converter embeds absolute mesh paths; the scene converter
	// needs them relative to the XML file.
	if _, err := refnorm.FixMJCFPaths(res.MJCFPath); err != nil {
		return err
	}

	if len(opts.ToScene) == 0 {
		return nil
	}
	res.ScenePath = strings.TrimSuffix(res.URDFPath, ".urdf") + ".scene.xml"
	return invoke(ctx, opts, res.Dir, opts.ToScene, res.MJCFPath, res.ScenePath)
}

// invoke runs one converter as argv + input + output under the per-invocation
// timeout, working in the object directory.
func invoke(ctx context.Context, opts Options, dir string, argv []string, input, output string) error {
	timeout := opts.ConverterTimeout
	if timeout <= 0 {
		timeout = DefaultConverterTimeout
	}
	cctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	name := argv[0]
	args := append(append([]string{}, argv[1:]...), input, output)

	log := logging.New("pipeline")
	log.Debug("invoking converter", "name", name, "input", input, "output", output)

	cmd := exec.CommandContext(cctx, name, args...)
	cmd.Dir = dir
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	err := cmd.Run()
	if err == nil {
		return nil
	}
	if errors.Is(cctx.Err(), context.DeadlineExceeded) {
		return &ConverterTimeoutError{Name: name, Timeout: timeout}
	}
	return &ConverterError{Name: name, Stderr: stderr.String(), Err: err}
}
