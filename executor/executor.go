package executor

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"

	"github.com/sagarc03/userweb"
)

const (
	defaultTimeout   = 30 * time.Second
	defaultMaxOutput = 16 << 20
	defaultWaitDelay = 2 * time.Second
	maxStderr        = 64 << 10
)

// Reserved query keys that control listings and never reach handlers.
var reservedQueryKeys = map[string]struct{}{"p": {}, "n": {}}

// Spec is an explicit description of one process run.
type Spec struct {
	Path  string
	Args  []string
	Env   []string
	Stdin io.Reader
	Dir   string
}

// Result holds what a finished process produced.
type Result struct {
	Stdout   []byte
	Stderr   []byte
	ExitCode int
	Duration time.Duration
}

// Config holds Invoker configuration.
type Config struct {
	Timeout   time.Duration // per-run limit (default: 30s)
	MaxOutput int64         // standard output limit in bytes (default: 16 MiB)
	WaitDelay time.Duration // time allowed for pipes to drain after kill (default: 2s)
}

// Invoker runs handler processes. It is safe for concurrent use.
type Invoker struct {
	cfg Config
}

func NewInvoker(cfg Config) *Invoker {
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.MaxOutput <= 0 {
		cfg.MaxOutput = defaultMaxOutput
	}
	if cfg.WaitDelay <= 0 {
		cfg.WaitDelay = defaultWaitDelay
	}
	return &Invoker{cfg: cfg}
}

// Invoke assembles the process specification for a handler and runs it.
func (i *Invoker) Invoke(ctx context.Context, inv userweb.Invocation) (userweb.Output, error) {
	spec, err := i.Build(inv)
	if err != nil {
		return userweb.Output{}, fmt.Errorf("invoke %s: %w", inv.Target.Path, err)
	}

	res, err := i.Run(ctx, spec)
	if err != nil {
		return userweb.Output{}, fmt.Errorf("invoke %s: %w", inv.Target.Path, err)
	}

	return userweb.Output{
		Body:        res.Stdout,
		ContentType: mimetype.Detect(res.Stdout).String(),
	}, nil
}

// Build turns an invocation into a process specification.
func (i *Invoker) Build(inv userweb.Invocation) (Spec, error) {
	allow, err := LoadAllowList(inv.Site, inv.Target.AllowedVariables)
	if err != nil {
		return Spec{}, err
	}

	spec := Spec{
		Path: inv.Target.Path,
		Args: []string{inv.Target.Path},
		Dir:  filepath.Dir(inv.Target.Path),
	}

	switch inv.Target.Kind {
	case userweb.KindIndexExecutable:
		spec.Env = allow.Environment(queryVariables(inv.Query))

	case userweb.KindFormExecutable:
		switch inv.Payload.Kind {
		case userweb.PayloadURLEncoded:
			spec.Env = allow.Environment(inv.Payload.Values)
		case userweb.PayloadPlaintext:
			spec.Args = append(spec.Args, inv.Payload.Text)
		case userweb.PayloadMultipart:
			spec.Stdin = inv.Payload.Stream
		}

	default:
		return Spec{}, fmt.Errorf("build: %s is not an executable target", inv.Target.Kind)
	}

	if spec.Env == nil {
		spec.Env = []string{}
	}

	return spec, nil
}

func queryVariables(query url.Values) map[string]string {
	vars := userweb.FirstValues(query)
	for k := range reservedQueryKeys {
		delete(vars, k)
	}
	return vars
}

// Run executes spec and waits for it to finish.
//
// The process never inherits the server environment: a nil Spec.Env is treated as empty.
// Cancelling ctx, or exceeding the configured timeout, kills the whole process group.
func (i *Invoker) Run(ctx context.Context, spec Spec) (Result, error) {
	if err := ctx.Err(); err != nil {
		return Result{}, fmt.Errorf("%w: %w", userweb.ErrHandlerExecutionFailed, err)
	}

	ctx, cancel := context.WithTimeout(ctx, i.cfg.Timeout)
	defer cancel()

	stdout := &limitedBuffer{limit: i.cfg.MaxOutput, onOverflow: cancel}
	stderr := &limitedBuffer{limit: maxStderr}

	cmd := exec.CommandContext(ctx, spec.Path, spec.Args...)
	cmd.Env = spec.Env
	if cmd.Env == nil {
		cmd.Env = []string{}
	}
	cmd.Dir = spec.Dir
	cmd.Stdin = spec.Stdin
	cmd.Stdout = stdout
	cmd.Stderr = stderr
	cmd.WaitDelay = i.cfg.WaitDelay
	isolate(cmd)

	start := time.Now()
	runErr := cmd.Run()
	res := Result{
		Stdout:   stdout.Bytes(),
		Stderr:   stderr.Bytes(),
		ExitCode: cmd.ProcessState.ExitCode(),
		Duration: time.Since(start),
	}

	if len(res.Stderr) > 0 {
		slog.WarnContext(ctx, "handler wrote to stderr",
			"path", spec.Path,
			"stderr", strings.TrimSpace(string(res.Stderr)),
			"truncated", stderr.overflow)
	}

	switch {
	case stdout.overflow:
		return res, fmt.Errorf("%w: output exceeds %d bytes", userweb.ErrHandlerExecutionFailed, i.cfg.MaxOutput)
	case errors.Is(ctx.Err(), context.DeadlineExceeded):
		return res, fmt.Errorf("%w: timed out after %s", userweb.ErrHandlerExecutionFailed, i.cfg.Timeout)
	case ctx.Err() != nil:
		return res, fmt.Errorf("%w: %w", userweb.ErrHandlerExecutionFailed, ctx.Err())
	case runErr != nil:
		var exitErr *exec.ExitError
		if errors.As(runErr, &exitErr) {
			return res, fmt.Errorf("%w: exit status %d", userweb.ErrHandlerExecutionFailed, exitErr.ExitCode())
		}
		return res, fmt.Errorf("%w: %w", userweb.ErrHandlerExecutionFailed, runErr)
	}

	slog.DebugContext(ctx, "handler finished", "path", spec.Path, "bytes", len(res.Stdout), "duration", res.Duration)

	return res, nil
}

// limitedBuffer keeps at most limit bytes and silently discards the rest, so a noisy
// process is never blocked on a full pipe. onOverflow fires once when the limit is hit.
type limitedBuffer struct {
	buf        bytes.Buffer
	limit      int64
	overflow   bool
	onOverflow func()
}

func (b *limitedBuffer) Write(p []byte) (int, error) {
	room := b.limit - int64(b.buf.Len())
	if int64(len(p)) > room {
		if room > 0 {
			b.buf.Write(p[:room])
		}
		if !b.overflow {
			b.overflow = true
			if b.onOverflow != nil {
				b.onOverflow()
			}
		}
		return len(p), nil
	}
	return b.buf.Write(p)
}

func (b *limitedBuffer) Bytes() []byte {
	return b.buf.Bytes()
}
