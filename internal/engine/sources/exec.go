package sources

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/infracollect/archivist/internal/engine"
	"github.com/samber/lo"
	"go.uber.org/zap"
)

const (
	ExecKind = "exec"

	defaultExecTimeout = 30 * time.Second
)

// safeEnvVars are passed to every program. Anything else from the
// environment has to be listed in AllowedEnv.
var safeEnvVars = []string{"PATH", "HOME", "USER", "LANG", "LC_ALL", "TZ", "TMPDIR", "SHELL"}

type ExecConfig struct {
	Program    []string
	WorkingDir *string
	Timeout    *string
	Env        map[string]string
	AllowedEnv []string
}

// NewExecResolver runs a program when resolved and stores its standard output.
func NewExecResolver(id string, logger *zap.Logger, meta engine.EntryMetadata, cfg ExecConfig) (engine.Resolver, error) {
	if len(cfg.Program) == 0 {
		return nil, fmt.Errorf("program is required")
	}

	timeout := defaultExecTimeout
	if cfg.Timeout != nil {
		parsed, err := time.ParseDuration(*cfg.Timeout)
		if err != nil {
			return nil, fmt.Errorf("invalid timeout %q: %w", *cfg.Timeout, err)
		}
		timeout = parsed
	}

	var workingDir string
	if cfg.WorkingDir != nil {
		if filepath.IsAbs(*cfg.WorkingDir) {
			workingDir = *cfg.WorkingDir
		} else {
			cwd, err := os.Getwd()
			if err != nil {
				return nil, fmt.Errorf("failed to get working directory: %w", err)
			}
			workingDir = filepath.Join(cwd, *cfg.WorkingDir)
		}
	}

	if meta.Name == "" {
		meta.Name = id
	}

	env := buildEnv(cfg.AllowedEnv, cfg.Env)

	return engine.ResolverFunction(id, ExecKind, func(ctx context.Context) ([]engine.Entry, error) {
		ctx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()

		cmd := exec.CommandContext(ctx, cfg.Program[0], cfg.Program[1:]...)
		cmd.Dir = workingDir
		cmd.Env = env

		var stdout, stderr bytes.Buffer
		cmd.Stdout = &stdout
		cmd.Stderr = &stderr

		logger.Debug("invoking program",
			zap.String("entry", id),
			zap.Strings("program", cfg.Program),
			zap.Duration("timeout", timeout),
			zap.String("working_dir", cmd.Dir),
		)
		start := time.Now()
		err := cmd.Run()
		exitCode := -1
		if cmd.ProcessState != nil {
			exitCode = cmd.ProcessState.ExitCode()
		}
		logger.Debug("program finished",
			zap.String("entry", id),
			zap.Int("exit_code", exitCode),
			zap.Duration("duration", time.Since(start)),
			zap.Int("stdout_bytes", stdout.Len()),
		)

		if err != nil {
			stderrStr := strings.TrimSpace(stderr.String())
			if errors.Is(ctx.Err(), context.DeadlineExceeded) {
				return nil, fmt.Errorf("command timed out after %s: %s", timeout, stderrStr)
			}
			if stderrStr != "" {
				return nil, fmt.Errorf("command failed: %w: %s", err, stderrStr)
			}
			return nil, fmt.Errorf("command failed: %w", err)
		}

		return []engine.Entry{{Metadata: meta, Source: engine.FromBytes(stdout.Bytes())}}, nil
	}), nil
}

// buildEnv keeps the safe and allowed variables of the current environment
// and appends the configured ones.
func buildEnv(allowed []string, extra map[string]string) []string {
	keep := lo.Uniq(append(slices.Clone(safeEnvVars), allowed...))

	env := make([]string, 0, len(keep)+len(extra))
	for _, key := range keep {
		if value, ok := os.LookupEnv(key); ok {
			env = append(env, key+"="+value)
		}
	}
	keys := lo.Keys(extra)
	slices.Sort(keys)
	for _, key := range keys {
		env = append(env, key+"="+extra[key])
	}
	return env
}
