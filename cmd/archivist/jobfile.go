package main

import (
	"context"
	"fmt"
	"io"
	"os"

	v1 "github.com/infracollect/archivist/apis/v1"
	"github.com/infracollect/archivist/internal/runner"
)

// readJobFile reads a job file, or standard input when name is "-".
// It returns the data and a printable name of its origin.
func readJobFile(_ context.Context, name string) ([]byte, string, error) {
	if name == "-" {
		data, err := io.ReadAll(os.Stdin)
		return data, "<stdin>", err
	}

	data, err := os.ReadFile(name)
	return data, name, err
}

// loadJob reads, validates and expands a job file.
func loadJob(ctx context.Context, name string, allowedEnv []string) (v1.BundleJob, error) {
	data, origin, err := readJobFile(ctx, name)
	if err != nil {
		return v1.BundleJob{}, fmt.Errorf("failed to read job file '%s': %w", name, err)
	}

	job, err := runner.ParseBundleJob(data)
	if err != nil {
		return v1.BundleJob{}, fmt.Errorf("job file '%s' is invalid: %w", origin, formatValidationError(err))
	}

	variables, err := runner.BuildVariables(job, allowedEnv)
	if err != nil {
		return v1.BundleJob{}, fmt.Errorf("failed to build variables: %w", err)
	}

	if err := runner.ExpandTemplates(&job, variables); err != nil {
		return v1.BundleJob{}, fmt.Errorf("failed to expand templates: %w", err)
	}

	return job, nil
}
