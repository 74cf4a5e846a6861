package main

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/infracollect/archivist/internal/runner"
	"github.com/urfave/cli/v3"
	"go.uber.org/zap"
)

var allowedEnvFlag = &cli.StringSliceFlag{
	Name:  "allowed-env",
	Usage: "Environment variables allowed in job configuration and exec entries (can be repeated)",
}

var validateCommand = &cli.Command{
	Name:  "validate",
	Usage: "Validate a job file without building the archive",
	Flags: []cli.Flag{
		allowedEnvFlag,
	},
	Arguments: []cli.Argument{
		&cli.StringArg{
			Name:      "job",
			UsageText: "The job file to validate, or - for standard input",
		},
	},
	Action: func(ctx context.Context, command *cli.Command) error {
		logger := getLogger(ctx)

		jobFilename := command.StringArg("job")
		if jobFilename == "" {
			return fmt.Errorf("no job file provided")
		}

		logger = logger.With(zap.String("job_filename", jobFilename))
		logger.Debug("validating job file")

		allowedEnv := command.StringSlice("allowed-env")
		job, err := loadJob(ctx, jobFilename, allowedEnv)
		if err != nil {
			return err
		}

		if err := runner.Check(ctx, logger, job, runner.Options{AllowedEnv: allowedEnv}); err != nil {
			return fmt.Errorf("job file '%s' is invalid: %w", jobFilename, err)
		}

		_, _ = fmt.Fprintf(command.Root().Writer, "✓ Job file '%s' is valid (%d entries)\n", jobFilename, len(job.Spec.Entries))
		return nil
	},
}

func formatValidationError(err error) error {
	var validationErrs validator.ValidationErrors
	if errors.As(err, &validationErrs) {
		var sb strings.Builder
		sb.WriteString(fmt.Sprintf("job file has %d validation error(s):", len(validationErrs)))
		for _, fe := range validationErrs {
			sb.WriteString(fmt.Sprintf("\n  • %s: failed '%s' validation", fe.Namespace(), fe.Tag()))
			if fe.Param() != "" {
				sb.WriteString(fmt.Sprintf(" (param: %s)", fe.Param()))
			}
		}
		return errors.New(sb.String())
	}
	return err
}
