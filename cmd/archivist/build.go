package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	v1 "github.com/infracollect/archivist/apis/v1"
	"github.com/infracollect/archivist/internal/engine"
	"github.com/infracollect/archivist/internal/runner"
	"github.com/urfave/cli/v3"
	"go.uber.org/zap"
)

var buildCommand = &cli.Command{
	Name:  "build",
	Usage: "Build the archive described by a job file",
	Flags: []cli.Flag{
		allowedEnvFlag,
		&cli.BoolFlag{
			Name:    "force",
			Aliases: []string{"f"},
			Usage:   "Write the archive to standard output even if it is a terminal",
		},
		&cli.DurationFlag{
			Name:  "stall-warning",
			Usage: "Warn about entries that take longer than this to encode (0 disables)",
			Value: time.Minute,
		},
	},
	Arguments: []cli.Argument{
		&cli.StringArg{
			Name:      "job",
			UsageText: "The job file to build, or - for standard input",
		},
	},
	Action: func(ctx context.Context, command *cli.Command) (err error) {
		logger := getLogger(ctx)

		jobFilename := command.StringArg("job")
		if jobFilename == "" {
			return fmt.Errorf("no job file provided")
		}

		allowedEnv := command.StringSlice("allowed-env")
		job, err := loadJob(ctx, jobFilename, allowedEnv)
		if err != nil {
			return err
		}

		if writesToStdout(job.Spec.Output) && stdoutIsTerminal() && !command.Bool("force") {
			return fmt.Errorf("refusing to write a binary archive to a terminal, redirect the output or use --force")
		}

		r, err := runner.New(ctx, logger.Named("runner"), job, runner.Options{
			AllowedEnv:   allowedEnv,
			StallWarning: command.Duration("stall-warning"),
		})
		if err != nil {
			return fmt.Errorf("failed to create runner: %w", err)
		}
		defer func() {
			if closeErr := r.Close(); closeErr != nil {
				if errors.Is(closeErr, engine.ErrPrematureTermination) {
					logger.Error("archive is incomplete", zap.String("archive", r.ArchiveName()))
				}
				err = errors.Join(err, closeErr)
			}
		}()

		result, err := r.Run(ctx)
		if err != nil {
			if errors.Is(ctx.Err(), context.Canceled) {
				logger.Warn("build interrupted", zap.String("archive", result.Archive))
			}
			return fmt.Errorf("failed to build %s: %w", result.Archive, err)
		}

		if isInteractive(ctx) {
			logger.Info("archive ready",
				zap.String("archive", result.Archive),
				zap.String("sink", result.Sink),
				zap.Int("entries", result.Entries),
				zap.Int64("bytes", result.Bytes),
			)
		}

		return nil
	},
}

func writesToStdout(output *v1.OutputSpec) bool {
	return output == nil || output.Sink == nil || output.Sink.Stdout != nil
}
