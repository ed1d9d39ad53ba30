// Package main implements digestctl, a command line client for submitting
// news digest jobs and following them to completion.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/phrazzld/digest-api/internal/api"
	"github.com/phrazzld/digest-api/internal/domain"
	"github.com/urfave/cli/v3"
)

const (
	defaultServerURL    = "http://localhost:8080"
	defaultPollInterval = 2 * time.Second
	defaultWaitTimeout  = 5 * time.Minute
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newApp(nil).Run(ctx, os.Args); err != nil {
		log.Fatal(err)
	}
}

// newApp builds the command tree. A nil httpClient uses http.DefaultClient.
func newApp(httpClient *http.Client) *cli.Command {
	client := func(cmd *cli.Command) *apiClient {
		return newAPIClient(cmd.Root().String("server"), httpClient)
	}

	return &cli.Command{
		Name:  "digestctl",
		Usage: "Submit news digest jobs and check their status",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "server",
				Usage:   "base URL of the digest API",
				Value:   defaultServerURL,
				Sources: cli.EnvVars("DIGEST_SERVER_URL"),
			},
		},
		Commands: []*cli.Command{
			{
				Name:      "submit",
				Usage:     "Start a digest job from a JSON request file",
				ArgsUsage: "[file]",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "wait",
						Usage: "wait for the job to finish and print the final status",
					},
					&cli.DurationFlag{
						Name:  "interval",
						Usage: "poll interval used with --wait",
						Value: defaultPollInterval,
					},
				},
				Action: func(ctx context.Context, cmd *cli.Command) error {
					return submitAction(ctx, cmd, client(cmd))
				},
			},
			{
				Name:      "status",
				Usage:     "Print the current status of a job",
				ArgsUsage: "<job-id>",
				Action: func(ctx context.Context, cmd *cli.Command) error {
					return statusAction(ctx, cmd, client(cmd))
				},
			},
			{
				Name:      "wait",
				Usage:     "Poll a job until it completes or fails",
				ArgsUsage: "<job-id>",
				Flags: []cli.Flag{
					&cli.DurationFlag{
						Name:  "interval",
						Usage: "poll interval",
						Value: defaultPollInterval,
					},
					&cli.DurationFlag{
						Name:  "timeout",
						Usage: "give up after this long",
						Value: defaultWaitTimeout,
					},
				},
				Action: func(ctx context.Context, cmd *cli.Command) error {
					return waitAction(ctx, cmd, client(cmd))
				},
			},
		},
	}
}

// submitAction posts the request read from the file argument, or stdin when
// the argument is missing or "-".
func submitAction(ctx context.Context, cmd *cli.Command, c *apiClient) error {
	var body io.Reader = cmd.Root().Reader
	if path := cmd.Args().First(); path != "" && path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return fmt.Errorf("failed to open request file: %w", err)
		}
		defer func() { _ = f.Close() }()
		body = f
	}

	resp, err := c.Submit(ctx, body)
	if err != nil {
		return err
	}

	if !cmd.Bool("wait") {
		_, err = fmt.Fprintln(cmd.Root().Writer, resp.JobID)
		return err
	}

	return waitAndPrint(ctx, cmd, c, resp.JobID, cmd.Duration("interval"))
}

func statusAction(ctx context.Context, cmd *cli.Command, c *apiClient) error {
	jobID, err := jobIDArg(cmd)
	if err != nil {
		return err
	}

	status, err := c.Status(ctx, jobID)
	if err != nil {
		return err
	}
	return printJSON(cmd.Root().Writer, status)
}

func waitAction(ctx context.Context, cmd *cli.Command, c *apiClient) error {
	jobID, err := jobIDArg(cmd)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, cmd.Duration("timeout"))
	defer cancel()

	return waitAndPrint(ctx, cmd, c, jobID, cmd.Duration("interval"))
}

// waitAndPrint polls until the job leaves processing, prints the final
// record and exits non-zero for a failed job.
func waitAndPrint(ctx context.Context, cmd *cli.Command, c *apiClient, jobID string, interval time.Duration) error {
	status, err := pollUntilDone(ctx, c, jobID, interval)
	if err != nil {
		return err
	}

	if err := printJSON(cmd.Root().Writer, status); err != nil {
		return err
	}
	if status.Status == string(domain.JobStatusFailed) {
		return cli.Exit(fmt.Sprintf("job %s failed: %s", jobID, status.Error), 1)
	}
	return nil
}

func pollUntilDone(ctx context.Context, c *apiClient, jobID string, interval time.Duration) (*api.JobStatusResponse, error) {
	if interval <= 0 {
		interval = defaultPollInterval
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		status, err := c.Status(ctx, jobID)
		if err != nil {
			return nil, err
		}
		if status.Status != string(domain.JobStatusProcessing) {
			return status, nil
		}

		select {
		case <-ctx.Done():
			if errors.Is(ctx.Err(), context.DeadlineExceeded) {
				return nil, fmt.Errorf("job %s still processing: %w", jobID, ctx.Err())
			}
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}

func jobIDArg(cmd *cli.Command) (string, error) {
	jobID := cmd.Args().First()
	if jobID == "" {
		return "", cli.Exit("a job id is required", 2)
	}
	return jobID, nil
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
