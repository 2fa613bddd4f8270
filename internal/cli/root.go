// Package cli implements replyctl, an operator tool for exercising the
// gateway from a terminal.
package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"reply-gateway/internal/app"
	"reply-gateway/internal/config"
	"reply-gateway/internal/domain"
	"reply-gateway/internal/logging"
	"reply-gateway/internal/usecase"
)

type Replier interface {
	Reply(ctx context.Context, in usecase.ReplyInput) usecase.ReplyOutput
}

type Ingester interface {
	Ingest(ctx context.Context, req domain.IngestRequest) (domain.IngestResult, error)
}

type AuditLog interface {
	RecentAttempts(ctx context.Context, callerID string, limit int) ([]domain.AuditRecord, error)
}

// runtime is the slice of the gateway the commands use. audit is nil unless
// the sqlite audit backend is configured.
type runtime struct {
	replies Replier
	ingest  Ingester
	audit   AuditLog
	close   func() error
}

var openRuntime = func(ctx context.Context) (*runtime, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	logger, err := logging.New(cfg.Log, os.Stderr)
	if err != nil {
		return nil, err
	}
	slog.SetDefault(logger)

	a, err := app.Build(ctx, cfg)
	if err != nil {
		return nil, err
	}
	rt := &runtime{replies: a.Replies, ingest: a.Ingest, close: a.Close}
	if a.AuditLog != nil {
		rt.audit = a.AuditLog
	}
	return rt, nil
}

type options struct {
	output string
}

func withRuntime(ctx context.Context, fn func(rt *runtime) error) error {
	rt, err := openRuntime(ctx)
	if err != nil {
		return fmt.Errorf("failed to start gateway: %w", err)
	}
	runErr := fn(rt)
	if rt.close != nil {
		if err := rt.close(); err != nil && runErr == nil {
			runErr = err
		}
	}
	return runErr
}

func NewRootCommand() *cobra.Command {
	opts := &options{}
	cmd := &cobra.Command{
		Use:   "replyctl",
		Short: "Ask the reply gateway, populate its directory and inspect its audit log",
		Long: `replyctl drives the reply gateway locally using the same configuration
as the service (environment variables and an optional .env file).

Examples:
  replyctl ask "附近有什么好吃的" --lat 39.9 --lng 116.4
  replyctl ingest --lat 39.9 --lng 116.4 --radius 1500
  replyctl fingerprint "hello" --history '[{"role":"user","content":"hi"}]'
  replyctl audit --caller u-1 -o yaml`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(*cobra.Command, []string) error {
			switch opts.output {
			case outputText, outputJSON, outputYAML:
				return nil
			default:
				return fmt.Errorf("invalid --output %q, must be text, json or yaml", opts.output)
			}
		},
	}
	cmd.PersistentFlags().StringVarP(&opts.output, "output", "o", outputText, "output format: text, json or yaml")

	cmd.AddCommand(
		newAskCommand(opts),
		newIngestCommand(opts),
		newFingerprintCommand(opts),
		newAuditCommand(opts),
	)
	return cmd
}

// Execute runs replyctl and returns the process exit code.
func Execute() int {
	return run(os.Args[1:], os.Stdout, os.Stderr)
}

func run(args []string, stdout, stderr io.Writer) int {
	cmd := NewRootCommand()
	cmd.SetArgs(args)
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)
	if err := cmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(stderr, errorStyle.Render("Error: "+err.Error()))
		return 1
	}
	return 0
}
