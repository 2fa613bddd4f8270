package cli

import (
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"reply-gateway/internal/domain"
)

type auditEntry struct {
	Timestamp time.Time `json:"timestamp" yaml:"timestamp"`
	CallerID  string    `json:"callerId" yaml:"callerId"`
	Success   bool      `json:"success" yaml:"success"`
	Cached    bool      `json:"cached" yaml:"cached"`
	Query     string    `json:"query" yaml:"query"`
	Result    string    `json:"result" yaml:"result"`
}

const maxResultWidth = 60

func newAuditCommand(opts *options) *cobra.Command {
	var (
		callerID string
		limit    int
	)
	cmd := &cobra.Command{
		Use:   "audit",
		Short: "List recent gateway attempts from the local audit store",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if limit <= 0 {
				return fmt.Errorf("invalid --limit %d", limit)
			}
			return withRuntime(cmd.Context(), func(rt *runtime) error {
				if rt.audit == nil {
					return errors.New("audit listing requires AUDIT_BACKEND=sqlite")
				}
				recs, err := rt.audit.RecentAttempts(cmd.Context(), callerID, limit)
				if err != nil {
					return err
				}
				entries := toEntries(recs)
				return render(cmd.OutOrStdout(), opts.output, entries, func(w io.Writer) error {
					return writeAuditText(w, entries)
				})
			})
		},
	}
	cmd.Flags().StringVar(&callerID, "caller", "", "caller id to list; empty lists anonymous attempts")
	cmd.Flags().IntVar(&limit, "limit", 20, "maximum number of attempts")
	return cmd
}

func toEntries(recs []domain.AuditRecord) []auditEntry {
	out := make([]auditEntry, 0, len(recs))
	for _, r := range recs {
		out = append(out, auditEntry{
			Timestamp: r.Timestamp.UTC(),
			CallerID:  r.CallerID,
			Success:   r.Success,
			Cached:    r.Cached,
			Query:     r.Query,
			Result:    r.Result,
		})
	}
	return out
}

func writeAuditText(w io.Writer, entries []auditEntry) error {
	if len(entries) == 0 {
		_, err := fmt.Fprintln(w, labelStyle.Render("No attempts recorded."))
		return err
	}
	if _, err := fmt.Fprintln(w, titleStyle.Render(fmt.Sprintf("%d attempt(s)", len(entries)))); err != nil {
		return err
	}
	for _, e := range entries {
		status := successStyle.Render("✓")
		if !e.Success {
			status = errorStyle.Render("✗")
		}
		if e.Cached {
			status += labelStyle.Render(" cached")
		}
		caller := e.CallerID
		if caller == "" {
			caller = "anonymous"
		}
		if _, err := fmt.Fprintf(w, "%s %s %s\n  %s\n  %s\n",
			status,
			labelStyle.Render(e.Timestamp.Format(time.RFC3339)),
			caller,
			field("query", e.Query),
			field("result", truncate(e.Result, maxResultWidth)),
		); err != nil {
			return err
		}
	}
	return nil
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "…"
}
