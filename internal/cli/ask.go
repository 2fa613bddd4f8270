package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"reply-gateway/internal/domain"
	"reply-gateway/internal/usecase"
)

type askResult struct {
	Reply  string `json:"reply" yaml:"reply"`
	Source string `json:"source" yaml:"source"`
}

func newAskCommand(opts *options) *cobra.Command {
	var (
		callerID string
		history  string
		lat, lng float64
	)
	cmd := &cobra.Command{
		Use:   "ask <message>",
		Short: "Send one message through the gateway",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			turns, err := parseHistoryFlag(history)
			if err != nil {
				return err
			}
			in := usecase.ReplyInput{
				Message:  strings.Join(args, " "),
				CallerID: callerID,
				History:  turns,
			}
			if cmd.Flags().Changed("lat") || cmd.Flags().Changed("lng") {
				if !domain.CoordinatesInRange(lat, lng) {
					return fmt.Errorf("invalid location %v,%v", lat, lng)
				}
				in.Location = &domain.Location{Latitude: lat, Longitude: lng}
			}

			return withRuntime(cmd.Context(), func(rt *runtime) error {
				out := rt.replies.Reply(cmd.Context(), in)
				res := askResult{Reply: out.Reply, Source: out.Source}
				return render(cmd.OutOrStdout(), opts.output, res, func(w io.Writer) error {
					_, err := fmt.Fprintf(w, "%s\n%s\n%s\n",
						titleStyle.Render("Reply"),
						replyStyle.Render(res.Reply),
						field("source", res.Source))
					return err
				})
			})
		},
	}
	cmd.Flags().StringVar(&callerID, "caller", "", "caller id recorded in the audit log")
	cmd.Flags().StringVar(&history, "history", "", `prior turns as JSON, e.g. '[{"role":"user","content":"hi"}]'`)
	cmd.Flags().Float64Var(&lat, "lat", 0, "caller latitude")
	cmd.Flags().Float64Var(&lng, "lng", 0, "caller longitude")
	return cmd
}

func parseHistoryFlag(raw string) ([]domain.RawTurn, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, nil
	}
	var turns []domain.RawTurn
	if err := json.Unmarshal([]byte(raw), &turns); err != nil {
		return nil, fmt.Errorf("invalid --history: %w", err)
	}
	return turns, nil
}
