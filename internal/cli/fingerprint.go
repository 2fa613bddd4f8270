package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"reply-gateway/internal/usecase"
)

type fingerprintResult struct {
	Key string `json:"key" yaml:"key"`
}

// newFingerprintCommand prints the cache key the gateway would use. It does
// not need any backing services.
func newFingerprintCommand(opts *options) *cobra.Command {
	var (
		history string
		window  int
	)
	cmd := &cobra.Command{
		Use:   "fingerprint <message>",
		Short: "Print the reply cache key for a message and history",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			turns, err := parseHistoryFlag(history)
			if err != nil {
				return err
			}
			res := fingerprintResult{Key: usecase.CacheKey(strings.Join(args, " "), turns, window)}
			return render(cmd.OutOrStdout(), opts.output, res, func(w io.Writer) error {
				_, err := fmt.Fprintln(w, res.Key)
				return err
			})
		},
	}
	cmd.Flags().StringVar(&history, "history", "", "prior turns as JSON")
	cmd.Flags().IntVar(&window, "window", 2, "number of trailing history entries in the key")
	return cmd
}
