package cli

import (
	"fmt"
	"io"
	"strconv"

	"github.com/spf13/cobra"

	"reply-gateway/internal/domain"
)

func newIngestCommand(opts *options) *cobra.Command {
	var (
		lat, lng float64
		radius   int
		types    string
		keyword  string
	)
	cmd := &cobra.Command{
		Use:   "ingest",
		Short: "Populate the venue directory around a point",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if !domain.CoordinatesInRange(lat, lng) {
				return fmt.Errorf("invalid location %v,%v", lat, lng)
			}
			req := domain.IngestRequest{
				Location: domain.Location{Latitude: lat, Longitude: lng},
				Radius:   radius,
				Category: types,
				Keyword:  keyword,
			}
			return withRuntime(cmd.Context(), func(rt *runtime) error {
				res, err := rt.ingest.Ingest(cmd.Context(), req)
				if err != nil {
					return err
				}
				return render(cmd.OutOrStdout(), opts.output, res, func(w io.Writer) error {
					_, err := fmt.Fprintf(w, "%s\n%s\n%s\n",
						successStyle.Render("✓ Directory updated"),
						field("fetched", strconv.Itoa(res.Total)),
						field("saved", strconv.Itoa(res.Saved)))
					return err
				})
			})
		},
	}
	cmd.Flags().Float64Var(&lat, "lat", 0, "center latitude")
	cmd.Flags().Float64Var(&lng, "lng", 0, "center longitude")
	cmd.Flags().IntVar(&radius, "radius", 1000, "search radius in meters")
	cmd.Flags().StringVar(&types, "types", "050000", "AMap category codes")
	cmd.Flags().StringVar(&keyword, "keyword", "", "optional search keyword")
	_ = cmd.MarkFlagRequired("lat")
	_ = cmd.MarkFlagRequired("lng")
	return cmd
}
