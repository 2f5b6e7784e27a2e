package cli

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/njprem/regdocs/internal/util"
)

func newTokenCmd() *cobra.Command {
	var (
		secret  string
		subject string
		ttl     time.Duration
	)
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Mint an admin bearer token",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if secret == "" {
				return errors.New("--secret or ADMIN_JWT_SECRET is required")
			}
			token, expires, err := util.NewJWTManager(secret, ttl).Generate(subject)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			if !expires.IsZero() {
				fmt.Fprintln(cmd.ErrOrStderr(), dimStyle.Render("expires "+expires.Format(time.RFC3339)))
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&secret, "secret", envOr("ADMIN_JWT_SECRET", ""), "signing secret shared with the API")
	cmd.Flags().StringVar(&subject, "subject", envOr("USER", "admin"), "token subject")
	cmd.Flags().DurationVar(&ttl, "ttl", 24*time.Hour, "token lifetime, 0 for no expiry")
	return cmd
}
