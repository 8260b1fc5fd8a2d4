package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/lkmninja/aaflbot/internal/config"
	"github.com/lkmninja/aaflbot/internal/gateway"
	"github.com/lkmninja/aaflbot/internal/gateway/wsgate"
)

var tokenCmd = &cobra.Command{
	Use:   "token <user-id>",
	Short: "Issue a gateway token for a member",
	Long: `Issue a signed token that lets a member connect to the chat gateway.

The token carries the member's display name and roles, e.g.:
  aaflbot token u42 --name "Pat" --role "Franchise Owner"
  aaflbot token u1 --name "Commissioner" --role Admin --ttl 24h`,
	Args: cobra.ExactArgs(1),
	RunE: runToken,
}

func init() {
	rootCmd.AddCommand(tokenCmd)
	tokenCmd.Flags().String("name", "", "display name (defaults to the user id)")
	tokenCmd.Flags().StringArray("role", nil, "role to include; repeat for several")
	tokenCmd.Flags().Duration("ttl", 0, "token lifetime (default gateway.token_ttl_hours)")
}

func runToken(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	if cfg.Gateway.JWTSecret == "" {
		return fmt.Errorf("gateway.jwt_secret is not set\nSet it with 'aaflbot config set' or AAFLBOT_GATEWAY_JWT_SECRET")
	}

	name, _ := cmd.Flags().GetString("name")
	roles, _ := cmd.Flags().GetStringArray("role")
	ttl, _ := cmd.Flags().GetDuration("ttl")
	if ttl <= 0 {
		ttl = cfg.Gateway.TokenTTL()
	}

	token, err := wsgate.IssueToken(cfg.Gateway.JWTSecret, gateway.Member{ID: args[0], Name: name, Roles: roles}, ttl)
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), token)
	fmt.Fprintf(cmd.ErrOrStderr(), "expires %s\n", time.Now().Add(ttl).Format(time.RFC3339))
	return nil
}
