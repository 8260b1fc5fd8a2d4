package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/lkmninja/aaflbot/internal/client"
)

var clientCmd = &cobra.Command{
	Use:   "client",
	Short: "Chat with the bot from a terminal",
	Long: `Connect to a running aaflbot gateway and chat from the terminal.

Get a token with 'aaflbot token <user-id>' on the server host, then:
  aaflbot client --addr ws://localhost:8080/ws --token <token>

Type :help inside the client for reaction shortcuts and channel switching.`,
	Args: cobra.NoArgs,
	RunE: runClient,
}

func init() {
	rootCmd.AddCommand(clientCmd)
	clientCmd.Flags().String("addr", "ws://localhost:8080/ws", "gateway websocket address")
	clientCmd.Flags().String("token", "", "gateway token (or AAFLBOT_TOKEN)")
	clientCmd.Flags().String("channel", "league", "channel to post to")
}

func runClient(cmd *cobra.Command, args []string) error {
	if !term.IsTerminal(int(os.Stdout.Fd())) {
		return fmt.Errorf("client requires an interactive terminal")
	}

	addr, _ := cmd.Flags().GetString("addr")
	channel, _ := cmd.Flags().GetString("channel")
	token, _ := cmd.Flags().GetString("token")
	if token == "" {
		token = os.Getenv("AAFLBOT_TOKEN")
	}
	if token == "" {
		return fmt.Errorf("a gateway token is required\nIssue one with 'aaflbot token <user-id>'")
	}

	conn, err := client.Dial(cmd.Context(), addr, token)
	if err != nil {
		return err
	}
	return client.Run(cmd.Context(), conn, channel)
}
