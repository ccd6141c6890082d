package cli

import (
	"bufio"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/wolfman30/dental-concierge/internal/language"
)

func newChatCmd() *cobra.Command {
	var (
		locale   string
		showInfo bool
	)

	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Chat with the clinic assistant in the terminal",
		Long:  "Reads one message per line from stdin and prints the assistant's reply. Type /quit to leave.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			e, err := openEngine(ctx, cfg, log)
			if err != nil {
				return err
			}
			defer e.Close()

			state, err := e.manager.Open(language.Parse(locale))
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "session %s (%s)\n", state.SessionID, state.Language)

			scanner := bufio.NewScanner(cmd.InOrStdin())
			for {
				fmt.Fprint(out, "> ")
				if !scanner.Scan() {
					fmt.Fprintln(out)
					break
				}
				text := strings.TrimSpace(scanner.Text())
				if text == "" {
					continue
				}
				if text == "/quit" || text == "/exit" {
					break
				}
				result, err := e.manager.Turn(ctx, state.SessionID, text)
				if err != nil {
					return err
				}
				fmt.Fprintln(out, result.Reply)
				if showInfo {
					fmt.Fprintf(out, "  [intent=%s language=%s]\n", result.Intent, result.Language)
				}
			}
			if err := scanner.Err(); err != nil {
				return err
			}
			return e.manager.CloseSession(state.SessionID)
		},
	}

	cmd.Flags().StringVar(&locale, "locale", "en", "initial reply language (ar or en)")
	cmd.Flags().BoolVar(&showInfo, "show-intent", false, "print the detected intent after each reply")
	return cmd
}
