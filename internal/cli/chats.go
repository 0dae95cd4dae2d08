package cli

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"tgpull/internal/domain"
)

var (
	chatsLimit  int
	chatsCached bool
)

var chatsCmd = &cobra.Command{
	Use:   "chats",
	Short: "List your conversations, most recently active first",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		a, err := newApp(ctx)
		if err != nil {
			return err
		}
		defer a.close()

		var convs []domain.Conversation
		if chatsCached {
			convs, err = a.store.ListChats(ctx)
			if err != nil {
				return err
			}
		} else {
			convs, err = a.index.ListConversations(ctx, chatsLimit)
			if err != nil {
				return err
			}
			if err := a.store.ReplaceChats(ctx, convs); err != nil {
				a.logger.Warn("caching chats failed", zap.Error(err))
			}
		}

		if len(convs) == 0 {
			fmt.Println("No conversations. Run `tgpull login` first, or drop --cached.")
			return nil
		}
		for _, conv := range convs {
			fmt.Printf("%16d  %-8s  %s\n", conv.ID, conv.Kind, conv.Title)
		}
		return nil
	},
}

func init() {
	chatsCmd.Flags().IntVar(&chatsLimit, "limit", 100, "Maximum number of conversations to list")
	chatsCmd.Flags().BoolVar(&chatsCached, "cached", false, "List from the local cache without contacting Telegram")
}
