package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

var messagesLimit int

var messagesCmd = &cobra.Command{
	Use:   "messages <chat-id>",
	Short: "List recent messages of a conversation, newest first",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		chatID, err := parseChatID(args[0])
		if err != nil {
			return err
		}

		a, err := newApp(ctx)
		if err != nil {
			return err
		}
		defer a.close()

		conv, err := a.resolveConversation(ctx, chatID)
		if err != nil {
			return err
		}

		msgs, err := a.index.ListMessages(ctx, conv, messagesLimit)
		if err != nil {
			return err
		}
		for _, msg := range msgs {
			marker := " "
			if msg.Attachment != nil {
				marker = string(msg.Attachment.Kind[0])
			}
			text := msg.Text
			if text == "" && msg.Attachment != nil {
				text = "<" + string(msg.Attachment.Kind) + ">"
			}
			fmt.Printf("%8d  %s  [%s]  %s\n",
				msg.ID,
				time.Unix(msg.Timestamp, 0).Format("2006-01-02 15:04"),
				marker,
				text)
		}
		return nil
	},
}

func init() {
	messagesCmd.Flags().IntVar(&messagesLimit, "limit", 100, "Maximum number of messages to list")
}
