package cli

import (
	"fmt"
	"time"

	"tgpull/internal/domain"

	"github.com/spf13/cobra"
)

var (
	historyChat  int64
	historyLimit int
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show recorded downloads, newest first",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		a, err := newApp(ctx)
		if err != nil {
			return err
		}
		defer a.close()

		records, err := a.store.ListDownloads(ctx, historyChat, historyLimit)
		if err != nil {
			return err
		}
		if len(records) == 0 {
			fmt.Println("No downloads recorded yet.")
			return nil
		}
		for _, rec := range records {
			when := time.Unix(rec.CompletedUnix, 0).Format("2006-01-02 15:04")
			if rec.Status == domain.DownloadFailed {
				fmt.Printf("%s  chat %d msg %d  FAILED: %s\n", when, rec.ConversationID, rec.MessageID, rec.Error)
				continue
			}
			fmt.Printf("%s  chat %d msg %d  %s (%d bytes)\n", when, rec.ConversationID, rec.MessageID, rec.Path, rec.Size)
		}
		return nil
	},
}

func init() {
	historyCmd.Flags().Int64Var(&historyChat, "chat", 0, "Filter by chat id (0 = all)")
	historyCmd.Flags().IntVar(&historyLimit, "limit", 50, "Maximum number of records")
}
