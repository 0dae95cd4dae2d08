package cli

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/spf13/cobra"

	"tgpull/internal/domain"
	"tgpull/internal/media"
)

var (
	fetchLimit int
	fetchOut   string
)

var fetchCmd = &cobra.Command{
	Use:   "fetch <chat-id>",
	Short: "Download the attachments of a conversation's recent messages",
	Long: `Scans the most recent messages of the conversation and downloads
every photo, video, and document into a per-conversation directory.
Files are named "<n>_<message text><ext>" where n is a per-run
sequence number, so identical captions never collide. Rate limiting
by Telegram is retried with exponential backoff.`,
	Args: cobra.ExactArgs(1),
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

		msgs, err := a.index.ListMessages(ctx, conv, fetchLimit)
		if err != nil {
			return err
		}

		targetDir := fetchOut
		if targetDir == "" {
			targetDir = filepath.Join(a.cfg.DownloadsDir(), sanitizeDirName(conv.Title))
		}

		dl := media.NewDownloader(a.svc, a.store, a.logger)
		downloaded := 0
		for _, msg := range msgs {
			if msg.Attachment == nil {
				continue
			}
			path, err := downloadWithBackoff(ctx, dl, msg, targetDir)
			if err != nil {
				if errors.Is(err, context.Canceled) {
					return err
				}
				fmt.Printf("msg %d: download failed: %v\n", msg.ID, err)
				continue
			}
			downloaded++
			fmt.Printf("msg %d → %s\n", msg.ID, path)
		}

		fmt.Printf("Done: %d file(s) in %s\n", downloaded, targetDir)
		return nil
	},
}

func init() {
	fetchCmd.Flags().IntVar(&fetchLimit, "limit", 100, "Number of recent messages to scan for attachments")
	fetchCmd.Flags().StringVar(&fetchOut, "out", "", "Target directory (default: <data-dir>/downloads/<chat title>)")
}

// downloadWithBackoff retries only rate-limit errors; everything else
// is permanent. Backoff policy lives here, not in the downloader.
func downloadWithBackoff(ctx context.Context, dl *media.Downloader, msg domain.Message, targetDir string) (string, error) {
	var path string
	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = 2 * time.Second
	policy.MaxElapsedTime = 2 * time.Minute

	err := backoff.Retry(func() error {
		var err error
		path, err = dl.Download(ctx, msg, targetDir, printProgress(msg.ID))
		if err == nil {
			return nil
		}
		if errors.Is(err, domain.ErrRateLimited) {
			return err
		}
		return backoff.Permanent(err)
	}, backoff.WithContext(policy, ctx))
	return path, err
}

func printProgress(msgID int64) media.ProgressFunc {
	var lastPercent int64 = -1
	return func(done, total int64) {
		if total <= 0 {
			return
		}
		percent := done * 100 / total
		// Only print on 10% steps to keep the output readable.
		if percent/10 > lastPercent/10 {
			lastPercent = percent
			fmt.Printf("msg %d: %d%%\n", msgID, percent)
		}
	}
}

// sanitizeDirName reuses the attachment filename rules for the
// per-conversation directory.
func sanitizeDirName(title string) string {
	return media.SanitizeName(title)
}
