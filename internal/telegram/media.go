package telegram

import (
	"context"
	"errors"
	"io"

	"tgpull/internal/domain"

	tdtelegram "github.com/gotd/td/telegram"
	"github.com/gotd/td/telegram/downloader"
	"github.com/gotd/td/tg"
)

// DownloadAttachment streams the attachment bytes of msg into w and
// returns the number of bytes written. Implements the media.Streamer
// capability.
func (s *Service) DownloadAttachment(ctx context.Context, msg domain.Message, w io.Writer) (int64, error) {
	if msg.Attachment == nil {
		return 0, domain.ErrAttachmentMissing
	}
	location, err := inputFileLocation(msg.Attachment)
	if err != nil {
		return 0, err
	}

	apiID, apiHash, err := s.credentials()
	if err != nil {
		return 0, err
	}

	counted := &countingWriter{w: w}
	err = s.withClient(ctx, apiID, apiHash, func(runCtx context.Context, client *tdtelegram.Client) error {
		if err := requireAuthorized(runCtx, client); err != nil {
			return err
		}

		d := downloader.NewDownloader()
		_, downloadErr := d.Download(client.API(), location).Stream(runCtx, counted)
		if downloadErr != nil {
			if isFileReferenceError(downloadErr) {
				return errors.Join(ErrFileReferenceExpired, downloadErr)
			}
			return downloadErr
		}
		return nil
	})
	if err != nil {
		return counted.n, mapRPCError(err)
	}
	return counted.n, nil
}

func inputFileLocation(att *domain.Attachment) (tg.InputFileLocationClass, error) {
	switch att.Kind {
	case domain.AttachmentPhoto:
		if att.Ref.PhotoID == 0 {
			return nil, domain.ErrAttachmentMissing
		}
		return &tg.InputPhotoFileLocation{
			ID:            att.Ref.PhotoID,
			AccessHash:    att.Ref.AccessHash,
			FileReference: att.Ref.FileReference,
			ThumbSize:     att.Ref.ThumbSize,
		}, nil
	case domain.AttachmentVideo, domain.AttachmentDocument:
		if att.Ref.DocumentID == 0 {
			return nil, domain.ErrAttachmentMissing
		}
		return &tg.InputDocumentFileLocation{
			ID:            att.Ref.DocumentID,
			AccessHash:    att.Ref.AccessHash,
			FileReference: att.Ref.FileReference,
		}, nil
	default:
		return nil, domain.ErrAttachmentMissing
	}
}

type countingWriter struct {
	w io.Writer
	n int64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n += int64(n)
	return n, err
}
