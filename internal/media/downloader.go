// Package media streams message attachments to local storage. Files
// are written to a temporary path in the target directory and renamed
// into place on success, so a partial download is never visible at the
// final path.
package media

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	"tgpull/internal/domain"

	"go.uber.org/zap"
)

// ProgressFunc receives streaming progress. It may be called zero or
// more times; done is monotonically non-decreasing and total is -1
// when the remote does not report one.
type ProgressFunc func(done, total int64)

// Streamer is the remote capability that writes attachment bytes into
// w and returns the byte count. Progress is observed by the downloader
// on the write path, so bytesDone always reflects persisted bytes.
type Streamer interface {
	DownloadAttachment(ctx context.Context, msg domain.Message, w io.Writer) (int64, error)
}

// History receives terminal download outcomes. Optional.
type History interface {
	RecordDownload(ctx context.Context, rec domain.DownloadRecord) error
}

// Downloader owns the per-session sequence counter used for filename
// uniqueness. Concurrent Download calls on one Downloader are safe and
// never observe the same sequence number.
type Downloader struct {
	streamer Streamer
	history  History
	logger   *zap.Logger
	seq      atomic.Int64
}

func NewDownloader(streamer Streamer, history History, logger *zap.Logger) *Downloader {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Downloader{
		streamer: streamer,
		history:  history,
		logger:   logger,
	}
}

// NextSeq allocates a sequence number. A number allocated for a
// download that later fails or is cancelled is simply not reused.
func (d *Downloader) NextSeq() int64 {
	return d.seq.Add(1)
}

// Download streams the attachment of msg into targetDir and returns
// the final file path. progress may be nil.
func (d *Downloader) Download(ctx context.Context, msg domain.Message, targetDir string, progress ProgressFunc) (string, error) {
	if msg.Attachment == nil {
		return "", domain.ErrAttachmentMissing
	}

	seq := d.NextSeq()
	name := ResolveFileName(msg, seq)
	startedUnix := time.Now().Unix()

	finalPath, err := d.stream(ctx, msg, targetDir, name, progress)
	if err != nil {
		d.record(msg, domain.DownloadRecord{
			Seq:            seq,
			ConversationID: msg.ConversationID,
			MessageID:      msg.ID,
			FileName:       name,
			Status:         domain.DownloadFailed,
			Error:          err.Error(),
			StartedUnix:    startedUnix,
			CompletedUnix:  time.Now().Unix(),
		})
		return "", err
	}

	info, statErr := os.Stat(finalPath)
	var size int64
	if statErr == nil {
		size = info.Size()
	}
	d.record(msg, domain.DownloadRecord{
		Seq:            seq,
		ConversationID: msg.ConversationID,
		MessageID:      msg.ID,
		FileName:       name,
		Path:           finalPath,
		Size:           size,
		Status:         domain.DownloadCompleted,
		StartedUnix:    startedUnix,
		CompletedUnix:  time.Now().Unix(),
	})
	d.logger.Info("download completed",
		zap.Int64("chat_id", msg.ConversationID),
		zap.Int64("msg_id", msg.ID),
		zap.String("path", finalPath),
		zap.Int64("size", size))
	return finalPath, nil
}

func (d *Downloader) stream(ctx context.Context, msg domain.Message, targetDir, name string, progress ProgressFunc) (string, error) {
	if err := os.MkdirAll(targetDir, 0o755); err != nil {
		return "", errors.Join(domain.ErrDirectoryCreate, err)
	}

	tmp, err := os.CreateTemp(targetDir, ".download-*.tmp")
	if err != nil {
		return "", errors.Join(domain.ErrStorageWrite, err)
	}
	tmpPath := tmp.Name()

	pw := &progressWriter{
		w:        tmp,
		total:    attachmentTotal(msg.Attachment),
		progress: progress,
	}

	if _, err := d.streamer.DownloadAttachment(ctx, msg, pw); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		if pw.writeErr != nil {
			return "", errors.Join(domain.ErrStorageWrite, pw.writeErr)
		}
		return "", err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return "", errors.Join(domain.ErrStorageWrite, err)
	}

	finalPath := filepath.Join(targetDir, name)
	if err := os.Rename(tmpPath, finalPath); err != nil {
		os.Remove(tmpPath)
		return "", errors.Join(domain.ErrStorageWrite, err)
	}
	return finalPath, nil
}

func (d *Downloader) record(msg domain.Message, rec domain.DownloadRecord) {
	if d.history == nil {
		return
	}
	// Recording is best effort and must not mask the download result.
	// Detached context: the download's own context may already be done.
	if err := d.history.RecordDownload(context.Background(), rec); err != nil {
		d.logger.Warn("recording download history failed",
			zap.Int64("chat_id", msg.ConversationID),
			zap.Int64("msg_id", msg.ID),
			zap.Error(err))
	}
}

func attachmentTotal(att *domain.Attachment) int64 {
	if att == nil || att.Size <= 0 {
		return -1
	}
	return att.Size
}

// progressWriter counts bytes written to the temp file and forwards
// progress. A write failure is remembered so the caller can tell
// storage errors apart from remote ones.
type progressWriter struct {
	w        io.Writer
	done     int64
	total    int64
	progress ProgressFunc
	writeErr error
}

func (p *progressWriter) Write(b []byte) (int, error) {
	n, err := p.w.Write(b)
	if err != nil {
		p.writeErr = err
		return n, err
	}
	p.done += int64(n)
	if p.progress != nil {
		p.progress(p.done, p.total)
	}
	return n, nil
}
