package media

import (
	"strconv"
	"strings"

	"tgpull/internal/domain"
)

const maxBaseNameRunes = 100

const fallbackBaseName = "media"

// Characters Windows and most filesystems reject in file names.
const forbiddenNameChars = `<>:"/\|?*`

// ResolveFileName builds the deterministic local name for a message's
// attachment: "{seq}_{sanitized base}{extension}". The base is the
// message text, or "media" when the text is empty, truncated to 100
// runes before sanitization so multi-byte characters are never split.
// Two messages with identical text never collide because seq is
// strictly increasing per download session.
func ResolveFileName(msg domain.Message, seq int64) string {
	return strconv.FormatInt(seq, 10) + "_" + SanitizeName(msg.Text) + extensionFor(msg.Attachment)
}

// SanitizeName truncates to 100 runes, replaces forbidden characters,
// and trims outer whitespace. Empty input (or input that sanitizes to
// nothing) falls back to "media".
func SanitizeName(name string) string {
	if name == "" {
		return fallbackBaseName
	}
	name = truncateRunes(name, maxBaseNameRunes)
	name = sanitizeFileName(name)
	if name == "" {
		return fallbackBaseName
	}
	return name
}

func truncateRunes(s string, max int) string {
	if len(s) <= max {
		return s
	}
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max])
}

func sanitizeFileName(name string) string {
	var b strings.Builder
	b.Grow(len(name))
	for _, r := range name {
		if strings.ContainsRune(forbiddenNameChars, r) {
			b.WriteRune('_')
			continue
		}
		b.WriteRune(r)
	}
	return strings.TrimSpace(b.String())
}

func extensionFor(att *domain.Attachment) string {
	if att == nil {
		return ""
	}
	switch att.Kind {
	case domain.AttachmentVideo:
		return ".mp4"
	case domain.AttachmentPhoto:
		return ".jpg"
	case domain.AttachmentDocument:
		if idx := strings.LastIndex(att.FileName, "."); idx >= 0 {
			return att.FileName[idx:]
		}
		return ".file"
	default:
		return ""
	}
}
