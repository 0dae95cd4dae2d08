package telegram

import (
	"testing"

	"tgpull/internal/domain"

	"github.com/gotd/td/tg"
)

func TestExtractAttachmentPhoto(t *testing.T) {
	msg := &tg.Message{
		ID: 10,
		Media: &tg.MessageMediaPhoto{
			Photo: &tg.Photo{
				ID:            111,
				AccessHash:    222,
				FileReference: []byte{1, 2, 3},
				DCID:          2,
				Sizes: []tg.PhotoSizeClass{
					&tg.PhotoSize{Type: "m", Size: 1024},
					&tg.PhotoSize{Type: "y", Size: 8192},
				},
			},
		},
	}

	att := extractAttachment(msg)
	if att == nil {
		t.Fatal("expected attachment")
	}
	if att.Kind != domain.AttachmentPhoto {
		t.Fatalf("kind = %s", att.Kind)
	}
	if att.Ref.PhotoID != 111 || att.Ref.AccessHash != 222 || att.Ref.DCID != 2 {
		t.Fatalf("ref mismatch: %+v", att.Ref)
	}
	if att.Ref.ThumbSize != "y" || att.Size != 8192 {
		t.Fatalf("largest size not selected: %+v", att)
	}
}

func TestExtractAttachmentProgressivePhoto(t *testing.T) {
	msg := &tg.Message{
		Media: &tg.MessageMediaPhoto{
			Photo: &tg.Photo{
				ID: 111,
				Sizes: []tg.PhotoSizeClass{
					&tg.PhotoSize{Type: "m", Size: 1024},
					&tg.PhotoSizeProgressive{Type: "y", Sizes: []int{512, 4096, 16384}},
				},
			},
		},
	}

	att := extractAttachment(msg)
	if att == nil {
		t.Fatal("expected attachment")
	}
	if att.Ref.ThumbSize != "y" || att.Size != 16384 {
		t.Fatalf("progressive size not selected: %+v", att)
	}
}

func TestExtractAttachmentVideo(t *testing.T) {
	msg := &tg.Message{
		Media: &tg.MessageMediaDocument{
			Document: &tg.Document{
				ID:         333,
				AccessHash: 444,
				MimeType:   "video/mp4",
				Size:       1 << 20,
				Attributes: []tg.DocumentAttributeClass{
					&tg.DocumentAttributeVideo{Duration: 12},
				},
			},
		},
	}

	att := extractAttachment(msg)
	if att == nil {
		t.Fatal("expected attachment")
	}
	if att.Kind != domain.AttachmentVideo {
		t.Fatalf("kind = %s, want video", att.Kind)
	}
	if att.Ref.DocumentID != 333 || att.Size != 1<<20 {
		t.Fatalf("ref mismatch: %+v", att)
	}
}

func TestExtractAttachmentDocument(t *testing.T) {
	msg := &tg.Message{
		Media: &tg.MessageMediaDocument{
			Document: &tg.Document{
				ID:       333,
				MimeType: "application/pdf",
				Size:     2048,
				Attributes: []tg.DocumentAttributeClass{
					&tg.DocumentAttributeFilename{FileName: "report.pdf"},
				},
			},
		},
	}

	att := extractAttachment(msg)
	if att == nil {
		t.Fatal("expected attachment")
	}
	if att.Kind != domain.AttachmentDocument {
		t.Fatalf("kind = %s, want document", att.Kind)
	}
	if att.FileName != "report.pdf" || att.MimeType != "application/pdf" {
		t.Fatalf("metadata mismatch: %+v", att)
	}
}

func TestExtractAttachmentUnsupportedMedia(t *testing.T) {
	cases := []struct {
		name string
		msg  *tg.Message
	}{
		{"nil message", nil},
		{"no media", &tg.Message{Message: "text only"}},
		{"geo", &tg.Message{Media: &tg.MessageMediaGeo{}}},
		{"webpage", &tg.Message{Media: &tg.MessageMediaWebPage{}}},
		{"empty photo", &tg.Message{Media: &tg.MessageMediaPhoto{Photo: &tg.PhotoEmpty{}}}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if att := extractAttachment(tc.msg); att != nil {
				t.Fatalf("expected nil attachment, got %+v", att)
			}
		})
	}
}

func TestClampHistoryLimit(t *testing.T) {
	cases := []struct {
		limit int
		want  int
	}{
		{0, 100},
		{-5, 100},
		{1, 1},
		{100, 100},
		// Over-cap requests would come back short and look like the
		// end of history; they must be clamped so the caller keeps
		// paging by cursor.
		{101, 100},
		{500, 100},
	}
	for _, tc := range cases {
		if got := clampHistoryLimit(tc.limit); got != tc.want {
			t.Fatalf("clampHistoryLimit(%d) = %d, want %d", tc.limit, got, tc.want)
		}
	}
}

func TestToMessage(t *testing.T) {
	msg := toMessage(42, &tg.Message{
		ID:      99,
		Message: "caption",
		Date:    1700000000,
	})
	if msg.ID != 99 || msg.ConversationID != 42 || msg.Text != "caption" || msg.Timestamp != 1700000000 {
		t.Fatalf("mapping mismatch: %+v", msg)
	}
	if msg.Attachment != nil {
		t.Fatalf("unexpected attachment: %+v", msg.Attachment)
	}
}

func TestInputPeer(t *testing.T) {
	user := inputPeer(domain.PeerRef{Kind: domain.PeerUser, ID: 1, AccessHash: 2})
	if p, ok := user.(*tg.InputPeerUser); !ok || p.UserID != 1 || p.AccessHash != 2 {
		t.Fatalf("user peer mismatch: %#v", user)
	}

	chat := inputPeer(domain.PeerRef{Kind: domain.PeerChat, ID: 3})
	if p, ok := chat.(*tg.InputPeerChat); !ok || p.ChatID != 3 {
		t.Fatalf("chat peer mismatch: %#v", chat)
	}

	channel := inputPeer(domain.PeerRef{Kind: domain.PeerChannel, ID: 4, AccessHash: 5})
	if p, ok := channel.(*tg.InputPeerChannel); !ok || p.ChannelID != 4 || p.AccessHash != 5 {
		t.Fatalf("channel peer mismatch: %#v", channel)
	}

	if _, ok := inputPeer(domain.PeerRef{}).(*tg.InputPeerEmpty); !ok {
		t.Fatal("zero ref should map to empty peer")
	}
}

func TestDocumentFilename(t *testing.T) {
	attrs := []tg.DocumentAttributeClass{
		&tg.DocumentAttributeVideo{},
		&tg.DocumentAttributeFilename{FileName: "clip.mov"},
	}
	if got := documentFilename(attrs); got != "clip.mov" {
		t.Fatalf("documentFilename = %q", got)
	}
	if got := documentFilename(nil); got != "" {
		t.Fatalf("documentFilename(nil) = %q", got)
	}
}

func TestIsVideoDocument(t *testing.T) {
	if !isVideoDocument([]tg.DocumentAttributeClass{&tg.DocumentAttributeVideo{}}) {
		t.Fatal("video attribute not recognized")
	}
	if isVideoDocument([]tg.DocumentAttributeClass{&tg.DocumentAttributeAudio{}}) {
		t.Fatal("audio attribute recognized as video")
	}
}

func TestFormatUserDisplay(t *testing.T) {
	cases := []struct {
		name string
		user *tg.User
		want string
	}{
		{"full name", &tg.User{FirstName: "Ada", LastName: "Lovelace"}, "Ada Lovelace"},
		{"first only", &tg.User{FirstName: "Ada"}, "Ada"},
		{"username fallback", &tg.User{Username: "ada"}, "@ada"},
		{"id fallback", &tg.User{ID: 7}, "User 7"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := formatUserDisplay(tc.user); got != tc.want {
				t.Fatalf("formatUserDisplay = %q, want %q", got, tc.want)
			}
		})
	}
}
