package domain

type ConversationKind string

const (
	ConversationDirect  ConversationKind = "direct"
	ConversationGroup   ConversationKind = "group"
	ConversationChannel ConversationKind = "channel"
	ConversationSaved   ConversationKind = "saved"
)

type PeerKind string

const (
	PeerUser    PeerKind = "user"
	PeerChat    PeerKind = "chat"
	PeerChannel PeerKind = "channel"
)

// PeerRef is the opaque entity reference needed to re-query the remote
// service for a conversation. It stays valid for the session lifetime.
type PeerRef struct {
	Kind       PeerKind `json:"kind"`
	ID         int64    `json:"id"`
	AccessHash int64    `json:"access_hash"`
}

type Conversation struct {
	ID    int64            `json:"id"`
	Title string           `json:"title"`
	Kind  ConversationKind `json:"kind"`
	Peer  PeerRef          `json:"peer"`
}

type AttachmentKind string

const (
	AttachmentPhoto    AttachmentKind = "photo"
	AttachmentVideo    AttachmentKind = "video"
	AttachmentDocument AttachmentKind = "document"
)

// MediaRef carries whatever the remote protocol needs to stream the
// attachment bytes later. For photos ThumbSize selects the largest
// server-side size.
type MediaRef struct {
	DocumentID    int64  `json:"document_id,omitempty"`
	PhotoID       int64  `json:"photo_id,omitempty"`
	AccessHash    int64  `json:"access_hash"`
	FileReference []byte `json:"file_reference"`
	ThumbSize     string `json:"thumb_size,omitempty"`
	DCID          int    `json:"dc_id"`
}

type Attachment struct {
	Kind     AttachmentKind `json:"kind"`
	FileName string         `json:"file_name,omitempty"`
	MimeType string         `json:"mime_type,omitempty"`
	Size     int64          `json:"size"`
	Ref      MediaRef       `json:"ref"`
}

type Message struct {
	ID             int64       `json:"id"`
	ConversationID int64       `json:"conversation_id"`
	Text           string      `json:"text"`
	Timestamp      int64       `json:"timestamp"`
	Attachment     *Attachment `json:"attachment,omitempty"`
}

// Session is the opaque credential blob plus metadata. The blob format
// belongs to the remote protocol; non-empty means possibly valid.
type Session struct {
	Phone        string `json:"phone"`
	IssuedAtUnix int64  `json:"issued_at_unix"`
	Blob         []byte `json:"blob"`
}

type DownloadStatus string

const (
	DownloadCompleted DownloadStatus = "completed"
	DownloadFailed    DownloadStatus = "failed"
)

type DownloadRecord struct {
	Seq            int64          `json:"seq"`
	ConversationID int64          `json:"conversation_id"`
	MessageID      int64          `json:"message_id"`
	FileName       string         `json:"file_name"`
	Path           string         `json:"path"`
	Size           int64          `json:"size"`
	Status         DownloadStatus `json:"status"`
	Error          string         `json:"error,omitempty"`
	StartedUnix    int64          `json:"started_unix"`
	CompletedUnix  int64          `json:"completed_unix"`
}
