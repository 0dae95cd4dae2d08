package telegram

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"tgpull/internal/domain"

	tdtelegram "github.com/gotd/td/telegram"
	"github.com/gotd/td/telegram/query"
	"github.com/gotd/td/telegram/query/dialogs"
	"github.com/gotd/td/tg"
)

// Offset applied to channel ids so the exported conversation id space
// stays collision free across users, basic chats, and channels.
const channelChatIDOffset int64 = 1_000_000_000_000

// Telegram caps MessagesGetHistory at 100 entries per page; a larger
// request silently comes back short, which would be mistaken for the
// end of history.
const historyBatchSize = 100

var errEnoughDialogs = errors.New("dialog limit reached")

// Dialogs lists conversations in the remote recency order, most
// recently active first, up to limit entries.
func (s *Service) Dialogs(ctx context.Context, limit int) ([]domain.Conversation, error) {
	if limit <= 0 {
		limit = dialogBatchSize
	}
	apiID, apiHash, err := s.credentials()
	if err != nil {
		return nil, err
	}

	out := make([]domain.Conversation, 0, limit)
	err = s.withClient(ctx, apiID, apiHash, func(runCtx context.Context, client *tdtelegram.Client) error {
		if err := requireAuthorized(runCtx, client); err != nil {
			return err
		}

		batch := dialogBatchSize
		if limit < batch {
			batch = limit
		}
		iterErr := query.GetDialogs(client.API()).BatchSize(batch).ForEach(runCtx, func(_ context.Context, elem dialogs.Elem) error {
			conv, ok := conversationFromElem(elem)
			if !ok || strings.TrimSpace(conv.Title) == "" {
				return nil
			}
			out = append(out, conv)
			if len(out) >= limit {
				return errEnoughDialogs
			}
			return nil
		})
		if iterErr != nil && !errors.Is(iterErr, errEnoughDialogs) {
			return iterErr
		}
		return nil
	})
	if err != nil {
		return nil, mapRPCError(err)
	}
	return out, nil
}

// Messages returns one page of history for conv, newest first, plus
// the offset id of the next older page. A zero next offset means the
// history is exhausted.
func (s *Service) Messages(ctx context.Context, conv domain.Conversation, offsetID int64, limit int) ([]domain.Message, int64, error) {
	limit = clampHistoryLimit(limit)
	apiID, apiHash, err := s.credentials()
	if err != nil {
		return nil, 0, err
	}

	var (
		out  []domain.Message
		next int64
	)
	err = s.withClient(ctx, apiID, apiHash, func(runCtx context.Context, client *tdtelegram.Client) error {
		if err := requireAuthorized(runCtx, client); err != nil {
			return err
		}

		page, pageErr := client.API().MessagesGetHistory(runCtx, &tg.MessagesGetHistoryRequest{
			Peer:     inputPeer(conv.Peer),
			OffsetID: int(offsetID),
			Limit:    limit,
		})
		if pageErr != nil {
			return pageErr
		}
		modified, ok := page.AsModified()
		if !ok {
			return nil
		}

		pageMessages := modified.GetMessages()
		out = make([]domain.Message, 0, len(pageMessages))
		pageMinID := 0
		for _, msgClass := range pageMessages {
			msg, ok := msgClass.(*tg.Message)
			if !ok || msg == nil {
				continue
			}
			if msg.ID > 0 && (pageMinID == 0 || msg.ID < pageMinID) {
				pageMinID = msg.ID
			}
			out = append(out, toMessage(conv.ID, msg))
		}

		if pageMinID > 0 && int64(pageMinID) != offsetID && len(pageMessages) >= limit {
			next = int64(pageMinID)
		}
		return nil
	})
	if err != nil {
		return nil, 0, mapRPCError(err)
	}
	return out, next, nil
}

func clampHistoryLimit(limit int) int {
	if limit <= 0 || limit > historyBatchSize {
		return historyBatchSize
	}
	return limit
}

func conversationFromElem(elem dialogs.Elem) (domain.Conversation, bool) {
	switch peer := elem.Dialog.GetPeer().(type) {
	case *tg.PeerUser:
		user, ok := elem.Entities.User(peer.UserID)
		if !ok || user == nil {
			return domain.Conversation{}, false
		}
		kind := domain.ConversationDirect
		title := formatUserDisplay(user)
		if user.Self {
			kind = domain.ConversationSaved
			title = "Saved Messages"
		}
		return domain.Conversation{
			ID:    peer.UserID,
			Title: title,
			Kind:  kind,
			Peer: domain.PeerRef{
				Kind:       domain.PeerUser,
				ID:         peer.UserID,
				AccessHash: user.AccessHash,
			},
		}, true

	case *tg.PeerChat:
		chat, ok := elem.Entities.Chat(peer.ChatID)
		if !ok || chat == nil {
			return domain.Conversation{}, false
		}
		return domain.Conversation{
			ID:    -peer.ChatID,
			Title: chat.Title,
			Kind:  domain.ConversationGroup,
			Peer: domain.PeerRef{
				Kind: domain.PeerChat,
				ID:   peer.ChatID,
			},
		}, true

	case *tg.PeerChannel:
		channel, ok := elem.Entities.Channel(peer.ChannelID)
		if !ok || channel == nil {
			return domain.Conversation{}, false
		}
		kind := domain.ConversationChannel
		if channel.Megagroup {
			kind = domain.ConversationGroup
		}
		return domain.Conversation{
			ID:    -(channelChatIDOffset + peer.ChannelID),
			Title: channel.Title,
			Kind:  kind,
			Peer: domain.PeerRef{
				Kind:       domain.PeerChannel,
				ID:         peer.ChannelID,
				AccessHash: channel.AccessHash,
			},
		}, true
	}

	return domain.Conversation{}, false
}

func inputPeer(ref domain.PeerRef) tg.InputPeerClass {
	switch ref.Kind {
	case domain.PeerUser:
		return &tg.InputPeerUser{UserID: ref.ID, AccessHash: ref.AccessHash}
	case domain.PeerChat:
		return &tg.InputPeerChat{ChatID: ref.ID}
	case domain.PeerChannel:
		return &tg.InputPeerChannel{ChannelID: ref.ID, AccessHash: ref.AccessHash}
	default:
		return &tg.InputPeerEmpty{}
	}
}

func toMessage(conversationID int64, msg *tg.Message) domain.Message {
	return domain.Message{
		ID:             int64(msg.ID),
		ConversationID: conversationID,
		Text:           msg.Message,
		Timestamp:      int64(msg.Date),
		Attachment:     extractAttachment(msg),
	}
}

// extractAttachment maps the protocol's media classes onto the tagged
// photo/video/document discriminant. Media kinds this core does not
// download (geo, contacts, polls, webpages) come back as nil.
func extractAttachment(msg *tg.Message) *domain.Attachment {
	if msg == nil || msg.Media == nil {
		return nil
	}

	switch media := msg.Media.(type) {
	case *tg.MessageMediaPhoto:
		photo, ok := media.Photo.(*tg.Photo)
		if !ok || photo == nil {
			return nil
		}
		thumb, size := photoLargestSize(photo.Sizes)
		if thumb == "" {
			return nil
		}
		return &domain.Attachment{
			Kind: domain.AttachmentPhoto,
			Size: size,
			Ref: domain.MediaRef{
				PhotoID:       photo.ID,
				AccessHash:    photo.AccessHash,
				FileReference: photo.FileReference,
				ThumbSize:     thumb,
				DCID:          photo.DCID,
			},
		}

	case *tg.MessageMediaDocument:
		doc, ok := media.Document.(*tg.Document)
		if !ok || doc == nil {
			return nil
		}
		kind := domain.AttachmentDocument
		if isVideoDocument(doc.Attributes) {
			kind = domain.AttachmentVideo
		}
		return &domain.Attachment{
			Kind:     kind,
			FileName: documentFilename(doc.Attributes),
			MimeType: strings.TrimSpace(doc.MimeType),
			Size:     doc.Size,
			Ref: domain.MediaRef{
				DocumentID:    doc.ID,
				AccessHash:    doc.AccessHash,
				FileReference: doc.FileReference,
				DCID:          doc.DCID,
			},
		}
	}

	return nil
}

func isVideoDocument(attrs []tg.DocumentAttributeClass) bool {
	for _, attr := range attrs {
		if _, ok := attr.(*tg.DocumentAttributeVideo); ok {
			return true
		}
	}
	return false
}

func documentFilename(attrs []tg.DocumentAttributeClass) string {
	for _, attr := range attrs {
		if attr == nil {
			continue
		}
		if named, ok := attr.(*tg.DocumentAttributeFilename); ok && named != nil {
			return named.FileName
		}
	}
	return ""
}

func photoLargestSize(sizes []tg.PhotoSizeClass) (string, int64) {
	var (
		best      string
		bestBytes int64
	)
	for _, sizeClass := range sizes {
		switch size := sizeClass.(type) {
		case *tg.PhotoSize:
			if int64(size.Size) >= bestBytes {
				bestBytes = int64(size.Size)
				best = size.Type
			}
		case *tg.PhotoSizeProgressive:
			var max int
			for _, b := range size.Sizes {
				if b > max {
					max = b
				}
			}
			if int64(max) >= bestBytes {
				bestBytes = int64(max)
				best = size.Type
			}
		}
	}
	return best, bestBytes
}

func formatUserDisplay(user *tg.User) string {
	if user == nil {
		return ""
	}
	name := strings.TrimSpace(strings.Join([]string{user.FirstName, user.LastName}, " "))
	if name != "" {
		return name
	}
	if user.Username != "" {
		return "@" + user.Username
	}
	return fmt.Sprintf("User %d", user.ID)
}
