// Package index retrieves and caches the conversation list and
// per-conversation message pages. Ordering comes from the remote
// service: conversations most-recently-active first, messages newest
// first. Errors are reported, never retried here.
package index

import (
	"context"
	"sync"

	"tgpull/internal/domain"
)

// Client is the remote capability the index consumes. Dialogs returns
// conversations in recency order; duplicates across internal pages are
// allowed and resolved here. Messages returns one page at most limit
// long, newest first, plus the offset id of the next older page (0
// when history is exhausted).
type Client interface {
	Dialogs(ctx context.Context, limit int) ([]domain.Conversation, error)
	Messages(ctx context.Context, conv domain.Conversation, offsetID int64, limit int) ([]domain.Message, int64, error)
}

type Index struct {
	client Client

	mu       sync.RWMutex
	convs    []domain.Conversation
	messages map[int64][]domain.Message
}

func New(client Client) *Index {
	return &Index{
		client:   client,
		messages: map[int64][]domain.Message{},
	}
}

// ListConversations fetches up to pageSize conversations, deduplicated
// by id with the last-seen entry winning, and refreshes the cache.
func (ix *Index) ListConversations(ctx context.Context, pageSize int) ([]domain.Conversation, error) {
	if pageSize <= 0 {
		pageSize = 100
	}
	fetched, err := ix.client.Dialogs(ctx, pageSize)
	if err != nil {
		return nil, err
	}

	byID := make(map[int64]int, len(fetched))
	deduped := make([]domain.Conversation, 0, len(fetched))
	for _, conv := range fetched {
		if pos, seen := byID[conv.ID]; seen {
			deduped[pos] = conv
			continue
		}
		byID[conv.ID] = len(deduped)
		deduped = append(deduped, conv)
	}

	ix.mu.Lock()
	ix.convs = deduped
	ix.mu.Unlock()

	return cloneConversations(deduped), nil
}

// ListMessages fetches up to pageSize messages of conv, newest first,
// following offset-id cursors until the page is full or history ends.
// The result replaces the per-conversation cache entry.
func (ix *Index) ListMessages(ctx context.Context, conv domain.Conversation, pageSize int) ([]domain.Message, error) {
	if pageSize <= 0 {
		pageSize = 100
	}

	collected := make([]domain.Message, 0, pageSize)
	var offsetID int64
	for len(collected) < pageSize {
		page, next, err := ix.client.Messages(ctx, conv, offsetID, pageSize-len(collected))
		if err != nil {
			return nil, err
		}
		collected = append(collected, page...)
		if next <= 0 || next == offsetID || len(page) == 0 {
			break
		}
		offsetID = next
	}

	ix.mu.Lock()
	ix.messages[conv.ID] = collected
	ix.mu.Unlock()

	return cloneMessages(collected), nil
}

// CachedConversations returns the last fetched conversation list
// without touching the remote service.
func (ix *Index) CachedConversations() []domain.Conversation {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return cloneConversations(ix.convs)
}

// CachedMessages returns the last fetched page for a conversation id.
func (ix *Index) CachedMessages(conversationID int64) []domain.Message {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return cloneMessages(ix.messages[conversationID])
}

// Conversation resolves a cached conversation by id.
func (ix *Index) Conversation(id int64) (domain.Conversation, bool) {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	for _, conv := range ix.convs {
		if conv.ID == id {
			return conv, true
		}
	}
	return domain.Conversation{}, false
}

func cloneConversations(in []domain.Conversation) []domain.Conversation {
	out := make([]domain.Conversation, len(in))
	copy(out, in)
	return out
}

func cloneMessages(in []domain.Message) []domain.Message {
	out := make([]domain.Message, len(in))
	copy(out, in)
	return out
}
