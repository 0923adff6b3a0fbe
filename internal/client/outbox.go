package client

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"sort"
	"sync"
	"time"

	"chatcore/internal/entity"
	"chatcore/internal/service"
)

// LocalStatus is the client-side lifecycle of an optimistic message.
type LocalStatus string

const (
	StatusSending LocalStatus = "sending" // Rendered optimistically, not yet acknowledged
	StatusSent    LocalStatus = "sent"    // Acknowledged, committed id known
	StatusFailed  LocalStatus = "failed"  // Send failed, eligible for retry
)

// LocalMessage is one entry of the client's merged conversation view. A
// message has a LocalID from birth; CommittedID is filled in once the server
// acknowledges it.
type LocalMessage struct {
	LocalID     string
	CommittedID string
	SenderID    string
	Content     string
	ReplyToID   string
	Status      LocalStatus
	Deleted     bool
	Edited      bool
	CreatedAt   time.Time
}

// ID returns the committed id when known, the local temp id otherwise.
func (m *LocalMessage) ID() string {
	if m.CommittedID != "" {
		return m.CommittedID
	}
	return m.LocalID
}

// Outbox keeps one conversation's optimistic view: committed messages merged
// from the server plus local sends in flight. All methods are safe for
// concurrent use.
type Outbox struct {
	mu sync.Mutex

	transport      Transport
	conversationID string
	userID         string

	seq      int
	suffix   string // Random per-session part of temp ids, avoids collisions across restarts
	messages map[string]*LocalMessage
	order    []string // Local ids in insertion order, resorted on snapshot
}

func NewOutbox(transport Transport, conversationID, userID string) *Outbox {
	buf := make([]byte, 4)
	rand.Read(buf)
	return &Outbox{
		transport:      transport,
		conversationID: conversationID,
		userID:         userID,
		suffix:         hex.EncodeToString(buf),
		messages:       make(map[string]*LocalMessage),
	}
}

func (o *Outbox) nextTempID() string {
	o.seq++
	return fmt.Sprintf("local-%s-%d", o.suffix, o.seq)
}

// Send appends an optimistic message and dispatches it. The returned entry
// reflects the outcome: StatusSent with a committed id, or StatusFailed.
func (o *Outbox) Send(content, replyToID string) *LocalMessage {
	o.mu.Lock()
	msg := &LocalMessage{
		LocalID:   o.nextTempID(),
		SenderID:  o.userID,
		Content:   content,
		ReplyToID: replyToID,
		Status:    StatusSending,
		CreatedAt: time.Now(),
	}
	o.messages[msg.LocalID] = msg
	o.order = append(o.order, msg.LocalID)
	o.mu.Unlock()

	o.dispatch(msg.LocalID)
	return o.get(msg.LocalID)
}

// Retry re-dispatches a failed message. Unknown or non-failed ids are a no-op.
func (o *Outbox) Retry(localID string) *LocalMessage {
	o.mu.Lock()
	msg, ok := o.messages[localID]
	if !ok || msg.Status != StatusFailed {
		o.mu.Unlock()
		return o.get(localID)
	}
	msg.Status = StatusSending
	o.mu.Unlock()

	o.dispatch(localID)
	return o.get(localID)
}

func (o *Outbox) dispatch(localID string) {
	o.mu.Lock()
	msg, ok := o.messages[localID]
	if !ok {
		o.mu.Unlock()
		return
	}
	content, replyTo := msg.Content, msg.ReplyToID
	o.mu.Unlock()

	committed, err := o.transport.SendMessage(o.conversationID, content, replyTo)

	o.mu.Lock()
	defer o.mu.Unlock()
	msg, ok = o.messages[localID]
	if !ok {
		return
	}
	if err != nil {
		msg.Status = StatusFailed
		return
	}
	msg.Status = StatusSent
	msg.CommittedID = committed.ID
	msg.CreatedAt = committed.CreatedAt
}

// Edit applies the new content immediately, then confirms with the server.
// On failure the previous content is restored. Only committed own messages
// can be edited.
func (o *Outbox) Edit(id, newContent string) error {
	o.mu.Lock()
	msg := o.find(id)
	if msg == nil || msg.CommittedID == "" || msg.Deleted {
		o.mu.Unlock()
		return fmt.Errorf("message %s cannot be edited", id)
	}
	previous := msg.Content
	wasEdited := msg.Edited
	msg.Content = newContent
	msg.Edited = true
	committedID := msg.CommittedID
	o.mu.Unlock()

	if err := o.transport.EditMessage(committedID, newContent); err != nil {
		o.mu.Lock()
		if msg := o.find(id); msg != nil {
			msg.Content = previous
			msg.Edited = wasEdited
		}
		o.mu.Unlock()
		return err
	}
	return nil
}

// Delete blanks the message immediately, then confirms with the server,
// restoring it on failure.
func (o *Outbox) Delete(id string) error {
	o.mu.Lock()
	msg := o.find(id)
	if msg == nil || msg.CommittedID == "" || msg.Deleted {
		o.mu.Unlock()
		return fmt.Errorf("message %s cannot be deleted", id)
	}
	previous := msg.Content
	msg.Deleted = true
	msg.Content = ""
	committedID := msg.CommittedID
	o.mu.Unlock()

	if err := o.transport.DeleteMessage(committedID); err != nil {
		o.mu.Lock()
		if msg := o.find(id); msg != nil {
			msg.Deleted = false
			msg.Content = previous
		}
		o.mu.Unlock()
		return err
	}
	return nil
}

// MarkRead sends read marks for the given committed ids. Local-only ids are
// skipped.
func (o *Outbox) MarkRead(ids []string) (int, error) {
	o.mu.Lock()
	var committed []string
	for _, id := range ids {
		if msg := o.find(id); msg != nil && msg.CommittedID != "" {
			committed = append(committed, msg.CommittedID)
		}
	}
	o.mu.Unlock()

	if len(committed) == 0 {
		return 0, nil
	}
	return o.transport.MarkRead(o.conversationID, committed)
}

// Reconcile merges server rows into the local view. Rows already known by
// committed id are updated in place, so replaying a feed is harmless. A
// server row that matches an unacknowledged local send (same sender and
// content) resolves that send instead of duplicating it, which recovers
// sends whose acknowledgement was lost.
func (o *Outbox) Reconcile(serverMessages []*entity.Message) {
	o.mu.Lock()
	defer o.mu.Unlock()

	for _, sm := range serverMessages {
		if existing := o.findByCommitted(sm.ID); existing != nil {
			existing.Content = sm.Content
			existing.Edited = sm.Edited
			existing.Deleted = sm.Deleted
			existing.CreatedAt = sm.CreatedAt
			continue
		}

		if sm.SenderID == o.userID {
			if pending := o.matchPending(sm); pending != nil {
				pending.CommittedID = sm.ID
				pending.Status = StatusSent
				pending.CreatedAt = sm.CreatedAt
				continue
			}
		}

		local := &LocalMessage{
			LocalID:     o.nextTempID(),
			CommittedID: sm.ID,
			SenderID:    sm.SenderID,
			Content:     sm.Content,
			ReplyToID:   sm.ReplyToID,
			Status:      StatusSent,
			Deleted:     sm.Deleted,
			Edited:      sm.Edited,
			CreatedAt:   sm.CreatedAt,
		}
		o.messages[local.LocalID] = local
		o.order = append(o.order, local.LocalID)
	}
}

// Backfill fetches one page of history and merges it into the view. The
// returned page carries the cursor for the next, older call.
func (o *Outbox) Backfill(before time.Time, limit int) (*service.MessagePage, error) {
	page, err := o.transport.FetchPage(o.conversationID, before, limit)
	if err != nil {
		return nil, err
	}
	o.Reconcile(page.Messages)
	return page, nil
}

// Sync polls the server feed, merges this conversation's new and changed
// messages, and returns the watermarks for the next poll. On error the
// caller keeps its current watermarks.
func (o *Outbox) Sync(marks service.Watermarks) (service.Watermarks, error) {
	set, err := o.transport.Poll(marks)
	if err != nil {
		return marks, err
	}
	if changes := set.PerConversation[o.conversationID]; changes != nil {
		o.Reconcile(changes.Messages)
	}
	return set.Next, nil
}

// Snapshot returns the merged view: committed messages by creation time,
// in-flight and failed sends after them.
func (o *Outbox) Snapshot() []*LocalMessage {
	o.mu.Lock()
	defer o.mu.Unlock()

	out := make([]*LocalMessage, 0, len(o.order))
	for _, id := range o.order {
		copied := *o.messages[id]
		out = append(out, &copied)
	}
	sort.SliceStable(out, func(i, j int) bool {
		ci, cj := out[i].CommittedID != "", out[j].CommittedID != ""
		if ci != cj {
			return ci // Committed before pending
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

func (o *Outbox) get(localID string) *LocalMessage {
	o.mu.Lock()
	defer o.mu.Unlock()
	msg, ok := o.messages[localID]
	if !ok {
		return nil
	}
	copied := *msg
	return &copied
}

// find resolves either a local or a committed id. Caller holds the lock.
func (o *Outbox) find(id string) *LocalMessage {
	if msg, ok := o.messages[id]; ok {
		return msg
	}
	return o.findByCommitted(id)
}

func (o *Outbox) findByCommitted(committedID string) *LocalMessage {
	for _, msg := range o.messages {
		if msg.CommittedID == committedID {
			return msg
		}
	}
	return nil
}

func (o *Outbox) matchPending(sm *entity.Message) *LocalMessage {
	for _, id := range o.order {
		msg := o.messages[id]
		if msg.CommittedID == "" && msg.Content == sm.Content {
			return msg
		}
	}
	return nil
}
