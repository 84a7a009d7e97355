package chat

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/parley-chat/parley/backend/internal/models"
)

// fakeStore is an in-memory SnapshotStore. Seen side effects are reported
// on channels because the timeline fires them from goroutines.
type fakeStore struct {
	mu sync.Mutex

	directMessages []models.Message
	groupMessages  []models.Message
	userMessages   []models.Message
	loadErr        error

	insertErr error
	mutateErr error

	inserted []models.Message
	edits    []string
	removed  []string

	seenMessages      chan string
	seenConversations chan [2]string
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		seenMessages:      make(chan string, 16),
		seenConversations: make(chan [2]string, 16),
	}
}

func (f *fakeStore) ListDirectMessages(userID, otherUserID string) ([]models.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.directMessages, f.loadErr
}

func (f *fakeStore) ListGroupMessages(groupID string) ([]models.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.groupMessages, f.loadErr
}

func (f *fakeStore) ListUserMessages(userID string) ([]models.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.userMessages, f.loadErr
}

func (f *fakeStore) InsertMessage(msg models.Message) (*models.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.insertErr != nil {
		return nil, f.insertErr
	}
	f.inserted = append(f.inserted, msg)
	created := msg
	created.ID = "server-assigned"
	created.CreatedAt = time.Now()
	return &created, nil
}

func (f *fakeStore) UpdateMessageBody(messageID, senderID, body string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.mutateErr != nil {
		return f.mutateErr
	}
	f.edits = append(f.edits, messageID+"="+body)
	return nil
}

func (f *fakeStore) DeleteMessage(messageID, senderID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.mutateErr != nil {
		return f.mutateErr
	}
	f.removed = append(f.removed, messageID)
	return nil
}

func (f *fakeStore) MarkConversationSeen(senderID, receiverID string) error {
	f.seenConversations <- [2]string{senderID, receiverID}
	return nil
}

func (f *fakeStore) MarkMessageSeen(messageID string) error {
	f.seenMessages <- messageID
	return nil
}

func (f *fakeStore) insertedMessages() []models.Message {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]models.Message, len(f.inserted))
	copy(out, f.inserted)
	return out
}

// fakeBlocks is a BlockChecker over a fixed set.
type fakeBlocks struct {
	blocked map[string]bool
}

func (f *fakeBlocks) IsBlocked(userID string) bool {
	return f.blocked[userID]
}

func directMsg(id, sender, receiver string, at time.Time) models.Message {
	return models.Message{ID: id, SenderID: sender, ReceiverID: receiver, Body: "m-" + id, CreatedAt: at}
}

func messageIDs(messages []models.Message) []string {
	ids := make([]string, len(messages))
	for i, m := range messages {
		ids[i] = m.ID
	}
	return ids
}

func TestTimelineLoadSortsSnapshot(t *testing.T) {
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	store := newFakeStore()
	store.directMessages = []models.Message{
		directMsg("3", "bob", "alice", base.Add(2*time.Second)),
		directMsg("1", "alice", "bob", base),
		directMsg("2", "bob", "alice", base.Add(time.Second)),
	}

	timeline := NewTimeline("alice", models.DirectKey("bob"), store, nil)
	timeline.Load()

	require.Equal(t, []string{"1", "2", "3"}, messageIDs(timeline.Messages()))
}

func TestTimelineLoadMarksConversationSeen(t *testing.T) {
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	store := newFakeStore()
	unread := directMsg("1", "bob", "alice", base)
	store.directMessages = []models.Message{unread}

	timeline := NewTimeline("alice", models.DirectKey("bob"), store, nil)
	timeline.Load()

	select {
	case pair := <-store.seenConversations:
		require.Equal(t, [2]string{"bob", "alice"}, pair)
	case <-time.After(time.Second):
		t.Fatal("expected the conversation to be marked seen")
	}
}

func TestTimelineLoadSkipsSeenWhenNothingUnread(t *testing.T) {
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	read := directMsg("1", "bob", "alice", base)
	read.Seen = true
	store := newFakeStore()
	store.directMessages = []models.Message{
		read,
		directMsg("2", "alice", "bob", base.Add(time.Second)),
	}

	timeline := NewTimeline("alice", models.DirectKey("bob"), store, nil)
	timeline.Load()

	select {
	case <-store.seenConversations:
		t.Fatal("no seen call expected")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestTimelineLoadErrorStartsEmpty(t *testing.T) {
	store := newFakeStore()
	store.loadErr = errors.New("fetch failed")

	timeline := NewTimeline("alice", models.DirectKey("bob"), store, nil)
	timeline.Load()

	require.Empty(t, timeline.Messages())
}

func TestTimelineApplyInsertOrdersOutOfOrderArrival(t *testing.T) {
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	store := newFakeStore()
	timeline := NewTimeline("alice", models.DirectKey("bob"), store, nil)

	timeline.ApplyInsert(directMsg("2", "alice", "bob", base.Add(time.Second)))
	timeline.ApplyInsert(directMsg("3", "alice", "bob", base.Add(2*time.Second)))
	timeline.ApplyInsert(directMsg("1", "alice", "bob", base))

	require.Equal(t, []string{"1", "2", "3"}, messageIDs(timeline.Messages()))
}

func TestTimelineApplyInsertDuplicateIsNoOp(t *testing.T) {
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	store := newFakeStore()
	timeline := NewTimeline("alice", models.DirectKey("bob"), store, nil)

	msg := directMsg("1", "alice", "bob", base)
	timeline.ApplyInsert(msg)
	timeline.ApplyInsert(msg)

	require.Len(t, timeline.Messages(), 1)
}

func TestTimelineApplyInsertIgnoresOtherConversations(t *testing.T) {
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	store := newFakeStore()
	timeline := NewTimeline("alice", models.DirectKey("bob"), store, nil)

	timeline.ApplyInsert(directMsg("1", "carol", "alice", base))
	timeline.ApplyInsert(models.Message{ID: "2", SenderID: "bob", GroupID: "g-1", CreatedAt: base})

	require.Empty(t, timeline.Messages())
}

func TestTimelineApplyInsertMarksReceivedMessageSeen(t *testing.T) {
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	store := newFakeStore()
	timeline := NewTimeline("alice", models.DirectKey("bob"), store, nil)

	timeline.ApplyInsert(directMsg("in", "bob", "alice", base))

	select {
	case id := <-store.seenMessages:
		require.Equal(t, "in", id)
	case <-time.After(time.Second):
		t.Fatal("expected the received message to be marked seen")
	}

	// The actor's own sends never trigger the side effect
	timeline.ApplyInsert(directMsg("out", "alice", "bob", base.Add(time.Second)))
	select {
	case id := <-store.seenMessages:
		t.Fatalf("unexpected seen call for %s", id)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestTimelineApplyUpdate(t *testing.T) {
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	store := newFakeStore()
	timeline := NewTimeline("alice", models.DirectKey("bob"), store, nil)
	timeline.ApplyInsert(directMsg("1", "alice", "bob", base))

	edited := directMsg("1", "alice", "bob", base)
	edited.Body = "edited"
	timeline.ApplyUpdate(edited)

	require.Equal(t, "edited", timeline.Messages()[0].Body)

	// Updates for messages never materialized locally are dropped
	timeline.ApplyUpdate(directMsg("ghost", "alice", "bob", base))
	require.Len(t, timeline.Messages(), 1)
}

func TestTimelineApplyDelete(t *testing.T) {
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	store := newFakeStore()
	timeline := NewTimeline("alice", models.DirectKey("bob"), store, nil)
	timeline.ApplyInsert(directMsg("1", "alice", "bob", base))
	timeline.ApplyInsert(directMsg("2", "alice", "bob", base.Add(time.Second)))

	timeline.ApplyDelete("1")
	require.Equal(t, []string{"2"}, messageIDs(timeline.Messages()))

	timeline.ApplyDelete("ghost")
	require.Len(t, timeline.Messages(), 1)
}

func TestTimelineSendRequiresBodyOrAttachment(t *testing.T) {
	store := newFakeStore()
	timeline := NewTimeline("alice", models.DirectKey("bob"), store, nil)

	err := timeline.Send("", nil)
	require.Error(t, err)
	require.Empty(t, store.insertedMessages())
}

func TestTimelineSendBlockedRecipient(t *testing.T) {
	store := newFakeStore()
	blocks := &fakeBlocks{blocked: map[string]bool{"bob": true}}
	timeline := NewTimeline("alice", models.DirectKey("bob"), store, blocks)

	err := timeline.Send("hi", nil)
	require.ErrorIs(t, err, models.ErrRecipientBlocked)
	require.Empty(t, store.insertedMessages())
}

func TestTimelineSendDirect(t *testing.T) {
	store := newFakeStore()
	timeline := NewTimeline("alice", models.DirectKey("bob"), store, &fakeBlocks{})

	require.NoError(t, timeline.Send("hi", nil))

	inserted := store.insertedMessages()
	require.Len(t, inserted, 1)
	require.Equal(t, "alice", inserted[0].SenderID)
	require.Equal(t, "bob", inserted[0].ReceiverID)
	require.Empty(t, inserted[0].GroupID)
	require.Equal(t, "hi", inserted[0].Body)

	// Nothing appears locally until the insert event comes back
	require.Empty(t, timeline.Messages())
}

func TestTimelineSendGroupWithAttachment(t *testing.T) {
	store := newFakeStore()
	timeline := NewTimeline("alice", models.GroupKey("g-1"), store, nil)

	attachment := &models.Attachment{
		URL:  "https://files.example/cat.png",
		Kind: models.AttachmentImage,
		Name: "cat.png",
	}
	require.NoError(t, timeline.Send("", attachment))

	inserted := store.insertedMessages()
	require.Len(t, inserted, 1)
	require.Equal(t, "g-1", inserted[0].GroupID)
	require.Empty(t, inserted[0].ReceiverID)
	require.Equal(t, attachment.URL, inserted[0].FileURL)
	require.Equal(t, attachment.Kind, inserted[0].FileType)
	require.Equal(t, attachment.Name, inserted[0].FileName)
}

func TestTimelineSendRemoteFailure(t *testing.T) {
	store := newFakeStore()
	store.insertErr = errors.New("timeout")
	timeline := NewTimeline("alice", models.DirectKey("bob"), store, nil)

	err := timeline.Send("hi", nil)
	require.ErrorIs(t, err, models.ErrRemoteUnavailable)
}

func TestTimelineEdit(t *testing.T) {
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	store := newFakeStore()
	timeline := NewTimeline("alice", models.DirectKey("bob"), store, nil)
	timeline.ApplyInsert(directMsg("mine", "alice", "bob", base))
	timeline.ApplyInsert(directMsg("theirs", "bob", "alice", base.Add(time.Second)))

	require.ErrorIs(t, timeline.Edit("ghost", "x"), models.ErrNotFound)
	require.ErrorIs(t, timeline.Edit("theirs", "x"), models.ErrForbidden)
	require.Error(t, timeline.Edit("mine", ""))

	require.NoError(t, timeline.Edit("mine", "fixed"))
	require.Equal(t, []string{"mine=fixed"}, store.edits)

	store.mutateErr = errors.New("timeout")
	require.ErrorIs(t, timeline.Edit("mine", "again"), models.ErrRemoteUnavailable)
}

func TestTimelineDelete(t *testing.T) {
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	store := newFakeStore()
	timeline := NewTimeline("alice", models.DirectKey("bob"), store, nil)
	timeline.ApplyInsert(directMsg("mine", "alice", "bob", base))
	timeline.ApplyInsert(directMsg("theirs", "bob", "alice", base.Add(time.Second)))

	require.ErrorIs(t, timeline.Delete("ghost"), models.ErrNotFound)
	require.ErrorIs(t, timeline.Delete("theirs"), models.ErrForbidden)

	require.NoError(t, timeline.Delete("mine"))
	require.Equal(t, []string{"mine"}, store.removed)

	store.mutateErr = errors.New("timeout")
	require.ErrorIs(t, timeline.Delete("mine"), models.ErrRemoteUnavailable)
}
