package polls

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/stretchr/testify/require"

	"github.com/dailypoll/backend/internal/eventlog"
	"github.com/dailypoll/backend/internal/models"
	"github.com/dailypoll/backend/internal/questions"
	"github.com/dailypoll/backend/internal/store"
	"github.com/dailypoll/backend/pkg/database"
)

type sentMessage struct {
	ChannelID string
	ID        string
	Msg       *discordgo.MessageSend
}

// fakePlatform keeps posted messages in memory.
type fakePlatform struct {
	mu       sync.Mutex
	checkErr error
	sendErr  error
	editErr  error
	fetchErr error
	next     int
	sent     []sentMessage
	edits    []*discordgo.MessageEdit
	messages map[string]*discordgo.Message
	hold     *editHold
}

// editHold parks the next Edit until release is closed.
type editHold struct {
	entered chan struct{}
	release chan struct{}
}

func (f *fakePlatform) holdNextEdit() *editHold {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.hold = &editHold{entered: make(chan struct{}), release: make(chan struct{})}
	return f.hold
}

func newFakePlatform() *fakePlatform {
	return &fakePlatform{messages: map[string]*discordgo.Message{}}
}

func (f *fakePlatform) CheckChannel(context.Context, string) error {
	return f.checkErr
}

func (f *fakePlatform) Send(_ context.Context, channelID string, msg *discordgo.MessageSend) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sendErr != nil {
		return "", f.sendErr
	}
	f.next++
	id := fmt.Sprintf("m%d", f.next)
	f.sent = append(f.sent, sentMessage{ChannelID: channelID, ID: id, Msg: msg})
	f.messages[id] = &discordgo.Message{ID: id, ChannelID: channelID, Embeds: msg.Embeds, Components: msg.Components}
	return id, nil
}

func (f *fakePlatform) Edit(_ context.Context, edit *discordgo.MessageEdit) error {
	f.mu.Lock()
	hold := f.hold
	f.hold = nil
	f.mu.Unlock()
	if hold != nil {
		close(hold.entered)
		<-hold.release
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.editErr != nil {
		return f.editErr
	}
	f.edits = append(f.edits, edit)
	if msg, ok := f.messages[edit.ID]; ok {
		if edit.Embeds != nil {
			msg.Embeds = *edit.Embeds
		}
		if edit.Components != nil {
			msg.Components = *edit.Components
		}
	}
	return nil
}

func (f *fakePlatform) Fetch(_ context.Context, _, messageID string) (*discordgo.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fetchErr != nil {
		return nil, f.fetchErr
	}
	msg, ok := f.messages[messageID]
	if !ok {
		return nil, fmt.Errorf("unknown message %s", messageID)
	}
	return msg, nil
}

func (f *fakePlatform) message(id string) *discordgo.Message {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.messages[id]
}

func (f *fakePlatform) sentCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sent)
}

type fixedPicker struct{ q models.Question }

func (p fixedPicker) Pick(context.Context) (models.Question, questions.Origin) {
	return p.q, questions.OriginLocal
}

type mapSettings map[string]string

func (m mapSettings) Get(_ context.Context, key string) (string, bool, error) {
	v, ok := m[key]
	return v, ok, nil
}

type memSink struct {
	mu     sync.Mutex
	events []models.Event
}

func (s *memSink) AppendEvent(_ context.Context, evt models.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, evt)
	return nil
}

func (s *memSink) types() []models.EventType {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.EventType, 0, len(s.events))
	for _, e := range s.events {
		out = append(out, e.Type)
	}
	return out
}

type harness struct {
	store    *store.SQLite
	platform *fakePlatform
	sink     *memSink
	mirror   *eventlog.Mirror
	manager  *Manager
	intake   *Intake
	clock    time.Time
}

var hongKong = time.FixedZone("HKT", 8*60*60)

func newHarness(t *testing.T) *harness {
	t.Helper()
	db, err := database.NewSQLite(t.TempDir(), nil)
	require.NoError(t, err)
	st, err := store.NewSQLite(db)
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	h := &harness{
		store:    st,
		platform: newFakePlatform(),
		sink:     &memSink{},
		clock:    time.Date(2024, 5, 1, 9, 0, 0, 0, hongKong),
	}
	h.mirror = eventlog.NewMirror(h.sink, time.Second, nil)
	h.manager = NewManager(Deps{
		Store:     st,
		Platform:  h.platform,
		Questions: fixedPicker{q: models.Question{A: "出街食飯", B: "叫外賣返屋企", Tag: "food"}},
		Settings:  mapSettings{},
		Mirror:    h.mirror,
	}, Options{Location: hongKong, Duration: 1440 * time.Minute, LogWait: time.Second})
	h.manager.now = func() time.Time { return h.clock }
	h.manager.render.now = func() time.Time { return h.clock }
	h.intake = NewIntake(h.manager, time.Second)
	t.Cleanup(func() {
		h.manager.Wait()
		h.mirror.Wait()
	})
	return h
}
