package questions

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dailypoll/backend/internal/models"
)

type fakeRemote struct {
	mu      sync.Mutex
	list    []models.Question
	getErr  error
	addErr  error
	added   []models.Question
	getCall int
}

func (f *fakeRemote) GetQuestions(context.Context) ([]models.Question, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.getCall++
	return f.list, f.getErr
}

func (f *fakeRemote) AddQuestion(_ context.Context, q models.Question) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.addErr != nil {
		return f.addErr
	}
	f.added = append(f.added, q)
	return nil
}

func newFileSource(t *testing.T, remote Remote) (*Source, FileSnapshot) {
	t.Helper()
	snap := FileSnapshot{Path: filepath.Join(t.TempDir(), "questions.json")}
	return NewSource(context.Background(), remote, snap, time.Second, nil), snap
}

func TestNewSourceFallsBackToDefaults(t *testing.T) {
	src, _ := newFileSource(t, nil)
	assert.Equal(t, len(Defaults), src.Size())
}

func TestNewSourceLoadsSnapshot(t *testing.T) {
	path := filepath.Join(t.TempDir(), "questions.json")
	require.NoError(t, os.WriteFile(path, []byte(`[{"a":"貓","b":"狗","tag":null},{"a":"","b":"x"}]`), 0o644))

	src := NewSource(context.Background(), nil, FileSnapshot{Path: path}, time.Second, nil)
	require.Equal(t, 1, src.Size())
	q, origin := src.Pick(context.Background())
	assert.Equal(t, OriginLocal, origin)
	assert.Equal(t, models.Question{A: "貓", B: "狗"}, q)
}

func TestNewSourceCorruptSnapshot(t *testing.T) {
	path := filepath.Join(t.TempDir(), "questions.json")
	require.NoError(t, os.WriteFile(path, []byte(`{not json`), 0o644))

	src := NewSource(context.Background(), nil, FileSnapshot{Path: path}, time.Second, nil)
	assert.Equal(t, len(Defaults), src.Size())
}

func TestPickPrefersRemote(t *testing.T) {
	remote := &fakeRemote{list: []models.Question{{A: "R1", B: "R2", Tag: "remote"}}}
	src, _ := newFileSource(t, remote)

	q, origin := src.Pick(context.Background())
	assert.Equal(t, OriginRemote, origin)
	assert.Equal(t, "R1", q.A)
}

func TestPickFallsBackWhenRemoteFailsOrEmpty(t *testing.T) {
	for name, remote := range map[string]Remote{
		"error": &fakeRemote{getErr: errors.New("boom")},
		"empty": &fakeRemote{},
	} {
		t.Run(name, func(t *testing.T) {
			src, _ := newFileSource(t, remote)
			q, origin := src.Pick(context.Background())
			assert.Equal(t, OriginLocal, origin)
			assert.Contains(t, Defaults, q)
		})
	}
}

func TestReloadFromRemoteWritesSnapshot(t *testing.T) {
	remote := &fakeRemote{list: []models.Question{{A: "1", B: "2"}, {A: "3", B: "4", Tag: "t"}}}
	src, snap := newFileSource(t, remote)

	res, err := src.Reload(context.Background())
	require.NoError(t, err)
	assert.Equal(t, ReloadResult{Count: 2, Origin: OriginRemote}, res)

	saved, err := snap.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, remote.list, saved)
}

func TestReloadKeepsLocalWhenRemoteDown(t *testing.T) {
	src, snap := newFileSource(t, &fakeRemote{getErr: errors.New("down")})

	res, err := src.Reload(context.Background())
	require.NoError(t, err)
	assert.Equal(t, OriginLocal, res.Origin)
	assert.Equal(t, len(Defaults), res.Count)

	saved, err := snap.Load(context.Background())
	require.NoError(t, err)
	assert.Len(t, saved, len(Defaults))
}

func TestAddValidates(t *testing.T) {
	src, _ := newFileSource(t, nil)
	_, err := src.Add(context.Background(), models.Question{A: "  ", B: "x"})
	assert.ErrorIs(t, err, ErrInvalidQuestion)
	assert.Equal(t, len(Defaults), src.Size())
}

func TestAddRemote(t *testing.T) {
	remote := &fakeRemote{}
	src, _ := newFileSource(t, remote)

	origin, err := src.Add(context.Background(), models.Question{A: " 茶 ", B: "咖啡", Tag: "drink"})
	require.NoError(t, err)
	assert.Equal(t, OriginRemote, origin)
	assert.Equal(t, []models.Question{{A: "茶", B: "咖啡", Tag: "drink"}}, remote.added)
	assert.Equal(t, len(Defaults), src.Size())
}

func TestAddLocalWhenRemoteRejects(t *testing.T) {
	src, snap := newFileSource(t, &fakeRemote{addErr: errors.New("quota")})

	origin, err := src.Add(context.Background(), models.Question{A: "茶", B: "咖啡"})
	require.NoError(t, err)
	assert.Equal(t, OriginLocal, origin)
	assert.Equal(t, len(Defaults)+1, src.Size())

	saved, err := snap.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, models.Question{A: "茶", B: "咖啡"}, saved[len(saved)-1])
}
