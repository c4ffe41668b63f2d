package playlist

import (
	"cmp"
	"context"
	"io"
	"log/slog"
	"slices"
	"sync"

	"github.com/stretchr/testify/mock"
)

// memBackend is an in-memory Backend. Setting Err makes every call fail with
// it; ListErr only affects ListAll. AfterList runs once ListAll has read its
// snapshot, outside the lock.
type memBackend struct {
	mu        sync.Mutex
	pls       []Playlist
	Err       error
	ListErr   error
	PingErr   error
	AfterList func()
	calls     int
}

func newMemBackend() *memBackend { return &memBackend{} }

func (m *memBackend) begin() error {
	m.calls++
	return m.Err
}

func (m *memBackend) index(name string) int {
	return slices.IndexFunc(m.pls, func(p Playlist) bool { return p.Name == name })
}

func (m *memBackend) locate(name, title string) (int, int, error) {
	i := m.index(name)
	if i < 0 {
		return 0, 0, ErrNotFound
	}
	j := slices.IndexFunc(m.pls[i].Videos, func(v Video) bool { return v.Title == title })
	if j < 0 {
		return 0, 0, ErrNotFound
	}
	return i, j, nil
}

func (m *memBackend) ListAll(context.Context) ([]Playlist, error) {
	out, hook, err := m.snapshot()
	if hook != nil {
		hook()
	}
	return out, err
}

func (m *memBackend) snapshot() ([]Playlist, func(), error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.begin(); err != nil {
		return nil, nil, err
	}
	if m.ListErr != nil {
		return nil, nil, m.ListErr
	}
	out := clonePlaylists(m.pls)
	for i := range out {
		slices.SortFunc(out[i].Videos, func(a, b Video) int { return cmp.Compare(a.Title, b.Title) })
	}
	slices.SortFunc(out, func(a, b Playlist) int { return cmp.Compare(a.Name, b.Name) })
	return out, m.AfterList, nil
}

func (m *memBackend) GetVideo(_ context.Context, name, title string) (*Video, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.begin(); err != nil {
		return nil, err
	}
	i, j, err := m.locate(name, title)
	if err != nil {
		return nil, err
	}
	v := m.pls[i].Videos[j]
	return &v, nil
}

func (m *memBackend) CreatePlaylist(_ context.Context, name string) (*Playlist, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.begin(); err != nil {
		return nil, err
	}
	if m.index(name) >= 0 {
		return nil, ErrConflict
	}
	m.pls = append(m.pls, Playlist{Name: name, Videos: []Video{}})
	return &Playlist{Name: name, Videos: []Video{}}, nil
}

func (m *memBackend) DeletePlaylist(_ context.Context, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.begin(); err != nil {
		return err
	}
	i := m.index(name)
	if i < 0 {
		return ErrNotFound
	}
	m.pls = slices.Delete(m.pls, i, i+1)
	return nil
}

func (m *memBackend) RenamePlaylist(_ context.Context, oldName, newName string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.begin(); err != nil {
		return err
	}
	i := m.index(oldName)
	if i < 0 {
		return ErrNotFound
	}
	if m.index(newName) >= 0 {
		return ErrConflict
	}
	m.pls[i].Name = newName
	return nil
}

func (m *memBackend) AddVideo(_ context.Context, name string, v Video) (*Playlist, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.begin(); err != nil {
		return nil, err
	}
	i := m.index(name)
	if i < 0 {
		return nil, ErrNotFound
	}
	if _, ok := m.pls[i].FindVideo(v.Title); ok {
		return nil, ErrConflict
	}
	m.pls[i].Videos = append(m.pls[i].Videos, v)
	out := clonePlaylists(m.pls[i : i+1])[0]
	return &out, nil
}

func (m *memBackend) UpdateVideo(_ context.Context, name, oldTitle string, v Video) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.begin(); err != nil {
		return err
	}
	i, j, err := m.locate(name, oldTitle)
	if err != nil {
		return err
	}
	if _, taken := m.pls[i].FindVideo(v.Title); taken && v.Title != oldTitle {
		return ErrConflict
	}
	m.pls[i].Videos[j] = v
	return nil
}

func (m *memBackend) SetVideoURL(_ context.Context, name, title, url string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.begin(); err != nil {
		return err
	}
	i, j, err := m.locate(name, title)
	if err != nil {
		return err
	}
	m.pls[i].Videos[j].URL = url
	return nil
}

func (m *memBackend) DeleteVideo(_ context.Context, name, title string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.begin(); err != nil {
		return err
	}
	i, j, err := m.locate(name, title)
	if err != nil {
		return err
	}
	m.pls[i].Videos = slices.Delete(m.pls[i].Videos, j, j+1)
	return nil
}

func (m *memBackend) Ping(context.Context) error { return m.PingErr }

func (m *memBackend) Close() error { return nil }

func (m *memBackend) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// mockRefresher is a testify mock for Refresher.
type mockRefresher struct {
	mock.Mock
}

func (m *mockRefresher) Fetch(ctx context.Context, updateURL string) (string, error) {
	args := m.Called(ctx, updateURL)
	return args.String(0), args.Error(1)
}

// recordingPublisher keeps every event it receives.
type recordingPublisher struct {
	mu     sync.Mutex
	events []Event
	err    error
}

func (p *recordingPublisher) Publish(_ context.Context, ev Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
	return p.err
}

func (p *recordingPublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []string
	for _, ev := range p.events {
		out = append(out, ev.Type)
	}
	return out
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
