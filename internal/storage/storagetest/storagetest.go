// Package storagetest holds the behaviour every playlist.Backend must share.
// Each backend package runs it against its own store.
package storagetest

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"playlist-manager/internal/playlist"
)

// Factory returns an empty backend. It is called once per subtest and is
// responsible for cleaning up through t.Cleanup.
type Factory func(t *testing.T) playlist.Backend

func Run(t *testing.T, newBackend Factory) {
	tests := []struct {
		name string
		fn   func(t *testing.T, b playlist.Backend)
	}{
		{"EmptyCollection", testEmptyCollection},
		{"CreateTwiceConflicts", testCreateTwiceConflicts},
		{"DeleteCascades", testDeleteCascades},
		{"DeleteTwice", testDeleteTwice},
		{"RenamePlaylist", testRenamePlaylist},
		{"RenameCollision", testRenameCollision},
		{"AddVideoRoundTrip", testAddVideoRoundTrip},
		{"AddVideoUnknownPlaylist", testAddVideoUnknownPlaylist},
		{"DuplicateTitleConflicts", testDuplicateTitleConflicts},
		{"UpdateVideoRenamesTitle", testUpdateVideoRenamesTitle},
		{"UpdateVideoClearsOptional", testUpdateVideoClearsOptional},
		{"UpdateVideoMissing", testUpdateVideoMissing},
		{"SetVideoURLKeepsOtherFields", testSetVideoURL},
		{"DeleteVideo", testDeleteVideo},
		{"Ordering", testOrdering},
		{"SportsScenario", testSportsScenario},
		{"Ping", testPing},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.fn(t, newBackend(t))
		})
	}
}

func mustCreate(t *testing.T, b playlist.Backend, name string) {
	t.Helper()
	_, err := b.CreatePlaylist(context.Background(), name)
	require.NoError(t, err)
}

func mustAdd(t *testing.T, b playlist.Backend, name string, v playlist.Video) {
	t.Helper()
	_, err := b.AddVideo(context.Background(), name, v)
	require.NoError(t, err)
}

func testEmptyCollection(t *testing.T, b playlist.Backend) {
	pls, err := b.ListAll(context.Background())
	require.NoError(t, err)
	assert.Empty(t, pls)
}

func testCreateTwiceConflicts(t *testing.T, b playlist.Backend) {
	ctx := context.Background()

	pl, err := b.CreatePlaylist(ctx, "news")
	require.NoError(t, err)
	assert.Equal(t, "news", pl.Name)
	assert.Empty(t, pl.Videos)

	_, err = b.CreatePlaylist(ctx, "news")
	assert.ErrorIs(t, err, playlist.ErrConflict)

	pls, err := b.ListAll(ctx)
	require.NoError(t, err)
	require.Len(t, pls, 1)
	assert.Equal(t, "news", pls[0].Name)
}

func testDeleteCascades(t *testing.T, b playlist.Backend) {
	ctx := context.Background()
	mustCreate(t, b, "movies")
	mustAdd(t, b, "movies", playlist.Video{Title: "a", URL: "http://x/a"})
	mustAdd(t, b, "movies", playlist.Video{Title: "b", URL: "http://x/b"})

	require.NoError(t, b.DeletePlaylist(ctx, "movies"))

	pls, err := b.ListAll(ctx)
	require.NoError(t, err)
	assert.Empty(t, pls)

	_, err = b.GetVideo(ctx, "movies", "a")
	assert.ErrorIs(t, err, playlist.ErrNotFound)

	// A new playlist with the same name starts empty.
	mustCreate(t, b, "movies")
	pls, err = b.ListAll(ctx)
	require.NoError(t, err)
	require.Len(t, pls, 1)
	assert.Empty(t, pls[0].Videos)
}

func testDeleteTwice(t *testing.T, b playlist.Backend) {
	ctx := context.Background()
	mustCreate(t, b, "kids")

	assert.NoError(t, b.DeletePlaylist(ctx, "kids"))
	assert.ErrorIs(t, b.DeletePlaylist(ctx, "kids"), playlist.ErrNotFound)
}

func testRenamePlaylist(t *testing.T, b playlist.Backend) {
	ctx := context.Background()
	mustCreate(t, b, "old")
	mustAdd(t, b, "old", playlist.Video{Title: "clip", URL: "http://x/clip"})

	require.NoError(t, b.RenamePlaylist(ctx, "old", "new"))

	v, err := b.GetVideo(ctx, "new", "clip")
	require.NoError(t, err)
	assert.Equal(t, "http://x/clip", v.URL)

	_, err = b.GetVideo(ctx, "old", "clip")
	assert.ErrorIs(t, err, playlist.ErrNotFound)

	assert.ErrorIs(t, b.RenamePlaylist(ctx, "missing", "other"), playlist.ErrNotFound)
}

func testRenameCollision(t *testing.T, b playlist.Backend) {
	ctx := context.Background()
	mustCreate(t, b, "one")
	mustCreate(t, b, "two")

	assert.ErrorIs(t, b.RenamePlaylist(ctx, "one", "two"), playlist.ErrConflict)

	pls, err := b.ListAll(ctx)
	require.NoError(t, err)
	require.Len(t, pls, 2)
	assert.Equal(t, "one", pls[0].Name)
	assert.Equal(t, "two", pls[1].Name)
}

func testAddVideoRoundTrip(t *testing.T, b playlist.Backend) {
	ctx := context.Background()
	mustCreate(t, b, "live")

	want := playlist.Video{
		Title:     "channel",
		URL:       "http://x/stream.m3u8",
		Logo:      "http://x/logo.png",
		UpdateURL: "http://x/update",
	}
	pl, err := b.AddVideo(ctx, "live", want)
	require.NoError(t, err)
	assert.Equal(t, "live", pl.Name)
	assert.Equal(t, []playlist.Video{want}, pl.Videos)

	pls, err := b.ListAll(ctx)
	require.NoError(t, err)
	require.Len(t, pls, 1)
	got, ok := pls[0].FindVideo("channel")
	require.True(t, ok)
	assert.Equal(t, want, got)

	v, err := b.GetVideo(ctx, "live", "channel")
	require.NoError(t, err)
	assert.Equal(t, want, *v)
}

func testAddVideoUnknownPlaylist(t *testing.T, b playlist.Backend) {
	ctx := context.Background()
	mustCreate(t, b, "exists")

	_, err := b.AddVideo(ctx, "never-created", playlist.Video{Title: "t", URL: "http://x/t"})
	assert.ErrorIs(t, err, playlist.ErrNotFound)

	pls, err := b.ListAll(ctx)
	require.NoError(t, err)
	require.Len(t, pls, 1)
	assert.Equal(t, "exists", pls[0].Name)
	assert.Empty(t, pls[0].Videos)
}

func testDuplicateTitleConflicts(t *testing.T, b playlist.Backend) {
	ctx := context.Background()
	mustCreate(t, b, "a")
	mustCreate(t, b, "b")
	mustAdd(t, b, "a", playlist.Video{Title: "same", URL: "http://x/1"})

	_, err := b.AddVideo(ctx, "a", playlist.Video{Title: "same", URL: "http://x/2"})
	assert.ErrorIs(t, err, playlist.ErrConflict)

	// Titles only need to be unique inside one playlist.
	_, err = b.AddVideo(ctx, "b", playlist.Video{Title: "same", URL: "http://x/3"})
	assert.NoError(t, err)

	v, err := b.GetVideo(ctx, "a", "same")
	require.NoError(t, err)
	assert.Equal(t, "http://x/1", v.URL)
}

func testUpdateVideoRenamesTitle(t *testing.T, b playlist.Backend) {
	ctx := context.Background()
	mustCreate(t, b, "p")
	mustAdd(t, b, "p", playlist.Video{Title: "t1", URL: "http://x/1"})
	mustAdd(t, b, "p", playlist.Video{Title: "other", URL: "http://x/o"})

	updated := playlist.Video{Title: "t2", URL: "http://x/2", Logo: "http://x/l.png"}
	require.NoError(t, b.UpdateVideo(ctx, "p", "t1", updated))

	v, err := b.GetVideo(ctx, "p", "t2")
	require.NoError(t, err)
	assert.Equal(t, updated, *v)

	_, err = b.GetVideo(ctx, "p", "t1")
	assert.ErrorIs(t, err, playlist.ErrNotFound)

	// Renaming onto a sibling's title is a conflict and changes nothing.
	err = b.UpdateVideo(ctx, "p", "t2", playlist.Video{Title: "other", URL: "http://x/z"})
	assert.ErrorIs(t, err, playlist.ErrConflict)
	v, err = b.GetVideo(ctx, "p", "t2")
	require.NoError(t, err)
	assert.Equal(t, updated, *v)
}

func testUpdateVideoClearsOptional(t *testing.T, b playlist.Backend) {
	ctx := context.Background()
	mustCreate(t, b, "p")
	mustAdd(t, b, "p", playlist.Video{Title: "t", URL: "http://x/1", Logo: "http://x/l", UpdateURL: "http://x/u"})

	require.NoError(t, b.UpdateVideo(ctx, "p", "t", playlist.Video{Title: "t", URL: "http://x/1"}))

	v, err := b.GetVideo(ctx, "p", "t")
	require.NoError(t, err)
	assert.Empty(t, v.Logo)
	assert.Empty(t, v.UpdateURL)
}

func testUpdateVideoMissing(t *testing.T, b playlist.Backend) {
	ctx := context.Background()
	mustCreate(t, b, "p")

	err := b.UpdateVideo(ctx, "p", "nope", playlist.Video{Title: "x", URL: "http://x"})
	assert.ErrorIs(t, err, playlist.ErrNotFound)

	err = b.UpdateVideo(ctx, "missing", "nope", playlist.Video{Title: "x", URL: "http://x"})
	assert.ErrorIs(t, err, playlist.ErrNotFound)
}

func testSetVideoURL(t *testing.T, b playlist.Backend) {
	ctx := context.Background()
	mustCreate(t, b, "p")
	orig := playlist.Video{Title: "t", URL: "http://x/old", Logo: "http://x/l", UpdateURL: "http://x/u"}
	mustAdd(t, b, "p", orig)

	require.NoError(t, b.SetVideoURL(ctx, "p", "t", "http://x/new"))

	v, err := b.GetVideo(ctx, "p", "t")
	require.NoError(t, err)
	want := orig
	want.URL = "http://x/new"
	assert.Equal(t, want, *v)

	assert.ErrorIs(t, b.SetVideoURL(ctx, "p", "missing", "http://x"), playlist.ErrNotFound)
}

func testDeleteVideo(t *testing.T, b playlist.Backend) {
	ctx := context.Background()
	mustCreate(t, b, "p")
	mustAdd(t, b, "p", playlist.Video{Title: "keep", URL: "http://x/k"})
	mustAdd(t, b, "p", playlist.Video{Title: "drop", URL: "http://x/d"})

	require.NoError(t, b.DeleteVideo(ctx, "p", "drop"))
	assert.ErrorIs(t, b.DeleteVideo(ctx, "p", "drop"), playlist.ErrNotFound)

	pls, err := b.ListAll(ctx)
	require.NoError(t, err)
	require.Len(t, pls, 1)
	require.Len(t, pls[0].Videos, 1)
	assert.Equal(t, "keep", pls[0].Videos[0].Title)
}

func testOrdering(t *testing.T, b playlist.Backend) {
	ctx := context.Background()
	for _, name := range []string{"gamma", "alpha", "Zulu", "beta"} {
		mustCreate(t, b, name)
	}
	for _, title := range []string{"c", "a", "B", "b"} {
		mustAdd(t, b, "beta", playlist.Video{Title: title, URL: "http://x/" + title})
	}

	pls, err := b.ListAll(ctx)
	require.NoError(t, err)

	// Byte order on every backend: upper case sorts before lower case.
	var names []string
	for _, p := range pls {
		names = append(names, p.Name)
	}
	require.Equal(t, []string{"Zulu", "alpha", "beta", "gamma"}, names)

	var titles []string
	for _, v := range pls[2].Videos {
		titles = append(titles, v.Title)
	}
	assert.Equal(t, []string{"B", "a", "b", "c"}, titles)
	assert.NotNil(t, pls[1].Videos)
	assert.Empty(t, pls[1].Videos)
}

func testSportsScenario(t *testing.T, b playlist.Backend) {
	ctx := context.Background()
	mustCreate(t, b, "Sports")
	mustAdd(t, b, "Sports", playlist.Video{Title: "Match1", URL: "http://a/1.mp4"})
	mustAdd(t, b, "Sports", playlist.Video{Title: "Match2", URL: "http://a/2.mp4", Logo: "http://a/logo.png"})

	pls, err := b.ListAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, []playlist.Playlist{{
		Name: "Sports",
		Videos: []playlist.Video{
			{Title: "Match1", URL: "http://a/1.mp4"},
			{Title: "Match2", URL: "http://a/2.mp4", Logo: "http://a/logo.png"},
		},
	}}, pls)
}

func testPing(t *testing.T, b playlist.Backend) {
	assert.NoError(t, b.Ping(context.Background()))
}
