package room

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/rand/v2"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/sharetube/listenroom/internal/domain"
	"github.com/sharetube/listenroom/internal/metrics"
	"github.com/sharetube/listenroom/internal/repository/connection/inmemory"
	"github.com/sharetube/listenroom/internal/repository/room"
	roomRedis "github.com/sharetube/listenroom/internal/repository/room/redis"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	t0              = time.UnixMilli(1_700_000_000_000)
	errFakeNotFound = errors.New("fake: not found")
)

type fakeResolver struct {
	mu       sync.Mutex
	media    map[string]domain.Media
	search   map[string]string
	verdicts map[string]bool
	availErr error
	checks   int
}

func newFakeResolver() *fakeResolver {
	return &fakeResolver{
		media:    make(map[string]domain.Media),
		search:   make(map[string]string),
		verdicts: make(map[string]bool),
	}
}

func (f *fakeResolver) add(m domain.Media) domain.Media {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.media[m.VideoId] = m
	return m
}

func (f *fakeResolver) Lookup(_ context.Context, videoId string) (domain.Media, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	m, ok := f.media[videoId]
	if !ok {
		return domain.Media{}, errFakeNotFound
	}
	return m, nil
}

func (f *fakeResolver) Search(ctx context.Context, query string) (domain.Media, error) {
	f.mu.Lock()
	videoId, ok := f.search[query]
	f.mu.Unlock()
	if !ok {
		return domain.Media{}, errFakeNotFound
	}
	return f.Lookup(ctx, videoId)
}

func (f *fakeResolver) CheckAvailability(_ context.Context, ids []string) (map[string]bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.checks++
	if f.availErr != nil {
		return map[string]bool{}, f.availErr
	}
	verdicts := make(map[string]bool, len(ids))
	for _, id := range ids {
		ok, known := f.verdicts[id]
		verdicts[id] = ok || !known
	}
	return verdicts, nil
}

type fakeSender struct {
	mu     sync.Mutex
	frames []Frame
	raw    [][]byte
	closed bool
}

func (f *fakeSender) Send(data []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	var frame Frame
	if err := json.Unmarshal(data, &frame); err != nil {
		return err
	}
	f.frames = append(f.frames, frame)
	f.raw = append(f.raw, data)
	return nil
}

func (f *fakeSender) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
}

func (f *fakeSender) count(frameType string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, frame := range f.frames {
		if frame.Type == frameType {
			n++
		}
	}
	return n
}

func (f *fakeSender) lastState(t *testing.T) StateView {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := len(f.frames) - 1; i >= 0; i-- {
		if f.frames[i].Type != FrameState {
			continue
		}
		var out struct {
			Payload StateView `json:"payload"`
		}
		require.NoError(t, json.Unmarshal(f.raw[i], &out))
		return out.Payload
	}
	t.Fatal("no state frame")
	return StateView{}
}

type testEnv struct {
	s        *service
	repo     iRoomRepo
	resolver *fakeResolver
	mu       sync.Mutex
	clock    time.Time
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	mr := miniredis.RunT(t)
	rc := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rc.Close() })

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	env := &testEnv{
		repo:     roomRedis.NewRepo(rc, logger),
		resolver: newFakeResolver(),
		clock:    t0,
	}
	env.s = NewService(env.repo, inmemory.NewRepo(logger), env.resolver, metrics.New(nil), logger, Config{
		Secret:          "secret",
		MaxQueueSize:    50,
		SuggestCooldown: 5 * time.Second,
		HistoryLimit:    500,
		IdleTimeout:     time.Minute,
		TickInterval:    time.Hour,
	})
	env.s.now = env.now
	env.s.newRand = func() *rand.Rand { return rand.New(rand.NewPCG(7, 11)) }
	t.Cleanup(func() { env.s.Shutdown(context.Background()) })

	return env
}

func (e *testEnv) now() time.Time {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.clock
}

func (e *testEnv) advance(d time.Duration) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.clock = e.clock.Add(d)
}

func vid(n int) string {
	return fmt.Sprintf("video%06d", n)
}

func link(videoId string) string {
	return "https://youtu.be/" + videoId
}

// song registers playable content and returns a link to it.
func (e *testEnv) song(n int, title string) string {
	e.resolver.add(domain.Media{VideoId: vid(n), Title: title, Artist: "band", Duration: 180, Category: "10", Embeddable: true})
	return link(vid(n))
}

func (e *testEnv) createRoom(t *testing.T) string {
	t.Helper()
	resp, err := e.s.CreateRoom(context.Background(), &CreateRoomParams{SenderId: "owner", Name: "lounge"})
	require.NoError(t, err)
	return resp.RoomId
}

func (e *testEnv) setSettings(t *testing.T, roomId string, mutate func(*domain.Settings)) {
	t.Helper()
	settings := domain.DefaultSettings(50)
	mutate(&settings)
	require.NoError(t, e.repo.SetSettings(context.Background(), &room.SetSettingsParams{RoomId: roomId, Settings: settings}))
}

func (e *testEnv) seedHistory(t *testing.T, roomId string, titles ...string) {
	t.Helper()
	for i, title := range titles {
		track := domain.NewTrack(domain.Media{VideoId: vid(1000 + i), Title: title, Duration: 180}, "m1", false)
		entry := domain.NewHistoryEntry(track, t0.Add(-time.Hour))
		require.NoError(t, e.repo.AddHistoryEntry(context.Background(), &room.AddHistoryEntryParams{RoomId: roomId, Entry: entry, Limit: 500}))
	}
}

func (e *testEnv) state(t *testing.T, roomId string) StateView {
	t.Helper()
	view, err := e.s.GetState(context.Background(), &GetStateParams{RoomId: roomId})
	require.NoError(t, err)
	return view
}

func (e *testEnv) suggest(roomId, senderId, query string) (SuggestSongResponse, error) {
	return e.s.SuggestSong(context.Background(), &SuggestSongParams{RoomId: roomId, SenderId: senderId, Query: query})
}

func boolPtr(b bool) *bool { return &b }
func intPtr(i int) *int    { return &i }

func TestSuggestSongStartsPlayback(t *testing.T) {
	env := newTestEnv(t)
	roomId := env.createRoom(t)

	resp, err := env.suggest(roomId, "m1", env.song(1, "First"))
	require.NoError(t, err)
	assert.Equal(t, SuggestQueued, resp.Status)
	require.NotNil(t, resp.Track)
	assert.Equal(t, "m1", resp.Track.SuggestedBy)

	state := env.state(t, roomId)
	require.Len(t, state.Queue, 1)
	assert.True(t, state.IsPlaying)
	assert.Equal(t, 0, state.Progress)
	require.NotNil(t, state.CurrentTrack)
	assert.Equal(t, resp.Track.Id, state.CurrentTrack.Id)
}

func TestSuggestSongRequiresIdentity(t *testing.T) {
	env := newTestEnv(t)
	roomId := env.createRoom(t)

	_, err := env.suggest(roomId, "", env.song(1, "First"))
	assert.ErrorIs(t, err, ErrUnauthenticated)
	assert.Equal(t, KindUnauthenticated, KindOf(err))
}

func TestSuggestSongRateLimit(t *testing.T) {
	env := newTestEnv(t)
	roomId := env.createRoom(t)

	_, err := env.suggest(roomId, "m1", env.song(1, "One"))
	require.NoError(t, err)

	_, err = env.suggest(roomId, "m1", env.song(2, "Two"))
	assert.ErrorIs(t, err, ErrRateLimited)
	assert.Equal(t, KindPolicyRejected, KindOf(err))

	_, err = env.suggest(roomId, "owner", env.song(3, "Three"))
	require.NoError(t, err)
	_, err = env.suggest(roomId, "owner", env.song(4, "Four"))
	require.NoError(t, err, "owner bypasses the cooldown")

	env.advance(6 * time.Second)
	_, err = env.suggest(roomId, "m1", env.song(2, "Two"))
	assert.NoError(t, err)
	assert.Len(t, env.state(t, roomId).Queue, 4)
}

func TestRateLimitForgetsExpiredMembers(t *testing.T) {
	env := newTestEnv(t)
	roomId := env.createRoom(t)

	_, err := env.suggest(roomId, "m1", env.song(1, "One"))
	require.NoError(t, err)
	env.advance(10 * time.Second)
	_, err = env.suggest(roomId, "m2", env.song(2, "Two"))
	require.NoError(t, err)

	var tracked []string
	require.NoError(t, env.s.withRoom(context.Background(), roomId, func(r *roomActor) error {
		for id := range r.lastSuggestion {
			tracked = append(tracked, id)
		}
		return nil
	}))
	assert.Equal(t, []string{"m2"}, tracked)
}

func TestSuggestSongDisabled(t *testing.T) {
	env := newTestEnv(t)
	roomId := env.createRoom(t)
	ctx := context.Background()

	_, err := env.s.UpdateSettings(ctx, &UpdateSettingsParams{
		RoomId:   roomId,
		SenderId: "owner",
		Patch:    domain.SettingsPatch{SuggestionsEnabled: boolPtr(false)},
	})
	require.NoError(t, err)

	_, err = env.suggest(roomId, "m1", env.song(1, "One"))
	assert.ErrorIs(t, err, ErrSuggestionsDisabled)

	_, err = env.suggest(roomId, "owner", env.song(1, "One"))
	assert.NoError(t, err)
}

func TestSuggestSongUnresolvable(t *testing.T) {
	env := newTestEnv(t)
	roomId := env.createRoom(t)

	_, err := env.suggest(roomId, "m1", link(vid(404)))
	assert.ErrorIs(t, err, ErrContentUnresolvable)
	assert.Equal(t, KindNotFound, KindOf(err))

	_, err = env.suggest(roomId, "m1", "no such song")
	assert.ErrorIs(t, err, ErrContentUnresolvable)

	assert.Empty(t, env.state(t, roomId).Queue)
}

func TestSuggestSongUsesSearchCache(t *testing.T) {
	env := newTestEnv(t)
	roomId := env.createRoom(t)
	env.song(1, "Cached")
	env.resolver.search["Cached Song"] = vid(1)

	_, err := env.suggest(roomId, "m1", "  Cached Song ")
	require.NoError(t, err)

	cached, err := env.repo.GetSearchResult(context.Background(), "cached song")
	require.NoError(t, err)
	assert.Equal(t, vid(1), cached)

	video, err := env.repo.GetVideo(context.Background(), vid(1))
	require.NoError(t, err)
	assert.Equal(t, "Cached", video.Title)
}

func TestSuggestSongContentPolicy(t *testing.T) {
	env := newTestEnv(t)
	roomId := env.createRoom(t)
	env.setSettings(t, roomId, func(s *domain.Settings) {
		s.MaxDuration = 200
		s.MusicOnly = true
	})

	cases := []struct {
		media domain.Media
		err   error
	}{
		{domain.Media{Title: "long", Duration: 201, Category: "10", Embeddable: true}, ErrDurationExceeded},
		{domain.Media{Title: "vlog", Duration: 100, Category: "22", Embeddable: true}, ErrCategoryDisallowed},
		{domain.Media{Title: "adult", Duration: 100, Category: "10", Embeddable: true, AgeRestricted: true}, ErrAgeRestricted},
		{domain.Media{Title: "live", Duration: 0, Category: "10", Embeddable: true, LiveStream: true}, ErrLiveStreamDisallowed},
		{domain.Media{Title: "locked", Duration: 100, Category: "10"}, ErrNotEmbeddable},
		{domain.Media{Title: "unknown category", Duration: 100, Embeddable: true}, nil},
	}

	for i, c := range cases {
		c.media.VideoId = vid(i)
		env.resolver.add(c.media)

		_, err := env.suggest(roomId, "owner", link(c.media.VideoId))
		if c.err == nil {
			assert.NoError(t, err, c.media.Title)
			continue
		}
		assert.ErrorIs(t, err, c.err, c.media.Title)
		assert.Equal(t, KindPolicyRejected, KindOf(err))
	}

	assert.Len(t, env.state(t, roomId).Queue, 1)
}

func TestDuplicateCooldownRejectsRecentTitle(t *testing.T) {
	env := newTestEnv(t)
	roomId := env.createRoom(t)
	env.seedHistory(t, roomId, "a", "b", "c", "Dup", "d", "e")

	_, err := env.suggest(roomId, "m1", env.song(1, "  dUP "))
	assert.ErrorIs(t, err, ErrDuplicateRecent)
	assert.Empty(t, env.state(t, roomId).Queue)
}

func TestDuplicateCooldownExpires(t *testing.T) {
	env := newTestEnv(t)
	roomId := env.createRoom(t)
	titles := []string{"Dup"}
	for i := 0; i < 11; i++ {
		titles = append(titles, fmt.Sprintf("other %d", i))
	}
	env.seedHistory(t, roomId, titles...)

	_, err := env.suggest(roomId, "m1", env.song(1, "dup"))
	assert.NoError(t, err)
}

func TestDuplicateAgainstQueue(t *testing.T) {
	env := newTestEnv(t)
	roomId := env.createRoom(t)

	_, err := env.suggest(roomId, "owner", env.song(1, "Same"))
	require.NoError(t, err)

	_, err = env.suggest(roomId, "m1", env.song(2, "same"))
	assert.ErrorIs(t, err, ErrDuplicateRecent)
}

func TestQueueFullEvictsWorstTrack(t *testing.T) {
	env := newTestEnv(t)
	roomId := env.createRoom(t)
	env.setSettings(t, roomId, func(s *domain.Settings) { s.MaxQueueSize = 3 })
	ctx := context.Background()

	_, err := env.suggest(roomId, "owner", env.song(1, "Head"))
	require.NoError(t, err)
	b, err := env.suggest(roomId, "owner", env.song(2, "B"))
	require.NoError(t, err)
	c, err := env.suggest(roomId, "owner", env.song(3, "C"))
	require.NoError(t, err)

	_, err = env.s.Vote(ctx, &VoteParams{RoomId: roomId, SenderId: "m1", TrackId: b.Track.Id, VoteType: domain.VoteDown})
	require.NoError(t, err)
	_, err = env.s.Vote(ctx, &VoteParams{RoomId: roomId, SenderId: "m1", TrackId: c.Track.Id, VoteType: domain.VoteDown})
	require.NoError(t, err)
	_, err = env.s.Vote(ctx, &VoteParams{RoomId: roomId, SenderId: "m2", TrackId: c.Track.Id, VoteType: domain.VoteDown})
	require.NoError(t, err)

	d, err := env.suggest(roomId, "owner", env.song(4, "D"))
	require.NoError(t, err)
	require.NotNil(t, d.Evicted)
	assert.Equal(t, c.Track.Id, d.Evicted.Id)

	e, err := env.suggest(roomId, "owner", env.song(5, "E"))
	require.NoError(t, err)
	assert.Equal(t, b.Track.Id, e.Evicted.Id)

	_, err = env.suggest(roomId, "owner", env.song(6, "F"))
	assert.ErrorIs(t, err, ErrQueueFull)
	assert.Len(t, env.state(t, roomId).Queue, 3)
}

func TestQueueFullWithoutSmartQueue(t *testing.T) {
	env := newTestEnv(t)
	roomId := env.createRoom(t)
	env.setSettings(t, roomId, func(s *domain.Settings) {
		s.MaxQueueSize = 1
		s.SmartQueue = false
	})

	_, err := env.suggest(roomId, "owner", env.song(1, "Head"))
	require.NoError(t, err)

	_, err = env.suggest(roomId, "m1", env.song(2, "B"))
	assert.ErrorIs(t, err, ErrQueueFull)
}

func TestOwnerQueuePriority(t *testing.T) {
	env := newTestEnv(t)
	roomId := env.createRoom(t)
	env.setSettings(t, roomId, func(s *domain.Settings) {
		s.MaxQueueSize = 2
		s.OwnerQueueBypass = true
	})

	_, err := env.suggest(roomId, "m1", env.song(1, "Head"))
	require.NoError(t, err)
	_, err = env.suggest(roomId, "m2", env.song(2, "Member"))
	require.NoError(t, err)

	resp, err := env.suggest(roomId, "owner", env.song(3, "Owner"))
	require.NoError(t, err, "owner ignores capacity")
	assert.True(t, resp.Track.IsOwnerPriority)

	state := env.state(t, roomId)
	require.Len(t, state.Queue, 3)
	assert.Equal(t, "Owner", state.Queue[1].Title)
}

func TestVotingDisabledScenario(t *testing.T) {
	env := newTestEnv(t)
	roomId := env.createRoom(t)
	ctx := context.Background()

	_, err := env.suggest(roomId, "owner", env.song(1, "Head"))
	require.NoError(t, err)
	next, err := env.suggest(roomId, "owner", env.song(2, "Next"))
	require.NoError(t, err)

	_, err = env.s.UpdateSettings(ctx, &UpdateSettingsParams{
		RoomId:   roomId,
		SenderId: "owner",
		Patch:    domain.SettingsPatch{VotesEnabled: boolPtr(false)},
	})
	require.NoError(t, err)

	before := env.state(t, roomId)
	_, err = env.s.Vote(ctx, &VoteParams{RoomId: roomId, SenderId: "m1", TrackId: next.Track.Id, VoteType: domain.VoteUp})
	assert.ErrorIs(t, err, ErrVotingDisabled)
	assert.Equal(t, KindPolicyRejected, KindOf(err))
	assert.Equal(t, before.Queue, env.state(t, roomId).Queue)

	resp, err := env.s.Vote(ctx, &VoteParams{RoomId: roomId, SenderId: "owner", TrackId: next.Track.Id, VoteType: domain.VoteUp})
	require.NoError(t, err)
	assert.Equal(t, 1, resp.Score)
}

func TestVoteReranksUpcoming(t *testing.T) {
	env := newTestEnv(t)
	roomId := env.createRoom(t)
	ctx := context.Background()

	_, err := env.suggest(roomId, "owner", env.song(1, "Head"))
	require.NoError(t, err)
	_, err = env.suggest(roomId, "owner", env.song(2, "A"))
	require.NoError(t, err)
	_, err = env.suggest(roomId, "owner", env.song(3, "B"))
	require.NoError(t, err)
	c, err := env.suggest(roomId, "owner", env.song(4, "C"))
	require.NoError(t, err)

	_, err = env.s.Vote(ctx, &VoteParams{RoomId: roomId, SenderId: "m1", TrackId: c.Track.Id, VoteType: domain.VoteUp})
	require.NoError(t, err)

	titles := func() []string {
		state := env.state(t, roomId)
		out := make([]string, len(state.Queue))
		for i, track := range state.Queue {
			out[i] = track.Title
		}
		return out
	}
	assert.Equal(t, []string{"Head", "C", "A", "B"}, titles())

	resp, err := env.s.Vote(ctx, &VoteParams{RoomId: roomId, SenderId: "m1", TrackId: c.Track.Id, VoteType: domain.VoteUp})
	require.NoError(t, err)
	assert.Equal(t, 0, resp.Score)
	assert.Equal(t, []string{"Head", "C", "A", "B"}, titles(), "equal scores keep their order")

	_, err = env.s.Vote(ctx, &VoteParams{RoomId: roomId, SenderId: "m1", TrackId: "missing", VoteType: domain.VoteUp})
	assert.ErrorIs(t, err, ErrTrackNotFound)

	_, err = env.s.Vote(ctx, &VoteParams{RoomId: roomId, SenderId: "m1", TrackId: c.Track.Id, VoteType: "sideways"})
	assert.ErrorIs(t, err, ErrInvalidVote)
}

func TestManualModeScenario(t *testing.T) {
	env := newTestEnv(t)
	roomId := env.createRoom(t)
	env.setSettings(t, roomId, func(s *domain.Settings) { s.SuggestionMode = domain.SuggestionModeManual })
	ctx := context.Background()

	resp, err := env.suggest(roomId, "m1", env.song(1, "Pending"))
	require.NoError(t, err)
	assert.Equal(t, SuggestPending, resp.Status)
	require.NotNil(t, resp.Suggestion)

	state := env.state(t, roomId)
	assert.Empty(t, state.Queue)
	require.Len(t, state.PendingSuggestions, 1)

	_, err = env.s.ApproveSuggestion(ctx, &SuggestionParams{RoomId: roomId, SenderId: "m1", SuggestionId: resp.Suggestion.Id})
	assert.ErrorIs(t, err, ErrPermissionDenied)

	track, err := env.s.ApproveSuggestion(ctx, &SuggestionParams{RoomId: roomId, SenderId: "owner", SuggestionId: resp.Suggestion.Id})
	require.NoError(t, err)
	assert.Equal(t, "m1", track.SuggestedBy)

	state = env.state(t, roomId)
	assert.Empty(t, state.PendingSuggestions)
	require.Len(t, state.Queue, 1)
	assert.True(t, state.IsPlaying)

	known, err := env.repo.GetKnownSongs(ctx, roomId)
	require.NoError(t, err)
	assert.Equal(t, []string{vid(1)}, known)

	_, err = env.s.ApproveSuggestion(ctx, &SuggestionParams{RoomId: roomId, SenderId: "owner", SuggestionId: resp.Suggestion.Id})
	assert.ErrorIs(t, err, ErrSuggestionNotFound)
}

func TestManualModeKnownSongSkipsReview(t *testing.T) {
	env := newTestEnv(t)
	roomId := env.createRoom(t)
	env.setSettings(t, roomId, func(s *domain.Settings) { s.SuggestionMode = domain.SuggestionModeManual })
	require.NoError(t, env.repo.AddKnownSong(context.Background(), &room.KnownSongParams{RoomId: roomId, VideoId: vid(1)}))

	resp, err := env.suggest(roomId, "m1", env.song(1, "Known"))
	require.NoError(t, err)
	assert.Equal(t, SuggestQueued, resp.Status)

	resp, err = env.suggest(roomId, "owner", env.song(2, "Owner"))
	require.NoError(t, err)
	assert.Equal(t, SuggestQueued, resp.Status, "owner bypasses review")
}

func TestManualModeRejectsPendingDuplicate(t *testing.T) {
	env := newTestEnv(t)
	roomId := env.createRoom(t)
	env.setSettings(t, roomId, func(s *domain.Settings) { s.SuggestionMode = domain.SuggestionModeManual })

	_, err := env.suggest(roomId, "m1", env.song(1, "Same Song"))
	require.NoError(t, err)

	_, err = env.suggest(roomId, "m2", link(vid(1)))
	assert.ErrorIs(t, err, ErrDuplicateRecent)
	assert.Len(t, env.state(t, roomId).PendingSuggestions, 1)
}

func TestApproveRechecksDuplicates(t *testing.T) {
	env := newTestEnv(t)
	roomId := env.createRoom(t)
	env.setSettings(t, roomId, func(s *domain.Settings) { s.SuggestionMode = domain.SuggestionModeManual })
	ctx := context.Background()

	first, err := env.suggest(roomId, "m1", env.song(1, "Same Song"))
	require.NoError(t, err)
	second, err := env.suggest(roomId, "m2", env.song(2, "same song "))
	require.NoError(t, err)
	require.Len(t, env.state(t, roomId).PendingSuggestions, 2)

	_, err = env.s.ApproveSuggestion(ctx, &SuggestionParams{RoomId: roomId, SenderId: "owner", SuggestionId: first.Suggestion.Id})
	require.NoError(t, err)

	_, err = env.s.ApproveSuggestion(ctx, &SuggestionParams{RoomId: roomId, SenderId: "owner", SuggestionId: second.Suggestion.Id})
	assert.ErrorIs(t, err, ErrDuplicateRecent)

	state := env.state(t, roomId)
	assert.Len(t, state.Queue, 1)
	assert.Len(t, state.PendingSuggestions, 1, "a rejected approval leaves the suggestion pending")
}

func TestApproveRechecksContentPolicy(t *testing.T) {
	env := newTestEnv(t)
	roomId := env.createRoom(t)
	env.setSettings(t, roomId, func(s *domain.Settings) { s.SuggestionMode = domain.SuggestionModeManual })
	ctx := context.Background()

	resp, err := env.suggest(roomId, "m1", env.song(1, "Long One"))
	require.NoError(t, err)

	_, err = env.s.UpdateSettings(ctx, &UpdateSettingsParams{
		RoomId:   roomId,
		SenderId: "owner",
		Patch:    domain.SettingsPatch{MaxDuration: intPtr(60)},
	})
	require.NoError(t, err)

	_, err = env.s.ApproveSuggestion(ctx, &SuggestionParams{RoomId: roomId, SenderId: "owner", SuggestionId: resp.Suggestion.Id})
	assert.ErrorIs(t, err, ErrDurationExceeded)
	assert.Empty(t, env.state(t, roomId).Queue)
}

func TestBanAndUnban(t *testing.T) {
	env := newTestEnv(t)
	roomId := env.createRoom(t)
	env.setSettings(t, roomId, func(s *domain.Settings) { s.SuggestionMode = domain.SuggestionModeManual })
	ctx := context.Background()

	first, err := env.suggest(roomId, "m1", env.song(1, "Bad"))
	require.NoError(t, err)

	require.NoError(t, env.s.BanSuggestion(ctx, &SuggestionParams{RoomId: roomId, SenderId: "owner", SuggestionId: first.Suggestion.Id}))

	state := env.state(t, roomId)
	assert.Empty(t, state.PendingSuggestions)
	assert.Contains(t, state.BannedSongs, vid(1))
	assert.ErrorIs(t,
		env.s.RejectSuggestion(ctx, &SuggestionParams{RoomId: roomId, SenderId: "owner", SuggestionId: first.Suggestion.Id}),
		ErrSuggestionNotFound)

	env.advance(10 * time.Second)
	_, err = env.suggest(roomId, "m1", link(vid(1)))
	assert.ErrorIs(t, err, ErrContentBanned)

	bans, err := env.repo.GetBannedSongs(ctx, roomId)
	require.NoError(t, err)
	assert.Contains(t, bans, vid(1))

	require.NoError(t, env.s.UnbanSong(ctx, &SongParams{RoomId: roomId, SenderId: "owner", VideoId: vid(1)}))
	assert.ErrorIs(t, env.s.UnbanSong(ctx, &SongParams{RoomId: roomId, SenderId: "owner", VideoId: vid(1)}), ErrSongNotFound)

	_, err = env.suggest(roomId, "m1", link(vid(1)))
	assert.NoError(t, err)
}

func TestRejectSuggestion(t *testing.T) {
	env := newTestEnv(t)
	roomId := env.createRoom(t)
	env.setSettings(t, roomId, func(s *domain.Settings) { s.SuggestionMode = domain.SuggestionModeManual })
	ctx := context.Background()

	resp, err := env.suggest(roomId, "m1", env.song(1, "Meh"))
	require.NoError(t, err)

	require.NoError(t, env.s.RejectSuggestion(ctx, &SuggestionParams{RoomId: roomId, SenderId: "owner", SuggestionId: resp.Suggestion.Id}))
	state := env.state(t, roomId)
	assert.Empty(t, state.PendingSuggestions)
	assert.Empty(t, state.Queue)
}

func TestRemoveFromLibrary(t *testing.T) {
	env := newTestEnv(t)
	roomId := env.createRoom(t)
	env.seedHistory(t, roomId, "a", "b", "c")
	ctx := context.Background()

	require.NoError(t, env.s.RemoveFromLibrary(ctx, &SongParams{RoomId: roomId, SenderId: "owner", VideoId: vid(1001)}))
	assert.ErrorIs(t, env.s.RemoveFromLibrary(ctx, &SongParams{RoomId: roomId, SenderId: "owner", VideoId: vid(1001)}), ErrSongNotFound)

	history, err := env.repo.GetHistory(ctx, roomId, 0)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, "a", history[0].Title)
	assert.Equal(t, "c", history[1].Title)
}

func TestNextTrackAndDeleteSong(t *testing.T) {
	env := newTestEnv(t)
	roomId := env.createRoom(t)
	ctx := context.Background()

	head, err := env.suggest(roomId, "owner", env.song(1, "Head"))
	require.NoError(t, err)
	_, err = env.suggest(roomId, "owner", env.song(2, "Second"))
	require.NoError(t, err)
	third, err := env.suggest(roomId, "owner", env.song(3, "Third"))
	require.NoError(t, err)

	assert.ErrorIs(t, env.s.NextTrack(ctx, &RoomCommandParams{RoomId: roomId, SenderId: "m1"}), ErrPermissionDenied)
	assert.ErrorIs(t, env.s.NextTrack(ctx, &RoomCommandParams{RoomId: roomId}), ErrUnauthenticated)

	env.advance(30 * time.Second)
	require.NoError(t, env.s.NextTrack(ctx, &RoomCommandParams{RoomId: roomId, SenderId: "owner"}))

	state := env.state(t, roomId)
	require.Len(t, state.History, 1)
	assert.Equal(t, head.Track.Id, state.History[0].Id)
	assert.Equal(t, env.now().UnixMilli(), state.History[0].PlayedAt)
	assert.Equal(t, "Second", state.Queue[0].Title)
	assert.True(t, state.IsPlaying)

	history, err := env.repo.GetHistory(ctx, roomId, 0)
	require.NoError(t, err)
	assert.Len(t, history, 1)

	require.NoError(t, env.s.DeleteSong(ctx, &DeleteSongParams{RoomId: roomId, SenderId: "owner", TrackId: third.Track.Id}))
	assert.ErrorIs(t, env.s.DeleteSong(ctx, &DeleteSongParams{RoomId: roomId, SenderId: "owner", TrackId: third.Track.Id}), ErrTrackNotFound)

	state = env.state(t, roomId)
	require.Len(t, state.Queue, 1)
	assert.Len(t, state.History, 1, "deleting does not archive")
}

func TestPlayPauseSeekAndDuration(t *testing.T) {
	env := newTestEnv(t)
	roomId := env.createRoom(t)
	ctx := context.Background()

	assert.ErrorIs(t, env.s.PlayPause(ctx, &PlayPauseParams{RoomId: roomId, SenderId: "owner"}), ErrQueueEmpty)

	_, err := env.suggest(roomId, "owner", env.song(1, "Head"))
	require.NoError(t, err)

	env.advance(20 * time.Second)
	require.NoError(t, env.s.PlayPause(ctx, &PlayPauseParams{RoomId: roomId, SenderId: "owner", IsPlaying: false}))
	state := env.state(t, roomId)
	assert.False(t, state.IsPlaying)
	assert.Equal(t, 20, state.Progress)

	require.NoError(t, env.s.SeekTo(ctx, &SeekToParams{RoomId: roomId, SenderId: "owner", Seconds: 90}))
	require.NoError(t, env.s.PlayPause(ctx, &PlayPauseParams{RoomId: roomId, SenderId: "owner", IsPlaying: true}))
	require.NoError(t, env.s.tickRoom(ctx, roomId))

	state = env.state(t, roomId)
	assert.True(t, state.IsPlaying)
	assert.Equal(t, 90, state.Progress)

	require.NoError(t, env.s.UpdateDuration(ctx, &UpdateDurationParams{RoomId: roomId, SenderId: "owner", Seconds: 95}))
	env.advance(5 * time.Second)
	require.NoError(t, env.s.tickRoom(ctx, roomId))

	state = env.state(t, roomId)
	assert.Empty(t, state.Queue, "track ends at the updated duration")
	assert.Len(t, state.History, 1)
}

func TestTickBroadcastsOncePerSecond(t *testing.T) {
	env := newTestEnv(t)
	roomId := env.createRoom(t)
	ctx := context.Background()

	sender := &fakeSender{}
	_, err := env.s.JoinRoom(ctx, &JoinRoomParams{RoomId: roomId, MemberId: "m1", Sender: sender})
	require.NoError(t, err)

	_, err = env.suggest(roomId, "owner", env.song(1, "Head"))
	require.NoError(t, err)
	frames := sender.count(FrameState)

	env.advance(1500 * time.Millisecond)
	require.NoError(t, env.s.tickRoom(ctx, roomId))
	assert.Equal(t, frames+1, sender.count(FrameState))
	assert.Equal(t, 1, sender.lastState(t).Progress)

	require.NoError(t, env.s.tickRoom(ctx, roomId))
	env.advance(300 * time.Millisecond)
	require.NoError(t, env.s.tickRoom(ctx, roomId))
	assert.Equal(t, frames+1, sender.count(FrameState))
}

func TestTickAutoAdvance(t *testing.T) {
	env := newTestEnv(t)
	roomId := env.createRoom(t)
	ctx := context.Background()

	head, err := env.suggest(roomId, "owner", env.song(1, "Head"))
	require.NoError(t, err)
	_, err = env.suggest(roomId, "owner", env.song(2, "Next"))
	require.NoError(t, err)

	env.advance(180 * time.Second)
	require.NoError(t, env.s.tickRoom(ctx, roomId))

	state := env.state(t, roomId)
	require.Len(t, state.History, 1)
	assert.Equal(t, head.Track.Id, state.History[0].Id)
	assert.GreaterOrEqual(t, state.History[0].PlayedAt, t0.UnixMilli()+180_000)
	require.Len(t, state.Queue, 1)
	assert.Equal(t, env.now().UnixMilli(), *state.Queue[0].StartedAt)
	assert.Equal(t, 0, state.Progress)
}

func TestRefillScenario(t *testing.T) {
	env := newTestEnv(t)
	roomId := env.createRoom(t)
	env.setSettings(t, roomId, func(s *domain.Settings) {
		s.MaxQueueSize = 10
		s.DuplicateCooldown = 1
		s.AutoRefill = false
	})
	env.seedHistory(t, roomId, "a", "b", "c", "d", "e", "f")

	_, err := env.s.UpdateSettings(context.Background(), &UpdateSettingsParams{
		RoomId:   roomId,
		SenderId: "owner",
		Patch:    domain.SettingsPatch{AutoRefill: boolPtr(true)},
	})
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		return !env.state(t, roomId).IsRefilling
	}, time.Second, 10*time.Millisecond)

	state := env.state(t, roomId)
	require.Len(t, state.Queue, 5)
	assert.True(t, state.IsPlaying)
	assert.Equal(t, 0, state.Progress)
	seen := make(map[string]bool)
	for _, track := range state.Queue {
		assert.Equal(t, domain.AutoRefillSuggester, track.SuggestedBy)
		assert.Equal(t, 0, track.Score)
		assert.NotEqual(t, "f", track.Title)
		assert.False(t, seen[track.VideoId])
		seen[track.VideoId] = true
	}
	assert.Len(t, state.History, 6)
}

func TestRefillAfterLastTrackEnds(t *testing.T) {
	env := newTestEnv(t)
	roomId := env.createRoom(t)
	env.setSettings(t, roomId, func(s *domain.Settings) {
		s.MaxQueueSize = 10
		s.DuplicateCooldown = 1
	})
	env.seedHistory(t, roomId, "a", "b", "c", "d", "e", "f")
	ctx := context.Background()

	_, err := env.suggest(roomId, "owner", env.song(1, "Fresh"))
	require.NoError(t, err)

	env.advance(181 * time.Second)
	require.NoError(t, env.s.tickRoom(ctx, roomId))

	require.Eventually(t, func() bool {
		state := env.state(t, roomId)
		return !state.IsRefilling && len(state.Queue) > 0
	}, time.Second, 10*time.Millisecond)

	state := env.state(t, roomId)
	assert.Len(t, state.Queue, 5)
	assert.True(t, state.IsPlaying)
	for _, track := range state.Queue {
		assert.NotEqual(t, "Fresh", track.Title)
	}
}

func TestRefillFailureKeepsHistory(t *testing.T) {
	env := newTestEnv(t)
	roomId := env.createRoom(t)
	env.setSettings(t, roomId, func(s *domain.Settings) {
		s.MaxQueueSize = 10
		s.DuplicateCooldown = 1
		s.AutoRefill = false
	})
	env.seedHistory(t, roomId, "a", "b", "c", "d", "e", "f")
	env.resolver.availErr = errors.New("upstream down")

	_, err := env.s.UpdateSettings(context.Background(), &UpdateSettingsParams{
		RoomId:   roomId,
		SenderId: "owner",
		Patch:    domain.SettingsPatch{AutoRefill: boolPtr(true)},
	})
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		env.resolver.mu.Lock()
		defer env.resolver.mu.Unlock()
		return env.resolver.checks == 1
	}, time.Second, 10*time.Millisecond)
	require.Eventually(t, func() bool {
		return !env.state(t, roomId).IsRefilling
	}, time.Second, 10*time.Millisecond)

	state := env.state(t, roomId)
	assert.Empty(t, state.Queue)
	assert.False(t, state.IsPlaying)
	assert.Len(t, state.History, 6)

	history, err := env.repo.GetHistory(context.Background(), roomId, 0)
	require.NoError(t, err)
	assert.Len(t, history, 6)
}

func TestRefillPurgesUnavailable(t *testing.T) {
	env := newTestEnv(t)
	roomId := env.createRoom(t)
	env.setSettings(t, roomId, func(s *domain.Settings) {
		s.MaxQueueSize = 10
		s.DuplicateCooldown = 1
		s.AutoRefill = false
	})
	env.seedHistory(t, roomId, "a", "b", "c", "d", "e", "f")
	env.resolver.verdicts[vid(1000)] = false
	env.resolver.verdicts[vid(1001)] = false

	_, err := env.s.UpdateSettings(context.Background(), &UpdateSettingsParams{
		RoomId:   roomId,
		SenderId: "owner",
		Patch:    domain.SettingsPatch{AutoRefill: boolPtr(true)},
	})
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		return !env.state(t, roomId).IsRefilling
	}, time.Second, 10*time.Millisecond)

	state := env.state(t, roomId)
	assert.Len(t, state.Queue, 3)
	assert.Len(t, state.History, 4)
	for _, e := range state.History {
		assert.NotEqual(t, vid(1000), e.VideoId)
		assert.NotEqual(t, vid(1001), e.VideoId)
	}

	history, err := env.repo.GetHistory(context.Background(), roomId, 0)
	require.NoError(t, err)
	assert.Len(t, history, 4)
}

func TestRefillNeedsHistory(t *testing.T) {
	env := newTestEnv(t)
	roomId := env.createRoom(t)
	env.setSettings(t, roomId, func(s *domain.Settings) { s.AutoRefill = false })
	env.seedHistory(t, roomId, "a", "b", "c", "d")

	_, err := env.s.UpdateSettings(context.Background(), &UpdateSettingsParams{
		RoomId:   roomId,
		SenderId: "owner",
		Patch:    domain.SettingsPatch{AutoRefill: boolPtr(true)},
	})
	require.NoError(t, err)

	state := env.state(t, roomId)
	assert.False(t, state.IsRefilling)
	assert.Empty(t, state.Queue)
	assert.Equal(t, 0, env.resolver.checks)
}

func TestUpdateSettingsPersists(t *testing.T) {
	env := newTestEnv(t)
	roomId := env.createRoom(t)
	ctx := context.Background()

	_, err := env.s.UpdateSettings(ctx, &UpdateSettingsParams{RoomId: roomId, SenderId: "m1", Patch: domain.SettingsPatch{MaxDuration: intPtr(60)}})
	assert.ErrorIs(t, err, ErrPermissionDenied)
	assert.Equal(t, KindUnauthorized, KindOf(err))

	resp, err := env.s.UpdateSettings(ctx, &UpdateSettingsParams{RoomId: roomId, SenderId: "owner", Patch: domain.SettingsPatch{MaxDuration: intPtr(60)}})
	require.NoError(t, err)
	assert.Equal(t, 60, resp.Settings.MaxDuration)

	settings, err := env.repo.GetSettings(ctx, roomId)
	require.NoError(t, err)
	assert.Equal(t, 60, settings.MaxDuration)
	assert.True(t, settings.VotesEnabled)
}

func TestEvictionRestoresQueue(t *testing.T) {
	env := newTestEnv(t)
	roomId := env.createRoom(t)
	ctx := context.Background()

	_, err := env.suggest(roomId, "owner", env.song(1, "Head"))
	require.NoError(t, err)
	_, err = env.suggest(roomId, "owner", env.song(2, "Next"))
	require.NoError(t, err)

	env.s.Sweep(ctx)
	assert.Len(t, env.s.liveRooms(), 1, "idle timer starts on the first sweep")

	env.advance(61 * time.Second)
	env.s.Sweep(ctx)
	assert.Empty(t, env.s.liveRooms())

	state := env.state(t, roomId)
	require.Len(t, state.Queue, 2)
	assert.Nil(t, state.Queue[0].StartedAt)
	assert.True(t, state.IsPlaying)
	assert.Equal(t, 61, state.Progress)

	require.NoError(t, env.s.tickRoom(ctx, roomId))
	state = env.state(t, roomId)
	require.NotNil(t, state.Queue[0].StartedAt)
	assert.Equal(t, env.now().UnixMilli()-61_000, *state.Queue[0].StartedAt)
	assert.Equal(t, 61, state.Progress)
}

func TestRoomLoadOutlivesCanceledCaller(t *testing.T) {
	env := newTestEnv(t)
	roomId := env.createRoom(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := env.s.getRoom(ctx, roomId); err != nil {
		assert.ErrorIs(t, err, context.Canceled)
	}

	assert.Eventually(t, func() bool { return len(env.s.liveRooms()) == 1 }, time.Second, 10*time.Millisecond)
}

func TestSweepKeepsObservedRooms(t *testing.T) {
	env := newTestEnv(t)
	roomId := env.createRoom(t)
	ctx := context.Background()

	_, err := env.s.JoinRoom(ctx, &JoinRoomParams{RoomId: roomId, Sender: &fakeSender{}})
	require.NoError(t, err)

	env.s.Sweep(ctx)
	env.advance(time.Hour)
	env.s.Sweep(ctx)
	assert.Len(t, env.s.liveRooms(), 1)
}

func TestJoinClaimsOwnershipOnce(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	anon := &fakeSender{}
	resp, err := env.s.JoinRoom(ctx, &JoinRoomParams{RoomId: "fresh", Sender: anon})
	require.NoError(t, err)
	assert.False(t, resp.IsOwner)

	first := &fakeSender{}
	resp, err = env.s.JoinRoom(ctx, &JoinRoomParams{RoomId: "fresh", MemberId: "m1", Sender: first})
	require.NoError(t, err)
	assert.True(t, resp.IsOwner)
	assert.Equal(t, 1, first.count(FrameState))
	assert.Equal(t, 1, first.count(FrameJoined))

	resp, err = env.s.JoinRoom(ctx, &JoinRoomParams{RoomId: "fresh", MemberId: "m2", Sender: &fakeSender{}})
	require.NoError(t, err)
	assert.False(t, resp.IsOwner)

	info, err := env.s.GetRoom(ctx, "fresh")
	require.NoError(t, err)
	assert.Equal(t, "m1", info.OwnerId)
	assert.Equal(t, 3, info.Observers)

	env.s.LeaveRoom(ctx, resp.ObserverId)
	env.s.LeaveRoom(ctx, resp.ObserverId)
	info, err = env.s.GetRoom(ctx, "fresh")
	require.NoError(t, err)
	assert.Equal(t, 2, info.Observers)
}

func TestJoinPrivateRoom(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	created, err := env.s.CreateRoom(ctx, &CreateRoomParams{SenderId: "owner", Name: "den", Visibility: room.VisibilityPrivate, Password: "hunter2"})
	require.NoError(t, err)

	_, err = env.s.JoinRoom(ctx, &JoinRoomParams{RoomId: created.RoomId, MemberId: "m1", Password: "wrong", Sender: &fakeSender{}})
	assert.ErrorIs(t, err, ErrWrongPassword)
	assert.Equal(t, KindUnauthorized, KindOf(err))

	_, err = env.s.JoinRoom(ctx, &JoinRoomParams{RoomId: created.RoomId, MemberId: "m1", Password: "hunter2", Sender: &fakeSender{}})
	assert.NoError(t, err)

	resp, err := env.s.JoinRoom(ctx, &JoinRoomParams{RoomId: created.RoomId, MemberId: "owner", Sender: &fakeSender{}})
	require.NoError(t, err)
	assert.True(t, resp.IsOwner)

	rooms, err := env.s.ListRooms(ctx)
	require.NoError(t, err)
	assert.Empty(t, rooms, "private rooms are not listed")
}

func TestUpdateRoom(t *testing.T) {
	env := newTestEnv(t)
	roomId := env.createRoom(t)
	ctx := context.Background()

	name := "renamed"
	_, err := env.s.UpdateRoom(ctx, &UpdateRoomParams{RoomId: roomId, SenderId: "m1", Name: &name})
	assert.ErrorIs(t, err, ErrPermissionDenied)

	info, err := env.s.UpdateRoom(ctx, &UpdateRoomParams{RoomId: roomId, SenderId: "owner", Name: &name})
	require.NoError(t, err)
	assert.Equal(t, "renamed", info.Name)

	rooms, err := env.s.ListRooms(ctx)
	require.NoError(t, err)
	require.Len(t, rooms, 1)
	assert.Equal(t, "renamed", rooms[0].Name)
}

func TestDeleteRoom(t *testing.T) {
	env := newTestEnv(t)
	roomId := env.createRoom(t)
	ctx := context.Background()

	sender := &fakeSender{}
	_, err := env.s.JoinRoom(ctx, &JoinRoomParams{RoomId: roomId, MemberId: "m1", Sender: sender})
	require.NoError(t, err)

	assert.ErrorIs(t, env.s.DeleteRoom(ctx, &RoomCommandParams{RoomId: roomId, SenderId: "m1"}), ErrPermissionDenied)
	require.NoError(t, env.s.DeleteRoom(ctx, &RoomCommandParams{RoomId: roomId, SenderId: "owner"}))

	assert.Equal(t, 1, sender.count(FrameRoomDeleted))
	assert.True(t, sender.closed)
	assert.Empty(t, env.s.liveRooms())

	_, err = env.s.GetRoom(ctx, roomId)
	assert.ErrorIs(t, err, ErrRoomNotFound)
	_, err = env.s.GetState(ctx, &GetStateParams{RoomId: roomId})
	assert.ErrorIs(t, err, ErrRoomNotFound)
}

func TestPolicyErrorsDoNotBroadcast(t *testing.T) {
	env := newTestEnv(t)
	roomId := env.createRoom(t)
	ctx := context.Background()

	sender := &fakeSender{}
	_, err := env.s.JoinRoom(ctx, &JoinRoomParams{RoomId: roomId, MemberId: "m1", Sender: sender})
	require.NoError(t, err)
	frames := sender.count(FrameState)

	_, err = env.suggest(roomId, "m1", link(vid(404)))
	require.Error(t, err)
	_, err = env.s.Vote(ctx, &VoteParams{RoomId: roomId, SenderId: "m1", TrackId: "missing", VoteType: domain.VoteUp})
	require.Error(t, err)
	require.Error(t, env.s.NextTrack(ctx, &RoomCommandParams{RoomId: roomId, SenderId: "m1"}))

	assert.Equal(t, frames, sender.count(FrameState))
}

func TestTokens(t *testing.T) {
	env := newTestEnv(t)

	issued, err := env.s.IssueToken(&IssueTokenParams{Username: "ann"})
	require.NoError(t, err)
	assert.NotEmpty(t, issued.MemberId)

	claims, err := env.s.ParseToken(issued.AuthToken)
	require.NoError(t, err)
	assert.Equal(t, issued.MemberId, claims.MemberId)
	assert.Equal(t, "ann", claims.Username)

	_, err = env.s.ParseToken(issued.AuthToken + "x")
	assert.ErrorIs(t, err, ErrInvalidToken)
	assert.Equal(t, KindUnauthenticated, KindOf(err))
}

func TestKindOf(t *testing.T) {
	assert.Equal(t, KindNotFound, KindOf(fmt.Errorf("wrapped: %w", ErrRoomNotFound)))
	assert.Equal(t, KindInternal, KindOf(errors.New("boom")))
	assert.Equal(t, KindUpstreamUnavailable, KindOf(ErrUpstreamUnavailable))
}
