package room

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/sharetube/listenroom/internal/domain"
	"github.com/sharetube/listenroom/internal/repository/room"
	"github.com/sharetube/listenroom/pkg/ctxlogger"
	"github.com/sharetube/listenroom/pkg/ytvideodata"
)

type SuggestStatus string

const (
	SuggestQueued  SuggestStatus = "queued"
	SuggestPending SuggestStatus = "pending"
)

type SuggestSongParams struct {
	RoomId   string
	SenderId string
	Query    string
}

type SuggestSongResponse struct {
	Status     SuggestStatus
	Track      *domain.Track
	Suggestion *domain.PendingSuggestion
	Evicted    *domain.Track
}

// SuggestSong resolves the query outside the room and commits the result
// after re-checking every gate against the current state.
func (s *service) SuggestSong(ctx context.Context, params *SuggestSongParams) (SuggestSongResponse, error) {
	ctx = ctxlogger.AppendCtx(ctx, slog.String("member_id", params.SenderId))
	if params.SenderId == "" {
		return SuggestSongResponse{}, ErrUnauthenticated
	}

	if err := s.withRoom(ctx, params.RoomId, func(r *roomActor) error {
		if err := s.checkSuggestionGates(r, params.SenderId); err != nil {
			return err
		}
		if r.state.Settings.SuggestionMode == domain.SuggestionModeManual && !r.canBypass(params.SenderId) {
			return nil
		}
		return checkCapacity(r, params.SenderId)
	}); err != nil {
		return SuggestSongResponse{}, err
	}

	media, err := s.resolve(ctx, params.Query)
	if err != nil {
		s.logger.DebugContext(ctx, "failed to resolve suggestion", "query", params.Query, "error", err)
		return SuggestSongResponse{}, err
	}

	var resp SuggestSongResponse
	err = s.withRoom(ctx, params.RoomId, func(r *roomActor) error {
		if err := s.checkSuggestionGates(r, params.SenderId); err != nil {
			return err
		}

		if err := s.checkContent(r, media); err != nil {
			return err
		}
		if r.state.IsPending(media.VideoId) {
			return ErrDuplicateRecent
		}

		now := s.now()
		if s.needsReview(r, params.SenderId, media.VideoId) {
			suggestion := domain.NewPendingSuggestion(media, params.SenderId, now)
			r.state.PendingSuggestions = append(r.state.PendingSuggestions, suggestion)
			r.recordSuggestion(params.SenderId, now, s.cfg.SuggestCooldown)
			resp = SuggestSongResponse{Status: SuggestPending, Suggestion: &suggestion}
			s.broadcastState(r)
			return nil
		}

		track, evicted, err := s.enqueue(r, media, params.SenderId, r.hasQueuePriority(params.SenderId))
		if err != nil {
			return err
		}

		r.recordSuggestion(params.SenderId, now, s.cfg.SuggestCooldown)
		resp = SuggestSongResponse{Status: SuggestQueued, Track: &track, Evicted: evicted}
		s.broadcastState(r)
		return nil
	})
	if err != nil {
		return SuggestSongResponse{}, err
	}

	s.logger.InfoContext(ctx, "song suggested", "room_id", params.RoomId, "video_id", media.VideoId, "status", resp.Status)
	return resp, nil
}

// checkSuggestionGates checks the requester gates that do not depend on the content.
func (s *service) checkSuggestionGates(r *roomActor, senderId string) error {
	if r.canBypass(senderId) {
		return nil
	}

	if !r.state.Settings.SuggestionsEnabled {
		return ErrSuggestionsDisabled
	}

	if last, ok := r.lastSuggestion[senderId]; ok && s.now().Sub(last) < s.cfg.SuggestCooldown {
		return ErrRateLimited
	}

	return nil
}

// checkContent checks the content gates: bans, content policy and the
// duplicate window.
func (s *service) checkContent(r *roomActor, media domain.Media) error {
	if r.state.IsBanned(media.VideoId) {
		return ErrContentBanned
	}

	if err := checkPolicy(r.state.Settings, media); err != nil {
		return err
	}

	title := domain.NormalizeTitle(media.Title)
	if _, ok := domain.RecentTitles(r.state.History, r.state.Settings.DuplicateCooldown)[title]; ok {
		return ErrDuplicateRecent
	}
	if _, ok := r.state.QueueTitles()[title]; ok {
		return ErrDuplicateRecent
	}

	return nil
}

// checkCapacity fails when a new track could not be queued even with eviction.
func checkCapacity(r *roomActor, senderId string) error {
	limit := r.state.Settings.MaxQueueSize
	if limit <= 0 || len(r.state.Queue) < limit || r.hasQueuePriority(senderId) {
		return nil
	}
	if r.state.Settings.SmartQueue && domain.WorstEvictable(r.state.Queue) != -1 {
		return nil
	}
	return ErrQueueFull
}

func checkPolicy(settings domain.Settings, media domain.Media) error {
	switch {
	case settings.MaxDuration > 0 && media.Duration > settings.MaxDuration:
		return ErrDurationExceeded
	case settings.MusicOnly && media.Category != "" && media.Category != domain.MusicCategory:
		return ErrCategoryDisallowed
	case media.AgeRestricted:
		return ErrAgeRestricted
	case media.LiveStream:
		return ErrLiveStreamDisallowed
	case !media.Embeddable:
		return ErrNotEmbeddable
	}
	return nil
}

func (s *service) needsReview(r *roomActor, senderId, videoId string) bool {
	if r.state.Settings.SuggestionMode != domain.SuggestionModeManual || r.canBypass(senderId) {
		return false
	}

	if _, ok := r.known[videoId]; ok && r.state.Settings.AutoApproveKnown {
		return false
	}

	return true
}

// enqueue appends a track, evicting the worst negative upcoming track when the
// queue is at capacity and smart queue is on.
func (s *service) enqueue(r *roomActor, media domain.Media, suggestedBy string, priority bool) (domain.Track, *domain.Track, error) {
	var evicted *domain.Track
	limit := r.state.Settings.MaxQueueSize
	if limit > 0 && len(r.state.Queue) >= limit && !priority {
		if !r.state.Settings.SmartQueue {
			return domain.Track{}, nil, ErrQueueFull
		}
		idx := domain.WorstEvictable(r.state.Queue)
		if idx == -1 {
			return domain.Track{}, nil, ErrQueueFull
		}

		worst := r.state.Queue[idx]
		evicted = &worst
		r.state.Remove(worst.Id, s.now())
	}

	track := domain.NewTrack(media, suggestedBy, priority)
	r.state.Append(track, s.now())

	return track, evicted, nil
}

// resolve turns a link or a free-text query into content metadata. Links skip
// the search, searches go through the search cache first.
func (s *service) resolve(ctx context.Context, query string) (domain.Media, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return domain.Media{}, ErrContentUnresolvable
	}

	if videoId := ytvideodata.ExtractVideoId(query); videoId != "" {
		return s.lookupVideo(ctx, videoId)
	}

	key := normalizeQuery(query)
	videoId, err := s.roomRepo.GetSearchResult(ctx, key)
	if err == nil {
		return s.lookupVideo(ctx, videoId)
	}
	if !errors.Is(err, room.ErrSearchNotFound) {
		s.logger.WarnContext(ctx, "search cache unavailable", "error", err)
	}

	media, err := s.resolver.Search(ctx, query)
	if err != nil {
		return domain.Media{}, fmt.Errorf("%w: %w", ErrContentUnresolvable, err)
	}

	s.persist(ctx, "search result", func(ctx context.Context) error {
		return s.roomRepo.SetSearchResult(ctx, &room.SetSearchResultParams{Query: key, VideoId: media.VideoId})
	})
	s.cacheVideo(ctx, media)

	return media, nil
}

func (s *service) lookupVideo(ctx context.Context, videoId string) (domain.Media, error) {
	cached, err := s.roomRepo.GetVideo(ctx, videoId)
	if err == nil {
		return mediaFromVideo(videoId, cached), nil
	}
	if !errors.Is(err, room.ErrVideoNotFound) {
		s.logger.WarnContext(ctx, "video cache unavailable", "error", err)
	}

	media, err := s.resolver.Lookup(ctx, videoId)
	if err != nil {
		return domain.Media{}, fmt.Errorf("%w: %w", ErrContentUnresolvable, err)
	}

	s.cacheVideo(ctx, media)
	return media, nil
}

func (s *service) cacheVideo(ctx context.Context, media domain.Media) {
	s.persist(ctx, "video", func(ctx context.Context) error {
		return s.roomRepo.SetVideo(ctx, &room.SetVideoParams{
			VideoId: media.VideoId,
			Video: room.Video{
				Title:         media.Title,
				Artist:        media.Artist,
				Thumbnail:     media.Thumbnail,
				Duration:      media.Duration,
				Category:      media.Category,
				AgeRestricted: media.AgeRestricted,
				LiveStream:    media.LiveStream,
				Embeddable:    media.Embeddable,
				FetchedAt:     s.now().UnixMilli(),
			},
		})
	})
}

func mediaFromVideo(videoId string, v room.Video) domain.Media {
	return domain.Media{
		VideoId:       videoId,
		Title:         v.Title,
		Artist:        v.Artist,
		Thumbnail:     v.Thumbnail,
		Duration:      v.Duration,
		Category:      v.Category,
		AgeRestricted: v.AgeRestricted,
		LiveStream:    v.LiveStream,
		Embeddable:    v.Embeddable,
	}
}
