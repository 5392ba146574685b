package room

import "errors"

var (
	ErrUnauthenticated  = errors.New("authentication required")
	ErrPermissionDenied = errors.New("permission denied")
	ErrWrongPassword    = errors.New("wrong room password")

	ErrSuggestionsDisabled  = errors.New("suggestions are disabled")
	ErrRateLimited          = errors.New("suggesting too fast")
	ErrQueueFull            = errors.New("queue is full")
	ErrContentBanned        = errors.New("song is banned in this room")
	ErrDurationExceeded     = errors.New("song is too long")
	ErrCategoryDisallowed   = errors.New("only music is allowed")
	ErrAgeRestricted        = errors.New("song is age restricted")
	ErrLiveStreamDisallowed = errors.New("live streams are not allowed")
	ErrNotEmbeddable        = errors.New("song cannot be embedded")
	ErrDuplicateRecent      = errors.New("song was played recently")
	ErrVotingDisabled       = errors.New("voting is disabled")
	ErrInvalidVote          = errors.New("invalid vote type")

	ErrRoomNotFound        = errors.New("room not found")
	ErrTrackNotFound       = errors.New("track not found")
	ErrSuggestionNotFound  = errors.New("suggestion not found")
	ErrSongNotFound        = errors.New("song not found")
	ErrQueueEmpty          = errors.New("queue is empty")
	ErrContentUnresolvable = errors.New("could not find that song")

	ErrUpstreamUnavailable = errors.New("metadata service unavailable")

	errRoomClosed = errors.New("room closed")
)

type ErrorKind string

const (
	KindUnauthenticated     ErrorKind = "UNAUTHENTICATED"
	KindUnauthorized        ErrorKind = "UNAUTHORIZED"
	KindPolicyRejected      ErrorKind = "POLICY_REJECTED"
	KindNotFound            ErrorKind = "NOT_FOUND"
	KindUpstreamUnavailable ErrorKind = "UPSTREAM_UNAVAILABLE"
	KindInternal            ErrorKind = "INTERNAL"
)

var errorKinds = []struct {
	kind      ErrorKind
	sentinels []error
}{
	{KindUnauthenticated, []error{ErrUnauthenticated, ErrInvalidToken}},
	{KindUnauthorized, []error{ErrPermissionDenied, ErrWrongPassword}},
	{KindPolicyRejected, []error{
		ErrSuggestionsDisabled, ErrRateLimited, ErrQueueFull, ErrContentBanned,
		ErrDurationExceeded, ErrCategoryDisallowed, ErrAgeRestricted, ErrLiveStreamDisallowed,
		ErrNotEmbeddable, ErrDuplicateRecent, ErrVotingDisabled, ErrInvalidVote,
	}},
	{KindNotFound, []error{
		ErrRoomNotFound, ErrTrackNotFound, ErrSuggestionNotFound, ErrSongNotFound,
		ErrQueueEmpty, ErrContentUnresolvable,
	}},
	{KindUpstreamUnavailable, []error{ErrUpstreamUnavailable}},
}

// KindOf classifies err by the first matching group. Unknown errors are internal.
func KindOf(err error) ErrorKind {
	for _, group := range errorKinds {
		for _, sentinel := range group.sentinels {
			if errors.Is(err, sentinel) {
				return group.kind
			}
		}
	}
	return KindInternal
}
