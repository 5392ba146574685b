package domain

type SuggestionMode string

const (
	SuggestionModeAuto   SuggestionMode = "auto"
	SuggestionModeManual SuggestionMode = "manual"
)

func (m SuggestionMode) IsValid() bool {
	return m == SuggestionModeAuto || m == SuggestionModeManual
}

// Settings are the owner-controlled room policies. Zero MaxDuration and
// MaxQueueSize mean unlimited.
type Settings struct {
	SuggestionsEnabled bool           `json:"suggestions_enabled"`
	MusicOnly          bool           `json:"music_only"`
	MaxDuration        int            `json:"max_duration"`
	AllowPrelisten     bool           `json:"allow_prelisten"`
	OwnerBypass        bool           `json:"owner_bypass"`
	OwnerQueueBypass   bool           `json:"owner_queue_bypass"`
	VotesEnabled       bool           `json:"votes_enabled"`
	SmartQueue         bool           `json:"smart_queue"`
	OwnerPopups        bool           `json:"owner_popups"`
	PlaylistViewMode   bool           `json:"playlist_view_mode"`
	MaxQueueSize       int            `json:"max_queue_size"`
	SuggestionMode     SuggestionMode `json:"suggestion_mode"`
	DuplicateCooldown  int            `json:"duplicate_cooldown"`
	AutoApproveKnown   bool           `json:"auto_approve_known"`
	AutoRefill         bool           `json:"auto_refill"`
}

func DefaultSettings(maxQueueSize int) Settings {
	return Settings{
		SuggestionsEnabled: true,
		MusicOnly:          false,
		MaxDuration:        0,
		AllowPrelisten:     true,
		OwnerBypass:        true,
		OwnerQueueBypass:   false,
		VotesEnabled:       true,
		SmartQueue:         true,
		OwnerPopups:        true,
		PlaylistViewMode:   false,
		MaxQueueSize:       maxQueueSize,
		SuggestionMode:     SuggestionModeAuto,
		DuplicateCooldown:  10,
		AutoApproveKnown:   true,
		AutoRefill:         true,
	}
}

// SettingsPatch carries only the fields a client sent.
type SettingsPatch struct {
	SuggestionsEnabled *bool
	MusicOnly          *bool
	MaxDuration        *int
	AllowPrelisten     *bool
	OwnerBypass        *bool
	OwnerQueueBypass   *bool
	VotesEnabled       *bool
	SmartQueue         *bool
	OwnerPopups        *bool
	PlaylistViewMode   *bool
	MaxQueueSize       *int
	SuggestionMode     *SuggestionMode
	DuplicateCooldown  *int
	AutoApproveKnown   *bool
	AutoRefill         *bool
}

func (p SettingsPatch) IsEmpty() bool {
	return p == SettingsPatch{}
}

func (p SettingsPatch) Apply(s Settings) Settings {
	setBool(&s.SuggestionsEnabled, p.SuggestionsEnabled)
	setBool(&s.MusicOnly, p.MusicOnly)
	setInt(&s.MaxDuration, p.MaxDuration)
	setBool(&s.AllowPrelisten, p.AllowPrelisten)
	setBool(&s.OwnerBypass, p.OwnerBypass)
	setBool(&s.OwnerQueueBypass, p.OwnerQueueBypass)
	setBool(&s.VotesEnabled, p.VotesEnabled)
	setBool(&s.SmartQueue, p.SmartQueue)
	setBool(&s.OwnerPopups, p.OwnerPopups)
	setBool(&s.PlaylistViewMode, p.PlaylistViewMode)
	setInt(&s.MaxQueueSize, p.MaxQueueSize)
	if p.SuggestionMode != nil && p.SuggestionMode.IsValid() {
		s.SuggestionMode = *p.SuggestionMode
	}
	setInt(&s.DuplicateCooldown, p.DuplicateCooldown)
	setBool(&s.AutoApproveKnown, p.AutoApproveKnown)
	setBool(&s.AutoRefill, p.AutoRefill)
	return s
}

func setBool(dst *bool, v *bool) {
	if v != nil {
		*dst = *v
	}
}

func setInt(dst *int, v *int) {
	if v != nil && *v >= 0 {
		*dst = *v
	}
}
