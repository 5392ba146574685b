package domain

import "strings"

// MusicCategory is the YouTube category id for music videos.
const MusicCategory = "10"

// Media is resolved content metadata, independent of any queue.
type Media struct {
	VideoId       string `json:"video_id"`
	Title         string `json:"title"`
	Artist        string `json:"artist"`
	Thumbnail     string `json:"thumbnail"`
	Duration      int    `json:"duration"`
	Category      string `json:"category,omitempty"`
	AgeRestricted bool   `json:"age_restricted,omitempty"`
	LiveStream    bool   `json:"live_stream,omitempty"`
	Embeddable    bool   `json:"embeddable"`
}

// NormalizeTitle is the form titles are compared in for duplicate detection.
func NormalizeTitle(title string) string {
	return strings.ToLower(strings.TrimSpace(title))
}
