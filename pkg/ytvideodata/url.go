package ytvideodata

import (
	"net/url"
	"regexp"
	"strings"
)

var videoIdPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{11}$`)

// ExtractVideoId returns the video id referenced by a YouTube URL, or "" when
// s is not a recognizable video link.
func ExtractVideoId(s string) string {
	s = strings.TrimSpace(s)
	if !strings.Contains(s, "youtu") {
		return ""
	}
	if !strings.Contains(s, "://") {
		s = "https://" + s
	}

	u, err := url.Parse(s)
	if err != nil {
		return ""
	}

	host := strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.")
	var id string
	switch host {
	case "youtu.be":
		id = strings.Trim(u.Path, "/")
	case "youtube.com", "m.youtube.com", "music.youtube.com", "youtube-nocookie.com":
		if v := u.Query().Get("v"); v != "" {
			id = v
			break
		}
		parts := strings.Split(strings.Trim(u.Path, "/"), "/")
		if len(parts) == 2 {
			switch parts[0] {
			case "shorts", "embed", "live", "v":
				id = parts[1]
			}
		}
	}

	if !videoIdPattern.MatchString(id) {
		return ""
	}

	return id
}

func IsValidVideoId(id string) bool {
	return videoIdPattern.MatchString(id)
}
