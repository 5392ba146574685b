package youtube

type thumbnail struct {
	URL string `json:"url"`
}

type videoItem struct {
	Id      string `json:"id"`
	Snippet struct {
		Title                string               `json:"title"`
		ChannelTitle         string               `json:"channelTitle"`
		CategoryId           string               `json:"categoryId"`
		LiveBroadcastContent string               `json:"liveBroadcastContent"`
		Thumbnails           map[string]thumbnail `json:"thumbnails"`
	} `json:"snippet"`
	ContentDetails struct {
		Duration      string `json:"duration"`
		ContentRating struct {
			YtRating string `json:"ytRating"`
		} `json:"contentRating"`
	} `json:"contentDetails"`
	Status struct {
		Embeddable    bool   `json:"embeddable"`
		PrivacyStatus string `json:"privacyStatus"`
		UploadStatus  string `json:"uploadStatus"`
	} `json:"status"`
}

type videoListResponse struct {
	Items []videoItem `json:"items"`
}

type searchListResponse struct {
	Items []struct {
		Id struct {
			VideoId string `json:"videoId"`
		} `json:"id"`
	} `json:"items"`
}

func (v videoItem) thumbnail() string {
	for _, size := range []string{"maxres", "high", "medium", "default"} {
		if t, ok := v.Snippet.Thumbnails[size]; ok && t.URL != "" {
			return t.URL
		}
	}
	return ""
}

func (v videoItem) available() bool {
	return v.Status.Embeddable &&
		v.Status.PrivacyStatus != "private" &&
		(v.Status.UploadStatus == "" || v.Status.UploadStatus == "processed")
}
