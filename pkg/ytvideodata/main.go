package ytvideodata

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

var (
	ErrVideoNotFound      = errors.New("video not found")
	ErrVideoNotEmbeddable = errors.New("video is not embeddable")
)

type VideoData struct {
	Title        string `json:"title"`
	AuthorName   string `json:"author_name"`
	ThumbnailUrl string `json:"thumbnail_url"`
	Embeddable   bool   `json:"-"`
}

type Client struct {
	httpClient *http.Client
	oembedURL  string
	pageURL    string
}

func New(httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	return &Client{
		httpClient: httpClient,
		oembedURL:  "https://www.youtube.com/oembed",
		pageURL:    "https://youtu.be/",
	}
}

// WithBaseURLs points the client at alternative oEmbed and watch page endpoints.
func (c *Client) WithBaseURLs(oembedURL, pageURL string) *Client {
	c.oembedURL = oembedURL
	c.pageURL = pageURL
	return c
}

// Get returns public video data. Videos that refuse embedding are scraped from
// the watch page and reported with Embeddable=false.
func (c *Client) Get(ctx context.Context, videoId string) (*VideoData, error) {
	videoData, err := c.getVideoWithEmbed(ctx, videoId)
	if err != nil {
		if !errors.Is(err, ErrVideoNotEmbeddable) {
			return nil, fmt.Errorf("failed to get video data with embed: %w", err)
		}

		videoData, err = c.getFromPage(ctx, videoId)
		if err != nil {
			return nil, fmt.Errorf("failed to get video data from page: %w", err)
		}
	}

	return videoData, nil
}

// IsAvailable reports whether the video exists and can be embedded.
// A nil error with false means the verdict is confirmed.
func (c *Client) IsAvailable(ctx context.Context, videoId string) (bool, error) {
	_, err := c.getVideoWithEmbed(ctx, videoId)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, ErrVideoNotFound), errors.Is(err, ErrVideoNotEmbeddable):
		return false, nil
	default:
		return false, err
	}
}
