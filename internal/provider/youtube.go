package provider

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"
)

// ErrUpstreamUnavailable marks a provider-side failure. It is transient
// from the caller's point of view: retrying manually may succeed.
var ErrUpstreamUnavailable = errors.New("video catalog is unavailable")

type YouTubeClient struct {
	apiKey    string
	searchURL string
	http      *http.Client
}

func NewYouTubeClient(apiKey, searchURL string) *YouTubeClient {
	return &YouTubeClient{
		apiKey:    apiKey,
		searchURL: searchURL,
		http: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

type ytSearchResponse struct {
	Items []struct {
		ID struct {
			VideoID string `json:"videoId"`
		} `json:"id"`
		Snippet struct {
			Title      string `json:"title"`
			Thumbnails struct {
				Default struct {
					URL string `json:"url"`
				} `json:"default"`
				Medium struct {
					URL string `json:"url"`
				} `json:"medium"`
				High struct {
					URL string `json:"url"`
				} `json:"high"`
			} `json:"thumbnails"`
		} `json:"snippet"`
	} `json:"items"`
}

func (c *YouTubeClient) Search(ctx context.Context, query string, limit int) ([]Video, error) {
	if limit <= 0 || limit > 25 {
		limit = 10
	}

	val := url.Values{}
	val.Set("part", "snippet")
	val.Set("type", "video")
	val.Set("maxResults", fmt.Sprint(limit))
	val.Set("q", query)
	val.Set("key", c.apiKey)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.searchURL+"?"+val.Encode(), nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUpstreamUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: youtube status %d", ErrUpstreamUnavailable, resp.StatusCode)
	}

	var body ytSearchResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUpstreamUnavailable, err)
	}

	out := make([]Video, 0, len(body.Items))
	for _, it := range body.Items {
		thumbs := it.Snippet.Thumbnails
		thumb := thumbs.High.URL
		if thumb == "" {
			thumb = thumbs.Medium.URL
		}
		if thumb == "" {
			thumb = thumbs.Default.URL
		}

		out = append(out, Video{
			ID:           it.ID.VideoID,
			Title:        it.Snippet.Title,
			ThumbnailURL: thumb,
		})
	}

	return out, nil
}
