package provider

// Video is one catalog search hit, denormalized into the queue at
// add-time and never re-fetched.
type Video struct {
	ID           string `json:"id"`
	Title        string `json:"title"`
	ThumbnailURL string `json:"thumbnailUrl"`
}

type SearchResponse struct {
	Videos []Video `json:"videos"`
}
