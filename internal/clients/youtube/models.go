package youtube

// SearchResponse is the /search envelope
type SearchResponse struct {
	Items []SearchItem `json:"items"`
}

type SearchItem struct {
	ID struct {
		VideoID string `json:"videoId"`
	} `json:"id"`
	Snippet struct {
		Title       string `json:"title"`
		Description string `json:"description"`
		Thumbnails  struct {
			High struct {
				URL string `json:"url"`
			} `json:"high"`
		} `json:"thumbnails"`
	} `json:"snippet"`
}

// Video is a flattened search hit
type Video struct {
	ID           string
	Title        string
	Description  string
	URL          string
	ThumbnailURL string
}
