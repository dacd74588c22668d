package twitter

type TrendsResponse struct {
	Data []struct {
		TrendName  string `json:"trend_name"`
		TweetCount int    `json:"tweet_count"`
	} `json:"data"`
}

type Trend struct {
	Topic string
	Count int
	URL   string
}
