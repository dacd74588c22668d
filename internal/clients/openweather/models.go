package openweather

// WeatherResponse is the subset of /weather we read
type WeatherResponse struct {
	Name string `json:"name"`
	Main struct {
		Temp     float64 `json:"temp"`
		Humidity int     `json:"humidity"`
	} `json:"main"`
	Weather []struct {
		Main        string `json:"main"`
		Description string `json:"description"`
	} `json:"weather"`
	Wind struct {
		Speed float64 `json:"speed"` // m/s
	} `json:"wind"`
}

type Conditions struct {
	City        string
	Temperature int
	Description string
	Humidity    int
	WindKmh     int
}
