package models

// WeatherCurrentUnits holds unit labels for the current conditions block
type WeatherCurrentUnits struct {
	Time               string `json:"time"`
	Interval           string `json:"interval"`
	Temperature2m      string `json:"temperature_2m"`
	RelativeHumidity2m string `json:"relative_humidity_2m"`
	WeatherCode        string `json:"weather_code"`
	WindSpeed10m       string `json:"wind_speed_10m"`
}

// WeatherCurrent holds the current conditions
type WeatherCurrent struct {
	Time               string  `json:"time"`
	Interval           int     `json:"interval"`
	Temperature2m      float64 `json:"temperature_2m"`
	RelativeHumidity2m float64 `json:"relative_humidity_2m"`
	WeatherCode        int     `json:"weather_code"`
	WindSpeed10m       float64 `json:"wind_speed_10m"`
}

// WeatherHourlyUnits holds unit labels for the hourly series
type WeatherHourlyUnits struct {
	Time                     string `json:"time"`
	Temperature2m            string `json:"temperature_2m"`
	RelativeHumidity2m       string `json:"relative_humidity_2m"`
	PrecipitationProbability string `json:"precipitation_probability"`
}

// WeatherHourly holds hourly series
type WeatherHourly struct {
	Time                     []string  `json:"time"`
	Temperature2m            []float64 `json:"temperature_2m"`
	RelativeHumidity2m       []float64 `json:"relative_humidity_2m"`
	PrecipitationProbability []float64 `json:"precipitation_probability"`
}

// WeatherDailyUnits holds unit labels for the daily series
type WeatherDailyUnits struct {
	Time                        string `json:"time"`
	Temperature2mMax            string `json:"temperature_2m_max"`
	Temperature2mMin            string `json:"temperature_2m_min"`
	PrecipitationProbabilityMax string `json:"precipitation_probability_max"`
}

// WeatherDaily holds daily series
type WeatherDaily struct {
	Time                        []string  `json:"time"`
	Temperature2mMax            []float64 `json:"temperature_2m_max"`
	Temperature2mMin            []float64 `json:"temperature_2m_min"`
	PrecipitationProbabilityMax []float64 `json:"precipitation_probability_max"`
}

// WeatherForecast is the Open-Meteo forecast response
type WeatherForecast struct {
	Latitude             float64             `json:"latitude"`
	Longitude            float64             `json:"longitude"`
	GenerationTimeMs     float64             `json:"generationtime_ms"`
	UTCOffsetSeconds     int                 `json:"utc_offset_seconds"`
	Timezone             string              `json:"timezone"`
	TimezoneAbbreviation string              `json:"timezone_abbreviation"`
	Elevation            float64             `json:"elevation"`
	CurrentUnits         WeatherCurrentUnits `json:"current_units"`
	Current              WeatherCurrent      `json:"current"`
	HourlyUnits          WeatherHourlyUnits  `json:"hourly_units"`
	Hourly               WeatherHourly       `json:"hourly"`
	DailyUnits           WeatherDailyUnits   `json:"daily_units"`
	Daily                WeatherDaily        `json:"daily"`

	// Description is filled in locally from the WMO weather code.
	Description string `json:"description,omitempty"`
}
