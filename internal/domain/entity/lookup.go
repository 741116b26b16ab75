package entity

// Airport is one row of the airport reference data.
type Airport struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	CityEN  string `json:"city_en"`
	CityAR  string `json:"city_ar"`
	Country string `json:"country"`
	IATA    string `json:"iata"`
	ICAO    string `json:"icao"`
	Region  string `json:"region"`
}

// Approver is one sign-off candidate for an approver level.
type Approver struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}
