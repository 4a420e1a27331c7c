package citybed

// Continent is one of the seven GeoNames continents.
type Continent struct {
	GeonameID string `json:"geonameid"`
	Code      string `json:"continent"`
	Name      string `json:"name"`
}

var continents = []Continent{
	{GeonameID: "6255146", Code: "AF", Name: "Africa"},
	{GeonameID: "6255147", Code: "AS", Name: "Asia"},
	{GeonameID: "6255148", Code: "EU", Name: "Europe"},
	{GeonameID: "6255149", Code: "NA", Name: "North America"},
	{GeonameID: "6255151", Code: "OC", Name: "Oceania"},
	{GeonameID: "6255150", Code: "SA", Name: "South America"},
	{GeonameID: "6255152", Code: "AN", Name: "Antarctica"},
}

// Continents returns the continent table.
func Continents() []Continent {
	out := make([]Continent, len(continents))
	copy(out, continents)
	return out
}
