package extractor

// Defaults used when no strategy finds a value
const (
	DefaultTitle       = "Propiedad en Venta"
	DefaultPrice       = "Consultar precio"
	DefaultLocation    = "Ver en el portal"
	DefaultDescription = "Ver detalles en el portal"
)

// ListingData is the structured content of one listing page.
// Empty strings in Details and Extra mean "unknown".
type ListingData struct {
	Title       string   `json:"title"`
	Price       string   `json:"price"`
	Location    string   `json:"location"`
	Description string   `json:"description"`
	Photos      []string `json:"photos"`
	Details     Details  `json:"details"`
	Features    []string `json:"features"`
	Extra       Extra    `json:"extra"`
}

// Details holds the numeric attributes found in the page text
type Details struct {
	Rooms       string `json:"rooms,omitempty"`
	Bathrooms   string `json:"bathrooms,omitempty"`
	TotalArea   string `json:"total_area,omitempty"`
	CoveredArea string `json:"covered_area,omitempty"`
}

// Extra holds secondary facts shown in the flyer sidebar
type Extra struct {
	Age            string `json:"age,omitempty"`
	MaintenanceFee string `json:"maintenance_fee,omitempty"`
}

// NewListingData returns a listing with every field at its default
func NewListingData() *ListingData {
	return &ListingData{
		Title:       DefaultTitle,
		Price:       DefaultPrice,
		Location:    DefaultLocation,
		Description: DefaultDescription,
		Photos:      []string{},
		Features:    []string{},
	}
}
