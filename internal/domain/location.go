package domain

// Location is a WGS84 coordinate.
type Location struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Valid reports whether the coordinate is inside WGS84 bounds.
func (l Location) Valid() bool {
	return l.Lat >= -90 && l.Lat <= 90 && l.Lng >= -180 && l.Lng <= 180
}

// Place is a human-readable address plus its coordinate.
type Place struct {
	Address string `json:"address"`
	Location
}

// VehicleType is the class of vehicle a ride is requested for. It also names the
// fanout group drivers of that class join.
type VehicleType string

const (
	VehicleBike      VehicleType = "Bike"
	VehicleHatchback VehicleType = "Hatchback"
	VehicleSedan     VehicleType = "Sedan"
	VehicleSUV       VehicleType = "SUV"
)

// VehicleTypes lists every supported vehicle type.
var VehicleTypes = []VehicleType{VehicleBike, VehicleHatchback, VehicleSedan, VehicleSUV}

// Valid reports whether v is a supported vehicle type.
func (v VehicleType) Valid() bool {
	for _, t := range VehicleTypes {
		if v == t {
			return true
		}
	}
	return false
}
