package location

// Location represents one raw fix from a provider. Optional sensor readings
// are pointers; providers leave them nil when the source cannot supply them.
type Location struct {
	Latitude  float64
	Longitude float64
	Accuracy  float64
	Altitude  *float64
	Speed     *float64 // meters per second
	Bearing   *float64 // degrees from true north
}
