package common

// Decimal places of a coordinate in degrees, by what they can tell apart.
// One degree of latitude is about 111 km.
const (
	GPSPrecisionStreet   = 3 // ~111 m
	GPSPrecisionHouse    = 5 // ~1.1 m
	GPSPrecisionSurveyed = 7 // ~11 mm, the practical limit of commercial surveying
)
