package geodesy

import "encoding/json"

// reframeResponse mirrors the relevant parts of a REFRAME endpoint payload.
// The service has historically flipped between numeric and string encodings
// for coordinates, so fields decode through json.Number.
type reframeResponse struct {
	Easting  json.Number `json:"easting"`
	Northing json.Number `json:"northing"`
	Altitude json.Number `json:"altitude"`
}

// WGS84Position is the decoded result of the global reprojection endpoint.
type WGS84Position struct {
	Longitude   float64
	Latitude    float64
	Ellipsoidal float64
}
