package thermo

// Reading is one sensor's reconciled state. Temperature and humidity
// are nil when no source produced a usable value; they serialize as
// JSON null so consumers can distinguish "absent" from zero.
type Reading struct {
	DID         string   `json:"did"`
	Name        string   `json:"name"`
	Room        string   `json:"room"`
	Model       string   `json:"model"`
	Temperature *float64 `json:"temperature"`
	Humidity    *float64 `json:"humidity"`
	Online      bool     `json:"online"`
}

// Snapshot is a point-in-time view over every recognized sensor,
// sorted by room then name.
type Snapshot struct {
	Count     int       `json:"count"`
	UpdatedAt string    `json:"updated_at"`
	Items     []Reading `json:"items"`
}
