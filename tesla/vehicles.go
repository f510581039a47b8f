package tesla

import "encoding/json"

// Vehicle is the summary record returned by the Fleet API vehicle
// list. IDS is the string form of the id used in request paths.
type Vehicle struct {
	ID          int64  `json:"id"`
	IDS         string `json:"id_s"`
	VehicleID   int64  `json:"vehicle_id"`
	VIN         string `json:"vin"`
	DisplayName string `json:"display_name"`
	State       string `json:"state"` // online, asleep, offline
}

// Matches reports whether the vehicle is identified by the given
// key: its id, VIN or display name.
func (v Vehicle) Matches(key string) bool {
	return key == v.IDS || key == v.VIN || key == v.DisplayName
}

// CommandResult is the Fleet API response to a vehicle command.
type CommandResult struct {
	Result bool   `json:"result"`
	Reason string `json:"reason,omitempty"`
}

// VehicleData is the full state document for a vehicle. The nested
// state objects are kept raw: the gateway relays them, it does not
// interpret them.
type VehicleData struct {
	ID           int64           `json:"id"`
	IDS          string          `json:"id_s"`
	VIN          string          `json:"vin"`
	DisplayName  string          `json:"display_name"`
	State        string          `json:"state"`
	ChargeState  json.RawMessage `json:"charge_state,omitempty"`
	ClimateState json.RawMessage `json:"climate_state,omitempty"`
	DriveState   json.RawMessage `json:"drive_state,omitempty"`
	VehicleState json.RawMessage `json:"vehicle_state,omitempty"`
	GUISettings  json.RawMessage `json:"gui_settings,omitempty"`
}

// ChargingSites is the Fleet API nearby charging response.
type ChargingSites struct {
	Superchargers        json.RawMessage `json:"superchargers,omitempty"`
	DestinationChargers  json.RawMessage `json:"destination_charging,omitempty"`
	CongestionSyncTimeMs int64           `json:"congestion_sync_time_utc_secs,omitempty"`
}
