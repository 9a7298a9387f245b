package thermo

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"catwatch/internal/infrastructure/logging"
)

const defaultRoomName = "Unassigned"

// defaultModelHints are the substrings that mark a device model as a
// temperature and humidity sensor.
var defaultModelHints = []string{
	"sensor_ht",
	"weather",
	"hygro",
	"thermo",
	"temperature_humidity",
}

// rpcPropertyQueries are the legacy get_prop key pairs, tried in order.
var rpcPropertyQueries = [][2]string{
	{"temperature", "humidity"},
	{"temp_dec", "humi_dec"},
	{"temp", "hum"},
}

// miotPropertyCandidates are the (siid, piid) coordinate pairs for
// temperature and humidity under the miot-spec property API, tried in
// order. Different sensor generations expose the same values at
// different coordinates.
var miotPropertyCandidates = [][2][2]int{
	{{2, 1}, {2, 2}},
	{{3, 1}, {3, 2}},
	{{3, 7}, {3, 8}},
}

var temperatureKeys = []string{
	"temperature",
	"temp",
	"temp_dec",
	"current_temperature",
	"temperature_value",
}

var humidityKeys = []string{
	"humidity",
	"hum",
	"humi_dec",
	"relative_humidity",
	"humidity_value",
}

// Reconciler turns the cloud's inconsistent device records into sorted
// thermometer snapshots.
type Reconciler struct {
	client CloudClient
	hints  []string
	logger *logging.Logger
}

// NewReconciler creates a reconciler over the given transport. Extra
// model hints widen sensor recognition beyond the built-in set; they
// merge with the defaults, lowercased and deduplicated.
func NewReconciler(client CloudClient, extraHints []string, logger *logging.Logger) *Reconciler {
	seen := make(map[string]bool)
	hints := make([]string, 0, len(defaultModelHints)+len(extraHints))
	for _, hint := range defaultModelHints {
		seen[hint] = true
		hints = append(hints, hint)
	}
	for _, hint := range extraHints {
		hint = strings.ToLower(strings.TrimSpace(hint))
		if hint == "" || seen[hint] {
			continue
		}
		seen[hint] = true
		hints = append(hints, hint)
	}
	sort.Strings(hints)
	return &Reconciler{client: client, hints: hints, logger: logger}
}

// GetHouseReadings fetches the device list, reconciles every
// recognized sensor and returns the snapshot sorted by (room, name),
// both compared case-insensitively.
func (r *Reconciler) GetHouseReadings(ctx context.Context) (Snapshot, error) {
	devices, err := r.client.Devices(ctx)
	if err != nil {
		return Snapshot{}, fmt.Errorf("fetch device list: %w", err)
	}

	roomLookup := r.buildRoomLookup(ctx)

	readings := make([]Reading, 0, len(devices))
	for _, device := range devices {
		if !r.isThermometer(device) {
			continue
		}
		temperature, humidity := r.readSensorValues(ctx, device)
		readings = append(readings, Reading{
			DID:         device.DID,
			Name:        device.Name,
			Room:        r.resolveRoom(device, roomLookup),
			Model:       device.Model,
			Temperature: temperature,
			Humidity:    humidity,
			Online:      readOnlineState(device.Raw),
		})
	}

	sort.Slice(readings, func(i, j int) bool {
		ri, rj := strings.ToLower(readings[i].Room), strings.ToLower(readings[j].Room)
		if ri != rj {
			return ri < rj
		}
		return strings.ToLower(readings[i].Name) < strings.ToLower(readings[j].Name)
	})

	r.logger.Debug("reconciled thermometer readings",
		"devices", len(devices),
		"sensors", len(readings),
	)

	return Snapshot{
		Count:     len(readings),
		UpdatedAt: time.Now().UTC().Format(time.RFC3339),
		Items:     readings,
	}, nil
}

// isThermometer recognizes a sensor by model hint, by a name that
// mentions both temperature and humidity, or by the device record
// already carrying both values.
func (r *Reconciler) isThermometer(device Device) bool {
	model := strings.ToLower(device.Model)
	for _, hint := range r.hints {
		if strings.Contains(model, hint) {
			return true
		}
	}

	name := strings.ToLower(device.Name)
	if strings.Contains(name, "temperature") && strings.Contains(name, "humidity") {
		return true
	}

	rawTemp, rawHumidity := extractRawValues(device.Raw)
	return rawTemp != nil && rawHumidity != nil
}

// resolveRoom resolves the sensor's room name: explicit name on the
// record, then room id via the fetched lookup, then the device
// description, then the unassigned placeholder.
func (r *Reconciler) resolveRoom(device Device, roomLookup map[string]string) string {
	raw := device.Raw
	if name := firstNonEmpty(raw["room_name"], raw["roomName"], raw["roomname"]); name != "" {
		return name
	}

	roomID := raw["room_id"]
	if roomID == nil {
		roomID = raw["roomid"]
	}
	if roomID != nil {
		if mapped := roomLookup[firstNonEmpty(roomID)]; mapped != "" {
			return mapped
		}
	}

	if name := firstNonEmpty(device.Description); name != "" {
		return name
	}
	return defaultRoomName
}

// buildRoomLookup fetches the home layout and maps room ids to names.
// Both the v2 and legacy endpoints are tried; failure on both leaves
// the lookup empty rather than failing the snapshot.
func (r *Reconciler) buildRoomLookup(ctx context.Context) map[string]string {
	payload := map[string]any{
		"fg":              true,
		"fetch_share":     true,
		"fetch_share_dev": true,
		"limit":           300,
	}
	for _, endpoint := range []string{"/v2/homeroom/gethome", "/home/gethome"} {
		response := r.client.Call(ctx, endpoint, payload)
		if response == nil {
			continue
		}
		if lookup := extractRooms(response); len(lookup) > 0 {
			return lookup
		}
	}
	return map[string]string{}
}

// extractRooms walks the home layout response. Home lists and room
// lists appear under a handful of competing key names.
func extractRooms(response map[string]any) map[string]string {
	result, ok := response["result"].(map[string]any)
	if !ok {
		return nil
	}

	lookup := make(map[string]string)
	var homes []any
	for _, key := range []string{"homelist", "home_list", "homes", "list"} {
		if value, ok := result[key].([]any); ok {
			homes = append(homes, value...)
		}
	}

	for _, entry := range homes {
		home, ok := entry.(map[string]any)
		if !ok {
			continue
		}
		for _, key := range []string{"roomlist", "room_list", "rooms"} {
			rooms, ok := home[key].([]any)
			if !ok {
				continue
			}
			for _, roomEntry := range rooms {
				room, ok := roomEntry.(map[string]any)
				if !ok {
					continue
				}
				roomID := room["id"]
				if roomID == nil {
					roomID = room["room_id"]
				}
				roomName := firstNonEmpty(room["name"], room["room_name"], room["roomName"])
				if roomID == nil || roomName == "" {
					continue
				}
				lookup[firstNonEmpty(roomID)] = roomName
			}
		}
	}
	return lookup
}

// readSensorValues resolves temperature and humidity through the value
// cascade: the device record itself, then legacy RPC properties, then
// miot-spec properties. Each slot takes the first non-nil value and is
// never overwritten; a later tier only fills what is still missing.
func (r *Reconciler) readSensorValues(ctx context.Context, device Device) (*float64, *float64) {
	rawTemp, rawHumidity := extractRawValues(device.Raw)
	temperature := NormalizeTemperature(rawTemp)
	humidity := NormalizeHumidity(rawHumidity)

	if temperature == nil || humidity == nil {
		rpcTemp, rpcHumidity := r.readValuesWithRPC(ctx, device.DID)
		if temperature == nil {
			temperature = rpcTemp
		}
		if humidity == nil {
			humidity = rpcHumidity
		}
	}

	if temperature != nil && humidity != nil {
		return temperature, humidity
	}

	miotTemp, miotHumidity := r.readValuesWithMiotSpec(ctx, device.DID)
	if temperature == nil {
		temperature = miotTemp
	}
	if humidity == nil {
		humidity = miotHumidity
	}
	return temperature, humidity
}

// readValuesWithRPC probes the legacy get_prop API, trying each key
// pair until one of them yields at least one value. Results come back
// either positionally or as a keyed object.
func (r *Reconciler) readValuesWithRPC(ctx context.Context, did string) (*float64, *float64) {
	endpoint := "/home/rpc/" + did
	for _, pair := range rpcPropertyQueries {
		payload := map[string]any{
			"id":     1,
			"method": "get_prop",
			"params": []any{pair[0], pair[1]},
		}
		response := r.client.Call(ctx, endpoint, payload)
		if response == nil {
			continue
		}

		switch result := response["result"].(type) {
		case []any:
			var tempRaw, humRaw any
			if len(result) > 0 {
				tempRaw = result[0]
			}
			if len(result) > 1 {
				humRaw = result[1]
			}
			temperature := NormalizeTemperature(tempRaw)
			humidity := NormalizeHumidity(humRaw)
			if temperature != nil || humidity != nil {
				return temperature, humidity
			}
		case map[string]any:
			tempRaw, humRaw := extractRawValues(result)
			temperature := NormalizeTemperature(tempRaw)
			humidity := NormalizeHumidity(humRaw)
			if temperature != nil || humidity != nil {
				return temperature, humidity
			}
		}
	}
	return nil, nil
}

// readValuesWithMiotSpec probes the miot-spec property API, trying
// each coordinate pair until one yields at least one value.
func (r *Reconciler) readValuesWithMiotSpec(ctx context.Context, did string) (*float64, *float64) {
	for _, candidate := range miotPropertyCandidates {
		tempCoord, humCoord := candidate[0], candidate[1]
		payload := map[string]any{
			"params": []any{
				map[string]any{"did": did, "siid": tempCoord[0], "piid": tempCoord[1]},
				map[string]any{"did": did, "siid": humCoord[0], "piid": humCoord[1]},
			},
		}
		response := r.client.Call(ctx, "/miotspec/prop/get", payload)
		if response == nil {
			continue
		}
		result, ok := response["result"].([]any)
		if !ok {
			continue
		}

		values := make(map[[2]int]any)
		for _, entry := range result {
			item, ok := entry.(map[string]any)
			if !ok {
				continue
			}
			siid, okS := toFloat(item["siid"])
			piid, okP := toFloat(item["piid"])
			if !okS || !okP {
				continue
			}
			values[[2]int{int(siid), int(piid)}] = item["value"]
		}

		temperature := NormalizeTemperature(values[tempCoord])
		humidity := NormalizeHumidity(values[humCoord])
		if temperature != nil || humidity != nil {
			return temperature, humidity
		}
	}
	return nil, nil
}

// readOnlineState reads the device's online flag, defaulting to online
// when the record carries neither variant. String flags are matched
// against the truthy spellings the cloud emits.
func readOnlineState(raw map[string]any) bool {
	value, ok := raw["isOnline"]
	if !ok {
		value, ok = raw["online"]
	}
	if !ok {
		return true
	}
	switch v := value.(type) {
	case bool:
		return v
	case string:
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "1", "true", "online", "yes":
			return true
		}
		return false
	case float64:
		return v != 0
	case nil:
		return false
	default:
		return true
	}
}

// extractRawValues pulls the first matching temperature and humidity
// values out of an untyped record, checking the record itself, the
// nested prop object and the JSON-encoded extra string.
func extractRawValues(payload map[string]any) (any, any) {
	return extractFirstKey(payload, temperatureKeys), extractFirstKey(payload, humidityKeys)
}

func extractFirstKey(payload map[string]any, keys []string) any {
	if payload == nil {
		return nil
	}
	for _, key := range keys {
		if value, ok := payload[key]; ok {
			return value
		}
	}

	if nested, ok := payload["prop"].(map[string]any); ok {
		for _, key := range keys {
			if value, ok := nested[key]; ok {
				return value
			}
		}
	}

	if extra, ok := payload["extra"].(string); ok {
		var decoded map[string]any
		if err := json.Unmarshal([]byte(extra), &decoded); err == nil {
			for _, key := range keys {
				if value, ok := decoded[key]; ok {
					return value
				}
			}
		}
	}
	return nil
}
