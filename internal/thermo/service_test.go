package thermo

import (
	"context"
	"strings"
	"testing"

	"catwatch/internal/infrastructure/logging"
)

// fakeCloudClient serves canned devices and scripted endpoint
// responses, recording every call for assertions.
type fakeCloudClient struct {
	devices   []Device
	responses map[string]map[string]any
	calls     []string
}

func (f *fakeCloudClient) Devices(ctx context.Context) ([]Device, error) {
	return f.devices, nil
}

func (f *fakeCloudClient) Call(ctx context.Context, endpoint string, payload map[string]any) map[string]any {
	key := endpoint
	if params, ok := payload["params"].([]any); ok && len(params) > 0 {
		if first, ok := params[0].(string); ok {
			key = endpoint + "?" + first
		}
	}
	f.calls = append(f.calls, key)
	return f.responses[key]
}

func newTestReconciler(client CloudClient, hints ...string) *Reconciler {
	return NewReconciler(client, hints, logging.Default())
}

func TestGetHouseReadingsRawValues(t *testing.T) {
	client := &fakeCloudClient{
		devices: []Device{
			{
				DID:   "dev-1",
				Name:  "Hallway Sensor",
				Model: "lumi.sensor_ht.v2",
				Raw: map[string]any{
					"temperature": float64(2234),
					"humidity":    float64(4560),
					"room_name":   "Hallway",
					"isOnline":    true,
				},
			},
		},
	}

	snapshot, err := newTestReconciler(client).GetHouseReadings(context.Background())
	if err != nil {
		t.Fatalf("GetHouseReadings() error = %v", err)
	}
	if snapshot.Count != 1 {
		t.Fatalf("Count = %d, want 1", snapshot.Count)
	}
	if snapshot.UpdatedAt == "" {
		t.Error("UpdatedAt is empty")
	}

	item := snapshot.Items[0]
	if item.Room != "Hallway" {
		t.Errorf("Room = %q, want Hallway", item.Room)
	}
	if item.Temperature == nil || *item.Temperature != 22.3 {
		t.Errorf("Temperature = %v, want 22.3", item.Temperature)
	}
	if item.Humidity == nil || *item.Humidity != 45.6 {
		t.Errorf("Humidity = %v, want 45.6", item.Humidity)
	}
	if !item.Online {
		t.Error("Online = false, want true")
	}

	// Values came off the record, so no property probes were needed.
	for _, call := range client.calls {
		if strings.HasPrefix(call, "/home/rpc/") || strings.HasPrefix(call, "/miotspec/") {
			t.Errorf("unexpected property probe %s", call)
		}
	}
}

func TestGetHouseReadingsExcludesNonSensors(t *testing.T) {
	client := &fakeCloudClient{
		devices: []Device{
			{DID: "bulb-1", Name: "Ceiling Light", Model: "yeelight.light.color1", Raw: map[string]any{}},
			{DID: "dev-1", Name: "Sensor", Model: "lumi.weather.v1", Raw: map[string]any{}},
		},
	}

	snapshot, err := newTestReconciler(client).GetHouseReadings(context.Background())
	if err != nil {
		t.Fatalf("GetHouseReadings() error = %v", err)
	}
	if snapshot.Count != 1 {
		t.Fatalf("Count = %d, want 1", snapshot.Count)
	}
	if snapshot.Items[0].DID != "dev-1" {
		t.Errorf("DID = %q, want dev-1", snapshot.Items[0].DID)
	}
}

func TestIsThermometerByName(t *testing.T) {
	r := newTestReconciler(&fakeCloudClient{})

	device := Device{Name: "Temperature and Humidity Monitor", Model: "unknown.vendor.x1", Raw: map[string]any{}}
	if !r.isThermometer(device) {
		t.Error("isThermometer() = false for temperature+humidity name, want true")
	}
}

func TestIsThermometerByRawValues(t *testing.T) {
	r := newTestReconciler(&fakeCloudClient{})

	device := Device{Name: "Mystery", Model: "unknown.vendor.x1", Raw: map[string]any{
		"temp": float64(221), "hum": float64(540),
	}}
	if !r.isThermometer(device) {
		t.Error("isThermometer() = false with both raw values, want true")
	}

	partial := Device{Name: "Mystery", Model: "unknown.vendor.x1", Raw: map[string]any{
		"temp": float64(221),
	}}
	if r.isThermometer(partial) {
		t.Error("isThermometer() = true with only one raw value, want false")
	}
}

func TestIsThermometerExtraHints(t *testing.T) {
	r := newTestReconciler(&fakeCloudClient{}, "Climate")

	device := Device{Name: "Node", Model: "acme.climate.pro", Raw: map[string]any{}}
	if !r.isThermometer(device) {
		t.Error("isThermometer() = false with extra hint, want true")
	}
}

// TestRPCCascadeSecondPair drives a sensor whose record carries no
// values and whose first RPC key pair returns nulls: the second pair
// must be tried and its values used, and the miot-spec tier skipped.
func TestRPCCascadeSecondPair(t *testing.T) {
	client := &fakeCloudClient{
		devices: []Device{
			{DID: "dev-1", Name: "Sensor", Model: "lumi.sensor_ht.v2", Raw: map[string]any{}},
		},
		responses: map[string]map[string]any{
			"/home/rpc/dev-1?temperature": {"result": []any{nil, nil}},
			"/home/rpc/dev-1?temp_dec":    {"result": []any{float64(221), float64(543)}},
		},
	}

	snapshot, err := newTestReconciler(client).GetHouseReadings(context.Background())
	if err != nil {
		t.Fatalf("GetHouseReadings() error = %v", err)
	}

	item := snapshot.Items[0]
	if item.Temperature == nil || *item.Temperature != 22.1 {
		t.Errorf("Temperature = %v, want 22.1", item.Temperature)
	}
	if item.Humidity == nil || *item.Humidity != 54.3 {
		t.Errorf("Humidity = %v, want 54.3", item.Humidity)
	}
	for _, call := range client.calls {
		if strings.HasPrefix(call, "/miotspec/") {
			t.Errorf("unexpected miot-spec probe after RPC success: %s", call)
		}
	}
}

// TestMiotSpecFallback drives a sensor where both the record and every
// RPC pair come up empty, so values resolve from the miot-spec tier.
func TestMiotSpecFallback(t *testing.T) {
	client := &fakeCloudClient{
		devices: []Device{
			{DID: "dev-1", Name: "Sensor", Model: "miaomiaoce.sensor_ht.t2", Raw: map[string]any{}},
		},
		responses: map[string]map[string]any{
			"/miotspec/prop/get": {"result": []any{
				map[string]any{"did": "dev-1", "siid": float64(2), "piid": float64(1), "value": 21.5},
				map[string]any{"did": "dev-1", "siid": float64(2), "piid": float64(2), "value": 48.2},
			}},
		},
	}

	snapshot, err := newTestReconciler(client).GetHouseReadings(context.Background())
	if err != nil {
		t.Fatalf("GetHouseReadings() error = %v", err)
	}

	item := snapshot.Items[0]
	if item.Temperature == nil || *item.Temperature != 21.5 {
		t.Errorf("Temperature = %v, want 21.5", item.Temperature)
	}
	if item.Humidity == nil || *item.Humidity != 48.2 {
		t.Errorf("Humidity = %v, want 48.2", item.Humidity)
	}
}

// TestPartialValuesStayPartial verifies a sensor with only a
// temperature reading keeps humidity null when every probe misses.
func TestPartialValuesStayPartial(t *testing.T) {
	client := &fakeCloudClient{
		devices: []Device{
			{DID: "dev-1", Name: "Sensor", Model: "lumi.sensor_ht.v2", Raw: map[string]any{
				"temperature": float64(2234),
			}},
		},
	}

	snapshot, err := newTestReconciler(client).GetHouseReadings(context.Background())
	if err != nil {
		t.Fatalf("GetHouseReadings() error = %v", err)
	}

	item := snapshot.Items[0]
	if item.Temperature == nil || *item.Temperature != 22.3 {
		t.Errorf("Temperature = %v, want 22.3", item.Temperature)
	}
	if item.Humidity != nil {
		t.Errorf("Humidity = %v, want nil", item.Humidity)
	}
}

func TestResolveRoomPrecedence(t *testing.T) {
	r := newTestReconciler(&fakeCloudClient{})
	lookup := map[string]string{"77": "Study"}

	tests := []struct {
		name   string
		device Device
		want   string
	}{
		{
			"explicit room name wins",
			Device{Raw: map[string]any{"room_name": "Kitchen", "room_id": float64(77)}},
			"Kitchen",
		},
		{
			"room id via lookup",
			Device{Raw: map[string]any{"room_id": float64(77)}},
			"Study",
		},
		{
			"description fallback",
			Device{Description: "Upstairs", Raw: map[string]any{"room_id": float64(99)}},
			"Upstairs",
		},
		{
			"unassigned placeholder",
			Device{Raw: map[string]any{}},
			"Unassigned",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := r.resolveRoom(tt.device, lookup); got != tt.want {
				t.Errorf("resolveRoom() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestExtractRooms(t *testing.T) {
	response := map[string]any{
		"result": map[string]any{
			"homelist": []any{
				map[string]any{
					"roomlist": []any{
						map[string]any{"id": float64(1), "name": "Living Room"},
						map[string]any{"room_id": float64(2), "room_name": "Bedroom"},
						map[string]any{"name": "No ID"},
					},
				},
			},
		},
	}

	lookup := extractRooms(response)
	if len(lookup) != 2 {
		t.Fatalf("lookup size = %d, want 2", len(lookup))
	}
	if lookup["1"] != "Living Room" {
		t.Errorf("lookup[1] = %q, want Living Room", lookup["1"])
	}
	if lookup["2"] != "Bedroom" {
		t.Errorf("lookup[2] = %q, want Bedroom", lookup["2"])
	}
}

func TestReadOnlineState(t *testing.T) {
	tests := []struct {
		name string
		raw  map[string]any
		want bool
	}{
		{"missing defaults online", map[string]any{}, true},
		{"bool true", map[string]any{"isOnline": true}, true},
		{"bool false", map[string]any{"isOnline": false}, false},
		{"legacy key", map[string]any{"online": false}, false},
		{"string online", map[string]any{"isOnline": "Online"}, true},
		{"string one", map[string]any{"isOnline": "1"}, true},
		{"string offline", map[string]any{"isOnline": "offline"}, false},
		{"numeric zero", map[string]any{"isOnline": float64(0)}, false},
		{"numeric one", map[string]any{"isOnline": float64(1)}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := readOnlineState(tt.raw); got != tt.want {
				t.Errorf("readOnlineState(%v) = %v, want %v", tt.raw, got, tt.want)
			}
		})
	}
}

func TestExtractRawValuesNestedSources(t *testing.T) {
	propPayload := map[string]any{
		"prop": map[string]any{"temperature": float64(215), "humidity": float64(480)},
	}
	temp, hum := extractRawValues(propPayload)
	if temp != float64(215) || hum != float64(480) {
		t.Errorf("prop extraction = (%v, %v), want (215, 480)", temp, hum)
	}

	extraPayload := map[string]any{
		"extra": `{"temp_dec": 221, "humi_dec": 505}`,
	}
	temp, hum = extractRawValues(extraPayload)
	if temp != float64(221) || hum != float64(505) {
		t.Errorf("extra extraction = (%v, %v), want (221, 505)", temp, hum)
	}

	badExtra := map[string]any{"extra": "not json"}
	temp, hum = extractRawValues(badExtra)
	if temp != nil || hum != nil {
		t.Errorf("bad extra extraction = (%v, %v), want (nil, nil)", temp, hum)
	}
}

func TestSnapshotSorting(t *testing.T) {
	client := &fakeCloudClient{
		devices: []Device{
			{DID: "d3", Name: "zulu", Model: "lumi.weather.v1", Raw: map[string]any{"room_name": "Kitchen"}},
			{DID: "d1", Name: "Alpha", Model: "lumi.weather.v1", Raw: map[string]any{"room_name": "kitchen"}},
			{DID: "d2", Name: "Bravo", Model: "lumi.weather.v1", Raw: map[string]any{"room_name": "Attic"}},
		},
	}

	snapshot, err := newTestReconciler(client).GetHouseReadings(context.Background())
	if err != nil {
		t.Fatalf("GetHouseReadings() error = %v", err)
	}

	var got []string
	for _, item := range snapshot.Items {
		got = append(got, item.DID)
	}
	want := []string{"d2", "d1", "d3"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("sorted order = %v, want %v", got, want)
		}
	}
}

func TestNeedsLogin(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"missing credentials", ErrMissingCredentials, true},
		{"login failed sentinel", ErrLoginFailed, true},
		{"token mention", context.DeadlineExceeded, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := NeedsLogin(tt.err); got != tt.want {
				t.Errorf("NeedsLogin(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}

func TestMockSnapshot(t *testing.T) {
	snapshot := MockSnapshot()
	if snapshot.Count != 6 {
		t.Fatalf("Count = %d, want 6", snapshot.Count)
	}
	if snapshot.UpdatedAt == "" {
		t.Error("UpdatedAt is empty")
	}
	for _, item := range snapshot.Items {
		if item.Temperature == nil || item.Humidity == nil {
			t.Errorf("mock item %s has nil values", item.DID)
		}
	}
	if snapshot.Items[5].Online {
		t.Error("last mock sensor should be offline")
	}
}
