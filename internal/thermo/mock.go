package thermo

import (
	"math/rand"
	"time"
)

// mockSensor is one fixture for the mock snapshot.
type mockSensor struct {
	did         string
	name        string
	room        string
	model       string
	temperature float64
	humidity    float64
	online      bool
}

var mockSensors = []mockSensor{
	{"mock-1", "温湿度计", "客厅", "lumi.sensor_ht.v2", 22.0, 55.0, true},
	{"mock-2", "温湿度计 Pro", "卧室", "miaomiaoce.sensor_ht.t2", 20.5, 50.0, true},
	{"mock-3", "青萍温湿度计", "书房", "cgllc.sensor_ht.qpg1", 23.8, 48.0, true},
	{"mock-4", "温湿度计 2", "厨房", "lumi.sensor_ht.v2", 25.2, 62.0, true},
	{"mock-5", "蓝牙温湿度计", "阳台", "miaomiaoce.sensor_ht.t1", 15.3, 70.0, true},
	{"mock-6", "温湿度计 S1", "儿童房", "lumi.weather.v1", 21.0, 52.0, false},
}

// MockSnapshot produces a plausible snapshot without touching the
// cloud, jittering the fixture values a little so a refreshing
// dashboard looks alive.
func MockSnapshot() Snapshot {
	items := make([]Reading, 0, len(mockSensors))
	for _, sensor := range mockSensors {
		temperature := round1(sensor.temperature + (rand.Float64()-0.5))
		humidity := round1(sensor.humidity + (rand.Float64()-0.5)*4)
		items = append(items, Reading{
			DID:         sensor.did,
			Name:        sensor.name,
			Room:        sensor.room,
			Model:       sensor.model,
			Temperature: &temperature,
			Humidity:    &humidity,
			Online:      sensor.online,
		})
	}
	return Snapshot{
		Count:     len(items),
		UpdatedAt: time.Now().UTC().Format(time.RFC3339),
		Items:     items,
	}
}
