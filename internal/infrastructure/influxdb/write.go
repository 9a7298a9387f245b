package influxdb

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// WriteDetection records one detection outcome.
//
// The write is non-blocking; data is batched and sent asynchronously.
// Tags carry the boolean outcomes for cheap filtering, the brightness
// measurement goes in as a field.
//
// Parameters:
//   - recordID: Detection log row id
//   - isCat: Whether the classifier found a cat
//   - tooDark: Whether the brightness gate rejected the frame
//   - brightness: Measured frame brightness (0-255)
func (c *Client) WriteDetection(recordID int64, isCat, tooDark bool, brightness float64) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(
		"detection",
		map[string]string{
			"cat":      boolTag(isCat),
			"too_dark": boolTag(tooDark),
		},
		map[string]interface{}{
			"record_id":  recordID,
			"brightness": brightness,
		},
		time.Now(),
	)

	c.writeAPI.WritePoint(point)
}

// WriteThermometer records one reconciled sensor reading.
//
// Missing values are skipped rather than written as zero, so gaps in
// the series mean "sensor had no value", not "it was freezing".
//
// Parameters:
//   - did: Cloud device id
//   - room: Resolved room name
//   - temperature: Degrees Celsius, nil when unresolved
//   - humidity: Relative humidity percent, nil when unresolved
//   - online: Whether the cloud reports the sensor reachable
func (c *Client) WriteThermometer(did, room string, temperature, humidity *float64, online bool) {
	if !c.IsConnected() {
		return
	}

	fields := map[string]interface{}{
		"online": online,
	}
	if temperature != nil {
		fields["temperature"] = *temperature
	}
	if humidity != nil {
		fields["humidity"] = *humidity
	}

	point := write.NewPoint(
		"thermometer",
		map[string]string{
			"did":  did,
			"room": room,
		},
		fields,
		time.Now(),
	)

	c.writeAPI.WritePoint(point)
}

// WritePoint writes a custom point with full control over tags and fields.
//
// Use this for measurements that don't fit the helper methods.
func (c *Client) WritePoint(measurement string, tags map[string]string, fields map[string]interface{}) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(measurement, tags, fields, time.Now())
	c.writeAPI.WritePoint(point)
}

func boolTag(value bool) string {
	if value {
		return "true"
	}
	return "false"
}
