// Package thermo reconciles temperature and humidity readings from
// Xiaomi cloud-connected sensors into a single, stable snapshot.
//
// Device payloads from the cloud are wildly inconsistent across sensor
// generations: values may live in the device record itself, behind a
// legacy RPC property call, or behind miot-spec property coordinates,
// under a handful of competing key names and in three different scales.
// The reconciler walks these sources in a fixed cascade, normalizes
// whatever it finds to plain degrees Celsius and percent, and resolves
// a human room name for each sensor.
//
// The cloud transport sits behind the CloudClient interface so the
// reconciliation logic tests without network access.
package thermo
