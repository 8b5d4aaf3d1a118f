// Copyright (C) meshwatch contributors.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package wire

import "math"

const (
	telFieldTime          = 1
	telFieldDeviceMetrics = 2
)

const (
	dmFieldBatteryLevel        = 1
	dmFieldVoltage             = 2
	dmFieldChannelUtilization  = 3
	dmFieldAirUtilTx           = 4
	dmFieldUptimeSeconds       = 5
)

// DeviceMetrics is the device-health sub-record nested inside Telemetry.
// Core only consumes device metrics; environmental/power/air-quality
// metrics variants are out of scope and left undecoded.
type DeviceMetrics struct {
	BatteryLevel       uint32
	HasBatteryLevel    bool
	Voltage            float32
	ChannelUtilization float32
	AirUtilTx          float32
	UptimeSeconds      uint32
}

// Telemetry wraps a timestamped DeviceMetrics reading.
type Telemetry struct {
	Time    uint32
	Metrics *DeviceMetrics
}

// DecodeTelemetry parses a Telemetry record from b.
func DecodeTelemetry(b []byte) (*Telemetry, error) {
	t := &Telemetry{}
	err := eachField(b, func(f field) error {
		switch f.num {
		case telFieldTime:
			t.Time = uint32(f.varint)
		case telFieldDeviceMetrics:
			if f.typ != WireBytes {
				return nil
			}
			dm, err := decodeDeviceMetrics(f.bytes)
			if err != nil {
				return err
			}
			t.Metrics = dm
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return t, nil
}

func decodeDeviceMetrics(b []byte) (*DeviceMetrics, error) {
	dm := &DeviceMetrics{}
	err := eachField(b, func(f field) error {
		switch f.num {
		case dmFieldBatteryLevel:
			dm.BatteryLevel = uint32(f.varint)
			dm.HasBatteryLevel = true
		case dmFieldVoltage:
			dm.Voltage = math.Float32frombits(f.fixed32)
		case dmFieldChannelUtilization:
			dm.ChannelUtilization = math.Float32frombits(f.fixed32)
		case dmFieldAirUtilTx:
			dm.AirUtilTx = math.Float32frombits(f.fixed32)
		case dmFieldUptimeSeconds:
			dm.UptimeSeconds = uint32(f.varint)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return dm, nil
}

// EncodeTelemetry is the round-trip counterpart of DecodeTelemetry.
func EncodeTelemetry(t *Telemetry) []byte {
	var dst []byte
	if t.Time != 0 {
		dst = encodeVarintField(dst, telFieldTime, uint64(t.Time))
	}
	if t.Metrics != nil {
		dst = encodeBytes(dst, telFieldDeviceMetrics, encodeDeviceMetrics(t.Metrics))
	}
	return dst
}

func encodeDeviceMetrics(dm *DeviceMetrics) []byte {
	var dst []byte
	if dm.HasBatteryLevel {
		dst = encodeVarintField(dst, dmFieldBatteryLevel, uint64(dm.BatteryLevel))
	}
	dst = encodeFixed32Field(dst, dmFieldVoltage, math.Float32bits(dm.Voltage))
	dst = encodeFixed32Field(dst, dmFieldChannelUtilization, math.Float32bits(dm.ChannelUtilization))
	dst = encodeFixed32Field(dst, dmFieldAirUtilTx, math.Float32bits(dm.AirUtilTx))
	if dm.UptimeSeconds != 0 {
		dst = encodeVarintField(dst, dmFieldUptimeSeconds, uint64(dm.UptimeSeconds))
	}
	return dst
}
