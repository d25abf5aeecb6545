package lifepower

import (
	"fmt"
	"time"
)

// Group positions within a status response. The mapper reads groups 0-7,
// the remaining two are carried by the protocol but not interpreted here.
const (
	groupCellVoltages = iota
	groupCurrent
	groupSOC
	groupCapacity
	groupTemperatures
	groupAlarms
	groupCycles
	groupVoltage
)

// Top two bits of a cell reading flag a high-voltage condition on some
// firmwares and are not part of the voltage itself.
const cellVoltageMask = 0x3fff

const temperatureSensors = 6

// Alarm bits in the low byte of the second value of the alarm group.
const (
	alarmBitHighChargeCurrent = 1 << 3
	alarmBitHighVoltage       = 1 << 4
	alarmBitLowVoltage        = 1 << 5
	alarmBitHighChargeTemp    = 1 << 6
	alarmBitLowChargeTemp     = 1 << 7
)

// Alarm is the severity reported for a protection flag:
// 0 none, 2 active.
type Alarm int

const (
	AlarmNone   Alarm = 0
	AlarmActive Alarm = 2
)

type Cell struct {
	Voltage float64 // volts
}

type Alarms struct {
	HighChargeCurrent     Alarm
	HighVoltage           Alarm
	LowVoltage            Alarm
	HighChargeTemperature Alarm
	LowChargeTemperature  Alarm
}

// Snapshot is the full set of measurements produced by one refresh cycle.
// It is rebuilt from scratch every cycle and swapped in wholesale, never
// mutated in place.
type Snapshot struct {
	Time         time.Time
	Cells        []Cell
	Current      float64 // amps, negative while discharging
	SOC          float64 // percent
	Capacity     float64 // amp-hours
	Temperatures [temperatureSensors]float64
	Alarms       Alarms
	ChargeCycles int
	Voltage      float64 // pack volts

	// The BMS reports no live relay state, both are fixed true.
	ChargeEnabled    bool
	DischargeEnabled bool
}

func groupTooShort(idx, have, need int) error {
	return fmt.Errorf("status frame group %d: have %d values, need %d", idx, have, need)
}

// mapTelemetry interprets the decoded groups as a Snapshot. It is a pure
// function of the group values; decodeGroups guarantees all 10 groups are
// present, lengths within mapped groups are checked here.
func mapTelemetry(groups [][]uint16, now time.Time) (Snapshot, error) {
	for _, idx := range []int{groupCurrent, groupSOC, groupCapacity, groupCycles, groupVoltage} {
		if len(groups[idx]) < 1 {
			return Snapshot{}, groupTooShort(idx, len(groups[idx]), 1)
		}
	}
	if len(groups[groupTemperatures]) < temperatureSensors {
		return Snapshot{}, groupTooShort(groupTemperatures, len(groups[groupTemperatures]), temperatureSensors)
	}
	if len(groups[groupAlarms]) < 2 {
		return Snapshot{}, groupTooShort(groupAlarms, len(groups[groupAlarms]), 2)
	}

	sn := Snapshot{
		Time:             now,
		Cells:            make([]Cell, len(groups[groupCellVoltages])),
		Current:          (30000 - float64(groups[groupCurrent][0])) / 100,
		SOC:              float64(groups[groupSOC][0]) / 100,
		Capacity:         float64(groups[groupCapacity][0]) / 100,
		ChargeCycles:     int(groups[groupCycles][0]),
		Voltage:          float64(groups[groupVoltage][0]) / 100,
		ChargeEnabled:    true,
		DischargeEnabled: true,
	}
	for i, raw := range groups[groupCellVoltages] {
		sn.Cells[i].Voltage = float64(raw&cellVoltageMask) / 1000
	}
	for i := 0; i < temperatureSensors; i++ {
		sn.Temperatures[i] = float64(groups[groupTemperatures][i]&0xff) - 50
	}

	bits := groups[groupAlarms][1] & 0xff
	sn.Alarms = Alarms{
		HighChargeCurrent:     alarmSeverity(bits, alarmBitHighChargeCurrent),
		HighVoltage:           alarmSeverity(bits, alarmBitHighVoltage),
		LowVoltage:            alarmSeverity(bits, alarmBitLowVoltage),
		HighChargeTemperature: alarmSeverity(bits, alarmBitHighChargeTemp),
		LowChargeTemperature:  alarmSeverity(bits, alarmBitLowChargeTemp),
	}
	return sn, nil
}

func alarmSeverity(bits, mask uint16) Alarm {
	if bits&mask != 0 {
		return AlarmActive
	}
	return AlarmNone
}
