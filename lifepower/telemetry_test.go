package lifepower

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// telemetryGroups returns a complete, plausible set of decoded groups:
// 4 cells around 3.3V, mild charge, 65% SOC, 100Ah, 20°C sensors,
// no alarms, 42 cycles, 13.28V pack.
func telemetryGroups() [][]uint16 {
	return tenGroups(
		[]uint16{3312, 3308, 3301, 3315},
		[]uint16{29000},
		[]uint16{6500},
		[]uint16{10000},
		[]uint16{70, 70, 71, 69, 70, 70},
		[]uint16{0, 0},
		[]uint16{42},
		[]uint16{1328},
	)
}

func TestMapTelemetry(t *testing.T) {
	now := time.Now()
	sn, err := mapTelemetry(telemetryGroups(), now)
	require.NoError(t, err)

	assert.Equal(t, now, sn.Time)
	require.Len(t, sn.Cells, 4)
	assert.Equal(t, 3.312, sn.Cells[0].Voltage)
	assert.Equal(t, 10.0, sn.Current)
	assert.Equal(t, 65.0, sn.SOC)
	assert.Equal(t, 100.0, sn.Capacity)
	for i := 0; i < temperatureSensors; i++ {
		assert.InDelta(t, 20.0, sn.Temperatures[i], 1.0)
	}
	assert.Equal(t, Alarms{}, sn.Alarms)
	assert.Equal(t, 42, sn.ChargeCycles)
	assert.Equal(t, 13.28, sn.Voltage)
	assert.True(t, sn.ChargeEnabled)
	assert.True(t, sn.DischargeEnabled)
}

func TestMapTelemetryCellVoltageMask(t *testing.T) {
	groups := telemetryGroups()
	groups[groupCellVoltages] = []uint16{0x1f40}
	sn, err := mapTelemetry(groups, time.Now())
	require.NoError(t, err)
	require.Len(t, sn.Cells, 1)
	assert.Equal(t, 8.0, sn.Cells[0].Voltage)

	// high-voltage-alarm bits must not leak into the reading
	groups[groupCellVoltages] = []uint16{0xc000 | 3312}
	sn, err = mapTelemetry(groups, time.Now())
	require.NoError(t, err)
	assert.Equal(t, 3.312, sn.Cells[0].Voltage)
}

func TestMapTelemetryCurrentSign(t *testing.T) {
	groups := telemetryGroups()

	groups[groupCurrent] = []uint16{29000}
	sn, err := mapTelemetry(groups, time.Now())
	require.NoError(t, err)
	assert.Equal(t, 10.0, sn.Current, "charging")

	groups[groupCurrent] = []uint16{31000}
	sn, err = mapTelemetry(groups, time.Now())
	require.NoError(t, err)
	assert.Equal(t, -10.0, sn.Current, "discharging")

	groups[groupCurrent] = []uint16{30000}
	sn, err = mapTelemetry(groups, time.Now())
	require.NoError(t, err)
	assert.Equal(t, 0.0, sn.Current, "idle")
}

func TestMapTelemetryTemperatureOffset(t *testing.T) {
	groups := telemetryGroups()
	groups[groupTemperatures] = []uint16{50, 0, 100, 0x0132, 75, 25}
	sn, err := mapTelemetry(groups, time.Now())
	require.NoError(t, err)
	assert.Equal(t, 0.0, sn.Temperatures[0])
	assert.Equal(t, -50.0, sn.Temperatures[1])
	assert.Equal(t, 50.0, sn.Temperatures[2])
	// only the low byte carries the reading
	assert.Equal(t, 0.0, sn.Temperatures[3])
	assert.Equal(t, 25.0, sn.Temperatures[4])
	assert.Equal(t, -25.0, sn.Temperatures[5])
}

func TestMapTelemetryAlarms(t *testing.T) {
	groups := telemetryGroups()
	groups[groupAlarms] = []uint16{0, 0x0050} // bits 4 and 6
	sn, err := mapTelemetry(groups, time.Now())
	require.NoError(t, err)
	assert.Equal(t, Alarms{
		HighVoltage:           AlarmActive,
		HighChargeTemperature: AlarmActive,
	}, sn.Alarms)

	groups[groupAlarms] = []uint16{0, 0x00f8} // all five bits
	sn, err = mapTelemetry(groups, time.Now())
	require.NoError(t, err)
	assert.Equal(t, Alarms{
		HighChargeCurrent:     AlarmActive,
		HighVoltage:           AlarmActive,
		LowVoltage:            AlarmActive,
		HighChargeTemperature: AlarmActive,
		LowChargeTemperature:  AlarmActive,
	}, sn.Alarms)

	// alarm bits live in the low byte only
	groups[groupAlarms] = []uint16{0, 0xff00}
	sn, err = mapTelemetry(groups, time.Now())
	require.NoError(t, err)
	assert.Equal(t, Alarms{}, sn.Alarms)
}

func TestMapTelemetryShortGroups(t *testing.T) {
	for _, idx := range []int{groupCurrent, groupSOC, groupCapacity, groupTemperatures, groupAlarms, groupCycles, groupVoltage} {
		groups := telemetryGroups()
		groups[idx] = nil
		_, err := mapTelemetry(groups, time.Now())
		assert.Errorf(t, err, "group %d", idx)
	}

	// five temperature values are one short of the six sensors
	groups := telemetryGroups()
	groups[groupTemperatures] = []uint16{70, 70, 70, 70, 70}
	_, err := mapTelemetry(groups, time.Now())
	assert.Error(t, err)
}

func TestMapTelemetryNoCells(t *testing.T) {
	// an empty cell group is degenerate but not a mapping failure,
	// cell count follows the group length
	groups := telemetryGroups()
	groups[groupCellVoltages] = nil
	sn, err := mapTelemetry(groups, time.Now())
	require.NoError(t, err)
	assert.Empty(t, sn.Cells)
}
