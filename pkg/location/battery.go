package location

import (
	"os"
	"strconv"
	"strings"
)

var batteryCapacityPaths = []string{
	"/sys/class/power_supply/BAT0/capacity",
	"/sys/class/power_supply/battery/capacity",
}

// ReadBatteryLevel returns the battery charge percentage from sysfs, or
// false on devices without a battery.
func ReadBatteryLevel() (int, bool) {
	for _, path := range batteryCapacityPaths {
		data, err := os.ReadFile(path)
		if err != nil {
			continue
		}
		level, err := strconv.Atoi(strings.TrimSpace(string(data)))
		if err != nil || level < 0 || level > 100 {
			continue
		}
		return level, true
	}
	return 0, false
}
