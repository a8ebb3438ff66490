package location

import (
	"bufio"
	"errors"
	"strings"

	"github.com/adrianmo/go-nmea"
	"github.com/tarm/serial"
)

// knots to meters per second
const knotsToMS = 0.514444

// DeviceSensorProvider retrieves location data from a GPS device connected
// via serial port. GGA sentences supply position, altitude and HDOP; the
// most recent RMC sentence, when one precedes the GGA, supplies speed over
// ground and course.
type DeviceSensorProvider struct {
	port     string // Serial port to which the GPS device is connected
	baudRate int    // Baud rate for the serial communication
}

// NewDeviceSensorProvider creates a new instance of DeviceSensorProvider with the specified port and baud rate.
func NewDeviceSensorProvider(port string, baudRate int) *DeviceSensorProvider {
	return &DeviceSensorProvider{
		port:     port,
		baudRate: baudRate,
	}
}

// GetLocation reads NMEA sentences from the device until a position fix is
// assembled.
func (d *DeviceSensorProvider) GetLocation() (Location, error) {
	c := &serial.Config{Name: d.port, Baud: d.baudRate}
	s, err := serial.OpenPort(c)
	if err != nil {
		return Location{}, err
	}
	defer s.Close()

	var speed, bearing *float64

	scanner := bufio.NewScanner(s)
	for scanner.Scan() {
		line := scanner.Text()

		switch {
		case strings.HasPrefix(line, "$GPRMC"):
			sentence, err := nmea.Parse(line)
			if err != nil {
				continue
			}
			if rmc, ok := sentence.(nmea.RMC); ok && rmc.Validity == "A" {
				v := rmc.Speed * knotsToMS
				course := rmc.Course
				speed = &v
				bearing = &course
			}

		case strings.HasPrefix(line, "$GPGGA"):
			sentence, err := nmea.Parse(line)
			if err != nil {
				return Location{}, err
			}
			if gga, ok := sentence.(nmea.GGA); ok {
				altitude := gga.Altitude
				return Location{
					Latitude:  gga.Latitude,
					Longitude: gga.Longitude,
					Accuracy:  float64(gga.HDOP), // HDOP as a proxy for accuracy
					Altitude:  &altitude,
					Speed:     speed,
					Bearing:   bearing,
				}, nil
			}
		}
	}

	if err := scanner.Err(); err != nil {
		return Location{}, err
	}

	return Location{}, errors.New("no valid GPS data found")
}

// Close releases the provider. The serial port is opened per read, so there
// is nothing to tear down.
func (d *DeviceSensorProvider) Close() error {
	return nil
}
