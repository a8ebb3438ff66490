package identity

import (
	"os"

	"github.com/trailmark/geotrack-agent/pkg/file"
)

// Identity holds the device's unique identifier. It is provisioned out of
// band and read-only at runtime; every published track point carries it.
type Identity struct {
	ID string `json:"device_id,omitempty"`
}

// DeviceInfoInterface defines methods for reading the device identity.
type DeviceInfoInterface interface {
	LoadDeviceInfo() error
	GetDeviceID() string
}

// DeviceInfo manages the device identity and its associated file operations.
type DeviceInfo struct {
	DeviceInfoFile string
	Identity       Identity
	fileOps        file.FileOperations
}

// NewDeviceInfo initializes a new DeviceInfo instance.
func NewDeviceInfo(filePath string, fileOps file.FileOperations) DeviceInfoInterface {
	return &DeviceInfo{
		DeviceInfoFile: filePath,
		fileOps:        fileOps,
		Identity:       Identity{},
	}
}

// LoadDeviceInfo reads the device information from the file and populates the
// Identity field. A missing file leaves the identity empty; the device then
// publishes anonymously until provisioned.
func (d *DeviceInfo) LoadDeviceInfo() error {
	err := d.fileOps.ReadJsonFile(d.DeviceInfoFile, &d.Identity)
	if err != nil {
		if os.IsNotExist(err) {
			d.Identity = Identity{}
			return nil
		}
		return err
	}

	return nil
}

// GetDeviceID returns the current device ID.
func (d *DeviceInfo) GetDeviceID() string {
	return d.Identity.ID
}
