package location

import (
	"context"
	"time"

	"googlemaps.github.io/maps"
)

// GoogleGeolocationProvider uses the Google Maps Geolocation API to resolve
// the device position from nearby WiFi access points and cell towers. It is
// the fallback for devices without a GPS sensor; such fixes carry no
// altitude, speed or bearing.
type GoogleGeolocationProvider struct {
	client     *maps.Client
	modemIndex int
}

// NewGoogleGeolocationProvider creates a new GoogleGeolocationProvider instance.
func NewGoogleGeolocationProvider(apiKey string, modemIndex int) (*GoogleGeolocationProvider, error) {
	c, err := maps.NewClient(maps.WithAPIKey(apiKey))
	if err != nil {
		return nil, err
	}

	return &GoogleGeolocationProvider{
		client:     c,
		modemIndex: modemIndex,
	}, nil
}

// GetLocation retrieves the device's location using Google Maps Geolocation API.
func (g *GoogleGeolocationProvider) GetLocation() (Location, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// Environment scans are best effort; the API can still geolocate from
	// the caller IP alone.
	wifiAPs, err := getWiFiAccessPoints(ctx)
	if err != nil {
		wifiAPs = nil
	}

	cellTowers, err := getCellTowers(ctx, g.modemIndex)
	if err != nil {
		cellTowers = nil
	}

	req := &maps.GeolocationRequest{
		ConsiderIP:       true,
		WiFiAccessPoints: wifiAPs,
		CellTowers:       cellTowers,
	}

	resp, err := g.client.Geolocate(ctx, req)
	if err != nil {
		return Location{}, err
	}

	return Location{
		Latitude:  resp.Location.Lat,
		Longitude: resp.Location.Lng,
		Accuracy:  resp.Accuracy,
	}, nil
}

// Close releases the provider.
func (g *GoogleGeolocationProvider) Close() error {
	return nil
}
