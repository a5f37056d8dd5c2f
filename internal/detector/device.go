package detector

import "strings"

// DeviceType is the coarse device class derived from a user agent.
type DeviceType string

const (
	DeviceDesktop DeviceType = "desktop"
	DeviceTablet  DeviceType = "tablet"
	DeviceMobile  DeviceType = "mobile"
)

var tabletMarkers = []string{"ipad", "tablet", "kindle", "silk/", "playbook"}

var mobileMarkers = []string{"mobi", "iphone", "ipod", "android", "blackberry", "windows phone", "opera mini", "iemobile"}

// ClassifyDevice maps a user agent string to a DeviceType. Unknown or empty
// agents are treated as desktop.
func ClassifyDevice(userAgent string) DeviceType {
	ua := strings.ToLower(userAgent)
	for _, m := range tabletMarkers {
		if strings.Contains(ua, m) {
			return DeviceTablet
		}
	}
	// Android tablets omit "mobile".
	if strings.Contains(ua, "android") && !strings.Contains(ua, "mobile") {
		return DeviceTablet
	}
	for _, m := range mobileMarkers {
		if strings.Contains(ua, m) {
			return DeviceMobile
		}
	}
	return DeviceDesktop
}
