package utils

import (
	"fmt"
	"strings"

	"github.com/avct/uasurfer"
)

// UserAgentInfo is a coarse, non-identifying summary of a client.
type UserAgentInfo struct {
	Device  string `json:"device"`
	OS      string `json:"os"`
	Browser string `json:"browser"`
	Locale  string `json:"locale,omitempty"`
}

func (u *UserAgentInfo) String() string {
	if u == nil {
		return ""
	}
	return fmt.Sprintf("%s; %s; %s", u.Device, u.OS, u.Browser)
}

// ParseUserAgent returns nil for agents uasurfer cannot place on a device,
// which covers most scripted clients.
func ParseUserAgent(uaString string, acceptLanguage string) *UserAgentInfo {
	ua := uasurfer.Parse(uaString)

	device := "Unknown"
	switch ua.DeviceType {
	case uasurfer.DeviceComputer:
		device = "Computer"
	case uasurfer.DeviceTablet:
		device = "Tablet"
	case uasurfer.DevicePhone:
		device = "Phone"
	case uasurfer.DeviceConsole:
		device = "Console"
	case uasurfer.DeviceWearable:
		device = "Wearable"
	case uasurfer.DeviceTV:
		device = "TV"
	default:
		return nil
	}

	os := fmt.Sprintf("%s %d.%d", ua.OS.Name.StringTrimPrefix(), ua.OS.Version.Major, ua.OS.Version.Minor)
	browser := fmt.Sprintf("%s %d.%d", ua.Browser.Name.StringTrimPrefix(), ua.Browser.Version.Major, ua.Browser.Version.Minor)

	locale := acceptLanguage
	if i := strings.IndexByte(acceptLanguage, ','); i >= 0 {
		locale = acceptLanguage[:i]
	}
	if i := strings.IndexByte(locale, ';'); i >= 0 {
		locale = locale[:i]
	}

	return &UserAgentInfo{
		Device:  device,
		OS:      os,
		Browser: browser,
		Locale:  strings.TrimSpace(locale),
	}
}
