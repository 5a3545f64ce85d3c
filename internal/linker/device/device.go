// Package device picks the emulated client identity for each handshake.
package device

import (
	"math/rand/v2"

	"qrlink/internal/linker/models"
)

// Profiles is the fixed, closed set of emulated clients. Varying the
// fingerprint per handshake keeps the remote service from flagging repeated
// identical logins as automated.
var Profiles = [3]models.DeviceProfile{
	{Model: "Samsung SM-G991B", SystemVersion: "Android 13", AppVersion: "10.0.0"},
	{Model: "iPhone15,3", SystemVersion: "iOS 17.1.2", AppVersion: "10.0.0"},
	{Model: "Desktop", SystemVersion: "Windows 10", AppVersion: "4.0.0"},
}

// Selector picks a device profile for a new handshake.
type Selector interface {
	Select() models.DeviceProfile
}

// Random selects uniformly at random from Profiles. Stateless.
type Random struct{}

func (Random) Select() models.DeviceProfile {
	return Profiles[rand.IntN(len(Profiles))]
}

// Fixed always returns the same profile. For deterministic tests.
type Fixed struct {
	Profile models.DeviceProfile
}

func (f Fixed) Select() models.DeviceProfile { return f.Profile }
