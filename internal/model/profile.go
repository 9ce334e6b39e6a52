package model

// DriverProfile describes the candidate a session is assembled for.
// Immutable for the lifetime of a session.
type DriverProfile struct {
	License      string   `json:"license"`
	Endorsements []string `json:"endorsements"`
	Jurisdiction string   `json:"jurisdiction"`
}

// DefaultDriverProfile is used whenever no valid profile has been stored
// for a device.
func DefaultDriverProfile() DriverProfile {
	return DriverProfile{
		License:      string(LicenseClassA),
		Endorsements: []string{},
		Jurisdiction: "TX",
	}
}

// Valid reports whether the profile passes the minimal structural checks
// applied when reading it back from storage.
func (p DriverProfile) Valid() bool {
	switch LicenseClass(p.License) {
	case LicenseClassA, LicenseClassB, LicenseClassC, LicenseClassD:
	default:
		return false
	}
	return len(p.Jurisdiction) == 2
}

// UpdateProfileRequest is the payload for replacing a device's profile.
type UpdateProfileRequest struct {
	License      string   `json:"license" binding:"required,oneof=A B C D"`
	Endorsements []string `json:"endorsements" binding:"omitempty,dive,min=1,max=16"`
	Jurisdiction string   `json:"jurisdiction" binding:"required,len=2,uppercase"`
}
