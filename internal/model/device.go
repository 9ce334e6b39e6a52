package model

// RegisterDeviceRequest registers a new device or re-registers a known one.
// DeviceID is optional; when present it must be the UUID a previous
// registration returned.
type RegisterDeviceRequest struct {
	DeviceID string `json:"device_id" binding:"omitempty,uuid"`
}
