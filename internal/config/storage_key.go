package config

import (
	"fmt"
)

// StorageKeyStruct builds the device-scoped key-value entries the engines
// read and write. The exact key layout matters: dashboard and study-browser
// collaborators read the report and mastery entries directly.
type StorageKeyStruct struct{}

func NewStorageKeyStruct() *StorageKeyStruct {
	return &StorageKeyStruct{}
}

// DeviceSessionKey returns the key holding the single active exam session
// snapshot for a device. At most one session exists per device; starting a
// new exam overwrites it.
func (r *StorageKeyStruct) DeviceSessionKey(deviceID string) string {
	return fmt.Sprintf("device:%s:exam:active_session", deviceID)
}

// DeviceExamIDKey returns the key holding the device's current exam identifier.
func (r *StorageKeyStruct) DeviceExamIDKey(deviceID string) string {
	return fmt.Sprintf("device:%s:exam:exam_id", deviceID)
}

// DeviceProfileKey returns the key holding the device's driver profile.
func (r *StorageKeyStruct) DeviceProfileKey(deviceID string) string {
	return fmt.Sprintf("device:%s:profile", deviceID)
}

// DeviceLastScoreKey returns the key holding the most recent score (0-100,
// stored as a decimal string).
func (r *StorageKeyStruct) DeviceLastScoreKey(deviceID string) string {
	return fmt.Sprintf("device:%s:report:last_score", deviceID)
}

// DeviceWeakestDomainKey returns the key holding the most recent weakest
// category label.
func (r *StorageKeyStruct) DeviceWeakestDomainKey(deviceID string) string {
	return fmt.Sprintf("device:%s:report:weakest_domain", deviceID)
}

// DeviceAnswerLogKey returns the key holding the raw per-question answer log
// of the most recent completed session.
func (r *StorageKeyStruct) DeviceAnswerLogKey(deviceID string) string {
	return fmt.Sprintf("device:%s:report:answer_log", deviceID)
}

// DeviceMasteryKey returns the key holding the deduplicated list of question
// ids the device has ever answered correctly.
func (r *StorageKeyStruct) DeviceMasteryKey(deviceID string) string {
	return fmt.Sprintf("device:%s:study:mastered_ids", deviceID)
}

// DeviceDrillAnswersKey returns the key holding the per-category drill answer
// map (question id -> selected option index).
func (r *StorageKeyStruct) DeviceDrillAnswersKey(deviceID, category string) string {
	return fmt.Sprintf("device:%s:drill:%s:answers", deviceID, category)
}

// DeviceAccessKey returns the key where the billing collaborator provisions
// the device's entitlement level.
func (r *StorageKeyStruct) DeviceAccessKey(deviceID string) string {
	return fmt.Sprintf("device:%s:billing:access_level", deviceID)
}

var StorageKey = NewStorageKeyStruct()
