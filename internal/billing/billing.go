// Package billing is the boundary to the external subscription provider.
// The core never computes entitlement itself — it only asks whether a
// device currently has exam access.
package billing

import (
	"context"

	"github.com/haulpass/cdl-backend/internal/config"
	"github.com/haulpass/cdl-backend/internal/store"
)

// AccessLevel is the entitlement reported by the billing collaborator.
type AccessLevel string

const (
	AccessNone         AccessLevel = "none"
	AccessSubscription AccessLevel = "subscription"
	AccessLifetime     AccessLevel = "lifetime"
)

// ParseAccessLevel maps a stored string onto a known level; anything
// unrecognized degrades to none.
func ParseAccessLevel(s string) AccessLevel {
	switch AccessLevel(s) {
	case AccessSubscription, AccessLifetime:
		return AccessLevel(s)
	default:
		return AccessNone
	}
}

// CanTakeExam reports whether the level unlocks the simulator and drills.
func (l AccessLevel) CanTakeExam() bool {
	return l == AccessSubscription || l == AccessLifetime
}

// AccessChecker answers the entitlement question for a device.
type AccessChecker interface {
	AccessLevel(ctx context.Context, deviceID string) (AccessLevel, error)
}

// StoreAccessChecker reads the entitlement the billing webhook provisions
// into the key-value store. A missing or unreadable entry means none.
type StoreAccessChecker struct {
	kv store.KeyValueStore
}

func NewStoreAccessChecker(kv store.KeyValueStore) *StoreAccessChecker {
	return &StoreAccessChecker{kv: kv}
}

func (c *StoreAccessChecker) AccessLevel(ctx context.Context, deviceID string) (AccessLevel, error) {
	raw, ok, err := c.kv.Get(ctx, config.StorageKey.DeviceAccessKey(deviceID))
	if err != nil {
		return AccessNone, err
	}
	if !ok {
		return AccessNone, nil
	}
	return ParseAccessLevel(string(raw)), nil
}

// StaticAccessChecker always reports the same level. Used by tests and by
// dev environments without a billing provider.
type StaticAccessChecker struct {
	Level AccessLevel
}

func (c StaticAccessChecker) AccessLevel(context.Context, string) (AccessLevel, error) {
	return c.Level, nil
}
