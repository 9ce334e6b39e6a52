package service

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/haulpass/cdl-backend/internal/config"
	"github.com/haulpass/cdl-backend/internal/model"
	"github.com/haulpass/cdl-backend/internal/store"
)

// ProfileService reads and writes the per-device driver profile.
type ProfileService struct {
	kv  store.KeyValueStore
	log zerolog.Logger
}

// NewProfileService creates a new ProfileService.
func NewProfileService(kv store.KeyValueStore, log zerolog.Logger) *ProfileService {
	return &ProfileService{kv: kv, log: log.With().Str("component", "profile_service").Logger()}
}

// Get returns the stored profile, falling back to the default when the entry
// is missing or unreadable. A corrupt profile never blocks a device; exam
// assembly proceeds on the default.
func (s *ProfileService) Get(ctx context.Context, deviceID string) model.DriverProfile {
	raw, ok, err := s.kv.Get(ctx, config.StorageKey.DeviceProfileKey(deviceID))
	if err != nil || !ok {
		return model.DefaultDriverProfile()
	}

	var p model.DriverProfile
	if err := json.Unmarshal(raw, &p); err != nil || !p.Valid() {
		s.log.Warn().Str("device_id", deviceID).Msg("stored profile unreadable, using default")
		return model.DefaultDriverProfile()
	}
	if p.Endorsements == nil {
		p.Endorsements = []string{}
	}
	return p
}

// Update replaces the stored profile. The change affects the next session
// assembly only; an in-flight exam keeps the profile it was built with.
func (s *ProfileService) Update(ctx context.Context, deviceID string, req model.UpdateProfileRequest) (model.DriverProfile, error) {
	p := model.DriverProfile{
		License:      req.License,
		Endorsements: req.Endorsements,
		Jurisdiction: req.Jurisdiction,
	}
	if p.Endorsements == nil {
		p.Endorsements = []string{}
	}

	raw, err := json.Marshal(p)
	if err != nil {
		return model.DriverProfile{}, fmt.Errorf("encode profile: %w", err)
	}
	if err := s.kv.Set(ctx, config.StorageKey.DeviceProfileKey(deviceID), raw); err != nil {
		return model.DriverProfile{}, fmt.Errorf("store profile: %w", err)
	}
	return p, nil
}
