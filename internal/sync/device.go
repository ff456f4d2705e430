package sync

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"knowledge-sync-service/internal/logger"
	"knowledge-sync-service/internal/store"
)

// Registry manages the identity and lifecycle of synchronizing devices.
type Registry struct {
	store store.Store
}

func NewRegistry(s store.Store) *Registry {
	return &Registry{store: s}
}

// Register creates a device, or returns the existing one when the same
// device id registers again for the same owner (idempotent; name and type
// are refreshed). When deviceID is empty the server issues a stable id the
// client must persist.
func (r *Registry) Register(ctx context.Context, ownerID, deviceName string, deviceType store.DeviceType, deviceID string) (*store.Device, error) {
	if ownerID == "" {
		return nil, validationf("owner_id is required")
	}
	if deviceName == "" {
		return nil, validationf("device_name is required")
	}
	if !store.ValidDeviceType(deviceType) {
		return nil, validationf("unknown device_type %q", deviceType)
	}

	if deviceID != "" {
		existing, err := r.store.GetDevice(ctx, ownerID, deviceID)
		if err != nil {
			return nil, storagef("get device", err)
		}
		if existing != nil {
			if existing.DeviceName != deviceName || existing.DeviceType != deviceType {
				if err := r.store.UpdateDeviceInfo(ctx, ownerID, deviceID, deviceName, deviceType); err != nil {
					return nil, storagef("update device", err)
				}
				existing.DeviceName = deviceName
				existing.DeviceType = deviceType
			}
			return existing, nil
		}
	} else {
		deviceID = uuid.New().String()
	}

	d := &store.Device{
		DeviceID:   deviceID,
		OwnerID:    ownerID,
		DeviceName: deviceName,
		DeviceType: deviceType,
		IsActive:   true,
		CreatedAt:  time.Now(),
	}
	if err := r.store.CreateDevice(ctx, d); err != nil {
		return nil, storagef("create device", err)
	}

	logger.Log.Info("Device registered",
		zap.String("owner_id", ownerID),
		zap.String("device_id", deviceID),
		zap.String("device_type", string(deviceType)),
	)
	return d, nil
}

// Deactivate soft-disables a device. Journal entries already attributed to
// it remain valid; only future pull/push calls are rejected.
func (r *Registry) Deactivate(ctx context.Context, deviceID, ownerID string) error {
	ok, err := r.store.DeactivateDevice(ctx, ownerID, deviceID)
	if err != nil {
		return storagef("deactivate device", err)
	}
	if !ok {
		return &NotFoundError{Resource: "device", ID: deviceID}
	}

	logger.Log.Info("Device deactivated",
		zap.String("owner_id", ownerID),
		zap.String("device_id", deviceID),
	)
	return nil
}

// Get returns a device scoped to the requesting owner. A device owned by
// someone else is reported as not found, never as someone else's.
func (r *Registry) Get(ctx context.Context, deviceID, ownerID string) (*store.Device, error) {
	d, err := r.store.GetDevice(ctx, ownerID, deviceID)
	if err != nil {
		return nil, storagef("get device", err)
	}
	if d == nil {
		return nil, &NotFoundError{Resource: "device", ID: deviceID}
	}
	return d, nil
}

// List returns all devices registered by the owner.
func (r *Registry) List(ctx context.Context, ownerID string) ([]*store.Device, error) {
	devices, err := r.store.ListDevices(ctx, ownerID)
	if err != nil {
		return nil, storagef("list devices", err)
	}
	return devices, nil
}

// requireActive loads a device and rejects deactivated ones. Shared by
// pull and push.
func (r *Registry) requireActive(ctx context.Context, deviceID, ownerID string) (*store.Device, error) {
	d, err := r.Get(ctx, deviceID, ownerID)
	if err != nil {
		return nil, err
	}
	if !d.IsActive {
		return nil, &DeviceInactiveError{DeviceID: deviceID}
	}
	return d, nil
}
