package sync_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"knowledge-sync-service/internal/store"
	"knowledge-sync-service/internal/sync"
)

func TestRegisterIssuesStableID(t *testing.T) {
	m, _, _ := newTestManager(t)
	ctx := context.Background()

	d, err := m.Registry().Register(ctx, "alice", "laptop", store.DeviceDesktop, "")
	require.NoError(t, err)
	assert.NotEmpty(t, d.DeviceID)
	assert.True(t, d.IsActive)

	// Re-registering the issued id is idempotent.
	again, err := m.Registry().Register(ctx, "alice", "laptop", store.DeviceDesktop, d.DeviceID)
	require.NoError(t, err)
	assert.Equal(t, d.DeviceID, again.DeviceID)

	devices, err := m.Registry().List(ctx, "alice")
	require.NoError(t, err)
	assert.Len(t, devices, 1)
}

func TestRegisterAcceptsClientGeneratedID(t *testing.T) {
	m, _, _ := newTestManager(t)
	ctx := context.Background()

	d, err := m.Registry().Register(ctx, "alice", "phone", store.DeviceMobile, "client-id-1")
	require.NoError(t, err)
	assert.Equal(t, "client-id-1", d.DeviceID)
}

func TestReRegisterUpdatesNameAndType(t *testing.T) {
	m, _, _ := newTestManager(t)
	ctx := context.Background()

	d, err := m.Registry().Register(ctx, "alice", "old name", store.DeviceWeb, "dev-1")
	require.NoError(t, err)

	updated, err := m.Registry().Register(ctx, "alice", "new name", store.DeviceDesktop, "dev-1")
	require.NoError(t, err)
	assert.Equal(t, d.DeviceID, updated.DeviceID)
	assert.Equal(t, "new name", updated.DeviceName)
	assert.Equal(t, store.DeviceDesktop, updated.DeviceType)

	got, err := m.Registry().Get(ctx, "dev-1", "alice")
	require.NoError(t, err)
	assert.Equal(t, "new name", got.DeviceName)
}

func TestRegisterValidation(t *testing.T) {
	m, _, _ := newTestManager(t)
	ctx := context.Background()

	_, err := m.Registry().Register(ctx, "alice", "", store.DeviceWeb, "")
	assert.True(t, sync.IsValidation(err))

	_, err = m.Registry().Register(ctx, "alice", "tv", "toaster", "")
	assert.True(t, sync.IsValidation(err))

	_, err = m.Registry().Register(ctx, "", "tv", store.DeviceWeb, "")
	assert.True(t, sync.IsValidation(err))
}

func TestDeviceOwnerScoping(t *testing.T) {
	m, _, _ := newTestManager(t)
	ctx := context.Background()

	_, err := m.Registry().Register(ctx, "alice", "laptop", store.DeviceDesktop, "dev-1")
	require.NoError(t, err)

	// Existence never leaks across owners.
	_, err = m.Registry().Get(ctx, "dev-1", "bob")
	assert.True(t, sync.IsNotFound(err))

	err = m.Registry().Deactivate(ctx, "dev-1", "bob")
	assert.True(t, sync.IsNotFound(err))

	// The same device id can exist under both owners independently.
	_, err = m.Registry().Register(ctx, "bob", "bobs laptop", store.DeviceDesktop, "dev-1")
	require.NoError(t, err)
}

func TestDeactivateUnknownDevice(t *testing.T) {
	m, _, _ := newTestManager(t)

	err := m.Registry().Deactivate(context.Background(), "ghost", "alice")
	assert.True(t, sync.IsNotFound(err))
}
