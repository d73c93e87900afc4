package offline

import (
	"strconv"

	"revi/agent-core/internal/infrastructure/storage"
	"revi/agent-core/internal/pkg/uid"
)

// Device wraps the local key-value store with the two pieces of identity the
// sync manager needs: a stable device id and the last successful sync time.
type Device struct {
	kv storage.KV
}

func NewDevice(kv storage.KV) *Device {
	return &Device{kv: kv}
}

// ID returns the persisted device id, generating and storing one if absent.
func (d *Device) ID() string {
	if id, ok := d.kv.Get(storage.KeyDeviceID); ok && id != "" {
		return id
	}
	id := uid.NewDeviceID()
	_ = d.kv.Set(storage.KeyDeviceID, id)
	return id
}

// LastSync returns the persisted last-sync timestamp in epoch milliseconds,
// zero when the device has never synced.
func (d *Device) LastSync() int64 {
	raw, ok := d.kv.Get(storage.KeyLastSync)
	if !ok {
		return 0
	}
	ts, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0
	}
	return ts
}

// SetLastSync persists a new last-sync timestamp.
func (d *Device) SetLastSync(ts int64) error {
	return d.kv.Set(storage.KeyLastSync, strconv.FormatInt(ts, 10))
}
