package syncer

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/homeatlas/atlas-core/internal/history"
	"github.com/homeatlas/atlas-core/internal/infrastructure/logging"
	"github.com/homeatlas/atlas-core/internal/layout"
)

// Broadcaster delivers a protocol message to every connected client.
// The websocket hub implements it; tests substitute a recorder.
type Broadcaster interface {
	Broadcast(msgType string, payload any)
}

// CommandPusher forwards device commands to the external hub. The
// device bridge implements it.
type CommandPusher interface {
	PushCommand(ctx context.Context, entityID, command string, data map[string]any) error
}

// TelemetryWriter records numeric device state samples. The InfluxDB
// client implements it; writes are fire-and-forget.
type TelemetryWriter interface {
	WriteDeviceMetric(deviceID, kind, field string, value float64)
}

// Coordinator serialises layout mutations behind a single lock and
// fans committed diffs out to clients. The lock covers
// validate-append-commit plus the diff enqueue, so all clients see
// diffs in version order; actual network sends happen outside it on
// buffered per-client channels.
type Coordinator struct {
	mu        sync.Mutex
	model     *layout.Model
	store     *history.Store
	bridge    CommandPusher
	hub       Broadcaster
	telemetry TelemetryWriter
	logger    *logging.Logger
}

// New creates a coordinator. The bridge may be nil when no device hub
// is configured; device commands then fail with ErrNoBridge.
func New(model *layout.Model, store *history.Store, bridge CommandPusher, hub Broadcaster, logger *logging.Logger) *Coordinator {
	return &Coordinator{
		model:  model,
		store:  store,
		bridge: bridge,
		hub:    hub,
		logger: logger.With("component", "syncer"),
	}
}

// SetBridge attaches the device bridge after construction. The bridge
// needs the coordinator as its state sink, so the two are wired in two
// steps. Call before serving clients.
func (c *Coordinator) SetBridge(p CommandPusher) {
	c.bridge = p
}

// SetTelemetry attaches a metrics sink for device state reports. Call
// before the bridge starts delivering states.
func (c *Coordinator) SetTelemetry(t TelemetryWriter) {
	c.telemetry = t
}

// FullSync returns a consistent snapshot of the layout for a newly
// connected or stale client.
func (c *Coordinator) FullSync() FullSyncPayload {
	c.mu.Lock()
	snap := c.model.Snapshot()
	c.mu.Unlock()
	return FullSyncPayload{Version: snap.Version, Layout: snap}
}

// Version reports the current layout version.
func (c *Coordinator) Version() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.model.Version()
}

// SubmitEdit validates and commits one edit. The edit's base version
// must equal the current version; otherwise ErrStaleVersion is
// returned and nothing changes. Accepted edits are appended to the
// version store before the in-memory layout advances, then broadcast.
func (c *Coordinator) SubmitEdit(ctx context.Context, sessionID string, req EditRequestPayload) (layout.Diff, error) {
	c.mu.Lock()
	current := c.model.Version()
	if req.BaseVersion != current {
		c.mu.Unlock()
		return layout.Diff{}, fmt.Errorf("base %d, current %d: %w", req.BaseVersion, current, ErrStaleVersion)
	}

	diff, err := c.model.Stage(req.Op)
	if err != nil {
		c.mu.Unlock()
		return layout.Diff{}, err
	}

	post := c.model.Snapshot()
	if err := layout.ApplyDiff(post, diff); err != nil {
		c.mu.Unlock()
		return layout.Diff{}, fmt.Errorf("rehearsing staged diff: %w", err)
	}

	if err := c.store.Append(ctx, history.Record{
		Version: diff.ToVersion,
		Diff:    diff,
		Layout:  post,
		Author:  sessionID,
	}); err != nil {
		c.mu.Unlock()
		return layout.Diff{}, fmt.Errorf("%v: %w", err, ErrStorage)
	}

	if err := c.model.Commit(diff); err != nil {
		// The store accepted a version the model refused. The next
		// append will fail ErrNonSequential; surface loudly.
		c.mu.Unlock()
		c.logger.Error("commit diverged from staged diff", "version", diff.ToVersion, "error", err)
		return layout.Diff{}, err
	}
	// Enqueue the diff for every client before releasing the lock, so
	// clients observe diffs in version order. Per-client sends are
	// buffered drop-on-full and never block here.
	c.hub.Broadcast(MsgDiff, DiffPayload{Version: diff.ToVersion, Diff: diff})
	c.mu.Unlock()

	c.logger.Info("edit committed",
		"version", diff.ToVersion,
		"session", sessionID,
		"entity", req.Op.Entity,
		"change", req.Op.Change,
	)
	return diff, nil
}

// Revert commits a new version whose layout equals an earlier stored
// version. History stays append-only: undo moves forward.
func (c *Coordinator) Revert(ctx context.Context, sessionID string, toVersion uint64) (layout.Diff, error) {
	target, err := c.store.Get(ctx, toVersion)
	if err != nil {
		return layout.Diff{}, err
	}

	c.mu.Lock()
	current := c.model.Snapshot()
	diff := layout.ComputeDiff(current, target, current.Version+1)
	if len(diff.Changes) == 0 {
		c.mu.Unlock()
		return layout.Diff{}, fmt.Errorf("version %d: %w", toVersion, ErrNoChanges)
	}

	post := current.Clone()
	if err := layout.ApplyDiff(post, diff); err != nil {
		c.mu.Unlock()
		return layout.Diff{}, fmt.Errorf("building revert diff: %w", err)
	}

	if err := c.store.Append(ctx, history.Record{
		Version: diff.ToVersion,
		Diff:    diff,
		Layout:  post,
		Author:  sessionID,
	}); err != nil {
		c.mu.Unlock()
		return layout.Diff{}, fmt.Errorf("%v: %w", err, ErrStorage)
	}

	if err := c.model.Commit(diff); err != nil {
		c.mu.Unlock()
		return layout.Diff{}, err
	}
	c.hub.Broadcast(MsgDiff, DiffPayload{Version: diff.ToVersion, Diff: diff})
	c.mu.Unlock()

	c.logger.Info("layout reverted", "to", toVersion, "version", diff.ToVersion, "session", sessionID)
	return diff, nil
}

// PushCommand validates a device command and forwards it to the
// bridge. Command failures are per-device and never touch the layout.
func (c *Coordinator) PushCommand(ctx context.Context, cmd DeviceCommandPayload) error {
	if c.bridge == nil {
		return ErrNoBridge
	}

	c.mu.Lock()
	dev := c.model.Snapshot().Device(cmd.DeviceID)
	c.mu.Unlock()
	if dev == nil {
		return fmt.Errorf("device %s: %w", cmd.DeviceID, layout.ErrUnknownEntity)
	}
	if err := layout.ValidateCommand(dev.Kind, cmd.Command, cmd.Data); err != nil {
		return err
	}

	if err := c.bridge.PushCommand(ctx, dev.EntityID, cmd.Command, cmd.Data); err != nil {
		return fmt.Errorf("pushing %s to %s: %w", cmd.Command, dev.EntityID, err)
	}
	return nil
}

// HandleBridgeState ingests a state report from the device bridge,
// updates the live overlay, and broadcasts the change. Reports for
// entities not placed in the layout are dropped.
func (c *Coordinator) HandleBridgeState(entityID string, state layout.DeviceState) {
	c.mu.Lock()
	dev := c.model.DeviceByEntityID(entityID)
	if dev == nil {
		c.mu.Unlock()
		c.logger.Debug("state report for unplaced entity", "entity_id", entityID)
		return
	}
	deviceID := dev.ID
	kind := string(dev.Kind)
	if err := c.model.SetDeviceState(deviceID, state); err != nil {
		c.mu.Unlock()
		c.logger.Warn("rejected bridge state", "device", deviceID, "error", err)
		return
	}
	c.mu.Unlock()

	if c.telemetry != nil {
		for field, v := range state {
			if f, ok := numericValue(v); ok {
				c.telemetry.WriteDeviceMetric(deviceID, kind, field, f)
			}
		}
	}

	c.hub.Broadcast(MsgDeviceStateUpdate, DeviceStateUpdatePayload{DeviceID: deviceID, State: state})
}

// numericValue coerces a state field to float64 for telemetry. JSON
// decoding produces float64; booleans map to 0/1.
func numericValue(v any) (float64, bool) {
	switch x := v.(type) {
	case float64:
		return x, true
	case int:
		return float64(x), true
	case bool:
		if x {
			return 1, true
		}
		return 0, true
	default:
		return 0, false
	}
}

// Resync replaces the in-memory layout with the store's latest stored
// state. Called on startup and after a storage divergence.
func (c *Coordinator) Resync(ctx context.Context) error {
	latest, err := c.store.Latest(ctx)
	if err != nil {
		return err
	}
	l, err := c.store.Get(ctx, latest)
	if err != nil {
		if errors.Is(err, history.ErrVersionNotFound) {
			return fmt.Errorf("latest version %d unreadable: %w", latest, err)
		}
		return err
	}

	c.mu.Lock()
	c.model.Reset(l)
	c.mu.Unlock()
	c.logger.Info("layout loaded", "version", latest)
	return nil
}
