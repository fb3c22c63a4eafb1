package store

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/cockroachdb/pebble"

	"reportchain/pkg/logger"
	"reportchain/pkg/models"
	"reportchain/pkg/store/keys"
)

// PebbleOptions tunes the on-disk store.
type PebbleOptions struct {
	DisableWAL bool
	CacheSize  int64
	ReadOnly   bool
}

// Pebble persists conversations as r:<report>:a:<action> -> JSON records and
// keeps a per-report write version under r:<report>:meta.
type Pebble struct {
	db          *pebble.DB
	path        string
	walDisabled bool
	readOnly    bool
	hub         hub

	locksMu     sync.Mutex
	reportLocks map[string]*sync.Mutex
}

// OpenPebble opens or creates the store at path.
func OpenPebble(path string, o PebbleOptions) (*Pebble, error) {
	opts := &pebble.Options{
		DisableWAL: o.DisableWAL,
		ReadOnly:   o.ReadOnly,
	}
	if o.CacheSize > 0 {
		cache := pebble.NewCache(o.CacheSize)
		defer cache.Unref()
		opts.Cache = cache
	}
	if o.DisableWAL {
		logger.Warn("durability_disabled", "durability", "pebble WAL disabled")
	}

	db, err := pebble.Open(path, opts)
	if err != nil {
		logger.Error("pebble_open_failed", "path", path, "error", err)
		return nil, err
	}
	logger.Info("store_opened", "path", path, "read_only", o.ReadOnly)
	return &Pebble{
		db:          db,
		path:        path,
		walDisabled: o.DisableWAL,
		readOnly:    o.ReadOnly,
		reportLocks: make(map[string]*sync.Mutex),
	}, nil
}

// Close flushes and closes the DB. It is safe to call more than once.
func (p *Pebble) Close() error {
	if p.db == nil {
		return nil
	}
	if !p.readOnly {
		if err := p.db.Flush(); err != nil {
			logger.Error("pebble_flush_failed", "error", err)
		}
	}
	if err := p.db.Close(); err != nil {
		return err
	}
	p.db = nil
	return nil
}

// Ready reports whether the DB is open.
func (p *Pebble) Ready() bool {
	return p.db != nil
}

// Path returns the directory the store was opened at.
func (p *Pebble) Path() string {
	return p.path
}

// IsNotFound reports whether err is pebble's missing-key error.
func IsNotFound(err error) bool {
	return errors.Is(err, pebble.ErrNotFound)
}

// chooses sync/no-sync WriteOptions, always disables sync if WAL disabled
func (p *Pebble) writeOpt(requestSync bool) *pebble.WriteOptions {
	if requestSync && !p.walDisabled {
		return pebble.Sync
	}
	return pebble.NoSync
}

// returns mutex for given report (creates if needed)
func (p *Pebble) reportLock(reportID string) *sync.Mutex {
	p.locksMu.Lock()
	defer p.locksMu.Unlock()
	if l, ok := p.reportLocks[reportID]; ok {
		return l
	}
	l := &sync.Mutex{}
	p.reportLocks[reportID] = l
	return l
}

func (p *Pebble) GetActions(ctx context.Context, reportID string) (map[string]models.ReportAction, error) {
	if p.db == nil {
		return nil, ErrNotOpen
	}
	prefix, err := keys.GenActionPrefix(reportID)
	if err != nil {
		return nil, err
	}
	return p.scanActions(ctx, []byte(prefix))
}

func (p *Pebble) scanActions(ctx context.Context, prefix []byte) (map[string]models.ReportAction, error) {
	iter, err := p.db.NewIter(&pebble.IterOptions{
		LowerBound: prefix,
		UpperBound: keys.PrefixEnd(prefix),
	})
	if err != nil {
		return nil, err
	}
	defer iter.Close()

	out := make(map[string]models.ReportAction)
	for iter.First(); iter.Valid(); iter.Next() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		parts, perr := keys.ParseActionKey(string(iter.Key()))
		if perr != nil {
			logger.Warn("skip_malformed_key", "key", string(iter.Key()), "error", perr)
			continue
		}
		var a models.ReportAction
		if err := json.Unmarshal(iter.Value(), &a); err != nil {
			logger.Warn("skip_malformed_action", "key", string(iter.Key()), "error", err)
			continue
		}
		out[parts.ActionID] = a
	}
	return out, iter.Error()
}

// Current reads the actions and version under the report lock so the pair is
// consistent with what subscribers are sent.
func (p *Pebble) Current(ctx context.Context, reportID string) (Snapshot, error) {
	if p.db == nil {
		return Snapshot{}, ErrNotOpen
	}
	metaKey, err := keys.GenReportMetaKey(reportID)
	if err != nil {
		return Snapshot{}, err
	}
	lock := p.reportLock(reportID)
	lock.Lock()
	defer lock.Unlock()

	version, err := p.readVersion(metaKey)
	if err != nil {
		return Snapshot{}, err
	}
	actions, err := p.GetActions(ctx, reportID)
	if err != nil {
		return Snapshot{}, err
	}
	return Snapshot{ReportID: reportID, Version: version, Actions: actions}, nil
}

func (p *Pebble) Subscribe(reportID string, fn func(Snapshot)) func() {
	return p.hub.subscribe(reportID, fn)
}

// Conversations lists report ids that hold at least one action.
func (p *Pebble) Conversations(ctx context.Context) ([]string, error) {
	if p.db == nil {
		return nil, ErrNotOpen
	}
	prefix := []byte(keys.ReportPrefix)
	iter, err := p.db.NewIter(&pebble.IterOptions{
		LowerBound: prefix,
		UpperBound: keys.PrefixEnd(prefix),
	})
	if err != nil {
		return nil, err
	}
	defer iter.Close()

	var out []string
	for valid := iter.First(); valid; {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		parts, perr := keys.ParseActionKey(string(iter.Key()))
		if perr != nil {
			valid = iter.Next()
			continue
		}
		out = append(out, parts.ReportID)
		// jump past every action of this report
		next := keys.PrefixEnd([]byte(fmt.Sprintf(keys.ActionPrefix, parts.ReportID)))
		valid = iter.SeekGE(next)
	}
	return out, iter.Error()
}

// Version returns the number of writes applied to the conversation.
func (p *Pebble) Version(reportID string) (uint64, error) {
	if p.db == nil {
		return 0, ErrNotOpen
	}
	metaKey, err := keys.GenReportMetaKey(reportID)
	if err != nil {
		return 0, err
	}
	return p.readVersion(metaKey)
}

func (p *Pebble) readVersion(metaKey string) (uint64, error) {
	v, closer, err := p.db.Get([]byte(metaKey))
	if err != nil {
		if IsNotFound(err) {
			return 0, nil
		}
		return 0, err
	}
	defer closer.Close()
	n, err := strconv.ParseUint(string(v), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("corrupt version at %s: %w", metaKey, err)
	}
	return n, nil
}

// PutActions writes actions in one batch and bumps the report version.
func (p *Pebble) PutActions(ctx context.Context, reportID string, actions ...models.ReportAction) error {
	if p.db == nil {
		return ErrNotOpen
	}
	if len(actions) == 0 {
		return keys.ValidateID(reportID)
	}
	return p.mutate(ctx, reportID, func(b *pebble.Batch) error {
		for _, a := range actions {
			k, err := keys.GenActionKey(reportID, a.ReportActionID)
			if err != nil {
				return err
			}
			a.ReportID = reportID
			data, err := json.Marshal(a)
			if err != nil {
				return fmt.Errorf("failed to marshal action: %w", err)
			}
			if err := b.Set([]byte(k), data, nil); err != nil {
				return err
			}
		}
		return nil
	})
}

// RemoveAction drops one action. Removing a missing action is not an error.
func (p *Pebble) RemoveAction(ctx context.Context, reportID, actionID string) error {
	if p.db == nil {
		return ErrNotOpen
	}
	k, err := keys.GenActionKey(reportID, actionID)
	if err != nil {
		return err
	}
	_, closer, err := p.db.Get([]byte(k))
	if err != nil {
		if IsNotFound(err) {
			return nil
		}
		return err
	}
	closer.Close()
	return p.mutate(ctx, reportID, func(b *pebble.Batch) error {
		return b.Delete([]byte(k), nil)
	})
}

func (p *Pebble) mutate(ctx context.Context, reportID string, fill func(*pebble.Batch) error) error {
	snap, err := p.applyLocked(ctx, reportID, fill)
	if err != nil {
		return err
	}
	p.hub.publish(snap)
	return nil
}

// applyLocked commits one batch under the report lock and reads back the
// resulting snapshot before releasing it, so versions and contents agree.
func (p *Pebble) applyLocked(ctx context.Context, reportID string, fill func(*pebble.Batch) error) (Snapshot, error) {
	metaKey, err := keys.GenReportMetaKey(reportID)
	if err != nil {
		return Snapshot{}, err
	}

	lock := p.reportLock(reportID)
	lock.Lock()
	defer lock.Unlock()

	version, err := p.readVersion(metaKey)
	if err != nil {
		return Snapshot{}, err
	}
	version++

	b := p.db.NewBatch()
	defer b.Close()
	if err := fill(b); err != nil {
		return Snapshot{}, err
	}
	if err := b.Set([]byte(metaKey), []byte(strconv.FormatUint(version, 10)), nil); err != nil {
		return Snapshot{}, err
	}
	if err := p.db.Apply(b, p.writeOpt(true)); err != nil {
		logger.Error("pebble_apply_batch_failed", "report_id", reportID, "error", err)
		return Snapshot{}, err
	}

	// the batch is committed; the read-back must not fail on the caller's ctx
	actions, err := p.GetActions(context.WithoutCancel(ctx), reportID)
	if err != nil {
		logger.Error("pebble_read_back_failed", "report_id", reportID, "error", err)
		return Snapshot{}, err
	}
	return Snapshot{ReportID: reportID, Version: version, Actions: actions}, nil
}

// ForceSync writes a marker with fsync so earlier NoSync writes are durable.
func (p *Pebble) ForceSync() error {
	if p.db == nil {
		return ErrNotOpen
	}
	if p.walDisabled {
		logger.Debug("pebble_force_sync_noop_wal_disabled")
		return nil
	}
	val := []byte(time.Now().UTC().Format(time.RFC3339Nano))
	if err := p.db.Set([]byte(keys.SyncMarkerKey), val, pebble.Sync); err != nil {
		logger.Error("pebble_force_sync_failed", "err", err)
		return err
	}
	return nil
}

// KeyCount returns the number of keys under prefix; the CLI uses it for
// summaries.
func (p *Pebble) KeyCount(prefix string) (int, error) {
	if p.db == nil {
		return 0, ErrNotOpen
	}
	lower := []byte(prefix)
	iter, err := p.db.NewIter(&pebble.IterOptions{LowerBound: lower, UpperBound: keys.PrefixEnd(lower)})
	if err != nil {
		return 0, err
	}
	defer iter.Close()
	n := 0
	for iter.First(); iter.Valid(); iter.Next() {
		if bytes.HasPrefix(iter.Key(), lower) && !strings.HasSuffix(string(iter.Key()), ":meta") {
			n++
		}
	}
	return n, iter.Error()
}
