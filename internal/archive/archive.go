// Package archive keeps point-in-time copies of the registries in a blob
// store and restores them.
package archive

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"housingcore/internal/blob"
	"housingcore/internal/infra/persistence/memory"
)

const (
	// DefaultPrefix is the key prefix under which snapshots are written.
	DefaultPrefix  = "snapshots/"
	formatVersion  = 1
	keyLayout      = "20060102T150405.000000000Z"
	contentType    = "application/json"
	maxSameInstant = 100
)

// ErrNoSnapshots is returned by Latest and Restore when nothing is archived.
var ErrNoSnapshots = errors.New("no archived snapshots")

// document is the archived form: the bucket payloads used by the SQL stores,
// wrapped with a format version.
type document struct {
	Version int                        `json:"version"`
	TakenAt time.Time                  `json:"taken_at"`
	Buckets map[string]json.RawMessage `json:"buckets"`
}

// Archiver writes snapshots under a key prefix of a blob store. Keys embed
// the capture time so that lexical order is chronological.
type Archiver struct {
	store  blob.Store
	prefix string
	now    func() time.Time
	logger *slog.Logger
}

// Option configures an Archiver.
type Option func(*Archiver)

// WithPrefix overrides DefaultPrefix.
func WithPrefix(prefix string) Option {
	return func(a *Archiver) {
		if prefix = strings.Trim(prefix, "/"); prefix != "" {
			a.prefix = prefix + "/"
		}
	}
}

// WithClock overrides the capture time source.
func WithClock(now func() time.Time) Option {
	return func(a *Archiver) {
		if now != nil {
			a.now = now
		}
	}
}

// WithLogger sets the logger used for archive events.
func WithLogger(logger *slog.Logger) Option {
	return func(a *Archiver) {
		if logger != nil {
			a.logger = logger
		}
	}
}

// New builds an Archiver over store.
func New(store blob.Store, opts ...Option) *Archiver {
	a := &Archiver{
		store:  store,
		prefix: DefaultPrefix,
		now:    func() time.Time { return time.Now().UTC() },
		logger: slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Save archives snapshot under a new key and returns the stored blob.
func (a *Archiver) Save(ctx context.Context, snapshot memory.Snapshot) (blob.Info, error) {
	buckets, err := memory.EncodeBuckets(snapshot)
	if err != nil {
		return blob.Info{}, err
	}
	takenAt := a.now().UTC()
	doc := document{Version: formatVersion, TakenAt: takenAt, Buckets: make(map[string]json.RawMessage, len(buckets))}
	for name, payload := range buckets {
		doc.Buckets[name] = payload
	}
	payload, err := json.Marshal(doc)
	if err != nil {
		return blob.Info{}, fmt.Errorf("encode snapshot: %w", err)
	}
	opts := blob.PutOptions{
		ContentType: contentType,
		Metadata: map[string]string{
			"persons":  strconv.Itoa(len(snapshot.Persons)),
			"projects": strconv.Itoa(len(snapshot.Projects)),
			"requests": strconv.Itoa(len(snapshot.Requests)),
		},
	}
	base := a.prefix + takenAt.Format(keyLayout)
	// Captures sharing a timestamp take the next sequence suffix.
	for n := 0; n < maxSameInstant; n++ {
		key := fmt.Sprintf("%s-%02d.json", base, n)
		info, err := a.store.Put(ctx, key, bytes.NewReader(payload), opts)
		if err == nil {
			a.logger.Info("snapshot archived", "key", info.Key, "size", info.Size, "driver", a.store.Driver())
			return info, nil
		}
		if !errors.Is(err, blob.ErrExists) {
			return blob.Info{}, fmt.Errorf("archive snapshot: %w", err)
		}
	}
	return blob.Info{}, fmt.Errorf("archive snapshot: %w: %s", blob.ErrExists, base)
}

// List returns archived snapshots, oldest first.
func (a *Archiver) List(ctx context.Context) ([]blob.Info, error) {
	infos, err := a.store.List(ctx, a.prefix)
	if err != nil {
		return nil, fmt.Errorf("list snapshots: %w", err)
	}
	out := infos[:0]
	for _, info := range infos {
		if strings.HasSuffix(info.Key, ".json") {
			out = append(out, info)
		}
	}
	return out, nil
}

// Latest returns the most recent archived snapshot.
func (a *Archiver) Latest(ctx context.Context) (blob.Info, error) {
	infos, err := a.List(ctx)
	if err != nil {
		return blob.Info{}, err
	}
	if len(infos) == 0 {
		return blob.Info{}, ErrNoSnapshots
	}
	return infos[len(infos)-1], nil
}

// Restore reads the snapshot stored at key, or the latest one when key is
// empty.
func (a *Archiver) Restore(ctx context.Context, key string) (memory.Snapshot, blob.Info, error) {
	if key == "" {
		latest, err := a.Latest(ctx)
		if err != nil {
			return memory.Snapshot{}, blob.Info{}, err
		}
		key = latest.Key
	}
	info, rc, err := a.store.Get(ctx, key)
	if err != nil {
		return memory.Snapshot{}, blob.Info{}, fmt.Errorf("read snapshot %s: %w", key, err)
	}
	defer func() { _ = rc.Close() }()
	data, err := io.ReadAll(rc)
	if err != nil {
		return memory.Snapshot{}, blob.Info{}, fmt.Errorf("read snapshot %s: %w", key, err)
	}
	var doc document
	if err := json.Unmarshal(data, &doc); err != nil {
		return memory.Snapshot{}, blob.Info{}, fmt.Errorf("decode snapshot %s: %w", key, err)
	}
	if doc.Version != formatVersion {
		return memory.Snapshot{}, blob.Info{}, fmt.Errorf("snapshot %s has unsupported version %d", key, doc.Version)
	}
	var snapshot memory.Snapshot
	for _, bucket := range memory.Buckets {
		if err := memory.DecodeBucket(&snapshot, bucket, doc.Buckets[bucket]); err != nil {
			return memory.Snapshot{}, blob.Info{}, fmt.Errorf("snapshot %s: %w", key, err)
		}
	}
	a.logger.Info("snapshot restored", "key", key, "taken_at", doc.TakenAt)
	return snapshot, info, nil
}

// Prune deletes all but the newest keep snapshots and reports how many were
// removed.
func (a *Archiver) Prune(ctx context.Context, keep int) (int, error) {
	if keep < 0 {
		keep = 0
	}
	infos, err := a.List(ctx)
	if err != nil {
		return 0, err
	}
	removed := 0
	for _, info := range infos[:max(len(infos)-keep, 0)] {
		ok, err := a.store.Delete(ctx, info.Key)
		if err != nil {
			return removed, fmt.Errorf("prune %s: %w", info.Key, err)
		}
		if ok {
			removed++
		}
	}
	return removed, nil
}
