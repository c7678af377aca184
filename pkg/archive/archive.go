// Package archive records attribute indices to BadgerDB so a session can be
// replayed later. It is a recording facility, not a durable store.
package archive

import (
	"bytes"
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/dgraph-io/badger/v4"

	"github.com/vjranagit/chronoscope/internal/logger"
	"github.com/vjranagit/chronoscope/pkg/registry"
	"github.com/vjranagit/chronoscope/pkg/temporal"
	"github.com/vjranagit/chronoscope/pkg/types"
)

// ErrNotFound is returned when no blocks are stored for an attribute
var ErrNotFound = errors.New("attribute not archived")

var (
	blockPrefix = []byte("attr/")
	metaPrefix  = []byte("meta/")
)

// Config holds archive configuration
type Config struct {
	Path             string
	CompressionLevel int
	InMemory         bool
	BlockSpan        time.Duration
}

// DefaultConfig returns default archive configuration
func DefaultConfig() *Config {
	return &Config{
		Path:             "./data",
		CompressionLevel: 3,
		BlockSpan:        time.Hour,
	}
}

// Archive stores compressed sample blocks keyed by attribute and block start
type Archive struct {
	cfg   *Config
	db    *badger.DB
	codec *Codec
	mu    sync.RWMutex
}

type blockPayload struct {
	Count            int
	CompressedTS     []byte
	CompressedValues []byte
}

// Open opens (or creates) the archive described by cfg
func Open(cfg *Config) (*Archive, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if cfg.BlockSpan <= 0 {
		cfg.BlockSpan = time.Hour
	}

	opts := badger.DefaultOptions(filepath.Join(cfg.Path, "badger"))
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	}
	opts.Logger = nil

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open BadgerDB: %w", err)
	}

	codec, err := NewCodec(cfg.CompressionLevel)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create codec: %w", err)
	}

	return &Archive{
		cfg:   cfg,
		db:    db,
		codec: codec,
	}, nil
}

// Save replaces everything stored for id with the contents of idx
func (a *Archive) Save(ctx context.Context, id registry.AttributeID, idx *temporal.Index[float64]) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	stale, err := a.blockKeys(id)
	if err != nil {
		return fmt.Errorf("failed to list blocks for %s: %w", id, err)
	}

	wb := a.db.NewWriteBatch()
	defer wb.Cancel()

	// stale blocks are deleted in the same batch; rewritten keys are set after
	for _, key := range stale {
		if err := wb.Delete(key); err != nil {
			return fmt.Errorf("failed to drop block for %s: %w", id, err)
		}
	}

	samples := idx.Snapshot()

	span := a.cfg.BlockSpan.Milliseconds()
	for start := 0; start < len(samples); {
		if err := ctx.Err(); err != nil {
			return err
		}

		blockStart := blockOf(samples[start].Timestamp, span)
		end := start
		for end < len(samples) && blockOf(samples[end].Timestamp, span) == blockStart {
			end++
		}

		payload, err := a.encodeBlock(samples[start:end])
		if err != nil {
			return fmt.Errorf("failed to encode block %d: %w", blockStart, err)
		}
		if err := wb.Set(blockKey(id, blockStart), payload); err != nil {
			return fmt.Errorf("failed to write block %d: %w", blockStart, err)
		}

		start = end
	}

	if err := wb.Flush(); err != nil {
		return fmt.Errorf("failed to flush blocks for %s: %w", id, err)
	}

	logger.Debug("archived attribute", "id", id.String(), "samples", len(samples))
	return nil
}

// SaveEntry stores the entry's metadata along with its samples
func (a *Archive) SaveEntry(ctx context.Context, e *registry.Entry) error {
	meta, err := json.Marshal(e.Attribute)
	if err != nil {
		return fmt.Errorf("failed to marshal attribute: %w", err)
	}

	err = a.db.Update(func(txn *badger.Txn) error {
		return txn.Set(metaKey(e.ID), meta)
	})
	if err != nil {
		return fmt.Errorf("failed to write metadata for %s: %w", e.ID, err)
	}

	return a.Save(ctx, e.ID, e.Index)
}

func (a *Archive) blockKeys(id registry.AttributeID) ([][]byte, error) {
	var keys [][]byte
	err := a.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = seriesPrefix(id)
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			keys = append(keys, it.Item().KeyCopy(nil))
		}
		return nil
	})
	return keys, err
}

// Load pushes every stored sample of id into the index, oldest first
func (a *Archive) Load(ctx context.Context, id registry.AttributeID, into *temporal.Index[float64]) error {
	a.mu.RLock()
	defer a.mu.RUnlock()

	found := false
	err := a.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = seriesPrefix(id)
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			found = true

			var samples []types.Sample[float64]
			err := it.Item().Value(func(val []byte) error {
				var err error
				samples, err = a.decodeBlock(val)
				return err
			})
			if err != nil {
				return err
			}

			for _, s := range samples {
				if err := into.Push(s.Timestamp, s.Value); err != nil {
					return err
				}
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to load %s: %w", id, err)
	}
	if !found {
		return fmt.Errorf("attribute %s: %w", id, ErrNotFound)
	}
	return nil
}

// Attributes returns the IDs that have stored blocks, in key order
func (a *Archive) Attributes(ctx context.Context) ([]registry.AttributeID, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()

	var ids []registry.AttributeID
	err := a.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = blockPrefix
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			key := it.Item().Key()
			id := registry.AttributeID(binary.BigEndian.Uint64(key[len(blockPrefix):]))
			if len(ids) == 0 || ids[len(ids)-1] != id {
				ids = append(ids, id)
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list attributes: %w", err)
	}
	return ids, nil
}

// Restore registers every archived attribute that has metadata and loads
// its samples. It returns the restored entries.
func (a *Archive) Restore(ctx context.Context, reg *registry.Registry) ([]*registry.Entry, error) {
	var attrs []types.Attribute
	err := a.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = metaPrefix
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			var attr types.Attribute
			err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &attr)
			})
			if err != nil {
				return err
			}
			attrs = append(attrs, attr)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to read metadata: %w", err)
	}

	entries := make([]*registry.Entry, 0, len(attrs))
	for _, attr := range attrs {
		e, err := reg.Register(attr)
		if err != nil {
			return nil, err
		}
		if err := a.Load(ctx, e.ID, e.Index); err != nil {
			if errors.Is(err, ErrNotFound) {
				continue
			}
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, nil
}

// Close closes the database and releases the codec
func (a *Archive) Close() error {
	a.codec.Close()
	if a.db != nil {
		return a.db.Close()
	}
	return nil
}

func (a *Archive) encodeBlock(samples []types.Sample[float64]) ([]byte, error) {
	timestamps := make([]int64, len(samples))
	values := make([]float64, len(samples))
	for i, s := range samples {
		timestamps[i] = s.Timestamp
		values[i] = s.Value
	}

	return json.Marshal(&blockPayload{
		Count:            len(samples),
		CompressedTS:     a.codec.EncodeTimestamps(timestamps),
		CompressedValues: a.codec.EncodeValues(values),
	})
}

func (a *Archive) decodeBlock(data []byte) ([]types.Sample[float64], error) {
	var payload blockPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, fmt.Errorf("failed to unmarshal payload: %w", err)
	}

	timestamps, err := a.codec.DecodeTimestamps(payload.CompressedTS, payload.Count)
	if err != nil {
		return nil, fmt.Errorf("failed to decompress timestamps: %w", err)
	}

	values, err := a.codec.DecodeValues(payload.CompressedValues, payload.Count)
	if err != nil {
		return nil, fmt.Errorf("failed to decompress values: %w", err)
	}

	samples := make([]types.Sample[float64], payload.Count)
	for i := range samples {
		samples[i] = types.Sample[float64]{Timestamp: timestamps[i], Value: values[i]}
	}
	return samples, nil
}

// blockOf floors ts to the start of its block
func blockOf(ts, span int64) int64 {
	q := ts / span
	if ts%span != 0 && ts < 0 {
		q--
	}
	return q * span
}

func seriesPrefix(id registry.AttributeID) []byte {
	buf := new(bytes.Buffer)
	buf.Write(blockPrefix)
	binary.Write(buf, binary.BigEndian, uint64(id))
	buf.WriteByte('/')
	return buf.Bytes()
}

// blockKey flips the sign bit of the block start so negative instants sort
// before positive ones
func blockKey(id registry.AttributeID, blockStart int64) []byte {
	buf := bytes.NewBuffer(seriesPrefix(id))
	binary.Write(buf, binary.BigEndian, uint64(blockStart)^(1<<63))
	return buf.Bytes()
}

func metaKey(id registry.AttributeID) []byte {
	buf := new(bytes.Buffer)
	buf.Write(metaPrefix)
	binary.Write(buf, binary.BigEndian, uint64(id))
	return buf.Bytes()
}
