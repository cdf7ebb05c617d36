package storage

import (
	"bytes"
	"encoding/gob"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/util"

	"hcext/internal/logging"
)

const (
	metaPrefix  = "m:"
	valuePrefix = "e:"
)

type levelMeta struct {
	Size       int64
	LastAccess int64
}

type levelOp struct {
	key   string
	value []byte
	del   bool
	touch bool
	done  chan error
}

// LevelDB is a persistent Backend on goleveldb. Values live under "e:<key>"
// and access metadata under "m:<key>"; the metadata index is loaded at open
// and drives eviction of the least recently used tenth of the keys whenever
// the total size exceeds maxBytes. All writes go through one writer
// goroutine, so they apply in call order.
type LevelDB struct {
	maxBytes    int64
	overflowLog *logging.RateLimited

	db *leveldb.DB

	mu        sync.Mutex
	index     map[string]levelMeta
	totalSize int64

	sendMu sync.RWMutex
	closed bool
	ops    chan levelOp
	done   chan struct{}
}

// OpenLevelDB opens or creates the database at path. A maxBytes of zero
// means unbounded.
func OpenLevelDB(path string, maxBytes int64, overflowLog *logging.RateLimited) (*LevelDB, error) {
	db, err := leveldb.OpenFile(path, nil)
	if err != nil {
		return nil, fmt.Errorf("open leveldb %s: %w", path, err)
	}
	if overflowLog == nil {
		overflowLog = logging.NewRateLimited(nil, 0)
	}
	d := &LevelDB{
		maxBytes:    maxBytes,
		overflowLog: overflowLog,
		db:          db,
		index:       map[string]levelMeta{},
		ops:         make(chan levelOp, 1024),
		done:        make(chan struct{}),
	}
	if err := d.loadIndex(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("load leveldb index: %w", err)
	}
	go d.writerLoop()
	return d, nil
}

func (d *LevelDB) loadIndex() error {
	it := d.db.NewIterator(util.BytesPrefix([]byte(metaPrefix)), nil)
	defer it.Release()

	var total int64
	idx := map[string]levelMeta{}
	for it.Next() {
		key := string(bytes.TrimPrefix(it.Key(), []byte(metaPrefix)))
		var meta levelMeta
		if err := decodeGob(it.Value(), &meta); err != nil {
			continue
		}
		idx[key] = meta
		total += meta.Size
	}
	if err := it.Error(); err != nil {
		return err
	}
	d.mu.Lock()
	d.index = idx
	d.totalSize = total
	d.mu.Unlock()
	return nil
}

func (d *LevelDB) TotalSize() int64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.totalSize
}

func (d *LevelDB) KeyCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.index)
}

func (d *LevelDB) Get(key string) ([]byte, bool, error) {
	d.sendMu.RLock()
	closed := d.closed
	d.sendMu.RUnlock()
	if closed {
		return nil, false, ErrClosed
	}
	b, err := d.db.Get([]byte(valuePrefix+key), nil)
	if errors.Is(err, leveldb.ErrNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("leveldb get %s: %w", key, err)
	}
	d.mu.Lock()
	meta, exists := d.index[key]
	if exists {
		meta.LastAccess = time.Now().UnixNano()
		d.index[key] = meta
	}
	d.mu.Unlock()
	if exists {
		d.submit(levelOp{key: key, touch: true})
	}
	return b, true, nil
}

func (d *LevelDB) Set(key string, value []byte) error {
	if d.maxBytes > 0 && itemSize(key, value) > d.maxBytes {
		return ErrTooLarge
	}
	return d.wait(levelOp{key: key, value: append([]byte(nil), value...)})
}

func (d *LevelDB) Remove(key string) error {
	return d.wait(levelOp{key: key, del: true})
}

func (d *LevelDB) wait(op levelOp) error {
	op.done = make(chan error, 1)
	if !d.submit(op) {
		return ErrClosed
	}
	return <-op.done
}

func (d *LevelDB) submit(op levelOp) bool {
	d.sendMu.RLock()
	defer d.sendMu.RUnlock()
	if d.closed {
		return false
	}
	d.ops <- op
	return true
}

// Close drains pending writes and closes the database.
func (d *LevelDB) Close() error {
	d.sendMu.Lock()
	if d.closed {
		d.sendMu.Unlock()
		return nil
	}
	d.closed = true
	close(d.ops)
	d.sendMu.Unlock()

	<-d.done
	return d.db.Close()
}

func (d *LevelDB) writerLoop() {
	defer close(d.done)
	for op := range d.ops {
		var err error
		switch {
		case op.del:
			err = d.applyDelete(op.key)
		case op.touch:
			d.applyTouch(op.key)
		default:
			err = d.applyPut(op.key, op.value)
		}
		if op.done != nil {
			op.done <- err
		}
	}
}

func (d *LevelDB) applyPut(key string, value []byte) error {
	size := itemSize(key, value)
	meta := levelMeta{Size: size, LastAccess: time.Now().UnixNano()}
	mb, err := encodeGob(meta)
	if err != nil {
		return err
	}

	batch := new(leveldb.Batch)
	batch.Put([]byte(valuePrefix+key), value)
	batch.Put([]byte(metaPrefix+key), mb)
	if err := d.db.Write(batch, nil); err != nil {
		return fmt.Errorf("leveldb put %s: %w", key, err)
	}

	d.mu.Lock()
	if old, ok := d.index[key]; ok {
		d.totalSize -= old.Size
	}
	d.index[key] = meta
	d.totalSize += size
	total := d.totalSize
	d.mu.Unlock()

	if d.maxBytes > 0 && total > d.maxBytes {
		d.overflowLog.Warn("leveldb storage overflow, evicting", "size", FormatBytes(uint64(total)), "max", FormatBytes(uint64(d.maxBytes)))
		d.evictSome(key)
	}
	return nil
}

func (d *LevelDB) applyTouch(key string) {
	d.mu.Lock()
	meta, ok := d.index[key]
	d.mu.Unlock()
	if !ok {
		return
	}
	mb, err := encodeGob(meta)
	if err != nil {
		return
	}
	_ = d.db.Put([]byte(metaPrefix+key), mb, nil)
}

func (d *LevelDB) applyDelete(key string) error {
	batch := new(leveldb.Batch)
	batch.Delete([]byte(valuePrefix + key))
	batch.Delete([]byte(metaPrefix + key))
	if err := d.db.Write(batch, nil); err != nil {
		return fmt.Errorf("leveldb delete %s: %w", key, err)
	}

	d.mu.Lock()
	if meta, ok := d.index[key]; ok {
		d.totalSize -= meta.Size
		delete(d.index, key)
	}
	d.mu.Unlock()
	return nil
}

// evictSome deletes least recently used keys, a tenth at a time, until the
// total fits. keep is never evicted.
func (d *LevelDB) evictSome(keep string) {
	type keyed struct {
		key string
		m   levelMeta
	}
	d.mu.Lock()
	items := make([]keyed, 0, len(d.index))
	for k, m := range d.index {
		if k != keep {
			items = append(items, keyed{k, m})
		}
	}
	d.mu.Unlock()

	sort.Slice(items, func(i, j int) bool {
		return items[i].m.LastAccess < items[j].m.LastAccess
	})

	step := len(items) / 10
	if step < 1 {
		step = 1
	}
	for i := 0; i < len(items); i++ {
		_ = d.applyDelete(items[i].key)
		if (i+1)%step == 0 && d.TotalSize() <= d.maxBytes {
			return
		}
	}
}

func encodeGob(v any) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func decodeGob(b []byte, v any) error {
	return gob.NewDecoder(bytes.NewReader(b)).Decode(v)
}
