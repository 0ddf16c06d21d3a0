// Copyright ©️ Ant Group. All rights reserved.
// SPDX-License-Identifier: Apache-2.0

package backend

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync/atomic"

	"github.com/antgroup/tide/modules/plumbing"
	"github.com/antgroup/tide/modules/streamio"
	"github.com/antgroup/tide/modules/tide/object"
	"github.com/dgraph-io/ristretto/v2"
)

var (
	ErrDatabaseClosed = errors.New("database is closed")
)

const (
	defaultCacheNumCounters = 1 << 20
	defaultCacheMaxCost     = 64 << 20 // decoded object bytes
)

// Database is a content-addressed object store. Objects live zstd
// compressed under <root>/objects/aa/<hex62>; decoded objects are kept in a
// ristretto LRU so repeated walks do not re-read the same commits and
// trees.
type Database struct {
	root string
	lru  *ristretto.Cache[string, any]
	// closed is a uint32 managed by sync/atomic's <X>Uint32 methods. It
	// yields a value of 0 if the *Database it is stored upon is open,
	// and a value of 1 if it is closed.
	closed    uint32
	enableLRU bool
}

type Option func(*Database)

// WithCacheDisabled turns the decoded-object LRU off; every read hits the
// filesystem.
func WithCacheDisabled() Option {
	return func(d *Database) {
		d.enableLRU = false
	}
}

func NewDatabase(root string, opts ...Option) (*Database, error) {
	d := &Database{
		root:      root,
		enableLRU: true,
	}
	for _, o := range opts {
		o(d)
	}
	if err := os.MkdirAll(filepath.Join(root, "objects"), 0755); err != nil {
		return nil, err
	}
	if d.enableLRU {
		lru, err := ristretto.NewCache(&ristretto.Config[string, any]{
			NumCounters: defaultCacheNumCounters,
			MaxCost:     defaultCacheMaxCost,
			BufferItems: 64,
		})
		if err != nil {
			return nil, err
		}
		d.lru = lru
	}
	return d, nil
}

func (d *Database) Root() string {
	return d.root
}

func (d *Database) Close() error {
	if d == nil {
		return nil
	}
	if !atomic.CompareAndSwapUint32(&d.closed, 0, 1) {
		return ErrDatabaseClosed
	}
	if d.lru != nil {
		d.lru.Close()
	}
	return nil
}

func (d *Database) objectPath(oid plumbing.Hash) string {
	hex := oid.String()
	return filepath.Join(d.root, "objects", hex[0:2], hex[2:])
}

// WriteEncoded hashes the encoded payload and stores it, returning the
// object id. Writing an object that already exists is a no-op.
func (d *Database) WriteEncoded(payload []byte) (plumbing.Hash, error) {
	if atomic.LoadUint32(&d.closed) != 0 {
		return plumbing.ZeroHash, ErrDatabaseClosed
	}
	hasher := plumbing.NewHasher()
	_, _ = hasher.Write(payload)
	oid := hasher.Sum()

	p := d.objectPath(oid)
	if _, err := os.Stat(p); err == nil {
		return oid, nil
	}
	if err := os.MkdirAll(filepath.Dir(p), 0755); err != nil {
		return plumbing.ZeroHash, err
	}
	// Write through a temp file so a torn write never leaves a corrupt
	// object at its final path.
	tmp, err := os.CreateTemp(filepath.Dir(p), "incoming-*")
	if err != nil {
		return plumbing.ZeroHash, err
	}
	defer os.Remove(tmp.Name())
	zw := streamio.GetZstdWriter(tmp)
	_, werr := zw.Write(payload)
	streamio.PutZstdWriter(zw)
	if cerr := tmp.Close(); werr == nil {
		werr = cerr
	}
	if werr != nil {
		return plumbing.ZeroHash, werr
	}
	if err := os.Rename(tmp.Name(), p); err != nil {
		return plumbing.ZeroHash, err
	}
	return oid, nil
}

type encoder interface {
	Encode(w io.Writer) error
}

func (d *Database) writeObject(e encoder) (plumbing.Hash, error) {
	var buf bytes.Buffer
	if err := e.Encode(&buf); err != nil {
		return plumbing.ZeroHash, err
	}
	return d.WriteEncoded(buf.Bytes())
}

func (d *Database) WriteCommit(c *object.Commit) (plumbing.Hash, error) {
	oid, err := d.writeObject(c)
	if err != nil {
		return plumbing.ZeroHash, err
	}
	c.Hash = oid
	return oid, nil
}

func (d *Database) WriteTree(t *object.Tree) (plumbing.Hash, error) {
	t.Sort()
	oid, err := d.writeObject(t)
	if err != nil {
		return plumbing.ZeroHash, err
	}
	t.Hash = oid
	return oid, nil
}

func (d *Database) WriteBlob(b *object.Blob) (plumbing.Hash, error) {
	oid, err := d.writeObject(b)
	if err != nil {
		return plumbing.ZeroHash, err
	}
	b.Hash = oid
	return oid, nil
}

func (d *Database) WriteTag(t *object.Tag) (plumbing.Hash, error) {
	oid, err := d.writeObject(t)
	if err != nil {
		return plumbing.ZeroHash, err
	}
	t.Hash = oid
	return oid, nil
}

// readEncoded loads and decompresses an object's payload.
func (d *Database) readEncoded(oid plumbing.Hash) ([]byte, error) {
	fd, err := os.Open(d.objectPath(oid))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, plumbing.NoSuchObject(oid)
		}
		return nil, err
	}
	defer fd.Close()
	zr, err := streamio.GetZstdReader(fd)
	if err != nil {
		return nil, err
	}
	defer streamio.PutZstdReader(zr)
	return io.ReadAll(zr)
}

func (d *Database) cacheGet(oid plumbing.Hash) (any, bool) {
	if d.lru == nil {
		return nil, false
	}
	return d.lru.Get(oid.String())
}

func (d *Database) cacheSet(oid plumbing.Hash, v any, cost int64) {
	if d.lru == nil {
		return
	}
	_ = d.lru.Set(oid.String(), v, cost)
}

// Commit implements object.Backend.
func (d *Database) Commit(ctx context.Context, oid plumbing.Hash) (*object.Commit, error) {
	if atomic.LoadUint32(&d.closed) != 0 {
		return nil, ErrDatabaseClosed
	}
	if v, ok := d.cacheGet(oid); ok {
		if cc, ok := v.(*object.Commit); ok {
			return cc, nil
		}
		return nil, plumbing.NoSuchObject(oid)
	}
	payload, err := d.readEncoded(oid)
	if err != nil {
		return nil, err
	}
	cc, err := object.DecodeCommit(d, oid, bytes.NewReader(payload))
	if err != nil {
		if err == object.ErrUnsupportedObject {
			return nil, plumbing.NoSuchObject(oid)
		}
		return nil, fmt.Errorf("decode commit %s: %w", oid.Prefix(), err)
	}
	d.cacheSet(oid, cc, int64(len(payload)))
	return cc, nil
}

// Tree implements object.Backend.
func (d *Database) Tree(ctx context.Context, oid plumbing.Hash) (*object.Tree, error) {
	if atomic.LoadUint32(&d.closed) != 0 {
		return nil, ErrDatabaseClosed
	}
	if v, ok := d.cacheGet(oid); ok {
		if t, ok := v.(*object.Tree); ok {
			return t, nil
		}
		return nil, plumbing.NoSuchObject(oid)
	}
	payload, err := d.readEncoded(oid)
	if err != nil {
		return nil, err
	}
	t, err := object.DecodeTree(d, oid, bytes.NewReader(payload))
	if err != nil {
		if err == object.ErrUnsupportedObject {
			return nil, plumbing.NoSuchObject(oid)
		}
		return nil, fmt.Errorf("decode tree %s: %w", oid.Prefix(), err)
	}
	d.cacheSet(oid, t, int64(len(payload)))
	return t, nil
}

// Blob implements object.Backend. Blob payloads are not cached; content is
// usually read once per diff.
func (d *Database) Blob(ctx context.Context, oid plumbing.Hash) (*object.Blob, error) {
	if atomic.LoadUint32(&d.closed) != 0 {
		return nil, ErrDatabaseClosed
	}
	payload, err := d.readEncoded(oid)
	if err != nil {
		return nil, err
	}
	b, err := object.DecodeBlob(oid, bytes.NewReader(payload))
	if err != nil {
		if err == object.ErrUnsupportedObject {
			return nil, plumbing.NoSuchObject(oid)
		}
		return nil, fmt.Errorf("decode blob %s: %w", oid.Prefix(), err)
	}
	return b, nil
}

// Tag implements object.Backend.
func (d *Database) Tag(ctx context.Context, oid plumbing.Hash) (*object.Tag, error) {
	if atomic.LoadUint32(&d.closed) != 0 {
		return nil, ErrDatabaseClosed
	}
	payload, err := d.readEncoded(oid)
	if err != nil {
		return nil, err
	}
	t, err := object.DecodeTag(oid, bytes.NewReader(payload))
	if err != nil {
		if err == object.ErrUnsupportedObject {
			return nil, plumbing.NoSuchObject(oid)
		}
		return nil, fmt.Errorf("decode tag %s: %w", oid.Prefix(), err)
	}
	return t, nil
}

var (
	_ object.Backend = (*Database)(nil)
)
