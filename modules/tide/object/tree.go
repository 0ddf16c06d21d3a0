// Copyright 2018 Sourced Technologies, S.L.
// SPDX-License-Identifier: Apache-2.0

package object

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/antgroup/tide/modules/plumbing"
	"github.com/antgroup/tide/modules/plumbing/filemode"
	"github.com/antgroup/tide/modules/streamio"
)

const (
	maxTreeDepth = 1024
)

var (
	ErrMaxTreeDepth = errors.New("maximum tree depth exceeded")
)

type ErrEntryNotFound struct {
	entry string
}

func (e *ErrEntryNotFound) Error() string {
	return fmt.Sprintf("entry '%s' not found", e.entry)
}

func IsErrEntryNotFound(err error) bool {
	if err == nil {
		return false
	}
	_, ok := err.(*ErrEntryNotFound)
	return ok
}

// TreeEntry represents a file
type TreeEntry struct {
	Name string            `json:"name"`
	Mode filemode.FileMode `json:"mode"`
	Hash plumbing.Hash     `json:"hash"`
}

func (e *TreeEntry) Clone() *TreeEntry {
	return &TreeEntry{
		Name: e.Name,
		Mode: e.Mode,
		Hash: e.Hash,
	}
}

// Equal returns whether the receiving and given TreeEntry instances are
// identical in name, filemode, and OID.
func (e *TreeEntry) Equal(other *TreeEntry) bool {
	if (e == nil) != (other == nil) {
		return false
	}

	if e != nil {
		return e.Name == other.Name &&
			bytes.Equal(e.Hash[:], other.Hash[:]) &&
			e.Mode == other.Mode
	}
	return true
}

const (
	sIFMT  = filemode.FileMode(0170000)
	sIFREG = filemode.FileMode(0100000)
	sIFDIR = filemode.FileMode(0040000)
	sIFLNK = filemode.FileMode(0120000)
)

func (e *TreeEntry) Type() ObjectType {
	switch e.Mode & sIFMT {
	case sIFREG:
		return BlobObject
	case sIFDIR:
		return TreeObject
	case sIFLNK:
		return BlobObject
	default:
	}
	return InvalidObject
}

func (e *TreeEntry) IsDir() bool {
	return e.Mode&sIFMT == sIFDIR
}

func (e *TreeEntry) IsRegular() bool {
	return e.Mode&sIFMT == sIFREG
}

// entry with same name
func (e *TreeEntry) Modified(other *TreeEntry) bool {
	return e.Name == other.Name && (e.Mode != other.Mode || e.Hash != other.Hash)
}

// Tree is the root or a subtree in a commit: an ordered list of entries.
type Tree struct {
	Hash    plumbing.Hash `json:"hash"`
	Entries []*TreeEntry  `json:"entries"`
	b       Backend
}

// EmptyTree is a tree with no entries; diffs against it describe the full
// content of the other side.
func EmptyTree() *Tree {
	return &Tree{}
}

func (t *Tree) Equal(other *Tree) bool {
	if (t == nil) != (other == nil) {
		return false
	}
	if t == nil {
		return true
	}
	return t.Hash == other.Hash
}

// Sort orders entries by name; the codec and the diff walk both rely on
// this ordering.
func (t *Tree) Sort() {
	sort.Slice(t.Entries, func(i, j int) bool {
		return t.Entries[i].Name < t.Entries[j].Name
	})
}

func (t *Tree) Append(entries ...*TreeEntry) {
	t.Entries = append(t.Entries, entries...)
	t.Sort()
}

func (t *Tree) Encode(w io.Writer) error {
	if _, err := w.Write(TREE_MAGIC[:]); err != nil {
		return err
	}
	for _, e := range t.Entries {
		if _, err := fmt.Fprintf(w, "%s %s %s\n", e.Mode, e.Hash, e.Name); err != nil {
			return err
		}
	}
	return nil
}

// Decode reads the encoded form of a tree, magic included.
func (t *Tree) Decode(reader io.Reader) error {
	var magic [4]byte
	if _, err := io.ReadFull(reader, magic[:]); err != nil {
		return err
	}
	if magic != TREE_MAGIC {
		return ErrUnsupportedObject
	}
	r := streamio.GetBufioReader(reader)
	defer streamio.PutBufioReader(r)
	for {
		line, readErr := r.ReadString('\n')
		if readErr != nil && readErr != io.EOF {
			return readErr
		}
		if text := strings.TrimSuffix(line, "\n"); len(text) != 0 {
			fields := strings.SplitN(text, " ", 3)
			if len(fields) != 3 {
				return fmt.Errorf("error parsing tree entry: %s", text)
			}
			mode, err := filemode.New(fields[0])
			if err != nil {
				return fmt.Errorf("error parsing tree entry mode: %s", fields[0])
			}
			oid, err := plumbing.NewHashEx(fields[1])
			if err != nil {
				return fmt.Errorf("error parsing tree entry oid: %s", fields[1])
			}
			t.Entries = append(t.Entries, &TreeEntry{Name: fields[2], Mode: mode, Hash: oid})
		}
		if readErr == io.EOF {
			break
		}
	}
	return nil
}

// DecodeTree decodes a tree read from the store and binds it to b.
func DecodeTree(b Backend, oid plumbing.Hash, r io.Reader) (*Tree, error) {
	t := &Tree{Hash: oid, b: b}
	if err := t.Decode(r); err != nil {
		return nil, err
	}
	return t, nil
}

// resolveTree gets a tree from an object storer and decodes it.
func resolveTree(ctx context.Context, b Backend, h plumbing.Hash) (*Tree, error) {
	if b == nil {
		return nil, plumbing.NoSuchObject(h)
	}

	t, err := b.Tree(ctx, h)
	if err != nil {
		return nil, err
	}
	return t, nil
}

// FindEntry looks up a direct or nested entry by slash separated path.
func (t *Tree) FindEntry(ctx context.Context, path string) (*TreeEntry, error) {
	pathParts := strings.Split(path, "/")

	var tree = t
	var err error
	for len(pathParts) > 1 {
		if tree, err = tree.dir(ctx, pathParts[0]); err != nil {
			return nil, err
		}
		pathParts = pathParts[1:]
	}
	return tree.entry(pathParts[0])
}

func (t *Tree) dir(ctx context.Context, baseName string) (*Tree, error) {
	entry, err := t.entry(baseName)
	if err != nil || !entry.IsDir() {
		return nil, &ErrEntryNotFound{entry: baseName}
	}
	return resolveTree(ctx, t.b, entry.Hash)
}

func (t *Tree) entry(baseName string) (*TreeEntry, error) {
	for _, e := range t.Entries {
		if e.Name == baseName {
			return e, nil
		}
	}
	return nil, &ErrEntryNotFound{entry: baseName}
}
