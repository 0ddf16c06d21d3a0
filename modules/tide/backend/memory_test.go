package backend

import (
	"context"
	"testing"

	"github.com/antgroup/tide/modules/plumbing"
	"github.com/antgroup/tide/modules/plumbing/filemode"
	"github.com/antgroup/tide/modules/tide/object"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryRoundTrip(t *testing.T) {
	m := NewMemory()

	blobOID, err := m.WriteBlob(&object.Blob{Content: []byte("hello\n")})
	require.NoError(t, err)

	tree := &object.Tree{Entries: []*object.TreeEntry{
		{Name: "hello.txt", Mode: filemode.Regular, Hash: blobOID},
	}}
	treeOID, err := m.WriteTree(tree)
	require.NoError(t, err)

	commit := &object.Commit{
		Tree:      treeOID,
		Author:    testSignature(42),
		Committer: testSignature(42),
		Message:   "hello\n",
	}
	commitOID, err := m.WriteCommit(commit)
	require.NoError(t, err)

	ctx := context.Background()
	got, err := m.Commit(ctx, commitOID)
	require.NoError(t, err)
	root, err := got.Root(ctx)
	require.NoError(t, err)
	require.Len(t, root.Entries, 1)
	assert.Equal(t, blobOID, root.Entries[0].Hash)

	_, err = m.Tag(ctx, plumbing.ZeroHash)
	assert.True(t, plumbing.IsNoSuchObject(err))
}

func TestMemoryMatchesDatabaseHashing(t *testing.T) {
	m := NewMemory()
	d, err := NewDatabase(t.TempDir())
	require.NoError(t, err)
	defer d.Close()

	blob := []byte("identical bytes\n")
	memOID, err := m.WriteBlob(&object.Blob{Content: blob})
	require.NoError(t, err)
	dbOID, err := d.WriteBlob(&object.Blob{Content: blob})
	require.NoError(t, err)
	assert.Equal(t, memOID, dbOID)
}
