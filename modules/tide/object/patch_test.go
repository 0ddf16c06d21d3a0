package object

import (
	"context"
	"strings"
	"testing"

	"github.com/antgroup/tide/modules/plumbing"
	"github.com/antgroup/tide/modules/plumbing/filemode"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormatChangePatchModify(t *testing.T) {
	m := newMockBackend()
	m.blobs[testHash("f0")] = &Blob{Hash: testHash("f0"), Content: []byte("one\ntwo\nthree\n")}
	m.blobs[testHash("f1")] = &Blob{Hash: testHash("f1"), Content: []byte("one\n2\nthree\n")}

	c := &Change{
		Type: ChangeModify,
		From: ChangeEntry{Path: "notes.txt", Mode: filemode.Regular, Hash: testHash("f0")},
		To:   ChangeEntry{Path: "notes.txt", Mode: filemode.Regular, Hash: testHash("f1")},
	}
	var sb strings.Builder
	require.NoError(t, FormatChangePatch(context.Background(), m, &sb, c, nil))
	out := sb.String()
	assert.Contains(t, out, "diff --tide a/notes.txt b/notes.txt\n")
	assert.Contains(t, out, "--- a/notes.txt\n+++ b/notes.txt\n")
	assert.Contains(t, out, "-two\n")
	assert.Contains(t, out, "+2\n")
	assert.Contains(t, out, " one\n")
	assert.Contains(t, out, "@@ -1,3 +1,3 @@\n")
}

func TestFormatChangePatchAddAndDelete(t *testing.T) {
	m := newMockBackend()
	m.blobs[testHash("f0")] = &Blob{Hash: testHash("f0"), Content: []byte("content\n")}

	add := &Change{
		Type: ChangeAdd,
		To:   ChangeEntry{Path: "created.txt", Mode: filemode.Regular, Hash: testHash("f0")},
	}
	var sb strings.Builder
	require.NoError(t, FormatChangePatch(context.Background(), m, &sb, add, nil))
	out := sb.String()
	assert.Contains(t, out, "new file mode 0100644\n")
	assert.Contains(t, out, "--- /dev/null\n+++ b/created.txt\n")
	assert.Contains(t, out, "+content\n")

	del := &Change{
		Type: ChangeDelete,
		From: ChangeEntry{Path: "created.txt", Mode: filemode.Regular, Hash: testHash("f0")},
	}
	sb.Reset()
	require.NoError(t, FormatChangePatch(context.Background(), m, &sb, del, nil))
	out = sb.String()
	assert.Contains(t, out, "deleted file mode 0100644\n")
	assert.Contains(t, out, "--- a/created.txt\n+++ /dev/null\n")
	assert.Contains(t, out, "-content\n")
}

func TestFormatChangePatchPureRename(t *testing.T) {
	m := newMockBackend()
	m.blobs[testHash("f0")] = &Blob{Hash: testHash("f0"), Content: []byte("same content\n")}

	c := &Change{
		Type: ChangeRename,
		From: ChangeEntry{Path: "old.txt", Mode: filemode.Regular, Hash: testHash("f0")},
		To:   ChangeEntry{Path: "new.txt", Mode: filemode.Regular, Hash: testHash("f0")},
	}
	var sb strings.Builder
	require.NoError(t, FormatChangePatch(context.Background(), m, &sb, c, nil))
	out := sb.String()
	assert.Contains(t, out, "similarity index 100%\n")
	assert.Contains(t, out, "rename from old.txt\n")
	assert.Contains(t, out, "rename to new.txt\n")
	// Identical content: headers only, no hunks.
	assert.NotContains(t, out, "@@")
}

func TestFormatChangePatchBinary(t *testing.T) {
	m := newMockBackend()
	m.blobs[testHash("f0")] = &Blob{Hash: testHash("f0"), Content: []byte{0x00, 0xff, 0x00}}
	m.blobs[testHash("f1")] = &Blob{Hash: testHash("f1"), Content: []byte{0x00, 0xfe}}

	c := &Change{
		Type: ChangeModify,
		From: ChangeEntry{Path: "img.bin", Mode: filemode.Regular, Hash: testHash("f0")},
		To:   ChangeEntry{Path: "img.bin", Mode: filemode.Regular, Hash: testHash("f1")},
	}
	var sb strings.Builder
	require.NoError(t, FormatChangePatch(context.Background(), m, &sb, c, nil))
	assert.Contains(t, sb.String(), "Binary files a/img.bin and b/img.bin differ\n")
	assert.NotContains(t, sb.String(), "@@")
}

func TestFormatCommitPatch(t *testing.T) {
	m := newMockBackend()
	tree1 := m.addTree(map[string]string{"a.txt": "a1"})
	c1 := m.addCommit("01", 10, tree1)

	w, err := NewWalker(m, &WalkOptions{Include: []plumbing.Hash{c1.Hash}})
	require.NoError(t, err)
	defer w.Close()
	entry, err := w.Next(context.Background())
	require.NoError(t, err)

	var sb strings.Builder
	require.NoError(t, FormatCommitPatch(context.Background(), m, &sb, entry, nil))
	out := sb.String()
	assert.Contains(t, out, "commit "+c1.Hash.String()+"\n")
	assert.Contains(t, out, "Author: Test Author <author@example.com>\n")
	assert.Contains(t, out, "    commit 01\n")
	assert.Contains(t, out, "diff --tide a/a.txt b/a.txt\n")
	assert.Contains(t, out, "+a.txt\n")
}
