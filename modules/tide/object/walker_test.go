package object

import (
	"bytes"
	"context"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/antgroup/tide/modules/plumbing"
	"github.com/antgroup/tide/modules/plumbing/filemode"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockBackend is a test implementation of Backend for walker tests.
type mockBackend struct {
	commits map[plumbing.Hash]*Commit
	trees   map[plumbing.Hash]*Tree
	blobs   map[plumbing.Hash]*Blob
	tags    map[plumbing.Hash]*Tag
}

func newMockBackend() *mockBackend {
	return &mockBackend{
		commits: make(map[plumbing.Hash]*Commit),
		trees:   make(map[plumbing.Hash]*Tree),
		blobs:   make(map[plumbing.Hash]*Blob),
		tags:    make(map[plumbing.Hash]*Tag),
	}
}

func (m *mockBackend) Commit(ctx context.Context, oid plumbing.Hash) (*Commit, error) {
	c, ok := m.commits[oid]
	if !ok {
		return nil, plumbing.NoSuchObject(oid)
	}
	return c, nil
}

func (m *mockBackend) Tree(ctx context.Context, oid plumbing.Hash) (*Tree, error) {
	t, ok := m.trees[oid]
	if !ok {
		return nil, plumbing.NoSuchObject(oid)
	}
	return t, nil
}

func (m *mockBackend) Blob(ctx context.Context, oid plumbing.Hash) (*Blob, error) {
	b, ok := m.blobs[oid]
	if !ok {
		return nil, plumbing.NoSuchObject(oid)
	}
	return b, nil
}

func (m *mockBackend) Tag(ctx context.Context, oid plumbing.Hash) (*Tag, error) {
	t, ok := m.tags[oid]
	if !ok {
		return nil, plumbing.NoSuchObject(oid)
	}
	return t, nil
}

// testHash expands a two-character hex tag into a full object id.
func testHash(tag string) plumbing.Hash {
	return plumbing.NewHash(strings.Repeat(tag, plumbing.HASH_DIGEST_SIZE))
}

// addTree registers a tree built from path -> blob tag pairs, nesting
// subtrees as needed, and returns it.
func (m *mockBackend) addTree(files map[string]string) *Tree {
	direct := make(map[string]plumbing.Hash)
	subs := make(map[string]map[string]string)
	for p, tag := range files {
		if i := strings.IndexByte(p, '/'); i >= 0 {
			sub, ok := subs[p[:i]]
			if !ok {
				sub = make(map[string]string)
				subs[p[:i]] = sub
			}
			sub[p[i+1:]] = tag
		} else {
			direct[p] = testHash(tag)
		}
	}
	t := &Tree{b: m}
	for name, oid := range direct {
		t.Entries = append(t.Entries, &TreeEntry{Name: name, Mode: filemode.Regular, Hash: oid})
		if _, ok := m.blobs[oid]; !ok {
			m.blobs[oid] = &Blob{Hash: oid, Content: []byte(name)}
		}
	}
	for name, files := range subs {
		sub := m.addTree(files)
		t.Entries = append(t.Entries, &TreeEntry{Name: name, Mode: filemode.Dir, Hash: sub.Hash})
	}
	t.Sort()
	var buf bytes.Buffer
	_ = t.Encode(&buf)
	hasher := plumbing.NewHasher()
	_, _ = hasher.Write(buf.Bytes())
	t.Hash = hasher.Sum()
	m.trees[t.Hash] = t
	return t
}

// addCommit registers a commit with the given two-character id tag and
// committer timestamp in seconds.
func (m *mockBackend) addCommit(tag string, seconds int64, tree *Tree, parents ...*Commit) *Commit {
	c := &Commit{
		Hash:      testHash(tag),
		Message:   "commit " + tag,
		Author:    Signature{Name: "Test Author", Email: "author@example.com", When: time.Unix(seconds, 0)},
		Committer: Signature{Name: "Test Author", Email: "author@example.com", When: time.Unix(seconds, 0)},
		b:         m,
	}
	if tree != nil {
		c.Tree = tree.Hash
	}
	for _, p := range parents {
		c.Parents = append(c.Parents, p.Hash)
	}
	m.commits[c.Hash] = c
	return c
}

func collectWalk(t *testing.T, b Backend, opts *WalkOptions) []*Commit {
	t.Helper()
	w, err := NewWalker(b, opts)
	require.NoError(t, err)
	defer w.Close()
	var out []*Commit
	require.NoError(t, w.ForEach(context.Background(), func(entry *WalkEntry) error {
		out = append(out, entry.Commit)
		return nil
	}))
	return out
}

func hashesOf(commits []*Commit) []plumbing.Hash {
	out := make([]plumbing.Hash, 0, len(commits))
	for _, c := range commits {
		out = append(out, c.Hash)
	}
	return out
}

func TestWalkerLinear(t *testing.T) {
	m := newMockBackend()
	c1 := m.addCommit("01", 10, nil)
	c2 := m.addCommit("02", 20, nil, c1)
	c3 := m.addCommit("03", 30, nil, c2)

	got := collectWalk(t, m, &WalkOptions{Include: []plumbing.Hash{c3.Hash}})
	assert.Equal(t, []plumbing.Hash{c3.Hash, c2.Hash, c1.Hash}, hashesOf(got))
}

func TestWalkerExcludeAncestor(t *testing.T) {
	m := newMockBackend()
	c1 := m.addCommit("01", 10, nil)
	c2 := m.addCommit("02", 20, nil, c1)
	c3 := m.addCommit("03", 30, nil, c2)

	got := collectWalk(t, m, &WalkOptions{
		Include: []plumbing.Hash{c3.Hash},
		Exclude: []plumbing.Hash{c1.Hash},
	})
	assert.Equal(t, []plumbing.Hash{c3.Hash, c2.Hash}, hashesOf(got))
}

// A fork where the excluded branch tip is older than the include tip: the
// exclusion wavefront must catch up through the shared ancestry before any
// of it is emitted.
func TestWalkerExcludeCatchUp(t *testing.T) {
	m := newMockBackend()
	c1 := m.addCommit("01", 10, nil)
	c2 := m.addCommit("02", 20, nil, c1)
	c3 := m.addCommit("03", 30, nil, c2)
	c4 := m.addCommit("04", 40, nil, c3)
	c5 := m.addCommit("05", 50, nil, c3)

	got := collectWalk(t, m, &WalkOptions{
		Include: []plumbing.Hash{c5.Hash},
		Exclude: []plumbing.Hash{c4.Hash},
	})
	assert.Equal(t, []plumbing.Hash{c5.Hash}, hashesOf(got))
}

func TestWalkerPathFilter(t *testing.T) {
	m := newMockBackend()
	tree1 := m.addTree(map[string]string{"bar/b.txt": "b1"})
	tree2 := m.addTree(map[string]string{"bar/b.txt": "b1", "foo/a.txt": "a1"})
	c1 := m.addCommit("01", 10, tree1)
	c2 := m.addCommit("02", 20, tree2, c1)

	got := collectWalk(t, m, &WalkOptions{
		Include: []plumbing.Hash{c2.Hash},
		Paths:   []string{"foo"},
	})
	assert.Equal(t, []plumbing.Hash{c2.Hash}, hashesOf(got))
}

func TestWalkerPathFilterNoPrefixConfusion(t *testing.T) {
	m := newMockBackend()
	tree1 := m.addTree(map[string]string{"unrelated.txt": "u1"})
	tree2 := m.addTree(map[string]string{"unrelated.txt": "u1", "foo/bar": "f1"})
	c1 := m.addCommit("01", 10, tree1)
	c2 := m.addCommit("02", 20, tree2, c1)

	// "foo/b" must not match "foo/bar"; only a full component may.
	got := collectWalk(t, m, &WalkOptions{
		Include: []plumbing.Hash{c2.Hash},
		Paths:   []string{"foo/b"},
	})
	assert.Empty(t, got)

	got = collectWalk(t, m, &WalkOptions{
		Include: []plumbing.Hash{c2.Hash},
		Paths:   []string{"foo"},
	})
	assert.Equal(t, []plumbing.Hash{c2.Hash}, hashesOf(got))
}

func TestWalkerFollowRename(t *testing.T) {
	m := newMockBackend()
	tree1 := m.addTree(map[string]string{"old.txt": "c1"})
	tree2 := m.addTree(map[string]string{"new.txt": "c1"})
	c1 := m.addCommit("01", 10, tree1)
	c2 := m.addCommit("02", 20, tree2, c1)

	w, err := NewWalker(m, &WalkOptions{
		Include: []plumbing.Hash{c2.Hash},
		Paths:   []string{"new.txt"},
		Follow:  true,
	})
	require.NoError(t, err)
	defer w.Close()

	ctx := context.Background()
	first, err := w.Next(ctx)
	require.NoError(t, err)
	assert.Equal(t, c2.Hash, first.Commit.Hash)
	// After following the rename, the tracked path set carries the
	// historical name.
	assert.Equal(t, map[string]bool{"old.txt": true}, w.paths)

	second, err := w.Next(ctx)
	require.NoError(t, err)
	assert.Equal(t, c1.Hash, second.Commit.Hash)

	_, err = w.Next(ctx)
	assert.Equal(t, io.EOF, err)
}

// Clock skew: c1 is newer than its child c2, so date order emits the
// parent first; topological order restores child-before-parent.
func TestWalkerTopoVersusDate(t *testing.T) {
	m := newMockBackend()
	c1 := m.addCommit("01", 2, nil)
	c2 := m.addCommit("02", 1, nil, c1)
	c3 := m.addCommit("03", 3, nil, c2)
	c4 := m.addCommit("04", 4, nil, c1, c3)
	c5 := m.addCommit("05", 5, nil, c4)

	got := collectWalk(t, m, &WalkOptions{Include: []plumbing.Hash{c5.Hash}})
	assert.Equal(t, []plumbing.Hash{c5.Hash, c4.Hash, c3.Hash, c1.Hash, c2.Hash}, hashesOf(got))

	got = collectWalk(t, m, &WalkOptions{
		Include: []plumbing.Hash{c5.Hash},
		Order:   WalkOrderTopo,
	})
	assert.Equal(t, []plumbing.Hash{c5.Hash, c4.Hash, c3.Hash, c2.Hash, c1.Hash}, hashesOf(got))
}

func TestWalkerSince(t *testing.T) {
	m := newMockBackend()
	c1 := m.addCommit("01", 10, nil)
	c2 := m.addCommit("02", 20, nil, c1)
	c3 := m.addCommit("03", 30, nil, c2)

	since := time.Unix(15, 0)
	got := collectWalk(t, m, &WalkOptions{
		Include: []plumbing.Hash{c3.Hash},
		Since:   &since,
	})
	assert.Equal(t, []plumbing.Hash{c3.Hash, c2.Hash}, hashesOf(got))
}

// A parent whose timestamp runs ahead of its child sits past the since
// boundary; the slack window must recover it.
func TestWalkerSinceSlackRecoversStray(t *testing.T) {
	m := newMockBackend()
	c1 := m.addCommit("01", 35, nil)
	c2 := m.addCommit("02", 10, nil, c1)
	c3 := m.addCommit("03", 40, nil, c2)
	c4 := m.addCommit("04", 50, nil, c3)

	since := time.Unix(34, 0)
	got := collectWalk(t, m, &WalkOptions{
		Include: []plumbing.Hash{c4.Hash},
		Since:   &since,
	})
	assert.Equal(t, []plumbing.Hash{c4.Hash, c3.Hash, c1.Hash}, hashesOf(got))
}

func TestWalkerUntil(t *testing.T) {
	m := newMockBackend()
	c1 := m.addCommit("01", 10, nil)
	c2 := m.addCommit("02", 20, nil, c1)
	c3 := m.addCommit("03", 30, nil, c2)

	until := time.Unix(20, 0)
	got := collectWalk(t, m, &WalkOptions{
		Include: []plumbing.Hash{c3.Hash},
		Until:   &until,
	})
	// Until is inclusive.
	assert.Equal(t, []plumbing.Hash{c2.Hash, c1.Hash}, hashesOf(got))
}

func TestWalkerMaxEntries(t *testing.T) {
	m := newMockBackend()
	c1 := m.addCommit("01", 10, nil)
	c2 := m.addCommit("02", 20, nil, c1)
	c3 := m.addCommit("03", 30, nil, c2)

	got := collectWalk(t, m, &WalkOptions{
		Include:    []plumbing.Hash{c3.Hash},
		MaxEntries: 2,
	})
	assert.Equal(t, []plumbing.Hash{c3.Hash, c2.Hash}, hashesOf(got))

	got = collectWalk(t, m, &WalkOptions{
		Include:    []plumbing.Hash{c3.Hash},
		MaxEntries: 10,
	})
	assert.Len(t, got, 3)
}

func TestWalkerReverse(t *testing.T) {
	m := newMockBackend()
	c1 := m.addCommit("01", 10, nil)
	c2 := m.addCommit("02", 20, nil, c1)
	c3 := m.addCommit("03", 30, nil, c2)

	forward := collectWalk(t, m, &WalkOptions{Include: []plumbing.Hash{c3.Hash}})
	backward := collectWalk(t, m, &WalkOptions{
		Include: []plumbing.Hash{c3.Hash},
		Reverse: true,
	})
	require.Len(t, backward, len(forward))
	for i := range forward {
		assert.Equal(t, forward[i].Hash, backward[len(backward)-1-i].Hash)
	}
}

func TestWalkerDeterminism(t *testing.T) {
	m := newMockBackend()
	c1 := m.addCommit("01", 10, nil)
	c2 := m.addCommit("02", 10, nil, c1)
	c3 := m.addCommit("03", 10, nil, c1)
	c4 := m.addCommit("04", 20, nil, c2, c3)

	opts := &WalkOptions{Include: []plumbing.Hash{c4.Hash}}
	first := hashesOf(collectWalk(t, m, opts))
	second := hashesOf(collectWalk(t, m, opts))
	assert.Equal(t, first, second)
	assert.Len(t, first, 4)
}

// The merge path filter accepts an entry at the first matching change in
// any parent's change list; it does not require the path to conflict
// across every parent. This mirrors the behavior history tooling has
// depended on, so it is pinned here on purpose.
func TestWalkerMergeFilterFirstMatch(t *testing.T) {
	m := newMockBackend()
	treeBase := m.addTree(map[string]string{"a.txt": "a1"})
	treeSide := m.addTree(map[string]string{"a.txt": "a3"})
	c1 := m.addCommit("01", 10, treeBase)
	c2 := m.addCommit("02", 20, treeBase, c1)
	c3 := m.addCommit("03", 21, treeSide, c1)
	merge := m.addCommit("04", 30, treeSide, c2, c3)

	// a.txt differs from c2's tree but is identical to c3's: no conflict
	// across every parent, yet the first-match rule lets the merge
	// through.
	got := collectWalk(t, m, &WalkOptions{
		Include: []plumbing.Hash{merge.Hash},
		Paths:   []string{"a.txt"},
	})
	assert.Contains(t, hashesOf(got), merge.Hash)
}

func TestWalkerNoEntryExcludedAtEmission(t *testing.T) {
	m := newMockBackend()
	c1 := m.addCommit("01", 10, nil)
	c2 := m.addCommit("02", 20, nil, c1)
	c3 := m.addCommit("03", 30, nil, c2)
	c4 := m.addCommit("04", 25, nil, c2)

	w, err := NewWalker(m, &WalkOptions{
		Include: []plumbing.Hash{c3.Hash, c4.Hash},
		Exclude: []plumbing.Hash{c4.Hash},
	})
	require.NoError(t, err)
	defer w.Close()
	require.NoError(t, w.ForEach(context.Background(), func(entry *WalkEntry) error {
		assert.False(t, w.excluded[entry.Commit.Hash])
		return nil
	}))
}

func TestWalkerInvalidOptions(t *testing.T) {
	m := newMockBackend()
	_, err := NewWalker(m, &WalkOptions{Order: "breadth"})
	assert.ErrorIs(t, err, ErrInvalidOrder)

	_, err = NewWalker(m, &WalkOptions{MaxEntries: -1})
	assert.ErrorIs(t, err, ErrInvalidMaxEntries)
}

func TestWalkerMissingCommit(t *testing.T) {
	m := newMockBackend()
	w, err := NewWalker(m, &WalkOptions{Include: []plumbing.Hash{testHash("ee")}})
	require.NoError(t, err)
	defer w.Close()
	_, err = w.Next(context.Background())
	assert.True(t, plumbing.IsNoSuchObject(err))
}

func TestWalkerMissingParent(t *testing.T) {
	m := newMockBackend()
	ghost := testHash("ee")
	c2 := &Commit{
		Hash:      testHash("02"),
		Parents:   []plumbing.Hash{ghost},
		Committer: Signature{When: time.Unix(20, 0)},
		b:         m,
	}
	m.commits[c2.Hash] = c2

	w, err := NewWalker(m, &WalkOptions{Include: []plumbing.Hash{c2.Hash}})
	require.NoError(t, err)
	defer w.Close()
	_, err = w.Next(context.Background())
	assert.True(t, plumbing.IsNoSuchObject(err))
}

func TestWalkerGetParentsOverride(t *testing.T) {
	m := newMockBackend()
	c1 := m.addCommit("01", 10, nil)
	c2 := m.addCommit("02", 20, nil, c1)
	c3 := m.addCommit("03", 30, nil, c2)

	// Graft c3 directly onto c1, hiding c2 from the walk.
	got := collectWalk(t, m, &WalkOptions{
		Include: []plumbing.Hash{c3.Hash},
		GetParents: func(c *Commit) []plumbing.Hash {
			if c.Hash == c3.Hash {
				return []plumbing.Hash{c1.Hash}
			}
			return c.Parents
		},
	})
	assert.Equal(t, []plumbing.Hash{c3.Hash, c1.Hash}, hashesOf(got))
}

// The queue terminates a bounded number of commits past the since
// boundary instead of draining the whole ancestry.
func TestCommitTimeQueueSlackTermination(t *testing.T) {
	m := newMockBackend()
	var parent *Commit
	tags := []string{"01", "02", "03", "04", "05", "06", "07", "08", "09", "0a"}
	commits := make([]*Commit, 0, len(tags))
	for i, tag := range tags {
		var parents []*Commit
		if parent != nil {
			parents = append(parents, parent)
		}
		parent = m.addCommit(tag, int64((i+1)*10), nil, parents...)
		commits = append(commits, parent)
	}
	tip := commits[len(commits)-1]

	since := time.Unix(95, 0)
	w, err := NewWalker(m, &WalkOptions{
		Include: []plumbing.Hash{tip.Hash},
		Since:   &since,
	})
	require.NoError(t, err)

	ctx := context.Background()
	var produced int
	for {
		_, err := w.queue.Next(ctx)
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
		produced++
	}
	// The tip, then the slack window drains: four more returns before the
	// counter reaches zero on the fifth commit past the boundary.
	assert.Equal(t, maxExtraCommits, produced)
}

func TestWalkerEntryChangesCachedOnce(t *testing.T) {
	m := newMockBackend()
	tree1 := m.addTree(map[string]string{"a.txt": "a1"})
	c1 := m.addCommit("01", 10, tree1)

	w, err := NewWalker(m, &WalkOptions{Include: []plumbing.Hash{c1.Hash}})
	require.NoError(t, err)
	defer w.Close()
	entry, err := w.Next(context.Background())
	require.NoError(t, err)

	first, err := entry.Changes(context.Background())
	require.NoError(t, err)
	second, err := entry.Changes(context.Background())
	require.NoError(t, err)
	require.Len(t, first, 1)
	assert.Equal(t, ChangeAdd, first[0].Type)
	assert.Equal(t, "a.txt", first[0].To.Path)
	// Same backing slice: computed at most once.
	assert.Same(t, first[0], second[0])
}
