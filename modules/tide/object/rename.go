// Copyright 2018 Sourced Technologies, S.L.
// SPDX-License-Identifier: Apache-2.0

package object

import (
	"context"
	"sort"

	"github.com/antgroup/tide/modules/plumbing"
	"github.com/sergi/go-diff/diffmatchpatch"
)

const (
	// DefaultRenameThreshold is the minimum content similarity score for a
	// delete/add pair to be reported as a rename.
	DefaultRenameThreshold = 60
	// DefaultRenameLimit is the largest number of delete x add candidate
	// pairs for which the content similarity pass runs; above it the pass
	// is skipped.
	DefaultRenameLimit = 200
)

// RenameDetector rewrites delete/add pairs in a Changes list into renames
// and copies. Exact matches pair identical blob hashes; the remaining pairs
// are scored by content similarity against the rename threshold.
type RenameDetector struct {
	b               Backend
	renameThreshold int
	renameLimit     int
	findCopies      bool
}

type RenameDetectorOption func(*RenameDetector)

func WithRenameThreshold(threshold int) RenameDetectorOption {
	return func(d *RenameDetector) {
		if threshold > 0 && threshold <= 100 {
			d.renameThreshold = threshold
		}
	}
}

func WithRenameLimit(limit int) RenameDetectorOption {
	return func(d *RenameDetector) {
		if limit > 0 {
			d.renameLimit = limit
		}
	}
}

// WithFindCopies reports adds that duplicate surviving content as copies
// instead of plain adds.
func WithFindCopies(findCopies bool) RenameDetectorOption {
	return func(d *RenameDetector) {
		d.findCopies = findCopies
	}
}

func NewRenameDetector(b Backend, opts ...RenameDetectorOption) *RenameDetector {
	d := &RenameDetector{
		b:               b,
		renameThreshold: DefaultRenameThreshold,
		renameLimit:     DefaultRenameLimit,
	}
	for _, o := range opts {
		o(d)
	}
	return d
}

// Detect returns changes with matching delete/add pairs replaced by rename
// or copy records. The input order is not preserved; callers sort.
func (d *RenameDetector) Detect(ctx context.Context, changes Changes) (Changes, error) {
	var adds, deletes Changes
	result := make(Changes, 0, len(changes))
	for _, c := range changes {
		switch c.Type {
		case ChangeAdd:
			adds = append(adds, c)
		case ChangeDelete:
			deletes = append(deletes, c)
		default:
			result = append(result, c)
		}
	}
	if len(adds) == 0 || len(deletes) == 0 {
		return append(result, append(adds, deletes...)...), nil
	}

	adds, deletes, renames := d.detectExact(adds, deletes)
	result = append(result, renames...)

	adds, deletes, renames, err := d.detectContent(ctx, adds, deletes)
	if err != nil {
		return nil, err
	}
	result = append(result, renames...)

	result = append(result, adds...)
	result = append(result, deletes...)
	return result, nil
}

// detectExact pairs adds and deletes whose blob hashes are identical. When
// several deletes carry the same content, the one whose path looks most like
// the add's wins. Surplus identical adds become copies when findCopies is
// on.
func (d *RenameDetector) detectExact(adds, deletes Changes) (Changes, Changes, Changes) {
	deletesByHash := make(map[plumbing.Hash]Changes)
	for _, del := range deletes {
		deletesByHash[del.From.Hash] = append(deletesByHash[del.From.Hash], del)
	}

	var renames Changes
	consumed := make(map[*Change]bool)
	remainingAdds := make(Changes, 0, len(adds))

	for _, add := range adds {
		candidates := deletesByHash[add.To.Hash]
		var best *Change
		bestScore := -1
		for _, del := range candidates {
			if consumed[del] {
				continue
			}
			if score := nameSimilarityScore(add.To.Path, del.From.Path); score > bestScore {
				best, bestScore = del, score
			}
		}
		switch {
		case best != nil:
			consumed[best] = true
			renames = append(renames, &Change{Type: ChangeRename, From: best.From, To: add.To})
		case d.findCopies && len(candidates) > 0:
			// Content still exists under its old name on the delete side
			// of an already matched pair.
			renames = append(renames, &Change{Type: ChangeCopy, From: candidates[0].From, To: add.To})
		default:
			remainingAdds = append(remainingAdds, add)
		}
	}

	remainingDeletes := make(Changes, 0, len(deletes))
	for _, del := range deletes {
		if !consumed[del] {
			remainingDeletes = append(remainingDeletes, del)
		}
	}
	return remainingAdds, remainingDeletes, renames
}

type similarityPair struct {
	add    *Change
	delete *Change
	score  int
}

// detectContent pairs the leftover adds and deletes by blob content
// similarity, best score first, stopping below the rename threshold.
func (d *RenameDetector) detectContent(ctx context.Context, adds, deletes Changes) (Changes, Changes, Changes, error) {
	if len(adds) == 0 || len(deletes) == 0 || len(adds)*len(deletes) > d.renameLimit {
		return adds, deletes, nil, nil
	}

	pairs := make([]similarityPair, 0, len(adds)*len(deletes))
	for _, add := range adds {
		addContent, err := blobBytes(ctx, d.b, add.To.Hash)
		if err != nil {
			return nil, nil, nil, err
		}
		for _, del := range deletes {
			delContent, err := blobBytes(ctx, d.b, del.From.Hash)
			if err != nil {
				return nil, nil, nil, err
			}
			score := contentSimilarityScore(delContent, addContent)
			if score < d.renameThreshold {
				continue
			}
			pairs = append(pairs, similarityPair{add: add, delete: del, score: score})
		}
	}
	sort.SliceStable(pairs, func(i, j int) bool {
		if pairs[i].score != pairs[j].score {
			return pairs[i].score > pairs[j].score
		}
		return nameSimilarityScore(pairs[i].add.To.Path, pairs[i].delete.From.Path) >
			nameSimilarityScore(pairs[j].add.To.Path, pairs[j].delete.From.Path)
	})

	var renames Changes
	used := make(map[*Change]bool)
	for _, p := range pairs {
		if used[p.add] || used[p.delete] {
			continue
		}
		used[p.add] = true
		used[p.delete] = true
		renames = append(renames, &Change{Type: ChangeRename, From: p.delete.From, To: p.add.To})
	}

	remainingAdds := make(Changes, 0, len(adds))
	for _, add := range adds {
		if !used[add] {
			remainingAdds = append(remainingAdds, add)
		}
	}
	remainingDeletes := make(Changes, 0, len(deletes))
	for _, del := range deletes {
		if !used[del] {
			remainingDeletes = append(remainingDeletes, del)
		}
	}
	return remainingAdds, remainingDeletes, renames, nil
}

// contentSimilarityScore measures how much of the combined content the two
// sides share, 0 to 100. Identical content scores 100.
func contentSimilarityScore(a, b []byte) int {
	if len(a) == 0 && len(b) == 0 {
		return 100
	}
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	dmp := diffmatchpatch.New()
	diffs := dmp.DiffMain(string(a), string(b), false)
	common := 0
	for _, diff := range diffs {
		if diff.Type == diffmatchpatch.DiffEqual {
			common += len(diff.Text)
		}
	}
	return common * 200 / (len(a) + len(b))
}

// nameSimilarityScore returns a score of how similar the two paths are,
// blending shared directory prefix/suffix with the shared file name suffix.
func nameSimilarityScore(a, b string) int {
	aDirLen := lastSlash(a)
	bDirLen := lastSlash(b)

	dirMin := min(aDirLen, bDirLen)
	dirMax := max(aDirLen, bDirLen)

	var dirScoreLtr, dirScoreRtl int
	if dirMax == 0 {
		dirScoreLtr = 100
		dirScoreRtl = 100
	} else {
		var dirSim int
		for ; dirSim < dirMin; dirSim++ {
			if a[dirSim] != b[dirSim] {
				break
			}
		}
		dirScoreLtr = dirSim * 100 / dirMax

		for dirSim = 0; dirSim < dirMin; dirSim++ {
			if a[aDirLen-1-dirSim] != b[bDirLen-1-dirSim] {
				break
			}
		}
		dirScoreRtl = dirSim * 100 / dirMax
	}

	fileMin := min(len(a)-aDirLen, len(b)-bDirLen)
	fileMax := max(len(a)-aDirLen, len(b)-bDirLen)

	var fileSim int
	for ; fileSim < fileMin; fileSim++ {
		if a[len(a)-1-fileSim] != b[len(b)-1-fileSim] {
			break
		}
	}
	fileScore := fileSim * 100 / fileMax

	return (((dirScoreLtr + dirScoreRtl) * 25) + (fileScore * 50)) / 100
}

func lastSlash(s string) int {
	for i := len(s) - 1; i >= 0; i-- {
		if s[i] == '/' {
			return i + 1
		}
	}
	return 0
}
