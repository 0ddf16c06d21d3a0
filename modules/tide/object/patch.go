// Copyright 2018 Sourced Technologies, S.L.
// SPDX-License-Identifier: Apache-2.0

package object

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/sergi/go-diff/diffmatchpatch"
)

const (
	diffContextLines = 3
	devNull          = "/dev/null"
)

// PatchOptions controls unified diff emission.
type PatchOptions struct {
	SrcPrefix string // defaults to "a/"
	DstPrefix string // defaults to "b/"
}

func (opts *PatchOptions) prefixes() (string, string) {
	src, dst := "a/", "b/"
	if opts != nil && opts.SrcPrefix != "" {
		src = opts.SrcPrefix
	}
	if opts != nil && opts.DstPrefix != "" {
		dst = opts.DstPrefix
	}
	return src, dst
}

// FormatChangePatch writes the unified diff for a single change.
func FormatChangePatch(ctx context.Context, b Backend, w io.Writer, c *Change, opts *PatchOptions) error {
	src, dst := opts.prefixes()
	oldLabel, newLabel := devNull, devNull
	var oldContent, newContent []byte
	var oldBinary, newBinary bool

	if !c.From.IsZero() {
		oldLabel = src + c.From.Path
		blob, err := b.Blob(ctx, c.From.Hash)
		if err != nil {
			return err
		}
		oldContent, oldBinary = blob.Content, blob.IsBinary()
	}
	if !c.To.IsZero() {
		newLabel = dst + c.To.Path
		blob, err := b.Blob(ctx, c.To.Hash)
		if err != nil {
			return err
		}
		newContent, newBinary = blob.Content, blob.IsBinary()
	}

	headerOld, headerNew := c.From.Path, c.To.Path
	if headerOld == "" {
		headerOld = c.To.Path
	}
	if headerNew == "" {
		headerNew = c.From.Path
	}
	if _, err := fmt.Fprintf(w, "diff --tide %s %s\n", src+headerOld, dst+headerNew); err != nil {
		return err
	}
	switch c.Type {
	case ChangeAdd:
		if _, err := fmt.Fprintf(w, "new file mode %s\n", c.To.Mode); err != nil {
			return err
		}
	case ChangeDelete:
		if _, err := fmt.Fprintf(w, "deleted file mode %s\n", c.From.Mode); err != nil {
			return err
		}
	case ChangeRename, ChangeCopy:
		verb := "rename"
		if c.Type == ChangeCopy {
			verb = "copy"
		}
		score := contentSimilarityScore(oldContent, newContent)
		if _, err := fmt.Fprintf(w, "similarity index %d%%\n%s from %s\n%s to %s\n",
			score, verb, c.From.Path, verb, c.To.Path); err != nil {
			return err
		}
	}
	if _, err := fmt.Fprintf(w, "index %s..%s\n", c.From.Hash.Prefix(), c.To.Hash.Prefix()); err != nil {
		return err
	}

	if oldBinary || newBinary {
		_, err := fmt.Fprintf(w, "Binary files %s and %s differ\n", oldLabel, newLabel)
		return err
	}
	if string(oldContent) == string(newContent) {
		// Pure rename/copy or mode change; no hunks.
		return nil
	}
	if _, err := fmt.Fprintf(w, "--- %s\n+++ %s\n", oldLabel, newLabel); err != nil {
		return err
	}
	return writeUnified(w, oldContent, newContent)
}

// FormatChangesPatch writes the unified diff of a whole change list.
func FormatChangesPatch(ctx context.Context, b Backend, w io.Writer, changes Changes, opts *PatchOptions) error {
	for _, c := range changes {
		if err := FormatChangePatch(ctx, b, w, c, opts); err != nil {
			return err
		}
	}
	return nil
}

// FormatCommitPatch writes a log-style header for the entry's commit
// followed by its diff. Merge commits print the header only.
func FormatCommitPatch(ctx context.Context, b Backend, w io.Writer, entry *WalkEntry, opts *PatchOptions) error {
	c := entry.Commit
	if _, err := fmt.Fprintf(w, "commit %s\nAuthor: %s <%s>\nDate:   %s\n\n%s\n",
		c.Hash, c.Author.Name, c.Author.Email,
		c.Author.When.Format(DateFormat), indent(c.Message)); err != nil {
		return err
	}
	if c.NumParents() > 1 {
		return nil
	}
	changes, err := entry.Changes(ctx)
	if err != nil {
		return err
	}
	return FormatChangesPatch(ctx, b, w, changes, opts)
}

type diffLine struct {
	kind byte // ' ', '-' or '+'
	text string
}

// writeUnified renders hunks with diffContextLines lines of context from a
// line-level diff of the two contents.
func writeUnified(w io.Writer, oldContent, newContent []byte) error {
	dmp := diffmatchpatch.New()
	t1, t2, lineArray := dmp.DiffLinesToChars(string(oldContent), string(newContent))
	diffs := dmp.DiffCharsToLines(dmp.DiffMain(t1, t2, false), lineArray)

	var lines []diffLine
	for _, diff := range diffs {
		var kind byte
		switch diff.Type {
		case diffmatchpatch.DiffDelete:
			kind = '-'
		case diffmatchpatch.DiffInsert:
			kind = '+'
		default:
			kind = ' '
		}
		for _, text := range splitLines(diff.Text) {
			lines = append(lines, diffLine{kind: kind, text: text})
		}
	}

	// Precompute for each position the old/new line numbers it starts at.
	oldAt := make([]int, len(lines)+1)
	newAt := make([]int, len(lines)+1)
	oldNo, newNo := 1, 1
	for i, l := range lines {
		oldAt[i], newAt[i] = oldNo, newNo
		if l.kind != '+' {
			oldNo++
		}
		if l.kind != '-' {
			newNo++
		}
	}
	oldAt[len(lines)], newAt[len(lines)] = oldNo, newNo

	i := 0
	for i < len(lines) {
		if lines[i].kind == ' ' {
			i++
			continue
		}
		start := i - diffContextLines
		if start < 0 {
			start = 0
		}
		// Extend the hunk while changes stay within twice the context
		// window of the previous one.
		lastChange := i
		j := i + 1
		for j < len(lines) {
			if lines[j].kind != ' ' {
				lastChange = j
			} else if j-lastChange > 2*diffContextLines {
				break
			}
			j++
		}
		end := lastChange + diffContextLines + 1
		if end > len(lines) {
			end = len(lines)
		}

		oldCount, newCount := 0, 0
		for _, l := range lines[start:end] {
			if l.kind != '+' {
				oldCount++
			}
			if l.kind != '-' {
				newCount++
			}
		}
		if _, err := fmt.Fprintf(w, "@@ -%d,%d +%d,%d @@\n",
			oldAt[start], oldCount, newAt[start], newCount); err != nil {
			return err
		}
		for _, l := range lines[start:end] {
			if _, err := fmt.Fprintf(w, "%c%s\n", l.kind, l.text); err != nil {
				return err
			}
		}
		i = end
	}
	return nil
}

func splitLines(text string) []string {
	text = strings.TrimSuffix(text, "\n")
	if text == "" {
		return nil
	}
	return strings.Split(text, "\n")
}
