package patch

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/sergi/go-diff/diffmatchpatch"
)

// DefaultStringDiffThreshold is the minimum length, in characters, an old
// string must exceed before a string-diff is considered.
const DefaultStringDiffThreshold = 50

// OptimizeStringReplace rewrites a replace operation carrying a string value
// into the cheapest equivalent form, given the value currently at its path.
// It returns false when the operation is a no-op and should be dropped.
func OptimizeStringReplace(op Operation, old any, threshold int) (Operation, bool) {
	if op.Op != OpReplace {
		return op, true
	}
	next, ok := op.Value.(string)
	if !ok {
		return op, true
	}
	prev, ok := old.(string)
	if !ok {
		return op, true
	}
	if strings.HasPrefix(next, prev) {
		suffix := next[len(prev):]
		if suffix == "" {
			return op, false
		}
		return StringAppend(op.Path, suffix), true
	}
	if utf8.RuneCountInString(prev) <= threshold {
		return op, true
	}
	candidate := StringDiff(op.Path, DiffStrings(prev, next))
	if candidate.EncodedSize() < op.EncodedSize() {
		return candidate, true
	}
	return op, true
}

// DiffStrings computes the character-level segments that transform a into b.
// The retain and delete counts always add up to the length of a, so a
// consumer that only walks the segments rebuilds b exactly.
func DiffStrings(a, b string) []Segment {
	dmp := diffmatchpatch.New()
	diffs := dmp.DiffMain(a, b, false)
	diffs = dmp.DiffCleanupEfficiency(diffs)

	segments := make([]Segment, 0, len(diffs))
	for _, d := range diffs {
		if d.Text == "" {
			continue
		}
		var seg Segment
		switch d.Type {
		case diffmatchpatch.DiffEqual:
			seg = Segment{Type: SegmentRetain, Count: utf8.RuneCountInString(d.Text)}
		case diffmatchpatch.DiffInsert:
			seg = Segment{Type: SegmentInsert, Value: d.Text}
		case diffmatchpatch.DiffDelete:
			seg = Segment{Type: SegmentDelete, Count: utf8.RuneCountInString(d.Text)}
		}
		if n := len(segments); n > 0 && segments[n-1].Type == seg.Type {
			segments[n-1].Count += seg.Count
			segments[n-1].Value += seg.Value
			continue
		}
		segments = append(segments, seg)
	}
	return segments
}

// ApplyStringDiff reconstructs a string from source and a list of segments.
func ApplyStringDiff(source string, segments []Segment) (string, error) {
	src := []rune(source)
	var sb strings.Builder
	sb.Grow(len(source))
	pos := 0
	for i, seg := range segments {
		switch seg.Type {
		case SegmentRetain:
			if seg.Count < 0 || pos+seg.Count > len(src) {
				return "", fmt.Errorf("%w: segment %d retains past end of string", ErrInvalidDiff, i)
			}
			sb.WriteString(string(src[pos : pos+seg.Count]))
			pos += seg.Count
		case SegmentInsert:
			sb.WriteString(seg.Value)
		case SegmentDelete:
			if seg.Count < 0 || pos+seg.Count > len(src) {
				return "", fmt.Errorf("%w: segment %d deletes past end of string", ErrInvalidDiff, i)
			}
			pos += seg.Count
		default:
			return "", fmt.Errorf("%w: segment %d has unknown type %q", ErrInvalidDiff, i, seg.Type)
		}
	}
	sb.WriteString(string(src[pos:]))
	return sb.String(), nil
}
