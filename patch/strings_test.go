package patch

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/require"
)

func TestOptimizeStringReplace(t *testing.T) {
	long := strings.Repeat("streaming tokens ", 40)

	t.Run("append", func(t *testing.T) {
		op, keep := OptimizeStringReplace(Replace("/t", "Hello World"), "Hello", DefaultStringDiffThreshold)
		require.True(t, keep)
		require.Equal(t, StringAppend("/t", " World"), op)
	})

	t.Run("empty suffix is dropped", func(t *testing.T) {
		_, keep := OptimizeStringReplace(Replace("/t", "same"), "same", DefaultStringDiffThreshold)
		require.False(t, keep)
	})

	t.Run("append from empty string", func(t *testing.T) {
		op, keep := OptimizeStringReplace(Replace("/t", "abc"), "", DefaultStringDiffThreshold)
		require.True(t, keep)
		require.Equal(t, StringAppend("/t", "abc"), op)
	})

	t.Run("old value not a string", func(t *testing.T) {
		op, keep := OptimizeStringReplace(Replace("/t", "abc"), 12.0, DefaultStringDiffThreshold)
		require.True(t, keep)
		require.Equal(t, Replace("/t", "abc"), op)
	})

	t.Run("short rewrite stays replace", func(t *testing.T) {
		op, keep := OptimizeStringReplace(Replace("/t", "Goodbye"), "Hello", DefaultStringDiffThreshold)
		require.True(t, keep)
		require.Equal(t, OpReplace, op.Op)
	})

	t.Run("long small edit becomes string diff", func(t *testing.T) {
		next := strings.Replace(long, "tokens", "bytes", 1)
		op, keep := OptimizeStringReplace(Replace("/t", next), long, DefaultStringDiffThreshold)
		require.True(t, keep)
		require.Equal(t, OpStringDiff, op.Op)
		require.Less(t, op.EncodedSize(), Replace("/t", next).EncodedSize())

		got, err := ApplyStringDiff(long, op.Diff)
		require.NoError(t, err)
		require.Equal(t, next, got)
	})

	t.Run("diff larger than replace stays replace", func(t *testing.T) {
		prev := strings.Repeat("streaming tokens ", 10)
		next := strings.Replace(prev, "tokens", "bytes", 1)
		op, keep := OptimizeStringReplace(Replace("/t", next), prev, DefaultStringDiffThreshold)
		require.True(t, keep)
		require.Equal(t, OpReplace, op.Op)
		require.Equal(t, next, op.Value)
	})

	t.Run("long total rewrite stays replace", func(t *testing.T) {
		next := strings.Repeat("0123456789", 2)
		op, keep := OptimizeStringReplace(Replace("/t", next), long, DefaultStringDiffThreshold)
		require.True(t, keep)
		require.Equal(t, OpReplace, op.Op)
	})
}

func TestDiffStrings(t *testing.T) {
	pairs := [][2]string{
		{"", ""},
		{"", "abc"},
		{"abc", ""},
		{"kitten", "sitting"},
		{"Hello, World", "HelloXWorld"},
		{"naïve café", "naive cafe"},
		{"emoji 😀 here", "emoji 😃 there"},
		{strings.Repeat("ab", 40), strings.Repeat("ba", 40)},
	}
	for _, pair := range pairs {
		segments := DiffStrings(pair[0], pair[1])
		consumed := 0
		for _, seg := range segments {
			if seg.Type != SegmentInsert {
				consumed += seg.Count
			}
		}
		require.Equal(t, utf8.RuneCountInString(pair[0]), consumed, "%q -> %q", pair[0], pair[1])
		require.Equal(t, pair[1], walkSegments(pair[0], segments), "%q -> %q", pair[0], pair[1])

		got, err := ApplyStringDiff(pair[0], segments)
		require.NoError(t, err)
		require.Equal(t, pair[1], got, "%q -> %q", pair[0], pair[1])
	}
}

// walkSegments rebuilds a string using nothing but the segments, the way a
// consumer in another process would.
func walkSegments(source string, segments []Segment) string {
	src := []rune(source)
	var sb strings.Builder
	pos := 0
	for _, seg := range segments {
		switch seg.Type {
		case SegmentRetain:
			sb.WriteString(string(src[pos : pos+seg.Count]))
			pos += seg.Count
		case SegmentInsert:
			sb.WriteString(seg.Value)
		case SegmentDelete:
			pos += seg.Count
		}
	}
	return sb.String()
}

func TestDiffStringDiffCoversWholeSource(t *testing.T) {
	prev := strings.Repeat("abcdefghij", 20)
	next := "XY" + prev[2:]

	p, err := Diff(map[string]any{"t": prev}, map[string]any{"t": next})
	require.NoError(t, err)
	require.Len(t, p, 1)
	require.Equal(t, OpStringDiff, p[0].Op)

	last := p[0].Diff[len(p[0].Diff)-1]
	require.Equal(t, SegmentRetain, last.Type)
	require.Equal(t, 198, last.Count)
	require.Equal(t, next, walkSegments(prev, p[0].Diff))
}

func TestApplyStringDiffCountsCharacters(t *testing.T) {
	got, err := ApplyStringDiff("héllo", []Segment{
		{Type: SegmentRetain, Count: 2},
		{Type: SegmentDelete, Count: 1},
		{Type: SegmentInsert, Value: "L"},
	})
	require.NoError(t, err)
	require.Equal(t, "héLlo", got)

	_, err = ApplyStringDiff("ab", []Segment{{Type: "swap", Count: 1}})
	require.ErrorIs(t, err, ErrInvalidDiff)
}
