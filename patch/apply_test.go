package patch

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

func decodePatch(t *testing.T, data string) Patch {
	t.Helper()
	var p Patch
	require.NoError(t, json.Unmarshal([]byte(data), &p))
	return p
}

func decodeValue(t *testing.T, data string) any {
	t.Helper()
	var v any
	require.NoError(t, json.Unmarshal([]byte(data), &v))
	return v
}

func TestApply(t *testing.T) {
	tests := []struct {
		name  string
		doc   string
		patch string
		want  string
	}{
		{
			name:  "add member",
			doc:   `{"a":1}`,
			patch: `[{"op":"add","path":"/b","value":[1,2]}]`,
			want:  `{"a":1,"b":[1,2]}`,
		},
		{
			name:  "add array element",
			doc:   `{"a":[1,3]}`,
			patch: `[{"op":"add","path":"/a/1","value":2}]`,
			want:  `{"a":[1,2,3]}`,
		},
		{
			name:  "append to array",
			doc:   `{"a":[1]}`,
			patch: `[{"op":"add","path":"/a/-","value":2}]`,
			want:  `{"a":[1,2]}`,
		},
		{
			name:  "remove",
			doc:   `{"a":[1,2,3],"b":true}`,
			patch: `[{"op":"remove","path":"/a/0"},{"op":"remove","path":"/b"}]`,
			want:  `{"a":[2,3]}`,
		},
		{
			name:  "replace null",
			doc:   `{"a":"x"}`,
			patch: `[{"op":"replace","path":"/a","value":null}]`,
			want:  `{"a":null}`,
		},
		{
			name:  "replace root",
			doc:   `{"a":1}`,
			patch: `[{"op":"replace","path":"","value":"text"}]`,
			want:  `"text"`,
		},
		{
			name:  "move",
			doc:   `{"a":{"b":1},"c":{}}`,
			patch: `[{"op":"move","from":"/a/b","path":"/c/d"}]`,
			want:  `{"a":{},"c":{"d":1}}`,
		},
		{
			name:  "copy",
			doc:   `{"a":{"b":[1]}}`,
			patch: `[{"op":"copy","from":"/a","path":"/c"},{"op":"add","path":"/c/b/-","value":2}]`,
			want:  `{"a":{"b":[1]},"c":{"b":[1,2]}}`,
		},
		{
			name:  "test passes",
			doc:   `{"a":{"b":[1,"x"]}}`,
			patch: `[{"op":"test","path":"/a","value":{"b":[1,"x"]}}]`,
			want:  `{"a":{"b":[1,"x"]}}`,
		},
		{
			name:  "escaped pointer",
			doc:   `{"a/b":{"c~d":1}}`,
			patch: `[{"op":"replace","path":"/a~1b/c~0d","value":2}]`,
			want:  `{"a/b":{"c~d":2}}`,
		},
		{
			name:  "string append",
			doc:   `{"text":"Hello"}`,
			patch: `[{"op":"string-append","path":"/text","value":" World"}]`,
			want:  `{"text":"Hello World"}`,
		},
		{
			name:  "string append to missing",
			doc:   `{}`,
			patch: `[{"op":"string-append","path":"/text","value":"Hi"}]`,
			want:  `{"text":"Hi"}`,
		},
		{
			name:  "string append to null",
			doc:   `{"text":null}`,
			patch: `[{"op":"string-append","path":"/text","value":"Hi"}]`,
			want:  `{"text":"Hi"}`,
		},
		{
			name:  "string append at root",
			doc:   `"H"`,
			patch: `[{"op":"string-append","path":"","value":"e"}]`,
			want:  `"He"`,
		},
		{
			name:  "string diff",
			doc:   `{"text":"Hello, World"}`,
			patch: `[{"op":"string-diff","path":"/text","diff":[{"type":"retain","count":5},{"type":"insert","value":"X"},{"type":"delete","count":2}]}]`,
			want:  `{"text":"HelloXWorld"}`,
		},
		{
			name:  "string diff in array",
			doc:   `{"items":["abc"]}`,
			patch: `[{"op":"string-diff","path":"/items/0","diff":[{"type":"delete","count":1},{"type":"insert","value":"z"}]}]`,
			want:  `{"items":["zbc"]}`,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc := decodeValue(t, tt.doc)
			got, err := Apply(doc, decodePatch(t, tt.patch))
			require.NoError(t, err)
			require.Equal(t, decodeValue(t, tt.want), got)
			require.Equal(t, decodeValue(t, tt.doc), doc, "input must not be modified")
		})
	}
}

func TestApplyErrors(t *testing.T) {
	tests := []struct {
		name  string
		doc   string
		patch string
		err   error
	}{
		{"missing parent", `{}`, `[{"op":"add","path":"/a/b","value":1}]`, ErrPathNotFound},
		{"remove missing", `{"a":1}`, `[{"op":"remove","path":"/b"}]`, ErrPathNotFound},
		{"replace missing", `{"a":1}`, `[{"op":"replace","path":"/b","value":1}]`, ErrPathNotFound},
		{"index out of range", `{"a":[1]}`, `[{"op":"replace","path":"/a/3","value":1}]`, ErrInvalidIndex},
		{"leading zero index", `{"a":[1,2]}`, `[{"op":"remove","path":"/a/01"}]`, ErrInvalidIndex},
		{"bad pointer", `{}`, `[{"op":"add","path":"a","value":1}]`, ErrInvalidPointer},
		{"test mismatch", `{"a":1}`, `[{"op":"test","path":"/a","value":2}]`, ErrTestFailed},
		{"move into child", `{"a":{"b":{}}}`, `[{"op":"move","from":"/a","path":"/a/b/c"}]`, ErrInvalidOperation},
		{"append to number", `{"n":5}`, `[{"op":"string-append","path":"/n","value":"x"}]`, ErrNotString},
		{"diff on object", `{"o":{}}`, `[{"op":"string-diff","path":"/o","diff":[{"type":"insert","value":"x"}]}]`, ErrNotString},
		{"retain past end", `{"s":"ab"}`, `[{"op":"string-diff","path":"/s","diff":[{"type":"retain","count":3}]}]`, ErrInvalidDiff},
		{"delete past end", `{"s":"ab"}`, `[{"op":"string-diff","path":"/s","diff":[{"type":"retain","count":1},{"type":"delete","count":2}]}]`, ErrInvalidDiff},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Apply(decodeValue(t, tt.doc), decodePatch(t, tt.patch))
			require.ErrorIs(t, err, tt.err)
			var patchErr *Error
			require.ErrorAs(t, err, &patchErr)
		})
	}
}

func TestApplyAbortsWholePatch(t *testing.T) {
	doc := decodeValue(t, `{"a":1}`)
	_, err := Apply(doc, decodePatch(t, `[{"op":"replace","path":"/a","value":2},{"op":"remove","path":"/missing"}]`))
	require.Error(t, err)
	require.Equal(t, decodeValue(t, `{"a":1}`), doc)
}

func TestOperationJSON(t *testing.T) {
	t.Run("null value is kept", func(t *testing.T) {
		data, err := json.Marshal(Replace("/a", nil))
		require.NoError(t, err)
		require.JSONEq(t, `{"op":"replace","path":"/a","value":null}`, string(data))
	})

	t.Run("string diff shape", func(t *testing.T) {
		op := StringDiff("/text", []Segment{
			{Type: SegmentRetain, Count: 5},
			{Type: SegmentInsert, Value: "X"},
			{Type: SegmentDelete, Count: 2},
		})
		data, err := json.Marshal(op)
		require.NoError(t, err)
		require.JSONEq(t, `{"op":"string-diff","path":"/text","diff":[{"type":"retain","count":5},{"type":"insert","value":"X"},{"type":"delete","count":2}]}`, string(data))
	})

	t.Run("missing value is rejected", func(t *testing.T) {
		var op Operation
		err := json.Unmarshal([]byte(`{"op":"add","path":"/a"}`), &op)
		require.ErrorIs(t, err, ErrInvalidOperation)
	})

	t.Run("unknown op is rejected", func(t *testing.T) {
		var op Operation
		err := json.Unmarshal([]byte(`{"op":"merge","path":"/a"}`), &op)
		require.ErrorIs(t, err, ErrInvalidOperation)
	})

	t.Run("non-string append is rejected", func(t *testing.T) {
		var op Operation
		err := json.Unmarshal([]byte(`{"op":"string-append","path":"/a","value":1}`), &op)
		require.ErrorIs(t, err, ErrInvalidOperation)
	})
}

func TestPointer(t *testing.T) {
	tokens, err := ParsePointer("/a~1b/c~0d/0")
	require.NoError(t, err)
	require.Equal(t, []string{"a/b", "c~d", "0"}, tokens)
	require.Equal(t, "/a~1b/c~0d/0", FormatPointer(tokens...))

	tokens, err = ParsePointer("")
	require.NoError(t, err)
	require.Empty(t, tokens)

	_, err = ParsePointer("missing-slash")
	require.ErrorIs(t, err, ErrInvalidPointer)
}
