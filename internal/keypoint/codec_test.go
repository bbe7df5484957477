package keypoint

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeRecordsForms(t *testing.T) {
	doc := `
0:
  is_interp: false
  is_visible: true
  u: 120
  v: 45
3:
  is_interp: true
  is_visible: true
  u: 7
  v: 9
5:
  is_visible: false
8:
  is_interp: false
  is_visible: false
  u: 1
  v: 2
`
	got, err := DecodeRecords([]byte(doc))
	require.NoError(t, err)

	want := map[int]Record{
		0: Manual(120, 45),
		3: Interpolated(7, 9),
		5: Hidden(),
		8: Hidden(),
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("DecodeRecords mismatch (-want +got):\n%s", diff)
	}
}

func TestDecodeRecordsEmpty(t *testing.T) {
	for _, doc := range []string{"", "{}\n", "null\n"} {
		got, err := DecodeRecords([]byte(doc))
		require.NoError(t, err, "doc %q", doc)
		assert.Empty(t, got, "doc %q", doc)
	}
}

func TestDecodeRecordsCorrupt(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{"not a mapping", "- 1\n- 2\n"},
		{"missing visibility", "1:\n  u: 3\n  v: 4\n"},
		{"visible without coordinates", "1:\n  is_visible: true\n  u: 3\n"},
		{"unknown field", "1:\n  is_visible: false\n  colour: red\n"},
		{"non-integer key", "abc:\n  is_visible: false\n"},
		{"negative id", "-2:\n  is_visible: false\n"},
		{"garbage", "::: not yaml :::\n\t-"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodeRecords([]byte(tt.doc))
			assert.Error(t, err)
		})
	}
}

func TestEncodeRecordsShape(t *testing.T) {
	data, err := EncodeRecords(map[int]Record{
		2: Hidden(),
		1: Manual(10, 20),
	})
	require.NoError(t, err)

	text := string(data)
	// IDs are written in ascending order; hidden records use the reduced form.
	assert.Less(t, strings.Index(text, "1:"), strings.Index(text, "2:"))
	assert.Contains(t, text, "is_interp: false")
	assert.Contains(t, text, "u: 10")

	hidden := text[strings.Index(text, "2:"):]
	assert.Contains(t, hidden, "is_visible: false")
	assert.NotContains(t, hidden, "u:")
	assert.NotContains(t, hidden, "is_interp")

	back, err := DecodeRecords(data)
	require.NoError(t, err)
	assert.Equal(t, Manual(10, 20), back[1])
	assert.Equal(t, Hidden(), back[2])
}

func TestRecordVariants(t *testing.T) {
	assert.True(t, Manual(1, 2).Visible())
	assert.False(t, Manual(1, 2).IsInterp())
	assert.True(t, Interpolated(1, 2).Visible())
	assert.True(t, Interpolated(1, 2).IsInterp())
	assert.False(t, Hidden().Visible())
	assert.False(t, Hidden().IsInterp())

	assert.True(t, Pair{Manual(1, 2), Manual(3, 2)}.IsAnchor())
	assert.False(t, Pair{Manual(1, 2), Interpolated(3, 2)}.IsAnchor())
	assert.False(t, Pair{Manual(1, 2), Hidden()}.IsAnchor())
	assert.True(t, Pair{Hidden(), Hidden()}.Hidden())
	assert.False(t, Pair{Hidden(), Manual(0, 0)}.Hidden())

	assert.Equal(t, "manual(1,2)", Manual(1, 2).String())
	assert.Equal(t, "hidden", Hidden().String())
	assert.Equal(t, "right", Right.String())
}
