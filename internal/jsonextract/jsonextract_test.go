package jsonextract

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractFencedWithCommentary(t *testing.T) {
	text := "Here are the competitors I found:\n```json\n[\"b.com\", \"c.com\"]\n```\nLet me know if you need more."

	doc, ok := ExtractArray(text)
	require.True(t, ok)
	assert.Equal(t, `["b.com", "c.com"]`, doc)
}

func TestExtractValidDocumentUnchanged(t *testing.T) {
	docs := []struct {
		text  string
		shape Shape
	}{
		{`{"a":1,"b":[1,2,{"c":"}"}]}`, Object},
		{`[{"name":"Latte","price":4.5}]`, Array},
		{`{}`, Object},
		{`[]`, Array},
	}

	for _, d := range docs {
		got, ok := Extract(d.text, d.shape)
		assert.True(t, ok, d.text)
		assert.Equal(t, d.text, got)
	}
}

func TestExtractBalancedSpan(t *testing.T) {
	text := `Sure! The analysis is {"domain": "b.com", "note": "uses {braces} and \"quotes\""} as requested.`

	doc, ok := ExtractObject(text)
	require.True(t, ok)
	assert.Equal(t, `{"domain": "b.com", "note": "uses {braces} and \"quotes\""}`, doc)
}

func TestExtractSkipsInvalidSpans(t *testing.T) {
	text := `Options {not json} then {"ok": true}`

	doc, ok := ExtractObject(text)
	require.True(t, ok)
	assert.Equal(t, `{"ok": true}`, doc)
}

func TestExtractCleanup(t *testing.T) {
	tests := []struct {
		name  string
		text  string
		shape Shape
		want  string
	}{
		{
			name:  "trailing commas and bare keys",
			text:  `result: {name: "Latte", price: 4.5, tags: ["a", "b",],}`,
			shape: Object,
			want:  `{"name": "Latte", "price": 4.5, "tags": ["a", "b"]}`,
		},
		{
			name:  "single quotes",
			text:  `[{'name': 'Joe's Diner', 'open': True}]`,
			shape: Array,
			want:  `[{"name": "Joe's Diner", "open": true}]`,
		},
		{
			name:  "escaped document",
			text:  `{\"score\": 80}`,
			shape: Object,
			want:  `{"score": 80}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := Extract(tt.text, tt.shape)
			require.True(t, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestExtractFailureReturnsEmptyShape(t *testing.T) {
	doc, ok := ExtractObject("I could not find any competitors.")
	assert.False(t, ok)
	assert.Equal(t, "{}", doc)

	doc, ok = ExtractArray("")
	assert.False(t, ok)
	assert.Equal(t, "[]", doc)
}

func TestExtractShapeMismatch(t *testing.T) {
	doc, ok := ExtractArray(`{"a": 1}`)
	assert.False(t, ok)
	assert.Equal(t, "[]", doc)
}

func TestDecode(t *testing.T) {
	var out struct {
		MatchScore *float64 `json:"matchScore"`
		Reasons    []string `json:"matchReasons"`
	}

	ok := Decode("```\n{\"matchScore\": 72.5, \"matchReasons\": [\"same city\"]}\n```", Object, &out)
	require.True(t, ok)
	require.NotNil(t, out.MatchScore)
	assert.Equal(t, 72.5, *out.MatchScore)
	assert.Equal(t, []string{"same city"}, out.Reasons)

	var list []string
	assert.False(t, Decode("nothing here", Array, &list))
	// valid JSON but wrong types
	assert.False(t, Decode(`[1, 2]`, Array, &list))
}
