package expr

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/buildcore/engine/internal/items"
)

func TestEscapeUnescapeRoundTrip(t *testing.T) {
	cases := []struct{ raw, escaped string }{
		{"a;1", "a%3b1"},
		{"a(2", "a%282"},
	}
	for _, c := range cases {
		assert.Equal(t, c.escaped, Escape(c.raw))
		assert.Equal(t, c.raw, Unescape(c.escaped))
	}
}

func TestParseReferenceKinds(t *testing.T) {
	nodes, err := Parse("@(File);$(unittests)")
	require.NoError(t, err)
	require.Len(t, nodes, 3)
	ref0, ok := nodes[0].(Reference)
	require.True(t, ok)
	assert.Equal(t, RefItemList, ref0.Kind)
	assert.Equal(t, "File", ref0.ItemType)

	lit, ok := nodes[1].(Literal)
	require.True(t, ok)
	assert.Equal(t, ";", lit.Text)

	ref2, ok := nodes[2].(Reference)
	require.True(t, ok)
	assert.Equal(t, RefProperty, ref2.Kind)
	assert.Equal(t, "unittests", ref2.PropertyName)
}

func TestParseQualifiedMetadataAndTransform(t *testing.T) {
	nodes, err := Parse("@(File->'%(extension)')")
	require.NoError(t, err)
	require.Len(t, nodes, 1)
	ref := nodes[0].(Reference)
	assert.Equal(t, RefItemList, ref.Kind)
	assert.True(t, ref.HasTransform)
	assert.Equal(t, "'%(extension)'", ref.Transform)

	nodes, err = Parse("%(File.Culture)")
	require.NoError(t, err)
	ref = nodes[0].(Reference)
	assert.Equal(t, RefMetadataQualified, ref.Kind)
	assert.Equal(t, "File", ref.ItemType)
	assert.Equal(t, "Culture", ref.MetaName)
}

func TestItemVectorConcatenationRejected(t *testing.T) {
	nodes, err := Parse("@(File)suffix")
	require.NoError(t, err)
	err = CheckItemVectorConcatenation(nodes)
	require.Error(t, err)
}

func TestSeparatorFormIsLegal(t *testing.T) {
	nodes, err := Parse("@(File, '.')")
	require.NoError(t, err)
	require.NoError(t, CheckItemVectorConcatenation(nodes))
	ref := nodes[0].(Reference)
	assert.True(t, ref.HasSeparator)
	assert.Equal(t, ".", ref.Separator)
}

type stubBinding struct {
	props      map[string]string
	full       map[string][]*items.Item
	bucket     map[string][]*items.Item
	inBatch    map[string]bool
	unqualMeta map[string]string
}

func (s stubBinding) Property(name string) (string, bool) {
	v, ok := s.props[name]
	return v, ok
}

func (s stubBinding) BucketItems(itemType string) ([]*items.Item, bool) {
	if s.inBatch[itemType] {
		return s.bucket[itemType], true
	}
	return nil, false
}

func (s stubBinding) FullList(itemType string) []*items.Item {
	return s.full[itemType]
}

func (s stubBinding) UnqualifiedMeta(name string) (string, bool) {
	v, ok := s.unqualMeta[name]
	return v, ok
}

func TestExpanderBasic(t *testing.T) {
	arena := items.NewArena()
	a := arena.NewItem("File", "a.foo", "p", nil, nil)

	b := stubBinding{
		props:      map[string]string{"obj": "obj"},
		full:       map[string][]*items.Item{"File": {a}},
		bucket:     map[string][]*items.Item{"File": {a}},
		inBatch:    map[string]bool{"File": true},
		unqualMeta: map[string]string{"Filename": "a"},
	}
	exp := NewExpander(b)

	got, err := exp.Expand("$(obj)\\%(Filename).ext")
	require.NoError(t, err)
	assert.Equal(t, "obj\\a.ext", got)

	got, err = exp.Expand("@(File)")
	require.NoError(t, err)
	assert.Equal(t, "a.foo", got)

	got, err = exp.Expand("%(Extension)")
	require.NoError(t, err)
	assert.Equal(t, "", got)
}
