package keys

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPathPrefix(t *testing.T) {
	sep := SeparatorString

	tests := []struct {
		name     string
		mode     RootMode
		children []string
		prefix   string
	}{
		{name: "separated root", mode: SeparatedRoot, prefix: "first" + sep},
		{name: "legacy root", mode: LegacyRoot, prefix: "first"},
		{name: "separated nested", mode: SeparatedRoot, children: []string{"inner1", "inner2"}, prefix: "first" + sep + "inner1" + sep + "inner2" + sep},
		{name: "legacy nested", mode: LegacyRoot, children: []string{"inner1", "inner2"}, prefix: "firstinner1" + sep + "inner2" + sep},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := Root("first", tt.mode)
			require.NoError(t, err)

			for _, child := range tt.children {
				p, err = p.Child(child)
				require.NoError(t, err)
			}

			assert.Equal(t, tt.prefix, string(p.Prefix()))
			assert.Equal(t, len(tt.children)+1, p.Depth())
			assert.Equal(t, tt.mode, p.Mode())
		})
	}
}

func TestPathChildDoesNotMutateParent(t *testing.T) {
	root, err := Root("root", SeparatedRoot)
	require.NoError(t, err)

	a, err := root.Child("a")
	require.NoError(t, err)
	b, err := root.Child("b")
	require.NoError(t, err)

	assert.Equal(t, []string{"root"}, root.Segments())
	assert.Equal(t, "root/a", a.String())
	assert.Equal(t, "root/b", b.String())
	assert.Equal(t, "b", b.Name())
	assert.Equal(t, "root"+SeparatorString, string(root.Prefix()))
}

func TestSeparatedRootDoesNotAlias(t *testing.T) {
	fir, err := Root("fir", SeparatedRoot)
	require.NoError(t, err)
	first, err := Root("first", SeparatedRoot)
	require.NoError(t, err)

	assert.False(t, HasPrefix(Compose(first.Prefix(), "a"), fir.Prefix()))

	legacyFir, err := Root("fir", LegacyRoot)
	require.NoError(t, err)
	legacyFirst, err := Root("first", LegacyRoot)
	require.NoError(t, err)

	assert.True(t, HasPrefix(Compose(legacyFirst.Prefix(), "a"), legacyFir.Prefix()))
}

func TestParsePath(t *testing.T) {
	p, err := ParsePath("/first/inner1/", SeparatedRoot)
	require.NoError(t, err)
	assert.Equal(t, []string{"first", "inner1"}, p.Segments())

	_, err = ParsePath("first//inner1", SeparatedRoot)
	assert.ErrorIs(t, err, ErrInvalidName)

	_, err = ParsePath("", SeparatedRoot)
	assert.ErrorIs(t, err, ErrInvalidName)
}
