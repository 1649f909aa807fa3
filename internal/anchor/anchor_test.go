package anchor

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/docsync/internal/host"
)

func TestParseInjectStrip(t *testing.T) {
	content := Inject("hello\nworld", "m-1")
	assert.Equal(t, "<!-- docsync:id=m-1 -->\nhello\nworld", content)

	id, ok := Parse(content)
	assert.True(t, ok)
	assert.Equal(t, "m-1", id)
	assert.Equal(t, "hello\nworld", Strip(content))

	// Re-injecting replaces rather than stacks.
	assert.Equal(t, "<!-- docsync:id=m-2 -->\nhello\nworld", Inject(content, "m-2"))

	_, ok = Parse("hello <!-- docsync:id=m-3 -->")
	assert.False(t, ok, "anchor must be on the first line")
}

func TestEnsure_Idempotent(t *testing.T) {
	ctx := context.Background()
	mem := host.NewMemory()
	mem.Seed(host.Commit{Role: host.RoleAssistant, Content: "<insert>a: 1</insert>"})
	a := New(mem, NewFixedGenerator("m-1"), nil)

	c, first, err := a.Fetch(ctx, 0)
	require.NoError(t, err)
	assert.Equal(t, "m-1", first)
	assert.Equal(t, "<!-- docsync:id=m-1 -->\n<insert>a: 1</insert>", c.Content)

	// FixedGenerator would panic on a second Generate.
	_, second, err := a.Fetch(ctx, 0)
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Equal(t, 1, mem.Writes())

	id, err := a.Ensure(ctx, &c)
	require.NoError(t, err)
	assert.Equal(t, first, id)
}

func TestEnsure_NewVariantGetsNewID(t *testing.T) {
	ctx := context.Background()
	mem := host.NewMemory()
	mem.Seed(host.Commit{Role: host.RoleAssistant, Content: "v1"})
	a := New(mem, NewSequenceGenerator("m"), nil)

	_, id1, err := a.Fetch(ctx, 0)
	require.NoError(t, err)
	require.NoError(t, mem.Swipe(0, "v2"))
	_, id2, err := a.Fetch(ctx, 0)
	require.NoError(t, err)

	assert.NotEqual(t, id1, id2)

	require.NoError(t, mem.SwitchVariant(0, 0))
	_, back, err := a.Fetch(ctx, 0)
	require.NoError(t, err)
	assert.Equal(t, id1, back, "the first variant kept its anchor")
}

func TestFetch_MissingCommit(t *testing.T) {
	a := New(host.NewMemory(), NewFixedGenerator(), nil)
	_, _, err := a.Fetch(context.Background(), 3)

	var ie *IdentityError
	require.ErrorAs(t, err, &ie)
	assert.Equal(t, 3, ie.Position)
	assert.ErrorIs(t, err, host.ErrUnknownCommit)
}

func TestUUIDv7Generator(t *testing.T) {
	g := UUIDv7Generator{}
	a, b := g.Generate(), g.Generate()
	assert.NotEqual(t, a, b)

	parsed, err := uuid.Parse(a)
	require.NoError(t, err)
	assert.Equal(t, uuid.Version(7), parsed.Version())

	id, ok := Parse(Inject("x", a))
	assert.True(t, ok)
	assert.Equal(t, a, id)
}

func TestFixedGenerator_PanicsWhenExhausted(t *testing.T) {
	g := NewFixedGenerator("only")
	assert.Equal(t, "only", g.Generate())
	assert.Panics(t, func() { g.Generate() })
}

func TestReanchor_ReplacesDuplicate(t *testing.T) {
	ctx := context.Background()
	mem := host.NewMemory()
	dup := Inject("copied", "m-1")
	mem.Seed(host.Commit{Role: host.RoleAssistant, Content: dup}, host.Commit{Role: host.RoleAssistant, Content: dup})
	a := New(mem, NewFixedGenerator("m-2"), nil)

	commits, err := host.All(ctx, mem)
	require.NoError(t, err)
	id, err := a.Reanchor(ctx, &commits[1])
	require.NoError(t, err)
	assert.Equal(t, "m-2", id)
	assert.Equal(t, "<!-- docsync:id=m-2 -->\ncopied", commits[1].Content)

	stored, err := host.All(ctx, mem)
	require.NoError(t, err)
	assert.Equal(t, commits[1].Content, stored[1].Content)
	assert.Equal(t, dup, stored[0].Content)
}
