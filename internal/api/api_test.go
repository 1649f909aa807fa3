package api

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/docsync/internal/anchor"
	"github.com/roach88/docsync/internal/host"
	"github.com/roach88/docsync/internal/ir"
	"github.com/roach88/docsync/internal/ledger"
	"github.com/roach88/docsync/internal/patch"
	"github.com/roach88/docsync/internal/resync"
	"github.com/roach88/docsync/internal/scheduler"
	"github.com/roach88/docsync/internal/snapshot"
	"github.com/roach88/docsync/internal/testutil"
)

type fixture struct {
	ctx   context.Context
	host  *host.Memory
	sched *scheduler.Scheduler
	api   *API
}

func newFixture(t *testing.T, commits ...host.Commit) *fixture {
	t.Helper()
	logger := testutil.DiscardLogger()
	mem := host.NewMemory()
	mem.Seed(commits...)
	store := ledger.NewMemoryStore()
	anchors := anchor.New(mem, anchor.NewSequenceGenerator("gen"), logger)
	engine := resync.New(mem, store, anchors, resync.WithLogger(logger), resync.WithScope("chat"))
	sched := scheduler.New(engine, mem,
		scheduler.WithClock(testutil.NewAutoClock(time.Time{})),
		scheduler.WithLogger(logger))
	f := &fixture{
		ctx:   context.Background(),
		host:  mem,
		sched: sched,
		api:   New(mem, sched, store, "chat", WithLogger(logger)),
	}
	sched.Submit(f.ctx, scheduler.NewJob(scheduler.TriggerChatChanged, -1))
	return f
}

func (f *fixture) doc(t *testing.T) ir.IRObject {
	t.Helper()
	d, err := f.api.Document(f.ctx)
	require.NoError(t, err)
	return d
}

func TestAPI_PathMutations(t *testing.T) {
	f := newFixture(t,
		testutil.Bot("b0", "<insert>\nhero:\n  hp: 10\n</insert>"),
		testutil.User("u1", "attack"),
	)

	m, err := f.api.InsertByPath(f.ctx, "hero.mp", ir.IRInt(4))
	require.NoError(t, err)
	assert.Equal(t, 0, m.Position, "the newest commit that carries instructions")
	assert.Equal(t, scheduler.Started, m.Admission)
	assert.Equal(t, ir.IRObject{"hero": ir.IRObject{"hp": ir.IRInt(10), "mp": ir.IRInt(4)}}, f.doc(t))

	_, err = f.api.UpdateByPath(f.ctx, "hero.hp", ir.IRInt(6))
	require.NoError(t, err)
	_, err = f.api.DeleteByPath(f.ctx, "hero.mp")
	require.NoError(t, err)

	assert.Equal(t, ir.IRObject{"hero": ir.IRObject{"hp": ir.IRInt(6)}}, f.doc(t))

	commits, err := host.All(f.ctx, f.host)
	require.NoError(t, err)
	assert.Equal(t, 4, strings.Count(commits[0].Content, "</"), "the original block plus one per mutation")
	assert.Equal(t, "attack", anchor.Strip(commits[1].Content), "user commits are never written")
}

func TestAPI_ObjectMutationsSurviveReplay(t *testing.T) {
	f := newFixture(t, testutil.Bot("b0", "<insert>\nparty:\n  gold: 5\n</insert>"))

	_, err := f.api.UpdateByObject(f.ctx, ir.IRObject{"party": ir.IRObject{"gold": ir.IRInt(9)}})
	require.NoError(t, err)
	_, err = f.api.InsertByObject(f.ctx, ir.IRObject{"party": ir.IRObject{"pet": ir.IRString("rex")}})
	require.NoError(t, err)
	_, err = f.api.DeleteByObject(f.ctx, ir.IRObject{"party": ir.IRArray{ir.IRString("pet")}})
	require.NoError(t, err)
	want := ir.IRObject{"party": ir.IRObject{"gold": ir.IRInt(9)}}
	require.Equal(t, want, f.doc(t))

	// Reprocessing the commit from its content lands on the same document.
	f.sched.Submit(f.ctx, scheduler.NewJob(scheduler.TriggerMessageEdited, 0))
	assert.Equal(t, want, f.doc(t))
}

func TestAPI_MutationOrderFollowsContent(t *testing.T) {
	f := newFixture(t, testutil.Bot("b0", "<insert>x: 1</insert>"))

	_, err := f.api.DeleteByPath(f.ctx, "x")
	require.NoError(t, err)
	_, err = f.api.InsertByPath(f.ctx, "x", ir.IRInt(2))
	require.NoError(t, err)

	// The commit now holds two inserts and a delete; deletes run last.
	live := f.doc(t)
	assert.Equal(t, ir.IRObject{}, live)

	f.sched.Submit(f.ctx, scheduler.NewJob(scheduler.TriggerMessageUpdated, 0))
	assert.Equal(t, live, f.doc(t))
}

func TestAPI_MutationWithoutTarget(t *testing.T) {
	f := newFixture(t, testutil.User("u0", "hi"))

	_, err := f.api.InsertByPath(f.ctx, "a", ir.IRInt(1))
	assert.ErrorIs(t, err, ErrNoTarget)

	_, err = f.api.InsertByPath(f.ctx, "", ir.IRInt(1))
	assert.Error(t, err)
}

func TestAPI_Snapshots(t *testing.T) {
	f := newFixture(t,
		testutil.Bot("b0", "<insert>\nday: 1\n</insert>"),
		testutil.Bot("b1", "<update>\nday: 2\n</update>"),
		testutil.Bot("b2", "<update>\nday: 3\n</update>"),
	)

	snap, err := f.api.SnapshotByID(f.ctx, "b1")
	require.NoError(t, err)
	assert.Equal(t, snapshot.Snapshot{ID: "b1", Position: 1, Document: ir.IRObject{"day": ir.IRInt(2)}}, snap)

	snap, err = f.api.SnapshotAt(f.ctx, 0)
	require.NoError(t, err)
	assert.Equal(t, "b0", snap.ID)
	assert.Equal(t, ir.IRObject{"day": ir.IRInt(1)}, snap.Document)

	snap, err = f.api.SnapshotAt(f.ctx, -1)
	require.NoError(t, err)
	assert.Equal(t, ir.IRObject{}, snap.Document)

	snaps, err := f.api.SnapshotsBetween(f.ctx, "b2", "b1")
	require.NoError(t, err)
	require.Len(t, snaps, 2)
	assert.Equal(t, "b1", snaps[0].ID)
	assert.Equal(t, ir.IRObject{"day": ir.IRInt(3)}, snaps[1].Document)

	snaps, err = f.api.SnapshotsBetweenPositions(f.ctx, 0, 2)
	require.NoError(t, err)
	assert.Len(t, snaps, 3)

	_, err = f.api.SnapshotsBetweenPositions(f.ctx, 0, 7)
	assert.ErrorIs(t, err, snapshot.ErrUnknownID)
	_, err = f.api.SnapshotByID(f.ctx, "nope")
	assert.ErrorIs(t, err, snapshot.ErrUnknownID)
}

func TestNest(t *testing.T) {
	got, err := nest(`a.b\.c`, ir.IRBool(true))
	require.NoError(t, err)
	assert.Equal(t, ir.IRObject{"a": ir.IRObject{"b.c": ir.IRBool(true)}}, got)

	block, err := patch.Render(patch.KindDelete, ir.IRObject{"a": ir.IRNull{}})
	require.NoError(t, err)
	assert.Equal(t, "<delete>\na: null\n</delete>", block)
}
