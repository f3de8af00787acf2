package usecase_session

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/paramsgit/scribble/internal/model"
)

func initRegistry(t *testing.T, r *sessionResources) *Registry {
	t.Helper()
	return NewRegistry(
		r.deps.cfg,
		r.deps.scheduler,
		r.transport,
		r.store,
		WithLogger(testLogger()),
		WithScoreStore(r.scores),
	)
}

func TestCreateOrLoad(t *testing.T) {
	t.Parallel()

	t.Run("Should return same session on repeat calls", func(t *testing.T) {
		t.Parallel()
		r := initSessionResources(t)
		reg := initRegistry(t, r)

		first := reg.CreateOrLoad(r.ctx, "room-test01", players("p1"))
		second := reg.CreateOrLoad(r.ctx, "room-test01", players("p2"))

		assert.Same(t, first, second)
		assert.Equal(t, 1, reg.Count())
	})

	t.Run("Should restore mid-round session from snapshot", func(t *testing.T) {
		t.Parallel()
		r := initSessionResources(t)
		reg := initRegistry(t, r)

		started := r.clock.Now().Add(-5 * time.Second)
		require.NoError(t, r.store.Save(r.ctx, &Snapshot{
			RoomID:           "room-test01",
			Players:          players("p1", "p2"),
			WordList:         []string{"apple"},
			CurrentWordIndex: 0,
			CurrentWord:      CurrentWord{Text: "apple", StartedAt: started, SequenceID: "seq-1"},
			DrawerID:         "p1",
			State:            StateDrawing,
		}))

		s := reg.CreateOrLoad(r.ctx, "room-test01", nil)
		assert.Equal(t, StateDrawing, s.State())
		assert.Equal(t, "p1", s.DrawerID())

		// 15s of the 20s round were left; the rearmed timer honors them.
		r.clock.Advance(14 * time.Second)
		time.Sleep(20 * time.Millisecond)
		assert.Equal(t, "p1", s.DrawerID())

		r.clock.Advance(time.Second)
		require.Eventually(t, func() bool {
			return s.DrawerID() == "p2"
		}, waitFor, tick)
	})

	t.Run("Should advance immediately when restored round already expired", func(t *testing.T) {
		t.Parallel()
		r := initSessionResources(t)
		reg := initRegistry(t, r)

		started := r.clock.Now().Add(-time.Minute)
		require.NoError(t, r.store.Save(r.ctx, &Snapshot{
			RoomID:      "room-test01",
			Players:     players("p1", "p2"),
			WordList:    []string{"apple"},
			CurrentWord: CurrentWord{Text: "apple", StartedAt: started, SequenceID: "seq-1"},
			DrawerID:    "p1",
			State:       StateDrawing,
		}))

		s := reg.CreateOrLoad(r.ctx, "room-test01", nil)

		r.clock.Advance(time.Millisecond)
		require.Eventually(t, func() bool {
			return s.DrawerID() == "p2"
		}, waitFor, tick)
	})

	t.Run("Should ignore finished snapshot", func(t *testing.T) {
		t.Parallel()
		r := initSessionResources(t)
		reg := initRegistry(t, r)

		require.NoError(t, r.store.Save(r.ctx, &Snapshot{
			RoomID:  "room-test01",
			Players: players("p1", "p2"),
			State:   StateFinished,
		}))

		s := reg.CreateOrLoad(r.ctx, "room-test01", players("p3"))
		assert.Equal(t, StateWaiting, s.State())
		assert.Equal(t, []model.Player{{ID: "p3", Name: "player-p3"}}, s.Players())
	})
}

func TestAddPlayerToSession(t *testing.T) {
	t.Parallel()
	r := initSessionResources(t)
	reg := initRegistry(t, r)

	s := reg.AddPlayerToSession(r.ctx, "room-test01", players("p1")[0])
	assert.Len(t, s.Players(), 1)

	again := reg.AddPlayerToSession(r.ctx, "room-test01", players("p2")[0])
	assert.Same(t, s, again)
	assert.Len(t, s.Players(), 2)
}

func TestRegistryRemovesFinishedSession(t *testing.T) {
	t.Parallel()
	r := initSessionResources(t)
	reg := initRegistry(t, r)

	reg.AddPlayerToSession(r.ctx, "room-test01", players("p1")[0])
	s := reg.AddPlayerToSession(r.ctx, "room-test01", players("p2")[0])
	require.Equal(t, 1, reg.Count())

	s.HandlePlayerLeft(r.ctx, "p2")

	assert.Equal(t, StateFinished, s.State())
	assert.Zero(t, reg.Count())
	assert.Nil(t, reg.GetSession("room-test01"))
}

func TestGetDrawerID(t *testing.T) {
	t.Parallel()
	r := initSessionResources(t)
	reg := initRegistry(t, r)

	assert.Empty(t, reg.GetDrawerID("room-nosuch"))

	reg.AddPlayerToSession(r.ctx, "room-test01", players("p1")[0])
	reg.AddPlayerToSession(r.ctx, "room-test01", players("p2")[0])

	r.clock.Advance(testWaitDuration)
	require.Eventually(t, func() bool {
		return reg.GetDrawerID("room-test01") == "p1"
	}, waitFor, tick)
}
