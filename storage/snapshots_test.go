package storage

import (
	"sync"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ferreirogomes/greenfund/models"
)

var account = common.HexToAddress("0x00000000000000000000000000000000000000b2")

func TestUpdateAssignsIncreasingVersions(t *testing.T) {
	store := NewSnapshotStore()
	assert.Nil(t, store.Load())

	first, ok := store.Update(func(prev *models.SessionSnapshot) *models.SessionSnapshot {
		assert.Nil(t, prev)
		return &models.SessionSnapshot{Account: account, Role: models.RoleBuyer}
	})
	require.True(t, ok)

	second, ok := store.Update(func(prev *models.SessionSnapshot) *models.SessionSnapshot {
		next := *prev
		next.Role = models.RoleOwner
		return &next
	})
	require.True(t, ok)

	assert.Greater(t, second.Version, first.Version)
	assert.Equal(t, models.RoleBuyer, first.Role, "published snapshots are never modified")
	assert.Same(t, second, store.Load())
	assert.False(t, second.UpdatedAt.IsZero())
}

func TestUpdateDiscardsNil(t *testing.T) {
	store := NewSnapshotStore()
	published, _ := store.Update(func(*models.SessionSnapshot) *models.SessionSnapshot {
		return &models.SessionSnapshot{Account: account}
	})

	got, ok := store.Update(func(*models.SessionSnapshot) *models.SessionSnapshot { return nil })

	assert.False(t, ok)
	assert.Same(t, published, got)
	assert.Same(t, published, store.Load())
}

func TestConcurrentUpdatesAreNotLost(t *testing.T) {
	store := NewSnapshotStore()
	store.Update(func(*models.SessionSnapshot) *models.SessionSnapshot {
		return &models.SessionSnapshot{Balances: []models.TokenBalance{}}
	})

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			store.Update(func(prev *models.SessionSnapshot) *models.SessionSnapshot {
				next := *prev
				next.Balances = append(append([]models.TokenBalance(nil), prev.Balances...), models.TokenBalance{})
				return &next
			})
		}()
	}
	wg.Wait()

	assert.Len(t, store.Load().Balances, 50)
}

func TestSubscribeReceivesLatest(t *testing.T) {
	store := NewSnapshotStore()
	updates, cancel := store.Subscribe()
	defer cancel()

	for i := 0; i < 3; i++ {
		store.Update(func(*models.SessionSnapshot) *models.SessionSnapshot {
			return &models.SessionSnapshot{Account: account}
		})
	}

	got := <-updates
	assert.Equal(t, store.Load().Version, got.Version, "a slow subscriber sees the newest snapshot")

	select {
	case extra := <-updates:
		t.Fatalf("unexpected snapshot version %d", extra.Version)
	default:
	}
}

func TestCancelClosesSubscription(t *testing.T) {
	store := NewSnapshotStore()
	updates, cancel := store.Subscribe()

	cancel()
	cancel()

	_, open := <-updates
	assert.False(t, open)
}

func TestReset(t *testing.T) {
	store := NewSnapshotStore()
	store.Update(func(*models.SessionSnapshot) *models.SessionSnapshot {
		return &models.SessionSnapshot{Account: account}
	})

	store.Reset()

	assert.Nil(t, store.Load())
}

func TestResetAdvancesEpoch(t *testing.T) {
	store := NewSnapshotStore()
	assert.Equal(t, uint64(0), store.Epoch())

	first := store.Reset()
	second := store.Reset()

	assert.Greater(t, second, first)
	assert.Equal(t, second, store.Epoch())
}

func TestUpdateInRejectsOldEpoch(t *testing.T) {
	store := NewSnapshotStore()
	old := store.Epoch()
	store.Reset()

	called := false
	got, ok := store.UpdateIn(old, func(*models.SessionSnapshot) *models.SessionSnapshot {
		called = true
		return &models.SessionSnapshot{Account: account}
	})

	assert.False(t, ok)
	assert.Nil(t, got)
	assert.False(t, called)
	assert.Nil(t, store.Load())
}

func TestUpdateInWithdrawsSnapshotWhenResetDuringBuild(t *testing.T) {
	store := NewSnapshotStore()
	epoch := store.Reset()
	updates, cancel := store.Subscribe()
	defer cancel()

	got, ok := store.UpdateIn(epoch, func(prev *models.SessionSnapshot) *models.SessionSnapshot {
		assert.Nil(t, prev)
		// Another account becomes active after the caller checked its own.
		store.Reset()
		return &models.SessionSnapshot{Account: account}
	})

	assert.False(t, ok)
	assert.Nil(t, got)
	assert.Nil(t, store.Load())
	select {
	case snap := <-updates:
		t.Fatalf("snapshot version %d was broadcast", snap.Version)
	default:
	}
}

func TestUpdateInKeepsNewerEpochSnapshot(t *testing.T) {
	store := NewSnapshotStore()
	epoch := store.Reset()
	other := common.HexToAddress("0x00000000000000000000000000000000000000c3")

	var newer *models.SessionSnapshot
	_, ok := store.UpdateIn(epoch, func(*models.SessionSnapshot) *models.SessionSnapshot {
		next := store.Reset()
		newer, _ = store.UpdateIn(next, func(*models.SessionSnapshot) *models.SessionSnapshot {
			return &models.SessionSnapshot{Account: other}
		})
		return &models.SessionSnapshot{Account: account}
	})

	assert.False(t, ok)
	require.NotNil(t, newer)
	assert.Same(t, newer, store.Load())
}
