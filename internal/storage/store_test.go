package storage

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/raine/telegram-skinwise-bot/internal/entitlement"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *SQLiteStore {
	key, err := DeriveKey("test-passphrase")
	require.NoError(t, err)
	store, err := NewSQLiteStore(":memory:", key)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestSQLiteStore_ProfileLifecycle(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	_, err := store.GetProfile(ctx, "tg:1")
	assert.ErrorIs(t, err, entitlement.ErrProfileNotFound)

	state, err := store.CreateProfile(ctx, "tg:1", entitlement.State{TrialCount: 3})
	require.NoError(t, err)
	assert.Equal(t, entitlement.State{TrialCount: 3}, state)

	// Creating again keeps the existing row.
	state, err = store.CreateProfile(ctx, "tg:1", entitlement.State{TrialCount: 99, HasPaid: true})
	require.NoError(t, err)
	assert.Equal(t, entitlement.State{TrialCount: 3}, state)

	require.NoError(t, store.SetPaid(ctx, "tg:1", true))
	require.NoError(t, store.SetTrialCount(ctx, "tg:1", 7))
	state, err = store.GetProfile(ctx, "tg:1")
	require.NoError(t, err)
	assert.Equal(t, entitlement.State{TrialCount: 7, HasPaid: true}, state)

	assert.ErrorIs(t, store.SetPaid(ctx, "tg:missing", true), entitlement.ErrProfileNotFound)
}

func TestSQLiteStore_ConsumeTrial(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	_, err := store.CreateProfile(ctx, "unpaid", entitlement.State{TrialCount: 1})
	require.NoError(t, err)
	_, err = store.CreateProfile(ctx, "paid", entitlement.State{TrialCount: 0, HasPaid: true})
	require.NoError(t, err)
	_, err = store.CreateProfile(ctx, "owner", entitlement.State{TrialCount: entitlement.UnlimitedTrials, HasPaid: true})
	require.NoError(t, err)

	state, err := store.ConsumeTrial(ctx, "unpaid")
	require.NoError(t, err)
	assert.Equal(t, 0, state.TrialCount)

	_, err = store.ConsumeTrial(ctx, "unpaid")
	assert.ErrorIs(t, err, entitlement.ErrExhausted)

	state, err = store.ConsumeTrial(ctx, "paid")
	require.NoError(t, err)
	assert.Equal(t, entitlement.State{TrialCount: 0, HasPaid: true}, state)

	state, err = store.ConsumeTrial(ctx, "owner")
	require.NoError(t, err)
	assert.Equal(t, entitlement.UnlimitedTrials, state.TrialCount)

	_, err = store.ConsumeTrial(ctx, "nobody")
	assert.ErrorIs(t, err, entitlement.ErrProfileNotFound)
}

func TestSQLiteStore_ConsumeTrialConcurrent(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	_, err := store.CreateProfile(ctx, "u", entitlement.State{TrialCount: 2})
	require.NoError(t, err)

	var wg sync.WaitGroup
	results := make(chan error, 8)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := store.ConsumeTrial(ctx, "u")
			results <- err
		}()
	}
	wg.Wait()
	close(results)

	ok := 0
	for err := range results {
		if err == nil {
			ok++
		} else {
			assert.ErrorIs(t, err, entitlement.ErrExhausted)
		}
	}
	assert.Equal(t, 2, ok)

	state, err := store.GetProfile(ctx, "u")
	require.NoError(t, err)
	assert.Equal(t, 0, state.TrialCount)
}

func TestSQLiteStore_Analyses(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	base := time.Date(2026, 1, 2, 10, 0, 0, 0, time.UTC)
	require.NoError(t, store.SaveAnalysis(ctx, StoredAnalysis{ID: "a1", UserID: "u", Payload: []byte(`{"n":1}`), CreatedAt: base}))
	require.NoError(t, store.SaveAnalysis(ctx, StoredAnalysis{ID: "a2", UserID: "u", Payload: []byte(`{"n":2}`), CreatedAt: base.Add(time.Minute)}))
	require.NoError(t, store.SaveAnalysis(ctx, StoredAnalysis{ID: "b1", UserID: "other", Payload: []byte(`{"n":3}`), CreatedAt: base}))

	list, err := store.ListAnalyses(ctx, "u", 10)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "a2", list[0].ID)
	assert.Equal(t, []byte(`{"n":2}`), list[0].Payload)

	got, err := store.GetAnalysis(ctx, "u", "a1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, []byte(`{"n":1}`), got.Payload)

	// Other users' analyses are not visible.
	got, err = store.GetAnalysis(ctx, "u", "b1")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestSQLiteStore_ReassignedRowDoesNotDecrypt(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	require.NoError(t, store.SaveAnalysis(ctx, StoredAnalysis{ID: "a1", UserID: "victim", Payload: []byte(`{}`), CreatedAt: time.Now()}))
	_, err := store.db.ExecContext(ctx, "UPDATE analyses SET user_id = ? WHERE id = ?", "attacker", "a1")
	require.NoError(t, err)

	_, err = store.GetAnalysis(ctx, "attacker", "a1")
	assert.Error(t, err)

	list, err := store.ListAnalyses(ctx, "attacker", 10)
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestEncryptDecrypt(t *testing.T) {
	key, err := DeriveKey("secret")
	require.NoError(t, err)
	assert.Len(t, key, 32)

	ad := analysisAD("tg:1", "a1")
	enc, err := Encrypt([]byte("hello"), key, ad)
	require.NoError(t, err)
	assert.NotContains(t, enc, "hello")

	dec, err := Decrypt(enc, key, ad)
	require.NoError(t, err)
	assert.Equal(t, []byte("hello"), dec)

	otherKey, err := DeriveKey("other")
	require.NoError(t, err)
	_, err = Decrypt(enc, otherKey, ad)
	assert.Error(t, err)

	_, err = Decrypt(enc, key, analysisAD("tg:2", "a1"))
	assert.Error(t, err)

	_, err = DeriveKey("")
	assert.Error(t, err)
}
