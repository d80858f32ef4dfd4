package store

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/lithammer/dedent"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/raine/listlift/internal/model"
	"github.com/raine/listlift/internal/storage"
)

var fixedNow = time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)

func openStore(t *testing.T, b storage.Backend) *Store {
	t.Helper()
	s, err := Open(context.Background(), b, WithClock(func() time.Time { return fixedNow }))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func newItem(id string) model.Item {
	created := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	return model.Item{
		ID:                id,
		Condition:         model.ConditionPreOwned,
		MarketplaceStatus: model.NewMarketplaceStatus(),
		CreatedAt:         created,
		UpdatedAt:         created,
	}
}

func ids(items []model.Item) []string {
	out := make([]string, len(items))
	for i, it := range items {
		out[i] = it.ID
	}
	return out
}

// failingBackend wraps a backend and fails writes on demand.
type failingBackend struct {
	storage.Backend
	mu      sync.Mutex
	putErr  error
	getErr  error
	putKeys []string
}

func (f *failingBackend) Put(ctx context.Context, key string, value []byte) error {
	f.mu.Lock()
	f.putKeys = append(f.putKeys, key)
	err := f.putErr
	f.mu.Unlock()
	if err != nil {
		return err
	}
	return f.Backend.Put(ctx, key, value)
}

func (f *failingBackend) Get(ctx context.Context, key string) ([]byte, error) {
	f.mu.Lock()
	err := f.getErr
	f.mu.Unlock()
	if err != nil {
		return nil, err
	}
	return f.Backend.Get(ctx, key)
}

func TestFreshMediumYieldsDefaults(t *testing.T) {
	s := openStore(t, storage.NewMemoryBackend())
	ctx := context.Background()

	items, err := s.Items(ctx)
	require.NoError(t, err)
	assert.NotNil(t, items)
	assert.Empty(t, items)

	a, err := s.Account(ctx)
	require.NoError(t, err)
	assert.NotEmpty(t, a.UserID)
	assert.Equal(t, model.PlanFree, a.Plan)
	assert.Equal(t, 0, a.Quotas.ProcessedListings)
	assert.Equal(t, model.PlanFree.ListingLimit(), a.Quotas.ProcessedListingsLimit)
	assert.Nil(t, a.EbayAuth)
	assert.Empty(t, a.Templates)
}

func TestUpsertDistinctItems(t *testing.T) {
	s := openStore(t, storage.NewMemoryBackend())
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		_, err := s.UpsertItem(ctx, newItem(fmt.Sprintf("item-%d", i)))
		require.NoError(t, err)
	}

	items, err := s.Items(ctx)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"item-0", "item-1", "item-2", "item-3", "item-4"}, ids(items))
}

func TestUpsertReplacesInPlace(t *testing.T) {
	s := openStore(t, storage.NewMemoryBackend())
	ctx := context.Background()

	for _, id := range []string{"a", "b", "c"} {
		_, err := s.UpsertItem(ctx, newItem(id))
		require.NoError(t, err)
	}

	updated := newItem("b")
	updated.Brand = "Levi's"
	stored, err := s.UpsertItem(ctx, updated)
	require.NoError(t, err)
	assert.Equal(t, fixedNow, stored.UpdatedAt)

	items, err := s.Items(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c"}, ids(items))
	assert.Equal(t, "Levi's", items[1].Brand)
	assert.Equal(t, fixedNow, items[1].UpdatedAt)
}

func TestDeleteUnknownIsNoop(t *testing.T) {
	fb := &failingBackend{Backend: storage.NewMemoryBackend()}
	s := openStore(t, fb)
	ctx := context.Background()

	_, err := s.UpsertItem(ctx, newItem("a"))
	require.NoError(t, err)
	writes := len(fb.putKeys)

	require.NoError(t, s.DeleteItem(ctx, "missing"))

	items, err := s.Items(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"a"}, ids(items))
	assert.Len(t, fb.putKeys, writes)
}

func TestDeleteRemovesAllMatches(t *testing.T) {
	s := openStore(t, storage.NewMemoryBackend())
	ctx := context.Background()

	require.NoError(t, s.SaveItems(ctx, []model.Item{newItem("a"), newItem("b"), newItem("a")}))
	require.NoError(t, s.DeleteItem(ctx, "a"))

	items, err := s.Items(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"b"}, ids(items))
}

func TestItemsRoundTrip(t *testing.T) {
	price := 24.5
	category := "11450"
	titleID := "t1"
	exported := time.Date(2026, 2, 1, 9, 30, 0, 0, time.UTC)
	original := "file:///photos/a.jpg"

	full := newItem("full")
	full.Brand = "Levi's"
	full.Size = "W32"
	full.Material = "Denim"
	full.Condition = model.ConditionExcellent
	full.Photos = []model.PhotoAsset{{ID: "p1", OriginalURL: &original, Metadata: model.PhotoMetadata{BackgroundConfidence: 0.8}}}
	full.CleanedPhotos = []model.PhotoAsset{}
	full.Measurements = []model.Measurement{{ID: "m1", Name: "Waist", Value: "32in"}}
	full.CategoryID = &category
	full.Aspects = []model.Aspect{{ID: "asp1", Name: "Brand", Value: "Levi's", IsRequired: true, Options: []string{"Levi's", "Wrangler"}}}
	full.TitleOptions = []model.ListingText{{ID: "t1", Title: "Levi's 501", Description: "Classic", Tone: model.ToneSEO, QualityScore: 0.9}}
	full.SelectedTitleID = &titleID
	full.Description = "Classic"
	full.PriceSuggested = &model.PriceBand{ResultsCount: 12, Median: 25, IQR: 6, SuggestedMin: 22, SuggestedMax: 28, Confidence: model.ConfidenceHigh}
	full.PriceSet = &price
	full.MarketplaceStatus.Ebay = model.StatusPublished
	full.MarketplaceStatus.MarkExported(model.MarketplaceDepop, exported)

	tests := []struct {
		name  string
		items []model.Item
	}{
		{"empty collection", []model.Item{}},
		{"empty optional fields", []model.Item{newItem("bare")}},
		{"fully populated", []model.Item{full, newItem("bare")}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			backend := storage.NewMemoryBackend()
			s := openStore(t, backend)
			require.NoError(t, s.SaveItems(context.Background(), tt.items))

			reloaded := openStore(t, backend)
			got, err := reloaded.Items(context.Background())
			require.NoError(t, err)
			assert.Equal(t, tt.items, got)
		})
	}
}

func TestAccountRoundTrip(t *testing.T) {
	withAuth := model.DefaultAccount().WithPlan(model.PlanPro)
	withAuth.Quotas.ProcessedListings = 3
	withAuth.EbayAuth = &model.EbayAuth{
		AccessToken:  "access",
		RefreshToken: "refresh",
		ExpiresAt:    time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC),
		Scope:        []string{"sell.inventory", "sell.account"},
		SiteID:       "EBAY_GB",
	}
	withAuth.PoliciesCache.ShippingPolicies = []model.Policy{{ID: "s1", Name: "Royal Mail", MarketplaceID: "EBAY_GB"}}
	withAuth.Templates = []model.Template{{ID: "tpl", Name: "Jeans", DefaultAspects: []model.Aspect{}, TitleTone: model.ToneConcise}}

	tests := []struct {
		name    string
		account model.Account
	}{
		{"without credentials", model.DefaultAccount()},
		{"with credentials", withAuth},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			backend := storage.NewMemoryBackend()
			s := openStore(t, backend)
			require.NoError(t, s.SaveAccount(context.Background(), tt.account))

			reloaded := openStore(t, backend)
			got, err := reloaded.Account(context.Background())
			require.NoError(t, err)
			assert.Equal(t, tt.account, got)
		})
	}
}

func TestCorruptBlobsFallBackToDefaults(t *testing.T) {
	tests := []struct {
		name    string
		account string
		items   string
	}{
		{"garbage", "not json", "{{{"},
		{"wrong shape", `[1,2,3]`, `{"user_id":"u"}`},
		{"null", "null", "null"},
		{"newer schema", `{"version":99,"data":{"user_id":"u","plan":"pro"}}`, `{"version":99,"data":[]}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			backend := storage.NewMemoryBackend()
			ctx := context.Background()
			require.NoError(t, backend.Put(ctx, AccountKey, []byte(tt.account)))
			require.NoError(t, backend.Put(ctx, ItemsKey, []byte(tt.items)))

			s, err := Open(ctx, backend)
			require.NoError(t, err)
			defer s.Close()

			a, err := s.Account(ctx)
			require.NoError(t, err)
			assert.Equal(t, model.PlanFree, a.Plan)
			assert.Equal(t, 0, a.Quotas.ProcessedListings)
			assert.Equal(t, model.PlanFree.ListingLimit(), a.Quotas.ProcessedListingsLimit)
			assert.NotEmpty(t, a.UserID)

			items, err := s.Items(ctx)
			require.NoError(t, err)
			assert.Empty(t, items)
		})
	}
}

func TestSealedAccountWithWrongKeyFallsBack(t *testing.T) {
	ctx := context.Background()
	inner := storage.NewMemoryBackend()

	s := openStore(t, storage.NewSealedBackend(inner, storage.DeriveKey("right"), AccountKey))
	_, err := s.ChangePlan(ctx, model.PlanPower)
	require.NoError(t, err)

	reloaded := openStore(t, storage.NewSealedBackend(inner, storage.DeriveKey("wrong"), AccountKey))
	a, err := reloaded.Account(ctx)
	require.NoError(t, err)
	assert.Equal(t, model.PlanFree, a.Plan)
}

func TestLegacyUnversionedBlobs(t *testing.T) {
	ctx := context.Background()
	backend := storage.NewMemoryBackend()

	account := dedent.Dedent(`
		{
			"user_id": "legacy-user",
			"plan": "pro",
			"quotas": {"processed_listings": 4}
		}
	`)
	items := dedent.Dedent(`
		[
			{"id": "old-1", "brand": "Barbour", "created_at": "2025-11-01T10:00:00Z", "updated_at": "2025-11-02T10:00:00Z"}
		]
	`)
	require.NoError(t, backend.Put(ctx, AccountKey, []byte(account)))
	require.NoError(t, backend.Put(ctx, ItemsKey, []byte(items)))

	s := openStore(t, backend)

	a, err := s.Account(ctx)
	require.NoError(t, err)
	assert.Equal(t, "legacy-user", a.UserID)
	assert.Equal(t, model.PlanPro, a.Plan)
	assert.Equal(t, 4, a.Quotas.ProcessedListings)
	assert.Equal(t, model.PlanPro.ListingLimit(), a.Quotas.ProcessedListingsLimit)
	assert.NotNil(t, a.Templates)

	got, err := s.Items(ctx)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "Barbour", got[0].Brand)
	assert.Equal(t, model.ConditionPreOwned, got[0].Condition)
	assert.Equal(t, model.StatusDraft, got[0].MarketplaceStatus.Ebay)

	// Next write upgrades the blob to the envelope
	_, err = s.UpsertItem(ctx, got[0])
	require.NoError(t, err)
	raw, err := backend.Get(ctx, ItemsKey)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"version":1`)
}

func TestChangePlanIsAtomic(t *testing.T) {
	s := openStore(t, storage.NewMemoryBackend())
	ctx := context.Background()

	var wg sync.WaitGroup
	stop := make(chan struct{})
	var torn []model.Account
	var mu sync.Mutex

	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			select {
			case <-stop:
				return
			default:
			}
			a, err := s.Account(ctx)
			if err != nil {
				return
			}
			if a.Quotas.ProcessedListingsLimit != a.Plan.ListingLimit() {
				mu.Lock()
				torn = append(torn, a)
				mu.Unlock()
			}
		}
	}()

	for i := 0; i < 50; i++ {
		plan := model.PlanPro
		if i%2 == 1 {
			plan = model.PlanFree
		}
		a, err := s.ChangePlan(ctx, plan)
		require.NoError(t, err)
		assert.Equal(t, plan.ListingLimit(), a.Quotas.ProcessedListingsLimit)
	}
	close(stop)
	wg.Wait()

	assert.Empty(t, torn)

	a, err := s.ChangePlan(ctx, model.PlanPro)
	require.NoError(t, err)
	assert.Equal(t, model.PlanPro, a.Plan)
	assert.Equal(t, 200, a.Quotas.ProcessedListingsLimit)
}

func TestChangePlanRejectsUnknownPlan(t *testing.T) {
	s := openStore(t, storage.NewMemoryBackend())
	_, err := s.ChangePlan(context.Background(), model.Plan("enterprise"))
	assert.Error(t, err)
}

func TestConcurrentUpsertsAreNotLost(t *testing.T) {
	s := openStore(t, storage.NewMemoryBackend())
	ctx := context.Background()

	const n = 50
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := s.UpsertItem(ctx, newItem(fmt.Sprintf("item-%02d", i)))
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	items, err := s.Items(ctx)
	require.NoError(t, err)
	got := ids(items)
	sort.Strings(got)
	require.Len(t, got, n)
	assert.Equal(t, "item-00", got[0])
	assert.Equal(t, "item-49", got[n-1])
}

func TestConcurrentUpdateItemNoLostUpdate(t *testing.T) {
	s := openStore(t, storage.NewMemoryBackend())
	ctx := context.Background()
	_, err := s.UpsertItem(ctx, newItem("a"))
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.UpdateItem(ctx, "a", func(it *model.Item) error {
				it.Measurements = append(it.Measurements, model.Measurement{Name: "x"})
				return nil
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	it, ok, err := s.Item(ctx, "a")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Len(t, it.Measurements, 20)
}

func TestUpdateItem(t *testing.T) {
	s := openStore(t, storage.NewMemoryBackend())
	ctx := context.Background()
	_, err := s.UpsertItem(ctx, newItem("a"))
	require.NoError(t, err)

	_, err = s.UpdateItem(ctx, "missing", func(*model.Item) error { return nil })
	assert.ErrorIs(t, err, ErrItemNotFound)

	boom := errors.New("boom")
	_, err = s.UpdateItem(ctx, "a", func(it *model.Item) error {
		it.Brand = "changed"
		return boom
	})
	assert.ErrorIs(t, err, boom)

	it, _, err := s.Item(ctx, "a")
	require.NoError(t, err)
	assert.Empty(t, it.Brand)

	updated, err := s.UpdateItem(ctx, "a", func(it *model.Item) error {
		it.ID = "renamed"
		it.Brand = "Barbour"
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, "a", updated.ID)
	assert.Equal(t, "Barbour", updated.Brand)
	assert.Equal(t, fixedNow, updated.UpdatedAt)
}

func TestReturnedValuesAreCopies(t *testing.T) {
	s := openStore(t, storage.NewMemoryBackend())
	ctx := context.Background()

	it := newItem("a")
	it.Aspects = []model.Aspect{{Name: "Colour", Value: "Blue"}}
	_, err := s.UpsertItem(ctx, it)
	require.NoError(t, err)
	it.Aspects[0].Value = "Red"

	items, err := s.Items(ctx)
	require.NoError(t, err)
	items[0].Aspects[0].Value = "Green"

	again, err := s.Items(ctx)
	require.NoError(t, err)
	assert.Equal(t, "Blue", again[0].Aspects[0].Value)
}

func TestRecordProcessedListing(t *testing.T) {
	backend := storage.NewMemoryBackend()
	s := openStore(t, backend)
	ctx := context.Background()

	for i := 1; i <= 10; i++ {
		q, err := s.RecordProcessedListing(ctx)
		require.NoError(t, err)
		assert.Equal(t, i, q.ProcessedListings)
	}

	q, err := s.RecordProcessedListing(ctx)
	assert.ErrorIs(t, err, ErrQuotaExceeded)
	assert.Equal(t, 10, q.ProcessedListings)
	assert.Equal(t, 0, q.Remaining())

	_, err = s.ChangePlan(ctx, model.PlanPro)
	require.NoError(t, err)
	q, err = s.RecordProcessedListing(ctx)
	require.NoError(t, err)
	assert.Equal(t, 11, q.ProcessedListings)

	reloaded := openStore(t, backend)
	a, err := reloaded.Account(ctx)
	require.NoError(t, err)
	assert.Equal(t, 11, a.Quotas.ProcessedListings)
	assert.Equal(t, model.PlanPro, a.Plan)
}

func TestWriteFailureSurfacesPersistenceError(t *testing.T) {
	fb := &failingBackend{Backend: storage.NewMemoryBackend()}
	s := openStore(t, fb)
	ctx := context.Background()

	diskFull := errors.New("disk full")
	fb.mu.Lock()
	fb.putErr = diskFull
	fb.mu.Unlock()

	_, err := s.UpsertItem(ctx, newItem("a"))
	var perr *PersistenceError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, ItemsKey, perr.Key)
	assert.Equal(t, "write", perr.Op)
	assert.ErrorIs(t, err, diskFull)

	// In-memory state keeps the mutation
	items, err := s.Items(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"a"}, ids(items))

	err = s.SaveAccount(ctx, model.DefaultAccount())
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, AccountKey, perr.Key)
}

func TestReadFailureFailsOpen(t *testing.T) {
	fb := &failingBackend{Backend: storage.NewMemoryBackend(), getErr: errors.New("io error")}

	_, err := Open(context.Background(), fb)
	var perr *PersistenceError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, "read", perr.Op)
}

func TestLoadReplacesState(t *testing.T) {
	backend := storage.NewMemoryBackend()
	s := openStore(t, backend)
	other := openStore(t, backend)
	ctx := context.Background()

	_, err := other.UpsertItem(ctx, newItem("from-other"))
	require.NoError(t, err)

	items, err := s.Items(ctx)
	require.NoError(t, err)
	assert.Empty(t, items)

	require.NoError(t, s.Load(ctx))
	items, err = s.Items(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"from-other"}, ids(items))
}

func TestClosedStore(t *testing.T) {
	s, err := Open(context.Background(), storage.NewMemoryBackend())
	require.NoError(t, err)
	require.NoError(t, s.Close())
	require.NoError(t, s.Close())

	_, err = s.Items(context.Background())
	assert.ErrorIs(t, err, ErrClosed)
	_, err = s.UpsertItem(context.Background(), newItem("a"))
	assert.ErrorIs(t, err, ErrClosed)
}

func TestCancelledContextAbandonsWait(t *testing.T) {
	s := openStore(t, storage.NewMemoryBackend())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	// Either the worker accepted the request or the context won the race
	_, err := s.Items(ctx)
	if err != nil {
		assert.ErrorIs(t, err, context.Canceled)
	}
}

func TestPanicInUpdateIsRecovered(t *testing.T) {
	s := openStore(t, storage.NewMemoryBackend())
	ctx := context.Background()
	_, err := s.UpsertItem(ctx, newItem("a"))
	require.NoError(t, err)

	_, err = s.UpdateItem(ctx, "a", func(*model.Item) error { panic("bad callback") })
	assert.Error(t, err)

	items, err := s.Items(ctx)
	require.NoError(t, err)
	assert.Len(t, items, 1)
}

func TestSQLiteBackedRoundTrip(t *testing.T) {
	backend, err := storage.NewSQLiteBackend(":memory:")
	require.NoError(t, err)
	defer backend.Close()

	s := openStore(t, backend)
	ctx := context.Background()
	_, err = s.UpsertItem(ctx, newItem("a"))
	require.NoError(t, err)
	_, err = s.ChangePlan(ctx, model.PlanPro)
	require.NoError(t, err)

	require.NoError(t, s.Load(ctx))
	items, err := s.Items(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"a"}, ids(items))
	a, err := s.Account(ctx)
	require.NoError(t, err)
	assert.Equal(t, model.PlanPro, a.Plan)
}

func TestLegacyRecordsKeepAssignedIDs(t *testing.T) {
	ctx := context.Background()
	backend := storage.NewMemoryBackend()
	require.NoError(t, backend.Put(ctx, AccountKey, []byte(`{"plan":"pro"}`)))
	require.NoError(t, backend.Put(ctx, ItemsKey, []byte(`[{"brand":"Barbour"},{"id":"old-2"}]`)))

	first := openStore(t, backend)
	items, err := first.Items(ctx)
	require.NoError(t, err)
	require.Len(t, items, 2)
	require.NotEmpty(t, items[0].ID)
	assert.Equal(t, "old-2", items[1].ID)
	account, err := first.Account(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, account.UserID)

	second := openStore(t, backend)
	reloaded, err := second.Items(ctx)
	require.NoError(t, err)
	assert.Equal(t, ids(items), ids(reloaded))
	reloadedAccount, err := second.Account(ctx)
	require.NoError(t, err)
	assert.Equal(t, account.UserID, reloadedAccount.UserID)
	assert.Equal(t, model.PlanPro, reloadedAccount.Plan)
}

func TestLoadDoesNotWriteWellFormedBlobs(t *testing.T) {
	ctx := context.Background()
	backend := &failingBackend{Backend: storage.NewMemoryBackend()}
	require.NoError(t, backend.Backend.Put(ctx, ItemsKey, []byte(`[{"id":"a"}]`)))
	require.NoError(t, backend.Backend.Put(ctx, AccountKey, []byte(`{"user_id":"u","plan":"free"}`)))

	openStore(t, backend)
	assert.Empty(t, backend.putKeys)
}
