package commerce

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/RoyceAzure/lab/storefront/internal/model"
	"github.com/RoyceAzure/lab/storefront/internal/repository"
	"github.com/RoyceAzure/lab/storefront/internal/session"
	"github.com/RoyceAzure/lab/storefront/pkg/kvstore"
	"github.com/RoyceAzure/lab/storefront/pkg/kvstore/memory"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

var (
	sam     = model.User{ID: "u1", Name: "Sam", Email: "sam@example.com"}
	lamp    = model.Product{ID: "1", Name: "Lamp", Price: decimal.NewFromInt(2200), ImageURL: "lamp.png"}
	desk    = model.Product{ID: "2", Name: "Desk", Price: decimal.NewFromInt(3000), ImageURL: "desk.png"}
	chair   = model.Product{ID: "3", Name: "Chair", Price: decimal.NewFromInt(500)}
	fixedAt = time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
)

type countingRecorder struct {
	failures map[string]int
}

func (r *countingRecorder) StorageWriteFailed(collection string) {
	r.failures[collection]++
}

type StoreTestSuite struct {
	suite.Suite
	backend  *memory.Backend
	repo     *repository.KVRepository
	session  *session.Context
	store    *Store
	recorder *countingRecorder
	ctx      context.Context
}

func (s *StoreTestSuite) SetupTest() {
	s.ctx = context.Background()
	s.backend = memory.NewBackend()
	s.repo = repository.NewKVRepository(s.backend.Open("tab-1"), zerolog.Nop())
	s.session = session.NewContext(s.repo, zerolog.Nop())
	s.recorder = &countingRecorder{failures: map[string]int{}}
	s.store = NewStore(s.repo, s.session, zerolog.Nop(),
		WithClock(func() time.Time { return fixedAt }),
		WithRecorder(s.recorder))
	s.session.OnChange(s.store.HandleSessionChange)
	s.Require().NoError(s.session.Login(s.ctx, sam))
}

func TestStoreTestSuite(t *testing.T) {
	suite.Run(t, new(StoreTestSuite))
}

func (s *StoreTestSuite) persistedCart(email string) []model.CartLineItem {
	items, err := s.repo.LoadCart(s.ctx, email)
	s.Require().NoError(err)
	return items
}

func (s *StoreTestSuite) TestAddTwiceMergesLine() {
	s.Require().NoError(s.store.AddToCart(s.ctx, lamp))
	s.Require().NoError(s.store.AddToCart(s.ctx, lamp))

	cart := s.store.Cart()
	s.Require().Len(cart, 1)
	s.Equal("1", cart[0].ProductID)
	s.Equal(2, cart[0].Quantity)
	s.Equal(fixedAt, cart[0].AddedAt)
	s.Equal(cart, s.persistedCart(sam.Email))
}

func (s *StoreTestSuite) TestDecreaseNeverBelowOne() {
	s.Require().NoError(s.store.AddToCart(s.ctx, lamp))
	s.Require().NoError(s.store.IncreaseQuantity(s.ctx, lamp.ID))
	s.Equal(2, s.store.Cart()[0].Quantity)

	for i := 0; i < 5; i++ {
		s.Require().NoError(s.store.DecreaseQuantity(s.ctx, lamp.ID))
	}
	s.Equal(1, s.store.Cart()[0].Quantity)
	s.Equal(1, s.persistedCart(sam.Email)[0].Quantity)
}

func (s *StoreTestSuite) TestDecreaseAtOneDoesNotWrite() {
	s.Require().NoError(s.store.AddToCart(s.ctx, lamp))

	writeErr := errors.New("write should not happen")
	s.backend.FailNextWrite(writeErr)
	s.Require().NoError(s.store.DecreaseQuantity(s.ctx, lamp.ID))

	// 注入的錯誤還在，代表上面沒有寫入
	s.ErrorIs(s.store.IncreaseQuantity(s.ctx, lamp.ID), writeErr)
	s.Equal(1, s.store.Cart()[0].Quantity)
}

func (s *StoreTestSuite) TestQuantityUnknownProduct() {
	s.ErrorIs(s.store.IncreaseQuantity(s.ctx, "missing"), ErrItemNotFound)
	s.ErrorIs(s.store.DecreaseQuantity(s.ctx, "missing"), ErrItemNotFound)
}

func (s *StoreTestSuite) TestRemoveIsIdempotent() {
	s.Require().NoError(s.store.AddToCart(s.ctx, lamp))
	s.Require().NoError(s.store.AddToCart(s.ctx, desk))
	s.Require().NoError(s.store.AddToCart(s.ctx, desk))
	s.Require().NoError(s.store.AddToCart(s.ctx, chair))

	s.Require().NoError(s.store.RemoveFromCart(s.ctx, desk.ID))
	cart := s.store.Cart()
	s.Len(cart, 2)
	for _, item := range cart {
		s.NotEqual(desk.ID, item.ProductID)
	}

	s.Require().NoError(s.store.RemoveFromCart(s.ctx, desk.ID))
	s.Equal(cart, s.store.Cart())
	s.Equal(cart, s.persistedCart(sam.Email))
}

func (s *StoreTestSuite) TestTotalAndCount() {
	s.Require().NoError(s.store.AddToCart(s.ctx, lamp))
	s.Require().NoError(s.store.AddToCart(s.ctx, desk))
	s.Require().NoError(s.store.IncreaseQuantity(s.ctx, desk.ID))

	s.True(s.store.Total().Equal(decimal.NewFromInt(8200)), s.store.Total().String())
	s.Equal(3, s.store.Count())

	snap, err := s.store.Snapshot(s.ctx)
	s.Require().NoError(err)
	s.Equal(sam.Email, snap.Email)
	s.Len(snap.Items, 2)
	s.True(snap.Total.Equal(decimal.NewFromInt(8200)))
}

func (s *StoreTestSuite) TestViewMatchesAccessors() {
	s.Require().NoError(s.store.AddToCart(s.ctx, lamp))
	s.Require().NoError(s.store.AddToCart(s.ctx, lamp))
	s.Require().NoError(s.store.AddToCart(s.ctx, desk))

	v := s.store.View()
	s.Equal("sam@example.com", v.Email)
	s.Len(v.Items, 2)
	s.Equal(3, v.Count)
	s.Equal(s.store.Count(), v.Count)
	s.True(v.Total.Equal(s.store.Total()))
}

func (s *StoreTestSuite) TestViewWithoutLogin() {
	s.Require().NoError(s.session.Logout(s.ctx))

	v := s.store.View()
	s.Empty(v.Items)
	s.Zero(v.Count)
	s.True(v.Total.IsZero())
}

// 併發寫入時 View 的 Items/Total/Count 必須出自同一份狀態
func (s *StoreTestSuite) TestViewIsConsistentUnderWrites() {
	s.Require().NoError(s.store.AddToCart(s.ctx, lamp))
	s.Require().NoError(s.store.AddToCart(s.ctx, chair))

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 200; i++ {
			_ = s.store.IncreaseQuantity(s.ctx, lamp.ID)
			_ = s.store.AddToCart(s.ctx, chair)
		}
	}()

	for {
		v := s.store.View()
		count := 0
		for _, it := range v.Items {
			count += it.Quantity
		}
		s.Require().Equal(count, v.Count)
		s.Require().True(v.Total.Equal(model.CartTotal(v.Items)), "total %s", v.Total)

		select {
		case <-done:
			return
		default:
		}
	}
}

func (s *StoreTestSuite) TestToggleWishlistRoundTrip() {
	_, err := s.store.ToggleWishlist(s.ctx, desk)
	s.Require().NoError(err)
	before := s.store.Wishlist()

	added, err := s.store.ToggleWishlist(s.ctx, lamp)
	s.Require().NoError(err)
	s.True(added)
	s.True(s.store.InWishlist(lamp.ID))

	added, err = s.store.ToggleWishlist(s.ctx, lamp)
	s.Require().NoError(err)
	s.False(added)
	s.False(s.store.InWishlist(lamp.ID))

	s.Equal(before, s.store.Wishlist())
	persisted, err := s.repo.LoadWishlist(s.ctx, sam.Email)
	s.Require().NoError(err)
	s.Equal(before, persisted)
}

func (s *StoreTestSuite) TestRequiresSession() {
	s.Require().NoError(s.store.AddToCart(s.ctx, lamp))
	s.Require().NoError(s.session.Logout(s.ctx))
	s.Empty(s.store.Cart())

	s.ErrorIs(s.store.AddToCart(s.ctx, desk), session.ErrNotAuthenticated)
	s.ErrorIs(s.store.IncreaseQuantity(s.ctx, lamp.ID), session.ErrNotAuthenticated)
	s.ErrorIs(s.store.RemoveFromCart(s.ctx, lamp.ID), session.ErrNotAuthenticated)
	_, err := s.store.ToggleWishlist(s.ctx, desk)
	s.ErrorIs(err, session.ErrNotAuthenticated)
	_, err = s.store.Snapshot(s.ctx)
	s.ErrorIs(err, session.ErrNotAuthenticated)

	// 儲存中的資料沒有被動到
	s.Len(s.persistedCart(sam.Email), 1)
}

func (s *StoreTestSuite) TestInvalidProduct() {
	s.ErrorIs(s.store.AddToCart(s.ctx, model.Product{Name: "no id"}), ErrInvalidProduct)
	_, err := s.store.ToggleWishlist(s.ctx, model.Product{})
	s.ErrorIs(err, ErrInvalidProduct)
}

func (s *StoreTestSuite) TestWriteFailureLeavesStateUnchanged() {
	s.Require().NoError(s.store.AddToCart(s.ctx, lamp))

	quota := kvstore.QuotaError("cart_sam@example.com", 100, 10)
	s.backend.FailNextWrite(quota)
	err := s.store.AddToCart(s.ctx, desk)
	s.True(kvstore.IsQuotaExceeded(err))

	s.Len(s.store.Cart(), 1)
	s.Len(s.persistedCart(sam.Email), 1)
	s.Equal(1, s.recorder.failures["cart"])

	s.backend.FailNextWrite(quota)
	_, err = s.store.ToggleWishlist(s.ctx, desk)
	s.Error(err)
	s.Empty(s.store.Wishlist())
	s.Equal(1, s.recorder.failures["wishlist"])
}

func (s *StoreTestSuite) TestLoadForUserMalformedIsEmpty() {
	s.backend.PutRaw("cart_other@example.com", []byte("{{{"))
	s.backend.PutRaw("wishlist_other@example.com", []byte(`[{"_id":"1"},{"_id":"1"}]`))

	cart, wishlist := s.store.LoadForUser(s.ctx, "other@example.com")
	s.NotNil(cart)
	s.Empty(cart)
	s.Len(wishlist, 1)
}

func (s *StoreTestSuite) TestStateIsPerUser() {
	s.Require().NoError(s.store.AddToCart(s.ctx, lamp))

	other := model.User{ID: "u2", Name: "Kim", Email: "kim@example.com"}
	s.Require().NoError(s.session.Login(s.ctx, other))
	s.Empty(s.store.Cart())
	s.Require().NoError(s.store.AddToCart(s.ctx, desk))

	s.Require().NoError(s.session.Login(s.ctx, sam))
	cart := s.store.Cart()
	s.Require().Len(cart, 1)
	s.Equal(lamp.ID, cart[0].ProductID)
}

func (s *StoreTestSuite) TestClearCartPersistsEmpty() {
	s.Require().NoError(s.store.AddToCart(s.ctx, lamp))
	s.Require().NoError(s.store.ClearCart(s.ctx))

	s.Empty(s.store.Cart())
	raw, ok := s.backend.Raw("cart_sam@example.com")
	s.Require().True(ok)
	s.Equal("[]", string(raw))
}

func (s *StoreTestSuite) TestClearCartClearsMemoryEvenOnWriteFailure() {
	s.Require().NoError(s.store.AddToCart(s.ctx, lamp))
	s.backend.FailNextWrite(errors.New("boom"))
	s.Error(s.store.ClearCart(s.ctx))
	s.Empty(s.store.Cart())
}

func (s *StoreTestSuite) TestSubscribe() {
	var changes []Change
	unsubscribe := s.store.Subscribe(func(c Change) { changes = append(changes, c) })

	s.Require().NoError(s.store.AddToCart(s.ctx, lamp))
	_, err := s.store.ToggleWishlist(s.ctx, lamp)
	s.Require().NoError(err)
	unsubscribe()
	s.Require().NoError(s.store.AddToCart(s.ctx, desk))

	s.Equal([]Change{
		{Kind: ChangeCart, Email: sam.Email},
		{Kind: ChangeWishlist, Email: sam.Email},
	}, changes)
}

func (s *StoreTestSuite) TestWatchReloadsOnOtherTabWrite() {
	ctx, cancel := context.WithCancel(s.ctx)
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- s.store.Watch(ctx) }()

	// 另一個分頁共用同一份儲存
	repo2 := repository.NewKVRepository(s.backend.Open("tab-2"), zerolog.Nop())
	session2 := session.NewContext(repo2, zerolog.Nop())
	session2.Restore(s.ctx)
	store2 := NewStore(repo2, session2, zerolog.Nop())
	session2.OnChange(store2.HandleSessionChange)
	store2.LoadForUser(s.ctx, sam.Email)

	s.Eventually(func() bool {
		// Watch 訂閱建立前的寫入收不到，持續寫到本分頁看見為止
		_ = store2.AddToCart(s.ctx, chair)
		for _, item := range s.store.Cart() {
			if item.ProductID == chair.ID {
				return true
			}
		}
		return false
	}, 2*time.Second, 20*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		s.NoError(err)
	case <-time.After(time.Second):
		s.Fail("watch did not stop")
	}
}

func (s *StoreTestSuite) TestWatchIgnoresOtherUsers() {
	ctx, cancel := context.WithCancel(s.ctx)
	defer cancel()
	go func() { _ = s.store.Watch(ctx) }()

	reloads := make(chan Change, 8)
	s.store.Subscribe(func(c Change) {
		if c.Kind != ChangeReloaded {
			return
		}
		select {
		case reloads <- c:
		default:
		}
	})

	other := repository.NewKVRepository(s.backend.Open("tab-2"), zerolog.Nop())
	require.Eventually(s.T(), func() bool {
		_ = other.SaveCart(s.ctx, "kim@example.com", []model.CartLineItem{{ProductID: "9", Quantity: 1}})
		_ = other.SaveCart(s.ctx, sam.Email, []model.CartLineItem{{ProductID: "9", Quantity: 1}})
		select {
		case c := <-reloads:
			s.Equal(sam.Email, c.Email)
			return true
		default:
			return false
		}
	}, 2*time.Second, 20*time.Millisecond)
}

func TestNewStore_PanicsOnNilDeps(t *testing.T) {
	repo, _ := repository.NewMemoryRepository()
	require.PanicsWithValue(t, "commerce store dependency session is nil", func() {
		NewStore(repo, nil, zerolog.Nop())
	})
}
