package service

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"card_shop/internal/model"
	"card_shop/internal/repository"
	"card_shop/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func claimFor(tradeNo string) repository.Claim {
	return repository.Claim{TradeNo: tradeNo, Contact: "buyer@example.com", At: testNow}
}

func TestReserveOne_ConcurrentClaimsNeverExceedStock(t *testing.T) {
	db := testutil.NewDB(t)
	store := repository.NewStore(db)
	c := testutil.OnSale(t, db, "0")
	testutil.Cards(t, db, c.ID, 3)

	const workers = 12
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		got     = map[uint]string{}
		outOf   int
		unknown []error
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			tradeNo := fmt.Sprintf("T%03d", i)
			var card *model.Card
			err := store.Transaction(context.Background(), func(r *repository.Repo) error {
				var err error
				card, err = ReserveOne(r, c.ID, claimFor(tradeNo))
				return err
			})
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				if prev, dup := got[card.ID]; dup {
					unknown = append(unknown, fmt.Errorf("card %d claimed by %s and %s", card.ID, prev, tradeNo))
				}
				got[card.ID] = tradeNo
			case KindOf(err) == KindExhausted:
				outOf++
			default:
				unknown = append(unknown, err)
			}
		}(i)
	}
	wg.Wait()

	require.Empty(t, unknown)
	assert.Len(t, got, 3)
	assert.Equal(t, workers-3, outOf)
	assert.EqualValues(t, 3, testutil.CountSold(t, db))

	// 每张卡记录了领取它的订单号
	var cards []model.Card
	require.NoError(t, db.Order("id").Find(&cards).Error)
	for _, card := range cards {
		assert.Equal(t, got[card.ID], card.TradeNo)
		assert.Equal(t, "buyer@example.com", card.Contact)
		assert.NotNil(t, card.BuyDate)
	}
}

func TestReserveOne_OnlyFromCommodity(t *testing.T) {
	db := testutil.NewDB(t)
	store := repository.NewStore(db)
	a := testutil.OnSale(t, db, "0")
	b := testutil.OnSale(t, db, "0")
	testutil.Cards(t, db, b.ID, 2)

	err := store.Transaction(context.Background(), func(r *repository.Repo) error {
		_, err := ReserveOne(r, a.ID, claimFor("T1"))
		return err
	})
	assert.ErrorIs(t, err, ErrOutOfStock)
	assert.EqualValues(t, 0, testutil.CountSold(t, db))
}

func TestAllocateBatch_ShortfallRollsBackOnlyTheClaim(t *testing.T) {
	db := testutil.NewDB(t)
	store := repository.NewStore(db)
	c := testutil.OnSale(t, db, "10")
	testutil.Cards(t, db, c.ID, 2)
	v := testutil.Voucher(t, db, c.ID, "ABCDEFGH", "1")

	err := store.Transaction(context.Background(), func(r *repository.Repo) error {
		// 保存点之前的写入应当保留
		ok, err := r.MarkVoucherUsed(v.ID, "x@example.com", testNow)
		require.NoError(t, err)
		require.True(t, ok)

		_, err = AllocateBatch(r, 0, 3, claimFor("T1"))
		assert.ErrorIs(t, err, ErrInsufficientStock)
		return nil
	})
	require.NoError(t, err)

	assert.EqualValues(t, 0, testutil.CountSold(t, db))
	var got model.Voucher
	require.NoError(t, db.First(&got, v.ID).Error)
	assert.Equal(t, model.VoucherUsed, got.Status)
}

func TestAllocateBatch_DrawsFromWholePoolUnlessScoped(t *testing.T) {
	db := testutil.NewDB(t)
	store := repository.NewStore(db)
	a := testutil.OnSale(t, db, "10")
	b := testutil.OnSale(t, db, "10")
	testutil.Cards(t, db, a.ID, 1)
	testutil.Cards(t, db, b.ID, 2)

	// 限定商品：a 只有 1 张，不够
	err := store.Transaction(context.Background(), func(r *repository.Repo) error {
		_, err := AllocateBatch(r, a.ID, 2, claimFor("T1"))
		return err
	})
	assert.ErrorIs(t, err, ErrInsufficientStock)

	// 不限商品：全池 3 张
	var cards []model.Card
	err = store.Transaction(context.Background(), func(r *repository.Repo) error {
		var err error
		cards, err = AllocateBatch(r, 0, 3, claimFor("T2"))
		return err
	})
	require.NoError(t, err)
	require.Len(t, cards, 3)
	for _, card := range cards {
		assert.Equal(t, "T2", card.TradeNo)
		assert.Equal(t, model.CardSold, card.Status)
	}
}

func TestAllocateBatch_ConcurrentBatchesAreAllOrNothing(t *testing.T) {
	db := testutil.NewDB(t)
	store := repository.NewStore(db)
	c := testutil.OnSale(t, db, "10")
	testutil.Cards(t, db, c.ID, 5)

	const workers = 4
	var wg sync.WaitGroup
	results := make([]int, workers)
	errs := make([]error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = store.Transaction(context.Background(), func(r *repository.Repo) error {
				cards, err := AllocateBatch(r, c.ID, 2, claimFor(fmt.Sprintf("B%d", i)))
				results[i] = len(cards)
				return err
			})
		}(i)
	}
	wg.Wait()

	success := 0
	for i := range results {
		if errs[i] == nil {
			assert.Equal(t, 2, results[i])
			success++
		} else {
			assert.ErrorIs(t, errs[i], ErrInsufficientStock)
			assert.Equal(t, 0, results[i])
		}
	}
	assert.Equal(t, 2, success)
	assert.EqualValues(t, 4, testutil.CountSold(t, db))
}
