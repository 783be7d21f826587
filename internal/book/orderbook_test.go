package book_test

import (
	"testing"

	"github.com/ccyyhlg/matchcore/internal/book"
	"github.com/stretchr/testify/require"
)

func TestAddRestingRejectsBadInput(t *testing.T) {
	b := book.New()
	require.False(t, b.AddResting(1, book.Ask, -1, 10), "negative price must be rejected")
	require.False(t, b.AddResting(1, book.Ask, 100, 0), "zero qty must be rejected")
	require.False(t, b.AddResting(1, book.Ask, 100, -5), "negative qty must be rejected")

	require.True(t, b.AddResting(1, book.Ask, 100, 10))
	require.False(t, b.AddResting(1, book.Bid, 90, 5), "duplicate exch id must be rejected")
}

func TestBestQuoteEmptyBook(t *testing.T) {
	b := book.New()
	_, _, ok := b.BestBid()
	require.False(t, ok)
	_, _, ok = b.BestAsk()
	require.False(t, ok)
}

func TestCancelUnknownID(t *testing.T) {
	b := book.New()
	require.False(t, b.CancelOrder(999999))
}

// TestRestThenCancel mirrors spec.md §8 scenario 2.
func TestRestThenCancel(t *testing.T) {
	b := book.New()
	require.True(t, b.AddResting(1, book.Ask, 101, 40))

	price, qty, ok := b.BestAsk()
	require.True(t, ok)
	require.Equal(t, int64(101), price)
	require.Equal(t, int32(40), qty)

	require.True(t, b.CancelOrder(1))
	_, _, ok = b.BestAsk()
	require.False(t, ok)
}

// TestWalkTwoLevels mirrors spec.md §8 scenario 3.
func TestWalkTwoLevels(t *testing.T) {
	b := book.New()
	require.True(t, b.AddResting(1, book.Ask, 101, 30))
	require.True(t, b.AddResting(2, book.Ask, 102, 50))

	filled, trades := b.MatchTaker(book.Bid, 102, 60)
	require.Equal(t, int32(60), filled)
	require.Len(t, trades, 2)
	require.Equal(t, book.Trade{PriceTicks: 101, Qty: 30, RestingExchOrderID: 1}, trades[0])
	require.Equal(t, book.Trade{PriceTicks: 102, Qty: 30, RestingExchOrderID: 2}, trades[1])

	price, qty, ok := b.BestAsk()
	require.True(t, ok)
	require.Equal(t, int64(102), price)
	require.Equal(t, int32(20), qty)
}

// TestFIFOWithinLevel mirrors spec.md §8 scenario 5.
func TestFIFOWithinLevel(t *testing.T) {
	b := book.New()
	require.True(t, b.AddResting(1001, book.Bid, 100, 10))
	require.True(t, b.AddResting(1002, book.Bid, 100, 20))

	filled, trades := b.MatchTaker(book.Ask, 100, 15)
	require.Equal(t, int32(15), filled)
	require.Equal(t, []book.Trade{
		{PriceTicks: 100, Qty: 10, RestingExchOrderID: 1001},
		{PriceTicks: 100, Qty: 5, RestingExchOrderID: 1002},
	}, trades)

	price, qty, ok := b.BestBid()
	require.True(t, ok)
	require.Equal(t, int64(100), price)
	require.Equal(t, int32(15), qty)
}

func TestMatchTakerNoOpOnBadInput(t *testing.T) {
	b := book.New()
	require.True(t, b.AddResting(1, book.Ask, 100, 10))

	filled, trades := b.MatchTaker(book.Bid, 100, 0)
	require.Zero(t, filled)
	require.Nil(t, trades)

	filled, trades = b.MatchTaker(book.Bid, -1, 10)
	require.Zero(t, filled)
	require.Nil(t, trades)

	// Book is untouched.
	price, qty, ok := b.BestAsk()
	require.True(t, ok)
	require.Equal(t, int64(100), price)
	require.Equal(t, int32(10), qty)
}

func TestMatchTakerStopsWhenNotCrossable(t *testing.T) {
	b := book.New()
	require.True(t, b.AddResting(1, book.Ask, 110, 10))

	filled, trades := b.MatchTaker(book.Bid, 100, 10)
	require.Zero(t, filled)
	require.Nil(t, trades)
}

func TestResidualNeverRestedByBook(t *testing.T) {
	// The book itself never decides to rest a residual; AddResting is a
	// separate, explicit call driven by the engine's rest_leftover flag.
	b := book.New()
	require.True(t, b.AddResting(1, book.Ask, 100, 5))

	filled, _ := b.MatchTaker(book.Bid, 100, 10)
	require.Equal(t, int32(5), filled)
	require.Equal(t, 0, b.NumOrders())
	require.True(t, b.EmptyAsk())
}

func TestCancelRemovesEmptyLevel(t *testing.T) {
	b := book.New()
	require.True(t, b.AddResting(1, book.Bid, 50, 10))
	require.True(t, b.CancelOrder(1))
	require.True(t, b.EmptyBid())
	require.Equal(t, 0, b.NumOrders())
}

func TestDepthLevelsOrderedBestFirst(t *testing.T) {
	b := book.New()
	require.True(t, b.AddResting(1, book.Bid, 100, 10))
	require.True(t, b.AddResting(2, book.Bid, 105, 5))
	require.True(t, b.AddResting(3, book.Ask, 110, 7))
	require.True(t, b.AddResting(4, book.Ask, 115, 3))

	require.Equal(t, []book.PriceLevel{{PriceTicks: 105, Qty: 5}, {PriceTicks: 100, Qty: 10}}, b.DepthLevels(book.Bid))
	require.Equal(t, []book.PriceLevel{{PriceTicks: 110, Qty: 7}, {PriceTicks: 115, Qty: 3}}, b.DepthLevels(book.Ask))
}

func TestDepthLevelsAggregatesWithinLevel(t *testing.T) {
	b := book.New()
	require.True(t, b.AddResting(1, book.Bid, 100, 10))
	require.True(t, b.AddResting(2, book.Bid, 100, 20))

	require.Equal(t, []book.PriceLevel{{PriceTicks: 100, Qty: 30}}, b.DepthLevels(book.Bid))
}

func TestCrossInstrumentIsolationIsEngineConcern(t *testing.T) {
	// The book has no notion of instrument: one OrderBook is always
	// scoped to a single instrument by construction (see internal/engine).
	a := book.New()
	c := book.New()
	require.True(t, a.AddResting(1, book.Ask, 100, 10))
	require.False(t, c.CancelOrder(1), "an id from another book's instrument must not cancel here")
}
