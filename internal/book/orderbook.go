// Package book implements §4.C of the matching core: a single
// instrument's two-sided, price-time priority order book.
//
// Price levels are kept in a red-black tree (ascending by price) so the
// best quote and FIFO walk during matching are ordered-iteration
// operations rather than a full scan, per spec.md §9's "ordered price
// map" guidance. Within a level, orders are FIFO via container/list so
// cancellation is an O(1) list removal once the id index has located
// the element — the same list.Element-in-index trick the rest of the
// pack's order books use for O(1) cancel.
package book

import (
	"container/list"

	rbt "github.com/emirpasic/gods/v2/trees/redblacktree"
)

// Side identifies one side of the book.
type Side uint8

const (
	Bid Side = 0
	Ask Side = 1
)

func (s Side) opposite() Side {
	if s == Bid {
		return Ask
	}
	return Bid
}

// Order is a resting order slot. It lives in exactly one FIFO queue at
// exactly one price level on exactly one side.
type Order struct {
	ExchOrderID  uint64
	RemainingQty int32
}

// Trade describes one maker fill produced by MatchTaker. It mirrors
// wire.TradeBody's fields without importing the wire package, keeping
// the book free of protocol concerns; the engine copies this into a
// wire.TradeBody.
type Trade struct {
	PriceTicks         int64
	Qty                int32
	RestingExchOrderID uint64 // maker
}

type priceLevel struct {
	price int64
	queue *list.List // of *Order
}

type indexEntry struct {
	side  Side
	price int64
	elem  *list.Element
}

func ascending(a, b int64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

// OrderBook holds both sides of one instrument's resting orders.
type OrderBook struct {
	bids  *rbt.Tree[int64, *priceLevel]
	asks  *rbt.Tree[int64, *priceLevel]
	index map[uint64]indexEntry
}

// New creates an empty order book.
func New() *OrderBook {
	return &OrderBook{
		bids:  rbt.NewWith[int64, *priceLevel](ascending),
		asks:  rbt.NewWith[int64, *priceLevel](ascending),
		index: make(map[uint64]indexEntry),
	}
}

func (b *OrderBook) sideTree(s Side) *rbt.Tree[int64, *priceLevel] {
	if s == Bid {
		return b.bids
	}
	return b.asks
}

// AddResting adds a new resting order to the book. It accepts only
// qty > 0, price >= 0 and an exchOrderID not already present; on any
// other input it returns false and leaves the book unchanged.
func (b *OrderBook) AddResting(exchOrderID uint64, side Side, priceTicks int64, qty int32) bool {
	if qty <= 0 || priceTicks < 0 {
		return false
	}
	if _, exists := b.index[exchOrderID]; exists {
		return false
	}

	tree := b.sideTree(side)
	level, found := tree.Get(priceTicks)
	if !found {
		level = &priceLevel{price: priceTicks, queue: list.New()}
		tree.Put(priceTicks, level)
	}

	elem := level.queue.PushBack(&Order{ExchOrderID: exchOrderID, RemainingQty: qty})
	b.index[exchOrderID] = indexEntry{side: side, price: priceTicks, elem: elem}
	return true
}

// CancelOrder removes a resting order by id. It returns false, with no
// state change, if the id is not present.
func (b *OrderBook) CancelOrder(exchOrderID uint64) bool {
	entry, ok := b.index[exchOrderID]
	if !ok {
		return false
	}

	tree := b.sideTree(entry.side)
	level, ok := tree.Get(entry.price)
	if !ok {
		// Invariant violation: the index points at a level that no longer
		// exists. This must not happen; the caller treats a panic here as
		// fatal per spec.md §7's InvariantViolation policy.
		panic("book: index entry refers to a missing price level")
	}

	level.queue.Remove(entry.elem)
	if level.queue.Len() == 0 {
		tree.Remove(entry.price)
	}

	delete(b.index, exchOrderID)
	return true
}

// MatchTaker matches an incoming order against the opposite side using
// price-time priority, appending one Trade per maker consumed and
// returning the total filled quantity. A non-positive qty or a
// negative limit price is a no-op.
func (b *OrderBook) MatchTaker(takerSide Side, takerLimitPrice int64, qty int32) (filled int32, trades []Trade) {
	if qty <= 0 || takerLimitPrice < 0 {
		return 0, nil
	}

	restingSide := takerSide.opposite()
	tree := b.sideTree(restingSide)

	for qty > 0 {
		price, level, ok := bestLevel(tree, restingSide)
		if !ok {
			break
		}
		if !crosses(takerSide, takerLimitPrice, price) {
			break
		}

		for qty > 0 && level.queue.Len() > 0 {
			front := level.queue.Front()
			resting := front.Value.(*Order)

			traded := qty
			if resting.RemainingQty < traded {
				traded = resting.RemainingQty
			}
			qty -= traded
			resting.RemainingQty -= traded
			filled += traded

			trades = append(trades, Trade{
				PriceTicks:         price,
				Qty:                traded,
				RestingExchOrderID: resting.ExchOrderID,
			})

			if resting.RemainingQty == 0 {
				delete(b.index, resting.ExchOrderID)
				level.queue.Remove(front)
			}
		}

		if level.queue.Len() == 0 {
			tree.Remove(price)
		}
	}

	return filled, trades
}

// crosses reports whether a resting order at restingPrice would trade
// against a taker at takerPrice on takerSide.
func crosses(takerSide Side, takerPrice, restingPrice int64) bool {
	if takerSide == Ask {
		return takerPrice <= restingPrice
	}
	return takerPrice >= restingPrice
}

// bestLevel returns the best (price, level) pair on the given resting
// side: maximum price for bids, minimum price for asks.
func bestLevel(tree *rbt.Tree[int64, *priceLevel], side Side) (int64, *priceLevel, bool) {
	if tree.Empty() {
		return 0, nil, false
	}
	var node *rbt.Node[int64, *priceLevel]
	if side == Bid {
		node = tree.Right()
	} else {
		node = tree.Left()
	}
	if node == nil {
		return 0, nil, false
	}
	return node.Key, node.Value, true
}

// BestBid returns the highest bid price and the head-of-FIFO quantity
// at that price, or false if the bid side is empty.
func (b *OrderBook) BestBid() (priceTicks int64, qty int32, ok bool) {
	return b.bestOnSide(Bid)
}

// BestAsk returns the lowest ask price and the head-of-FIFO quantity at
// that price, or false if the ask side is empty.
func (b *OrderBook) BestAsk() (priceTicks int64, qty int32, ok bool) {
	return b.bestOnSide(Ask)
}

func (b *OrderBook) bestOnSide(side Side) (int64, int32, bool) {
	price, level, ok := bestLevel(b.sideTree(side), side)
	if !ok {
		return 0, 0, false
	}
	if level.queue.Len() == 0 {
		return price, 0, true
	}
	return price, level.queue.Front().Value.(*Order).RemainingQty, true
}

// PriceLevel is one aggregated rung of the book: a price and the sum of
// remaining quantity across every order resting at that price.
type PriceLevel struct {
	PriceTicks int64
	Qty        int32
}

// DepthLevels returns every resting price level on one side, ordered
// from best to worst. It is a read-only diagnostic view (internal/diag,
// internal/adminapi); it plays no part in matching.
func (b *OrderBook) DepthLevels(side Side) []PriceLevel {
	tree := b.sideTree(side)
	it := tree.Iterator()
	levels := make([]PriceLevel, 0, tree.Size())
	for it.Next() {
		level := it.Value()
		var qty int32
		for e := level.queue.Front(); e != nil; e = e.Next() {
			qty += e.Value.(*Order).RemainingQty
		}
		levels = append(levels, PriceLevel{PriceTicks: level.price, Qty: qty})
	}
	if side == Bid {
		for l, r := 0, len(levels)-1; l < r; l, r = l+1, r-1 {
			levels[l], levels[r] = levels[r], levels[l]
		}
	}
	return levels
}

// NumOrders returns the total number of resting orders across both sides.
func (b *OrderBook) NumOrders() int { return len(b.index) }

// EmptyBid reports whether the bid side has no resting orders.
func (b *OrderBook) EmptyBid() bool { return b.bids.Empty() }

// EmptyAsk reports whether the ask side has no resting orders.
func (b *OrderBook) EmptyAsk() bool { return b.asks.Empty() }
