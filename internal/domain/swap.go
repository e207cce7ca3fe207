package domain

// Direction is the side of a swap relative to the quote token.
type Direction string

const (
	DirectionBuy  Direction = "buy"  // quote in, base out
	DirectionSell Direction = "sell" // base in, quote out
)

// String returns the string representation of Direction.
func (d Direction) String() string {
	return string(d)
}

// IsValid checks if the direction is a valid value.
func (d Direction) IsValid() bool {
	return d == DirectionBuy || d == DirectionSell
}

// Quote is the expected outcome of a swap.
type Quote struct {
	AmountIn     uint64 // raw input token units
	AmountOut    uint64 // expected raw output units
	MinAmountOut uint64 // AmountOut reduced by slippage
	Fee          uint64 // trade fee in raw quote units
}
