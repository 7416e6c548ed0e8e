package schema

// Row types captured by the columnar layout. Field order mirrors the
// on-disk column order of each schema.

// L2Row is one book-level update.
type L2Row struct {
	TsNs  uint64
	Price uint32
	Qty   float32
	Side  uint8
}

// L3Row is one order-level event.
type L3Row struct {
	ID     uint64
	TsNs   uint64
	Price  uint32
	Size   uint32
	Action uint8
	Side   uint8
}

// ImbalanceRow is a derived order-flow imbalance sample.
type ImbalanceRow struct {
	Imbalance float32
	TsNs      uint64
}

// VwapRow is a derived VWAP sample.
type VwapRow struct {
	Vwap float32
	TsNs uint64
}

// VoiRow is a derived volume-order-imbalance event.
type VoiRow struct {
	MidPrice uint32
	Voi      uint32
	TsNs     uint64
}

// TickRow is the canonical row consumed by the block codec: a merged
// limit/trade event stream.
type TickRow struct {
	TsNs  uint64
	Price uint32
	Size  float32
	Side  uint8
	// Type is 'L' for a limit update or 'T' for a trade. The codec keeps
	// only this distinction; any byte other than 'T' encodes as 'L'.
	Type byte
}
