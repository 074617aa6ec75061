package params

const (
	// ParamsKeyMarket stores the marketplace operator and fee configuration.
	ParamsKeyMarket = "market/config"
)

const (
	// DefaultFeePercent is the platform fee applied when genesis omits one.
	DefaultFeePercent uint64 = 5
	// MaxFeePercent bounds the platform fee.
	MaxFeePercent uint64 = 100
)
