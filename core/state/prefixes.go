package state

var (
	accountPrefix  = []byte("account/")
	paramPrefix    = []byte("params/")
	counterPrefix  = []byte("counter/")
	listingPrefix  = []byte("catalog/listing/")
	categoryPrefix = []byte("catalog/category/")
	salePrefix     = []byte("market/sale/")
	escrowPrefix   = []byte("market/escrow/")
	disputePrefix  = []byte("market/dispute/")
)

const (
	counterListing = "listing"
	counterSale    = "sale"
)
