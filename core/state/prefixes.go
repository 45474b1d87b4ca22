package state

var (
	accountPrefix         = []byte("account:")
	marketplaceRecPrefix  = []byte("market/marketplace/")
	userStateRecPrefix    = []byte("market/user/")
	questionRecPrefix     = []byte("market/question/")
	unlockKeyRecPrefix    = []byte("market/key/")
)
