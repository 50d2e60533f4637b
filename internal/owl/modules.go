// Package owl declares the OwlCoin token and OwlPresale deployments.
package owl

import (
	"math/big"

	"github.com/EngrMohsinAzam/OwlCoin/internal/module"
)

// Module ids.
const (
	CoinModuleID    = "OwlCoinModule"
	PresaleModuleID = "OwlPresaleModule"
)

// Presale parameter names.
const (
	ParamOwlToken  = "owlToken"
	ParamUSDTToken = "usdtToken"
	ParamPrice     = "price"
)

// Presale defaults (BSC testnet).
const (
	// DefaultOwlToken is a placeholder; override it with the deployed OwlCoin address.
	DefaultOwlToken = "0x..."
	// DefaultUSDTToken is USDT on BSC testnet.
	DefaultUSDTToken = "0x337610d27c682E347C9cD60BD4b3b107C9d34dDd"
	// DefaultPrice is 0.0005 BNB per OWL, in wei.
	DefaultPrice = 500_000_000_000_000
)

// CoinModule deploys OwlCoin. The constructor takes no arguments.
var CoinModule = module.Descriptor{
	ID:          CoinModuleID,
	Description: "Deploy the OwlCoin token",
	Build: func(m *module.Builder) module.Result {
		owlCoin := m.Contract("OwlCoin")
		return module.Result{"owlCoin": owlCoin}
	},
}

// PresaleModule deploys OwlPresale(owlToken, usdtToken, price).
var PresaleModule = module.Descriptor{
	ID:          PresaleModuleID,
	Description: "Deploy the OwlPresale contract",
	Build: func(m *module.Builder) module.Result {
		owlToken := m.GetParameter(ParamOwlToken, DefaultOwlToken)
		usdtToken := m.GetParameter(ParamUSDTToken, DefaultUSDTToken)
		price := m.GetParameter(ParamPrice, big.NewInt(DefaultPrice))

		owlPresale := m.Contract("OwlPresale", owlToken, usdtToken, price)
		return module.Result{"owlPresale": owlPresale}
	},
}

// Registry returns the descriptors owlctl can deploy. The contract names
// OwlCoin and OwlPresale work as aliases of their module ids.
func Registry() *module.Registry {
	r := module.NewRegistry(CoinModule, PresaleModule)
	r.Alias("OwlCoin", CoinModuleID)
	r.Alias("OwlPresale", PresaleModuleID)
	return r
}
