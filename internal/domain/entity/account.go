package entity

import (
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

// Account formats a chain can use for its addresses.
const (
	AccountFormatEthereum = "ethereum"
	AccountFormatSS58     = "ss58"
)

// Account is one keyring entry. A non-empty GenesisHash restricts the account
// to the single chain with that genesis hash (hardware and locked accounts).
type Account struct {
	Address     string `json:"address" yaml:"address"`
	GenesisHash string `json:"genesisHash,omitempty" yaml:"genesisHash,omitempty"`
}

// Settings are the user settings the balance engine depends on.
type Settings struct {
	IncludeTestnets bool `json:"includeTestnets" yaml:"includeTestnets"`
}

// IsEthereumAddress reports whether address is a 20-byte hex address.
func IsEthereumAddress(address string) bool {
	return common.IsHexAddress(address) && strings.HasPrefix(address, "0x")
}

// AddressFormat returns the account format of address.
func AddressFormat(address string) string {
	if IsEthereumAddress(address) {
		return AccountFormatEthereum
	}
	return AccountFormatSS58
}

// NormalizeAddress lowercases hex addresses; other formats are case sensitive.
func NormalizeAddress(address string) string {
	address = strings.TrimSpace(address)
	if IsEthereumAddress(address) {
		return strings.ToLower(address)
	}
	return address
}
