package balancepool

import "errors"

var (
	// ErrUnknownToken is returned by GetBalance for a token the registry does not know.
	ErrUnknownToken = errors.New("unknown token")
	// ErrNoModule is returned by GetBalance when no module handles the token's type.
	ErrNoModule = errors.New("no balance module for token type")
	// ErrPoolClosed is returned once the pool has been shut down.
	ErrPoolClosed = errors.New("balance pool is closed")
)
