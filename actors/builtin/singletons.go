package builtin

import (
	addr "github.com/filecoin-project/go-address"
)

// Addresses of singleton actors in the host system.
var (
	// The distinguished system account, the only permitted caller of actor
	// constructors.
	SystemActorAddr = mustMakeAddress(0)
)

func mustMakeAddress(id uint64) addr.Address {
	address, err := addr.NewIDAddress(id)
	if err != nil {
		panic(err)
	}
	return address
}
