package mock

import (
	"context"
	"testing"

	addr "github.com/filecoin-project/go-address"
	"github.com/filecoin-project/go-state-types/abi"
	cid "github.com/ipfs/go-cid"
)

// Build for fluent initialization of a mock runtime.
type RuntimeBuilder struct {
	rt *Runtime
}

// Initializes a new builder with a receiving actor address.
func NewBuilder(ctx context.Context, receiver addr.Address) *RuntimeBuilder {
	m := &Runtime{
		ctx:      ctx,
		day:      0,
		receiver: receiver,
		caller:   addr.Address{},

		registered: make(map[addr.Address]bool),
		grantors:   make(map[addr.Address]bool),
		paused:     false,

		state: cid.Undef,
		store: make(map[cid.Cid][]byte),

		t:                        nil, // Initialized at Build()
		expectValidateCallerAny:  false,
		expectValidateCallerAddr: nil,
	}
	return &RuntimeBuilder{m}
}

// Builds a new runtime object with the configured values.
func (b *RuntimeBuilder) Build(t testing.TB) *Runtime {
	cpy := *b.rt

	// Deep copy the mutable values.
	cpy.store = make(map[cid.Cid][]byte)
	for k, v := range b.rt.store {
		cpy.store[k] = v
	}
	cpy.registered = make(map[addr.Address]bool)
	for k, v := range b.rt.registered {
		cpy.registered[k] = v
	}
	cpy.grantors = make(map[addr.Address]bool)
	for k, v := range b.rt.grantors {
		cpy.grantors[k] = v
	}

	cpy.t = t
	return &cpy
}

func (b *RuntimeBuilder) WithDay(day abi.ChainEpoch) *RuntimeBuilder {
	b.rt.day = day
	return b
}

func (b *RuntimeBuilder) WithCaller(address addr.Address) *RuntimeBuilder {
	b.rt.caller = address
	return b
}

func (b *RuntimeBuilder) WithGrantor(grantor addr.Address) *RuntimeBuilder {
	b.rt.grantors[grantor] = true
	return b
}

func (b *RuntimeBuilder) WithRegistered(accounts ...addr.Address) *RuntimeBuilder {
	for _, a := range accounts {
		b.rt.registered[a] = true
	}
	return b
}

func (b *RuntimeBuilder) WithPaused(paused bool) *RuntimeBuilder {
	b.rt.paused = paused
	return b
}
