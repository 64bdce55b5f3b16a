package runtime

import (
	"context"

	addr "github.com/filecoin-project/go-address"
	"github.com/filecoin-project/go-state-types/abi"
	"github.com/filecoin-project/go-state-types/cbor"
	"github.com/filecoin-project/go-state-types/exitcode"
	rtt "github.com/filecoin-project/go-state-types/rt"
	cid "github.com/ipfs/go-cid"
)

// Runtime is the host environment as visible to actor code: everything an
// actor may observe beyond its own parameters. The host serializes method
// invocations end-to-end, so actor code never synchronizes internally.
type Runtime interface {
	// Information related to the current message being executed.
	Message() Message

	// The current calendar day, as a whole number of days since the Unix epoch.
	// The host derives this from its clock by integer division of the current
	// time by the length of one day, and it never decreases between calls.
	CurrDay() abi.ChainEpoch

	// Validates the caller against some predicate.
	// Exported actor methods must invoke at least one caller validation before returning.
	ValidateImmediateCallerAcceptAny()
	ValidateImmediateCallerIs(addrs ...addr.Address)

	// Whether an account has self-registered with the host's identity
	// collaborator. Consulted by the "safe" grant variants.
	IsRegistered(a addr.Address) bool

	// Whether an account holds the grantor capability. Role administration
	// lives outside this actor; the host answers per call.
	IsGrantor(a addr.Address) bool

	// An external administrative gate. While the gate is closed no mutating
	// ledger operation may proceed.
	IsPaused() bool

	// Provides a handle for the actor's state object.
	State() StateHandle

	Store() Store

	// Halts execution upon a failure condition. The caller receives the exit
	// code and all state changes made within this call are rolled back.
	// This method does not return.
	// The message and args are for diagnostic purposes and do not persist.
	// They should be suitable for passing to fmt.Errorf(msg, args...).
	Abortf(errExitCode exitcode.ExitCode, msg string, args ...interface{})

	// Log writes a message at the given level to the host's logger.
	Log(level rtt.LogLevel, msg string, args ...interface{})

	// Provides a Go context for use by the HAMT store.
	// The host is intended to provide an idealised machine abstraction, so
	// this context should not be used by actor code directly.
	Context() context.Context
}

// Store defines the storage module exposed to actors.
type Store interface {
	// Retrieves and deserializes an object from the store into `o`. Returns whether successful.
	Get(c cid.Cid, o cbor.Unmarshaler) bool
	// Serializes and stores an object, returning its CID.
	Put(x cbor.Marshaler) cid.Cid
}

// Message contains information available to the actor about the executing message.
type Message interface {
	// The address of the immediate calling account. Always an ID-address.
	Caller() addr.Address

	// The address of the actor receiving the message. Always an ID-address.
	Receiver() addr.Address
}

// StateHandle provides mutable, exclusive access to actor state.
type StateHandle interface {
	// Create initializes the state object.
	// This is only valid in a constructor function and when the state has not yet been initialized.
	Create(obj cbor.Marshaler)

	// Readonly loads a readonly copy of the state into the argument.
	//
	// Any modification to the state is illegal and will result in an abort.
	Readonly(obj cbor.Unmarshaler)

	// Transaction loads a mutable version of the state into the `obj` argument
	// and protects the execution from side effects.
	//
	// The second argument is a function which allows the caller to mutate the
	// state. The return value from that function will be returned from the
	// call to Transaction().
	//
	// If the state is modified after this function returns, execution will abort.
	Transaction(obj cbor.Er, f func() interface{}) interface{}
}

// VMActor is a concrete implementation of an actor, to be invoked by the host.
type VMActor = rtt.VMActor

// Invokee is the method dispatch interface all actor code satisfies.
type Invokee interface {
	Exports() []interface{}
}
