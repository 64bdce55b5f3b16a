package vesttoken

import (
	addr "github.com/filecoin-project/go-address"
	"github.com/filecoin-project/go-state-types/abi"
	"github.com/filecoin-project/go-state-types/big"
	"github.com/filecoin-project/go-state-types/cbor"
	"github.com/filecoin-project/go-state-types/exitcode"
	rtt "github.com/filecoin-project/go-state-types/rt"
	cid "github.com/ipfs/go-cid"

	"github.com/vestable/vesting-actors/actors/builtin"
	"github.com/vestable/vesting-actors/actors/runtime"
	"github.com/vestable/vesting-actors/actors/util/adt"
)

// Actor-specific exit codes. Every failure leaves state exactly as it was
// before the call; callers may treat any failure as "operation did not
// happen" and retry with corrected inputs.
const (
	ErrInvalidSchedule = exitcode.FirstActorSpecificExitCode + iota
	ErrInvalidGrantParams
	ErrGrantExists
	ErrNoSchedule
	ErrNoActiveGrant
	ErrIrrevocable
	ErrRevokeHasNoEffect
	ErrCannotRevokeVested
	ErrInsufficientVestedFunds
	ErrArithmeticFault
	ErrZeroAddress
)

type Actor struct{}

func (a Actor) Exports() []interface{} {
	return []interface{}{
		builtin.MethodConstructor: a.Constructor,
		2:                         a.Transfer,
		3:                         a.TransferFrom,
		4:                         a.Approve,
		5:                         a.Burn,
		6:                         a.BalanceOf,
		7:                         a.Allowance,
		8:                         a.GetTotalSupply,
		9:                         a.AvailableBalanceOf,
		10:                        a.GrantVestingTokens,
		11:                        a.SafeGrantVestingTokens,
		12:                        a.RevokeGrant,
		13:                        a.VestingAsOf,
		14:                        a.VestingForAccountAsOf,
		15:                        a.GetIntrinsicVestingSchedule,
		16:                        a.SetIntrinsicVestingSchedule,
		17:                        a.SetRestrictions,
		18:                        a.GrantUniformVestingTokens,
	}
}

func (a Actor) Code() cid.Cid {
	return builtin.VestedTokenActorCodeID
}

func (a Actor) IsSingleton() bool {
	return false
}

func (a Actor) State() cbor.Er {
	return new(State)
}

var _ runtime.VMActor = Actor{}

////////////////////////////////////////////////////////////////////////////////
// Construction
////////////////////////////////////////////////////////////////////////////////

type ConstructorParams struct {
	Owner  addr.Address
	Supply abi.TokenAmount
}

// Constructor performs the single genesis mint: the full supply is credited
// to the owner account. No later minting path exists.
func (a Actor) Constructor(rt runtime.Runtime, params *ConstructorParams) *adt.EmptyValue {
	rt.ValidateImmediateCallerIs(builtin.SystemActorAddr)
	builtin.RequireParam(rt, params.Owner != addr.Undef, "owner address undefined")
	builtin.RequireParam(rt, params.Supply.GreaterThanEqual(big.Zero()), "negative supply %v", params.Supply)

	st, err := ConstructState(adt.AsStore(rt), params.Owner, params.Supply)
	builtin.RequireNoErr(rt, err, exitcode.ErrIllegalState, "failed to construct state")
	rt.State().Create(st)
	return nil
}

////////////////////////////////////////////////////////////////////////////////
// Guarded ledger operations
////////////////////////////////////////////////////////////////////////////////

type TransferParams struct {
	To     addr.Address
	Amount abi.TokenAmount
}

// Transfer moves tokens from the caller's balance, subject to the caller's
// vesting lock.
func (a Actor) Transfer(rt runtime.Runtime, params *TransferParams) *adt.EmptyValue {
	rt.ValidateImmediateCallerAcceptAny()
	builtin.RequireNotPaused(rt)
	builtin.RequireParam(rt, params.Amount.GreaterThanEqual(big.Zero()), "negative amount %v", params.Amount)
	from := rt.Message().Caller()
	if params.To == addr.Undef {
		rt.Abortf(ErrZeroAddress, "transfer to the zero address")
	}

	var st State
	rt.State().Transaction(&st, func() interface{} {
		store := adt.AsStore(rt)
		requireFundsAvailable(rt, &st, store, from, params.Amount)
		err := st.transferBalance(store, from, params.To, params.Amount)
		builtin.RequireNoErr(rt, err, ErrArithmeticFault, "failed to transfer %v from %v to %v", params.Amount, from, params.To)
		return nil
	})
	return nil
}

type TransferFromParams struct {
	From   addr.Address
	To     addr.Address
	Amount abi.TokenAmount
}

// TransferFrom draws down a pre-existing allowance. The vesting availability
// check already happened when the holder approved the allowance, so only the
// raw balance and allowance bound this operation.
func (a Actor) TransferFrom(rt runtime.Runtime, params *TransferFromParams) *adt.EmptyValue {
	rt.ValidateImmediateCallerAcceptAny()
	builtin.RequireNotPaused(rt)
	builtin.RequireParam(rt, params.Amount.GreaterThanEqual(big.Zero()), "negative amount %v", params.Amount)
	spender := rt.Message().Caller()
	if params.From == addr.Undef || params.To == addr.Undef {
		rt.Abortf(ErrZeroAddress, "transfer between zero addresses")
	}

	var st State
	rt.State().Transaction(&st, func() interface{} {
		store := adt.AsStore(rt)
		err := st.deductAllowance(store, params.From, spender, params.Amount)
		builtin.RequireNoErr(rt, err, ErrArithmeticFault, "failed to deduct allowance of %v for %v", params.From, spender)
		err = st.transferBalance(store, params.From, params.To, params.Amount)
		builtin.RequireNoErr(rt, err, ErrArithmeticFault, "failed to transfer %v from %v to %v", params.Amount, params.From, params.To)
		return nil
	})
	return nil
}

type ApproveParams struct {
	Spender addr.Address
	Amount  abi.TokenAmount
}

// Approve lets a spender move up to the approved amount from the caller's
// balance. The approval itself is guarded, as an approval could later be
// drawn down below the caller's vested threshold.
func (a Actor) Approve(rt runtime.Runtime, params *ApproveParams) *adt.EmptyValue {
	rt.ValidateImmediateCallerAcceptAny()
	builtin.RequireNotPaused(rt)
	builtin.RequireParam(rt, params.Amount.GreaterThanEqual(big.Zero()), "negative amount %v", params.Amount)
	owner := rt.Message().Caller()
	if params.Spender == addr.Undef {
		rt.Abortf(ErrZeroAddress, "approval for the zero address")
	}

	var st State
	rt.State().Transaction(&st, func() interface{} {
		store := adt.AsStore(rt)
		requireFundsAvailable(rt, &st, store, owner, params.Amount)
		err := st.setAllowance(store, owner, params.Spender, params.Amount)
		builtin.RequireNoErr(rt, err, exitcode.ErrIllegalState, "failed to approve %v for %v", params.Amount, params.Spender)
		return nil
	})
	return nil
}

type BurnParams struct {
	Amount abi.TokenAmount
}

// Burn destroys tokens from the caller's balance, subject to the caller's
// vesting lock, and reduces total supply by the same amount.
func (a Actor) Burn(rt runtime.Runtime, params *BurnParams) *adt.EmptyValue {
	rt.ValidateImmediateCallerAcceptAny()
	builtin.RequireNotPaused(rt)
	builtin.RequireParam(rt, params.Amount.GreaterThanEqual(big.Zero()), "negative amount %v", params.Amount)
	from := rt.Message().Caller()

	var st State
	rt.State().Transaction(&st, func() interface{} {
		store := adt.AsStore(rt)
		requireFundsAvailable(rt, &st, store, from, params.Amount)
		err := st.burnBalance(store, from, params.Amount)
		builtin.RequireNoErr(rt, err, ErrArithmeticFault, "failed to burn %v from %v", params.Amount, from)
		return nil
	})
	return nil
}

////////////////////////////////////////////////////////////////////////////////
// Balance queries
////////////////////////////////////////////////////////////////////////////////

func (a Actor) BalanceOf(rt runtime.Runtime, account *addr.Address) *abi.TokenAmount {
	rt.ValidateImmediateCallerAcceptAny()
	var st State
	rt.State().Readonly(&st)
	balance, err := st.BalanceOf(adt.AsStore(rt), *account)
	builtin.RequireNoErr(rt, err, exitcode.ErrIllegalState, "failed to load balance of %v", *account)
	return &balance
}

type AllowanceParams struct {
	Owner   addr.Address
	Spender addr.Address
}

func (a Actor) Allowance(rt runtime.Runtime, params *AllowanceParams) *abi.TokenAmount {
	rt.ValidateImmediateCallerAcceptAny()
	var st State
	rt.State().Readonly(&st)
	amount, err := st.Allowance(adt.AsStore(rt), params.Owner, params.Spender)
	builtin.RequireNoErr(rt, err, exitcode.ErrIllegalState, "failed to load allowance %v->%v", params.Owner, params.Spender)
	return &amount
}

func (a Actor) GetTotalSupply(rt runtime.Runtime, _ *adt.EmptyValue) *abi.TokenAmount {
	rt.ValidateImmediateCallerAcceptAny()
	var st State
	rt.State().Readonly(&st)
	return &st.TotalSupply
}

// AvailableBalanceOf returns the portion of an account's balance not locked
// by vesting as of the current day.
func (a Actor) AvailableBalanceOf(rt runtime.Runtime, account *addr.Address) *abi.TokenAmount {
	rt.ValidateImmediateCallerAcceptAny()
	var st State
	rt.State().Readonly(&st)
	available, err := st.AvailableBalance(adt.AsStore(rt), *account, rt.CurrDay())
	builtin.RequireNoErr(rt, err, exitcode.ErrIllegalState, "failed to compute available balance of %v", *account)
	return &available
}

////////////////////////////////////////////////////////////////////////////////
// Grant lifecycle
////////////////////////////////////////////////////////////////////////////////

type GrantParams struct {
	Beneficiary   addr.Address
	TotalAmount   abi.TokenAmount
	VestingAmount abi.TokenAmount
	StartDay      abi.ChainEpoch
	Duration      abi.ChainEpoch
	CliffDuration abi.ChainEpoch
	Interval      abi.ChainEpoch
	IsRevocable   bool
}

// GrantVestingTokens deposits TotalAmount into the beneficiary's balance and
// places VestingAmount of it under a new per-wallet vesting schedule, stored
// at the beneficiary's own location. The portion above VestingAmount is
// immediately spendable.
func (a Actor) GrantVestingTokens(rt runtime.Runtime, params *GrantParams) *adt.EmptyValue {
	rt.ValidateImmediateCallerAcceptAny()
	a.grantWithNewSchedule(rt, params)
	return nil
}

// SafeGrantVestingTokens is GrantVestingTokens restricted to beneficiaries
// that have self-registered with the identity collaborator.
func (a Actor) SafeGrantVestingTokens(rt runtime.Runtime, params *GrantParams) *adt.EmptyValue {
	rt.ValidateImmediateCallerAcceptAny()
	if !rt.IsRegistered(params.Beneficiary) {
		rt.Abortf(exitcode.ErrForbidden, "beneficiary %v is not registered", params.Beneficiary)
	}
	a.grantWithNewSchedule(rt, params)
	return nil
}

func (a Actor) grantWithNewSchedule(rt runtime.Runtime, params *GrantParams) {
	builtin.RequireNotPaused(rt)
	grantor := rt.Message().Caller()
	if !rt.IsGrantor(grantor) {
		rt.Abortf(exitcode.ErrForbidden, "caller %v does not hold the grantor capability", grantor)
	}

	var st State
	rt.State().Transaction(&st, func() interface{} {
		store := adt.AsStore(rt)
		requireNoActiveGrant(rt, &st, store, params.Beneficiary)
		requireGrantAmounts(rt, params.TotalAmount, params.VestingAmount, params.StartDay)

		// Schedules are write-once per location; re-granting to a wallet that
		// already carries one is rejected rather than overwriting.
		_, found, err := st.GetSchedule(store, params.Beneficiary)
		builtin.RequireNoErr(rt, err, exitcode.ErrIllegalState, "failed to check schedule at %v", params.Beneficiary)
		if found {
			rt.Abortf(ErrInvalidSchedule, "schedule already exists at %v", params.Beneficiary)
		}

		schedule := &VestingSchedule{
			IsValid:       true,
			IsRevocable:   params.IsRevocable,
			CliffDuration: params.CliffDuration,
			Duration:      params.Duration,
			Interval:      params.Interval,
		}
		err = schedule.Validate()
		builtin.RequireNoErr(rt, err, ErrInvalidSchedule, "invalid vesting schedule for %v", params.Beneficiary)
		err = st.putSchedule(store, params.Beneficiary, schedule)
		builtin.RequireNoErr(rt, err, exitcode.ErrIllegalState, "failed to store schedule at %v", params.Beneficiary)

		createGrant(rt, &st, store, grantor, params.Beneficiary, params.Beneficiary, params.TotalAmount, params.VestingAmount, params.StartDay)
		return nil
	})
}

// createGrant is the core shared by the per-wallet and uniform variants. The
// caller has already verified there is no active grant and that the amounts
// and start day are well-formed.
func createGrant(rt runtime.Runtime, st *State, store adt.Store, grantor, vestingLocation, beneficiary addr.Address,
	totalAmount, vestingAmount abi.TokenAmount, startDay abi.ChainEpoch) {
	if beneficiary == addr.Undef {
		rt.Abortf(ErrZeroAddress, "grant to the zero address")
	}

	_, found, err := st.GetSchedule(store, vestingLocation)
	builtin.RequireNoErr(rt, err, exitcode.ErrIllegalState, "failed to check schedule at %v", vestingLocation)
	if !found {
		rt.Abortf(ErrNoSchedule, "no vesting schedule at location %v", vestingLocation)
	}

	// The grantor's own vesting lock applies to the deposit.
	requireFundsAvailable(rt, st, store, grantor, totalAmount)
	err = st.transferBalance(store, grantor, beneficiary, totalAmount)
	builtin.RequireNoErr(rt, err, ErrArithmeticFault, "failed to deposit %v from %v to %v", totalAmount, grantor, beneficiary)

	err = st.putGrant(store, beneficiary, &TokenGrant{
		IsActive:        true,
		WasRevoked:      false,
		Grantor:         grantor,
		VestingLocation: vestingLocation,
		StartDay:        startDay,
		Amount:          vestingAmount,
	})
	builtin.RequireNoErr(rt, err, exitcode.ErrIllegalState, "failed to store grant for %v", beneficiary)

	rt.Log(rtt.INFO, "granted %v to %v (%v vesting from day %d at location %v)",
		totalAmount, beneficiary, vestingAmount, startDay, vestingLocation)
}

type RevokeParams struct {
	Beneficiary addr.Address
	OnDay       abi.ChainEpoch
}

// RevokeGrant returns the portion of a grant not vested as of OnDay to the
// grantor and permanently deactivates the grant. Only the owner or the
// grant's original grantor may revoke, only as of today or a future day, and
// never after the grant has fully vested.
func (a Actor) RevokeGrant(rt runtime.Runtime, params *RevokeParams) *adt.EmptyValue {
	rt.ValidateImmediateCallerAcceptAny()
	builtin.RequireNotPaused(rt)
	caller := rt.Message().Caller()

	var st State
	rt.State().Transaction(&st, func() interface{} {
		store := adt.AsStore(rt)
		grant, found, err := st.GetGrant(store, params.Beneficiary)
		builtin.RequireNoErr(rt, err, exitcode.ErrIllegalState, "failed to load grant for %v", params.Beneficiary)
		if !found || !grant.IsActive {
			rt.Abortf(ErrNoActiveGrant, "no active grant for %v", params.Beneficiary)
		}
		if caller != st.Owner && caller != grant.Grantor {
			rt.Abortf(exitcode.ErrForbidden, "caller %v is neither owner nor grantor of the grant for %v", caller, params.Beneficiary)
		}

		schedule, found, err := st.GetSchedule(store, grant.VestingLocation)
		builtin.RequireNoErr(rt, err, exitcode.ErrIllegalState, "failed to load schedule at %v", grant.VestingLocation)
		builtin.RequireState(rt, found, "active grant for %v references missing schedule at %v", params.Beneficiary, grant.VestingLocation)
		if !schedule.IsRevocable {
			rt.Abortf(ErrIrrevocable, "grant for %v is not revocable", params.Beneficiary)
		}
		if params.OnDay > grant.StartDay+schedule.Duration {
			rt.Abortf(ErrRevokeHasNoEffect, "grant for %v is fully vested on day %d", params.Beneficiary, params.OnDay)
		}
		if params.OnDay < rt.CurrDay() {
			rt.Abortf(ErrCannotRevokeVested, "cannot revoke as of past day %d (today is %d)", params.OnDay, rt.CurrDay())
		}

		notVested := schedule.NotVestedOnDay(grant, params.OnDay)
		err = st.transferBalance(store, params.Beneficiary, grant.Grantor, notVested)
		builtin.RequireNoErr(rt, err, exitcode.ErrIllegalState, "failed to return %v from %v to %v", notVested, params.Beneficiary, grant.Grantor)

		grant.IsActive = false
		grant.WasRevoked = true
		err = st.putGrant(store, params.Beneficiary, grant)
		builtin.RequireNoErr(rt, err, exitcode.ErrIllegalState, "failed to store revoked grant for %v", params.Beneficiary)

		rt.Log(rtt.INFO, "revoked grant for %v as of day %d, returned %v to %v", params.Beneficiary, params.OnDay, notVested, grant.Grantor)
		return nil
	})
	return nil
}

////////////////////////////////////////////////////////////////////////////////
// Vesting queries
////////////////////////////////////////////////////////////////////////////////

type VestingSummary struct {
	AmountVested    abi.TokenAmount
	AmountNotVested abi.TokenAmount
	AmountOfGrant   abi.TokenAmount
	VestStartDay    abi.ChainEpoch
	CliffDuration   abi.ChainEpoch
	VestDuration    abi.ChainEpoch
	VestInterval    abi.ChainEpoch
	IsActive        bool
	WasRevoked      bool
}

type VestingAsOfParams struct {
	// Day to evaluate, or 0 for today.
	OnDay abi.ChainEpoch
}

// VestingAsOf reports the caller's own vesting position as of a day.
func (a Actor) VestingAsOf(rt runtime.Runtime, params *VestingAsOfParams) *VestingSummary {
	rt.ValidateImmediateCallerAcceptAny()
	var st State
	rt.State().Readonly(&st)
	return vestingSummary(rt, &st, rt.Message().Caller(), resolveDay(rt, params.OnDay))
}

type VestingQueryParams struct {
	Account addr.Address
	// Day to evaluate, or 0 for today.
	OnDay abi.ChainEpoch
}

// VestingForAccountAsOf reports another account's vesting position. Restricted
// to the account itself, grantor capability holders, and the owner.
func (a Actor) VestingForAccountAsOf(rt runtime.Runtime, params *VestingQueryParams) *VestingSummary {
	rt.ValidateImmediateCallerAcceptAny()
	var st State
	rt.State().Readonly(&st)
	requireGrantorOrSelf(rt, &st, params.Account)
	return vestingSummary(rt, &st, params.Account, resolveDay(rt, params.OnDay))
}

// GetIntrinsicVestingSchedule returns the schedule stored at an account's own
// location. Restricted like VestingForAccountAsOf.
func (a Actor) GetIntrinsicVestingSchedule(rt runtime.Runtime, account *addr.Address) *VestingSchedule {
	rt.ValidateImmediateCallerAcceptAny()
	var st State
	rt.State().Readonly(&st)
	requireGrantorOrSelf(rt, &st, *account)

	schedule, found, err := st.GetSchedule(adt.AsStore(rt), *account)
	builtin.RequireNoErr(rt, err, exitcode.ErrIllegalState, "failed to load schedule at %v", *account)
	if !found {
		rt.Abortf(ErrNoSchedule, "no vesting schedule at location %v", *account)
	}
	return schedule
}

////////////////////////////////////////////////////////////////////////////////
// Uniform grants
////////////////////////////////////////////////////////////////////////////////

type ScheduleParams struct {
	Grantor       addr.Address
	CliffDuration abi.ChainEpoch
	Duration      abi.ChainEpoch
	Interval      abi.ChainEpoch
	IsRevocable   bool
}

// SetIntrinsicVestingSchedule stores a shared schedule at a grantor's own
// location, for reuse across that grantor's uniform grants. Owner only,
// write-once.
func (a Actor) SetIntrinsicVestingSchedule(rt runtime.Runtime, params *ScheduleParams) *adt.EmptyValue {
	var st State
	rt.State().Readonly(&st)
	rt.ValidateImmediateCallerIs(st.Owner)
	builtin.RequireNotPaused(rt)
	if params.Grantor == addr.Undef {
		rt.Abortf(ErrZeroAddress, "schedule for the zero address")
	}

	rt.State().Transaction(&st, func() interface{} {
		store := adt.AsStore(rt)
		_, found, err := st.GetSchedule(store, params.Grantor)
		builtin.RequireNoErr(rt, err, exitcode.ErrIllegalState, "failed to check schedule at %v", params.Grantor)
		if found {
			rt.Abortf(ErrInvalidSchedule, "schedule already exists at %v", params.Grantor)
		}

		schedule := &VestingSchedule{
			IsValid:       true,
			IsRevocable:   params.IsRevocable,
			CliffDuration: params.CliffDuration,
			Duration:      params.Duration,
			Interval:      params.Interval,
		}
		err = schedule.Validate()
		builtin.RequireNoErr(rt, err, ErrInvalidSchedule, "invalid vesting schedule for %v", params.Grantor)
		err = st.putSchedule(store, params.Grantor, schedule)
		builtin.RequireNoErr(rt, err, exitcode.ErrIllegalState, "failed to store schedule at %v", params.Grantor)
		return nil
	})
	return nil
}

type RestrictionsParams struct {
	Grantor       addr.Address
	MinStartDay   abi.ChainEpoch
	MaxStartDay   abi.ChainEpoch
	ExpirationDay abi.ChainEpoch
}

// SetRestrictions bounds a uniform grantor's authority to a start-day window
// and an expiration day. Owner only; re-settable to widen or narrow later.
func (a Actor) SetRestrictions(rt runtime.Runtime, params *RestrictionsParams) *adt.EmptyValue {
	var st State
	rt.State().Readonly(&st)
	rt.ValidateImmediateCallerIs(st.Owner)
	builtin.RequireNotPaused(rt)
	if params.Grantor == addr.Undef {
		rt.Abortf(ErrZeroAddress, "restrictions for the zero address")
	}
	if params.MinStartDay < MinGrantStartDay || params.MaxStartDay > MaxGrantStartDay || params.MinStartDay >= params.MaxStartDay {
		rt.Abortf(ErrInvalidGrantParams, "start-day window [%d, %d) out of range", params.MinStartDay, params.MaxStartDay)
	}
	if params.ExpirationDay <= rt.CurrDay() {
		rt.Abortf(ErrInvalidGrantParams, "expiration day %d is not in the future", params.ExpirationDay)
	}

	rt.State().Transaction(&st, func() interface{} {
		err := st.putRestrictions(adt.AsStore(rt), params.Grantor, &GrantorRestrictions{
			MinStartDay:   params.MinStartDay,
			MaxStartDay:   params.MaxStartDay,
			ExpirationDay: params.ExpirationDay,
		})
		builtin.RequireNoErr(rt, err, exitcode.ErrIllegalState, "failed to store restrictions for %v", params.Grantor)
		return nil
	})
	return nil
}

type UniformGrantParams struct {
	Beneficiary   addr.Address
	TotalAmount   abi.TokenAmount
	VestingAmount abi.TokenAmount
	StartDay      abi.ChainEpoch
}

// GrantUniformVestingTokens grants against the caller's own shared schedule,
// so many beneficiaries reference one schedule record. The caller must be a
// grantor with unexpired restrictions, the start day must fall in the
// grantor's window, and the beneficiary must have self-registered.
func (a Actor) GrantUniformVestingTokens(rt runtime.Runtime, params *UniformGrantParams) *adt.EmptyValue {
	rt.ValidateImmediateCallerAcceptAny()
	builtin.RequireNotPaused(rt)
	grantor := rt.Message().Caller()
	if !rt.IsGrantor(grantor) {
		rt.Abortf(exitcode.ErrForbidden, "caller %v does not hold the grantor capability", grantor)
	}
	if !rt.IsRegistered(params.Beneficiary) {
		rt.Abortf(exitcode.ErrForbidden, "beneficiary %v is not registered", params.Beneficiary)
	}

	var st State
	rt.State().Transaction(&st, func() interface{} {
		store := adt.AsStore(rt)
		restrictions, found, err := st.GetRestrictions(store, grantor)
		builtin.RequireNoErr(rt, err, exitcode.ErrIllegalState, "failed to load restrictions for %v", grantor)
		if !found {
			rt.Abortf(exitcode.ErrForbidden, "no grantor restrictions established for %v", grantor)
		}
		if rt.CurrDay() >= restrictions.ExpirationDay {
			rt.Abortf(exitcode.ErrForbidden, "grantor authority for %v expired on day %d", grantor, restrictions.ExpirationDay)
		}
		if params.StartDay < restrictions.MinStartDay || params.StartDay >= restrictions.MaxStartDay {
			rt.Abortf(ErrInvalidGrantParams, "start day %d outside grantor window [%d, %d)",
				params.StartDay, restrictions.MinStartDay, restrictions.MaxStartDay)
		}

		requireNoActiveGrant(rt, &st, store, params.Beneficiary)
		requireGrantAmounts(rt, params.TotalAmount, params.VestingAmount, params.StartDay)
		createGrant(rt, &st, store, grantor, grantor, params.Beneficiary, params.TotalAmount, params.VestingAmount, params.StartDay)
		return nil
	})
	return nil
}

////////////////////////////////////////////////////////////////////////////////
// Shared checks
////////////////////////////////////////////////////////////////////////////////

// Enforces the transfer guard: a self-initiated debit may not exceed the
// account's balance, nor the portion of it vested as of today. The two
// failure kinds let callers distinguish an empty balance from one that is
// merely not yet vested.
func requireFundsAvailable(rt runtime.Runtime, st *State, store adt.Store, account addr.Address, amount abi.TokenAmount) {
	balance, err := st.BalanceOf(store, account)
	builtin.RequireNoErr(rt, err, exitcode.ErrIllegalState, "failed to load balance of %v", account)
	if amount.GreaterThan(balance) {
		rt.Abortf(exitcode.ErrInsufficientFunds, "amount %v exceeds balance %v of %v", amount, balance, account)
	}
	available, err := st.AvailableBalance(store, account, rt.CurrDay())
	builtin.RequireNoErr(rt, err, exitcode.ErrIllegalState, "failed to compute available balance of %v", account)
	if amount.GreaterThan(available) {
		rt.Abortf(ErrInsufficientVestedFunds, "amount %v exceeds available %v of %v on day %d", amount, available, account, rt.CurrDay())
	}
}

func requireNoActiveGrant(rt runtime.Runtime, st *State, store adt.Store, beneficiary addr.Address) {
	grant, found, err := st.GetGrant(store, beneficiary)
	builtin.RequireNoErr(rt, err, exitcode.ErrIllegalState, "failed to load grant for %v", beneficiary)
	if found && grant.IsActive {
		rt.Abortf(ErrGrantExists, "beneficiary %v already has an active grant", beneficiary)
	}
}

func requireGrantAmounts(rt runtime.Runtime, totalAmount, vestingAmount abi.TokenAmount, startDay abi.ChainEpoch) {
	if vestingAmount.LessThanEqual(big.Zero()) || vestingAmount.GreaterThan(totalAmount) {
		rt.Abortf(ErrInvalidGrantParams, "vesting amount %v must be positive and within total %v", vestingAmount, totalAmount)
	}
	if startDay < MinGrantStartDay || startDay >= MaxGrantStartDay {
		rt.Abortf(ErrInvalidGrantParams, "start day %d outside [%d, %d)", startDay, MinGrantStartDay, MaxGrantStartDay)
	}
}

// Restricts a query over another account's grant detail to the account
// itself, grantor capability holders, and the owner.
func requireGrantorOrSelf(rt runtime.Runtime, st *State, account addr.Address) {
	caller := rt.Message().Caller()
	if caller == account || caller == st.Owner || rt.IsGrantor(caller) {
		return
	}
	rt.Abortf(exitcode.ErrForbidden, "caller %v may not inspect vesting of %v", caller, account)
}

func resolveDay(rt runtime.Runtime, onDay abi.ChainEpoch) abi.ChainEpoch {
	if onDay == DayToday {
		return rt.CurrDay()
	}
	builtin.RequireParam(rt, onDay > 0, "negative day number %d", onDay)
	return onDay
}

func vestingSummary(rt runtime.Runtime, st *State, account addr.Address, onDay abi.ChainEpoch) *VestingSummary {
	store := adt.AsStore(rt)
	grant, found, err := st.GetGrant(store, account)
	builtin.RequireNoErr(rt, err, exitcode.ErrIllegalState, "failed to load grant for %v", account)
	if !found {
		return &VestingSummary{
			AmountVested:    big.Zero(),
			AmountNotVested: big.Zero(),
			AmountOfGrant:   big.Zero(),
		}
	}

	schedule, found, err := st.GetSchedule(store, grant.VestingLocation)
	builtin.RequireNoErr(rt, err, exitcode.ErrIllegalState, "failed to load schedule at %v", grant.VestingLocation)
	builtin.RequireState(rt, found, "grant for %v references missing schedule at %v", account, grant.VestingLocation)

	notVested := schedule.NotVestedOnDay(grant, onDay)
	return &VestingSummary{
		AmountVested:    big.Sub(grant.Amount, notVested),
		AmountNotVested: notVested,
		AmountOfGrant:   grant.Amount,
		VestStartDay:    grant.StartDay,
		CliffDuration:   schedule.CliffDuration,
		VestDuration:    schedule.Duration,
		VestInterval:    schedule.Interval,
		IsActive:        grant.IsActive,
		WasRevoked:      grant.WasRevoked,
	}
}
