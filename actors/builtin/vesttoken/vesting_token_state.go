package vesttoken

import (
	addr "github.com/filecoin-project/go-address"
	"github.com/filecoin-project/go-state-types/abi"
	"github.com/filecoin-project/go-state-types/big"
	cid "github.com/ipfs/go-cid"
	"golang.org/x/xerrors"

	"github.com/vestable/vesting-actors/actors/util/adt"
)

type State struct {
	// The administrative account, recorded at construction. Authorizes
	// schedule establishment for uniform grantors, grantor restrictions,
	// and revocation of any grant.
	Owner addr.Address

	// Fixed at the genesis mint, reduced only by burning.
	TotalSupply abi.TokenAmount

	Balances     cid.Cid // HAMT[address]TokenAmount
	Allowances   cid.Cid // HAMT[AddrPairKey(owner, spender)]TokenAmount
	Schedules    cid.Cid // HAMT[address]VestingSchedule, keyed by vesting location
	Grants       cid.Cid // HAMT[address]TokenGrant, keyed by beneficiary
	Restrictions cid.Cid // HAMT[address]GrantorRestrictions, keyed by grantor
}

// A vesting schedule, stored at a "vesting location": the beneficiary itself
// for per-wallet grants, or a shared grantor account for uniform grants.
// Write-once: callers check existence before storing, the store itself does
// not forbid overwrite.
type VestingSchedule struct {
	IsValid     bool
	IsRevocable bool
	// All durations are whole days.
	CliffDuration abi.ChainEpoch
	Duration      abi.ChainEpoch
	Interval      abi.ChainEpoch
}

// A token grant, keyed by beneficiary. The total deposited amount is not
// recorded here; it is implied by the ledger transfer made at grant time, so
// the beneficiary's balance may exceed Amount and the remainder is
// immediately spendable.
type TokenGrant struct {
	IsActive   bool
	WasRevoked bool
	// The account that funded the grant and receives the unvested remainder
	// on revocation.
	Grantor addr.Address
	// Lookup key into the schedule store, not ownership.
	VestingLocation addr.Address
	StartDay        abi.ChainEpoch
	// The portion of the deposit subject to vesting.
	Amount abi.TokenAmount
}

// Date window and expiry bounding a uniform grantor's authority.
type GrantorRestrictions struct {
	MinStartDay   abi.ChainEpoch
	MaxStartDay   abi.ChainEpoch
	ExpirationDay abi.ChainEpoch
}

func ConstructState(store adt.Store, owner addr.Address, supply abi.TokenAmount) (*State, error) {
	emptyMap, err := adt.MakeEmptyMap(store)
	if err != nil {
		return nil, xerrors.Errorf("failed to create empty map: %w", err)
	}

	balances := adt.AsBalanceTable(store, emptyMap.Root())
	if err := balances.AddCreate(owner, supply); err != nil {
		return nil, xerrors.Errorf("failed to credit genesis supply: %w", err)
	}

	return &State{
		Owner:        owner,
		TotalSupply:  supply,
		Balances:     balances.Root(),
		Allowances:   emptyMap.Root(),
		Schedules:    emptyMap.Root(),
		Grants:       emptyMap.Root(),
		Restrictions: emptyMap.Root(),
	}, nil
}

// Validate checks the schedule's invariants, which hold for the schedule's
// whole lifetime once it is stored.
func (vs *VestingSchedule) Validate() error {
	if vs.Duration <= 0 || vs.Duration > MaxVestingDurationDays {
		return xerrors.Errorf("vesting duration %d days out of range (0, %d]", vs.Duration, MaxVestingDurationDays)
	}
	if vs.CliffDuration < 0 || vs.CliffDuration >= vs.Duration {
		return xerrors.Errorf("cliff duration %d days must be in [0, duration %d)", vs.CliffDuration, vs.Duration)
	}
	if vs.Interval < 1 {
		return xerrors.Errorf("vesting interval %d days must be at least 1", vs.Interval)
	}
	if vs.Duration%vs.Interval != 0 || vs.CliffDuration%vs.Interval != 0 {
		return xerrors.Errorf("duration %d and cliff %d must be whole multiples of interval %d",
			vs.Duration, vs.CliffDuration, vs.Interval)
	}
	return nil
}

// NotVestedOnDay computes the portion of the grant not yet vested as of a day.
// Elapsed days are truncated down to whole intervals, and the vested fraction
// multiplies before dividing; both truncations round in the grantor's favor,
// so a recipient can never access more than contractually vested, at the cost
// of at most one interval's delay.
func (vs *VestingSchedule) NotVestedOnDay(grant *TokenGrant, onDay abi.ChainEpoch) abi.TokenAmount {
	if !grant.IsActive || onDay < grant.StartDay+vs.CliffDuration {
		return grant.Amount
	}
	if onDay >= grant.StartDay+vs.Duration {
		return big.Zero()
	}

	daysVested := onDay - grant.StartDay
	effectiveDays := (daysVested / vs.Interval) * vs.Interval
	vested := big.Div(big.Mul(grant.Amount, big.NewInt(int64(effectiveDays))), big.NewInt(int64(vs.Duration)))
	return big.Sub(grant.Amount, vested)
}

///// Balances /////

// Returns an account's balance, zero for accounts never credited.
func (st *State) BalanceOf(store adt.Store, a addr.Address) (abi.TokenAmount, error) {
	return adt.AsBalanceTable(store, st.Balances).Get(a)
}

// Moves an amount between two accounts, leaving balances unchanged on failure.
func (st *State) transferBalance(store adt.Store, from, to addr.Address, amount abi.TokenAmount) error {
	if amount.LessThan(big.Zero()) {
		return xerrors.Errorf("negative transfer amount %v", amount)
	}
	balances := adt.AsBalanceTable(store, st.Balances)
	if err := balances.MustSubtract(from, amount); err != nil {
		return xerrors.Errorf("failed to debit %v: %w", from, err)
	}
	if err := balances.AddCreate(to, amount); err != nil {
		return xerrors.Errorf("failed to credit %v: %w", to, err)
	}
	st.Balances = balances.Root()
	return nil
}

// Removes an amount from an account's balance and from the total supply.
func (st *State) burnBalance(store adt.Store, from addr.Address, amount abi.TokenAmount) error {
	if amount.LessThan(big.Zero()) {
		return xerrors.Errorf("negative burn amount %v", amount)
	}
	balances := adt.AsBalanceTable(store, st.Balances)
	if err := balances.MustSubtract(from, amount); err != nil {
		return xerrors.Errorf("failed to debit %v: %w", from, err)
	}
	st.Balances = balances.Root()
	st.TotalSupply = big.Sub(st.TotalSupply, amount)
	return nil
}

///// Allowances /////

// Returns the amount a spender may move from an owner's balance, zero when
// no approval has been made.
func (st *State) Allowance(store adt.Store, owner, spender addr.Address) (abi.TokenAmount, error) {
	allowances := adt.AsMap(store, st.Allowances)
	var amount abi.TokenAmount
	found, err := allowances.Get(abi.NewAddrPairKey(owner, spender), &amount)
	if err != nil {
		return big.Zero(), xerrors.Errorf("failed to load allowance %v->%v: %w", owner, spender, err)
	}
	if !found {
		return big.Zero(), nil
	}
	return amount, nil
}

// Overwrites the allowance for an (owner, spender) pair.
func (st *State) setAllowance(store adt.Store, owner, spender addr.Address, amount abi.TokenAmount) error {
	allowances := adt.AsMap(store, st.Allowances)
	if err := allowances.Put(abi.NewAddrPairKey(owner, spender), &amount); err != nil {
		return xerrors.Errorf("failed to store allowance %v->%v: %w", owner, spender, err)
	}
	st.Allowances = allowances.Root()
	return nil
}

// Deducts a spent amount from an allowance. Allowances are never auto-restored.
func (st *State) deductAllowance(store adt.Store, owner, spender addr.Address, amount abi.TokenAmount) error {
	prev, err := st.Allowance(store, owner, spender)
	if err != nil {
		return err
	}
	if amount.GreaterThan(prev) {
		return xerrors.Errorf("deducting %v exceeds allowance %v for %v->%v", amount, prev, owner, spender)
	}
	return st.setAllowance(store, owner, spender, big.Sub(prev, amount))
}

///// Schedules, grants, restrictions /////

func (st *State) GetSchedule(store adt.Store, location addr.Address) (*VestingSchedule, bool, error) {
	schedules := adt.AsMap(store, st.Schedules)
	var schedule VestingSchedule
	found, err := schedules.Get(abi.AddrKey(location), &schedule)
	if err != nil {
		return nil, false, xerrors.Errorf("failed to load schedule at %v: %w", location, err)
	}
	if !found || !schedule.IsValid {
		return nil, false, nil
	}
	return &schedule, true, nil
}

func (st *State) putSchedule(store adt.Store, location addr.Address, schedule *VestingSchedule) error {
	schedules := adt.AsMap(store, st.Schedules)
	if err := schedules.Put(abi.AddrKey(location), schedule); err != nil {
		return xerrors.Errorf("failed to store schedule at %v: %w", location, err)
	}
	st.Schedules = schedules.Root()
	return nil
}

func (st *State) GetGrant(store adt.Store, beneficiary addr.Address) (*TokenGrant, bool, error) {
	grants := adt.AsMap(store, st.Grants)
	var grant TokenGrant
	found, err := grants.Get(abi.AddrKey(beneficiary), &grant)
	if err != nil {
		return nil, false, xerrors.Errorf("failed to load grant for %v: %w", beneficiary, err)
	}
	if !found {
		return nil, false, nil
	}
	return &grant, true, nil
}

func (st *State) putGrant(store adt.Store, beneficiary addr.Address, grant *TokenGrant) error {
	grants := adt.AsMap(store, st.Grants)
	if err := grants.Put(abi.AddrKey(beneficiary), grant); err != nil {
		return xerrors.Errorf("failed to store grant for %v: %w", beneficiary, err)
	}
	st.Grants = grants.Root()
	return nil
}

func (st *State) GetRestrictions(store adt.Store, grantor addr.Address) (*GrantorRestrictions, bool, error) {
	restrictions := adt.AsMap(store, st.Restrictions)
	var r GrantorRestrictions
	found, err := restrictions.Get(abi.AddrKey(grantor), &r)
	if err != nil {
		return nil, false, xerrors.Errorf("failed to load restrictions for %v: %w", grantor, err)
	}
	if !found {
		return nil, false, nil
	}
	return &r, true, nil
}

func (st *State) putRestrictions(store adt.Store, grantor addr.Address, r *GrantorRestrictions) error {
	restrictions := adt.AsMap(store, st.Restrictions)
	if err := restrictions.Put(abi.AddrKey(grantor), r); err != nil {
		return xerrors.Errorf("failed to store restrictions for %v: %w", grantor, err)
	}
	st.Restrictions = restrictions.Root()
	return nil
}

///// Vesting lock /////

// LockedOnDay returns the portion of an account's balance its active grant
// has not yet vested as of a day. Accounts with no grant, or only an inactive
// one, have nothing locked.
func (st *State) LockedOnDay(store adt.Store, a addr.Address, onDay abi.ChainEpoch) (abi.TokenAmount, error) {
	grant, found, err := st.GetGrant(store, a)
	if err != nil {
		return big.Zero(), err
	}
	if !found || !grant.IsActive {
		return big.Zero(), nil
	}
	schedule, found, err := st.GetSchedule(store, grant.VestingLocation)
	if err != nil {
		return big.Zero(), err
	}
	if !found {
		// An active grant always references a stored schedule; schedules are
		// never removed.
		return big.Zero(), xerrors.Errorf("active grant for %v references missing schedule at %v", a, grant.VestingLocation)
	}
	return schedule.NotVestedOnDay(grant, onDay), nil
}

// AvailableBalance returns the portion of an account's balance not locked by
// an active, not-fully-vested grant as of a day.
func (st *State) AvailableBalance(store adt.Store, a addr.Address, onDay abi.ChainEpoch) (abi.TokenAmount, error) {
	balance, err := st.BalanceOf(store, a)
	if err != nil {
		return big.Zero(), err
	}
	locked, err := st.LockedOnDay(store, a, onDay)
	if err != nil {
		return big.Zero(), err
	}
	return big.Sub(balance, locked), nil
}
