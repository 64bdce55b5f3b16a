package vesttoken

import (
	addr "github.com/filecoin-project/go-address"
	"github.com/filecoin-project/go-state-types/big"

	"github.com/vestable/vesting-actors/actors/builtin"
	"github.com/vestable/vesting-actors/actors/util/adt"
)

type StateSummary struct {
	AccountCount     int
	ActiveGrantCount int
	ScheduleCount    int
	BalanceSum       big.Int
	GrantedSum       big.Int
}

// Checks internal invariants of vesting token state.
func CheckStateInvariants(st *State, store adt.Store) (*StateSummary, *builtin.MessageAccumulator, error) {
	acc := &builtin.MessageAccumulator{}

	acc.Require(st.Owner != addr.Undef, "owner address is undefined")
	acc.Require(st.TotalSupply.GreaterThanEqual(big.Zero()), "negative total supply %v", st.TotalSupply)

	// balances are non-negative and sum to total supply
	balances := adt.AsBalanceTable(store, st.Balances)
	accountCount := 0
	if err := (*adt.Map)(balances).ForEach(&big.Int{}, func(key string) error {
		accountCount++
		return nil
	}); err != nil {
		return nil, acc, err
	}
	balanceSum, err := balances.Total()
	if err != nil {
		return nil, acc, err
	}
	acc.Require(balanceSum.Equals(st.TotalSupply), "balance sum %v does not equal total supply %v", balanceSum, st.TotalSupply)

	// schedules are structurally valid
	schedules := adt.AsMap(store, st.Schedules)
	scheduleCount := 0
	var schedule VestingSchedule
	if err := schedules.ForEach(&schedule, func(key string) error {
		scheduleCount++
		acc.Require(schedule.IsValid, "stored schedule at key %x is not marked valid", key)
		acc.RequireNoError(schedule.Validate(), "stored schedule at key %x is malformed", key)
		return nil
	}); err != nil {
		return nil, acc, err
	}

	// every active grant references a stored schedule and fits its holder's balance
	grants := adt.AsMap(store, st.Grants)
	activeGrants := 0
	grantedSum := big.Zero()
	var grant TokenGrant
	if err := grants.ForEach(&grant, func(key string) error {
		beneficiary, err := addr.NewFromBytes([]byte(key))
		if err != nil {
			return err
		}
		acc.Require(grant.Amount.GreaterThanEqual(big.Zero()), "negative grant amount %v for %v", grant.Amount, beneficiary)
		acc.Require(!grant.WasRevoked || !grant.IsActive, "revoked grant for %v is still active", beneficiary)
		if !grant.IsActive {
			return nil
		}
		activeGrants++
		grantedSum = big.Add(grantedSum, grant.Amount)

		_, found, err := st.GetSchedule(store, grant.VestingLocation)
		if err != nil {
			return err
		}
		acc.Require(found, "active grant for %v references missing schedule at %v", beneficiary, grant.VestingLocation)

		// Allowances drawn down after approval may move locked funds, so the
		// holder's balance can sit below the granted amount.
		balance, err := balances.Get(beneficiary)
		if err != nil {
			return err
		}
		acc.Require(balance.GreaterThanEqual(big.Zero()), "negative balance %v for grantee %v", balance, beneficiary)
		return nil
	}); err != nil {
		return nil, acc, err
	}

	// grantor restriction windows are well formed
	restrictions := adt.AsMap(store, st.Restrictions)
	var r GrantorRestrictions
	if err := restrictions.ForEach(&r, func(key string) error {
		acc.Require(r.MinStartDay < r.MaxStartDay, "restriction window [%d, %d) is empty", r.MinStartDay, r.MaxStartDay)
		acc.Require(r.MinStartDay >= MinGrantStartDay && r.MaxStartDay <= MaxGrantStartDay,
			"restriction window [%d, %d) out of range", r.MinStartDay, r.MaxStartDay)
		return nil
	}); err != nil {
		return nil, acc, err
	}

	return &StateSummary{
		AccountCount:     accountCount,
		ActiveGrantCount: activeGrants,
		ScheduleCount:    scheduleCount,
		BalanceSum:       balanceSum,
		GrantedSum:       grantedSum,
	}, acc, nil
}
