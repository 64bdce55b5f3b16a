package vesttoken_test

import (
	"context"
	"strings"
	"testing"

	addr "github.com/filecoin-project/go-address"
	"github.com/filecoin-project/go-state-types/abi"
	"github.com/filecoin-project/go-state-types/big"
	"github.com/filecoin-project/go-state-types/exitcode"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vestable/vesting-actors/actors/builtin"
	"github.com/vestable/vesting-actors/actors/builtin/vesttoken"
	"github.com/vestable/vesting-actors/actors/util/adt"
	"github.com/vestable/vesting-actors/support/mock"
	tutil "github.com/vestable/vesting-actors/support/testing"
)

// A day comfortably inside the allowed grant window.
const today = abi.ChainEpoch(12000)

func TestExports(t *testing.T) {
	mock.CheckActorExports(t, vesttoken.Actor{})
}

func TestConstruction(t *testing.T) {
	actor := vesttoken.Actor{}
	receiver := tutil.NewIDAddr(t, 98)
	owner := tutil.NewIDAddr(t, 100)
	builder := mock.NewBuilder(context.Background(), receiver).
		WithCaller(builtin.SystemActorAddr)

	t.Run("successful construction mints supply to owner", func(t *testing.T) {
		rt := builder.Build(t)
		rt.ExpectValidateCallerAddr(builtin.SystemActorAddr)

		ret := rt.Call(actor.Constructor, &vesttoken.ConstructorParams{Owner: owner, Supply: abi.NewTokenAmount(1e6)}).(*adt.EmptyValue)
		require.Nil(t, ret)
		rt.Verify()

		var st vesttoken.State
		rt.GetState(&st)
		require.Equal(t, owner, st.Owner)
		require.Equal(t, abi.NewTokenAmount(1e6), st.TotalSupply)

		store := adt.AsStore(rt)
		balance, err := st.BalanceOf(store, owner)
		require.NoError(t, err)
		require.Equal(t, abi.NewTokenAmount(1e6), balance)

		emptyMap, err := adt.MakeEmptyMap(store)
		require.NoError(t, err)
		require.Equal(t, emptyMap.Root(), st.Schedules)
		require.Equal(t, emptyMap.Root(), st.Grants)
		require.Equal(t, emptyMap.Root(), st.Allowances)
		require.Equal(t, emptyMap.Root(), st.Restrictions)
	})

	t.Run("fails with undefined owner", func(t *testing.T) {
		rt := builder.Build(t)
		rt.ExpectValidateCallerAddr(builtin.SystemActorAddr)
		rt.ExpectAbort(exitcode.ErrIllegalArgument, func() {
			rt.Call(actor.Constructor, &vesttoken.ConstructorParams{Owner: addr.Undef, Supply: abi.NewTokenAmount(1)})
		})
		rt.Verify()
	})

	t.Run("fails with negative supply", func(t *testing.T) {
		rt := builder.Build(t)
		rt.ExpectValidateCallerAddr(builtin.SystemActorAddr)
		rt.ExpectAbort(exitcode.ErrIllegalArgument, func() {
			rt.Call(actor.Constructor, &vesttoken.ConstructorParams{Owner: owner, Supply: abi.NewTokenAmount(-1)})
		})
		rt.Verify()
	})
}

func TestTransfer(t *testing.T) {
	owner := tutil.NewIDAddr(t, 100)
	grantor := tutil.NewIDAddr(t, 101)
	receiver := tutil.NewActorAddr(t, "receiver")

	t.Run("moves tokens between accounts", func(t *testing.T) {
		rt, h := basicSetup(t, owner, grantor, 1000)
		h.transfer(rt, owner, receiver, abi.NewTokenAmount(300))

		assert.Equal(t, abi.NewTokenAmount(700), h.balanceOf(rt, owner))
		assert.Equal(t, abi.NewTokenAmount(300), h.balanceOf(rt, receiver))
		h.checkState(rt)
	})

	t.Run("transfer of zero amount succeeds", func(t *testing.T) {
		rt, h := basicSetup(t, owner, grantor, 1000)
		h.transfer(rt, owner, receiver, big.Zero())
		assert.Equal(t, abi.NewTokenAmount(1000), h.balanceOf(rt, owner))
		h.checkState(rt)
	})

	t.Run("fails to transfer to the zero address", func(t *testing.T) {
		rt, h := basicSetup(t, owner, grantor, 1000)
		rt.SetCaller(owner)
		rt.ExpectValidateCallerAny()
		rt.ExpectAbort(vesttoken.ErrZeroAddress, func() {
			rt.Call(h.Transfer, &vesttoken.TransferParams{To: addr.Undef, Amount: abi.NewTokenAmount(1)})
		})
		rt.Verify()
	})

	t.Run("fails to transfer a negative amount", func(t *testing.T) {
		rt, h := basicSetup(t, owner, grantor, 1000)
		rt.SetCaller(owner)
		rt.ExpectValidateCallerAny()
		rt.ExpectAbort(exitcode.ErrIllegalArgument, func() {
			rt.Call(h.Transfer, &vesttoken.TransferParams{To: receiver, Amount: abi.NewTokenAmount(-1)})
		})
		rt.Verify()
	})

	t.Run("fails to transfer more than balance", func(t *testing.T) {
		rt, h := basicSetup(t, owner, grantor, 1000)
		rt.SetCaller(owner)
		rt.ExpectValidateCallerAny()
		rt.ExpectAbort(exitcode.ErrInsufficientFunds, func() {
			rt.Call(h.Transfer, &vesttoken.TransferParams{To: receiver, Amount: abi.NewTokenAmount(1001)})
		})
		rt.Verify()

		// balances unchanged after failure
		assert.Equal(t, abi.NewTokenAmount(1000), h.balanceOf(rt, owner))
		h.checkState(rt)
	})

	t.Run("fails while the ledger is paused", func(t *testing.T) {
		rt, h := basicSetup(t, owner, grantor, 1000)
		rt.SetPaused(true)
		rt.SetCaller(owner)
		rt.ExpectValidateCallerAny()
		rt.ExpectAbort(exitcode.ErrForbidden, func() {
			rt.Call(h.Transfer, &vesttoken.TransferParams{To: receiver, Amount: abi.NewTokenAmount(1)})
		})
		rt.Verify()
	})
}

func TestPauseGate(t *testing.T) {
	owner := tutil.NewIDAddr(t, 100)
	grantor := tutil.NewIDAddr(t, 101)
	beneficiary := tutil.NewIDAddr(t, 102)

	pausedSetup := func(t *testing.T) (*mock.Runtime, *actorHarness) {
		receiver := tutil.NewIDAddr(t, 98)
		builder := mock.NewBuilder(context.Background(), receiver).
			WithCaller(builtin.SystemActorAddr).
			WithDay(today).
			WithGrantor(grantor).
			WithRegistered(beneficiary).
			WithPaused(true)
		rt := builder.Build(t)
		h := &actorHarness{Actor: vesttoken.Actor{}, t: t, owner: owner}
		h.constructAndVerify(rt, owner, abi.NewTokenAmount(1000))
		return rt, h
	}

	grant := &vesttoken.GrantParams{
		Beneficiary:   beneficiary,
		TotalAmount:   abi.NewTokenAmount(100),
		VestingAmount: abi.NewTokenAmount(100),
		StartDay:      today,
		Duration:      12,
		CliffDuration: 0,
		Interval:      3,
		IsRevocable:   true,
	}

	// Every mutating method refuses while the gate is closed; queries stay up.
	for _, tc := range []struct {
		name      string
		caller    addr.Address
		ownerOnly bool
		call      func(rt *mock.Runtime, h *actorHarness)
	}{
		{"approve", owner, false, func(rt *mock.Runtime, h *actorHarness) {
			rt.Call(h.Approve, &vesttoken.ApproveParams{Spender: grantor, Amount: abi.NewTokenAmount(1)})
		}},
		{"transfer from", grantor, false, func(rt *mock.Runtime, h *actorHarness) {
			rt.Call(h.TransferFrom, &vesttoken.TransferFromParams{From: owner, To: grantor, Amount: big.Zero()})
		}},
		{"burn", owner, false, func(rt *mock.Runtime, h *actorHarness) {
			rt.Call(h.Burn, &vesttoken.BurnParams{Amount: abi.NewTokenAmount(1)})
		}},
		{"grant", grantor, false, func(rt *mock.Runtime, h *actorHarness) {
			rt.Call(h.GrantVestingTokens, grant)
		}},
		{"safe grant", grantor, false, func(rt *mock.Runtime, h *actorHarness) {
			rt.Call(h.SafeGrantVestingTokens, grant)
		}},
		{"uniform grant", grantor, false, func(rt *mock.Runtime, h *actorHarness) {
			rt.Call(h.GrantUniformVestingTokens, &vesttoken.UniformGrantParams{
				Beneficiary: beneficiary, TotalAmount: abi.NewTokenAmount(100), VestingAmount: abi.NewTokenAmount(100), StartDay: today,
			})
		}},
		{"revoke", grantor, false, func(rt *mock.Runtime, h *actorHarness) {
			rt.Call(h.RevokeGrant, &vesttoken.RevokeParams{Beneficiary: beneficiary, OnDay: today})
		}},
		{"set schedule", owner, true, func(rt *mock.Runtime, h *actorHarness) {
			rt.Call(h.SetIntrinsicVestingSchedule, &vesttoken.ScheduleParams{Grantor: grantor, Duration: 12, Interval: 3})
		}},
		{"set restrictions", owner, true, func(rt *mock.Runtime, h *actorHarness) {
			rt.Call(h.SetRestrictions, &vesttoken.RestrictionsParams{
				Grantor: grantor, MinStartDay: today - 1, MaxStartDay: today + 30, ExpirationDay: today + 30,
			})
		}},
	} {
		t.Run(tc.name, func(t *testing.T) {
			rt, h := pausedSetup(t)
			rt.SetCaller(tc.caller)
			if tc.ownerOnly {
				rt.ExpectValidateCallerAddr(owner)
			} else {
				rt.ExpectValidateCallerAny()
			}
			rt.ExpectAbort(exitcode.ErrForbidden, func() {
				tc.call(rt, h)
			})
			rt.Verify()
		})
	}

	t.Run("balances remain readable while paused", func(t *testing.T) {
		rt, h := pausedSetup(t)
		assert.Equal(t, abi.NewTokenAmount(1000), h.balanceOf(rt, owner))
	})
}

func TestApproveAndTransferFrom(t *testing.T) {
	owner := tutil.NewIDAddr(t, 100)
	grantor := tutil.NewIDAddr(t, 101)
	spender := tutil.NewIDAddr(t, 102)
	receiver := tutil.NewIDAddr(t, 103)
	beneficiary := tutil.NewIDAddr(t, 104)

	grant := &vesttoken.GrantParams{
		Beneficiary:   beneficiary,
		TotalAmount:   abi.NewTokenAmount(1001),
		VestingAmount: abi.NewTokenAmount(1000),
		StartDay:      today,
		Duration:      12,
		CliffDuration: 0,
		Interval:      3,
		IsRevocable:   true,
	}

	t.Run("approval is recorded and drawn down by transfers", func(t *testing.T) {
		rt, h := basicSetup(t, owner, grantor, 1000)
		h.approve(rt, owner, spender, abi.NewTokenAmount(400))
		assert.Equal(t, abi.NewTokenAmount(400), h.allowance(rt, owner, spender))

		h.transferFrom(rt, spender, owner, receiver, abi.NewTokenAmount(150))
		assert.Equal(t, abi.NewTokenAmount(250), h.allowance(rt, owner, spender))
		assert.Equal(t, abi.NewTokenAmount(850), h.balanceOf(rt, owner))
		assert.Equal(t, abi.NewTokenAmount(150), h.balanceOf(rt, receiver))
		h.checkState(rt)
	})

	t.Run("re-approval overwrites the previous allowance", func(t *testing.T) {
		rt, h := basicSetup(t, owner, grantor, 1000)
		h.approve(rt, owner, spender, abi.NewTokenAmount(400))
		h.approve(rt, owner, spender, abi.NewTokenAmount(10))
		assert.Equal(t, abi.NewTokenAmount(10), h.allowance(rt, owner, spender))
	})

	t.Run("fails to draw more than the allowance", func(t *testing.T) {
		rt, h := basicSetup(t, owner, grantor, 1000)
		h.approve(rt, owner, spender, abi.NewTokenAmount(100))

		rt.SetCaller(spender)
		rt.ExpectValidateCallerAny()
		rt.ExpectAbort(vesttoken.ErrArithmeticFault, func() {
			rt.Call(h.TransferFrom, &vesttoken.TransferFromParams{From: owner, To: receiver, Amount: abi.NewTokenAmount(101)})
		})
		rt.Verify()

		// allowance and balances unchanged after failure
		assert.Equal(t, abi.NewTokenAmount(100), h.allowance(rt, owner, spender))
		assert.Equal(t, abi.NewTokenAmount(1000), h.balanceOf(rt, owner))
	})

	t.Run("fails to draw more than the holder's balance", func(t *testing.T) {
		rt, h := basicSetup(t, owner, grantor, 100)
		h.approve(rt, owner, spender, abi.NewTokenAmount(100))
		h.transfer(rt, owner, receiver, abi.NewTokenAmount(50))

		rt.SetCaller(spender)
		rt.ExpectValidateCallerAny()
		rt.ExpectAbort(vesttoken.ErrArithmeticFault, func() {
			rt.Call(h.TransferFrom, &vesttoken.TransferFromParams{From: owner, To: receiver, Amount: abi.NewTokenAmount(60)})
		})
		rt.Verify()
		h.checkState(rt)
	})

	t.Run("approval may not exceed the vested portion", func(t *testing.T) {
		rt, h := grantorSetup(t, owner, grantor, 2000)
		h.grantVestingTokens(rt, grantor, grant)

		// only the single token above the vesting amount is available on
		// the start day
		rt.SetCaller(beneficiary)
		rt.ExpectValidateCallerAny()
		rt.ExpectAbort(vesttoken.ErrInsufficientVestedFunds, func() {
			rt.Call(h.Approve, &vesttoken.ApproveParams{Spender: spender, Amount: abi.NewTokenAmount(2)})
		})
		rt.Verify()

		h.approve(rt, beneficiary, spender, abi.NewTokenAmount(1))
		assert.Equal(t, abi.NewTokenAmount(1), h.allowance(rt, beneficiary, spender))
		h.checkState(rt)
	})

	t.Run("a standing allowance draws down past the holder's lock", func(t *testing.T) {
		rt, h := grantorSetup(t, owner, grantor, 2000)
		h.grantVestingTokens(rt, grantor, grant)

		// one interval vested: 250 plus the extra token is available
		rt.SetDay(today + 3)
		h.approve(rt, beneficiary, spender, abi.NewTokenAmount(251))

		// the holder spends its whole available portion directly and can
		// move nothing more itself
		h.transfer(rt, beneficiary, receiver, abi.NewTokenAmount(251))
		rt.SetCaller(beneficiary)
		rt.ExpectValidateCallerAny()
		rt.ExpectAbort(vesttoken.ErrInsufficientVestedFunds, func() {
			rt.Call(h.Transfer, &vesttoken.TransferParams{To: receiver, Amount: abi.NewTokenAmount(1)})
		})
		rt.Verify()

		// the allowance still draws down; availability was checked when the
		// approval was made
		h.transferFrom(rt, spender, beneficiary, receiver, abi.NewTokenAmount(100))
		assert.Equal(t, abi.NewTokenAmount(650), h.balanceOf(rt, beneficiary))
		assert.Equal(t, abi.NewTokenAmount(351), h.balanceOf(rt, receiver))
		h.checkState(rt)
	})
}

func TestBurn(t *testing.T) {
	owner := tutil.NewIDAddr(t, 100)
	grantor := tutil.NewIDAddr(t, 101)

	t.Run("destroys tokens and reduces total supply", func(t *testing.T) {
		rt, h := basicSetup(t, owner, grantor, 1000)
		h.burn(rt, owner, abi.NewTokenAmount(300))

		assert.Equal(t, abi.NewTokenAmount(700), h.balanceOf(rt, owner))
		var st vesttoken.State
		rt.GetState(&st)
		assert.Equal(t, abi.NewTokenAmount(700), st.TotalSupply)
		h.checkState(rt)
	})

	t.Run("fails to burn more than balance", func(t *testing.T) {
		rt, h := basicSetup(t, owner, grantor, 1000)
		rt.SetCaller(owner)
		rt.ExpectValidateCallerAny()
		rt.ExpectAbort(exitcode.ErrInsufficientFunds, func() {
			rt.Call(h.Burn, &vesttoken.BurnParams{Amount: abi.NewTokenAmount(1001)})
		})
		rt.Verify()
	})
}

func TestGrantVestingTokens(t *testing.T) {
	owner := tutil.NewIDAddr(t, 100)
	grantor := tutil.NewIDAddr(t, 101)
	beneficiary := tutil.NewIDAddr(t, 102)
	stranger := tutil.NewIDAddr(t, 103)

	grant := func() *vesttoken.GrantParams {
		return &vesttoken.GrantParams{
			Beneficiary:   beneficiary,
			TotalAmount:   abi.NewTokenAmount(1001),
			VestingAmount: abi.NewTokenAmount(1000),
			StartDay:      today,
			Duration:      12,
			CliffDuration: 0,
			Interval:      3,
			IsRevocable:   true,
		}
	}

	t.Run("creates a grant and its per-wallet schedule", func(t *testing.T) {
		rt, h := grantorSetup(t, owner, grantor, 2000)
		h.grantVestingTokens(rt, grantor, grant())

		assert.Equal(t, abi.NewTokenAmount(999), h.balanceOf(rt, grantor))
		assert.Equal(t, abi.NewTokenAmount(1001), h.balanceOf(rt, beneficiary))

		var st vesttoken.State
		rt.GetState(&st)
		store := rt.AdtStore()
		g, found, err := st.GetGrant(store, beneficiary)
		require.NoError(t, err)
		require.True(t, found)
		assert.True(t, g.IsActive)
		assert.False(t, g.WasRevoked)
		assert.Equal(t, grantor, g.Grantor)
		assert.Equal(t, beneficiary, g.VestingLocation)
		assert.Equal(t, abi.NewTokenAmount(1000), g.Amount)

		vs, found, err := st.GetSchedule(store, beneficiary)
		require.NoError(t, err)
		require.True(t, found)
		assert.Equal(t, abi.ChainEpoch(12), vs.Duration)
		assert.Equal(t, abi.ChainEpoch(3), vs.Interval)
		assert.True(t, vs.IsRevocable)
		h.checkState(rt)
	})

	t.Run("fails when caller lacks the grantor capability", func(t *testing.T) {
		rt, h := grantorSetup(t, owner, grantor, 2000)
		rt.SetCaller(stranger)
		rt.ExpectValidateCallerAny()
		rt.ExpectAbort(exitcode.ErrForbidden, func() {
			rt.Call(h.GrantVestingTokens, grant())
		})
		rt.Verify()
	})

	t.Run("second grant to the same beneficiary fails and leaves the first intact", func(t *testing.T) {
		rt, h := grantorSetup(t, owner, grantor, 5000)
		h.grantVestingTokens(rt, grantor, grant())

		second := grant()
		second.TotalAmount = abi.NewTokenAmount(50)
		second.VestingAmount = abi.NewTokenAmount(50)
		rt.SetCaller(grantor)
		rt.ExpectValidateCallerAny()
		rt.ExpectAbort(vesttoken.ErrGrantExists, func() {
			rt.Call(h.GrantVestingTokens, second)
		})
		rt.Verify()

		var st vesttoken.State
		rt.GetState(&st)
		g, _, err := st.GetGrant(rt.AdtStore(), beneficiary)
		require.NoError(t, err)
		assert.Equal(t, abi.NewTokenAmount(1000), g.Amount)
		assert.Equal(t, abi.NewTokenAmount(1001), h.balanceOf(rt, beneficiary))
	})

	t.Run("fails with malformed amounts or start day", func(t *testing.T) {
		rt, h := grantorSetup(t, owner, grantor, 2000)

		cases := []func(p *vesttoken.GrantParams){
			func(p *vesttoken.GrantParams) { p.VestingAmount = abi.NewTokenAmount(1002) },
			func(p *vesttoken.GrantParams) { p.VestingAmount = big.Zero() },
			func(p *vesttoken.GrantParams) { p.StartDay = vesttoken.MinGrantStartDay - 1 },
			func(p *vesttoken.GrantParams) { p.StartDay = vesttoken.MaxGrantStartDay },
		}
		for _, mutate := range cases {
			p := grant()
			mutate(p)
			rt.SetCaller(grantor)
			rt.ExpectValidateCallerAny()
			rt.ExpectAbort(vesttoken.ErrInvalidGrantParams, func() {
				rt.Call(h.GrantVestingTokens, p)
			})
			rt.Verify()
		}
	})

	t.Run("fails with a malformed schedule", func(t *testing.T) {
		rt, h := grantorSetup(t, owner, grantor, 2000)

		cases := []func(p *vesttoken.GrantParams){
			func(p *vesttoken.GrantParams) { p.Duration = 0 },
			func(p *vesttoken.GrantParams) { p.Duration = vesttoken.MaxVestingDurationDays + 1 },
			func(p *vesttoken.GrantParams) { p.CliffDuration = 12 },
			func(p *vesttoken.GrantParams) { p.Interval = 0 },
			func(p *vesttoken.GrantParams) { p.Interval = 5 }, // 12 % 5 != 0
		}
		for _, mutate := range cases {
			p := grant()
			mutate(p)
			rt.SetCaller(grantor)
			rt.ExpectValidateCallerAny()
			rt.ExpectAbort(vesttoken.ErrInvalidSchedule, func() {
				rt.Call(h.GrantVestingTokens, p)
			})
			rt.Verify()
		}
	})

	t.Run("fails when the grantor cannot fund the deposit", func(t *testing.T) {
		rt, h := grantorSetup(t, owner, grantor, 500)
		rt.SetCaller(grantor)
		rt.ExpectValidateCallerAny()
		rt.ExpectAbort(exitcode.ErrInsufficientFunds, func() {
			rt.Call(h.GrantVestingTokens, grant())
		})
		rt.Verify()
		h.checkState(rt)
	})

	t.Run("safe variant requires a registered beneficiary", func(t *testing.T) {
		rt, h := grantorSetup(t, owner, grantor, 2000)
		rt.SetCaller(grantor)
		rt.ExpectValidateCallerAny()
		rt.ExpectAbort(exitcode.ErrForbidden, func() {
			rt.Call(h.SafeGrantVestingTokens, grant())
		})
		rt.Verify()

		rt.SetRegistered(beneficiary, true)
		rt.SetCaller(grantor)
		rt.ExpectValidateCallerAny()
		rt.Call(h.SafeGrantVestingTokens, grant())
		rt.Verify()
		assert.Equal(t, abi.NewTokenAmount(1001), h.balanceOf(rt, beneficiary))
		h.checkState(rt)
	})
}

func TestVestingCalculation(t *testing.T) {
	owner := tutil.NewIDAddr(t, 100)
	grantor := tutil.NewIDAddr(t, 101)
	beneficiary := tutil.NewIDAddr(t, 102)

	// {cliff 0, duration 12, interval 3} over a grant of 1001 total, 1000 vesting.
	grant := &vesttoken.GrantParams{
		Beneficiary:   beneficiary,
		TotalAmount:   abi.NewTokenAmount(1001),
		VestingAmount: abi.NewTokenAmount(1000),
		StartDay:      today,
		Duration:      12,
		CliffDuration: 0,
		Interval:      3,
		IsRevocable:   true,
	}

	t.Run("vests by whole intervals", func(t *testing.T) {
		rt, h := grantorSetup(t, owner, grantor, 2000)
		h.grantVestingTokens(rt, grantor, grant)

		for _, tc := range []struct {
			onDay     abi.ChainEpoch
			notVested int64
		}{
			{today, 1000},     // nothing vested on the start day
			{today + 2, 1000}, // mid-interval days truncate down
			{today + 3, 750},
			{today + 4, 750},
			{today + 6, 500},
			{today + 11, 250},
			{today + 12, 0},
			{today + 100, 0},
		} {
			summary := h.vestingForAccount(rt, beneficiary, beneficiary, tc.onDay)
			assert.Equal(t, abi.NewTokenAmount(tc.notVested), summary.AmountNotVested, "on day %d", tc.onDay)
			assert.Equal(t, abi.NewTokenAmount(1000-tc.notVested), summary.AmountVested, "on day %d", tc.onDay)
		}
	})

	t.Run("available balance tracks vesting day by day", func(t *testing.T) {
		rt, h := grantorSetup(t, owner, grantor, 2000)
		h.grantVestingTokens(rt, grantor, grant)

		// the unvested portion plus the extra token above the vesting amount
		assert.Equal(t, abi.NewTokenAmount(1), h.availableBalanceOf(rt, beneficiary))

		rt.SetDay(today + 4)
		assert.Equal(t, abi.NewTokenAmount(251), h.availableBalanceOf(rt, beneficiary))

		rt.SetDay(today + 12)
		assert.Equal(t, abi.NewTokenAmount(1001), h.availableBalanceOf(rt, beneficiary))
	})

	t.Run("transfers are limited to the available portion", func(t *testing.T) {
		rt, h := grantorSetup(t, owner, grantor, 2000)
		h.grantVestingTokens(rt, grantor, grant)

		rt.SetCaller(beneficiary)
		rt.ExpectValidateCallerAny()
		rt.ExpectAbort(vesttoken.ErrInsufficientVestedFunds, func() {
			rt.Call(h.Transfer, &vesttoken.TransferParams{To: grantor, Amount: abi.NewTokenAmount(2)})
		})
		rt.Verify()

		// the uncommitted single token can move immediately
		h.transfer(rt, beneficiary, grantor, abi.NewTokenAmount(1))

		// and vested tokens move once their interval completes
		rt.SetDay(today + 3)
		h.transfer(rt, beneficiary, grantor, abi.NewTokenAmount(250))
		h.checkState(rt)
	})

	t.Run("nothing vests before the cliff", func(t *testing.T) {
		rt, h := grantorSetup(t, owner, grantor, 2000)
		cliffed := *grant
		cliffed.CliffDuration = 6
		h.grantVestingTokens(rt, grantor, &cliffed)

		summary := h.vestingForAccount(rt, beneficiary, beneficiary, today+5)
		assert.Equal(t, abi.NewTokenAmount(1000), summary.AmountNotVested)

		// at the cliff the full elapsed time counts at once
		summary = h.vestingForAccount(rt, beneficiary, beneficiary, today+6)
		assert.Equal(t, abi.NewTokenAmount(500), summary.AmountNotVested)
	})
}

func TestRevokeGrant(t *testing.T) {
	owner := tutil.NewIDAddr(t, 100)
	grantor := tutil.NewIDAddr(t, 101)
	beneficiary := tutil.NewIDAddr(t, 102)
	stranger := tutil.NewIDAddr(t, 103)

	grant := func(revocable bool) *vesttoken.GrantParams {
		return &vesttoken.GrantParams{
			Beneficiary:   beneficiary,
			TotalAmount:   abi.NewTokenAmount(1000),
			VestingAmount: abi.NewTokenAmount(1000),
			StartDay:      today,
			Duration:      12,
			CliffDuration: 0,
			Interval:      3,
			IsRevocable:   revocable,
		}
	}

	t.Run("returns the unvested portion to the grantor", func(t *testing.T) {
		rt, h := grantorSetup(t, owner, grantor, 1000)
		h.grantVestingTokens(rt, grantor, grant(true))

		rt.SetDay(today + 6)
		h.revokeGrant(rt, grantor, beneficiary, today+6)

		// half vested: beneficiary keeps 500, grantor recovers 500
		assert.Equal(t, abi.NewTokenAmount(500), h.balanceOf(rt, beneficiary))
		assert.Equal(t, abi.NewTokenAmount(500), h.balanceOf(rt, grantor))

		var st vesttoken.State
		rt.GetState(&st)
		g, _, err := st.GetGrant(rt.AdtStore(), beneficiary)
		require.NoError(t, err)
		assert.False(t, g.IsActive)
		assert.True(t, g.WasRevoked)
		h.checkState(rt)
	})

	t.Run("owner may revoke another grantor's grant", func(t *testing.T) {
		rt, h := grantorSetup(t, owner, grantor, 1000)
		h.grantVestingTokens(rt, grantor, grant(true))

		h.revokeGrant(rt, owner, beneficiary, today)
		assert.Equal(t, big.Zero(), h.balanceOf(rt, beneficiary))
		assert.Equal(t, abi.NewTokenAmount(1000), h.balanceOf(rt, grantor))
		h.checkState(rt)
	})

	t.Run("fails when there is no active grant", func(t *testing.T) {
		rt, h := grantorSetup(t, owner, grantor, 1000)
		rt.SetCaller(grantor)
		rt.ExpectValidateCallerAny()
		rt.ExpectAbort(vesttoken.ErrNoActiveGrant, func() {
			rt.Call(h.RevokeGrant, &vesttoken.RevokeParams{Beneficiary: beneficiary, OnDay: today})
		})
		rt.Verify()
	})

	t.Run("fails for a caller that is neither owner nor grantor", func(t *testing.T) {
		rt, h := grantorSetup(t, owner, grantor, 1000)
		h.grantVestingTokens(rt, grantor, grant(true))

		rt.SetCaller(stranger)
		rt.ExpectValidateCallerAny()
		rt.ExpectAbort(exitcode.ErrForbidden, func() {
			rt.Call(h.RevokeGrant, &vesttoken.RevokeParams{Beneficiary: beneficiary, OnDay: today})
		})
		rt.Verify()
	})

	t.Run("fails for an irrevocable grant", func(t *testing.T) {
		rt, h := grantorSetup(t, owner, grantor, 1000)
		h.grantVestingTokens(rt, grantor, grant(false))

		rt.SetCaller(grantor)
		rt.ExpectValidateCallerAny()
		rt.ExpectAbort(vesttoken.ErrIrrevocable, func() {
			rt.Call(h.RevokeGrant, &vesttoken.RevokeParams{Beneficiary: beneficiary, OnDay: today})
		})
		rt.Verify()
	})

	t.Run("fails after the grant has fully vested", func(t *testing.T) {
		rt, h := grantorSetup(t, owner, grantor, 1000)
		h.grantVestingTokens(rt, grantor, grant(true))

		rt.SetDay(today + 20)
		rt.SetCaller(grantor)
		rt.ExpectValidateCallerAny()
		rt.ExpectAbort(vesttoken.ErrRevokeHasNoEffect, func() {
			rt.Call(h.RevokeGrant, &vesttoken.RevokeParams{Beneficiary: beneficiary, OnDay: today + 20})
		})
		rt.Verify()
	})

	t.Run("fails to revoke as of a past day", func(t *testing.T) {
		rt, h := grantorSetup(t, owner, grantor, 1000)
		h.grantVestingTokens(rt, grantor, grant(true))

		rt.SetDay(today + 6)
		rt.SetCaller(grantor)
		rt.ExpectValidateCallerAny()
		rt.ExpectAbort(vesttoken.ErrCannotRevokeVested, func() {
			rt.Call(h.RevokeGrant, &vesttoken.RevokeParams{Beneficiary: beneficiary, OnDay: today + 5})
		})
		rt.Verify()
	})

	t.Run("second revocation fails with no active grant", func(t *testing.T) {
		rt, h := grantorSetup(t, owner, grantor, 1000)
		h.grantVestingTokens(rt, grantor, grant(true))
		h.revokeGrant(rt, grantor, beneficiary, today)

		rt.SetCaller(grantor)
		rt.ExpectValidateCallerAny()
		rt.ExpectAbort(vesttoken.ErrNoActiveGrant, func() {
			rt.Call(h.RevokeGrant, &vesttoken.RevokeParams{Beneficiary: beneficiary, OnDay: today})
		})
		rt.Verify()
	})
}

func TestUniformGrants(t *testing.T) {
	owner := tutil.NewIDAddr(t, 100)
	grantor := tutil.NewIDAddr(t, 101)
	b1 := tutil.NewIDAddr(t, 102)
	b2 := tutil.NewIDAddr(t, 103)

	uniformGrant := func(beneficiary addr.Address) *vesttoken.UniformGrantParams {
		return &vesttoken.UniformGrantParams{
			Beneficiary:   beneficiary,
			TotalAmount:   abi.NewTokenAmount(500),
			VestingAmount: abi.NewTokenAmount(500),
			StartDay:      today,
		}
	}

	t.Run("many beneficiaries share the grantor's schedule", func(t *testing.T) {
		rt, h := uniformSetup(t, owner, grantor, 2000, b1, b2)
		h.grantUniform(rt, grantor, uniformGrant(b1))
		h.grantUniform(rt, grantor, uniformGrant(b2))

		var st vesttoken.State
		rt.GetState(&st)
		store := rt.AdtStore()
		for _, b := range []addr.Address{b1, b2} {
			g, found, err := st.GetGrant(store, b)
			require.NoError(t, err)
			require.True(t, found)
			assert.Equal(t, grantor, g.VestingLocation)
		}
		// only one schedule record exists, at the grantor's location
		_, found, err := st.GetSchedule(store, b1)
		require.NoError(t, err)
		assert.False(t, found)
		_, found, err = st.GetSchedule(store, grantor)
		require.NoError(t, err)
		assert.True(t, found)

		// vesting math flows through the shared schedule
		summary := h.vestingForAccount(rt, b1, b1, today+6)
		assert.Equal(t, abi.NewTokenAmount(250), summary.AmountNotVested)
		h.checkState(rt)
	})

	t.Run("fails without established restrictions", func(t *testing.T) {
		rt, h := grantorSetup(t, owner, grantor, 2000)
		rt.SetRegistered(b1, true)
		h.setSchedule(rt, grantor, 0, 12, 3, true)

		rt.SetCaller(grantor)
		rt.ExpectValidateCallerAny()
		rt.ExpectAbort(exitcode.ErrForbidden, func() {
			rt.Call(h.GrantUniformVestingTokens, uniformGrant(b1))
		})
		rt.Verify()
	})

	t.Run("fails after the grantor's authority expires", func(t *testing.T) {
		rt, h := uniformSetup(t, owner, grantor, 2000, b1)
		rt.SetDay(today + 100)

		rt.SetCaller(grantor)
		rt.ExpectValidateCallerAny()
		rt.ExpectAbort(exitcode.ErrForbidden, func() {
			rt.Call(h.GrantUniformVestingTokens, uniformGrant(b1))
		})
		rt.Verify()
	})

	t.Run("fails for a start day outside the restriction window", func(t *testing.T) {
		rt, h := uniformSetup(t, owner, grantor, 2000, b1)
		p := uniformGrant(b1)
		p.StartDay = today + 50 // window closes at today+30

		rt.SetCaller(grantor)
		rt.ExpectValidateCallerAny()
		rt.ExpectAbort(vesttoken.ErrInvalidGrantParams, func() {
			rt.Call(h.GrantUniformVestingTokens, p)
		})
		rt.Verify()
	})

	t.Run("fails for an unregistered beneficiary", func(t *testing.T) {
		rt, h := uniformSetup(t, owner, grantor, 2000, b1)

		rt.SetCaller(grantor)
		rt.ExpectValidateCallerAny()
		rt.ExpectAbort(exitcode.ErrForbidden, func() {
			rt.Call(h.GrantUniformVestingTokens, uniformGrant(b2))
		})
		rt.Verify()
	})

	t.Run("fails when the grantor has no stored schedule", func(t *testing.T) {
		rt, h := grantorSetup(t, owner, grantor, 2000)
		rt.SetRegistered(b1, true)
		h.setRestrictions(rt, grantor, today-10, today+30, today+30)

		rt.SetCaller(grantor)
		rt.ExpectValidateCallerAny()
		rt.ExpectAbort(vesttoken.ErrNoSchedule, func() {
			rt.Call(h.GrantUniformVestingTokens, uniformGrant(b1))
		})
		rt.Verify()
	})

	t.Run("schedule at a location is write-once", func(t *testing.T) {
		rt, h := uniformSetup(t, owner, grantor, 2000, b1)

		rt.SetCaller(owner)
		rt.ExpectValidateCallerAddr(owner)
		rt.ExpectAbort(vesttoken.ErrInvalidSchedule, func() {
			rt.Call(h.SetIntrinsicVestingSchedule, &vesttoken.ScheduleParams{
				Grantor: grantor, CliffDuration: 0, Duration: 24, Interval: 6, IsRevocable: true,
			})
		})
		rt.Verify()
	})

	t.Run("restrictions reject an inverted or out-of-range window", func(t *testing.T) {
		rt, h := grantorSetup(t, owner, grantor, 2000)

		rt.SetCaller(owner)
		rt.ExpectValidateCallerAddr(owner)
		rt.ExpectAbort(vesttoken.ErrInvalidGrantParams, func() {
			rt.Call(h.SetRestrictions, &vesttoken.RestrictionsParams{
				Grantor: grantor, MinStartDay: today + 30, MaxStartDay: today - 10, ExpirationDay: today + 30,
			})
		})
		rt.Verify()
	})
}

func TestVestingQueries(t *testing.T) {
	owner := tutil.NewIDAddr(t, 100)
	grantor := tutil.NewIDAddr(t, 101)
	beneficiary := tutil.NewIDAddr(t, 102)
	stranger := tutil.NewIDAddr(t, 103)

	grant := &vesttoken.GrantParams{
		Beneficiary:   beneficiary,
		TotalAmount:   abi.NewTokenAmount(1000),
		VestingAmount: abi.NewTokenAmount(1000),
		StartDay:      today,
		Duration:      12,
		CliffDuration: 0,
		Interval:      3,
		IsRevocable:   true,
	}

	t.Run("account, grantor and owner may inspect a grant", func(t *testing.T) {
		rt, h := grantorSetup(t, owner, grantor, 2000)
		h.grantVestingTokens(rt, grantor, grant)

		for _, caller := range []addr.Address{beneficiary, grantor, owner} {
			summary := h.vestingForAccount(rt, caller, beneficiary, today+3)
			assert.Equal(t, abi.NewTokenAmount(250), summary.AmountVested)
			assert.True(t, summary.IsActive)
		}
	})

	t.Run("strangers may not inspect a grant", func(t *testing.T) {
		rt, h := grantorSetup(t, owner, grantor, 2000)
		h.grantVestingTokens(rt, grantor, grant)

		rt.SetCaller(stranger)
		rt.ExpectValidateCallerAny()
		rt.ExpectAbort(exitcode.ErrForbidden, func() {
			rt.Call(h.VestingForAccountAsOf, &vesttoken.VestingQueryParams{Account: beneficiary, OnDay: today})
		})
		rt.Verify()
	})

	t.Run("self query reports the caller's own position as of today", func(t *testing.T) {
		rt, h := grantorSetup(t, owner, grantor, 2000)
		h.grantVestingTokens(rt, grantor, grant)

		rt.SetDay(today + 6)
		rt.SetCaller(beneficiary)
		rt.ExpectValidateCallerAny()
		summary := rt.Call(h.VestingAsOf, &vesttoken.VestingAsOfParams{OnDay: vesttoken.DayToday}).(*vesttoken.VestingSummary)
		rt.Verify()
		assert.Equal(t, abi.NewTokenAmount(500), summary.AmountVested)
	})

	t.Run("accounts without a grant report zero amounts", func(t *testing.T) {
		rt, h := grantorSetup(t, owner, grantor, 2000)
		summary := h.vestingForAccount(rt, stranger, stranger, today)
		assert.Equal(t, big.Zero(), summary.AmountOfGrant)
		assert.False(t, summary.IsActive)
	})

	t.Run("intrinsic schedule query requires a stored schedule", func(t *testing.T) {
		rt, h := grantorSetup(t, owner, grantor, 2000)
		rt.SetCaller(beneficiary)
		rt.ExpectValidateCallerAny()
		rt.ExpectAbort(vesttoken.ErrNoSchedule, func() {
			rt.Call(h.GetIntrinsicVestingSchedule, &beneficiary)
		})
		rt.Verify()

		h.grantVestingTokens(rt, grantor, grant)
		rt.SetCaller(beneficiary)
		rt.ExpectValidateCallerAny()
		vs := rt.Call(h.GetIntrinsicVestingSchedule, &beneficiary).(*vesttoken.VestingSchedule)
		rt.Verify()
		assert.Equal(t, abi.ChainEpoch(12), vs.Duration)
	})
}

///// Harness /////

type actorHarness struct {
	vesttoken.Actor
	t     testing.TB
	owner addr.Address
}

// Constructs the actor with the supply credited to the owner.
func basicSetup(t *testing.T, owner, grantor addr.Address, supply int64) (*mock.Runtime, *actorHarness) {
	receiver := tutil.NewIDAddr(t, 98)
	builder := mock.NewBuilder(context.Background(), receiver).
		WithCaller(builtin.SystemActorAddr).
		WithDay(today).
		WithGrantor(grantor)
	rt := builder.Build(t)

	h := &actorHarness{Actor: vesttoken.Actor{}, t: t, owner: owner}
	h.constructAndVerify(rt, owner, abi.NewTokenAmount(supply))
	return rt, h
}

// Like basicSetup, but the grantor starts funded with the whole supply.
func grantorSetup(t *testing.T, owner, grantor addr.Address, supply int64) (*mock.Runtime, *actorHarness) {
	rt, h := basicSetup(t, owner, grantor, supply)
	h.transfer(rt, owner, grantor, abi.NewTokenAmount(supply))
	return rt, h
}

// Establishes the grantor's shared schedule and restrictions for uniform
// grants, and registers the given beneficiaries.
func uniformSetup(t *testing.T, owner, grantor addr.Address, supply int64, beneficiaries ...addr.Address) (*mock.Runtime, *actorHarness) {
	rt, h := grantorSetup(t, owner, grantor, supply)
	for _, b := range beneficiaries {
		rt.SetRegistered(b, true)
	}
	h.setSchedule(rt, grantor, 0, 12, 3, true)
	h.setRestrictions(rt, grantor, today-10, today+30, today+30)
	return rt, h
}

func (h *actorHarness) constructAndVerify(rt *mock.Runtime, owner addr.Address, supply abi.TokenAmount) {
	rt.ExpectValidateCallerAddr(builtin.SystemActorAddr)
	ret := rt.Call(h.Constructor, &vesttoken.ConstructorParams{Owner: owner, Supply: supply})
	require.Nil(h.t, ret)
	rt.Verify()
}

func (h *actorHarness) transfer(rt *mock.Runtime, from, to addr.Address, amount abi.TokenAmount) {
	rt.SetCaller(from)
	rt.ExpectValidateCallerAny()
	rt.Call(h.Transfer, &vesttoken.TransferParams{To: to, Amount: amount})
	rt.Verify()
}

func (h *actorHarness) approve(rt *mock.Runtime, owner, spender addr.Address, amount abi.TokenAmount) {
	rt.SetCaller(owner)
	rt.ExpectValidateCallerAny()
	rt.Call(h.Approve, &vesttoken.ApproveParams{Spender: spender, Amount: amount})
	rt.Verify()
}

func (h *actorHarness) transferFrom(rt *mock.Runtime, spender, from, to addr.Address, amount abi.TokenAmount) {
	rt.SetCaller(spender)
	rt.ExpectValidateCallerAny()
	rt.Call(h.TransferFrom, &vesttoken.TransferFromParams{From: from, To: to, Amount: amount})
	rt.Verify()
}

func (h *actorHarness) burn(rt *mock.Runtime, from addr.Address, amount abi.TokenAmount) {
	rt.SetCaller(from)
	rt.ExpectValidateCallerAny()
	rt.Call(h.Burn, &vesttoken.BurnParams{Amount: amount})
	rt.Verify()
}

func (h *actorHarness) balanceOf(rt *mock.Runtime, account addr.Address) abi.TokenAmount {
	rt.SetCaller(account)
	rt.ExpectValidateCallerAny()
	ret := rt.Call(h.BalanceOf, &account).(*abi.TokenAmount)
	rt.Verify()
	return *ret
}

func (h *actorHarness) availableBalanceOf(rt *mock.Runtime, account addr.Address) abi.TokenAmount {
	rt.SetCaller(account)
	rt.ExpectValidateCallerAny()
	ret := rt.Call(h.AvailableBalanceOf, &account).(*abi.TokenAmount)
	rt.Verify()
	return *ret
}

func (h *actorHarness) allowance(rt *mock.Runtime, owner, spender addr.Address) abi.TokenAmount {
	rt.SetCaller(owner)
	rt.ExpectValidateCallerAny()
	ret := rt.Call(h.Allowance, &vesttoken.AllowanceParams{Owner: owner, Spender: spender}).(*abi.TokenAmount)
	rt.Verify()
	return *ret
}

func (h *actorHarness) grantVestingTokens(rt *mock.Runtime, grantor addr.Address, params *vesttoken.GrantParams) {
	rt.SetCaller(grantor)
	rt.ExpectValidateCallerAny()
	rt.Call(h.GrantVestingTokens, params)
	rt.Verify()
}

func (h *actorHarness) grantUniform(rt *mock.Runtime, grantor addr.Address, params *vesttoken.UniformGrantParams) {
	rt.SetCaller(grantor)
	rt.ExpectValidateCallerAny()
	rt.Call(h.GrantUniformVestingTokens, params)
	rt.Verify()
}

func (h *actorHarness) revokeGrant(rt *mock.Runtime, caller, beneficiary addr.Address, onDay abi.ChainEpoch) {
	rt.SetCaller(caller)
	rt.ExpectValidateCallerAny()
	rt.Call(h.RevokeGrant, &vesttoken.RevokeParams{Beneficiary: beneficiary, OnDay: onDay})
	rt.Verify()
}

func (h *actorHarness) setSchedule(rt *mock.Runtime, grantor addr.Address, cliff, duration, interval abi.ChainEpoch, revocable bool) {
	rt.SetCaller(h.owner)
	rt.ExpectValidateCallerAddr(h.owner)
	rt.Call(h.SetIntrinsicVestingSchedule, &vesttoken.ScheduleParams{
		Grantor:       grantor,
		CliffDuration: cliff,
		Duration:      duration,
		Interval:      interval,
		IsRevocable:   revocable,
	})
	rt.Verify()
}

func (h *actorHarness) setRestrictions(rt *mock.Runtime, grantor addr.Address, minStartDay, maxStartDay, expirationDay abi.ChainEpoch) {
	rt.SetCaller(h.owner)
	rt.ExpectValidateCallerAddr(h.owner)
	rt.Call(h.SetRestrictions, &vesttoken.RestrictionsParams{
		Grantor:       grantor,
		MinStartDay:   minStartDay,
		MaxStartDay:   maxStartDay,
		ExpirationDay: expirationDay,
	})
	rt.Verify()
}

func (h *actorHarness) vestingForAccount(rt *mock.Runtime, caller, account addr.Address, onDay abi.ChainEpoch) *vesttoken.VestingSummary {
	rt.SetCaller(caller)
	rt.ExpectValidateCallerAny()
	ret := rt.Call(h.VestingForAccountAsOf, &vesttoken.VestingQueryParams{Account: account, OnDay: onDay}).(*vesttoken.VestingSummary)
	rt.Verify()
	return ret
}

func (h *actorHarness) checkState(rt *mock.Runtime) {
	var st vesttoken.State
	rt.GetState(&st)
	_, acc, err := vesttoken.CheckStateInvariants(&st, rt.AdtStore())
	require.NoError(h.t, err)
	require.True(h.t, acc.IsEmpty(), strings.Join(acc.Messages(), "\n"))
}
