package main

import (
	gen "github.com/whyrusleeping/cbor-gen"

	"github.com/vestable/vesting-actors/actors/builtin/vesttoken"
)

func main() {
	if err := gen.WriteTupleEncodersToFile("./actors/builtin/vesttoken/cbor_gen.go", "vesttoken",
		// actor state
		vesttoken.State{},
		vesttoken.VestingSchedule{},
		vesttoken.TokenGrant{},
		vesttoken.GrantorRestrictions{},
		// method params and returns
		vesttoken.ConstructorParams{},
		vesttoken.TransferParams{},
		vesttoken.TransferFromParams{},
		vesttoken.ApproveParams{},
		vesttoken.BurnParams{},
		vesttoken.AllowanceParams{},
		vesttoken.GrantParams{},
		vesttoken.UniformGrantParams{},
		vesttoken.RevokeParams{},
		vesttoken.ScheduleParams{},
		vesttoken.RestrictionsParams{},
		vesttoken.VestingAsOfParams{},
		vesttoken.VestingQueryParams{},
		vesttoken.VestingSummary{},
	); err != nil {
		panic(err)
	}
}
