package vesttoken

import (
	"github.com/filecoin-project/go-state-types/abi"
)

// The ledger measures time in whole calendar days. A day number counts days
// since the Unix epoch, so it shares the ChainEpoch representation with one
// day per epoch.

// Day number of 2000-01-01, the earliest permitted grant start day.
const MinGrantStartDay = abi.ChainEpoch(10957)

// Day number of 3000-01-01. Grant start days at or after this bound are
// rejected; anything earlier is permitted, however far in the future.
const MaxGrantStartDay = abi.ChainEpoch(376200)

// Upper bound on a vesting schedule's total duration: ten years, leap-aware.
const MaxVestingDurationDays = abi.ChainEpoch(3652)

// Sentinel day value directing queries to use the current calendar day.
const DayToday = abi.ChainEpoch(0)
