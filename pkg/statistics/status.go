package statistics

import (
	"time"

	"github.com/fitmatch/insights/pkg/fitness"
)

// AccountStatus is the single bucket an account is classified into
type AccountStatus string

const (
	StatusActive     AccountStatus = "Active"
	StatusSuspended  AccountStatus = "Suspended"
	StatusLocked     AccountStatus = "Locked"
	StatusUnverified AccountStatus = "Unverified"
)

const (
	activeLookbackDays = 30
	lockedLookbackDays = 90
)

// accountSignals are the facts the status cascade is evaluated on
type accountSignals struct {
	activeMembership    bool
	suspendedMembership bool
	expiredResetToken   bool
	activeLast30Days    bool
	activeLast90Days    bool
	everActive          bool
	hasEmail            bool
}

func collectSignals(u fitness.User, memberships []fitness.Membership, lastActive time.Time, hasActivity bool, today time.Time) accountSignals {
	sig := accountSignals{
		hasEmail:   u.HasEmail(),
		everActive: hasActivity,
	}
	if u.PasswordResetExpiresAt != nil && u.PasswordResetExpiresAt.Before(today) {
		sig.expiredResetToken = true
	}
	if hasActivity {
		sig.activeLast30Days = !lastActive.Before(today.AddDate(0, 0, -activeLookbackDays))
		sig.activeLast90Days = !lastActive.Before(today.AddDate(0, 0, -lockedLookbackDays))
	}
	for _, m := range memberships {
		switch {
		case m.ActiveOn(today):
			sig.activeMembership = true
		case m.Status == fitness.MembershipSuspended, m.Status == fitness.MembershipCancelled:
			sig.suspendedMembership = true
		}
	}
	return sig
}

// classifyAccount applies the ordered cascade Active, Suspended, Locked,
// Unverified. The first matching rule wins. Accounts matching no rule fall
// into Unverified so every account lands in exactly one bucket.
func classifyAccount(sig accountSignals, rule LockedRule) AccountStatus {
	if sig.activeMembership || sig.activeLast30Days {
		return StatusActive
	}
	if sig.suspendedMembership {
		return StatusSuspended
	}

	dormant := !sig.activeLast90Days
	locked := sig.expiredResetToken || dormant
	if rule == LockedExclusive {
		locked = sig.expiredResetToken != dormant
	}
	if locked {
		return StatusLocked
	}
	return StatusUnverified
}

func (b *StatusBreakdown) add(status AccountStatus) {
	switch status {
	case StatusActive:
		b.Active++
	case StatusSuspended:
		b.Suspended++
	case StatusLocked:
		b.Locked++
	default:
		b.Unverified++
	}
}
