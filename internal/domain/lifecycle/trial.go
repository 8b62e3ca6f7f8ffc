// Package lifecycle holds the pure decision functions of the subscription
// lifecycle: the trial calculator and the effective status resolver.
// Nothing here performs I/O or reads the wall clock.
package lifecycle

import (
	"time"

	"coaching-subscription/internal/domain/model"
)

// TrialWindow is the computed trial state of a tenant at a point in time.
type TrialWindow struct {
	TrialStart     time.Time
	TrialEnd       time.Time
	DaysRemaining  int
	IsTrialExpired bool
	IsTrialActive  bool
}

// TrialRefFor picks the trial start/end reference of t, falling back through
// the legacy trial fields and finally the creation timestamp.
func TrialRefFor(t *model.Tenant) (start time.Time, end *time.Time) {
	sub := t.Subscription
	switch {
	case sub.TrialStart != nil && !sub.TrialStart.IsZero():
		start = *sub.TrialStart
	case t.LegacyTrialStartDate != nil && !t.LegacyTrialStartDate.IsZero():
		start = *t.LegacyTrialStartDate
	default:
		start = t.CreatedAt
	}
	switch {
	case sub.TrialEnd != nil && !sub.TrialEnd.IsZero():
		end = sub.TrialEnd
	case t.LegacyTrialExpiryDate != nil && !t.LegacyTrialExpiryDate.IsZero():
		end = t.LegacyTrialExpiryDate
	}
	return start, end
}

// CalculateTrial computes the trial window from a start reference and an
// optional explicit end. Without an explicit end the trial lasts trialDays.
func CalculateTrial(start time.Time, explicitEnd *time.Time, trialDays int, now time.Time) TrialWindow {
	if trialDays <= 0 {
		trialDays = model.DefaultTrialDays
	}
	end := start.Add(time.Duration(trialDays) * model.Day)
	if explicitEnd != nil && !explicitEnd.IsZero() {
		end = *explicitEnd
	}
	expired := !end.After(now)
	return TrialWindow{
		TrialStart:     start,
		TrialEnd:       end,
		DaysRemaining:  DaysUntil(end, now),
		IsTrialExpired: expired,
		IsTrialActive:  !expired,
	}
}

// TenantTrial runs CalculateTrial on the tenant's trial reference.
func TenantTrial(t *model.Tenant, trialDays int, now time.Time) TrialWindow {
	start, end := TrialRefFor(t)
	return CalculateTrial(start, end, trialDays, now)
}

// DaysUntil returns max(0, ceil((until-now)/1 day)).
func DaysUntil(until, now time.Time) int {
	d := until.Sub(now)
	if d <= 0 {
		return 0
	}
	days := int(d / model.Day)
	if d%model.Day != 0 {
		days++
	}
	return days
}
