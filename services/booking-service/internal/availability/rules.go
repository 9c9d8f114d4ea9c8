package availability

import (
	"time"

	"github.com/Omarch29/sloty-saas-appointment-system/services/booking-service/internal/model"
)

// ResolveRule prefers the service specific rule, then the tenant default, then the system default.
func ResolveRule(serviceRule, tenantRule *model.BookingRule) model.BookingRule {
	switch {
	case serviceRule != nil:
		return *serviceRule
	case tenantRule != nil:
		return *tenantRule
	default:
		return model.DefaultBookingRule()
	}
}

// WithinPolicyWindow reports whether now+minNotice <= start <= now+maxHorizonDays.
// A non-positive horizon disables the upper bound.
func WithinPolicyWindow(start time.Time, rule model.BookingRule, now time.Time) bool {
	notice := time.Duration(max(rule.MinNoticeMinutes, 0)) * time.Minute
	if start.Before(now.Add(notice)) {
		return false
	}
	if rule.MaxHorizonDays > 0 && start.After(now.Add(time.Duration(rule.MaxHorizonDays)*24*time.Hour)) {
		return false
	}
	return true
}

// FilterByRule drops slots outside the policy window. now is injected so results are reproducible.
func FilterByRule(slots []model.Slot, rule model.BookingRule, now time.Time) []model.Slot {
	out := slots[:0:0]
	for _, s := range slots {
		if WithinPolicyWindow(s.StartTime, rule, now) {
			out = append(out, s)
		}
	}
	return out
}
