package user

// Status represents the subscriber lifecycle state.
type Status string

const (
	StatusActive   Status = "active"
	StatusDisabled Status = "disabled"
	StatusLimited  Status = "limited"
	StatusExpired  Status = "expired"
	StatusOnHold   Status = "on_hold"
)

// IsValid reports whether s is a known status.
func (s Status) IsValid() bool {
	switch s {
	case StatusActive, StatusDisabled, StatusLimited, StatusExpired, StatusOnHold:
		return true
	}
	return false
}

// String returns the status as a string.
func (s Status) String() string {
	return string(s)
}

// CanBeActivatedOnNode reports whether a user in this status may have
// credentials materialized on a worker node.
func (s Status) CanBeActivatedOnNode() bool {
	return s == StatusActive || s == StatusOnHold
}

// ResetStrategy controls periodic data-usage resets.
type ResetStrategy string

const (
	ResetStrategyNone  ResetStrategy = "none"
	ResetStrategyDay   ResetStrategy = "day"
	ResetStrategyWeek  ResetStrategy = "week"
	ResetStrategyMonth ResetStrategy = "month"
	ResetStrategyYear  ResetStrategy = "year"
)

// IsValid reports whether r is a known reset strategy.
func (r ResetStrategy) IsValid() bool {
	switch r {
	case ResetStrategyNone, ResetStrategyDay, ResetStrategyWeek, ResetStrategyMonth, ResetStrategyYear:
		return true
	}
	return false
}

// IntervalDays returns the reset interval in days, or 0 for none.
func (r ResetStrategy) IntervalDays() int {
	switch r {
	case ResetStrategyDay:
		return 1
	case ResetStrategyWeek:
		return 7
	case ResetStrategyMonth:
		return 30
	case ResetStrategyYear:
		return 365
	}
	return 0
}
