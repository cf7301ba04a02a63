package user

// NextPlan is a pending plan that replaces the user's limits when the
// current plan runs out. At most one exists per user.
type NextPlan struct {
	DataLimit           int64
	ExpireSeconds       *int64
	AddRemainingTraffic bool
	FireOnEither        bool
}
