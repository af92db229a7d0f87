package enums

// RentalStatus maps to the rental_status enum in Postgres.
type RentalStatus string

const (
	RentalStatusPending             RentalStatus = "pending"
	RentalStatusBooked              RentalStatus = "booked"
	RentalStatusPendingVerification RentalStatus = "pending_verification"
	RentalStatusConfirmed           RentalStatus = "confirmed"
	RentalStatusActive              RentalStatus = "active"
	RentalStatusReturned            RentalStatus = "returned"
	RentalStatusCancelled           RentalStatus = "cancelled"
)

var rentalStatuses = []RentalStatus{
	RentalStatusPending,
	RentalStatusBooked,
	RentalStatusPendingVerification,
	RentalStatusConfirmed,
	RentalStatusActive,
	RentalStatusReturned,
	RentalStatusCancelled,
}

// OccupyingRentalStatuses lists the statuses that hold a vehicle for their window.
var OccupyingRentalStatuses = []RentalStatus{
	RentalStatusBooked,
	RentalStatusConfirmed,
	RentalStatusActive,
	RentalStatusPendingVerification,
}

// String implements fmt.Stringer.
func (s RentalStatus) String() string {
	return string(s)
}

// IsValid reports whether the value is a known RentalStatus.
func (s RentalStatus) IsValid() bool {
	return valid(rentalStatuses, s)
}

// IsOccupying reports whether a rental in this status blocks overlapping bookings.
func (s RentalStatus) IsOccupying() bool {
	return valid(OccupyingRentalStatuses, s)
}

// IsTerminal reports whether no further lifecycle transitions exist.
func (s RentalStatus) IsTerminal() bool {
	return s == RentalStatusReturned || s == RentalStatusCancelled
}

// ParseRentalStatus converts raw input into a RentalStatus.
func ParseRentalStatus(value string) (RentalStatus, error) {
	return parse(rentalStatuses, "rental status", value)
}
