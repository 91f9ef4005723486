package domain

import "time"

type ReservationStatus string

const (
	ReservationStatusActive   ReservationStatus = "active"
	ReservationStatusConsumed ReservationStatus = "consumed"
	ReservationStatusReleased ReservationStatus = "released"
	ReservationStatusExpired  ReservationStatus = "expired"
)

// IsTerminal reports whether no further transition is allowed.
func (s ReservationStatus) IsTerminal() bool {
	return s == ReservationStatusConsumed || s == ReservationStatusReleased || s == ReservationStatusExpired
}

// Reservation holds Quantity units of one variant for one order until ExpiresAt.
type Reservation struct {
	ID        string
	OrderID   string
	VariantID string
	Quantity  int
	Status    ReservationStatus
	ExpiresAt time.Time
	CreatedAt time.Time
	UpdatedAt time.Time
}

// ExpiredAt reports whether an active hold has reached its deadline.
func (r Reservation) ExpiredAt(now time.Time) bool {
	return r.Status == ReservationStatusActive && !r.ExpiresAt.After(now)
}

// DueHold is one listed hold in a sweep. The last one listed is the keyset
// cursor for the next page; the zero value starts from the oldest.
type DueHold struct {
	ID        string
	ExpiresAt time.Time
}

func (h DueHold) IsZero() bool {
	return h.ID == ""
}
