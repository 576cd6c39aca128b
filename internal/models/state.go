package models

// UpcomingState is the state of the next-prayer indicator.
type UpcomingState int

const (
	StateIdle UpcomingState = iota
	StateScanning
	StateAllEnded
)

func (s UpcomingState) String() string {
	switch s {
	case StateScanning:
		return "scanning"
	case StateAllEnded:
		return "all_ended"
	}
	return "idle"
}
