package scheduler

import "fmt"

// OSSchedulingError wraps a failed call to the trigger service.
type OSSchedulingError struct {
	Op  string // create, cancel, cancel_all, list
	ID  string
	Err error
}

func (e *OSSchedulingError) Error() string {
	if e.ID == "" {
		return fmt.Sprintf("trigger %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("trigger %s %s: %v", e.Op, e.ID, e.Err)
}

func (e *OSSchedulingError) Unwrap() error { return e.Err }

// MigrationError reports a channel migration that did not finish. The flag
// is not set, so the migration runs again on the next start.
type MigrationError struct {
	Stage string // read_flag, list, cancel, reschedule, set_flag
	Err   error
}

func (e *MigrationError) Error() string {
	return fmt.Sprintf("channel migration failed at %s: %v", e.Stage, e.Err)
}

func (e *MigrationError) Unwrap() error { return e.Err }
