package history

import "time"

// SetClock replaces the recorder's time source and id generator.
func SetClock(r *Recorder, now func() time.Time, newID func() string) {
	r.now = now
	r.newID = newID
}
