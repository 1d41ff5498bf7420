package consultation

import "time"

// SetNowFunc replaces the booking clock until the returned func is called.
func SetNowFunc(f func() time.Time) (reset func()) {
	orig := nowFunc
	nowFunc = f
	return func() { nowFunc = orig }
}
