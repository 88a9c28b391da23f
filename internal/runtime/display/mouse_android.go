//go:build android

package display

import "errors"

// Open reports unavailability on Android — the reference
// implementation's own android.go stub: mouse input has no equivalent
// there, and neither the raw-device nor the SDL backend applies.
func Open(c *Controller) error {
	return errors.New("mouse not supported on android")
}
