package sim

import "github.com/google/uuid"

// newID mints a fresh unique id for a projectile, pickup, or effect.
func newID() string {
	return uuid.NewString()
}
