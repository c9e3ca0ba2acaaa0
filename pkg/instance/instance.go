package instance

import "os"

// GetID returns the process instance identifier used in startup logs.
// An explicit ALLOCATIONS_INSTANCE_ID wins over the platform dyno name.
func GetID() string {
	for _, key := range []string{"ALLOCATIONS_INSTANCE_ID", "DYNO"} {
		if id := os.Getenv(key); id != "" {
			return id
		}
	}
	if host, err := os.Hostname(); err == nil && host != "" {
		return host
	}
	return "local"
}
