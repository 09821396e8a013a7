package sources

import (
	"time"
)

// GetRequestDelay returns the delay between successive fetches as time.Duration
func (s *SourceSettings) GetRequestDelay() time.Duration {
	if s.RequestDelay <= 0 {
		return 2 * time.Second // default 2 seconds
	}
	return time.Duration(s.RequestDelay) * time.Second
}

// GetTimeout returns the fetch timeout as time.Duration
func (s *SourceSettings) GetTimeout() time.Duration {
	if s.Timeout <= 0 {
		return 10 * time.Second // default 10 seconds
	}
	return time.Duration(s.Timeout) * time.Second
}
