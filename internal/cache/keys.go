package cache

import "fmt"

func ResultKey(jobID string) string {
	return fmt.Sprintf("magclient:result:%s", jobID)
}

func RateLimitKey(sessionID string) string {
	return fmt.Sprintf("magclient:ratelimit:%s", sessionID)
}
