package notifications

import (
	"fmt"
	"time"
)

// TimeDisplay renders createdAt relative to now. Timestamps in the future
// count as "Just now".
func TimeDisplay(createdAt, now time.Time) string {
	secs := int64(now.Sub(createdAt) / time.Second)
	switch {
	case secs < 60:
		return "Just now"
	case secs < 3600:
		return fmt.Sprintf("%dm ago", secs/60)
	case secs < 86400:
		return fmt.Sprintf("%dh ago", secs/3600)
	default:
		return fmt.Sprintf("%dd ago", secs/86400)
	}
}
