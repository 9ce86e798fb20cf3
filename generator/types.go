package generator

import "time"

// Brief is what the prompt parser extracts from the user's goal.
type Brief struct {
	Topic        string
	Platforms    []string
	ScheduleTime *time.Time
}

// SupportedPlatforms lists the platforms in delivery order.
var SupportedPlatforms = []string{"Instagram", "Facebook", "LinkedIn"}

// CaptionOptionCount is how many candidates are requested per platform.
const CaptionOptionCount = 3
