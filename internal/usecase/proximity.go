package usecase

import "regexp"

var (
	nearbyPatternZH = regexp.MustCompile(`附近|旁边|周围|有什么.*店|饭店|餐厅|美食|吃.*的|哪里.*吃`)
	nearbyPatternEN = regexp.MustCompile(`(?i)\b(nearby|near me|around here|where to eat)\b`)
)

// isAskingNearby reports whether the message asks about places or food
// around the user.
func isAskingNearby(message string) bool {
	return nearbyPatternZH.MatchString(message) || nearbyPatternEN.MatchString(message)
}
