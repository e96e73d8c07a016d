package service

const (
	// DaysPerWeek is the length of a calendar week summary
	DaysPerWeek = 7

	// RecentActivitiesLimit is how many activities the dashboard lists
	RecentActivitiesLimit = 10

	// StreamBatchSize caps stream fetches per sync to respect rate limits
	StreamBatchSize = 50

	// Sync phases reported through SyncProgress
	PhaseActivities = "activities"
	PhaseStreams    = "streams"
)
