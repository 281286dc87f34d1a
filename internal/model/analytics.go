package model

// Analytics is a derived productivity snapshot. It is never stored.
type Analytics struct {
	TotalTasks             int     `json:"totalTasks"`
	CompletedTasks         int     `json:"completedTasks"`
	InProgressTasks        int     `json:"inProgressTasks"`
	PendingTasks           int     `json:"pendingTasks"`
	TotalTimeSpent         float64 `json:"totalTimeSpent"`        // Minutes
	AverageCompletionTime  float64 `json:"averageCompletionTime"` // Minutes
	ProductivityPercentage int     `json:"productivityPercentage"`
}
