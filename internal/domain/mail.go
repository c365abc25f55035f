package domain

type MailMessage struct {
	Type string `json:"type"`
	To   string `json:"to"`
	Data any    `json:"data"`
}

const (
	MailTypeScheduleReady  = "schedule_ready"
	MailTypeScheduleFailed = "schedule_failed"
	MailTypeNewUser        = "new_user"
)

type ScheduleReadyMailData struct {
	PlanName        string             `json:"planName"`
	JobID           string             `json:"jobID"`
	Status          SolveStatus        `json:"status"`
	TotalCost       float64            `json:"totalCost"`
	OverallCoverage float64            `json:"overallCoverage"`
	Relaxed         []ConstraintFamily `json:"relaxed"`
}

type ScheduleFailedMailData struct {
	PlanName string `json:"planName"`
	JobID    string `json:"jobID"`
	Reason   string `json:"reason"`
}

type NewUserMailData struct {
	FullName string `json:"fullName"`
	Username string `json:"username"`
	Password string `json:"password"`
}
