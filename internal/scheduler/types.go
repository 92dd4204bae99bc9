// Package scheduler runs persistent cron jobs that inject synthetic agent
// messages. Schedules come in three kinds: fixed intervals, one-shot
// timestamps, and 5-field cron expressions.
package scheduler

// Schedule describes when a job fires.
type Schedule struct {
	// Kind is "interval", "at", or "cron".
	Kind string `json:"kind"`
	// EverySeconds is the period for interval schedules.
	EverySeconds int64 `json:"everySeconds,omitempty"`
	// AtMs is the epoch-millisecond firing time for one-shot schedules.
	AtMs int64 `json:"atMs,omitempty"`
	// Expr is a 5-field cron expression for cron schedules.
	Expr string `json:"expr,omitempty"`
}

// Payload is the synthetic message a job injects when it fires.
type Payload struct {
	Channel string `json:"channel,omitempty"`
	ChatID  string `json:"chatId,omitempty"`
	Message string `json:"message"`
	// Deliver sends the agent's response to the channel instead of
	// swallowing it.
	Deliver bool `json:"deliver,omitempty"`
}

// JobState tracks execution history.
type JobState struct {
	LastRunMs int64  `json:"lastRunMs,omitempty"`
	NextRunMs int64  `json:"nextRunMs,omitempty"`
	RunCount  int64  `json:"runCount,omitempty"`
	LastError string `json:"lastError,omitempty"`
}

// CronJob is one scheduled task.
type CronJob struct {
	ID             string   `json:"id"`
	Name           string   `json:"name"`
	Enabled        bool     `json:"enabled"`
	Schedule       Schedule `json:"schedule"`
	Payload        Payload  `json:"payload"`
	State          JobState `json:"state"`
	CreatedAtMs    int64    `json:"createdAtMs"`
	UpdatedAtMs    int64    `json:"updatedAtMs"`
	DeleteAfterRun bool     `json:"deleteAfterRun,omitempty"`
}

type jobFile struct {
	Version int       `json:"version"`
	Jobs    []CronJob `json:"jobs"`
}
