package api

// Message types delivered over the push channel.
const (
	MessageTypeJobUpdate    = "job_update"
	MessageTypeHostSnapshot = "host_snapshot"
)

// JobRecordWire is one job as reported by the cluster-facing gateway,
// for both push-channel messages and /status responses.
type JobRecordWire struct {
	JobId       string `json:"job_id"`
	Hostname    string `json:"hostname"`
	Name        string `json:"name"`
	User        string `json:"user"`
	State       string `json:"state"`
	Cpus        *int32 `json:"cpus,omitempty"`
	Memory      *int64 `json:"memory,omitempty"`
	Nodes       *int32 `json:"nodes,omitempty"`
	Partition   string `json:"partition"`
	Runtime     int64  `json:"runtime"`
	SubmitTime  int64  `json:"submit_time"`
	ArrayJobId  string `json:"array_job_id,omitempty"`
	ArrayTaskId *int32 `json:"array_task_id,omitempty"`
}

// PushMessage is the envelope for everything arriving on the push channel.
// Exactly one of Job (job_update) or Jobs (host_snapshot) is populated.
type PushMessage struct {
	Type      string           `json:"type"`
	Job       *JobRecordWire   `json:"job,omitempty"`
	Host      string           `json:"host,omitempty"`
	Jobs      []*JobRecordWire `json:"jobs,omitempty"`
	Timestamp int64            `json:"timestamp,omitempty"`
}

// StatusResponse is the body of GET /status?host=<host>.
type StatusResponse struct {
	Hostname  string           `json:"hostname"`
	Jobs      []*JobRecordWire `json:"jobs"`
	Timestamp int64            `json:"timestamp"`
	QueryTime float64          `json:"query_time"`
}
