package api

import (
	"encoding/json"

	"github.com/pkg/errors"
)

// DecodePushMessage parses and validates a raw push-channel frame.
// An error here means the frame should be dropped, never that the
// channel itself is unhealthy.
func DecodePushMessage(data []byte) (*PushMessage, error) {
	var message PushMessage
	if err := json.Unmarshal(data, &message); err != nil {
		return nil, errors.Wrap(err, "failed to unmarshal push message")
	}

	switch message.Type {
	case MessageTypeJobUpdate:
		if message.Job == nil {
			return nil, errors.Errorf("job_update message is missing job payload")
		}
		if message.Job.JobId == "" || message.Job.Hostname == "" {
			return nil, errors.Errorf("job_update message has no job_id or hostname")
		}
	case MessageTypeHostSnapshot:
		if message.Host == "" {
			return nil, errors.Errorf("host_snapshot message is missing host")
		}
		for _, job := range message.Jobs {
			if job == nil || job.JobId == "" {
				return nil, errors.Errorf("host_snapshot for %s contains an invalid job entry", message.Host)
			}
		}
	case "":
		return nil, errors.Errorf("push message has no type")
	default:
		return nil, errors.Errorf("unknown push message type %q", message.Type)
	}

	return &message, nil
}

// DecodeStatusResponse parses the body of a /status query.
func DecodeStatusResponse(data []byte) (*StatusResponse, error) {
	var response StatusResponse
	if err := json.Unmarshal(data, &response); err != nil {
		return nil, errors.Wrap(err, "failed to unmarshal status response")
	}
	if response.Hostname == "" {
		return nil, errors.Errorf("status response is missing hostname")
	}
	return &response, nil
}
