package scheduler

import (
	"encoding/json"

	"github.com/hibiken/asynq"
)

const TaskHeightRetransform = "imports.height.retransform"

type HeightRetransformPayload struct {
	LayerID string `json:"layerId"`
	JobID   string `json:"jobId,omitempty"`
}

func NewHeightRetransformTask(payload HeightRetransformPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskHeightRetransform, data), nil
}

func ParseHeightRetransformPayload(task *asynq.Task) (HeightRetransformPayload, error) {
	var payload HeightRetransformPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return HeightRetransformPayload{}, err
	}
	return payload, nil
}
