package queue

import (
	"database/sql"
	"fmt"

	"github.com/clusterqueue/clusterqueue/internal/domain"
	"github.com/clusterqueue/clusterqueue/internal/store"
)

const jobColumns = `job_id, payload, env_variables, tags, status, last_updated, submission_time,
	assigned_node, assigned_node_processor, result_metadata, metadata`

// rowScanner is satisfied by both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanJob(r rowScanner) (domain.Job, error) {
	var (
		id                    int64
		payload               string
		env                   store.JSONMap
		tagSet                store.TagSet
		status                string
		lastUpdated           sql.NullTime
		submissionTime        sql.NullTime
		assignedNode          string
		assignedNodeProcessor sql.NullInt64
		resultMetadata        store.JSONMap
		metadata              store.JSONMap
	)
	if err := r.Scan(&id, &payload, &env, &tagSet, &status, &lastUpdated, &submissionTime,
		&assignedNode, &assignedNodeProcessor, &resultMetadata, &metadata); err != nil {
		return domain.Job{}, fmt.Errorf("queue: scan job: %w", err)
	}

	job := domain.Job{
		ID:             id,
		Payload:        payload,
		Tags:           []string(tagSet),
		Status:         status,
		LastUpdated:    lastUpdated.Time,
		SubmissionTime: submissionTime.Time,
		AssignedNode:   assignedNode,
		ResultMetadata: map[string]any(resultMetadata),
		Metadata:       map[string]any(metadata),
	}
	if assignedNodeProcessor.Valid {
		v := int(assignedNodeProcessor.Int64)
		job.AssignedNodeProcessor = &v
	}
	if env != nil {
		envStrings := make(map[string]string, len(env))
		for k, v := range env {
			if s, ok := v.(string); ok {
				envStrings[k] = s
			} else {
				envStrings[k] = fmt.Sprint(v)
			}
		}
		job.EnvVariables = envStrings
	}
	return job, nil
}

func envToJSONMap(env map[string]string) store.JSONMap {
	if env == nil {
		return nil
	}
	out := make(store.JSONMap, len(env))
	for k, v := range env {
		out[k] = v
	}
	return out
}
