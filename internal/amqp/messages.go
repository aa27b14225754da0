package amqp

import (
	"encoding/json"
	"fmt"
	"time"
)

// Job kinds carried on the work queue.
const (
	KindSnapshot   = "snapshot"
	KindCategorize = "categorize"
)

// Job is the envelope for queued work. Exactly one of the payload fields is
// set, matching Kind. Messages are lightweight: workers fetch full rows from
// the store.
type Job struct {
	Kind       string         `json:"kind"`
	Timestamp  time.Time      `json:"timestamp"`
	Snapshot   *SnapshotJob   `json:"snapshot,omitempty"`
	Categorize *CategorizeJob `json:"categorize,omitempty"`
}

// SnapshotJob asks the worker to record daily balances for one user.
type SnapshotJob struct {
	UserID string `json:"user_id"`
	Date   string `json:"date"` // "YYYY-MM-DD"
}

// CategorizeJob asks the worker to run the categorization pipeline. Empty
// TransactionIDs means the user's recent uncategorized transactions; Force
// includes already-categorized ones.
type CategorizeJob struct {
	UserID         string   `json:"user_id"`
	TransactionIDs []string `json:"transaction_ids,omitempty"`
	Force          bool     `json:"force,omitempty"`
}

func NewSnapshotJob(userID string, date time.Time) *Job {
	return &Job{
		Kind:      KindSnapshot,
		Timestamp: time.Now(),
		Snapshot:  &SnapshotJob{UserID: userID, Date: date.Format("2006-01-02")},
	}
}

func NewCategorizeJob(userID string, transactionIDs []string, force bool) *Job {
	return &Job{
		Kind:       KindCategorize,
		Timestamp:  time.Now(),
		Categorize: &CategorizeJob{UserID: userID, TransactionIDs: transactionIDs, Force: force},
	}
}

func (j *Job) ToJSON() ([]byte, error) {
	return json.Marshal(j)
}

func JobFromJSON(data []byte) (*Job, error) {
	var j Job
	if err := json.Unmarshal(data, &j); err != nil {
		return nil, err
	}
	switch j.Kind {
	case KindSnapshot:
		if j.Snapshot == nil {
			return nil, fmt.Errorf("snapshot job missing payload")
		}
	case KindCategorize:
		if j.Categorize == nil {
			return nil, fmt.Errorf("categorize job missing payload")
		}
	default:
		return nil, fmt.Errorf("unknown job kind %q", j.Kind)
	}
	return &j, nil
}
