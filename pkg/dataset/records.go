package dataset

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/Sumatoshi-tech/locbench/pkg/task"
)

// ErrMissingField is returned for records without an id, repository or commit.
var ErrMissingField = errors.New("record is missing a required field")

type sweBenchRecord struct {
	InstanceID string `json:"instance_id"`
	Repo       string `json:"repo"`
	BaseCommit string `json:"base_commit"`
	Patch      string `json:"patch"`
}

type multiSWEBenchRecord struct {
	Org        string `json:"org"`
	Repo       string `json:"repo"`
	InstanceID string `json:"instance_id"`
	Base       struct {
		SHA string `json:"sha"`
	} `json:"base"`
	FixPatch string `json:"fix_patch"`
}

type genericRecord struct {
	ID     string `json:"id"`
	Repo   string `json:"repo"`
	Commit string `json:"commit"`
	Patch  string `json:"patch"`
}

func decodeSWEBench(raw json.RawMessage) (task.Task, error) {
	var rec sweBenchRecord

	err := json.Unmarshal(raw, &rec)
	if err != nil {
		return task.Task{}, err
	}

	return checked(task.Task{ID: rec.InstanceID, Repo: rec.Repo, Commit: rec.BaseCommit, Patch: rec.Patch})
}

func decodeMultiSWEBench(raw json.RawMessage) (task.Task, error) {
	var rec multiSWEBenchRecord

	err := json.Unmarshal(raw, &rec)
	if err != nil {
		return task.Task{}, err
	}

	repo := ""
	if rec.Org != "" && rec.Repo != "" {
		repo = rec.Org + "/" + rec.Repo
	}

	return checked(task.Task{ID: rec.InstanceID, Repo: repo, Commit: rec.Base.SHA, Patch: rec.FixPatch})
}

func decodeGeneric(raw json.RawMessage) (task.Task, error) {
	var rec genericRecord

	err := json.Unmarshal(raw, &rec)
	if err != nil {
		return task.Task{}, err
	}

	return checked(task.Task{ID: rec.ID, Repo: rec.Repo, Commit: rec.Commit, Patch: rec.Patch})
}

func checked(t task.Task) (task.Task, error) {
	switch {
	case t.ID == "":
		return t, fmt.Errorf("%w: id", ErrMissingField)
	case t.Repo == "":
		return t, fmt.Errorf("%w: repo of %s", ErrMissingField, t.ID)
	case t.Commit == "":
		return t, fmt.Errorf("%w: commit of %s", ErrMissingField, t.ID)
	}

	return t, nil
}
