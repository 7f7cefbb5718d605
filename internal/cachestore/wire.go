package cachestore

import "github.com/buildcore/engine/internal/entry"

// wireResult is the JSON-safe projection of entry.BuildResult used for SQL
// persistence: error and any-typed fields don't round-trip through
// encoding/json on their own, so Exception is flattened to its message and
// a TargetResult's WorkUnitResult is not persisted at all.
type wireResult struct {
	ConfigurationID       int                    `json:"configuration_id"`
	GlobalRequestID       int                    `json:"global_request_id"`
	NodeRequestID         int                    `json:"node_request_id"`
	SubmissionID          int                    `json:"submission_id"`
	ParentGlobalRequestID int                    `json:"parent_global_request_id"`
	ResultsNodeID         int                    `json:"results_node_id"`
	Targets               map[string]wireTarget `json:"targets"`
	TargetOrder           []string               `json:"target_order"`
	OverallCode           entry.ResultCode       `json:"overall_code"`
	ExceptionMessage      string                 `json:"exception_message,omitempty"`
	CircularDependency    bool                   `json:"circular_dependency"`
	InitialTargets        []string               `json:"initial_targets"`
	DefaultTargets        []string               `json:"default_targets"`
}

type wireTarget struct {
	Items            []entry.ResultItem `json:"items"`
	Code             entry.ResultCode   `json:"code"`
	ExceptionMessage string             `json:"exception_message,omitempty"`
}

func toWireResult(r entry.BuildResult) wireResult {
	w := wireResult{
		ConfigurationID:       r.ConfigurationID,
		GlobalRequestID:       r.GlobalRequestID,
		NodeRequestID:         r.NodeRequestID,
		SubmissionID:          r.SubmissionID,
		ParentGlobalRequestID: r.ParentGlobalRequestID,
		ResultsNodeID:         r.ResultsNodeID,
		Targets:               map[string]wireTarget{},
		TargetOrder:           append([]string(nil), r.TargetOrder...),
		OverallCode:           r.OverallCode,
		CircularDependency:    r.CircularDependency,
		InitialTargets:        append([]string(nil), r.InitialTargets...),
		DefaultTargets:        append([]string(nil), r.DefaultTargets...),
	}
	if r.Exception != nil {
		w.ExceptionMessage = r.Exception.Error()
	}
	for name, tr := range r.Targets {
		wt := wireTarget{Items: append([]entry.ResultItem(nil), tr.Items...), Code: tr.Code}
		if tr.Exception != nil {
			wt.ExceptionMessage = tr.Exception.Error()
		}
		w.Targets[name] = wt
	}
	return w
}

func fromWireResult(w wireResult) entry.BuildResult {
	r := entry.BuildResult{
		ConfigurationID:       w.ConfigurationID,
		GlobalRequestID:       w.GlobalRequestID,
		NodeRequestID:         w.NodeRequestID,
		SubmissionID:          w.SubmissionID,
		ParentGlobalRequestID: w.ParentGlobalRequestID,
		ResultsNodeID:         w.ResultsNodeID,
		TargetOrder:           append([]string(nil), w.TargetOrder...),
		OverallCode:           w.OverallCode,
		CircularDependency:    w.CircularDependency,
		InitialTargets:        append([]string(nil), w.InitialTargets...),
		DefaultTargets:        append([]string(nil), w.DefaultTargets...),
	}
	if w.ExceptionMessage != "" {
		r.Exception = stringError(w.ExceptionMessage)
	}
	for _, name := range w.TargetOrder {
		wt, ok := w.Targets[name]
		if !ok {
			continue
		}
		tr := entry.TargetResult{Items: append([]entry.ResultItem(nil), wt.Items...), Code: wt.Code}
		if wt.ExceptionMessage != "" {
			tr.Exception = stringError(wt.ExceptionMessage)
		}
		r.SetTarget(name, tr)
	}
	return r
}

// stringError is the minimal error implementation needed to round-trip a
// persisted exception message without pretending to preserve its original
// dynamic type.
type stringError string

func (e stringError) Error() string { return string(e) }
