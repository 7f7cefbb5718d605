package entry

import (
	"github.com/buildcore/engine/internal/builderrors"
)

// State is one of the four Build Request Entry states (spec §4.3).
type State int

const (
	Ready State = iota
	Active
	Waiting
	Complete
)

func (s State) String() string {
	switch s {
	case Ready:
		return "Ready"
	case Active:
		return "Active"
	case Waiting:
		return "Waiting"
	case Complete:
		return "Complete"
	default:
		return "Unknown"
	}
}

// waitingRequest tracks one sub-request an entry is blocked on.
type waitingRequest struct {
	nodeRequestID   int
	configurationID int
	reported        bool
}

// BuildRequestEntry drives a single build request through
// Ready -> Active -> Waiting -> Ready -> ... -> Complete (spec §4.3). An
// entry is owned by exactly one scheduler worker at a time; it performs no
// locking of its own (spec §5 concurrency model).
type BuildRequestEntry struct {
	request       BuildRequest
	configuration BuildRequestConfiguration
	state         State

	waiting []*waitingRequest
	results map[int]BuildResult // keyed by nodeRequestId of the waited-on request

	final *BuildResult
}

// New constructs an entry in the Ready state (spec §4.3 "Initial state").
func New(request BuildRequest, configuration BuildRequestConfiguration) *BuildRequestEntry {
	return &BuildRequestEntry{
		request:       request,
		configuration: configuration,
		state:         Ready,
		results:       make(map[int]BuildResult),
	}
}

// State returns the entry's current state.
func (e *BuildRequestEntry) State() State { return e.state }

// Request returns the entry's build request.
func (e *BuildRequestEntry) Request() BuildRequest { return e.request }

// Configuration returns the entry's configuration.
func (e *BuildRequestEntry) Configuration() BuildRequestConfiguration { return e.configuration }

func fatalTransition(from State, event string) error {
	return builderrors.New(builderrors.KindWaitingInvalidTransition, "entry: invalid transition %s(%s)", event, from)
}

// Continue transitions Ready -> Active, returning the results collected
// while last Waiting (empty on the first call). Only legal from Ready.
func (e *BuildRequestEntry) Continue() (map[int]BuildResult, error) {
	if e.state != Ready {
		return nil, fatalTransition(e.state, "continue")
	}
	e.state = Active
	collected := e.results
	e.results = make(map[int]BuildResult)
	return collected, nil
}

// WaitForResult transitions Active -> Waiting, recording subRequest under
// its NodeRequestID. Calling it again while already Waiting is allowed and
// simply records another sub-request (spec §4.3).
func (e *BuildRequestEntry) WaitForResult(subRequest BuildRequest) error {
	if e.state != Active && e.state != Waiting {
		return fatalTransition(e.state, "wait_for_result")
	}
	e.state = Waiting
	e.waiting = append(e.waiting, &waitingRequest{
		nodeRequestID:   subRequest.NodeRequestID,
		configurationID: subRequest.ConfigurationID,
	})
	return nil
}

// ReportResult records result against whichever waiting request shares its
// NodeRequestID; unmatched reports are ignored, not errors. The entry moves
// to Ready once every waiting request has reported and every one of their
// configurations is resolved (spec §4.3); otherwise it stays Waiting. On
// that transition e.waiting is cleared so a later Active->Waiting round
// starts clean; RequestsToIssueIfReady must never re-surface a prior
// round's already-dispatched sub-requests.
func (e *BuildRequestEntry) ReportResult(result BuildResult) error {
	if e.state != Waiting {
		return fatalTransition(e.state, "report_result")
	}
	matched := false
	for _, w := range e.waiting {
		if w.nodeRequestID == result.NodeRequestID {
			w.reported = true
			matched = true
		}
	}
	if matched {
		e.results[result.NodeRequestID] = result
	}
	if e.allWaitingSatisfied() {
		e.state = Ready
		e.waiting = nil
	}
	return nil
}

// ResolveConfiguration updates the configurationId of any waiting request
// currently carrying unresolvedID to realID (spec §4.3). Remains Waiting.
func (e *BuildRequestEntry) ResolveConfiguration(unresolvedID, realID int) error {
	if e.state != Waiting {
		return fatalTransition(e.state, "resolve_configuration")
	}
	for _, w := range e.waiting {
		if w.configurationID == unresolvedID {
			w.configurationID = realID
		}
	}
	return nil
}

// Complete transitions Active -> Complete, a terminal state. result becomes
// the entry's final result.
func (e *BuildRequestEntry) Complete(result BuildResult) error {
	if e.state != Active {
		return fatalTransition(e.state, "complete")
	}
	e.state = Complete
	e.final = &result
	return nil
}

// Result returns the entry's final result and whether it has completed.
func (e *BuildRequestEntry) Result() (BuildResult, bool) {
	if e.final == nil {
		return BuildResult{}, false
	}
	return *e.final, true
}

func (e *BuildRequestEntry) allWaitingSatisfied() bool {
	for _, w := range e.waiting {
		if !w.reported || w.configurationID < 0 {
			return false
		}
	}
	return true
}

// RequestsToIssueIfReady returns the (request, configurationId) pairs whose
// configurations are resolved, or nil if any waiting request still carries
// an unresolved (negative) configurationId (spec §4.3
// get_requests_to_issue_if_ready).
func (e *BuildRequestEntry) RequestsToIssueIfReady() []ResolvedRequest {
	for _, w := range e.waiting {
		if w.configurationID < 0 {
			return nil
		}
	}
	out := make([]ResolvedRequest, 0, len(e.waiting))
	for _, w := range e.waiting {
		out = append(out, ResolvedRequest{NodeRequestID: w.nodeRequestID, ConfigurationID: w.configurationID})
	}
	return out
}

// ResolvedRequest is one entry of RequestsToIssueIfReady's result.
type ResolvedRequest struct {
	NodeRequestID   int
	ConfigurationID int
}
