// Package workflow owns the RFI lifecycle: which status/stage transitions
// exist, and the single conditional-update write path that applies them.
package workflow

import (
	"rfitrack-backend/models"
)

type (
	Status = models.RFIStatus
	Stage  = models.RFIStage
)

// State is the composite workflow position. Stage is empty while the RFI has
// no stage (draft, or force-closed straight out of sent_to_client).
type State struct {
	Status Status
	Stage  Stage
}

// Event names a transition trigger. Targets are computed from the rule table,
// never accepted verbatim from a caller.
type Event string

const (
	EventSendToClient   Event = "send_to_client"
	EventMarkOverdue    Event = "mark_overdue"
	EventClientResponse Event = "client_response"
	EventStartFieldWork Event = "start_field_work"
	EventCompleteWork   Event = "complete_work"
	EventForceClose     Event = "force_close"
)

type rule struct {
	event      Event
	fromStatus []Status
	fromStages []Stage // empty = any stage, including none
	toStatus   Status
	toStage    Stage
	keepStage  bool // force-close leaves the stage where it was
}

var rules = []rule{
	{EventSendToClient, []Status{models.StatusDraft}, nil, models.StatusActive, models.StageSentToClient, false},
	{EventMarkOverdue, []Status{models.StatusActive}, []Stage{models.StageSentToClient, models.StageAwaitingResponse}, models.StatusOverdue, models.StageLateOverdue, false},
	{EventClientResponse, []Status{models.StatusActive}, []Stage{models.StageSentToClient, models.StageAwaitingResponse}, models.StatusActive, models.StageResponseReceived, false},
	{EventStartFieldWork, []Status{models.StatusActive}, []Stage{models.StageResponseReceived}, models.StatusActive, models.StageFieldWorkInProgress, false},
	{EventCompleteWork, []Status{models.StatusActive}, []Stage{models.StageFieldWorkInProgress}, models.StatusClosed, models.StageWorkCompleted, false},
	{EventForceClose, []Status{models.StatusActive, models.StatusOverdue}, nil, models.StatusClosed, "", true},
}

// repeatResponse is the extra edge enabled by allow_multiple_responses: a
// further client_response from response_received, staying in place.
var repeatResponse = rule{
	event:      EventClientResponse,
	fromStatus: []Status{models.StatusActive},
	fromStages: []Stage{models.StageResponseReceived},
	toStatus:   models.StatusActive,
	toStage:    models.StageResponseReceived,
}

func (r rule) matches(from State) bool {
	okStatus := false
	for _, s := range r.fromStatus {
		if s == from.Status {
			okStatus = true
			break
		}
	}
	if !okStatus {
		return false
	}
	if len(r.fromStages) == 0 {
		return true
	}
	for _, st := range r.fromStages {
		if st == from.Stage {
			return true
		}
	}
	return false
}

func (r rule) target(from State) State {
	if r.keepStage {
		return State{Status: r.toStatus, Stage: from.Stage}
	}
	return State{Status: r.toStatus, Stage: r.toStage}
}

func ruleFor(ev Event, from State, allowMultipleResponses bool) (rule, bool) {
	for _, r := range rules {
		if r.event == ev && r.matches(from) {
			return r, true
		}
	}
	if ev == EventClientResponse && allowMultipleResponses && repeatResponse.matches(from) {
		return repeatResponse, true
	}
	return rule{}, false
}

// StateOf extracts the composite workflow position from a stored row.
func StateOf(rfi *models.RFI) State {
	s := State{Status: rfi.Status}
	if rfi.Stage != nil {
		s.Stage = *rfi.Stage
	}
	return s
}

// IsValidTransition reports whether some event leads from `from` to `to`.
// Pure predicate, no I/O; the API boundary checks it before attempting a write.
func IsValidTransition(from, to State) bool {
	for _, r := range rules {
		if r.matches(from) && r.target(from) == to {
			return true
		}
	}
	return false
}

// EventForTarget finds the event that moves `from` to the requested target
// status. Used by the internal set-status operation so that an admin-supplied
// target still runs through the same rule table. client_response and
// mark_overdue never match: responses enter only through the client
// submission path and overdue marking belongs to the sweeper, so neither
// can be forged from the internal API.
func EventForTarget(from State, target Status) (Event, bool) {
	for _, r := range rules {
		if r.event == EventClientResponse || r.event == EventMarkOverdue {
			continue
		}
		if r.matches(from) && r.toStatus == target {
			return r.event, true
		}
	}
	return "", false
}

// AvailableTransitions lists the states reachable from `from`. UI affordance
// only; IsValidTransition remains the source of truth at write time.
func AvailableTransitions(from State) []State {
	var out []State
	for _, r := range rules {
		if r.matches(from) {
			out = append(out, r.target(from))
		}
	}
	return out
}

// StateInfo is descriptive metadata for a workflow position.
type StateInfo struct {
	Label       string `json:"label"`
	Description string `json:"description"`
	Terminal    bool   `json:"terminal"`
}

// Describe returns display metadata for a state.
func Describe(s State) StateInfo {
	if s.Status == models.StatusClosed {
		label := "Closed"
		if s.Stage == models.StageWorkCompleted {
			label = "Work completed"
		}
		return StateInfo{Label: label, Description: "Terminal: no further transitions.", Terminal: true}
	}
	switch {
	case s.Status == models.StatusDraft:
		return StateInfo{Label: "Draft", Description: "Not yet sent to the client."}
	case s.Status == models.StatusOverdue:
		return StateInfo{Label: "Overdue", Description: "Past the response grace window with no client response."}
	case s.Stage == models.StageSentToClient:
		return StateInfo{Label: "Sent to client", Description: "Secure link issued, waiting for the client to open it."}
	case s.Stage == models.StageAwaitingResponse:
		return StateInfo{Label: "Awaiting response", Description: "Client has the RFI, response pending."}
	case s.Stage == models.StageResponseReceived:
		return StateInfo{Label: "Response received", Description: "Client answered; field work can start."}
	case s.Stage == models.StageFieldWorkInProgress:
		return StateInfo{Label: "Field work in progress", Description: "Crew is acting on the client's answer."}
	}
	return StateInfo{Label: string(s.Status), Description: "Active."}
}

// Terminal reports whether no transition leaves the state.
func Terminal(s State) bool {
	return s.Status == models.StatusClosed
}
