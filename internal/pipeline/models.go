package pipeline

// Event is the decoded inbound notification payload. Rules reference
// arbitrary keys, so the shape stays open.
type Event map[string]interface{}

func (e Event) Clone() Event {
	out := make(Event, len(e))
	for k, v := range e {
		out[k] = v
	}
	return out
}

func (e Event) ID() string {
	if id, ok := e["notificationId"].(string); ok {
		return id
	}
	return ""
}

func (e Event) Type() string {
	if t, ok := e["type"].(string); ok {
		return t
	}
	return ""
}

func (e Event) String(key string) string {
	if s, ok := e[key].(string); ok {
		return s
	}
	return ""
}

// Outcome is the terminal state of one pipeline run.
type Outcome string

const (
	OutcomeDispatched   Outcome = "dispatched"
	OutcomeRequeued     Outcome = "requeued"
	OutcomeDeadLettered Outcome = "dead_lettered"
)

type stageStatus int

const (
	stageOK stageStatus = iota
	stageRejected
	stageErrored
)

// StageResult threads the validate/enrich/transform outcome through the
// stage sequence explicitly, so dead-lettering and logging are branches
// rather than recover blocks.
type StageResult struct {
	status stageStatus
	event  Event
	reason string
	err    error
}

func ok(event Event) StageResult {
	return StageResult{status: stageOK, event: event}
}

func rejected(reason string) StageResult {
	return StageResult{status: stageRejected, reason: reason}
}

func errored(err error) StageResult {
	return StageResult{status: stageErrored, err: err}
}
