package emit

// Event is one observability record an Emitter receives. agentflow's
// events.LocalEmitterPublisher maps an execution lifecycle event onto
// one of these: RunID holds the execution id, NodeID the agent node id
// (empty for execution-level events), Msg the event type string, and
// Meta the event's JSON payload under the "data" key.
type Event struct {
	RunID  string
	Step   int
	NodeID string
	Msg    string
	Meta   map[string]interface{}
}
