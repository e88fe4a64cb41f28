// Package protocol defines the submission/event queue pair spoken between a
// client and a conversation session.
//
// Invariants:
// - Every Submission carries exactly one Op; every Event carries exactly one EventMsg.
// - Ops and event messages encode as JSON objects tagged with "type".
// - An absent OverrideTurnContext field means "leave unchanged"; an explicit
//   null effort clears it.
//
// Usage:
//
//	sub := protocol.Submission{ID: "1", Op: protocol.OverrideTurnContext{
//		Model:  protocol.Set("o3"),
//		Effort: protocol.Set(config.ReasoningEffortHigh),
//	}}
//	data, _ := json.Marshal(sub)
//	_ = data
package protocol
