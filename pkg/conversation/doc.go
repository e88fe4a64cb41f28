// Package conversation runs model conversations as single-goroutine actors
// fed by a submission queue and drained through an event queue.
//
// Invariants:
// - Submissions are processed one at a time in the order Submit accepted them.
// - A session emits exactly one ShutdownComplete, and it is the last event.
// - Turn context overrides live in memory only; nothing here writes config.toml.
// - A session that fails to start leaves no goroutine behind.
// - Notify programs started by a session finish before its ShutdownComplete.
//
// Usage:
//
//	mgr := conversation.WithAuth(auth.FromAPIKey(key))
//	conv, _ := mgr.NewConversation(ctx, cfg)
//	_, _ = conv.Conversation.Submit(ctx, protocol.UserInput{Items: []protocol.InputItem{protocol.TextInput("hi")}})
//	ev, _ := conv.Conversation.NextEvent(ctx)
//	_ = ev
package conversation
