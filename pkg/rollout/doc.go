// Package rollout records conversation transcripts as JSONL files under
// <codex_home>/sessions.
//
// Invariants:
// - A rollout file is created on the first recorded item, never before.
// - The first line of every rollout is the session meta entry.
// - Appends for the same recorder are serialized and synced.
// - Nothing outside the sessions directory is written.
//
// Usage:
//
//	rec := rollout.NewRecorder(cfg.CodexHome, rollout.SessionMeta{ID: id}, cfg.HistoryPersistence)
//	_ = rec.Record(ctx, rollout.Message{Role: "user", Content: "hello"})
//	meta, messages, _ := rollout.Load(ctx, rec.Path())
//	_, _ = meta, messages
package rollout
