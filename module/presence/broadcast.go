package presence

// Broadcaster fans presence changes out to live connections. The transport
// layer implements it; tests substitute a recorder.
//
// EmitPresenceUpdate delivers on two independent paths (explicit watchers
// and the conversation room). An overlapping audience can receive the same
// update twice; payloads carry (conversationId, userId, lastActiveAt) so
// clients can dedupe.
type Broadcaster interface {
	EmitPresenceUpdate(conversationID string, e Entry)
	EmitBulkSnapshot(connID, conversationID string, states []Entry)
}
