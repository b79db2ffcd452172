// Package feed keeps the active conversation's message list live.
//
// Each Activate starts a new epoch: the old push subscription is released,
// the list is cleared, and for a non-empty session one bulk fetch and one
// subscription are started. Both report back through the owner's Sink, and
// the owner applies them with ApplyFetch and ApplyPush. Events stamped with
// an older epoch or another session are dropped, so a slow fetch from a
// previous activation can never overwrite the current list.
package feed
