// Package changefeed turns message inserts into push notifications.
//
// Broadcaster is an in-memory pub/sub keyed by session id. A subscription is a
// buffered channel that closes on Unsubscribe, on context cancellation, or on
// Close. Publish never blocks: a full subscriber misses the message.
//
// Poller reads the store's ChangeLog on a ticker and publishes every row it
// has not seen yet. It starts at the newest row, so subscribers only hear
// about inserts made after the poller started; history comes from the
// per-session fetch instead.
//
//	b := changefeed.NewBroadcaster(logger)
//	go changefeed.NewPoller(db, b, 250*time.Millisecond, 100, logger).Run(ctx)
//	ch, subID := b.Subscribe(ctx, sessionID)
//	defer b.Unsubscribe(sessionID, subID)
package changefeed
