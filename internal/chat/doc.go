// Package chat coordinates the client-side state of a chat front-end.
//
// A Session owns three components and runs them from one goroutine:
//
//   - directory: the conversation list, derived from the full history
//   - feed: the active conversation's messages, kept live by a push subscription
//   - compose: the input text and the single in-flight agent request
//
// Fetches, sends, and subscription deliveries run on their own goroutines
// and post their results back to the loop, which applies them only if they
// still belong to the active session. The presentation calls the public
// methods, reads Snapshot, and listens on Changes and Notifications.
//
//	s := chat.New(db, broadcaster, agent.NewClient(url, timeout, logger))
//	go s.Run(ctx)
//	s.SetInput("hello")
//	s.SendCurrent()
package chat
