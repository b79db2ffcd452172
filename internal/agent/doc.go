// Package agent talks to the remote agent endpoint.
//
// # Client
//
// Client posts one query per Send and reports only whether the endpoint
// accepted it:
//
//	c := agent.NewClient(cfg.Agent.URL, cfg.Agent.Timeout, logger)
//	err := c.Send(ctx, &agent.Request{Query: q, UserID: "NA", RequestID: rid, SessionID: sid})
//
// A transport error, a non-2xx status, an undecodable body, or a body whose
// success flag is false all fail with an error wrapping ErrAgentFailed.
// The reply itself is never in the response: the endpoint persists the human
// message and its answer, and the chat client sees both through the change
// feed.
//
// # Handler
//
// Handler is a reference endpoint for local runs and tests. It saves the
// query as a human message, asks a Responder for the answer, saves that as
// an ai message, and answers {"success": true}. Retried request ids are
// recognised through a dedupe cache and acknowledged without writing again.
package agent
