// Package chat implements the conversation core of the client.
//
// # Overview
//
// A conversation is anchored on a contract between a client and the
// advisor who approved it. The chat layer derives the conversation list
// from contract and message rows, manages the selected conversation's
// message stream, and keeps both fresh through the realtime insert feed.
//
// Three pieces cooperate:
//
//   - Aggregator: recomputes the conversation list from contracts,
//     messages, and profiles. The list is a derived view; it is rebuilt
//     from scratch on every load and never persisted.
//
//   - Controller: the selected conversation's message stream. Selecting a
//     conversation fetches its messages and marks the other party's
//     unread ones read; sending clears the draft eagerly and restores it
//     only on failure.
//
//   - Subscriber: one long-lived subscription to message inserts,
//     server-side filtered to exclude the viewer's own messages. Each
//     event is offered to the controller and always triggers a
//     conversation-list refresh.
//
// # Known limitation
//
// Only the viewer's own profile is resolvable from the session; the other
// party is labelled by role ("Asesor"/"Cliente") until a batch profile
// lookup exists backend-side.
//
// # Concurrency
//
// Realtime events arrive on the feed goroutine while user actions run on
// the caller's. State is mutex-guarded, but operations are not mutually
// exclusive: a refresh racing a send resolves as last-write-wins, and an
// event racing a local send may append in either order relative to
// backend timestamps. A closed controller ignores late responses.
package chat
