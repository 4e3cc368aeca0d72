// Package session owns the routing state of conversations.
//
// A session binds one client to a source/target interface pair. The source
// is the interface that received the first message and never changes; the
// target is whoever currently answers, reassigned via PassControl (handing
// a conversation from a bot to a human console, for example).
//
// Sessions for sessionless inbound messages are found by (source, client);
// absence signals the delivery pipeline to create a new one using the source
// interface's configured control interface as the initial target.
//
// Pass-control notifications to the new target's control endpoint are best
// effort: the target change is authoritative whether or not the
// notification lands.
package session
