// Package delivery orchestrates the message pipeline.
//
// Every inbound message triggers one independent unit of work:
//
//  1. Session resolution — direct fetch when a session id was supplied,
//     otherwise client resolution from the payload and create-or-fetch of
//     the sender's session.
//  2. Persistence — the message row is written with status pending and a
//     SHA-256 fingerprint of the raw body before any network activity.
//  3. Next-hop resolution — the destination is the other side of the
//     session: target when the sender is the source, source otherwise.
//  4. Delivery — the raw body is posted to the destination's event
//     endpoint with the session id and the destination's decrypted control
//     token as headers.
//  5. Settlement — 2xx marks the message delivered; anything else marks it
//     error with the failure text. Delivery failure never fails the
//     sender's request.
//
// The pipeline performs one logical delivery attempt per message;
// transport-level retries live in the webhook client.
package delivery
