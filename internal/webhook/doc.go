// Package webhook performs outbound HTTP calls to interface endpoints.
//
// The client wraps retryablehttp with the delivery policy the router
// promises its operators: a fixed per-attempt timeout, a bounded number of
// retries with increasing backoff, and retries only for 5xx responses and
// transport failures. 4xx responses fail immediately.
//
// Bodies are forwarded byte-identical to what arrived inbound. Correlation
// travels in the Portim-Session-Id header and the destination's control
// token in Portim-Interface-Token.
package webhook
