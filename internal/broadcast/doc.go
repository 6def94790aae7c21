// Package broadcast fans association change notifications out to connected
// clients.
//
// The Hub keeps a bounded, sequenced buffer of recent events. Clients poll
// with the last sequence they saw and may block until something new arrives,
// which lets the HTTP layer offer both long-polling and Server-Sent Events on
// top of the same buffer. Events carry only an association's identity;
// receivers treat them as cache invalidation and re-read state through the
// query API. Delivery is best effort: a client that falls behind the buffer
// simply resumes from the oldest retained event.
package broadcast
