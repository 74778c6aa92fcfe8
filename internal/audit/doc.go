// Package audit delivers authentication events to a sink off the request path.
//
// The Engine decides which events to emit; this package only buffers them
// and hands them to a [Sink]. It must not import portalauth.
package audit
