// Package link implements the line-oriented control protocol spoken between
// the host and a probe head.
//
// The host writes one command per line:
//
//	VERB arg1 arg2 ...\n
//
// and the head answers with one JSON object per line. Bulk transfers answer
// with a header line declaring the payload size,
//
//	{"size": 1048576}
//
// followed by exactly that many raw bytes.
//
// A Client owns one Port and issues one command at a time. It runs no
// background goroutines: every read is bounded by the Port's poll interval
// and the caller's timeout.
package link
