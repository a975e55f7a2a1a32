// Package probehead drives a probe head over the link protocol.
//
// Remote turns probe.Capability calls into link commands and back, and also
// exposes the head's bulk dump and glitch commands. Emulator is the other
// side of the same protocol, serving any probe.Capability; it stands in for
// hardware in tests and in the emulate command.
package probehead
