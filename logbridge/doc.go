// Package logbridge delivers log events raised by native engine code into the
// host's zap logger.
//
// A Bridge owns the trampoline passed to the native core. Native code may
// call it from any thread during any lifecycle call; each event is copied out
// of native memory, mapped through a fixed six-level table and written to the
// sink before the call returns:
//
//	raw   Level     zap
//	0     Trace     Debug
//	1     Debug     Debug
//	2     Info      Info
//	3     Warning   Warn
//	4     Error     Error
//	5     Fatal     Error
//	else  Info      Info
//
// A failure while handling an event is recovered and reported as a
// CallbackProcessing error on the host side; it never unwinds into native
// code.
package logbridge
