package errors

import (
	"fmt"
	"strings"
)

// Phase indicates where in the engine lifecycle the error occurred
type Phase string

const (
	PhaseLoad       Phase = "load"       // opening a core or backend library
	PhaseRegister   Phase = "register"   // factory registration
	PhaseInitialize Phase = "initialize" // Engine_Initialize
	PhaseUpdate     Phase = "update"     // Engine_Update
	PhaseRender     Phase = "render"     // Engine_Render
	PhaseDestroy    Phase = "destroy"    // Engine_Destroy
	PhaseCallback   Phase = "callback"   // native -> host log delivery
	PhaseConfig     Phase = "config"     // configuration loading
)

// Kind categorizes the error
type Kind string

const (
	KindInvalidState       Kind = "invalid_state"
	KindNativeInit         Kind = "native_init"
	KindCallbackProcessing Kind = "callback_processing"
	KindNilHandle          Kind = "nil_handle"
	KindSymbolMissing      Kind = "symbol_missing"
	KindNativeCall         Kind = "native_call"
	KindOverwrite          Kind = "overwrite"
	KindOwnership          Kind = "ownership"
	KindInvalidInput       Kind = "invalid_input"
	KindUnsupported        Kind = "unsupported"
	KindNotFound           Kind = "not_found"
	KindConfig             Kind = "config"
)

// Sentinels for errors.Is. They match any phase.
var (
	ErrInvalidState       = &Error{Kind: KindInvalidState}
	ErrNativeInit         = &Error{Kind: KindNativeInit}
	ErrCallbackProcessing = &Error{Kind: KindCallbackProcessing}
	ErrOverwrite          = &Error{Kind: KindOverwrite}
	ErrOwnership          = &Error{Kind: KindOwnership}
)

// Error is the structured error type used throughout the host
type Error struct {
	Value      any
	Cause      error
	Phase      Phase
	Kind       Kind
	Capability string
	Symbol     string
	State      string
	Detail     string
}

// Error implements the error interface
func (e *Error) Error() string {
	var b strings.Builder

	b.WriteByte('[')
	b.WriteString(string(e.Phase))
	b.WriteString("] ")
	b.WriteString(string(e.Kind))

	if e.Capability != "" || e.Symbol != "" {
		b.WriteString(" at ")
		switch {
		case e.Capability != "" && e.Symbol != "":
			b.WriteString(e.Capability)
			b.WriteByte('/')
			b.WriteString(e.Symbol)
		case e.Capability != "":
			b.WriteString(e.Capability)
		default:
			b.WriteString(e.Symbol)
		}
	}

	if e.State != "" {
		b.WriteString(" (state ")
		b.WriteString(e.State)
		b.WriteByte(')')
	}

	if e.Detail != "" {
		b.WriteString(": ")
		b.WriteString(e.Detail)
	}

	if e.Cause != nil {
		b.WriteString(" (caused by: ")
		b.WriteString(e.Cause.Error())
		b.WriteByte(')')
	}

	return b.String()
}

// Unwrap returns the underlying error
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target matches this error.
// Kinds must match; the phase is compared only when the target sets one.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	if e.Kind != t.Kind {
		return false
	}
	return t.Phase == "" || e.Phase == t.Phase
}

// Builder provides structured error construction
type Builder struct {
	err Error
}

// New creates a new error builder
func New(phase Phase, kind Kind) *Builder {
	return &Builder{
		err: Error{
			Phase: phase,
			Kind:  kind,
		},
	}
}

// Capability sets the capability kind name
func (b *Builder) Capability(c fmt.Stringer) *Builder {
	if c != nil {
		b.err.Capability = c.String()
	}
	return b
}

// Symbol sets the native symbol name
func (b *Builder) Symbol(s string) *Builder {
	b.err.Symbol = s
	return b
}

// State sets the lifecycle state name
func (b *Builder) State(s fmt.Stringer) *Builder {
	if s != nil {
		b.err.State = s.String()
	}
	return b
}

// Value sets the offending value
func (b *Builder) Value(v any) *Builder {
	b.err.Value = v
	return b
}

// Cause sets the underlying error
func (b *Builder) Cause(err error) *Builder {
	b.err.Cause = err
	return b
}

// Detail sets the human-readable detail message
func (b *Builder) Detail(msg string, args ...any) *Builder {
	if len(args) > 0 {
		b.err.Detail = fmt.Sprintf(msg, args...)
	} else {
		b.err.Detail = msg
	}
	return b
}

// Build returns the constructed error
func (b *Builder) Build() *Error {
	return &b.err
}

// Convenience constructors for common error patterns

// InvalidState creates an error for an operation called outside its lifecycle window
func InvalidState(phase Phase, state fmt.Stringer, op string) *Error {
	e := &Error{
		Phase:  phase,
		Kind:   KindInvalidState,
		Detail: fmt.Sprintf("%s not allowed", op),
	}
	if state != nil {
		e.State = state.String()
	}
	return e
}

// NativeInit creates an error for Engine_Initialize returning a null handle
func NativeInit(cause error) *Error {
	detail := "native core returned a null engine handle"
	if cause != nil {
		detail = "native core initialization failed"
	}
	return &Error{
		Phase:  PhaseInitialize,
		Kind:   KindNativeInit,
		Symbol: "Engine_Initialize",
		Detail: detail,
		Cause:  cause,
	}
}

// CallbackProcessing creates an error for a failure while handling an inbound native call
func CallbackProcessing(rawLevel int32, cause error) *Error {
	return &Error{
		Phase:  PhaseCallback,
		Kind:   KindCallbackProcessing,
		Detail: fmt.Sprintf("processing native log message (level %d)", rawLevel),
		Value:  rawLevel,
		Cause:  cause,
	}
}

// NilHandle creates an error for a null native pointer
func NilHandle(phase Phase, what string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindNilHandle,
		Detail: fmt.Sprintf("%s is a null handle", what),
	}
}

// SymbolMissing creates an error for an entry point a library does not export
func SymbolMissing(phase Phase, symbol string, cause error) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindSymbolMissing,
		Symbol: symbol,
		Detail: "symbol not exported",
		Cause:  cause,
	}
}

// NativeCall creates an error for a native call that failed in transport (trap, closed library)
func NativeCall(phase Phase, symbol string, cause error) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindNativeCall,
		Symbol: symbol,
		Detail: "native call failed",
		Cause:  cause,
	}
}

// Overwrite creates an error for a second registration of the same capability
func Overwrite(capability fmt.Stringer, previous, next string) *Error {
	return &Error{
		Phase:      PhaseRegister,
		Kind:       KindOverwrite,
		Capability: capability.String(),
		Detail:     fmt.Sprintf("factory from %s already registered, refusing %s", previous, next),
	}
}

// AlreadyMoved creates an error for a factory whose ownership was already transferred
func AlreadyMoved(capability fmt.Stringer, symbol string) *Error {
	return &Error{
		Phase:      PhaseRegister,
		Kind:       KindOwnership,
		Capability: capability.String(),
		Symbol:     symbol,
		Detail:     "factory already moved into the native registry",
	}
}

// InvalidInput creates an invalid input error
func InvalidInput(phase Phase, detail string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindInvalidInput,
		Detail: detail,
	}
}

// Unsupported creates an unsupported operation error
func Unsupported(phase Phase, what string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindUnsupported,
		Detail: what,
	}
}

// NotFound creates a not-found error
func NotFound(phase Phase, what, name string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindNotFound,
		Detail: fmt.Sprintf("%s %q not found", what, name),
	}
}

// Load creates a library loading error
func Load(detail string, cause error) *Error {
	return &Error{
		Phase:  PhaseLoad,
		Kind:   KindNativeCall,
		Detail: detail,
		Cause:  cause,
	}
}

// Config creates a configuration error
func Config(detail string, cause error) *Error {
	return &Error{
		Phase:  PhaseConfig,
		Kind:   KindConfig,
		Detail: detail,
		Cause:  cause,
	}
}

// Wrap wraps an existing error with additional context
func Wrap(phase Phase, kind Kind, cause error, detail string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   kind,
		Detail: detail,
		Cause:  cause,
	}
}
