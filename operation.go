package svcdeploy

// Operation represents a supervise control operation
type Operation int

const (
	// OpUnknown represents an unknown operation
	OpUnknown Operation = iota
	// OpUp starts the service (want up)
	OpUp
	// OpOnce starts the service once
	OpOnce
	// OpDown stops the service (want down)
	OpDown
	// OpTerm sends SIGTERM to the service process; the supervisor
	// relaunches it unless want is down
	OpTerm
	// OpKill sends SIGKILL to the service process
	OpKill
	// OpExit terminates the supervise process
	OpExit
	// OpStatus represents a status query operation
	OpStatus
)

// Operation string constants
const (
	opUnknownStr = "unknown"
	opUpStr      = "up"
	opOnceStr    = "once"
	opDownStr    = "down"
	opTermStr    = "term"
	opKillStr    = "kill"
	opExitStr    = "exit"
	opStatusStr  = "status"
)

// String returns the string representation of an Operation
func (op Operation) String() string {
	switch op {
	case OpUp:
		return opUpStr
	case OpOnce:
		return opOnceStr
	case OpDown:
		return opDownStr
	case OpTerm:
		return opTermStr
	case OpKill:
		return opKillStr
	case OpExit:
		return opExitStr
	case OpStatus:
		return opStatusStr
	default:
		return opUnknownStr
	}
}

// Byte returns the control byte for this operation
func (op Operation) Byte() byte {
	switch op {
	case OpUp:
		return 'u'
	case OpOnce:
		return 'o'
	case OpDown:
		return 'd'
	case OpTerm:
		return 't'
	case OpKill:
		return 'k'
	case OpExit:
		return 'x'
	default:
		return 0
	}
}
