package svcdeploy

import (
	"encoding/binary"
	"fmt"
	"time"
)

// State represents the current state of a supervised service
type State int

const (
	// StateUnknown indicates the state could not be determined
	StateUnknown State = iota
	// StateDown indicates the service is down and wants to be down
	StateDown
	// StateRunning indicates the service is running and wants to be up
	StateRunning
	// StatePaused indicates the service is paused (SIGSTOP)
	StatePaused
	// StateStopping indicates the service is running but wants to be down
	StateStopping
	// StateFinishing indicates the finish script is executing
	StateFinishing
	// StateCrashed indicates the service is down but wants to be up
	StateCrashed
)

// State string constants
const (
	stateUnknownStr   = "unknown"
	stateDownStr      = "down"
	stateRunningStr   = "running"
	statePausedStr    = "paused"
	stateStoppingStr  = "stopping"
	stateFinishingStr = "finishing"
	stateCrashedStr   = "crashed"
)

// String returns the string representation of the state
func (s State) String() string {
	switch s {
	case StateDown:
		return stateDownStr
	case StateRunning:
		return stateRunningStr
	case StatePaused:
		return statePausedStr
	case StateStopping:
		return stateStoppingStr
	case StateFinishing:
		return stateFinishingStr
	case StateCrashed:
		return stateCrashedStr
	default:
		return stateUnknownStr
	}
}

// Flags represents service configuration flags from the status file
type Flags struct {
	// WantUp indicates the service is configured to be up
	WantUp bool
	// WantDown indicates the service is configured to be down
	WantDown bool
	// NormallyUp indicates the service should be started on boot
	NormallyUp bool
}

// Status represents the decoded state of a supervised service
type Status struct {
	// State is the inferred service state
	State State
	// PID is the process ID of the service (0 if not running)
	PID int
	// Since is the timestamp when the service entered its current state
	Since time.Time
	// Uptime is a snapshot of the duration since the service entered its
	// current state, taken at the moment the status was read
	Uptime time.Duration
	// Flags contains service configuration flags
	Flags Flags
	// Raw contains the original status record as an array (stack allocated)
	Raw [StatusFileSize]byte
}

// Status file layout offsets (from the daemontools/runit status record)
const (
	offsetTAI64Sec  = 0  // bytes 0-7: TAI64N seconds
	offsetTAI64Nano = 8  // bytes 8-11: TAI64N nanoseconds
	offsetPID       = 12 // bytes 12-15: PID
	offsetPaused    = 16 // byte 16: paused flag
	offsetWant      = 17 // byte 17: want flag ('u' or 'd')
	offsetTerm      = 18 // byte 18: term flag (finish script running)
	offsetRun       = 19 // byte 19: run flag (normally up)
)

// decodeStatus decodes a 20-byte supervise status record.
func decodeStatus(data []byte) (Status, error) {
	if len(data) != StatusFileSize {
		return Status{}, fmt.Errorf("%w: expected %d bytes, got %d", ErrDecode, StatusFileSize, len(data))
	}

	var st Status
	copy(st.Raw[:], data)

	st.PID = int(binary.BigEndian.Uint32(data[offsetPID:offsetPaused]))

	decodeTimestamp(&st, data)
	decodeFlags(&st, data)
	st.State = determineState(st.PID, st.Flags, data)

	return st, nil
}

// decodeTimestamp decodes the TAI64N timestamp
func decodeTimestamp(st *Status, data []byte) {
	tai64nSec := binary.BigEndian.Uint64(data[offsetTAI64Sec:offsetTAI64Nano])
	tai64nNano := binary.BigEndian.Uint32(data[offsetTAI64Nano:offsetPID])

	if tai64nSec > 0 {
		unixSec := int64(tai64nSec - TAI64Base)

		if unixSec > 0 && unixSec < 253402300800 { // Sanity check: before year 10000
			st.Since = time.Unix(unixSec, int64(tai64nNano))
			uptime := time.Since(st.Since)
			// Guard against future timestamps or clock skew
			if uptime >= 0 {
				st.Uptime = uptime
			}
		}
	}
}

// decodeFlags decodes the service flags
func decodeFlags(st *Status, data []byte) {
	wantFlag := data[offsetWant]
	runFlag := data[offsetRun]

	st.Flags.WantUp = wantFlag == 'u'
	st.Flags.WantDown = wantFlag == 'd'
	st.Flags.NormallyUp = runFlag != 0
}

// determineState determines the service state based on flags and PID
func determineState(pid int, flags Flags, data []byte) State {
	isRunning := pid > 0
	isPaused := data[offsetPaused] != 0
	isFinishing := data[offsetTerm] != 0

	switch {
	case !isRunning && flags.WantDown:
		return StateDown
	case !isRunning && flags.WantUp && !isFinishing:
		return StateCrashed
	case !isRunning && isFinishing:
		return StateFinishing
	case isRunning && isPaused:
		return StatePaused
	case isRunning && isFinishing:
		return StateFinishing
	case isRunning && flags.WantDown:
		return StateStopping
	case isRunning:
		return StateRunning
	default:
		return StateUnknown
	}
}
