// Package speech defines the contract for the speech-to-text capability the
// voice input flow consumes. Recognition itself runs on the client runtime;
// the server only sees transcripts and the fixed error taxonomy below.
package speech

import "errors"

// Capability errors reported by the recognizer.
var (
	ErrNoMicrophone     = errors.New("no microphone available")
	ErrPermissionDenied = errors.New("microphone permission denied")
	ErrNoSpeech         = errors.New("no speech detected")
	ErrNetwork          = errors.New("speech service unreachable")
)

// Transcript is one recognition result. Interim transcripts stream while
// the user is still speaking; exactly one final transcript closes a
// listening session.
type Transcript struct {
	Text  string
	Final bool
}

// Recognizer is the consumed speech-to-text capability.
type Recognizer interface {
	// StartListening begins a session; transcripts arrive on the returned
	// channel until StopListening or a capability error.
	StartListening() (<-chan Transcript, error)
	StopListening() error
}

// ErrorCode maps a capability error to the wire code the UI localizes.
func ErrorCode(err error) string {
	switch {
	case errors.Is(err, ErrNoMicrophone):
		return "audio-capture"
	case errors.Is(err, ErrPermissionDenied):
		return "not-allowed"
	case errors.Is(err, ErrNoSpeech):
		return "no-speech"
	case errors.Is(err, ErrNetwork):
		return "network"
	default:
		return "unknown"
	}
}

// FromCode maps a wire code reported by the client recognizer back to the
// capability error. Unknown codes map to nil.
func FromCode(code string) error {
	switch code {
	case "audio-capture":
		return ErrNoMicrophone
	case "not-allowed":
		return ErrPermissionDenied
	case "no-speech":
		return ErrNoSpeech
	case "network":
		return ErrNetwork
	default:
		return nil
	}
}

// Message renders the user-facing text for a wire code.
func Message(code string) string {
	switch err := FromCode(code); {
	case errors.Is(err, ErrNoMicrophone):
		return "No microphone found. Check your audio input."
	case errors.Is(err, ErrPermissionDenied):
		return "Microphone access was denied. Allow it in your browser settings."
	case errors.Is(err, ErrNoSpeech):
		return "No speech detected. Try again."
	case errors.Is(err, ErrNetwork):
		return "Speech recognition is unavailable offline. Type the expense instead."
	default:
		return "Voice input failed. Try typing the expense."
	}
}
