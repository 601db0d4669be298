package status

import (
	"fmt"
	"slices"
)

// Phase is the dashboard's view of the WhatsApp connection.
type Phase string

const (
	Unknown      Phase = "UNKNOWN"
	Disconnected Phase = "DISCONNECTED"
	Pairing      Phase = "PAIRING"
	Connected    Phase = "CONNECTED"
)

// validTransitions defines allowed phase changes. The backend is authoritative,
// so every phase can fall back to Disconnected or jump to Connected. A
// connected session can be paired again.
var validTransitions = map[Phase][]Phase{
	Unknown:      {Disconnected, Pairing, Connected},
	Disconnected: {Pairing, Connected},
	Pairing:      {Connected, Disconnected},
	Connected:    {Disconnected, Pairing},
}

// CanTransition reports whether from -> to is allowed. Staying put is always allowed.
func CanTransition(from, to Phase) bool {
	if from == to {
		return true
	}
	return slices.Contains(validTransitions[from], to)
}

// Transition validates from -> to and returns the resulting phase.
func Transition(from, to Phase) (Phase, error) {
	if !CanTransition(from, to) {
		return from, fmt.Errorf("invalid transition from %s to %s", from, to)
	}
	return to, nil
}

// FromStatus resolves the phase implied by a status poll. A disconnected report
// does not interrupt a pairing attempt in progress.
func FromStatus(current Phase, connected bool) Phase {
	switch {
	case connected:
		return Connected
	case current == Pairing:
		return Pairing
	default:
		return Disconnected
	}
}

// Label returns a short human description of the phase.
func (p Phase) Label() string {
	switch p {
	case Disconnected:
		return "Desconectado"
	case Pairing:
		return "Aguardando QR Code"
	case Connected:
		return "Conectado"
	default:
		return "Verificando..."
	}
}

// PhaseChange is the payload for phase change events.
type PhaseChange struct {
	From Phase
	To   Phase
}
