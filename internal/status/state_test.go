package status

import "testing"

func TestValidTransitions(t *testing.T) {
	tests := []struct {
		from Phase
		to   Phase
	}{
		{Unknown, Disconnected},
		{Unknown, Connected},
		{Unknown, Pairing},
		{Disconnected, Pairing},
		{Disconnected, Connected},
		{Pairing, Connected},
		{Pairing, Disconnected},
		{Connected, Disconnected},
		{Connected, Pairing},
		{Connected, Connected},
	}
	for _, tt := range tests {
		t.Run(string(tt.from)+"->"+string(tt.to), func(t *testing.T) {
			got, err := Transition(tt.from, tt.to)
			if err != nil {
				t.Errorf("Transition(%s -> %s) error = %v", tt.from, tt.to, err)
			}
			if got != tt.to {
				t.Errorf("phase = %s, want %s", got, tt.to)
			}
		})
	}
}

func TestInvalidTransitions(t *testing.T) {
	tests := []struct {
		from Phase
		to   Phase
	}{
		{Pairing, Unknown},
		{Disconnected, Unknown},
		{Connected, Unknown},
	}
	for _, tt := range tests {
		t.Run(string(tt.from)+"->"+string(tt.to), func(t *testing.T) {
			got, err := Transition(tt.from, tt.to)
			if err == nil {
				t.Errorf("Transition(%s -> %s) should fail", tt.from, tt.to)
			}
			if got != tt.from {
				t.Errorf("phase = %s, want unchanged %s", got, tt.from)
			}
		})
	}
}

func TestFromStatus(t *testing.T) {
	tests := []struct {
		name      string
		current   Phase
		connected bool
		want      Phase
	}{
		{"connected wins", Pairing, true, Connected},
		{"pairing survives disconnected poll", Pairing, false, Pairing},
		{"lost connection", Connected, false, Disconnected},
		{"first poll", Unknown, false, Disconnected},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := FromStatus(tt.current, tt.connected); got != tt.want {
				t.Errorf("FromStatus(%s, %v) = %s, want %s", tt.current, tt.connected, got, tt.want)
			}
		})
	}
}

func TestEveryFromStatusResultIsReachable(t *testing.T) {
	for _, from := range []Phase{Unknown, Disconnected, Pairing, Connected} {
		for _, connected := range []bool{true, false} {
			to := FromStatus(from, connected)
			if !CanTransition(from, to) {
				t.Errorf("FromStatus(%s, %v) = %s is not a valid transition", from, connected, to)
			}
		}
	}
}
