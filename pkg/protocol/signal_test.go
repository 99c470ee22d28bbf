package protocol

import (
	"errors"
	"testing"
)

func TestSignal_Validate(t *testing.T) {
	tests := []struct {
		name    string
		signal  Signal
		wantErr bool
	}{
		{"valid join", Signal{Type: TypeJoin, RoomCode: "123456", Role: RoleSender, PeerID: "p1"}, false},
		{"join missing roomCode", Signal{Type: TypeJoin, Role: RoleSender, PeerID: "p1"}, true},
		{"join missing peerId", Signal{Type: TypeJoin, RoomCode: "123456", Role: RoleSender}, true},
		{"join bad role", Signal{Type: TypeJoin, RoomCode: "123456", Role: "observer", PeerID: "p1"}, true},
		{"valid offer", Signal{Type: TypeOffer, SDP: "v=0..."}, false},
		{"offer missing sdp", Signal{Type: TypeOffer}, true},
		{"valid answer", Signal{Type: TypeAnswer, SDP: "v=0..."}, false},
		{"answer missing sdp", Signal{Type: TypeAnswer}, true},
		{"valid candidate", Signal{Type: TypeIceCandidate, Candidate: "candidate:1 1 udp ..."}, false},
		{"candidate missing candidate", Signal{Type: TypeIceCandidate}, true},
		{"valid leave", Signal{Type: TypeLeave}, false},
		{"unknown type", Signal{Type: "hello"}, true},
		{"empty type", Signal{}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.signal.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestParseSignal(t *testing.T) {
	raw := []byte(`{"type":"join","roomCode":"482915","role":"receiver","peerId":"abc"}`)
	s, err := ParseSignal(raw)
	if err != nil {
		t.Fatalf("ParseSignal() error = %v", err)
	}
	if s.Type != TypeJoin || s.RoomCode != "482915" || s.Role != RoleReceiver || s.PeerID != "abc" {
		t.Errorf("ParseSignal() = %+v", s)
	}
}

func TestParseSignal_Malformed(t *testing.T) {
	if _, err := ParseSignal([]byte(`not json`)); err == nil {
		t.Error("expected error for malformed JSON")
	}
	_, err := ParseSignal([]byte(`{"type":"warp"}`))
	if !errors.Is(err, ErrUnknownType) {
		t.Errorf("expected ErrUnknownType, got %v", err)
	}
}

func TestOppositeRole(t *testing.T) {
	if got := OppositeRole(RoleSender); got != RoleReceiver {
		t.Errorf("OppositeRole(sender) = %s", got)
	}
	if got := OppositeRole(RoleReceiver); got != RoleSender {
		t.Errorf("OppositeRole(receiver) = %s", got)
	}
}
