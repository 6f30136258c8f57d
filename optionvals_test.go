package agentdeck

import "testing"

func TestStringOption(t *testing.T) {
	opts := map[string]string{"model": "opus", "empty": ""}
	if got := StringOption(opts, "model", "fallback"); got != "opus" {
		t.Errorf("got %q", got)
	}
	if got := StringOption(opts, "empty", "fallback"); got != "fallback" {
		t.Errorf("empty value should fall back, got %q", got)
	}
	if got := StringOption(opts, "missing", "fallback"); got != "fallback" {
		t.Errorf("missing key should fall back, got %q", got)
	}
	if got := StringOption(nil, "model", "fallback"); got != "fallback" {
		t.Errorf("nil map should fall back, got %q", got)
	}
}

func TestParsePositiveIntOption(t *testing.T) {
	tests := []struct {
		name    string
		value   string
		want    int
		wantOK  bool
		wantErr bool
	}{
		{"absent", "", 0, false, false},
		{"valid", "5", 5, true, false},
		{"padded", " 10 ", 10, true, false},
		{"zero", "0", 0, false, true},
		{"negative", "-3", 0, false, true},
		{"garbage", "abc", 0, false, true},
		{"null byte", "1\x002", 0, false, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts := map[string]string{}
			if tt.value != "" {
				opts["max_turns"] = tt.value
			}
			n, ok, err := ParsePositiveIntOption(opts, "max_turns")
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if n != tt.want || ok != tt.wantOK {
				t.Errorf("got (%d, %v), want (%d, %v)", n, ok, tt.want, tt.wantOK)
			}
		})
	}
}

func TestParseBoolOption(t *testing.T) {
	tests := []struct {
		value   string
		want    bool
		wantOK  bool
		wantErr bool
	}{
		{"true", true, true, false},
		{"TRUE", true, true, false},
		{"on", true, true, false},
		{"1", true, true, false},
		{"yes", true, true, false},
		{"false", false, true, false},
		{"off", false, true, false},
		{"0", false, true, false},
		{"no", false, true, false},
		{"maybe", false, false, true},
	}
	for _, tt := range tests {
		t.Run(tt.value, func(t *testing.T) {
			v, ok, err := ParseBoolOption(map[string]string{"stream": tt.value}, "stream")
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if v != tt.want || ok != tt.wantOK {
				t.Errorf("got (%v, %v), want (%v, %v)", v, ok, tt.want, tt.wantOK)
			}
		})
	}
}

func TestParseBoolOption_Absent(t *testing.T) {
	v, ok, err := ParseBoolOption(nil, "stream")
	if v || ok || err != nil {
		t.Errorf("absent key should return (false, false, nil), got (%v, %v, %v)", v, ok, err)
	}
}

func TestSessionClone(t *testing.T) {
	s := Session{
		ID:      "s1",
		Options: map[string]string{"stream": "true"},
	}
	c := s.Clone()
	c.Options["stream"] = "false"
	if s.Options["stream"] != "true" {
		t.Error("Clone should deep-copy the Options map")
	}
}

func TestSessionStateTerminal(t *testing.T) {
	terminal := []SessionState{SessionCompleted, SessionCancelled, SessionCrashed, SessionTimedOut}
	for _, s := range terminal {
		if !s.Terminal() {
			t.Errorf("%s should be terminal", s)
		}
	}
	for _, s := range []SessionState{SessionQueued, SessionRunning} {
		if s.Terminal() {
			t.Errorf("%s should not be terminal", s)
		}
	}
}
