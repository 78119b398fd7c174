package process

import "testing"

func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		name      string
		line      string
		wantLevel string
		wantMsg   string
	}{
		{"bracket prefix", "[error] connection refused", "error", "connection refused"},
		{"bracket uppercase", "[WARN] slow query", "warn", "slow query"},
		{"colon prefix", "ERROR: bind failed", "error", "bind failed"},
		{"colon lowercase", "debug: cache miss", "debug", "cache miss"},
		{"unknown bracket", "[main] listening on :4096", "info", "[main] listening on :4096"},
		{"bare line", "listening on :4096", "info", "listening on :4096"},
		{"empty", "", "info", ""},
		{"bracket without space", "[error]no space", "info", "[error]no space"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			level, msg := ParseLogLevel(tt.line)
			if level != tt.wantLevel {
				t.Errorf("level = %q, want %q", level, tt.wantLevel)
			}
			if msg != tt.wantMsg {
				t.Errorf("msg = %q, want %q", msg, tt.wantMsg)
			}
		})
	}
}
