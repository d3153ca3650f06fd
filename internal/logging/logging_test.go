package logging

import "testing"

func TestNew(t *testing.T) {
	tests := []struct {
		level    string
		encoding string
		wantErr  bool
	}{
		{"debug", "console", false},
		{"info", "json", false},
		{"", "", false},
		{"WARN", "json", false},
		{"error", "json", false},
		{"verbose", "json", true},
		{"info", "xml", true},
	}

	for _, tt := range tests {
		logger, err := New(tt.level, tt.encoding)
		if (err != nil) != tt.wantErr {
			t.Errorf("New(%q, %q) error = %v, wantErr %v", tt.level, tt.encoding, err, tt.wantErr)
			continue
		}
		if err == nil {
			logger.Info("test")
			_ = logger.Sync()
		}
	}
}
