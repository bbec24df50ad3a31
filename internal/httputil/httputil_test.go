package httputil

import "testing"

func TestValidateBaseURL(t *testing.T) {
	tests := []struct {
		url     string
		wantErr bool
	}{
		{"http://localhost:8000", false},
		{"https://courses.example.edu", false},
		{"", true},
		{"ftp://bad.com", true},
		{"not-a-url", true},
		{"http://", true},
	}
	for _, tt := range tests {
		err := ValidateBaseURL(tt.url)
		if (err != nil) != tt.wantErr {
			t.Errorf("ValidateBaseURL(%q) err=%v, wantErr=%v", tt.url, err, tt.wantErr)
		}
	}
}

func TestTruncate(t *testing.T) {
	if got := Truncate([]byte("hello"), 10); got != "hello" {
		t.Errorf("Truncate short = %q", got)
	}
	if got := Truncate([]byte("héllo world"), 5); got != "héllo..." {
		t.Errorf("Truncate long = %q", got)
	}
}
