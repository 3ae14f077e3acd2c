package auth

import "testing"

func TestGenerateAdminToken(t *testing.T) {
	a, err := GenerateAdminToken()
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	b, err := GenerateAdminToken()
	if err != nil {
		t.Fatalf("generate: %v", err)
	}

	if a == b {
		t.Error("expected distinct tokens")
	}
	if !LooksGenerated(a) {
		t.Errorf("token %q does not look generated", a)
	}
}

func TestLooksGenerated(t *testing.T) {
	tests := []struct {
		token string
		want  bool
	}{
		{"", false},
		{"secret", false},
		{"vk_abc", false},
		{"xx_" + "00112233445566778899aabbccddeeff00112233445566778899aabbccddeeff", false},
		{"vk_" + "00112233445566778899aabbccddeeff00112233445566778899aabbccddeeff", true},
		{"vk_" + "zz112233445566778899aabbccddeeff00112233445566778899aabbccddeeff", false},
	}
	for _, tt := range tests {
		if got := LooksGenerated(tt.token); got != tt.want {
			t.Errorf("LooksGenerated(%q) = %v, want %v", tt.token, got, tt.want)
		}
	}
}
