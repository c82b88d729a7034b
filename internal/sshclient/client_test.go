package sshclient

import (
	"testing"
)

func TestParseJumpHost(t *testing.T) {
	client := &SSHClient{}

	tests := []struct {
		input        string
		expectedHost string
		expectedPort string
	}{
		{"jump.example.com", "jump.example.com", "22"},
		{"jump.example.com:2222", "jump.example.com", "2222"},
		{"user@jump.example.com", "jump.example.com", "22"},
		{"user@jump.example.com:2222", "jump.example.com", "2222"},
		{"192.168.1.100", "192.168.1.100", "22"},
		{"192.168.1.100:8022", "192.168.1.100", "8022"},
	}

	for _, test := range tests {
		host, port := client.parseJumpHost(test.input)
		if host != test.expectedHost || port != test.expectedPort {
			t.Errorf("parseJumpHost(%q) = (%q, %q), expected (%q, %q)",
				test.input, host, port, test.expectedHost, test.expectedPort)
		}
	}
}

func TestNewSSHClientRequiresAuth(t *testing.T) {
	if _, err := NewSSHClient(Options{Host: "h", User: "u"}); err == nil {
		t.Fatal("expected an error without password or key")
	}

	c, err := NewSSHClient(Options{Host: "h", User: "u", Password: "p"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if c.port != "22" {
		t.Errorf("default port = %q, expected 22", c.port)
	}
}

func TestJumpUser(t *testing.T) {
	c, err := NewSSHClient(Options{Host: "h", User: "deploy", Password: "p", JumpHost: "bastion@jump:2200"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := c.jumpUser(); got != "bastion" {
		t.Errorf("jumpUser() = %q, expected bastion", got)
	}
	c.jumpHost = "jump"
	if got := c.jumpUser(); got != "deploy" {
		t.Errorf("jumpUser() = %q, expected deploy", got)
	}
}

func TestShellEscape(t *testing.T) {
	if got := ShellEscape("it's"); got != `'it'\''s'` {
		t.Errorf("ShellEscape = %q", got)
	}
}

func TestRunRequiresConnection(t *testing.T) {
	c := &SSHClient{}
	if _, err := c.Run(t.Context(), "true"); err == nil {
		t.Fatal("expected error when not connected")
	}
}
