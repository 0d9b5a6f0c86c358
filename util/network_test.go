package util

import (
	"context"
	"testing"
)

func TestResolveAddr(t *testing.T) {
	tests := []struct {
		host    string
		port    int
		noDNS   bool
		want    string
		wantErr bool
	}{
		{"127.0.0.1", 11753, true, "127.0.0.1:11753", false},
		{"::1", 443, true, "[::1]:443", false},
		{"example.com", 80, false, "example.com:80", false},
		{"example.com", 80, true, "", true}, // hostname with noDNS
	}

	for _, tt := range tests {
		got, err := ResolveAddr(tt.host, tt.port, tt.noDNS)
		if (err != nil) != tt.wantErr {
			t.Errorf("ResolveAddr(%q,%d,%v) err=%v wantErr=%v",
				tt.host, tt.port, tt.noDNS, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("ResolveAddr(%q,%d,%v) = %q, want %q",
				tt.host, tt.port, tt.noDNS, got, tt.want)
		}
	}
}

func TestFormatAddr(t *testing.T) {
	if got := FormatAddr("1.2.3.4", 22); got != "1.2.3.4:22" {
		t.Errorf("got %q, want %q", got, "1.2.3.4:22")
	}
}

func TestSplitServerAddr(t *testing.T) {
	tests := []struct {
		spec     string
		wantHost string
		wantPort int
		wantErr  bool
	}{
		{"play.example.com", "play.example.com", 11753, false},
		{"play.example.com:2000", "play.example.com", 2000, false},
		{"10.0.0.5:11753", "10.0.0.5", 11753, false},
		{"[::1]:9000", "::1", 9000, false},
		{"[::1]", "::1", 11753, false},
		{"host:0", "", 0, true},
		{"host:99999", "", 0, true},
		{":2000", "", 0, true},
		{"", "", 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.spec, func(t *testing.T) {
			host, port, err := SplitServerAddr(tt.spec, 11753)
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr = %v", err, tt.wantErr)
			}
			if err != nil {
				return
			}
			if host != tt.wantHost || port != tt.wantPort {
				t.Errorf("got (%q, %d), want (%q, %d)", host, port, tt.wantHost, tt.wantPort)
			}
		})
	}
}

func TestLookupHost_NoDNS(t *testing.T) {
	addrs, err := LookupHost(context.Background(), "192.168.1.1", true)
	if err != nil {
		t.Fatal(err)
	}
	if len(addrs) != 1 || addrs[0] != "192.168.1.1" {
		t.Errorf("got %v", addrs)
	}

	_, err = LookupHost(context.Background(), "not-an-ip", true)
	if err == nil {
		t.Error("expected error for hostname with noDNS")
	}
}
