package config

import "testing"

func TestNormalizeListenAddr(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    string
		wantErr bool
	}{
		{name: "bare port number", input: "3000", want: ":3000"},
		{name: "port with colon prefix", input: ":3000", want: ":3000"},
		{name: "full address with host", input: "127.0.0.1:3000", want: "127.0.0.1:3000"},
		{name: "IPv6 address", input: "[::1]:3000", want: "[::1]:3000"},
		{name: "all interfaces", input: "0.0.0.0:3000", want: "0.0.0.0:3000"},
		{name: "any free port", input: "127.0.0.1:0", want: "127.0.0.1:0"},
		{name: "invalid port - too high", input: "70000", wantErr: true},
		{name: "invalid port - zero", input: "0", wantErr: true},
		{name: "invalid port - negative", input: "-1", wantErr: true},
		{name: "invalid port - not a number", input: "abc", wantErr: true},
		{name: "host with bad port", input: "localhost:http", wantErr: true},
		{name: "empty string", input: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := normalizeListenAddr(tt.input)
			if (err != nil) != tt.wantErr {
				t.Errorf("normalizeListenAddr() error = %v, wantErr %v", err, tt.wantErr)
				return
			}
			if got != tt.want {
				t.Errorf("normalizeListenAddr() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestValidatePort(t *testing.T) {
	tests := []struct {
		name    string
		port    string
		wantErr bool
	}{
		{name: "valid port 80", port: "80"},
		{name: "valid port 3000", port: "3000"},
		{name: "valid port 65535", port: "65535"},
		{name: "invalid port 0", port: "0", wantErr: true},
		{name: "invalid port 65536", port: "65536", wantErr: true},
		{name: "not a number", port: "web", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := validatePort(tt.port); (err != nil) != tt.wantErr {
				t.Errorf("validatePort() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
