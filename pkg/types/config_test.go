package types

import (
	"errors"
	"testing"
)

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		config  Config
		wantErr error
	}{
		{
			name:    "empty backend returns ErrBackendEmpty",
			config:  Config{Backend: "", DataDir: "/tmp/data"},
			wantErr: ErrBackendEmpty,
		},
		{
			name:    "unknown backend returns ErrBackendUnknown",
			config:  Config{Backend: "postgres", DataDir: "/tmp/data"},
			wantErr: ErrBackendUnknown,
		},
		{
			name:    "negative page size returns ErrInvalidPageSize",
			config:  Config{Backend: "sqlite", PageSize: -1},
			wantErr: ErrInvalidPageSize,
		},
		{
			name:    "unknown log level returns ErrInvalidLogLevel",
			config:  Config{Backend: "sqlite", Log: LogConfig{Level: "loud"}},
			wantErr: ErrInvalidLogLevel,
		},
		{
			name:    "unknown log format returns ErrInvalidLogFormat",
			config:  Config{Backend: "sqlite", Log: LogConfig{Format: "xml"}},
			wantErr: ErrInvalidLogFormat,
		},
		{
			name:    "plugin without path returns ErrInvalidPlugin",
			config:  Config{Backend: "sqlite", Plugins: []PluginConfig{{Type: "acme.MAC"}}},
			wantErr: ErrInvalidPlugin,
		},
		{
			name:    "valid sqlite config",
			config:  Config{Backend: "sqlite", DataDir: "/tmp/data", PageSize: 50, Log: LogConfig{Level: "debug", Format: "json"}},
			wantErr: nil,
		},
		{
			name:    "sqlite with empty DataDir is valid at config level",
			config:  Config{Backend: "sqlite", DataDir: ""},
			wantErr: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.config.Validate()
			if tt.wantErr == nil {
				if err != nil {
					t.Fatalf("expected nil error, got %v", err)
				}
				return
			}
			if err == nil {
				t.Fatalf("expected error %v, got nil", tt.wantErr)
			}
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("expected error %v, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestConfigEffectivePageSize(t *testing.T) {
	if got := (Config{}).EffectivePageSize(); got != DefaultPageSize {
		t.Fatalf("expected default page size %d, got %d", DefaultPageSize, got)
	}
	if got := (Config{PageSize: 7}).EffectivePageSize(); got != 7 {
		t.Fatalf("expected page size 7, got %d", got)
	}
}

func TestConfigPluginPaths(t *testing.T) {
	if got := (Config{}).PluginPaths(); got != nil {
		t.Fatalf("expected nil allowlist, got %v", got)
	}
	cfg := Config{Plugins: []PluginConfig{
		{Type: "acme.MAC", Path: "/opt/cmdb/mac.so"},
		{Type: "cmdb.types.VLAN", Path: "/opt/cmdb/vlan.so"},
	}}
	got := cfg.PluginPaths()
	if len(got) != 2 || got["acme.MAC"] != "/opt/cmdb/mac.so" || got["cmdb.types.VLAN"] != "/opt/cmdb/vlan.so" {
		t.Fatalf("unexpected allowlist %v", got)
	}
}
