package config

import (
	"testing"

	"github.com/spf13/pflag"
)

func newFlagSet() *pflag.FlagSet {
	f := pflag.NewFlagSet("test", pflag.ContinueOnError)
	f.String("schema", "", "")
	f.Bool("serve", false, "")
	f.Int("port", 8080, "")
	f.Bool("watch", false, "")
	f.Int("debounce", 150, "")
	f.Int("maxwait", 1000, "")
	f.Bool("jsonlogs", false, "")
	f.String("verbosity", "", "")
	f.Bool("pretty", true, "")
	return f
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(nil)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Port != 8080 {
		t.Errorf("Expected default port 8080, got %d", cfg.Port)
	}
	if cfg.Debounce != 150 || cfg.MaxWait != 1000 {
		t.Errorf("Expected default debounce 150/maxwait 1000, got %d/%d", cfg.Debounce, cfg.MaxWait)
	}
	if cfg.Serve || cfg.Watch {
		t.Error("Expected serve and watch off by default")
	}
	if !cfg.PrettyPrint {
		t.Error("Expected pretty printing on by default")
	}
}

func TestLoad_EnvOverridesDefaults(t *testing.T) {
	t.Setenv("FORMGRAPH_PORT", "9090")
	t.Setenv("FORMGRAPH_VERBOSITY", "debug")

	cfg, err := Load(nil)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Port != 9090 {
		t.Errorf("Expected env port 9090, got %d", cfg.Port)
	}
	if cfg.Verbosity != "debug" {
		t.Errorf("Expected env verbosity debug, got %q", cfg.Verbosity)
	}
}

func TestLoad_FlagsOverrideEnv(t *testing.T) {
	t.Setenv("FORMGRAPH_PORT", "9090")

	f := newFlagSet()
	if err := f.Parse([]string{"--port", "7070", "--serve", "--schema", "form.json"}); err != nil {
		t.Fatalf("Flag parse failed: %v", err)
	}

	cfg, err := Load(f)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Port != 7070 {
		t.Errorf("Expected flag port 7070 to win over env, got %d", cfg.Port)
	}
	if !cfg.Serve {
		t.Error("Expected serve flag to be applied")
	}
	if cfg.Schema != "form.json" {
		t.Errorf("Expected schema path from flag, got %q", cfg.Schema)
	}
}
