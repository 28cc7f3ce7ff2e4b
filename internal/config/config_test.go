package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestPathFunctions(t *testing.T) {
	root := "/test/kb"

	tests := []struct {
		name string
		fn   func(string) string
		want string
	}{
		{"DataPath", DataPath, "/test/kb/.plasmarag"},
		{"ConfigPath", ConfigPath, "/test/kb/.plasmarag/config.json"},
		{"DBPath", DBPath, "/test/kb/.plasmarag/knowledge.db"},
		{"IndexPath", IndexPath, "/test/kb/.plasmarag/index"},
		{"FiguresPath", FiguresPath, "/test/kb/.plasmarag/figures"},
		{"LocksPath", LocksPath, "/test/kb/.plasmarag/locks"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.fn(root)
			if got != tt.want {
				t.Errorf("%s(%q) = %q, want %q", tt.name, root, got, tt.want)
			}
		})
	}
}

func TestFindRepository(t *testing.T) {
	tmpDir := t.TempDir()
	kbDir := filepath.Join(tmpDir, "kb")
	nestedDir := filepath.Join(kbDir, "papers", "2024")

	if err := os.MkdirAll(nestedDir, 0755); err != nil {
		t.Fatalf("Failed to create nested dirs: %v", err)
	}
	if err := os.Mkdir(filepath.Join(kbDir, DataDir), 0755); err != nil {
		t.Fatalf("Failed to create %s: %v", DataDir, err)
	}

	found, err := FindRepository(nestedDir)
	if err != nil {
		t.Fatalf("FindRepository() error = %v", err)
	}
	if found != kbDir {
		t.Errorf("FindRepository() = %q, want %q", found, kbDir)
	}
}

func TestFindRepository_NotFound(t *testing.T) {
	if _, err := FindRepository(t.TempDir()); err == nil {
		t.Error("FindRepository() should return error when no knowledge base found")
	}
}

func TestIsRepository_FileNotDir(t *testing.T) {
	tmpDir := t.TempDir()
	if err := os.WriteFile(filepath.Join(tmpDir, DataDir), []byte("not a dir"), 0644); err != nil {
		t.Fatalf("Failed to create file: %v", err)
	}
	if IsRepository(tmpDir) {
		t.Error("IsRepository() = true when data dir is a file")
	}
}

func TestConfig_SaveAndLoad(t *testing.T) {
	tmpDir := t.TempDir()
	if err := os.Mkdir(DataPath(tmpDir), 0755); err != nil {
		t.Fatal(err)
	}

	cfg := Default()
	cfg.FigurePages = 3
	cfg.DuplicatePolicy = PolicyReplace
	if err := cfg.Save(tmpDir); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	loaded, err := Load(tmpDir)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if loaded.FigurePages != 3 {
		t.Errorf("FigurePages = %d, want 3", loaded.FigurePages)
	}
	if loaded.DuplicatePolicy != PolicyReplace {
		t.Errorf("DuplicatePolicy = %q, want %q", loaded.DuplicatePolicy, PolicyReplace)
	}
}

func TestLoad_PartialFileKeepsDefaults(t *testing.T) {
	tmpDir := t.TempDir()
	if err := os.Mkdir(DataPath(tmpDir), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(ConfigPath(tmpDir), []byte(`{"vision_model": "qwen-vl-plus"}`), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(tmpDir)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.VisionModel != "qwen-vl-plus" {
		t.Errorf("VisionModel = %q", cfg.VisionModel)
	}
	if cfg.EmbeddingDims != 1536 {
		t.Errorf("EmbeddingDims = %d, want default 1536", cfg.EmbeddingDims)
	}
}

func TestLoad_InvalidJSON(t *testing.T) {
	tmpDir := t.TempDir()
	if err := os.Mkdir(DataPath(tmpDir), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(ConfigPath(tmpDir), []byte("not json"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(tmpDir); err == nil {
		t.Error("Load() should return error for invalid JSON")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"defaults", func(*Config) {}, false},
		{"replace policy", func(c *Config) { c.DuplicatePolicy = PolicyReplace }, false},
		{"unknown policy", func(c *Config) { c.DuplicatePolicy = "merge" }, true},
		{"ollama provider", func(c *Config) { c.EmbeddingProvider = ProviderOllama }, false},
		{"unknown provider", func(c *Config) { c.EmbeddingProvider = "faiss" }, true},
		{"zero dims", func(c *Config) { c.EmbeddingDims = 0 }, true},
		{"zero attempts", func(c *Config) { c.FormattingAttempts = 0 }, true},
		{"zero retries", func(c *Config) { c.MaxRetries = 0 }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr = %v", err, tt.wantErr)
			}
		})
	}
}

func TestExpandPath(t *testing.T) {
	home, err := os.UserHomeDir()
	if err != nil {
		t.Skip("Cannot get home directory")
	}

	tests := []struct {
		in   string
		want string
	}{
		{"", ""},
		{"/abs/path", "/abs/path"},
		{"~/kb", filepath.Join(home, "kb")},
	}
	for _, tt := range tests {
		if got := ExpandPath(tt.in); got != tt.want {
			t.Errorf("ExpandPath(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
