package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
)

// ModelConfig describes one selectable chat model and the backend serving it.
type ModelConfig struct {
	ID          string   `toml:"id"`
	Name        string   `toml:"name"`
	Provider    string   `toml:"provider"`
	BaseURL     string   `toml:"base_url"`
	Model       string   `toml:"model"`
	Credential  string   `toml:"credential,omitempty"`
	Temperature *float64 `toml:"temperature,omitempty"`
	MaxTokens   *int     `toml:"max_tokens,omitempty"`
	TopP        *float64 `toml:"top_p,omitempty"`
}

type OpsGenieConfig struct {
	BaseURL    string `toml:"base_url"`
	Credential string `toml:"credential"`
}

type ConfluenceConfig struct {
	BaseURL    string `toml:"base_url"`
	Email      string `toml:"email"`
	Credential string `toml:"credential"`
}

type WikipediaConfig struct {
	Enabled bool   `toml:"enabled"`
	BaseURL string `toml:"base_url"`
}

// MCPServer is a remote tool server. Command starts a local stdio server,
// URL connects to a running one.
type MCPServer struct {
	ID        string            `toml:"id"`
	Command   string            `toml:"command,omitempty"`
	Args      []string          `toml:"args,omitempty"`
	Env       map[string]string `toml:"env,omitempty"`
	URL       string            `toml:"url,omitempty"`
	Transport string            `toml:"transport,omitempty"` // sse | streamable-http
	Headers   map[string]string `toml:"headers,omitempty"`
}

type LogConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"` // text | json
	File   string `toml:"file,omitempty"`
}

type SecurityConfig struct {
	CredentialStorage string `toml:"credential_storage"`
	SSHKeyPath        string `toml:"ssh_key_path,omitempty"`
}

type Config struct {
	Listen        string           `toml:"listen"`
	DataDirectory string           `toml:"data_dir"`
	DefaultModel  string           `toml:"default_model"`
	ToolTimeout   Duration         `toml:"tool_timeout"`
	Log           LogConfig        `toml:"log"`
	Security      SecurityConfig   `toml:"security"`
	Models        []ModelConfig    `toml:"models"`
	OpsGenie      OpsGenieConfig   `toml:"opsgenie"`
	Confluence    ConfluenceConfig `toml:"confluence"`
	Wikipedia     WikipediaConfig  `toml:"wikipedia"`
	MCPServers    []MCPServer      `toml:"mcp_servers"`

	CredentialStore *CredentialStore `toml:"-"`
}

// Duration decodes TOML strings like "30s".
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", text, err)
	}
	d.Duration = v
	return nil
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

func Default() *Config {
	return &Config{
		Listen:        ":3000",
		DataDirectory: GetDefaultDataDir(),
		DefaultModel:  "lmstudio-qwen",
		ToolTimeout:   Duration{30 * time.Second},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
		Security: SecurityConfig{
			CredentialStorage: string(SecurityPlainText),
		},
		Models: []ModelConfig{
			{
				ID:       "lmstudio-qwen",
				Name:     "Qwen (LM Studio)",
				Provider: "lmstudio",
				BaseURL:  "http://localhost:1234/v1",
				Model:    "qwen2.5-7b-instruct",
			},
		},
		OpsGenie: OpsGenieConfig{
			BaseURL:    "https://api.opsgenie.com/v2",
			Credential: "opsgenie",
		},
		Confluence: ConfluenceConfig{
			Credential: "confluence",
		},
		Wikipedia: WikipediaConfig{
			Enabled: true,
			BaseURL: "https://en.wikipedia.org/w/api.php",
		},
	}
}

func (c *Config) DataDir() string {
	return ExpandPath(c.DataDirectory)
}

// Model looks up a configured model by id.
func (c *Config) Model(id string) (ModelConfig, bool) {
	for _, m := range c.Models {
		if m.ID == id {
			return m, true
		}
	}
	return ModelConfig{}, false
}

// Secret resolves a credential name. TOOLCHAT_CREDENTIAL_<NAME> wins over the store.
func (c *Config) Secret(name string) string {
	if name == "" {
		return ""
	}
	if v := os.Getenv(credentialEnvName(name)); v != "" {
		return v
	}
	if c.CredentialStore == nil {
		return ""
	}
	return c.CredentialStore.Get(name)
}

// SetSecret stores secret under name and rewrites the credential file in the
// data directory, encrypting it when credential_storage is ssh_key.
func (c *Config) SetSecret(name, secret string) error {
	if c.CredentialStore == nil {
		return errors.New("credential store not loaded")
	}
	if name == "" {
		return errors.New("credential name is required")
	}
	c.CredentialStore.Set(name, secret)
	return c.CredentialStore.Save(c.DataDir())
}

// DeleteSecret removes name from the credential file.
func (c *Config) DeleteSecret(name string) error {
	if c.CredentialStore == nil {
		return errors.New("credential store not loaded")
	}
	if c.CredentialStore.Get(name) == "" {
		return fmt.Errorf("%w: %s", ErrCredentialNotFound, name)
	}
	c.CredentialStore.Delete(name)
	return c.CredentialStore.Save(c.DataDir())
}

func (c *Config) applyEnvOverrides() {
	if listen := os.Getenv("TOOLCHAT_LISTEN"); listen != "" {
		c.Listen = listen
	}
	if dataDir := os.Getenv("TOOLCHAT_DATA_DIR"); dataDir != "" {
		c.DataDirectory = dataDir
	}
	if model := os.Getenv("TOOLCHAT_DEFAULT_MODEL"); model != "" {
		c.DefaultModel = model
	}
	if level := os.Getenv("TOOLCHAT_LOG_LEVEL"); level != "" {
		c.Log.Level = level
	}
}

func (c *Config) Validate() error {
	seen := make(map[string]bool, len(c.Models))
	for i, m := range c.Models {
		switch {
		case m.ID == "":
			return fmt.Errorf("models[%d]: id is required", i)
		case m.Provider == "":
			return fmt.Errorf("model %s: provider is required", m.ID)
		case seen[m.ID]:
			return fmt.Errorf("model %s: duplicate id", m.ID)
		}
		seen[m.ID] = true
	}
	for i, s := range c.MCPServers {
		switch {
		case s.ID == "":
			return fmt.Errorf("mcp_servers[%d]: id is required", i)
		case s.Command == "" && s.URL == "":
			return fmt.Errorf("mcp server %s: command or url is required", s.ID)
		}
	}
	switch SecurityMethod(c.Security.CredentialStorage) {
	case SecurityPlainText, SecuritySSHKey:
	default:
		return fmt.Errorf("unknown credential_storage: %s", c.Security.CredentialStorage)
	}
	return nil
}

// Load reads the TOML file at path (defaults apply when it does not exist),
// applies env overrides, prepares the data directory and loads credentials.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path == "" {
		path = GetConfigFilePath()
	}
	if FileExists(path) {
		if _, err := toml.DecodeFile(path, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
		}
	}

	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	dataDir := cfg.DataDir()
	if err := EnsureDataDirPermissions(dataDir); err != nil {
		return nil, fmt.Errorf("failed to prepare data directory: %w", err)
	}

	keyPath := ExpandPath(cfg.Security.SSHKeyPath)
	if keyPath == "" && SecurityMethod(cfg.Security.CredentialStorage) == SecuritySSHKey {
		keyPath = DefaultSSHKeyPath()
	}
	store := NewCredentialStore(SecurityMethod(cfg.Security.CredentialStorage), keyPath)
	store.SetPassphrase(os.Getenv("TOOLCHAT_SSH_PASSPHRASE"))
	if err := store.Load(dataDir); err != nil {
		return nil, fmt.Errorf("failed to load credentials: %w", err)
	}
	cfg.CredentialStore = store

	return cfg, nil
}

// Save writes the config as TOML with 0600 permissions.
func Save(cfg *Config, path string) error {
	if err := EnsureDir(filepath.Dir(path)); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}
	defer f.Close()

	if err := toml.NewEncoder(f).Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	return nil
}
