package config

import (
	"log"
	"os"

	"gopkg.in/yaml.v3"
)

type Config struct {
	App       AppConfig                 `yaml:"app"`
	Gateways  map[string]GatewayConfig  `yaml:"gateways"`
	Providers map[string]ProviderConfig `yaml:"providers"`
	Store     StoreConfig               `yaml:"store"`
	SSH       SSHConfig                 `yaml:"ssh"`
	Tracker   TrackerConfig             `yaml:"tracker"`
	Graph     GraphConfig               `yaml:"graph"`
	Advisory  AdvisoryConfig            `yaml:"advisory"`
	VulnData  VulnDataConfig            `yaml:"vuln_data"`
}

type AppConfig struct {
	Name     string `yaml:"name"`
	PlanPath string `yaml:"plan_path"`
}

type GatewayConfig struct {
	Token   string `yaml:"token"`
	Enabled bool   `yaml:"enabled"`
}

type ProviderConfig struct {
	APIKey  string `yaml:"api_key"`
	Model   string `yaml:"model"`
	BaseURL string `yaml:"base_url,omitempty"`
	Enabled bool   `yaml:"enabled"`
}

type StoreConfig struct {
	Path string `yaml:"path"`
}

type SSHConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
}

type TrackerConfig struct {
	URL        string `yaml:"url"`
	Email      string `yaml:"email"`
	APIToken   string `yaml:"api_token"`
	ProjectKey string `yaml:"project_key"`
}

type GraphConfig struct {
	Endpoint   string `yaml:"endpoint"`
	Database   string `yaml:"database"`
	Graph      string `yaml:"graph"`
	PrimaryKey string `yaml:"primary_key"`
}

type AdvisoryConfig struct {
	Host       string `yaml:"host"`
	LocalCVEDB string `yaml:"local_cve_db"`
}

type VulnDataConfig struct {
	CSVPath string `yaml:"csv_path"`
}

func LoadConfig(path string) *Config {
	data, err := os.ReadFile(path)
	if err != nil {
		log.Fatalf("failed to open config file: %v", err)
	}

	cfg, err := Parse(data)
	if err != nil {
		log.Fatalf("failed to decode config file: %v", err)
	}
	return cfg
}

// Parse decodes config bytes, overlays environment values and fills defaults.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	cfg.applyEnv()
	cfg.applyDefaults()
	return &cfg, nil
}

// applyEnv lets secrets live in the environment (or a .env file loaded by
// the caller) instead of the config file. Env values win over file values.
func (c *Config) applyEnv() {
	overlay := map[string]*string{
		"SSH_HOSTNAME":        &c.SSH.Host,
		"SSH_USER":            &c.SSH.User,
		"SSH_PASSWD":          &c.SSH.Password,
		"JIRA_URL":            &c.Tracker.URL,
		"JIRA_EMAIL":          &c.Tracker.Email,
		"JIRA_API_TOKEN":      &c.Tracker.APIToken,
		"JIRA_PROJECT_KEY":    &c.Tracker.ProjectKey,
		"GREMLIN_ENDPOINT":    &c.Graph.Endpoint,
		"GREMLIN_DB":          &c.Graph.Database,
		"GREMLIN_GRAPH_NAME":  &c.Graph.Graph,
		"GREMLIN_PRIMARY_KEY": &c.Graph.PrimaryKey,
		"VULN_DATA_PATH":      &c.VulnData.CSVPath,
	}
	for key, dst := range overlay {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}

	if v := os.Getenv("LLM_API_KEY"); v != "" {
		for name, p := range c.Providers {
			if p.APIKey == "" {
				p.APIKey = v
				c.Providers[name] = p
			}
		}
	}
}

func (c *Config) applyDefaults() {
	if c.SSH.Port == 0 {
		c.SSH.Port = 22
	}
	if c.Advisory.Host == "" {
		c.Advisory.Host = "https://access.redhat.com/hydra/rest/securitydata"
	}
	if c.Advisory.LocalCVEDB == "" {
		c.Advisory.LocalCVEDB = "resources/cve_db"
	}
	if c.VulnData.CSVPath == "" {
		c.VulnData.CSVPath = "resources/vuln_data.csv"
	}
	if c.Store.Path == "" {
		c.Store.Path = "data/checkpoints.db"
	}
	if c.App.PlanPath == "" {
		c.App.PlanPath = "resources/plan.json"
	}
}

// GetDefaultProvider returns the first enabled provider
func (c *Config) GetDefaultProvider() (string, ProviderConfig) {
	for name, p := range c.Providers {
		if p.Enabled {
			return name, p
		}
	}
	return "", ProviderConfig{}
}

// GetGateway returns the named gateway config if it is enabled.
func (c *Config) GetGateway(name string) (GatewayConfig, bool) {
	g, ok := c.Gateways[name]
	if ok && g.Enabled {
		return g, true
	}
	return GatewayConfig{}, false
}
