package model

import (
	"os"
	"path/filepath"
)

const (
	AppName = "ooinstall"

	// DefaultSSHUser is used when neither the installation config nor a host sets one.
	DefaultSSHUser = "root"
)

// Host is a single machine from the installation config.
//
// nolint:govet // prefer to keep field ordering as is
type Host struct {
	IP             string
	Hostname       string
	PublicIP       string
	PublicHostname string

	IsMaster bool
	IsNode   bool

	// SSHUser overrides the installation wide ssh user for this host.
	SSHUser string
}

func (h *Host) AsLogFields() []any {
	return []any{
		"ip", h.IP,
		"hostname", h.Hostname,
		"publicIP", h.PublicIP,
		"publicHostname", h.PublicHostname,
		"master", h.IsMaster,
		"node", h.IsNode,
	}
}

// InstallationConfig is the validated contents of the installer config file.
type InstallationConfig struct {
	Product        string
	DeploymentType string
	ProductType    string
	Hosts          []Host

	// SSHUser is empty when the config file does not set ansible_ssh_user.
	SSHUser string

	// Runtime settings that may also be given in the config file.
	AnsibleLogPath        string
	AnsibleConfig         string
	AnsiblePlaybookBinary string
	LogLevel              string
	MetricsTextfile       string
}

// EffectiveSSHUser returns the ssh user the automation engine will connect as.
func (c *InstallationConfig) EffectiveSSHUser() string {
	if c.SSHUser != "" {
		return c.SSHUser
	}

	return DefaultSSHUser
}

func (c *InstallationConfig) AsLogFields() []any {
	return []any{
		"product", c.Product,
		"deploymentType", c.DeploymentType,
		"productType", c.ProductType,
		"hosts", len(c.Hosts),
		"sshUser", c.EffectiveSSHUser(),
	}
}

type Args struct {
	LogLevel        string
	ConfigFile      string
	WorkDir         string
	AnsibleLogPath  string
	AnsibleConfig   string
	MetricsTextfile string
	Unattended      bool
	DryRun          bool
	SkipInstalled   bool
}

// DefaultConfigFile is the installer config location used when -c is not given.
func DefaultConfigFile() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".config", "openshift", "installer.cfg.yml")
	}

	return filepath.Join(home, ".config", "openshift", "installer.cfg.yml")
}
