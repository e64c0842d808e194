// Package inventory renders the Ansible inventory consumed by the
// openshift-ansible playbooks.
package inventory

import (
	"bytes"
	"os"
	"path/filepath"

	"github.com/metal-toolbox/ooinstall/internal/model"
	"github.com/pkg/errors"
)

const (
	// VarsSection holds the installation wide variables.
	VarsSection     = "OSEv3:vars"
	ChildrenSection = "OSEv3:children"
	MastersGroup    = "masters"
	NodesGroup      = "nodes"

	// Dir and File locate the inventory below the work directory.
	Dir  = ".ansible"
	File = "hosts"
)

var ErrWrite = errors.New("inventory write error")

// Path returns the inventory location for a work directory.
func Path(workDir string) string {
	return filepath.Join(workDir, Dir, File)
}

// Render serializes the installation config into an inventory document.
// The masters and nodes groups list host ips; each ip must belong to cfg.Hosts.
func Render(cfg *model.InstallationConfig, masters, nodes []string) ([]byte, error) {
	byIP := make(map[string]*model.Host, len(cfg.Hosts))
	for i := range cfg.Hosts {
		byIP[cfg.Hosts[i].IP] = &cfg.Hosts[i]
	}

	var buf bytes.Buffer

	section(&buf, ChildrenSection)
	buf.WriteString(MastersGroup + "\n")
	buf.WriteString(NodesGroup + "\n")
	buf.WriteString("\n")

	section(&buf, VarsSection)

	if cfg.SSHUser != "" {
		keyValue(&buf, "ansible_ssh_user", cfg.SSHUser)

		if cfg.SSHUser != model.DefaultSSHUser {
			keyValue(&buf, "ansible_become", "true")
		}
	}

	keyValue(&buf, "deployment_type", cfg.DeploymentType)

	if cfg.ProductType != "" {
		keyValue(&buf, "product_type", cfg.ProductType)
	}

	for _, group := range []struct {
		name string
		ips  []string
	}{
		{MastersGroup, masters},
		{NodesGroup, nodes},
	} {
		buf.WriteString("\n")
		section(&buf, group.name)

		for _, ip := range group.ips {
			h, ok := byIP[ip]
			if !ok {
				return nil, errors.Wrapf(model.ErrConfig, "%s host %s is not in the config", group.name, ip)
			}

			hostLine(&buf, h)
		}
	}

	return buf.Bytes(), nil
}

// Write replaces the file at path with data. The content is written to a
// temporary file in the same directory and renamed into place.
func Write(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return errors.Wrap(ErrWrite, err.Error())
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*")
	if err != nil {
		return errors.Wrap(ErrWrite, err.Error())
	}

	// no-op once the rename succeeded
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return errors.Wrap(ErrWrite, err.Error())
	}

	if err := tmp.Close(); err != nil {
		return errors.Wrap(ErrWrite, err.Error())
	}

	if err := os.Chmod(tmp.Name(), 0o644); err != nil {
		return errors.Wrap(ErrWrite, err.Error())
	}

	if err := os.Rename(tmp.Name(), path); err != nil {
		return errors.Wrap(ErrWrite, err.Error())
	}

	return nil
}

func section(buf *bytes.Buffer, name string) {
	buf.WriteString("[" + name + "]\n")
}

func keyValue(buf *bytes.Buffer, key, value string) {
	buf.WriteString(key + "=" + value + "\n")
}

func hostLine(buf *bytes.Buffer, h *model.Host) {
	buf.WriteString(h.IP)

	attrs := [][2]string{
		{"openshift_ip", h.IP},
		{"openshift_public_ip", h.PublicIP},
		{"openshift_hostname", h.Hostname},
		{"openshift_public_hostname", h.PublicHostname},
		{"ansible_ssh_user", h.SSHUser},
	}

	for _, kv := range attrs {
		if kv[1] == "" {
			continue
		}

		buf.WriteString(" " + kv[0] + "=" + kv[1])
	}

	buf.WriteString("\n")
}
