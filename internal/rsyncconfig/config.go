// Package rsyncconfig loads the daemon/module configuration file
// (rsyncd.conf-equivalent), grounded on the teacher's rsyncd.Module
// toml-tagged struct, generalized into a full daemon config document via
// github.com/BurntSushi/toml.
package rsyncconfig

import (
	"fmt"

	"github.com/BurntSushi/toml"
)

// Module is one [[module]] table.
type Module struct {
	Name           string   `toml:"name"`
	Path           string   `toml:"path"`
	Comment        string   `toml:"comment"`
	Writable       bool     `toml:"writable"`
	ReadOnly       bool     `toml:"read_only"`
	UseChroot      bool     `toml:"use_chroot"`
	List           bool     `toml:"list"`
	NumericIds     bool     `toml:"numeric_ids"`
	AuthUsers      []string `toml:"auth_users"`
	SecretsFile    string   `toml:"secrets_file"`
	HostsAllow     []string `toml:"hosts_allow"`
	HostsDeny      []string `toml:"hosts_deny"`
	RefuseOptions  []string `toml:"refuse_options"`
	Uid            string   `toml:"uid"`
	Gid            string   `toml:"gid"`
	TimeoutSec     int      `toml:"timeout"`
	MaxConnections int      `toml:"max_connections"`
	BwlimitKB      int64    `toml:"bwlimit"`
}

// Daemon is the top-level document: global settings plus the module list.
type Daemon struct {
	Address       string   `toml:"address"`
	Port          int      `toml:"port"`
	PidFile       string   `toml:"pid_file"`
	MotdFile      string   `toml:"motd_file"`
	ReverseLookup bool     `toml:"reverse_lookup"`
	Modules       []Module `toml:"module"`
}

// LoadFile parses a daemon config document from path.
func LoadFile(path string) (*Daemon, error) {
	var d Daemon
	if _, err := toml.DecodeFile(path, &d); err != nil {
		return nil, fmt.Errorf("loading daemon config %s: %w", path, err)
	}
	return &d, nil
}

// ModuleByName looks up a module by name, reporting ok=false if absent.
func (d *Daemon) ModuleByName(name string) (Module, bool) {
	for _, m := range d.Modules {
		if m.Name == name {
			return m, true
		}
	}
	return Module{}, false
}
