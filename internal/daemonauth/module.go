package daemonauth

import (
	"strings"

	getoptions "github.com/DavidGamba/go-getoptions"
)

// ModuleOptions is the parsed form of a module's inline option block
// (spec §4.I "Inline options").
type ModuleOptions struct {
	UseChroot     bool
	ReadOnly      bool
	List          bool
	NumericIds    bool
	AuthUsers     []string
	SecretsFile   string
	HostsAllow    []string
	HostsDeny     []string
	BwlimitBytes  int64
	BwlimitBurst  int64
	RefuseOptions []string
	Uid           string
	Gid           string
	TimeoutSec    int
	MaxConnections int
}

// RefusesOption reports whether a client-bundled legacy option string
// (e.g. "-avz --delete") contains any option this module refuses. The
// bundled string is tokenized with go-getoptions the same way the client
// side would parse its own argv, so long and short forms are recognized
// uniformly — this is the one place go-getoptions is repurposed from CLI
// parsing into matching an option *list* against a refusal set, per the
// Domain stack table.
func RefusesOption(bundled string, refused []string) (string, bool) {
	if len(refused) == 0 {
		return "", false
	}
	opt := getoptions.New()
	seen := make(map[string]bool)
	for _, name := range refused {
		name := name
		opt.BoolVar(new(bool), name, false)
	}
	args, err := opt.Parse(strings.Fields(bundled))
	_ = args
	if err != nil {
		// Unrecognized tokens aren't refusals by themselves; only an
		// explicitly-set refused option is.
	}
	for _, name := range refused {
		if opt.Called(name) {
			seen[name] = true
		}
	}
	for name := range seen {
		return name, true
	}
	return "", false
}
