//go:build !linux

package daemonauth

// Sandbox is a no-op on platforms without landlock; module access is
// still gated by HostGate and the secrets/permission checks above, just
// not by a kernel-enforced filesystem restriction.
func Sandbox(roDirs, rwDirs []string) error {
	return nil
}
