package daemonauth

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/gofrs/flock"

	rsync "github.com/ocrsync/rsync"
)

// Limit is returned by Limiter.Acquire when a module's max-connections
// budget is already exhausted.
type Limit struct {
	Module string
	Max    int
}

func (e *Limit) Error() string {
	return fmt.Sprintf("module %q has reached its connection limit of %d", e.Module, e.Max)
}
func (e *Limit) ExitCode() int { return rsync.ExitClientServerSetup }

// Limiter enforces a per-module connection count kept in a companion file
// lockPath+".counts" holding "MODULE COUNT\n" lines, with the advisory
// lock taken on lockPath itself, per spec §4.I "Connection
// limiter": acquisition increments the count under an advisory file lock
// and returns a guard; the guard's Release decrements it again, even if
// the caller panics, because it is invoked via defer at the call site.
type Limiter struct {
	path string
}

// NewLimiter constructs a limiter backed by lockPath.
func NewLimiter(lockPath string) *Limiter {
	return &Limiter{path: lockPath}
}

// Guard releases a module's connection slot exactly once.
type Guard struct {
	release func() error
}

// Release gives back the slot acquired by Acquire. Safe to call multiple
// times; only the first call has effect.
func (g *Guard) Release() error {
	if g.release == nil {
		return nil
	}
	release := g.release
	g.release = nil
	return release()
}

// Acquire increments module's count under an advisory file lock and
// returns a Guard, or a *Limit error if max is already reached (max <= 0
// means unlimited).
func (l *Limiter) Acquire(module string, max int) (*Guard, error) {
	fl := flock.New(l.path)
	if err := fl.Lock(); err != nil {
		return nil, err
	}
	defer fl.Unlock()

	counts, err := readCounts(l.path + ".counts")
	if err != nil {
		return nil, err
	}
	if max > 0 && counts[module] >= max {
		return nil, &Limit{Module: module, Max: max}
	}
	counts[module]++
	if err := writeCounts(l.path+".counts", counts); err != nil {
		return nil, err
	}

	return &Guard{release: func() error {
		fl2 := flock.New(l.path)
		if err := fl2.Lock(); err != nil {
			return err
		}
		defer fl2.Unlock()
		counts, err := readCounts(l.path + ".counts")
		if err != nil {
			return err
		}
		if counts[module] > 0 {
			counts[module]--
		}
		return writeCounts(l.path+".counts", counts)
	}}, nil
}

func readCounts(path string) (map[string]int, error) {
	counts := make(map[string]int)
	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return counts, nil
	}
	if err != nil {
		return nil, err
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) != 2 {
			continue
		}
		n, err := strconv.Atoi(fields[1])
		if err != nil {
			continue
		}
		counts[fields[0]] = n
	}
	return counts, scanner.Err()
}

func writeCounts(path string, counts map[string]int) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	for module, n := range counts {
		if _, err := fmt.Fprintf(f, "%s %d\n", module, n); err != nil {
			return err
		}
	}
	return nil
}
