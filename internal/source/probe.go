package source

import (
	"os"
	"path/filepath"
	"strings"
	"sync"
)

var (
	probeOnce       sync.Once
	caseInsensitive bool
)

// CaseInsensitiveFS reports whether the filesystem ignores case, probed
// once per process by creating a lowercase temp file and testing whether
// its uppercase name exists. Revival key comparisons fold case iff this is
// true.
func CaseInsensitiveFS() bool {
	probeOnce.Do(func() {
		caseInsensitive = probeCase(os.TempDir())
	})
	return caseInsensitive
}

func probeCase(dir string) bool {
	f, err := os.CreateTemp(dir, "markview-case-probe-*")
	if err != nil {
		return false
	}
	name := f.Name()
	f.Close()
	defer os.Remove(name)

	upper := filepath.Join(filepath.Dir(name), strings.ToUpper(filepath.Base(name)))
	if upper == name {
		return false
	}
	_, err = os.Stat(upper)
	return err == nil
}
