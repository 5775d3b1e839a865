package vault

import (
	"fmt"
	"strings"
)

// checkPath rejects object paths that could escape a prefix or that no
// backend can store: empty, absolute, or containing "." or ".." segments.
func checkPath(p string) error {
	if p == "" || strings.HasPrefix(p, "/") || strings.HasSuffix(p, "/") {
		return fmt.Errorf("invalid object path %q", p)
	}
	for _, seg := range strings.Split(p, "/") {
		if seg == "" || seg == "." || seg == ".." {
			return fmt.Errorf("invalid object path %q", p)
		}
	}
	return nil
}

// directChild reports the name of key relative to prefix when key is an
// immediate child of prefix.
func directChild(prefix, key string) (string, bool) {
	if !strings.HasPrefix(key, prefix) {
		return "", false
	}
	name := key[len(prefix):]
	if name == "" || strings.Contains(name, "/") {
		return "", false
	}
	return name, true
}
