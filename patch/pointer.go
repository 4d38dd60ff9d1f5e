package patch

import "strings"

// Pointer returns the JSON pointer addressing a field key.
func Pointer(key string) string {
	return "/" + escape(key)
}

// Pointers returns the allow-list for the given field keys. List fields also
// allow appending through "/key/-".
func Pointers(keys []string, lists map[string]bool) []string {
	paths := make([]string, 0, len(keys))
	for _, key := range keys {
		paths = append(paths, Pointer(key))
		if lists[key] {
			paths = append(paths, Pointer(key)+"/-")
		}
	}
	return paths
}

// FieldKey returns the field key a pointer targets.
func FieldKey(path string) (string, bool) {
	rest, ok := strings.CutPrefix(path, "/")
	if !ok || rest == "" {
		return "", false
	}
	token, _, _ := strings.Cut(rest, "/")
	return unescape(token), true
}

func escape(token string) string {
	token = strings.ReplaceAll(token, "~", "~0")
	return strings.ReplaceAll(token, "/", "~1")
}

func unescape(token string) string {
	token = strings.ReplaceAll(token, "~1", "/")
	return strings.ReplaceAll(token, "~0", "~")
}
