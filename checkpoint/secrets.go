package checkpoint

import (
	"cmp"
	"slices"
	"strings"
)

// MinSecretLength is the shortest string registered as a secret. Shorter
// values would mask too much unrelated text.
const MinSecretLength = 8

// SecretMask replaces secret values in snapshots.
const SecretMask = "[secret]"

// registerSecrets collects every sufficiently long string in value. The
// caller must hold the manager's mutex.
func (m *Manager) registerSecrets(nodeID string, value any) {
	set, ok := m.secrets[nodeID]
	if !ok {
		set = map[string]struct{}{}
		m.secrets[nodeID] = set
	}
	collectSecrets(value, set)
}

func collectSecrets(value any, set map[string]struct{}) {
	switch v := value.(type) {
	case string:
		if len([]rune(v)) >= MinSecretLength {
			set[v] = struct{}{}
		}
	case []any:
		for _, item := range v {
			collectSecrets(item, set)
		}
	case map[string]any:
		for _, item := range v {
			collectSecrets(item, set)
		}
	}
}

// valueAtPath resolves a dot-separated path into nested objects.
func valueAtPath(value any, path string) (any, bool) {
	current := value
	for _, key := range strings.Split(path, ".") {
		obj, ok := current.(map[string]any)
		if !ok {
			return nil, false
		}
		current, ok = obj[key]
		if !ok {
			return nil, false
		}
	}
	return current, current != nil
}

type masker struct {
	replacer *strings.Replacer
}

func newMasker(secrets map[string]map[string]struct{}) *masker {
	unique := map[string]struct{}{}
	for _, set := range secrets {
		for secret := range set {
			unique[secret] = struct{}{}
		}
	}
	if len(unique) == 0 {
		return &masker{}
	}
	ordered := make([]string, 0, len(unique))
	for secret := range unique {
		ordered = append(ordered, secret)
	}
	// Longest first so a secret containing another is masked whole.
	slices.SortFunc(ordered, func(a, b string) int {
		if c := cmp.Compare(len(b), len(a)); c != 0 {
			return c
		}
		return strings.Compare(a, b)
	})
	pairs := make([]string, 0, 2*len(ordered))
	for _, secret := range ordered {
		pairs = append(pairs, secret, SecretMask)
	}
	return &masker{replacer: strings.NewReplacer(pairs...)}
}

// mask returns a deep copy of value with every secret replaced.
func (k *masker) mask(value any) any {
	switch v := value.(type) {
	case string:
		if k.replacer == nil {
			return v
		}
		return k.replacer.Replace(v)
	case []any:
		out := make([]any, len(v))
		for i, item := range v {
			out[i] = k.mask(item)
		}
		return out
	case map[string]any:
		out := make(map[string]any, len(v))
		for key, item := range v {
			out[key] = k.mask(item)
		}
		return out
	default:
		return v
	}
}
