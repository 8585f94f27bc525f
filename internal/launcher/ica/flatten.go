package ica

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/wesman-labs/wesman-go/internal/domain"
)

// FlattenUserTags converts caller-supplied tags into the flat snake_case
// key/value form the platform accepts: camelCase keys become snake_case and
// list values are expanded into indexed "key.N" entries.
func FlattenUserTags(tags domain.Metadata) map[string]any {
	flat := make(map[string]any, len(tags))
	for key, value := range tags {
		key = camelToSnake(key)
		list, ok := value.([]any)
		if !ok {
			flat[key] = value
			continue
		}
		for i, item := range list {
			flat[fmt.Sprintf("%s.%d", key, i)] = item
		}
	}
	return flat
}

func camelToSnake(key string) string {
	var b strings.Builder
	for _, r := range key {
		if unicode.IsUpper(r) {
			b.WriteByte('_')
			b.WriteRune(unicode.ToLower(r))
			continue
		}
		b.WriteRune(r)
	}
	return strings.TrimPrefix(b.String(), "_")
}
