// Package lang provides the localized-string lookup for all user-facing
// messages. The catalog is compiled into the binary; the host platform is
// expected to swap it per locale.
package lang

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"time"
)

//go:embed catalog/en.json
var catalogEN []byte

type Lang struct {
	messages map[string]string
}

func New() (*Lang, error) {
	const op = "lang.New"

	var messages map[string]string
	if err := json.Unmarshal(catalogEN, &messages); err != nil {
		return nil, fmt.Errorf("%s: failed to parse message catalog: %w", op, err)
	}

	return &Lang{messages: messages}, nil
}

// Get returns the localized message for the key.
// Unknown keys fall back to the key itself so a missing translation
// stays visible instead of rendering an empty message.
func (l *Lang) Get(key string) string {
	if msg, ok := l.messages[key]; ok {
		return msg
	}
	return key
}

// FormatDate renders an epoch-second timestamp with the catalog's date layout.
func (l *Lang) FormatDate(epoch int64) string {
	return time.Unix(epoch, 0).Format(l.Get("date_format"))
}
