// Package i18n holds the user-facing message templates.
package i18n

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

//go:embed messages.yaml
var defaultMessages []byte

// Catalog formats messages by key. Safe for concurrent use.
type Catalog struct {
	mu       sync.RWMutex
	messages map[string]string
}

// Default returns a catalog with only the built-in messages.
func Default() *Catalog {
	messages, err := parse(defaultMessages)
	if err != nil {
		panic(fmt.Sprintf("i18n: built-in messages: %v", err))
	}
	return &Catalog{messages: messages}
}

// Load returns the built-in messages overlaid with the file at path.
// A missing file is not an error; an empty path skips the overlay.
func Load(path string) (*Catalog, error) {
	c := Default()
	if err := c.Reload(path); err != nil {
		return nil, err
	}
	return c, nil
}

// Reload rebuilds the catalog from the built-in messages and the file at path.
func (c *Catalog) Reload(path string) error {
	messages, err := parse(defaultMessages)
	if err != nil {
		return err
	}
	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			overrides, err := parse(data)
			if err != nil {
				return fmt.Errorf("messages file %s: %w", path, err)
			}
			for k, v := range overrides {
				messages[k] = v
			}
		case errors.Is(err, fs.ErrNotExist):
		default:
			return fmt.Errorf("read messages file: %w", err)
		}
	}

	c.mu.Lock()
	c.messages = messages
	c.mu.Unlock()
	return nil
}

func parse(data []byte) (map[string]string, error) {
	messages := make(map[string]string)
	if err := yaml.Unmarshal(data, &messages); err != nil {
		return nil, fmt.Errorf("parse messages: %w", err)
	}
	return messages, nil
}

// Has reports whether key is defined.
func (c *Catalog) Has(key string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.messages[key]
	return ok
}

// Format renders key, replacing {0}, {1}, ... with args. An unknown key
// renders as the key itself.
func (c *Catalog) Format(key string, args ...any) string {
	c.mu.RLock()
	tmpl, ok := c.messages[key]
	c.mu.RUnlock()
	if !ok {
		return key
	}
	if len(args) == 0 {
		return tmpl
	}

	pairs := make([]string, 0, len(args)*2)
	for i, arg := range args {
		pairs = append(pairs, "{"+strconv.Itoa(i)+"}", fmt.Sprint(arg))
	}
	return strings.NewReplacer(pairs...).Replace(tmpl)
}

// Info renders key behind the informational prefix.
func (c *Catalog) Info(key string, args ...any) string {
	return c.Format("prefix.info") + c.Format(key, args...)
}

// Error renders key behind the error prefix.
func (c *Catalog) Error(key string, args ...any) string {
	return c.Format("prefix.error") + c.Format(key, args...)
}
