package core

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/JonMunkholm/jsonlcopy/internal/jsonl"
)

// HandlerFunc returns a format's routine table for one direction.
type HandlerFunc func(dir jsonl.Direction) jsonl.Routine

var (
	formats   = make(map[string]HandlerFunc)
	formatsMu sync.RWMutex
)

func init() {
	RegisterFormat("jsonlines", jsonl.Handler)
	RegisterFormat("jsonl", jsonl.Handler)
}

// RegisterFormat adds a copy format under name. Names are case-insensitive.
// Panics if the name is already registered.
func RegisterFormat(name string, h HandlerFunc) {
	formatsMu.Lock()
	defer formatsMu.Unlock()

	key := strings.ToLower(name)
	if _, exists := formats[key]; exists {
		panic(fmt.Sprintf("copy format already registered: %s", name))
	}
	formats[key] = h
}

// LookupFormat returns the handler registered under name.
func LookupFormat(name string) (HandlerFunc, bool) {
	formatsMu.RLock()
	defer formatsMu.RUnlock()

	h, ok := formats[strings.ToLower(name)]
	return h, ok
}

// Formats returns the registered format names, sorted.
func Formats() []string {
	formatsMu.RLock()
	defer formatsMu.RUnlock()

	names := make([]string, 0, len(formats))
	for name := range formats {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// unregisterFormat removes a format. Tests only.
func unregisterFormat(name string) {
	formatsMu.Lock()
	defer formatsMu.Unlock()
	delete(formats, strings.ToLower(name))
}
