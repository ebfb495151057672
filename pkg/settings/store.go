// Package settings persists user-supplied dashboard configuration to a flat
// KEY=VALUE file shared with the containerized services.
package settings

import (
	"bufio"
	"fmt"
	"os"
	"strings"
	"sync"
)

// Settings is the fixed recognized key set. Values are kept as strings because
// the file format is untyped; callers parse budgets where needed.
type Settings struct {
	OpenAIKey       string `json:"openaiApiKey"`
	MetaAccessToken string `json:"metaAccessToken"`
	KieAIKey        string `json:"kieAiApiKey"`
	DailyBudget     string `json:"dailyBudget"`
	AdsPerDay       string `json:"adsPerDay"`
}

// fileKeys maps external file keys to setters/getters on Settings, in the
// stable order the file is written.
var fileKeys = []string{
	"OPENAI_API_KEY",
	"META_ACCESS_TOKEN",
	"KIE_AI_API_KEY",
	"DAILY_BUDGET",
	"ADS_PER_DAY",
}

func (s *Settings) get(key string) string {
	switch key {
	case "OPENAI_API_KEY":
		return s.OpenAIKey
	case "META_ACCESS_TOKEN":
		return s.MetaAccessToken
	case "KIE_AI_API_KEY":
		return s.KieAIKey
	case "DAILY_BUDGET":
		return s.DailyBudget
	case "ADS_PER_DAY":
		return s.AdsPerDay
	}
	return ""
}

func (s *Settings) set(key, value string) bool {
	switch key {
	case "OPENAI_API_KEY":
		s.OpenAIKey = value
	case "META_ACCESS_TOKEN":
		s.MetaAccessToken = value
	case "KIE_AI_API_KEY":
		s.KieAIKey = value
	case "DAILY_BUDGET":
		s.DailyBudget = value
	case "ADS_PER_DAY":
		s.AdsPerDay = value
	default:
		return false
	}
	return true
}

// Store reads and rewrites the settings file. Values containing '=' or
// newlines are unsupported by the format; that is a documented constraint.
type Store struct {
	path string
	mu   sync.Mutex
}

// NewStore binds a store to path. The file need not exist yet.
func NewStore(path string) *Store {
	return &Store{path: path}
}

// Load parses the file into a Settings record. Blank lines and '#' comments
// are ignored; unrecognized keys are dropped from the returned record but are
// preserved by Save.
func (st *Store) Load() (Settings, error) {
	st.mu.Lock()
	defer st.mu.Unlock()
	s, _, err := st.read()
	return s, err
}

func (st *Store) read() (Settings, []string, error) {
	var s Settings
	var extra []string

	f, err := os.Open(st.path)
	if err != nil {
		if os.IsNotExist(err) {
			return s, nil, nil
		}
		return s, nil, fmt.Errorf("open settings: %w", err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		key, value, found := strings.Cut(line, "=")
		if !found {
			continue
		}
		key = strings.TrimSpace(key)
		value = strings.TrimSpace(value)
		if !s.set(key, value) {
			// Unknown keys survive re-save verbatim to avoid silent data loss.
			extra = append(extra, key+"="+value)
		}
	}
	if err := scanner.Err(); err != nil {
		return s, nil, fmt.Errorf("read settings: %w", err)
	}
	return s, extra, nil
}

// Save merges non-empty fields of update over the stored settings and rewrites
// the whole file. Empty fields leave stored values untouched.
func (st *Store) Save(update Settings) (Settings, error) {
	st.mu.Lock()
	defer st.mu.Unlock()

	current, extra, err := st.read()
	if err != nil {
		return Settings{}, err
	}

	for _, key := range fileKeys {
		if v := update.get(key); v != "" {
			current.set(key, v)
		}
	}

	var b strings.Builder
	for _, key := range fileKeys {
		if v := current.get(key); v != "" {
			fmt.Fprintf(&b, "%s=%s\n", key, v)
		}
	}
	for _, line := range extra {
		b.WriteString(line)
		b.WriteByte('\n')
	}

	if err := os.WriteFile(st.path, []byte(b.String()), 0o600); err != nil {
		return Settings{}, fmt.Errorf("write settings: %w", err)
	}
	return current, nil
}
