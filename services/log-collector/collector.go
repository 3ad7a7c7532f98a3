package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// ErrBadTopic: z topicu nejde určit název služby.
var ErrBadTopic = errors.New("neplatný log topic")

// Collector zapisuje přijaté logy do souboru <LogDir>/<služba>.log.
type Collector struct {
	dir    string
	logger *slog.Logger

	// mu serializuje zápisy, aby se řádky dvou zpráv neprolínaly.
	mu sync.Mutex
}

// NewCollector vytvoří adresář pro logy (včetně podadresářů), pokud chybí.
func NewCollector(dir string, logger *slog.Logger) (*Collector, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("adresář pro logy %s: %w", dir, err)
	}
	return &Collector{dir: dir, logger: logger}, nil
}

// HandleMessage zpracuje jednu zprávu z logs/<služba>[/...].
func (c *Collector) HandleMessage(topic string, payload []byte) {
	service, err := serviceFromTopic(topic)
	if err != nil {
		c.logger.Warn("Ignoruji zprávu se špatným formátem topicu", "topic", topic)
		return
	}
	if err := c.append(service, payload); err != nil {
		c.logger.Error("Chyba při zápisu do souboru", "service", service, "error", err)
	}
}

// serviceFromTopic vrátí druhý segment topicu. Povolena jsou jen písmena,
// číslice, '-' a '_', název se pak bezpečně použije jako jméno souboru.
func serviceFromTopic(topic string) (string, error) {
	parts := strings.Split(topic, "/")
	if len(parts) < 2 || parts[1] == "" {
		return "", fmt.Errorf("%w: %q", ErrBadTopic, topic)
	}
	name := parts[1]
	for _, r := range name {
		ok := r == '-' || r == '_' ||
			(r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9')
		if !ok {
			return "", fmt.Errorf("%w: %q", ErrBadTopic, topic)
		}
	}
	return name, nil
}

// append: Open-Write-Close pro každý zápis, snáší rotaci logů zvenku.
func (c *Collector) append(service string, data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	f, err := os.OpenFile(filepath.Join(c.dir, service+".log"), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	// slog JSON handler končí řádek '\n', cizí klient nemusí.
	line := data
	if len(line) == 0 || line[len(line)-1] != '\n' {
		line = append(append(make([]byte, 0, len(data)+1), data...), '\n')
	}
	_, err = f.Write(line)
	return err
}
