package event

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/chainagent/chainagent/internal/eventbus"
)

// AuditLog appends every domain event to a daily NDJSON file, giving
// operators a replayable trail of grants, delegations, and swaps
// independent of the record store.
type AuditLog struct {
	logDir string
	mu     sync.Mutex
}

func NewAuditLog(logDir string) (*AuditLog, error) {
	if err := os.MkdirAll(logDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create audit log directory: %w", err)
	}
	return &AuditLog{logDir: logDir}, nil
}

func (a *AuditLog) write(ev *eventbus.Event) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	entry := struct {
		*eventbus.Event
		LoggedAt string `json:"loggedAt"`
	}{
		Event:    ev,
		LoggedAt: time.Now().Format(time.RFC3339),
	}
	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	file, err := os.OpenFile(a.filePath(ev.CreatedAt), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("failed to open audit log file: %w", err)
	}
	defer file.Close()

	if _, err := file.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("failed to write audit log entry: %w", err)
	}
	return nil
}

func (a *AuditLog) filePath(ts time.Time) string {
	return filepath.Join(a.logDir, fmt.Sprintf("events_%s.ndjson", ts.UTC().Format("2006-01-02")))
}

// Run subscribes to the bus and appends events until ctx is cancelled.
func (a *AuditLog) Run(ctx context.Context, bus *eventbus.Bus) error {
	id, events := bus.Subscribe(auditBuffer)
	defer bus.Unsubscribe(id)

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-events:
			if !ok {
				return nil
			}
			if err := a.write(ev); err != nil {
				slog.WarnContext(ctx, "failed to append audit log entry", "id", ev.ID, "error", err)
			}
		}
	}
}

const auditBuffer = 256

// ReadDay returns the events logged on a UTC calendar day, oldest
// first. A missing file means no events, not an error.
func (a *AuditLog) ReadDay(date time.Time) ([]*eventbus.Event, error) {
	data, err := os.ReadFile(a.filePath(date))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read audit log file: %w", err)
	}

	var events []*eventbus.Event
	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		var entry struct {
			*eventbus.Event
			LoggedAt string `json:"loggedAt"`
		}
		if err := json.Unmarshal([]byte(line), &entry); err != nil {
			slog.Warn("skipping malformed audit log entry", "error", err)
			continue
		}
		events = append(events, entry.Event)
	}
	return events, nil
}
