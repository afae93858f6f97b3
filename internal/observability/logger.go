package observability

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"
)

// EventType defines the category of the log event.
type EventType string

const (
	EventTypeClassify    EventType = "classify"
	EventTypeRoute       EventType = "route"
	EventTypeHandler     EventType = "handler"
	EventTypeStep        EventType = "step"
	EventTypeSSH         EventType = "ssh"
	EventTypePolicyCheck EventType = "policy_check"
	EventTypePlan        EventType = "plan"
	EventTypeLLM         EventType = "llm"
	EventTypeHeartbeat   EventType = "heartbeat"
)

// Event represents a structured log entry.
type Event struct {
	Type      EventType `json:"type"`
	SessionID string    `json:"session_id,omitempty"`
	Data      any       `json:"data"`
	Timestamp time.Time `json:"timestamp"`
}

// Logger handles structured logging.
type Logger struct {
	llmLogPath string
	maxSize    int64
}

func NewLogger() *Logger {
	return &Logger{
		llmLogPath: filepath.Join("logs", "llm.jsonl"),
		maxSize:    10 * 1024 * 1024, // 10MB
	}
}

// NewLoggerAt keeps the llm sidecar at the given path instead of logs/.
func NewLoggerAt(llmLogPath string) *Logger {
	return &Logger{
		llmLogPath: llmLogPath,
		maxSize:    10 * 1024 * 1024,
	}
}

// Log emits a structured JSON event to stdout.
func (l *Logger) Log(evt Event) {
	if evt.Timestamp.IsZero() {
		evt.Timestamp = time.Now()
	}
	data, err := json.Marshal(evt)
	if err != nil {
		fmt.Printf("{\"error\": \"failed to marshal event: %v\"}\n", err)
		return
	}
	fmt.Println(string(data))

	if evt.Type == EventTypeLLM {
		l.writeToFile(data)
	}
}

func (l *Logger) writeToFile(data []byte) {
	if err := os.MkdirAll(filepath.Dir(l.llmLogPath), 0755); err != nil {
		log.Printf("failed to create log directory: %v", err)
		return
	}

	// Check size before writing
	info, err := os.Stat(l.llmLogPath)
	if err == nil && info.Size() > l.maxSize {
		l.rotateLogs()
	}

	f, err := os.OpenFile(l.llmLogPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		log.Printf("failed to open log file: %v", err)
		return
	}
	defer f.Close()

	if _, err := f.Write(append(data, '\n')); err != nil {
		log.Printf("failed to write to log file: %v", err)
	}
}

func (l *Logger) rotateLogs() {
	// Simple rotation: keep one .old file
	oldPath := l.llmLogPath + ".old"
	_ = os.Remove(oldPath)
	_ = os.Rename(l.llmLogPath, oldPath)
}

// Helper methods for common events

func (l *Logger) LogClassify(sessionID, intent, data string) {
	l.Log(Event{
		Type:      EventTypeClassify,
		SessionID: sessionID,
		Data: map[string]string{
			"intent": intent,
			"data":   data,
		},
	})
}

func (l *Logger) LogRoute(sessionID, intent, handler string) {
	l.Log(Event{
		Type:      EventTypeRoute,
		SessionID: sessionID,
		Data: map[string]string{
			"intent":  intent,
			"handler": handler,
		},
	})
}

func (l *Logger) LogStep(sessionID, step, command, status string, attempt int) {
	l.Log(Event{
		Type:      EventTypeStep,
		SessionID: sessionID,
		Data: map[string]any{
			"step":    step,
			"command": command,
			"status":  status,
			"attempt": attempt,
		},
	})
}

func (l *Logger) LogSSH(sessionID, command string, outputLen int) {
	l.Log(Event{
		Type:      EventTypeSSH,
		SessionID: sessionID,
		Data: map[string]any{
			"command":    command,
			"output_len": outputLen,
		},
	})
}

func (l *Logger) LogPolicyCheck(sessionID, command, effect, reason string) {
	l.Log(Event{
		Type:      EventTypePolicyCheck,
		SessionID: sessionID,
		Data: map[string]string{
			"command": command,
			"effect":  effect,
			"reason":  reason,
		},
	})
}

func (l *Logger) LogPlan(sessionID, vulnID string, stages int, path string) {
	l.Log(Event{
		Type:      EventTypePlan,
		SessionID: sessionID,
		Data: map[string]any{
			"vuln_id": vulnID,
			"stages":  stages,
			"path":    path,
		},
	})
}

func (l *Logger) LogLLM(sessionID string, prompt any, response string) {
	l.Log(Event{
		Type:      EventTypeLLM,
		SessionID: sessionID,
		Data: map[string]any{
			"prompt":   prompt,
			"response": response,
		},
	})
}

func (l *Logger) LogHeartbeat() {
	l.Log(Event{
		Type: EventTypeHeartbeat,
		Data: map[string]string{"status": "alive"},
	})
}
