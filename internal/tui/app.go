// Package tui provides the terminal user interface for Weft runs.
package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/ShayCichocki/weft/internal/orchestrator"
	"github.com/ShayCichocki/weft/pkg/models"
)

// EventMsg wraps an orchestrator event for the TUI.
type EventMsg struct {
	Event orchestrator.Event
}

// DoneMsg signals that the run has completed.
type DoneMsg struct {
	Summary *models.OutcomeSummary
	Err     error
}

// LogEntry represents a log message displayed below the task list.
type LogEntry struct {
	Timestamp time.Time
	Message   string
}

// taskRow tracks display state for one task.
type taskRow struct {
	id          string
	description string
	status      models.TaskStatus
	attempt     int
}

// App is the main bubbletea model for a Weft run.
type App struct {
	// events delivers orchestrator events to the update loop.
	events <-chan orchestrator.Event
	// done delivers the final outcome.
	done <-chan DoneMsg

	// request is the original user request shown in the header.
	request string
	// rows is the ordered task display list.
	rows []*taskRow
	// index maps task ID to position in rows.
	index map[string]int
	// logs is the rolling log tail.
	logs []LogEntry
	// spin animates while tasks are running.
	spin spinner.Model
	// width is the terminal width.
	width int
	// finished indicates the run completed.
	finished bool
	// summary holds the final outcome once finished.
	summary *models.OutcomeSummary
	// runErr holds the fatal error if the run failed outright.
	runErr error
	// quitting indicates the app is shutting down.
	quitting bool
}

const maxLogLines = 8

// New creates an App wired to an orchestrator's event stream. The done
// channel must receive exactly one DoneMsg when the run finishes.
func New(request string, events <-chan orchestrator.Event, done <-chan DoneMsg) *App {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = spinnerStyle

	return &App{
		events:  events,
		done:    done,
		request: request,
		index:   make(map[string]int),
		spin:    s,
		width:   80,
	}
}

// Init implements tea.Model.
func (a *App) Init() tea.Cmd {
	return tea.Batch(a.spin.Tick, a.waitForEvent(), a.waitForDone())
}

// waitForEvent returns a command that blocks on the next orchestrator event.
func (a *App) waitForEvent() tea.Cmd {
	return func() tea.Msg {
		event, ok := <-a.events
		if !ok {
			return nil
		}
		return EventMsg{Event: event}
	}
}

// waitForDone returns a command that blocks until the run finishes.
func (a *App) waitForDone() tea.Cmd {
	return func() tea.Msg {
		return <-a.done
	}
}

// Update implements tea.Model.
func (a *App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			a.quitting = true
			return a, tea.Quit
		}

	case tea.WindowSizeMsg:
		a.width = msg.Width

	case spinner.TickMsg:
		if a.finished {
			return a, nil
		}
		var cmd tea.Cmd
		a.spin, cmd = a.spin.Update(msg)
		return a, cmd

	case EventMsg:
		a.applyEvent(msg.Event)
		return a, a.waitForEvent()

	case DoneMsg:
		a.finished = true
		a.summary = msg.Summary
		a.runErr = msg.Err
		return a, tea.Quit
	}

	return a, nil
}

// applyEvent folds one orchestrator event into display state.
func (a *App) applyEvent(event orchestrator.Event) {
	switch event.Type {
	case orchestrator.EventPlanCreated:
		a.log(event.Timestamp, event.Message)

	case orchestrator.EventTaskStarted:
		a.upsert(event.TaskID, event.Description, models.TaskStatusRunning, event.Attempt)

	case orchestrator.EventTaskCompleted:
		a.upsert(event.TaskID, event.Description, models.TaskStatusCompleted, event.Attempt)

	case orchestrator.EventTaskFailed:
		a.upsert(event.TaskID, event.Description, models.TaskStatusFailed, event.Attempt)
		if event.Err != nil {
			a.log(event.Timestamp, fmt.Sprintf("%s failed: %v", event.TaskID, event.Err))
		}

	case orchestrator.EventTaskRetrying:
		a.upsert(event.TaskID, event.Description, models.TaskStatusRunning, event.Attempt)
		a.log(event.Timestamp, fmt.Sprintf("%s retrying (attempt %d)", event.TaskID, event.Attempt))

	case orchestrator.EventTaskSkipped:
		a.upsert(event.TaskID, event.Description, models.TaskStatusSkipped, event.Attempt)

	case orchestrator.EventRunDone:
		a.log(event.Timestamp, event.Message)
	}
}

// upsert updates a task row, creating it on first sight.
func (a *App) upsert(id, description string, status models.TaskStatus, attempt int) {
	if i, ok := a.index[id]; ok {
		a.rows[i].status = status
		if attempt > a.rows[i].attempt {
			a.rows[i].attempt = attempt
		}
		if description != "" {
			a.rows[i].description = description
		}
		return
	}
	a.index[id] = len(a.rows)
	a.rows = append(a.rows, &taskRow{
		id:          id,
		description: description,
		status:      status,
		attempt:     attempt,
	})
}

func (a *App) log(ts time.Time, message string) {
	if message == "" {
		return
	}
	if ts.IsZero() {
		ts = time.Now()
	}
	a.logs = append(a.logs, LogEntry{Timestamp: ts, Message: message})
	if len(a.logs) > maxLogLines {
		a.logs = a.logs[len(a.logs)-maxLogLines:]
	}
}

// View implements tea.Model.
func (a *App) View() string {
	if a.quitting {
		return ""
	}

	var b strings.Builder

	b.WriteString(headerStyle.Render("weft"))
	b.WriteString(" ")
	b.WriteString(requestStyle.Render(truncateLine(a.request, a.width-8)))
	b.WriteString("\n\n")

	for _, row := range a.rows {
		b.WriteString(a.renderRow(row))
		b.WriteString("\n")
	}

	if len(a.logs) > 0 {
		b.WriteString("\n")
		for _, entry := range a.logs {
			line := entry.Timestamp.Format("15:04:05") + " " + entry.Message
			b.WriteString(logStyle.Render(truncateLine(line, a.width-2)))
			b.WriteString("\n")
		}
	}

	b.WriteString("\n")
	if a.finished {
		b.WriteString(a.renderSummary())
	} else {
		b.WriteString(helpStyle.Render("q quit"))
	}
	b.WriteString("\n")

	return b.String()
}

func (a *App) renderRow(row *taskRow) string {
	var marker string
	switch row.status {
	case models.TaskStatusRunning:
		marker = a.spin.View()
	case models.TaskStatusCompleted:
		marker = okStyle.Render("✓")
	case models.TaskStatusFailed:
		marker = failStyle.Render("✗")
	case models.TaskStatusSkipped:
		marker = skipStyle.Render("-")
	default:
		marker = pendingStyle.Render("·")
	}

	line := fmt.Sprintf(" %s %s", marker, truncateLine(row.description, a.width-12))
	if row.attempt > 1 {
		line += attemptStyle.Render(fmt.Sprintf(" (attempt %d)", row.attempt))
	}
	return line
}

func (a *App) renderSummary() string {
	if a.runErr != nil {
		return failStyle.Render("run failed: " + a.runErr.Error())
	}
	if a.summary == nil {
		return failStyle.Render("run aborted")
	}

	line := fmt.Sprintf("%d succeeded, %d failed, %d skipped in %s",
		a.summary.SuccessCount, a.summary.FailCount, a.summary.SkippedCount,
		a.summary.Duration.Round(time.Millisecond))
	if a.summary.Succeeded() {
		return okStyle.Render(line)
	}
	return failStyle.Render(line)
}

// Summary returns the final outcome once the program has exited.
func (a *App) Summary() (*models.OutcomeSummary, error) {
	return a.summary, a.runErr
}

func truncateLine(s string, maxLen int) string {
	if maxLen <= 3 {
		return s
	}
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-3] + "..."
}
