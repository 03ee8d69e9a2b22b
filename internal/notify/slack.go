package notify

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/johndauphine/demo-import/internal/config"
)

const footer = "demo-import"

// Notifier sends notifications to Slack
type Notifier struct {
	config     *config.SlackConfig
	httpClient *http.Client
}

// SlackMessage represents a Slack webhook message
type SlackMessage struct {
	Channel     string            `json:"channel,omitempty"`
	Username    string            `json:"username,omitempty"`
	IconEmoji   string            `json:"icon_emoji,omitempty"`
	Text        string            `json:"text,omitempty"`
	Attachments []SlackAttachment `json:"attachments,omitempty"`
}

// SlackAttachment represents a Slack message attachment
type SlackAttachment struct {
	Color     string       `json:"color,omitempty"`
	Title     string       `json:"title,omitempty"`
	Text      string       `json:"text,omitempty"`
	Fields    []SlackField `json:"fields,omitempty"`
	Footer    string       `json:"footer,omitempty"`
	Timestamp int64        `json:"ts,omitempty"`
}

// SlackField represents a field in a Slack attachment
type SlackField struct {
	Title string `json:"title"`
	Value string `json:"value"`
	Short bool   `json:"short"`
}

// New creates a new Slack notifier
func New(cfg *config.SlackConfig) *Notifier {
	if cfg == nil {
		cfg = &config.SlackConfig{Enabled: false}
	}
	return &Notifier{
		config: cfg,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// IsEnabled returns true if notifications are enabled
func (n *Notifier) IsEnabled() bool {
	return n.config != nil && n.config.Enabled && n.config.WebhookURL != ""
}

// ImportStarted sends notification when an import begins fetching
func (n *Notifier) ImportStarted(runID, target string, threadCount int) error {
	if !n.IsEnabled() {
		return nil
	}

	return n.send(SlackMessage{
		Channel:   n.config.Channel,
		Username:  n.getUsername(),
		IconEmoji: ":inbox_tray:",
		Attachments: []SlackAttachment{
			{
				Color: "#36a64f", // green
				Title: "Demo Import Started",
				Fields: []SlackField{
					{Title: "Run ID", Value: runID, Short: true},
					{Title: "Threads", Value: fmt.Sprintf("%d", threadCount), Short: true},
					{Title: "Target", Value: target, Short: false},
				},
				Footer:    footer,
				Timestamp: time.Now().Unix(),
			},
		},
	})
}

// ImportCompleted sends notification when the migration file is written
func (n *Notifier) ImportCompleted(s Summary) error {
	if !n.IsEnabled() {
		return nil
	}

	artifact := s.Artifact
	if artifact == "" {
		artifact = "(dry run, nothing written)"
	}
	headerText := fmt.Sprintf("Demo import generated %d threads, %d messages, %d projects and %d agent runs.",
		s.Threads, s.Messages, s.Projects, s.AgentRuns)

	return n.send(SlackMessage{
		Channel:   n.config.Channel,
		Username:  n.getUsername(),
		IconEmoji: ":white_check_mark:",
		Text:      headerText,
		Attachments: []SlackAttachment{
			{
				Color: "#36a64f", // green
				Fields: []SlackField{
					{Title: "Run ID", Value: s.RunID, Short: true},
					{Title: "Started", Value: s.StartTime.UTC().Format("2006-01-02 15:04:05 UTC"), Short: true},
					{Title: "Duration", Value: formatDuration(s.Duration), Short: true},
					{Title: "Messages", Value: formatNumberWithCommas(int64(s.Messages)), Short: true},
					{Title: "Migration", Value: artifact, Short: false},
				},
				Footer:    footer,
				Timestamp: time.Now().Unix(),
			},
		},
	})
}

// ImportFailed sends notification when an import aborts
func (n *Notifier) ImportFailed(runID string, err error, duration time.Duration) error {
	if !n.IsEnabled() {
		return nil
	}

	errMsg := "Unknown error"
	if err != nil {
		errMsg = err.Error()
		if len(errMsg) > 500 {
			errMsg = errMsg[:500] + "..."
		}
	}

	return n.send(SlackMessage{
		Channel:   n.config.Channel,
		Username:  n.getUsername(),
		IconEmoji: ":x:",
		Attachments: []SlackAttachment{
			{
				Color: "#dc3545", // red
				Title: "Demo Import Failed",
				Fields: []SlackField{
					{Title: "Run ID", Value: runID, Short: true},
					{Title: "Duration", Value: formatDuration(duration), Short: true},
					{Title: "Error", Value: errMsg, Short: false},
				},
				Footer:    footer,
				Timestamp: time.Now().Unix(),
			},
		},
	})
}

func (n *Notifier) send(msg SlackMessage) error {
	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshaling message: %w", err)
	}

	resp, err := n.httpClient.Post(n.config.WebhookURL, "application/json", bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("sending to Slack: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("Slack returned status %d", resp.StatusCode)
	}

	return nil
}

func (n *Notifier) getUsername() string {
	if n.config.Username != "" {
		return n.config.Username
	}
	return footer
}

func formatNumberWithCommas(n int64) string {
	str := fmt.Sprintf("%d", n)
	if len(str) <= 3 {
		return str
	}

	var result []byte
	for i, c := range str {
		if i > 0 && (len(str)-i)%3 == 0 {
			result = append(result, ',')
		}
		result = append(result, byte(c))
	}
	return string(result)
}

func formatDuration(d time.Duration) string {
	d = d.Round(time.Second)
	m := d / time.Minute
	d -= m * time.Minute
	s := d / time.Second

	if m > 0 {
		return fmt.Sprintf("%dm %ds", m, s)
	}
	return fmt.Sprintf("%ds", s)
}
