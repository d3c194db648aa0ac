package game

import (
	"time"

	"github.com/AmatanHead/points-game/pkg/log"
)

// Alert titles, one per user action that can fail.
const (
	AlertTitleCreate = "Error when creating a contract"
	AlertTitleUpdate = "Error when updating the game"
	AlertTitleMove   = "Error when running move function"
	AlertTitleDraw   = "Error when running draw function"
	AlertTitleResign = "Error when running resign function"
	AlertTitleTrack  = "Error when tracking transaction"
)

// Alert is a user-visible failure.
type Alert struct {
	Title   string `json:"title"`
	Message string `json:"message"`
	// Time is a unix timestamp in milliseconds
	Time int64 `json:"time"`
}

// AlertSink is notified of every alert as it is raised, in addition to the
// alert being queued.
type AlertSink interface {
	OnAlert(alert *Alert)
}

func (s *Session) alert(title string, err error) {
	a := &Alert{
		Title:   title,
		Message: err.Error(),
		Time:    time.Now().UnixMilli(),
	}
	log.Warn("%s: %s", a.Title, a.Message)

	if err := s.alerts.Enqueue(a); err != nil {
		log.Error("Failed to enqueue alert: %v", err)
	}
	if s.alertSink != nil {
		s.alertSink.OnAlert(a)
	}
}

// Alerts drains the alerts raised since the last call.
func (s *Session) Alerts() ([]*Alert, error) {
	items, err := s.alerts.ReadAllMessages()
	if err != nil {
		return nil, err
	}
	alerts := make([]*Alert, 0, len(items))
	for _, item := range items {
		a, ok := item.(*Alert)
		if !ok {
			log.Error("Unexpected alert type %T", item)
			continue
		}
		alerts = append(alerts, a)
	}
	return alerts, nil
}
