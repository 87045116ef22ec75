package wallet

import (
	"time"

	"zendex/pkg/models"
)

// Status kinds published while a handshake runs.
const (
	StatusConnecting       = "connecting"
	StatusSwitchingNetwork = "switching_network"
	StatusConnected        = "connected"
	StatusFailed           = "failed"
)

// StatusNotifier receives advisory progress messages. Clearing them is the
// receiver's business.
type StatusNotifier interface {
	Notify(status models.Status)
}

// NotifierFunc adapts a function to StatusNotifier.
type NotifierFunc func(models.Status)

func (f NotifierFunc) Notify(status models.Status) { f(status) }

type nopNotifier struct{}

func (nopNotifier) Notify(models.Status) {}

func newStatus(kind, message string) models.Status {
	return models.Status{Kind: kind, Message: message, At: time.Now()}
}
