package supervisor

import "context"

// Offline is the standalone-mode stand-in for a Link: never ready, every
// typed send fails fast. Used when no supervisor URL is configured.
type Offline struct{}

func (Offline) Ready() bool  { return false }
func (Offline) State() State { return StateDisconnected }
func (Offline) Stats() Stats { return Stats{State: StateDisconnected} }
func (Offline) Stop()        {}

func (Offline) SendSMSEvent(context.Context, string, string, string, string) (*Result, error) {
	return nil, ErrNotReady
}

func (Offline) SendEmailEvent(context.Context, string, string, string, string, string) (*Result, error) {
	return nil, ErrNotReady
}
