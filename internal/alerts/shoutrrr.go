package alerts

import (
	"fmt"
	"strings"

	"github.com/containrrr/shoutrrr"
)

// ShoutrrrSender delivers alerts to one or more shoutrrr service URLs
// (telegram://token@telegram?chats=..., discord://..., and so on).
type ShoutrrrSender struct {
	urls []string
}

// NewShoutrrrSender parses a comma-separated URL list. Returns nil when the
// list is empty so callers can skip wiring the transport.
func NewShoutrrrSender(urlList string) *ShoutrrrSender {
	var urls []string
	for _, raw := range strings.Split(urlList, ",") {
		if u := strings.TrimSpace(raw); u != "" {
			urls = append(urls, u)
		}
	}
	if len(urls) == 0 {
		return nil
	}
	return &ShoutrrrSender{urls: urls}
}

// Send pushes the alert to every configured URL, joining failures into one
// error so the dispatcher logs them together.
func (s *ShoutrrrSender) Send(subject, body string) error {
	msg := subject + "\n\n" + body
	var errs []string
	for _, url := range s.urls {
		if err := shoutrrr.Send(url, msg); err != nil {
			errs = append(errs, err.Error())
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("shoutrrr send: %s", strings.Join(errs, "; "))
	}
	return nil
}
