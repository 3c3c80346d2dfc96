package encbridge

import (
	"context"
	"fmt"
	"net/http"
)

// WHIPResource models a WHIP output's session resource: the `Location`
// URL the WHIP server returned from the initial offer/answer exchange,
// and the DELETE call that tears the session down. The HTTP
// offer/answer exchange itself happens entirely outside the core (spec
// §1 scopes the WebRTC/HTTP signaling layer out); this type is only the
// hook that layer hands back, and Delete ends the session. pkg/pipeline
// does not hold or call it.
type WHIPResource struct {
	Location string
	client   *http.Client
}

// NewWHIPResource wraps a session's Location URL. A nil client defaults
// to http.DefaultClient.
func NewWHIPResource(location string, client *http.Client) *WHIPResource {
	if client == nil {
		client = http.DefaultClient
	}
	return &WHIPResource{Location: location, client: client}
}

// Delete issues the WHIP resource DELETE, ending the remote session.
func (w *WHIPResource) Delete(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, w.Location, nil)
	if err != nil {
		return fmt.Errorf("build WHIP DELETE request: %w", err)
	}
	resp, err := w.client.Do(req)
	if err != nil {
		return fmt.Errorf("WHIP DELETE %s: %w", w.Location, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("WHIP DELETE %s: unexpected status %s", w.Location, resp.Status)
	}
	return nil
}
