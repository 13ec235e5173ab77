package advisor

import (
	"context"
	"encoding/json"
	"fmt"
)

// ingestedEvent подмножество события measurements.ingested, нужное советнику
type ingestedEvent struct {
	UserID   string   `json:"user_id"`
	Accepted int      `json:"accepted"`
	Sites    []string `json:"sites"`
}

// HandleIngestedEvent перепроверяет сайты, по которым только что пришли замеры
func (r *Runner) HandleIngestedEvent(ctx context.Context, data []byte) error {
	var event ingestedEvent
	if err := json.Unmarshal(data, &event); err != nil {
		return fmt.Errorf("decode ingested event: %w", err)
	}
	if event.UserID == "" || event.Accepted == 0 || len(event.Sites) == 0 {
		return nil
	}

	_, err := r.RunSites(ctx, event.UserID, event.Sites)
	return err
}
