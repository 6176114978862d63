package transcribe

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// modelEndpointPaths are the endpoint shapes different gateway deployments
// expose, probed in order.
var modelEndpointPaths = []string{
	"/v1/models",
	"/models",
	"/model/info",
	"/v1/model/info",
}

// speechModelKeywords mark model ids that look like speech models.
var speechModelKeywords = []string{"whisper", "speech", "audio", "transcription", "stt"}

// ListModels probes the known model-discovery endpoints and normalizes the
// differing response schemas into a flat id list, preferring speech models.
// Best effort: it returns an explicit success flag plus a human-readable
// message and never fails hard.
func (c *Client) ListModels(ctx context.Context) (bool, []string, string) {
	if errs := c.ConfigErrors(); len(errs) > 0 {
		return false, nil, "configuration errors: " + strings.Join(errs, ", ")
	}

	base := strings.TrimRight(c.cfg.APIBase, "/")
	for _, path := range modelEndpointPaths {
		endpoint := base + path

		models, status, err := c.fetchModels(ctx, endpoint)
		if err != nil {
			c.logger.Debug("model endpoint unreachable", "endpoint", endpoint, "error", err.Error())
			continue
		}
		switch status {
		case http.StatusOK:
			if len(models) == 0 {
				continue
			}
			if speech := filterSpeechModels(models); len(speech) > 0 {
				return true, speech, fmt.Sprintf("found %d speech models from %s", len(speech), endpoint)
			}
			return true, models, fmt.Sprintf("found %d models from %s", len(models), endpoint)
		case http.StatusUnauthorized:
			return false, nil, "invalid API key for models endpoint"
		default:
			// 404 and friends: endpoint shape not offered here, try the next.
			continue
		}
	}
	return false, nil, "no model endpoints are available or working"
}

// fetchModels performs one discovery request and decodes its body.
func (c *Client) fetchModels(ctx context.Context, endpoint string) ([]string, int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, 0, err
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	req.Header.Set("X-Key-Alias", c.cfg.KeyAlias)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return nil, resp.StatusCode, nil
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, 0, err
	}
	return decodeModelList(body), resp.StatusCode, nil
}

// decodeModelList tries each known response schema as an explicit variant:
// OpenAI-style {"data":[{"id":...}]}, a bare string list, then a keyed
// object. Unknown shapes decode to nil.
func decodeModelList(body []byte) []string {
	if models := decodeOpenAISchema(body); len(models) > 0 {
		return models
	}
	if models := decodeBareListSchema(body); len(models) > 0 {
		return models
	}
	return decodeKeyedObjectSchema(body)
}

func decodeOpenAISchema(body []byte) []string {
	var parsed struct {
		Data []struct {
			ID string `json:"id"`
		} `json:"data"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil
	}
	var models []string
	for _, entry := range parsed.Data {
		if entry.ID != "" {
			models = append(models, entry.ID)
		}
	}
	return models
}

func decodeBareListSchema(body []byte) []string {
	var parsed []string
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil
	}
	var models []string
	for _, entry := range parsed {
		if entry != "" {
			models = append(models, entry)
		}
	}
	return models
}

func decodeKeyedObjectSchema(body []byte) []string {
	var parsed map[string]json.RawMessage
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil
	}
	for _, key := range []string{"models", "available_models", "model_list"} {
		raw, ok := parsed[key]
		if !ok {
			continue
		}
		if models := decodeBareListSchema(raw); len(models) > 0 {
			return models
		}
	}
	if raw, ok := parsed["id"]; ok {
		var id string
		if err := json.Unmarshal(raw, &id); err == nil && id != "" {
			return []string{id}
		}
	}
	return nil
}

// filterSpeechModels keeps ids that look like speech/transcription models.
func filterSpeechModels(models []string) []string {
	var speech []string
	for _, model := range models {
		lowered := strings.ToLower(model)
		for _, keyword := range speechModelKeywords {
			if strings.Contains(lowered, keyword) {
				speech = append(speech, model)
				break
			}
		}
	}
	return speech
}
