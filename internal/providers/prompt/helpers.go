package prompt

import (
	"encoding/json"
	"errors"
	"strings"
)

// jsonObject returns the outermost {...} of a model reply. Strict schema
// output is normally bare JSON, but some deployments still wrap it in a
// markdown fence.
func jsonObject(reply string) ([]byte, error) {
	text := stripFence(strings.TrimSpace(reply))
	start, end := strings.IndexByte(text, '{'), strings.LastIndexByte(text, '}')
	if start < 0 || end < start {
		return nil, errors.New("no json object in reply")
	}
	obj := []byte(text[start : end+1])
	if !json.Valid(obj) {
		return nil, errors.New("reply is not valid json")
	}
	return obj, nil
}

func stripFence(text string) string {
	body, ok := strings.CutPrefix(text, "```")
	if !ok {
		return text
	}
	// Drop the info string ("json", "JSON", ...) on the fence line.
	if nl := strings.IndexByte(body, '\n'); nl >= 0 {
		body = body[nl+1:]
	}
	body, _ = strings.CutSuffix(strings.TrimSpace(body), "```")
	return strings.TrimSpace(body)
}
