package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"cryptvault-client/pkg/id"
)

const (
	headerRequestID = "Ax-Request-Id"
	headerRequestAt = "Ax-Request-At"
	headerAccount   = "Ax-Account"
)

// call sends one request and returns the body when the status is one of ok.
// Mutating requests carry --request-id or a fresh idempotency id.
func call(method, path string, in any, ok ...int) ([]byte, error) {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return nil, err
		}
		body = bytes.NewReader(b)
	}
	req, err := http.NewRequest(method, strings.TrimRight(apiURL, "/")+path, body)
	if err != nil {
		return nil, err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if method != http.MethodGet {
		rid := requestID
		if rid == "" {
			rid = id.NewID32()
		}
		req.Header.Set(headerRequestID, rid)
		req.Header.Set(headerRequestAt, strconv.FormatInt(time.Now().UTC().UnixMilli(), 10))
		if account != "" {
			req.Header.Set(headerAccount, account)
		}
	}

	resp, err := httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("API request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}
	for _, code := range ok {
		if resp.StatusCode == code {
			return raw, nil
		}
	}
	return nil, handleErrorResponse(resp.StatusCode, raw)
}

func handleErrorResponse(statusCode int, body []byte) error {
	var errResp struct {
		Error   string `json:"error"`
		Details []struct {
			Field   string `json:"field"`
			Message string `json:"message"`
		} `json:"details"`
	}
	if err := json.NewDecoder(bytes.NewReader(body)).Decode(&errResp); err == nil && errResp.Error != "" {
		msg := errResp.Error
		for _, d := range errResp.Details {
			msg += fmt.Sprintf("; %s %s", d.Field, d.Message)
		}
		return fmt.Errorf("Error: %s", msg)
	}
	return fmt.Errorf("Error: server returned status %d", statusCode)
}
