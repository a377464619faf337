//go:build ignore

// Smoke test against a running server: go run scripts/test_chat_api.go
package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/fatih/color"
)

var baseURL = "http://localhost:5000/api"

type client struct {
	http      *http.Client
	sessionId string
}

func prettyPrint(v interface{}) {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		fmt.Printf("%v\n", v)
		return
	}
	fmt.Println(string(b))
}

func (c *client) send(method, url string, body interface{}) (map[string]interface{}, error) {
	var bodyReader io.Reader
	if body != nil {
		jsonBody, _ := json.Marshal(body)
		bodyReader = bytes.NewBuffer(jsonBody)
	}

	req, err := http.NewRequest(method, baseURL+url, bodyReader)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.sessionId != "" {
		req.Header.Set("X-Session-Id", c.sessionId)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if id := resp.Header.Get("X-Session-Id"); id != "" {
		c.sessionId = id
	}

	var out map[string]interface{}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode %s: %w", resp.Status, err)
	}
	if resp.StatusCode >= 400 {
		color.Red("Status: %s", resp.Status)
	} else {
		color.Green("Status: %s", resp.Status)
	}
	return out, nil
}

func step(c *client, title, method, url string, body interface{}) map[string]interface{} {
	color.Yellow("\n%s", title)
	res, err := c.send(method, url, body)
	if err != nil {
		color.Red("Failed: %v", err)
		os.Exit(1)
	}
	prettyPrint(res["data"])
	return res
}

func main() {
	if v := os.Getenv("CHAT_API_URL"); v != "" {
		baseURL = v
	}
	c := &client{http: &http.Client{Timeout: 3 * time.Minute}}

	color.Cyan("Starting chat API smoke test against %s\n", baseURL)

	step(c, "1. Initial data", http.MethodGet, "/get_initial_data", nil)
	fmt.Printf("Session: %s\n", c.sessionId)

	step(c, "2. Send without a character (expect 422)", http.MethodPost, "/send_message", map[string]string{"message": "Hello"})
	step(c, "3. Select Assistant", http.MethodPost, "/select_character", map[string]string{"key": "assistant"})
	step(c, "4. Send a message", http.MethodPost, "/send_message", map[string]string{"message": "Say 'it works' in one sentence."})
	step(c, "5. Send an action", http.MethodPost, "/send_message", map[string]string{"message": "*waves*"})
	step(c, "6. Session state", http.MethodGet, "/session", nil)
	step(c, "7. Reset", http.MethodPost, "/reset_chat", nil)
	step(c, "8. Download status", http.MethodGet, "/downloads", nil)
	step(c, "9. Installed models", http.MethodGet, "/models/installed", nil)

	color.Cyan("\nDone.")
}
