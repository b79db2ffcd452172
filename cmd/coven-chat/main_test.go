// ABOUTME: Tests for the coven-chat startup output
// ABOUTME: Checks the banner reports the endpoint the client actually targets

package main

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/2389/coven-chat/internal/agent"
)

func TestPrintBanner(t *testing.T) {
	var buf bytes.Buffer
	client := agent.NewClient("", time.Second, nil)

	printBanner(&buf, client.URL(), "/tmp/chat.db", false)

	out := buf.String()
	assert.Contains(t, out, "Agent:    "+agent.DefaultURL)
	assert.Contains(t, out, "Database: /tmp/chat.db")
	assert.Contains(t, out, "version: "+version)
	assert.NotContains(t, out, "/signin")
}

func TestPrintBanner_AuthEnabled(t *testing.T) {
	var buf bytes.Buffer

	printBanner(&buf, "http://agent.local/api", "chat.db", true)

	assert.Contains(t, buf.String(), "Agent:    http://agent.local/api")
	assert.Contains(t, buf.String(), "/signin <email> <password>")
}
