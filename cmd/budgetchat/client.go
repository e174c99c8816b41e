package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/http/cookiejar"
	"strings"
	"time"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// Client talks to the chat endpoint and keeps the session cookie between turns.
type Client struct {
	base string
	http *http.Client
}

// NewClient builds a Client for the server at base.
func NewClient(base string, timeout time.Duration) (*Client, error) {
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, err
	}
	return &Client{
		base: strings.TrimRight(base, "/"),
		http: &http.Client{Jar: jar, Timeout: timeout},
	}, nil
}

// Answer is one server reply. Chart is set for chart payloads, Text otherwise.
type Answer struct {
	Text  string
	Chart *ChartPayload
}

// ChartPayload is the chart reply of /api/chat.
type ChartPayload struct {
	Type      string    `json:"type"`
	ChartType string    `json:"chartType"`
	Data      chartData `json:"data"`
}

type chartData struct {
	Labels   []string `json:"labels"`
	Datasets []struct {
		Label string    `json:"label"`
		Data  []float64 `json:"data"`
	} `json:"datasets"`
}

// Send posts one message.
func (c *Client) Send(ctx context.Context, text string) (Answer, error) {
	body, err := json.Marshal(map[string]string{"message": text})
	if err != nil {
		return Answer{}, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.base+"/api/chat", bytes.NewReader(body))
	if err != nil {
		return Answer{}, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return Answer{}, err
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return Answer{}, err
	}

	var envelope struct {
		Response json.RawMessage `json:"response"`
		Error    string          `json:"error"`
	}
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return Answer{}, fmt.Errorf("unexpected reply (%d): %s", resp.StatusCode, strings.TrimSpace(string(raw)))
	}
	if envelope.Error != "" {
		return Answer{}, fmt.Errorf("server: %s", envelope.Error)
	}
	if resp.StatusCode != http.StatusOK {
		return Answer{}, fmt.Errorf("server returned %d", resp.StatusCode)
	}

	var s string
	if err := json.Unmarshal(envelope.Response, &s); err == nil {
		return Answer{Text: s}, nil
	}
	var chart ChartPayload
	if err := json.Unmarshal(envelope.Response, &chart); err != nil {
		return Answer{}, fmt.Errorf("decode response: %w", err)
	}
	return Answer{Chart: &chart}, nil
}

var printer = message.NewPrinter(language.English)

func dollars(v float64) string {
	cents := int64(math.Round(v * 100))
	sign := ""
	if cents < 0 {
		sign, cents = "-", -cents
	}
	return fmt.Sprintf("$%s%s.%02d", sign, printer.Sprintf("%d", cents/100), cents%100)
}

// Render writes an answer for a terminal. Charts become one bar per label.
func Render(w io.Writer, a Answer) {
	if a.Chart == nil {
		fmt.Fprintln(w, a.Text)
		return
	}
	for _, ds := range a.Chart.Data.Datasets {
		fmt.Fprintln(w, ds.Label)
		peak := 0.0
		for _, v := range ds.Data {
			peak = max(peak, v)
		}
		width := 0
		for _, l := range a.Chart.Data.Labels {
			width = max(width, len(l))
		}
		for i, v := range ds.Data {
			label := ""
			if i < len(a.Chart.Data.Labels) {
				label = a.Chart.Data.Labels[i]
			}
			bar := 0
			if peak > 0 {
				bar = int(v / peak * 40)
			}
			fmt.Fprintf(w, "  %-*s %s %s\n", width, label, strings.Repeat("#", bar), dollars(v))
		}
	}
}
