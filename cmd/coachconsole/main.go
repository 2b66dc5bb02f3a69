// coachconsole is a terminal client for the interview gateway. With the
// service running in mock speech mode it exercises the whole loop: connect,
// begin, listen to scripted answers, submit, finish, print the report.
package main

import (
	"bufio"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/gorilla/websocket"
)

type frame struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

func send(conn *websocket.Conn, frameType string, payload any) {
	f := frame{Type: frameType}
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			log.Fatalf("marshal %s: %v", frameType, err)
		}
		f.Payload = raw
	}
	if err := conn.WriteJSON(f); err != nil {
		log.Fatalf("send %s: %v", frameType, err)
	}
}

func main() {
	addr := flag.String("addr", "localhost:8080", "gateway address")
	role := flag.String("role", "backend engineer", "role to interview for")
	years := flag.Int("years", 5, "years of experience")
	flag.Parse()

	url := "ws://" + *addr + "/v1/session"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		log.Fatalf("failed to connect to %s: %v", url, err)
	}
	defer conn.Close()

	log.Printf("Connected to %s", url)

	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			var f frame
			if err := conn.ReadJSON(&f); err != nil {
				return
			}
			switch f.Type {
			case "question":
				var p struct {
					Turn int    `json:"turn"`
					Text string `json:"text"`
				}
				json.Unmarshal(f.Payload, &p)
				fmt.Printf("\n[interviewer, turn %d] %s\n", p.Turn, p.Text)
				fmt.Println("(press Enter to start answering, Enter again to submit, 'finish' to end)")
			case "transcript":
				var p struct {
					Listening bool   `json:"listening"`
					Text      string `json:"text"`
				}
				json.Unmarshal(f.Payload, &p)
				if p.Text != "" {
					fmt.Printf("\r[you] %s", p.Text)
				}
			case "speaking":
				// interviewer audio state, not interesting on a console
			case "report":
				var p struct {
					Record struct {
						Report *struct {
							Summary    string   `json:"summary"`
							Strengths  []string `json:"strengths"`
							Weaknesses []string `json:"weaknesses"`
							Score      int      `json:"score"`
						} `json:"report"`
					} `json:"record"`
				}
				json.Unmarshal(f.Payload, &p)
				fmt.Println("\n--- interview report ---")
				if r := p.Record.Report; r != nil {
					fmt.Printf("score: %d/10\n%s\n", r.Score, r.Summary)
					for _, s := range r.Strengths {
						fmt.Printf("  + %s\n", s)
					}
					for _, w := range r.Weaknesses {
						fmt.Printf("  - %s\n", w)
					}
				}
				return
			case "error":
				var p struct {
					Message string `json:"message"`
				}
				json.Unmarshal(f.Payload, &p)
				fmt.Printf("\n[error] %s\n", p.Message)
			}
		}
	}()

	send(conn, "hello", map[string]any{
		"profile": map[string]any{
			"role":            *role,
			"experienceYears": *years,
		},
	})
	send(conn, "begin", nil)

	answering := false
	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		select {
		case <-done:
			return
		default:
		}
		line := strings.TrimSpace(scanner.Text())
		switch {
		case line == "finish":
			send(conn, "finish", nil)
			<-done
			return
		case answering:
			send(conn, "answer.submit", nil)
			answering = false
		default:
			send(conn, "answer.start", nil)
			answering = true
			fmt.Println("(listening...)")
		}
	}
	<-done
}
