// Command investigate drives one research session against a running server
// from the command line: start, poll, print the report.
package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"
)

func main() {
	baseURL := flag.String("server", "http://localhost:8080", "engine base URL")
	question := flag.String("question", "", "research question")
	pollEvery := flag.Duration("poll", 5*time.Second, "status poll interval")
	timeout := flag.Duration("timeout", 45*time.Minute, "give up after this long")
	flag.Parse()

	if *question == "" {
		fmt.Fprintln(os.Stderr, "usage: investigate -question \"...\" [-server URL]")
		os.Exit(2)
	}

	id, err := startSession(*baseURL, *question)
	if err != nil {
		fmt.Fprintln(os.Stderr, "start session:", err)
		os.Exit(1)
	}
	fmt.Println("session:", id)

	deadline := time.Now().Add(*timeout)
	for {
		if time.Now().After(deadline) {
			fmt.Fprintln(os.Stderr, "timed out waiting for session")
			os.Exit(1)
		}
		time.Sleep(*pollEvery)

		status, err := fetchStatus(*baseURL, id)
		if err != nil {
			fmt.Fprintln(os.Stderr, "poll:", err)
			continue
		}
		fmt.Printf("state=%s tasks=%d/%d elapsed=%.0fs\n",
			status.State, len(status.Tasks), status.MaxTasks, status.ElapsedSeconds)

		if status.State == "failed" {
			fmt.Fprintln(os.Stderr, "session failed:", status.Error)
			os.Exit(1)
		}
		if status.State == "done" && status.ReportReady {
			break
		}
		if status.State == "done" {
			// Report synthesis trails completion briefly.
			continue
		}
	}

	report, err := fetchReport(*baseURL, id)
	if err != nil {
		fmt.Fprintln(os.Stderr, "fetch report:", err)
		os.Exit(1)
	}
	fmt.Println()
	fmt.Println(report)
}

type statusResponse struct {
	State          string  `json:"state"`
	Error          string  `json:"error"`
	MaxTasks       int     `json:"max_tasks"`
	ElapsedSeconds float64 `json:"elapsed_seconds"`
	ReportReady    bool    `json:"report_ready"`
	Tasks          []struct {
		ID string `json:"id"`
	} `json:"tasks"`
}

func startSession(baseURL, question string) (string, error) {
	payload, _ := json.Marshal(map[string]string{"question": question})
	resp, err := http.Post(baseURL+"/sessions", "application/json", bytes.NewReader(payload))
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusAccepted {
		return "", fmt.Errorf("status %d: %s", resp.StatusCode, body)
	}
	var out struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(body, &out); err != nil {
		return "", err
	}
	return out.ID, nil
}

func fetchStatus(baseURL, id string) (*statusResponse, error) {
	resp, err := http.Get(baseURL + "/sessions/" + id)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("status %d", resp.StatusCode)
	}
	var out statusResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, err
	}
	return &out, nil
}

func fetchReport(baseURL, id string) (string, error) {
	resp, err := http.Get(baseURL + "/sessions/" + id + "/report")
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("status %d", resp.StatusCode)
	}
	var out struct {
		Report string `json:"report"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", err
	}
	return out.Report, nil
}
