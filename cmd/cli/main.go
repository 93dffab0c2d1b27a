package main

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"strings"
)

func prompt(reader *bufio.Reader, label, def string) string {
	if def != "" {
		fmt.Printf("%s [%s]: ", label, def)
	} else {
		fmt.Printf("%s: ", label)
	}
	raw, _ := reader.ReadString('\n')
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return def
	}
	return raw
}

func main() {
	api := os.Getenv("API_BASE")
	if api == "" {
		api = "http://localhost:8080"
	}

	reader := bufio.NewReader(os.Stdin)

	endpoint := prompt(reader, "Endpoint to monitor (e.g., https://example.com/health)", "")
	if endpoint == "" {
		fmt.Println("An endpoint is required.")
		return
	}

	protocol := "TCP"
	if strings.Contains(endpoint, "://") {
		u, err := url.ParseRequestURI(endpoint)
		if err != nil {
			fmt.Println("Invalid URL.")
			return
		}
		protocol = strings.ToUpper(u.Scheme)
		if protocol != "HTTP" && protocol != "HTTPS" {
			fmt.Println("Unsupported scheme:", u.Scheme)
			return
		}
	}

	name := prompt(reader, "Service name", endpoint)
	page := prompt(reader, "Status page ID", "default")

	body, _ := json.Marshal(map[string]any{
		"status_page_id":       page,
		"name":                 name,
		"endpoint":             endpoint,
		"protocol":             protocol,
		"expected_status_code": 200,
	})
	resp, err := http.Post(api+"/api/services", "application/json", bytes.NewReader(body))
	if err != nil {
		fmt.Println("Error contacting API:", err)
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		fmt.Println("Added! The scheduler will start probing on its next cycle.")
		fmt.Println("Inspect with GET", api+"/api/services")
	} else {
		fmt.Println("API returned status:", resp.Status)
	}
}
