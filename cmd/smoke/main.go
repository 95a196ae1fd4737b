// Command smoke exercises a running hagglz server end to end.
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

const sampleBill = `Pacific Gas & Electric
Account Number: 1234-5678
Service Period: Jan 1 - Jan 31
Electric Usage: 850 kWh
Total Amount Due: $200.00`

func main() {
	baseURL := flag.String("url", "http://localhost:8080", "server base url")
	wait := flag.Duration("wait", 2*time.Second, "time to wait for the server to start")
	flag.Parse()

	time.Sleep(*wait)
	client := &http.Client{Timeout: 5 * time.Minute}

	fmt.Println("Starting smoke test...")

	fmt.Println("1. Health")
	if _, ok := send(client, http.MethodGet, *baseURL+"/health", nil); !ok {
		fail("health")
	}

	fmt.Println("2. Negotiate")
	body, ok := send(client, http.MethodPost, *baseURL+"/api/v1/negotiate", map[string]any{
		"bill_text": sampleBill,
		"user_id":   fmt.Sprintf("smoke-%d", time.Now().Unix()),
	})
	if !ok {
		fail("negotiate")
	}
	var res struct {
		NegotiationID string `json:"negotiation_id"`
	}
	if err := json.Unmarshal(body, &res); err != nil || res.NegotiationID == "" {
		fail("negotiate: no negotiation_id in response")
	}

	fmt.Println("3. Status")
	if _, ok := send(client, http.MethodGet, *baseURL+"/api/v1/negotiation/"+res.NegotiationID, nil); !ok {
		fail("status")
	}

	fmt.Println("4. Feedback")
	if _, ok := send(client, http.MethodPost, *baseURL+"/api/v1/feedback", map[string]any{
		"negotiation_id": res.NegotiationID,
		"success":        true,
		"actual_savings": 20,
	}); !ok {
		fail("feedback")
	}

	fmt.Println("5. Calculators")
	if _, ok := send(client, http.MethodPost, *baseURL+"/api/v1/calculate-savings", map[string]any{"original_amount": 200}); !ok {
		fail("calculate-savings")
	}
	if _, ok := send(client, http.MethodPost, *baseURL+"/api/v1/success-probability", map[string]any{"bill_type": "UTILITY", "amount": 200}); !ok {
		fail("success-probability")
	}

	fmt.Println("PASSED")
}

func fail(step string) {
	fmt.Printf("FAILED: %s\n", step)
	os.Exit(1)
}

func send(client *http.Client, method, url string, payload any) ([]byte, bool) {
	var body io.Reader
	if payload != nil {
		data, _ := json.Marshal(payload)
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequest(method, url, body)
	if err != nil {
		fmt.Printf("Error creating request: %v\n", err)
		return nil, false
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		fmt.Printf("Error sending request: %v\n", err)
		return nil, false
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		fmt.Printf("Request failed with status %d: %s\n", resp.StatusCode, string(respBody))
		return nil, false
	}
	fmt.Printf("Response: %s\n", string(respBody))
	return respBody, true
}
