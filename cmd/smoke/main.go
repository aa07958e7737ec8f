// Smoke driver: runs the core order -> payment -> delivery flow against a
// running server and checks the expected responses.
package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"os"

	"github.com/google/uuid"
)

const defaultBaseURL = "http://localhost:8080"

var baseURL = defaultBaseURL

func main() {
	if v := os.Getenv("BASE_URL"); v != "" {
		baseURL = v
	}
	secret := os.Getenv("WEBHOOK_SECRET")
	if secret == "" {
		secret = "dev_secret"
	}

	failures := 0
	check := func(name string, ok bool, detail string) {
		if ok {
			fmt.Printf("PASS: %s\n", name)
		} else {
			fmt.Printf("FAIL: %s (%s)\n", name, detail)
			failures++
		}
	}

	// Restaurant + order with one 2000-cent item.
	restaurant := postJSON("/restaurants", map[string]any{"name": "Smoke Test Kitchen"})
	restaurantID := int64(restaurant["restaurant"].(map[string]any)["id"].(float64))

	order := postJSON("/orders", map[string]any{
		"restaurantId": restaurantID,
		"items":        []map[string]any{{"itemId": 1, "name": "Taco al Pastor", "priceCents": 2000, "qty": 1}},
	})
	orderID := int64(order["order"].(map[string]any)["id"].(float64))
	check("order created in Submitted/Unpaid",
		order["order"].(map[string]any)["status"] == "Submitted" &&
			order["order"].(map[string]any)["paymentStatus"] == "Unpaid",
		fmt.Sprintf("%v", order))

	// Intent amount comes from the line items.
	intent := postJSON("/payments/intent", map[string]any{"orderId": orderID})
	check("intent amount is 2000", intent["amountCents"] == float64(2000), fmt.Sprintf("%v", intent))

	// Confirm succeeds.
	confirm := postJSON("/payments/confirm", map[string]any{
		"orderId":      orderID,
		"clientSecret": intent["clientSecret"],
		"outcome":      "succeeded",
	})
	check("payment succeeded", confirm["paymentStatus"] == "Succeeded", fmt.Sprintf("%v", confirm))

	// Webhook is idempotent per event id.
	eventID := uuid.NewString()
	webhook := map[string]any{"eventId": eventID, "orderId": orderID, "event": "payment.updated", "status": "Succeeded"}
	first := postSigned("/payments/webhook", webhook, secret)
	second := postSigned("/payments/webhook", webhook, secret)
	check("first webhook delivery applied", first["ok"] == true && first["duplicate"] == nil, fmt.Sprintf("%v", first))
	check("second webhook delivery is a duplicate ack", second["ok"] == true && second["duplicate"] == true, fmt.Sprintf("%v", second))

	// Status chain.
	for _, next := range []string{"Accepted", "Preparing", "ReadyForPickup"} {
		res := postJSON(fmt.Sprintf("/orders/%d/status", orderID), map[string]any{"next": next})
		check("transition to "+next, res["order"] != nil && res["order"].(map[string]any)["status"] == next, fmt.Sprintf("%v", res))
	}
	invalid := postRaw(fmt.Sprintf("/orders/%d/status", orderID), map[string]any{"next": "Delivered"}, nil)
	check("transition past terminal state rejected", invalid.StatusCode == http.StatusConflict, invalid.Status)
	invalid.Body.Close()

	// Delivery flow.
	partner := postJSON("/auth/register", map[string]any{"email": uuid.NewString() + "@smoke.test", "role": "delivery"})
	partnerID := int64(partner["user"].(map[string]any)["id"].(float64))

	assignment := postJSON("/delivery/assignments", map[string]any{"orderId": orderID, "partnerId": partnerID})
	check("assignment starts Assigned",
		assignment["assignment"].(map[string]any)["status"] == "Assigned",
		fmt.Sprintf("%v", assignment))

	location := postJSON("/delivery/location", map[string]any{"partnerId": partnerID, "orderId": orderID, "lat": 18.92, "lng": -99.23})
	check("location recorded", location["ok"] == true, fmt.Sprintf("%v", location))

	fmt.Println("==========================================")
	if failures > 0 {
		log.Fatalf("%d smoke checks failed", failures)
	}
	fmt.Println("all smoke checks passed")
}

func postRaw(path string, payload map[string]any, header http.Header) *http.Response {
	body, err := json.Marshal(payload)
	if err != nil {
		log.Fatalf("marshal %s: %v", path, err)
	}
	req, err := http.NewRequest(http.MethodPost, baseURL+path, bytes.NewReader(body))
	if err != nil {
		log.Fatalf("request %s: %v", path, err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, vs := range header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		log.Fatalf("POST %s: %v", path, err)
	}
	return resp
}

func decode(resp *http.Response, path string) map[string]any {
	defer resp.Body.Close()
	var out map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		log.Fatalf("decode %s: %v", path, err)
	}
	return out
}

func postJSON(path string, payload map[string]any) map[string]any {
	return decode(postRaw(path, payload, nil), path)
}

func postSigned(path string, payload map[string]any, secret string) map[string]any {
	h := http.Header{}
	h.Set("X-Mock-Signature", secret)
	return decode(postRaw(path, payload, h), path)
}
