package main

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"
)

type sendResponse struct {
	MessagingProduct string `json:"messaging_product"`
	Contacts         []struct {
		Input string `json:"input"`
		WaID  string `json:"wa_id"`
	} `json:"contacts"`
	Messages []struct {
		ID string `json:"id"`
	} `json:"messages"`
}

func main() {
	port := ":8082"
	http.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || !strings.HasSuffix(r.URL.Path, "/messages") {
			http.Error(w, "Not found", http.StatusNotFound)
			return
		}

		var req struct {
			To string `json:"to"`
		}
		json.NewDecoder(r.Body).Decode(&req)

		// Simulate slight processing delay
		time.Sleep(1 * time.Millisecond)

		resp := sendResponse{MessagingProduct: "whatsapp"}
		resp.Contacts = append(resp.Contacts, struct {
			Input string `json:"input"`
			WaID  string `json:"wa_id"`
		}{Input: req.To, WaID: req.To})
		resp.Messages = append(resp.Messages, struct {
			ID string `json:"id"`
		}{ID: fmt.Sprintf("wamid.mock_%d", time.Now().UnixNano())})

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(resp)

		log.Printf("Processed mock send to %s: %s", req.To, resp.Messages[0].ID)
	})

	log.Printf("Mock WhatsApp Cloud API starting on %s...", port)
	if err := http.ListenAndServe(port, nil); err != nil {
		log.Fatal(err)
	}
}
