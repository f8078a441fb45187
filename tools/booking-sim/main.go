// booking-sim exercises the public booking flow against a running
// instance: fetch slots for a date, book the first one, optionally cancel
// it again.
package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"
)

func main() {
	var (
		baseURL  = flag.String("base-url", getenv("BASE_URL", "http://localhost:8080"), "booking service base url")
		business = flag.String("business-id", getenv("BUSINESS_ID", ""), "business id")
		service  = flag.String("service-id", getenv("SERVICE_ID", ""), "service id")
		date     = flag.String("date", time.Now().AddDate(0, 0, 1).Format("2006-01-02"), "date to book (YYYY-MM-DD)")
		name     = flag.String("name", "Sim Customer", "customer name")
		email    = flag.String("email", "sim@example.com", "customer email")
		cancel   = flag.Bool("cancel", false, "cancel the appointment after booking")
	)
	flag.Parse()

	if strings.TrimSpace(*business) == "" {
		fatal("BUSINESS_ID is required")
	}
	if strings.TrimSpace(*service) == "" {
		fatal("SERVICE_ID is required")
	}
	base := strings.TrimRight(*baseURL, "/")

	slotsURL := fmt.Sprintf("%s/api/v1/public/slots?business_id=%s&service_id=%s&date=%s",
		base, *business, *service, *date)
	var slots struct {
		Slots []struct {
			StartMinute int `json:"start_minute"`
		} `json:"slots"`
	}
	if err := getJSON(slotsURL, &slots); err != nil {
		fatal(err.Error())
	}
	if len(slots.Slots) == 0 {
		fatal("no slots available on " + *date)
	}
	starts := make([]int, 0, len(slots.Slots))
	for _, s := range slots.Slots {
		starts = append(starts, s.StartMinute)
	}
	fmt.Printf("slots=%v\n", starts)

	body, _ := json.Marshal(map[string]any{
		"business_id":    *business,
		"service_id":     *service,
		"customer_name":  *name,
		"customer_email": *email,
		"date":           *date,
		"start_minute":   starts[0],
	})
	req, err := http.NewRequest(http.MethodPost, base+"/api/v1/public/book", bytes.NewReader(body))
	if err != nil {
		fatal(err.Error())
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Idempotency-Key", fmt.Sprintf("sim-%d", time.Now().UnixNano()))

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		fatal(err.Error())
	}
	defer resp.Body.Close()

	var booked struct {
		AppointmentID string `json:"appointment_id"`
		StartMinute   int    `json:"start_minute"`
		Status        string `json:"status"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&booked); err != nil {
		fatal(err.Error())
	}
	fmt.Printf("book status=%d appointment=%s start=%d\n", resp.StatusCode, booked.AppointmentID, booked.StartMinute)

	if !*cancel || booked.AppointmentID == "" {
		return
	}

	cancelBody, _ := json.Marshal(map[string]string{
		"business_id":    *business,
		"appointment_id": booked.AppointmentID,
	})
	cancelResp, err := http.Post(base+"/api/v1/appointments/cancel", "application/json", bytes.NewReader(cancelBody))
	if err != nil {
		fatal(err.Error())
	}
	defer cancelResp.Body.Close()
	fmt.Printf("cancel status=%d\n", cancelResp.StatusCode)
}

func getJSON(url string, out any) error {
	resp, err := http.Get(url)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("GET %s: status %d", url, resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func fatal(msg string) {
	fmt.Fprintln(os.Stderr, "error: "+msg)
	os.Exit(1)
}
