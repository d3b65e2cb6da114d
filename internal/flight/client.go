// Package flight looks up flight schedules from an AviationStack-compatible API.
package flight

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"travel_tracker/internal/travel"
)

var ErrFlightNotFound = errors.New("flight not found")

type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
}

func NewClient(baseURL, apiKey string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		apiKey:  apiKey,
		http:    &http.Client{Timeout: timeout},
	}
}

type endpoint struct {
	Airport   string `json:"airport"`
	IATA      string `json:"iata"`
	Scheduled string `json:"scheduled"`
	Estimated string `json:"estimated"`
}

type flightRecord struct {
	FlightDate   string   `json:"flight_date"`
	FlightStatus string   `json:"flight_status"`
	Departure    endpoint `json:"departure"`
	Arrival      endpoint `json:"arrival"`
}

type flightsResponse struct {
	Data  []flightRecord `json:"data"`
	Error *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// Lookup implements travel.FlightProvider.
func (c *Client) Lookup(ctx context.Context, flightNumber string, date time.Time) (*travel.FlightInfo, error) {
	q := url.Values{}
	q.Set("access_key", c.apiKey)
	q.Set("flight_iata", strings.ToUpper(strings.ReplaceAll(flightNumber, " ", "")))
	q.Set("flight_date", date.Format("2006-01-02"))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/flights?"+q.Encode(), nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("flight lookup %s: %w", flightNumber, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("flight lookup %s: status %d: %s", flightNumber, resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var out flightsResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("flight lookup %s: decode: %w", flightNumber, err)
	}
	if out.Error != nil {
		return nil, fmt.Errorf("flight lookup %s: %s: %s", flightNumber, out.Error.Code, out.Error.Message)
	}
	if len(out.Data) == 0 {
		return nil, fmt.Errorf("%w: %s on %s", ErrFlightNotFound, flightNumber, date.Format("2006-01-02"))
	}

	rec := out.Data[0]
	info := &travel.FlightInfo{
		Status:           rec.FlightStatus,
		DepartureAirport: firstNonEmpty(rec.Departure.IATA, rec.Departure.Airport),
		ArrivalAirport:   firstNonEmpty(rec.Arrival.IATA, rec.Arrival.Airport),
		DepartureTime:    parseTime(firstNonEmpty(rec.Departure.Estimated, rec.Departure.Scheduled)),
		ArrivalTime:      parseTime(firstNonEmpty(rec.Arrival.Estimated, rec.Arrival.Scheduled)),
	}
	logrus.WithFields(logrus.Fields{
		"flight": flightNumber,
		"status": info.Status,
	}).Debug("Flight lookup succeeded")
	return info, nil
}

func parseTime(s string) *time.Time {
	if s == "" {
		return nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		logrus.WithField("raw_time", s).Warn("Unparseable flight time, leaving empty")
		return nil
	}
	t = t.UTC()
	return &t
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
