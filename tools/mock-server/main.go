// Package main implements a mock flight quote server for local development.
// It serves generated fares in each vendor's payload shape so the tracker can
// run end to end without real provider credentials.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"hash/fnv"
	"log/slog"
	"math"
	"math/rand/v2"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"
)

// pricer generates deterministic fares. Prices for the same vendor, route and
// date stay fixed within one drift bucket and move between buckets.
type pricer struct {
	base     float64
	spread   float64
	drift    time.Duration
	failRate float64
	now      func() time.Time
}

// fare is one generated itinerary in neutral form.
type fare struct {
	id          string
	origin      string
	destination string
	depart      time.Time
	ret         *time.Time
	cabin       string
	airline     string
	stops       int
	price       float64
	currency    string
}

var (
	airlines = []string{"AA", "BA", "DL", "UA", "VS", "LH", "AF"}
	hubs     = []string{"ORD", "FRA", "DXB"}
)

func main() {
	port := flag.Int("port", 8089, "port to listen on")
	base := flag.Float64("base", 450, "median fare in the requested currency")
	spread := flag.Float64("spread", 0.25, "fractional spread around the median")
	drift := flag.Duration("drift", 10*time.Minute, "how often fares change")
	failRate := flag.Float64("fail-rate", 0, "fraction of requests answered with 503")
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))

	p := &pricer{base: *base, spread: *spread, drift: *drift, failRate: *failRate, now: time.Now}

	addr := fmt.Sprintf(":%d", *port)
	logger.Info("starting mock quote server", "addr", addr, "base", *base, "drift", *drift)

	srv := &http.Server{
		Addr:         addr,
		Handler:      requestLogger(logger, newMux(logger, p)),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}
	if err := srv.ListenAndServe(); err != nil {
		logger.Error("server stopped", "error", err)
		os.Exit(1)
	}
}

func newMux(logger *slog.Logger, p *pricer) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /v3/flights/search", vendorHandler(logger, p, "skyscanner", skyscannerParams, skyscannerBody))
	mux.HandleFunc("GET /discovery/v2/flights.json", vendorHandler(logger, p, "ticketmaster", ticketmasterParams, ticketmasterBody))
	mux.HandleFunc("GET /2/flights", vendorHandler(logger, p, "seatgeek", seatgeekParams, seatgeekBody))
	mux.HandleFunc("GET /catalog/flights/search", vendorHandler(logger, p, "stubhub", stubhubParams, stubhubBody))
	mux.HandleFunc("GET /api/v1/flight-quotes", vendorHandler(logger, p, "vividseats", vividseatsParams, vividseatsBody))
	return mux
}

func requestLogger(logger *slog.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		logger.Debug("request", "method", r.Method, "path", r.URL.Path, "query", r.URL.RawQuery)
		next.ServeHTTP(w, r)
	})
}

// params names the query parameters a vendor uses.
type params struct {
	origin, destination, depart, ret, cabin, adults, currency string
}

var (
	skyscannerParams   = params{"origin", "destination", "depart_date", "return_date", "cabin_class", "adults", "currency"}
	ticketmasterParams = params{"from", "to", "departDate", "returnDate", "cabin", "adults", "currency"}
	seatgeekParams     = params{"origin", "destination", "datetime_local.gte", "return_local", "class", "quantity", "currency"}
	stubhubParams      = params{"originCode", "destinationCode", "departureDate", "returnDate", "cabinClass", "adults", "currencyCode"}
	vividseatsParams   = params{"origin", "destination", "depart", "return", "fare_class", "adults", "currency"}
)

// search is a parsed vendor request.
type search struct {
	origin      string
	destination string
	depart      time.Time
	ret         *time.Time
	cabin       string
	adults      int
	currency    string
}

func parseSearch(r *http.Request, names params) (search, error) {
	q := r.URL.Query()
	s := search{
		origin:      strings.ToUpper(q.Get(names.origin)),
		destination: strings.ToUpper(q.Get(names.destination)),
		cabin:       q.Get(names.cabin),
		currency:    strings.ToUpper(q.Get(names.currency)),
		adults:      1,
	}
	if s.origin == "" || s.destination == "" {
		return s, fmt.Errorf("%s and %s are required", names.origin, names.destination)
	}

	depart, err := time.Parse(time.DateOnly, q.Get(names.depart))
	if err != nil {
		return s, fmt.Errorf("bad %s: %w", names.depart, err)
	}
	s.depart = depart

	if v := q.Get(names.ret); v != "" {
		ret, err := time.Parse(time.DateOnly, v)
		if err != nil {
			return s, fmt.Errorf("bad %s: %w", names.ret, err)
		}
		s.ret = &ret
	}
	if v := q.Get(names.adults); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			s.adults = n
		}
	}
	if s.cabin == "" {
		s.cabin = "economy"
	}
	if s.currency == "" {
		s.currency = "USD"
	}
	return s, nil
}

// fares returns three itineraries for s from vendor. Each fare is the total
// for all adults.
func (p *pricer) fares(vendor string, s search) []fare {
	bucket := p.now().UTC().Truncate(p.drift).Unix()
	out := make([]fare, 0, 3)
	for i := range 3 {
		h := fnv.New64a()
		fmt.Fprintf(h, "%s|%s|%s|%s|%d|%d", vendor, s.origin, s.destination, s.depart.Format(time.DateOnly), bucket, i)
		seed := h.Sum64()
		rng := rand.New(rand.NewPCG(seed, seed>>1))

		unit := p.base * (1 - p.spread + 2*p.spread*rng.Float64())
		depart := s.depart.Add(time.Duration(6+rng.IntN(16)) * time.Hour)

		var ret *time.Time
		if s.ret != nil {
			r := s.ret.Add(time.Duration(6+rng.IntN(16)) * time.Hour)
			ret = &r
			unit *= 1.8
		}

		out = append(out, fare{
			id:          fmt.Sprintf("%s-%x", vendor, seed&0xffffffff),
			origin:      s.origin,
			destination: s.destination,
			depart:      depart,
			ret:         ret,
			cabin:       s.cabin,
			airline:     airlines[rng.IntN(len(airlines))],
			stops:       rng.IntN(3),
			price:       math.Round(unit*float64(s.adults)*100) / 100,
			currency:    s.currency,
		})
	}
	return out
}

func (p *pricer) shouldFail() bool {
	return p.failRate > 0 && rand.Float64() < p.failRate
}

func vendorHandler(
	logger *slog.Logger,
	p *pricer,
	vendor string,
	names params,
	render func([]fare, search) any,
) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if p.shouldFail() {
			logger.Info("injected failure", "vendor", vendor)
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "temporarily unavailable"})
			return
		}

		s, err := parseSearch(r, names)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
			return
		}

		fares := p.fares(vendor, s)
		writeJSON(w, http.StatusOK, render(fares, s))
		logger.Info("search",
			"vendor", vendor,
			"route", s.origin+"-"+s.destination,
			"depart", s.depart.Format(time.DateOnly),
			"fares", len(fares),
		)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	//nolint:errcheck,gosec // best-effort write to HTTP response in mock server
	json.NewEncoder(w).Encode(v)
}

func formatOptional(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format(time.RFC3339)
}

func skyscannerBody(fares []fare, _ search) any {
	type leg struct {
		Origin      string `json:"origin"`
		Destination string `json:"destination"`
		Departure   string `json:"departure"`
		Carrier     string `json:"carrier"`
		Stops       int    `json:"stops"`
	}
	type price struct {
		Amount   float64 `json:"amount"`
		Currency string  `json:"currency"`
	}
	type itinerary struct {
		ID       string `json:"id"`
		Price    price  `json:"price"`
		Outbound leg    `json:"outbound"`
		Inbound  *leg   `json:"inbound,omitempty"`
		Cabin    string `json:"cabin"`
		DeepLink string `json:"deep_link"`
	}

	its := make([]itinerary, 0, len(fares))
	for _, f := range fares {
		it := itinerary{
			ID:    f.id,
			Price: price{Amount: f.price, Currency: f.currency},
			Outbound: leg{
				Origin: f.origin, Destination: f.destination,
				Departure: f.depart.Format(time.RFC3339), Carrier: f.airline, Stops: f.stops,
			},
			Cabin:    f.cabin,
			DeepLink: "https://mock.skyscanner.local/" + f.id,
		}
		if f.ret != nil {
			it.Inbound = &leg{
				Origin: f.destination, Destination: f.origin,
				Departure: f.ret.Format(time.RFC3339), Carrier: f.airline, Stops: f.stops,
			}
		}
		its = append(its, it)
	}
	return map[string]any{"itineraries": its}
}

func ticketmasterBody(fares []fare, _ search) any {
	offers := make([]map[string]any, 0, len(fares))
	for _, f := range fares {
		offers = append(offers, map[string]any{
			"offerId":    f.id,
			"totalPrice": f.price,
			"currency":   f.currency,
			"from":       f.origin,
			"to":         f.destination,
			"departDate": f.depart.Format(time.RFC3339),
			"returnDate": formatOptional(f.ret),
			"airline":    f.airline,
			"stops":      f.stops,
			"cabin":      f.cabin,
			"url":        "https://mock.ticketmaster.local/" + f.id,
		})
	}
	return map[string]any{"_embedded": map[string]any{"offers": offers}}
}

func seatgeekBody(fares []fare, _ search) any {
	listings := make([]map[string]any, 0, len(fares))
	for i, f := range fares {
		segments := make([]map[string]any, 0, f.stops+1)
		from := f.origin
		for j := range f.stops + 1 {
			to := f.destination
			if j < f.stops {
				to = hubs[j%len(hubs)]
			}
			segments = append(segments, map[string]any{
				"from": from, "to": to,
				"depart_at": f.depart.Add(time.Duration(j) * 3 * time.Hour).Format(time.RFC3339),
				"carrier":   f.airline,
			})
			from = to
		}
		listings = append(listings, map[string]any{
			"id":        f.depart.Unix()*10 + int64(i),
			"price":     map[string]any{"total": f.price, "currency": f.currency},
			"segments":  segments,
			"return_at": formatOptional(f.ret),
			"class":     f.cabin,
			"link":      "https://mock.seatgeek.local/" + f.id,
		})
	}
	return map[string]any{"listings": listings}
}

func stubhubBody(fares []fare, s search) any {
	results := make([]map[string]any, 0, len(fares))
	for _, f := range fares {
		results = append(results, map[string]any{
			"listingId": f.id,
			"pricePerPassenger": map[string]any{
				"amount":   math.Round(f.price/float64(s.adults)*100) / 100,
				"currency": f.currency,
			},
			"origin":        f.origin,
			"destination":   f.destination,
			"departureTime": f.depart.Format(time.RFC3339),
			"returnTime":    formatOptional(f.ret),
			"carrierCode":   f.airline,
			"numberOfStops": f.stops,
			"cabinClass":    f.cabin,
			"deepLink":      "https://mock.stubhub.local/" + f.id,
		})
	}
	return map[string]any{"results": results}
}

func vividseatsBody(fares []fare, _ search) any {
	quotes := make([]map[string]any, 0, len(fares))
	for _, f := range fares {
		quotes = append(quotes, map[string]any{
			"quote_id":     f.id,
			"amount_cents": int64(math.Round(f.price * 100)),
			"currency":     f.currency,
			"route":        f.origin + "-" + f.destination,
			"depart":       f.depart.Format(time.RFC3339),
			"return":       formatOptional(f.ret),
			"airline":      f.airline,
			"stops":        f.stops,
			"fare_class":   f.cabin,
			"url":          "https://mock.vividseats.local/" + f.id,
		})
	}
	return map[string]any{"quotes": quotes}
}
