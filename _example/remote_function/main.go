package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"strings"

	"github.com/mashiike/concierge"
	"github.com/mashiike/concierge/remote"
)

type getOpeningHoursInput struct {
	Weekday string `json:"weekday" jsonschema:"title=weekday,description=Day of the week,example=monday,default=monday"`
}

var openingHours = map[string]string{
	"saturday": "10:00-16:00",
	"sunday":   "closed",
}

func main() {
	var port int
	flag.IntVar(&port, "port", 8088, "port number")
	flag.Parse()
	fn, err := concierge.NewFunction(
		"get_opening_hours",
		"Get the office opening hours for a day of the week",
		func(ctx context.Context, input getOpeningHoursInput) (any, error) {
			callID, ok := concierge.CallIDFromContext(ctx)
			if !ok {
				callID = "<unknown>"
			}
			log.Printf("call get_opening_hours: call_id=%s, weekday=%s", callID, input.Weekday)
			if hours, ok := openingHours[strings.ToLower(input.Weekday)]; ok {
				return hours, nil
			}
			return "09:00-18:00", nil
		},
	)
	if err != nil {
		log.Fatal(err)
	}
	u, err := url.Parse(fmt.Sprintf("http://localhost:%d", port))
	if err != nil {
		log.Fatal(err)
	}
	handler, err := remote.NewHandler(remote.HandlerConfig{
		Endpoint: u,
		Function: fn,
	})
	if err != nil {
		log.Fatal(err)
	}
	log.Println("start server")
	if err := http.ListenAndServe(fmt.Sprintf(":%d", port), handler); err != nil {
		log.Fatal(err)
	}
}
