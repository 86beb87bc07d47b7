package main

import (
	"context"
	"encoding/json"
	"log"
	"os"

	"github.com/mashiike/concierge"
	"github.com/mashiike/concierge/cleaning"
	"github.com/mashiike/concierge/provider/openai"
)

func main() {
	ctx := context.Background()
	reg := concierge.NewRegistry()
	if err := cleaning.Register(reg, cleaning.DefaultCatalog()); err != nil {
		log.Fatalf("register: %v", err)
	}
	direct, err := reg.Subset(cleaning.FunctionAnswerUserQuery)
	if err != nil {
		log.Fatalf("subset: %v", err)
	}
	d, err := concierge.NewDispatcher(openai.New(), direct,
		concierge.WithModelID("gpt-3.5-turbo-1106"),
		concierge.WithModelParams(map[string]any{"temperature": 0, "seed": 42}),
	)
	if err != nil {
		log.Fatalf("new dispatcher: %v", err)
	}
	answer, err := d.Dispatch(ctx, "What services do you provide?")
	if err != nil {
		log.Fatalf("dispatch: %v", err)
	}
	if err := json.NewEncoder(os.Stdout).Encode(answer.Value); err != nil {
		log.Fatalf("encode: %v", err)
	}
}
