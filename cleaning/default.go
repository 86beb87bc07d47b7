package cleaning

const (
	FunctionAnswerUserQuery       = "answer_user_query"
	FunctionConnectToHumanAgent   = "get_connect_to_human_agent"
	FunctionAvailabilityAndPrices = "get_availability_pricing_service"
)

func DefaultEntries() []Entry {
	return []Entry{
		{
			Key:      "services",
			Function: FunctionAnswerUserQuery,
			Phrases:  []string{"What services do you provide?"},
			Answer:   []string{"General cleaning", "Specialized cleaning"},
		},
		{
			Key:      "post_renovation_cleaning",
			Function: FunctionConnectToHumanAgent,
			Phrases: []string{
				"post renovation cleaning",
				"I want to book post renovation cleaning",
			},
			Answer: "We're connecting you with a human agent",
		},
		{
			Key:      "general_cleaning",
			Function: FunctionAvailabilityAndPrices,
			Phrases: []string{
				"general cleaning",
				"I want to book general cleaning",
			},
			Template: "Next available slot on {{ .slot }}, and price is {{ .price }}",
			Fields: map[string]string{
				"slot":  "2025-01-01 00:00",
				"price": "$100 for 3 hours",
			},
		},
	}
}

func DefaultCatalog() *Catalog {
	c, err := NewCatalog(DefaultEntries()...)
	if err != nil {
		panic(err)
	}
	return c
}
