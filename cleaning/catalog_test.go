package cleaning_test

import (
	"testing"

	"github.com/mashiike/concierge/cleaning"
	"github.com/stretchr/testify/require"
)

func TestNormalize(t *testing.T) {
	cases := map[string]string{
		"What services do you provide?":          "what services do you provide",
		"  I want to book   general cleaning.  ": "i want to book general cleaning",
		"Post Renovation Cleaning!!":             "post renovation cleaning",
		"We’re connecting":                       "we're connecting",
		"":                                       "",
	}
	for in, want := range cases {
		require.Equal(t, want, cleaning.Normalize(in), "input %q", in)
	}
}

func TestDefaultCatalogLookup(t *testing.T) {
	c := cleaning.DefaultCatalog()

	v, ok := c.Lookup(cleaning.FunctionAnswerUserQuery, "What services do you provide?")
	require.True(t, ok)
	require.Equal(t, []string{"General cleaning", "Specialized cleaning"}, v)

	v, ok = c.Lookup(cleaning.FunctionConnectToHumanAgent, "I want to book post renovation cleaning")
	require.True(t, ok)
	require.Equal(t, "We're connecting you with a human agent", v)

	v, ok = c.Lookup(cleaning.FunctionAvailabilityAndPrices, "general cleaning")
	require.True(t, ok)
	require.Contains(t, v, "2025-01-01 00:00")
	require.Contains(t, v, "$100 for 3 hours")
	require.Equal(t, "Next available slot on 2025-01-01 00:00, and price is $100 for 3 hours", v)

	_, ok = c.Lookup(cleaning.FunctionAvailabilityAndPrices, "window cleaning")
	require.False(t, ok)
	_, ok = c.Lookup(cleaning.FunctionAnswerUserQuery, "general cleaning")
	require.False(t, ok)
	_, ok = c.Lookup("unknown", "general cleaning")
	require.False(t, ok)

	require.Equal(t, []string{"general_cleaning"}, c.Keys(cleaning.FunctionAvailabilityAndPrices))
	require.Len(t, c.Entries(), 3)
}

func TestNewCatalogErrors(t *testing.T) {
	_, err := cleaning.NewCatalog(cleaning.Entry{Function: "f", Phrases: []string{"a"}})
	require.ErrorIs(t, err, cleaning.ErrEntryKeyEmpty)

	_, err = cleaning.NewCatalog(
		cleaning.Entry{Key: "one", Function: "f", Phrases: []string{"Deep clean"}, Answer: "1"},
		cleaning.Entry{Key: "two", Function: "f", Phrases: []string{"deep clean."}, Answer: "2"},
	)
	require.ErrorIs(t, err, cleaning.ErrDuplicatePhrase)

	_, err = cleaning.NewCatalog(cleaning.Entry{Key: "bad", Function: "f", Template: "{{ .missing }}"})
	require.Error(t, err)
}

func TestCatalogAddDuplicateKey(t *testing.T) {
	c := cleaning.DefaultCatalog()
	err := c.Add(cleaning.Entry{
		Key:      "services",
		Function: cleaning.FunctionConnectToHumanAgent,
		Phrases:  []string{"x"},
		Answer:   "y",
	})
	require.ErrorIs(t, err, cleaning.ErrDuplicateKey)

	v, ok := c.Lookup(cleaning.FunctionAnswerUserQuery, "What services do you provide?")
	require.True(t, ok)
	require.Equal(t, []string{"General cleaning", "Specialized cleaning"}, v)
	_, ok = c.Lookup(cleaning.FunctionConnectToHumanAgent, "x")
	require.False(t, ok)
	require.Len(t, c.Entries(), 3)
}

func TestCatalogAddFailureLeavesCatalogUnchanged(t *testing.T) {
	c := cleaning.DefaultCatalog()
	err := c.Add(cleaning.Entry{
		Key:      "window_cleaning",
		Function: cleaning.FunctionAvailabilityAndPrices,
		Phrases:  []string{"window cleaning", "General cleaning."},
		Answer:   "Next available slot on Monday",
	})
	require.ErrorIs(t, err, cleaning.ErrDuplicatePhrase)

	_, ok := c.Lookup(cleaning.FunctionAvailabilityAndPrices, "window cleaning")
	require.False(t, ok)
	v, ok := c.Lookup(cleaning.FunctionAvailabilityAndPrices, "general cleaning")
	require.True(t, ok)
	require.Equal(t, "Next available slot on 2025-01-01 00:00, and price is $100 for 3 hours", v)
	require.Equal(t, []string{"general_cleaning"}, c.Keys(cleaning.FunctionAvailabilityAndPrices))

	require.NoError(t, c.Add(cleaning.Entry{
		Key:      "window_cleaning",
		Function: cleaning.FunctionAvailabilityAndPrices,
		Phrases:  []string{"window cleaning"},
		Answer:   "Next available slot on Monday",
	}))
	v, ok = c.Lookup(cleaning.FunctionAvailabilityAndPrices, "window cleaning")
	require.True(t, ok)
	require.Equal(t, "Next available slot on Monday", v)
}
