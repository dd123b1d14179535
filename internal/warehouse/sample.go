package warehouse

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/goodsteward/donation-reporter/internal/donation"
)

// SampleFetcher fabricates a small deterministic batch of donations so the
// full aggregate-render-email path can be verified (--test mode) without
// touching the warehouse. It satisfies Fetcher.
type SampleFetcher struct{}

func (SampleFetcher) FetchDonations(_ context.Context) ([]donation.Record, error) {
	yesterday := time.Now().AddDate(0, 0, -1)

	rows := []donation.RawRow{
		{
			Source: "907-July Appeal", FirstName: "Linda", LastName: "Schoenwetter",
			Address: "414 Prairie Ln", City: "Madison", State: "WI", PostCode: "53703",
			Email: "lschoenwetter@example.com", TheDate: yesterday,
			Amount: decimal.RequireFromString("50.00"), MethodCode: 0,
		},
		{
			Source: "907-July Appeal", FirstName: "Carl", LastName: "Brandt",
			Address: `12 "The Oaks", Unit 3`, City: "Waunakee", State: "WI", PostCode: "53597",
			Email: "cbrandt@example.com", TheDate: yesterday,
			Amount: decimal.RequireFromString("125.50"), MethodCode: 2,
		},
		{
			// No source — exercises the default-source fallback.
			FirstName: "Ruth", LastName: "Neumann",
			Address: "88 Birch Hollow Rd", City: "Sun Prairie", State: "WI", PostCode: "53590",
			Email: "rneumann@example.com", TheDate: yesterday,
			Amount: decimal.RequireFromString("5000.00"), MethodCode: 1,
		},
		{
			Source: "912-Radiothon", FirstName: "Dale", LastName: "Okafor",
			Address: "2205 Monroe St\nApt 2B", City: "Madison", State: "WI", PostCode: "53711",
			Email: "dokafor@example.com", TheDate: yesterday,
			Amount: decimal.RequireFromString("20.00"), MethodCode: 3,
		},
		{
			Source: "912-Radiothon", FirstName: "Amy", LastName: "Okafor",
			Address: "2205 Monroe St", City: "Madison", State: "WI", PostCode: "53711",
			Email: "aokafor@example.com", TheDate: yesterday,
			Amount: decimal.RequireFromString("20.00"), MethodCode: 9,
		},
	}

	records := make([]donation.Record, len(rows))
	for i, row := range rows {
		records[i] = donation.New(row)
	}
	return records, nil
}
