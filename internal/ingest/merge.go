package ingest

import (
	"github.com/bits-and-blooms/bloom/v3"

	"github.com/xenking/foodkart-checkout/internal/domain/coupon"
)

const falsePositiveRate = 0.001

// Duplicate reports a code seen more than once. The Replaced record lost to
// Kept, which was read later.
type Duplicate struct {
	Code     string
	Replaced Record
	Kept     Record
}

// Merge flattens results in file then line order. When a code repeats, the
// later record wins and keeps the catalog position of the first one.
//
// Codes are first tested against a bloom filter; only filter hits consult
// the exact index, so false positives never drop a coupon.
func Merge(results []FileResult) ([]coupon.Coupon, []Duplicate) {
	total := 0
	for _, r := range results {
		total += len(r.Records)
	}

	filter := bloom.NewWithEstimates(uint(max(total, 1)), falsePositiveRate)
	index := make(map[string]int, total)
	records := make([]Record, 0, total)
	var dups []Duplicate

	for _, res := range results {
		for _, rec := range res.Records {
			code := rec.Coupon.Code
			if filter.TestString(code) {
				if i, ok := index[code]; ok {
					dups = append(dups, Duplicate{Code: code, Replaced: records[i], Kept: rec})
					records[i] = rec
					continue
				}
			}
			filter.AddString(code)
			index[code] = len(records)
			records = append(records, rec)
		}
	}

	catalog := make([]coupon.Coupon, len(records))
	for i, rec := range records {
		catalog[i] = rec.Coupon
	}
	return catalog, dups
}
