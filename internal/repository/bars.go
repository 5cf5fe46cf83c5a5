package repository

import (
	"fmt"
	"regexp"
	"sort"

	"github.com/syedqaisarjalil/drl-forex-trading-internal/internal/domain/models"
)

// symbolNameRE bounds what may appear in a partition name. Symbol names
// become part of physical table names, so they are validated before any
// DDL or DML is built from them.
var symbolNameRE = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9]{1,15}$`)

// ValidSymbolName reports whether name is usable as a partition key.
func ValidSymbolName(name string) bool { return symbolNameRE.MatchString(name) }

// prepareBatch validates, deduplicates and sorts a write batch.
// Invalid bars are rejected individually with a reason; duplicates
// within the batch resolve to the last occurrence (same last-writer-
// wins policy the store applies across calls). The returned batch is
// ascending by timestamp.
func prepareBatch(bars []models.Bar) (valid []models.Bar, rejected []string) {
	byTS := make(map[int64]models.Bar, len(bars))
	order := make([]int64, 0, len(bars))
	for _, b := range bars {
		if err := b.Validate(); err != nil {
			rejected = append(rejected, err.Error())
			continue
		}
		key := b.Timestamp.UTC().Unix()
		if _, seen := byTS[key]; !seen {
			order = append(order, key)
		}
		byTS[key] = b
	}
	sort.Slice(order, func(i, j int) bool { return order[i] < order[j] })
	valid = make([]models.Bar, 0, len(order))
	for _, key := range order {
		valid = append(valid, byTS[key])
	}
	return valid, rejected
}

// batchError folds rejects into the error the write contract promises:
// nil when everything was valid, a *models.ValidationError otherwise.
func batchError(rejected []string) error {
	if len(rejected) == 0 {
		return nil
	}
	return &models.ValidationError{Op: "write bars", Rejected: rejected}
}

func checkSymbolName(name string) error {
	if !ValidSymbolName(name) {
		return &models.SchemaError{Partition: name, Reason: fmt.Sprintf("invalid symbol name %q", name)}
	}
	return nil
}
