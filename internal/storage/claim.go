package storage

import (
	"sort"

	"github.com/nao1215/spiderq/internal/model"
)

// ClaimedRecord is one raw row returned by an adapter's claim statement.
type ClaimedRecord struct {
	ID      int64
	Key     string
	Payload []byte
}

// DecodeClaimed sorts records by id and decodes every payload.
// Records that fail to decode are left out of the result and reported in
// a *SkippedError; they stay taken in the store.
func DecodeClaimed(records []ClaimedRecord) ([]*model.Request, error) {
	sort.Slice(records, func(i, j int) bool { return records[i].ID < records[j].ID })

	requests := make([]*model.Request, 0, len(records))
	var skipped []SkippedRecord
	for _, rec := range records {
		req, err := model.DecodeRequest(rec.Payload)
		if err != nil {
			skipped = append(skipped, SkippedRecord{ID: rec.ID, Key: rec.Key, Err: err})
			continue
		}
		requests = append(requests, req)
	}

	if len(skipped) > 0 {
		return requests, &SkippedError{Records: skipped}
	}
	return requests, nil
}
