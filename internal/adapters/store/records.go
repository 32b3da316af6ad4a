package store

import (
	"strconv"
	"time"

	"github.com/rescam/phishguard/internal/core"
)

// recordEnvelope is the on-disk shape of a user's classification file.
type recordEnvelope struct {
	Emails []core.StoredRecord `json:"emails"`
}

type failureEnvelope struct {
	Failures []core.FailureRecord `json:"failures"`
}

// upsertRecord inserts rec at the head of the list, replacing any existing
// record with the same message id. Newest-first ordering is preserved so the
// dashboard can render the file without sorting.
func upsertRecord(records []core.StoredRecord, rec *core.StoredRecord) []core.StoredRecord {
	out := make([]core.StoredRecord, 0, len(records)+1)
	out = append(out, *rec)
	for _, r := range records {
		if r.ID == rec.ID {
			continue
		}
		out = append(out, r)
	}
	return out
}

func objectPath(prefix, user, name string) string {
	return prefix + "/" + user + "/" + name
}

// timestampPayload renders the marker consumed by dashboard pollers, unix
// milliseconds as a bare decimal string.
func timestampPayload(t time.Time) []byte {
	return []byte(strconv.FormatInt(t.UnixMilli(), 10))
}
