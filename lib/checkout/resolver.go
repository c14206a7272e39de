package checkout

import (
	"github.com/ValentinKolb/dCheck/lib/db"
)

// Resolution is the result of FindOpenLock.
// Etag and Headers are always set, even if no open lock was found.
type Resolution struct {
	Found   bool
	Record  LockRecord
	Row     db.Row
	Etag    string
	Headers []db.Column
}

// FindOpenLock scans a log (ordered by check-out time, ascending) for the first
// open lock on entityID. With restrictToUser only locks of user are considered.
//
// If the log contains more than one open lock for the entity, the earliest one
// is returned. Finding nothing is not an error.
func FindOpenLock(set db.RowSet, entityID, user string, restrictToUser bool) (Resolution, error) {
	res := Resolution{Etag: set.Etag, Headers: set.Headers}

	ci, err := newColumnIndex(set.Headers)
	if err != nil {
		return res, err
	}

	for _, row := range set.Rows {
		rec, err := ci.decode(row)
		if err != nil {
			return res, err
		}
		if rec.Entity != entityID || !rec.Open() {
			continue
		}
		if restrictToUser && rec.User != user {
			continue
		}
		res.Found = true
		res.Record = rec
		res.Row = row.Copy()
		return res, nil
	}
	return res, nil
}
